package controllers

import (
	"net/http"
	"strconv"

	"github.com/angelmondragon/stockroute-backend/api/middleware"
	"github.com/angelmondragon/stockroute-backend/api/responses"
)

// OperatorPing echoes the caller's operator identity so tooling can verify a
// token.
func OperatorPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{
			"status":      "ok",
			"operator_id": middleware.OperatorIDFromContext(r.Context()),
			"role":        middleware.RoleFromContext(r.Context()),
		}
		if branchID, ok := middleware.BranchIDFromContext(r.Context()); ok {
			payload["branch_id"] = strconv.FormatInt(branchID, 10)
		}
		responses.WriteSuccess(w, payload)
	}
}
