package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/stockroute-backend/api/responses"
	pkgAuth "github.com/angelmondragon/stockroute-backend/pkg/auth"
	"github.com/angelmondragon/stockroute-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/logger"
)

// OperatorAuth validates an operator bearer token and seeds the request
// context with its claims.
func OperatorAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseOperatorToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if strings.TrimSpace(claims.OperatorID) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing operator id"))
				return
			}

			ctx := WithOperator(r.Context(), claims.OperatorID, string(claims.Role))
			if claims.BranchID != nil {
				ctx = context.WithValue(ctx, ctxBranchID, *claims.BranchID)
			}

			if logg != nil {
				ctx = logg.WithOperatorID(ctx, claims.OperatorID)
				ctx = logg.WithField(ctx, "operator_role", string(claims.Role))
				if claims.BranchID != nil {
					ctx = logg.WithBranchID(ctx, *claims.BranchID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
