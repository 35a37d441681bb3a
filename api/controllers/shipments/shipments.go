package shipments

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroute-backend/api/responses"
	"github.com/angelmondragon/stockroute-backend/api/validators"
	internalshipments "github.com/angelmondragon/stockroute-backend/internal/shipments"
	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/logger"
)

// Service is the orchestrator surface these handlers need.
type Service interface {
	Fulfill(ctx context.Context, saleID uuid.UUID) (*internalshipments.FulfillmentResult, error)
	ListBySale(ctx context.Context, saleID uuid.UUID) ([]models.Shipment, error)
}

// Fulfill (re)drives shipment creation for a sale. Per-group courier failures
// are part of a 200 response so the caller can retry only those groups.
func Fulfill(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipment service unavailable"))
			return
		}

		saleID, err := validators.ParseUUIDParam(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Fulfill(r.Context(), saleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func BySale(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipment service unavailable"))
			return
		}

		saleID, err := validators.ParseUUIDParam(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListBySale(r.Context(), saleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"sale_id":   saleID,
			"shipments": internalshipments.ToViews(rows),
		})
	}
}
