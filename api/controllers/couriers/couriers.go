package couriers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroute-backend/api/responses"
	"github.com/angelmondragon/stockroute-backend/api/validators"
	"github.com/angelmondragon/stockroute-backend/internal/branches"
	internalshipments "github.com/angelmondragon/stockroute-backend/internal/shipments"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/logger"
)

const pickupDateLayout = "2006-01-02"

// Service is the orchestrator surface the courier routes use.
type Service interface {
	Serviceability(ctx context.Context, q internalshipments.ServiceabilityQuery) (*internalshipments.ServiceabilityResult, error)
	Assign(ctx context.Context, saleID uuid.UUID, courierID int64) (*internalshipments.FulfillmentResult, error)
	SchedulePickup(ctx context.Context, saleID uuid.UUID, date *time.Time) (*internalshipments.PickupActionResult, error)
	Invoice(ctx context.Context, saleID uuid.UUID) (string, error)
	Manifest(ctx context.Context, saleID uuid.UUID) (string, error)
	ApplyCourierStatus(ctx context.Context, update internalshipments.StatusUpdate) (*internalshipments.StatusResult, error)
}

type assignRequest struct {
	SaleID    uuid.UUID `json:"sale_id" validate:"required"`
	CourierID int64     `json:"courier_id" validate:"min=0"`
}

type pickupRequest struct {
	SaleID     uuid.UUID `json:"sale_id" validate:"required"`
	PickupDate string    `json:"pickup_date"`
}

type syncRequest struct {
	BranchIDs []int64 `json:"branch_ids"`
	Force     bool    `json:"force"`
}

func Serviceability(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "courier service unavailable"))
			return
		}

		cod, err := validators.ParseQueryBool(r, "cod", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		weight, err := validators.ParseQueryFloat(r, "weight", 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := internalshipments.ServiceabilityQuery{
			DeliveryPincode: r.URL.Query().Get("pincode"),
			PickupPincode:   r.URL.Query().Get("pickup_pincode"),
			COD:             cod,
			WeightKg:        weight,
		}
		result, err := svc.Serviceability(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func Assign(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "courier service unavailable"))
			return
		}

		var req assignRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Assign(r.Context(), req.SaleID, req.CourierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func SchedulePickup(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "courier service unavailable"))
			return
		}

		var req pickupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var date *time.Time
		if raw := strings.TrimSpace(req.PickupDate); raw != "" {
			parsed, err := time.Parse(pickupDateLayout, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "pickup_date must be YYYY-MM-DD"))
				return
			}
			date = &parsed
		}

		result, err := svc.SchedulePickup(r.Context(), req.SaleID, date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func Invoice(svc Service, logg *logger.Logger) http.HandlerFunc {
	return documentHandler(svc, logg, "invoice_url", func(ctx context.Context, saleID uuid.UUID) (string, error) {
		return svc.Invoice(ctx, saleID)
	})
}

func Manifest(svc Service, logg *logger.Logger) http.HandlerFunc {
	return documentHandler(svc, logg, "manifest_url", func(ctx context.Context, saleID uuid.UUID) (string, error) {
		return svc.Manifest(ctx, saleID)
	})
}

func documentHandler(svc Service, logg *logger.Logger, field string, fetch func(context.Context, uuid.UUID) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "courier service unavailable"))
			return
		}

		saleID, err := validators.ParseUUIDParam(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		url, err := fetch(r.Context(), saleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"sale_id": saleID, field: url})
	}
}

// SyncPickupLocations registers branch pickup addresses with the courier.
func SyncPickupLocations(svc branches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "branch service unavailable"))
			return
		}

		var req syncRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.SyncPickupLocations(r.Context(), branches.SyncInput{BranchIDs: req.BranchIDs, Force: req.Force})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ImportPickupLocations maps pickup locations already registered at the
// courier onto branches.
func ImportPickupLocations(svc branches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "branch service unavailable"))
			return
		}

		result, err := svc.ImportPickupLocations(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// courierRef accepts ids sent either as JSON numbers or strings.
type courierRef int64

func (c *courierRef) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" {
		*c = 0
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return err
	}
	*c = courierRef(v)
	return nil
}

type webhookEvent struct {
	ShipmentID    courierRef `json:"shipment_id"`
	AWB           string     `json:"awb"`
	CurrentStatus string     `json:"current_status"`
}

type webhookPayload struct {
	webhookEvent
	Data *webhookEvent `json:"data"`
}

func (p webhookPayload) update() internalshipments.StatusUpdate {
	ev := p.webhookEvent
	if p.Data != nil {
		if ev.ShipmentID == 0 {
			ev.ShipmentID = p.Data.ShipmentID
		}
		if ev.AWB == "" {
			ev.AWB = p.Data.AWB
		}
		if ev.CurrentStatus == "" {
			ev.CurrentStatus = p.Data.CurrentStatus
		}
	}
	return internalshipments.StatusUpdate{
		CourierShipmentID: int64(ev.ShipmentID),
		AWB:               strings.TrimSpace(ev.AWB),
		Status:            ev.CurrentStatus,
	}
}

// Webhook applies courier tracking events. Events for shipments this service
// does not know are acknowledged so the courier stops retrying them.
func Webhook(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "courier service unavailable"))
			return
		}

		var payload webhookPayload
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&payload); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload"))
			return
		}

		result, err := svc.ApplyCourierStatus(r.Context(), payload.update())
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "awb", payload.update().AWB), "courier.webhook.unknown_shipment")
			}
			responses.WriteSuccess(w, internalshipments.StatusResult{Ignored: true, Reason: "unknown shipment"})
			return
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
