package shipments

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/stockroute-backend/pkg/courier"
	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	"github.com/angelmondragon/stockroute-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/types"
)

// ListBySale returns the shipments of a sale.
func (o *Orchestrator) ListBySale(ctx context.Context, saleID uuid.UUID) ([]models.Shipment, error) {
	if _, err := o.repo.LoadSale(ctx, saleID); err != nil {
		return nil, notFoundOr(err, "load sale")
	}
	rows, err := o.repo.ListBySale(ctx, saleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shipments")
	}
	return rows, nil
}

// Assign assigns an AWB with the chosen courier to every live shipment of the
// sale that lacks one, then generates its label. courierID zero uses the
// courier's recommendation.
func (o *Orchestrator) Assign(ctx context.Context, saleID uuid.UUID, courierID int64) (*FulfillmentResult, error) {
	ctx = o.logg.WithSaleID(ctx, saleID.String())
	rows, err := o.activeShipments(ctx, saleID)
	if err != nil {
		return nil, err
	}

	result := &FulfillmentResult{SaleID: saleID}
	for i := range rows {
		s := &rows[i]
		if s.HasAWB() || s.CourierShipmentID == nil {
			gr := groupResultFrom(*s)
			gr.Skipped = true
			result.Groups = append(result.Groups, gr)
			continue
		}

		label, err := o.courier.AssignCourierAndLabel(ctx, *s.CourierShipmentID, courierID)
		applyLabel(s, label)
		s.LastError = ""
		if err != nil {
			s.LastError = err.Error()
		}
		if s.HasAWB() && s.Status == enums.ShipmentStatusCreated {
			s.Status = enums.ShipmentStatusReady
		}
		gr := groupResultFrom(*s)
		if err != nil {
			gr.Error = err.Error()
		}
		if serr := o.repo.Save(ctx, s); serr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, serr, "save shipment")
		}
		result.Groups = append(result.Groups, gr)
	}
	return result, nil
}

// SchedulePickup requests courier pickup for every live shipment with an AWB
// that is not already in transit or delivered.
func (o *Orchestrator) SchedulePickup(ctx context.Context, saleID uuid.UUID, date *time.Time) (*PickupActionResult, error) {
	ctx = o.logg.WithSaleID(ctx, saleID.String())
	rows, err := o.activeShipments(ctx, saleID)
	if err != nil {
		return nil, err
	}

	var (
		pending []*models.Shipment
		ids     []int64
	)
	for i := range rows {
		s := &rows[i]
		if !s.HasAWB() || s.CourierShipmentID == nil {
			continue
		}
		if s.Status != enums.ShipmentStatusReady && s.Status != enums.ShipmentStatusPickupScheduled {
			continue
		}
		pending = append(pending, s)
		ids = append(ids, *s.CourierShipmentID)
	}
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no shipments are ready for pickup")
	}

	requested := o.now().Add(o.settings.PickupDelay)
	if date != nil {
		requested = *date
	}
	ack, err := o.courier.RequestPickup(ctx, ids, &requested)
	if err != nil {
		return nil, err
	}

	result := &PickupActionResult{SaleID: saleID, Scheduled: ack.Scheduled, ScheduledDate: ack.ScheduledDate}
	var saveErrs error
	for _, s := range pending {
		if ack.Scheduled {
			scheduled := parsePickupDate(ack.ScheduledDate, requested)
			s.PickupScheduledAt = &scheduled
			s.Status = enums.ShipmentStatusPickupScheduled
			s.LastError = ""
			saveErrs = multierr.Append(saveErrs, o.repo.Save(ctx, s))
		}
		result.Shipments = append(result.Shipments, groupResultFrom(*s))
	}
	if saveErrs != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, saveErrs, "save shipments")
	}
	return result, nil
}

// Invoice returns the courier invoice covering the sale's live shipments.
func (o *Orchestrator) Invoice(ctx context.Context, saleID uuid.UUID) (string, error) {
	rows, err := o.activeShipments(ctx, saleID)
	if err != nil {
		return "", err
	}
	var orderIDs []int64
	for _, s := range rows {
		if s.CourierOrderID != nil {
			orderIDs = append(orderIDs, *s.CourierOrderID)
		}
	}
	if len(orderIDs) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "sale has no courier orders")
	}
	return o.courier.PrintInvoice(ctx, orderIDs)
}

// Manifest returns the stored manifest of the sale, generating one for its
// AWB-bearing shipments when none exists yet.
func (o *Orchestrator) Manifest(ctx context.Context, saleID uuid.UUID) (string, error) {
	rows, err := o.activeShipments(ctx, saleID)
	if err != nil {
		return "", err
	}
	var (
		ids     []int64
		missing []uuid.UUID
		stored  string
	)
	for _, s := range rows {
		if !s.HasAWB() || s.CourierShipmentID == nil {
			continue
		}
		ids = append(ids, *s.CourierShipmentID)
		if s.ManifestURL != "" {
			stored = s.ManifestURL
		} else {
			missing = append(missing, s.ID)
		}
	}
	if len(ids) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "sale has no shipments with an awb")
	}
	if stored != "" && len(missing) == 0 {
		return stored, nil
	}

	url, err := o.courier.GenerateManifest(ctx, ids)
	if err != nil {
		return "", err
	}
	all := make([]uuid.UUID, 0, len(rows))
	for _, s := range rows {
		if s.HasAWB() && s.CourierShipmentID != nil {
			all = append(all, s.ID)
		}
	}
	if err := o.repo.SetManifestURL(ctx, all, url); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store manifest url")
	}
	return url, nil
}

// Serviceability checks courier coverage. The pickup pincode defaults to the
// first registered pickup location and the weight to one unit.
func (o *Orchestrator) Serviceability(ctx context.Context, q ServiceabilityQuery) (*ServiceabilityResult, error) {
	q.DeliveryPincode = strings.TrimSpace(q.DeliveryPincode)
	if !types.IsPincode(q.DeliveryPincode) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pincode must be 6 digits")
	}
	q.PickupPincode = strings.TrimSpace(q.PickupPincode)
	if q.PickupPincode == "" {
		pickup, err := o.repo.DefaultPickup(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load default pickup")
		}
		if pickup == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNoPickupMapped, "no courier pickup location is registered")
		}
		q.PickupPincode = pickup.Pincode
	}
	if q.WeightKg <= 0 {
		q.WeightKg = o.settings.UnitWeightKg
	}

	res, err := o.courier.CheckServiceability(ctx, courier.ServiceabilityRequest{
		PickupPincode:   q.PickupPincode,
		DeliveryPincode: q.DeliveryPincode,
		COD:             q.COD,
		WeightKg:        q.WeightKg,
	})
	if err != nil {
		return nil, err
	}

	out := &ServiceabilityResult{
		Serviceable:          len(res.Couriers) > 0,
		PickupPincode:        q.PickupPincode,
		DeliveryPincode:      q.DeliveryPincode,
		Couriers:             res.Couriers,
		RecommendedCourierID: res.RecommendedCourierID,
	}
	for _, c := range res.Couriers {
		if c.COD {
			out.CODAvailable = true
		}
		if c.ID == res.RecommendedCourierID {
			out.EstimatedDelivery = firstNonEmpty(c.ETD, c.EstimatedDays)
		}
	}
	if out.EstimatedDelivery == "" && len(res.Couriers) > 0 {
		out.EstimatedDelivery = firstNonEmpty(res.Couriers[0].ETD, res.Couriers[0].EstimatedDays)
	}
	return out, nil
}

func (o *Orchestrator) activeShipments(ctx context.Context, saleID uuid.UUID) ([]models.Shipment, error) {
	sale, err := o.repo.LoadSale(ctx, saleID)
	if err != nil {
		return nil, notFoundOr(err, "load sale")
	}
	if sale.Status == enums.SaleStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "sale is cancelled")
	}
	rows, err := o.repo.ListBySale(ctx, saleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shipments")
	}
	live := rows[:0]
	for _, s := range rows {
		if s.Status.IsLive() {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "sale has no active shipments")
	}
	return live, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
