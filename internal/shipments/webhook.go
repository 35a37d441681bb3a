package shipments

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	"github.com/angelmondragon/stockroute-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
)

// ApplyCourierStatus records a courier tracking event on the matching
// shipment and rolls the sale forward to DELIVERED or RTO when its shipments
// say so. Unknown labels and cancelled shipments are ignored.
func (o *Orchestrator) ApplyCourierStatus(ctx context.Context, update StatusUpdate) (*StatusResult, error) {
	if update.CourierShipmentID <= 0 && update.AWB == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment_id or awb is required")
	}
	status, ok := enums.ShipmentStatusFromCourier(update.Status)
	if !ok {
		return &StatusResult{Ignored: true, Reason: "unmapped courier status"}, nil
	}

	var result *StatusResult
	err := o.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := o.repo.WithTx(tx)
		shipment, err := repo.LockByCourierRef(ctx, update.CourierShipmentID, update.AWB)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipment")
		}
		if shipment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		id := shipment.ID
		result = &StatusResult{ShipmentID: &id, Status: shipment.Status}
		if shipment.Status == enums.ShipmentStatusCancelled {
			result.Ignored = true
			result.Reason = "shipment is cancelled"
			return nil
		}

		shipment.Status = status
		if shipment.AWB == "" && update.AWB != "" {
			shipment.AWB = update.AWB
		}
		if err := repo.Save(ctx, shipment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save shipment")
		}
		result.Status = status

		sale, err := repo.LockSale(ctx, shipment.SaleID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock sale")
		}
		result.SaleStatus = sale.Status
		if sale.Status.IsTerminal() {
			return nil
		}

		rows, err := repo.ListBySale(ctx, sale.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shipments")
		}
		next, changed := saleStatusFromShipments(rows)
		if !changed {
			return nil
		}
		if err := repo.UpdateSaleStatus(ctx, sale.ID, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update sale status")
		}
		result.SaleStatus = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// saleStatusFromShipments derives the sale outcome from its live shipments:
// RTO when any returned, DELIVERED when all delivered.
func saleStatusFromShipments(rows []models.Shipment) (enums.SaleStatus, bool) {
	live, delivered := 0, 0
	for _, s := range rows {
		if !s.Status.IsLive() {
			continue
		}
		live++
		switch s.Status {
		case enums.ShipmentStatusRTO:
			return enums.SaleStatusRTO, true
		case enums.ShipmentStatusDelivered:
			delivered++
		}
	}
	if live > 0 && delivered == live {
		return enums.SaleStatusDelivered, true
	}
	return "", false
}
