package shipments

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroute-backend/pkg/courier"
	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	"github.com/angelmondragon/stockroute-backend/pkg/enums"
)

// GroupResult reports what happened to one branch group.
type GroupResult struct {
	BranchID       int64                `json:"branch_id"`
	ShipmentID     *uuid.UUID           `json:"shipment_id,omitempty"`
	Status         enums.ShipmentStatus `json:"status,omitempty"`
	CourierOrderID *int64               `json:"courier_order_id,omitempty"`
	AWB            string               `json:"awb,omitempty"`
	CourierName    string               `json:"courier_name,omitempty"`
	LabelURL       string               `json:"label_url,omitempty"`
	TrackingURL    string               `json:"tracking_url,omitempty"`
	Skipped        bool                 `json:"skipped,omitempty"`
	Error          string               `json:"error,omitempty"`
}

// FulfillmentResult is returned by Fulfill and the operator actions.
type FulfillmentResult struct {
	SaleID        uuid.UUID     `json:"sale_id"`
	Groups        []GroupResult `json:"groups"`
	ManifestURL   string        `json:"manifest_url,omitempty"`
	ManifestError string        `json:"manifest_error,omitempty"`
}

// Failed reports whether any group carries an error.
func (r *FulfillmentResult) Failed() bool {
	if r == nil {
		return false
	}
	for _, g := range r.Groups {
		if g.Error != "" {
			return true
		}
	}
	return false
}

func groupResultFrom(s models.Shipment) GroupResult {
	id := s.ID
	return GroupResult{
		BranchID:       s.BranchID,
		ShipmentID:     &id,
		Status:         s.Status,
		CourierOrderID: s.CourierOrderID,
		AWB:            s.AWB,
		CourierName:    s.CourierName,
		LabelURL:       s.LabelURL,
		TrackingURL:    s.TrackingURL,
	}
}

// ShipmentView is the API shape of a shipment row.
type ShipmentView struct {
	ID                uuid.UUID            `json:"id"`
	SaleID            uuid.UUID            `json:"sale_id"`
	BranchID          int64                `json:"branch_id"`
	ChannelOrderID    string               `json:"channel_order_id"`
	CourierOrderID    *int64               `json:"courier_order_id,omitempty"`
	CourierShipmentID *int64               `json:"courier_shipment_id,omitempty"`
	CourierName       string               `json:"courier_name,omitempty"`
	AWB               string               `json:"awb,omitempty"`
	LabelURL          string               `json:"label_url,omitempty"`
	TrackingURL       string               `json:"tracking_url,omitempty"`
	ManifestURL       string               `json:"manifest_url,omitempty"`
	PickupScheduledAt *time.Time           `json:"pickup_scheduled_at,omitempty"`
	Status            enums.ShipmentStatus `json:"status"`
	LastError         string               `json:"last_error,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// ToView maps a shipment row to its API shape.
func ToView(s models.Shipment) ShipmentView {
	return ShipmentView{
		ID:                s.ID,
		SaleID:            s.SaleID,
		BranchID:          s.BranchID,
		ChannelOrderID:    s.ChannelOrderID,
		CourierOrderID:    s.CourierOrderID,
		CourierShipmentID: s.CourierShipmentID,
		CourierName:       s.CourierName,
		AWB:               s.AWB,
		LabelURL:          s.LabelURL,
		TrackingURL:       s.TrackingURL,
		ManifestURL:       s.ManifestURL,
		PickupScheduledAt: s.PickupScheduledAt,
		Status:            s.Status,
		LastError:         s.LastError,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// ToViews maps a list of shipment rows.
func ToViews(rows []models.Shipment) []ShipmentView {
	out := make([]ShipmentView, 0, len(rows))
	for _, s := range rows {
		out = append(out, ToView(s))
	}
	return out
}

// StatusUpdate is a courier tracking event.
type StatusUpdate struct {
	CourierShipmentID int64
	AWB               string
	Status            string
}

// StatusResult reports how a tracking event was applied.
type StatusResult struct {
	ShipmentID *uuid.UUID           `json:"shipment_id,omitempty"`
	Status     enums.ShipmentStatus `json:"status,omitempty"`
	SaleStatus enums.SaleStatus     `json:"sale_status,omitempty"`
	Ignored    bool                 `json:"ignored"`
	Reason     string               `json:"reason,omitempty"`
}

// ServiceabilityQuery asks which couriers can deliver to a pincode.
type ServiceabilityQuery struct {
	DeliveryPincode string
	PickupPincode   string
	COD             bool
	WeightKg        float64
}

// ServiceabilityResult summarises courier coverage for a lane.
type ServiceabilityResult struct {
	Serviceable          bool                    `json:"serviceable"`
	PickupPincode        string                  `json:"pickup_pincode"`
	DeliveryPincode      string                  `json:"delivery_pincode"`
	Couriers             []courier.CourierOption `json:"couriers"`
	RecommendedCourierID int64                   `json:"recommended_courier_id,omitempty"`
	EstimatedDelivery    string                  `json:"est_delivery,omitempty"`
	CODAvailable         bool                    `json:"cod_available"`
}

// PickupActionResult reports a pickup request for a sale.
type PickupActionResult struct {
	SaleID        uuid.UUID     `json:"sale_id"`
	Scheduled     bool          `json:"scheduled"`
	ScheduledDate string        `json:"scheduled_date,omitempty"`
	Shipments     []GroupResult `json:"shipments"`
}
