package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroute-backend/pkg/enums"
)

// Shipment is one branch's fulfillment of part of a sale.
type Shipment struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	SaleID            uuid.UUID            `gorm:"column:sale_id;type:uuid;not null;index"`
	BranchID          int64                `gorm:"column:branch_id;not null"`
	ChannelOrderID    string               `gorm:"column:channel_order_id;not null"`
	CourierOrderID    *int64               `gorm:"column:courier_order_id"`
	CourierShipmentID *int64               `gorm:"column:courier_shipment_id;index"`
	CourierName       string               `gorm:"column:courier_name"`
	AWB               string               `gorm:"column:awb"`
	LabelURL          string               `gorm:"column:label_url"`
	TrackingURL       string               `gorm:"column:tracking_url"`
	ManifestURL       string               `gorm:"column:manifest_url"`
	PickupScheduledAt *time.Time           `gorm:"column:pickup_scheduled_at"`
	Status            enums.ShipmentStatus `gorm:"column:status;type:text;not null"`
	LastError         string               `gorm:"column:last_error"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (Shipment) TableName() string { return "shipments" }

func (s *Shipment) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// HasAWB reports whether the courier has assigned a tracking number.
func (s Shipment) HasAWB() bool {
	return s.AWB != ""
}
