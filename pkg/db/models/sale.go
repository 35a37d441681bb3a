package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroute-backend/pkg/enums"
	"github.com/angelmondragon/stockroute-backend/pkg/types"
)

// Sale is one customer order.
type Sale struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Source          enums.SaleSource    `gorm:"column:source;type:text;not null"`
	Status          enums.SaleStatus    `gorm:"column:status;type:text;not null"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:text;not null"`
	StockState      enums.StockState    `gorm:"column:stock_state;type:text;not null"`
	BranchID        *int64              `gorm:"column:branch_id"`
	UserID          *uuid.UUID          `gorm:"column:user_id;type:uuid"`
	CustomerName    string              `gorm:"column:customer_name"`
	CustomerEmail   string              `gorm:"column:customer_email"`
	CustomerPhone   string              `gorm:"column:customer_phone"`
	ShippingAddress types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	Totals          types.Totals        `gorm:"column:totals;type:jsonb;serializer:json;not null"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items []SaleItem `gorm:"foreignKey:SaleID;references:ID"`
}

func (Sale) TableName() string { return "sales" }

func (s *Sale) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SaleItem is a line of a sale. BranchID records the allocation group that
// fulfils it.
type SaleItem struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	SaleID    uuid.UUID       `gorm:"column:sale_id;type:uuid;not null;index"`
	VariantID int64           `gorm:"column:variant_id;not null"`
	BranchID  int64           `gorm:"column:branch_id;not null"`
	Qty       int             `gorm:"column:qty;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	MRP       decimal.Decimal `gorm:"column:mrp;type:numeric(12,2);not null"`
	Name      string          `gorm:"column:name"`
	Size      string          `gorm:"column:size"`
	Colour    string          `gorm:"column:colour"`
	ImageURL  string          `gorm:"column:image_url"`
	EANCode   string          `gorm:"column:ean_code"`
	WeightKg  decimal.Decimal `gorm:"column:weight_kg;type:numeric(8,3);not null;default:0"`
}

func (SaleItem) TableName() string { return "sale_items" }

// OrderCancellation is the append-only audit row for a cancelled sale.
type OrderCancellation struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	SaleID             uuid.UUID                `gorm:"column:sale_id;type:uuid;not null;uniqueIndex"`
	PaymentType        string                   `gorm:"column:payment_type"`
	Reason             string                   `gorm:"column:reason"`
	CancellationSource enums.CancellationSource `gorm:"column:cancellation_source;type:text;not null"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
}

func (OrderCancellation) TableName() string { return "order_cancellations" }

func (c *OrderCancellation) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
