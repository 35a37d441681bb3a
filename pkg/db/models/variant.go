package models

import "github.com/shopspring/decimal"

// Variant is a sellable size/colour SKU. Owned by the catalog; read-only here.
type Variant struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID int64           `gorm:"column:product_id;not null"`
	Name      string          `gorm:"column:name;not null"`
	Size      string          `gorm:"column:size"`
	Colour    string          `gorm:"column:colour"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	MRP       decimal.Decimal `gorm:"column:mrp;type:numeric(12,2);not null"`
	EANCode   string          `gorm:"column:ean_code"`
	ImageURL  string          `gorm:"column:image_url"`
	WeightKg  decimal.Decimal `gorm:"column:weight_kg;type:numeric(8,3);not null;default:0"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true"`
}

func (Variant) TableName() string { return "product_variants" }
