package models

import "time"

// BranchVariantStock is one stock ledger row. Rows are never deleted, only
// deactivated.
type BranchVariantStock struct {
	BranchID  int64     `gorm:"column:branch_id;primaryKey;autoIncrement:false"`
	VariantID int64     `gorm:"column:variant_id;primaryKey;autoIncrement:false"`
	OnHand    int       `gorm:"column:on_hand;not null;default:0"`
	Reserved  int       `gorm:"column:reserved;not null;default:0"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (BranchVariantStock) TableName() string { return "branch_variant_stock" }

// Available is the quantity that can still be sold or reserved.
func (s BranchVariantStock) Available() int {
	return s.OnHand - s.Reserved
}
