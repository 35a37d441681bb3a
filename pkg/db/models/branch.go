package models

import "time"

// Branch is a warehouse or store holding its own stock ledger. Owned by the
// store admin surface; read-only here.
type Branch struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;not null"`
	Address   string    `gorm:"column:address"`
	City      string    `gorm:"column:city"`
	State     string    `gorm:"column:state"`
	Pincode   string    `gorm:"column:pincode;index"`
	Phone     string    `gorm:"column:phone"`
	Email     string    `gorm:"column:email"`
	Latitude  *float64  `gorm:"column:latitude"`
	Longitude *float64  `gorm:"column:longitude"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Branch) TableName() string { return "branches" }

// PickupLocation maps a branch to the pickup address registered with the courier.
type PickupLocation struct {
	BranchID   int64     `gorm:"column:branch_id;primaryKey;autoIncrement:false"`
	PickupName string    `gorm:"column:pickup_name;not null"`
	PickupID   *int64    `gorm:"column:pickup_id"`
	Pincode    string    `gorm:"column:pincode;not null"`
	City       string    `gorm:"column:city"`
	State      string    `gorm:"column:state"`
	Address    string    `gorm:"column:address"`
	Phone      string    `gorm:"column:phone"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PickupLocation) TableName() string { return "courier_pickup_locations" }
