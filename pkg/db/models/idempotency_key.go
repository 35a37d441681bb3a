package models

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyKey records a client action token that has already been applied.
type IdempotencyKey struct {
	Key       string     `gorm:"column:key;primaryKey"`
	Scope     string     `gorm:"column:scope;not null"`
	SaleID    *uuid.UUID `gorm:"column:sale_id;type:uuid"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (IdempotencyKey) TableName() string { return "idempotency_keys" }
