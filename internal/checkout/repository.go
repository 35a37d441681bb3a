package checkout

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
)

// Repository exposes the catalogue reads placement needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ActiveVariants(ctx context.Context, ids []int64) (map[int64]models.Variant, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalogue repository backed by the provided DB.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ActiveVariants returns the active variants among ids keyed by id. Unknown
// and inactive ids are simply absent.
func (r *repository) ActiveVariants(ctx context.Context, ids []int64) (map[int64]models.Variant, error) {
	out := make(map[int64]models.Variant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Variant
	err := r.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}
