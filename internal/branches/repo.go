package branches

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
)

// Repository handles branch and pickup-location persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to branch operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ActiveBranches returns active branches ordered by id. An empty ids slice
// means every branch.
func (r *Repository) ActiveBranches(ctx context.Context, ids []int64) ([]models.Branch, error) {
	query := r.db.WithContext(ctx).Where("is_active = ?", true)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	var rows []models.Branch
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Pickups returns every stored pickup mapping keyed by branch id.
func (r *Repository) Pickups(ctx context.Context) (map[int64]models.PickupLocation, error) {
	var rows []models.PickupLocation
	if err := r.db.WithContext(ctx).Order("branch_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]models.PickupLocation, len(rows))
	for _, row := range rows {
		out[row.BranchID] = row
	}
	return out, nil
}

// SavePickup inserts or replaces the mapping for the row's branch.
func (r *Repository) SavePickup(ctx context.Context, row *models.PickupLocation) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "branch_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"pickup_name", "pickup_id", "pincode", "city", "state", "address", "phone", "updated_at"}),
		}).
		Create(row).Error
}
