package shipments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	"github.com/angelmondragon/stockroute-backend/pkg/enums"
)

// Repository persists shipments and reads the sale data fulfillment needs.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// LoadSale returns the sale with its items.
func (r *Repository) LoadSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sale_items.id ASC") }).
		Where("id = ?", saleID).
		Take(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// LockSale loads the sale row FOR UPDATE.
func (r *Repository) LockSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", saleID).
		Take(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// UpdateSaleStatus sets the sale status.
func (r *Repository) UpdateSaleStatus(ctx context.Context, saleID uuid.UUID, status enums.SaleStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ?", saleID).
		Update("status", status).Error
}

// ListBySale returns every shipment of a sale, oldest first.
func (r *Repository) ListBySale(ctx context.Context, saleID uuid.UUID) ([]models.Shipment, error) {
	var rows []models.Shipment
	err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("created_at ASC, branch_id ASC").
		Find(&rows).Error
	return rows, err
}

// Create inserts a shipment.
func (r *Repository) Create(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Create(shipment).Error
}

// Save writes every column of shipment.
func (r *Repository) Save(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Save(shipment).Error
}

// UpdateProgress stores pickup and error details without touching status.
func (r *Repository) UpdateProgress(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ?", shipment.ID).
		Updates(map[string]any{
			"pickup_scheduled_at": shipment.PickupScheduledAt,
			"last_error":          shipment.LastError,
		}).Error
}

// SetManifestURL stores the manifest link on the given shipments.
func (r *Repository) SetManifestURL(ctx context.Context, ids []uuid.UUID, url string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id IN ?", ids).
		Update("manifest_url", url).Error
}

// LockByCourierRef loads a shipment FOR UPDATE by courier shipment id, or by
// AWB when the id is zero. Returns nil when nothing matches.
func (r *Repository) LockByCourierRef(ctx context.Context, courierShipmentID int64, awb string) (*models.Shipment, error) {
	query := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	switch {
	case courierShipmentID > 0:
		query = query.Where("courier_shipment_id = ?", courierShipmentID)
	case awb != "":
		query = query.Where("awb = ?", awb)
	default:
		return nil, nil
	}
	var row models.Shipment
	if err := query.Order("created_at DESC").Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// PickupForBranch returns the courier pickup mapping of a branch, or nil.
func (r *Repository) PickupForBranch(ctx context.Context, branchID int64) (*models.PickupLocation, error) {
	var row models.PickupLocation
	err := r.db.WithContext(ctx).Where("branch_id = ?", branchID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// DefaultPickup returns the pickup mapping with the lowest branch id, or nil.
func (r *Repository) DefaultPickup(ctx context.Context) (*models.PickupLocation, error) {
	var row models.PickupLocation
	err := r.db.WithContext(ctx).Order("branch_id ASC").Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
