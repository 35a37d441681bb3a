package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockroute-backend/pkg/db"
	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	"github.com/angelmondragon/stockroute-backend/pkg/enums"
)

type repository struct {
	db   *gorm.DB
	caps db.Capabilities
}

// NewRepository builds a sales repository. caps decides whether optional
// columns such as sales.user_id are written.
func NewRepository(conn *gorm.DB, caps db.Capabilities) Repository {
	return &repository{db: conn, caps: caps}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, caps: r.caps}
}

// CreateSale inserts the sale and then its items.
func (r *repository) CreateSale(ctx context.Context, sale *models.Sale) error {
	omit := []string{clause.Associations}
	if !r.caps.SalesUserID {
		omit = append(omit, "user_id")
	}
	if err := r.db.WithContext(ctx).Omit(omit...).Create(sale).Error; err != nil {
		return err
	}
	if len(sale.Items) == 0 {
		return nil
	}
	for i := range sale.Items {
		sale.Items[i].SaleID = sale.ID
	}
	return r.db.WithContext(ctx).Create(&sale.Items).Error
}

func (r *repository) FindSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	query := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sale_items.id ASC") })
	if !r.caps.SalesUserID {
		query = query.Omit("user_id")
	}
	if err := query.Where("id = ?", saleID).Take(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) LockSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	query := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	if !r.caps.SalesUserID {
		query = query.Omit("user_id")
	}
	if err := query.Where("id = ?", saleID).Take(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) ListItems(ctx context.Context, saleID uuid.UUID) ([]models.SaleItem, error) {
	var items []models.SaleItem
	err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) UpdateSale(ctx context.Context, saleID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ?", saleID).
		Updates(updates).Error
}

func (r *repository) ListShipments(ctx context.Context, saleID uuid.UUID) ([]models.Shipment, error) {
	var rows []models.Shipment
	err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("created_at ASC, branch_id ASC").
		Find(&rows).Error
	return rows, err
}

// CancelShipments locks the sale's shipments, flips the non-cancelled ones to
// CANCELLED and returns the courier order ids of those that were live.
func (r *repository) CancelShipments(ctx context.Context, saleID uuid.UUID) ([]int64, error) {
	var rows []models.Shipment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("sale_id = ? AND status <> ?", saleID, enums.ShipmentStatusCancelled).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(rows))
	var orderIDs []int64
	for _, row := range rows {
		ids = append(ids, row.ID)
		if row.Status.IsLive() && row.CourierOrderID != nil {
			orderIDs = append(orderIDs, *row.CourierOrderID)
		}
	}
	err = r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id IN ?", ids).
		Update("status", enums.ShipmentStatusCancelled).Error
	if err != nil {
		return nil, err
	}
	return orderIDs, nil
}

// InsertCancellation writes the audit row once per sale.
func (r *repository) InsertCancellation(ctx context.Context, row *models.OrderCancellation) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sale_id"}}, DoNothing: true}).
		Create(row).Error
}
