package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroute-backend/internal/idempotency"
	"github.com/angelmondragon/stockroute-backend/internal/shipments"
	"github.com/angelmondragon/stockroute-backend/internal/stock"
	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
)

// Repository defines persistence operations for sales and their audit rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSale(ctx context.Context, sale *models.Sale) error
	FindSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, error)
	LockSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, error)
	ListItems(ctx context.Context, saleID uuid.UUID) ([]models.SaleItem, error)
	UpdateSale(ctx context.Context, saleID uuid.UUID, updates map[string]any) error
	ListShipments(ctx context.Context, saleID uuid.UUID) ([]models.Shipment, error)
	CancelShipments(ctx context.Context, saleID uuid.UUID) ([]int64, error)
	InsertCancellation(ctx context.Context, row *models.OrderCancellation) error
}

// StockLedger is the subset of the ledger the lifecycle drives.
type StockLedger interface {
	CommitAll(ctx context.Context, tx *gorm.DB, lines []stock.Line) error
	DecrementAll(ctx context.Context, tx *gorm.DB, lines []stock.Line) error
	ReleaseAll(ctx context.Context, tx *gorm.DB, lines []stock.Line) error
}

// Claimer records client action ids.
type Claimer interface {
	Claim(ctx context.Context, tx *gorm.DB, scope, clientActionID string, saleID *uuid.UUID) (idempotency.Claim, error)
}

// CourierCanceller cancels courier-side orders.
type CourierCanceller interface {
	Cancel(ctx context.Context, orderIDs []int64) error
}

// Fulfiller creates shipments for a sale whose stock is committed.
type Fulfiller interface {
	Fulfill(ctx context.Context, saleID uuid.UUID) (*shipments.FulfillmentResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the sale lifecycle.
type Service interface {
	Get(ctx context.Context, saleID uuid.UUID) (*SaleView, error)
	Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error)
	SetPaymentStatus(ctx context.Context, input PaymentStatusInput) (*PaymentStatusResult, error)
	Cancel(ctx context.Context, input CancelInput) (*CancelResult, error)
}
