package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockroute-backend/internal/shipments"
	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	"github.com/angelmondragon/stockroute-backend/pkg/enums"
	"github.com/angelmondragon/stockroute-backend/pkg/types"
)

// SaleItemView is the API shape of a sale line.
type SaleItemView struct {
	VariantID int64           `json:"variant_id"`
	BranchID  int64           `json:"branch_id"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	MRP       decimal.Decimal `json:"mrp"`
	Name      string          `json:"name,omitempty"`
	Size      string          `json:"size,omitempty"`
	Colour    string          `json:"colour,omitempty"`
	ImageURL  string          `json:"image_url,omitempty"`
	EANCode   string          `json:"ean_code,omitempty"`
}

// SaleView is the API shape of a sale with its items and shipments.
type SaleView struct {
	ID              uuid.UUID                `json:"id"`
	Source          enums.SaleSource         `json:"source"`
	Status          enums.SaleStatus         `json:"status"`
	PaymentStatus   enums.PaymentStatus      `json:"payment_status"`
	StockState      enums.StockState         `json:"stock_state"`
	BranchID        *int64                   `json:"branch_id,omitempty"`
	UserID          *uuid.UUID               `json:"user_id,omitempty"`
	CustomerName    string                   `json:"customer_name,omitempty"`
	CustomerEmail   string                   `json:"customer_email,omitempty"`
	CustomerPhone   string                   `json:"customer_phone,omitempty"`
	ShippingAddress types.Address            `json:"shipping_address"`
	Totals          types.Totals             `json:"totals"`
	Items           []SaleItemView           `json:"items"`
	Shipments       []shipments.ShipmentView `json:"shipments"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// NewSaleView maps a sale and its shipments.
func NewSaleView(sale *models.Sale, rows []models.Shipment) *SaleView {
	view := &SaleView{
		ID:              sale.ID,
		Source:          sale.Source,
		Status:          sale.Status,
		PaymentStatus:   sale.PaymentStatus,
		StockState:      sale.StockState,
		BranchID:        sale.BranchID,
		UserID:          sale.UserID,
		CustomerName:    sale.CustomerName,
		CustomerEmail:   sale.CustomerEmail,
		CustomerPhone:   sale.CustomerPhone,
		ShippingAddress: sale.ShippingAddress,
		Totals:          sale.Totals,
		Items:           make([]SaleItemView, 0, len(sale.Items)),
		Shipments:       shipments.ToViews(rows),
		CreatedAt:       sale.CreatedAt,
		UpdatedAt:       sale.UpdatedAt,
	}
	for _, it := range sale.Items {
		view.Items = append(view.Items, SaleItemView{
			VariantID: it.VariantID,
			BranchID:  it.BranchID,
			Qty:       it.Qty,
			Price:     it.Price,
			MRP:       it.MRP,
			Name:      it.Name,
			Size:      it.Size,
			Colour:    it.Colour,
			ImageURL:  it.ImageURL,
			EANCode:   it.EANCode,
		})
	}
	return view
}

// ConfirmInput confirms an in-person sale.
type ConfirmInput struct {
	SaleID         uuid.UUID
	ClientActionID string
	PaymentStatus  *enums.PaymentStatus
	OperatorID     string
}

// ConfirmResult carries the confirmed sale. Replayed is set when the client
// action id had already been applied.
type ConfirmResult struct {
	Sale     *SaleView `json:"sale"`
	Replayed bool      `json:"replayed"`
	Changed  bool      `json:"changed"`
}

// PaymentStatusInput changes the payment status of a sale.
type PaymentStatusInput struct {
	SaleID uuid.UUID
	Status enums.PaymentStatus
}

// PaymentStatusResult reports the outcome of a payment status change.
type PaymentStatusResult struct {
	Sale        *SaleView                    `json:"sale"`
	Changed     bool                         `json:"changed"`
	Fulfillment *shipments.FulfillmentResult `json:"fulfillment,omitempty"`
}

// CancelInput cancels a sale.
type CancelInput struct {
	SaleID      uuid.UUID
	Reason      string
	Source      enums.CancellationSource
	PaymentType string
}

// CancelResult lists what the cancellation touched.
type CancelResult struct {
	SaleID           uuid.UUID        `json:"sale_id"`
	Status           enums.SaleStatus `json:"status"`
	StockReleased    bool             `json:"stock_released"`
	CourierOrderIDs  []int64          `json:"courier_order_ids"`
	CourierCancelled bool             `json:"courier_cancelled"`
	CourierError     string           `json:"courier_error,omitempty"`
}
