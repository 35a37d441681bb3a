package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockroute-backend/internal/orders"
	"github.com/angelmondragon/stockroute-backend/internal/shipments"
	"github.com/angelmondragon/stockroute-backend/pkg/enums"
	"github.com/angelmondragon/stockroute-backend/pkg/types"
)

// PlaceItem is one requested cart line.
type PlaceItem struct {
	VariantID int64 `json:"variant_id"`
	Qty       int   `json:"qty"`
}

// PlaceInput captures an order placement request.
type PlaceInput struct {
	Items           []PlaceItem         `json:"items"`
	Source          enums.SaleSource    `json:"source"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	CustomerName    string              `json:"customer_name" validate:"omitempty,max=200"`
	CustomerEmail   string              `json:"customer_email" validate:"omitempty,email"`
	CustomerPhone   string              `json:"customer_phone" validate:"omitempty,max=20"`
	ShippingAddress types.Address       `json:"shipping_address"`
	CouponPct       decimal.Decimal     `json:"coupon_pct"`
	GiftWrap        bool                `json:"gift_wrap"`
	Payable         *decimal.Decimal    `json:"payable,omitempty"`
	ClientActionID  string              `json:"client_action_id" validate:"omitempty,max=200"`
	UserID          *uuid.UUID          `json:"user_id,omitempty"`
}

// PlanItem is an item inside an allocation group.
type PlanItem struct {
	VariantID int64 `json:"variant_id"`
	Qty       int   `json:"qty"`
}

// PlanGroup is the part of the order one branch ships.
type PlanGroup struct {
	BranchID int64      `json:"branch_id"`
	Items    []PlanItem `json:"items"`
}

// PlaceResult is returned by Place.
type PlaceResult struct {
	SaleID      uuid.UUID                    `json:"sale_id"`
	Totals      types.Totals                 `json:"totals"`
	Plan        []PlanGroup                  `json:"shipment_plan"`
	Split       bool                         `json:"split"`
	Replayed    bool                         `json:"replayed"`
	Sale        *orders.SaleView             `json:"sale"`
	Fulfillment *shipments.FulfillmentResult `json:"fulfillment,omitempty"`
}
