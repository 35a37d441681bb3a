package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Totals is the money breakdown persisted on a sale.
type Totals struct {
	BagTotal       decimal.Decimal `json:"bag_total"`
	DiscountTotal  decimal.Decimal `json:"discount_total"`
	CouponPct      decimal.Decimal `json:"coupon_pct"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
	ConvenienceFee decimal.Decimal `json:"convenience_fee"`
	GiftWrapFee    decimal.Decimal `json:"gift_wrap_fee"`
	Payable        decimal.Decimal `json:"payable"`
}

// Validate checks the breakdown is internally consistent.
func (t Totals) Validate() error {
	for name, v := range map[string]decimal.Decimal{
		"bag_total":       t.BagTotal,
		"discount_total":  t.DiscountTotal,
		"coupon_discount": t.CouponDiscount,
		"convenience_fee": t.ConvenienceFee,
		"gift_wrap_fee":   t.GiftWrapFee,
		"payable":         t.Payable,
	} {
		if v.IsNegative() {
			return fmt.Errorf("totals: %s must not be negative", name)
		}
	}
	if t.CouponPct.IsNegative() || t.CouponPct.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("totals: coupon_pct must be between 0 and 100")
	}
	want := t.BagTotal.Sub(t.DiscountTotal).Sub(t.CouponDiscount).Add(t.ConvenienceFee).Add(t.GiftWrapFee)
	if !want.Equal(t.Payable) {
		return fmt.Errorf("totals: payable %s does not match breakdown %s", t.Payable, want)
	}
	return nil
}
