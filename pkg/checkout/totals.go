package checkout

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// PricedLine is a cart line joined with the variant's server-side prices.
type PricedLine struct {
	Qty   int
	Price decimal.Decimal
	MRP   decimal.Decimal
}

// Fees are the flat charges added on top of the discounted subtotal.
type Fees struct {
	Convenience decimal.Decimal
	GiftWrap    decimal.Decimal
}

// ComputeTotals builds the money breakdown for a cart. The bag total is priced
// at MRP, the discount is the MRP to price gap (never negative) and the coupon
// is a percentage of the discounted subtotal floored to a whole unit. The gift
// wrap fee only applies when requested.
func ComputeTotals(lines []PricedLine, couponPct decimal.Decimal, fees Fees, giftWrap bool) (types.Totals, error) {
	if couponPct.IsNegative() || couponPct.GreaterThan(hundred) {
		return types.Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "coupon_pct must be between 0 and 100")
	}

	bag := decimal.Zero
	discount := decimal.Zero
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Qty))
		mrp := line.MRP
		if mrp.IsZero() {
			mrp = line.Price
		}
		bag = bag.Add(mrp.Mul(qty))
		if gap := mrp.Sub(line.Price); gap.IsPositive() {
			discount = discount.Add(gap.Mul(qty))
		}
	}

	coupon := bag.Sub(discount).Mul(couponPct).Div(hundred).Floor()
	totals := types.Totals{
		BagTotal:       bag,
		DiscountTotal:  discount,
		CouponPct:      couponPct,
		CouponDiscount: coupon,
		ConvenienceFee: fees.Convenience,
		GiftWrapFee:    decimal.Zero,
	}
	if giftWrap {
		totals.GiftWrapFee = fees.GiftWrap
	}
	totals.Payable = bag.Sub(discount).Sub(coupon).Add(totals.ConvenienceFee).Add(totals.GiftWrapFee)
	return totals, nil
}

// CheckDeclaredPayable compares a client-declared payable with the computed
// one. A nil declaration is accepted.
func CheckDeclaredPayable(declared *decimal.Decimal, totals types.Totals) error {
	if declared == nil || declared.Equal(totals.Payable) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "declared payable does not match computed totals").WithDetails(map[string]any{
		"declared": declared.String(),
		"computed": totals.Payable.String(),
	})
}
