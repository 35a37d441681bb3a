package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
)

func TestValidateLinesAcceptsPositiveLines(t *testing.T) {
	require.NoError(t, ValidateLines([]LineInput{{VariantID: 1, Qty: 1}, {VariantID: 2, Qty: 3}}))
}

func TestValidateLinesReportsEveryViolation(t *testing.T) {
	err := ValidateLines([]LineInput{{VariantID: 1, Qty: 0}, {VariantID: 0, Qty: 2}, {VariantID: 3, Qty: 1}})
	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeInvalidCart, apiErr.Code())

	details, ok := apiErr.Details().(map[string]any)
	require.True(t, ok)
	violations, ok := details["violations"].([]LineViolation)
	require.True(t, ok)
	require.Len(t, violations, 2)
	assert.Equal(t, 0, violations[0].Index)
	assert.Equal(t, "qty must be positive", violations[0].Reason)
	assert.Equal(t, 1, violations[1].Index)
}

func TestValidateLinesRejectsEmptyCart(t *testing.T) {
	assert.True(t, pkgerrors.HasCode(ValidateLines(nil), pkgerrors.CodeInvalidCart))
}

func TestMergeLinesSumsRepeatedVariants(t *testing.T) {
	merged := MergeLines([]LineInput{{VariantID: 7, Qty: 1}, {VariantID: 3, Qty: 2}, {VariantID: 7, Qty: 4}})
	assert.Equal(t, []LineInput{{VariantID: 7, Qty: 5}, {VariantID: 3, Qty: 2}}, merged)
}

func TestComputeTotalsFloorsCoupon(t *testing.T) {
	lines := []PricedLine{
		{Qty: 2, Price: decimal.NewFromInt(100), MRP: decimal.NewFromInt(125)},
	}
	totals, err := ComputeTotals(lines, decimal.NewFromInt(10), Fees{}, false)
	require.NoError(t, err)

	assert.True(t, totals.BagTotal.Equal(decimal.NewFromInt(250)))
	assert.True(t, totals.DiscountTotal.Equal(decimal.NewFromInt(50)))
	assert.True(t, totals.CouponDiscount.Equal(decimal.NewFromInt(20)))
	assert.True(t, totals.Payable.Equal(decimal.NewFromInt(180)))
	require.NoError(t, totals.Validate())

	odd, err := ComputeTotals([]PricedLine{{Qty: 1, Price: decimal.NewFromInt(99), MRP: decimal.NewFromInt(99)}}, decimal.NewFromInt(15), Fees{}, false)
	require.NoError(t, err)
	assert.True(t, odd.CouponDiscount.Equal(decimal.NewFromInt(14)), "14.85 floors to 14")
}

func TestComputeTotalsAddsFees(t *testing.T) {
	fees := Fees{Convenience: decimal.NewFromInt(20), GiftWrap: decimal.NewFromInt(30)}
	lines := []PricedLine{{Qty: 1, Price: decimal.NewFromInt(500), MRP: decimal.Zero}}

	plain, err := ComputeTotals(lines, decimal.Zero, fees, false)
	require.NoError(t, err)
	assert.True(t, plain.BagTotal.Equal(decimal.NewFromInt(500)), "missing mrp falls back to price")
	assert.True(t, plain.GiftWrapFee.IsZero())
	assert.True(t, plain.Payable.Equal(decimal.NewFromInt(520)))

	wrapped, err := ComputeTotals(lines, decimal.Zero, fees, true)
	require.NoError(t, err)
	assert.True(t, wrapped.Payable.Equal(decimal.NewFromInt(550)))
}

func TestComputeTotalsIgnoresNegativeDiscount(t *testing.T) {
	totals, err := ComputeTotals([]PricedLine{{Qty: 1, Price: decimal.NewFromInt(120), MRP: decimal.NewFromInt(100)}}, decimal.Zero, Fees{}, false)
	require.NoError(t, err)
	assert.True(t, totals.DiscountTotal.IsZero())
	assert.True(t, totals.Payable.Equal(decimal.NewFromInt(100)))
}

func TestComputeTotalsRejectsCouponOutOfRange(t *testing.T) {
	_, err := ComputeTotals(nil, decimal.NewFromInt(101), Fees{}, false)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestCheckDeclaredPayable(t *testing.T) {
	totals, err := ComputeTotals([]PricedLine{{Qty: 1, Price: decimal.NewFromInt(80), MRP: decimal.NewFromInt(100)}}, decimal.Zero, Fees{}, false)
	require.NoError(t, err)

	require.NoError(t, CheckDeclaredPayable(nil, totals))
	ok := decimal.RequireFromString("80.00")
	require.NoError(t, CheckDeclaredPayable(&ok, totals))

	wrong := decimal.NewFromInt(100)
	assert.True(t, pkgerrors.HasCode(CheckDeclaredPayable(&wrong, totals), pkgerrors.CodeValidation))
}
