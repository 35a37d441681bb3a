package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAddressValidate(t *testing.T) {
	lat, lng := 12.97, 77.59
	addr := Address{Line1: "12 MG Road", City: "Bengaluru", State: "KA", Pincode: "560001", Lat: &lat, Lng: &lng}
	require.NoError(t, addr.Validate())

	pos, ok := addr.Coordinates()
	require.True(t, ok)
	require.Equal(t, LatLng{Lat: 12.97, Lng: 77.59}, pos)

	bad := addr
	bad.Pincode = "5600"
	require.Error(t, bad.Validate())

	half := addr
	half.Lng = nil
	require.Error(t, half.Validate())
	_, ok = half.Coordinates()
	require.False(t, ok)

	require.Equal(t, "India", addr.CountryOrDefault())
}

func TestTotalsValidate(t *testing.T) {
	totals := Totals{
		BagTotal:       decimal.NewFromInt(250),
		DiscountTotal:  decimal.NewFromInt(40),
		CouponPct:      decimal.NewFromInt(10),
		CouponDiscount: decimal.NewFromInt(21),
		ConvenienceFee: decimal.NewFromInt(10),
		Payable:        decimal.NewFromInt(199),
	}
	require.NoError(t, totals.Validate())

	totals.Payable = decimal.NewFromInt(200)
	require.Error(t, totals.Validate())

	totals.Payable = decimal.NewFromInt(199)
	totals.CouponPct = decimal.NewFromInt(101)
	require.Error(t, totals.Validate())
}
