package allocation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/maps"
	"github.com/angelmondragon/stockroute-backend/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:allocation_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&models.Branch{}, &models.BranchVariantStock{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func ptr(v float64) *float64 { return &v }

func addBranch(t *testing.T, db *gorm.DB, id int64, pincode string, lat, lng *float64) {
	t.Helper()
	branch := models.Branch{ID: id, Name: "branch", Pincode: pincode, Latitude: lat, Longitude: lng, IsActive: true}
	if err := db.Create(&branch).Error; err != nil {
		t.Fatalf("seed branch: %v", err)
	}
}

func addStock(t *testing.T, db *gorm.DB, branchID, variantID int64, onHand, reserved int) {
	t.Helper()
	row := models.BranchVariantStock{BranchID: branchID, VariantID: variantID, OnHand: onHand, Reserved: reserved, IsActive: true}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func newAllocator(t *testing.T, db *gorm.DB, opts ...Option) *Allocator {
	t.Helper()
	a, err := NewAllocator(NewRepository(db), opts...)
	require.NoError(t, err)
	return a
}

func TestAllocateSplitsWhenNoBranchCoversCart(t *testing.T) {
	db := newTestDB(t)
	addBranch(t, db, 1, "560001", nil, nil)
	addBranch(t, db, 2, "560002", nil, nil)
	addStock(t, db, 1, 100, 5, 0)
	addStock(t, db, 2, 200, 3, 0)

	plan, err := newAllocator(t, db).Allocate(context.Background(), []Item{
		{VariantID: 100, Qty: 2},
		{VariantID: 200, Qty: 2},
	}, Location{})
	require.NoError(t, err)

	assert.True(t, plan.Split)
	assert.Equal(t, []Group{
		{BranchID: 1, Items: []Item{{VariantID: 100, Qty: 2}}},
		{BranchID: 2, Items: []Item{{VariantID: 200, Qty: 2}}},
	}, plan.Groups)
	_, single := plan.SingleBranch()
	assert.False(t, single)
}

func TestAllocatePrefersPincodeMatchOverNearerBranch(t *testing.T) {
	db := newTestDB(t)
	// Branch 1 sits on the delivery point but in another pincode.
	addBranch(t, db, 1, "110001", ptr(12.97), ptr(77.59))
	addBranch(t, db, 2, "560001", ptr(13.50), ptr(78.20))
	for _, b := range []int64{1, 2} {
		addStock(t, db, b, 100, 4, 0)
		addStock(t, db, b, 200, 4, 0)
	}

	point := types.LatLng{Lat: 12.97, Lng: 77.59}
	plan, err := newAllocator(t, db).Allocate(context.Background(), []Item{
		{VariantID: 100, Qty: 1},
		{VariantID: 200, Qty: 2},
	}, Location{Pincode: "560001", Point: &point})
	require.NoError(t, err)

	branchID, ok := plan.SingleBranch()
	require.True(t, ok)
	assert.Equal(t, int64(2), branchID)
	assert.False(t, plan.Split)
}

func TestAllocateWholeCartFallsBackToLowestID(t *testing.T) {
	db := newTestDB(t)
	addBranch(t, db, 3, "400001", nil, nil)
	addBranch(t, db, 7, "400002", nil, nil)
	addStock(t, db, 3, 100, 2, 0)
	addStock(t, db, 7, 100, 9, 0)

	plan, err := newAllocator(t, db).Allocate(context.Background(), []Item{{VariantID: 100, Qty: 2}}, Location{Pincode: "999999"})
	require.NoError(t, err)
	branchID, _ := plan.SingleBranch()
	assert.Equal(t, int64(3), branchID)
}

func TestAllocatePerItemUsesNearestBranch(t *testing.T) {
	db := newTestDB(t)
	addBranch(t, db, 1, "110001", ptr(28.61), ptr(77.20)) // Delhi
	addBranch(t, db, 2, "600001", ptr(13.08), ptr(80.27)) // Chennai
	addBranch(t, db, 3, "400001", ptr(18.94), ptr(72.83)) // Mumbai
	addStock(t, db, 1, 100, 5, 0)
	addStock(t, db, 2, 100, 5, 0)
	addStock(t, db, 3, 200, 5, 0)

	bengaluru := types.LatLng{Lat: 12.97, Lng: 77.59}
	plan, err := newAllocator(t, db).Allocate(context.Background(), []Item{
		{VariantID: 100, Qty: 1},
		{VariantID: 200, Qty: 1},
	}, Location{Pincode: "560001", Point: &bengaluru})
	require.NoError(t, err)

	branchFor100, _ := plan.BranchFor(100)
	branchFor200, _ := plan.BranchFor(200)
	assert.Equal(t, int64(2), branchFor100)
	assert.Equal(t, int64(3), branchFor200)
}

func TestAllocateIgnoresReservedAndInactiveStock(t *testing.T) {
	db := newTestDB(t)
	addBranch(t, db, 1, "560001", nil, nil)
	addBranch(t, db, 2, "560001", nil, nil)
	addStock(t, db, 1, 100, 5, 4)
	addStock(t, db, 2, 100, 5, 0)
	require.NoError(t, db.Model(&models.Branch{}).Where("id = ?", 2).Update("is_active", false).Error)

	_, err := newAllocator(t, db).Allocate(context.Background(), []Item{{VariantID: 100, Qty: 2}}, Location{})
	require.Error(t, err)
	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeOutOfStock, apiErr.Code())
	assert.Equal(t, map[string]any{"variant_id": int64(100)}, apiErr.Details())
}

func TestAllocateWithoutSplitting(t *testing.T) {
	db := newTestDB(t)
	addBranch(t, db, 1, "560001", nil, nil)
	addBranch(t, db, 2, "560002", nil, nil)
	addStock(t, db, 1, 100, 5, 0)
	addStock(t, db, 2, 200, 3, 0)

	_, err := newAllocator(t, db, WithSplitOrders(false)).Allocate(context.Background(), []Item{
		{VariantID: 100, Qty: 2},
		{VariantID: 200, Qty: 2},
	}, Location{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeOutOfStock))
}

func TestAllocateMergesDuplicateLinesAndRejectsBadCart(t *testing.T) {
	db := newTestDB(t)
	addBranch(t, db, 1, "560001", nil, nil)
	addStock(t, db, 1, 100, 3, 0)
	a := newAllocator(t, db)

	_, err := a.Allocate(context.Background(), []Item{{VariantID: 100, Qty: 2}, {VariantID: 100, Qty: 2}}, Location{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeOutOfStock))

	plan, err := a.Allocate(context.Background(), []Item{{VariantID: 100, Qty: 1}, {VariantID: 100, Qty: 2}}, Location{})
	require.NoError(t, err)
	assert.Equal(t, []Item{{VariantID: 100, Qty: 3}}, plan.Groups[0].Items)

	_, err = a.Allocate(context.Background(), nil, Location{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidCart))
	_, err = a.Allocate(context.Background(), []Item{{VariantID: 100, Qty: 0}}, Location{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidCart))
}

func TestPlanQuantitiesMatchCart(t *testing.T) {
	db := newTestDB(t)
	for id := int64(1); id <= 3; id++ {
		addBranch(t, db, id, "560001", nil, nil)
	}
	addStock(t, db, 1, 100, 1, 0)
	addStock(t, db, 2, 100, 4, 0)
	addStock(t, db, 2, 300, 1, 0)
	addStock(t, db, 3, 200, 2, 0)

	cart := []Item{{VariantID: 100, Qty: 3}, {VariantID: 200, Qty: 2}, {VariantID: 300, Qty: 1}}
	plan, err := newAllocator(t, db).Allocate(context.Background(), cart, Location{})
	require.NoError(t, err)

	got := map[int64]int{}
	for _, line := range plan.StockLines() {
		got[line.VariantID] += line.Qty
	}
	assert.Equal(t, map[int64]int{100: 3, 200: 2, 300: 1}, got)
}

type geocoderStub struct {
	point types.LatLng
	err   error
	calls int
}

func (g *geocoderStub) GeocodePincode(context.Context, string) (types.LatLng, error) {
	g.calls++
	return g.point, g.err
}

func TestResolveLocation(t *testing.T) {
	db := newTestDB(t)
	addBranch(t, db, 1, "560001", ptr(12.0), ptr(77.0))
	addBranch(t, db, 2, "560001", ptr(14.0), ptr(79.0))
	geo := &geocoderStub{point: types.LatLng{Lat: 28.6, Lng: 77.2}}
	a := newAllocator(t, db, WithGeocoder(geo))
	ctx := context.Background()

	loc := a.ResolveLocation(ctx, types.Address{Pincode: "110001", Lat: ptr(1), Lng: ptr(2)})
	require.NotNil(t, loc.Point)
	assert.Equal(t, types.LatLng{Lat: 1, Lng: 2}, *loc.Point)

	loc = a.ResolveLocation(ctx, types.Address{Pincode: "560001"})
	require.NotNil(t, loc.Point)
	assert.InDelta(t, 13.0, loc.Point.Lat, 1e-9)
	assert.InDelta(t, 78.0, loc.Point.Lng, 1e-9)
	assert.Equal(t, 0, geo.calls)

	loc = a.ResolveLocation(ctx, types.Address{Pincode: "110001"})
	require.NotNil(t, loc.Point)
	assert.Equal(t, 28.6, loc.Point.Lat)
	assert.Equal(t, 1, geo.calls)

	geo.err = maps.ErrNoResults
	loc = a.ResolveLocation(ctx, types.Address{Pincode: "999999"})
	assert.Nil(t, loc.Point)
	assert.Equal(t, "999999", loc.Pincode)

	geo.err = errors.New("boom")
	assert.Nil(t, a.ResolveLocation(ctx, types.Address{Pincode: "999998"}).Point)
}

func TestHaversine(t *testing.T) {
	bengaluru := types.LatLng{Lat: 12.9716, Lng: 77.5946}
	chennai := types.LatLng{Lat: 13.0827, Lng: 80.2707}
	d := Haversine(bengaluru, chennai)
	assert.InDelta(t, 290, d, 5)
	assert.Zero(t, Haversine(chennai, chennai))
	assert.False(t, math.IsNaN(Haversine(types.LatLng{Lat: 90}, types.LatLng{Lat: -90})))
}
