package branches

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroute-backend/pkg/courier"
	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:branches_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&models.Branch{}, &models.PickupLocation{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type gatewayStub struct {
	upserts   []courier.PickupAddress
	failFor   map[string]error
	locations []courier.PickupLocation
	listErr   error
}

func (g *gatewayStub) UpsertPickup(_ context.Context, addr courier.PickupAddress) (courier.PickupLocation, error) {
	g.upserts = append(g.upserts, addr)
	if err := g.failFor[addr.Name]; err != nil {
		return courier.PickupLocation{}, err
	}
	return courier.PickupLocation{ID: int64(1000 + len(g.upserts)), Name: addr.Name, Pincode: addr.Pincode}, nil
}

func (g *gatewayStub) ListPickups(context.Context) ([]courier.PickupLocation, error) {
	return g.locations, g.listErr
}

func seedBranch(t *testing.T, db *gorm.DB, id int64, pincode, city string) {
	t.Helper()
	branch := models.Branch{ID: id, Name: "Store", Address: "1 Market St", City: city, State: "MH", Pincode: pincode, Phone: "9999999999", IsActive: true}
	require.NoError(t, db.Create(&branch).Error)
}

func newService(t *testing.T, db *gorm.DB, gw *gatewayStub) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), gw, nil)
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, &gatewayStub{}, nil)
	assert.Error(t, err)
	_, err = NewService(NewRepository(newTestDB(t)), nil, nil)
	assert.Error(t, err)
}

func TestSyncRegistersUnmappedBranches(t *testing.T) {
	db := newTestDB(t)
	seedBranch(t, db, 1, "411001", "Pune")
	seedBranch(t, db, 2, "560001", "Bengaluru")
	require.NoError(t, db.Create(&models.PickupLocation{BranchID: 2, PickupName: "legacy", Pincode: "560001"}).Error)
	gw := &gatewayStub{}

	res, err := newService(t, db, gw).SyncPickupLocations(context.Background(), SyncInput{})
	require.NoError(t, err)
	require.Len(t, res.Synced, 1)
	assert.Equal(t, "branch-1", res.Synced[0].PickupName)
	require.NotNil(t, res.Synced[0].PickupID)
	assert.Equal(t, int64(1001), *res.Synced[0].PickupID)
	assert.Equal(t, []int64{2}, res.Skipped)
	assert.Empty(t, res.Failed)

	require.Len(t, gw.upserts, 1)
	assert.Equal(t, "India", gw.upserts[0].Country)
	assert.Equal(t, "411001", gw.upserts[0].Pincode)

	var stored models.PickupLocation
	require.NoError(t, db.Where("branch_id = ?", 1).Take(&stored).Error)
	assert.Equal(t, "branch-1", stored.PickupName)
}

func TestSyncForceReregistersAndAggregatesFailures(t *testing.T) {
	db := newTestDB(t)
	seedBranch(t, db, 1, "411001", "Pune")
	seedBranch(t, db, 2, "560001", "Bengaluru")
	seedBranch(t, db, 3, "bad", "Nowhere")
	require.NoError(t, db.Create(&models.PickupLocation{BranchID: 1, PickupName: "legacy", Pincode: "411001"}).Error)
	gw := &gatewayStub{failFor: map[string]error{"branch-2": errors.New("pickup rejected")}}

	res, err := newService(t, db, gw).SyncPickupLocations(context.Background(), SyncInput{Force: true})
	require.NoError(t, err)
	require.Len(t, res.Synced, 1)
	assert.Equal(t, int64(1), res.Synced[0].BranchID)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, int64(2), res.Failed[0].BranchID)
	assert.Contains(t, res.Failed[0].Error, "pickup rejected")
	assert.Equal(t, int64(3), res.Failed[1].BranchID)
	assert.Contains(t, res.Error, "branch 2")
	assert.Contains(t, res.Error, "branch 3")
	assert.Len(t, gw.upserts, 2, "incomplete branch never reaches the courier")

	var stored models.PickupLocation
	require.NoError(t, db.Where("branch_id = ?", 1).Take(&stored).Error)
	assert.Equal(t, "branch-1", stored.PickupName, "forced sync replaces the mapping")
}

func TestSyncLimitsToSelectedBranches(t *testing.T) {
	db := newTestDB(t)
	seedBranch(t, db, 1, "411001", "Pune")
	seedBranch(t, db, 2, "560001", "Bengaluru")
	gw := &gatewayStub{}

	res, err := newService(t, db, gw).SyncPickupLocations(context.Background(), SyncInput{BranchIDs: []int64{2}})
	require.NoError(t, err)
	require.Len(t, res.Synced, 1)
	assert.Equal(t, int64(2), res.Synced[0].BranchID)
}

func TestImportMatchesByPincodeThenCity(t *testing.T) {
	db := newTestDB(t)
	seedBranch(t, db, 1, "411001", "Pune")
	seedBranch(t, db, 2, "411045", "pune")
	seedBranch(t, db, 3, "110001", "Delhi")
	gw := &gatewayStub{locations: []courier.PickupLocation{
		{ID: 7, Name: "Pune Camp", Pincode: "411001", City: "Pune"},
		{ID: 8, Name: "Pune Baner", Pincode: "411045", City: "Pune"},
		{ID: 9, Name: "Mumbai", Pincode: "400001", City: "Mumbai"},
	}}

	res, err := newService(t, db, gw).ImportPickupLocations(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Synced, 2)
	assert.Equal(t, "Pune Camp", res.Synced[0].PickupName)
	assert.Equal(t, "Pune Baner", res.Synced[1].PickupName)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, int64(3), res.Failed[0].BranchID)
}

func TestImportFallsBackToCityAndUsesEachLocationOnce(t *testing.T) {
	db := newTestDB(t)
	seedBranch(t, db, 1, "411002", "Pune")
	seedBranch(t, db, 2, "411003", "Pune")
	gw := &gatewayStub{locations: []courier.PickupLocation{{ID: 7, Name: "Pune Camp", Pincode: "411001", City: "PUNE"}}}

	res, err := newService(t, db, gw).ImportPickupLocations(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Synced, 1)
	assert.Equal(t, int64(1), res.Synced[0].BranchID)
	assert.Equal(t, "411001", res.Synced[0].Pincode)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, int64(2), res.Failed[0].BranchID)
}

func TestImportSurfacesCourierErrors(t *testing.T) {
	db := newTestDB(t)
	seedBranch(t, db, 1, "411001", "Pune")
	gw := &gatewayStub{listErr: errors.New("courier down")}

	_, err := newService(t, db, gw).ImportPickupLocations(context.Background())
	assert.EqualError(t, err, "courier down")
}

func TestRepositoryActiveBranchesSkipsInactive(t *testing.T) {
	db := newTestDB(t)
	seedBranch(t, db, 1, "411001", "Pune")
	seedBranch(t, db, 2, "411002", "Pune")
	require.NoError(t, db.Model(&models.Branch{}).Where("id = ?", 2).Update("is_active", false).Error)

	rows, err := NewRepository(db).ActiveBranches(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].ID)
}
