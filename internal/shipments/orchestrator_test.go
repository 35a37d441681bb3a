package shipments

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroute-backend/pkg/courier"
	"github.com/angelmondragon/stockroute-backend/pkg/db"
	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	"github.com/angelmondragon/stockroute-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/redis"
	"github.com/angelmondragon/stockroute-backend/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:shipments_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

type fakeGateway struct {
	mu           sync.Mutex
	nextID       int64
	created      []courier.CreateShipmentRequest
	failCreate   map[string]error
	failLabel    map[int64]error
	noAWB        map[int64]bool
	assigned     map[int64]int64
	pickups      [][]int64
	pickupDates  []time.Time
	manifests    [][]int64
	manifestErr  error
	invoices     [][]int64
	serviceReqs  []courier.ServiceabilityRequest
	serviceReply *courier.Serviceability
	cancelled    [][]int64
	cancelErr    error
	onCreate     func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextID:     100,
		failCreate: map[string]error{},
		failLabel:  map[int64]error{},
		noAWB:      map[int64]bool{},
		assigned:   map[int64]int64{},
	}
}

func (f *fakeGateway) CreateShipment(_ context.Context, req courier.CreateShipmentRequest) (*courier.CreateShipmentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.onCreate != nil {
		f.onCreate()
	}
	for suffix, err := range f.failCreate {
		if strings.HasSuffix(req.ChannelOrderID, suffix) {
			return nil, err
		}
	}
	f.nextID++
	return &courier.CreateShipmentResult{OrderID: f.nextID + 1000, ShipmentID: f.nextID, TrackingURL: "https://track.test/" + req.ChannelOrderID}, nil
}

func (f *fakeGateway) AssignCarrierAndLabel(ctx context.Context, shipmentID int64) (courier.LabelResult, error) {
	return f.AssignCourierAndLabel(ctx, shipmentID, 0)
}

func (f *fakeGateway) AssignCourierAndLabel(_ context.Context, shipmentID, courierID int64) (courier.LabelResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned[shipmentID] = courierID
	if f.noAWB[shipmentID] {
		return courier.LabelResult{}, pkgerrors.New(pkgerrors.CodeCourierUnavailable, "no awb")
	}
	res := courier.LabelResult{AWB: "AWB" + uuid.NewString()[:6], CourierName: "Delhivery"}
	if err := f.failLabel[shipmentID]; err != nil {
		return res, err
	}
	res.LabelURL = "https://label.test/l.pdf"
	return res, nil
}

func (f *fakeGateway) RequestPickup(_ context.Context, ids []int64, date *time.Time) (courier.PickupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pickups = append(f.pickups, ids)
	if date != nil {
		f.pickupDates = append(f.pickupDates, *date)
	}
	return courier.PickupResult{Scheduled: true, ScheduledDate: "2026-10-20 10:00:00"}, nil
}

func (f *fakeGateway) GenerateManifest(_ context.Context, ids []int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manifests = append(f.manifests, ids)
	if f.manifestErr != nil {
		return "", f.manifestErr
	}
	return "https://manifest.test/m.pdf", nil
}

func (f *fakeGateway) PrintInvoice(_ context.Context, ids []int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices = append(f.invoices, ids)
	return "https://invoice.test/i.pdf", nil
}

func (f *fakeGateway) CheckServiceability(_ context.Context, req courier.ServiceabilityRequest) (*courier.Serviceability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serviceReqs = append(f.serviceReqs, req)
	if f.serviceReply == nil {
		return &courier.Serviceability{}, nil
	}
	return f.serviceReply, nil
}

func (f *fakeGateway) Cancel(_ context.Context, orderIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderIDs)
	return f.cancelErr
}

type lockerStub struct {
	held     bool
	err      error
	released int
}

func (l *lockerStub) AcquireLock(context.Context, string, string, time.Duration) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.held {
		return nil, redis.ErrLockHeld
	}
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

type groupCounter struct {
	outcomes map[string]int
}

func (g *groupCounter) IncGroup(outcome string) {
	if g.outcomes == nil {
		g.outcomes = map[string]int{}
	}
	g.outcomes[outcome]++
}

var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func newOrchestrator(t *testing.T, conn *gorm.DB, gw Gateway, opts ...func(*OrchestratorParams)) *Orchestrator {
	t.Helper()
	p := OrchestratorParams{
		Repo:     NewRepository(conn),
		Tx:       db.Wrap(conn),
		Courier:  gw,
		Settings: Settings{UnitWeightKg: 0.5, PickupDelay: 24 * time.Hour},
		Now:      func() time.Time { return fixedNow },
	}
	for _, opt := range opts {
		opt(&p)
	}
	o, err := NewOrchestrator(p)
	require.NoError(t, err)
	return o
}

type saleItemSeed struct {
	branchID  int64
	variantID int64
	qty       int
	price     int64
	weight    string
}

func seedSale(t *testing.T, conn *gorm.DB, status enums.SaleStatus, payment enums.PaymentStatus, stockState enums.StockState, items ...saleItemSeed) *models.Sale {
	t.Helper()
	sale := &models.Sale{
		Source:        enums.SaleSourceWeb,
		Status:        status,
		PaymentStatus: payment,
		StockState:    stockState,
		CustomerName:  "Asha",
		CustomerEmail: "asha@example.com",
		CustomerPhone: "9999999999",
		ShippingAddress: types.Address{
			Line1: "12 MG Road", City: "Bengaluru", State: "KA", Pincode: "560001",
		},
		Totals: types.Totals{Payable: decimal.NewFromInt(500)},
	}
	for _, it := range items {
		weight := decimal.Zero
		if it.weight != "" {
			weight = decimal.RequireFromString(it.weight)
		}
		sale.Items = append(sale.Items, models.SaleItem{
			VariantID: it.variantID,
			BranchID:  it.branchID,
			Qty:       it.qty,
			Price:     decimal.NewFromInt(it.price),
			MRP:       decimal.NewFromInt(it.price),
			Name:      "Tee",
			Size:      "M",
			WeightKg:  weight,
		})
	}
	if err := conn.Create(sale).Error; err != nil {
		t.Fatalf("seed sale: %v", err)
	}
	return sale
}

func seedPickup(t *testing.T, conn *gorm.DB, branchID int64, pincode string) {
	t.Helper()
	row := models.PickupLocation{BranchID: branchID, PickupName: "branch-" + pincode, Pincode: pincode}
	if err := conn.Create(&row).Error; err != nil {
		t.Fatalf("seed pickup: %v", err)
	}
}

func TestFulfillCreatesOneShipmentPerBranchGroup(t *testing.T) {
	conn := newTestDB(t)
	gw := newFakeGateway()
	counter := &groupCounter{}
	locker := &lockerStub{}
	o := newOrchestrator(t, conn, gw, func(p *OrchestratorParams) {
		p.Metrics = counter
		p.Locker = locker
	})
	seedPickup(t, conn, 1, "560001")
	seedPickup(t, conn, 2, "560002")
	sale := seedSale(t, conn, enums.SaleStatusPlaced, enums.PaymentStatusCOD, enums.StockStateCommitted,
		saleItemSeed{branchID: 2, variantID: 20, qty: 2, price: 50},
		saleItemSeed{branchID: 1, variantID: 10, qty: 1, price: 100, weight: "1.2"},
		saleItemSeed{branchID: 1, variantID: 11, qty: 2, price: 75},
	)

	res, err := o.Fulfill(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, res.Groups, 2)
	assert.False(t, res.Failed())
	assert.Equal(t, "https://manifest.test/m.pdf", res.ManifestURL)
	assert.Equal(t, 1, locker.released)
	assert.Equal(t, 2, counter.outcomes["ready"])

	require.Len(t, gw.created, 2)
	first := gw.created[0]
	assert.Equal(t, sale.ID.String()+"-1", first.ChannelOrderID)
	assert.Equal(t, "branch-560001", first.PickupLocation)
	assert.Equal(t, courier.PaymentCOD, first.PaymentMethod)
	assert.Equal(t, 250.0, first.SubTotal)
	assert.InDelta(t, 2.2, first.Package.WeightKg, 1e-9)
	assert.Equal(t, "India", first.Customer.Country)
	assert.Equal(t, "Tee / M", first.Items[0].Name)
	assert.Equal(t, "10", first.Items[0].SKU)

	require.Len(t, gw.manifests, 1)
	assert.Len(t, gw.manifests[0], 2)
	require.Len(t, gw.pickupDates, 2)
	assert.Equal(t, fixedNow.Add(24*time.Hour), gw.pickupDates[0])

	rows, err := NewRepository(conn).ListBySale(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, enums.ShipmentStatusReady, row.Status)
		assert.NotEmpty(t, row.AWB)
		assert.Equal(t, "https://manifest.test/m.pdf", row.ManifestURL)
		assert.NotNil(t, row.PickupScheduledAt)
	}
}

func TestFulfillIsolatesGroupFailures(t *testing.T) {
	conn := newTestDB(t)
	gw := newFakeGateway()
	gw.failCreate["-2"] = pkgerrors.New(pkgerrors.CodeCourierUnavailable, "courier down")
	o := newOrchestrator(t, conn, gw)
	seedPickup(t, conn, 1, "560001")
	seedPickup(t, conn, 2, "560002")
	sale := seedSale(t, conn, enums.SaleStatusPlaced, enums.PaymentStatusPaid, enums.StockStateCommitted,
		saleItemSeed{branchID: 1, variantID: 10, qty: 1, price: 100},
		saleItemSeed{branchID: 2, variantID: 20, qty: 1, price: 100},
		saleItemSeed{branchID: 3, variantID: 30, qty: 1, price: 100},
	)

	res, err := o.Fulfill(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, res.Groups, 3)
	assert.True(t, res.Failed())

	assert.Empty(t, res.Groups[0].Error)
	assert.Equal(t, enums.ShipmentStatusReady, res.Groups[0].Status)
	assert.Contains(t, res.Groups[1].Error, "courier down")
	assert.Equal(t, enums.ShipmentStatusFailed, res.Groups[1].Status)
	assert.Contains(t, res.Groups[2].Error, "pickup")
	assert.Equal(t, courier.PaymentPrepaid, gw.created[0].PaymentMethod)

	require.Len(t, gw.manifests, 1)
	assert.Len(t, gw.manifests[0], 1)

	// A second run retries only the failed groups.
	delete(gw.failCreate, "-2")
	seedPickup(t, conn, 3, "560003")
	res, err = o.Fulfill(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.True(t, res.Groups[0].Skipped)
	assert.False(t, res.Groups[1].Skipped)
	assert.Empty(t, res.Groups[1].Error)
	assert.Empty(t, res.Groups[2].Error)
	assert.Len(t, gw.created, 4)
}

func TestFulfillPersistsPartialCourierProgress(t *testing.T) {
	conn := newTestDB(t)
	gw := newFakeGateway()
	gw.noAWB[101] = true
	o := newOrchestrator(t, conn, gw)
	seedPickup(t, conn, 1, "560001")
	sale := seedSale(t, conn, enums.SaleStatusPlaced, enums.PaymentStatusPaid, enums.StockStateCommitted,
		saleItemSeed{branchID: 1, variantID: 10, qty: 1, price: 100},
	)

	res, err := o.Fulfill(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, enums.ShipmentStatusCreated, res.Groups[0].Status)
	assert.NotEmpty(t, res.Groups[0].Error)
	assert.Empty(t, gw.manifests)
	require.Len(t, gw.pickups, 1, "pickup is requested once a courier shipment exists")
	assert.Equal(t, []int64{101}, gw.pickups[0])

	rows, err := NewRepository(conn).ListBySale(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.ShipmentStatusCreated, rows[0].Status)
	require.NotNil(t, rows[0].CourierShipmentID)
	assert.Equal(t, int64(101), *rows[0].CourierShipmentID)
	assert.NotEmpty(t, rows[0].LastError)

	// Operator assigns a courier later.
	delete(gw.noAWB, 101)
	assigned, err := o.Assign(context.Background(), sale.ID, 42)
	require.NoError(t, err)
	require.Len(t, assigned.Groups, 1)
	assert.Equal(t, enums.ShipmentStatusReady, assigned.Groups[0].Status)
	assert.Equal(t, int64(42), gw.assigned[101])
}

func TestFulfillCancelledMidwayWithdrawsCourierOrder(t *testing.T) {
	conn := newTestDB(t)
	gw := newFakeGateway()
	o := newOrchestrator(t, conn, gw)
	seedPickup(t, conn, 1, "560001")
	seedPickup(t, conn, 2, "560002")
	sale := seedSale(t, conn, enums.SaleStatusPlaced, enums.PaymentStatusPaid, enums.StockStateCommitted,
		saleItemSeed{branchID: 1, variantID: 10, qty: 1, price: 100},
		saleItemSeed{branchID: 2, variantID: 20, qty: 1, price: 100},
	)
	// a customer cancel commits while the courier order is being created
	gw.onCreate = func() {
		require.NoError(t, conn.Model(&models.Sale{}).Where("id = ?", sale.ID).
			Update("status", enums.SaleStatusCancelled).Error)
	}

	res, err := o.Fulfill(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, res.Groups, 2)
	assert.Equal(t, enums.ShipmentStatusCancelled, res.Groups[0].Status)
	assert.NotEmpty(t, res.Groups[0].Error)
	assert.NotEmpty(t, res.Groups[1].Error)
	assert.Nil(t, res.Groups[1].ShipmentID)

	assert.Len(t, gw.created, 1, "no further groups are sent once the sale is closed")
	assert.Empty(t, gw.pickups)
	assert.Empty(t, gw.manifests)
	require.Len(t, gw.cancelled, 1)
	assert.Equal(t, []int64{1101}, gw.cancelled[0])

	rows, err := NewRepository(conn).ListBySale(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.ShipmentStatusCancelled, rows[0].Status)
	assert.Nil(t, rows[0].PickupScheduledAt)
}

func TestFulfillKeepsCourierCancelFailureOnRow(t *testing.T) {
	conn := newTestDB(t)
	gw := newFakeGateway()
	gw.cancelErr = pkgerrors.New(pkgerrors.CodeCourierUnavailable, "cancel rejected")
	o := newOrchestrator(t, conn, gw)
	seedPickup(t, conn, 1, "560001")
	sale := seedSale(t, conn, enums.SaleStatusPlaced, enums.PaymentStatusPaid, enums.StockStateCommitted,
		saleItemSeed{branchID: 1, variantID: 10, qty: 1, price: 100})
	gw.onCreate = func() {
		require.NoError(t, conn.Model(&models.Sale{}).Where("id = ?", sale.ID).
			Update("status", enums.SaleStatusCancelled).Error)
	}

	_, err := o.Fulfill(context.Background(), sale.ID)
	require.NoError(t, err)

	rows, err := NewRepository(conn).ListBySale(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.ShipmentStatusCancelled, rows[0].Status)
	assert.Contains(t, rows[0].LastError, "cancel rejected")
}

func TestFulfillRejectsUncommittedOrTerminalSales(t *testing.T) {
	conn := newTestDB(t)
	o := newOrchestrator(t, conn, newFakeGateway())

	held := seedSale(t, conn, enums.SaleStatusPlaced, enums.PaymentStatusPending, enums.StockStateHeld,
		saleItemSeed{branchID: 1, variantID: 10, qty: 1, price: 100})
	_, err := o.Fulfill(context.Background(), held.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	cancelled := seedSale(t, conn, enums.SaleStatusCancelled, enums.PaymentStatusPaid, enums.StockStateCommitted,
		saleItemSeed{branchID: 1, variantID: 10, qty: 1, price: 100})
	_, err = o.Fulfill(context.Background(), cancelled.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	_, err = o.Fulfill(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestFulfillHonoursLock(t *testing.T) {
	conn := newTestDB(t)
	locker := &lockerStub{held: true}
	o := newOrchestrator(t, conn, newFakeGateway(), func(p *OrchestratorParams) { p.Locker = locker })

	_, err := o.Fulfill(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	locker.held = false
	locker.err = errors.New("redis down")
	_, err = o.Fulfill(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestFulfillReportsManifestFailure(t *testing.T) {
	conn := newTestDB(t)
	gw := newFakeGateway()
	gw.manifestErr = pkgerrors.New(pkgerrors.CodeCourierUnavailable, "manifest queue down")
	o := newOrchestrator(t, conn, gw)
	seedPickup(t, conn, 1, "560001")
	sale := seedSale(t, conn, enums.SaleStatusPlaced, enums.PaymentStatusPaid, enums.StockStateCommitted,
		saleItemSeed{branchID: 1, variantID: 10, qty: 1, price: 100})

	res, err := o.Fulfill(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Contains(t, res.ManifestError, "manifest queue down")
	assert.Empty(t, res.ManifestURL)
}

func TestSchedulePickupInvoiceAndManifest(t *testing.T) {
	conn := newTestDB(t)
	gw := newFakeGateway()
	o := newOrchestrator(t, conn, gw)
	seedPickup(t, conn, 1, "560001")
	sale := seedSale(t, conn, enums.SaleStatusPlaced, enums.PaymentStatusPaid, enums.StockStateCommitted,
		saleItemSeed{branchID: 1, variantID: 10, qty: 1, price: 100})
	_, err := o.Fulfill(context.Background(), sale.ID)
	require.NoError(t, err)

	date := time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC)
	pickup, err := o.SchedulePickup(context.Background(), sale.ID, &date)
	require.NoError(t, err)
	assert.True(t, pickup.Scheduled)
	require.Len(t, pickup.Shipments, 1)
	assert.Equal(t, enums.ShipmentStatusPickupScheduled, pickup.Shipments[0].Status)
	assert.Equal(t, date, gw.pickupDates[len(gw.pickupDates)-1])

	invoice, err := o.Invoice(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://invoice.test/i.pdf", invoice)
	assert.Equal(t, []int64{1101}, gw.invoices[0])

	manifest, err := o.Manifest(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://manifest.test/m.pdf", manifest)
	assert.Len(t, gw.manifests, 1, "stored manifest is reused")
}

func TestOperatorActionsNeedShipments(t *testing.T) {
	conn := newTestDB(t)
	o := newOrchestrator(t, conn, newFakeGateway())
	sale := seedSale(t, conn, enums.SaleStatusPlaced, enums.PaymentStatusPaid, enums.StockStateCommitted,
		saleItemSeed{branchID: 1, variantID: 10, qty: 1, price: 100})

	_, err := o.SchedulePickup(context.Background(), sale.ID, nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	_, err = o.Invoice(context.Background(), sale.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	_, err = o.ListBySale(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestServiceabilityDefaultsPickupPincode(t *testing.T) {
	conn := newTestDB(t)
	gw := newFakeGateway()
	gw.serviceReply = &courier.Serviceability{
		Couriers: []courier.CourierOption{
			{ID: 1, Name: "Xpress", ETD: "Oct 24", COD: false, Rate: 80},
			{ID: 2, Name: "Delhivery", ETD: "Oct 22", COD: true, Rate: 60},
		},
		RecommendedCourierID: 2,
	}
	o := newOrchestrator(t, conn, gw)

	_, err := o.Serviceability(context.Background(), ServiceabilityQuery{DeliveryPincode: "110001"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNoPickupMapped))

	seedPickup(t, conn, 4, "400001")
	seedPickup(t, conn, 2, "560001")
	res, err := o.Serviceability(context.Background(), ServiceabilityQuery{DeliveryPincode: " 110001 ", COD: true})
	require.NoError(t, err)
	assert.True(t, res.Serviceable)
	assert.True(t, res.CODAvailable)
	assert.Equal(t, "Oct 22", res.EstimatedDelivery)
	assert.Equal(t, "560001", res.PickupPincode)
	assert.Equal(t, 0.5, gw.serviceReqs[0].WeightKg)

	_, err = o.Serviceability(context.Background(), ServiceabilityQuery{DeliveryPincode: "11"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
