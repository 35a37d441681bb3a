package shipments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroute-backend/pkg/courier"
	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	"github.com/angelmondragon/stockroute-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/logger"
	"github.com/angelmondragon/stockroute-backend/pkg/redis"
)

const (
	lockScopeFulfill = "fulfill"
	defaultLockTTL   = 2 * time.Minute
)

var errSaleClosed = pkgerrors.New(pkgerrors.CodeStateConflict, "sale closed during fulfillment")

// Gateway is the courier surface the orchestrator drives. *courier.Client
// satisfies it.
type Gateway interface {
	CreateShipment(ctx context.Context, req courier.CreateShipmentRequest) (*courier.CreateShipmentResult, error)
	AssignCarrierAndLabel(ctx context.Context, shipmentID int64) (courier.LabelResult, error)
	AssignCourierAndLabel(ctx context.Context, shipmentID, courierID int64) (courier.LabelResult, error)
	RequestPickup(ctx context.Context, shipmentIDs []int64, date *time.Time) (courier.PickupResult, error)
	GenerateManifest(ctx context.Context, shipmentIDs []int64) (string, error)
	PrintInvoice(ctx context.Context, orderIDs []int64) (string, error)
	CheckServiceability(ctx context.Context, req courier.ServiceabilityRequest) (*courier.Serviceability, error)
	Cancel(ctx context.Context, orderIDs []int64) error
}

// Locker serialises fulfillment of a sale across processes.
type Locker interface {
	AcquireLock(ctx context.Context, scope, id string, ttl time.Duration) (func(context.Context) error, error)
}

// GroupRecorder counts processed branch groups by outcome.
type GroupRecorder interface {
	IncGroup(outcome string)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Settings are the parcel defaults used when building courier orders.
type Settings struct {
	LengthCm     float64
	BreadthCm    float64
	HeightCm     float64
	UnitWeightKg float64
	PickupDelay  time.Duration
	LockTTL      time.Duration
}

// OrchestratorParams groups the orchestrator dependencies.
type OrchestratorParams struct {
	Repo     *Repository
	Tx       txRunner
	Courier  Gateway
	Locker   Locker
	Metrics  GroupRecorder
	Logger   *logger.Logger
	Settings Settings
	Now      func() time.Time
}

// Orchestrator turns allocated sale items into courier shipments.
type Orchestrator struct {
	repo     *Repository
	tx       txRunner
	courier  Gateway
	locker   Locker
	metrics  GroupRecorder
	logg     *logger.Logger
	settings Settings
	now      func() time.Time
}

// NewOrchestrator validates dependencies and fills parcel defaults.
func NewOrchestrator(p OrchestratorParams) (*Orchestrator, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Courier == nil {
		return nil, fmt.Errorf("courier gateway required")
	}
	s := p.Settings
	if s.LengthCm <= 0 {
		s.LengthCm = 10
	}
	if s.BreadthCm <= 0 {
		s.BreadthCm = 10
	}
	if s.HeightCm <= 0 {
		s.HeightCm = 5
	}
	if s.UnitWeightKg <= 0 {
		s.UnitWeightKg = 0.5
	}
	if s.LockTTL <= 0 {
		s.LockTTL = defaultLockTTL
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		repo:     p.Repo,
		tx:       p.Tx,
		courier:  p.Courier,
		locker:   p.Locker,
		metrics:  p.Metrics,
		logg:     logg,
		settings: s,
		now:      now,
	}, nil
}

// Fulfill creates one courier shipment per branch group of the sale. Groups
// that already have a live shipment are skipped, so the call can be repeated
// after partial failures. Courier errors are reported per group and never
// abort the other groups.
func (o *Orchestrator) Fulfill(ctx context.Context, saleID uuid.UUID) (*FulfillmentResult, error) {
	ctx = o.logg.WithSaleID(ctx, saleID.String())

	if o.locker != nil {
		release, err := o.locker.AcquireLock(ctx, lockScopeFulfill, saleID.String(), o.settings.LockTTL)
		if err != nil {
			if errors.Is(err, redis.ErrLockHeld) {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "fulfillment already in progress for this sale")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire fulfillment lock")
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				o.logg.Warn(ctx, "failed to release fulfillment lock")
			}
		}()
	}

	sale, err := o.repo.LoadSale(ctx, saleID)
	if err != nil {
		return nil, notFoundOr(err, "load sale")
	}
	if sale.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "sale can no longer be fulfilled").
			WithDetails(map[string]any{"status": sale.Status})
	}
	if sale.StockState != enums.StockStateCommitted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "sale stock is not committed").
			WithDetails(map[string]any{"stock_state": sale.StockState})
	}

	existing, err := o.repo.ListBySale(ctx, saleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shipments")
	}
	live := make(map[int64]models.Shipment, len(existing))
	for _, s := range existing {
		if s.Status.IsLive() {
			live[s.BranchID] = s
		}
	}

	result := &FulfillmentResult{SaleID: saleID}
	var (
		groupErrs   error
		manifestIDs []int64
		manifested  []uuid.UUID
		closed      bool
	)
	for _, group := range groupItems(sale.Items) {
		if closed {
			result.Groups = append(result.Groups, GroupResult{BranchID: group.branchID, Error: errSaleClosed.Error()})
			o.recordGroup("cancelled")
			continue
		}
		if s, ok := live[group.branchID]; ok {
			gr := groupResultFrom(s)
			gr.Skipped = true
			result.Groups = append(result.Groups, gr)
			o.recordGroup("skipped")
			continue
		}

		shipment, err := o.fulfillGroup(ctx, sale, group)
		gr := GroupResult{BranchID: group.branchID}
		if shipment != nil {
			gr = groupResultFrom(*shipment)
		}
		if err != nil {
			gr.Error = err.Error()
			groupErrs = multierr.Append(groupErrs, fmt.Errorf("branch %d: %w", group.branchID, err))
		}
		result.Groups = append(result.Groups, gr)

		switch {
		case shipment == nil || shipment.Status == enums.ShipmentStatusFailed:
			o.recordGroup("failed")
		case shipment.Status == enums.ShipmentStatusCancelled:
			closed = true
			o.recordGroup("cancelled")
		case shipment.HasAWB():
			o.recordGroup("ready")
			if shipment.CourierShipmentID != nil {
				manifestIDs = append(manifestIDs, *shipment.CourierShipmentID)
				manifested = append(manifested, shipment.ID)
			}
		default:
			o.recordGroup("created")
		}
	}

	if groupErrs != nil {
		for _, e := range multierr.Errors(groupErrs) {
			o.logg.Warn(o.logg.WithField(ctx, "error", e.Error()), "fulfillment group incomplete")
		}
	}

	if len(manifestIDs) > 0 {
		url, err := o.courier.GenerateManifest(ctx, manifestIDs)
		if err != nil {
			result.ManifestError = err.Error()
			o.logg.Warn(ctx, "manifest generation failed")
		} else {
			result.ManifestURL = url
			if err := o.repo.SetManifestURL(ctx, manifested, url); err != nil {
				o.logg.Error(ctx, "failed to store manifest url", err)
			}
		}
	}
	return result, nil
}

// fulfillGroup runs create, AWB, label and pickup for one branch. The returned
// shipment is persisted whenever a row could be written, including FAILED rows.
func (o *Orchestrator) fulfillGroup(ctx context.Context, sale *models.Sale, group branchGroup) (*models.Shipment, error) {
	ctx = o.logg.WithBranchID(ctx, group.branchID)
	shipment := &models.Shipment{
		SaleID:         sale.ID,
		BranchID:       group.branchID,
		ChannelOrderID: ChannelOrderID(sale.ID, group.branchID),
		Status:         enums.ShipmentStatusFailed,
	}

	pickup, err := o.repo.PickupForBranch(ctx, group.branchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pickup location")
	}
	if pickup == nil {
		err := pkgerrors.New(pkgerrors.CodeNoPickupMapped, "branch has no courier pickup location").
			WithDetails(map[string]any{"branch_id": group.branchID})
		return o.persistFailed(ctx, shipment, err)
	}

	created, err := o.courier.CreateShipment(ctx, o.buildRequest(sale, group, pickup.PickupName))
	if err != nil {
		return o.persistFailed(ctx, shipment, err)
	}
	shipment.CourierOrderID = int64Ptr(created.OrderID)
	if created.ShipmentID > 0 {
		shipment.CourierShipmentID = int64Ptr(created.ShipmentID)
	}
	shipment.TrackingURL = created.TrackingURL
	shipment.Status = enums.ShipmentStatusCreated

	var stepErrs error
	if shipment.CourierShipmentID != nil {
		label, err := o.courier.AssignCarrierAndLabel(ctx, *shipment.CourierShipmentID)
		applyLabel(shipment, label)
		stepErrs = multierr.Append(stepErrs, err)
	}
	if shipment.HasAWB() {
		shipment.Status = enums.ShipmentStatusReady
	}
	if stepErrs != nil {
		shipment.LastError = stepErrs.Error()
	}

	open, err := o.persistUnderSaleLock(ctx, shipment)
	if err != nil {
		o.logg.Error(ctx, "failed to persist shipment after courier create", err)
		return shipment, multierr.Append(stepErrs, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist shipment"))
	}
	if !open {
		o.cancelAtCourier(ctx, shipment)
		return shipment, multierr.Append(stepErrs, errSaleClosed)
	}

	// pickup is only booked once the row is committed against an open sale
	if shipment.CourierShipmentID != nil {
		if err := o.requestPickup(ctx, shipment); err != nil {
			stepErrs = multierr.Append(stepErrs, err)
			shipment.LastError = stepErrs.Error()
		}
		if err := o.repo.UpdateProgress(ctx, shipment); err != nil {
			o.logg.Error(ctx, "failed to store pickup progress", err)
		}
	}
	return shipment, stepErrs
}

// persistUnderSaleLock inserts the shipment while holding the sale row lock,
// so a cancellation either sees the row or is seen by it. When the sale has
// already closed the row is stored as CANCELLED and false is returned.
func (o *Orchestrator) persistUnderSaleLock(ctx context.Context, shipment *models.Shipment) (bool, error) {
	open := true
	err := o.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := o.repo.WithTx(tx)
		sale, err := repo.LockSale(ctx, shipment.SaleID)
		if err != nil {
			return err
		}
		if sale.Status.IsTerminal() {
			open = false
			shipment.Status = enums.ShipmentStatusCancelled
		}
		return repo.Create(ctx, shipment)
	})
	if err != nil {
		shipment.Status = enums.ShipmentStatusFailed
		return true, err
	}
	return open, nil
}

// cancelAtCourier withdraws a courier order created for a sale that closed
// mid-fulfillment. Failures are logged and kept on the row.
func (o *Orchestrator) cancelAtCourier(ctx context.Context, shipment *models.Shipment) {
	o.logg.Warn(ctx, "sale closed during fulfillment, cancelling courier order")
	if shipment.CourierOrderID == nil {
		return
	}
	if err := o.courier.Cancel(ctx, []int64{*shipment.CourierOrderID}); err != nil {
		o.logg.Error(ctx, "courier cancel for closed sale failed", err)
		if shipment.LastError != "" {
			shipment.LastError += "; "
		}
		shipment.LastError += "courier cancel: " + err.Error()
		if err := o.repo.UpdateProgress(ctx, shipment); err != nil {
			o.logg.Error(ctx, "failed to store courier cancel error", err)
		}
	}
}

func (o *Orchestrator) requestPickup(ctx context.Context, shipment *models.Shipment) error {
	date := o.now().Add(o.settings.PickupDelay)
	ack, err := o.courier.RequestPickup(ctx, []int64{*shipment.CourierShipmentID}, &date)
	if err != nil {
		return err
	}
	if ack.Scheduled {
		scheduled := parsePickupDate(ack.ScheduledDate, date)
		shipment.PickupScheduledAt = &scheduled
	}
	return nil
}

func (o *Orchestrator) persistFailed(ctx context.Context, shipment *models.Shipment, cause error) (*models.Shipment, error) {
	shipment.Status = enums.ShipmentStatusFailed
	shipment.LastError = cause.Error()
	if err := o.repo.Create(ctx, shipment); err != nil {
		o.logg.Error(ctx, "failed to persist failed shipment", err)
		return nil, multierr.Append(cause, err)
	}
	return shipment, cause
}

func (o *Orchestrator) buildRequest(sale *models.Sale, group branchGroup, pickupName string) courier.CreateShipmentRequest {
	addr := sale.ShippingAddress
	name := strings.TrimSpace(addr.Name)
	if name == "" {
		name = sale.CustomerName
	}
	phone := strings.TrimSpace(addr.Phone)
	if phone == "" {
		phone = sale.CustomerPhone
	}

	subTotal := decimal.Zero
	weight := 0.0
	items := make([]courier.Item, 0, len(group.items))
	for _, it := range group.items {
		qty := decimal.NewFromInt(int64(it.Qty))
		subTotal = subTotal.Add(it.Price.Mul(qty))
		unitWeight := it.WeightKg.InexactFloat64()
		if unitWeight <= 0 {
			unitWeight = o.settings.UnitWeightKg
		}
		weight += unitWeight * float64(it.Qty)
		items = append(items, courier.Item{
			Name:         itemName(it),
			SKU:          itemSKU(it),
			Units:        it.Qty,
			SellingPrice: it.Price.InexactFloat64(),
		})
	}

	method := courier.PaymentPrepaid
	if sale.PaymentStatus == enums.PaymentStatusCOD && sale.Totals.Payable.IsPositive() {
		method = courier.PaymentCOD
	}

	return courier.CreateShipmentRequest{
		ChannelOrderID: ChannelOrderID(sale.ID, group.branchID),
		PickupLocation: pickupName,
		Customer: courier.Customer{
			Name:    name,
			Email:   sale.CustomerEmail,
			Phone:   phone,
			Line1:   addr.Line1,
			Line2:   addr.Line2,
			City:    addr.City,
			State:   addr.State,
			Pincode: addr.Pincode,
			Country: addr.CountryOrDefault(),
		},
		Items:         items,
		PaymentMethod: method,
		SubTotal:      subTotal.InexactFloat64(),
		Package: courier.Package{
			LengthCm:  o.settings.LengthCm,
			BreadthCm: o.settings.BreadthCm,
			HeightCm:  o.settings.HeightCm,
			WeightKg:  weight,
		},
	}
}

func (o *Orchestrator) recordGroup(outcome string) {
	if o.metrics != nil {
		o.metrics.IncGroup(outcome)
	}
}

// ChannelOrderID is the stable courier-side order reference of a branch group.
func ChannelOrderID(saleID uuid.UUID, branchID int64) string {
	return fmt.Sprintf("%s-%d", saleID, branchID)
}

type branchGroup struct {
	branchID int64
	items    []models.SaleItem
}

func groupItems(items []models.SaleItem) []branchGroup {
	index := map[int64]int{}
	var groups []branchGroup
	for _, it := range items {
		i, ok := index[it.BranchID]
		if !ok {
			i = len(groups)
			index[it.BranchID] = i
			groups = append(groups, branchGroup{branchID: it.BranchID})
		}
		groups[i].items = append(groups[i].items, it)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].branchID < groups[j].branchID })
	return groups
}

func itemName(it models.SaleItem) string {
	parts := []string{strings.TrimSpace(it.Name)}
	if it.Size != "" {
		parts = append(parts, it.Size)
	}
	if it.Colour != "" {
		parts = append(parts, it.Colour)
	}
	name := strings.Join(parts, " / ")
	if strings.TrimSpace(name) == "" {
		return "Variant " + strconv.FormatInt(it.VariantID, 10)
	}
	return name
}

func itemSKU(it models.SaleItem) string {
	if ean := strings.TrimSpace(it.EANCode); ean != "" {
		return ean
	}
	return strconv.FormatInt(it.VariantID, 10)
}

func applyLabel(shipment *models.Shipment, label courier.LabelResult) {
	if label.AWB != "" {
		shipment.AWB = label.AWB
	}
	if label.CourierName != "" {
		shipment.CourierName = label.CourierName
	}
	if label.LabelURL != "" {
		shipment.LabelURL = label.LabelURL
	}
}

func parsePickupDate(raw string, fallback time.Time) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return t.UTC()
		}
	}
	return fallback.UTC()
}

func int64Ptr(v int64) *int64 {
	return &v
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
