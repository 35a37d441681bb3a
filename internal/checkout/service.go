package checkout

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroute-backend/internal/allocation"
	"github.com/angelmondragon/stockroute-backend/internal/checkout/helpers"
	"github.com/angelmondragon/stockroute-backend/internal/idempotency"
	"github.com/angelmondragon/stockroute-backend/internal/orders"
	"github.com/angelmondragon/stockroute-backend/internal/stock"
	pkgcheckout "github.com/angelmondragon/stockroute-backend/pkg/checkout"
	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	"github.com/angelmondragon/stockroute-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/logger"
	"github.com/angelmondragon/stockroute-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Planner resolves where an order goes and which branches ship it.
type Planner interface {
	ResolveLocation(ctx context.Context, addr types.Address) allocation.Location
	Allocate(ctx context.Context, items []allocation.Item, loc allocation.Location) (*allocation.Plan, error)
}

// StockLedger is the subset of the ledger placement drives.
type StockLedger interface {
	ReserveAll(ctx context.Context, tx *gorm.DB, lines []stock.Line) error
	DecrementAll(ctx context.Context, tx *gorm.DB, lines []stock.Line) error
}

// Claimer records and looks up client action ids.
type Claimer interface {
	Claim(ctx context.Context, tx *gorm.DB, scope, clientActionID string, saleID *uuid.UUID) (idempotency.Claim, error)
	Lookup(ctx context.Context, db *gorm.DB, scope, clientActionID string) (*models.IdempotencyKey, error)
}

// Service places orders.
type Service interface {
	Place(ctx context.Context, input PlaceInput) (*PlaceResult, error)
}

// ServiceParams groups placement dependencies. Fulfiller and Logger are optional.
type ServiceParams struct {
	Catalog     Repository
	Sales       orders.Repository
	Tx          txRunner
	Planner     Planner
	Ledger      StockLedger
	Claims      Claimer
	Fulfiller   orders.Fulfiller
	Fees        pkgcheckout.Fees
	AutoFulfill bool
	Logger      *logger.Logger
}

type service struct {
	catalog     Repository
	sales       orders.Repository
	tx          txRunner
	planner     Planner
	ledger      StockLedger
	claims      Claimer
	fulfiller   orders.Fulfiller
	fees        pkgcheckout.Fees
	autoFulfill bool
	logg        *logger.Logger
}

// NewService builds the placement service.
func NewService(p ServiceParams) (Service, error) {
	if p.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if p.Sales == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Planner == nil {
		return nil, fmt.Errorf("allocation planner required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if p.Claims == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		catalog:     p.Catalog,
		sales:       p.Sales,
		tx:          p.Tx,
		planner:     p.Planner,
		ledger:      p.Ledger,
		claims:      p.Claims,
		fulfiller:   p.Fulfiller,
		fees:        p.Fees,
		autoFulfill: p.AutoFulfill,
		logg:        logg,
	}, nil
}

// Place prices the cart from the catalogue, allocates it to branches and
// writes the sale with its stock movement in one transaction. Courier work
// only starts after the commit.
func (s *service) Place(ctx context.Context, input PlaceInput) (*PlaceResult, error) {
	source := input.Source
	if source == "" {
		source = enums.SaleSourceWeb
	}
	payment := input.PaymentStatus
	if payment == "" {
		payment = enums.PaymentStatusCOD
	}
	if err := helpers.ValidatePlacement(source, payment, input.ShippingAddress); err != nil {
		return nil, err
	}

	lines := make([]pkgcheckout.LineInput, 0, len(input.Items))
	for _, it := range input.Items {
		lines = append(lines, pkgcheckout.LineInput{VariantID: it.VariantID, Qty: it.Qty})
	}
	if err := pkgcheckout.ValidateLines(lines); err != nil {
		return nil, err
	}
	lines = pkgcheckout.MergeLines(lines)

	clientActionID := strings.TrimSpace(input.ClientActionID)
	if clientActionID != "" {
		if replay, err := s.replay(ctx, clientActionID); replay != nil || err != nil {
			return replay, err
		}
	}

	variants, err := s.loadVariants(ctx, lines)
	if err != nil {
		return nil, err
	}
	priced := make([]pkgcheckout.PricedLine, 0, len(lines))
	items := make([]allocation.Item, 0, len(lines))
	for _, line := range lines {
		v := variants[line.VariantID]
		priced = append(priced, pkgcheckout.PricedLine{Qty: line.Qty, Price: v.Price, MRP: v.MRP})
		items = append(items, allocation.Item{VariantID: line.VariantID, Qty: line.Qty})
	}
	totals, err := pkgcheckout.ComputeTotals(priced, input.CouponPct, s.fees, input.GiftWrap)
	if err != nil {
		return nil, err
	}
	if err := pkgcheckout.CheckDeclaredPayable(input.Payable, totals); err != nil {
		return nil, err
	}

	loc := s.planner.ResolveLocation(ctx, input.ShippingAddress)
	plan, err := s.planner.Allocate(ctx, items, loc)
	if err != nil {
		return nil, err
	}

	state := helpers.StockStateFor(payment)
	sale := &models.Sale{
		ID:              uuid.New(),
		Source:          source,
		Status:          enums.SaleStatusPlaced,
		PaymentStatus:   payment,
		StockState:      state,
		UserID:          input.UserID,
		CustomerName:    strings.TrimSpace(input.CustomerName),
		CustomerEmail:   strings.TrimSpace(input.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(input.CustomerPhone),
		ShippingAddress: input.ShippingAddress,
		Totals:          totals,
	}
	if branchID, ok := plan.SingleBranch(); ok {
		sale.BranchID = &branchID
	}
	for _, line := range lines {
		branchID, _ := plan.BranchFor(line.VariantID)
		sale.Items = append(sale.Items, helpers.SnapshotItem(variants[line.VariantID], branchID, line.Qty))
	}
	ctx = s.logg.WithSaleID(ctx, sale.ID.String())

	var replayedID *uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if clientActionID != "" {
			claim, err := s.claims.Claim(ctx, tx, idempotency.ScopePlace, clientActionID, &sale.ID)
			if err != nil {
				return err
			}
			if !claim.Fresh {
				replayedID = claim.SaleID
				return nil
			}
		}

		var stockErr error
		if state == enums.StockStateHeld {
			stockErr = s.ledger.ReserveAll(ctx, tx, plan.StockLines())
		} else {
			stockErr = s.ledger.DecrementAll(ctx, tx, plan.StockLines())
		}
		if stockErr != nil {
			return stockErr
		}
		if err := s.sales.WithTx(tx).CreateSale(ctx, sale); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create sale")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if replayedID != nil {
		return s.replayedResult(ctx, *replayedID)
	}
	s.logg.Info(ctx, "sale placed")

	result := &PlaceResult{
		SaleID: sale.ID,
		Totals: totals,
		Plan:   planGroups(plan),
		Split:  plan.Split,
	}
	if state == enums.StockStateCommitted && s.autoFulfill && s.fulfiller != nil {
		res, ferr := s.fulfiller.Fulfill(ctx, sale.ID)
		if ferr != nil {
			s.logg.Error(ctx, "auto fulfillment after placement failed", ferr)
		}
		result.Fulfillment = res
	}

	view, err := s.view(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	result.Sale = view
	return result, nil
}

// replay returns the earlier result for a client action id that already
// produced a sale, or nil when the id is new.
func (s *service) replay(ctx context.Context, clientActionID string) (*PlaceResult, error) {
	var record *models.IdempotencyKey
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		record, err = s.claims.Lookup(ctx, tx, idempotency.ScopePlace, clientActionID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup client action id")
	}
	if record == nil || record.SaleID == nil {
		return nil, nil
	}
	return s.replayedResult(ctx, *record.SaleID)
}

func (s *service) replayedResult(ctx context.Context, saleID uuid.UUID) (*PlaceResult, error) {
	view, err := s.view(ctx, saleID)
	if err != nil {
		return nil, err
	}
	sale, err := s.sales.FindSale(ctx, saleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load replayed sale")
	}
	groups := helpers.GroupItemsByBranch(sale.Items)
	plan := make([]PlanGroup, 0, len(groups))
	for _, g := range groups {
		pg := PlanGroup{BranchID: g.BranchID}
		for _, it := range g.Items {
			pg.Items = append(pg.Items, PlanItem{VariantID: it.VariantID, Qty: it.Qty})
		}
		plan = append(plan, pg)
	}
	return &PlaceResult{
		SaleID:   saleID,
		Totals:   sale.Totals,
		Plan:     plan,
		Split:    len(plan) > 1,
		Replayed: true,
		Sale:     view,
	}, nil
}

func (s *service) view(ctx context.Context, saleID uuid.UUID) (*orders.SaleView, error) {
	sale, err := s.sales.FindSale(ctx, saleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale")
	}
	rows, err := s.sales.ListShipments(ctx, saleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shipments")
	}
	return orders.NewSaleView(sale, rows), nil
}

func (s *service) loadVariants(ctx context.Context, lines []pkgcheckout.LineInput) (map[int64]models.Variant, error) {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.VariantID)
	}
	variants, err := s.catalog.ActiveVariants(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variants")
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := variants[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCart, "cart references unknown or inactive variants").
			WithDetails(map[string]any{"variant_ids": missing})
	}
	return variants, nil
}

func planGroups(plan *allocation.Plan) []PlanGroup {
	groups := make([]PlanGroup, 0, len(plan.Groups))
	for _, g := range plan.Groups {
		pg := PlanGroup{BranchID: g.BranchID}
		for _, it := range g.Items {
			pg.Items = append(pg.Items, PlanItem{VariantID: it.VariantID, Qty: it.Qty})
		}
		groups = append(groups, pg)
	}
	return groups
}
