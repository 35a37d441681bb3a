package allocation

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/angelmondragon/stockroute-backend/internal/stock"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/logger"
	"github.com/angelmondragon/stockroute-backend/pkg/maps"
	"github.com/angelmondragon/stockroute-backend/pkg/types"
)

// Item is one cart line to allocate.
type Item struct {
	VariantID int64
	Qty       int
}

// Group is the set of items one branch ships.
type Group struct {
	BranchID int64
	Items    []Item
}

// Plan is the allocation outcome. Groups are ordered by branch id.
type Plan struct {
	Groups []Group
	Split  bool
}

// SingleBranch returns the branch id when the whole cart ships from one branch.
func (p Plan) SingleBranch() (int64, bool) {
	if len(p.Groups) != 1 {
		return 0, false
	}
	return p.Groups[0].BranchID, true
}

// StockLines flattens the plan into ledger lines.
func (p Plan) StockLines() []stock.Line {
	var lines []stock.Line
	for _, g := range p.Groups {
		for _, it := range g.Items {
			lines = append(lines, stock.Line{BranchID: g.BranchID, VariantID: it.VariantID, Qty: it.Qty})
		}
	}
	return lines
}

// BranchFor returns the branch assigned to variantID.
func (p Plan) BranchFor(variantID int64) (int64, bool) {
	for _, g := range p.Groups {
		for _, it := range g.Items {
			if it.VariantID == variantID {
				return g.BranchID, true
			}
		}
	}
	return 0, false
}

// Location is where an order is delivered. Point is nil when no coordinates
// could be resolved.
type Location struct {
	Pincode string
	Point   *types.LatLng
}

// Geocoder resolves a pincode to coordinates. *maps.Client satisfies it.
type Geocoder interface {
	GeocodePincode(ctx context.Context, pincode string) (types.LatLng, error)
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithGeocoder enables the pincode geocoding fallback.
func WithGeocoder(g Geocoder) Option {
	return func(a *Allocator) { a.geocoder = g }
}

// WithSplitOrders controls whether a cart may be split across branches.
func WithSplitOrders(split bool) Option {
	return func(a *Allocator) { a.splitOrders = split }
}

// WithLogger attaches a logger.
func WithLogger(logg *logger.Logger) Option {
	return func(a *Allocator) { a.logg = logg }
}

// Allocator decides which branches fulfil a cart.
type Allocator struct {
	stock       StockReader
	geocoder    Geocoder
	splitOrders bool
	logg        *logger.Logger
}

// NewAllocator builds an allocator. Splitting is enabled unless disabled by
// option.
func NewAllocator(reader StockReader, opts ...Option) (*Allocator, error) {
	if reader == nil {
		return nil, errors.New("stock reader required")
	}
	a := &Allocator{stock: reader, splitOrders: true}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.logg == nil {
		a.logg = logger.Nop()
	}
	return a, nil
}

// ResolveLocation turns a shipping address into a delivery location: the
// address coordinates, else the centroid of branches in its pincode, else the
// geocoded pincode.
func (a *Allocator) ResolveLocation(ctx context.Context, addr types.Address) Location {
	loc := Location{Pincode: strings.TrimSpace(addr.Pincode)}
	if point, ok := addr.Coordinates(); ok {
		loc.Point = &point
		return loc
	}
	if loc.Pincode == "" {
		return loc
	}

	point, ok, err := a.stock.PincodeCentroid(ctx, loc.Pincode)
	if err != nil {
		a.logg.Warn(a.logg.WithField(ctx, "pincode", loc.Pincode), "branch centroid lookup failed")
	} else if ok {
		loc.Point = &point
		return loc
	}

	if a.geocoder == nil {
		return loc
	}
	point, err = a.geocoder.GeocodePincode(ctx, loc.Pincode)
	if err != nil {
		if !errors.Is(err, maps.ErrNoResults) {
			a.logg.Warn(a.logg.WithField(ctx, "pincode", loc.Pincode), "pincode geocoding failed")
		}
		return loc
	}
	loc.Point = &point
	return loc
}

// Allocate assigns every item to a branch. A single branch covering the whole
// cart wins; otherwise each item goes to the best branch holding it. No
// stock is mutated.
func (a *Allocator) Allocate(ctx context.Context, items []Item, loc Location) (*Plan, error) {
	items, err := normalize(items)
	if err != nil {
		return nil, err
	}

	variantIDs := make([]int64, 0, len(items))
	for _, it := range items {
		variantIDs = append(variantIDs, it.VariantID)
	}
	candidates, err := a.stock.Candidates(ctx, variantIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load stock candidates")
	}

	byVariant := make(map[int64][]Candidate, len(items))
	for _, c := range candidates {
		byVariant[c.VariantID] = append(byVariant[c.VariantID], c)
	}

	if branchID, ok := wholeCartBranch(items, byVariant, loc.Pincode); ok {
		return &Plan{Groups: []Group{{BranchID: branchID, Items: items}}}, nil
	}
	if !a.splitOrders {
		short := items[0].VariantID
		for _, it := range items {
			if len(eligible(byVariant[it.VariantID], it.Qty)) == 0 {
				short = it.VariantID
				break
			}
		}
		return nil, outOfStock(short, "no single branch can fulfil the cart")
	}

	assigned := make(map[int64][]Item)
	for _, it := range items {
		pool := eligible(byVariant[it.VariantID], it.Qty)
		if len(pool) == 0 {
			return nil, outOfStock(it.VariantID, "no branch has enough stock for item")
		}
		branchID := pick(pool, loc)
		assigned[branchID] = append(assigned[branchID], it)
	}

	plan := &Plan{Split: len(assigned) > 1}
	for branchID, groupItems := range assigned {
		plan.Groups = append(plan.Groups, Group{BranchID: branchID, Items: groupItems})
	}
	sort.Slice(plan.Groups, func(i, j int) bool { return plan.Groups[i].BranchID < plan.Groups[j].BranchID })
	return plan, nil
}

// wholeCartBranch finds the lowest-id branch covering every item, preferring
// branches in the delivery pincode.
func wholeCartBranch(items []Item, byVariant map[int64][]Candidate, pincode string) (int64, bool) {
	type branchInfo struct {
		covered int
		pincode string
	}
	branches := map[int64]*branchInfo{}
	for _, it := range items {
		for _, c := range eligible(byVariant[it.VariantID], it.Qty) {
			info := branches[c.BranchID]
			if info == nil {
				info = &branchInfo{pincode: c.Pincode}
				branches[c.BranchID] = info
			}
			info.covered++
		}
	}

	var best, bestLocal int64
	for id, info := range branches {
		if info.covered != len(items) {
			continue
		}
		if best == 0 || id < best {
			best = id
		}
		if pincode != "" && info.pincode == pincode && (bestLocal == 0 || id < bestLocal) {
			bestLocal = id
		}
	}
	if bestLocal != 0 {
		return bestLocal, true
	}
	return best, best != 0
}

// pick chooses among candidates: same pincode first, then nearest to the
// delivery point, then lowest branch id.
func pick(pool []Candidate, loc Location) int64 {
	if loc.Pincode != "" {
		var local []Candidate
		for _, c := range pool {
			if c.Pincode == loc.Pincode {
				local = append(local, c)
			}
		}
		if len(local) > 0 {
			pool = local
		}
	}

	best := pool[0]
	if loc.Point == nil {
		return best.BranchID
	}
	bestDist := -1.0
	for _, c := range pool {
		point, ok := c.Coordinates()
		if !ok {
			continue
		}
		d := Haversine(*loc.Point, point)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best.BranchID
}

func eligible(candidates []Candidate, qty int) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if c.Available >= qty {
			out = append(out, c)
		}
	}
	return out
}

// normalize merges duplicate variants, keeping first-seen order.
func normalize(items []Item) ([]Item, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCart, "cart is empty")
	}
	index := make(map[int64]int, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.VariantID <= 0 || it.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidCart, "cart items need a variant and a positive quantity").
				WithDetails(map[string]any{"variant_id": it.VariantID, "qty": it.Qty})
		}
		if i, ok := index[it.VariantID]; ok {
			out[i].Qty += it.Qty
			continue
		}
		index[it.VariantID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

func outOfStock(variantID int64, msg string) error {
	return pkgerrors.New(pkgerrors.CodeOutOfStock, msg).WithDetails(map[string]any{"variant_id": variantID})
}
