package stock

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Line is a quantity of one variant at one branch.
type Line struct {
	BranchID  int64
	VariantID int64
	Qty       int
}

type mutation func(row *models.BranchVariantStock, qty int) error

// Ledger mutates branch_variant_stock rows. Every method runs on the caller's
// transaction and locks the affected rows before reading them, so any error
// must abort that transaction.
type Ledger struct{}

// NewLedger constructs the stock ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// CheckAvailable reports whether on_hand - reserved covers qty. Missing or
// inactive rows are never available.
func (l *Ledger) CheckAvailable(ctx context.Context, tx *gorm.DB, branchID, variantID int64, qty int) (bool, error) {
	if err := validateQty(qty); err != nil {
		return false, err
	}
	row, err := lockRow(ctx, tx, branchID, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return row.IsActive && row.Available() >= qty, nil
}

// Decrement removes sold units from on_hand. The units must be available, so
// reserved never exceeds on_hand afterwards.
func (l *Ledger) Decrement(ctx context.Context, tx *gorm.DB, branchID, variantID int64, qty int) error {
	return l.apply(ctx, tx, Line{BranchID: branchID, VariantID: variantID, Qty: qty}, decrement)
}

// Reserve holds units against an unpaid sale.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, branchID, variantID int64, qty int) error {
	return l.apply(ctx, tx, Line{BranchID: branchID, VariantID: variantID, Qty: qty}, reserve)
}

// Release returns held units. reserved floors at zero.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, branchID, variantID int64, qty int) error {
	return l.apply(ctx, tx, Line{BranchID: branchID, VariantID: variantID, Qty: qty}, release)
}

// Commit turns held units into a sale: both on_hand and reserved drop by qty.
func (l *Ledger) Commit(ctx context.Context, tx *gorm.DB, branchID, variantID int64, qty int) error {
	return l.apply(ctx, tx, Line{BranchID: branchID, VariantID: variantID, Qty: qty}, commit)
}

// DecrementAll decrements every line, all or nothing.
func (l *Ledger) DecrementAll(ctx context.Context, tx *gorm.DB, lines []Line) error {
	return l.applyAll(ctx, tx, lines, decrement)
}

// ReserveAll reserves every line, all or nothing.
func (l *Ledger) ReserveAll(ctx context.Context, tx *gorm.DB, lines []Line) error {
	return l.applyAll(ctx, tx, lines, reserve)
}

// ReleaseAll releases every line.
func (l *Ledger) ReleaseAll(ctx context.Context, tx *gorm.DB, lines []Line) error {
	return l.applyAll(ctx, tx, lines, release)
}

// CommitAll commits every held line, all or nothing.
func (l *Ledger) CommitAll(ctx context.Context, tx *gorm.DB, lines []Line) error {
	return l.applyAll(ctx, tx, lines, commit)
}

// applyAll merges duplicate keys and walks rows in (branch_id, variant_id)
// order so concurrent batches always lock in the same sequence.
func (l *Ledger) applyAll(ctx context.Context, tx *gorm.DB, lines []Line, op mutation) error {
	merged, err := Merge(lines)
	if err != nil {
		return err
	}
	for _, line := range merged {
		if err := l.apply(ctx, tx, line, op); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) apply(ctx context.Context, tx *gorm.DB, line Line, op mutation) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "stock ledger requires a transaction")
	}
	if err := validateQty(line.Qty); err != nil {
		return err
	}

	row, err := lockRow(ctx, tx, line.BranchID, line.VariantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return insufficient(line, 0, "no stock row for branch and variant")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock stock row")
	}

	if err := op(row, line.Qty); err != nil {
		return err
	}
	if row.OnHand < 0 || row.Reserved < 0 || row.Reserved > row.OnHand {
		return insufficient(line, row.Available(), "stock invariant violated")
	}

	res := tx.WithContext(ctx).
		Model(&models.BranchVariantStock{}).
		Where("branch_id = ? AND variant_id = ?", line.BranchID, line.VariantID).
		Updates(map[string]any{
			"on_hand":    row.OnHand,
			"reserved":   row.Reserved,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "update stock row")
	}
	return nil
}

func decrement(row *models.BranchVariantStock, qty int) error {
	if !row.IsActive || row.Available() < qty {
		return insufficientRow(row, qty, "not enough stock to decrement")
	}
	row.OnHand -= qty
	return nil
}

func reserve(row *models.BranchVariantStock, qty int) error {
	if !row.IsActive || row.Available() < qty {
		return insufficientRow(row, qty, "not enough stock to reserve")
	}
	row.Reserved += qty
	return nil
}

func release(row *models.BranchVariantStock, qty int) error {
	row.Reserved -= qty
	if row.Reserved < 0 {
		row.Reserved = 0
	}
	return nil
}

func commit(row *models.BranchVariantStock, qty int) error {
	if row.Reserved < qty || row.OnHand < qty {
		return insufficientRow(row, qty, "held stock no longer covers the sale")
	}
	row.OnHand -= qty
	row.Reserved -= qty
	return nil
}

func lockRow(ctx context.Context, tx *gorm.DB, branchID, variantID int64) (*models.BranchVariantStock, error) {
	var row models.BranchVariantStock
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("branch_id = ? AND variant_id = ?", branchID, variantID).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Merge sums quantities per (branch_id, variant_id) and returns the lines in
// lock order.
func Merge(lines []Line) ([]Line, error) {
	type key struct{ branch, variant int64 }
	totals := make(map[key]int, len(lines))
	for _, line := range lines {
		if err := validateQty(line.Qty); err != nil {
			return nil, err
		}
		totals[key{line.BranchID, line.VariantID}] += line.Qty
	}
	merged := make([]Line, 0, len(totals))
	for k, qty := range totals {
		merged = append(merged, Line{BranchID: k.branch, VariantID: k.variant, Qty: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].BranchID != merged[j].BranchID {
			return merged[i].BranchID < merged[j].BranchID
		}
		return merged[i].VariantID < merged[j].VariantID
	})
	return merged, nil
}

func validateQty(qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

func insufficientRow(row *models.BranchVariantStock, qty int, msg string) error {
	return insufficient(Line{BranchID: row.BranchID, VariantID: row.VariantID, Qty: qty}, row.Available(), msg)
}

func insufficient(line Line, available int, msg string) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, msg).WithDetails(map[string]any{
		"branch_id":  line.BranchID,
		"variant_id": line.VariantID,
		"requested":  line.Qty,
		"available":  available,
	})
}
