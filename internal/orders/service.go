package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroute-backend/internal/idempotency"
	"github.com/angelmondragon/stockroute-backend/internal/shipments"
	"github.com/angelmondragon/stockroute-backend/internal/stock"
	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	"github.com/angelmondragon/stockroute-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/logger"
)

// ServiceParams groups the lifecycle dependencies. Courier, Fulfiller and
// Logger are optional.
type ServiceParams struct {
	Repo        Repository
	Tx          txRunner
	Ledger      StockLedger
	Claims      Claimer
	Courier     CourierCanceller
	Fulfiller   Fulfiller
	AutoFulfill bool
	Logger      *logger.Logger
}

type service struct {
	repo        Repository
	tx          txRunner
	ledger      StockLedger
	claims      Claimer
	courier     CourierCanceller
	fulfiller   Fulfiller
	autoFulfill bool
	logg        *logger.Logger
}

// NewService builds the sale lifecycle service.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
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
		repo:        p.Repo,
		tx:          p.Tx,
		ledger:      p.Ledger,
		claims:      p.Claims,
		courier:     p.Courier,
		fulfiller:   p.Fulfiller,
		autoFulfill: p.AutoFulfill,
		logg:        logg,
	}, nil
}

func (s *service) Get(ctx context.Context, saleID uuid.UUID) (*SaleView, error) {
	sale, err := s.repo.FindSale(ctx, saleID)
	if err != nil {
		return nil, saleLookupError(err)
	}
	rows, err := s.repo.ListShipments(ctx, saleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shipments")
	}
	return NewSaleView(sale, rows), nil
}

// Confirm finalises an in-person sale. The client action id is claimed in the
// same transaction as the stock commit, so a repeated request returns the
// current sale without touching stock again.
func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error) {
	if input.SaleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale_id is required")
	}
	if strings.TrimSpace(input.ClientActionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client_action_id is required")
	}
	payment := enums.PaymentStatusPaid
	if input.PaymentStatus != nil {
		if !input.PaymentStatus.IsValid() || *input.PaymentStatus == enums.PaymentStatusFailed {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment_status for confirmation")
		}
		payment = *input.PaymentStatus
	}
	ctx = s.logg.WithSaleID(ctx, input.SaleID.String())
	if input.OperatorID != "" {
		ctx = s.logg.WithOperatorID(ctx, input.OperatorID)
	}

	result := &ConfirmResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		saleID := input.SaleID
		claim, err := s.claims.Claim(ctx, tx, idempotency.ScopeConfirm, input.ClientActionID, &saleID)
		if err != nil {
			return err
		}
		if !claim.Fresh {
			if claim.SaleID != nil && *claim.SaleID != input.SaleID {
				return pkgerrors.New(pkgerrors.CodeIdempotency, "client_action_id was used for another sale")
			}
			result.Replayed = true
			return nil
		}

		repo := s.repo.WithTx(tx)
		sale, err := repo.LockSale(ctx, input.SaleID)
		if err != nil {
			return saleLookupError(err)
		}
		switch sale.Status {
		case enums.SaleStatusConfirmed:
			return nil
		case enums.SaleStatusPlaced:
		default:
			return illegal(sale.Status, enums.SaleStatusConfirmed)
		}

		if err := s.commitStock(ctx, tx, repo, sale); err != nil {
			return err
		}
		result.Changed = true
		return repo.UpdateSale(ctx, sale.ID, map[string]any{
			"status":         enums.SaleStatusConfirmed,
			"payment_status": payment,
			"stock_state":    enums.StockStateCommitted,
		})
	})
	if err != nil {
		return nil, err
	}

	view, err := s.Get(ctx, input.SaleID)
	if err != nil {
		return nil, err
	}
	result.Sale = view
	if result.Changed {
		s.logg.Info(ctx, "sale confirmed")
	}
	return result, nil
}

// SetPaymentStatus applies a payment status change. Moving to PAID commits the
// sale's stock under row locks; any short line aborts the whole update.
// FAILED returns held stock.
func (s *service) SetPaymentStatus(ctx context.Context, input PaymentStatusInput) (*PaymentStatusResult, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment_status")
	}
	ctx = s.logg.WithSaleID(ctx, input.SaleID.String())

	result := &PaymentStatusResult{}
	var fulfill bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sale, err := repo.LockSale(ctx, input.SaleID)
		if err != nil {
			return saleLookupError(err)
		}
		if sale.PaymentStatus == input.Status {
			return nil
		}
		if sale.Status == enums.SaleStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeIllegalTransition, "payment status cannot change on a cancelled sale")
		}
		if sale.PaymentStatus == enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeIllegalTransition, "a paid sale cannot change payment status").
				WithDetails(map[string]any{"from": sale.PaymentStatus, "to": input.Status})
		}

		updates := map[string]any{"payment_status": input.Status}
		switch input.Status {
		case enums.PaymentStatusPaid:
			if err := s.commitStock(ctx, tx, repo, sale); err != nil {
				return err
			}
			updates["stock_state"] = enums.StockStateCommitted
			fulfill = !sale.Status.IsTerminal()
		case enums.PaymentStatusFailed:
			if sale.StockState == enums.StockStateHeld {
				if err := s.releaseStock(ctx, tx, repo, sale); err != nil {
					return err
				}
				updates["stock_state"] = enums.StockStateReleased
			}
		}
		result.Changed = true
		return repo.UpdateSale(ctx, sale.ID, updates)
	})
	if err != nil {
		return nil, err
	}

	if result.Changed && fulfill && s.autoFulfill && s.fulfiller != nil {
		res, ferr := s.fulfiller.Fulfill(ctx, input.SaleID)
		if ferr != nil {
			s.logg.Error(ctx, "auto fulfillment after payment failed", ferr)
		}
		result.Fulfillment = res
	}

	view, err := s.Get(ctx, input.SaleID)
	if err != nil {
		return nil, err
	}
	result.Sale = view
	return result, nil
}

// Cancel cancels the sale and its shipments locally, then asks the courier to
// cancel. A courier failure is reported but never undoes the local change.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*CancelResult, error) {
	if input.SaleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale_id is required")
	}
	source := input.Source
	if source == "" {
		source = enums.CancellationSourceCustomer
	}
	if !source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cancellation_source")
	}
	ctx = s.logg.WithSaleID(ctx, input.SaleID.String())

	result := &CancelResult{SaleID: input.SaleID, Status: enums.SaleStatusCancelled, CourierOrderIDs: []int64{}}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sale, err := repo.LockSale(ctx, input.SaleID)
		if err != nil {
			return saleLookupError(err)
		}
		if sale.Status == enums.SaleStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeIllegalTransition, "sale is already cancelled")
		}
		if !sale.Status.CanCancel() {
			return illegal(sale.Status, enums.SaleStatusCancelled)
		}

		updates := map[string]any{"status": enums.SaleStatusCancelled}
		if sale.StockState == enums.StockStateHeld {
			if err := s.releaseStock(ctx, tx, repo, sale); err != nil {
				return err
			}
			updates["stock_state"] = enums.StockStateReleased
			result.StockReleased = true
		}

		orderIDs, err := repo.CancelShipments(ctx, sale.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel shipments")
		}
		if len(orderIDs) > 0 {
			result.CourierOrderIDs = orderIDs
		}
		if err := repo.UpdateSale(ctx, sale.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update sale")
		}

		paymentType := strings.TrimSpace(input.PaymentType)
		if paymentType == "" {
			paymentType = string(sale.PaymentStatus)
		}
		return repo.InsertCancellation(ctx, &models.OrderCancellation{
			SaleID:             sale.ID,
			PaymentType:        paymentType,
			Reason:             strings.TrimSpace(input.Reason),
			CancellationSource: source,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "sale cancelled")

	if len(result.CourierOrderIDs) == 0 || s.courier == nil {
		return result, nil
	}
	if err := s.courier.Cancel(ctx, result.CourierOrderIDs); err != nil {
		result.CourierError = err.Error()
		s.logg.Error(ctx, "courier cancellation failed", err)
		return result, nil
	}
	result.CourierCancelled = true
	return result, nil
}

// commitStock moves the sale's stock to COMMITTED from whatever state it is in.
func (s *service) commitStock(ctx context.Context, tx *gorm.DB, repo Repository, sale *models.Sale) error {
	if sale.StockState == enums.StockStateCommitted {
		return nil
	}
	lines, err := s.stockLines(ctx, repo, sale.ID)
	if err != nil {
		return err
	}
	if sale.StockState == enums.StockStateHeld {
		return s.ledger.CommitAll(ctx, tx, lines)
	}
	return s.ledger.DecrementAll(ctx, tx, lines)
}

func (s *service) releaseStock(ctx context.Context, tx *gorm.DB, repo Repository, sale *models.Sale) error {
	lines, err := s.stockLines(ctx, repo, sale.ID)
	if err != nil {
		return err
	}
	return s.ledger.ReleaseAll(ctx, tx, lines)
}

func (s *service) stockLines(ctx context.Context, repo Repository, saleID uuid.UUID) ([]stock.Line, error) {
	items, err := repo.ListItems(ctx, saleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale items")
	}
	lines := make([]stock.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, stock.Line{BranchID: it.BranchID, VariantID: it.VariantID, Qty: it.Qty})
	}
	return lines, nil
}

func saleLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale")
}

func illegal(from, to enums.SaleStatus) error {
	return pkgerrors.New(pkgerrors.CodeIllegalTransition, fmt.Sprintf("sale cannot move from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to})
}

var _ Fulfiller = (*shipments.Orchestrator)(nil)
