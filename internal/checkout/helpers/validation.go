package helpers

import (
	"strings"

	"github.com/angelmondragon/stockroute-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/types"
)

// ValidatePlacement checks the order envelope. Web orders need a full
// shipping address; counter sales only validate an address when one is given.
func ValidatePlacement(source enums.SaleSource, payment enums.PaymentStatus, addr types.Address) error {
	if !source.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid source")
	}
	if !payment.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment_status")
	}
	if payment == enums.PaymentStatusFailed {
		return pkgerrors.New(pkgerrors.CodeValidation, "an order cannot be placed with a failed payment")
	}
	if source == enums.SaleSourcePOS && strings.TrimSpace(addr.Line1) == "" && strings.TrimSpace(addr.Pincode) == "" {
		return nil
	}
	if err := addr.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping_address")
	}
	return nil
}

// StockStateFor decides how placement touches stock: pending payments hold a
// reservation, everything else is decremented immediately.
func StockStateFor(payment enums.PaymentStatus) enums.StockState {
	if payment == enums.PaymentStatusPending {
		return enums.StockStateHeld
	}
	return enums.StockStateCommitted
}
