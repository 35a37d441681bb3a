package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus tracks how (and whether) a sale has been paid.
type PaymentStatus string

const (
	PaymentStatusCOD     PaymentStatus = "COD"
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusCOD,
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
}

func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus accepts any casing.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	normalized := PaymentStatus(strings.ToUpper(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
