package enums

import "fmt"

// SaleStatus is the lifecycle state of a sale.
type SaleStatus string

const (
	SaleStatusPlaced    SaleStatus = "PLACED"
	SaleStatusConfirmed SaleStatus = "CONFIRMED"
	SaleStatusCancelled SaleStatus = "CANCELLED"
	SaleStatusDelivered SaleStatus = "DELIVERED"
	SaleStatusRTO       SaleStatus = "RTO"
)

var validSaleStatuses = []SaleStatus{
	SaleStatusPlaced,
	SaleStatusConfirmed,
	SaleStatusCancelled,
	SaleStatusDelivered,
	SaleStatusRTO,
}

// IsValid reports whether the value matches a known sale status.
func (s SaleStatus) IsValid() bool {
	for _, candidate := range validSaleStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further lifecycle mutation may be applied.
func (s SaleStatus) IsTerminal() bool {
	return s == SaleStatusCancelled || s == SaleStatusDelivered || s == SaleStatusRTO
}

// CanCancel reports whether a sale in this status may still be cancelled.
func (s SaleStatus) CanCancel() bool {
	return !s.IsTerminal()
}

// ParseSaleStatus converts the raw string to SaleStatus.
func ParseSaleStatus(value string) (SaleStatus, error) {
	for _, candidate := range validSaleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale status %q", value)
}
