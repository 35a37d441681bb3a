package enums

import (
	"fmt"
	"strings"
)

// SaleSource is the channel a sale was placed through.
type SaleSource string

const (
	SaleSourceWeb SaleSource = "WEB"
	SaleSourcePOS SaleSource = "POS"
)

func (s SaleSource) IsValid() bool {
	return s == SaleSourceWeb || s == SaleSourcePOS
}

func ParseSaleSource(value string) (SaleSource, error) {
	normalized := SaleSource(strings.ToUpper(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid sale source %q", value)
}

// CancellationSource identifies who initiated a cancellation.
type CancellationSource string

const (
	CancellationSourceCustomer CancellationSource = "CUSTOMER"
	CancellationSourceOperator CancellationSource = "OPERATOR"
	CancellationSourceCourier  CancellationSource = "COURIER"
)

func (c CancellationSource) IsValid() bool {
	switch c {
	case CancellationSourceCustomer, CancellationSourceOperator, CancellationSourceCourier:
		return true
	}
	return false
}

func ParseCancellationSource(value string) (CancellationSource, error) {
	normalized := CancellationSource(strings.ToUpper(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid cancellation source %q", value)
}
