package enums

import "fmt"

// StockState records what a sale currently holds against the stock ledger.
type StockState string

const (
	// StockStateHeld means quantities are reserved but on_hand is untouched.
	StockStateHeld StockState = "HELD"
	// StockStateCommitted means on_hand has been decremented.
	StockStateCommitted StockState = "COMMITTED"
	// StockStateReleased means a previous hold was returned to availability.
	StockStateReleased StockState = "RELEASED"
)

var validStockStates = []StockState{StockStateHeld, StockStateCommitted, StockStateReleased}

func (s StockState) IsValid() bool {
	for _, candidate := range validStockStates {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseStockState(value string) (StockState, error) {
	for _, candidate := range validStockStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock state %q", value)
}
