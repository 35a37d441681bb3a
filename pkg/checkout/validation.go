package checkout

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
)

// LineInput is a cart line as submitted by the client.
type LineInput struct {
	VariantID int64
	Qty       int
}

// LineViolation describes why a cart line was rejected.
type LineViolation struct {
	Index     int    `json:"index"`
	VariantID int64  `json:"variant_id"`
	Qty       int    `json:"qty"`
	Reason    string `json:"reason"`
}

// ValidateLines rejects empty carts and lines with a missing variant or a
// non-positive quantity. Every bad line is reported.
func ValidateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidCart, "cart is empty")
	}
	var violations []LineViolation
	for i, line := range lines {
		switch {
		case line.VariantID <= 0:
			violations = append(violations, LineViolation{Index: i, VariantID: line.VariantID, Qty: line.Qty, Reason: "variant_id must be positive"})
		case line.Qty <= 0:
			violations = append(violations, LineViolation{Index: i, VariantID: line.VariantID, Qty: line.Qty, Reason: "qty must be positive"})
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInvalidCart, fmt.Sprintf("%d cart line(s) are invalid", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}

// MergeLines sums quantities of repeated variants, keeping first-seen order.
func MergeLines(lines []LineInput) []LineInput {
	index := make(map[int64]int, len(lines))
	merged := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		if pos, ok := index[line.VariantID]; ok {
			merged[pos].Qty += line.Qty
			continue
		}
		index[line.VariantID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}
