package gateway

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// formatAmount renders cents as the two-decimal string providers expect,
// e.g. 450000 -> "4500.00".
func formatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// parseAmountCents converts a provider decimal string back into cents.
// Amounts with sub-paisa precision are rejected rather than rounded.
func parseAmountCents(raw string) (int64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %q has sub-paisa precision", raw)
	}
	return shifted.IntPart(), nil
}
