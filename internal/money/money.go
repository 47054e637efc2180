// Package money centralizes how monetary amounts move through the system:
// as strings at the edges (NUMERIC::text in Postgres, plain strings in JSON,
// to avoid float rounding) and as decimals wherever arithmetic happens.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Parse converts an amount string like "19.90" into a decimal.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// Format renders a decimal with two fractional digits, the canonical wire
// and storage representation.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
