// Package types provides common value types and helpers.
package types

import (
	"github.com/shopspring/decimal"
)

// Litres is a milk volume. Stored as NUMERIC(10,2).
type Litres = decimal.Decimal

// Money is a monetary amount. Stored as NUMERIC(12,2).
type Money = decimal.Decimal

// Quantity is a stock count in the item's unit. Stored as NUMERIC(12,2).
type Quantity = decimal.Decimal

// Must parses a decimal literal, panics on error. Use only for constants and tests.
func Must(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Percent returns round(part / whole * 100) capped at 100, rounding half away
// from zero. A non-positive whole yields 0.
func Percent(part, whole decimal.Decimal) int {
	if !whole.IsPositive() {
		return 0
	}
	pct := part.Div(whole).Mul(decimal.NewFromInt(100))
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		pct = decimal.NewFromInt(100)
	}
	return int(pct.Round(0).IntPart())
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
