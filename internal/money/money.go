// Package money holds the rounding rules for BRL amounts.
package money

import "github.com/shopspring/decimal"

// Round rounds to centavos, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Cents converts an amount to integer centavos.
func Cents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

// Format renders an amount with two decimals ("299.90").
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
