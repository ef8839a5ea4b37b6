// Package core provides the expense tracker domain types together with
// amount parsing and per-category aggregation.
//
// Amounts are held as shopspring decimals so typical two-decimal currency
// values round-trip through their string representation without loss.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts user or wire input into a decimal amount.
//
// It trims surrounding whitespace and rejects anything that does not parse
// as a non-negative decimal. Zero is a valid amount.
//
// Examples:
//
//	ParseAmount("12.50") -> 12.5, nil
//	ParseAmount(" 3 ")   -> 3, nil
//	ParseAmount("-1")    -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return d, nil
}

// FormatAmount renders an amount with two decimal places for display.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
