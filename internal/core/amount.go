// Package core holds the domain model and the filter/summary engine.
//
// This file implements amount parsing and formatting. Amounts that arrive
// as text (stored values, form input) may carry thousands separators;
// those are stripped before parsing, and anything that still fails to
// parse coerces to zero. That lenient coercion is deliberate and applies
// at every display/aggregation ingestion point — the API insert path is
// stricter and requires a proper JSON number.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a decimal-backed money value with lenient JSON decoding.
// It marshals as a plain JSON number.
type Amount struct {
	decimal.Decimal
}

// AmountFromFloat converts a stored numeric value into an Amount.
func AmountFromFloat(f float64) Amount {
	return Amount{decimal.NewFromFloat(f)}
}

// ParseAmount parses a textual amount. Thousands separators are stripped
// first; unparsable input yields zero rather than an error.
func ParseAmount(s string) Amount {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{decimal.Zero}
	}
	return Amount{d}
}

// Add returns the sum of two amounts.
func (a Amount) Add(b Amount) Amount {
	return Amount{a.Decimal.Add(b.Decimal)}
}

// Sub returns a minus b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{a.Decimal.Sub(b.Decimal)}
}

// Display renders the amount with exactly two decimal places.
func (a Amount) Display() string {
	return a.Decimal.StringFixed(2)
}

// Float64 returns the amount as a float64 for storage.
func (a Amount) Float64() float64 {
	f, _ := a.Decimal.Float64()
	return f
}

// MarshalJSON emits the amount as an unquoted JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts a JSON number or a string (possibly with
// thousands separators); invalid input coerces to zero.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*a = Amount{decimal.Zero}
		return nil
	}
	*a = ParseAmount(s)
	return nil
}
