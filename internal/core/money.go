// Package core provides money handling for expense amounts.
//
// Amounts are kept as decimals rounded to two places (half away from zero) so
// that sums over many entries never pick up binary floating point drift.
package core

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a non-negative amount with two decimal places.
type Money struct {
	d decimal.Decimal
}

// MaxAmount is the exclusive upper bound of a single amount. It keeps cents
// and per-category sums well inside int64 and Decimal128.
var MaxAmount = decimal.New(1, 7)

// Exponent window accepted from clients. Rounding rescales the coefficient
// by 10^|exp|, so values outside it are rejected before any arithmetic.
const (
	minExponent = -20
	maxExponent = 15
)

// NewMoney rounds d to two decimal places. d must already be in range; use
// ParseMoney or JSON decoding for untrusted input.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(2)}
}

// MoneyFromCents builds an amount from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// MoneyFromFloat is a convenience for literals in seeds and tests.
func MoneyFromFloat(f float64) Money {
	return NewMoney(decimal.NewFromFloat(f))
}

// checkedMoney bounds-checks untrusted d and rounds it. Any negative input
// is rejected, including values that would round to zero.
func checkedMoney(d decimal.Decimal) (Money, error) {
	if exp := d.Exponent(); exp < minExponent || exp > maxExponent {
		return Money{}, ErrInvalidAmount
	}
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	m := NewMoney(d)
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// ParseMoney converts a decimal string with a dot separator to Money,
// rounding on the third decimal place. Negative values, values of
// MaxAmount or more and comma separators are rejected.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34
//	ParseMoney("12.345") -> 12.35
//	ParseMoney("12,34")  -> error
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, ",") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return checkedMoney(d)
}

// Decimal returns the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Cents returns the amount as an integer number of cents.
func (m Money) Cents() int64 {
	return m.d.Shift(2).Round(0).IntPart()
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.d.IsZero() }

// Equal compares amounts by value, ignoring representation.
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// Validate checks 0 <= m < MaxAmount.
func (m Money) Validate() error {
	if m.d.IsNegative() {
		return ErrInvalidAmount
	}
	if m.d.GreaterThanOrEqual(MaxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

// String formats the amount with exactly two decimals.
func (m Money) String() string {
	return m.d.StringFixed(2)
}

// MarshalJSON emits the amount as a bare JSON number (150, 12.5).
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string within the bounds
// of ParseMoney.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return ErrInvalidAmount
	}
	checked, err := checkedMoney(d)
	if err != nil {
		return err
	}
	*m = checked
	return nil
}
