// Package money provides the fixed-point decimal arithmetic the transfer
// engine uses for balances and amounts. Binary floating point never appears
// here; every value is backed by shopspring/decimal.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount indicates a value could not be parsed or does not match
// the configured scale.
var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a non-negative-or-positive fixed-point decimal at a fixed scale.
type Amount struct {
	d     decimal.Decimal
	scale int32
}

// Parse parses a decimal string at the given scale. The string must already
// be scaled to exactly `scale` fractional digits; no rounding is performed.
func Parse(s string, scale int32) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %s", ErrInvalidAmount, err)
	}
	if d.Exponent() != -scale {
		return Amount{}, fmt.Errorf("%w: %s does not have exactly %d fractional digits", ErrInvalidAmount, s, scale)
	}
	return Amount{d: d.Truncate(scale), scale: scale}, nil
}

// FromDecimal wraps an already-scaled decimal.Decimal.
func FromDecimal(d decimal.Decimal, scale int32) Amount {
	return Amount{d: d, scale: scale}
}

// Zero returns the zero amount at the given scale.
func Zero(scale int32) Amount {
	return Amount{d: decimal.Zero, scale: scale}
}

// Decimal exposes the underlying decimal.Decimal.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a.d.IsPositive() }

// IsNegative reports whether the amount is strictly less than zero.
func (a Amount) IsNegative() bool { return a.d.IsNegative() }

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool { return a.d.LessThan(b.d) }

// Add returns a + b at a's scale.
func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d), scale: a.scale} }

// Sub returns a - b at a's scale.
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d), scale: a.scale} }

// String renders the amount at its fixed scale, e.g. "10.00".
func (a Amount) String() string {
	return a.d.StringFixed(a.scale)
}

// Equal reports value equality, ignoring scale bookkeeping.
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }
