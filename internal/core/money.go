// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between cents and decimal representations.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxTransactionAmount is the largest single spend entry accepted.
var MaxTransactionAmount = Dollars(1_000_000, 0)

// MaxUsage bounds a period's usage aggregate. With the per-entry ceiling it
// keeps every sum well inside int64.
var MaxUsage = Dollars(1_000_000_000, 0)

// maxDecodeUnits keeps decoded amounts from wrapping int64 cents.
var maxDecodeUnits = decimal.NewFromInt((1<<63 - 1) / 100)

// Money is an amount of club currency held as integer cents.
type Money struct {
	Cents int64
}

// Dollars builds Money from a whole-unit and cents value, e.g. Dollars(75, 0).
func Dollars(units, cents int64) Money {
	return Money{Cents: units*100 + cents}
}

// Validate accepts positive amounts up to MaxTransactionAmount.
func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxTransactionAmount.Cents {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the amount as an exact decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float returns the amount as a float64 for display and percentage math.
// Use cents for calculations that must stay exact.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount with two fractional digits, e.g. "43.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

// AddUsage returns m + o, or ErrUsageLimit when the sum would pass MaxUsage.
// Both operands must be non-negative.
func (m Money) AddUsage(o Money) (Money, error) {
	if m.Cents < 0 || o.Cents < 0 || o.Cents > MaxUsage.Cents-m.Cents {
		return m, ErrUsageLimit
	}
	return Money{Cents: m.Cents + o.Cents}, nil
}

// Sub returns m - o. The result may be negative.
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Max0 clamps negative amounts to zero.
func (m Money) Max0() Money {
	if m.Cents < 0 {
		return Money{}
	}
	return m
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.Cents == 0 }

// MarshalJSON encodes Money as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		m.Cents = 0
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("decode money %q: %w", s, err)
	}
	d = d.Round(2)
	if d.Abs().GreaterThan(maxDecodeUnits) {
		return fmt.Errorf("decode money %q: out of range", s)
	}
	m.Cents = d.Shift(2).IntPart()
	return nil
}

// ParseAmount converts a user-entered decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to the nearest cent. Returns ErrInvalidAmount for empty, malformed,
// non-finite, zero or negative input, and for amounts above
// MaxTransactionAmount.
//
// Examples:
//
//	ParseAmount("25")     -> 25.00
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("1.005")  -> 1.01
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() || d.GreaterThan(MaxTransactionAmount.Decimal()) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: d.Shift(2).IntPart()}, nil
}
