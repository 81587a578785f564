// Package units converts between lumens and stroops, the indivisible base unit
// of the native asset (1 lumen = 10,000,000 stroops).
package units

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/amount"

	"github.com/saif727/stellar-payroll-engine/failure"
)

// Precision is the number of fraction digits of a display amount.
const Precision = 7

// One is the number of stroops in one lumen.
const One = amount.One

var scale = decimal.New(1, Precision)

// ToBase converts a display amount to a stroop count rendered as a decimal digit
// string. Values with more than seven fraction digits are rounded half away
// from zero.
func ToBase(display float64) (string, error) {
	d, err := fromFloat(display)
	if err != nil {
		return "", err
	}
	return d.Shift(Precision).Round(0).String(), nil
}

// ToDisplay converts a stroop string back to a display amount.
func ToDisplay(base string) (float64, error) {
	d, err := ParseBase(base)
	if err != nil {
		return 0, err
	}
	f, _ := d.Div(scale).Float64()
	return f, nil
}

// Format renders a display amount with exactly seven fraction digits.
func Format(display float64) (string, error) {
	stroops, err := ToStroops(display)
	if err != nil {
		return "", err
	}
	return amount.StringFromInt64(stroops), nil
}

// ToStroops is ToBase for callers that need an integer, such as operation
// builders. It rejects amounts that do not fit in an int64.
func ToStroops(display float64) (int64, error) {
	base, err := ToBase(display)
	if err != nil {
		return 0, err
	}
	d, err := ParseBase(base)
	if err != nil {
		return 0, err
	}
	if !d.LessThanOrEqual(decimal.NewFromInt(math.MaxInt64)) {
		return 0, failure.InvalidAmount("amount exceeds the maximum representable value")
	}
	return d.IntPart(), nil
}

// ParseBase parses a non-negative stroop string.
func ParseBase(base string) (decimal.Decimal, error) {
	if base == "" {
		return decimal.Zero, failure.InvalidAmount("empty base amount")
	}
	if strings.TrimLeft(base, "0123456789") != "" {
		return decimal.Zero, failure.InvalidAmount(fmt.Sprintf("base amount is not a non-negative integer: %q", base))
	}
	d, err := decimal.NewFromString(base)
	if err != nil {
		return decimal.Zero, failure.InvalidAmount(fmt.Sprintf("could not parse base amount %q", base))
	}
	return d, nil
}

// Lumens converts a display decimal, such as a Horizon balance string, to a
// decimal amount.
func Lumens(display string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(display)
	if err != nil {
		return decimal.Zero, failure.InvalidAmount(fmt.Sprintf("could not parse amount %q", display))
	}
	if d.IsNegative() {
		return decimal.Zero, failure.InvalidAmount("amount must not be negative")
	}
	return d, nil
}

// FromFloat validates a display amount and returns its exact decimal value
// rounded to seven fraction digits.
func FromFloat(display float64) (decimal.Decimal, error) {
	d, err := fromFloat(display)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(Precision), nil
}

// Positive validates a transfer amount: finite, non-negative and non-zero once
// rounded to seven fraction digits.
func Positive(display float64) (decimal.Decimal, error) {
	d, err := FromFloat(display)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, failure.InvalidAmount("amount must be greater than zero")
	}
	return d, nil
}

func fromFloat(display float64) (decimal.Decimal, error) {
	switch {
	case math.IsNaN(display):
		return decimal.Zero, failure.InvalidAmount("amount is not a number")
	case math.IsInf(display, 0):
		return decimal.Zero, failure.InvalidAmount("amount is infinite")
	case display < 0:
		return decimal.Zero, failure.InvalidAmount("amount must not be negative")
	}
	// NewFromFloat uses the shortest decimal representation that round trips,
	// so 0.1 becomes exactly 0.1 rather than its binary expansion.
	return decimal.NewFromFloat(display), nil
}
