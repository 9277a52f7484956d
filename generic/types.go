/*
Package generic provides the domain-agnostic primitives of the benefit engine.

PURPOSE:
  This package contains the value types, time helpers, error kinds and
  infrastructure contracts shared by every layer. Nothing in here knows what
  an expense claim or a benefit basket is; the benefit package builds those
  on top.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A monetary quantity (e.g., 1000.00 of benefit ceiling)
  - Arithmetic helpers that never touch float64

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Immutability: Every operation returns a new Amount
  3. Wire stability: Amounts travel as decimal strings in JSON

USAGE:
  ceiling := generic.NewAmountFromInt(1000)
  used := generic.MustParseAmount("800.00")
  remaining := ceiling.Sub(used) // 200

SEE ALSO:
  - errors.go: Error kinds (validation, policy, authorization, not found)
  - period.go: Inclusive date windows
  - audit.go: Audit trail contract
*/
package generic

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Monetary quantity
// =============================================================================

// Amount is a monetary value. The system is single-currency; the currency
// code lives in configuration, not on every value.
type Amount struct {
	Value decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{Value: decimal.Zero}

func NewAmount(value float64) Amount {
	return Amount{Value: decimal.NewFromFloat(value)}
}

func NewAmountFromInt(value int64) Amount {
	return Amount{Value: decimal.NewFromInt(value)}
}

func NewAmountFromDecimal(d decimal.Decimal) Amount {
	return Amount{Value: d}
}

// CentDigits is the number of fractional digits an Amount may carry.
const CentDigits = 2

// ParseAmount parses a decimal string such as "1234.56". Values finer than a
// cent are refused: "1.500" is accepted, "1.005" is not.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	a := Amount{Value: d}
	if a.HasSubCents() {
		return Amount{}, fmt.Errorf("parse amount %q: more than %d decimal places", s, CentDigits)
	}
	return a, nil
}

// MustParseAmount is ParseAmount for literals; invalid input yields zero.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		return Zero
	}
	return a
}

func (a Amount) Add(b Amount) Amount           { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount           { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) Neg() Amount                   { return Amount{Value: a.Value.Neg()} }
func (a Amount) IsNegative() bool              { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                  { return a.Value.IsZero() }
func (a Amount) IsPositive() bool              { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool           { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool     { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool        { return a.Value.LessThan(b.Value) }
func (a Amount) LessThanOrEqual(b Amount) bool { return a.Value.LessThanOrEqual(b.Value) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// HasSubCents reports whether a cannot be written with CentDigits decimals.
func (a Amount) HasSubCents() bool {
	return !a.Value.Equal(a.Value.Round(CentDigits))
}

// ClampZero returns a, or zero when a is negative.
func (a Amount) ClampZero() Amount {
	return a.Max(Zero)
}

// String renders the amount with two decimal places.
func (a Amount) String() string {
	return a.Value.StringFixed(2)
}

// Sum adds up a list of amounts.
func Sum(amounts ...Amount) Amount {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// JSON - amounts are strings on the wire
// =============================================================================

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both "12.34" and 12.34.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseAmount(s)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	if parsed := (Amount{Value: d}); parsed.HasSubCents() {
		return fmt.Errorf("amount %s: more than %d decimal places", d, CentDigits)
	}
	a.Value = d
	return nil
}
