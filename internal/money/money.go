// Package money holds the fixed-point amount type every cost figure is expressed in.
//
// Arithmetic keeps full precision. Rounding happens once, in Round, when a figure
// is shown to a user: half-to-even at DisplayScale places.
package money

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// DisplayScale is the number of fractional digits of a user-visible amount.
const DisplayScale int32 = 2

// Amount is a decimal money value. The zero value is 0.
type Amount struct {
	d decimal.Decimal
}

var Zero = Amount{}

func New(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Amount{d: d}, nil
}

// MustNew is New for literals in tests and defaults.
func MustNew(s string) Amount {
	a, err := New(s)
	if err != nil {
		panic(err)
	}
	return a
}

func FromDecimal(d decimal.Decimal) Amount { return Amount{d: d} }

func FromInt(v int64) Amount { return Amount{d: decimal.NewFromInt(v)} }

func (a Amount) Decimal() decimal.Decimal { return a.d }

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }

func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

// Mul scales the amount by a dimensionless factor (hours, kilograms, coefficients).
func (a Amount) Mul(f decimal.Decimal) Amount { return Amount{d: a.d.Mul(f)} }

func (a Amount) MulInt(n int64) Amount { return Amount{d: a.d.Mul(decimal.NewFromInt(n))} }

// Div divides by a non-zero factor; the quotient keeps decimal.DivisionPrecision digits.
func (a Amount) Div(f decimal.Decimal) Amount { return Amount{d: a.d.Div(f)} }

func (a Amount) Neg() Amount { return Amount{d: a.d.Neg()} }

func (a Amount) Max(b Amount) Amount {
	if a.d.GreaterThanOrEqual(b.d) {
		return a
	}
	return b
}

func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// Equal compares full-precision values, so 1.50 equals 1.5.
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

func (a Amount) IsZero() bool { return a.d.IsZero() }

func (a Amount) IsNegative() bool { return a.d.IsNegative() }

// Round returns the display value: banker's rounding to DisplayScale places.
func (a Amount) Round() decimal.Decimal { return a.d.RoundBank(DisplayScale) }

// String renders the display value with exactly DisplayScale digits.
func (a Amount) String() string { return a.Round().StringFixedBank(DisplayScale) }

// Exact renders the unrounded value.
func (a Amount) Exact() string { return a.d.String() }

// MarshalJSON writes the full-precision value as a string so persisted
// breakdowns never lose digits.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.d.String())
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("decode amount: %w", err)
	}
	a.d = d
	return nil
}

// Sum adds amounts without intermediate rounding.
func Sum(xs ...Amount) Amount {
	total := decimal.Zero
	for _, x := range xs {
		total = total.Add(x.d)
	}
	return Amount{d: total}
}
