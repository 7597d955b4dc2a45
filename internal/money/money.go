package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MicrosPerUnit is the number of internal units per whole currency unit.
const MicrosPerUnit int64 = 1_000_000

// MaxMicros bounds every amount accepted from the outside (one billion
// currency units). Sums of a few thousand such amounts still fit in int64.
const MaxMicros int64 = 1_000_000_000 * MicrosPerUnit

const microsPerCent = MicrosPerUnit / 100

var (
	microsScale = decimal.NewFromInt(MicrosPerUnit)
	hundred     = decimal.NewFromInt(100)
	maxDecimal  = decimal.New(MaxMicros, -6)
)

// ErrInvalidAmount is returned when a textual amount cannot be parsed or
// exceeds MaxMicros in magnitude.
var ErrInvalidAmount = errors.New("money: invalid amount")

// Money represents a monetary value stored in micro-units of the currency.
// Values are immutable; every operation returns a new Money.
type Money struct {
	micros int64
}

// Zero returns a zero amount.
func Zero() Money { return Money{} }

// FromMicros builds a Money from raw micro-units.
func FromMicros(micros int64) Money { return Money{micros: micros} }

// FromCents builds a Money from minor currency units.
func FromCents(cents int64) Money { return Money{micros: cents * microsPerCent} }

// FromDecimal converts a decimal amount, rounding half-up to micro precision.
// d must lie within MaxMicros; use Parse or FromDecimalChecked for untrusted input.
func FromDecimal(d decimal.Decimal) Money {
	return Money{micros: d.Mul(microsScale).Round(0).IntPart()}
}

// Parse reads a decimal string such as "12.50".
func Parse(value string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	return FromDecimalChecked(d)
}

// FromDecimalChecked is FromDecimal with a range check.
func FromDecimalChecked(d decimal.Decimal) (Money, error) {
	if d.Abs().GreaterThan(maxDecimal) {
		return Money{}, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, d.String())
	}
	return FromDecimal(d), nil
}

// MustParse behaves like Parse but panics on error. Intended for tests and constants.
func MustParse(value string) Money {
	m, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return m
}

// Micros exposes the raw micro-unit value.
func (m Money) Micros() int64 { return m.micros }

// Decimal returns the exact decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.micros, -6)
}

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{micros: m.micros + o.micros} }

// Sub returns m - o. The result may be negative.
func (m Money) Sub(o Money) Money { return Money{micros: m.micros - o.micros} }

// MulQty multiplies the amount by an integer quantity. Callers keep the
// product within range, see CheckedMulQty.
func (m Money) MulQty(qty int) Money { return Money{micros: m.micros * int64(qty)} }

// CheckedMulQty multiplies like MulQty and reports false when the product
// would exceed MaxMicros in magnitude.
func (m Money) CheckedMulQty(qty int) (Money, bool) {
	if !m.InRange() || qty < 0 {
		return Money{}, false
	}
	if qty > 0 && abs(m.micros) > MaxMicros/int64(qty) {
		return Money{}, false
	}
	return m.MulQty(qty), true
}

// InRange reports whether the magnitude of m is at most MaxMicros.
func (m Money) InRange() bool { return abs(m.micros) <= MaxMicros }

func abs(v int64) int64 {
	if v == math.MinInt64 {
		return math.MaxInt64
	}
	if v < 0 {
		return -v
	}
	return v
}

// PercentOf returns pct percent of m, kept at micro precision.
func (m Money) PercentOf(pct decimal.Decimal) Money {
	return FromDecimal(m.Decimal().Mul(pct).Div(hundred))
}

// MulRatio returns m * num / den without intermediate rounding. A zero
// denominator yields zero.
func (m Money) MulRatio(num, den int64) Money {
	if den == 0 {
		return Money{}
	}
	return FromDecimal(m.Decimal().Mul(decimal.NewFromInt(num)).Div(decimal.NewFromInt(den)))
}

// RoundToCents rounds half-up to two decimal places.
func (m Money) RoundToCents() Money {
	return FromDecimal(m.Decimal().Round(2))
}

// Cents returns the amount in minor units after rounding to cents.
func (m Money) Cents() int64 {
	return m.RoundToCents().micros / microsPerCent
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.micros == 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.micros < 0 }

// Cmp returns -1, 0 or 1 when m is less than, equal to or greater than o.
func (m Money) Cmp(o Money) int {
	switch {
	case m.micros < o.micros:
		return -1
	case m.micros > o.micros:
		return 1
	default:
		return 0
	}
}

// Equal reports whether both amounts are identical.
func (m Money) Equal(o Money) bool { return m.micros == o.micros }

// LessThan reports m < o.
func (m Money) LessThan(o Money) bool { return m.micros < o.micros }

// GreaterThan reports m > o.
func (m Money) GreaterThan(o Money) bool { return m.micros > o.micros }

// Min returns the smaller of two amounts.
func Min(a, b Money) Money {
	if a.micros <= b.micros {
		return a
	}
	return b
}

// Max returns the larger of two amounts.
func Max(a, b Money) Money {
	if a.micros >= b.micros {
		return a
	}
	return b
}

// Sum adds all amounts.
func Sum(values ...Money) Money {
	var total int64
	for _, v := range values {
		total += v.micros
	}
	return Money{micros: total}
}

// String renders the amount rounded to cents, e.g. "24.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Money{}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	v, err := FromDecimalChecked(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
