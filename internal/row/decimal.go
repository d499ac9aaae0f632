package row

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// decimalContext is shared by all arithmetic. 34 digits (decimal128) is far
// beyond any balance this system accumulates.
var decimalContext = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(34)
	c.Rounding = apd.RoundHalfUp
	return c
}()

// Decimal is an exact decimal number backed by apd.
// The wrapped value is never mutated; every operation allocates a result.
// The zero Decimal is 0.
type Decimal struct {
	d *apd.Decimal
}

func (Decimal) rowValue() {}

// ParseDecimal parses a decimal literal such as "12.50" or "-3".
func ParseDecimal(s string) (Decimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return Decimal{d: d}, nil
}

// MustDecimal is ParseDecimal for literals known to be valid.
func MustDecimal(s string) Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DecimalFromInt returns n as a Decimal.
func DecimalFromInt(n int64) Decimal {
	return Decimal{d: apd.New(n, 0)}
}

func (d Decimal) value() *apd.Decimal {
	if d.d == nil {
		return apd.New(0, 0)
	}
	return d.d
}

type binaryOp func(res, x, y *apd.Decimal) (apd.Condition, error)

func (d Decimal) apply(op binaryOp, o Decimal) Decimal {
	res := new(apd.Decimal)
	if _, err := op(res, d.value(), o.value()); err != nil {
		panic(fmt.Sprintf("decimal arithmetic: %v", err))
	}
	return Decimal{d: res}
}

// Add returns d + o.
func (d Decimal) Add(o Decimal) Decimal { return d.apply(decimalContext.Add, o) }

// Sub returns d - o.
func (d Decimal) Sub(o Decimal) Decimal { return d.apply(decimalContext.Sub, o) }

// Mul returns d * o.
func (d Decimal) Mul(o Decimal) Decimal { return d.apply(decimalContext.Mul, o) }

// Quo returns d / o. Division by zero panics like integer division.
func (d Decimal) Quo(o Decimal) Decimal { return d.apply(decimalContext.Quo, o) }

// Cmp compares d and o and returns -1, 0 or +1.
func (d Decimal) Cmp(o Decimal) int {
	return d.value().Cmp(o.value())
}

// Sign returns -1, 0 or +1.
func (d Decimal) Sign() int {
	return d.value().Sign()
}

// Round rounds d half-up to the given number of fractional digits.
func (d Decimal) Round(places int32) Decimal {
	res := new(apd.Decimal)
	if _, err := decimalContext.Quantize(res, d.value(), -places); err != nil {
		panic(fmt.Sprintf("decimal quantize: %v", err))
	}
	return Decimal{d: res}
}

// String returns the plain (non-exponent) text form.
func (d Decimal) String() string {
	return d.value().Text('f')
}

// MarshalJSON encodes the decimal as a JSON string so no precision is lost
// to float parsing on the other side.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return marshalCanonicalString(d.String())
}
