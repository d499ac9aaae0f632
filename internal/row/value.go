package row

import (
	"fmt"
	"time"
)

// Value is a sealed interface over the scalar types a row field may hold.
// Only Null, String, Int, Bool and Decimal implement it. Floats are never
// stored: money and rates are exact decimals.
type Value interface {
	rowValue()
}

// Null is an explicitly absent value (an undelivered order's carrier,
// an order line's delivery date before delivery).
type Null struct{}

func (Null) rowValue() {}

// String is a text value.
type String string

func (String) rowValue() {}

// Int is an integer value. Identifiers, counters, quantities and
// timestamps (unix microseconds) are all Ints.
type Int int64

func (Int) rowValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) rowValue() {}

// TimeValue encodes t as an Int holding unix microseconds.
func TimeValue(t time.Time) Int {
	return Int(t.UnixMicro())
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Equal reports whether two values have the same canonical encoding.
// A Decimal and the String holding its text form are equal, which is what
// a value read back from the store compares as.
func Equal(a, b Value) bool {
	ab, err := MarshalValue(a)
	if err != nil {
		return false
	}
	bb, err := MarshalValue(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

// FromAny converts a decoded YAML or JSON scalar into a Value.
// Floats are rejected; decimals must be written as strings. Timestamps
// become Int unix microseconds.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		return Int(int64(val)), nil
	case bool:
		return Bool(val), nil
	case time.Time:
		return TimeValue(val), nil
	case float32, float64:
		return nil, fmt.Errorf("floats are not allowed in rows (quote decimals as strings): %v", val)
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}
