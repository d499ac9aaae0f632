package row

import (
	"fmt"
	"slices"
	"strconv"
	"time"
)

// Fields is the content of one row: field name to value.
// Use SortedKeys for deterministic iteration.
type Fields map[string]Value

// FieldError reports a field that is missing or holds the wrong type.
type FieldError struct {
	Field string
	Want  string
	Got   Value
}

func (e *FieldError) Error() string {
	if e.Got == nil {
		return fmt.Sprintf("field %q: missing (want %s)", e.Field, e.Want)
	}
	return fmt.Sprintf("field %q: want %s, got %T", e.Field, e.Want, e.Got)
}

// SortedKeys returns field names in canonical order.
func (f Fields) SortedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Clone returns a shallow copy. Values are immutable so this is a full copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Merge returns a copy of f with every field of update applied on top.
func (f Fields) Merge(update Fields) Fields {
	out := f.Clone()
	for k, v := range update {
		out[k] = v
	}
	return out
}

// Get returns the named value, or Null when the field is absent.
func (f Fields) Get(name string) Value {
	v, ok := f[name]
	if !ok || v == nil {
		return Null{}
	}
	return v
}

// IsNull reports whether the named field is absent or Null.
func (f Fields) IsNull(name string) bool {
	return IsNull(f[name])
}

// Int returns the named field as an int64.
func (f Fields) Int(name string) (int64, error) {
	switch v := f[name].(type) {
	case Int:
		return int64(v), nil
	case String:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, &FieldError{Field: name, Want: "int", Got: v}
		}
		return n, nil
	default:
		return 0, &FieldError{Field: name, Want: "int", Got: v}
	}
}

// Decimal returns the named field as a Decimal. Ints and decimal strings
// (the persisted form) are coerced.
func (f Fields) Decimal(name string) (Decimal, error) {
	switch v := f[name].(type) {
	case Decimal:
		return v, nil
	case Int:
		return DecimalFromInt(int64(v)), nil
	case String:
		d, err := ParseDecimal(string(v))
		if err != nil {
			return Decimal{}, &FieldError{Field: name, Want: "decimal", Got: v}
		}
		return d, nil
	default:
		return Decimal{}, &FieldError{Field: name, Want: "decimal", Got: v}
	}
}

// Text returns the named field as a string.
func (f Fields) Text(name string) (string, error) {
	v, ok := f[name].(String)
	if !ok {
		return "", &FieldError{Field: name, Want: "string", Got: f[name]}
	}
	return string(v), nil
}

// Bool returns the named field as a bool.
func (f Fields) Bool(name string) (bool, error) {
	v, ok := f[name].(Bool)
	if !ok {
		return false, &FieldError{Field: name, Want: "bool", Got: f[name]}
	}
	return bool(v), nil
}

// Time returns the named field, stored as unix microseconds, as a UTC time.
// The second result is false when the field is Null.
func (f Fields) Time(name string) (time.Time, bool, error) {
	if f.IsNull(name) {
		return time.Time{}, false, nil
	}
	us, err := f.Int(name)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMicro(us).UTC(), true, nil
}
