package script

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/wholesale/internal/row"
)

// Record is one decoded command: the kind, its parameters (the fields after
// the tag) and, for NewOrder only, the detail lines that followed it.
// Records are immutable once returned by Reader.Next.
type Record struct {
	Kind   Kind
	Params []string
	Lines  [][]string
	Line   int // 1-based input line of the header
}

// Int returns parameter i (0-based, after the tag) as an int64.
func (r Record) Int(i int) (int64, error) {
	if i >= len(r.Params) {
		return 0, fmt.Errorf("%s record: missing parameter %d", r.Kind, i)
	}
	n, err := strconv.ParseInt(r.Params[i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s record: parameter %d %q is not an integer", r.Kind, i, r.Params[i])
	}
	return n, nil
}

// Decimal returns parameter i as an exact decimal.
func (r Record) Decimal(i int) (row.Decimal, error) {
	if i >= len(r.Params) {
		return row.Decimal{}, fmt.Errorf("%s record: missing parameter %d", r.Kind, i)
	}
	d, err := row.ParseDecimal(r.Params[i])
	if err != nil {
		return row.Decimal{}, fmt.Errorf("%s record: parameter %d: %w", r.Kind, i, err)
	}
	return d, nil
}

// LineInt returns field j of detail line i as an int64.
func (r Record) LineInt(i, j int) (int64, error) {
	if i >= len(r.Lines) || j >= len(r.Lines[i]) {
		return 0, fmt.Errorf("%s record: missing detail field %d.%d", r.Kind, i, j)
	}
	n, err := strconv.ParseInt(r.Lines[i][j], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s record: detail field %d.%d %q is not an integer", r.Kind, i, j, r.Lines[i][j])
	}
	return n, nil
}

// MalformedError describes a record that could not be decoded: an unknown
// tag, a wrong parameter count, an unparseable parameter or a truncated
// detail block. The reader stays positioned after the record, so decoding
// can continue.
type MalformedError struct {
	Line   int
	Tag    string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("line %d: malformed %q record: %s", e.Line, e.Tag, e.Reason)
}

// IsMalformed reports whether err is a *MalformedError.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}
