package script

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/wholesale/internal/row"
)

// DetailFields is the field count of a NewOrder detail line:
// item id, supplying warehouse id, quantity.
const DetailFields = 3

// newOrderCountParam is the parameter index (after the tag) holding the
// number of detail lines, i.e. field 4 of the raw record.
const newOrderCountParam = 3

// maxLineBytes bounds a single script line.
const maxLineBytes = 1 << 20

// Reader decodes records from a comma-separated script.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc}
}

// Next returns the next record. It returns io.EOF at the end of input and a
// *MalformedError for a record that cannot be decoded; after a
// MalformedError the caller may keep calling Next. Any other error is an
// I/O failure and is terminal.
//
// A NewOrder header consumes the number of following lines named by its
// count parameter as detail lines. Blank lines between records are ignored.
func (r *Reader) Next() (Record, error) {
	fields, ok, err := r.nextFields()
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, io.EOF
	}

	line := r.line
	tag := fields[0]
	kind, known := ParseKind(tag)
	if !known {
		return Record{}, &MalformedError{Line: line, Tag: tag, Reason: "unknown transaction type"}
	}

	rec := Record{Kind: kind, Params: fields[1:], Line: line}
	if kind == NewOrder && len(rec.Params) > newOrderCountParam {
		// The detail block is consumed before any header check so a bad
		// header is reported as one malformed record.
		n, err := strconv.Atoi(rec.Params[newOrderCountParam])
		if err != nil {
			return Record{}, &MalformedError{Line: line, Tag: tag,
				Reason: fmt.Sprintf("item count %q is not an integer", rec.Params[newOrderCountParam])}
		}
		if n < 0 {
			return Record{}, &MalformedError{Line: line, Tag: tag, Reason: "negative item count"}
		}
		lines, err := r.readDetails(n)
		if err != nil {
			return Record{}, err
		}
		if err := checkHeader(kind, rec.Params); err != nil {
			return Record{}, &MalformedError{Line: line, Tag: tag, Reason: err.Error()}
		}
		if len(lines) < n {
			return Record{}, &MalformedError{Line: line, Tag: tag,
				Reason: fmt.Sprintf("expected %d detail lines, input ended after %d", n, len(lines))}
		}
		for i, d := range lines {
			if err := validateDetail(d); err != nil {
				return Record{}, &MalformedError{Line: line, Tag: tag,
					Reason: fmt.Sprintf("detail line %d: %v", i+1, err)}
			}
		}
		rec.Lines = lines
		return rec, nil
	}

	if err := checkHeader(kind, rec.Params); err != nil {
		return Record{}, &MalformedError{Line: line, Tag: tag, Reason: err.Error()}
	}
	return rec, nil
}

// checkHeader validates the arity and numeric parameters of a record header.
func checkHeader(kind Kind, params []string) error {
	if len(params) != kind.Params() {
		return fmt.Errorf("expected %d parameters, got %d", kind.Params(), len(params))
	}
	return validateParams(kind, params)
}

// nextFields returns the next non-blank line split on commas.
func (r *Reader) nextFields() ([]string, bool, error) {
	for r.sc.Scan() {
		r.line++
		text := strings.TrimSpace(r.sc.Text())
		if text == "" {
			continue
		}
		parts := strings.Split(text, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, true, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, false, fmt.Errorf("read script: %w", err)
	}
	return nil, false, nil
}

// readDetails reads up to n detail lines; fewer are returned only at EOF.
// n comes from the script, so the slice grows with what is actually read.
func (r *Reader) readDetails(n int) ([][]string, error) {
	var lines [][]string
	for len(lines) < n {
		fields, ok, err := r.nextFields()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		lines = append(lines, fields)
	}
	return lines, nil
}

// validateParams checks every parameter is numeric. Payment's amount is a
// decimal; every other parameter is an integer.
func validateParams(kind Kind, params []string) error {
	for i, p := range params {
		if kind == Payment && i == 3 {
			if _, err := row.ParseDecimal(p); err != nil {
				return fmt.Errorf("parameter %d %q is not a decimal", i+1, p)
			}
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err != nil {
			return fmt.Errorf("parameter %d %q is not an integer", i+1, p)
		}
	}
	return nil
}

func validateDetail(fields []string) error {
	if len(fields) != DetailFields {
		return fmt.Errorf("expected %d fields, got %d", DetailFields, len(fields))
	}
	for _, f := range fields {
		if _, err := strconv.ParseInt(f, 10, 64); err != nil {
			return fmt.Errorf("%q is not an integer", f)
		}
	}
	return nil
}
