package row

import (
	"fmt"
	"strconv"
	"strings"
)

// keyPartWidth zero-pads key parts so lexical order equals numeric order.
const keyPartWidth = 19

// Key addresses one row: a table name plus its ordered identifier parts,
// e.g. Key{"district", [1, 3]} for district 3 of warehouse 1.
// Parts must be non-negative.
type Key struct {
	Table string
	Parts []int64
}

// NewKey builds a Key.
func NewKey(table string, parts ...int64) Key {
	return Key{Table: table, Parts: parts}
}

// String returns the encoded key: "table/<part>/<part>..." with each part
// zero-padded. Encoded keys of one table sort in identifier order.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Table)
	for _, p := range k.Parts {
		fmt.Fprintf(&b, "/%0*d", keyPartWidth, p)
	}
	return b.String()
}

// Validate checks the key can be encoded order-preservingly.
func (k Key) Validate() error {
	if k.Table == "" || strings.Contains(k.Table, "/") {
		return fmt.Errorf("invalid table name %q", k.Table)
	}
	for i, p := range k.Parts {
		if p < 0 {
			return fmt.Errorf("key %s part %d is negative: %d", k.Table, i, p)
		}
	}
	return nil
}

// ParseKey decodes a string produced by Key.String.
func ParseKey(s string) (Key, error) {
	segs := strings.Split(s, "/")
	if segs[0] == "" {
		return Key{}, fmt.Errorf("parse key %q: empty table", s)
	}
	k := Key{Table: segs[0]}
	for _, seg := range segs[1:] {
		n, err := strconv.ParseInt(seg, 10, 64)
		if err != nil {
			return Key{}, fmt.Errorf("parse key %q: %w", s, err)
		}
		k.Parts = append(k.Parts, n)
	}
	return k, nil
}

// Child returns a key one level deeper.
func (k Key) Child(part int64) Key {
	parts := make([]int64, len(k.Parts), len(k.Parts)+1)
	copy(parts, k.Parts)
	return Key{Table: k.Table, Parts: append(parts, part)}
}

// Range returns the half-open encoded interval [start, end) covering every
// key that has k as a prefix (k itself excluded).
func (k Key) Range() (start, end string) {
	start = k.String() + "/"
	// '0' is the byte after '/'.
	end = k.String() + "0"
	return start, end
}

// HasPrefix reports whether k lies strictly under prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if k.Table != prefix.Table || len(k.Parts) <= len(prefix.Parts) {
		return false
	}
	for i, p := range prefix.Parts {
		if k.Parts[i] != p {
			return false
		}
	}
	return true
}
