// Package fixture loads seed rows from YAML into a store.
//
// A fixture lists rows by table, key parts and fields:
//
//	rows:
//	  - table: warehouse
//	    key: [1]
//	    fields:
//	      w_name: Main
//	      w_tax: "0.0500"
//
// Decimals are written as quoted strings; unquoted timestamps become unix
// microseconds; ~ is Null.
package fixture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/row"
)

// Row is one seed row.
type Row struct {
	Table  string         `yaml:"table"`
	Key    []int64        `yaml:"key"`
	Fields map[string]yaml.Node `yaml:"fields"`
}

// RowKey returns the store key of r.
func (r Row) RowKey() row.Key {
	return row.NewKey(r.Table, r.Key...)
}

// Values converts the YAML fields into row values.
func (r Row) Values() (row.Fields, error) {
	f := make(row.Fields, len(r.Fields))
	for name, node := range r.Fields {
		v, err := ScalarValue(&node)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		f[name] = v
	}
	return f, nil
}

// ScalarValue converts one YAML scalar node into a row value. Decoding
// into any would turn timestamps into strings, so they are detected by
// their resolved tag.
func ScalarValue(n *yaml.Node) (row.Value, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("line %d: only scalar values are allowed", n.Line)
	}
	if n.ShortTag() == "!!timestamp" {
		var t time.Time
		if err := n.Decode(&t); err != nil {
			return nil, err
		}
		return row.TimeValue(t), nil
	}
	var raw any
	if err := n.Decode(&raw); err != nil {
		return nil, err
	}
	return row.FromAny(raw)
}

// Fixture is a set of seed rows.
type Fixture struct {
	Rows []Row `yaml:"rows"`
}

// Load reads and validates the fixture at path.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a fixture strictly: unknown keys are errors.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &f, nil
}

// Validate checks every row has a valid key and convertible fields.
func (f *Fixture) Validate() error {
	for i, r := range f.Rows {
		if len(r.Key) == 0 {
			return fmt.Errorf("rows[%d]: key is required", i)
		}
		if err := r.RowKey().Validate(); err != nil {
			return fmt.Errorf("rows[%d]: %w", i, err)
		}
		if _, err := r.Values(); err != nil {
			return fmt.Errorf("rows[%d] (%s): %w", i, r.RowKey(), err)
		}
	}
	return nil
}

// Apply writes every row to s in fixture order, overwriting existing rows,
// and returns how many were written.
func (f *Fixture) Apply(ctx context.Context, s kv.Store) (int, error) {
	for i, r := range f.Rows {
		fields, err := r.Values()
		if err != nil {
			return i, fmt.Errorf("rows[%d]: %w", i, err)
		}
		if err := s.Write(ctx, r.RowKey(), fields); err != nil {
			return i, fmt.Errorf("write %s: %w", r.RowKey(), err)
		}
	}
	return len(f.Rows), nil
}
