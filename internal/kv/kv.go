// Package kv defines the contract the transaction engine consumes from a
// data store: read by key, conditional write by key, unconditional write and
// ordered prefix scan. Any store offering compare-and-swap on a row field
// satisfies it.
//
// Implementations: MemStore (this package), store.Store (SQLite) and
// cassandra.Store (lightweight transactions).
package kv

import (
	"context"
	"errors"

	"github.com/roach88/wholesale/internal/row"
)

// ErrNotFound is returned by ReadRow when no row exists at the key.
var ErrNotFound = errors.New("row not found")

// ErrStopScan may be returned by a Scan callback to end the scan early
// without error.
var ErrStopScan = errors.New("stop scan")

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ScanFunc receives rows in key order.
type ScanFunc func(key row.Key, fields row.Fields) error

// Store is safe for concurrent use by any number of goroutines.
type Store interface {
	// ReadRow returns the row at key, or ErrNotFound.
	ReadRow(ctx context.Context, key row.Key) (row.Fields, error)

	// ConditionalWrite merges fields into the row at key only if the row
	// exists and its current value of guard equals expected (an absent field
	// equals Null). It reports whether the write was applied. The comparison
	// and write are atomic with respect to every other ConditionalWrite on
	// the same key.
	ConditionalWrite(ctx context.Context, key row.Key, fields row.Fields, guard string, expected row.Value) (bool, error)

	// Write inserts or fully replaces the row at key.
	Write(ctx context.Context, key row.Key, fields row.Fields) error

	// Scan visits every row strictly under prefix in key order. The callback
	// may call back into the store. Returning ErrStopScan ends the scan with
	// a nil error; any other error ends it and is returned.
	Scan(ctx context.Context, prefix row.Key, fn ScanFunc) error
}
