package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/wholesale/internal/row"
)

// MemStore is an in-process Store holding canonical row encodings.
// Used for dry runs and tests; nothing survives the process.
type MemStore struct {
	mu   sync.RWMutex
	rows map[string][]byte
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{rows: make(map[string][]byte)}
}

// ReadRow implements Store.
func (m *MemStore) ReadRow(ctx context.Context, key row.Key) (row.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.rows[key.String()]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return row.UnmarshalFields(data)
}

// ConditionalWrite implements Store.
func (m *MemStore) ConditionalWrite(ctx context.Context, key row.Key, fields row.Fields, guard string, expected row.Value) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	k := key.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.rows[k]
	if !ok {
		return false, nil
	}
	current, err := row.UnmarshalFields(data)
	if err != nil {
		return false, err
	}
	if !row.Equal(current.Get(guard), expected) {
		return false, nil
	}
	merged, err := row.MarshalFields(current.Merge(fields))
	if err != nil {
		return false, err
	}
	m.rows[k] = merged
	return true, nil
}

// Write implements Store.
func (m *MemStore) Write(ctx context.Context, key row.Key, fields row.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := key.Validate(); err != nil {
		return err
	}
	data, err := row.MarshalFields(fields)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.rows[key.String()] = data
	m.mu.Unlock()
	return nil
}

// Scan implements Store. Matching rows are snapshotted before the first
// callback so the callback may write to the store.
func (m *MemStore) Scan(ctx context.Context, prefix row.Key, fn ScanFunc) error {
	start, end := prefix.Range()

	m.mu.RLock()
	keys := make([]string, 0)
	for k := range m.rows {
		if k >= start && k < end {
			keys = append(keys, k)
		}
	}
	snapshot := make(map[string][]byte, len(keys))
	for _, k := range keys {
		snapshot[k] = m.rows[k]
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, err := row.ParseKey(k)
		if err != nil {
			return err
		}
		fields, err := row.UnmarshalFields(snapshot[k])
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		if err := fn(key, fields); err != nil {
			if errors.Is(err, ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Len returns the number of rows held.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}
