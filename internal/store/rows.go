package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/row"
)

var _ kv.Store = (*Store)(nil)

// ReadRow implements kv.Store.
func (s *Store) ReadRow(ctx context.Context, key row.Key) (row.Fields, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM rows WHERE tbl = ? AND key = ?`,
		key.Table, key.String(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, kv.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read row %s: %w", key, err)
	}
	return row.UnmarshalFields([]byte(data))
}

// ConditionalWrite implements kv.Store. The guard is compared on the
// canonical encoding inside one transaction.
func (s *Store) ConditionalWrite(ctx context.Context, key row.Key, fields row.Fields, guard string, expected row.Value) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT fields FROM rows WHERE tbl = ? AND key = ?`,
		key.Table, key.String(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read row %s: %w", key, err)
	}

	current, err := row.UnmarshalFields([]byte(data))
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
	if _, err := tx.ExecContext(ctx,
		`UPDATE rows SET fields = ? WHERE tbl = ? AND key = ?`,
		string(merged), key.Table, key.String(),
	); err != nil {
		return false, fmt.Errorf("update row %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// Write implements kv.Store.
func (s *Store) Write(ctx context.Context, key row.Key, fields row.Fields) error {
	if err := key.Validate(); err != nil {
		return err
	}
	data, err := row.MarshalFields(fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rows (tbl, key, fields) VALUES (?, ?, ?)
		ON CONFLICT (tbl, key) DO UPDATE SET fields = excluded.fields
	`, key.Table, key.String(), string(data))
	if err != nil {
		return fmt.Errorf("write row %s: %w", key, err)
	}
	return nil
}

type scannedRow struct {
	key  string
	data string
}

// Scan implements kv.Store. The result set is read fully and closed before
// the first callback, since the single connection is needed for any store
// call the callback makes.
func (s *Store) Scan(ctx context.Context, prefix row.Key, fn kv.ScanFunc) error {
	start, end := prefix.Range()
	rs, err := s.db.QueryContext(ctx, `
		SELECT key, fields FROM rows
		WHERE tbl = ? AND key >= ? AND key < ?
		ORDER BY key ASC
	`, prefix.Table, start, end)
	if err != nil {
		return fmt.Errorf("scan %s: %w", prefix, err)
	}

	var batch []scannedRow
	for rs.Next() {
		var r scannedRow
		if err := rs.Scan(&r.key, &r.data); err != nil {
			rs.Close()
			return fmt.Errorf("scan %s: %w", prefix, err)
		}
		batch = append(batch, r)
	}
	if err := rs.Err(); err != nil {
		rs.Close()
		return fmt.Errorf("scan %s: %w", prefix, err)
	}
	rs.Close()

	for _, r := range batch {
		key, err := row.ParseKey(r.key)
		if err != nil {
			return err
		}
		fields, err := row.UnmarshalFields([]byte(r.data))
		if err != nil {
			return fmt.Errorf("%s: %w", r.key, err)
		}
		if err := fn(key, fields); err != nil {
			if errors.Is(err, kv.ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}
