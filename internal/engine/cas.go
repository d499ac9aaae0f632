package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/row"
)

// ComputeFunc derives the fields to write from the row as just read.
// It must be a pure function of its input: it runs once per attempt. A
// returned error aborts the update without retrying.
type ComputeFunc func(current row.Fields) (row.Fields, error)

// ConflictObserver is notified each time a conditional write is rejected
// because another writer changed the guard field first.
type ConflictObserver interface {
	ObserveConflict(table string)
}

// Update is the outcome of a successful Apply.
type Update struct {
	// Read is the row as read on the attempt that was applied. Callers
	// derive their results from it (the allocated order id is Read's
	// counter value, not the written one).
	Read row.Fields

	// Written is the set of fields the applied attempt wrote.
	Written row.Fields

	// Attempts counts read-compute-write rounds, 1 when uncontended.
	Attempts int
}

// Updater is the optimistic read-compute-conditional-write loop. It holds
// no per-call state and is safe for concurrent use; one Updater is shared
// by every handler.
type Updater struct {
	store      kv.Store
	newBackOff func() backoff.BackOff
	observer   ConflictObserver
}

// UpdaterOption configures an Updater.
type UpdaterOption func(*Updater)

// WithBackoff waits between conflicting attempts using capped exponential
// backoff. The retry count stays unbounded. Without this option retries
// are immediate.
func WithBackoff(initial, max time.Duration) UpdaterOption {
	return func(u *Updater) {
		u.newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = max
			b.MaxElapsedTime = 0
			b.Reset()
			return b
		}
	}
}

// WithConflictObserver registers o for conflict notifications.
func WithConflictObserver(o ConflictObserver) UpdaterOption {
	return func(u *Updater) {
		u.observer = o
	}
}

// NewUpdater creates an Updater over s.
func NewUpdater(s kv.Store, opts ...UpdaterOption) *Updater {
	u := &Updater{store: s}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Apply repeatedly reads the row at key, computes new fields from it and
// conditionally writes them, expecting guard to still hold the value just
// read, until a write is applied.
//
// Only a rejected conditional write causes a retry, and there is no retry
// limit. A read error, a compute error or a write error ends the loop and
// is returned. The context is checked between attempts; an attempt in
// flight always runs to completion.
func (u *Updater) Apply(ctx context.Context, key row.Key, guard string, compute ComputeFunc) (Update, error) {
	var b backoff.BackOff
	if u.newBackOff != nil {
		b = u.newBackOff()
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Update{}, err
		}

		current, err := u.store.ReadRow(ctx, key)
		if err != nil {
			return Update{}, fmt.Errorf("read %s: %w", key, err)
		}

		next, err := compute(current.Clone())
		if err != nil {
			return Update{}, err
		}

		applied, err := u.store.ConditionalWrite(ctx, key, next, guard, current.Get(guard))
		if err != nil {
			return Update{}, fmt.Errorf("conditional write %s: %w", key, err)
		}
		if applied {
			return Update{Read: current, Written: next, Attempts: attempt}, nil
		}

		if u.observer != nil {
			u.observer.ObserveConflict(key.Table)
		}
		slog.Debug("conditional write conflict, retrying",
			"key", key.String(),
			"guard", guard,
			"attempt", attempt,
		)

		if b != nil {
			if err := sleep(ctx, b.NextBackOff()); err != nil {
				return Update{}, err
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
