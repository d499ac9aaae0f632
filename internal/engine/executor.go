package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many fan-out items run at once across the whole process.
// A single Pool is created at startup and shared by every handler; its
// size is a throughput knob, never a correctness parameter.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool creates a pool admitting size concurrent items. A size below 1
// selects runtime.NumCPU().
func NewPool(size int) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the pool's concurrency bound.
func (p *Pool) Size() int {
	return p.size
}

// Outcome is the captured result of one fan-out item.
type Outcome[T any] struct {
	Value T
	Err   error
}

// FanOut runs fn for indexes 0..n-1 concurrently, at most p.Size() at a
// time, and returns once every item has finished. outcomes[i] always holds
// item i's result, whatever order items complete in.
//
// One item's failure does not cancel its siblings: each error (including a
// recovered panic) is captured in its own Outcome and the caller decides
// what a partial failure means. Items must not call FanOut on the same
// pool, which could exhaust it.
func FanOut[T any](ctx context.Context, p *Pool, n int, fn func(ctx context.Context, i int) (T, error)) []Outcome[T] {
	outcomes := make([]Outcome[T], n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.sem.Acquire(ctx, 1); err != nil {
				outcomes[i].Err = err
				return
			}
			defer p.sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					outcomes[i].Err = fmt.Errorf("sub-operation %d panicked: %v", i, r)
				}
			}()
			outcomes[i].Value, outcomes[i].Err = fn(ctx, i)
		}()
	}
	wg.Wait()
	return outcomes
}

// FirstError returns the lowest-index failure as a SUBOPERATION_FAILED
// TxnError, or nil if every item succeeded.
func FirstError[T any](outcomes []Outcome[T]) error {
	for i, o := range outcomes {
		if o.Err != nil {
			return &TxnError{
				Code:    ErrCodeSubOperation,
				Message: fmt.Sprintf("sub-operation %d of %d failed", i+1, len(outcomes)),
				Err:     o.Err,
			}
		}
	}
	return nil
}

// Values returns every item's value in index order.
func Values[T any](outcomes []Outcome[T]) []T {
	out := make([]T, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Value
	}
	return out
}
