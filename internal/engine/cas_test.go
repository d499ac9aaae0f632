package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/row"
)

// interferingStore bumps the guard field behind the caller's back before
// each of the first n conditional writes, forcing genuine conflicts.
type interferingStore struct {
	kv.Store
	remaining atomic.Int64
	guard     string
}

func (s *interferingStore) ConditionalWrite(ctx context.Context, key row.Key, fields row.Fields, guard string, expected row.Value) (bool, error) {
	if s.remaining.Add(-1) >= 0 {
		cur, err := s.Store.ReadRow(ctx, key)
		if err != nil {
			return false, err
		}
		n, _ := cur.Int(s.guard)
		if err := s.Store.Write(ctx, key, cur.Merge(row.Fields{s.guard: row.Int(n + 1)})); err != nil {
			return false, err
		}
	}
	return s.Store.ConditionalWrite(ctx, key, fields, guard, expected)
}

// rejectingStore never applies a conditional write.
type rejectingStore struct {
	kv.Store
	calls atomic.Int64
}

func (s *rejectingStore) ConditionalWrite(context.Context, row.Key, row.Fields, string, row.Value) (bool, error) {
	s.calls.Add(1)
	return false, nil
}

type countingObserver struct {
	mu     sync.Mutex
	tables map[string]int
}

func (o *countingObserver) ObserveConflict(table string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tables == nil {
		o.tables = make(map[string]int)
	}
	o.tables[table]++
}

func increment(field string) ComputeFunc {
	return func(cur row.Fields) (row.Fields, error) {
		n, err := cur.Int(field)
		if err != nil {
			return nil, err
		}
		return row.Fields{field: row.Int(n + 1)}, nil
	}
}

func seedCounter(t *testing.T, s kv.Store, key row.Key, field string, v int64) {
	t.Helper()
	require.NoError(t, s.Write(context.Background(), key, row.Fields{field: row.Int(v), "d_tax": row.MustDecimal("0.05")}))
}

func TestUpdater_ApplyUncontended(t *testing.T) {
	s := kv.NewMemStore()
	key := row.NewKey("district", 1, 1)
	seedCounter(t, s, key, "d_next_o_id", 3001)

	u := NewUpdater(s)
	upd, err := u.Apply(context.Background(), key, "d_next_o_id", increment("d_next_o_id"))
	require.NoError(t, err)

	assert.Equal(t, 1, upd.Attempts)
	id, _ := upd.Read.Int("d_next_o_id")
	assert.Equal(t, int64(3001), id, "read value is the pre-increment counter")
	tax, _ := upd.Read.Decimal("d_tax")
	assert.Equal(t, "0.05", tax.String())

	got, err := s.ReadRow(context.Background(), key)
	require.NoError(t, err)
	next, _ := got.Int("d_next_o_id")
	assert.Equal(t, int64(3002), next)
}

func TestUpdater_RetriesOnConflictAndReturnsWinningRead(t *testing.T) {
	mem := kv.NewMemStore()
	key := row.NewKey("stock", 1, 10)
	seedCounter(t, mem, key, "s_order_cnt", 0)

	s := &interferingStore{Store: mem, guard: "s_order_cnt"}
	s.remaining.Store(2)
	obs := &countingObserver{}

	u := NewUpdater(s, WithConflictObserver(obs))
	upd, err := u.Apply(context.Background(), key, "s_order_cnt", increment("s_order_cnt"))
	require.NoError(t, err)

	assert.Equal(t, 3, upd.Attempts)
	read, _ := upd.Read.Int("s_order_cnt")
	assert.Equal(t, int64(2), read, "two interfering writes happened before the winning read")
	assert.Equal(t, 2, obs.tables["stock"])

	got, _ := mem.ReadRow(context.Background(), key)
	final, _ := got.Int("s_order_cnt")
	assert.Equal(t, int64(3), final, "winning compute applied to the value current at that attempt")
}

func TestUpdater_ConcurrentNoLostUpdates(t *testing.T) {
	s := kv.NewMemStore()
	key := row.NewKey("district", 1, 1)
	seedCounter(t, s, key, "d_next_o_id", 1)

	u := NewUpdater(s)
	const callers, perCaller = 16, 40

	var mu sync.Mutex
	allocated := make(map[int64]bool)
	var wg sync.WaitGroup
	for c := 0; c < callers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perCaller; i++ {
				upd, err := u.Apply(context.Background(), key, "d_next_o_id", increment("d_next_o_id"))
				if !assert.NoError(t, err) {
					return
				}
				id, _ := upd.Read.Int("d_next_o_id")
				mu.Lock()
				assert.False(t, allocated[id], "id %d allocated twice", id)
				allocated[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, allocated, callers*perCaller)
	got, _ := s.ReadRow(context.Background(), key)
	next, _ := got.Int("d_next_o_id")
	assert.Equal(t, int64(1+callers*perCaller), next)
	for id := int64(1); id <= callers*perCaller; id++ {
		assert.True(t, allocated[id], "id %d never allocated", id)
	}
}

func TestUpdater_ComputeErrorAbortsWithoutRetry(t *testing.T) {
	s := kv.NewMemStore()
	key := row.NewKey("stock", 1, 1)
	seedCounter(t, s, key, "s_order_cnt", 5)

	calls := 0
	reject := errors.New("bad quantity")
	u := NewUpdater(s)
	_, err := u.Apply(context.Background(), key, "s_order_cnt", func(row.Fields) (row.Fields, error) {
		calls++
		return nil, reject
	})

	assert.ErrorIs(t, err, reject)
	assert.Equal(t, 1, calls)

	got, _ := s.ReadRow(context.Background(), key)
	n, _ := got.Int("s_order_cnt")
	assert.Equal(t, int64(5), n, "row untouched")
}

func TestUpdater_MissingRow(t *testing.T) {
	u := NewUpdater(kv.NewMemStore())
	_, err := u.Apply(context.Background(), row.NewKey("customer", 1, 1, 1), "c_payment_cnt", increment("c_payment_cnt"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestUpdater_ContextCancelledBetweenAttempts(t *testing.T) {
	mem := kv.NewMemStore()
	key := row.NewKey("warehouse", 1)
	seedCounter(t, mem, key, "w_ytd", 0)

	s := &rejectingStore{Store: mem}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	u := NewUpdater(s, WithBackoff(time.Millisecond, 5*time.Millisecond))
	_, err := u.Apply(ctx, key, "w_ytd", increment("w_ytd"))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, s.calls.Load(), int64(1), "retried until cancelled")
}

func TestUpdater_BackoffStillConverges(t *testing.T) {
	mem := kv.NewMemStore()
	key := row.NewKey("stock", 2, 2)
	seedCounter(t, mem, key, "s_order_cnt", 0)

	s := &interferingStore{Store: mem, guard: "s_order_cnt"}
	s.remaining.Store(3)

	u := NewUpdater(s, WithBackoff(time.Millisecond, 2*time.Millisecond))
	upd, err := u.Apply(context.Background(), key, "s_order_cnt", increment("s_order_cnt"))
	require.NoError(t, err)
	assert.Equal(t, 4, upd.Attempts)
}
