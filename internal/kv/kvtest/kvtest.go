// Package kvtest is a conformance suite every kv.Store implementation runs
// from its own tests.
package kvtest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/row"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) kv.Store

// Run executes the full contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("ReadMissing", func(t *testing.T) { testReadMissing(t, newStore(t)) })
	t.Run("WriteOverwrites", func(t *testing.T) { testWriteOverwrites(t, newStore(t)) })
	t.Run("ConditionalWrite", func(t *testing.T) { testConditionalWrite(t, newStore(t)) })
	t.Run("ConditionalWriteNullGuard", func(t *testing.T) { testConditionalWriteNullGuard(t, newStore(t)) })
	t.Run("ConditionalWriteAbsentGuard", func(t *testing.T) { testConditionalWriteAbsentGuard(t, newStore(t)) })
	t.Run("ConditionalWriteMissingRow", func(t *testing.T) { testConditionalWriteMissingRow(t, newStore(t)) })
	t.Run("ScanOrderAndPrefix", func(t *testing.T) { testScanOrderAndPrefix(t, newStore(t)) })
	t.Run("ScanStopAndReentry", func(t *testing.T) { testScanStopAndReentry(t, newStore(t)) })
	t.Run("ConcurrentConditionalWrites", func(t *testing.T) { testConcurrentConditionalWrites(t, newStore(t)) })
}

func testReadMissing(t *testing.T, s kv.Store) {
	_, err := s.ReadRow(context.Background(), row.NewKey("item", 1))
	require.Error(t, err)
	assert.True(t, kv.IsNotFound(err))
}

func testWriteOverwrites(t *testing.T, s kv.Store) {
	ctx := context.Background()
	key := row.NewKey("item", 1)

	require.NoError(t, s.Write(ctx, key, row.Fields{"i_name": row.String("a"), "i_price": row.MustDecimal("1.50")}))
	require.NoError(t, s.Write(ctx, key, row.Fields{"i_name": row.String("b")}))

	got, err := s.ReadRow(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, row.Fields{"i_name": row.String("b")}, got)
}

func testConditionalWrite(t *testing.T, s kv.Store) {
	ctx := context.Background()
	key := row.NewKey("district", 1, 1)
	require.NoError(t, s.Write(ctx, key, row.Fields{
		"d_next_o_id": row.Int(5),
		"d_tax":       row.MustDecimal("0.1000"),
	}))

	applied, err := s.ConditionalWrite(ctx, key, row.Fields{"d_next_o_id": row.Int(6)}, "d_next_o_id", row.Int(4))
	require.NoError(t, err)
	assert.False(t, applied, "stale expectation must not apply")

	applied, err = s.ConditionalWrite(ctx, key, row.Fields{"d_next_o_id": row.Int(6)}, "d_next_o_id", row.Int(5))
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := s.ReadRow(ctx, key)
	require.NoError(t, err)
	next, err := got.Int("d_next_o_id")
	require.NoError(t, err)
	assert.Equal(t, int64(6), next)

	tax, err := got.Decimal("d_tax")
	require.NoError(t, err)
	assert.Equal(t, "0.1000", tax.String(), "unwritten fields are kept")
}

func testConditionalWriteNullGuard(t *testing.T, s kv.Store) {
	ctx := context.Background()
	key := row.NewKey("order", 1, 1, 1)
	require.NoError(t, s.Write(ctx, key, row.Fields{"o_carrier_id": row.Null{}, "o_c_id": row.Int(3)}))

	applied, err := s.ConditionalWrite(ctx, key, row.Fields{"o_carrier_id": row.Int(7)}, "o_carrier_id", row.Null{})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.ConditionalWrite(ctx, key, row.Fields{"o_carrier_id": row.Int(8)}, "o_carrier_id", row.Null{})
	require.NoError(t, err)
	assert.False(t, applied, "carrier already set")

	got, err := s.ReadRow(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, row.Int(7), got["o_carrier_id"])
}

func testConditionalWriteAbsentGuard(t *testing.T, s kv.Store) {
	ctx := context.Background()
	key := row.NewKey("order", 1, 1, 2)
	require.NoError(t, s.Write(ctx, key, row.Fields{"o_c_id": row.Int(3)}))

	applied, err := s.ConditionalWrite(ctx, key, row.Fields{"o_carrier_id": row.Int(4)}, "o_carrier_id", row.Null{})
	require.NoError(t, err)
	assert.True(t, applied, "absent field equals Null")

	applied, err = s.ConditionalWrite(ctx, key, row.Fields{"o_c_id": row.Int(5)}, "o_carrier_id", row.Null{})
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := s.ReadRow(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, row.Int(4), got["o_carrier_id"])
	assert.Equal(t, row.Int(3), got["o_c_id"])
}

func testConditionalWriteMissingRow(t *testing.T, s kv.Store) {
	applied, err := s.ConditionalWrite(context.Background(), row.NewKey("stock", 9, 9),
		row.Fields{"s_quantity": row.Int(1)}, "s_order_cnt", row.Null{})
	require.NoError(t, err)
	assert.False(t, applied)
}

func testScanOrderAndPrefix(t *testing.T, s kv.Store) {
	ctx := context.Background()
	for _, parts := range [][]int64{{1, 2, 10}, {1, 2, 2}, {1, 3, 1}, {2, 2, 1}, {1, 2, 1}} {
		require.NoError(t, s.Write(ctx, row.NewKey("order", parts...), row.Fields{"o_id": row.Int(parts[2])}))
	}
	require.NoError(t, s.Write(ctx, row.NewKey("order_line", 1, 2, 1, 1), row.Fields{"ol_number": row.Int(1)}))

	var got [][]int64
	err := s.Scan(ctx, row.NewKey("order", 1, 2), func(k row.Key, f row.Fields) error {
		got = append(got, k.Parts)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{1, 2, 1}, {1, 2, 2}, {1, 2, 10}}, got)

	count := 0
	require.NoError(t, s.Scan(ctx, row.NewKey("order"), func(k row.Key, f row.Fields) error {
		assert.Equal(t, "order", k.Table)
		count++
		return nil
	}))
	assert.Equal(t, 5, count)
}

func testScanStopAndReentry(t *testing.T, s kv.Store) {
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, s.Write(ctx, row.NewKey("item", i), row.Fields{"i_im_id": row.Int(i)}))
	}

	seen := 0
	err := s.Scan(ctx, row.NewKey("item"), func(k row.Key, f row.Fields) error {
		seen++
		// Reads and writes from inside the callback must not deadlock.
		_, err := s.ReadRow(ctx, k)
		require.NoError(t, err)
		require.NoError(t, s.Write(ctx, k, f.Merge(row.Fields{"seen": row.Bool(true)})))
		if seen == 3 {
			return kv.ErrStopScan
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)

	boom := errors.New("boom")
	err = s.Scan(ctx, row.NewKey("item"), func(row.Key, row.Fields) error { return boom })
	assert.ErrorIs(t, err, boom)
}

// testConcurrentConditionalWrites increments one counter from many
// goroutines with read-compare-write loops. Every increment must survive.
func testConcurrentConditionalWrites(t *testing.T, s kv.Store) {
	ctx := context.Background()
	key := row.NewKey("stock", 1, 1)
	require.NoError(t, s.Write(ctx, key, row.Fields{"s_order_cnt": row.Int(0)}))

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				for {
					cur, err := s.ReadRow(ctx, key)
					if !assert.NoError(t, err) {
						return
					}
					n, _ := cur.Int("s_order_cnt")
					ok, err := s.ConditionalWrite(ctx, key, row.Fields{"s_order_cnt": row.Int(n + 1)}, "s_order_cnt", cur.Get("s_order_cnt"))
					if !assert.NoError(t, err) {
						return
					}
					if ok {
						break
					}
				}
			}
		}()
	}
	wg.Wait()

	got, err := s.ReadRow(ctx, key)
	require.NoError(t, err)
	n, err := got.Int("s_order_cnt")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), n)
}
