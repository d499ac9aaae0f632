package engine

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_DefaultsToNumCPU(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), NewPool(0).Size())
	assert.Equal(t, runtime.NumCPU(), NewPool(-3).Size())
	assert.Equal(t, 4, NewPool(4).Size())
}

func TestFanOut_ResultsInIndexOrder(t *testing.T) {
	p := NewPool(4)
	const n = 20

	outcomes := FanOut(context.Background(), p, n, func(_ context.Context, i int) (int, error) {
		// Later items finish first.
		time.Sleep(time.Duration(n-i) * time.Millisecond)
		return i * 10, nil
	})

	require.Len(t, outcomes, n)
	for i, o := range outcomes {
		assert.NoError(t, o.Err)
		assert.Equal(t, i*10, o.Value)
	}
	assert.NoError(t, FirstError(outcomes))
	assert.Equal(t, 50, Values(outcomes)[5])
}

func TestFanOut_RespectsPoolBound(t *testing.T) {
	p := NewPool(3)
	var running, peak atomic.Int64

	FanOut(context.Background(), p, 12, func(context.Context, int) (struct{}, error) {
		cur := running.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return struct{}{}, nil
	})

	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.Greater(t, peak.Load(), int64(0))
}

func TestFanOut_FailureDoesNotCancelSiblings(t *testing.T) {
	p := NewPool(2)
	boom := errors.New("stock row missing")
	var completed atomic.Int64

	outcomes := FanOut(context.Background(), p, 5, func(_ context.Context, i int) (string, error) {
		if i == 1 || i == 3 {
			return "", boom
		}
		time.Sleep(2 * time.Millisecond)
		completed.Add(1)
		return "ok", nil
	})

	assert.Equal(t, int64(3), completed.Load())
	assert.ErrorIs(t, outcomes[1].Err, boom)
	assert.ErrorIs(t, outcomes[3].Err, boom)
	assert.Equal(t, "ok", outcomes[4].Value)

	err := FirstError(outcomes)
	require.Error(t, err)
	var te *TxnError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrCodeSubOperation, te.Code)
	assert.Contains(t, te.Message, "sub-operation 2 of 5")
	assert.ErrorIs(t, err, boom)
}

func TestFanOut_PanicCaptured(t *testing.T) {
	outcomes := FanOut(context.Background(), NewPool(2), 2, func(_ context.Context, i int) (int, error) {
		if i == 0 {
			panic("bad line")
		}
		return 1, nil
	})

	require.Error(t, outcomes[0].Err)
	assert.Contains(t, outcomes[0].Err.Error(), "bad line")
	assert.NoError(t, outcomes[1].Err)
}

func TestFanOut_ZeroItems(t *testing.T) {
	outcomes := FanOut(context.Background(), NewPool(2), 0, func(context.Context, int) (int, error) {
		t.Fatal("must not be called")
		return 0, nil
	})
	assert.Empty(t, outcomes)
	assert.NoError(t, FirstError(outcomes))
}

func TestFanOut_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := FanOut(ctx, NewPool(1), 3, func(context.Context, int) (int, error) {
		return 1, nil
	})
	for _, o := range outcomes {
		// Acquire on a cancelled context may still succeed when capacity is
		// free; either way every item has a definite outcome.
		if o.Err != nil {
			assert.ErrorIs(t, o.Err, context.Canceled)
		}
	}
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeInvalidInput, CodeOf(InvalidInput("bad")))
	assert.Equal(t, ErrCodeStore, CodeOf(errors.New("disk")))

	sub := FirstError([]Outcome[int]{{Err: InvalidInput("qty")}})
	assert.Equal(t, ErrCodeInvalidInput, CodeOf(sub), "sub-operation reports root cause")

	sub = FirstError([]Outcome[int]{{Err: errors.New("io")}})
	assert.Equal(t, ErrCodeSubOperation, CodeOf(sub))
}
