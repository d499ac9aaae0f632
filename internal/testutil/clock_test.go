package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock_Fixed(t *testing.T) {
	c := NewFixedClock()
	assert.Equal(t, Epoch, c.Now())
	assert.Equal(t, Epoch, c.Now())
}

func TestDeterministicClock_Steps(t *testing.T) {
	c := NewDeterministicClock(time.Millisecond)
	assert.Equal(t, Epoch, c.Now())
	assert.Equal(t, Epoch.Add(time.Millisecond), c.Now())

	c.Reset()
	assert.Equal(t, Epoch, c.Now())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	c := NewDeterministicClock(time.Microsecond)
	const goroutines, calls = 20, 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				c.Now()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(goroutines*calls*time.Microsecond), c.Now())
}

func TestFixedRunID(t *testing.T) {
	assert.Equal(t, "test-run-default", NewFixedRunID("").Generate())
	g := NewFixedRunID("run-42")
	assert.Equal(t, "run-42", g.Generate())
	assert.Equal(t, "run-42", g.Generate())
}
