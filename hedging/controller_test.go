package hedging

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgekit-go/hedgekit"
	"github.com/hedgekit-go/hedgekit/internal/testutil"
)

func TestGetContextInitializesRentedContext(t *testing.T) {
	cfg := testConfig(1)
	c := newController(cfg)
	parent := hedgekit.NewContext(context.Background())

	ec := c.getContext(parent)

	assert.True(t, ec.initialized)
	assert.Same(t, parent, ec.snapshot.originalContext)

	c.releaseContext(ec)
	assert.False(t, ec.initialized)
	// The released context is reused
	assert.Same(t, ec, c.getContext(hedgekit.NewContext(context.Background())))
}

// Every attempt slot rented during an execution must be reset and returned.
func TestAllSlotsReturnedAfterExecution(t *testing.T) {
	var taskResets atomic.Int32
	var contextResets atomic.Int32
	b := BuilderWithDelay[string](10 * time.Millisecond).WithMaxHedges(2)
	cfg := b.(*config[string])
	cfg.onTaskReset = func() {
		taskResets.Add(1)
	}
	cfg.onContextReset = func() {
		contextResets.Add(1)
	}
	s := b.Build()

	var invocations atomic.Int32
	result, err := s.Execute(nil, func(ctx *hedgekit.Context) (string, error) {
		if invocations.Add(1) == 1 {
			return "primary", nil
		}
		return "hedge", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "primary", result)
	assert.Equal(t, int32(1), taskResets.Load())
	assert.Equal(t, int32(1), contextResets.Load())
}

func TestSlotsReturnedWhenAllAttemptsRace(t *testing.T) {
	var taskResets atomic.Int32
	b := BuilderWithDelay[string](5 * time.Millisecond).WithMaxHedges(2)
	cfg := b.(*config[string])
	cfg.onTaskReset = func() {
		taskResets.Add(1)
	}
	s := b.Build()

	result, err := s.Execute(nil, testutil.SlowFn(100*time.Millisecond, "slow"))

	require.NoError(t, err)
	assert.Equal(t, "slow", result)
	assert.Equal(t, int32(3), taskResets.Load())
}

func TestMaxConcurrentAttemptsBoundsFanOut(t *testing.T) {
	var running atomic.Int32
	var peak atomic.Int32
	s := BuilderWithDelay[string](time.Millisecond).
		WithMaxHedges(3).
		WithMaxConcurrentAttempts(2).
		Build()

	result, err := s.Execute(nil, func(ctx *hedgekit.Context) (string, error) {
		current := running.Add(1)
		defer running.Add(-1)
		for {
			observed := peak.Load()
			if current <= observed || peak.CompareAndSwap(observed, current) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		return "done", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestConcurrentExecutionsShareController(t *testing.T) {
	s := NewWithDelay[string](time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.Execute(nil, testutil.SlowFn(10*time.Millisecond, "ok"))
			assert.NoError(t, err)
			assert.Equal(t, "ok", result)
		}()
	}
	wg.Wait()
}
