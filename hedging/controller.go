package hedging

import (
	"golang.org/x/sync/semaphore"

	"github.com/hedgekit-go/hedgekit"
	"github.com/hedgekit-go/hedgekit/internal/pool"
)

// maxPooledContexts bounds the per-strategy free-list of execution contexts.
// The attempt slot free-list scales with the configured fan-out.
const maxPooledContexts = 4

// controller owns the pools for a strategy instance and hands out
// per-call execution contexts.
type controller[R any] struct {
	contextPool *pool.Pool[*executionContext[R]]
	taskPool    *pool.Pool[*taskExecution[R]]
	sem         *semaphore.Weighted
}

func newController[R any](cfg *config[R]) *controller[R] {
	c := &controller[R]{}
	if cfg.maxConcurrency > 0 {
		c.sem = semaphore.NewWeighted(int64(cfg.maxConcurrency))
	}
	c.taskPool = pool.New(cfg.totalAttempts()*maxPooledContexts,
		func() *taskExecution[R] {
			t := &taskExecution[R]{}
			if cfg.onTaskReset != nil {
				hook := cfg.onTaskReset
				t.onReset = func(*taskExecution[R]) { hook() }
			}
			return t
		},
		// Only fully cleared slots may be reused.
		func(t *taskExecution[R]) bool { return t.done == nil && !t.accepted },
	)
	c.contextPool = pool.New(maxPooledContexts,
		func() *executionContext[R] { return newExecutionContext[R](cfg, c.taskPool, c.sem) },
		func(ec *executionContext[R]) bool { return !ec.initialized },
	)
	return c
}

// getContext rents an execution context and initializes it against the parent.
func (c *controller[R]) getContext(parent *hedgekit.Context) *executionContext[R] {
	ec := c.contextPool.Rent()
	ec.initialize(parent)
	return ec
}

// releaseContext completes the context, draining its attempts, and returns it
// to the pool.
func (c *controller[R]) releaseContext(ec *executionContext[R]) {
	ec.complete()
	c.contextPool.Return(ec)
}
