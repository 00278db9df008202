package hedging

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/sync/semaphore"

	"github.com/hedgekit-go/hedgekit"
	"github.com/hedgekit-go/hedgekit/common"
	"github.com/hedgekit-go/hedgekit/internal/pool"
)

// contextSnapshot captures the caller's context state when an execution begins,
// enabling attempt isolation and restoration when the execution completes.
type contextSnapshot struct {
	originalContext *hedgekit.Context
	originalProps   *hedgekit.Properties
	cancellation    context.Context
}

// executionContext coordinates the racing attempts of a single strategy call:
// it owns the live attempt slots, dispatches primary and hedged loads, and
// provides the wait-for-any-completed primitive. The loop driving a call is
// single-writer; only attempt completions arrive from other goroutines, through
// the completed set and signal.
type executionContext[R any] struct {
	shouldHandle func(R, error) bool
	generator    Generator[R]
	maxAttempts  int
	taskPool     *pool.Pool[*taskExecution[R]]
	sem          *semaphore.Weighted

	snapshot    contextSnapshot
	initialized bool
	// tasks is dense and ordered; the slot ordinal is the attempt number and
	// position 0 is always the primary.
	tasks []*taskExecution[R]

	mu sync.Mutex
	// completed holds the attempt ordinals whose outcomes settled but have not
	// been observed by the loop yet. NextSet yields the lowest such ordinal,
	// which makes completion ties resolve toward the earliest attempt.
	completed *bitset.BitSet
	// signal notifies the loop that some attempt finished; every attempt
	// goroutine and a materialized cancellation send on it, and only the loop
	// receives.
	signal chan struct{}

	// onReset fires after complete finishes draining; set by tests.
	onReset func()
}

// loadResult reports one loadExecution dispatch. When loaded is false and
// outcome is non-nil, a previously loaded attempt already completed and its
// outcome can short-circuit the call.
type loadResult[R any] struct {
	execution *taskExecution[R]
	outcome   *common.Outcome[R]
	loaded    bool
	err       error
}

func newExecutionContext[R any](cfg *config[R], taskPool *pool.Pool[*taskExecution[R]], sem *semaphore.Weighted) *executionContext[R] {
	maxAttempts := cfg.totalAttempts()
	return &executionContext[R]{
		shouldHandle: cfg.IsHandled,
		generator:    cfg.generator,
		maxAttempts:  maxAttempts,
		taskPool:     taskPool,
		sem:          sem,
		completed:    bitset.New(uint(maxAttempts)),
		signal:       make(chan struct{}, 1),
		onReset:      cfg.onContextReset,
	}
}

// initialize captures the snapshot of the parent context and swaps the parent's
// property bag for a clone, so the caller and the racing attempts mutate
// isolated views until complete restores and merges.
func (c *executionContext[R]) initialize(parent *hedgekit.Context) {
	c.snapshot = contextSnapshot{
		originalContext: parent,
		originalProps:   parent.Properties(),
		cancellation:    parent.Context(),
	}
	parent.SwapProperties(c.snapshot.originalProps.Clone())
	select {
	case <-c.signal:
	default:
	}
	c.initialized = true
}

func (c *executionContext[R]) loadedCount() int {
	return len(c.tasks)
}

// loadExecution dispatches the next attempt: the primary on the first call,
// else a hedge produced by the generator. When no attempt can be loaded, the
// earliest completed sibling outcome, if any, is surfaced so the caller can
// short-circuit.
func (c *executionContext[R]) loadExecution(operation hedgekit.Operation[R]) loadResult[R] {
	if !c.initialized || c.maxAttempts == 0 {
		return loadResult[R]{err: ErrNotInitialized}
	}
	if len(c.tasks) >= c.maxAttempts {
		return loadResult[R]{outcome: c.earliestCompletedOutcome()}
	}

	attempt := len(c.tasks)
	child, cancel := c.newChildContext()

	var action Action[R]
	if attempt == 0 || c.generator == nil {
		action = func() (R, error) {
			return operation(child)
		}
	} else {
		action = c.generateAction(ActionArguments[R]{Context: child, Attempt: attempt})
		if action == nil {
			cancel()
			return loadResult[R]{outcome: c.earliestCompletedOutcome()}
		}
	}

	if c.sem != nil {
		if err := c.sem.Acquire(c.snapshot.cancellation, 1); err != nil {
			cancel()
			return loadResult[R]{err: err}
		}
	}

	kind := hedgeAttempt
	if attempt == 0 {
		kind = primaryAttempt
	}
	var onExit func()
	if c.sem != nil {
		onExit = func() { c.sem.Release(1) }
	}
	task := c.taskPool.Rent()
	task.initialize(kind, attempt, child, cancel, action, c.shouldHandle, c.notifyCompleted, onExit)
	c.tasks = append(c.tasks, task)
	return loadResult[R]{execution: task, loaded: true}
}

// generateAction consults the generator, capturing a panic as an action that
// fails the attempt.
func (c *executionContext[R]) generateAction(args ActionArguments[R]) (action Action[R]) {
	defer func() {
		if v := recover(); v != nil {
			err := &PanicError{Value: v}
			action = func() (R, error) {
				var zero R
				return zero, err
			}
		}
	}()
	return c.generator(args)
}

func (c *executionContext[R]) newChildContext() (*hedgekit.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(c.snapshot.cancellation)
	child := hedgekit.NewContextWithProperties(ctx, c.snapshot.originalProps.Clone())
	return child, cancel
}

// notifyCompleted publishes an attempt's settled outcome to the loop.
func (c *executionContext[R]) notifyCompleted(t *taskExecution[R]) {
	c.mu.Lock()
	c.completed.Set(uint(t.attempt))
	c.mu.Unlock()
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// takeCompleted returns the completed attempt with the lowest attempt number
// that has not been observed yet, marking it observed.
func (c *executionContext[R]) takeCompleted() *taskExecution[R] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.completed.NextSet(0); ok {
		c.completed.Clear(i)
		return c.tasks[i]
	}
	return nil
}

// earliestCompletedOutcome returns the outcome of the lowest-numbered attempt
// that has completed, observed or not, else nil.
func (c *executionContext[R]) earliestCompletedOutcome() *common.Outcome[R] {
	for _, t := range c.tasks {
		if outcome, ok := t.completedOutcome(); ok {
			return &outcome
		}
	}
	return nil
}

// tryWaitForCompleted waits at most delay for some attempt to complete and
// returns it, else nil once the delay elapses. A delay of zero polls; a
// negative delay waits indefinitely. If the caller's context is cancelled
// while waiting, a cancelled outcome is materialized in the primary slot and
// the cancellation is returned.
func (c *executionContext[R]) tryWaitForCompleted(delay time.Duration) (*taskExecution[R], error) {
	if t := c.takeCompleted(); t != nil {
		return t, nil
	}
	var timerC <-chan time.Time
	if delay >= 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		timerC = timer.C
	}
	for {
		select {
		case <-c.signal:
			if t := c.takeCompleted(); t != nil {
				return t, nil
			}
		case <-timerC:
			return c.takeCompleted(), nil
		case <-c.snapshot.cancellation.Done():
			return nil, c.materializeCancellation()
		}
	}
}

func (c *executionContext[R]) materializeCancellation() error {
	err := c.snapshot.cancellation.Err()
	if len(c.tasks) > 0 {
		primary := c.tasks[0]
		if primary.trySetOutcome(common.ErrorOutcome[R](err), false) {
			c.notifyCompleted(primary)
		}
	}
	return err
}

// complete finishes the call: it restores the caller's property bag identity,
// merges the accepted attempt's property and event mutations, cancels and
// drains every attempt, and returns all slots to the pool. Calling complete on
// an uninitialized context is a no-op. A call with no accepted attempt
// restores and discards; a call where several attempts were marked accepted
// merges the last one.
func (c *executionContext[R]) complete() {
	if !c.initialized {
		return
	}

	var accepted *taskExecution[R]
	for _, t := range c.tasks {
		if t.accepted {
			accepted = t
		}
	}

	original := c.snapshot.originalContext
	original.SwapProperties(c.snapshot.originalProps)
	if accepted != nil {
		c.snapshot.originalProps.SetAll(accepted.context.Properties())
		for _, event := range accepted.context.Events() {
			original.AddEvent(event)
		}
	}

	for _, t := range c.tasks {
		if !t.accepted {
			t.cancel()
		}
	}
	for _, t := range c.tasks {
		<-t.done
		t.reset()
		c.taskPool.Return(t)
	}

	c.tasks = c.tasks[:0]
	c.mu.Lock()
	c.completed.ClearAll()
	c.mu.Unlock()
	c.snapshot = contextSnapshot{}
	c.initialized = false
	if c.onReset != nil {
		c.onReset()
	}
}
