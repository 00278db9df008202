package hedging

import (
	"context"
	"sync"

	"github.com/hedgekit-go/hedgekit"
	"github.com/hedgekit-go/hedgekit/common"
)

type attemptKind int

const (
	primaryAttempt attemptKind = iota
	hedgeAttempt
)

// taskExecution is one racing attempt. It owns a child cancellation context, an
// isolated clone of the caller's properties via its child hedgekit.Context, and
// the settled outcome of the attempt. Slots are pooled; reset returns a slot to
// the state of a freshly constructed one.
type taskExecution[R any] struct {
	kind    attemptKind
	attempt int
	context *hedgekit.Context
	cancel  context.CancelFunc

	// done is closed when the attempt goroutine exits, whether or not its
	// outcome was the one that settled.
	done chan struct{}

	mu        sync.Mutex
	completed bool
	outcome   common.Outcome[R]
	handled   bool

	// accepted marks the winning attempt. Written and read only by the
	// goroutine driving the strategy loop.
	accepted bool

	// onReset fires at the start of reset; set by tests. Survives reset so a
	// pooled slot keeps reporting drains across reuse.
	onReset func(*taskExecution[R])
}

// initialize prepares the slot for an attempt and starts the action on its own
// goroutine. The goroutine never panics out: action panics are captured into
// the outcome. notify is called once when this goroutine's outcome settles;
// onExit, if non-nil, runs when the goroutine exits regardless of which outcome
// settled.
func (t *taskExecution[R]) initialize(kind attemptKind, attempt int, child *hedgekit.Context, cancel context.CancelFunc,
	action Action[R], shouldHandle func(R, error) bool, notify func(*taskExecution[R]), onExit func()) {
	t.kind = kind
	t.attempt = attempt
	t.context = child
	t.cancel = cancel
	t.done = make(chan struct{})

	go func() {
		if onExit != nil {
			defer onExit()
		}
		defer close(t.done)
		result, err := runAction(action)
		if t.trySetOutcome(common.Outcome[R]{Result: result, Err: err}, shouldHandle(result, err)) {
			notify(t)
		}
	}()
}

// runAction invokes the action, capturing a panic as an error.
func runAction[R any](action Action[R]) (result R, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v}
		}
	}()
	return action()
}

// trySetOutcome settles the attempt's outcome, returning false if an outcome
// was already settled. The first writer wins; a cancellation materialized by a
// waiter and the attempt's own result race through here.
func (t *taskExecution[R]) trySetOutcome(outcome common.Outcome[R], handled bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		return false
	}
	t.completed = true
	t.outcome = outcome
	t.handled = handled
	return true
}

// completedOutcome returns the settled outcome, if any.
func (t *taskExecution[R]) completedOutcome() (common.Outcome[R], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome, t.completed
}

func (t *taskExecution[R]) isCompleted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

func (t *taskExecution[R]) isHandled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handled
}

// acceptOutcome marks this attempt as the winner. No other side effect.
func (t *taskExecution[R]) acceptOutcome() {
	t.accepted = true
}

// reset clears the slot for reuse. The attempt goroutine must have exited.
func (t *taskExecution[R]) reset() {
	if t.onReset != nil {
		t.onReset(t)
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.kind = primaryAttempt
	t.attempt = 0
	t.context = nil
	t.cancel = nil
	t.done = nil
	t.accepted = false
	t.mu.Lock()
	t.completed = false
	t.outcome = common.Outcome[R]{}
	t.handled = false
	t.mu.Unlock()
}
