// Package hedging implements a strategy that races multiple concurrent
// attempts of an operation so that slow or failing attempts are masked by
// faster successful ones. If the initial attempt does not complete within the
// hedging delay, an additional attempt is launched, up to the configured max
// hedges. The first outcome that the strategy does not handle is accepted and
// returned; the remaining attempts are cancelled and drained.
//
// Each attempt runs with an isolated child hedgekit.Context whose cancellation
// is linked to the caller's context. Only the accepted attempt's property and
// event mutations are merged back into the caller's Context.
package hedging

import (
	"errors"
	"fmt"
	"time"

	"github.com/hedgekit-go/hedgekit"
	"github.com/hedgekit-go/hedgekit/common"
	"github.com/hedgekit-go/hedgekit/policy"
)

const (
	// DefaultDelay is the hedging delay used when none is configured.
	DefaultDelay = 2 * time.Second

	// DefaultMaxHedges is the number of hedged attempts allowed in addition to
	// the initial attempt when none is configured.
	DefaultMaxHedges = 1

	// Infinite indicates that no further hedges should be launched and the
	// strategy should wait for the attempts that are already running. Any
	// negative delay is treated the same way.
	Infinite time.Duration = -1
)

// ErrNotInitialized is returned when an execution is loaded on a context that
// was not initialized or that allows no attempts.
var ErrNotInitialized = errors.New("hedging: execution context not initialized")

// DelayFunc returns the delay before the next hedged attempt is launched.
// attempts is the number of attempts already running when the delay is
// computed. Returning Infinite, or any negative duration, stops further hedges
// and waits for the running attempts; returning zero launches the next hedge
// after a single poll.
type DelayFunc func(ctx *hedgekit.Context, attempts int) time.Duration

// Action performs one hedged attempt.
type Action[R any] func() (R, error)

// ActionArguments carries the inputs to a Generator: the attempt ordinal the
// produced action will run as, starting at 1 for the first hedge, and the
// isolated child Context the attempt will run with.
type ActionArguments[R any] struct {
	Context *hedgekit.Context
	Attempt int
}

// Generator produces the action for a hedged attempt, or nil to stop hedging.
// When no Generator is configured, hedged attempts re-run the original
// operation.
type Generator[R any] func(args ActionArguments[R]) Action[R]

// HedgeEvent describes an OnHedge invocation.
type HedgeEvent[R any] struct {
	// Attempt is the zero-based strategy iteration the event belongs to.
	Attempt int
	// HasOutcome indicates whether a handled outcome triggered the hedge. When
	// false, the hedging delay elapsed with no attempt completing and Outcome
	// is unset.
	HasOutcome bool
	Outcome    common.Outcome[R]
	// Elapsed is the time since the iteration started, which equals the full
	// hedging delay when the delay elapsed.
	Elapsed time.Duration
}

// PanicError is the error recorded for an attempt whose action panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("hedging: attempt panicked: %v", e.Value)
}

// Strategy races hedged attempts of an operation according to its
// configuration.
//
// R is the operation result type. This type is concurrency safe.
type Strategy[R any] interface {
	// Execute runs the operation, hedging as configured, and returns the
	// accepted outcome. A nil ctx runs with a fresh background Context.
	Execute(ctx *hedgekit.Context, operation hedgekit.Operation[R]) (R, error)

	// ExecuteOutcome is Execute returning the accepted outcome as a value.
	ExecuteOutcome(ctx *hedgekit.Context, operation hedgekit.Operation[R]) common.Outcome[R]
}

// Builder builds Strategy instances.
//
// R is the operation result type. This type is not concurrency safe.
type Builder[R any] interface {
	// HandleErrors specifies the errors whose outcomes should be raced against.
	// Any error that evaluates to true for errors.Is is handled.
	HandleErrors(errs ...error) Builder[R]

	// HandleErrorTypes specifies the errors whose types should cause an outcome
	// to be raced against. Any execution errors or their Unwrapped parents whose
	// type matches any of the errs' types are handled. This is similar to the
	// check that errors.As performs.
	HandleErrorTypes(errs ...any) Builder[R]

	// HandleResult specifies a result to race against, compared using
	// reflect.DeepEqual.
	HandleResult(result R) Builder[R]

	// HandleIf specifies that an outcome should be raced against if the
	// predicate matches the result or error.
	HandleIf(predicate func(R, error) bool) Builder[R]

	// OnHedge registers the listener to be called when a hedge is about to be
	// attempted, or when a handled outcome was observed and another attempt may
	// still race. Listeners are called strictly in ascending attempt order.
	OnHedge(listener func(HedgeEvent[R])) Builder[R]

	// WithMaxHedges sets the max number of hedged attempts to perform in
	// addition to the initial attempt, which is 1 by default. Negative values
	// are treated as 0, which disables hedging.
	WithMaxHedges(maxHedges int) Builder[R]

	// WithActionGenerator supplies the actions run by hedged attempts. The
	// generator is consulted once per hedge; returning nil stops hedging and
	// leaves the attempts already running to finish.
	WithActionGenerator(generator Generator[R]) Builder[R]

	// WithMaxConcurrentAttempts bounds the number of attempts that may run at
	// the same time across all executions of the strategy. Zero or negative
	// leaves the fan-out unbounded.
	WithMaxConcurrentAttempts(max int) Builder[R]

	// WithTelemetryListener registers a listener that receives a Warning
	// severity "OnHedging" event for each OnHedge invocation.
	WithTelemetryListener(listener hedgekit.TelemetryListener) Builder[R]

	// Build returns a new Strategy using the builder's configuration.
	Build() Strategy[R]
}

type config[R any] struct {
	policy.BaseHandlePolicy[Builder[R], R]

	delay          time.Duration
	delayFunc      DelayFunc
	maxHedges      int
	maxConcurrency int
	generator      Generator[R]
	onHedge        func(HedgeEvent[R])
	telemetry      hedgekit.TelemetryListener

	// Reset hooks for observing pooled slots draining; set by tests.
	onTaskReset    func()
	onContextReset func()
}

var _ Builder[any] = &config[any]{}

// NewWithDelay returns a Strategy for operation result type R that launches a
// single hedged attempt if the initial attempt is not done once the delay
// elapses.
func NewWithDelay[R any](delay time.Duration) Strategy[R] {
	return BuilderWithDelay[R](delay).Build()
}

// NewBuilder returns a Builder with the default hedging delay.
func NewBuilder[R any]() Builder[R] {
	return BuilderWithDelay[R](DefaultDelay)
}

// BuilderWithDelay returns a Builder for operation result type R and the
// delay between attempt launches.
func BuilderWithDelay[R any](delay time.Duration) Builder[R] {
	c := &config[R]{
		delay:     delay,
		maxHedges: DefaultMaxHedges,
	}
	c.Self = c
	return c
}

// BuilderWithDelayFunc returns a Builder for operation result type R whose
// delay between attempt launches is computed per attempt by delayFunc.
func BuilderWithDelayFunc[R any](delayFunc DelayFunc) Builder[R] {
	c := &config[R]{
		delay:     DefaultDelay,
		delayFunc: delayFunc,
		maxHedges: DefaultMaxHedges,
	}
	c.Self = c
	return c
}

func (c *config[R]) OnHedge(listener func(HedgeEvent[R])) Builder[R] {
	c.onHedge = listener
	return c
}

func (c *config[R]) WithMaxHedges(maxHedges int) Builder[R] {
	c.maxHedges = max(0, maxHedges)
	return c
}

func (c *config[R]) WithActionGenerator(generator Generator[R]) Builder[R] {
	c.generator = generator
	return c
}

func (c *config[R]) WithMaxConcurrentAttempts(maxConcurrent int) Builder[R] {
	c.maxConcurrency = maxConcurrent
	return c
}

func (c *config[R]) WithTelemetryListener(listener hedgekit.TelemetryListener) Builder[R] {
	c.telemetry = listener
	return c
}

func (c *config[R]) Build() Strategy[R] {
	s := &hedgingStrategy[R]{
		config: *c,
	}
	s.config.Self = &s.config
	s.controller = newController[R](&s.config)
	return s
}

// delayFor returns the delay before launching the next hedge, given the number
// of attempts already running.
func (c *config[R]) delayFor(ctx *hedgekit.Context, attempts int) time.Duration {
	if c.delayFunc != nil {
		return c.delayFunc(ctx, attempts)
	}
	return c.delay
}

func (c *config[R]) totalAttempts() int {
	return c.maxHedges + 1
}
