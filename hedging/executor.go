package hedging

import (
	"time"

	"github.com/hedgekit-go/hedgekit"
	"github.com/hedgekit-go/hedgekit/common"
)

// hedgingStrategy drives the launch, wait, judge loop over an execution
// context rented from its controller.
type hedgingStrategy[R any] struct {
	config[R]
	controller *controller[R]
}

var _ Strategy[any] = &hedgingStrategy[any]{}

func (s *hedgingStrategy[R]) Execute(ctx *hedgekit.Context, operation hedgekit.Operation[R]) (R, error) {
	outcome := s.ExecuteOutcome(ctx, operation)
	return outcome.Result, outcome.Err
}

func (s *hedgingStrategy[R]) ExecuteOutcome(parent *hedgekit.Context, operation hedgekit.Operation[R]) common.Outcome[R] {
	if parent == nil {
		parent = hedgekit.NewContext(nil)
	}

	// The cancellation observed by the loop is the one captured here; attempts
	// receive child contexts linked to it.
	captured := parent.Context()
	execCtx := s.controller.getContext(parent)
	defer s.controller.releaseContext(execCtx)

	var lastOutcome *common.Outcome[R]
	for attempt := 0; ; attempt++ {
		iterationStart := time.Now()
		if err := captured.Err(); err != nil {
			return common.ErrorOutcome[R](err)
		}

		load := execCtx.loadExecution(operation)
		if load.err != nil {
			return common.ErrorOutcome[R](load.err)
		}
		if load.outcome != nil {
			// No further attempt could start and a sibling already completed.
			return *load.outcome
		}
		if !load.loaded && execCtx.loadedCount() == 0 {
			// Nothing is running and nothing can start.
			if lastOutcome != nil {
				return *lastOutcome
			}
			return common.ErrorOutcome[R](ErrNotInitialized)
		}

		// A finite wait is only useful while another hedge could still launch;
		// once the fan-out is exhausted, or the generator declined, wait for
		// the running attempts.
		canHedge := load.loaded && execCtx.loadedCount() < s.config.totalAttempts()
		delay := Infinite
		if canHedge {
			delay = s.config.delayFor(parent, execCtx.loadedCount())
		}

		winner, err := execCtx.tryWaitForCompleted(delay)
		if err != nil {
			return common.ErrorOutcome[R](err)
		}
		if winner == nil {
			// The hedging delay elapsed; announce and launch the next hedge.
			s.reportHedge(HedgeEvent[R]{Attempt: attempt, Elapsed: delay})
			continue
		}

		outcome, _ := winner.completedOutcome()
		if !winner.isHandled() {
			winner.acceptOutcome()
			return outcome
		}

		lastOutcome = &outcome
		if canHedge {
			s.reportHedge(HedgeEvent[R]{
				Attempt:    attempt,
				HasOutcome: true,
				Outcome:    outcome,
				Elapsed:    time.Since(iterationStart),
			})
		}
	}
}

// reportHedge publishes an OnHedging telemetry event and calls the OnHedge
// listener.
func (s *hedgingStrategy[R]) reportHedge(event HedgeEvent[R]) {
	if s.config.telemetry != nil {
		s.config.telemetry.OnEvent(hedgekit.Event{
			Name:     "OnHedging",
			Severity: hedgekit.SeverityWarning,
			Payload:  event,
		})
	}
	if s.config.onHedge != nil {
		s.config.onHedge(event)
	}
}
