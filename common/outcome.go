package common

// Outcome represents the result of one execution attempt: either a successful
// result of type R or an error. An Outcome is immutable once produced.
type Outcome[R any] struct {
	Result R
	Err    error
}

// NewOutcome returns an Outcome for the result.
func NewOutcome[R any](result R) Outcome[R] {
	return Outcome[R]{Result: result}
}

// ErrorOutcome returns an Outcome for the err.
func ErrorOutcome[R any](err error) Outcome[R] {
	return Outcome[R]{Err: err}
}

// IsError returns whether the outcome carries an error.
func (o Outcome[R]) IsError() bool {
	return o.Err != nil
}
