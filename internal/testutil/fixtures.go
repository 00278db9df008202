package testutil

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/hedgekit-go/hedgekit"
)

var ErrInvalidArgument = errors.New("invalid argument")
var ErrInvalidState = errors.New("invalid state")
var ErrConnecting = errors.New("connection error")

type CompositeError struct {
	Cause error
}

func (ce *CompositeError) Error() string {
	return "CompositeError"
}

func (ce *CompositeError) Unwrap() error {
	return ce.Cause
}

func NewCompositeError(cause error) *CompositeError {
	return &CompositeError{
		Cause: cause,
	}
}

// GetFn returns a stub operation that returns the result and err.
func GetFn[R any](result R, err error) hedgekit.Operation[R] {
	return func(ctx *hedgekit.Context) (R, error) {
		return result, err
	}
}

// SlowFn returns a stub operation that sleeps for the delay before returning
// the result, returning early with the context error if cancelled first.
func SlowFn[R any](delay time.Duration, result R) hedgekit.Operation[R] {
	return func(ctx *hedgekit.Context) (R, error) {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
			return result, nil
		case <-ctx.Context().Done():
			timer.Stop()
			var zero R
			return zero, ctx.Context().Err()
		}
	}
}

// ErrorNTimesThenReturn returns a stub operation that returns the err
// errorTimes and then returns the results in order.
func ErrorNTimesThenReturn[R any](err error, errorTimes int, results ...R) (fn hedgekit.Operation[R], resetFn func()) {
	errorCounter := 0
	resultIndex := 0
	return func(ctx *hedgekit.Context) (R, error) {
			if errorCounter < errorTimes {
				errorCounter++
				return *(new(R)), err
			} else if resultIndex < len(results) {
				result := results[resultIndex]
				resultIndex++
				return result, nil
			}
			return *(new(R)), nil
		}, func() {
			errorCounter = 0
			resultIndex = 0
		}
}

func MockResponse(statusCode int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, request *http.Request) {
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, body)
	}))
}

func MockDelayedResponse(statusCode int, body string, delay time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, request *http.Request) {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
			w.WriteHeader(statusCode)
			fmt.Fprintf(w, body)
		case <-request.Context().Done():
			timer.Stop()
		}
	}))
}
