// Package policy provides base types for building strategy configurations.
package policy

import (
	"errors"
	"reflect"

	"github.com/hedgekit-go/hedgekit/internal/util"
)

// BaseHandlePolicy provides a base for builders that classify which outcomes a
// strategy should handle. By default, when no conditions are configured, any
// error is handled.
type BaseHandlePolicy[S any, R any] struct {
	Self S
	// Indicates whether errors are checked by a configured handle condition
	errorsChecked bool
	// Conditions that determine whether an outcome is handled
	handleConditions []func(result R, err error) bool
}

func (p *BaseHandlePolicy[S, R]) HandleErrors(errs ...error) S {
	for _, target := range errs {
		t := target
		p.handleConditions = append(p.handleConditions, func(r R, actualErr error) bool {
			return errors.Is(actualErr, t)
		})
	}
	p.errorsChecked = true
	return p.Self
}

func (p *BaseHandlePolicy[S, R]) HandleErrorTypes(errs ...any) S {
	for _, target := range errs {
		t := target
		p.handleConditions = append(p.handleConditions, func(r R, actualErr error) bool {
			return util.ErrorTypesMatch(actualErr, t)
		})
	}
	p.errorsChecked = true
	return p.Self
}

func (p *BaseHandlePolicy[S, R]) HandleResult(result R) S {
	p.handleConditions = append(p.handleConditions, func(r R, err error) bool {
		return reflect.DeepEqual(r, result)
	})
	return p.Self
}

func (p *BaseHandlePolicy[S, R]) HandleIf(predicate func(R, error) bool) S {
	p.handleConditions = append(p.handleConditions, predicate)
	p.errorsChecked = true
	return p.Self
}

// IsHandled returns whether the result and err match a configured handle
// condition.
func (p *BaseHandlePolicy[S, R]) IsHandled(result R, err error) bool {
	if len(p.handleConditions) == 0 {
		return err != nil
	}
	if util.AppliesToAny(p.handleConditions, result, err) {
		return true
	}

	// Handle by default if an error exists and was not checked by a condition
	return err != nil && !p.errorsChecked
}
