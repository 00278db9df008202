package util

import (
	"reflect"
)

// AppliesToAny returns whether any of the conditions match the result and err.
func AppliesToAny[R any](conditions []func(result R, err error) bool, result R, err error) bool {
	for _, condition := range conditions {
		if condition(result, err) {
			return true
		}
	}
	return false
}

// ErrorTypesMatch returns whether the err or any of its unwrapped parents have
// the same type as the target. This is similar to the check that errors.As
// performs, without requiring a pointer target.
func ErrorTypesMatch(err error, target any) bool {
	if err == nil || target == nil {
		return false
	}
	targetType := reflect.TypeOf(target)
	for {
		if reflect.TypeOf(err) == targetType {
			return true
		}
		switch unwrapped := err.(type) {
		case interface{ Unwrap() error }:
			if err = unwrapped.Unwrap(); err == nil {
				return false
			}
		case interface{ Unwrap() []error }:
			for _, e := range unwrapped.Unwrap() {
				if ErrorTypesMatch(e, target) {
					return true
				}
			}
			return false
		default:
			return false
		}
	}
}
