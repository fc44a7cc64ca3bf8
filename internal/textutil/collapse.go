package textutil

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIterationLimitExceeded marks loops that hit their configured iteration cap.
var ErrIterationLimitExceeded = errors.New("iteration limit exceeded")

// IterationLimitExceededError reports the operation and cap that were exceeded.
type IterationLimitExceededError struct {
	Operation string
	Limit     int
}

func (e *IterationLimitExceededError) Error() string {
	return fmt.Sprintf("%s: %s after %d iterations", e.Operation, ErrIterationLimitExceeded, e.Limit)
}

func (e *IterationLimitExceededError) Unwrap() error {
	return ErrIterationLimitExceeded
}

// CollapseRepeats replaces runs of sep with a single sep. Each pass halves the
// longest run, so maxIterations must be at least log2 of the longest run plus
// one; callers that cannot bound the input should pass len(value)+1.
func CollapseRepeats(value, sep string, maxIterations int) (string, error) {
	if sep == "" || value == "" {
		return value, nil
	}
	double := sep + sep
	for i := 0; i < maxIterations; i++ {
		if !strings.Contains(value, double) {
			return value, nil
		}
		value = strings.ReplaceAll(value, double, sep)
	}
	if strings.Contains(value, double) {
		return value, &IterationLimitExceededError{Operation: "collapse " + fmt.Sprintf("%q", sep), Limit: maxIterations}
	}
	return value, nil
}
