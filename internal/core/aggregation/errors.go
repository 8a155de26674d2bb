package aggregation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSpecification marks caller errors: a bad window, an unknown
	// grouping field or a malformed metric. Not retryable.
	ErrInvalidSpecification = errors.New("invalid specification")

	// ErrInsufficientHistory marks series that are too short for the requested
	// forecast or trend.
	ErrInsufficientHistory = errors.New("insufficient history")
)

// InsufficientHistoryError reports the minimum series length a computation needs.
type InsufficientHistoryError struct {
	Required int
	Actual   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("%s: need at least %d points, got %d", ErrInsufficientHistory, e.Required, e.Actual)
}

// Is lets errors.Is(err, ErrInsufficientHistory) match.
func (e *InsufficientHistoryError) Is(target error) bool {
	return target == ErrInsufficientHistory
}

// InvalidSpecf wraps ErrInvalidSpecification with detail.
func InvalidSpecf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSpecification, fmt.Sprintf(format, args...))
}
