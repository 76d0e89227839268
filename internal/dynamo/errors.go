package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for numerical integration.
var (
	// ErrInvalidState indicates NaN or Inf in the state vector.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates a state vector of the wrong length.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrBadStep indicates a non-positive or non-finite step size.
	ErrBadStep = errors.New("dynamo: step size must be positive and finite")
)

// IntegrationError wraps an error with the point in time it happened.
type IntegrationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *IntegrationError) Unwrap() error {
	return e.Wrapped
}
