package params

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRejectedKey      = errors.New("params: rejected key")
	ErrValidation       = errors.New("params: invariant violated")
	ErrMissingParameter = errors.New("params: required parameter missing")
)

// Rejection names one key that was not applied and why.
type Rejection struct {
	Key    string
	Reason string
}

// RejectedKeyError lists update keys that were not applied. The rest of the
// batch was applied.
type RejectedKeyError struct {
	Rejected []Rejection
}

func (e *RejectedKeyError) Error() string {
	parts := make([]string, len(e.Rejected))
	for i, r := range e.Rejected {
		parts[i] = fmt.Sprintf("%s (%s)", r.Key, r.Reason)
	}
	return "params: rejected " + strings.Join(parts, ", ")
}

func (e *RejectedKeyError) Unwrap() error { return ErrRejectedKey }

// Keys returns the rejected key names in update order.
func (e *RejectedKeyError) Keys() []string {
	keys := make([]string, len(e.Rejected))
	for i, r := range e.Rejected {
		keys[i] = r.Key
	}
	return keys
}

// ValidationError lists the invariants that do not hold. Values that caused
// them stay applied.
type ValidationError struct {
	Violated []string
}

func (e *ValidationError) Error() string {
	return "params: requirements do not hold: " + strings.Join(e.Violated, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// MissingError names required parameters still holding [Missing].
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return "params: missing value for " + strings.Join(e.Names, ", ")
}

func (e *MissingError) Unwrap() error { return ErrMissingParameter }
