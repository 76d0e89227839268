package session

import (
	"errors"
	"fmt"
)

var (
	ErrSequence    = errors.New("session: no completed run to continue from")
	ErrEngine      = errors.New("session: engine failed")
	ErrUnknownName = errors.New("session: unknown name")
)

// SequenceError is returned by Continue before any run has succeeded.
type SequenceError struct {
	Op string
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("session: %s requires a completed run, start with fresh", e.Op)
}

func (e *SequenceError) Unwrap() error { return ErrSequence }

// EngineError wraps a failed engine invocation. The session is unchanged.
type EngineError struct {
	Mode    Mode
	Start   float64
	Stop    float64
	Wrapped error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("session: %s run over [%g, %g]: %v", e.Mode, e.Start, e.Stop, e.Wrapped)
}

func (e *EngineError) Unwrap() []error { return []error{ErrEngine, e.Wrapped} }
