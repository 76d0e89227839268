// Package engine defines the simulation engine contract consumed by the session
// and ships a reference engine that integrates a named-variable model.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	ErrBadSpan         = errors.New("engine: invalid time span")
	ErrUnknownVariable = errors.New("engine: unknown output variable")
)

// Request is one engine invocation: start values keyed by engine location, a
// time span, the series to record and the number of output intervals.
type Request struct {
	StartValues map[string]any
	Start       float64
	Stop        float64
	Output      []string
	Intervals   int
}

func (r Request) Validate() error {
	if math.IsNaN(r.Start) || math.IsNaN(r.Stop) || r.Stop <= r.Start {
		return fmt.Errorf("%w: [%g, %g]", ErrBadSpan, r.Start, r.Stop)
	}
	if r.Intervals <= 0 {
		return fmt.Errorf("%w: %d output intervals", ErrBadSpan, r.Intervals)
	}
	return nil
}

// Engine runs a model over a span and returns a complete table or an error.
// It keeps no state between calls.
type Engine interface {
	Simulate(ctx context.Context, req Request) (*Table, error)
}

// Func adapts a function to Engine.
type Func func(ctx context.Context, req Request) (*Table, error)

func (f Func) Simulate(ctx context.Context, req Request) (*Table, error) {
	return f(ctx, req)
}
