package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/fmuexplore/internal/dynamo"
	"github.com/san-kum/fmuexplore/internal/integrators"
	"github.com/san-kum/fmuexplore/internal/logging"
	"github.com/san-kum/fmuexplore/internal/model"
)

// ODE is the reference engine: it instantiates the model from the start values
// and integrates with a fixed-step integrator, recording every output interval.
type ODE struct {
	model      model.Model
	integrator dynamo.Integrator
	substeps   int
	log        *slog.Logger
}

type ODEOption func(*ODE)

func WithIntegrator(i dynamo.Integrator) ODEOption { return func(o *ODE) { o.integrator = i } }

// WithSubsteps sets integrator steps per output interval.
func WithSubsteps(n int) ODEOption { return func(o *ODE) { o.substeps = n } }

func WithLogger(l *slog.Logger) ODEOption { return func(o *ODE) { o.log = l } }

func NewODE(m model.Model, opts ...ODEOption) *ODE {
	o := &ODE{
		model:      m,
		integrator: integrators.NewRK4(),
		substeps:   4,
		log:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.substeps < 1 {
		o.substeps = 1
	}
	return o
}

func (o *ODE) Simulate(ctx context.Context, req Request) (*Table, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inst, err := o.model.Instantiate(req.StartValues)
	if err != nil {
		return nil, err
	}

	x := inst.Initial()
	if len(x) != inst.StateDim() {
		return nil, dynamo.ErrDimensionMismatch
	}

	first := inst.Observe(x, req.Start)
	for _, name := range req.Output {
		if name == TimeName {
			continue
		}
		if _, ok := first[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
		}
	}

	table := NewTable(req.Output, req.Intervals+1)
	if err := table.Append(req.Start, first); err != nil {
		return nil, err
	}

	span := req.Stop - req.Start
	dt := span / float64(req.Intervals*o.substeps)
	step := 0
	for i := 1; i <= req.Intervals; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		for k := 0; k < o.substeps; k++ {
			t := req.Start + float64(step)*dt
			x = o.integrator.Step(inst, x, t, dt)
			step++
			if !x.IsValid() {
				return nil, &dynamo.IntegrationError{Step: step, Time: t + dt, Wrapped: dynamo.ErrInvalidState}
			}
		}

		// land exactly on the grid so the last sample is Stop
		t := req.Start + span*float64(i)/float64(req.Intervals)
		if err := table.Append(t, inst.Observe(x, t)); err != nil {
			return nil, err
		}
		o.log.Log(ctx, logging.LevelTrace, "sample", "model", o.model.Name(), "t", t)
	}

	return table, nil
}
