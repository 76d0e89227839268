package dynamo

import "math"

// State is the integrated state vector of a model instance.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Axpy returns s + a*d without touching s.
func (s State) Axpy(a float64, d State) State {
	out := make(State, len(s))
	for i := range s {
		out[i] = s[i]
		if i < len(d) {
			out[i] += a * d[i]
		}
	}
	return out
}

// System is an ODE dX/dt = f(X, t). Controllers live inside the system.
type System interface {
	Derive(x State, t float64) State
	StateDim() int
}

type Integrator interface {
	Step(sys System, x State, t, dt float64) State
}
