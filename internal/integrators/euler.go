package integrators

import "github.com/san-kum/fmuexplore/internal/dynamo"

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	return x.Axpy(dt, sys.Derive(x, t))
}

// ByName resolves an integrator from its config name.
func ByName(name string) (dynamo.Integrator, bool) {
	switch name {
	case "rk4", "":
		return NewRK4(), true
	case "euler":
		return NewEuler(), true
	}
	return nil, false
}
