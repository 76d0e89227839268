package integrators

import "github.com/san-kum/fmuexplore/internal/dynamo"

// RK4 is the classic fourth-order Runge-Kutta stepper.
type RK4 struct{}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Step(sys dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	k1 := sys.Derive(x, t)
	k2 := sys.Derive(x.Axpy(dt/2, k1), t+dt/2)
	k3 := sys.Derive(x.Axpy(dt/2, k2), t+dt/2)
	k4 := sys.Derive(x.Axpy(dt, k3), t+dt)

	out := make(dynamo.State, len(x))
	dt6 := dt / 6
	for i := range x {
		out[i] = x[i] + dt6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return out
}
