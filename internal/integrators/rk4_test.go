package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/fmuexplore/internal/dynamo"
)

type oscillator struct{}

func (oscillator) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (oscillator) StateDim() int { return 2 }

type decay struct{}

func (decay) Derive(x dynamo.State, t float64) dynamo.State { return dynamo.State{-x[0]} }
func (decay) StateDim() int                                  { return 1 }

func TestRK4Accuracy(t *testing.T) {
	integ := NewRK4()
	x := dynamo.State{1.0, 0.0}
	dt := 0.01
	steps := 100

	for i := 0; i < steps; i++ {
		x = integ.Step(oscillator{}, x, float64(i)*dt, dt)
	}

	if math.Abs(x[0]-math.Cos(1)) > 1e-6 {
		t.Errorf("position error too large: got %.8f, expected %.8f", x[0], math.Cos(1))
	}
	if math.Abs(x[1]+math.Sin(1)) > 1e-6 {
		t.Errorf("velocity error too large: got %.8f, expected %.8f", x[1], -math.Sin(1))
	}
}

func TestEulerFirstOrder(t *testing.T) {
	integ := NewEuler()
	x := integ.Step(decay{}, dynamo.State{1}, 0, 0.1)
	if math.Abs(x[0]-0.9) > 1e-12 {
		t.Errorf("expected 0.9, got %f", x[0])
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", "rk4", "euler"} {
		if _, ok := ByName(name); !ok {
			t.Errorf("expected integrator for %q", name)
		}
	}
	if _, ok := ByName("verlet"); ok {
		t.Error("verlet is not registered")
	}
}
