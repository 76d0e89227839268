// Package dynamo provides the numerical primitives behind the reference engine.
//
//   - [State]: integrated state vector
//   - [System]: ODE right-hand side (dX/dt = f(X, t))
//   - [Integrator]: fixed-step numerical stepper
//
// Models expose named variables on top of a System; see package model.
package dynamo
