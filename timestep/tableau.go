// Package timestep advances the discrete Navier-Stokes state with
// projected Runge-Kutta methods: every stage ends with a pressure
// Poisson solve that returns the stage velocity to the divergence
// constraint. It also carries the steady-state Picard solver and the
// driver loop that runs a simulation to its end time.
package timestep

import (
	"fmt"
	"math"
)

// Tableau is a Butcher tableau (A, b, c). Explicit methods must have a
// strictly lower-triangular A; diagonally implicit methods may fill the
// diagonal and are solved by fixed-point iteration per stage.
type Tableau struct {
	Name     string
	A        [][]float64
	B        []float64
	C        []float64
	Implicit bool
}

// Stages returns the number of stages.
func (t Tableau) Stages() int { return len(t.B) }

// Validate checks the structural invariants: square A matching b and c,
// Σb = 1, and a strictly lower-triangular A for explicit methods.
func (t Tableau) Validate() error {
	s := t.Stages()
	if s == 0 || len(t.A) != s || len(t.C) != s {
		return fmt.Errorf("timestep: tableau %q has inconsistent stage counts", t.Name)
	}
	sum := 0.0
	for _, b := range t.B {
		sum += b
	}
	if math.Abs(sum-1) > 1e-12 {
		return fmt.Errorf("timestep: tableau %q weights sum to %g, want 1", t.Name, sum)
	}
	for i, row := range t.A {
		if len(row) != s {
			return fmt.Errorf("timestep: tableau %q row %d has %d entries, want %d", t.Name, i, len(row), s)
		}
		lim := i
		if t.Implicit {
			lim = i + 1
		}
		for j := lim; j < s; j++ {
			if row[j] != 0 {
				return fmt.Errorf("timestep: tableau %q is not lower triangular at (%d,%d)", t.Name, i, j)
			}
		}
	}
	return nil
}

// EulerExplicit is the one-stage forward Euler method.
func EulerExplicit() Tableau {
	return Tableau{
		Name: "explicit Euler",
		A:    [][]float64{{0}},
		B:    []float64{1},
		C:    []float64{0},
	}
}

// Heun is the two-stage second-order explicit trapezoidal method.
func Heun() Tableau {
	return Tableau{
		Name: "Heun",
		A:    [][]float64{{0, 0}, {1, 0}},
		B:    []float64{0.5, 0.5},
		C:    []float64{0, 1},
	}
}

// SSPRK3 is the three-stage strong-stability-preserving third-order
// method of Shu and Osher.
func SSPRK3() Tableau {
	return Tableau{
		Name: "SSPRK3",
		A:    [][]float64{{0, 0, 0}, {1, 0, 0}, {0.25, 0.25, 0}},
		B:    []float64{1.0 / 6, 1.0 / 6, 2.0 / 3},
		C:    []float64{0, 1, 0.5},
	}
}

// RK4 is the classic four-stage fourth-order method.
func RK4() Tableau {
	return Tableau{
		Name: "RK4",
		A: [][]float64{
			{0, 0, 0, 0},
			{0.5, 0, 0, 0},
			{0, 0.5, 0, 0},
			{0, 0, 1, 0},
		},
		B: []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
		C: []float64{0, 0.5, 0.5, 1},
	}
}

// ImplicitMidpoint is the one-stage second-order Gauss method, solved
// by fixed-point iteration per stage.
func ImplicitMidpoint() Tableau {
	return Tableau{
		Name:     "implicit midpoint",
		A:        [][]float64{{0.5}},
		B:        []float64{1},
		C:        []float64{0.5},
		Implicit: true,
	}
}
