// Package pressure provides solvers for the pressure Poisson system
// M·Ω⁻¹·Mᵀ·φ = rhs that the projection step produces: a dense Cholesky
// factorization for small problems and arbitrary boundary conditions, a
// conjugate-gradient iteration for larger sparse systems, and an FFT
// solver for fully periodic uniform grids.
package pressure

import (
	"errors"
	"fmt"
)

// Solver solves the assembled Poisson system for a given right-hand
// side. dst and rhs must not alias; implementations may use dst as
// scratch. Solvers are not safe for concurrent use.
type Solver interface {
	Solve(dst, rhs []float64) error
}

// ErrIncompatible is returned when the right-hand side has a nonzero
// net source on a configuration whose pressure is only determined up to
// a constant, so no solution exists.
var ErrIncompatible = errors.New("pressure: right-hand side incompatible with gauge-free field")

// ConvergenceError is returned by iterative solvers that exhaust their
// iteration budget. The caller can treat it as recoverable, for example
// by shrinking the time step.
type ConvergenceError struct {
	Iterations int
	Residual   float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("pressure: no convergence after %d iterations, residual %.3e", e.Iterations, e.Residual)
}
