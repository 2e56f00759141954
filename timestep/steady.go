package timestep

import (
	"math"

	"github.com/sifanexisted/macflow/grid"
	"github.com/sifanexisted/macflow/momentum"
	"github.com/sifanexisted/macflow/operators"
	"github.com/sifanexisted/macflow/pressure"
)

// Steady finds a stationary state by Picard iteration directly on
// (V, p): each sweep adds a relaxed momentum residual and projects the
// result back onto the divergence constraint, without time marching.
type Steady struct {
	asm    *momentum.Assembler
	op     *operators.Operators
	g      *grid.Grid
	solver pressure.Solver

	// MaxIter and Tol bound the iteration; Tol is on the ∞-norm of the
	// volume-normalized momentum residual.
	MaxIter int
	Tol     float64
	// Relax is the pseudo-time increment per sweep; zero picks the
	// diffusive/advective stability bound automatically.
	Relax float64

	fbuf []float64
	div  []float64
	phi  []float64
	gphi []float64
}

// NewSteady builds a steady solver with the given iteration budget and
// residual tolerance.
func NewSteady(asm *momentum.Assembler, solver pressure.Solver, maxIter int, tol float64) *Steady {
	g := asm.Grid()
	return &Steady{
		asm:     asm,
		op:      asm.Operators(),
		g:       g,
		solver:  solver,
		MaxIter: maxIter,
		Tol:     tol,
		fbuf:    make([]float64, g.NumVel()),
		div:     make([]float64, g.NumCells()),
		phi:     make([]float64, g.NumCells()),
		gphi:    make([]float64, g.NumVel()),
	}
}

// Solve iterates in place until the residual tolerance or the iteration
// cap is reached, returning the residual history. Boundary data is
// evaluated at t = 0.
func (s *Steady) Solve(V, p []float64) ([]float64, error) {
	winv := s.g.InvVelVolumes()
	hist := make([]float64, 0, 64)

	res := math.Inf(1)
	for it := 0; it < s.MaxIter; it++ {
		s.asm.RHS(s.fbuf, V, p, 0, true)

		res = 0
		for j := range s.fbuf {
			s.fbuf[j] *= winv[j]
			if a := math.Abs(s.fbuf[j]); a > res {
				res = a
			}
		}
		hist = append(hist, res)
		if res <= s.Tol {
			return hist, nil
		}

		relax := s.Relax
		if relax == 0 {
			relax = 0.5 * StabilityDT(s.g, s.op.Nu(), V)
		}
		for j := range V {
			V[j] += relax * s.fbuf[j]
		}

		s.op.Divergence(s.div, V, 0)
		inv := 1 / relax
		for i := range s.div {
			s.div[i] *= inv
		}
		if err := s.solver.Solve(s.phi, s.div); err != nil {
			return hist, err
		}
		operators.MulVec(s.gphi, s.op.GT, s.phi)
		for j := range V {
			V[j] -= relax * winv[j] * s.gphi[j]
		}
		for i := range p {
			p[i] -= s.phi[i]
		}

		if err := checkFinite(V, p, 0); err != nil {
			return hist, err
		}
	}
	return hist, &ConvergenceError{What: "steady Picard iteration", Iterations: s.MaxIter, Residual: res}
}

// StabilityDT returns the explicit stability bound of the current state
// from the diffusive limit on the finest spacing and the advective
// limit per component.
func StabilityDT(g *grid.Grid, nu float64, V []float64) float64 {
	dim := g.Dim()

	sumInv := 0.0
	hmin := make([]float64, dim)
	for d := 0; d < dim; d++ {
		h := math.Inf(1)
		for _, w := range g.Axis(d).Widths {
			if w < h {
				h = w
			}
		}
		hmin[d] = h
		sumInv += 1 / (h * h)
	}
	dt := 1 / (2 * nu * sumInv)

	for c := 0; c < dim; c++ {
		umax := 0.0
		for j := g.CompOffset(c); j < g.CompOffset(c)+g.CompLen(c); j++ {
			if a := math.Abs(V[j]); a > umax {
				umax = a
			}
		}
		if umax > 0 {
			if b := hmin[c] / umax; b < dt {
				dt = b
			}
		}
	}
	return dt
}
