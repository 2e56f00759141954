package pressure

import (
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"

	"github.com/sifanexisted/macflow/operators"
)

// CG solves the Poisson system by conjugate gradients with Jacobi
// preconditioning. The matrix is symmetric positive semi-definite; on
// gauge-free configurations the iteration stays in the range space as
// long as the right-hand side is compatible, which Solve verifies up
// front.
type CG struct {
	a         *sparse.CSR
	diagInv   []float64
	gaugeFree bool

	// MaxIter and Tol bound the iteration; Tol is relative to the
	// right-hand side norm.
	MaxIter int
	Tol     float64

	r, z, p, q []float64
}

// NewCG prepares a conjugate-gradient solver for the assembled Poisson
// matrix with the given iteration budget and relative tolerance.
func NewCG(op *operators.Operators, maxIter int, tol float64) (*CG, error) {
	if maxIter <= 0 || tol <= 0 {
		return nil, fmt.Errorf("pressure: CG needs positive iteration budget and tolerance, got %d, %g", maxIter, tol)
	}
	a := op.Poisson()
	n, _ := a.Dims()
	c := &CG{
		a:         a,
		diagInv:   make([]float64, n),
		gaugeFree: op.GaugeFree(),
		MaxIter:   maxIter,
		Tol:       tol,
		r:         make([]float64, n),
		z:         make([]float64, n),
		p:         make([]float64, n),
		q:         make([]float64, n),
	}
	for i := 0; i < n; i++ {
		d := a.At(i, i)
		if d <= 0 {
			return nil, fmt.Errorf("pressure: non-positive Poisson diagonal at cell %d", i)
		}
		c.diagInv[i] = 1 / d
	}
	return c, nil
}

// Solve runs the iteration from a zero initial guess.
func (c *CG) Solve(dst, rhs []float64) error {
	n := len(rhs)
	rhsNorm := floats.Norm(rhs, 2)

	if c.gaugeFree {
		src := floats.Sum(rhs)
		if math.Abs(src) > 1e-8*math.Sqrt(float64(n))*math.Max(rhsNorm, 1) {
			return fmt.Errorf("%w: net source %.3e", ErrIncompatible, src)
		}
	}

	for i := range dst {
		dst[i] = 0
	}
	if rhsNorm == 0 {
		return nil
	}
	tol := c.Tol * rhsNorm

	copy(c.r, rhs)
	for i := range c.z {
		c.z[i] = c.diagInv[i] * c.r[i]
	}
	copy(c.p, c.z)
	rz := floats.Dot(c.r, c.z)

	for it := 1; it <= c.MaxIter; it++ {
		operators.MulVec(c.q, c.a, c.p)
		pq := floats.Dot(c.p, c.q)
		if pq <= 0 {
			// p fell into the null space; the remaining residual is the
			// incompatible part, which compatible data keeps at noise level.
			break
		}
		alpha := rz / pq
		floats.AddScaled(dst, alpha, c.p)
		floats.AddScaled(c.r, -alpha, c.q)

		if floats.Norm(c.r, 2) <= tol {
			if c.gaugeFree {
				shift := floats.Sum(dst) / float64(n)
				for i := range dst {
					dst[i] -= shift
				}
			}
			return nil
		}

		for i := range c.z {
			c.z[i] = c.diagInv[i] * c.r[i]
		}
		rzNext := floats.Dot(c.r, c.z)
		beta := rzNext / rz
		rz = rzNext
		for i := range c.p {
			c.p[i] = c.z[i] + beta*c.p[i]
		}
	}
	return &ConvergenceError{Iterations: c.MaxIter, Residual: floats.Norm(c.r, 2)}
}
