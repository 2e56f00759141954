package pressure

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sifanexisted/macflow/boundary"
	"github.com/sifanexisted/macflow/grid"
	"github.com/sifanexisted/macflow/operators"
)

func periodicGrid(t *testing.T, n int) *grid.Grid {
	t.Helper()
	per := boundary.Pair{
		Lo: boundary.Condition{Kind: boundary.Periodic},
		Hi: boundary.Condition{Kind: boundary.Periodic},
	}
	ax, err := grid.Uniform(n, 0, 1)
	require.NoError(t, err)
	g, err := grid.New([]grid.Axis{ax, ax}, boundary.Set{per, per})
	require.NoError(t, err)
	return g
}

// compatibleRHS returns a zero-mean right-hand side.
func compatibleRHS(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	rhs := make([]float64, n)
	sum := 0.0
	for i := range rhs {
		rhs[i] = rng.NormFloat64()
		sum += rhs[i]
	}
	for i := range rhs {
		rhs[i] -= sum / float64(n)
	}
	return rhs
}

func residualNorm(a *operators.Operators, x, rhs []float64) float64 {
	n := len(rhs)
	ax := make([]float64, n)
	operators.MulVec(ax, a.Poisson(), x)
	r := 0.0
	for i := range ax {
		if d := math.Abs(ax[i] - rhs[i]); d > r {
			r = d
		}
	}
	return r
}

func TestDirectSolvesPoisson(t *testing.T) {
	g := periodicGrid(t, 8)
	op, err := operators.Assemble(g, 0.1)
	require.NoError(t, err)
	d, err := NewDirect(op)
	require.NoError(t, err)

	rhs := compatibleRHS(g.NumCells(), 1)
	x := make([]float64, g.NumCells())
	require.NoError(t, d.Solve(x, rhs))
	assert.Less(t, residualNorm(op, x, rhs), 1e-10)
}

func TestCGSolvesPoisson(t *testing.T) {
	g := periodicGrid(t, 8)
	op, err := operators.Assemble(g, 0.1)
	require.NoError(t, err)
	cg, err := NewCG(op, 500, 1e-12)
	require.NoError(t, err)

	rhs := compatibleRHS(g.NumCells(), 2)
	x := make([]float64, g.NumCells())
	require.NoError(t, cg.Solve(x, rhs))
	assert.Less(t, residualNorm(op, x, rhs), 1e-9)
}

func TestSpectralSolvesPoisson(t *testing.T) {
	g := periodicGrid(t, 8)
	op, err := operators.Assemble(g, 0.1)
	require.NoError(t, err)
	sp, err := NewSpectral(g)
	require.NoError(t, err)

	rhs := compatibleRHS(g.NumCells(), 3)
	x := make([]float64, g.NumCells())
	require.NoError(t, sp.Solve(x, rhs))
	assert.Less(t, residualNorm(op, x, rhs), 1e-10)
}

func TestSolversAgreeUpToGauge(t *testing.T) {
	g := periodicGrid(t, 6)
	op, err := operators.Assemble(g, 0.1)
	require.NoError(t, err)

	d, err := NewDirect(op)
	require.NoError(t, err)
	cg, err := NewCG(op, 500, 1e-12)
	require.NoError(t, err)
	sp, err := NewSpectral(g)
	require.NoError(t, err)

	n := g.NumCells()
	rhs := compatibleRHS(n, 4)
	xd := make([]float64, n)
	xc := make([]float64, n)
	xs := make([]float64, n)
	require.NoError(t, d.Solve(xd, rhs))
	require.NoError(t, cg.Solve(xc, rhs))
	require.NoError(t, sp.Solve(xs, rhs))

	deMean := func(x []float64) {
		s := 0.0
		for _, v := range x {
			s += v
		}
		s /= float64(n)
		for i := range x {
			x[i] -= s
		}
	}
	deMean(xd)
	deMean(xc)
	deMean(xs)
	assert.InDeltaSlice(t, xd, xc, 1e-8)
	assert.InDeltaSlice(t, xd, xs, 1e-8)
}

func TestCGRejectsIncompatibleRHS(t *testing.T) {
	g := periodicGrid(t, 6)
	op, err := operators.Assemble(g, 0.1)
	require.NoError(t, err)
	cg, err := NewCG(op, 500, 1e-10)
	require.NoError(t, err)

	// Nonzero mean on a fully periodic box has no solution.
	rhs := make([]float64, g.NumCells())
	for i := range rhs {
		rhs[i] = 1
	}
	x := make([]float64, g.NumCells())
	err = cg.Solve(x, rhs)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestCGReportsNonConvergence(t *testing.T) {
	g := periodicGrid(t, 8)
	op, err := operators.Assemble(g, 0.1)
	require.NoError(t, err)
	cg, err := NewCG(op, 1, 1e-15)
	require.NoError(t, err)

	rhs := compatibleRHS(g.NumCells(), 5)
	x := make([]float64, g.NumCells())
	err = cg.Solve(x, rhs)
	require.Error(t, err)
	var ce *ConvergenceError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Iterations)
	assert.Greater(t, ce.Residual, 0.0)
}

func TestSpectralRejectsWalls(t *testing.T) {
	per := boundary.Pair{
		Lo: boundary.Condition{Kind: boundary.Periodic},
		Hi: boundary.Condition{Kind: boundary.Periodic},
	}
	wall := boundary.Pair{
		Lo: boundary.Condition{Kind: boundary.Dirichlet},
		Hi: boundary.Condition{Kind: boundary.Dirichlet},
	}
	ax, _ := grid.Uniform(6, 0, 1)
	g, err := grid.New([]grid.Axis{ax, ax}, boundary.Set{per, wall})
	require.NoError(t, err)
	_, err = NewSpectral(g)
	require.Error(t, err)
}

func TestSpectralRejectsStretchedAxis(t *testing.T) {
	per := boundary.Pair{
		Lo: boundary.Condition{Kind: boundary.Periodic},
		Hi: boundary.Condition{Kind: boundary.Periodic},
	}
	axU, _ := grid.Uniform(6, 0, 1)
	axS, _ := grid.Stretched(6, 0, 1, 1.4)
	g, err := grid.New([]grid.Axis{axU, axS}, boundary.Set{per, per})
	require.NoError(t, err)
	_, err = NewSpectral(g)
	require.Error(t, err)
}

func TestDirectHandlesPressureOutlet(t *testing.T) {
	// With a Pressure boundary the matrix is definite without pinning.
	wall := boundary.Pair{
		Lo: boundary.Condition{Kind: boundary.Dirichlet},
		Hi: boundary.Condition{Kind: boundary.Dirichlet},
	}
	out := boundary.Pair{
		Lo: boundary.Condition{Kind: boundary.Dirichlet},
		Hi: boundary.Condition{Kind: boundary.Pressure},
	}
	ax, _ := grid.Uniform(5, 0, 1)
	g, err := grid.New([]grid.Axis{ax, ax}, boundary.Set{out, wall})
	require.NoError(t, err)
	op, err := operators.Assemble(g, 0.1)
	require.NoError(t, err)
	require.False(t, op.GaugeFree())

	d, err := NewDirect(op)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(9))
	rhs := make([]float64, g.NumCells())
	for i := range rhs {
		rhs[i] = rng.NormFloat64()
	}
	x := make([]float64, g.NumCells())
	require.NoError(t, d.Solve(x, rhs))
	assert.Less(t, residualNorm(op, x, rhs), 1e-10)
}
