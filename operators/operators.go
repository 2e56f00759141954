package operators

import (
	"fmt"

	"github.com/james-bowman/sparse"

	"github.com/sifanexisted/macflow/boundary"
	"github.com/sifanexisted/macflow/grid"
)

// Operators bundles the assembled sparse matrices and boundary vectors
// of one (grid, boundary set) configuration. The matrices are immutable
// after Assemble; the y vectors are time-dependent only through unsteady
// boundary data and are rebuilt on demand.
//
// Conventions: M maps packed velocity DOFs to the integrated divergence
// per cell, so M·V + yM is the net outflow. GT is exactly Mᵀ, and
// GT·p + yG is the integrated pressure force (the discrete -∇p). The
// pairing ⟨M·v, p⟩ = ⟨v, GT·p⟩ therefore holds with a boundary-only
// remainder carried entirely by yM and yG.
type Operators struct {
	g  *grid.Grid
	nu float64

	M    *sparse.CSR   // NumCells × NumVel
	GT   *sparse.CSR   // NumVel × NumCells, = Mᵀ
	A    *sparse.CSR   // NumCells × NumCells, M·Ω⁻¹·Mᵀ
	Diff []*sparse.CSR // per component, CompLen × CompLen

	yM []float64
	yG []float64
	yD [][]float64

	built  bool
	bcTime float64
}

// Assemble builds all operators for the given grid and constant
// kinematic viscosity. It is called once per configuration; a changed
// grid or boundary set requires a new assembly.
func Assemble(g *grid.Grid, nu float64) (*Operators, error) {
	if nu <= 0 {
		return nil, fmt.Errorf("operators: viscosity must be positive, got %g", nu)
	}
	op := &Operators{g: g, nu: nu}
	op.M = buildDivergence(g)
	op.GT = transpose(op.M)
	op.A = buildPoisson(op.M, g.InvVelVolumes(), g.NumCells())

	dim := g.Dim()
	op.Diff = make([]*sparse.CSR, dim)
	op.yD = make([][]float64, dim)
	for c := 0; c < dim; c++ {
		op.Diff[c] = buildDiffusion(g, c, nu)
		op.yD[c] = make([]float64, g.CompLen(c))
	}
	op.yM = make([]float64, g.NumCells())
	op.yG = make([]float64, g.NumVel())
	op.Refresh(0)
	return op, nil
}

// buildPoisson forms A = M·diag(winv)·Mᵀ by accumulating the outer
// product of each velocity column of M; every column touches at most two
// cells, so this stays linear in the number of nonzeros.
func buildPoisson(m *sparse.CSR, winv []float64, np int) *sparse.CSR {
	type ent struct {
		i int
		v float64
	}
	cols := make([][]ent, len(winv))
	m.DoNonZero(func(i, j int, v float64) {
		cols[j] = append(cols[j], ent{i, v})
	})
	dok := sparse.NewDOK(np, np)
	for k, col := range cols {
		w := winv[k]
		for _, a := range col {
			for _, b := range col {
				dok.Set(a.i, b.i, dok.At(a.i, b.i)+a.v*b.v*w)
			}
		}
	}
	return dok.ToCSR()
}

// Grid returns the grid the operators were assembled on.
func (op *Operators) Grid() *grid.Grid { return op.g }

// Nu returns the molecular kinematic viscosity.
func (op *Operators) Nu() float64 { return op.nu }

// Poisson returns the pressure Poisson matrix M·Ω⁻¹·Mᵀ.
func (op *Operators) Poisson() *sparse.CSR { return op.A }

// GaugeFree reports whether the pressure is determined only up to a
// constant: no Pressure boundary anywhere fixes the gauge.
func (op *Operators) GaugeFree() bool {
	for d := 0; d < op.g.Dim(); d++ {
		p := op.g.BC(d)
		if p.Lo.Kind == boundary.Pressure || p.Hi.Kind == boundary.Pressure {
			return false
		}
	}
	return true
}

// Refresh rebuilds the boundary contribution vectors for time t. With
// steady boundary data the vectors are built once and reused.
func (op *Operators) Refresh(t float64) {
	if op.built && (!op.g.TimeDependent() || t == op.bcTime) {
		return
	}
	buildYM(op.g, op.yM, t, false)
	buildYG(op.g, op.yG, t)
	for c := 0; c < op.g.Dim(); c++ {
		buildYD(op.g, c, op.nu, op.yD[c], t)
	}
	op.built = true
	op.bcTime = t
}

// Divergence writes the integrated divergence M·V + yM(t) into dst.
func (op *Operators) Divergence(dst, V []float64, t float64) {
	op.Refresh(t)
	MulVec(dst, op.M, V)
	for i, v := range op.yM {
		dst[i] += v
	}
}

// YMDot writes the time derivative of yM into dst, used by the
// order-consistent additional pressure solve with moving boundary data.
func (op *Operators) YMDot(dst []float64, t float64) {
	buildYM(op.g, dst, t, true)
}

// GradForce writes the integrated pressure force Mᵀ·p + yG(t) into dst.
func (op *Operators) GradForce(dst, p []float64, t float64) {
	op.Refresh(t)
	MulVec(dst, op.GT, p)
	for i, v := range op.yG {
		dst[i] += v
	}
}

// DiffusionAdd accumulates the constant-viscosity integrated diffusion
// of every component, Diff·V + yD(t), onto dst.
func (op *Operators) DiffusionAdd(dst, V []float64, t float64) {
	op.Refresh(t)
	for c := 0; c < op.g.Dim(); c++ {
		off := op.g.CompOffset(c)
		seg := dst[off : off+op.g.CompLen(c)]
		vseg := V[off : off+op.g.CompLen(c)]
		op.Diff[c].DoNonZero(func(i, j int, v float64) {
			seg[i] += v * vseg[j]
		})
		for i, v := range op.yD[c] {
			seg[i] += v
		}
	}
}
