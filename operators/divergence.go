package operators

import (
	"github.com/james-bowman/sparse"

	"github.com/sifanexisted/macflow/boundary"
	"github.com/sifanexisted/macflow/grid"
)

// div1D builds the 1D face-difference stencil of axis d: one row per
// cell with -1/+1 on the DOF columns of its two faces. Faces that are
// not degrees of freedom (prescribed or fixed by the boundary condition)
// are dropped here and accounted for in yM.
func div1D(g *grid.Grid, d int) *sparse.CSR {
	n := g.Axis(d).Len()
	nd := g.DOFDims(d)[d]
	dok := sparse.NewDOK(n, nd)
	for i := 0; i < n; i++ {
		if c, ok := faceCol(g, d, i); ok {
			dok.Set(i, c, dok.At(i, c)-1)
		}
		if c, ok := faceCol(g, d, i+1); ok {
			dok.Set(i, c, dok.At(i, c)+1)
		}
	}
	return dok.ToCSR()
}

// faceCol maps a global face index of axis d to its DOF column.
func faceCol(g *grid.Grid, d, f int) (int, bool) {
	n := g.Axis(d).Len()
	lo, _ := g.FaceOffsets(d)
	if g.BC(d).Lo.Kind == boundary.Periodic {
		if f == n {
			return 0, true
		}
		return f, true
	}
	c := f - lo
	if c < 0 || c >= g.DOFDims(d)[d] {
		return 0, false
	}
	return c, true
}

// buildDivergence assembles the integrated divergence matrix M mapping
// packed velocity DOFs to per-cell net outflow. Each component block is
// the Kronecker product of its axis stencil with the cross-axis width
// diagonals, so the entries carry the face areas of a stretched grid
// exactly.
func buildDivergence(g *grid.Grid) *sparse.CSR {
	dim := g.Dim()
	dok := sparse.NewDOK(g.NumCells(), g.NumVel())
	for c := 0; c < dim; c++ {
		var acc *sparse.CSR
		for d := 0; d < dim; d++ {
			var f *sparse.CSR
			if d == c {
				f = div1D(g, d)
			} else {
				f = spdiag(g.Axis(d).Widths)
			}
			if acc == nil {
				acc = f
			} else {
				acc = kron(f, acc)
			}
		}
		off := g.CompOffset(c)
		acc.DoNonZero(func(i, j int, v float64) {
			dok.Set(i, off+j, v)
		})
	}
	return dok.ToCSR()
}

// buildYM writes the boundary contribution vector of the divergence:
// prescribed normal boundary velocities integrated over their faces.
// With deriv set it evaluates the time derivative of the prescribed data
// instead, which the order-consistent pressure solve needs.
func buildYM(g *grid.Grid, dst []float64, t float64, deriv bool) {
	for i := range dst {
		dst[i] = 0
	}
	dim := g.Dim()
	cells := g.CellDims()
	str := grid.Strides(cells)
	x := make([]float64, dim)

	for d := 0; d < dim; d++ {
		for _, side := range []boundary.Side{boundary.Lo, boundary.Hi} {
			bc := g.BC(d).At(side)
			if bc.Kind != boundary.Dirichlet {
				continue
			}
			fn := bc.Value[d]
			if deriv {
				fn = bc.Deriv[d]
			}
			if fn == nil {
				continue
			}
			sign := -1.0
			cd := 0
			xb := g.Axis(d).Faces[0]
			if side == boundary.Hi {
				sign = 1.0
				cd = cells[d] - 1
				xb = g.Axis(d).Faces[cells[d]]
			}

			idx := make([]int, dim)
			for {
				idx[d] = cd
				area := 1.0
				flat := 0
				for e := 0; e < dim; e++ {
					flat += idx[e] * str[e]
					if e == d {
						x[e] = xb
						continue
					}
					area *= g.Axis(e).Widths[idx[e]]
					x[e] = g.Axis(e).Centers[idx[e]]
				}
				dst[flat] += sign * area * fn(x, t)
				if !nextSkipAxis(idx, cells, d) {
					break
				}
			}
		}
	}
}

// buildYG writes the boundary contribution of the integrated pressure
// force: prescribed boundary pressures at Pressure boundaries acting on
// the boundary-face velocity DOFs.
func buildYG(g *grid.Grid, dst []float64, t float64) {
	for i := range dst {
		dst[i] = 0
	}
	dim := g.Dim()
	x := make([]float64, dim)

	for d := 0; d < dim; d++ {
		dd := g.DOFDims(d)
		dstr := grid.Strides(dd)
		lo, _ := g.FaceOffsets(d)
		n := g.Axis(d).Len()
		for _, side := range []boundary.Side{boundary.Lo, boundary.Hi} {
			bc := g.BC(d).At(side)
			if bc.Kind != boundary.Pressure || bc.P == nil {
				continue
			}
			sign := 1.0
			f := 0
			xb := g.Axis(d).Faces[0]
			if side == boundary.Hi {
				sign = -1.0
				f = n
				xb = g.Axis(d).Faces[n]
			}
			id := f - lo // DOF index of the boundary face

			idx := make([]int, dim)
			for {
				idx[d] = id
				area := 1.0
				flat := g.CompOffset(d)
				for e := 0; e < dim; e++ {
					flat += idx[e] * dstr[e]
					if e == d {
						x[e] = xb
						continue
					}
					area *= g.Axis(e).Widths[idx[e]]
					x[e] = g.Axis(e).Centers[idx[e]]
				}
				dst[flat] += sign * area * bc.P(x, t)
				if !nextSkipAxis(idx, dd, d) {
					break
				}
			}
		}
	}
}

// nextSkipAxis advances a multi-index over dims holding the given axis
// fixed.
func nextSkipAxis(idx, dims []int, skip int) bool {
	for d := 0; d < len(dims); d++ {
		if d == skip {
			continue
		}
		idx[d]++
		if idx[d] < dims[d] {
			return true
		}
		idx[d] = 0
	}
	return false
}
