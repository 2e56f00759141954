package operators

import (
	"github.com/james-bowman/sparse"

	"github.com/sifanexisted/macflow/boundary"
	"github.com/sifanexisted/macflow/grid"
)

// lap1D builds the 1D second-difference stencil of component c along
// axis b on a possibly stretched spacing, with the boundary condition
// folded in: periodic columns wrap, prescribed boundary faces keep only
// their diagonal part (the data itself goes to yD), mirrored tangential
// ghosts double the wall coefficient, and zero-gradient sides drop the
// flux term.
func lap1D(g *grid.Grid, c, b int) *sparse.CSR {
	n := g.DOFDims(c)[b]
	pos := g.ExtCoords(c, b)
	normal := b == c
	lo, _ := g.FaceOffsets(b)
	slot := func(i int) int {
		if normal {
			return i + lo + 1
		}
		return i + 1
	}
	periodic := g.BC(b).Lo.Kind == boundary.Periodic

	dok := sparse.NewDOK(n, n)
	add := func(i, j int, v float64) { dok.Set(i, j, dok.At(i, j)+v) }

	for i := 0; i < n; i++ {
		s := slot(i)
		dM := pos[s] - pos[s-1]
		dP := pos[s+1] - pos[s]

		if i+1 < n {
			add(i, i+1, 1/dP)
			add(i, i, -1/dP)
		} else if periodic {
			add(i, 0, 1/dP)
			add(i, i, -1/dP)
		} else {
			switch k := g.BC(b).Hi.Kind; {
			case normal && (k == boundary.Dirichlet || k == boundary.Symmetric):
				add(i, i, -1/dP)
			case !normal && k == boundary.Dirichlet:
				add(i, i, -2/dP)
			}
			// Pressure (zero-gradient) sides carry no flux term.
		}

		if i > 0 {
			add(i, i-1, 1/dM)
			add(i, i, -1/dM)
		} else if periodic {
			add(i, n-1, 1/dM)
			add(i, i, -1/dM)
		} else {
			switch k := g.BC(b).Lo.Kind; {
			case normal && (k == boundary.Dirichlet || k == boundary.Symmetric):
				add(i, i, -1/dM)
			case !normal && k == boundary.Dirichlet:
				add(i, i, -2/dM)
			}
		}
	}
	return dok.ToCSR()
}

// scale returns s·a.
func scale(a *sparse.CSR, s float64) *sparse.CSR {
	r, c := a.Dims()
	dok := sparse.NewDOK(r, c)
	a.DoNonZero(func(i, j int, v float64) {
		dok.Set(i, j, s*v)
	})
	return dok.ToCSR()
}

// buildDiffusion assembles the constant-viscosity integrated diffusion
// matrix of component c: for each flux direction, the Kronecker product
// of the 1D stencil with the control-volume width diagonals of the other
// axes, summed and scaled by ν.
func buildDiffusion(g *grid.Grid, c int, nu float64) *sparse.CSR {
	dim := g.Dim()
	nc := g.CompLen(c)
	dok := sparse.NewDOK(nc, nc)
	for b := 0; b < dim; b++ {
		var acc *sparse.CSR
		for d := 0; d < dim; d++ {
			var f *sparse.CSR
			switch {
			case d == b:
				f = lap1D(g, c, b)
			case d == c:
				f = spdiag(g.FaceWidths(c))
			default:
				f = spdiag(g.Axis(d).Widths)
			}
			if acc == nil {
				acc = f
			} else {
				acc = kron(f, acc)
			}
		}
		acc.DoNonZero(func(i, j int, v float64) {
			dok.Set(i, j, dok.At(i, j)+nu*v)
		})
	}
	return dok.ToCSR()
}

// buildYD writes the boundary contribution of component c's diffusion:
// prescribed wall data entering through boundary faces and mirrored
// tangential ghosts.
func buildYD(g *grid.Grid, c int, nu float64, dst []float64, t float64) {
	for i := range dst {
		dst[i] = 0
	}
	dim := g.Dim()
	dd := g.DOFDims(c)
	dstr := grid.Strides(dd)
	x := make([]float64, dim)

	for b := 0; b < dim; b++ {
		n := dd[b]
		pos := g.ExtCoords(c, b)
		normal := b == c
		lo, _ := g.FaceOffsets(b)
		nb := g.Axis(b).Len()

		for _, side := range []boundary.Side{boundary.Lo, boundary.Hi} {
			bc := g.BC(b).At(side)
			if bc.Kind != boundary.Dirichlet || bc.Value[c] == nil {
				continue
			}
			var i, s int
			if side == boundary.Lo {
				i = 0
				s = 1
				if normal {
					s = lo + 1
				}
			} else {
				i = n - 1
				s = n
				if normal {
					s = n + lo
				}
			}
			// Spacing to the boundary sample and the coefficient on the
			// prescribed value.
			var d, coef, xb float64
			if side == boundary.Lo {
				d = pos[s] - pos[s-1]
				xb = g.Axis(b).Faces[0]
			} else {
				d = pos[s+1] - pos[s]
				xb = g.Axis(b).Faces[nb]
			}
			if normal {
				coef = 1 / d
			} else {
				coef = 2 / d
			}

			idx := make([]int, dim)
			for {
				idx[b] = i
				area := 1.0
				flat := 0
				for e := 0; e < dim; e++ {
					flat += idx[e] * dstr[e]
					if e == b {
						x[e] = xb
						continue
					}
					if e == c {
						loC, _ := g.FaceOffsets(c)
						area *= g.FaceWidths(c)[idx[e]]
						x[e] = g.Axis(e).Faces[idx[e]+loC]
					} else {
						area *= g.Axis(e).Widths[idx[e]]
						x[e] = g.Axis(e).Centers[idx[e]]
					}
				}
				dst[flat] += nu * area * coef * bc.Value[c](x, t)
				if !nextSkipAxis(idx, dd, b) {
					break
				}
			}
		}
	}
}
