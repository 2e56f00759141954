package operators

import (
	"github.com/sifanexisted/macflow/grid"
)

// The convection and variable-viscosity kernels work on ghost-extended
// component buffers prepared by the caller (scatter + ghost fill). They
// are matrix-free because their coefficients change with the velocity or
// the eddy viscosity every evaluation; assembling them as sparse
// matrices per stage would dominate the hot loop.

// Convect writes the integrated divergence of the convective momentum
// flux of component c into dst: for every flux direction, the convecting
// velocity from W and the convected velocity from U are interpolated to
// the control-volume face and their product differenced. Passing the
// same buffers for U and W gives the plain scheme; a filtered W gives
// the Leray-regularized one.
func Convect(g *grid.Grid, U, W [][]float64, c int, dst []float64) {
	dim := g.Dim()
	dd := g.DOFDims(c)
	loC, _ := g.FaceOffsets(c)

	estr := make([][]int, dim)
	for k := 0; k < dim; k++ {
		estr[k] = grid.Strides(g.ExtDims(k))
	}

	idx := make([]int, dim)
	j := 0
	for {
		// Flat index of this DOF in component c's extended buffer.
		eC := 0
		for d := 0; d < dim; d++ {
			s := idx[d] + 1
			if d == c {
				s = idx[d] + loC + 1
			}
			eC += s * estr[c][d]
		}

		acc := 0.0
		for b := 0; b < dim; b++ {
			if b == c {
				sc := estr[c][c]
				uP := 0.5 * (U[c][eC] + U[c][eC+sc])
				uM := 0.5 * (U[c][eC-sc] + U[c][eC])
				wP := 0.5 * (W[c][eC] + W[c][eC+sc])
				wM := 0.5 * (W[c][eC-sc] + W[c][eC])
				area := 1.0
				for e := 0; e < dim; e++ {
					if e != c {
						area *= g.Axis(e).Widths[idx[e]]
					}
				}
				acc += (wP*uP - wM*uM) * area
				continue
			}

			sb := estr[c][b]
			uPb := 0.5 * (U[c][eC] + U[c][eC+sb])
			uMb := 0.5 * (U[c][eC-sb] + U[c][eC])

			// Corner values of the convecting component b: averaged along
			// c across the two cells sharing this face.
			f := idx[c] + loC
			eB := 0
			for d := 0; d < dim; d++ {
				var s int
				switch d {
				case b:
					s = idx[b] + 1 // face i_b
				case c:
					s = f // cell f-1
				default:
					s = idx[d] + 1
				}
				eB += s * estr[b][d]
			}
			wM := 0.5 * (W[b][eB] + W[b][eB+estr[b][c]])
			eBP := eB + estr[b][b] // face i_b+1
			wP := 0.5 * (W[b][eBP] + W[b][eBP+estr[b][c]])

			area := g.FaceWidths(c)[idx[c]]
			for e := 0; e < dim; e++ {
				if e != c && e != b {
					area *= g.Axis(e).Widths[idx[e]]
				}
			}
			acc += (wP*uPb - wM*uMb) * area
		}

		dst[j] = acc
		j++
		if !grid.Next(idx, dd) {
			return
		}
	}
}

// DiffuseVar writes the integrated diffusion of component c with a
// spatially varying effective viscosity into dst. nuExt is the
// cell-centered total viscosity in the pressure ghost layout; it is
// interpolated to face and corner flux points. Boundary data enters
// through the ghost values of U, so no separate boundary vector is
// needed on this path.
func DiffuseVar(g *grid.Grid, U [][]float64, nuExt []float64, c int, dst []float64) {
	dim := g.Dim()
	dd := g.DOFDims(c)
	loC, _ := g.FaceOffsets(c)

	estrC := grid.Strides(g.ExtDims(c))
	estrP := grid.Strides(g.ExtDims(-1))

	idx := make([]int, dim)
	j := 0
	for {
		eC := 0
		eP := 0 // cell f-1 along c, current cell elsewhere
		for d := 0; d < dim; d++ {
			s := idx[d] + 1
			if d == c {
				s = idx[d] + loC + 1
			}
			eC += s * estrC[d]
			sp := idx[d] + 1
			if d == c {
				sp = idx[c] + loC // cell f-1
			}
			eP += sp * estrP[d]
		}

		acc := 0.0
		for b := 0; b < dim; b++ {
			pos := g.ExtCoords(c, b)
			var s int
			if b == c {
				s = idx[b] + loC + 1
			} else {
				s = idx[b] + 1
			}
			dM := pos[s] - pos[s-1]
			dP := pos[s+1] - pos[s]
			sb := estrC[b]

			var nuM, nuP float64
			if b == c {
				nuM = nuExt[eP]
				nuP = nuExt[eP+estrP[c]]
			} else {
				// Corner averages over the four cells meeting the edge:
				// cells f-1 and f along c, paired with the neighbor above
				// (nuP) or below (nuM) along b.
				nuP = 0.25 * (nuExt[eP] + nuExt[eP+estrP[c]] + nuExt[eP+estrP[b]] + nuExt[eP+estrP[c]+estrP[b]])
				nuM = 0.25 * (nuExt[eP-estrP[b]] + nuExt[eP+estrP[c]-estrP[b]] + nuExt[eP] + nuExt[eP+estrP[c]])
			}

			area := 1.0
			for e := 0; e < dim; e++ {
				if e == b {
					continue
				}
				if e == c {
					area *= g.FaceWidths(c)[idx[e]]
				} else {
					area *= g.Axis(e).Widths[idx[e]]
				}
			}
			acc += (nuP*(U[c][eC+sb]-U[c][eC])/dP - nuM*(U[c][eC]-U[c][eC-sb])/dM) * area
		}

		dst[j] = acc
		j++
		if !grid.Next(idx, dd) {
			return
		}
	}
}

// SmoothC2 applies the C2 regularization filter to a ghost-extended
// component buffer in place: a 1-2-1 average along each axis in turn,
// refreshing the ghost layer between sweeps. tmp must have the same
// length as ext.
func SmoothC2(g *grid.Grid, c int, ext, tmp []float64, t float64) {
	dim := g.Dim()
	dd := g.DOFDims(c)
	loC, _ := g.FaceOffsets(c)
	estr := grid.Strides(g.ExtDims(c))

	for d := 0; d < dim; d++ {
		copy(tmp, ext)
		s := estr[d]
		idx := make([]int, dim)
		for {
			e := 0
			for k := 0; k < dim; k++ {
				sl := idx[k] + 1
				if k == c {
					sl = idx[k] + loC + 1
				}
				e += sl * estr[k]
			}
			ext[e] = 0.25 * (tmp[e-s] + 2*tmp[e] + tmp[e+s])
			if !grid.Next(idx, dd) {
				break
			}
		}
		g.FillGhosts(ext, c, t)
	}
}
