package momentum

import (
	"math"

	"github.com/sifanexisted/macflow/grid"
)

// Closure supplies the eddy-viscosity contribution of a turbulence
// model. The laminar closure contributes none and keeps the sparse
// constant-viscosity diffusion path; everything else switches the
// assembler to the variable-viscosity kernel.
type Closure interface {
	// Turbulent reports whether the closure contributes eddy viscosity.
	Turbulent() bool
	// EddyViscosity writes the cell-centered eddy viscosity into nut,
	// one entry per pressure cell, from ghost-filled velocity buffers.
	EddyViscosity(g *grid.Grid, vel [][]float64, nut []float64)
}

// Transported marks closures that carry their own transported scalar
// fields and must be stepped alongside the velocity.
type Transported interface {
	Closure
	Advance(g *grid.Grid, nu float64, vel [][]float64, dt float64)
}

// Laminar is the no-model closure.
type Laminar struct{}

func (Laminar) Turbulent() bool { return false }

func (Laminar) EddyViscosity(_ *grid.Grid, _ [][]float64, nut []float64) {
	for i := range nut {
		nut[i] = 0
	}
}

// MixingLength models the eddy viscosity as ℓ²·|S| with a fixed mixing
// length.
type MixingLength struct {
	Length float64
}

func (MixingLength) Turbulent() bool { return true }

func (m MixingLength) EddyViscosity(g *grid.Grid, vel [][]float64, nut []float64) {
	l2 := m.Length * m.Length
	eachCellStrain(g, vel, func(i int, _ float64, S []float64) {
		nut[i] = l2 * strainMagnitude(S)
	})
}

// Smagorinsky models the eddy viscosity as (Cs·Δ)²·|S| with the local
// filter width Δ taken as the cube (square) root of the cell volume.
type Smagorinsky struct {
	Cs float64
}

func (Smagorinsky) Turbulent() bool { return true }

func (m Smagorinsky) EddyViscosity(g *grid.Grid, vel [][]float64, nut []float64) {
	inv := 1.0 / float64(g.Dim())
	vols := g.CellVolumes()
	c2 := m.Cs * m.Cs
	eachCellStrain(g, vel, func(i int, _ float64, S []float64) {
		delta := math.Pow(vols[i], inv)
		nut[i] = c2 * delta * delta * strainMagnitude(S)
	})
}

// QR is Verstappen's minimum-dissipation model built on the invariants
// of the rate-of-strain tensor: νt = C·Δ²·max(r, 0)/q with
// q = ½ tr(S²) and r = -det(S).
type QR struct {
	C float64 // typically 0.024
}

func (QR) Turbulent() bool { return true }

func (m QR) EddyViscosity(g *grid.Grid, vel [][]float64, nut []float64) {
	dim := g.Dim()
	inv := 1.0 / float64(dim)
	vols := g.CellVolumes()
	eachCellStrain(g, vel, func(i int, _ float64, S []float64) {
		q := 0.0
		for _, v := range S {
			q += v * v
		}
		q *= 0.5
		if q < 1e-14 {
			nut[i] = 0
			return
		}
		r := -det(S, dim)
		if r <= 0 {
			nut[i] = 0
			return
		}
		delta := math.Pow(vols[i], inv)
		nut[i] = m.C * delta * delta * r / q
	})
}

// strainMagnitude returns |S| = sqrt(2·S:S).
func strainMagnitude(S []float64) float64 {
	s := 0.0
	for _, v := range S {
		s += v * v
	}
	return math.Sqrt(2 * s)
}

func det(S []float64, dim int) float64 {
	if dim == 2 {
		return S[0]*S[3] - S[1]*S[2]
	}
	return S[0]*(S[4]*S[8]-S[5]*S[7]) -
		S[1]*(S[3]*S[8]-S[5]*S[6]) +
		S[2]*(S[3]*S[7]-S[4]*S[6])
}

// eachCellStrain visits every pressure cell with its volume and the
// symmetric rate-of-strain tensor S (row-major dim×dim), built from the
// ghost-filled staggered velocity: diagonal entries from the face
// difference across the cell, off-diagonal entries from centered
// differences of cell-averaged components.
func eachCellStrain(g *grid.Grid, vel [][]float64, fn func(i int, vol float64, S []float64)) {
	dim := g.Dim()
	cells := g.CellDims()
	vols := g.CellVolumes()

	estr := make([][]int, dim)
	for c := 0; c < dim; c++ {
		estr[c] = grid.Strides(g.ExtDims(c))
	}

	// Cell-averaged value of component c at the (possibly ghost) cell
	// reached by shifting the current cell along axis b.
	avg := func(c int, idx []int, b, shift int) float64 {
		e := 0
		for d := 0; d < dim; d++ {
			s := idx[d] + 1
			if d == b {
				s += shift
			}
			e += s * estr[c][d]
		}
		return 0.5 * (vel[c][e] + vel[c][e+estr[c][c]])
	}

	S := make([]float64, dim*dim)
	grad := make([]float64, dim*dim)
	idx := make([]int, dim)
	i := 0
	for {
		for c := 0; c < dim; c++ {
			for b := 0; b < dim; b++ {
				if b == c {
					e := 0
					for d := 0; d < dim; d++ {
						e += (idx[d] + 1) * estr[c][d]
					}
					grad[c*dim+b] = (vel[c][e+estr[c][c]] - vel[c][e]) / g.Axis(c).Widths[idx[c]]
					continue
				}
				pos := g.ExtCoords(-1, b)
				s := idx[b] + 1
				grad[c*dim+b] = (avg(c, idx, b, 1) - avg(c, idx, b, -1)) / (pos[s+1] - pos[s-1])
			}
		}
		for c := 0; c < dim; c++ {
			for b := 0; b < dim; b++ {
				S[c*dim+b] = 0.5 * (grad[c*dim+b] + grad[b*dim+c])
			}
		}
		fn(i, vols[i], S)
		i++
		if !grid.Next(idx, cells) {
			return
		}
	}
}
