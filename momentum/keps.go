package momentum

import (
	"math"

	"github.com/sifanexisted/macflow/boundary"
	"github.com/sifanexisted/macflow/grid"
)

// KEpsilon is the standard two-equation closure: cell-centered
// turbulent kinetic energy k and dissipation rate ε transported by
// upwind convection and gradient diffusion, with strain-rate
// production. Walls get zero-gradient scalar ghosts. The scalar fields
// are advanced explicitly once per time step, lagged with respect to
// the velocity.
type KEpsilon struct {
	K   []float64
	Eps []float64

	Cmu, C1, C2      float64
	SigmaK, SigmaEps float64

	nuMol float64
	nut   []float64
	kExt  []float64
	eExt  []float64
	nExt  []float64
	dk    []float64
	de    []float64
}

const scalarFloor = 1e-12

// NewKEpsilon builds the closure with uniform initial scalar levels and
// the standard model constants.
func NewKEpsilon(g *grid.Grid, k0, eps0 float64) *KEpsilon {
	n := g.NumCells()
	m := &KEpsilon{
		K:        make([]float64, n),
		Eps:      make([]float64, n),
		Cmu:      0.09,
		C1:       1.44,
		C2:       1.92,
		SigmaK:   1.0,
		SigmaEps: 1.3,
		nut:      make([]float64, n),
		kExt:     make([]float64, g.ExtLen(-1)),
		eExt:     make([]float64, g.ExtLen(-1)),
		nExt:     make([]float64, g.ExtLen(-1)),
		dk:       make([]float64, n),
		de:       make([]float64, n),
	}
	for i := 0; i < n; i++ {
		m.K[i] = math.Max(k0, scalarFloor)
		m.Eps[i] = math.Max(eps0, scalarFloor)
	}
	return m
}

func (*KEpsilon) Turbulent() bool { return true }

// EddyViscosity evaluates νt = Cμ·k²/ε from the current scalar fields.
func (m *KEpsilon) EddyViscosity(_ *grid.Grid, _ [][]float64, nut []float64) {
	for i := range nut {
		k := m.K[i]
		e := math.Max(m.Eps[i], scalarFloor)
		nut[i] = m.Cmu * k * k / e
		m.nut[i] = nut[i]
	}
}

// Advance steps both scalar transport equations by one explicit Euler
// increment of size dt, given ghost-filled velocity buffers.
func (m *KEpsilon) Advance(g *grid.Grid, nu float64, vel [][]float64, dt float64) {
	dim := g.Dim()
	cells := g.CellDims()
	n := g.NumCells()
	m.nuMol = nu

	for i := 0; i < n; i++ {
		k := m.K[i]
		e := math.Max(m.Eps[i], scalarFloor)
		m.nut[i] = m.Cmu * k * k / e
	}

	g.Scatter(m.K, -1, m.kExt)
	fillScalarGhosts(g, m.kExt)
	g.Scatter(m.Eps, -1, m.eExt)
	fillScalarGhosts(g, m.eExt)
	g.Scatter(m.nut, -1, m.nExt)
	fillScalarGhosts(g, m.nExt)

	for i := 0; i < n; i++ {
		m.dk[i] = 0
		m.de[i] = 0
	}

	estrP := grid.Strides(g.ExtDims(-1))
	estrV := make([][]int, dim)
	for c := 0; c < dim; c++ {
		estrV[c] = grid.Strides(g.ExtDims(c))
	}
	str := grid.Strides(cells)

	// Face sweep: every cell adds its hi face; the lo boundary face is
	// added by the first cell only on non-periodic axes, since a
	// periodic wrap face is already the hi face of the last cell.
	idx := make([]int, dim)
	for {
		eP := 0
		for d := 0; d < dim; d++ {
			eP += (idx[d] + 1) * estrP[d]
		}
		for d := 0; d < dim; d++ {
			m.faceFlux(g, vel, estrP, estrV[d], str, idx, d, eP, true)
			if idx[d] == 0 && g.BC(d).Lo.Kind != boundary.Periodic {
				m.faceFlux(g, vel, estrP, estrV[d], str, idx, d, eP, false)
			}
		}
		if !grid.Next(idx, cells) {
			break
		}
	}

	// Sources and the explicit update, with positivity floors.
	eachCellStrain(g, vel, func(i int, vol float64, S []float64) {
		smag := strainMagnitude(S)
		prod := m.nut[i] * smag * smag
		k := m.K[i]
		e := math.Max(m.Eps[i], scalarFloor)

		m.K[i] += dt * (m.dk[i]/vol + prod - e)
		m.Eps[i] += dt * (m.de[i]/vol + (e/math.Max(k, scalarFloor))*(m.C1*prod-m.C2*e))

		if m.K[i] < scalarFloor {
			m.K[i] = scalarFloor
		}
		if m.Eps[i] < scalarFloor {
			m.Eps[i] = scalarFloor
		}
	})
}

// faceFlux accumulates the convective and diffusive flux across one
// face of axis d onto the budgets of the cells it separates.
func (m *KEpsilon) faceFlux(g *grid.Grid, vel [][]float64, estrP, estrV, str, idx []int, d, eP int, hi bool) {
	dim := g.Dim()
	nd := g.Axis(d).Len()

	f := idx[d]
	if hi {
		f = idx[d] + 1
	}
	eL := eP + (f-idx[d]-1)*estrP[d] // scalar slot of cell f-1
	eR := eL + estrP[d]

	// Normal velocity at face f.
	eV := 0
	for e := 0; e < dim; e++ {
		s := idx[e] + 1
		if e == d {
			s = f + 1
		}
		eV += s * estrV[e]
	}
	u := vel[d][eV]

	area := 1.0
	for e := 0; e < dim; e++ {
		if e != d {
			area *= g.Axis(e).Widths[idx[e]]
		}
	}

	pos := g.ExtCoords(-1, d)
	dx := pos[f+1] - pos[f]
	nuf := 0.5 * (m.nExt[eL] + m.nExt[eR])

	flux := func(ext []float64, sigma float64) float64 {
		conv := u * ext[eR]
		if u >= 0 {
			conv = u * ext[eL]
		}
		diff := (m.nuMol + nuf/sigma) * (ext[eR] - ext[eL]) / dx
		return (diff - conv) * area
	}

	fk := flux(m.kExt, m.SigmaK)
	fe := flux(m.eExt, m.SigmaEps)

	// A positive flux enters the right cell and leaves the left one.
	flatL, flatR := -1, -1
	switch {
	case hi && f < nd:
		flatL = flat(idx, str)
		flatR = flatL + str[d]
	case hi: // f == nd, hi boundary face
		flatL = flat(idx, str)
		if g.BC(d).Lo.Kind == boundary.Periodic {
			flatR = flatL - (nd-1)*str[d]
		}
	default: // lo boundary face of a wall axis
		flatR = flat(idx, str)
	}
	if flatL >= 0 {
		m.dk[flatL] -= fk
		m.de[flatL] -= fe
	}
	if flatR >= 0 {
		m.dk[flatR] += fk
		m.de[flatR] += fe
	}
}

func flat(idx, str []int) int {
	f := 0
	for d, v := range idx {
		f += v * str[d]
	}
	return f
}
