// Package momentum evaluates the right-hand side of the discrete
// momentum equation: convection (plain or regularized), diffusion with
// the active viscosity closure, body force, and optionally the pressure
// force. All evaluations write into buffers allocated once at
// construction; the hot loop does not allocate.
package momentum

import (
	"gonum.org/v1/gonum/floats"

	"github.com/sifanexisted/macflow/boundary"
	"github.com/sifanexisted/macflow/grid"
	"github.com/sifanexisted/macflow/operators"
)

// Regularization selects how the convective term is smoothed before
// differencing. The C2, C4 and Leray variants apply a separable 1-2-1
// filter to tame subfilter-scale transport on coarse grids.
type Regularization uint8

const (
	RegNone Regularization = iota
	RegC2
	RegC4
	RegLeray
)

func (r Regularization) String() string {
	switch r {
	case RegNone:
		return "none"
	case RegC2:
		return "C2"
	case RegC4:
		return "C4"
	case RegLeray:
		return "leray"
	}
	return "unknown"
}

// Assembler owns the operators, closure and scratch state needed to
// evaluate the momentum right-hand side for one configuration. It is
// not safe for concurrent use.
type Assembler struct {
	op    *operators.Operators
	g     *grid.Grid
	cl    Closure
	reg   Regularization
	force []boundary.ScalarFunc // per component, nil entries mean zero

	ext  [][]float64 // ghost-extended velocity components
	extF [][]float64 // filtered velocity, regularized variants only
	extD [][]float64 // subfilter fluctuation, C4 only
	tmp  []float64   // filter scratch, sized to the largest component

	buf, buf2 []float64 // per-component packed scratch
	gbuf      []float64 // pressure force accumulator
	tmp2      []float64 // second filter scratch, C2/C4 only
	pack      []float64 // packed-vector scratch, C2/C4 only

	nut    []float64 // cell-centered eddy viscosity
	nutTot []float64
	nuExt  []float64
}

// NewAssembler prepares an assembler for the given operators, closure,
// convection regularization and per-component body force. A nil closure
// means laminar.
func NewAssembler(op *operators.Operators, cl Closure, reg Regularization, force []boundary.ScalarFunc) *Assembler {
	g := op.Grid()
	dim := g.Dim()
	a := &Assembler{op: op, g: g, cl: cl, reg: reg, force: force}

	a.ext = make([][]float64, dim)
	maxExt, maxComp := 0, 0
	for c := 0; c < dim; c++ {
		n := g.ExtLen(c)
		a.ext[c] = make([]float64, n)
		if n > maxExt {
			maxExt = n
		}
		if g.CompLen(c) > maxComp {
			maxComp = g.CompLen(c)
		}
	}
	if reg != RegNone {
		a.extF = make([][]float64, dim)
		for c := 0; c < dim; c++ {
			a.extF[c] = make([]float64, g.ExtLen(c))
		}
	}
	if reg == RegC4 {
		a.extD = make([][]float64, dim)
		for c := 0; c < dim; c++ {
			a.extD[c] = make([]float64, g.ExtLen(c))
		}
	}
	a.tmp = make([]float64, maxExt)
	if reg == RegC2 || reg == RegC4 {
		a.tmp2 = make([]float64, maxExt)
		a.pack = make([]float64, g.NumVel())
	}
	a.buf = make([]float64, maxComp)
	a.buf2 = make([]float64, maxComp)
	a.gbuf = make([]float64, g.NumVel())

	if cl != nil && cl.Turbulent() {
		a.nut = make([]float64, g.NumCells())
		a.nutTot = make([]float64, g.NumCells())
		a.nuExt = make([]float64, g.ExtLen(-1))
	}
	return a
}

// Grid returns the grid the assembler was built on.
func (a *Assembler) Grid() *grid.Grid { return a.g }

// Operators returns the assembled operator set.
func (a *Assembler) Operators() *operators.Operators { return a.op }

// Closure returns the active viscosity closure, nil for laminar.
func (a *Assembler) Closure() Closure { return a.cl }

// RHS writes the integrated momentum right-hand side for state (V, p)
// at time t into dst. With withPressure false the pressure force is
// left out, which the projection stepper wants for its provisional
// velocity.
func (a *Assembler) RHS(dst, V, p []float64, t float64, withPressure bool) {
	g := a.g
	dim := g.Dim()
	for c := 0; c < dim; c++ {
		g.Scatter(V, c, a.ext[c])
		g.FillGhosts(a.ext[c], c, t)
	}

	if a.reg != RegNone {
		for c := 0; c < dim; c++ {
			copy(a.extF[c], a.ext[c])
			operators.SmoothC2(g, c, a.extF[c], a.tmp[:len(a.extF[c])], t)
		}
	}
	if a.reg == RegC4 {
		for c := 0; c < dim; c++ {
			floats.SubTo(a.extD[c], a.ext[c], a.extF[c])
		}
	}

	for c := 0; c < dim; c++ {
		nc := g.CompLen(c)
		buf := a.buf[:nc]
		switch a.reg {
		case RegNone:
			operators.Convect(g, a.ext, a.ext, c, buf)
		case RegLeray:
			// Filtered convecting field, raw convected field.
			operators.Convect(g, a.ext, a.extF, c, buf)
		case RegC2:
			operators.Convect(g, a.extF, a.extF, c, buf)
			a.filterComp(c, buf, t)
		case RegC4:
			operators.Convect(g, a.extF, a.extF, c, buf)
			buf2 := a.buf2[:nc]
			operators.Convect(g, a.extD, a.extF, c, buf2)
			a.filterComp(c, buf2, t)
			floats.Add(buf, buf2)
			operators.Convect(g, a.extF, a.extD, c, buf2)
			a.filterComp(c, buf2, t)
			floats.Add(buf, buf2)
		}
		seg := dst[g.CompOffset(c) : g.CompOffset(c)+nc]
		floats.ScaleTo(seg, -1, buf)
	}

	if a.cl == nil || !a.cl.Turbulent() {
		a.op.DiffusionAdd(dst, V, t)
	} else {
		a.cl.EddyViscosity(g, a.ext, a.nut)
		nu := a.op.Nu()
		for i, v := range a.nut {
			a.nutTot[i] = nu + v
		}
		g.Scatter(a.nutTot, -1, a.nuExt)
		fillScalarGhosts(g, a.nuExt)
		for c := 0; c < dim; c++ {
			nc := g.CompLen(c)
			buf := a.buf[:nc]
			operators.DiffuseVar(g, a.ext, a.nuExt, c, buf)
			floats.Add(dst[g.CompOffset(c):g.CompOffset(c)+nc], buf)
		}
	}

	a.addForce(dst, t)

	if withPressure {
		a.op.GradForce(a.gbuf, p, t)
		floats.Add(dst, a.gbuf)
	}
}

// AdvanceClosure steps the closure's transported scalar fields, if it
// has any, using the ghost-filled velocity of state V.
func (a *Assembler) AdvanceClosure(V []float64, t, dt float64) {
	tc, ok := a.cl.(Transported)
	if !ok {
		return
	}
	for c := 0; c < a.g.Dim(); c++ {
		a.g.Scatter(V, c, a.ext[c])
		a.g.FillGhosts(a.ext[c], c, t)
	}
	tc.Advance(a.g, a.op.Nu(), a.ext, dt)
}

// filterComp applies the regularization filter to a packed component
// vector by a round trip through the ghost-extended layout. Component
// offsets cancel through a zero-based scratch copy.
func (a *Assembler) filterComp(c int, buf []float64, t float64) {
	n := a.g.ExtLen(c)
	ext := a.tmp[:n]
	tmp := a.tmp2[:n]
	for i := range ext {
		ext[i] = 0
	}
	copy(a.pack[a.g.CompOffset(c):], buf)
	a.g.Scatter(a.pack, c, ext)
	a.g.FillGhosts(ext, c, t)
	operators.SmoothC2(a.g, c, ext, tmp, t)
	a.g.Gather(ext, c, a.pack)
	copy(buf, a.pack[a.g.CompOffset(c):a.g.CompOffset(c)+len(buf)])
}

// addForce accumulates the integrated body force.
func (a *Assembler) addForce(dst []float64, t float64) {
	if a.force == nil {
		return
	}
	g := a.g
	dim := g.Dim()
	vol := g.VelVolumes()
	x := make([]float64, dim)
	for c := 0; c < dim; c++ {
		if c >= len(a.force) || a.force[c] == nil {
			continue
		}
		fn := a.force[c]
		dd := g.DOFDims(c)
		loC, _ := g.FaceOffsets(c)
		idx := make([]int, dim)
		j := g.CompOffset(c)
		for {
			for d := 0; d < dim; d++ {
				if d == c {
					x[d] = g.Axis(d).Faces[idx[d]+loC]
				} else {
					x[d] = g.Axis(d).Centers[idx[d]]
				}
			}
			dst[j] += fn(x, t) * vol[j]
			j++
			if !grid.Next(idx, dd) {
				break
			}
		}
	}
}

// fillScalarGhosts fills the ghost layer of a cell-centered scalar with
// periodic wrap or nearest-interior copy. Used for viscosity and
// transported turbulence scalars, which carry zero-gradient walls.
func fillScalarGhosts(g *grid.Grid, ext []float64) {
	dim := g.Dim()
	ed := g.ExtDims(-1)
	estr := grid.Strides(ed)
	for d := 0; d < dim; d++ {
		m := ed[d]
		s := estr[d]
		periodic := g.BC(d).Lo.Kind == boundary.Periodic
		idx := make([]int, dim)
		for {
			base := 0
			for e, v := range idx {
				if e != d {
					base += v * estr[e]
				}
			}
			if periodic {
				ext[base] = ext[base+(m-2)*s]
				ext[base+(m-1)*s] = ext[base+s]
			} else {
				ext[base] = ext[base+s]
				ext[base+(m-1)*s] = ext[base+(m-2)*s]
			}
			if !nextSkip(idx, ed, d) {
				break
			}
		}
	}
}

func nextSkip(idx, dims []int, skip int) bool {
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
