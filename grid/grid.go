package grid

import (
	"fmt"
	"math"

	"github.com/sifanexisted/macflow/boundary"
)

// Grid is the staggered (MAC) discretization of a 2D or 3D box: velocity
// components live on the faces normal to their direction, pressure at
// cell centers. All derived index and metric data is computed once at
// construction and immutable afterwards.
type Grid struct {
	dim  int
	axes []Axis
	bcs  boundary.Set

	nCells []int // pressure cells per axis
	nP     int   // total pressure DOFs

	offLo, offHi []int   // normal-velocity non-DOF slots per axis end
	dofDims      [][]int // [comp][axis] interior DOF counts
	dofStrides   [][]int
	compOff      []int // compOff[dim] == total velocity DOFs

	faceWidths [][]float64 // [axis][dof] distance between adjacent centers

	omU, omUInv []float64 // velocity DOF volumes, concatenated by component
	omP, omPInv []float64 // cell volumes

	extDims [][]int       // [comp][axis]; index dim holds the pressure shape
	extPos  [][][]float64 // [comp][axis][slot] sample coordinates
}

// New validates the axis/boundary pairing and derives the staggered
// layout. Mismatched dimensionality or an asymmetric periodic pairing is
// a configuration error.
func New(axes []Axis, bcs boundary.Set) (*Grid, error) {
	dim := len(axes)
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("grid: dimension must be 2 or 3, got %d", dim)
	}
	if err := bcs.Validate(dim); err != nil {
		return nil, err
	}

	g := &Grid{dim: dim, axes: axes, bcs: bcs}
	g.nCells = make([]int, dim)
	g.offLo = make([]int, dim)
	g.offHi = make([]int, dim)
	g.nP = 1
	for d, ax := range axes {
		g.nCells[d] = ax.Len()
		g.nP *= ax.Len()
		g.offLo[d] = boundary.DOFOffset(bcs[d].Lo.Kind, true, false)
		g.offHi[d] = boundary.DOFOffset(bcs[d].Hi.Kind, true, true)
		if g.nCells[d] < 3 || g.nCells[d]+1-g.offLo[d]-g.offHi[d] < 2 {
			return nil, fmt.Errorf("grid: axis %d too short for its boundary conditions", d)
		}
	}

	g.dofDims = make([][]int, dim)
	g.dofStrides = make([][]int, dim)
	g.compOff = make([]int, dim+1)
	for c := 0; c < dim; c++ {
		dd := make([]int, dim)
		for d := 0; d < dim; d++ {
			if d == c {
				dd[d] = g.nCells[d] + 1 - g.offLo[d] - g.offHi[d]
			} else {
				dd[d] = g.nCells[d]
			}
		}
		g.dofDims[c] = dd
		g.dofStrides[c] = Strides(dd)
		n := 1
		for _, v := range dd {
			n *= v
		}
		g.compOff[c+1] = g.compOff[c] + n
	}

	g.buildFaceWidths()
	g.buildExtended()
	if err := g.buildVolumes(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Grid) buildFaceWidths() {
	g.faceWidths = make([][]float64, g.dim)
	for d := 0; d < g.dim; d++ {
		ax := g.axes[d]
		n := ax.Len()
		nd := g.dofDims[d][d]
		fw := make([]float64, nd)
		wrap := (ax.Centers[0] - ax.Faces[0]) + (ax.Faces[n] - ax.Centers[n-1])
		for i := 0; i < nd; i++ {
			f := i + g.offLo[d]
			switch {
			case f == 0 && g.bcs[d].Lo.Kind == boundary.Periodic:
				fw[i] = wrap
			case f == 0: // Pressure boundary face
				fw[i] = ax.Centers[0] - ax.Faces[0]
			case f == n:
				fw[i] = ax.Faces[n] - ax.Centers[n-1]
			default:
				fw[i] = ax.Centers[f] - ax.Centers[f-1]
			}
		}
		g.faceWidths[d] = fw
	}
}

func (g *Grid) buildExtended() {
	g.extDims = make([][]int, g.dim+1)
	g.extPos = make([][][]float64, g.dim+1)
	for c := 0; c <= g.dim; c++ {
		ed := make([]int, g.dim)
		pos := make([][]float64, g.dim)
		for d := 0; d < g.dim; d++ {
			if c < g.dim && d == c {
				ed[d] = g.nCells[d] + 3
				pos[d] = g.extFaceCoords(d)
			} else {
				ed[d] = g.nCells[d] + 2
				pos[d] = g.extCenterCoords(d)
			}
		}
		g.extDims[c] = ed
		g.extPos[c] = pos
	}
}

// extFaceCoords returns sample coordinates for faces -1..N+1.
func (g *Grid) extFaceCoords(d int) []float64 {
	ax := g.axes[d]
	n := ax.Len()
	pos := make([]float64, n+3)
	copy(pos[1:], ax.Faces)
	if g.bcs[d].Lo.Kind == boundary.Periodic {
		pos[0] = ax.Faces[0] - (ax.Faces[n] - ax.Faces[n-1])
		pos[n+2] = ax.Faces[n] + (ax.Faces[1] - ax.Faces[0])
	} else {
		pos[0] = 2*ax.Faces[0] - ax.Faces[1]
		pos[n+2] = 2*ax.Faces[n] - ax.Faces[n-1]
	}
	return pos
}

// extCenterCoords returns sample coordinates for cells -1..N.
func (g *Grid) extCenterCoords(d int) []float64 {
	ax := g.axes[d]
	n := ax.Len()
	pos := make([]float64, n+2)
	copy(pos[1:], ax.Centers)
	if g.bcs[d].Lo.Kind == boundary.Periodic {
		pos[0] = ax.Centers[0] - ((ax.Centers[0] - ax.Faces[0]) + (ax.Faces[n] - ax.Centers[n-1]))
		pos[n+1] = ax.Centers[n-1] + ((ax.Faces[n] - ax.Centers[n-1]) + (ax.Centers[0] - ax.Faces[0]))
	} else {
		pos[0] = 2*ax.Faces[0] - ax.Centers[0]
		pos[n+1] = 2*ax.Faces[n] - ax.Centers[n-1]
	}
	return pos
}

func (g *Grid) buildVolumes() error {
	g.omP = make([]float64, g.nP)
	g.omPInv = make([]float64, g.nP)
	idx := make([]int, g.dim)
	for i := 0; i < g.nP; i++ {
		v := 1.0
		for d := 0; d < g.dim; d++ {
			v *= g.axes[d].Widths[idx[d]]
		}
		g.omP[i] = v
		g.omPInv[i] = 1 / v
		Next(idx, g.nCells)
	}

	nv := g.compOff[g.dim]
	g.omU = make([]float64, nv)
	g.omUInv = make([]float64, nv)
	for c := 0; c < g.dim; c++ {
		dd := g.dofDims[c]
		idx = make([]int, g.dim)
		for j := g.compOff[c]; j < g.compOff[c+1]; j++ {
			v := 1.0
			for d := 0; d < g.dim; d++ {
				if d == c {
					v *= g.faceWidths[d][idx[d]]
				} else {
					v *= g.axes[d].Widths[idx[d]]
				}
			}
			g.omU[j] = v
			g.omUInv[j] = 1 / v
			Next(idx, dd)
		}
	}

	for _, v := range g.omUInv {
		if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return fmt.Errorf("grid: non-positive or non-finite volume weight")
		}
	}
	return nil
}

// Dim returns the spatial dimension.
func (g *Grid) Dim() int { return g.dim }

// Axis returns the 1D geometry of one direction.
func (g *Grid) Axis(d int) *Axis { return &g.axes[d] }

// BC returns the boundary condition pair of one axis.
func (g *Grid) BC(d int) boundary.Pair { return g.bcs[d] }

// BCs returns the full boundary condition set.
func (g *Grid) BCs() boundary.Set { return g.bcs }

// TimeDependent reports whether any boundary condition is unsteady.
func (g *Grid) TimeDependent() bool { return g.bcs.TimeDependent() }

// CellDims returns the pressure cell counts per axis.
func (g *Grid) CellDims() []int { return g.nCells }

// NumCells returns the total number of pressure DOFs.
func (g *Grid) NumCells() int { return g.nP }

// NumVel returns the total number of velocity DOFs over all components.
func (g *Grid) NumVel() int { return g.compOff[g.dim] }

// CompOffset returns the offset of component c in the packed velocity
// vector.
func (g *Grid) CompOffset(c int) int { return g.compOff[c] }

// CompLen returns the number of DOFs of component c.
func (g *Grid) CompLen(c int) int { return g.compOff[c+1] - g.compOff[c] }

// DOFDims returns the per-axis interior DOF counts of component c.
func (g *Grid) DOFDims(c int) []int { return g.dofDims[c] }

// FaceOffsets returns the lo/hi non-DOF face counts of axis d.
func (g *Grid) FaceOffsets(d int) (lo, hi int) { return g.offLo[d], g.offHi[d] }

// FaceWidths returns the control-volume widths of the normal-velocity
// DOFs of axis d (center-to-center distances).
func (g *Grid) FaceWidths(d int) []float64 { return g.faceWidths[d] }

// ExtDims returns the ghost-extended shape of component c, or of the
// pressure field for c < 0.
func (g *Grid) ExtDims(c int) []int {
	if c < 0 {
		c = g.dim
	}
	return g.extDims[c]
}

// ExtCoords returns the per-slot sample coordinates of component c along
// axis d (c < 0 for pressure).
func (g *Grid) ExtCoords(c, d int) []float64 {
	if c < 0 {
		c = g.dim
	}
	return g.extPos[c][d]
}

// ExtLen returns the flattened length of the ghost-extended buffer of
// component c (c < 0 for pressure).
func (g *Grid) ExtLen(c int) int {
	n := 1
	for _, v := range g.ExtDims(c) {
		n *= v
	}
	return n
}

// VelVolumes returns the velocity DOF volume weights, packed like V.
func (g *Grid) VelVolumes() []float64 { return g.omU }

// InvVelVolumes returns the inverses of the velocity DOF volumes.
func (g *Grid) InvVelVolumes() []float64 { return g.omUInv }

// CellVolumes returns the pressure cell volumes.
func (g *Grid) CellVolumes() []float64 { return g.omP }

// InvCellVolumes returns the inverses of the pressure cell volumes.
func (g *Grid) InvCellVolumes() []float64 { return g.omPInv }

// Scatter copies component c's DOFs from the packed velocity vector into
// the interior slots of a ghost-extended buffer. For c < 0 it scatters
// the pressure field.
func (g *Grid) Scatter(src []float64, c int, dst []float64) {
	g.copyExt(src, c, dst, true)
}

// Gather copies the interior slots of a ghost-extended buffer back into
// the packed vector.
func (g *Grid) Gather(src []float64, c int, dst []float64) {
	g.copyExt(dst, c, src, false)
}

func (g *Grid) copyExt(packed []float64, c int, ext []float64, scatter bool) {
	var dd []int
	base := 0
	if c < 0 {
		dd = g.nCells
	} else {
		dd = g.dofDims[c]
		base = g.compOff[c]
	}
	ed := g.ExtDims(c)
	estr := Strides(ed)

	idx := make([]int, g.dim)
	flat := base
	for {
		e := 0
		for d := 0; d < g.dim; d++ {
			s := idx[d] + 1
			if c >= 0 && d == c {
				s = idx[d] + g.offLo[d] + 1
			}
			e += s * estr[d]
		}
		if scatter {
			ext[e] = packed[flat]
		} else {
			packed[flat] = ext[e]
		}
		flat++
		if !Next(idx, dd) {
			return
		}
	}
}

// FillGhosts applies all boundary conditions of a ghost-extended buffer
// in place (c < 0 for pressure).
func (g *Grid) FillGhosts(ext []float64, c int, t float64) {
	ed := g.ExtDims(c)
	pos := g.extPos[g.dim]
	if c >= 0 {
		pos = g.extPos[c]
	}
	for d := 0; d < g.dim; d++ {
		boundary.Apply(ext, ed, pos, c, d, boundary.Lo, g.bcs[d].Lo, t)
		boundary.Apply(ext, ed, pos, c, d, boundary.Hi, g.bcs[d].Hi, t)
	}
}

// Strides returns flattening strides with the first axis fastest.
func Strides(dims []int) []int {
	str := make([]int, len(dims))
	str[0] = 1
	for d := 1; d < len(dims); d++ {
		str[d] = str[d-1] * dims[d-1]
	}
	return str
}

// Next advances a multi-index in first-axis-fastest order and reports
// false once the index space is exhausted.
func Next(idx, dims []int) bool {
	for d := 0; d < len(dims); d++ {
		idx[d]++
		if idx[d] < dims[d] {
			return true
		}
		idx[d] = 0
	}
	return false
}
