package boundary

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGhostExtendRoundTrip(t *testing.T) {
	x := []float64{0, 0.5, 1.2, 2.0, 3.0}
	kinds := []Kind{Periodic, Dirichlet, Symmetric, Pressure}
	for _, lo := range kinds {
		for _, hi := range kinds {
			ext, nLo, nHi := GhostExtend(lo, hi, x)
			require.Equal(t, x, ext[nLo:len(ext)-nHi], "lo=%s hi=%s", lo, hi)
		}
	}
}

func TestGhostExtendSpacing(t *testing.T) {
	x := []float64{0, 1, 2, 4}

	// Periodic wraps with the opposite side's spacing.
	ext, nLo, nHi := GhostExtend(Periodic, Periodic, x)
	assert.Equal(t, 1, nLo)
	assert.Equal(t, 1, nHi)
	assert.InDelta(t, -2.0, ext[0], 1e-15)
	assert.InDelta(t, 5.0, ext[len(ext)-1], 1e-15)

	// Dirichlet duplicates the boundary node with zero width.
	ext, _, _ = GhostExtend(Dirichlet, Dirichlet, x)
	assert.Equal(t, 0.0, ext[0])
	assert.Equal(t, 4.0, ext[len(ext)-1])

	// Pressure adds two nodes on the left, one on the right.
	ext, nLo, nHi = GhostExtend(Pressure, Pressure, x)
	assert.Equal(t, 2, nLo)
	assert.Equal(t, 1, nHi)
	assert.InDelta(t, -2.0, ext[0], 1e-15)
	assert.InDelta(t, -1.0, ext[1], 1e-15)
}

func TestDOFOffset(t *testing.T) {
	assert.Equal(t, 0, DOFOffset(Periodic, true, false))
	assert.Equal(t, 1, DOFOffset(Periodic, true, true))
	assert.Equal(t, 1, DOFOffset(Dirichlet, true, false))
	assert.Equal(t, 1, DOFOffset(Dirichlet, true, true))
	assert.Equal(t, 1, DOFOffset(Symmetric, true, false))
	assert.Equal(t, 0, DOFOffset(Pressure, true, true))
	for _, k := range []Kind{Periodic, Dirichlet, Symmetric, Pressure} {
		assert.Equal(t, 0, DOFOffset(k, false, false), "tangential %s", k)
	}
}

func TestSetValidate(t *testing.T) {
	wall := Condition{Kind: Dirichlet}
	per := Condition{Kind: Periodic}

	require.NoError(t, Set{{Lo: per, Hi: per}, {Lo: wall, Hi: wall}}.Validate(2))

	err := Set{{Lo: per, Hi: wall}, {Lo: wall, Hi: wall}}.Validate(2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "periodic")

	require.Error(t, Set{{Lo: per, Hi: per}}.Validate(2))
}

func TestSetTimeDependent(t *testing.T) {
	wall := Condition{Kind: Dirichlet}
	moving := Condition{Kind: Dirichlet, Unsteady: true}
	assert.False(t, Set{{Lo: wall, Hi: wall}}.TimeDependent())
	assert.True(t, Set{{Lo: wall, Hi: moving}}.TimeDependent())
}

// extGeometry builds the extended shape and slot coordinates of a field
// on an nx*ny cell grid: faces along the component's own axis, centers
// elsewhere.
func extGeometry(comp, nx, ny int) (ed []int, pos [][]float64) {
	dims := []int{nx, ny}
	ed = make([]int, 2)
	pos = make([][]float64, 2)
	for d := 0; d < 2; d++ {
		if d == comp {
			ed[d] = dims[d] + 3
			p := make([]float64, ed[d])
			for i := range p {
				p[i] = float64(i - 1) // faces -1..N+1
			}
			pos[d] = p
		} else {
			ed[d] = dims[d] + 2
			p := make([]float64, ed[d])
			for i := range p {
				p[i] = float64(i-1) + 0.5 // centers -1..N
			}
			pos[d] = p
		}
	}
	return ed, pos
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// ApplyAdjoint must be the exact transpose of the homogeneous part of
// Apply: ⟨A x, y⟩ = ⟨x, Aᵀ y⟩ for any pair of buffers.
func TestApplyAdjointPairing(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	kinds := []Kind{Periodic, Dirichlet, Symmetric, Pressure}

	for _, comp := range []int{0, 1, -1} {
		for axis := 0; axis < 2; axis++ {
			for _, kind := range kinds {
				for _, side := range []Side{Lo, Hi} {
					ed, pos := extGeometry(comp, 5, 4)
					n := ed[0] * ed[1]
					x := make([]float64, n)
					y := make([]float64, n)
					for i := 0; i < n; i++ {
						x[i] = rng.NormFloat64()
						y[i] = rng.NormFloat64()
					}

					bc := Condition{Kind: kind}
					ax := append([]float64(nil), x...)
					Apply(ax, ed, pos, comp, axis, side, bc, 0)
					ay := append([]float64(nil), y...)
					ApplyAdjoint(ay, ed, comp, axis, side, bc)

					assert.InDelta(t, dot(ax, y), dot(x, ay), 1e-12,
						"comp=%d axis=%d kind=%s side=%s", comp, axis, kind, side)
				}
			}
		}
	}
}

func TestApplyPeriodicWrapsNormal(t *testing.T) {
	ed, pos := extGeometry(0, 4, 3)
	n := ed[0] * ed[1]
	data := make([]float64, n)
	// Row j=1 along x: slots 0..6 are faces -1..5 of a 4-cell axis.
	row := ed[0]
	for i := 0; i < ed[0]; i++ {
		data[row+i] = float64(10 + i)
	}
	bc := Condition{Kind: Periodic}
	Apply(data, ed, pos, 0, 0, Lo, bc, 0)
	Apply(data, ed, pos, 0, 0, Hi, bc, 0)

	assert.Equal(t, data[row+4], data[row+0], "face -1 = face 3")
	assert.Equal(t, data[row+1], data[row+5], "face 4 = face 0")
	assert.Equal(t, data[row+2], data[row+6], "face 5 = face 1")
}

func TestApplyDirichletTangentialMirror(t *testing.T) {
	// Component u on axis 1: the wall passes midway between ghost and
	// first interior center, so ghost = 2g - interior.
	ed, pos := extGeometry(0, 4, 3)
	n := ed[0] * ed[1]
	data := make([]float64, n)
	for i := range data {
		data[i] = 2.0
	}
	g := 0.5
	bc := Condition{
		Kind:  Dirichlet,
		Value: [3]ScalarFunc{func(_ []float64, _ float64) float64 { return g }},
	}
	Apply(data, ed, pos, 0, 1, Lo, bc, 0)

	// Ghost row j=0 should hold 2*0.5 - 2.0 = -1.
	for i := 0; i < ed[0]; i++ {
		assert.InDelta(t, -1.0, data[i], 1e-15)
	}
}

func TestApplySymmetricNormalZero(t *testing.T) {
	ed, pos := extGeometry(1, 3, 4)
	n := ed[0] * ed[1]
	data := make([]float64, n)
	for i := range data {
		data[i] = 3.0
	}
	bc := Condition{Kind: Symmetric}
	Apply(data, ed, pos, 1, 1, Lo, bc, 0)

	// Boundary face row (slot 1) is zero, ghost row mirrors negatively.
	for i := 0; i < ed[0]; i++ {
		assert.Equal(t, 0.0, data[ed[0]+i])
		assert.Equal(t, -3.0, data[i])
	}
}
