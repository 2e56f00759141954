package grid

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sifanexisted/macflow/boundary"
)

func periodicPair() boundary.Pair {
	return boundary.Pair{
		Lo: boundary.Condition{Kind: boundary.Periodic},
		Hi: boundary.Condition{Kind: boundary.Periodic},
	}
}

func wallPair() boundary.Pair {
	return boundary.Pair{
		Lo: boundary.Condition{Kind: boundary.Dirichlet},
		Hi: boundary.Condition{Kind: boundary.Dirichlet},
	}
}

func TestUniformAxis(t *testing.T) {
	ax, err := Uniform(8, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 8, ax.Len())
	assert.InDelta(t, 2.0, ax.Length(), 1e-15)
	assert.True(t, ax.Uniformity(1e-12))
	for i, w := range ax.Widths {
		assert.InDelta(t, 0.25, w, 1e-15, "cell %d", i)
	}
	assert.InDelta(t, 0.125, ax.Centers[0], 1e-15)
}

func TestStretchedAxis(t *testing.T) {
	ax, err := Stretched(10, 0, 1, 1.2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ax.Length(), 1e-12)
	for i := 1; i < ax.Len(); i++ {
		assert.InDelta(t, 1.2, ax.Widths[i]/ax.Widths[i-1], 1e-9)
	}
	assert.False(t, ax.Uniformity(1e-3))
}

func TestCosineAxis(t *testing.T) {
	ax, err := Cosine(16, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, ax.Faces[0])
	assert.Equal(t, 1.0, ax.Faces[16])
	// Clustered toward both walls, widest in the middle.
	assert.Less(t, ax.Widths[0], ax.Widths[8])
	assert.Less(t, ax.Widths[15], ax.Widths[8])
	// Symmetric about the midpoint.
	assert.InDelta(t, ax.Widths[0], ax.Widths[15], 1e-12)
}

func TestNewAxisValidation(t *testing.T) {
	_, err := NewAxis([]float64{0, 1})
	require.Error(t, err)
	_, err = NewAxis([]float64{0, 1, 1})
	require.Error(t, err)
	_, err = NewAxis([]float64{0, 2, 1})
	require.Error(t, err)
}

func TestGridLayoutPeriodic(t *testing.T) {
	ax, _ := Uniform(4, 0, 1)
	g, err := New([]Axis{ax, ax}, boundary.Set{periodicPair(), periodicPair()})
	require.NoError(t, err)

	assert.Equal(t, 2, g.Dim())
	assert.Equal(t, 16, g.NumCells())
	// Periodic: one DOF per face pair, N per axis and component.
	assert.Equal(t, []int{4, 4}, g.DOFDims(0))
	assert.Equal(t, 32, g.NumVel())
	assert.Equal(t, 16, g.CompOffset(1))
}

func TestGridLayoutChannel(t *testing.T) {
	axX, _ := Uniform(4, 0, 1)
	axY, _ := Uniform(3, 0, 1)
	g, err := New([]Axis{axX, axY}, boundary.Set{periodicPair(), wallPair()})
	require.NoError(t, err)

	// u: periodic in x (4 faces), 3 cells in y.
	assert.Equal(t, []int{4, 3}, g.DOFDims(0))
	// v: 4 cells in x, walls fix both boundary faces in y (2 interior).
	assert.Equal(t, []int{4, 2}, g.DOFDims(1))
	assert.Equal(t, 12+8, g.NumVel())
}

func TestGridVolumesPositive(t *testing.T) {
	axX, _ := Stretched(6, 0, 1, 1.3)
	axY, _ := Cosine(5, 0, 2)
	g, err := New([]Axis{axX, axY}, boundary.Set{wallPair(), wallPair()})
	require.NoError(t, err)

	for _, v := range g.VelVolumes() {
		assert.Greater(t, v, 0.0)
	}
	total := 0.0
	for _, v := range g.CellVolumes() {
		assert.Greater(t, v, 0.0)
		total += v
	}
	assert.InDelta(t, 2.0, total, 1e-12, "cell volumes tile the domain")
}

func TestGridDimensionValidation(t *testing.T) {
	ax, _ := Uniform(4, 0, 1)
	_, err := New([]Axis{ax}, boundary.Set{wallPair()})
	require.Error(t, err)
	_, err = New([]Axis{ax, ax}, boundary.Set{wallPair()})
	require.Error(t, err)
}

func TestScatterGatherRoundTrip(t *testing.T) {
	axX, _ := Uniform(5, 0, 1)
	axY, _ := Uniform(4, 0, 1)
	g, err := New([]Axis{axX, axY}, boundary.Set{periodicPair(), wallPair()})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	V := make([]float64, g.NumVel())
	for i := range V {
		V[i] = rng.NormFloat64()
	}
	out := make([]float64, g.NumVel())
	for c := 0; c < 2; c++ {
		ext := make([]float64, g.ExtLen(c))
		g.Scatter(V, c, ext)
		g.Gather(ext, c, out)
	}
	assert.InDeltaSlice(t, V, out, 1e-15)

	p := make([]float64, g.NumCells())
	for i := range p {
		p[i] = rng.NormFloat64()
	}
	pext := make([]float64, g.ExtLen(-1))
	pout := make([]float64, g.NumCells())
	g.Scatter(p, -1, pext)
	g.Gather(pext, -1, pout)
	assert.InDeltaSlice(t, p, pout, 1e-15)
}

func TestFillGhostsPeriodicWrap(t *testing.T) {
	ax, _ := Uniform(4, 0, 1)
	g, err := New([]Axis{ax, ax}, boundary.Set{periodicPair(), periodicPair()})
	require.NoError(t, err)

	V := make([]float64, g.NumVel())
	for i := range V {
		V[i] = float64(i + 1)
	}
	ext := make([]float64, g.ExtLen(0))
	g.Scatter(V, 0, ext)
	g.FillGhosts(ext, 0, 0)

	ed := g.ExtDims(0)
	str := Strides(ed)
	// Interior row j=0: u faces 0..3 at slots 1..4; wrap checks.
	at := func(i, j int) float64 { return ext[i*str[0]+(j+1)*str[1]] }
	assert.Equal(t, at(4, 0), at(0, 0), "face -1 = face 3")
	assert.Equal(t, at(1, 0), at(5, 0), "face 4 = face 0")
	assert.Equal(t, at(2, 0), at(6, 0), "face 5 = face 1")
}

func TestExtCoordsAgreeWithGhostExtend(t *testing.T) {
	// The grid's fixed-shape ghost face coordinates match the per-kind
	// ghost construction wherever both define one: periodic, symmetric,
	// and the innermost pressure ghost. Dirichlet is the documented
	// exception, where the grid mirrors instead of placing a zero-width
	// ghost.
	check := func(t *testing.T, g *Grid, d int) {
		t.Helper()
		faces := g.Axis(d).Faces
		ext, nLo, nHi := boundary.GhostExtend(g.BC(d).Lo.Kind, g.BC(d).Hi.Kind, faces)
		pos := g.ExtCoords(d, d)
		assert.InDelta(t, ext[nLo-1], pos[0], 1e-13, "axis %d lo ghost", d)
		assert.InDelta(t, ext[len(ext)-nHi], pos[len(pos)-1], 1e-13, "axis %d hi ghost", d)
	}

	axX, err := Stretched(6, 0, 1, 1.3)
	require.NoError(t, err)
	axY, err := Stretched(5, 0, 2, 1.2)
	require.NoError(t, err)

	sym := boundary.Pair{
		Lo: boundary.Condition{Kind: boundary.Symmetric},
		Hi: boundary.Condition{Kind: boundary.Symmetric},
	}
	pres := boundary.Pair{
		Lo: boundary.Condition{Kind: boundary.Pressure},
		Hi: boundary.Condition{Kind: boundary.Pressure},
	}
	g, err := New([]Axis{axX, axY}, boundary.Set{sym, pres})
	require.NoError(t, err)
	check(t, g, 0)
	check(t, g, 1)

	gp, err := New([]Axis{axX, axX}, boundary.Set{periodicPair(), periodicPair()})
	require.NoError(t, err)
	check(t, gp, 0)
	check(t, gp, 1)
}

func TestExtCoordsMonotone(t *testing.T) {
	axX, _ := Cosine(6, 0, 1)
	axY, _ := Uniform(5, 0, 1)
	g, err := New([]Axis{axX, axY}, boundary.Set{wallPair(), periodicPair()})
	require.NoError(t, err)

	for c := -1; c < 2; c++ {
		for d := 0; d < 2; d++ {
			pos := g.ExtCoords(c, d)
			for i := 1; i < len(pos); i++ {
				assert.Greater(t, pos[i], pos[i-1], "c=%d d=%d slot %d", c, d, i)
			}
		}
	}
}
