package pressure

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/sifanexisted/macflow/boundary"
	"github.com/sifanexisted/macflow/grid"
)

// Spectral solves the Poisson system by diagonalizing it with a
// discrete Fourier transform per axis. It requires an all-periodic box
// with uniform spacing on every axis; there the Poisson matrix is a
// circulant convolution and each Fourier mode decouples. The zero mode
// carries the gauge constant and is pinned to zero.
type Spectral struct {
	dims []int
	str  []int
	n    int

	lam  []float64
	ffts []*fourier.CmplxFFT

	work []complex128
	line []complex128
}

// NewSpectral validates the grid and precomputes the per-mode
// eigenvalues and transform plans.
func NewSpectral(g *grid.Grid) (*Spectral, error) {
	dim := g.Dim()
	for d := 0; d < dim; d++ {
		if g.BC(d).Lo.Kind != boundary.Periodic {
			return nil, fmt.Errorf("pressure: spectral solver needs periodic boundaries, axis %d is %s", d, g.BC(d).Lo.Kind)
		}
		if !g.Axis(d).Uniformity(1e-10) {
			return nil, fmt.Errorf("pressure: spectral solver needs uniform spacing, axis %d is stretched", d)
		}
	}

	dims := g.CellDims()
	s := &Spectral{
		dims: dims,
		str:  grid.Strides(dims),
		n:    g.NumCells(),
		ffts: make([]*fourier.CmplxFFT, dim),
	}
	maxN := 0
	for d, nd := range dims {
		s.ffts[d] = fourier.NewCmplxFFT(nd)
		if nd > maxN {
			maxN = nd
		}
	}
	s.work = make([]complex128, s.n)
	s.line = make([]complex128, maxN)

	// Per-axis stencil coefficient: face area squared over cell volume.
	coef := make([]float64, dim)
	vol := 1.0
	for d := 0; d < dim; d++ {
		vol *= g.Axis(d).Widths[0]
	}
	for d := 0; d < dim; d++ {
		h := g.Axis(d).Widths[0]
		area := vol / h
		coef[d] = area * area / vol
	}

	s.lam = make([]float64, s.n)
	idx := make([]int, dim)
	for i := 0; i < s.n; i++ {
		l := 0.0
		for d := 0; d < dim; d++ {
			l += coef[d] * (2 - 2*math.Cos(2*math.Pi*float64(idx[d])/float64(dims[d])))
		}
		s.lam[i] = l
		grid.Next(idx, dims)
	}
	return s, nil
}

// Solve transforms rhs, divides by the mode eigenvalues, and transforms
// back. The zero mode is dropped, which selects the zero-mean solution.
func (s *Spectral) Solve(dst, rhs []float64) error {
	for i, v := range rhs {
		s.work[i] = complex(v, 0)
	}
	for d := range s.dims {
		s.transformAxis(d, true)
	}
	s.work[0] = 0
	for i := 1; i < s.n; i++ {
		s.work[i] /= complex(s.lam[i], 0)
	}
	for d := range s.dims {
		s.transformAxis(d, false)
	}
	// The unnormalized round trip scales every value by the mode count.
	scale := 1 / float64(s.n)
	for i := range dst {
		dst[i] = real(s.work[i]) * scale
	}
	return nil
}

// transformAxis applies the forward or inverse transform to every grid
// line along axis d in place.
func (s *Spectral) transformAxis(d int, forward bool) {
	nd := s.dims[d]
	sd := s.str[d]
	line := s.line[:nd]

	idx := make([]int, len(s.dims))
	for {
		base := 0
		for e, v := range idx {
			base += v * s.str[e]
		}
		for k := 0; k < nd; k++ {
			line[k] = s.work[base+k*sd]
		}
		if forward {
			s.ffts[d].Coefficients(line, line)
		} else {
			s.ffts[d].Sequence(line, line)
		}
		for k := 0; k < nd; k++ {
			s.work[base+k*sd] = line[k]
		}
		if !nextSkip(idx, s.dims, d) {
			return
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
