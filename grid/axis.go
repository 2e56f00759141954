// Package grid builds the staggered (MAC) index and metric data the
// operator assembly works from: per-axis face/center coordinates, cell
// widths, velocity and pressure degree-of-freedom layouts, ghost-extended
// shapes, and volume weights.
package grid

import (
	"fmt"
	"math"
)

// Axis holds the 1D geometry of one coordinate direction: N+1 face
// coordinates, N cell centers, and N cell widths.
type Axis struct {
	Faces   []float64
	Centers []float64
	Widths  []float64
}

// NewAxis derives an Axis from a strictly increasing face-coordinate
// sequence.
func NewAxis(faces []float64) (Axis, error) {
	n := len(faces) - 1
	if n < 2 {
		return Axis{}, fmt.Errorf("grid: axis needs at least 2 cells, got %d", n)
	}
	for i := 0; i < n; i++ {
		if !(faces[i+1] > faces[i]) || math.IsNaN(faces[i]) || math.IsInf(faces[i], 0) {
			return Axis{}, fmt.Errorf("grid: face coordinates must be strictly increasing and finite (index %d)", i)
		}
	}
	ax := Axis{
		Faces:   faces,
		Centers: make([]float64, n),
		Widths:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		ax.Centers[i] = 0.5 * (faces[i] + faces[i+1])
		ax.Widths[i] = faces[i+1] - faces[i]
	}
	return ax, nil
}

// Uniform returns an axis with n equal cells on [a, b].
func Uniform(n int, a, b float64) (Axis, error) {
	if b <= a {
		return Axis{}, fmt.Errorf("grid: empty interval [%g, %g]", a, b)
	}
	faces := make([]float64, n+1)
	for i := range faces {
		faces[i] = a + (b-a)*float64(i)/float64(n)
	}
	faces[n] = b
	return NewAxis(faces)
}

// Stretched returns an axis on [a, b] whose cell widths grow by the given
// ratio from one cell to the next. ratio == 1 reduces to Uniform.
func Stretched(n int, a, b, ratio float64) (Axis, error) {
	if ratio <= 0 {
		return Axis{}, fmt.Errorf("grid: stretch ratio must be positive, got %g", ratio)
	}
	if ratio == 1 {
		return Uniform(n, a, b)
	}
	// First width from the geometric sum h0*(r^n - 1)/(r - 1) = b - a.
	h := (b - a) * (ratio - 1) / (math.Pow(ratio, float64(n)) - 1)
	faces := make([]float64, n+1)
	faces[0] = a
	for i := 1; i <= n; i++ {
		faces[i] = faces[i-1] + h
		h *= ratio
	}
	faces[n] = b
	return NewAxis(faces)
}

// Cosine returns an axis on [a, b] with faces clustered toward both ends
// by a cosine mapping, the usual choice for wall-bounded directions.
func Cosine(n int, a, b float64) (Axis, error) {
	if b <= a {
		return Axis{}, fmt.Errorf("grid: empty interval [%g, %g]", a, b)
	}
	faces := make([]float64, n+1)
	for i := range faces {
		faces[i] = a + (b-a)*0.5*(1-math.Cos(math.Pi*float64(i)/float64(n)))
	}
	faces[0], faces[n] = a, b
	return NewAxis(faces)
}

// Len returns the number of cells.
func (a Axis) Len() int { return len(a.Widths) }

// Length returns the physical extent of the axis.
func (a Axis) Length() float64 { return a.Faces[len(a.Faces)-1] - a.Faces[0] }

// Uniformity reports whether all cell widths agree to within a relative
// tolerance, which the spectral pressure solver requires.
func (a Axis) Uniformity(tol float64) bool {
	h := a.Widths[0]
	for _, w := range a.Widths {
		if math.Abs(w-h) > tol*h {
			return false
		}
	}
	return true
}
