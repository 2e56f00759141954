// Package boundary defines the closed set of boundary conditions used by
// the staggered-grid solver and the operations the rest of the code
// builds on: ghost extension of 1D coordinate sequences, degree-of-freedom
// offsets at domain faces, and in-place ghost application to flattened
// fields together with its hand-written adjoint.
package boundary

import "fmt"

// Kind identifies a boundary condition variant.
type Kind uint8

const (
	// Periodic wraps the domain: ghost values copy the opposite side.
	Periodic Kind = iota
	// Dirichlet prescribes the velocity on the boundary face.
	Dirichlet
	// Symmetric mirrors tangential velocity and zeroes the normal component.
	Symmetric
	// Pressure prescribes the boundary pressure and leaves the velocity
	// free with a zero normal gradient (outflow).
	Pressure
)

// String returns the name of the boundary condition kind.
func (k Kind) String() string {
	switch k {
	case Periodic:
		return "Periodic"
	case Dirichlet:
		return "Dirichlet"
	case Symmetric:
		return "Symmetric"
	case Pressure:
		return "Pressure"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Side selects one of the two ends of an axis.
type Side uint8

const (
	Lo Side = iota
	Hi
)

func (s Side) String() string {
	if s == Lo {
		return "lo"
	}
	return "hi"
}

// ScalarFunc evaluates a prescribed boundary value at position x and time t.
type ScalarFunc func(x []float64, t float64) float64

// Condition is one boundary condition instance for a single (axis, side)
// pair. Value and Deriv hold the prescribed velocity components and their
// time derivatives for Dirichlet boundaries; P holds the prescribed
// pressure for Pressure boundaries. Nil entries default to zero.
type Condition struct {
	Kind  Kind
	Value [3]ScalarFunc
	Deriv [3]ScalarFunc
	P     ScalarFunc

	// Unsteady marks the prescribed data as time-dependent. Operator
	// boundary vectors are rebuilt per stage only when this is set, and
	// the first-stage pressure reuse optimization is disabled by it.
	Unsteady bool
}

// value evaluates the prescribed velocity component, defaulting to zero.
func (c Condition) value(comp int, x []float64, t float64) float64 {
	if comp < 0 || comp >= len(c.Value) || c.Value[comp] == nil {
		return 0
	}
	return c.Value[comp](x, t)
}

// deriv evaluates the time derivative of the prescribed velocity
// component, defaulting to zero.
func (c Condition) deriv(comp int, x []float64, t float64) float64 {
	if comp < 0 || comp >= len(c.Deriv) || c.Deriv[comp] == nil {
		return 0
	}
	return c.Deriv[comp](x, t)
}

// pressure evaluates the prescribed boundary pressure, defaulting to zero.
func (c Condition) pressure(x []float64, t float64) float64 {
	if c.P == nil {
		return 0
	}
	return c.P(x, t)
}

// Pair holds the two conditions at the ends of one axis.
type Pair struct {
	Lo, Hi Condition
}

// At returns the condition on the given side.
func (p Pair) At(s Side) Condition {
	if s == Lo {
		return p.Lo
	}
	return p.Hi
}

// Set holds one Pair per axis.
type Set []Pair

// Validate checks the set against the grid dimension. A periodic
// condition must be periodic on both sides of its axis.
func (s Set) Validate(dim int) error {
	if len(s) != dim {
		return fmt.Errorf("boundary: %d condition pairs for a %d-dimensional grid", len(s), dim)
	}
	for d, p := range s {
		if (p.Lo.Kind == Periodic) != (p.Hi.Kind == Periodic) {
			return fmt.Errorf("boundary: axis %d pairs %s with %s; periodic boundaries must match on both sides",
				d, p.Lo.Kind, p.Hi.Kind)
		}
	}
	return nil
}

// TimeDependent reports whether any condition carries unsteady data.
func (s Set) TimeDependent() bool {
	for _, p := range s {
		if p.Lo.Unsteady || p.Hi.Unsteady {
			return true
		}
	}
	return false
}

// DOFOffset returns the number of non-degree-of-freedom velocity slots at
// one end of an axis, for the velocity component normal to that axis.
// Tangential components and pressure lose no slots. Periodic axes keep
// the left face and identify the right face with it; Dirichlet and
// Symmetric boundaries fix the boundary face; a Pressure boundary leaves
// the boundary face as an unknown.
func DOFOffset(k Kind, isNormal, isHi bool) int {
	if !isNormal {
		return 0
	}
	switch k {
	case Periodic:
		if isHi {
			return 1
		}
		return 0
	case Dirichlet, Symmetric:
		return 1
	case Pressure:
		return 0
	}
	return 0
}

// GhostExtend inserts ghost nodes at both ends of a strictly increasing
// 1D coordinate sequence according to the boundary kinds at its ends.
// It returns the extended sequence and the number of nodes added on each
// side; ext[nLo:len(ext)-nHi] is the original sequence.
//
// The Grid keeps its own fixed-shape ghost coordinates (one slot per
// side, mirror spacing): its strided buffers cannot carry the per-kind
// ghost counts produced here, and a zero-width Dirichlet ghost would
// break the finite-difference spacings. Wherever both define a ghost
// coordinate — Periodic, Symmetric, and the innermost Pressure ghost —
// the two constructions agree, which the grid tests pin down.
func GhostExtend(lo, hi Kind, x []float64) (ext []float64, nLo, nHi int) {
	n := len(x) - 1
	dLo := x[1] - x[0]
	dHi := x[n] - x[n-1]

	var head []float64
	switch lo {
	case Periodic:
		// Wrap with the opposite-side spacing.
		head = []float64{x[0] - dHi}
	case Dirichlet:
		// Zero-width ghost at the boundary.
		head = []float64{x[0]}
	case Symmetric:
		head = []float64{x[0] - dLo}
	case Pressure:
		head = []float64{x[0] - 2*dLo, x[0] - dLo}
	}

	var tail []float64
	switch hi {
	case Periodic:
		tail = []float64{x[n] + dLo}
	case Dirichlet:
		tail = []float64{x[n]}
	case Symmetric, Pressure:
		tail = []float64{x[n] + dHi}
	}

	ext = make([]float64, 0, len(head)+len(x)+len(tail))
	ext = append(ext, head...)
	ext = append(ext, x...)
	ext = append(ext, tail...)
	return ext, len(head), len(tail)
}
