// Package conservation derives the discrete invariants the solver is
// checked against: mass (post-projection divergence), momentum per
// component, and kinetic energy. Everything here is read-only over the
// state.
package conservation

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/sifanexisted/macflow/operators"
)

// Report is one snapshot of the conservation diagnostics.
type Report struct {
	Time     float64
	MaxDiv   float64
	Momentum []float64
	Energy   float64
}

// Monitor computes conservation diagnostics against one operator set.
type Monitor struct {
	op  *operators.Operators
	div []float64
}

// NewMonitor allocates a monitor for the given operators.
func NewMonitor(op *operators.Operators) *Monitor {
	return &Monitor{op: op, div: make([]float64, op.Grid().NumCells())}
}

// MaxDivergence returns the volume-normalized maximum divergence
// magnitude of V. After a completed projection step it sits at the
// solver tolerance; anything large signals a defect.
func (m *Monitor) MaxDivergence(V []float64, t float64) float64 {
	m.op.Divergence(m.div, V, t)
	winv := m.op.Grid().InvCellVolumes()
	max := 0.0
	for i, v := range m.div {
		if a := math.Abs(v * winv[i]); a > max {
			max = a
		}
	}
	return max
}

// Momentum returns the volume-weighted total momentum per component.
func (m *Monitor) Momentum(V []float64) []float64 {
	g := m.op.Grid()
	vol := g.VelVolumes()
	out := make([]float64, g.Dim())
	for c := 0; c < g.Dim(); c++ {
		lo, hi := g.CompOffset(c), g.CompOffset(c)+g.CompLen(c)
		out[c] = floats.Dot(vol[lo:hi], V[lo:hi])
	}
	return out
}

// KineticEnergy returns the volume-weighted kinetic energy ½·Σ Ω·V².
func (m *Monitor) KineticEnergy(V []float64) float64 {
	vol := m.op.Grid().VelVolumes()
	s := 0.0
	for j, v := range V {
		s += vol[j] * v * v
	}
	return 0.5 * s
}

// Snapshot bundles all diagnostics for one instant.
func (m *Monitor) Snapshot(V []float64, t float64) Report {
	return Report{
		Time:     t,
		MaxDiv:   m.MaxDivergence(V, t),
		Momentum: m.Momentum(V),
		Energy:   m.KineticEnergy(V),
	}
}
