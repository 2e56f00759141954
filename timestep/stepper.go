package timestep

import (
	"math"

	"github.com/sifanexisted/macflow/grid"
	"github.com/sifanexisted/macflow/momentum"
	"github.com/sifanexisted/macflow/operators"
	"github.com/sifanexisted/macflow/pressure"
)

// Stepper advances (V, p, t) by one projected Runge-Kutta step. Every
// stage evaluates the momentum right-hand side with the step-start
// pressure, forms the intermediate velocity through the shifted tableau
// rows, and projects it back onto the divergence constraint; the last
// stage's correction updates the pressure. All scratch buffers are
// allocated once at construction.
type Stepper struct {
	asm    *momentum.Assembler
	op     *operators.Operators
	g      *grid.Grid
	solver pressure.Solver
	tab    Tableau

	// ReuseFirstStagePressure skips the pressure solve that makes the
	// step-start pressure consistent with the state. Only sound with
	// time-independent boundary data, which Step guards on.
	ReuseFirstStagePressure bool

	// AdditionalPressureSolve recovers an order-consistent pressure
	// from the final velocity after every step.
	AdditionalPressureSolve bool

	// MaxInner and InnerTol bound the fixed-point iteration of implicit
	// stages.
	MaxInner int
	InnerTol float64

	primed bool

	stageF [][]float64
	v0     []float64
	vhat   []float64
	div    []float64
	phi    []float64
	gphi   []float64
	fbuf   []float64
	ymd    []float64
	pz     []float64
	ynext  []float64
}

// NewStepper validates the tableau and allocates the step cache.
func NewStepper(asm *momentum.Assembler, solver pressure.Solver, tab Tableau) (*Stepper, error) {
	if err := tab.Validate(); err != nil {
		return nil, err
	}
	g := asm.Grid()
	nv := g.NumVel()
	np := g.NumCells()
	s := &Stepper{
		asm:    asm,
		op:     asm.Operators(),
		g:      g,
		solver: solver,
		tab:    tab,

		ReuseFirstStagePressure: true,
		MaxInner:                100,
		InnerTol:                1e-10,

		stageF: make([][]float64, tab.Stages()),
		v0:     make([]float64, nv),
		vhat:   make([]float64, nv),
		div:    make([]float64, np),
		phi:    make([]float64, np),
		gphi:   make([]float64, nv),
		fbuf:   make([]float64, nv),
		ymd:    make([]float64, np),
		pz:     make([]float64, np),
		ynext:  make([]float64, nv),
	}
	for i := range s.stageF {
		s.stageF[i] = make([]float64, nv)
	}
	return s, nil
}

// Tableau returns the method coefficients in use.
func (s *Stepper) Tableau() Tableau { return s.tab }

// Step advances the state in place from t to t+dt. A pressure-solver or
// inner-iteration failure leaves V at its last projected value and is
// recoverable; a non-finite state is fatal.
func (s *Stepper) Step(V, p []float64, t, dt float64) error {
	if !s.primed || s.g.TimeDependent() || !s.ReuseFirstStagePressure {
		if err := s.RecoverPressure(p, V, t); err != nil {
			return err
		}
	}

	var err error
	if s.tab.Implicit {
		err = s.implicitStep(V, p, t, dt)
	} else {
		err = s.explicitStep(V, p, t, dt)
	}
	if err != nil {
		return err
	}

	if s.AdditionalPressureSolve {
		if err := s.RecoverPressure(p, V, t+dt); err != nil {
			return err
		}
	}
	if err := checkFinite(V, p, t+dt); err != nil {
		return err
	}
	s.primed = true
	return nil
}

func (s *Stepper) explicitStep(V, p []float64, t, dt float64) error {
	ns := s.tab.Stages()
	winv := s.g.InvVelVolumes()
	copy(s.v0, V)

	for i := 0; i < ns; i++ {
		ti := t + s.tab.C[i]*dt
		s.asm.RHS(s.stageF[i], V, p, ti, true)
		for j := range s.stageF[i] {
			s.stageF[i][j] *= winv[j]
		}

		// Shifted tableau: the value after stage i uses row i+1 of A,
		// and the final combination uses b.
		row := s.tab.B
		ct := 1.0
		if i+1 < ns {
			row = s.tab.A[i+1]
			ct = s.tab.C[i+1]
		}
		copy(s.vhat, s.v0)
		for j := 0; j <= i; j++ {
			if row[j] == 0 {
				continue
			}
			a := dt * row[j]
			f := s.stageF[j]
			for k := range s.vhat {
				s.vhat[k] += a * f[k]
			}
		}

		theta := ct * dt
		if err := s.project(s.vhat, theta, t+ct*dt); err != nil {
			return err
		}
		copy(V, s.vhat)
	}

	// The last correction is the pressure increment of the step.
	for i := range p {
		p[i] -= s.phi[i]
	}
	return nil
}

func (s *Stepper) implicitStep(V, p []float64, t, dt float64) error {
	ns := s.tab.Stages()
	winv := s.g.InvVelVolumes()
	copy(s.v0, V)

	for i := 0; i < ns; i++ {
		ti := t + s.tab.C[i]*dt
		aii := s.tab.A[i][i]
		theta := s.tab.C[i] * dt
		if theta == 0 {
			theta = dt
		}

		copy(s.ynext, V)
		var delta float64
		converged := false
		for k := 0; k < s.MaxInner; k++ {
			s.asm.RHS(s.stageF[i], s.ynext, p, ti, true)
			for j := range s.stageF[i] {
				s.stageF[i][j] *= winv[j]
			}

			copy(s.vhat, s.v0)
			for j := 0; j < i; j++ {
				a := dt * s.tab.A[i][j]
				if a == 0 {
					continue
				}
				f := s.stageF[j]
				for m := range s.vhat {
					s.vhat[m] += a * f[m]
				}
			}
			a := dt * aii
			f := s.stageF[i]
			for m := range s.vhat {
				s.vhat[m] += a * f[m]
			}

			if err := s.project(s.vhat, theta, ti); err != nil {
				return err
			}

			delta = 0
			for m := range s.vhat {
				if d := math.Abs(s.vhat[m] - s.ynext[m]); d > delta {
					delta = d
				}
			}
			copy(s.ynext, s.vhat)
			if delta <= s.InnerTol*math.Max(1, normInf(s.ynext)) {
				converged = true
				break
			}
		}
		if !converged {
			return &ConvergenceError{What: "implicit stage", Iterations: s.MaxInner, Residual: delta}
		}

		// Freeze the stage derivative at the converged value.
		s.asm.RHS(s.stageF[i], s.ynext, p, ti, true)
		for j := range s.stageF[i] {
			s.stageF[i][j] *= winv[j]
		}
		copy(V, s.ynext)
	}

	copy(s.vhat, s.v0)
	for j := 0; j < ns; j++ {
		a := dt * s.tab.B[j]
		if a == 0 {
			continue
		}
		f := s.stageF[j]
		for m := range s.vhat {
			s.vhat[m] += a * f[m]
		}
	}
	if err := s.project(s.vhat, dt, t+dt); err != nil {
		return err
	}
	copy(V, s.vhat)
	for i := range p {
		p[i] -= s.phi[i]
	}
	return nil
}

// project replaces V by its divergence-free projection at time t,
// leaving the scaled correction in s.phi.
func (s *Stepper) project(V []float64, theta, t float64) error {
	s.op.Divergence(s.div, V, t)
	inv := 1 / theta
	for i := range s.div {
		s.div[i] *= inv
	}
	if err := s.solver.Solve(s.phi, s.div); err != nil {
		return err
	}
	operators.MulVec(s.gphi, s.op.GT, s.phi)
	winv := s.g.InvVelVolumes()
	for j := range V {
		V[j] -= theta * winv[j] * s.gphi[j]
	}
	return nil
}

// RecoverPressure solves for the pressure consistent with the
// instantaneous momentum balance of V at time t, writing it into p.
// This is the order-consistent pressure the additional-solve policy
// reports, and the step-start solve when boundary data moves.
func (s *Stepper) RecoverPressure(p, V []float64, t float64) error {
	for i := range s.pz {
		s.pz[i] = 0
	}
	s.asm.RHS(s.fbuf, V, s.pz, t, false)
	s.op.GradForce(s.gphi, s.pz, t) // yG only
	winv := s.g.InvVelVolumes()
	for j := range s.fbuf {
		s.fbuf[j] = (s.fbuf[j] + s.gphi[j]) * winv[j]
	}
	operators.MulVec(s.div, s.op.M, s.fbuf)
	s.op.YMDot(s.ymd, t)
	for i := range s.div {
		s.div[i] = -s.div[i] - s.ymd[i]
	}
	return s.solver.Solve(p, s.div)
}

func checkFinite(V, p []float64, t float64) error {
	for _, v := range V {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &DefectError{Time: t, Field: "velocity"}
		}
	}
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &DefectError{Time: t, Field: "pressure"}
		}
	}
	return nil
}

func normInf(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
