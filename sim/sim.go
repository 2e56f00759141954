// Package sim assembles a complete solver from a validated Setup:
// grid, operators, momentum assembler, pressure solver, stepper and
// diagnostics, plus staggered initial-condition construction with a
// divergence-free guarantee.
package sim

import (
	"fmt"
	"log/slog"

	"github.com/sifanexisted/macflow/boundary"
	"github.com/sifanexisted/macflow/conservation"
	"github.com/sifanexisted/macflow/grid"
	"github.com/sifanexisted/macflow/momentum"
	"github.com/sifanexisted/macflow/operators"
	"github.com/sifanexisted/macflow/pressure"
	"github.com/sifanexisted/macflow/timestep"
)

// SolverKind selects the pressure Poisson backend.
type SolverKind uint8

const (
	SolverDirect SolverKind = iota
	SolverCG
	SolverSpectral
)

func (k SolverKind) String() string {
	switch k {
	case SolverDirect:
		return "direct"
	case SolverCG:
		return "cg"
	case SolverSpectral:
		return "spectral"
	}
	return "unknown"
}

// ConfigError reports an invalid Setup field. It is fatal and raised
// before any stepping.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sim: invalid %s: %s", e.Field, e.Reason)
}

// Setup is the immutable run configuration. The core only reads it;
// case loading and command-line handling live outside.
type Setup struct {
	Axes []grid.Axis
	BCs  boundary.Set
	Nu   float64

	Closure        momentum.Closure // nil means laminar
	Regularization momentum.Regularization
	Force          []boundary.ScalarFunc

	Solver    SolverKind
	CGMaxIter int     // CG only; 0 picks a default
	CGTol     float64 // CG only; 0 picks a default

	Method timestep.Tableau // zero value picks RK4

	Dt            float64
	TEnd          float64
	Adaptive      bool
	CFL           float64
	AdaptInterval int

	AdditionalPressureSolve bool
	// DisableFirstStageReuse forces the step-start pressure solve even
	// with steady boundary data.
	DisableFirstStageReuse bool

	Processors      []timestep.Processor
	ProcessInterval int
	Log             *slog.Logger
}

// Validate checks the configuration before any allocation.
func (s *Setup) Validate() error {
	if len(s.Axes) != 2 && len(s.Axes) != 3 {
		return &ConfigError{Field: "Axes", Reason: fmt.Sprintf("dimension must be 2 or 3, got %d", len(s.Axes))}
	}
	if len(s.BCs) != len(s.Axes) {
		return &ConfigError{Field: "BCs", Reason: fmt.Sprintf("%d boundary pairs for %d axes", len(s.BCs), len(s.Axes))}
	}
	if s.Nu <= 0 {
		return &ConfigError{Field: "Nu", Reason: "viscosity must be positive"}
	}
	if s.Dt <= 0 && !s.Adaptive {
		return &ConfigError{Field: "Dt", Reason: "fixed-step runs need a positive time step"}
	}
	if s.TEnd < 0 {
		return &ConfigError{Field: "TEnd", Reason: "end time must be non-negative"}
	}
	if s.Solver > SolverSpectral {
		return &ConfigError{Field: "Solver", Reason: "unknown pressure solver"}
	}
	if s.Method.Stages() > 0 {
		if err := s.Method.Validate(); err != nil {
			return &ConfigError{Field: "Method", Reason: err.Error()}
		}
	}
	return nil
}

// Simulation owns the assembled solver components and the state.
type Simulation struct {
	setup Setup

	g       *grid.Grid
	op      *operators.Operators
	asm     *momentum.Assembler
	solver  pressure.Solver
	stepper *timestep.Stepper
	mon     *conservation.Monitor

	V []float64
	P []float64
	T float64

	// Projected reports whether the supplied initial velocity violated
	// the divergence constraint and was projected.
	Projected bool
}

// New validates the setup and assembles every component. The state
// starts at zero velocity and pressure.
func New(setup Setup) (*Simulation, error) {
	if err := setup.Validate(); err != nil {
		return nil, err
	}
	g, err := grid.New(setup.Axes, setup.BCs)
	if err != nil {
		return nil, err
	}
	op, err := operators.Assemble(g, setup.Nu)
	if err != nil {
		return nil, err
	}

	var solver pressure.Solver
	switch setup.Solver {
	case SolverDirect:
		solver, err = pressure.NewDirect(op)
	case SolverCG:
		maxIter := setup.CGMaxIter
		if maxIter == 0 {
			maxIter = 2000
		}
		tol := setup.CGTol
		if tol == 0 {
			tol = 1e-10
		}
		solver, err = pressure.NewCG(op, maxIter, tol)
	case SolverSpectral:
		solver, err = pressure.NewSpectral(g)
	}
	if err != nil {
		return nil, err
	}

	asm := momentum.NewAssembler(op, setup.Closure, setup.Regularization, setup.Force)

	tab := setup.Method
	if tab.Stages() == 0 {
		tab = timestep.RK4()
	}
	stepper, err := timestep.NewStepper(asm, solver, tab)
	if err != nil {
		return nil, err
	}
	stepper.ReuseFirstStagePressure = !setup.DisableFirstStageReuse
	stepper.AdditionalPressureSolve = setup.AdditionalPressureSolve

	return &Simulation{
		setup:   setup,
		g:       g,
		op:      op,
		asm:     asm,
		solver:  solver,
		stepper: stepper,
		mon:     conservation.NewMonitor(op),
		V:       make([]float64, g.NumVel()),
		P:       make([]float64, g.NumCells()),
	}, nil
}

// Grid returns the assembled grid.
func (s *Simulation) Grid() *grid.Grid { return s.g }

// Operators returns the assembled operator set.
func (s *Simulation) Operators() *operators.Operators { return s.op }

// Stepper returns the time stepper.
func (s *Simulation) Stepper() *timestep.Stepper { return s.stepper }

// Monitor returns the conservation monitor.
func (s *Simulation) Monitor() *conservation.Monitor { return s.mon }

// divTol is the divergence level above which a supplied initial
// velocity is projected.
const divTol = 1e-12

// InitialConditions evaluates per-component velocity functions and the
// pressure function at the staggered coordinates, at time t0. If the
// resulting field violates the divergence constraint beyond tolerance
// it is projected and Projected is set.
func (s *Simulation) InitialConditions(vel []boundary.ScalarFunc, p0 boundary.ScalarFunc, t0 float64) error {
	g := s.g
	dim := g.Dim()
	x := make([]float64, dim)

	for c := 0; c < dim; c++ {
		var fn boundary.ScalarFunc
		if c < len(vel) {
			fn = vel[c]
		}
		dd := g.DOFDims(c)
		loC, _ := g.FaceOffsets(c)
		idx := make([]int, dim)
		j := g.CompOffset(c)
		for {
			if fn != nil {
				for d := 0; d < dim; d++ {
					if d == c {
						x[d] = g.Axis(d).Faces[idx[d]+loC]
					} else {
						x[d] = g.Axis(d).Centers[idx[d]]
					}
				}
				s.V[j] = fn(x, t0)
			} else {
				s.V[j] = 0
			}
			j++
			if !grid.Next(idx, dd) {
				break
			}
		}
	}

	idx := make([]int, dim)
	for i := 0; i < g.NumCells(); i++ {
		if p0 != nil {
			for d := 0; d < dim; d++ {
				x[d] = g.Axis(d).Centers[idx[d]]
			}
			s.P[i] = p0(x, t0)
		} else {
			s.P[i] = 0
		}
		grid.Next(idx, g.CellDims())
	}
	s.T = t0

	if s.mon.MaxDivergence(s.V, t0) > divTol {
		if err := s.project(t0); err != nil {
			return fmt.Errorf("sim: initial condition projection: %w", err)
		}
		s.Projected = true
	}
	return nil
}

// project returns V to the divergence constraint once.
func (s *Simulation) project(t float64) error {
	np := s.g.NumCells()
	div := make([]float64, np)
	phi := make([]float64, np)
	gphi := make([]float64, s.g.NumVel())

	s.op.Divergence(div, s.V, t)
	if err := s.solver.Solve(phi, div); err != nil {
		return err
	}
	operators.MulVec(gphi, s.op.GT, phi)
	winv := s.g.InvVelVolumes()
	for j := range s.V {
		s.V[j] -= winv[j] * gphi[j]
	}
	return nil
}

// Run executes the unsteady driver loop from the current state.
func (s *Simulation) Run() (*timestep.Result, error) {
	d := &timestep.Driver{
		Stepper:         s.stepper,
		Monitor:         s.mon,
		Log:             s.setup.Log,
		Dt:              s.setup.Dt,
		TEnd:            s.setup.TEnd,
		Adaptive:        s.setup.Adaptive,
		CFL:             s.setup.CFL,
		AdaptInterval:   s.setup.AdaptInterval,
		Processors:      s.setup.Processors,
		ProcessInterval: s.setup.ProcessInterval,
	}
	res, err := d.Run(s.V, s.P, s.T)
	if res != nil {
		s.T = res.Time
	}
	return res, err
}

// SolveSteady runs the Picard iteration on the current state.
func (s *Simulation) SolveSteady(maxIter int, tol float64) ([]float64, error) {
	st := timestep.NewSteady(s.asm, s.solver, maxIter, tol)
	return st.Solve(s.V, s.P)
}

// Step advances the state by a single step of size dt.
func (s *Simulation) Step(dt float64) error {
	if err := s.stepper.Step(s.V, s.P, s.T, dt); err != nil {
		return err
	}
	s.T += dt
	s.asm.AdvanceClosure(s.V, s.T, dt)
	return nil
}
