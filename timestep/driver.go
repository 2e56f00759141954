package timestep

import (
	"errors"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/sifanexisted/macflow/conservation"
	"github.com/sifanexisted/macflow/pressure"
)

// Driver runs the unsteady loop: repeated steps until the end time,
// optional stability-bound time step adaptation, momentum residual
// tracking, and processor dispatch. The driver owns the state for the
// duration of a run; nothing else mutates it.
type Driver struct {
	Stepper *Stepper
	Monitor *conservation.Monitor
	Log     *slog.Logger

	Dt   float64
	TEnd float64

	// Adaptive recomputes Dt from the stability bound every
	// AdaptInterval steps, scaled by CFL.
	Adaptive      bool
	CFL           float64
	AdaptInterval int

	// MaxRetries bounds how often a recoverable step failure is retried
	// with a halved time step before the run aborts.
	MaxRetries int

	Processors      []Processor
	ProcessInterval int
}

// Result summarizes a completed or aborted run. The residual history
// and final diagnostics are filled in either way so failures stay
// diagnosable.
type Result struct {
	RunID     string
	Steps     int
	Time      float64
	Residuals []float64
	// DtLimits holds the explicit stability bound of the state after
	// each step, whether or not the run adapted to it.
	DtLimits []float64
	Final    conservation.Report
}

// Run advances the state from t0 until TEnd. On a fatal error the
// partial result is returned alongside it.
func (d *Driver) Run(V, p []float64, t0 float64) (*Result, error) {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	res := &Result{RunID: uuid.NewString()}

	s := d.Stepper
	nu := s.op.Nu()
	adaptEvery := d.AdaptInterval
	if adaptEvery <= 0 {
		adaptEvery = 1
	}
	procEvery := d.ProcessInterval
	if procEvery <= 0 {
		procEvery = 1
	}
	retries := d.MaxRetries
	if retries <= 0 {
		retries = 4
	}

	log.Info("run start",
		"id", res.RunID,
		"method", s.tab.Name,
		"t0", t0,
		"tend", d.TEnd,
		"dt", d.Dt,
		"adaptive", d.Adaptive,
	)
	for _, pr := range d.Processors {
		pr.Initialize(V, p, t0)
	}

	vsave := make([]float64, len(V))
	psave := make([]float64, len(p))

	t := t0
	dt := d.Dt
	const eps = 1e-12
	for t < d.TEnd-eps {
		if d.Adaptive && res.Steps%adaptEvery == 0 {
			cfl := d.CFL
			if cfl == 0 {
				cfl = 0.5
			}
			dt = cfl * StabilityDT(s.g, nu, V)
		}
		if t+dt > d.TEnd {
			dt = d.TEnd - t
		}

		copy(vsave, V)
		copy(psave, p)
		err := s.Step(V, p, t, dt)
		for r := 0; err != nil && recoverable(err) && r < retries; r++ {
			log.Warn("step retried with smaller dt", "t", t, "dt", dt, "err", err)
			copy(V, vsave)
			copy(p, psave)
			dt *= 0.5
			err = s.Step(V, p, t, dt)
		}
		if err != nil {
			res.Time = t
			res.Final = d.Monitor.Snapshot(V, t)
			log.Error("run aborted", "id", res.RunID, "t", t, "err", err)
			return res, err
		}

		t += dt
		res.Steps++
		s.asm.AdvanceClosure(V, t, dt)
		res.Residuals = append(res.Residuals, s.Residual(V, p, t))
		res.DtLimits = append(res.DtLimits, StabilityDT(s.g, nu, V))

		if res.Steps%procEvery == 0 {
			rep := d.Monitor.Snapshot(V, t)
			for _, pr := range d.Processors {
				pr.Update(V, p, t, rep)
			}
		}
	}

	for _, pr := range d.Processors {
		pr.Finalize()
	}
	res.Time = t
	res.Final = d.Monitor.Snapshot(V, t)
	log.Info("run complete",
		"id", res.RunID,
		"steps", res.Steps,
		"t", t,
		"maxdiv", res.Final.MaxDiv,
		"energy", res.Final.Energy,
	)
	return res, nil
}

// Residual returns the ∞-norm of the volume-normalized momentum
// right-hand side, the quantity the run reports per step.
func (s *Stepper) Residual(V, p []float64, t float64) float64 {
	s.asm.RHS(s.fbuf, V, p, t, true)
	winv := s.g.InvVelVolumes()
	r := 0.0
	for j := range s.fbuf {
		if a := math.Abs(s.fbuf[j] * winv[j]); a > r {
			r = a
		}
	}
	return r
}

// recoverable reports whether a step failure is worth retrying with a
// smaller time step.
func recoverable(err error) bool {
	var ce *ConvergenceError
	var pe *pressure.ConvergenceError
	return errors.As(err, &ce) || errors.As(err, &pe)
}
