package timestep

import "fmt"

// ConvergenceError reports an exhausted inner iteration (implicit stage
// fixed point or steady Picard loop). It is recoverable: the caller may
// retry with a smaller time step or relaxed tolerance.
type ConvergenceError struct {
	What       string
	Iterations int
	Residual   float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("timestep: %s did not converge in %d iterations, residual %.3e", e.What, e.Iterations, e.Residual)
}

// DefectError reports a non-finite value in the state. It is fatal;
// continuing would propagate the defect silently.
type DefectError struct {
	Time  float64
	Field string
}

func (e *DefectError) Error() string {
	return fmt.Sprintf("timestep: non-finite %s at t=%g", e.Field, e.Time)
}
