package timestep

import (
	"log/slog"

	"github.com/sifanexisted/macflow/conservation"
)

// Processor observes the run at configured intervals. Implementations
// receive read-only snapshots; mutating the state from a processor is
// undefined behavior.
type Processor interface {
	Initialize(V, p []float64, t float64)
	Update(V, p []float64, t float64, rep conservation.Report)
	Finalize()
}

// LogProcessor writes one structured log line per observation.
type LogProcessor struct {
	Log *slog.Logger
}

func (l *LogProcessor) logger() *slog.Logger {
	if l.Log != nil {
		return l.Log
	}
	return slog.Default()
}

func (l *LogProcessor) Initialize(_, _ []float64, t float64) {
	l.logger().Info("processor attached", "t", t)
}

func (l *LogProcessor) Update(_, _ []float64, t float64, rep conservation.Report) {
	l.logger().Info("state",
		"t", t,
		"maxdiv", rep.MaxDiv,
		"energy", rep.Energy,
	)
}

func (l *LogProcessor) Finalize() {}

// HistoryProcessor records every observed conservation report, for
// post-hoc diagnostics and tests.
type HistoryProcessor struct {
	Reports []conservation.Report
}

func (h *HistoryProcessor) Initialize(_, _ []float64, _ float64) {}

func (h *HistoryProcessor) Update(_, _ []float64, _ float64, rep conservation.Report) {
	h.Reports = append(h.Reports, rep)
}

func (h *HistoryProcessor) Finalize() {}
