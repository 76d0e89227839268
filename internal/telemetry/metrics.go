// Package telemetry records session activity as Prometheus metrics.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid"
	OutcomeSequence  = "sequence"
	OutcomeEngine    = "engine_error"
	OutcomeCancelled = "cancelled"
)

// Metrics is safe to share between sessions. A nil *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rejected *prometheus.CounterVec
	violated *prometheus.CounterVec
	clock    *prometheus.GaugeVec
}

// New registers the session metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Labels: model, mode (fresh, continue), outcome
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fmuexplore",
			Subsystem: "session",
			Name:      "runs_total",
			Help:      "Simulation runs by mode and outcome",
		}, []string{"model", "mode", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fmuexplore",
			Subsystem: "session",
			Name:      "run_duration_seconds",
			Help:      "Wall time of successful engine invocations",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"model", "mode"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fmuexplore",
			Subsystem: "params",
			Name:      "rejected_keys_total",
			Help:      "Update keys not applied to the store",
		}, []string{"model"}),
		violated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fmuexplore",
			Subsystem: "params",
			Name:      "violations_total",
			Help:      "Invariant violations reported by updates and runs",
		}, []string{"model"}),
		clock: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fmuexplore",
			Subsystem: "session",
			Name:      "clock",
			Help:      "Simulated time reached by the latest run",
		}, []string{"model"}),
	}
}

func (m *Metrics) ObserveRun(model, mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(model, mode, outcome).Inc()
	if outcome == OutcomeOK {
		m.duration.WithLabelValues(model, mode).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) ObserveUpdate(model string, rejected, violated int) {
	if m == nil {
		return
	}
	if rejected > 0 {
		m.rejected.WithLabelValues(model).Add(float64(rejected))
	}
	if violated > 0 {
		m.violated.WithLabelValues(model).Add(float64(violated))
	}
}

func (m *Metrics) SetClock(model string, t float64) {
	if m == nil {
		return
	}
	m.clock.WithLabelValues(model).Set(t)
}
