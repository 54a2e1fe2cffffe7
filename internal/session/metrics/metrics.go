package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the session module.
type Metrics struct {
	SessionsCreated    prometheus.Counter
	SessionsTerminated prometheus.Counter
	SessionsExpired    prometheus.Counter
	SweepDuration      prometheus.Histogram
}

// New creates and registers all session module metrics.
func New() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_sessions_created_total",
			Help: "Sessions created by request approval",
		}),
		SessionsTerminated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_sessions_terminated_total",
			Help: "Sessions terminated manually",
		}),
		SessionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_sessions_expired_total",
			Help: "Sessions expired by the background sweep",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatekeep_session_sweep_duration_seconds",
			Help:    "Duration of expiry sweep passes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveSweep records the duration of one sweep pass.
func (m *Metrics) ObserveSweep(start time.Time) {
	m.SweepDuration.Observe(time.Since(start).Seconds())
}
