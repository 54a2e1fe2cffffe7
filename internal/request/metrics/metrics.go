package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the access-request module.
type Metrics struct {
	RequestsSubmitted prometheus.Counter
	RequestsApproved  prometheus.Counter
	RequestsRejected  prometheus.Counter
}

// New creates and registers all access-request module metrics.
func New() *Metrics {
	return &Metrics{
		RequestsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_access_requests_submitted_total",
			Help: "Access requests submitted",
		}),
		RequestsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_access_requests_approved_total",
			Help: "Access requests approved",
		}),
		RequestsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_access_requests_rejected_total",
			Help: "Access requests rejected",
		}),
	}
}
