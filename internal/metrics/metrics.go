// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the service's collectors, registered on the default
// registry that promhttp serves.
type Metrics struct {
	SubmissionsTotal *prometheus.CounterVec
	CodesIssued      prometheus.Counter
	SessionsCreated  prometheus.Counter
	LoginFailures    prometheus.Counter
	AlertsRaised     prometheus.Counter
}

// New registers and returns the collectors. Call once per process.
func New() *Metrics {
	return &Metrics{
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "geoattend_submissions_total",
			Help: "Attendance submissions by outcome.",
		}, []string{"outcome"}),
		CodesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoattend_codes_issued_total",
			Help: "Rotating codes issued to instructors.",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoattend_sessions_created_total",
			Help: "Attendance sessions created.",
		}),
		LoginFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoattend_login_failures_total",
			Help: "Failed login attempts.",
		}),
		AlertsRaised: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoattend_alerts_raised_total",
			Help: "Fraud-signal alerts raised by the worker.",
		}),
	}
}
