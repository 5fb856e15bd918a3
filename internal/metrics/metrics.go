// Package metrics holds the Prometheus collectors for the session service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Restore outcomes.
const (
	OutcomeRestored = "restored"
	OutcomeNoToken  = "no_token"
	OutcomeNotFound = "not_found"
	OutcomeExpired  = "expired"
	OutcomeOrphaned = "orphaned"
	OutcomeError    = "error"
)

// Destroy reasons.
const (
	ReasonLogout  = "logout"
	ReasonExpired = "expired"
	ReasonOrphan  = "orphan"
	ReasonRevoked = "revoked"
	ReasonPruned  = "pruned"
)

// Metrics holds all Prometheus metrics for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SessionsCreated   *prometheus.CounterVec
	SessionRestores   *prometheus.CounterVec
	SessionsDestroyed *prometheus.CounterVec
	AuthAttempts      *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		SessionsCreated: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dharma",
				Name:      "sessions_created_total",
				Help:      "Total number of sessions issued",
			},
			[]string{"role"},
		),
		SessionRestores: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dharma",
				Name:      "session_restores_total",
				Help:      "Session restore attempts by outcome",
			},
			[]string{"outcome"},
		),
		SessionsDestroyed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dharma",
				Name:      "sessions_destroyed_total",
				Help:      "Sessions removed from the store by reason",
			},
			[]string{"reason"},
		),
		AuthAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dharma",
				Name:      "auth_attempts_total",
				Help:      "Sign in and sign up attempts",
			},
			[]string{"flow", "result"}, // flow=signin/signup/admin, result=ok/<error kind>
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dharma",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (m *Metrics) SessionCreated(role string) {
	if m == nil {
		return
	}
	m.SessionsCreated.WithLabelValues(role).Inc()
}

func (m *Metrics) SessionRestore(outcome string) {
	if m == nil {
		return
	}
	m.SessionRestores.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionDestroyed(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsDestroyed.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) AuthAttempt(flow, result string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(flow, result).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, status).Observe(seconds)
}
