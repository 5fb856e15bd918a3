package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SessionCreated("user")
	m.SessionCreated("user")
	m.SessionRestore(OutcomeExpired)
	m.SessionDestroyed(ReasonPruned, 3)
	m.SessionDestroyed(ReasonPruned, 0)
	m.AuthAttempt("signin", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsCreated.WithLabelValues("user")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionRestores.WithLabelValues(OutcomeExpired)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsDestroyed.WithLabelValues(ReasonPruned)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("signin", "ok")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionCreated("admin")
		m.SessionRestore(OutcomeRestored)
		m.SessionDestroyed(ReasonLogout, 1)
		m.AuthAttempt("signup", "ok")
		m.ObserveRequest("GET", "/me", "200", 0.01)
	})
}
