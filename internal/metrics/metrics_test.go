package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.IncActive()
	m.IncActive()
	m.DecActive()
	total, active := m.Get()
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(1), active)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight))

	m.ObserveProcess(OutcomeTimeout, 3*time.Second)
	m.ObserveProcess(OutcomeOK, time.Second)
	m.ObserveProcess(OutcomeOK, time.Second)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.processRuns.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.processRuns.WithLabelValues(OutcomeTimeout)))

	m.ObserveResult(true)
	m.ObserveResult(false)
	m.ObserveResult(false)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.results.WithLabelValues("failure")))

	_, err := m.Registry.Gather()
	assert.NoError(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncActive()
		m.DecActive()
		m.ObserveProcess(OutcomeIO, time.Second)
		m.ObserveResult(true)
		m.ObserveRequest("/x", "200")
		m.CacheHit()
	})
	total, active := m.Get()
	assert.Zero(t, total)
	assert.Zero(t, active)
}
