package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCommand("local", true, 0.1)
		m.IncTimeout()
		m.IncBrowser("failed")
		m.IncRelayDrop()
		m.IncTaskOutcome("completed")
		m.SetActiveSessions(3)
	})
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := New(reg)
	second := New(reg)

	first.IncTimeout()
	second.IncTimeout()

	assert.Equal(t, float64(2), testutil.ToFloat64(first.timeouts))
}

func TestCommandCounterLabels(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveCommand("queue", false, 1.5)
	m.ObserveCommand("queue", true, 0.5)
	m.ObserveCommand("queue", true, 0.5)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.commands.WithLabelValues("queue", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.commands.WithLabelValues("queue", "failure")))
}
