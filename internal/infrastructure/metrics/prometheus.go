package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	commands       *prometheus.CounterVec
	commandSeconds *prometheus.HistogramVec
	timeouts       prometheus.Counter
	browsers       *prometheus.CounterVec
	relayDrops     prometheus.Counter
	taskOutcomes   *prometheus.CounterVec
	sessionsActive prometheus.Gauge
}

// New registers the collectors with reg. Registering twice on the same
// registry reuses the existing collectors.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentdock",
			Subsystem: "executor",
			Name:      "commands_total",
			Help:      "Commands executed, by backend and result.",
		}, []string{"backend", "result"}),
		commandSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentdock",
			Subsystem: "executor",
			Name:      "command_duration_seconds",
			Help:      "Wall time of command execution, by backend.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"backend"}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentdock",
			Subsystem: "correlator",
			Name:      "timeouts_total",
			Help:      "Commands that never received a correlated response.",
		}),
		browsers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentdock",
			Subsystem: "fanout",
			Name:      "browsers_total",
			Help:      "Browser sessions by terminal status.",
		}, []string{"status"}),
		relayDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentdock",
			Subsystem: "relay",
			Name:      "dropped_listeners_total",
			Help:      "Listeners removed after a failed forward.",
		}),
		taskOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentdock",
			Subsystem: "task_loop",
			Name:      "runs_total",
			Help:      "Task loop runs by outcome.",
		}, []string{"outcome"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentdock",
			Subsystem: "fanout",
			Name:      "sessions_active",
			Help:      "Session records currently held in memory.",
		}),
	}

	m.commands = register(reg, m.commands)
	m.commandSeconds = register(reg, m.commandSeconds)
	m.timeouts = register(reg, m.timeouts)
	m.browsers = register(reg, m.browsers)
	m.relayDrops = register(reg, m.relayDrops)
	m.taskOutcomes = register(reg, m.taskOutcomes)
	m.sessionsActive = register(reg, m.sessionsActive)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) ObserveCommand(backend string, success bool, seconds float64) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.commands.WithLabelValues(backend, result).Inc()
	m.commandSeconds.WithLabelValues(backend).Observe(seconds)
}

func (m *Metrics) IncTimeout() {
	if m == nil {
		return
	}
	m.timeouts.Inc()
}

func (m *Metrics) IncBrowser(status string) {
	if m == nil {
		return
	}
	m.browsers.WithLabelValues(status).Inc()
}

func (m *Metrics) IncRelayDrop() {
	if m == nil {
		return
	}
	m.relayDrops.Inc()
}

func (m *Metrics) IncTaskOutcome(outcome string) {
	if m == nil {
		return
	}
	m.taskOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}
