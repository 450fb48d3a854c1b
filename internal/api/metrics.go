package api

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/slotwise/slotwise/internal/core"
)

// Metrics holds the server's Prometheus collectors on a private registry
// so tests can run servers side by side without collisions.
type Metrics struct {
	registry *prometheus.Registry

	commandsTotal   *prometheus.CounterVec
	conflictsTotal  prometheus.Counter
	failuresTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	auto := promauto.With(registry)

	return &Metrics{
		registry: registry,
		commandsTotal: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotwise",
			Name:      "commands_total",
			Help:      "Commands handled, by resulting action kind.",
		}, []string{"action"}),
		conflictsTotal: auto.NewCounter(prometheus.CounterOpts{
			Namespace: "slotwise",
			Name:      "conflicts_total",
			Help:      "Booking attempts that hit an existing event.",
		}),
		failuresTotal: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotwise",
			Name:      "failures_total",
			Help:      "Failed commands, by reason.",
		}, []string{"reason"}),
		requestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slotwise",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// Registry returns the private registry for the /metrics handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one HTTP request's latency
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// ObserveCommand records the outcome of one handled command
func (m *Metrics) ObserveCommand(action core.Action) {
	m.commandsTotal.WithLabelValues(string(action.Kind)).Inc()
	switch action.Kind {
	case core.ActionConflicted:
		m.conflictsTotal.Inc()
	case core.ActionFailed:
		m.failuresTotal.WithLabelValues(string(action.Reason)).Inc()
	}
}
