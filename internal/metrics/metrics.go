// Package metrics exposes Prometheus collectors for the server.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "emberkv"

// Command outcome labels
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds every collector together with its own registry
type Metrics struct {
	registry *prometheus.Registry

	commands          *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	expiredEvictions  prometheus.Counter
	connectionsActive prometheus.Gauge
	protocolErrors    prometheus.Counter
}

// New creates the collectors and registers them, together with the Go runtime collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands executed, by command name and outcome.",
		}, []string{"command", "status"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command execution latency.",
			Buckets:   prometheus.ExponentialBuckets(0.000_01, 4, 8),
		}, []string{"command"}),
		expiredEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_evictions_total",
			Help:      "Keys evicted because a read found them expired.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Currently open client connections.",
		}),
		protocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Connections closed because of malformed frames.",
		}),
	}

	m.registry.MustRegister(
		m.commands,
		m.commandDuration,
		m.expiredEvictions,
		m.connectionsActive,
		m.protocolErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RegisterKeyCount exposes the number of stored keys, sampled at scrape time
func (m *Metrics) RegisterKeyCount(count func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "keys",
		Help:      "Stored keys, including expired keys not yet evicted.",
	}, func() float64 {
		return float64(count())
	}))
}

// ObserveCommand records one executed command
func (m *Metrics) ObserveCommand(command string, failed bool, took time.Duration) {
	if m == nil {
		return
	}

	status := StatusOK
	if failed {
		status = StatusError
	}

	m.commands.WithLabelValues(command, status).Inc()
	m.commandDuration.WithLabelValues(command).Observe(took.Seconds())
}

// ExpiredEviction records a read-triggered eviction
func (m *Metrics) ExpiredEviction() {
	if m == nil {
		return
	}
	m.expiredEvictions.Inc()
}

// ConnectionOpened increments the active connections gauge
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsActive.Inc()
}

// ConnectionClosed decrements the active connections gauge
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

// ProtocolError records a connection dropped on a malformed frame
func (m *Metrics) ProtocolError() {
	if m == nil {
		return
	}
	m.protocolErrors.Inc()
}

// Gatherer exposes the registry, mainly for tests and embedding
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}
