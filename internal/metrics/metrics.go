// Package metrics exposes server counters and gauges in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/standardbeagle/scenebridge/internal/wsconn"
)

const namespace = "scenebridge"

// Metrics holds the collectors for one server instance. Each instance owns
// its registry so several servers can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	connections *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	handshakes  *prometheus.CounterVec
	commands    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	frame       prometheus.Gauge
	nodes       prometheus.Gauge
	dropped     prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live connections by lifecycle state.",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_transitions_total",
			Help:      "Connection state transitions.",
		}, []string{"from", "to"}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Completed handshake attempts by outcome.",
		}, []string{"outcome"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled by action and status.",
		}, []string{"action", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time from receipt to reply, including suspension.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"action"}),
		frame: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "editor_frame",
			Help:      "Current editor frame number.",
		}),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "document_nodes",
			Help:      "Nodes in the open document.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_dropped_total",
			Help:      "Replies discarded because the connection had closed.",
		}),
	}
	m.registry.MustRegister(
		m.connections, m.transitions, m.handshakes, m.commands, m.duration,
		m.frame, m.nodes, m.dropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Transition records a connection state change.
func (m *Metrics) Transition(_ int64, from, to wsconn.State) {
	m.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

// Handshake records a handshake outcome.
func (m *Metrics) Handshake(o wsconn.Outcome) {
	m.handshakes.WithLabelValues(o.String()).Inc()
}

// Command records one completed command.
func (m *Metrics) Command(action, status string, elapsed time.Duration) {
	if action == "" {
		action = "unknown"
	}
	m.commands.WithLabelValues(action, status).Inc()
	m.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// Connections publishes live connection counts.
func (m *Metrics) Connections(counts map[wsconn.State]int) {
	for state, n := range counts {
		m.connections.WithLabelValues(state.String()).Set(float64(n))
	}
}

// Editor publishes the frame counter and document size.
func (m *Metrics) Editor(frame uint64, nodes int) {
	m.frame.Set(float64(frame))
	m.nodes.Set(float64(nodes))
}

// DroppedReply counts a reply that had no connection to go to.
func (m *Metrics) DroppedReply() { m.dropped.Inc() }
