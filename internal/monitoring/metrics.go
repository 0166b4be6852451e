// Package monitoring exposes Prometheus metrics for terminal sessions.
package monitoring

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Directions used as metric labels.
const (
	DirectionInbound  = "inbound"  // client -> shell
	DirectionOutbound = "outbound" // shell -> client
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Handshake metrics
	Handshakes *prometheus.CounterVec

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsEnded  *prometheus.CounterVec
	SpawnFailures  prometheus.Counter

	// Frame metrics
	Frames    *prometheus.CounterVec
	Bytes     *prometheus.CounterVec
	Anomalies *prometheus.CounterVec
}

// NewMetrics creates the session metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Handshakes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellbridge_handshakes_total",
				Help: "Terminal handshakes by resulting HTTP status",
			},
			[]string{"status"},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellbridge_sessions_active",
				Help: "Number of live terminal sessions",
			},
		),
		SessionsEnded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellbridge_sessions_ended_total",
				Help: "Terminal sessions torn down, by reason",
			},
			[]string{"reason"},
		),
		SpawnFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shellbridge_spawn_failures_total",
				Help: "Shells that failed to start after a successful handshake",
			},
		),
		Frames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellbridge_frames_total",
				Help: "Binary frames crossing the bridge",
			},
			[]string{"direction", "tag"},
		),
		Bytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellbridge_terminal_bytes_total",
				Help: "Terminal payload bytes crossing the bridge",
			},
			[]string{"direction"},
		),
		Anomalies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellbridge_protocol_anomalies_total",
				Help: "Inbound messages that violated the framing protocol",
			},
			[]string{"kind"},
		),
	}
}

// RecordHandshake records the HTTP status a handshake ended with.
func (m *Metrics) RecordHandshake(status int) {
	m.Handshakes.WithLabelValues(strconv.Itoa(status)).Inc()
}

// SessionStarted marks a session as live.
func (m *Metrics) SessionStarted() {
	m.SessionsActive.Inc()
}

// SessionEnded marks a session as torn down.
func (m *Metrics) SessionEnded(reason string) {
	m.SessionsActive.Dec()
	m.SessionsEnded.WithLabelValues(reason).Inc()
}

// RecordSpawnFailure counts a shell that could not be started.
func (m *Metrics) RecordSpawnFailure() {
	m.SpawnFailures.Inc()
}

// RecordFrame counts one frame and its payload size.
func (m *Metrics) RecordFrame(direction, tag string, payload int) {
	m.Frames.WithLabelValues(direction, tag).Inc()
	m.Bytes.WithLabelValues(direction).Add(float64(payload))
}

// RecordAnomaly counts one protocol anomaly.
func (m *Metrics) RecordAnomaly(kind string) {
	m.Anomalies.WithLabelValues(kind).Inc()
}
