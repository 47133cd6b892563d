package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/termstream/internal/terminal/escape"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive   prometheus.Gauge
	SessionsCreated  prometheus.Counter
	SessionsFinished *prometheus.CounterVec
	SpawnFailures    *prometheus.CounterVec

	// Decoder metrics
	BytesRead        prometheus.Counter
	ChunksPublished  prometheus.Counter
	EventsDecoded    *prometheus.CounterVec
	UnknownSequences *prometheus.CounterVec

	// Fan-out metrics
	SubscriberDrops prometheus.Counter
	WSConnections   prometheus.Gauge
	WSMessages      *prometheus.CounterVec

	startTime time.Time

	// Snapshot for the health endpoint
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for JSON consumers
type Snapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ActiveSessions    int64   `json:"active_sessions"`
	ActiveConnections int64   `json:"active_connections"`
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
	UptimeSeconds     float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a metrics collector backed by its own registry, so
// several instances can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termstream_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termstream_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termstream_sessions_active",
				Help: "Number of live terminal sessions",
			},
		),
		SessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termstream_sessions_created_total",
				Help: "Total number of sessions spawned",
			},
		),
		SessionsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termstream_sessions_finished_total",
				Help: "Total number of sessions ended, by final status",
			},
			[]string{"status"},
		),
		SpawnFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termstream_spawn_failures_total",
				Help: "Total number of failed session spawns",
			},
			[]string{"reason"},
		),

		BytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termstream_pty_bytes_read_total",
				Help: "Total bytes read from session ptys",
			},
		),
		ChunksPublished: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termstream_chunks_published_total",
				Help: "Total decoded chunks handed to the broadcaster",
			},
		),
		EventsDecoded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termstream_events_decoded_total",
				Help: "Total control events decoded, by kind",
			},
			[]string{"kind"},
		),
		UnknownSequences: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termstream_unknown_sequences_total",
				Help: "Total unrecognised sequences, by introducer",
			},
			[]string{"source"},
		),

		SubscriberDrops: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termstream_subscriber_drops_total",
				Help: "Total chunks evicted from lagging subscriber queues",
			},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termstream_ws_connections",
				Help: "Number of open stream WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termstream_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "termstream_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SessionStarted records a successful spawn
func (m *Metrics) SessionStarted() {
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
	m.mu.Lock()
	m.snapshot.ActiveSessions++
	m.mu.Unlock()
}

// SessionEnded records a session leaving the registry with its final status
func (m *Metrics) SessionEnded(status string) {
	m.SessionsFinished.WithLabelValues(status).Inc()
	m.SessionsActive.Dec()
	m.mu.Lock()
	m.snapshot.ActiveSessions--
	m.mu.Unlock()
}

// SpawnFailed records a spawn that produced no session
func (m *Metrics) SpawnFailed(reason string) {
	m.SpawnFailures.WithLabelValues(reason).Inc()
}

// OutputDecoded records one pty read and the chunk decoded from it
func (m *Metrics) OutputDecoded(n int, chunk escape.DecodedChunk) {
	m.BytesRead.Add(float64(n))
	if chunk.Empty() {
		return
	}
	m.ChunksPublished.Inc()
	for _, ev := range chunk.Events {
		m.EventsDecoded.WithLabelValues(ev.Kind().String()).Inc()
		if u, ok := ev.(escape.Unknown); ok {
			m.UnknownSequences.WithLabelValues(u.Source.String()).Inc()
		}
	}
}

// SubscriberLag records chunks evicted from subscriber queues
func (m *Metrics) SubscriberLag(dropped int) {
	m.SubscriberDrops.Add(float64(dropped))
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns current values for the health endpoint
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	if s.TotalRequests > 0 {
		s.AvgLatencyMs = s.totalDuration / float64(s.TotalRequests) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
