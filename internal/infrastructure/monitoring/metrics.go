package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcomes
const (
	OutcomeDelivered     = "delivered"
	OutcomeUnknownHandle = "unknown_handle"
	OutcomeRouted        = "routed"
	OutcomeNoHandler     = "no_handler"
	OutcomeFailed        = "failed"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Registry metrics
	RegistrationsActive   prometheus.Gauge
	HandlesAllocated      prometheus.Counter
	RegistrationsRejected prometheus.Counter

	// Dispatch metrics
	Dispatches      *prometheus.CounterVec
	HandlerDuration prometheus.Histogram
	HandlerFailures prometheus.Counter

	// Error sink metrics
	UnexpectedErrors *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for JSON API
type Snapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ActiveHandlers    int64   `json:"active_handlers"`
	ActiveConnections int64   `json:"active_connections"`
	Dispatches        int64   `json:"dispatches"`
	HandlerFailures   int64   `json:"handler_failures"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewMetrics creates a new metrics collector registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{startTime: time.Now()}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exthost_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exthost_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	m.RegistrationsActive = factory.NewGauge(prometheus.GaugeOpts{
		Name: "exthost_uri_handlers_active",
		Help: "Number of active URI handler registrations",
	})
	m.HandlesAllocated = factory.NewCounter(prometheus.CounterOpts{
		Name: "exthost_uri_handles_allocated_total",
		Help: "Total number of URI handler handles allocated",
	})
	m.RegistrationsRejected = factory.NewCounter(prometheus.CounterOpts{
		Name: "exthost_uri_handler_duplicates_total",
		Help: "Total number of rejected duplicate registrations",
	})

	m.Dispatches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exthost_uri_dispatches_total",
			Help: "Total number of external URI dispatches by outcome",
		},
		[]string{"outcome"},
	)
	m.HandlerDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "exthost_uri_handler_duration_seconds",
		Help:    "URI handler invocation duration in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})
	m.HandlerFailures = factory.NewCounter(prometheus.CounterOpts{
		Name: "exthost_uri_handler_failures_total",
		Help: "Total number of URI handler invocations that failed",
	})

	m.UnexpectedErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exthost_unexpected_errors_total",
			Help: "Total number of errors routed to the unexpected error sink",
		},
		[]string{"source"},
	)

	m.WSConnections = factory.NewGauge(prometheus.GaugeOpts{
		Name: "exthost_ws_connections",
		Help: "Number of active WebSocket connections",
	})
	m.WSMessages = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exthost_ws_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction", "type"},
	)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "exthost_uptime_seconds",
		Help: "Process uptime in seconds",
	}, func() float64 {
		return time.Since(m.startTime).Seconds()
	})

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordRegistration records a successful registration
func (m *Metrics) RecordRegistration() {
	if m == nil {
		return
	}
	m.HandlesAllocated.Inc()
	m.RegistrationsActive.Inc()

	m.mu.Lock()
	m.snapshot.ActiveHandlers++
	m.mu.Unlock()
}

// RecordUnregistration records a disposed registration
func (m *Metrics) RecordUnregistration() {
	if m == nil {
		return
	}
	m.RegistrationsActive.Dec()

	m.mu.Lock()
	m.snapshot.ActiveHandlers--
	m.mu.Unlock()
}

// RecordDuplicate records a rejected duplicate registration
func (m *Metrics) RecordDuplicate() {
	if m == nil {
		return
	}
	m.RegistrationsRejected.Inc()
}

// RecordDispatch records a dispatch outcome
func (m *Metrics) RecordDispatch(outcome string) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(outcome).Inc()

	m.mu.Lock()
	m.snapshot.Dispatches++
	m.mu.Unlock()
}

// RecordHandler records a completed handler invocation
func (m *Metrics) RecordHandler(duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.HandlerDuration.Observe(duration.Seconds())
	if !failed {
		return
	}
	m.HandlerFailures.Inc()

	m.mu.Lock()
	m.snapshot.HandlerFailures++
	m.mu.Unlock()
}

// RecordUnexpectedError records an error reported to the error sink
func (m *Metrics) RecordUnexpectedError(source string) {
	if m == nil {
		return
	}
	m.UnexpectedErrors.WithLabelValues(source).Inc()
}

// RecordWSConnection tracks a WebSocket connection opening (+1) or closing (-1)
func (m *Metrics) RecordWSConnection(delta int) {
	if m == nil {
		return
	}
	m.WSConnections.Add(float64(delta))

	m.mu.Lock()
	m.snapshot.ActiveConnections += int64(delta)
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// GetSnapshot returns current metric values
func (m *Metrics) GetSnapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
