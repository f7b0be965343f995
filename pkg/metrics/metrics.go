package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordering",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ordering",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	prometheus.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// OrderingMetrics are optional hooks around the command pipeline and the
// outbox publisher. A nil receiver disables observation, so correctness
// never depends on metrics being wired.
type OrderingMetrics struct {
	OrdersPlaced      prometheus.Counter
	OrdersFailed      prometheus.Counter
	DuplicateRequests prometheus.Counter
	ProcessingMS      prometheus.Histogram
	OutboxPublished   prometheus.Counter
	OutboxFailed      prometheus.Counter
}

func NewOrderingMetrics() *OrderingMetrics {
	m := &OrderingMetrics{
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ordering", Name: "orders_placed_total",
			Help: "Total number of successfully placed orders.",
		}),
		OrdersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ordering", Name: "orders_failed_total",
			Help: "Total number of failed order attempts.",
		}),
		DuplicateRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ordering", Name: "duplicate_requests_total",
			Help: "Total number of replayed idempotent requests.",
		}),
		ProcessingMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ordering", Name: "order_processing_duration_ms",
			Help:    "Time taken to process an order command.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ordering", Name: "outbox_published_total",
			Help: "Total number of integration events published.",
		}),
		OutboxFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ordering", Name: "outbox_failed_total",
			Help: "Total number of outbox entries that exhausted retries.",
		}),
	}
	prometheus.MustRegister(m.OrdersPlaced, m.OrdersFailed, m.DuplicateRequests,
		m.ProcessingMS, m.OutboxPublished, m.OutboxFailed)
	return m
}

func (m *OrderingMetrics) ObservePlaced(d time.Duration) {
	if m == nil {
		return
	}
	m.OrdersPlaced.Inc()
	m.ProcessingMS.Observe(float64(d.Milliseconds()))
}

func (m *OrderingMetrics) ObserveFailed() {
	if m == nil {
		return
	}
	m.OrdersFailed.Inc()
}

func (m *OrderingMetrics) ObserveDuplicate() {
	if m == nil {
		return
	}
	m.DuplicateRequests.Inc()
}

func (m *OrderingMetrics) ObservePublished() {
	if m == nil {
		return
	}
	m.OutboxPublished.Inc()
}

func (m *OrderingMetrics) ObserveExhausted() {
	if m == nil {
		return
	}
	m.OutboxFailed.Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
