// internal/app/system/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry so
// several instances (one per test) never collide.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	accessLogDropped prometheus.Counter
	liveClients      prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aimap",
			Name:      "room_requests_total",
			Help:      "Room operations by endpoint and outcome code.",
		}, []string{"endpoint", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aimap",
			Name:      "room_request_duration_seconds",
			Help:      "Room operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		accessLogDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aimap",
			Name:      "access_log_dropped_total",
			Help:      "Access log entries dropped because the write queue was full or closed.",
		}),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aimap",
			Name:      "live_clients",
			Help:      "Open live location websocket connections on this instance.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.accessLogDropped,
		m.liveClients,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest counts one finished operation.
func (m *Metrics) ObserveRequest(endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "OK"
	}
	m.requests.WithLabelValues(endpoint, outcome).Inc()
	m.duration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// AccessLogDropped counts one dropped access log entry.
func (m *Metrics) AccessLogDropped() {
	if m == nil {
		return
	}
	m.accessLogDropped.Inc()
}

// LiveClientConnected / LiveClientDisconnected track the websocket gauge.
func (m *Metrics) LiveClientConnected() {
	if m == nil {
		return
	}
	m.liveClients.Inc()
}

func (m *Metrics) LiveClientDisconnected() {
	if m == nil {
		return
	}
	m.liveClients.Dec()
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
