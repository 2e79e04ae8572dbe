package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application.
type Registry struct {
	registry *prometheus.Registry

	PacketsEmitted   prometheus.Counter
	AlertsEmitted    *prometheus.CounterVec
	WSClients        prometheus.Gauge
	WSDropped        prometheus.Counter
	InsightRequests  *prometheus.CounterVec
	InsightAttempts  *prometheus.CounterVec
	HTTPRequestsTime *prometheus.HistogramVec
}

// NewRegistry creates a new metrics registry with all metrics initialized.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	f := promauto.With(r.registry)

	r.PacketsEmitted = f.NewCounter(prometheus.CounterOpts{
		Name: "netsight_packets_emitted_total",
		Help: "Total number of simulated packets broadcast",
	})
	r.AlertsEmitted = f.NewCounterVec(prometheus.CounterOpts{
		Name: "netsight_alerts_emitted_total",
		Help: "Total number of simulated alerts broadcast",
	}, []string{"type"})
	r.WSClients = f.NewGauge(prometheus.GaugeOpts{
		Name: "netsight_ws_clients",
		Help: "Currently connected WebSocket clients",
	})
	r.WSDropped = f.NewCounter(prometheus.CounterOpts{
		Name: "netsight_ws_dropped_messages_total",
		Help: "Messages dropped because a client send buffer was full",
	})
	r.InsightRequests = f.NewCounterVec(prometheus.CounterOpts{
		Name: "netsight_insight_requests_total",
		Help: "AI insight requests by outcome",
	}, []string{"outcome"})
	r.InsightAttempts = f.NewCounterVec(prometheus.CounterOpts{
		Name: "netsight_insight_upstream_attempts_total",
		Help: "Upstream generative API calls by result",
	}, []string{"result"})
	r.HTTPRequestsTime = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netsight_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	return r
}

// RecordHTTPRequest records an HTTP request with its duration.
func (r *Registry) RecordHTTPRequest(method, route, status string, d time.Duration) {
	r.HTTPRequestsTime.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
