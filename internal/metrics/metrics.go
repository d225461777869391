package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	mapRenders          *prometheus.CounterVec
	mapRenderLayers     prometheus.Histogram
	insightRequests     *prometheus.CounterVec
	telemetryPolls      *prometheus.CounterVec
}

// New creates a fresh Metrics registry with HTTP, map engine and telemetry metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthmap",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by core-go",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "healthmap",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by core-go",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	mapRenders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthmap",
		Name:      "map_renders_total",
		Help:      "Full overlay rebuilds performed by map sessions",
	}, []string{"variant"})

	mapRenderLayers := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "healthmap",
		Name:      "map_render_layers",
		Help:      "Number of overlay layers added per render",
		Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8, 12},
	})

	insightRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthmap",
		Name:      "insight_requests_total",
		Help:      "Detail panel insight requests by outcome",
	}, []string{"outcome"})

	telemetryPolls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthmap",
		Name:      "telemetry_polls_total",
		Help:      "Transport telemetry polls by result",
	}, []string{"result"})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		mapRenders,
		mapRenderLayers,
		insightRequests,
		telemetryPolls,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		mapRenders:          mapRenders,
		mapRenderLayers:     mapRenderLayers,
		insightRequests:     insightRequests,
		telemetryPolls:      telemetryPolls,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveRender records one full overlay rebuild.
func (m *Metrics) ObserveRender(variant string, layers int) {
	if m == nil {
		return
	}
	m.mapRenders.WithLabelValues(variant).Inc()
	m.mapRenderLayers.Observe(float64(layers))
}

// IncInsight counts a finished insight request. outcome is ready, failed or stale.
func (m *Metrics) IncInsight(outcome string) {
	if m == nil {
		return
	}
	m.insightRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncTelemetryPoll(result string) {
	if m == nil {
		return
	}
	m.telemetryPolls.WithLabelValues(result).Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
