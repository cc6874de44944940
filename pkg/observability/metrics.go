package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Upload metrics
	UploadsStartedTotal  *prometheus.CounterVec
	UploadsFinishedTotal prometheus.Counter

	// Migration metrics
	VersionsMigratedTotal prometheus.Counter

	// Intent sweeper metrics
	IntentsSweptTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetvault_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assetvault_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		UploadsStartedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetvault_uploads_started_total",
				Help: "Total number of upload intents issued",
			},
			[]string{"backend"},
		),
		UploadsFinishedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "assetvault_uploads_finished_total",
				Help: "Total number of uploads finished into published versions",
			},
		),
		VersionsMigratedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "assetvault_versions_migrated_total",
				Help: "Total number of versions migrated to the object store",
			},
		),
		IntentsSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "assetvault_intents_swept_total",
				Help: "Total number of expired upload intents deleted by the sweeper",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.UploadsStartedTotal,
		m.UploadsFinishedTotal,
		m.VersionsMigratedTotal,
		m.IntentsSweptTotal,
	)

	return m
}

// TimeHTTPRequest starts timing one request. The returned function records
// the count and duration once the final status is known.
func (m *Metrics) TimeHTTPRequest(method, route string) func(status int) {
	start := time.Now()
	return func(status int) {
		m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// UploadStarted records an issued upload intent for the given backend.
func (m *Metrics) UploadStarted(backend string) {
	m.UploadsStartedTotal.WithLabelValues(backend).Inc()
}

// UploadFinished records a finished upload.
func (m *Metrics) UploadFinished() {
	m.UploadsFinishedTotal.Inc()
}

// VersionMigrated records one version moved to the object store.
func (m *Metrics) VersionMigrated() {
	m.VersionsMigratedTotal.Inc()
}

// IntentsSwept records expired intents removed by the sweeper.
func (m *Metrics) IntentsSwept(n int) {
	m.IntentsSweptTotal.Add(float64(n))
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
