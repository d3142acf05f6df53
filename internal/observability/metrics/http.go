package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics is the api binary's registry. The HTTP adapter feeds it
// from its own access-log recorder; there is no separate metrics middleware.
type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	submissionsAcceptedTotal *prometheus.CounterVec
	submissionFilesTotal     *prometheus.HistogramVec
	uploadBytes              *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	submissionsAcceptedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ag",
			Subsystem: "intake",
			Name:      "submissions_accepted_total",
			Help:      "Total submissions accepted for grading.",
		},
		[]string{"service"},
	)
	submissionFilesTotal := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ag",
			Subsystem: "intake",
			Name:      "submission_files",
			Help:      "Distribution of files per accepted submission.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	uploadBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ag",
			Subsystem: "intake",
			Name:      "upload_bytes",
			Help:      "Distribution of uploaded file sizes in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		submissionsAcceptedTotal,
		submissionFilesTotal,
		uploadBytes,
	)

	return &HTTPServerMetrics{
		service:                  service,
		registry:                 registry,
		requestTotal:             requestTotal,
		requestDuration:          requestDuration,
		requestInFlight:          requestInFlight,
		submissionsAcceptedTotal: submissionsAcceptedTotal,
		submissionFilesTotal:     submissionFilesTotal,
		uploadBytes:              uploadBytes,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest counts one served request. Path must already be a bounded
// route template, not a raw URL.
func (m *HTTPServerMetrics) RecordRequest(method, path string, status int, duration time.Duration) {
	m.requestTotal.WithLabelValues(m.service, method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(m.service, method, path).Observe(duration.Seconds())
}

// TrackInFlight marks one request in flight and returns the release func.
func (m *HTTPServerMetrics) TrackInFlight() func() {
	m.requestInFlight.Inc()
	return m.requestInFlight.Dec
}

func (m *HTTPServerMetrics) RecordSubmissionAccepted(fileCount int, sizes []int64) {
	m.submissionsAcceptedTotal.WithLabelValues(m.service).Inc()
	m.submissionFilesTotal.WithLabelValues(m.service).Observe(float64(fileCount))
	for _, size := range sizes {
		m.uploadBytes.WithLabelValues(m.service).Observe(float64(size))
	}
}
