package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akulikov/autograder/internal/core/domain"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal      *prometheus.CounterVec
	processDuration   *prometheus.HistogramVec
	processInFlight   prometheus.Gauge
	queueLag          *prometheus.HistogramVec
	fileOutcomesTotal *prometheus.CounterVec
	extractionsTotal  *prometheus.CounterVec
	gradeRetriesTotal *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ag",
			Subsystem: "worker",
			Name:      "submission_process_total",
			Help:      "Total processed submissions by terminal status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ag",
			Subsystem: "worker",
			Name:      "submission_process_duration_seconds",
			Help:      "Submission processing duration in seconds by status.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ag",
			Subsystem: "worker",
			Name:      "submission_process_in_flight",
			Help:      "Number of in-flight submission processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ag",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between submission acceptance and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	fileOutcomesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ag",
			Subsystem: "worker",
			Name:      "file_outcomes_total",
			Help:      "Total per-file terminal states.",
		},
		[]string{"service", "state"},
	)
	extractionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ag",
			Subsystem: "worker",
			Name:      "extractions_total",
			Help:      "Total text extractions by resolution method.",
		},
		[]string{"service", "method"},
	)
	gradeRetriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ag",
			Subsystem: "worker",
			Name:      "grade_retries_total",
			Help:      "Total grade re-requests after bound or parse violations.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		processTotal,
		processDuration,
		processInFlight,
		queueLag,
		fileOutcomesTotal,
		extractionsTotal,
		gradeRetriesTotal,
	)

	return &WorkerMetrics{
		registry:          registry,
		processTotal:      processTotal,
		processDuration:   processDuration,
		processInFlight:   processInFlight,
		queueLag:          queueLag,
		fileOutcomesTotal: fileOutcomesTotal,
		extractionsTotal:  extractionsTotal,
		gradeRetriesTotal: gradeRetriesTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartSubmission() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishSubmission(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordFileResult(service string, result domain.FileResult) {
	m.fileOutcomesTotal.WithLabelValues(service, string(result.State)).Inc()
	m.extractionsTotal.WithLabelValues(service, string(result.ExtractionMethod)).Inc()
}

func (m *WorkerMetrics) RecordGradeRetry(service string) {
	m.gradeRetriesTotal.WithLabelValues(service).Inc()
}
