package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

// Outcomes of one queued ingestion job.
const (
	JobReady       = "ready"
	JobFailed      = "failed"
	JobTimeout     = "timeout"
	JobUnsupported = "unsupported"
	JobMissing     = "missing"
)

// WorkerMetrics tracks the asynchronous half of ingestion: one job per
// documents.ingested event, from delivery to ready or failed.
type WorkerMetrics struct {
	*Pipeline
	registry *prometheus.Registry

	jobsTotal    *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobsInFlight prometheus.Gauge
	deliveryLag  prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "jobs_total",
			Help:      "Queued ingestion jobs by document kind and outcome.",
		},
		[]string{"service", "kind", "outcome"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "job_duration_seconds",
			Help:      "Time from event delivery to the document reaching ready or failed.",
			// OCR of a long scan dominates; the top bucket sits at the job timeout.
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 180, 300},
		},
		[]string{"service", "outcome"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "ingest",
			Name:        "jobs_in_flight",
			Help:        "Ingestion jobs currently extracting or embedding.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	deliveryLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "ingest",
			Name:        "event_delivery_lag_seconds",
			Help:        "Delay between an upload publishing documents.ingested and the worker receiving it.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registry.MustRegister(jobsTotal, jobDuration, jobsInFlight, deliveryLag)

	return &WorkerMetrics{
		Pipeline:     newPipeline(service, registry),
		registry:     registry,
		jobsTotal:    jobsTotal,
		jobDuration:  jobDuration,
		jobsInFlight: jobsInFlight,
		deliveryLag:  deliveryLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobsInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob(ref domain.DocumentRef, duration time.Duration, err error) {
	m.jobsInFlight.Dec()

	outcome := JobOutcome(err)
	m.jobsTotal.WithLabelValues(m.service, string(ref.Kind), outcome).Inc()
	m.jobDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
}

// JobOutcome buckets a ProcessByRef error into a low-cardinality label.
func JobOutcome(err error) string {
	switch {
	case err == nil:
		return JobReady
	case errors.Is(err, context.DeadlineExceeded):
		return JobTimeout
	case domain.IsKind(err, domain.ErrUnsupportedFormat):
		return JobUnsupported
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return JobMissing
	default:
		return JobFailed
	}
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.deliveryLag.Observe(lag.Seconds())
}
