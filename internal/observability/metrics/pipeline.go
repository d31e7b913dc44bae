package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cvs"

// Pipeline counts ingestion outcomes shared by the api and worker processes.
type Pipeline struct {
	service string

	ocrBatchesTotal      *prometheus.CounterVec
	chunkEmbeddingsTotal *prometheus.CounterVec
	ingestFilesTotal     *prometheus.CounterVec
	breakerState         *prometheus.GaugeVec
}

func newPipeline(service string, registry *prometheus.Registry) *Pipeline {
	ocrBatchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ocr",
			Name:      "batches_total",
			Help:      "Vision OCR calls by outcome.",
		},
		[]string{"service", "outcome"},
	)
	chunkEmbeddingsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "chunks_total",
			Help:      "Chunk embeddings by status.",
		},
		[]string{"service", "status"},
	)
	ingestFilesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Uploaded files by result and failing stage.",
		},
		[]string{"service", "result", "stage"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(ocrBatchesTotal, chunkEmbeddingsTotal, ingestFilesTotal, breakerState)

	return &Pipeline{
		service:              service,
		ocrBatchesTotal:      ocrBatchesTotal,
		chunkEmbeddingsTotal: chunkEmbeddingsTotal,
		ingestFilesTotal:     ingestFilesTotal,
		breakerState:         breakerState,
	}
}

func (p *Pipeline) ObserveOCRBatch(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	p.ocrBatchesTotal.WithLabelValues(p.service, outcome).Inc()
}

func (p *Pipeline) ObserveChunkEmbedding(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.chunkEmbeddingsTotal.WithLabelValues(p.service, status).Inc()
}

// ObserveIngestFile records one file of an upload batch; stage is empty on success.
func (p *Pipeline) ObserveIngestFile(stage string, success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	p.ingestFilesTotal.WithLabelValues(p.service, result, stage).Inc()
}

func (p *Pipeline) ObserveBreakerState(operation, _, to string) {
	var value float64
	switch to {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	p.breakerState.WithLabelValues(p.service, operation).Set(value)
}
