package ports

import (
	"context"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

// DocumentIngestor is the inbound contract for upload orchestration.
type DocumentIngestor interface {
	IngestBatch(ctx context.Context, req domain.BatchRequest) domain.BatchResult
}

// EmbeddingIndexer regenerates a document's chunk records.
type EmbeddingIndexer interface {
	GenerateDocumentEmbeddings(ctx context.Context, doc *domain.Document) (domain.EmbeddingReport, error)
}

// DocumentService reads, re-indexes and deletes stored documents.
type DocumentService interface {
	Get(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error)
	RegenerateEmbeddings(ctx context.Context, ref domain.DocumentRef) (domain.EmbeddingReport, error)
	Delete(ctx context.Context, ref domain.DocumentRef) error
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByRef(ctx context.Context, ref domain.DocumentRef) error
}

// SearchService is the inbound contract for retrieval and grounded answers.
type SearchService interface {
	Search(ctx context.Context, query string, threshold float64, limit int) ([]domain.SearchMatch, error)
	Answer(ctx context.Context, question string, threshold float64, limit int) (*domain.Answer, error)
}
