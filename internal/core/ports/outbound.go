package ports

import (
	"context"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

// DocumentRepository persists document records in both document tables.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByRef(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error)
	FindByHash(ctx context.Context, scope domain.IngestScope, contentHash string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, ref domain.DocumentRef, status domain.DocumentStatus, errMessage string) error
	SaveExtraction(ctx context.Context, ref domain.DocumentRef, result domain.ExtractionResult, text string) error
	Delete(ctx context.Context, ref domain.DocumentRef) error
}

// BlobStore keeps raw uploaded bytes.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	Download(ctx context.Context, path string) ([]byte, error)
	Remove(ctx context.Context, paths []string) error
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, ref domain.DocumentRef) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, domain.DocumentRef) error) error
}

// TextExtractor turns raw file bytes into text; failures are reported in the result.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, filename string) domain.ExtractionResult
}

// OCREngine recovers text from PDFs without a usable text layer.
type OCREngine interface {
	Recover(ctx context.Context, pdf []byte, filename string) domain.ExtractionResult
}

// VisionTranscriber sends one PDF (or page batch) to a vision-capable model.
type VisionTranscriber interface {
	TranscribePDF(ctx context.Context, filename string, pdf []byte, instructions string) (string, error)
}

// PageSplitter counts pages and cuts page ranges into standalone PDFs.
type PageSplitter interface {
	PageCount(pdf []byte) (int, error)
	ExtractPages(pdf []byte, firstPage, lastPage int) ([]byte, error)
}

type Normalizer interface {
	Normalize(text string) string
	WordCount(text string) int
}

// Chunker splits normalized text into embedding-sized segments.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds one vector per text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// ChunkStore persists chunk records and serves similarity search.
type ChunkStore interface {
	DeleteByDocument(ctx context.Context, ref domain.DocumentRef) error
	Insert(ctx context.Context, record domain.ChunkRecord) error
	CountByDocument(ctx context.Context, ref domain.DocumentRef) (int, error)
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.SearchMatch, error)
}

// AnswerGenerator creates the final user-facing answer from retrieved context.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, matches []domain.SearchMatch) (string, error)
}
