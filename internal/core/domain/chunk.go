package domain

import "time"

type ChunkMetadata struct {
	DocumentType string `json:"document_type,omitempty"`
	OriginalName string `json:"original_name,omitempty"`
	TotalChunks  int    `json:"total_chunks"`
}

// ChunkRecord is one embedded slice of a document's normalized text.
type ChunkRecord struct {
	ID             string        `json:"id"`
	Document       DocumentRef   `json:"document"`
	ChunkIndex     int           `json:"chunk_index"`
	Content        string        `json:"content_chunk"`
	Embedding      []float32     `json:"-"`
	EmbeddingModel string        `json:"embedding_model"`
	Metadata       ChunkMetadata `json:"metadata"`
	CreatedAt      time.Time     `json:"created_at"`
}

type SearchMatch struct {
	Document     DocumentRef   `json:"document"`
	ChunkIndex   int           `json:"chunk_index"`
	Content      string        `json:"content_chunk"`
	Similarity   float64       `json:"similarity"`
	Metadata     ChunkMetadata `json:"metadata"`
	DocumentName string        `json:"document_name"`
	DocumentType string        `json:"document_type,omitempty"`
}

type SearchQuery struct {
	Vector    []float32
	Threshold float64
	Limit     int
	Model     string
}

type EmbeddingSkipReason string

const (
	SkipTextTooShort EmbeddingSkipReason = "text_too_short"
	SkipNoChunks     EmbeddingSkipReason = "no_chunks"
)

type ChunkFailure struct {
	ChunkIndex int    `json:"chunk_index"`
	Error      string `json:"error"`
}

// EmbeddingReport summarizes one document's embedding regeneration.
type EmbeddingReport struct {
	Document       DocumentRef         `json:"document"`
	Skipped        bool                `json:"skipped"`
	SkipReason     EmbeddingSkipReason `json:"skip_reason,omitempty"`
	ChunksEmbedded int                 `json:"chunks_embedded"`
	TotalChunks    int                 `json:"total_chunks"`
	Failures       []ChunkFailure      `json:"failures,omitempty"`
}

type Answer struct {
	Text    string        `json:"text"`
	Sources []SearchMatch `json:"sources"`
}
