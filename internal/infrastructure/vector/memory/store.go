package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

// Store is an in-process ChunkStore for tests and single-node development.
type Store struct {
	mu      sync.RWMutex
	records map[domain.DocumentRef][]domain.ChunkRecord
}

func New() *Store {
	return &Store{records: make(map[domain.DocumentRef][]domain.ChunkRecord)}
}

func (s *Store) DeleteByDocument(_ context.Context, ref domain.DocumentRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, ref)
	return nil
}

func (s *Store) Insert(_ context.Context, record domain.ChunkRecord) error {
	if err := record.Document.Validate(); err != nil {
		return err
	}
	if len(record.Embedding) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "insert chunk", fmt.Errorf("empty vector"))
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.Embedding = append([]float32(nil), record.Embedding...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Document] = append(s.records[record.Document], record)
	return nil
}

func (s *Store) CountByDocument(_ context.Context, ref domain.DocumentRef) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[ref]), nil
}

// Records returns a copy of one document's chunks ordered by chunk index.
func (s *Store) Records(ref domain.DocumentRef) []domain.ChunkRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.ChunkRecord(nil), s.records[ref]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out
}

func (s *Store) Search(_ context.Context, query domain.SearchQuery) ([]domain.SearchMatch, error) {
	if len(query.Vector) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search chunks", fmt.Errorf("empty query vector"))
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 5
	}

	s.mu.RLock()
	matches := make([]domain.SearchMatch, 0, limit)
	for _, records := range s.records {
		for _, r := range records {
			if query.Model != "" && r.EmbeddingModel != query.Model {
				continue
			}
			sim := cosineSimilarity(query.Vector, r.Embedding)
			if sim < query.Threshold {
				continue
			}
			matches = append(matches, domain.SearchMatch{
				Document:     r.Document,
				ChunkIndex:   r.ChunkIndex,
				Content:      r.Content,
				Similarity:   sim,
				Metadata:     r.Metadata,
				DocumentName: r.Metadata.OriginalName,
				DocumentType: r.Metadata.DocumentType,
			})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		if matches[i].Document.ID != matches[j].Document.ID {
			return matches[i].Document.ID < matches[j].Document.ID
		}
		return matches[i].ChunkIndex < matches[j].ChunkIndex
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
