package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/ports"
)

const (
	DefaultSearchThreshold = 0.5
	DefaultSearchLimit     = 5
	MaxSearchLimit         = 50
)

type SearchObserver interface {
	RecordSearch(endpoint string, matches int, duration time.Duration)
}

type SearchOptions struct {
	DefaultThreshold float64
	DefaultLimit     int
	Observer         SearchObserver
}

type SearchUseCase struct {
	embedder  ports.Embedder
	store     ports.ChunkStore
	generator ports.AnswerGenerator
	threshold float64
	limit     int
	observer  SearchObserver
}

func NewSearchUseCase(
	embedder ports.Embedder,
	store ports.ChunkStore,
	generator ports.AnswerGenerator,
	opts SearchOptions,
) *SearchUseCase {
	threshold := opts.DefaultThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSearchThreshold
	}
	limit := opts.DefaultLimit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return &SearchUseCase{
		embedder:  embedder,
		store:     store,
		generator: generator,
		threshold: threshold,
		limit:     limit,
		observer:  opts.Observer,
	}
}

// Search embeds the query with the active model and returns chunks at or above
// threshold. Zero threshold or limit selects the configured default.
func (uc *SearchUseCase) Search(ctx context.Context, query string, threshold float64, limit int) ([]domain.SearchMatch, error) {
	started := time.Now()
	matches, err := uc.search(ctx, query, threshold, limit)
	if err != nil {
		return nil, err
	}
	uc.record("search", len(matches), time.Since(started))
	return matches, nil
}

func (uc *SearchUseCase) Answer(ctx context.Context, question string, threshold float64, limit int) (*domain.Answer, error) {
	if uc.generator == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("answer generation is not configured"))
	}
	started := time.Now()
	matches, err := uc.search(ctx, question, threshold, limit)
	if err != nil {
		return nil, err
	}

	text, err := uc.generator.GenerateAnswer(ctx, question, matches)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	uc.record("answer", len(matches), time.Since(started))
	return &domain.Answer{Text: text, Sources: matches}, nil
}

func (uc *SearchUseCase) search(ctx context.Context, query string, threshold float64, limit int) ([]domain.SearchMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is required"))
	}
	if threshold < 0 || threshold > 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", fmt.Errorf("threshold %v outside [0, 1]", threshold))
	}
	if threshold == 0 {
		threshold = uc.threshold
	}
	if limit <= 0 {
		limit = uc.limit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	vector, err := uc.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := uc.store.Search(ctx, domain.SearchQuery{
		Vector:    vector,
		Threshold: threshold,
		Limit:     limit,
		Model:     uc.embedder.ModelName(),
	})
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	return matches, nil
}

func (uc *SearchUseCase) record(endpoint string, matches int, duration time.Duration) {
	if uc.observer != nil {
		uc.observer.RecordSearch(endpoint, matches, duration)
	}
}
