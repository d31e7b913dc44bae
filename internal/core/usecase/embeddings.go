package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/ports"
)

const DefaultMinEmbedChars = 50

type ChunkObserver interface {
	ObserveChunkEmbedding(err error)
}

type EmbeddingIndexOptions struct {
	// MinChars is the shortest text worth embedding.
	MinChars int
	// RatePerSecond paces embedding calls; zero or less disables pacing.
	RatePerSecond float64
	Burst         int
	Observer      ChunkObserver
}

// EmbeddingIndexUseCase rebuilds the chunk records of one document from its text.
type EmbeddingIndexUseCase struct {
	chunker  ports.Chunker
	embedder ports.Embedder
	store    ports.ChunkStore
	limiter  *rate.Limiter
	minChars int
	observer ChunkObserver
	locks    *keyedMutex
}

func NewEmbeddingIndexUseCase(
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.ChunkStore,
	opts EmbeddingIndexOptions,
) *EmbeddingIndexUseCase {
	minChars := opts.MinChars
	if minChars <= 0 {
		minChars = DefaultMinEmbedChars
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &EmbeddingIndexUseCase{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		limiter:  rate.NewLimiter(limit, burst),
		minChars: minChars,
		observer: opts.Observer,
		locks:    newKeyedMutex(),
	}
}

// GenerateDocumentEmbeddings replaces every chunk record of doc. A failed chunk
// is reported and skipped; only a failed delete, missing credentials or a
// cancelled context abort the whole document.
func (uc *EmbeddingIndexUseCase) GenerateDocumentEmbeddings(ctx context.Context, doc *domain.Document) (domain.EmbeddingReport, error) {
	ref := doc.Ref()
	report := domain.EmbeddingReport{Document: ref}
	if err := ref.Validate(); err != nil {
		return report, err
	}
	if utf8.RuneCountInString(strings.TrimSpace(doc.Text)) < uc.minChars {
		report.Skipped = true
		report.SkipReason = domain.SkipTextTooShort
		return report, nil
	}

	unlock := uc.locks.Lock(ref.String())
	defer unlock()

	if err := uc.store.DeleteByDocument(ctx, ref); err != nil {
		return report, fmt.Errorf("delete previous chunks: %w", err)
	}

	chunks := uc.chunker.Split(doc.Text)
	report.TotalChunks = len(chunks)
	if len(chunks) == 0 {
		report.Skipped = true
		report.SkipReason = domain.SkipNoChunks
		return report, nil
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	model := uc.embedder.ModelName()
	meta := domain.ChunkMetadata{
		DocumentType: doc.DocumentType,
		OriginalName: doc.Filename,
		TotalChunks:  len(chunks),
	}
	started := time.Now()
	outcome := domain.ProcessAll(runCtx, chunks, func(ctx context.Context, index int, chunk string) (int, error) {
		err := uc.embedChunk(ctx, ref, index, chunk, model, meta)
		if uc.observer != nil {
			uc.observer.ObserveChunkEmbedding(err)
		}
		if err != nil {
			slog.Warn("chunk_embedding_failed",
				"document", ref.String(),
				"chunk_index", index,
				"error", err.Error(),
			)
			if domain.IsKind(err, domain.ErrMissingCredentials) {
				cancel(err)
			}
			return 0, err
		}
		return index, nil
	})

	report.ChunksEmbedded = len(outcome.Succeeded)
	for _, failed := range outcome.Failed {
		report.Failures = append(report.Failures, domain.ChunkFailure{ChunkIndex: failed.Index, Error: failed.Err.Error()})
	}

	if outcome.Cancelled {
		if cause := context.Cause(runCtx); errors.Is(cause, domain.ErrMissingCredentials) {
			return report, fmt.Errorf("embed chunks: %w", cause)
		}
		return report, fmt.Errorf("embed chunks: %w", ctx.Err())
	}

	slog.Info("document_embeddings_generated",
		"document", ref.String(),
		"chunks_embedded", report.ChunksEmbedded,
		"total_chunks", report.TotalChunks,
		"model", model,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return report, nil
}

func (uc *EmbeddingIndexUseCase) embedChunk(
	ctx context.Context,
	ref domain.DocumentRef,
	index int,
	chunk, model string,
	meta domain.ChunkMetadata,
) error {
	if err := uc.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for embedding rate limit: %w", err)
	}
	vector, err := uc.embedder.Embed(ctx, chunk)
	if err != nil {
		return fmt.Errorf("embed chunk: %w", err)
	}
	record := domain.ChunkRecord{
		Document:       ref,
		ChunkIndex:     index,
		Content:        chunk,
		Embedding:      vector,
		EmbeddingModel: model,
		Metadata:       meta,
	}
	if err := uc.store.Insert(ctx, record); err != nil {
		return fmt.Errorf("insert chunk record: %w", err)
	}
	return nil
}
