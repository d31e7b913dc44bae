package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/ports"
)

type DocumentUseCase struct {
	repo    ports.DocumentRepository
	blobs   ports.BlobStore
	store   ports.ChunkStore
	indexer ports.EmbeddingIndexer
}

func NewDocumentUseCase(
	repo ports.DocumentRepository,
	blobs ports.BlobStore,
	store ports.ChunkStore,
	indexer ports.EmbeddingIndexer,
) *DocumentUseCase {
	return &DocumentUseCase{
		repo:    repo,
		blobs:   blobs,
		store:   store,
		indexer: indexer,
	}
}

func (uc *DocumentUseCase) Get(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	doc, err := uc.repo.GetByRef(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// RegenerateEmbeddings rebuilds chunks from the stored normalized text.
func (uc *DocumentUseCase) RegenerateEmbeddings(ctx context.Context, ref domain.DocumentRef) (domain.EmbeddingReport, error) {
	doc, err := uc.Get(ctx, ref)
	if err != nil {
		return domain.EmbeddingReport{Document: ref}, err
	}
	report, err := uc.indexer.GenerateDocumentEmbeddings(ctx, doc)
	if err != nil {
		return report, fmt.Errorf("regenerate embeddings: %w", err)
	}
	return report, nil
}

// Delete drops chunks, then the record, then the blob. A blob that cannot be
// removed is logged and left behind.
func (uc *DocumentUseCase) Delete(ctx context.Context, ref domain.DocumentRef) error {
	doc, err := uc.Get(ctx, ref)
	if err != nil {
		return err
	}
	if err := uc.store.DeleteByDocument(ctx, ref); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := uc.repo.Delete(ctx, ref); err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}
	if doc.StoragePath != "" {
		if err := uc.blobs.Remove(ctx, []string{doc.StoragePath}); err != nil {
			slog.Warn("blob_remove_failed", "document", ref.String(), "path", doc.StoragePath, "error", err.Error())
		}
	}
	return nil
}
