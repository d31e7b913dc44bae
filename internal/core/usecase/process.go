package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/ports"
)

// ProcessDocumentUseCase runs the asynchronous half of ingestion for one queued document.
type ProcessDocumentUseCase struct {
	repo       ports.DocumentRepository
	blobs      ports.BlobStore
	extractor  ports.TextExtractor
	normalizer ports.Normalizer
	indexer    ports.EmbeddingIndexer
	maxText    int
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	blobs ports.BlobStore,
	extractor ports.TextExtractor,
	normalizer ports.Normalizer,
	indexer ports.EmbeddingIndexer,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:       repo,
		blobs:      blobs,
		extractor:  extractor,
		normalizer: normalizer,
		indexer:    indexer,
	}
}

// WithMaxStoredText caps re-extracted text the same way uploads are capped.
func (uc *ProcessDocumentUseCase) WithMaxStoredText(limit int) *ProcessDocumentUseCase {
	uc.maxText = limit
	return uc
}

func (uc *ProcessDocumentUseCase) ProcessByRef(ctx context.Context, ref domain.DocumentRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := uc.markStatus(ctx, ref, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, ref); err != nil {
		if failErr := uc.markFailed(ctx, ref, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, ref, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, ref domain.DocumentRef) error {
	doc, err := uc.loadDocument(ctx, ref)
	if err != nil {
		return err
	}

	if !doc.TextOK || strings.TrimSpace(doc.Text) == "" {
		if err := uc.reextract(ctx, doc); err != nil {
			return err
		}
	}

	report, err := uc.indexer.GenerateDocumentEmbeddings(ctx, doc)
	if err != nil {
		return fmt.Errorf("generate embeddings: %w", err)
	}
	if !report.Skipped && report.ChunksEmbedded == 0 {
		return fmt.Errorf("generate embeddings: none of %d chunks embedded", report.TotalChunks)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error) {
	doc, err := uc.repo.GetByRef(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetch document by ref: %w", err)
	}
	return doc, nil
}

// reextract downloads the original bytes and stores freshly normalized text on doc.
func (uc *ProcessDocumentUseCase) reextract(ctx context.Context, doc *domain.Document) error {
	data, err := uc.blobs.Download(ctx, doc.StoragePath)
	if err != nil {
		return fmt.Errorf("download blob: %w", err)
	}
	result := uc.extractor.Extract(ctx, data, doc.Filename)
	if !result.Success {
		return domain.WrapError(domain.ErrUnsupportedFormat, "extract text", errors.New(result.Error))
	}
	text := truncateRunes(uc.normalizer.Normalize(result.Text), uc.maxText)
	if err := uc.repo.SaveExtraction(ctx, doc.Ref(), result, text); err != nil {
		return fmt.Errorf("save extraction: %w", err)
	}
	doc.Text = text
	doc.TextOK = true
	doc.Method = string(result.Method)
	doc.PageCount = result.NumPages
	doc.CharCount = utf8.RuneCountInString(text)
	doc.WordCount = uc.normalizer.WordCount(text)
	return nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, ref domain.DocumentRef, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, ref, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, ref domain.DocumentRef, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, ref, domain.StatusFailed, processErr.Error())
}
