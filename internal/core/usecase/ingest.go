package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/ports"
)

const DefaultMaxFileBytes = 50 << 20

type IngestObserver interface {
	ObserveIngestFile(stage string, success bool)
}

type IngestOptions struct {
	MaxFileBytes  int64
	// MaxStoredText caps the text kept on the record and indexed inline; zero keeps all of it.
	MaxStoredText int
	Observer      IngestObserver
}

// IngestDocumentUseCase turns an upload batch into stored, searchable documents.
type IngestDocumentUseCase struct {
	repo       ports.DocumentRepository
	blobs      ports.BlobStore
	extractor  ports.TextExtractor
	normalizer ports.Normalizer
	indexer    ports.EmbeddingIndexer
	queue      ports.MessageQueue
	maxBytes   int64
	maxText    int
	observer   IngestObserver
	now        func() time.Time
}

// NewIngestDocumentUseCase accepts a nil queue; documents uploaded without
// inline embeddings then stay in the uploaded state.
func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	blobs ports.BlobStore,
	extractor ports.TextExtractor,
	normalizer ports.Normalizer,
	indexer ports.EmbeddingIndexer,
	queue ports.MessageQueue,
	opts IngestOptions,
) *IngestDocumentUseCase {
	maxBytes := opts.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	return &IngestDocumentUseCase{
		repo:       repo,
		blobs:      blobs,
		extractor:  extractor,
		normalizer: normalizer,
		indexer:    indexer,
		queue:      queue,
		maxBytes:   maxBytes,
		maxText:    opts.MaxStoredText,
		observer:   opts.Observer,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type stageError struct {
	stage      domain.IngestStage
	suggestion string
	err        error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func failAt(stage domain.IngestStage, err error) error {
	return &stageError{stage: stage, err: err}
}

// IngestBatch processes files one at a time in input order. A failing file is
// recorded with the stage it failed at and never stops the files after it.
func (uc *IngestDocumentUseCase) IngestBatch(ctx context.Context, req domain.BatchRequest) domain.BatchResult {
	result := domain.BatchResult{
		Results: make([]domain.FileResult, 0, len(req.Files)),
		Errors:  make([]domain.FileError, 0),
	}
	scopeErr := validateScope(req.Scope)

	outcome := domain.ProcessAll(ctx, req.Files, func(ctx context.Context, _ int, file domain.UploadFile) (domain.FileResult, error) {
		if scopeErr != nil {
			return domain.FileResult{}, failAt(domain.StageRead, scopeErr)
		}
		return uc.ingestFile(ctx, req, file)
	})

	result.Results = append(result.Results, outcome.Succeeded...)
	for _, failed := range outcome.Failed {
		fileErr := domain.FileError{File: failed.Item.Filename, Stage: domain.StageRead, Error: failed.Err.Error()}
		var se *stageError
		if errors.As(failed.Err, &se) {
			fileErr.Stage = se.stage
			fileErr.Suggestion = se.suggestion
		}
		result.Errors = append(result.Errors, fileErr)
		uc.observe(string(fileErr.Stage), false)
	}
	for range outcome.Succeeded {
		uc.observe("", true)
	}
	result.Processed = len(result.Results)
	result.Failed = len(result.Errors)

	slog.Info("ingest_batch_completed",
		"kind", string(req.Scope.Kind),
		"case_id", req.Scope.CaseID,
		"files", len(req.Files),
		"processed", result.Processed,
		"failed", result.Failed,
	)
	return result
}

func (uc *IngestDocumentUseCase) ingestFile(ctx context.Context, req domain.BatchRequest, file domain.UploadFile) (domain.FileResult, error) {
	if len(file.Data) == 0 {
		return domain.FileResult{}, failAt(domain.StageRead, domain.WrapError(domain.ErrInvalidInput, "read file", errors.New("empty file")))
	}
	if int64(len(file.Data)) > uc.maxBytes {
		return domain.FileResult{}, failAt(domain.StageRead, domain.WrapError(domain.ErrInvalidInput, "read file",
			fmt.Errorf("file is %d bytes, limit is %d", len(file.Data), uc.maxBytes)))
	}

	sum := sha256.Sum256(file.Data)
	hash := hex.EncodeToString(sum[:])
	if err := uc.checkDuplicate(ctx, req.Scope, hash); err != nil {
		return domain.FileResult{}, failAt(domain.StageDuplicate, err)
	}

	extraction := uc.extractor.Extract(ctx, file.Data, file.Filename)
	if !extraction.Success {
		return domain.FileResult{}, &stageError{
			stage:      domain.StageExtract,
			suggestion: extraction.Suggestion,
			err:        fmt.Errorf("extract text: %s", extraction.Error),
		}
	}
	text := truncateRunes(uc.normalizer.Normalize(extraction.Text), uc.maxText)

	id := uuid.NewString()
	path := storagePath(req.Scope, id, file.Filename)
	contentType := contentTypeOf(file)
	if err := uc.blobs.Upload(ctx, path, file.Data, contentType); err != nil {
		return domain.FileResult{}, failAt(domain.StageStorage, fmt.Errorf("upload blob: %w", err))
	}

	now := uc.now()
	doc := &domain.Document{
		ID:           id,
		Kind:         req.Scope.Kind,
		CaseID:       req.Scope.CaseID,
		OwnerID:      req.Scope.OwnerID,
		Filename:     file.Filename,
		DocumentType: req.DocumentType,
		MimeType:     contentType,
		SizeBytes:    int64(len(file.Data)),
		StoragePath:  path,
		ContentHash:  hash,
		Text:         text,
		TextOK:       true,
		Method:       string(extraction.Method),
		PageCount:    extraction.NumPages,
		CharCount:    utf8.RuneCountInString(text),
		WordCount:    uc.normalizer.WordCount(text),
		Status:       domain.StatusUploaded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		if rmErr := uc.blobs.Remove(ctx, []string{path}); rmErr != nil {
			slog.Warn("blob_cleanup_failed", "path", path, "error", rmErr.Error())
		}
		return domain.FileResult{}, failAt(domain.StageRecord, fmt.Errorf("create document record: %w", err))
	}

	fileResult := domain.FileResult{
		File:       file.Filename,
		Success:    true,
		DocumentID: id,
		Kind:       doc.Kind,
		Method:     extraction.Method,
		Pages:      extraction.NumPages,
	}

	if req.GenerateEmbeddings {
		report, err := uc.indexer.GenerateDocumentEmbeddings(ctx, doc)
		if err != nil {
			uc.markFailed(ctx, doc.Ref(), err)
			return domain.FileResult{}, &stageError{
				stage:      domain.StageEmbedding,
				suggestion: regenerateSuggestion(doc.Ref()),
				err:        fmt.Errorf("generate embeddings: %w", err),
			}
		}
		if err := uc.repo.UpdateStatus(ctx, doc.Ref(), domain.StatusReady, ""); err != nil {
			return domain.FileResult{}, failAt(domain.StageRecord, fmt.Errorf("set status=ready: %w", err))
		}
		fileResult.ChunksEmbedded = report.ChunksEmbedded
		fileResult.TotalChunks = report.TotalChunks
		return fileResult, nil
	}

	if uc.queue != nil {
		if err := uc.queue.PublishDocumentIngested(ctx, doc.Ref()); err != nil {
			return domain.FileResult{}, failAt(domain.StageQueue, fmt.Errorf("publish ingestion event: %w", err))
		}
		fileResult.Queued = true
	}
	return fileResult, nil
}

func (uc *IngestDocumentUseCase) checkDuplicate(ctx context.Context, scope domain.IngestScope, hash string) error {
	existing, err := uc.repo.FindByHash(ctx, scope, hash)
	switch {
	case err == nil:
		return domain.WrapError(domain.ErrDuplicateDocument, "check duplicate",
			fmt.Errorf("same content as document %s (%s)", existing.ID, existing.Filename))
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return nil
	default:
		return fmt.Errorf("find document by hash: %w", err)
	}
}

func (uc *IngestDocumentUseCase) markFailed(ctx context.Context, ref domain.DocumentRef, cause error) {
	if err := uc.repo.UpdateStatus(ctx, ref, domain.StatusFailed, cause.Error()); err != nil {
		slog.Warn("document_status_update_failed", "document", ref.String(), "error", err.Error())
	}
}

func (uc *IngestDocumentUseCase) observe(stage string, success bool) {
	if uc.observer != nil {
		uc.observer.ObserveIngestFile(stage, success)
	}
}

// regenerateSuggestion points at the stored record, since a re-upload of the
// same bytes is now rejected as a duplicate.
func regenerateSuggestion(ref domain.DocumentRef) string {
	return fmt.Sprintf("document %s was stored; retry embeddings with POST /v1/documents/%s/%s/embeddings instead of re-uploading",
		ref.ID, ref.Kind, ref.ID)
}

// truncateRunes keeps at most limit runes; limit <= 0 keeps everything.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

func validateScope(scope domain.IngestScope) error {
	switch scope.Kind {
	case domain.KindStandalone:
		return nil
	case domain.KindCaseScoped:
		if strings.TrimSpace(scope.CaseID) == "" {
			return domain.WrapError(domain.ErrInvalidInput, "validate upload scope", errors.New("case_id is required for case documents"))
		}
		return nil
	default:
		return domain.WrapError(domain.ErrInvalidInput, "validate upload scope", fmt.Errorf("unknown kind %q", scope.Kind))
	}
}

// storagePath lays blobs out as {scope}/{owner}/{id}{ext}.
func storagePath(scope domain.IngestScope, id, filename string) string {
	dir, owner := "documents", scope.OwnerID
	if scope.Kind == domain.KindCaseScoped {
		dir, owner = "cases", scope.CaseID
	}
	if owner = strings.Trim(sanitizeSegment(owner), "."); owner == "" {
		owner = "anonymous"
	}
	return fmt.Sprintf("%s/%s/%s%s", dir, owner, id, sanitizeSegment(strings.ToLower(filepath.Ext(filename))))
}

func contentTypeOf(file domain.UploadFile) string {
	if ct := strings.TrimSpace(file.MimeType); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(file.Filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func sanitizeSegment(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
