package httpadapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/config"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

type ingestFake struct {
	requests []domain.BatchRequest
	result   func(req domain.BatchRequest) domain.BatchResult
}

func (f *ingestFake) IngestBatch(_ context.Context, req domain.BatchRequest) domain.BatchResult {
	f.requests = append(f.requests, req)
	if f.result != nil {
		return f.result(req)
	}
	out := domain.BatchResult{Results: []domain.FileResult{}, Errors: []domain.FileError{}}
	for i, file := range req.Files {
		out.Processed++
		out.Results = append(out.Results, domain.FileResult{
			File:       file.Filename,
			Success:    true,
			DocumentID: fmt.Sprintf("doc-%d", i+1),
			Kind:       req.Scope.Kind,
		})
	}
	return out
}

type docsFake struct {
	err     error
	deleted []domain.DocumentRef
}

func (f *docsFake) Get(_ context.Context, ref domain.DocumentRef) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: ref.ID, Kind: ref.Kind, Filename: "letter.pdf", Status: domain.StatusReady}, nil
}

func (f *docsFake) RegenerateEmbeddings(_ context.Context, ref domain.DocumentRef) (domain.EmbeddingReport, error) {
	if f.err != nil {
		return domain.EmbeddingReport{}, f.err
	}
	return domain.EmbeddingReport{Document: ref, ChunksEmbedded: 3, TotalChunks: 3}, nil
}

func (f *docsFake) Delete(_ context.Context, ref domain.DocumentRef) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, ref)
	return nil
}

type searchFake struct {
	err       error
	matches   []domain.SearchMatch
	threshold float64
	limit     int
}

func (f *searchFake) Search(_ context.Context, _ string, threshold float64, limit int) ([]domain.SearchMatch, error) {
	f.threshold, f.limit = threshold, limit
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func (f *searchFake) Answer(_ context.Context, _ string, threshold float64, limit int) (*domain.Answer, error) {
	f.threshold, f.limit = threshold, limit
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Answer{Text: "ok", Sources: f.matches}, nil
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, &ingestFake{}, &docsFake{}, &searchFake{}).Handler()
}
