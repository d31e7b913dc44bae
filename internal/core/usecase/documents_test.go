package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/vector/memory"
)

func TestDeleteRemovesChunksRecordAndBlob(t *testing.T) {
	repo := newDocRepoFake()
	blobs := newBlobFake()
	store := memory.New()
	blobs.objects["cases/c-1/cd-1.pdf"] = []byte("%PDF")
	ref := seedDocument(repo, domain.Document{ID: "cd-1", Kind: domain.KindCaseScoped, StoragePath: "cases/c-1/cd-1.pdf"})
	_ = store.Insert(context.Background(), domain.ChunkRecord{Document: ref, Embedding: []float32{1}})

	uc := NewDocumentUseCase(repo, blobs, store, &indexerFake{})
	if err := uc.Delete(context.Background(), ref); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if n, _ := store.CountByDocument(context.Background(), ref); n != 0 {
		t.Fatalf("expected chunks removed, got %d", n)
	}
	if len(repo.deleted) != 1 || len(blobs.objects) != 0 {
		t.Fatalf("expected record and blob removed, got deleted=%v blobs=%d", repo.deleted, len(blobs.objects))
	}
}

func TestDeleteToleratesBlobFailure(t *testing.T) {
	repo := newDocRepoFake()
	blobs := newBlobFake()
	blobs.removeErr = errors.New("access denied")
	ref := seedDocument(repo, domain.Document{ID: "d-1", Kind: domain.KindStandalone, StoragePath: "documents/u/d-1.txt"})

	uc := NewDocumentUseCase(repo, blobs, memory.New(), &indexerFake{})
	if err := uc.Delete(context.Background(), ref); err != nil {
		t.Fatalf("expected blob failure to be tolerated, got %v", err)
	}
}

func TestGetRejectsInvalidRef(t *testing.T) {
	uc := NewDocumentUseCase(newDocRepoFake(), newBlobFake(), memory.New(), &indexerFake{})
	if _, err := uc.Get(context.Background(), domain.DocumentRef{Kind: domain.KindStandalone}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestRegenerateEmbeddingsUsesStoredDocument(t *testing.T) {
	repo := newDocRepoFake()
	ref := seedDocument(repo, domain.Document{ID: "d-1", Kind: domain.KindStandalone, Text: longText})
	indexer := &indexerFake{report: domain.EmbeddingReport{ChunksEmbedded: 4, TotalChunks: 4}}

	report, err := NewDocumentUseCase(repo, newBlobFake(), memory.New(), indexer).RegenerateEmbeddings(context.Background(), ref)
	if err != nil {
		t.Fatalf("RegenerateEmbeddings() error = %v", err)
	}
	if report.Document != ref || report.ChunksEmbedded != 4 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
