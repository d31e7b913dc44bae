package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/vector/memory"
)

var longText = strings.Repeat("The petitioner submitted additional evidence. ", 4)

func newIndexer(chunker *chunkerFake, embedder *embedderFake, store *memory.Store) *EmbeddingIndexUseCase {
	return NewEmbeddingIndexUseCase(chunker, embedder, store, EmbeddingIndexOptions{})
}

func TestGenerateDocumentEmbeddingsReplacesPreviousChunks(t *testing.T) {
	store := memory.New()
	chunker := &chunkerFake{chunks: []string{"c0", "c1", "c2", "c3", "c4"}}
	uc := newIndexer(chunker, &embedderFake{}, store)
	doc := &domain.Document{ID: "d-1", Kind: domain.KindStandalone, Text: longText}

	if _, err := uc.GenerateDocumentEmbeddings(context.Background(), doc); err != nil {
		t.Fatalf("first run error = %v", err)
	}
	chunker.chunks = []string{"n0", "n1", "n2"}
	report, err := uc.GenerateDocumentEmbeddings(context.Background(), doc)
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}

	records := store.Records(doc.Ref())
	if len(records) != 3 {
		t.Fatalf("expected 3 records after regeneration, got %d", len(records))
	}
	for i, r := range records {
		if r.ChunkIndex != i || !strings.HasPrefix(r.Content, "n") {
			t.Fatalf("unexpected record %d: %+v", i, r)
		}
	}
	if report.ChunksEmbedded != 3 || report.TotalChunks != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestGenerateDocumentEmbeddingsSkipsShortText(t *testing.T) {
	embedder := &embedderFake{}
	uc := newIndexer(&chunkerFake{chunks: []string{"x"}}, embedder, memory.New())

	report, err := uc.GenerateDocumentEmbeddings(context.Background(), &domain.Document{ID: "d-1", Kind: domain.KindStandalone, Text: "too short"})
	if err != nil {
		t.Fatalf("GenerateDocumentEmbeddings() error = %v", err)
	}
	if !report.Skipped || report.SkipReason != domain.SkipTextTooShort {
		t.Fatalf("expected text_too_short skip, got %+v", report)
	}
	if embedder.callCount() != 0 {
		t.Fatalf("expected no embedding calls, got %d", embedder.callCount())
	}
}

func TestGenerateDocumentEmbeddingsContinuesPastChunkFailure(t *testing.T) {
	store := memory.New()
	embedder := &embedderFake{failOn: map[string]error{"b": errors.New("llm embed status: 500")}}
	uc := newIndexer(&chunkerFake{chunks: []string{"a", "b", "c"}}, embedder, store)
	doc := &domain.Document{ID: "cd-1", Kind: domain.KindCaseScoped, Text: longText, Filename: "rfe.pdf", DocumentType: "rfe"}

	report, err := uc.GenerateDocumentEmbeddings(context.Background(), doc)
	if err != nil {
		t.Fatalf("GenerateDocumentEmbeddings() error = %v", err)
	}
	if report.ChunksEmbedded != 2 || report.TotalChunks != 3 {
		t.Fatalf("expected 2 of 3 embedded, got %+v", report)
	}
	if len(report.Failures) != 1 || report.Failures[0].ChunkIndex != 1 {
		t.Fatalf("expected failure on chunk 1, got %+v", report.Failures)
	}

	records := store.Records(domain.CaseScopedRef("cd-1"))
	if len(records) != 2 {
		t.Fatalf("expected 2 stored records, got %d", len(records))
	}
	got := records[1]
	if got.ChunkIndex != 2 || got.EmbeddingModel != "embed-test" || got.Metadata.TotalChunks != 3 || got.Metadata.OriginalName != "rfe.pdf" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestGenerateDocumentEmbeddingsStopsOnMissingCredentials(t *testing.T) {
	embedder := &embedderFake{failOn: map[string]error{
		"a": domain.WrapError(domain.ErrMissingCredentials, "embed", errors.New("LLM_API_KEY is empty")),
	}}
	uc := newIndexer(&chunkerFake{chunks: []string{"a", "b", "c"}}, embedder, memory.New())

	_, err := uc.GenerateDocumentEmbeddings(context.Background(), &domain.Document{ID: "d-1", Kind: domain.KindStandalone, Text: longText})
	if !domain.IsKind(err, domain.ErrMissingCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
	if embedder.callCount() != 1 {
		t.Fatalf("expected 1 embedding call, got %d", embedder.callCount())
	}
}

type failingDeleteStore struct {
	*memory.Store
}

func (failingDeleteStore) DeleteByDocument(context.Context, domain.DocumentRef) error {
	return errors.New("connection reset")
}

func TestGenerateDocumentEmbeddingsFailsWhenDeleteFails(t *testing.T) {
	embedder := &embedderFake{}
	uc := NewEmbeddingIndexUseCase(&chunkerFake{chunks: []string{"a"}}, embedder, failingDeleteStore{memory.New()}, EmbeddingIndexOptions{})

	if _, err := uc.GenerateDocumentEmbeddings(context.Background(), &domain.Document{ID: "d-1", Kind: domain.KindStandalone, Text: longText}); err == nil {
		t.Fatalf("expected error when delete fails")
	}
	if embedder.callCount() != 0 {
		t.Fatalf("expected no embedding after failed delete, got %d calls", embedder.callCount())
	}
}

func TestGenerateDocumentEmbeddingsSerializesSameDocument(t *testing.T) {
	store := memory.New()
	uc := newIndexer(&chunkerFake{chunks: []string{"a", "b", "c", "d"}}, &embedderFake{}, store)
	doc := &domain.Document{ID: "d-1", Kind: domain.KindStandalone, Text: longText}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			copyDoc := *doc
			if _, err := uc.GenerateDocumentEmbeddings(context.Background(), &copyDoc); err != nil {
				t.Errorf("GenerateDocumentEmbeddings() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if n, _ := store.CountByDocument(context.Background(), doc.Ref()); n != 4 {
		t.Fatalf("expected 4 records after concurrent regenerations, got %d", n)
	}
}

func TestGenerateDocumentEmbeddingsHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	uc := newIndexer(&chunkerFake{chunks: []string{"a", "b"}}, &embedderFake{}, memory.New())

	_, err := uc.GenerateDocumentEmbeddings(ctx, &domain.Document{ID: "d-1", Kind: domain.KindStandalone, Text: longText})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
