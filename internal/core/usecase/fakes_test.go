package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

type statusCall struct {
	ref    domain.DocumentRef
	status domain.DocumentStatus
	errMsg string
}

type docRepoFake struct {
	mu          sync.Mutex
	docs        map[domain.DocumentRef]*domain.Document
	createErr   map[string]error
	hashErr     error
	statusCalls []statusCall
	extractions int
	deleted     []domain.DocumentRef
}

func newDocRepoFake() *docRepoFake {
	return &docRepoFake{
		docs:      make(map[domain.DocumentRef]*domain.Document),
		createErr: make(map[string]error),
	}
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[doc.Filename]; err != nil {
		return err
	}
	copyDoc := *doc
	f.docs[doc.Ref()] = &copyDoc
	return nil
}

func (f *docRepoFake) GetByRef(_ context.Context, ref domain.DocumentRef) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[ref]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(ref.String()))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *docRepoFake) FindByHash(_ context.Context, scope domain.IngestScope, hash string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hashErr != nil {
		return nil, f.hashErr
	}
	for _, doc := range f.docs {
		if doc.Kind == scope.Kind && doc.ContentHash == hash && doc.CaseID == scope.CaseID {
			copyDoc := *doc
			return &copyDoc, nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "find by hash", errors.New(hash))
}

func (f *docRepoFake) UpdateStatus(_ context.Context, ref domain.DocumentRef, status domain.DocumentStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{ref: ref, status: status, errMsg: errMessage})
	doc, ok := f.docs[ref]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "update status", errors.New(ref.String()))
	}
	doc.Status = status
	doc.Error = errMessage
	return nil
}

func (f *docRepoFake) SaveExtraction(_ context.Context, ref domain.DocumentRef, result domain.ExtractionResult, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[ref]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "save extraction", errors.New(ref.String()))
	}
	f.extractions++
	doc.Text = text
	doc.TextOK = result.Success
	doc.Method = string(result.Method)
	return nil
}

func (f *docRepoFake) Delete(_ context.Context, ref domain.DocumentRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[ref]; !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", errors.New(ref.String()))
	}
	delete(f.docs, ref)
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *docRepoFake) statuses(ref domain.DocumentRef) []domain.DocumentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DocumentStatus
	for _, call := range f.statusCalls {
		if call.ref == ref {
			out = append(out, call.status)
		}
	}
	return out
}

type blobFake struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	removeErr error
	removed   []string
}

func newBlobFake() *blobFake {
	return &blobFake{objects: make(map[string][]byte)}
}

func (f *blobFake) Upload(_ context.Context, path string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[path] = append([]byte(nil), data...)
	return nil
}

func (f *blobFake) Download(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[path]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "download", errors.New(path))
	}
	return data, nil
}

func (f *blobFake) Remove(_ context.Context, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, paths...)
	if f.removeErr != nil {
		return f.removeErr
	}
	for _, p := range paths {
		delete(f.objects, p)
	}
	return nil
}

// extractorFake returns results keyed by filename and defaults to a direct success.
type extractorFake struct {
	results map[string]domain.ExtractionResult
	calls   int
}

func (f *extractorFake) Extract(_ context.Context, data []byte, filename string) domain.ExtractionResult {
	f.calls++
	if r, ok := f.results[filename]; ok {
		return r
	}
	return domain.ExtractionResult{Success: true, Text: string(data), Method: domain.MethodText, NumPages: 1}
}

type identityNormalizer struct{}

func (identityNormalizer) Normalize(text string) string { return text }
func (identityNormalizer) WordCount(text string) int { return len(strings.Fields(text)) }

type chunkerFake struct {
	chunks []string
}

func (f *chunkerFake) Split(string) []string { return f.chunks }

// embedderFake returns a deterministic two-dimensional vector per text.
type embedderFake struct {
	mu     sync.Mutex
	model  string
	failOn map[string]error
	calls  []string
}

func (f *embedderFake) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if err := f.failOn[text]; err != nil {
		return nil, err
	}
	return []float32{1, float32(len(text) % 7)}, nil
}

func (f *embedderFake) ModelName() string {
	if f.model == "" {
		return "embed-test"
	}
	return f.model
}

func (f *embedderFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type indexerFake struct {
	report domain.EmbeddingReport
	err    error
	docs   []string
	texts  []string
}

func (f *indexerFake) GenerateDocumentEmbeddings(_ context.Context, doc *domain.Document) (domain.EmbeddingReport, error) {
	f.docs = append(f.docs, doc.ID)
	f.texts = append(f.texts, doc.Text)
	report := f.report
	report.Document = doc.Ref()
	return report, f.err
}

type queueFake struct {
	published []domain.DocumentRef
	err       error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, ref domain.DocumentRef) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, ref)
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, domain.DocumentRef) error) error {
	return fmt.Errorf("not implemented")
}
