package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

// fakeBucket serves the handful of path-style S3 calls the store makes.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	deletes int
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/evidence/")
	switch {
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return
		}
		_, _ = w.Write(body)
	case r.Method == http.MethodPost && r.URL.Query().Has("delete"):
		f.deletes++
		raw, _ := io.ReadAll(r.Body)
		for k := range f.objects {
			if strings.Contains(string(raw), "<Key>"+k+"</Key>") {
				delete(f.objects, k)
			}
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><DeleteResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"></DeleteResult>`))
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func TestStorageAgainstS3CompatibleEndpoint(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{}}
	server := httptest.NewServer(bucket)
	defer server.Close()

	ctx := context.Background()
	store, err := New(ctx, Config{
		Endpoint:  server.URL,
		Bucket:    "evidence",
		AccessKey: "minio",
		SecretKey: "minio-secret",
		PathStyle: true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := store.Upload(ctx, "standalone/u-1/d-1.txt", []byte("hello"), "text/plain"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	data, err := store.Download(ctx, "standalone/u-1/d-1.txt")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected hello, got %q", data)
	}

	if err := store.Remove(ctx, []string{"standalone/u-1/d-1.txt"}); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if bucket.deletes != 1 {
		t.Fatalf("expected 1 batch delete, got %d", bucket.deletes)
	}
	if _, err := store.Download(ctx, "standalone/u-1/d-1.txt"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}
