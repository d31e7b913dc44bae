package nats

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

func TestDocumentEventCarriesKind(t *testing.T) {
	data, err := encodeEvent(domain.CaseScopedRef("cd-7"), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("encodeEvent() error = %v", err)
	}
	ref, err := decodeEvent(data)
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if ref != domain.CaseScopedRef("cd-7") {
		t.Fatalf("expected case scoped ref, got %+v", ref)
	}
}

func TestEventTime(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data, _ := encodeEvent(domain.StandaloneRef("d-1"), at)
	got, ok := eventTime(data)
	if !ok || !got.Equal(at) {
		t.Fatalf("expected %v, got %v (ok=%v)", at, got, ok)
	}
	if _, ok := eventTime([]byte("doc-42")); ok {
		t.Fatalf("expected no time for bare id payload")
	}
}

func TestDecodeEventAcceptsBareID(t *testing.T) {
	ref, err := decodeEvent([]byte(" doc-42\n"))
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if ref != domain.StandaloneRef("doc-42") {
		t.Fatalf("expected standalone ref, got %+v", ref)
	}
}

func TestDecodeEventRejectsInvalidPayloads(t *testing.T) {
	for _, payload := range []string{"", `{"kind":"issue","id":"x"}`, `{"kind":"case","id":""}`, `{broken`} {
		if _, err := decodeEvent([]byte(payload)); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %q, got %v", payload, err)
		}
	}
}

func TestEncodeEventRejectsInvalidRef(t *testing.T) {
	if _, err := encodeEvent(domain.DocumentRef{Kind: "other", ID: "x"}, time.Now()); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	if err := wrapTemporaryIfNeeded(fmt.Errorf("nats publish: %w", nats.ErrConnectionClosed)); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected closed connection to be temporary, got %v", err)
	}
	if err := wrapTemporaryIfNeeded(nats.ErrBadSubject); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected bad subject to stay permanent, got %v", err)
	}
	if err := wrapTemporaryIfNeeded(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if !errors.Is(wrapTemporaryIfNeeded(nats.ErrTimeout), nats.ErrTimeout) {
		t.Fatalf("expected original error to be preserved")
	}
}
