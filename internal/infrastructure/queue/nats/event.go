package nats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

type documentEvent struct {
	Kind        domain.DocumentKind `json:"kind"`
	ID          string              `json:"id"`
	PublishedAt time.Time           `json:"published_at"`
}

func encodeEvent(ref domain.DocumentRef, at time.Time) ([]byte, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(documentEvent{Kind: ref.Kind, ID: ref.ID, PublishedAt: at})
	if err != nil {
		return nil, fmt.Errorf("encode document event: %w", err)
	}
	return data, nil
}

// decodeEvent also accepts a bare document id, read as a standalone document.
func decodeEvent(data []byte) (domain.DocumentRef, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return domain.DocumentRef{}, domain.WrapError(domain.ErrInvalidInput, "decode document event", fmt.Errorf("empty payload"))
	}
	if trimmed[0] != '{' {
		ref := domain.StandaloneRef(string(trimmed))
		return ref, ref.Validate()
	}

	var event struct {
		Kind string `json:"kind"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return domain.DocumentRef{}, domain.WrapError(domain.ErrInvalidInput, "decode document event", err)
	}
	kind, err := domain.ParseDocumentKind(event.Kind)
	if err != nil {
		return domain.DocumentRef{}, err
	}
	ref := domain.DocumentRef{Kind: kind, ID: event.ID}
	return ref, ref.Validate()
}

// eventTime reports when the event was published; bare-id payloads carry no time.
func eventTime(data []byte) (time.Time, bool) {
	var event documentEvent
	if err := json.Unmarshal(bytes.TrimSpace(data), &event); err != nil || event.PublishedAt.IsZero() {
		return time.Time{}, false
	}
	return event.PublishedAt, true
}
