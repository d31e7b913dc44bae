package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

// Client stores chunk records as Qdrant points. Each point carries the owning
// document ref in its payload so deletes and counts can filter on it.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func documentFilter(ref domain.DocumentRef) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "document_key", "match": map[string]any{"value": ref.String()}},
		},
	}
}

func (c *Client) DeleteByDocument(ctx context.Context, ref domain.DocumentRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	// A missing collection (404) means nothing was ever inserted.
	if _, _, err := c.post(ctx, "/points/delete?wait=true", map[string]any{"filter": documentFilter(ref)}); err != nil {
		return fmt.Errorf("qdrant delete points: %w", err)
	}
	return nil
}

func (c *Client) Insert(ctx context.Context, record domain.ChunkRecord) error {
	if err := record.Document.Validate(); err != nil {
		return err
	}
	if len(record.Embedding) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "insert point", fmt.Errorf("empty vector"))
	}
	if err := c.ensureCollection(ctx, len(record.Embedding)); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	reqBody := map[string]any{
		"points": []map[string]any{
			{
				"id":     record.ID,
				"vector": record.Embedding,
				"payload": map[string]any{
					"document_key":    record.Document.String(),
					"document_kind":   string(record.Document.Kind),
					"document_id":     record.Document.ID,
					"chunk_index":     record.ChunkIndex,
					"content_chunk":   record.Content,
					"embedding_model": record.EmbeddingModel,
					"document_type":   record.Metadata.DocumentType,
					"original_name":   record.Metadata.OriginalName,
					"total_chunks":    record.Metadata.TotalChunks,
					"created_at":      record.CreatedAt.Format(time.RFC3339),
				},
			},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant upsert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError("upsert", resp)
	}
	return nil
}

func (c *Client) CountByDocument(ctx context.Context, ref domain.DocumentRef) (int, error) {
	if err := ref.Validate(); err != nil {
		return 0, err
	}
	status, raw, err := c.post(ctx, "/points/count", map[string]any{"filter": documentFilter(ref), "exact": true})
	if err != nil {
		return 0, fmt.Errorf("qdrant count points: %w", err)
	}
	if status == http.StatusNotFound {
		return 0, nil
	}
	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &countResp); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return countResp.Result.Count, nil
}

// Search relies on the collection's Cosine distance, whose score is the cosine similarity.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) ([]domain.SearchMatch, error) {
	if len(query.Vector) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search points", fmt.Errorf("empty query vector"))
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 5
	}
	reqBody := map[string]any{
		"vector":          query.Vector,
		"limit":           limit,
		"score_threshold": query.Threshold,
		"with_payload":    true,
	}
	if query.Model != "" {
		reqBody["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "embedding_model", "match": map[string]any{"value": query.Model}},
			},
		}
	}

	status, raw, err := c.post(ctx, "/points/search", reqBody)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	if status == http.StatusNotFound {
		return []domain.SearchMatch{}, nil
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.SearchMatch, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		kind, err := domain.ParseDocumentKind(getStringPayload(r.Payload, "document_kind"))
		if err != nil {
			return nil, fmt.Errorf("decode point payload: %w", err)
		}
		out = append(out, domain.SearchMatch{
			Document:     domain.DocumentRef{Kind: kind, ID: getStringPayload(r.Payload, "document_id")},
			ChunkIndex:   getIntPayload(r.Payload, "chunk_index"),
			Content:      getStringPayload(r.Payload, "content_chunk"),
			Similarity:   r.Score,
			DocumentName: getStringPayload(r.Payload, "original_name"),
			DocumentType: getStringPayload(r.Payload, "document_type"),
			Metadata: domain.ChunkMetadata{
				DocumentType: getStringPayload(r.Payload, "document_type"),
				OriginalName: getStringPayload(r.Payload, "original_name"),
				TotalChunks:  getIntPayload(r.Payload, "total_chunks"),
			},
		})
	}
	return out, nil
}

// post sends a collection-scoped POST. A 404 is returned as a status rather
// than an error so callers can treat a missing collection as empty.
func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal body: %w", err)
	}
	url := fmt.Sprintf("%s/collections/%s%s", c.baseURL, c.collection, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, domain.WrapError(domain.ErrTemporary, "qdrant request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil, nil
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, nil, statusError(strings.TrimPrefix(path, "/"), resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 409 when the collection already exists.
	if resp.StatusCode == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		return statusError("ensure collection", resp)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	err := fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
	if msg := strings.TrimSpace(string(body)); msg != "" {
		err = fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return domain.WrapError(domain.ErrTemporary, "qdrant "+operation, err)
	}
	return err
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
