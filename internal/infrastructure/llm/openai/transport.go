package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/resilience"
)

// post checks credentials at the point of use so that a missing key fails
// the call instead of the process start.
func post[T any](ctx context.Context, c *Client, path string, payload any, operation string) (T, error) {
	if c.apiKey == "" {
		var zero T
		return zero, domain.WrapError(domain.ErrMissingCredentials, operation, fmt.Errorf("LLM_API_KEY is not set"))
	}

	call := func(ctx context.Context) (T, error) {
		var out T
		err := c.doPost(ctx, path, payload, &out, operation)
		return out, err
	}
	if c.executor == nil {
		out, err := call(ctx)
		return out, wrapTemporaryIfNeeded(operation, err)
	}
	out, err := resilience.Call(ctx, c.executor, "openai."+operation, call, classifyError)
	return out, wrapTemporaryIfNeeded(operation, err)
}

func (c *Client) doPost(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
