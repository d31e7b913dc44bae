package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/normalize"
)

const (
	DefaultEmbedModel    = "text-embedding-3-small"
	DefaultMaxInputChars = 30000
)

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type Embedder struct {
	client        *Client
	model         string
	maxInputChars int
}

func NewEmbedder(client *Client, model string, maxInputChars int) *Embedder {
	if strings.TrimSpace(model) == "" {
		model = DefaultEmbedModel
	}
	if maxInputChars <= 0 {
		maxInputChars = DefaultMaxInputChars
	}
	return &Embedder{client: client, model: model, maxInputChars: maxInputChars}
}

func (e *Embedder) ModelName() string {
	return e.model
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	input := PrepareInput(text, e.maxInputChars)
	if input == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "embed", fmt.Errorf("empty input"))
	}

	request := map[string]any{
		"model": e.model,
		"input": input,
	}
	response, err := post[embeddingResponse](ctx, e.client, "/embeddings", request, "embed")
	if err != nil {
		return nil, err
	}
	if len(response.Data) == 0 || len(response.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embed: empty embedding in response")
	}
	return response.Data[0].Embedding, nil
}

// PrepareInput collapses whitespace and keeps at most maxChars runes of the prefix.
func PrepareInput(text string, maxChars int) string {
	collapsed := normalize.CollapseWhitespace(text)
	if maxChars <= 0 {
		return collapsed
	}
	count := 0
	for i := range collapsed {
		if count == maxChars {
			return collapsed[:i]
		}
		count++
	}
	return collapsed
}
