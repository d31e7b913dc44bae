package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

const DefaultChatModel = "gpt-4o-mini"

type AnswerGenerator struct {
	client *Client
	model  string
}

func NewAnswerGenerator(client *Client, model string) *AnswerGenerator {
	if strings.TrimSpace(model) == "" {
		model = DefaultChatModel
	}
	return &AnswerGenerator{client: client, model: model}
}

func (g *AnswerGenerator) GenerateAnswer(ctx context.Context, question string, matches []domain.SearchMatch) (string, error) {
	req := chatRequest{
		Model:       g.model,
		Temperature: 0.2,
		Messages: []chatMessage{
			{Role: "system", Content: "Answer only from the numbered context. Cite sources as [n]. If the context is insufficient, say so."},
			{Role: "user", Content: BuildContextPrompt(question, matches)},
		},
	}
	return g.client.complete(ctx, req, "answer")
}

func BuildContextPrompt(question string, matches []domain.SearchMatch) string {
	var b strings.Builder
	for i, m := range matches {
		name := m.DocumentName
		if name == "" {
			name = m.Metadata.OriginalName
		}
		docType := m.DocumentType
		if docType == "" {
			docType = m.Metadata.DocumentType
		}
		fmt.Fprintf(&b, "[%d] %s (%s) similarity=%.3f\n%s\n\n", i+1, name, docType, m.Similarity, m.Content)
	}
	return fmt.Sprintf("Question:\n%s\n\nContext:\n%s", question, b.String())
}
