package openai

import (
	"context"
	"encoding/base64"
	"strings"
)

const DefaultVisionModel = "gpt-4o-mini"

// VisionTranscriber sends a PDF as a base64 data URL file part to a
// vision-capable chat model and returns the transcription.
type VisionTranscriber struct {
	client    *Client
	model     string
	maxTokens int
}

func NewVisionTranscriber(client *Client, model string) *VisionTranscriber {
	if strings.TrimSpace(model) == "" {
		model = DefaultVisionModel
	}
	return &VisionTranscriber{client: client, model: model, maxTokens: 16000}
}

func (v *VisionTranscriber) TranscribePDF(ctx context.Context, filename string, pdf []byte, instructions string) (string, error) {
	dataURL := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdf)
	req := chatRequest{
		Model:     v.model,
		MaxTokens: v.maxTokens,
		Messages: []chatMessage{{
			Role: "user",
			Content: []map[string]any{
				{"type": "text", "text": instructions},
				{"type": "file", "file": map[string]string{"filename": filename, "file_data": dataURL}},
			},
		}},
	}
	return v.client.complete(ctx, req, "vision_transcribe")
}
