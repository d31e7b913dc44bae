package extractor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

// PageReader returns the text layer of every physical page, in order.
type PageReader interface {
	ReadPages(data []byte) ([]string, error)
}

type PageReaderFunc func(data []byte) ([]string, error)

func (f PageReaderFunc) ReadPages(data []byte) ([]string, error) {
	return f(data)
}

// TextLayerReader parses the embedded text layer with ledongthuc/pdf.
type TextLayerReader struct{}

func (TextLayerReader) ReadPages(data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("pdf_page_text_failed", "page", i, "error", err.Error())
			pages = append(pages, "")
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

// PageCount reports the page tree size, for parsers that reject what ledongthuc accepts.
func (TextLayerReader) PageCount(data []byte) (int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	n := reader.NumPage()
	if n <= 0 {
		return 0, fmt.Errorf("open pdf: no pages")
	}
	return n, nil
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte, filename string) domain.ExtractionResult {
	var reason string
	pages, err := e.pdfReader.ReadPages(data)
	switch {
	case err != nil:
		reason = err.Error()
		slog.Warn("pdf_text_layer_failed", "filename", filename, "error", reason)
	default:
		text := joinPages(pages)
		chars := countNonSpace(text)
		if chars >= e.minDirectChars {
			return domain.ExtractionResult{
				Success:   true,
				Text:      text,
				Method:    domain.MethodDirect,
				NumPages:  len(pages),
				PageTexts: pages,
			}
		}
		reason = fmt.Sprintf("text layer has %d characters", chars)
		slog.Info("pdf_text_layer_insufficient", "filename", filename, "pages", len(pages), "reason", reason)
	}

	if e.ocr == nil {
		failed := domain.FailedExtraction(domain.MethodDirect, "no usable text layer: "+reason, suggestionScanned)
		failed.NumPages = len(pages)
		return failed
	}

	result := e.ocr.Recover(ctx, data, filename)
	if !result.Success && result.Suggestion == "" {
		result.Suggestion = suggestionScanned
	}
	if result.NumPages == 0 {
		result.NumPages = result.TotalPages
	}
	if result.NumPages == 0 {
		result.NumPages = len(pages)
	}
	return result
}

func joinPages(pages []string) string {
	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		if page = strings.TrimSpace(page); page != "" {
			parts = append(parts, page)
		}
	}
	return strings.Join(parts, "\n\n")
}
