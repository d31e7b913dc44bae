package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/ports"
)

const DefaultMinDirectChars = 50

const (
	suggestionUnsupported = "Upload one of the supported types: PDF, DOCX, TXT, MD, CSV, XLSX, ODT, HTML, RTF."
	suggestionScanned     = "The PDF looks scanned. Enable OCR or upload a PDF with a text layer."
	suggestionCorrupt     = "The file may be damaged or password protected. Re-export it and upload again."
	suggestionEmpty       = "The file has no readable text. Check that the right file was uploaded."
)

type Options struct {
	// MinDirectChars is the non-space character count below which a PDF text layer counts as missing.
	MinDirectChars int
	// OCR is optional; without it scanned PDFs fail with a suggestion.
	OCR       ports.OCREngine
	PDFReader PageReader
}

type Extractor struct {
	minDirectChars int
	ocr            ports.OCREngine
	pdfReader      PageReader
}

func New(opts Options) *Extractor {
	if opts.MinDirectChars <= 0 {
		opts.MinDirectChars = DefaultMinDirectChars
	}
	if opts.PDFReader == nil {
		opts.PDFReader = TextLayerReader{}
	}
	return &Extractor{
		minDirectChars: opts.MinDirectChars,
		ocr:            opts.OCR,
		pdfReader:      opts.PDFReader,
	}
}

// SupportedExtensions lists the lower-case extensions Extract dispatches on.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".txt", ".md", ".csv", ".xlsx", ".odt", ".html", ".htm", ".rtf"}
}

// Extract never returns an error: parser failures and panics come back as an
// unsuccessful result with a human-readable suggestion.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (result domain.ExtractionResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("extraction_panic", "filename", filename, "panic", fmt.Sprint(r))
			result = domain.FailedExtraction(domain.MethodNone, fmt.Sprintf("parser crashed: %v", r), suggestionCorrupt)
		}
	}()

	if len(data) == 0 {
		return domain.FailedExtraction(domain.MethodNone, "empty file", suggestionEmpty)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return e.extractPDF(ctx, data, filename)
	case ".docx":
		text, err := extractDOCX(data)
		return textResult(domain.MethodDOCX, text, err)
	case ".txt", ".md", ".csv":
		text, err := extractPlainText(data)
		return textResult(domain.MethodText, text, err)
	case ".xlsx":
		return extractXLSX(data)
	case ".odt", ".html", ".htm", ".rtf":
		text, err := extractWithDocconv(data, ext)
		return textResult(domain.MethodDocconv, text, err)
	default:
		return domain.FailedExtraction(domain.MethodNone, fmt.Sprintf("unsupported file type %q", ext), suggestionUnsupported)
	}
}

func textResult(method domain.ExtractionMethod, text string, err error) domain.ExtractionResult {
	if err != nil {
		return domain.FailedExtraction(method, err.Error(), suggestionCorrupt)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.FailedExtraction(method, "no text extracted", suggestionEmpty)
	}
	return domain.ExtractionResult{
		Success:  true,
		Text:     text,
		Method:   method,
		NumPages: 1,
	}
}

func countNonSpace(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
