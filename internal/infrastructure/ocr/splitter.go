package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/ports"
)

var disableConfigDir sync.Once

// PDFCPUSplitter counts pages and cuts page ranges into standalone PDFs.
type PDFCPUSplitter struct {
	conf *model.Configuration
}

func NewPDFCPUSplitter() *PDFCPUSplitter {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCPUSplitter{conf: conf}
}

func (s *PDFCPUSplitter) PageCount(pdf []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(pdf), s.conf)
	if err != nil {
		return 0, fmt.Errorf("count pdf pages: %w", err)
	}
	return n, nil
}

func (s *PDFCPUSplitter) ExtractPages(pdf []byte, firstPage, lastPage int) ([]byte, error) {
	if firstPage < 1 || lastPage < firstPage {
		return nil, fmt.Errorf("extract pages: invalid range %d-%d", firstPage, lastPage)
	}
	selection := fmt.Sprintf("%d-%d", firstPage, lastPage)
	if firstPage == lastPage {
		selection = fmt.Sprintf("%d", firstPage)
	}

	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(pdf), &out, []string{selection}, s.conf); err != nil {
		return nil, fmt.Errorf("extract pages %s: %w", selection, err)
	}
	return out.Bytes(), nil
}

// PageCounter reports how many pages a PDF has.
type PageCounter interface {
	PageCount(pdf []byte) (int, error)
}

type fallbackCounter struct {
	ports.PageSplitter
	fallback PageCounter
}

// WithPageCountFallback asks fallback for the page count when splitter cannot
// produce one. Page extraction still goes through splitter.
func WithPageCountFallback(splitter ports.PageSplitter, fallback PageCounter) ports.PageSplitter {
	if fallback == nil {
		return splitter
	}
	return fallbackCounter{PageSplitter: splitter, fallback: fallback}
}

func (f fallbackCounter) PageCount(pdf []byte) (int, error) {
	n, err := f.PageSplitter.PageCount(pdf)
	if err == nil && n > 0 {
		return n, nil
	}
	alt, altErr := f.fallback.PageCount(pdf)
	if altErr != nil {
		if err == nil {
			return n, altErr
		}
		return 0, errors.Join(err, altErr)
	}
	slog.Debug("pdf_page_count_fallback", "pages", alt)
	return alt, nil
}
