package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/ports"
)

const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeTooShort = "too_short"
)

var errShortTranscription = errors.New("transcription too short")

type Options struct {
	WholeDocMaxBytes int
	WholeDocTimeout  time.Duration
	BatchPages       int
	BatchTimeout     time.Duration
	MinBatchChars    int
	MinTotalChars    int
}

func DefaultOptions() Options {
	return Options{
		WholeDocMaxBytes: 5 << 20,
		WholeDocTimeout:  180 * time.Second,
		BatchPages:       3,
		BatchTimeout:     60 * time.Second,
		MinBatchChars:    10,
		MinTotalChars:    100,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.WholeDocMaxBytes <= 0 {
		o.WholeDocMaxBytes = def.WholeDocMaxBytes
	}
	if o.WholeDocTimeout <= 0 {
		o.WholeDocTimeout = def.WholeDocTimeout
	}
	if o.BatchPages <= 0 {
		o.BatchPages = def.BatchPages
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = def.BatchTimeout
	}
	if o.MinBatchChars <= 0 {
		o.MinBatchChars = def.MinBatchChars
	}
	if o.MinTotalChars <= 0 {
		o.MinTotalChars = def.MinTotalChars
	}
	return o
}

// BatchObserver receives one outcome per vision call.
type BatchObserver interface {
	ObserveOCRBatch(outcome string)
}

type Engine struct {
	vision   ports.VisionTranscriber
	pages    ports.PageSplitter
	opts     Options
	observer BatchObserver
}

func NewEngine(vision ports.VisionTranscriber, pages ports.PageSplitter, opts Options, observer BatchObserver) *Engine {
	return &Engine{
		vision:   vision,
		pages:    pages,
		opts:     opts.withDefaults(),
		observer: observer,
	}
}

// Recover transcribes a PDF with the vision model. Small files go in one call;
// large files, and small files whose whole-document call fails, go in page batches.
func (e *Engine) Recover(ctx context.Context, pdf []byte, filename string) domain.ExtractionResult {
	total, err := e.pages.PageCount(pdf)
	if err != nil {
		slog.Warn("ocr_page_count_failed", "filename", filename, "error", err.Error())
		total = 0
	}

	if len(pdf) < e.opts.WholeDocMaxBytes {
		if res, ok := e.wholeDocument(ctx, pdf, filename, total); ok {
			return res
		}
	}
	if total == 0 {
		return domain.FailedExtraction(domain.MethodOCRBatch, "ocr: page count unavailable, cannot batch", "")
	}
	return e.batches(ctx, pdf, filename, total)
}

func (e *Engine) wholeDocument(ctx context.Context, pdf []byte, filename string, total int) (domain.ExtractionResult, bool) {
	callCtx, cancel := context.WithTimeout(ctx, e.opts.WholeDocTimeout)
	defer cancel()

	started := time.Now()
	text, err := e.vision.TranscribePDF(callCtx, filename, pdf, wholeDocumentInstructions(total))

	pageCount := total
	if pageCount == 0 {
		pageCount = maxMarkedPage(text)
	}
	pageCount = max(pageCount, 1)
	bodies := splitPageMarkers(text, pageRange{first: 1, last: pageCount})
	if err == nil && bodyChars(bodies) < e.opts.MinTotalChars {
		err = errShortTranscription
	}
	if err != nil {
		e.observe(outcomeOf(err))
		slog.Warn("ocr_whole_document_degraded",
			"filename", filename,
			"total_pages", total,
			"duration_ms", time.Since(started).Milliseconds(),
			"error", err.Error(),
		)
		return domain.ExtractionResult{}, false
	}
	e.observe(OutcomeSuccess)

	pageTexts := make([]string, pageCount)
	for page, body := range bodies {
		pageTexts[page-1] = body
	}
	return domain.ExtractionResult{
		Success:        true,
		Text:           assemble(pageTexts),
		Method:         domain.MethodOCRFull,
		NumPages:       pageCount,
		PageTexts:      pageTexts,
		PagesProcessed: len(bodies),
		TotalPages:     pageCount,
	}, true
}

func (e *Engine) batches(ctx context.Context, pdf []byte, filename string, total int) domain.ExtractionResult {
	ranges := pageRanges(total, e.opts.BatchPages)
	outcome := domain.ProcessAll(ctx, ranges, func(ctx context.Context, _ int, r pageRange) (map[int]string, error) {
		part, err := e.pages.ExtractPages(pdf, r.first, r.last)
		if err != nil {
			return nil, err
		}
		callCtx, cancel := context.WithTimeout(ctx, e.opts.BatchTimeout)
		defer cancel()

		text, err := e.vision.TranscribePDF(callCtx, fmt.Sprintf("%s (pages %s)", filename, r), part, batchInstructions(r))
		if err != nil {
			return nil, err
		}
		bodies := splitPageMarkers(text, r)
		if bodyChars(bodies) < e.opts.MinBatchChars {
			return nil, errShortTranscription
		}
		return bodies, nil
	})

	for _, failed := range outcome.Failed {
		e.observe(outcomeOf(failed.Err))
		slog.Warn("ocr_batch_failed",
			"filename", filename,
			"pages", failed.Item.String(),
			"error", failed.Err.Error(),
		)
	}

	pageTexts := make([]string, total)
	processed, chars := 0, 0
	for _, bodies := range outcome.Succeeded {
		e.observe(OutcomeSuccess)
		processed += len(bodies)
		chars += bodyChars(bodies)
		for page, body := range bodies {
			pageTexts[page-1] = body
		}
	}

	result := domain.ExtractionResult{
		Success:        chars >= e.opts.MinTotalChars,
		Text:           assemble(pageTexts),
		Method:         domain.MethodOCRBatch,
		NumPages:       total,
		PageTexts:      pageTexts,
		PagesProcessed: processed,
		TotalPages:     total,
	}
	slog.Info("ocr_batches_completed",
		"filename", filename,
		"batches", len(ranges),
		"failed_batches", len(outcome.Failed),
		"pages_processed", processed,
		"total_pages", total,
	)
	if !result.Success {
		result.Error = fmt.Sprintf("ocr recovered %d characters from %d of %d pages", chars, processed, total)
		if outcome.Cancelled {
			result.Error = "ocr cancelled: " + ctx.Err().Error()
		}
	}
	return result
}

func (e *Engine) observe(outcome string) {
	if e.observer != nil {
		e.observer.ObserveOCRBatch(outcome)
	}
}

func outcomeOf(err error) string {
	if errors.Is(err, errShortTranscription) {
		return OutcomeTooShort
	}
	return OutcomeFailed
}

func maxMarkedPage(text string) int {
	highest := 0
	for _, m := range pageMarker.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest
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
