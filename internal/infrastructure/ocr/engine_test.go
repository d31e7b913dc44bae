package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

type fakeSplitter struct {
	pages int
	err   error
}

func (f fakeSplitter) PageCount([]byte) (int, error) {
	return f.pages, f.err
}

func (f fakeSplitter) ExtractPages(_ []byte, first, last int) ([]byte, error) {
	return []byte(fmt.Sprintf("pages:%d-%d", first, last)), nil
}

// fakeVision transcribes "pages:A-B" payloads into delimited page text.
type fakeVision struct {
	mu        sync.Mutex
	calls     []string
	failing   map[string]error
	wholeText string
	wholeErr  error
	block     bool
}

func (f *fakeVision) TranscribePDF(ctx context.Context, _ string, pdf []byte, _ string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, string(pdf))
	f.mu.Unlock()

	if !bytes.HasPrefix(pdf, []byte("pages:")) {
		if f.block {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return f.wholeText, f.wholeErr
	}
	key := strings.TrimPrefix(string(pdf), "pages:")
	if err, ok := f.failing[key]; ok {
		return "", err
	}
	var first, last int
	if _, err := fmt.Sscanf(key, "%d-%d", &first, &last); err != nil {
		return "", err
	}
	var b strings.Builder
	for p := first; p <= last; p++ {
		fmt.Fprintf(&b, "--- Page %d ---\nTranscribed body of page %d with enough words.\n", p, p)
	}
	return b.String(), nil
}

type countingObserver struct {
	outcomes map[string]int
}

func (c *countingObserver) ObserveOCRBatch(outcome string) {
	if c.outcomes == nil {
		c.outcomes = map[string]int{}
	}
	c.outcomes[outcome]++
}

func largePDF() []byte {
	return bytes.Repeat([]byte("x"), 64)
}

func TestRecoverBatchesKeepPartialSuccess(t *testing.T) {
	vision := &fakeVision{failing: map[string]error{"4-6": errors.New("vision status: 504 Gateway Timeout")}}
	observer := &countingObserver{}
	engine := NewEngine(vision, fakeSplitter{pages: 10}, Options{WholeDocMaxBytes: 16}, observer)

	res := engine.Recover(context.Background(), largePDF(), "rfe.pdf")
	if !res.Success {
		t.Fatalf("expected partial success, got error %q", res.Error)
	}
	if res.Method != domain.MethodOCRBatch {
		t.Fatalf("expected batch method, got %s", res.Method)
	}
	if res.PagesProcessed != 7 || res.TotalPages != 10 {
		t.Fatalf("expected 7/10 pages processed, got %d/%d", res.PagesProcessed, res.TotalPages)
	}
	for _, page := range []int{1, 2, 3, 7, 8, 9, 10} {
		if !strings.Contains(res.Text, fmt.Sprintf("--- Page %d ---\nTranscribed body of page %d", page, page)) {
			t.Fatalf("expected page %d in text", page)
		}
	}
	for _, page := range []int{4, 5, 6} {
		if strings.Contains(res.Text, fmt.Sprintf("page %d ", page)) || res.PageTexts[page-1] != "" {
			t.Fatalf("expected page %d to be missing", page)
		}
	}
	if strings.Index(res.Text, "--- Page 3 ---") > strings.Index(res.Text, "--- Page 7 ---") {
		t.Fatalf("expected pages in order")
	}
	if len(vision.calls) != 4 {
		t.Fatalf("expected 4 batch calls, got %d", len(vision.calls))
	}
	if observer.outcomes[OutcomeSuccess] != 3 || observer.outcomes[OutcomeFailed] != 1 {
		t.Fatalf("unexpected outcomes: %v", observer.outcomes)
	}
}

func TestRecoverUsesWholeDocumentForSmallFiles(t *testing.T) {
	vision := &fakeVision{wholeText: "--- Page 1 ---\n" + strings.Repeat("Deponent states facts. ", 5) +
		"\n--- Page 2 ---\n" + strings.Repeat("Signed before notary. ", 5)}
	engine := NewEngine(vision, fakeSplitter{pages: 2}, Options{}, nil)

	res := engine.Recover(context.Background(), []byte("%PDF small"), "affidavit.pdf")
	if !res.Success || res.Method != domain.MethodOCRFull {
		t.Fatalf("expected whole-document success, got %+v", res)
	}
	if len(vision.calls) != 1 {
		t.Fatalf("expected a single vision call, got %d", len(vision.calls))
	}
	if len(res.PageTexts) != 2 || !strings.HasPrefix(res.PageTexts[1], "Signed before notary.") {
		t.Fatalf("unexpected page texts: %q", res.PageTexts)
	}
}

func TestRecoverDegradesToBatchesOnWholeDocumentTimeout(t *testing.T) {
	vision := &fakeVision{block: true}
	engine := NewEngine(vision, fakeSplitter{pages: 4}, Options{WholeDocTimeout: 10 * time.Millisecond}, nil)

	res := engine.Recover(context.Background(), []byte("%PDF small"), "scan.pdf")
	if !res.Success || res.Method != domain.MethodOCRBatch {
		t.Fatalf("expected batch fallback, got %+v", res)
	}
	if res.PagesProcessed != 4 {
		t.Fatalf("expected 4 pages processed, got %d", res.PagesProcessed)
	}
	if len(vision.calls) != 3 {
		t.Fatalf("expected 1 whole + 2 batch calls, got %d", len(vision.calls))
	}
}

func TestRecoverFailsWhenTooLittleText(t *testing.T) {
	failing := map[string]error{"1-3": errors.New("boom"), "4-5": errors.New("boom")}
	engine := NewEngine(&fakeVision{failing: failing}, fakeSplitter{pages: 5}, Options{WholeDocMaxBytes: 1}, nil)

	res := engine.Recover(context.Background(), largePDF(), "blank.pdf")
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.PagesProcessed != 0 || res.TotalPages != 5 || res.Error == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRecoverWithoutPageCount(t *testing.T) {
	engine := NewEngine(&fakeVision{wholeErr: errors.New("down")}, fakeSplitter{err: errors.New("bad xref")}, Options{}, nil)
	res := engine.Recover(context.Background(), []byte("%PDF"), "x.pdf")
	if res.Success || !strings.Contains(res.Error, "page count") {
		t.Fatalf("expected page count failure, got %+v", res)
	}
}

func TestPageRanges(t *testing.T) {
	got := pageRanges(10, 3)
	want := []pageRange{{1, 3}, {4, 6}, {7, 9}, {10, 10}}
	if len(got) != len(want) {
		t.Fatalf("expected %d ranges, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("range %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestSplitPageMarkersFallsBackToFirstPage(t *testing.T) {
	pages := splitPageMarkers("text without any delimiter", pageRange{first: 7, last: 9})
	if len(pages) != 1 || pages[7] != "text without any delimiter" {
		t.Fatalf("unexpected pages: %v", pages)
	}

	pages = splitPageMarkers("--- Page 8 ---\neight\n--- Page 42 ---\nstray", pageRange{first: 7, last: 9})
	if pages[8] != "eight\nstray" {
		t.Fatalf("expected stray text to stay on page 8, got %v", pages)
	}
	if _, ok := pages[42]; ok {
		t.Fatalf("expected no entry for out of range page")
	}
}

func TestSplitPageMarkersKeepsPreamble(t *testing.T) {
	text := "Here is the transcription:\n--- Page 4 ---\nfour\n--- Page 5 ---\nfive"
	pages := splitPageMarkers(text, pageRange{first: 4, last: 6})
	if pages[4] != "Here is the transcription:\nfour" {
		t.Fatalf("expected preamble on first page, got %q", pages[4])
	}
	if pages[5] != "five" {
		t.Fatalf("expected page 5 body, got %q", pages[5])
	}
	if _, ok := pages[6]; ok {
		t.Fatalf("expected no entry for empty page 6")
	}
}

// delimiterVision answers every call with page delimiters over two-letter bodies.
type delimiterVision struct{}

func (delimiterVision) TranscribePDF(_ context.Context, _ string, pdf []byte, _ string) (string, error) {
	var first, last int
	if _, err := fmt.Sscanf(strings.TrimPrefix(string(pdf), "pages:"), "%d-%d", &first, &last); err != nil {
		first, last = 1, 10
	}
	var b strings.Builder
	for p := first; p <= last; p++ {
		fmt.Fprintf(&b, "--- Page %d ---\nab\n", p)
	}
	return b.String(), nil
}

func TestRecoverIgnoresDelimitersWhenMeasuringText(t *testing.T) {
	observer := &countingObserver{}
	engine := NewEngine(delimiterVision{}, fakeSplitter{pages: 10}, Options{}, observer)

	res := engine.Recover(context.Background(), []byte("%PDF small"), "blank-scan.pdf")
	if res.Success {
		t.Fatalf("expected failure for 20 characters of body text, got %+v", res)
	}
	if !strings.Contains(res.Error, "recovered 0 characters") {
		t.Fatalf("expected every batch to be too short, got %q", res.Error)
	}
	if res.PagesProcessed != 0 {
		t.Fatalf("expected no processed pages, got %d", res.PagesProcessed)
	}
	if observer.outcomes[OutcomeTooShort] != 5 {
		t.Fatalf("expected whole document plus 4 batches too short, got %v", observer.outcomes)
	}
}

func TestRecoverCountsOnlyPagesWithBody(t *testing.T) {
	body := strings.Repeat("Petitioner employment history. ", 5)
	vision := &fakeVision{wholeText: "--- Page 1 ---\n" + body + "\n--- Page 2 ---\n\n--- Page 3 ---\n" + body}
	engine := NewEngine(vision, fakeSplitter{pages: 3}, Options{}, nil)

	res := engine.Recover(context.Background(), []byte("%PDF small"), "letter.pdf")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.PagesProcessed != 2 || res.TotalPages != 3 {
		t.Fatalf("expected 2/3 pages processed, got %d/%d", res.PagesProcessed, res.TotalPages)
	}
	if strings.Contains(res.Text, "--- Page 2 ---") {
		t.Fatalf("expected empty page to be left out of text")
	}
}

type countOnlyReader struct {
	pages int
}

func (c countOnlyReader) PageCount([]byte) (int, error) {
	return c.pages, nil
}

func TestRecoverFallsBackToSecondPageCounter(t *testing.T) {
	vision := &fakeVision{wholeErr: errors.New("vision down")}
	splitter := WithPageCountFallback(fakeSplitter{err: errors.New("pdfcpu: corrupt xref")}, countOnlyReader{pages: 4})
	engine := NewEngine(vision, splitter, Options{}, nil)

	res := engine.Recover(context.Background(), []byte("%PDF small"), "scan.pdf")
	if !res.Success || res.Method != domain.MethodOCRBatch {
		t.Fatalf("expected batch recovery with fallback page count, got %+v", res)
	}
	if res.TotalPages != 4 || res.PagesProcessed != 4 {
		t.Fatalf("expected 4/4 pages, got %d/%d", res.PagesProcessed, res.TotalPages)
	}
}

func TestPageCountFallbackReportsBothErrors(t *testing.T) {
	splitter := WithPageCountFallback(fakeSplitter{err: errors.New("primary")}, fakeSplitter{err: errors.New("secondary")})
	_, err := splitter.PageCount([]byte("x"))
	if err == nil || !strings.Contains(err.Error(), "primary") || !strings.Contains(err.Error(), "secondary") {
		t.Fatalf("expected joined errors, got %v", err)
	}
}
