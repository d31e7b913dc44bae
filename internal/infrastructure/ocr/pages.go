package ocr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var pageMarker = regexp.MustCompile(`(?m)^[ \t]*---[ \t]*Page[ \t]+(\d+)[ \t]*---[ \t]*$`)

type pageRange struct {
	first int
	last  int
}

func (r pageRange) String() string {
	return fmt.Sprintf("%d-%d", r.first, r.last)
}

func (r pageRange) size() int {
	return r.last - r.first + 1
}

func pageRanges(total, size int) []pageRange {
	if total <= 0 {
		return nil
	}
	if size <= 0 {
		size = 1
	}
	out := make([]pageRange, 0, (total+size-1)/size)
	for first := 1; first <= total; first += size {
		out = append(out, pageRange{first: first, last: min(first+size-1, total)})
	}
	return out
}

// splitPageMarkers maps "--- Page N ---" sections of a transcription to their
// absolute page numbers within r. Text ahead of the first marker, and text under
// a marker outside r, stays with the page in effect (r.first to begin with).
func splitPageMarkers(text string, r pageRange) map[int]string {
	out := make(map[int]string, r.size())
	add := func(page int, body string) {
		if body = strings.TrimSpace(body); body == "" {
			return
		}
		if prev, ok := out[page]; ok {
			body = prev + "\n" + body
		}
		out[page] = body
	}

	current, start := r.first, 0
	for _, loc := range pageMarker.FindAllStringSubmatchIndex(text, -1) {
		add(current, text[start:loc[0]])
		if page, err := strconv.Atoi(text[loc[2]:loc[3]]); err == nil && page >= r.first && page <= r.last {
			current = page
		}
		start = loc[1]
	}
	add(current, text[start:])
	return out
}

// bodyChars counts non-space characters across page bodies, delimiters excluded.
func bodyChars(pages map[int]string) int {
	n := 0
	for _, body := range pages {
		n += countNonSpace(body)
	}
	return n
}

// assemble renders page texts in page order with their delimiters.
func assemble(pageTexts []string) string {
	var b strings.Builder
	for i, text := range pageTexts {
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", i+1, text)
	}
	return b.String()
}

func wholeDocumentInstructions(totalPages int) string {
	pages := "every page"
	if totalPages > 0 {
		pages = fmt.Sprintf("all %d pages", totalPages)
	}
	return "Transcribe " + pages + " of this PDF verbatim. Keep the original language, numbers and line breaks. " +
		"Start each page with a line \"--- Page N ---\" where N is the page number. " +
		"Do not summarize, translate or add commentary."
}

func batchInstructions(r pageRange) string {
	return fmt.Sprintf("This PDF holds pages %d to %d of a longer document. Transcribe every page verbatim. "+
		"Keep the original language, numbers and line breaks. "+
		"Start each page with a line \"--- Page N ---\" using the original page numbers %d to %d. "+
		"Do not summarize, translate or add commentary.", r.first, r.last, r.first, r.last)
}
