package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

// extractXLSX renders every sheet as one page of tab-separated rows.
func extractXLSX(data []byte) domain.ExtractionResult {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return domain.FailedExtraction(domain.MethodXLSX, fmt.Sprintf("open workbook: %v", err), suggestionCorrupt)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	pages := make([]string, 0, len(sheets))
	for _, sheet := range sheets {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return domain.FailedExtraction(domain.MethodXLSX, fmt.Sprintf("read sheet %q: %v", sheet, err), suggestionCorrupt)
		}

		var b strings.Builder
		b.WriteString("Sheet: ")
		b.WriteString(sheet)
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			b.WriteByte('\n')
			b.WriteString(line)
		}
		pages = append(pages, b.String())
	}

	text := strings.Join(pages, "\n\n")
	if countNonSpace(text) == 0 {
		return domain.FailedExtraction(domain.MethodXLSX, "no text extracted", suggestionEmpty)
	}
	return domain.ExtractionResult{
		Success:   true,
		Text:      text,
		Method:    domain.MethodXLSX,
		NumPages:  len(pages),
		PageTexts: pages,
	}
}
