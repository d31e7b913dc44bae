package domain

import (
	"fmt"
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// DocumentKind tells which table a document row lives in.
type DocumentKind string

const (
	KindStandalone DocumentKind = "standalone"
	KindCaseScoped DocumentKind = "case_scoped"
)

// DocumentRef identifies a document together with the table that owns it.
type DocumentRef struct {
	Kind DocumentKind `json:"kind"`
	ID   string       `json:"id"`
}

func StandaloneRef(id string) DocumentRef {
	return DocumentRef{Kind: KindStandalone, ID: id}
}

func CaseScopedRef(id string) DocumentRef {
	return DocumentRef{Kind: KindCaseScoped, ID: id}
}

// ParseDocumentKind accepts the wire spellings used by the HTTP and queue boundaries.
func ParseDocumentKind(raw string) (DocumentKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "standalone", "document", "documents", "":
		return KindStandalone, nil
	case "case_scoped", "case", "case_documents", "case-document":
		return KindCaseScoped, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse document kind", fmt.Errorf("unknown kind %q", raw))
	}
}

func (r DocumentRef) Validate() error {
	if r.Kind != KindStandalone && r.Kind != KindCaseScoped {
		return WrapError(ErrInvalidInput, "validate document ref", fmt.Errorf("unknown kind %q", r.Kind))
	}
	if strings.TrimSpace(r.ID) == "" {
		return WrapError(ErrInvalidInput, "validate document ref", fmt.Errorf("empty id"))
	}
	return nil
}

func (r DocumentRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

type Document struct {
	ID           string         `json:"id"`
	Kind         DocumentKind   `json:"kind"`
	CaseID       string         `json:"case_id,omitempty"`
	OwnerID      string         `json:"owner_id,omitempty"`
	Filename     string         `json:"filename"`
	DocumentType string         `json:"document_type,omitempty"`
	MimeType     string         `json:"mime_type"`
	SizeBytes    int64          `json:"size_bytes"`
	StoragePath  string         `json:"storage_path"`
	ContentHash  string         `json:"content_hash"`
	Text         string         `json:"text,omitempty"`
	TextOK       bool           `json:"text_ok"`
	Method       string         `json:"extraction_method,omitempty"`
	PageCount    int            `json:"page_count"`
	CharCount    int            `json:"char_count"`
	WordCount    int            `json:"word_count"`
	Status       DocumentStatus `json:"status"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (d *Document) Ref() DocumentRef {
	return DocumentRef{Kind: d.Kind, ID: d.ID}
}

// ExtractionMethod names the path that produced a document's text.
type ExtractionMethod string

const (
	MethodDirect   ExtractionMethod = "direct"
	MethodDOCX     ExtractionMethod = "docx"
	MethodText     ExtractionMethod = "text"
	MethodXLSX     ExtractionMethod = "xlsx"
	MethodDocconv  ExtractionMethod = "docconv"
	MethodOCRFull  ExtractionMethod = "ocr_full"
	MethodOCRBatch ExtractionMethod = "ocr_batch"
	MethodNone     ExtractionMethod = "none"
)

type ExtractionResult struct {
	Success        bool             `json:"success"`
	Text           string           `json:"text"`
	Method         ExtractionMethod `json:"method"`
	NumPages       int              `json:"num_pages"`
	PageTexts      []string         `json:"page_texts,omitempty"`
	PagesProcessed int              `json:"pages_processed,omitempty"`
	TotalPages     int              `json:"total_pages,omitempty"`
	Error          string           `json:"error,omitempty"`
	Suggestion     string           `json:"suggestion,omitempty"`
}

// FailedExtraction builds a result that callers surface to a human without crashing.
func FailedExtraction(method ExtractionMethod, errMessage, suggestion string) ExtractionResult {
	return ExtractionResult{
		Success:    false,
		Method:     method,
		Error:      errMessage,
		Suggestion: suggestion,
	}
}
