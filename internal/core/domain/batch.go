package domain

// IngestScope names who owns the files of one upload batch.
type IngestScope struct {
	Kind    DocumentKind
	CaseID  string
	OwnerID string
}

type UploadFile struct {
	Filename string
	MimeType string
	Data     []byte
}

type BatchRequest struct {
	Scope              IngestScope
	DocumentType       string
	Files              []UploadFile
	GenerateEmbeddings bool
}

type IngestStage string

const (
	StageRead      IngestStage = "read"
	StageDuplicate IngestStage = "duplicate"
	StageExtract   IngestStage = "extract"
	StageStorage   IngestStage = "storage"
	StageRecord    IngestStage = "record"
	StageEmbedding IngestStage = "embedding"
	StageQueue     IngestStage = "queue"
)

type FileResult struct {
	File           string           `json:"file"`
	Success        bool             `json:"success"`
	DocumentID     string           `json:"document_id,omitempty"`
	Kind           DocumentKind     `json:"kind,omitempty"`
	Method         ExtractionMethod `json:"method,omitempty"`
	Pages          int              `json:"pages,omitempty"`
	ChunksEmbedded int              `json:"chunks_embedded,omitempty"`
	TotalChunks    int              `json:"total_chunks,omitempty"`
	Queued         bool             `json:"queued,omitempty"`
}

type FileError struct {
	File       string      `json:"file"`
	Stage      IngestStage `json:"stage"`
	Error      string      `json:"error"`
	Suggestion string      `json:"suggestion,omitempty"`
}

type BatchResult struct {
	Processed int          `json:"processed"`
	Failed    int          `json:"failed"`
	Results   []FileResult `json:"results"`
	Errors    []FileError  `json:"errors"`
}
