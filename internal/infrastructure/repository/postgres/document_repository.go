package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/normalize"
)

// DefaultMaxStoredTextChars bounds text_content so one huge upload cannot bloat a row.
const DefaultMaxStoredTextChars = 500000

type DocumentRepository struct {
	db           *sql.DB
	maxTextChars int
}

func NewDocumentRepository(db *sql.DB, maxTextChars int) *DocumentRepository {
	if maxTextChars <= 0 {
		maxTextChars = DefaultMaxStoredTextChars
	}
	return &DocumentRepository{db: db, maxTextChars: maxTextChars}
}

type table struct {
	name string
	// caseColumn selects case_id, or an empty literal for standalone documents.
	caseColumn string
}

func tableFor(kind domain.DocumentKind) (table, error) {
	switch kind {
	case domain.KindStandalone:
		return table{name: "documents", caseColumn: "''"}, nil
	case domain.KindCaseScoped:
		return table{name: "case_documents", caseColumn: "case_id"}, nil
	default:
		return table{}, domain.WrapError(domain.ErrInvalidInput, "resolve document table", fmt.Errorf("unknown kind %q", kind))
	}
}

const selectDocumentColumns = `id, owner_id, filename, document_type, mime_type, size_bytes, storage_path, content_hash,
	text_content, text_ok, extraction_method, page_count, char_count, word_count, status, error_message, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	t, err := tableFor(doc.Kind)
	if err != nil {
		return err
	}
	text := truncateRunes(doc.Text, r.maxTextChars)
	args := []any{
		doc.ID, doc.OwnerID, doc.Filename, doc.DocumentType, doc.MimeType, doc.SizeBytes, doc.StoragePath, doc.ContentHash,
		text, doc.TextOK, doc.Method, doc.PageCount, doc.CharCount, doc.WordCount, string(doc.Status), doc.Error,
		doc.CreatedAt, doc.UpdatedAt,
	}

	columns := selectDocumentColumns
	placeholders := "$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18"
	if doc.Kind == domain.KindCaseScoped {
		if strings.TrimSpace(doc.CaseID) == "" {
			return domain.WrapError(domain.ErrInvalidInput, "insert case document", fmt.Errorf("case id is required"))
		}
		columns += ", case_id"
		placeholders += ",$19"
		args = append(args, doc.CaseID)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, t.name, columns, placeholders)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByRef(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error) {
	t, err := tableFor(ref.Kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE id = $1`, selectDocumentColumns, t.caseColumn, t.name)
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, ref.ID), ref.Kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("%s", ref))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

// FindByHash looks for an earlier upload with the same bytes by the same owner
// (standalone) or within the same case (case-scoped).
func (r *DocumentRepository) FindByHash(ctx context.Context, scope domain.IngestScope, contentHash string) (*domain.Document, error) {
	t, err := tableFor(scope.Kind)
	if err != nil {
		return nil, err
	}
	ownerColumn, owner := "owner_id", scope.OwnerID
	if scope.Kind == domain.KindCaseScoped {
		ownerColumn, owner = "case_id", scope.CaseID
	}

	query := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s = $1 AND content_hash = $2 ORDER BY created_at ASC LIMIT 1`,
		selectDocumentColumns, t.caseColumn, t.name, ownerColumn)
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, owner, contentHash), scope.Kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "find document by hash", err)
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, ref domain.DocumentRef, status domain.DocumentStatus, errMessage string) error {
	t, err := tableFor(ref.Kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET status = $2, error_message = $3, updated_at = $4 WHERE id = $1`, t.name)
	res, err := r.db.ExecContext(ctx, query, ref.ID, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireAffected(res, "update document status", ref)
}

func (r *DocumentRepository) SaveExtraction(ctx context.Context, ref domain.DocumentRef, result domain.ExtractionResult, text string) error {
	t, err := tableFor(ref.Kind)
	if err != nil {
		return err
	}
	text = truncateRunes(text, r.maxTextChars)
	query := fmt.Sprintf(`UPDATE %s
SET text_content = $2, text_ok = $3, extraction_method = $4, page_count = $5, char_count = $6, word_count = $7, updated_at = $8
WHERE id = $1`, t.name)
	res, err := r.db.ExecContext(ctx, query,
		ref.ID, text, result.Success, string(result.Method), result.NumPages,
		utf8.RuneCountInString(text), normalize.WordCount(text), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save extraction: %w", err)
	}
	return requireAffected(res, "save extraction", ref)
}

// Delete removes the row; its document_embeddings rows go with it through ON DELETE CASCADE.
func (r *DocumentRepository) Delete(ctx context.Context, ref domain.DocumentRef) error {
	t, err := tableFor(ref.Kind)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t.name), ref.ID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireAffected(res, "delete document", ref)
}

func scanDocument(row *sql.Row, kind domain.DocumentKind) (*domain.Document, error) {
	var doc domain.Document
	var status, method string
	err := row.Scan(
		&doc.ID, &doc.OwnerID, &doc.Filename, &doc.DocumentType, &doc.MimeType, &doc.SizeBytes, &doc.StoragePath, &doc.ContentHash,
		&doc.Text, &doc.TextOK, &method, &doc.PageCount, &doc.CharCount, &doc.WordCount, &status, &doc.Error,
		&doc.CreatedAt, &doc.UpdatedAt, &doc.CaseID,
	)
	if err != nil {
		return nil, err
	}
	doc.Kind = kind
	doc.Status = domain.DocumentStatus(status)
	doc.Method = method
	return &doc, nil
}

func requireAffected(res sql.Result, operation string, ref domain.DocumentRef) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("%s", ref))
	}
	return nil
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
