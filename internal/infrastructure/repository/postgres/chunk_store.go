package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

// ChunkStore keeps chunk vectors in document_embeddings and searches them with
// pgvector's cosine distance operator.
type ChunkStore struct {
	db *sql.DB
}

func NewChunkStore(db *sql.DB) *ChunkStore {
	return &ChunkStore{db: db}
}

func ownerColumn(kind domain.DocumentKind) (string, error) {
	switch kind {
	case domain.KindStandalone:
		return "document_id", nil
	case domain.KindCaseScoped:
		return "case_document_id", nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve embedding owner", fmt.Errorf("unknown kind %q", kind))
	}
}

// DeleteByDocument holds a transaction-scoped advisory lock keyed by the
// document so two regenerations never delete concurrently.
func (s *ChunkStore) DeleteByDocument(ctx context.Context, ref domain.DocumentRef) error {
	column, err := ownerColumn(ref.Kind)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete embeddings tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ref.String()); err != nil {
		return fmt.Errorf("acquire document lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM document_embeddings WHERE %s = $1`, column), ref.ID); err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete embeddings: %w", err)
	}
	return nil
}

func (s *ChunkStore) Insert(ctx context.Context, record domain.ChunkRecord) error {
	column, err := ownerColumn(record.Document.Kind)
	if err != nil {
		return err
	}
	if len(record.Embedding) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "insert embedding", fmt.Errorf("empty vector"))
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("marshal chunk metadata: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO document_embeddings
	(id, %s, chunk_index, content_chunk, embedding, embedding_model, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, column)
	_, err = s.db.ExecContext(ctx, query,
		record.ID, record.Document.ID, record.ChunkIndex, record.Content,
		pgvector.NewVector(record.Embedding), record.EmbeddingModel, meta, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

func (s *ChunkStore) CountByDocument(ctx context.Context, ref domain.DocumentRef) (int, error) {
	column, err := ownerColumn(ref.Kind)
	if err != nil {
		return 0, err
	}
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM document_embeddings WHERE %s = $1`, column)
	if err := s.db.QueryRowContext(ctx, query, ref.ID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

const searchQuery = `
SELECT e.document_id, e.case_document_id, e.chunk_index, e.content_chunk, e.metadata,
	1 - (e.embedding <=> $1) AS similarity,
	COALESCE(d.filename, cd.filename, '') AS document_name,
	COALESCE(d.document_type, cd.document_type, '') AS document_type
FROM document_embeddings e
LEFT JOIN documents d ON d.id = e.document_id
LEFT JOIN case_documents cd ON cd.id = e.case_document_id
WHERE ($4::text = '' OR e.embedding_model = $4::text)
	AND 1 - (e.embedding <=> $1) >= $2
ORDER BY e.embedding <=> $1
LIMIT $3`

// Search ranks by cosine similarity (1 - cosine distance) and drops matches below the threshold.
func (s *ChunkStore) Search(ctx context.Context, query domain.SearchQuery) ([]domain.SearchMatch, error) {
	if len(query.Vector) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search embeddings", fmt.Errorf("empty query vector"))
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, searchQuery, pgvector.NewVector(query.Vector), query.Threshold, limit, query.Model)
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SearchMatch, 0, limit)
	for rows.Next() {
		var (
			documentID, caseDocumentID sql.NullString
			metaRaw                    []byte
			match                      domain.SearchMatch
		)
		if err := rows.Scan(&documentID, &caseDocumentID, &match.ChunkIndex, &match.Content, &metaRaw,
			&match.Similarity, &match.DocumentName, &match.DocumentType); err != nil {
			return nil, fmt.Errorf("scan search match: %w", err)
		}
		if caseDocumentID.Valid {
			match.Document = domain.CaseScopedRef(caseDocumentID.String)
		} else {
			match.Document = domain.StandaloneRef(documentID.String)
		}
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &match.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		out = append(out, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search matches: %w", err)
	}
	return out, nil
}
