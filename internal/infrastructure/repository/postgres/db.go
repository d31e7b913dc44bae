package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates both document tables and the embeddings table. A
// dimensions value above zero fixes the vector size and adds an HNSW index;
// zero keeps the column untyped so the embedding model can change.
func EnsureSchema(ctx context.Context, db *sql.DB, dimensions int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	vectorType := "vector"
	index := ""
	if dimensions > 0 {
		vectorType = fmt.Sprintf("vector(%d)", dimensions)
		index = `CREATE INDEX IF NOT EXISTS idx_document_embeddings_hnsw ON document_embeddings USING hnsw (embedding vector_cosine_ops);`
	}

	query := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL DEFAULT '',
` + documentColumnsDDL + `
);

CREATE TABLE IF NOT EXISTS case_documents (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL,
	owner_id TEXT NOT NULL DEFAULT '',
` + documentColumnsDDL + `
);

CREATE INDEX IF NOT EXISTS idx_documents_owner_hash ON documents(owner_id, content_hash);
CREATE INDEX IF NOT EXISTS idx_case_documents_case_hash ON case_documents(case_id, content_hash);

CREATE TABLE IF NOT EXISTS document_embeddings (
	id TEXT PRIMARY KEY,
	document_id TEXT REFERENCES documents(id) ON DELETE CASCADE,
	case_document_id TEXT REFERENCES case_documents(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	content_chunk TEXT NOT NULL,
	embedding ` + vectorType + ` NOT NULL,
	embedding_model TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK ((document_id IS NULL) <> (case_document_id IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_document_embeddings_document ON document_embeddings(document_id);
CREATE INDEX IF NOT EXISTS idx_document_embeddings_case_document ON document_embeddings(case_document_id);
CREATE INDEX IF NOT EXISTS idx_document_embeddings_model ON document_embeddings(embedding_model);
` + index

	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const documentColumnsDDL = `	filename TEXT NOT NULL,
	document_type TEXT NOT NULL DEFAULT '',
	mime_type TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL DEFAULT 0,
	storage_path TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	text_content TEXT NOT NULL DEFAULT '',
	text_ok BOOLEAN NOT NULL DEFAULT false,
	extraction_method TEXT NOT NULL DEFAULT '',
	page_count INTEGER NOT NULL DEFAULT 0,
	char_count INTEGER NOT NULL DEFAULT 0,
	word_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL`
