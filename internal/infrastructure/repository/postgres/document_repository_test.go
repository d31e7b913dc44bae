package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewDocumentRepository(db, 10), mock, func() { _ = db.Close() }
}

var documentRowColumns = []string{
	"id", "owner_id", "filename", "document_type", "mime_type", "size_bytes", "storage_path", "content_hash",
	"text_content", "text_ok", "extraction_method", "page_count", "char_count", "word_count", "status", "error_message",
	"created_at", "updated_at", "case_id",
}

func TestGetByRefReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, owner_id, filename .* FROM case_documents WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByRef(context.Background(), domain.CaseScopedRef("missing"))
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByRefScansCaseDocument(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectQuery("FROM case_documents WHERE id").
		WithArgs("cd-1").
		WillReturnRows(sqlmock.NewRows(documentRowColumns).AddRow(
			"cd-1", "u-1", "rfe.pdf", "rfe", "application/pdf", int64(2048), "case/c-9/cd-1.pdf", "abc",
			"text", true, "ocr_batch", 10, 4, 1, "ready", "", now, now, "c-9",
		))

	doc, err := repo.GetByRef(context.Background(), domain.CaseScopedRef("cd-1"))
	if err != nil {
		t.Fatalf("GetByRef() error = %v", err)
	}
	if doc.Kind != domain.KindCaseScoped || doc.CaseID != "c-9" || doc.Status != domain.StatusReady {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.Ref() != domain.CaseScopedRef("cd-1") {
		t.Fatalf("unexpected ref %v", doc.Ref())
	}
}

func TestCreateRoutesByKind(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO documents \\(id, owner_id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO case_documents \\(id, owner_id.*case_id\\)").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	if err := repo.Create(ctx, &domain.Document{ID: "d-1", Kind: domain.KindStandalone, Status: domain.StatusUploaded}); err != nil {
		t.Fatalf("Create(standalone) error = %v", err)
	}
	if err := repo.Create(ctx, &domain.Document{ID: "d-2", Kind: domain.KindCaseScoped, CaseID: "c-1", Status: domain.StatusUploaded}); err != nil {
		t.Fatalf("Create(case) error = %v", err)
	}
	if err := repo.Create(ctx, &domain.Document{ID: "d-3", Kind: domain.KindCaseScoped}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input without case id, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateTruncatesStoredText(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("d-1", "", "", "", "", int64(0), "", "", "0123456789", false, "", 0, 0, 0, "uploaded", "",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &domain.Document{
		ID: "d-1", Kind: domain.KindStandalone, Status: domain.StatusUploaded, Text: "0123456789abcdef",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindByHashUsesCaseScope(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM case_documents WHERE case_id = \\$1 AND content_hash = \\$2").
		WithArgs("c-1", "hash").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByHash(context.Background(), domain.IngestScope{Kind: domain.KindCaseScoped, CaseID: "c-1", OwnerID: "u-1"}, "hash")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents SET status").
		WithArgs("missing", string(domain.StatusProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), domain.StandaloneRef("missing"), domain.StatusProcessing, "")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveExtractionStoresCounts(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE case_documents\\s+SET text_content").
		WithArgs("cd-1", "two words", true, "direct", 2, 9, 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveExtraction(context.Background(), domain.CaseScopedRef("cd-1"),
		domain.ExtractionResult{Success: true, Method: domain.MethodDirect, NumPages: 2}, "two words")
	if err != nil {
		t.Fatalf("SaveExtraction() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteRejectsUnknownKind(t *testing.T) {
	repo, _, done := newRepoWithMock(t)
	defer done()

	if err := repo.Delete(context.Background(), domain.DocumentRef{Kind: "issue", ID: "x"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
