package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*SubmissionRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &SubmissionRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetSubmissionReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, status, process, error_message").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetSubmission(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateSubmissionStatusNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE submissions").
		WithArgs("missing", string(domain.SubmissionCompleted), string(domain.ProcessIncorporation), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateSubmissionStatus(context.Background(), "missing", domain.SubmissionCompleted, domain.ProcessIncorporation, "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateDocumentNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE submission_documents").
		WithArgs("missing", "", []byte("[]"), string(domain.StatusReviewed), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateDocument(context.Background(), &domain.Document{ID: "missing", Status: domain.StatusReviewed})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListDocumentsScansDetectedTypes(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	columns := []string{
		"id", "submission_id", "filename", "mime_type", "storage_path", "annotated_path",
		"detected_types", "status", "error_message", "created_at", "updated_at",
	}
	rows := sqlmock.NewRows(columns).
		AddRow("doc-1", "sub-1", "articles.docx", "application/octet-stream", "sub-1/doc-1.docx", nil,
			[]byte(`["Articles of Association"]`), "reviewed", "", now, now)

	mock.ExpectQuery("SELECT id, submission_id, filename").
		WithArgs("sub-1").
		WillReturnRows(rows)

	docs, err := repo.ListDocuments(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if len(docs[0].DetectedTypes) != 1 || docs[0].DetectedTypes[0] != "Articles of Association" {
		t.Fatalf("detected types not scanned: %+v", docs[0].DetectedTypes)
	}
	if docs[0].AnnotatedPath != "" {
		t.Fatalf("NULL annotated_path must scan to empty string, got %q", docs[0].AnnotatedPath)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveAndGetReportRoundTrip(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	report := &domain.AnalysisReport{
		SubmissionID:      "sub-1",
		Process:           domain.ProcessIncorporation,
		DocumentsUploaded: 2,
		RequiredDocuments: 5,
		MissingDocuments:  []domain.DocumentType{"UBO Declaration Form"},
		GeneratedAt:       time.Now().UTC(),
	}
	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}

	mock.ExpectExec("INSERT INTO analysis_reports").
		WithArgs("sub-1", raw, report.GeneratedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT report FROM analysis_reports").
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"report"}).AddRow(raw))

	if err := repo.SaveReport(context.Background(), report); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	got, err := repo.GetReport(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if got.Process != report.Process || len(got.MissingDocuments) != 1 {
		t.Fatalf("report round trip mismatch: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetReportNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT report FROM analysis_reports").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetReport(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
