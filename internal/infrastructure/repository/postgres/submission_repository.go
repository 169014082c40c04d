package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
)

type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SubmissionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS submissions (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	process TEXT,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS submission_documents (
	id TEXT PRIMARY KEY,
	submission_id TEXT NOT NULL REFERENCES submissions(id),
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	annotated_path TEXT,
	detected_types JSONB NOT NULL DEFAULT '[]'::jsonb,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS analysis_reports (
	submission_id TEXT PRIMARY KEY REFERENCES submissions(id),
	report JSONB NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
CREATE INDEX IF NOT EXISTS idx_submission_documents_submission ON submission_documents(submission_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) CreateSubmission(ctx context.Context, sub *domain.Submission) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO submissions (id, status, process, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, sub.ID, string(sub.Status), string(sub.Process), sub.Error, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, status, process, error_message, created_at, updated_at
FROM submissions
WHERE id = $1
`, id)

	var sub domain.Submission
	var status, process string
	err := row.Scan(&sub.ID, &status, &process, &sub.Error, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSubmissionNotFound, "get submission", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	sub.Status = domain.SubmissionStatus(status)
	sub.Process = domain.Process(process)
	return &sub, nil
}

func (r *SubmissionRepository) UpdateSubmissionStatus(ctx context.Context, id string, status domain.SubmissionStatus, process domain.Process, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE submissions
SET status = $2,
    process = CASE WHEN $3 <> '' THEN $3 ELSE process END,
    error_message = $4,
    updated_at = $5
WHERE id = $1
`, id, string(status), string(process), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrSubmissionNotFound, "update submission status", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *SubmissionRepository) CreateDocument(ctx context.Context, doc *domain.Document) error {
	typesJSON, err := json.Marshal(doc.DetectedTypes)
	if err != nil {
		return fmt.Errorf("marshal detected types: %w", err)
	}
	if doc.DetectedTypes == nil {
		typesJSON = []byte("[]")
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO submission_documents (
	id, submission_id, filename, mime_type, storage_path, annotated_path, detected_types, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		doc.ID, doc.SubmissionID, doc.Filename, doc.MimeType, doc.StoragePath, doc.AnnotatedPath,
		typesJSON, string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, submission_id, filename, mime_type, storage_path, annotated_path, detected_types, status, error_message, created_at, updated_at
FROM submission_documents
WHERE id = $1
`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, err
	}
	return doc, nil
}

func (r *SubmissionRepository) ListDocuments(ctx context.Context, submissionID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, submission_id, filename, mime_type, storage_path, annotated_path, detected_types, status, error_message, created_at, updated_at
FROM submission_documents
WHERE submission_id = $1
ORDER BY filename, id
`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *SubmissionRepository) UpdateDocument(ctx context.Context, doc *domain.Document) error {
	typesJSON, err := json.Marshal(doc.DetectedTypes)
	if err != nil {
		return fmt.Errorf("marshal detected types: %w", err)
	}
	if doc.DetectedTypes == nil {
		typesJSON = []byte("[]")
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE submission_documents
SET annotated_path = $2, detected_types = $3, status = $4, error_message = $5, updated_at = $6
WHERE id = $1
`, doc.ID, doc.AnnotatedPath, typesJSON, string(doc.Status), doc.Error, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document", fmt.Errorf("id=%s", doc.ID))
	}
	return nil
}

func (r *SubmissionRepository) SaveReport(ctx context.Context, report *domain.AnalysisReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO analysis_reports (submission_id, report, generated_at)
VALUES ($1,$2,$3)
ON CONFLICT (submission_id) DO UPDATE SET report = EXCLUDED.report, generated_at = EXCLUDED.generated_at
`, report.SubmissionID, raw, report.GeneratedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) GetReport(ctx context.Context, submissionID string) (*domain.AnalysisReport, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT report FROM analysis_reports WHERE submission_id = $1
`, submissionID)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSubmissionNotFound, "get report", fmt.Errorf("submission=%s", submissionID))
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}

	var report domain.AnalysisReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var typesRaw []byte
	var status string
	var annotated sql.NullString

	err := row.Scan(
		&doc.ID, &doc.SubmissionID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &annotated,
		&typesRaw, &status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(typesRaw, &doc.DetectedTypes); err != nil {
		return nil, fmt.Errorf("unmarshal detected types: %w", err)
	}
	doc.AnnotatedPath = annotated.String
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}
