package ports

import (
	"context"
	"io"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
)

// UploadedFile is one file in a submission batch.
type UploadedFile struct {
	Filename string
	MimeType string
	Body     io.Reader
}

// SubmissionIngestor is the inbound contract for accepting an upload batch.
type SubmissionIngestor interface {
	Submit(ctx context.Context, files []UploadedFile) (*domain.Submission, error)
}

// SubmissionReviewer runs the full compliance analysis for a submission.
type SubmissionReviewer interface {
	ReviewByID(ctx context.Context, submissionID string) error
}

// ReportReader is the inbound read model for submissions and reports.
type ReportReader interface {
	GetSubmission(ctx context.Context, id string) (*domain.Submission, error)
	GetReport(ctx context.Context, submissionID string) (*domain.AnalysisReport, error)
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
}
