package ports

import (
	"context"
	"io"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
)

// SubmissionRepository persists submission, document and report state.
type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, sub *domain.Submission) error
	GetSubmission(ctx context.Context, id string) (*domain.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, id string, status domain.SubmissionStatus, process domain.Process, errMessage string) error
	CreateDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context, submissionID string) ([]domain.Document, error)
	UpdateDocument(ctx context.Context, doc *domain.Document) error
	SaveReport(ctx context.Context, report *domain.AnalysisReport) error
	GetReport(ctx context.Context, submissionID string) (*domain.AnalysisReport, error)
}

// ObjectStorage stores source documents and annotated copies.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes review jobs.
type MessageQueue interface {
	PublishSubmissionReceived(ctx context.Context, submissionID string) error
	SubscribeSubmissionReceived(ctx context.Context, handler func(context.Context, string) error) error
}

// UnitExtractor converts one stored document into ordered reviewable units.
type UnitExtractor interface {
	ExtractUnits(ctx context.Context, doc *domain.Document) ([]domain.DocumentUnit, error)
}

// ReferenceIndex is the read-only semantic index over authoritative texts.
// Built offline; shared across concurrent runs; never mutated by a run.
type ReferenceIndex interface {
	Query(ctx context.Context, text string, k int) ([]domain.ReferencePassage, error)
}

// ClauseJudge evaluates one unit against retrieved reference passages.
// strict requests a tighter output-format instruction for the retry pass.
type ClauseJudge interface {
	JudgeClause(ctx context.Context, unitText string, passages []domain.ReferencePassage, strict bool) (domain.ClauseJudgment, error)
}

// Annotator re-renders a document with inline comments at flagged units.
type Annotator interface {
	Annotate(ctx context.Context, original io.Reader, issues []domain.Issue) ([]byte, error)
}

// Embedder builds vectors for passages and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// PassageIndexer writes reference passages into the index. Used only by the
// offline build; live analysis holds no reference to it.
type PassageIndexer interface {
	IndexPassages(ctx context.Context, source string, chunks []string, vectors [][]float32) error
}
