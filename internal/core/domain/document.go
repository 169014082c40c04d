package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded  DocumentStatus = "uploaded"
	StatusReviewing DocumentStatus = "reviewing"
	StatusReviewed  DocumentStatus = "reviewed"
	StatusFailed    DocumentStatus = "failed"
)

type SubmissionStatus string

const (
	SubmissionReceived  SubmissionStatus = "received"
	SubmissionAnalyzing SubmissionStatus = "analyzing"
	SubmissionCompleted SubmissionStatus = "completed"
	SubmissionFailed    SubmissionStatus = "failed"
)

// Submission is one upload batch reviewed as a whole.
type Submission struct {
	ID        string           `json:"id"`
	Status    SubmissionStatus `json:"status"`
	Process   Process          `json:"process,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type Document struct {
	ID            string         `json:"id"`
	SubmissionID  string         `json:"submission_id"`
	Filename      string         `json:"filename"`
	MimeType      string         `json:"mime_type"`
	StoragePath   string         `json:"storage_path"`
	AnnotatedPath string         `json:"annotated_path,omitempty"`
	DetectedTypes []DocumentType `json:"detected_types,omitempty"`
	Status        DocumentStatus `json:"status"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// DocumentUnit is one reviewable clause or paragraph. Immutable once extracted.
type DocumentUnit struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Position   int    `json:"position"`
	Text       string `json:"text"`
}

// DocumentType is a checklist-level document kind, e.g. "Articles of Association".
type DocumentType string
