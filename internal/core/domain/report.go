package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AnalysisReport is the single source of truth for one completed run.
type AnalysisReport struct {
	SubmissionID      string         `json:"submission_id"`
	Process           Process        `json:"process"`
	Confidence        float64        `json:"confidence"`
	DocumentsUploaded int            `json:"documents_uploaded"`
	RequiredDocuments int            `json:"required_documents"`
	UploadedTypes     []DocumentType `json:"uploaded_document_types"`
	MissingDocuments  []DocumentType `json:"missing_documents"`
	Issues            []Issue        `json:"issues_found"`
	ChecklistMessage  string         `json:"checklist_message,omitempty"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

// Validate enforces the report invariants before the report may leave the
// synthesizer: missing types are disjoint from uploaded types, every issue
// references a document from the run and passes its own validation.
func (r *AnalysisReport) Validate() error {
	uploaded := make(map[DocumentType]struct{}, len(r.UploadedTypes))
	for _, t := range r.UploadedTypes {
		uploaded[t] = struct{}{}
	}
	for _, missing := range r.MissingDocuments {
		if _, ok := uploaded[missing]; ok {
			return WrapError(ErrSchemaViolation, "validate report",
				fmt.Errorf("type %q is both uploaded and missing", missing))
		}
	}
	for _, issue := range r.Issues {
		if err := issue.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ReportSummary is the fixed external JSON schema. MissingDocuments marshals
// as a bare string when exactly one type is missing, as an array otherwise.
type ReportSummary struct {
	Process           Process        `json:"process"`
	DocumentsUploaded int            `json:"documents_uploaded"`
	RequiredDocuments int            `json:"required_documents"`
	MissingDocuments  []DocumentType `json:"-"`
	Issues            []SummaryIssue `json:"issues_found"`
}

type SummaryIssue struct {
	Document   string   `json:"document"`
	Section    string   `json:"section"`
	Issue      string   `json:"issue"`
	Severity   Severity `json:"severity"`
	Suggestion string   `json:"suggestion"`
}

func (s ReportSummary) MarshalJSON() ([]byte, error) {
	type alias ReportSummary

	var missing any
	switch len(s.MissingDocuments) {
	case 1:
		missing = s.MissingDocuments[0]
	default:
		missing = s.MissingDocuments
	}
	return json.Marshal(struct {
		alias
		MissingDocument any `json:"missing_document"`
	}{alias: alias(s), MissingDocument: missing})
}

// Summary projects the report onto the fixed external schema.
func (r *AnalysisReport) Summary() ReportSummary {
	issues := make([]SummaryIssue, 0, len(r.Issues))
	for _, issue := range r.Issues {
		section := issue.UnitID
		if section == "" {
			section = "document"
		}
		issues = append(issues, SummaryIssue{
			Document:   issue.Document,
			Section:    section,
			Issue:      issue.Description,
			Severity:   issue.Severity,
			Suggestion: issue.Suggestion,
		})
	}
	missing := make([]DocumentType, len(r.MissingDocuments))
	copy(missing, r.MissingDocuments)
	return ReportSummary{
		Process:           r.Process,
		DocumentsUploaded: r.DocumentsUploaded,
		RequiredDocuments: r.RequiredDocuments,
		MissingDocuments:  missing,
		Issues:            issues,
	}
}
