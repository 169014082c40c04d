package usecase

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
)

func validIssue(pos int) domain.Issue {
	return domain.Issue{
		DocumentID:   "doc-1",
		Document:     "articles_of_association.docx",
		UnitID:       "paragraph_3",
		UnitPosition: pos,
		Category:     domain.DefectJurisdiction,
		Severity:     domain.SeverityHigh,
		Description:  "Jurisdiction clause does not specify ADGM.",
		Suggestion:   "Update the clause to specify ADGM Courts.",
		Citations:    []string{"ADGM Companies Regulations 2020, Art. 6"},
	}
}

func TestSynthesizeReportCountsAndMessage(t *testing.T) {
	r := mustRules(t)
	checklist, _ := r.ChecklistFor(domain.ProcessIncorporation)

	uploaded := checklist.RequiredDocuments[:len(checklist.RequiredDocuments)-1]
	report, err := SynthesizeReport(
		"sub-1",
		domain.ProcessClassification{Process: domain.ProcessIncorporation, Confidence: 0.75},
		checklist,
		len(uploaded),
		uploaded,
		[]domain.Issue{validIssue(3)},
		time.Now(),
	)
	if err != nil {
		t.Fatalf("SynthesizeReport() error = %v", err)
	}

	if report.RequiredDocuments != len(checklist.RequiredDocuments) {
		t.Fatalf("required = %d, want %d", report.RequiredDocuments, len(checklist.RequiredDocuments))
	}
	if report.DocumentsUploaded != len(uploaded) {
		t.Fatalf("uploaded = %d, want %d", report.DocumentsUploaded, len(uploaded))
	}
	if len(report.MissingDocuments) != 1 {
		t.Fatalf("missing = %v, want one entry", report.MissingDocuments)
	}
	if report.ChecklistMessage == "" {
		t.Fatalf("expected a checklist message")
	}
}

func TestSynthesizeReportRejectsOverlap(t *testing.T) {
	report := &domain.AnalysisReport{
		SubmissionID:     "sub-1",
		UploadedTypes:    []domain.DocumentType{"NDA"},
		MissingDocuments: []domain.DocumentType{"NDA"},
	}
	err := report.Validate()
	if err == nil {
		t.Fatalf("expected validation failure for overlapping uploaded and missing types")
	}
	if !domain.IsKind(err, domain.ErrSchemaViolation) {
		t.Fatalf("error = %v, want ErrSchemaViolation kind", err)
	}
}

func TestSynthesizeReportRejectsUncitedIssue(t *testing.T) {
	issue := validIssue(0)
	issue.Citations = nil

	_, err := SynthesizeReport(
		"sub-1",
		domain.ProcessClassification{Process: domain.ProcessCommercial, Confidence: 0.5},
		nil,
		1,
		[]domain.DocumentType{"NDA"},
		[]domain.Issue{issue},
		time.Now(),
	)
	if err == nil {
		t.Fatalf("expected a report containing an uncited issue to be rejected")
	}
}

func TestSynthesizeReportUnknownProcess(t *testing.T) {
	report, err := SynthesizeReport(
		"sub-1",
		domain.ProcessClassification{Process: domain.ProcessUnknown},
		nil,
		2,
		nil,
		nil,
		time.Now(),
	)
	if err != nil {
		t.Fatalf("SynthesizeReport() error = %v", err)
	}
	if report.RequiredDocuments != 0 || len(report.MissingDocuments) != 0 {
		t.Fatalf("unknown process must carry no checklist results: %+v", report)
	}
	if report.ChecklistMessage != "" {
		t.Fatalf("unknown process must not render a checklist message")
	}
}

func TestReportSummaryMissingDocumentShape(t *testing.T) {
	base := domain.ReportSummary{
		Process:           domain.ProcessIncorporation,
		DocumentsUploaded: 4,
		RequiredDocuments: 5,
		Issues:            []domain.SummaryIssue{},
	}

	single := base
	single.MissingDocuments = []domain.DocumentType{"Register of Members and Directors"}
	raw, err := json.Marshal(single)
	if err != nil {
		t.Fatalf("marshal summary: %v", err)
	}
	var singleOut map[string]any
	if err := json.Unmarshal(raw, &singleOut); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if _, ok := singleOut["missing_document"].(string); !ok {
		t.Fatalf("one missing type must marshal as a string, got %T", singleOut["missing_document"])
	}

	several := base
	several.MissingDocuments = []domain.DocumentType{"NDA", "Service Agreement"}
	raw, err = json.Marshal(several)
	if err != nil {
		t.Fatalf("marshal summary: %v", err)
	}
	var severalOut map[string]any
	if err := json.Unmarshal(raw, &severalOut); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if _, ok := severalOut["missing_document"].([]any); !ok {
		t.Fatalf("several missing types must marshal as an array, got %T", severalOut["missing_document"])
	}

	for _, key := range []string{"process", "documents_uploaded", "required_documents", "missing_document", "issues_found"} {
		if _, ok := severalOut[key]; !ok {
			t.Fatalf("summary JSON lacks %q: %v", key, severalOut)
		}
	}
}

func TestReportSummarySectionFallsBackToDocument(t *testing.T) {
	report := &domain.AnalysisReport{
		SubmissionID: "sub-1",
		Issues: []domain.Issue{
			{
				DocumentID:  "doc-1",
				Document:    "articles.docx",
				Category:    domain.DefectMissingClause,
				Severity:    domain.SeverityHigh,
				Description: "Required clause missing.",
				Citations:   []string{"ADGM checklist requirement: Governing Law"},
			},
		},
	}
	summary := report.Summary()
	if summary.Issues[0].Section != "document" {
		t.Fatalf("document-level issue section = %q, want \"document\"", summary.Issues[0].Section)
	}
}
