package usecase

import (
	"time"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
)

// SynthesizeReport aggregates the classifier, completeness and analyzer
// outputs into the run's single report. Pure; issue ordering is deterministic
// by (document, unit position). A report that fails its invariants is never
// returned.
func SynthesizeReport(
	submissionID string,
	classification domain.ProcessClassification,
	checklist *domain.Checklist,
	uploadedCount int,
	uploadedTypes []domain.DocumentType,
	issues []domain.Issue,
	now time.Time,
) (*domain.AnalysisReport, error) {
	requiredCount := 0
	var missing []domain.DocumentType
	if checklist != nil {
		requiredCount = len(checklist.RequiredDocuments)
		missing = MissingDocuments(checklist, uploadedTypes)
	}

	ordered := make([]domain.Issue, len(issues))
	copy(ordered, issues)
	sortIssues(ordered)

	report := &domain.AnalysisReport{
		SubmissionID:      submissionID,
		Process:           classification.Process,
		Confidence:        classification.Confidence,
		DocumentsUploaded: uploadedCount,
		RequiredDocuments: requiredCount,
		UploadedTypes:     uploadedTypes,
		MissingDocuments:  missing,
		Issues:            ordered,
		GeneratedAt:       now.UTC(),
	}
	if checklist != nil {
		report.ChecklistMessage = ChecklistMessage(classification.Process, requiredCount, uploadedCount, missing)
	}

	if err := report.Validate(); err != nil {
		return nil, err
	}
	return report, nil
}
