package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
	"github.com/mkharlamov/corporate-agent/internal/core/ports"
	"github.com/mkharlamov/corporate-agent/internal/core/rules"
)

// ReviewSubmissionUseCase orchestrates one full analysis run: extraction,
// classification, checklist completeness, clause analysis, annotation and
// report synthesis. One bad document degrades its own findings only.
type ReviewSubmissionUseCase struct {
	repo       ports.SubmissionRepository
	storage    ports.ObjectStorage
	extractor  ports.UnitExtractor
	annotator  ports.Annotator
	classifier *ProcessClassifier
	analyzer   *ClauseAnalyzer
	rules      *rules.Rules
}

func NewReviewSubmissionUseCase(
	repo ports.SubmissionRepository,
	storage ports.ObjectStorage,
	extractor ports.UnitExtractor,
	annotator ports.Annotator,
	classifier *ProcessClassifier,
	analyzer *ClauseAnalyzer,
	r *rules.Rules,
) *ReviewSubmissionUseCase {
	return &ReviewSubmissionUseCase{
		repo:       repo,
		storage:    storage,
		extractor:  extractor,
		annotator:  annotator,
		classifier: classifier,
		analyzer:   analyzer,
		rules:      r,
	}
}

// typeDetectionSampleUnits bounds how much of a document feeds type detection.
const typeDetectionSampleUnits = 15

type reviewedDocument struct {
	doc   *domain.Document
	units []domain.DocumentUnit
}

func (uc *ReviewSubmissionUseCase) ReviewByID(ctx context.Context, submissionID string) error {
	if err := uc.repo.UpdateSubmissionStatus(ctx, submissionID, domain.SubmissionAnalyzing, "", ""); err != nil {
		return fmt.Errorf("set status=analyzing: %w", err)
	}

	report, err := uc.run(ctx, submissionID)
	if err != nil {
		if failErr := uc.repo.UpdateSubmissionStatus(ctx, submissionID, domain.SubmissionFailed, "", err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveReport(ctx, report); err != nil {
		if failErr := uc.repo.UpdateSubmissionStatus(ctx, submissionID, domain.SubmissionFailed, "", err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return fmt.Errorf("save report: %w", err)
	}
	if err := uc.repo.UpdateSubmissionStatus(ctx, submissionID, domain.SubmissionCompleted, report.Process, ""); err != nil {
		return fmt.Errorf("set status=completed: %w", err)
	}
	return nil
}

func (uc *ReviewSubmissionUseCase) run(ctx context.Context, submissionID string) (*domain.AnalysisReport, error) {
	docs, err := uc.repo.ListDocuments(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list submission documents: %w", err)
	}

	reviewed, uploadedTypes := uc.extractAll(ctx, docs)

	classification, classifyErr := uc.classifier.Classify(uploadedTypes)
	if classifyErr != nil {
		// Ambiguity is not fatal; the run continues without a checklist and
		// the report marks the process unknown.
		slog.Warn("process_classification_ambiguous",
			"submission_id", submissionID,
			"detected_types", len(uploadedTypes),
			"error", classifyErr,
		)
	}
	checklist, _ := uc.rules.ChecklistFor(classification.Process)

	var issues []domain.Issue
	for _, rd := range reviewed {
		docIssues, err := uc.analyzeDocument(ctx, rd, checklist)
		if err != nil {
			// Run-fatal: the caller gets the failure reason and the
			// triggering document.
			return nil, fmt.Errorf("analyze %s: %w", rd.doc.Filename, err)
		}
		issues = append(issues, docIssues...)

		if err := uc.annotate(ctx, rd, docIssues); err != nil {
			slog.Warn("annotate_failed", "document", rd.doc.Filename, "error", err)
		}
		rd.doc.Status = domain.StatusReviewed
		rd.doc.UpdatedAt = time.Now().UTC()
		if err := uc.repo.UpdateDocument(ctx, rd.doc); err != nil {
			return nil, fmt.Errorf("update document %s: %w", rd.doc.ID, err)
		}
	}

	return SynthesizeReport(
		submissionID,
		classification,
		checklist,
		len(docs),
		uploadedTypes,
		issues,
		time.Now(),
	)
}

// extractAll extracts every document in the batch, isolating per-document
// extraction failures, and accumulates the deduplicated uploaded types.
func (uc *ReviewSubmissionUseCase) extractAll(ctx context.Context, docs []domain.Document) ([]reviewedDocument, []domain.DocumentType) {
	var reviewed []reviewedDocument
	typeSet := make(map[domain.DocumentType]struct{})

	for i := range docs {
		doc := docs[i]
		units, err := uc.extractor.ExtractUnits(ctx, &doc)
		if err != nil {
			slog.Warn("extraction_failed", "document", doc.Filename, "error", err)
			doc.Status = domain.StatusFailed
			doc.Error = domain.WrapError(domain.ErrExtraction, "extract units", err).Error()
			doc.UpdatedAt = time.Now().UTC()
			if updateErr := uc.repo.UpdateDocument(ctx, &doc); updateErr != nil {
				slog.Error("update_failed_document", "document", doc.ID, "error", updateErr)
			}
			continue
		}

		detected := uc.detectTypes(&doc, units)
		doc.DetectedTypes = detected
		doc.Status = domain.StatusReviewing
		doc.UpdatedAt = time.Now().UTC()
		for _, t := range detected {
			typeSet[t] = struct{}{}
		}
		reviewed = append(reviewed, reviewedDocument{doc: &doc, units: units})
	}

	uploaded := make([]domain.DocumentType, 0, len(typeSet))
	for t := range typeSet {
		uploaded = append(uploaded, t)
	}
	sort.Slice(uploaded, func(i, j int) bool { return uploaded[i] < uploaded[j] })
	return reviewed, uploaded
}

func (uc *ReviewSubmissionUseCase) detectTypes(doc *domain.Document, units []domain.DocumentUnit) []domain.DocumentType {
	sample := make([]string, 0, typeDetectionSampleUnits+1)
	sample = append(sample, doc.Filename)
	for i, unit := range units {
		if i >= typeDetectionSampleUnits {
			break
		}
		sample = append(sample, unit.Text)
	}
	return uc.rules.DetectTypes(strings.Join(sample, "\n"))
}

func (uc *ReviewSubmissionUseCase) analyzeDocument(ctx context.Context, rd reviewedDocument, checklist *domain.Checklist) ([]domain.Issue, error) {
	var required []domain.ClauseRequirement
	if checklist != nil {
		for _, t := range rd.doc.DetectedTypes {
			// Clause requirements only bind documents the checklist itself
			// asks for.
			if !checklist.Requires(t) {
				continue
			}
			required = append(required, checklist.RequiredClauses[t]...)
		}
	}
	return uc.analyzer.AnalyzeDocument(ctx, rd.doc, rd.units, required)
}

func (uc *ReviewSubmissionUseCase) annotate(ctx context.Context, rd reviewedDocument, issues []domain.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	original, err := uc.storage.Open(ctx, rd.doc.StoragePath)
	if err != nil {
		return fmt.Errorf("open original: %w", err)
	}
	defer original.Close()

	annotated, err := uc.annotator.Annotate(ctx, original, issues)
	if err != nil {
		return fmt.Errorf("annotate document: %w", err)
	}

	key := annotatedKey(rd.doc.StoragePath)
	if err := uc.storage.Save(ctx, key, bytes.NewReader(annotated)); err != nil {
		return fmt.Errorf("save annotated copy: %w", err)
	}
	rd.doc.AnnotatedPath = key
	return nil
}

func annotatedKey(storagePath string) string {
	if idx := strings.LastIndex(storagePath, "."); idx > 0 {
		return storagePath[:idx] + "_reviewed" + storagePath[idx:]
	}
	return storagePath + "_reviewed"
}
