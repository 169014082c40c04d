package domain

import (
	"errors"
	"fmt"
)

type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// DefectCategory is the closed set of defect labels the judgment step may emit.
// Severity is derived from the category through the rules table, never chosen
// freely, so identical input yields identical issues.
type DefectCategory string

const (
	DefectJurisdiction     DefectCategory = "jurisdiction_mismatch"
	DefectMissingClause    DefectCategory = "missing_required_clause"
	DefectMissingSignatory DefectCategory = "missing_signatory"
	DefectAmbiguous        DefectCategory = "ambiguous_obligation"
	DefectInconsistentTerm DefectCategory = "inconsistent_defined_term"
	DefectUBODisclosure    DefectCategory = "ubo_disclosure"
	DefectFormatting       DefectCategory = "formatting"
	DefectManualReview     DefectCategory = "needs_manual_review"
)

// Issue is a single flagged compliance concern. Never mutated after creation.
type Issue struct {
	DocumentID   string         `json:"document_id"`
	Document     string         `json:"document"`
	UnitID       string         `json:"unit_id,omitempty"`
	UnitPosition int            `json:"unit_position"`
	Category     DefectCategory `json:"category"`
	Severity     Severity       `json:"severity"`
	Description  string         `json:"description"`
	Suggestion   string         `json:"suggestion"`
	Citations    []string       `json:"citations"`
}

// Validate enforces the issue invariants. An issue with no supporting
// citation must not be emitted.
func (i Issue) Validate() error {
	if i.DocumentID == "" {
		return WrapError(ErrSchemaViolation, "validate issue", errors.New("empty document id"))
	}
	if i.Category == "" {
		return WrapError(ErrSchemaViolation, "validate issue", errors.New("empty defect category"))
	}
	if len(i.Citations) == 0 {
		return WrapError(ErrSchemaViolation, "validate issue",
			fmt.Errorf("issue %q on %s has no citations", i.Category, i.Document))
	}
	for _, c := range i.Citations {
		if c == "" {
			return WrapError(ErrSchemaViolation, "validate issue", errors.New("blank citation"))
		}
	}
	switch i.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh:
	default:
		return WrapError(ErrSchemaViolation, "validate issue",
			fmt.Errorf("unknown severity %q", i.Severity))
	}
	return nil
}
