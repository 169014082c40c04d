package domain

// ClauseJudgment is the strict output contract of the judgment step. A unit is
// either compliant or non-compliant with one defect category; anything the
// model returns outside this shape is treated as malformed and retried.
type ClauseJudgment struct {
	Compliant   bool           `json:"compliant"`
	Category    DefectCategory `json:"category,omitempty"`
	Description string         `json:"description,omitempty"`
	Suggestion  string         `json:"suggestion,omitempty"`
	Citations   []string       `json:"citations,omitempty"`
}

var knownDefects = map[DefectCategory]struct{}{
	DefectJurisdiction:     {},
	DefectMissingClause:    {},
	DefectMissingSignatory: {},
	DefectAmbiguous:        {},
	DefectInconsistentTerm: {},
	DefectUBODisclosure:    {},
	DefectFormatting:       {},
	DefectManualReview:     {},
}

// KnownDefect reports whether the category belongs to the closed defect set.
func KnownDefect(c DefectCategory) bool {
	_, ok := knownDefects[c]
	return ok
}
