package domain

// Process is a named regulatory procedure with an associated checklist.
type Process string

const (
	ProcessIncorporation Process = "Company Incorporation"
	ProcessEmployment    Process = "Employment & HR"
	ProcessLicensing     Process = "Licensing"
	ProcessCompliance    Process = "Compliance & Risk"
	ProcessCommercial    Process = "Commercial Agreements"

	// ProcessUnknown is the sentinel for submissions that clear no
	// classification threshold. Checklist resolution is skipped for it.
	ProcessUnknown Process = "unknown"
)

// ProcessClassification carries the chosen label and its signal strength.
type ProcessClassification struct {
	Process    Process `json:"process"`
	Confidence float64 `json:"confidence"`
}

// ClauseRequirement names a clause a document type must contain.
type ClauseRequirement struct {
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// Checklist is the mandatory document set for a process. Read-only during a run.
type Checklist struct {
	Process           Process                              `json:"process"`
	RequiredDocuments []DocumentType                       `json:"required_documents"`
	RequiredClauses   map[DocumentType][]ClauseRequirement `json:"required_clauses,omitempty"`
}

// Requires reports whether the checklist lists the given document type.
func (c *Checklist) Requires(t DocumentType) bool {
	for _, req := range c.RequiredDocuments {
		if req == t {
			return true
		}
	}
	return false
}
