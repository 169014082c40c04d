package rules

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Rules holds every externally tunable table the engine consults: the
// per-process checklists, document-type and process signatures, the
// category to severity mapping, the rule-based red flags and the analyzer
// gating knobs. Loaded once, read-only afterwards.
type Rules struct {
	RelevanceThreshold float64  `yaml:"relevance_threshold"`
	MinProcessScore    float64  `yaml:"min_process_score"`
	AnalyzerKeywords   []string `yaml:"analyzer_keywords"`

	Processes     []ProcessRule      `yaml:"processes"`
	DocumentTypes []DocumentTypeRule `yaml:"document_types"`

	Severity map[domain.DefectCategory]domain.Severity `yaml:"severity"`

	RedFlags         []RedFlag `yaml:"red_flags"`
	AmbiguousPhrases []string  `yaml:"ambiguous_phrases"`
	AmbiguousCite    string    `yaml:"ambiguous_citation"`
}

type ProcessRule struct {
	Name              domain.Process                                     `yaml:"name"`
	Indicators        []domain.DocumentType                              `yaml:"indicators"`
	RequiredDocuments []domain.DocumentType                              `yaml:"required_documents"`
	RequiredClauses   map[domain.DocumentType][]domain.ClauseRequirement `yaml:"required_clauses"`
}

type DocumentTypeRule struct {
	Name     domain.DocumentType `yaml:"name"`
	Keywords []string            `yaml:"keywords"`
}

// RedFlag is one deterministic pre-LLM check. Every flag carries its own
// reference citation so the resulting issue is never unsupported. Absent, when
// set, suppresses the flag if the substring occurs anywhere in the clause
// (RE2 has no lookarounds, so "mentions X but not Y" is expressed this way).
type RedFlag struct {
	ID          string                `yaml:"id"`
	Pattern     string                `yaml:"pattern"`
	Absent      string                `yaml:"absent"`
	Category    domain.DefectCategory `yaml:"category"`
	Description string                `yaml:"description"`
	Suggestion  string                `yaml:"suggestion"`
	Citation    string                `yaml:"citation"`

	re *regexp.Regexp
}

// Matches reports whether the flag fires on the given clause text.
func (f *RedFlag) Matches(text string) bool {
	if f.re == nil || !f.re.MatchString(text) {
		return false
	}
	if f.Absent != "" && strings.Contains(strings.ToLower(text), strings.ToLower(f.Absent)) {
		return false
	}
	return true
}

// Default loads the embedded rule tables.
func Default() (*Rules, error) {
	return parse(defaultsYAML)
}

// Load reads rule tables from an external YAML file. An empty path falls
// back to the embedded defaults.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return parse(raw)
}

func parse(raw []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("parse rules yaml: %w", err)
	}
	for i := range r.RedFlags {
		re, err := regexp.Compile(r.RedFlags[i].Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile red flag %q: %w", r.RedFlags[i].ID, err)
		}
		r.RedFlags[i].re = re
	}
	if r.RelevanceThreshold <= 0 {
		r.RelevanceThreshold = 0.35
	}
	if r.MinProcessScore <= 0 {
		r.MinProcessScore = 1
	}
	return &r, nil
}

// DetectTypes returns every document type whose signature keywords occur in
// the sample text, sorted for stable output.
func (r *Rules) DetectTypes(text string) []domain.DocumentType {
	lower := strings.ToLower(text)
	var out []domain.DocumentType
	for _, rule := range r.DocumentTypes {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				out = append(out, rule.Name)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ChecklistFor resolves a process to its checklist. Unknown processes carry
// no checklist.
func (r *Rules) ChecklistFor(process domain.Process) (*domain.Checklist, bool) {
	if process == domain.ProcessUnknown || process == "" {
		return nil, false
	}
	for _, p := range r.Processes {
		if p.Name != process {
			continue
		}
		required := make([]domain.DocumentType, len(p.RequiredDocuments))
		copy(required, p.RequiredDocuments)
		return &domain.Checklist{
			Process:           p.Name,
			RequiredDocuments: required,
			RequiredClauses:   p.RequiredClauses,
		}, true
	}
	return nil, false
}

// SeverityFor maps a defect category to its fixed severity. Categories
// missing from the table degrade to Low rather than guessing upward.
func (r *Rules) SeverityFor(category domain.DefectCategory) domain.Severity {
	if sev, ok := r.Severity[category]; ok {
		return sev
	}
	return domain.SeverityLow
}

// KeywordGate reports whether a unit is worth sending through retrieval and
// judgment at all. An empty keyword table disables the gate.
func (r *Rules) KeywordGate(text string) bool {
	if len(r.AnalyzerKeywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range r.AnalyzerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
