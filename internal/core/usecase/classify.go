package usecase

import (
	"github.com/mkharlamov/corporate-agent/internal/core/domain"
	"github.com/mkharlamov/corporate-agent/internal/core/rules"
)

// ProcessClassifier infers the regulatory process a submission belongs to
// from the detected document types. Pure and in-memory.
type ProcessClassifier struct {
	rules *rules.Rules
}

func NewProcessClassifier(r *rules.Rules) *ProcessClassifier {
	return &ProcessClassifier{rules: r}
}

// Classify scores each known process by how many of its indicator document
// types are present in the submission. The highest score wins; a score below
// the configured minimum yields the unknown sentinel plus
// ErrClassificationAmbiguous. The error is advisory: a run carries on with
// the unknown process and no checklist.
func (c *ProcessClassifier) Classify(detected []domain.DocumentType) (domain.ProcessClassification, error) {
	present := make(map[domain.DocumentType]struct{}, len(detected))
	for _, t := range detected {
		present[t] = struct{}{}
	}

	best := domain.ProcessUnknown
	bestScore := 0.0
	for _, p := range c.rules.Processes {
		score := 0.0
		for _, indicator := range p.Indicators {
			if _, ok := present[indicator]; ok {
				score++
			}
		}
		if score > bestScore {
			best = p.Name
			bestScore = score
		}
	}

	if bestScore < c.rules.MinProcessScore {
		return domain.ProcessClassification{Process: domain.ProcessUnknown}, domain.ErrClassificationAmbiguous
	}

	confidence := bestScore / float64(len(c.rules.Processes[0].Indicators))
	for _, p := range c.rules.Processes {
		if p.Name == best && len(p.Indicators) > 0 {
			confidence = bestScore / float64(len(p.Indicators))
		}
	}
	if confidence > 1 {
		confidence = 1
	}
	return domain.ProcessClassification{Process: best, Confidence: confidence}, nil
}
