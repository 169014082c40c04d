package ollama

import (
	"fmt"
	"strings"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
)

const maxClauseSnippet = 4000

func buildJudgmentPrompt(unitText string, passages []domain.ReferencePassage, strict bool) string {
	clause := unitText
	if len(clause) > maxClauseSnippet {
		clause = clause[:maxClauseSnippet]
	}

	var contextBuilder strings.Builder
	for idx, p := range passages {
		fmt.Fprintf(&contextBuilder, "[%d] source=%s score=%.3f\n%s\n\n", idx+1, p.Source, p.Score, p.Text)
	}

	var b strings.Builder
	b.WriteString(`You are an ADGM legal compliance reviewer. Analyze ONE clause against the reference passages and return strict JSON only.

The JSON object MUST have exactly these keys:
compliant (boolean),
category (one of: jurisdiction_mismatch, missing_required_clause, missing_signatory, ambiguous_obligation, inconsistent_defined_term, ubo_disclosure, formatting; empty string when compliant),
description (string), suggestion (string),
citations (array of reference source labels that justify the finding).

If the clause is compliant, return {"compliant": true}.
If non-compliant, citations must name at least one of the provided sources.
`)
	if strict {
		b.WriteString(`
Output NOTHING except a single JSON object. No markdown fences, no commentary,
no keys beyond those listed. Invalid output will be discarded.
`)
	}
	fmt.Fprintf(&b, "\nReference passages (ADGM materials):\n%s\nClause to analyze:\n%s\n", contextBuilder.String(), clause)
	return b.String()
}
