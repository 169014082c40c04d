package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
	"github.com/mkharlamov/corporate-agent/internal/core/ports"
	"github.com/mkharlamov/corporate-agent/internal/core/rules"
)

// AnalyzerObserver receives per-unit pipeline outcomes. Implementations must
// be safe for concurrent use; the analyzer runs units on a worker pool.
// Retrieval results: hit, empty, below_threshold, timeout. Judgment outcomes:
// compliant, flagged, downgraded, skipped.
type AnalyzerObserver interface {
	RetrievalResult(result string)
	JudgmentOutcome(outcome string)
}

type AnalyzerConfig struct {
	TopK             int
	Workers          int
	RetrievalTimeout time.Duration
	JudgmentTimeout  time.Duration
	CallsPerSecond   float64
}

func (c AnalyzerConfig) normalize() AnalyzerConfig {
	out := c
	if out.TopK <= 0 {
		out.TopK = 4
	}
	if out.Workers <= 0 {
		out.Workers = 4
	}
	if out.RetrievalTimeout <= 0 {
		out.RetrievalTimeout = 10 * time.Second
	}
	if out.JudgmentTimeout <= 0 {
		out.JudgmentTimeout = 60 * time.Second
	}
	if out.CallsPerSecond <= 0 {
		out.CallsPerSecond = 5
	}
	return out
}

// ClauseAnalyzer evaluates document units against the reference index and the
// judgment backend. Per-unit work runs on a bounded worker pool; one slow or
// failed unit never aborts the run.
type ClauseAnalyzer struct {
	rules    *rules.Rules
	index    ports.ReferenceIndex
	judge    ports.ClauseJudge
	limiter  *rate.Limiter
	cfg      AnalyzerConfig
	observer AnalyzerObserver
}

func NewClauseAnalyzer(r *rules.Rules, index ports.ReferenceIndex, judge ports.ClauseJudge, cfg AnalyzerConfig) *ClauseAnalyzer {
	cfg = cfg.normalize()
	return &ClauseAnalyzer{
		rules:   r,
		index:   index,
		judge:   judge,
		limiter: rate.NewLimiter(rate.Limit(cfg.CallsPerSecond), 1),
		cfg:     cfg,
	}
}

// WithObserver attaches a pipeline observer. Must be set before the analyzer
// serves its first run.
func (a *ClauseAnalyzer) WithObserver(obs AnalyzerObserver) *ClauseAnalyzer {
	a.observer = obs
	return a
}

func (a *ClauseAnalyzer) observeRetrieval(result string) {
	if a.observer != nil {
		a.observer.RetrievalResult(result)
	}
}

func (a *ClauseAnalyzer) observeJudgment(outcome string) {
	if a.observer != nil {
		a.observer.JudgmentOutcome(outcome)
	}
}

// AnalyzeDocument produces the ordered issue list for one document. The
// returned error is non-nil only for run-fatal conditions (reference index
// unreachable); everything unit-scoped degrades per the downgrade policy.
func (a *ClauseAnalyzer) AnalyzeDocument(
	ctx context.Context,
	doc *domain.Document,
	units []domain.DocumentUnit,
	required []domain.ClauseRequirement,
) ([]domain.Issue, error) {
	results := make([][]domain.Issue, len(units))

	jobs := make(chan int)
	var wg sync.WaitGroup
	var fatalMu sync.Mutex
	var fatalErr error

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := a.cfg.Workers
	if workers > len(units) && len(units) > 0 {
		workers = len(units)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				issues, err := a.analyzeUnit(workerCtx, doc, units[idx])
				if err != nil {
					fatalMu.Lock()
					if fatalErr == nil {
						fatalErr = err
					}
					fatalMu.Unlock()
					cancel()
					return
				}
				results[idx] = issues
			}
		}()
	}

	// Cancellation stops issuing new units; in-flight calls finish or time out.
dispatch:
	for i := range units {
		select {
		case <-workerCtx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if fatalErr != nil {
		return nil, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []domain.Issue
	for _, issues := range results {
		out = append(out, issues...)
	}

	clauseIssues, err := a.checkRequiredClauses(ctx, doc, units, required)
	if err != nil {
		return nil, err
	}
	out = append(out, clauseIssues...)

	sortIssues(out)
	return out, nil
}

func (a *ClauseAnalyzer) analyzeUnit(ctx context.Context, doc *domain.Document, unit domain.DocumentUnit) ([]domain.Issue, error) {
	if !a.rules.KeywordGate(unit.Text) {
		a.observeJudgment("skipped")
		return nil, nil
	}

	passages, err := a.retrieve(ctx, unit.Text)
	if err != nil {
		if isCallTimeout(ctx, err) {
			// A timed-out retrieval is a judgment failure for this unit,
			// not a fatal run error.
			a.observeRetrieval("timeout")
			a.observeJudgment("downgraded")
			return []domain.Issue{a.manualReviewIssue(doc, unit, nil)}, nil
		}
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "query reference index", err)
	}
	if len(passages) == 0 {
		// Empty index match: skip silently.
		a.observeRetrieval("empty")
		a.observeJudgment("skipped")
		return nil, nil
	}
	if passages[0].Score < a.rules.RelevanceThreshold {
		// Below-threshold retrievals are skipped to avoid false positives
		// from irrelevant matches.
		a.observeRetrieval("below_threshold")
		a.observeJudgment("skipped")
		return nil, nil
	}
	a.observeRetrieval("hit")

	issues := a.redFlagIssues(doc, unit, passages)

	judgment, err := a.judgeWithRetry(ctx, unit.Text, passages)
	if err != nil {
		slog.Warn("judgment_downgraded",
			"document", doc.Filename,
			"unit", unit.ID,
			"error", err,
		)
		a.observeJudgment("downgraded")
		issues = append(issues, a.manualReviewIssue(doc, unit, passages))
		return dedupe(issues), nil
	}
	if !judgment.Compliant {
		a.observeJudgment("flagged")
		issues = append(issues, a.issueFromJudgment(doc, unit, judgment, passages))
		return dedupe(issues), nil
	}
	a.observeJudgment("compliant")
	return dedupe(issues), nil
}

func (a *ClauseAnalyzer) retrieve(ctx context.Context, text string) ([]domain.ReferencePassage, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.RetrievalTimeout)
	defer cancel()
	return a.index.Query(callCtx, text, a.cfg.TopK)
}

func (a *ClauseAnalyzer) judgeWithRetry(ctx context.Context, text string, passages []domain.ReferencePassage) (domain.ClauseJudgment, error) {
	judgment, err := a.judgeOnce(ctx, text, passages, false)
	if err == nil {
		return judgment, nil
	}
	if ctx.Err() != nil {
		return domain.ClauseJudgment{}, err
	}
	// One retry with a stricter output-format instruction, scoped to this
	// unit only.
	return a.judgeOnce(ctx, text, passages, true)
}

func (a *ClauseAnalyzer) judgeOnce(ctx context.Context, text string, passages []domain.ReferencePassage, strict bool) (domain.ClauseJudgment, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return domain.ClauseJudgment{}, err
	}
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.JudgmentTimeout)
	defer cancel()

	judgment, err := a.judge.JudgeClause(callCtx, text, passages, strict)
	if err != nil {
		return domain.ClauseJudgment{}, domain.WrapError(domain.ErrJudgment, "judge clause", err)
	}
	if !judgment.Compliant && !domain.KnownDefect(judgment.Category) {
		return domain.ClauseJudgment{}, domain.WrapError(domain.ErrJudgment, "judge clause",
			fmt.Errorf("unknown defect category %q", judgment.Category))
	}
	return judgment, nil
}

// checkRequiredClauses flags checklist clauses no unit of the document covers.
func (a *ClauseAnalyzer) checkRequiredClauses(
	ctx context.Context,
	doc *domain.Document,
	units []domain.DocumentUnit,
	required []domain.ClauseRequirement,
) ([]domain.Issue, error) {
	var out []domain.Issue
	for _, req := range required {
		if clauseCovered(units, req) {
			continue
		}

		citations := []string{fmt.Sprintf("ADGM checklist requirement: %s", req.Name)}
		passages, err := a.retrieve(ctx, req.Name+" "+strings.Join(req.Keywords, " "))
		if err != nil {
			if !isCallTimeout(ctx, err) {
				return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "query reference index", err)
			}
		} else if len(passages) > 0 && passages[0].Score >= a.rules.RelevanceThreshold {
			citations = append(citations, passages[0].Source)
		}

		out = append(out, domain.Issue{
			DocumentID:   doc.ID,
			Document:     doc.Filename,
			UnitPosition: len(units),
			Category:     domain.DefectMissingClause,
			Severity:     a.rules.SeverityFor(domain.DefectMissingClause),
			Description:  fmt.Sprintf("Required clause %q not found in the document.", req.Name),
			Suggestion:   fmt.Sprintf("Add a %s clause consistent with the ADGM template wording.", req.Name),
			Citations:    citations,
		})
	}
	return out, nil
}

func (a *ClauseAnalyzer) redFlagIssues(doc *domain.Document, unit domain.DocumentUnit, passages []domain.ReferencePassage) []domain.Issue {
	var out []domain.Issue
	for i := range a.rules.RedFlags {
		flag := &a.rules.RedFlags[i]
		if !flag.Matches(unit.Text) {
			continue
		}
		citations := []string{flag.Citation}
		if len(passages) > 0 {
			citations = append(citations, passages[0].Source)
		}
		out = append(out, domain.Issue{
			DocumentID:   doc.ID,
			Document:     doc.Filename,
			UnitID:       unit.ID,
			UnitPosition: unit.Position,
			Category:     flag.Category,
			Severity:     a.rules.SeverityFor(flag.Category),
			Description:  flag.Description,
			Suggestion:   flag.Suggestion,
			Citations:    citations,
		})
	}

	lower := strings.ToLower(unit.Text)
	for _, phrase := range a.rules.AmbiguousPhrases {
		if !strings.Contains(lower, phrase) {
			continue
		}
		citations := []string{a.rules.AmbiguousCite}
		if len(passages) > 0 {
			citations = append(citations, passages[0].Source)
		}
		out = append(out, domain.Issue{
			DocumentID:   doc.ID,
			Document:     doc.Filename,
			UnitID:       unit.ID,
			UnitPosition: unit.Position,
			Category:     domain.DefectAmbiguous,
			Severity:     a.rules.SeverityFor(domain.DefectAmbiguous),
			Description:  fmt.Sprintf("Ambiguous or non-binding phrase detected: %q.", phrase),
			Suggestion:   fmt.Sprintf("Consider replacing %q with a precise obligation or timescale.", phrase),
			Citations:    citations,
		})
		break
	}
	return out
}

func (a *ClauseAnalyzer) issueFromJudgment(doc *domain.Document, unit domain.DocumentUnit, judgment domain.ClauseJudgment, passages []domain.ReferencePassage) domain.Issue {
	citations := make([]string, 0, len(judgment.Citations))
	for _, c := range judgment.Citations {
		if c != "" {
			citations = append(citations, c)
		}
	}
	if len(citations) == 0 {
		// The passage that justified the flag is the minimum citation.
		citations = passageSources(passages)
	}
	return domain.Issue{
		DocumentID:   doc.ID,
		Document:     doc.Filename,
		UnitID:       unit.ID,
		UnitPosition: unit.Position,
		Category:     judgment.Category,
		Severity:     a.rules.SeverityFor(judgment.Category),
		Description:  judgment.Description,
		Suggestion:   judgment.Suggestion,
		Citations:    citations,
	}
}

func (a *ClauseAnalyzer) manualReviewIssue(doc *domain.Document, unit domain.DocumentUnit, passages []domain.ReferencePassage) domain.Issue {
	citations := passageSources(passages)
	if len(citations) == 0 {
		citations = []string{"ADGM reference corpus (automated review unavailable)"}
	}
	return domain.Issue{
		DocumentID:   doc.ID,
		Document:     doc.Filename,
		UnitID:       unit.ID,
		UnitPosition: unit.Position,
		Category:     domain.DefectManualReview,
		Severity:     a.rules.SeverityFor(domain.DefectManualReview),
		Description:  "Automated review could not reach a structured conclusion for this clause; needs manual review.",
		Suggestion:   "Have a reviewer confirm this clause against the cited ADGM references.",
		Citations:    citations,
	}
}

func clauseCovered(units []domain.DocumentUnit, req domain.ClauseRequirement) bool {
	for _, unit := range units {
		lower := strings.ToLower(unit.Text)
		for _, kw := range req.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

func passageSources(passages []domain.ReferencePassage) []string {
	seen := make(map[string]struct{}, len(passages))
	var out []string
	for _, p := range passages {
		if p.Source == "" {
			continue
		}
		if _, ok := seen[p.Source]; ok {
			continue
		}
		seen[p.Source] = struct{}{}
		out = append(out, p.Source)
	}
	return out
}

func dedupe(issues []domain.Issue) []domain.Issue {
	type key struct {
		unit     string
		category domain.DefectCategory
	}
	seen := make(map[key]struct{}, len(issues))
	out := issues[:0]
	for _, issue := range issues {
		k := key{unit: issue.UnitID, category: issue.Category}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, issue)
	}
	return out
}

func sortIssues(issues []domain.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Document != issues[j].Document {
			return issues[i].Document < issues[j].Document
		}
		if issues[i].UnitPosition != issues[j].UnitPosition {
			return issues[i].UnitPosition < issues[j].UnitPosition
		}
		return issues[i].Category < issues[j].Category
	})
}

func isCallTimeout(parent context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil
}
