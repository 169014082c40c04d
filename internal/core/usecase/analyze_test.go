package usecase

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
)

type indexFake struct {
	mu       sync.Mutex
	passages []domain.ReferencePassage
	err      error
	calls    int
}

func (f *indexFake) Query(_ context.Context, _ string, _ int) ([]domain.ReferencePassage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.ReferencePassage, len(f.passages))
	copy(out, f.passages)
	return out, nil
}

type judgeResponse struct {
	judgment domain.ClauseJudgment
	err      error
}

type judgeFake struct {
	mu         sync.Mutex
	responses  []judgeResponse
	fallback   judgeResponse
	strictSeen []bool
	calls      int
}

func (f *judgeFake) JudgeClause(_ context.Context, _ string, _ []domain.ReferencePassage, strict bool) (domain.ClauseJudgment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.strictSeen = append(f.strictSeen, strict)
	if len(f.responses) > 0 {
		resp := f.responses[0]
		f.responses = f.responses[1:]
		return resp.judgment, resp.err
	}
	return f.fallback.judgment, f.fallback.err
}

type observerFake struct {
	mu         sync.Mutex
	retrievals []string
	judgments  []string
}

func (f *observerFake) RetrievalResult(result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrievals = append(f.retrievals, result)
}

func (f *observerFake) JudgmentOutcome(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.judgments = append(f.judgments, outcome)
}

func (f *observerFake) sorted() (retrievals, judgments []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	retrievals = append([]string(nil), f.retrievals...)
	judgments = append([]string(nil), f.judgments...)
	sort.Strings(retrievals)
	sort.Strings(judgments)
	return retrievals, judgments
}

func relevantPassages() []domain.ReferencePassage {
	return []domain.ReferencePassage{
		{Text: "ADGM Courts have exclusive jurisdiction.", Source: "adgm_companies_regulations.pdf", Score: 0.82},
		{Text: "Company formation documents must name ADGM.", Source: "registration_authority_guidance.pdf", Score: 0.61},
	}
}

func compliantJudge() *judgeFake {
	return &judgeFake{fallback: judgeResponse{judgment: domain.ClauseJudgment{Compliant: true}}}
}

func testDoc() *domain.Document {
	return &domain.Document{ID: "doc-1", Filename: "articles_of_association.docx"}
}

func unitAt(pos int, text string) domain.DocumentUnit {
	return domain.DocumentUnit{
		ID:         "paragraph_" + string(rune('0'+pos)),
		DocumentID: "doc-1",
		Position:   pos,
		Text:       text,
	}
}

func newTestAnalyzer(t *testing.T, index *indexFake, judge *judgeFake) *ClauseAnalyzer {
	t.Helper()
	return NewClauseAnalyzer(mustRules(t), index, judge, AnalyzerConfig{
		Workers:        2,
		CallsPerSecond: 1000,
	})
}

func TestAnalyzeFlagsNonADGMJurisdiction(t *testing.T) {
	index := &indexFake{passages: relevantPassages()}
	judge := &judgeFake{fallback: judgeResponse{judgment: domain.ClauseJudgment{
		Compliant:   false,
		Category:    domain.DefectJurisdiction,
		Description: "Clause submits disputes to UAE federal courts instead of ADGM.",
		Suggestion:  "Reference the ADGM Courts instead.",
		Citations:   []string{"ADGM Companies Regulations 2020, Art. 6"},
	}}}
	analyzer := newTestAnalyzer(t, index, judge)

	units := []domain.DocumentUnit{
		unitAt(0, "Any dispute shall be submitted to the UAE Federal Courts."),
	}
	issues, err := analyzer.AnalyzeDocument(context.Background(), testDoc(), units, nil)
	if err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("expected the red flag and the judgment to collapse into one issue, got %d: %+v", len(issues), issues)
	}
	issue := issues[0]
	if issue.Category != domain.DefectJurisdiction {
		t.Fatalf("issue category = %q, want jurisdiction_mismatch", issue.Category)
	}
	if issue.Severity != domain.SeverityHigh {
		t.Fatalf("issue severity = %q, want High", issue.Severity)
	}
	if len(issue.Citations) == 0 {
		t.Fatalf("issue has no citations: %+v", issue)
	}
	if err := issue.Validate(); err != nil {
		t.Fatalf("issue failed validation: %v", err)
	}
}

func TestAnalyzeCompliantClauseYieldsNoIssues(t *testing.T) {
	index := &indexFake{passages: relevantPassages()}
	analyzer := newTestAnalyzer(t, index, compliantJudge())

	units := []domain.DocumentUnit{
		unitAt(0, "This agreement is governed by the laws of ADGM and subject to the ADGM Courts."),
	}
	issues, err := analyzer.AnalyzeDocument(context.Background(), testDoc(), units, nil)
	if err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestAnalyzeKeywordGateSkipsRetrieval(t *testing.T) {
	index := &indexFake{passages: relevantPassages()}
	judge := compliantJudge()
	analyzer := newTestAnalyzer(t, index, judge)

	units := []domain.DocumentUnit{
		unitAt(0, "Lorem ipsum dolor sit amet."),
	}
	issues, err := analyzer.AnalyzeDocument(context.Background(), testDoc(), units, nil)
	if err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
	if index.calls != 0 {
		t.Fatalf("expected no retrieval for gated unit, got %d calls", index.calls)
	}
	if judge.calls != 0 {
		t.Fatalf("expected no judgment for gated unit, got %d calls", judge.calls)
	}
}

func TestAnalyzeSkipsEmptyAndIrrelevantRetrievals(t *testing.T) {
	cases := []struct {
		name     string
		passages []domain.ReferencePassage
	}{
		{name: "empty", passages: nil},
		{name: "below threshold", passages: []domain.ReferencePassage{
			{Text: "unrelated text", Source: "misc.pdf", Score: 0.05},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			judge := compliantJudge()
			analyzer := newTestAnalyzer(t, &indexFake{passages: tc.passages}, judge)

			units := []domain.DocumentUnit{
				unitAt(0, "The governing law of this agreement is ADGM law."),
			}
			issues, err := analyzer.AnalyzeDocument(context.Background(), testDoc(), units, nil)
			if err != nil {
				t.Fatalf("AnalyzeDocument() error = %v", err)
			}
			if len(issues) != 0 {
				t.Fatalf("expected no issues, got %+v", issues)
			}
			if judge.calls != 0 {
				t.Fatalf("expected no judgment calls, got %d", judge.calls)
			}
		})
	}
}

func TestAnalyzeRetriesStricterThenDowngrades(t *testing.T) {
	index := &indexFake{passages: relevantPassages()}
	judge := &judgeFake{fallback: judgeResponse{err: errors.New("malformed model output")}}
	analyzer := newTestAnalyzer(t, index, judge)

	units := []domain.DocumentUnit{
		unitAt(0, "The jurisdiction clause of this agreement is unusual."),
	}
	issues, err := analyzer.AnalyzeDocument(context.Background(), testDoc(), units, nil)
	if err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}

	if got := judge.strictSeen; !reflect.DeepEqual(got, []bool{false, true}) {
		t.Fatalf("strict flags = %v, want [false true]", got)
	}
	if len(issues) != 1 || issues[0].Category != domain.DefectManualReview {
		t.Fatalf("expected one needs_manual_review issue, got %+v", issues)
	}
	if issues[0].Severity != domain.SeverityLow {
		t.Fatalf("manual review severity = %q, want Low", issues[0].Severity)
	}
	if len(issues[0].Citations) == 0 {
		t.Fatalf("manual review issue has no citations")
	}
}

func TestAnalyzeStrictRetrySucceeds(t *testing.T) {
	index := &indexFake{passages: relevantPassages()}
	judge := &judgeFake{
		responses: []judgeResponse{
			{err: errors.New("malformed model output")},
			{judgment: domain.ClauseJudgment{Compliant: true}},
		},
	}
	analyzer := newTestAnalyzer(t, index, judge)

	units := []domain.DocumentUnit{
		unitAt(0, "The jurisdiction clause of this agreement is standard."),
	}
	issues, err := analyzer.AnalyzeDocument(context.Background(), testDoc(), units, nil)
	if err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected no issues after successful strict retry, got %+v", issues)
	}
	if judge.calls != 2 {
		t.Fatalf("expected 2 judgment calls, got %d", judge.calls)
	}
}

func TestAnalyzeUnknownCategoryDowngrades(t *testing.T) {
	index := &indexFake{passages: relevantPassages()}
	judge := &judgeFake{fallback: judgeResponse{judgment: domain.ClauseJudgment{
		Compliant: false,
		Category:  "totally_made_up",
	}}}
	analyzer := newTestAnalyzer(t, index, judge)

	units := []domain.DocumentUnit{
		unitAt(0, "The jurisdiction clause of this agreement is unusual."),
	}
	issues, err := analyzer.AnalyzeDocument(context.Background(), testDoc(), units, nil)
	if err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}
	if len(issues) != 1 || issues[0].Category != domain.DefectManualReview {
		t.Fatalf("expected manual review downgrade for unknown category, got %+v", issues)
	}
}

func TestAnalyzeRetrievalTimeoutDowngradesUnit(t *testing.T) {
	index := &indexFake{err: context.DeadlineExceeded}
	judge := compliantJudge()
	analyzer := newTestAnalyzer(t, index, judge)

	units := []domain.DocumentUnit{
		unitAt(0, "The jurisdiction clause of this agreement is standard."),
	}
	issues, err := analyzer.AnalyzeDocument(context.Background(), testDoc(), units, nil)
	if err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}
	if len(issues) != 1 || issues[0].Category != domain.DefectManualReview {
		t.Fatalf("expected manual review issue for timed-out retrieval, got %+v", issues)
	}
	if len(issues[0].Citations) == 0 {
		t.Fatalf("downgraded issue must still carry a citation")
	}
	if judge.calls != 0 {
		t.Fatalf("expected no judgment after retrieval timeout, got %d calls", judge.calls)
	}
}

func TestAnalyzeRetrievalOutageIsRunFatal(t *testing.T) {
	index := &indexFake{err: errors.New("connection refused")}
	analyzer := newTestAnalyzer(t, index, compliantJudge())

	units := []domain.DocumentUnit{
		unitAt(0, "The jurisdiction clause of this agreement is standard."),
	}
	_, err := analyzer.AnalyzeDocument(context.Background(), testDoc(), units, nil)
	if err == nil {
		t.Fatalf("expected error for unreachable reference index")
	}
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("error = %v, want ErrRetrievalUnavailable kind", err)
	}
}

func TestAnalyzeAmbiguousPhrase(t *testing.T) {
	index := &indexFake{passages: relevantPassages()}
	analyzer := newTestAnalyzer(t, index, compliantJudge())

	units := []domain.DocumentUnit{
		unitAt(0, "The supplier shall use best efforts to deliver under this agreement."),
	}
	issues, err := analyzer.AnalyzeDocument(context.Background(), testDoc(), units, nil)
	if err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}
	if len(issues) != 1 || issues[0].Category != domain.DefectAmbiguous {
		t.Fatalf("expected one ambiguous_obligation issue, got %+v", issues)
	}
	if issues[0].Severity != domain.SeverityLow {
		t.Fatalf("ambiguous severity = %q, want Low", issues[0].Severity)
	}
}

func TestAnalyzeMissingRequiredClause(t *testing.T) {
	index := &indexFake{passages: relevantPassages()}
	analyzer := newTestAnalyzer(t, index, compliantJudge())

	units := []domain.DocumentUnit{
		unitAt(0, "The share capital of the company is 100 shares of USD 1 each."),
	}
	required := []domain.ClauseRequirement{
		{Name: "Governing Law", Keywords: []string{"governed by", "governing law"}},
		{Name: "Share Capital", Keywords: []string{"share capital"}},
	}
	issues, err := analyzer.AnalyzeDocument(context.Background(), testDoc(), units, required)
	if err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}

	var clauseIssues []domain.Issue
	for _, issue := range issues {
		if issue.Category == domain.DefectMissingClause {
			clauseIssues = append(clauseIssues, issue)
		}
	}
	if len(clauseIssues) != 1 {
		t.Fatalf("expected one missing clause issue, got %+v", issues)
	}
	issue := clauseIssues[0]
	if issue.UnitID != "" {
		t.Fatalf("document-level issue must not point at a unit, got %q", issue.UnitID)
	}
	if issue.Severity != domain.SeverityHigh {
		t.Fatalf("missing clause severity = %q, want High", issue.Severity)
	}
	if issue.Citations[0] != "ADGM checklist requirement: Governing Law" {
		t.Fatalf("unexpected citation: %v", issue.Citations)
	}
}

func TestAnalyzeReportsPipelineOutcomes(t *testing.T) {
	index := &indexFake{passages: relevantPassages()}
	observer := &observerFake{}
	analyzer := newTestAnalyzer(t, index, compliantJudge()).WithObserver(observer)

	units := []domain.DocumentUnit{
		unitAt(0, "Lorem ipsum dolor sit amet."),
		unitAt(1, "This agreement is governed by the laws of ADGM and subject to the ADGM Courts."),
	}
	if _, err := analyzer.AnalyzeDocument(context.Background(), testDoc(), units, nil); err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}

	retrievals, judgments := observer.sorted()
	if !reflect.DeepEqual(retrievals, []string{"hit"}) {
		t.Fatalf("retrieval results = %v, want [hit]", retrievals)
	}
	if !reflect.DeepEqual(judgments, []string{"compliant", "skipped"}) {
		t.Fatalf("judgment outcomes = %v, want [compliant skipped]", judgments)
	}
}

func TestAnalyzeReportsEmptyAndIrrelevantRetrievals(t *testing.T) {
	cases := []struct {
		name      string
		passages  []domain.ReferencePassage
		retrieval string
	}{
		{name: "empty", passages: nil, retrieval: "empty"},
		{name: "below threshold", passages: []domain.ReferencePassage{
			{Text: "unrelated text", Source: "misc.pdf", Score: 0.05},
		}, retrieval: "below_threshold"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			observer := &observerFake{}
			analyzer := newTestAnalyzer(t, &indexFake{passages: tc.passages}, compliantJudge()).WithObserver(observer)

			units := []domain.DocumentUnit{
				unitAt(0, "The governing law of this agreement is ADGM law."),
			}
			if _, err := analyzer.AnalyzeDocument(context.Background(), testDoc(), units, nil); err != nil {
				t.Fatalf("AnalyzeDocument() error = %v", err)
			}

			retrievals, judgments := observer.sorted()
			if !reflect.DeepEqual(retrievals, []string{tc.retrieval}) {
				t.Fatalf("retrieval results = %v, want [%s]", retrievals, tc.retrieval)
			}
			if !reflect.DeepEqual(judgments, []string{"skipped"}) {
				t.Fatalf("judgment outcomes = %v, want [skipped]", judgments)
			}
		})
	}
}

// blockingJudgeFake never answers; it waits for the per-call deadline.
type blockingJudgeFake struct {
	mu         sync.Mutex
	strictSeen []bool
}

func (f *blockingJudgeFake) JudgeClause(ctx context.Context, _ string, _ []domain.ReferencePassage, strict bool) (domain.ClauseJudgment, error) {
	f.mu.Lock()
	f.strictSeen = append(f.strictSeen, strict)
	f.mu.Unlock()
	<-ctx.Done()
	return domain.ClauseJudgment{}, ctx.Err()
}

func TestAnalyzeJudgmentTimeoutDowngradesUnit(t *testing.T) {
	index := &indexFake{passages: relevantPassages()}
	judge := &blockingJudgeFake{}
	observer := &observerFake{}
	analyzer := NewClauseAnalyzer(mustRules(t), index, judge, AnalyzerConfig{
		Workers:         2,
		CallsPerSecond:  1000,
		JudgmentTimeout: 20 * time.Millisecond,
	})
	analyzer.WithObserver(observer)

	units := []domain.DocumentUnit{
		unitAt(0, "The jurisdiction clause of this agreement is standard."),
	}
	issues, err := analyzer.AnalyzeDocument(context.Background(), testDoc(), units, nil)
	if err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}

	if got := judge.strictSeen; !reflect.DeepEqual(got, []bool{false, true}) {
		t.Fatalf("strict flags = %v, want [false true]", got)
	}
	if len(issues) != 1 || issues[0].Category != domain.DefectManualReview {
		t.Fatalf("expected manual review downgrade for timed-out judgment, got %+v", issues)
	}
	if issues[0].Severity != domain.SeverityLow {
		t.Fatalf("manual review severity = %q, want Low", issues[0].Severity)
	}
	if len(issues[0].Citations) == 0 {
		t.Fatalf("downgraded issue must still carry a citation")
	}
	_, judgments := observer.sorted()
	if !reflect.DeepEqual(judgments, []string{"downgraded"}) {
		t.Fatalf("judgment outcomes = %v, want [downgraded]", judgments)
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	units := []domain.DocumentUnit{
		unitAt(0, "Any dispute shall be submitted to the UAE Federal Courts."),
		unitAt(1, "The supplier shall use best efforts to deliver under this agreement."),
		unitAt(2, "The share capital of the company is 100 shares."),
	}
	doc := testDoc()

	run := func() []domain.Issue {
		index := &indexFake{passages: relevantPassages()}
		analyzer := newTestAnalyzer(t, index, compliantJudge())
		issues, err := analyzer.AnalyzeDocument(context.Background(), doc, units, nil)
		if err != nil {
			t.Fatalf("AnalyzeDocument() error = %v", err)
		}
		return issues
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("issue lists differ between identical runs:\n%+v\n%+v", first, second)
	}
	if !sort.SliceIsSorted(first, func(i, j int) bool {
		if first[i].Document != first[j].Document {
			return first[i].Document < first[j].Document
		}
		return first[i].UnitPosition <= first[j].UnitPosition
	}) {
		t.Fatalf("issues not ordered by document and position: %+v", first)
	}
}
