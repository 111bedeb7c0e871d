package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PolicyScanner/internal/dedup"
	"PolicyScanner/internal/domain"
	"PolicyScanner/internal/infrastructure/llm"
	"PolicyScanner/internal/ports"
	"PolicyScanner/internal/source"
)

type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, url string) (string, bool) {
	body, ok := m[url]
	return body, ok
}

// scriptedExtractor parses a JSON reply keyed by the text inside the container.
type scriptedExtractor struct {
	replies map[string]string
	calls   int
}

func (s *scriptedExtractor) Extract(_ context.Context, markup string) ([]domain.Candidate, error) {
	s.calls++
	for key, reply := range s.replies {
		if strings.Contains(markup, key) {
			return llm.ParseCandidates(reply)
		}
	}
	return nil, fmt.Errorf("no scripted reply for %q", markup)
}

type memRepo struct {
	policies []domain.Policy
	reject   map[string]bool
}

func (m *memRepo) ActiveTitles(context.Context) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for _, p := range m.policies {
		if !p.IsDeleted {
			out[p.Title] = struct{}{}
		}
	}
	return out, nil
}

func (m *memRepo) ActiveExcludingSource(_ context.Context, sourceName string) ([]domain.Candidate, error) {
	var out []domain.Candidate
	for _, p := range m.policies {
		if !p.IsDeleted && p.SourceName != sourceName {
			out = append(out, domain.Candidate{Title: p.Title, Description: p.Description})
		}
	}
	return out, nil
}

func (m *memRepo) InsertBatch(_ context.Context, policies []domain.Policy) ports.InsertResult {
	var res ports.InsertResult
	for _, p := range policies {
		if m.reject[p.Title] {
			res.Failed++
			res.Err = errors.Join(res.Err, fmt.Errorf("reject %s", p.Title))
			continue
		}
		p.ID = int64(len(m.policies) + 1)
		m.policies = append(m.policies, p)
		res.Inserted++
	}
	return res
}

type countingClassifier struct {
	verdict domain.Verdict
	calls   int
	sources []string
}

func (c *countingClassifier) Classify(_ context.Context, _ domain.Candidate, refs []domain.Candidate) (domain.Verdict, error) {
	c.calls++
	for _, r := range refs {
		c.sources = append(c.sources, r.Title)
	}
	return c.verdict, nil
}

type memAudit struct {
	records []domain.LogRecord
}

func (m *memAudit) Record(_ context.Context, r domain.LogRecord) error {
	m.records = append(m.records, r)
	return nil
}

type memNotifier struct {
	messages []string
}

func (m *memNotifier) PublishSummary(_ context.Context, summary string) error {
	m.messages = append(m.messages, summary)
	return nil
}

type fixture struct {
	repo       *memRepo
	classifier *countingClassifier
	audit      *memAudit
	extractor  *scriptedExtractor
	notifier   *memNotifier
	pipeline   *Pipeline
}

func page(body string) string {
	return `<html><body><ul id="head"><li>25/12/2024</li></ul><div id="c">` + body + `</div></body></html>`
}

func newFixture(t *testing.T, failFast bool, fetcher mapFetcher, replies map[string]string) *fixture {
	t.Helper()

	reg, err := source.NewRegistry([]domain.SourceDefinition{
		{Name: "alpha", URL: "https://alpha.example", ContainerSelector: "#c", PublishedAtSelector: "#head > li"},
		{Name: "beta", URL: "https://beta.example", ContainerSelector: "#c"},
		{Name: "gamma", URL: "https://gamma.example", ContainerSelector: "#c"},
	})
	require.NoError(t, err)

	f := &fixture{
		repo:       &memRepo{reject: map[string]bool{}},
		classifier: &countingClassifier{verdict: domain.VerdictUnique},
		audit:      &memAudit{},
		extractor:  &scriptedExtractor{replies: replies},
		notifier:   &memNotifier{},
	}
	f.pipeline = NewPipeline(PipelineDeps{
		Sources:    reg,
		Fetcher:    fetcher,
		Extractor:  f.extractor,
		Dedup:      dedup.NewEngine(f.repo, f.classifier),
		Repository: f.repo,
		Audit:      f.audit,
		Notifier:   f.notifier,
		FailFast:   failFast,
	})
	return f
}

func allSources() mapFetcher {
	return mapFetcher{
		"https://alpha.example": page("ALPHA"),
		"https://beta.example":  page("BETA"),
		"https://gamma.example": page("GAMMA"),
	}
}

func standardReplies() map[string]string {
	return map[string]string{
		"ALPHA": `[{"title":"Leave Policy","description":"Paid leave."},{"title":"Travel Policy","description":"Trips."}]`,
		"BETA":  "```json\n[{\"title\":\"Leave Policy\",\"description\":\"Time off.\"},{\"title\":\"Remote Work\",\"description\":\"WFH.\"}]\n```",
		"GAMMA": `[{"title":"Code of Conduct","description":"Behaviour."}]`,
	}
}

func TestRunInsertsNewAndSkipsExactTitles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false, allSources(), standardReplies())

	report, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Inserted())
	assert.Equal(t, 1, report.Duplicates())
	assert.Zero(t, report.Failed())
	require.Len(t, f.repo.policies, 4)

	alpha := f.repo.policies[0]
	require.NotNil(t, alpha.PublishedAt)
	assert.Equal(t, time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC), *alpha.PublishedAt)
	assert.Equal(t, "https://alpha.example", alpha.SourceURL)
	assert.Nil(t, f.repo.policies[2].PublishedAt, "beta has no date selector")

	require.Len(t, f.audit.records, 5)
	var skipped []string
	for _, r := range f.audit.records {
		if r.IsDuplicate {
			assert.Equal(t, domain.ActionSkipping, r.Action)
			skipped = append(skipped, r.SourceName+"/"+r.Title)
		} else {
			assert.Equal(t, domain.ActionInserting, r.Action)
		}
	}
	assert.Equal(t, []string{"beta/Leave Policy"}, skipped)
	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "Inserted: 4")
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false, allSources(), standardReplies())

	_, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	callsAfterFirst := f.classifier.calls

	report, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Inserted())
	assert.Equal(t, 5, report.Duplicates())
	assert.Len(t, f.repo.policies, 4)
	assert.Equal(t, callsAfterFirst, f.classifier.calls, "exact title hits must never reach the classifier")
}

func TestRunNeverComparesAgainstSameSource(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false, allSources(), standardReplies())
	f.repo.policies = []domain.Policy{
		{Title: "Alpha Old", Description: "x", SourceName: "alpha"},
		{Title: "Beta Old", Description: "y", SourceName: "beta"},
	}

	_, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	// The first alpha candidate sees only beta's stored record.
	require.NotEmpty(t, f.classifier.sources)
	assert.Equal(t, "Beta Old", f.classifier.sources[0])
	assert.NotContains(t, f.classifier.sources[:1], "Alpha Old")
}

func TestRunConservativeVerdictSkips(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false, allSources(), standardReplies())
	f.repo.policies = []domain.Policy{{Title: "Seed", Description: "x", SourceName: "elsewhere"}}
	f.classifier.verdict = domain.VerdictAmbiguous

	report, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Inserted())
	assert.Equal(t, 5, report.Duplicates())
}

func TestRunSkipsUnreachableSource(t *testing.T) {
	t.Parallel()

	fetcher := allSources()
	delete(fetcher, "https://alpha.example")
	f := newFixture(t, false, fetcher, standardReplies())

	report, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Sources, 3)
	assert.True(t, report.Sources[0].Skipped)
	assert.Equal(t, 3, report.Inserted())
}

func TestRunIsolatesExtractionParseFailure(t *testing.T) {
	t.Parallel()

	replies := standardReplies()
	replies["ALPHA"] = "Sorry, I could not find any policies."
	f := newFixture(t, false, allSources(), replies)

	report, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Sources, 3)
	assert.ErrorIs(t, report.Sources[0].Err, llm.ErrExtractionParse)
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, 3, report.Inserted(), "beta and gamma still run")
	assert.Equal(t, 3, f.extractor.calls)
}

func TestRunFailFastAbortsRemainingSources(t *testing.T) {
	t.Parallel()

	replies := standardReplies()
	replies["ALPHA"] = "not json"
	f := newFixture(t, true, allSources(), replies)

	report, err := f.pipeline.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrExtractionParse)
	assert.Len(t, report.Sources, 1)
	assert.Equal(t, 1, f.extractor.calls)
	assert.Empty(t, f.repo.policies)
	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "Run aborted")
}

func TestRunMissingContainerIsSourceError(t *testing.T) {
	t.Parallel()

	fetcher := allSources()
	fetcher["https://beta.example"] = "<html><body><p>redesigned</p></body></html>"
	f := newFixture(t, false, fetcher, standardReplies())

	report, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Error(t, report.Sources[1].Err)
	assert.Equal(t, 3, report.Inserted())
}

func TestRunInsertFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false, allSources(), standardReplies())
	f.repo.reject["Travel Policy"] = true

	report, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sources[0].Inserted)
	assert.Equal(t, 1, report.Sources[0].InsertFailed)
	assert.Equal(t, 3, report.Inserted())
	assert.Len(t, f.audit.records, 5, "every decision is still recorded")
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false, allSources(), standardReplies())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.extractor.calls)
}

func TestBuildSummaryMessage(t *testing.T) {
	t.Parallel()

	msg := buildSummaryMessage(RunReport{
		RunID: "run-1",
		Sources: []SourceReport{
			{Source: "alpha", Candidates: 2, Inserted: 1, Duplicates: 1},
			{Source: "beta", Skipped: true},
			{Source: "gamma", Err: errors.New("boom")},
		},
	}, nil)

	assert.Contains(t, msg, "Policy scan run-1")
	assert.Contains(t, msg, "Inserted: 1, skipped: 1, failed sources: 1")
	assert.Contains(t, msg, "- alpha: 2 candidates, 1 new, 1 duplicates")
	assert.Contains(t, msg, "- beta: no content")
	assert.Contains(t, msg, "- gamma: error: boom")
	assert.NotContains(t, msg, "Run aborted")
}
