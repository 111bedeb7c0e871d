package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"PolicyScanner/internal/dates"
	"PolicyScanner/internal/dedup"
	"PolicyScanner/internal/domain"
	"PolicyScanner/internal/infrastructure/parser"
	"PolicyScanner/internal/metrics"
	"PolicyScanner/internal/ports"
	"PolicyScanner/internal/source"
)

// DuplicateChecker runs both dedup stages for one candidate.
type DuplicateChecker interface {
	IsDuplicate(ctx context.Context, candidate domain.Candidate, sourceName string) (dedup.Decision, error)
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Sources    *source.Registry
	Fetcher    ports.PageFetcher
	Extractor  ports.Extractor
	Dedup      DuplicateChecker
	Repository ports.PolicyRepository
	Audit      ports.AuditRecorder
	Notifier   ports.Notifier
	Metrics    *metrics.Pipeline
	Logger     *zap.Logger
	// FailFast aborts the whole run on the first source error instead of moving on.
	FailFast bool
}

// Pipeline implements the policy-ingestion workflow.
type Pipeline struct {
	sources    *source.Registry
	fetcher    ports.PageFetcher
	extractor  ports.Extractor
	dedup      DuplicateChecker
	repository ports.PolicyRepository
	audit      ports.AuditRecorder
	notifier   ports.Notifier
	metrics    *metrics.Pipeline
	logger     *zap.Logger
	failFast   bool
	now        func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		sources:    deps.Sources,
		fetcher:    deps.Fetcher,
		extractor:  deps.Extractor,
		dedup:      deps.Dedup,
		repository: deps.Repository,
		audit:      deps.Audit,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     logger,
		failFast:   deps.FailFast,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SourceReport is the outcome of one source within a run.
type SourceReport struct {
	Source       string
	Skipped      bool
	Candidates   int
	Duplicates   int
	Inserted     int
	InsertFailed int
	Err          error
}

// RunReport summarizes a full pass over every source.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Sources    []SourceReport
}

// Inserted totals inserted policies across sources.
func (r RunReport) Inserted() int {
	total := 0
	for _, s := range r.Sources {
		total += s.Inserted
	}
	return total
}

// Duplicates totals skipped candidates across sources.
func (r RunReport) Duplicates() int {
	total := 0
	for _, s := range r.Sources {
		total += s.Duplicates
	}
	return total
}

// Failed counts sources that ended with an error.
func (r RunReport) Failed() int {
	total := 0
	for _, s := range r.Sources {
		if s.Err != nil {
			total++
		}
	}
	return total
}

type decided struct {
	candidate domain.Candidate
	decision  dedup.Decision
}

// Run visits every source sequentially. A source error is logged and the run
// moves on, unless FailFast is set, in which case it is returned.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{RunID: uuid.NewString(), StartedAt: p.now()}
	if p.sources == nil {
		report.FinishedAt = p.now()
		return report, nil
	}

	logger := p.logger.With(zap.String("run_id", report.RunID))
	logger.Info("pipeline run started", zap.Int("sources", p.sources.Len()))

	runErr := p.visitSources(ctx, logger, &report)

	report.FinishedAt = p.now()
	result := "ok"
	if runErr != nil {
		result = "failed"
	}
	p.metrics.ObserveRun(result, report.FinishedAt.Sub(report.StartedAt))

	logger.Info("pipeline run finished",
		zap.String("result", result),
		zap.Int("inserted", report.Inserted()),
		zap.Int("duplicates", report.Duplicates()),
		zap.Int("failed_sources", report.Failed()),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)

	p.notify(ctx, logger, report, runErr)
	return report, runErr
}

func (p *Pipeline) visitSources(ctx context.Context, logger *zap.Logger, report *RunReport) error {
	for _, def := range p.sources.All() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled: %w", err)
		}

		srcLogger := logger.With(zap.String("source", def.Name), zap.String("url", def.URL))
		srcReport, err := p.processSource(ctx, srcLogger, def)
		if err != nil {
			srcReport.Err = err
			srcLogger.Error("source failed", zap.Error(err))
			p.metrics.ObserveSource(def.Name, metrics.OutcomeFailed)
			report.Sources = append(report.Sources, srcReport)
			if p.failFast {
				return fmt.Errorf("source %s: %w", def.Name, err)
			}
			continue
		}

		outcome := metrics.OutcomeProcessed
		if srcReport.Skipped {
			outcome = metrics.OutcomeSkipped
		}
		p.metrics.ObserveSource(def.Name, outcome)
		report.Sources = append(report.Sources, srcReport)
	}
	return nil
}

func (p *Pipeline) processSource(ctx context.Context, logger *zap.Logger, def domain.SourceDefinition) (SourceReport, error) {
	report := SourceReport{Source: def.Name}

	logger.Info("fetching source")
	markup, ok := p.fetcher.Fetch(ctx, def.URL)
	if !ok {
		logger.Warn("no content returned, skipping source")
		report.Skipped = true
		return report, nil
	}

	section, err := parser.Locate(markup, def)
	if err != nil {
		return report, fmt.Errorf("locate container: %w", err)
	}

	var publishedAt *time.Time
	if def.HasPublishedAt() && section.PublishedText != "" {
		publishedAt = dates.Parse(section.PublishedText)
		if publishedAt == nil {
			logger.Debug("unrecognised publish date", zap.String("raw", section.PublishedText))
		}
	}

	candidates, err := p.extractor.Extract(ctx, section.ContainerHTML)
	if err != nil {
		return report, fmt.Errorf("extract candidates: %w", err)
	}
	report.Candidates = len(candidates)
	logger.Info("candidates extracted", zap.Int("count", len(candidates)))

	decisions := make([]decided, 0, len(candidates))
	batch := make([]domain.Policy, 0, len(candidates))
	for _, raw := range candidates {
		candidate := raw.Normalize()
		decision, err := p.dedup.IsDuplicate(ctx, candidate, def.Name)
		if err != nil {
			return report, fmt.Errorf("dedup %q: %w", candidate.Title, err)
		}
		p.metrics.ObserveDecision(def.Name, string(decision.Stage), decision.Duplicate)
		decisions = append(decisions, decided{candidate: candidate, decision: decision})

		if decision.Duplicate {
			report.Duplicates++
			continue
		}
		batch = append(batch, domain.Policy{
			Title:       candidate.Title,
			Description: candidate.Description,
			SourceName:  def.Name,
			SourceURL:   def.URL,
			PublishedAt: publishedAt,
		})
	}

	if len(batch) > 0 && p.repository != nil {
		result := p.repository.InsertBatch(ctx, batch)
		report.Inserted = result.Inserted
		report.InsertFailed = result.Failed
		p.metrics.ObserveInsert(result.Inserted, result.Failed)
		if result.Err != nil {
			logger.Warn("batch insert partially failed",
				zap.Int("inserted", result.Inserted),
				zap.Int("failed", result.Failed),
				zap.Error(result.Err))
		} else {
			logger.Info("batch inserted", zap.Int("inserted", result.Inserted))
		}
	}

	p.recordDecisions(ctx, logger, def.Name, decisions)
	return report, nil
}

func (p *Pipeline) recordDecisions(ctx context.Context, logger *zap.Logger, sourceName string, decisions []decided) {
	if p.audit == nil {
		return
	}
	for _, d := range decisions {
		action := domain.ActionInserting
		if d.decision.Duplicate {
			action = domain.ActionSkipping
		}
		err := p.audit.Record(ctx, domain.LogRecord{
			Action:      action,
			IsDuplicate: d.decision.Duplicate,
			Title:       d.candidate.Title,
			Description: d.candidate.Description,
			SourceName:  sourceName,
		})
		if err != nil {
			p.metrics.ObserveAuditFailure()
			logger.Warn("audit record incomplete", zap.String("title", d.candidate.Title), zap.Error(err))
		}
	}
}

func (p *Pipeline) notify(ctx context.Context, logger *zap.Logger, report RunReport, runErr error) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.PublishSummary(ctx, buildSummaryMessage(report, runErr)); err != nil {
		logger.Warn("run summary not delivered", zap.Error(err))
	}
}

func buildSummaryMessage(report RunReport, runErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Policy scan %s\n", report.RunID)
	fmt.Fprintf(&b, "Inserted: %d, skipped: %d, failed sources: %d\n",
		report.Inserted(), report.Duplicates(), report.Failed())

	for _, s := range report.Sources {
		switch {
		case s.Err != nil:
			fmt.Fprintf(&b, "- %s: error: %v\n", s.Source, s.Err)
		case s.Skipped:
			fmt.Fprintf(&b, "- %s: no content\n", s.Source)
		default:
			fmt.Fprintf(&b, "- %s: %d candidates, %d new, %d duplicates\n",
				s.Source, s.Candidates, s.Inserted, s.Duplicates)
		}
	}

	if runErr != nil {
		fmt.Fprintf(&b, "Run aborted: %v\n", runErr)
	}
	return b.String()
}
