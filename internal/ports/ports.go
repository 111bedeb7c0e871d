package ports

import (
	"context"
	"time"

	"PolicyScanner/internal/domain"
)

// PageFetcher retrieves raw page markup. ok is false when nothing usable came back.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (markup string, ok bool)
}

// Extractor turns container markup into policy candidates via an LLM.
type Extractor interface {
	Extract(ctx context.Context, markup string) ([]domain.Candidate, error)
}

// Classifier decides whether a candidate is semantically new against reference policies.
type Classifier interface {
	Classify(ctx context.Context, target domain.Candidate, references []domain.Candidate) (domain.Verdict, error)
}

// InsertResult summarizes an unordered batch insert.
type InsertResult struct {
	Inserted int
	Failed   int
	Err      error
}

// PolicyRepository stores policies and answers dedup lookups.
type PolicyRepository interface {
	ActiveTitles(ctx context.Context) (map[string]struct{}, error)
	ActiveExcludingSource(ctx context.Context, sourceName string) ([]domain.Candidate, error)
	InsertBatch(ctx context.Context, policies []domain.Policy) InsertResult
}

// LogRepository persists audit records.
type LogRepository interface {
	InsertLog(ctx context.Context, record domain.LogRecord) error
}

// AuditRecorder accepts one record per candidate decision.
type AuditRecorder interface {
	Record(ctx context.Context, record domain.LogRecord) error
}

// Notifier streams a run summary to Telegram or other channels.
type Notifier interface {
	PublishSummary(ctx context.Context, summary string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
