// Package dedup decides whether an extracted candidate duplicates a stored policy.
//
// Stage 1 compares the trimmed title against every stored, non-deleted title.
// Stage 2 asks the semantic classifier, and only looks at policies stored by
// other sources; same-source records pass on title alone.
package dedup

import (
	"context"
	"fmt"
	"strings"

	"PolicyScanner/internal/domain"
	"PolicyScanner/internal/ports"
)

// Stage identifies which check produced a decision.
type Stage string

const (
	StageExactTitle Stage = "exact-title"
	StageSemantic   Stage = "semantic"
)

// Decision is the outcome for one candidate.
type Decision struct {
	Duplicate bool
	Stage     Stage
	Verdict   domain.Verdict
}

// Store is the read side the engine needs.
type Store interface {
	ActiveTitles(ctx context.Context) (map[string]struct{}, error)
	ActiveExcludingSource(ctx context.Context, sourceName string) ([]domain.Candidate, error)
}

// Engine runs the two ordered dedup stages.
type Engine struct {
	store      Store
	classifier ports.Classifier
}

// NewEngine wires the store and classifier.
func NewEngine(store Store, classifier ports.Classifier) *Engine {
	return &Engine{store: store, classifier: classifier}
}

// IsDuplicate classifies candidate as coming from sourceName.
func (e *Engine) IsDuplicate(ctx context.Context, candidate domain.Candidate, sourceName string) (Decision, error) {
	title := strings.TrimSpace(candidate.Title)

	titles, err := e.store.ActiveTitles(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("load stored titles: %w", err)
	}
	if _, ok := titles[title]; ok {
		return Decision{Duplicate: true, Stage: StageExactTitle, Verdict: domain.VerdictDuplicate}, nil
	}

	references, err := e.store.ActiveExcludingSource(ctx, sourceName)
	if err != nil {
		return Decision{}, fmt.Errorf("load cross-source policies: %w", err)
	}
	if len(references) == 0 {
		return Decision{Duplicate: false, Stage: StageSemantic, Verdict: domain.VerdictUnique}, nil
	}

	verdict, err := e.classifier.Classify(ctx, candidate.Normalize(), references)
	if err != nil {
		return Decision{}, fmt.Errorf("semantic check: %w", err)
	}

	// Anything but an explicit unique verdict counts as a duplicate.
	return Decision{Duplicate: !verdict.IsUnique(), Stage: StageSemantic, Verdict: verdict}, nil
}
