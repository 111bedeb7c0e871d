package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"PolicyScanner/internal/domain"
	"PolicyScanner/internal/ports"
)

const (
	uniqueToken    = "Yes"
	duplicateToken = "No"
)

// Classifier asks the model whether a candidate duplicates any reference policy.
type Classifier struct {
	completer Completer
}

var _ ports.Classifier = (*Classifier)(nil)

// NewClassifier wires a completer.
func NewClassifier(completer Completer) *Classifier {
	return &Classifier{completer: completer}
}

type classificationRequest struct {
	Target   domain.Candidate   `json:"target"`
	Existing []domain.Candidate `json:"existing"`
}

// Classify returns the typed verdict for target against references.
func (c *Classifier) Classify(ctx context.Context, target domain.Candidate, references []domain.Candidate) (domain.Verdict, error) {
	if c.completer == nil {
		return domain.VerdictAmbiguous, errors.New("classifier has no completer")
	}
	if references == nil {
		references = []domain.Candidate{}
	}

	payload, err := json.Marshal(classificationRequest{Target: target, Existing: references})
	if err != nil {
		return domain.VerdictAmbiguous, fmt.Errorf("marshal classification payload: %w", err)
	}

	reply, err := c.completer.Complete(ctx, classificationPrompt, string(payload))
	if err != nil {
		return domain.VerdictAmbiguous, fmt.Errorf("classify policy: %w", err)
	}

	return ParseVerdict(reply), nil
}

// ParseVerdict maps the model's single-token reply to a verdict. The match is literal.
func ParseVerdict(reply string) domain.Verdict {
	switch reply {
	case uniqueToken:
		return domain.VerdictUnique
	case duplicateToken:
		return domain.VerdictDuplicate
	default:
		return domain.VerdictAmbiguous
	}
}
