package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"PolicyScanner/internal/domain"
	"PolicyScanner/internal/ports"
)

// ErrExtractionParse marks a model reply that is not a strict array of {title, description}.
var ErrExtractionParse = errors.New("extraction response is not a valid policy array")

var fenceExpr = regexp.MustCompile("```(?:json|JSON)?\\s*|\\s*```")

// Extractor asks the model to turn container markup into policy candidates.
type Extractor struct {
	completer Completer
}

var _ ports.Extractor = (*Extractor)(nil)

// NewExtractor wires a completer.
func NewExtractor(completer Completer) *Extractor {
	return &Extractor{completer: completer}
}

// Extract sends markup with the fixed extraction prompt and parses the reply.
func (e *Extractor) Extract(ctx context.Context, markup string) ([]domain.Candidate, error) {
	if e.completer == nil {
		return nil, errors.New("extractor has no completer")
	}

	reply, err := e.completer.Complete(ctx, extractionPrompt, markup)
	if err != nil {
		return nil, fmt.Errorf("extract policies: %w", err)
	}

	return ParseCandidates(reply)
}

// ParseCandidates strips code fences and decodes a strict JSON array of candidates.
func ParseCandidates(reply string) ([]domain.Candidate, error) {
	text := strings.TrimSpace(fenceExpr.ReplaceAllString(reply, ""))

	dec := json.NewDecoder(strings.NewReader(text))
	var items []map[string]json.RawMessage
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionParse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing content after array", ErrExtractionParse)
	}
	if items == nil {
		return nil, fmt.Errorf("%w: not an array", ErrExtractionParse)
	}

	candidates := make([]domain.Candidate, 0, len(items))
	for i, item := range items {
		candidate, err := decodeCandidate(item)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrExtractionParse, i, err)
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func decodeCandidate(item map[string]json.RawMessage) (domain.Candidate, error) {
	if item == nil {
		return domain.Candidate{}, errors.New("not an object")
	}
	if len(item) != 2 {
		return domain.Candidate{}, fmt.Errorf("expected exactly 2 keys, got %d", len(item))
	}

	title, err := stringField(item, "title")
	if err != nil {
		return domain.Candidate{}, err
	}
	description, err := stringField(item, "description")
	if err != nil {
		return domain.Candidate{}, err
	}

	return domain.Candidate{Title: title, Description: description}.Normalize(), nil
}

func stringField(item map[string]json.RawMessage, key string) (string, error) {
	raw, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing %q", key)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", fmt.Errorf("%q must be a string", key)
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("%q: %w", key, err)
	}
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%q is empty", key)
	}
	return value, nil
}
