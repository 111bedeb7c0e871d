package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"PolicyScanner/internal/domain"
)

// ErrContainerNotFound is returned when the container selector matches nothing.
var ErrContainerNotFound = errors.New("policy container not found")

// Section is the part of a page handed to extraction.
type Section struct {
	ContainerHTML string
	PublishedText string
}

// Locate finds the policy container and, when configured, the publication-date text.
func Locate(markup string, def domain.SourceDefinition) (Section, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Section{}, fmt.Errorf("parse document: %w", err)
	}

	container := doc.Find(def.ContainerSelector)
	if container.Length() == 0 {
		return Section{}, fmt.Errorf("%s: %w", def.ContainerSelector, ErrContainerNotFound)
	}

	inner, err := container.First().Html()
	if err != nil {
		return Section{}, fmt.Errorf("render container: %w", err)
	}
	if strings.TrimSpace(inner) == "" {
		return Section{}, fmt.Errorf("%s is empty: %w", def.ContainerSelector, ErrContainerNotFound)
	}

	section := Section{ContainerHTML: inner}
	if def.HasPublishedAt() {
		if published := doc.Find(def.PublishedAtSelector); published.Length() > 0 {
			section.PublishedText = strings.TrimSpace(published.Text())
		}
	}

	return section, nil
}
