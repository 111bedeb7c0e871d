package domain

import (
	"strings"
	"time"
)

// SourceDefinition is one configured site to crawl.
type SourceDefinition struct {
	Name                string
	URL                 string
	ContainerSelector   string
	PublishedAtSelector string
}

// HasPublishedAt reports whether the source defines a publication-date locator.
func (s SourceDefinition) HasPublishedAt() bool {
	return strings.TrimSpace(s.PublishedAtSelector) != ""
}

// Candidate is a policy produced by extraction that has not been accepted or rejected yet.
type Candidate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Normalize trims surrounding whitespace from both fields.
func (c Candidate) Normalize() Candidate {
	return Candidate{
		Title:       strings.TrimSpace(c.Title),
		Description: strings.TrimSpace(c.Description),
	}
}

// Policy is a stored HR policy record.
type Policy struct {
	ID          int64      `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	SourceName  string     `db:"source_name" json:"sourceName"`
	SourceURL   string     `db:"source_url" json:"sourceUrl"`
	PublishedAt *time.Time `db:"published_at" json:"publishedAt"`
	IsDeleted   bool       `db:"is_deleted" json:"isDeleted"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// Action labels an audit decision.
type Action string

const (
	ActionInserting Action = "inserting..."
	ActionSkipping  Action = "skipping..."
)

// LogRecord captures one accept/skip decision. Records are append-only.
type LogRecord struct {
	ID          int64     `db:"id" json:"id"`
	Action      Action    `db:"action" json:"action"`
	IsDuplicate bool      `db:"is_duplicate" json:"isDuplicate"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	SourceName  string    `db:"source_name" json:"sourceName"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Verdict is the typed outcome of the semantic classifier.
type Verdict int

const (
	VerdictAmbiguous Verdict = iota
	VerdictUnique
	VerdictDuplicate
)

func (v Verdict) String() string {
	switch v {
	case VerdictUnique:
		return "unique"
	case VerdictDuplicate:
		return "duplicate"
	default:
		return "ambiguous"
	}
}

// IsUnique is true only for an explicit unique verdict.
func (v Verdict) IsUnique() bool {
	return v == VerdictUnique
}
