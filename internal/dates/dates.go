// Package dates normalizes site-specific publication dates.
package dates

import (
	"strings"
	"time"
)

// layouts are tried in order; the first successful parse wins.
var layouts = []string{
	"02/01/2006",
	"2/1/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"2006-01-02",
}

// Parse returns the date in UTC, or nil when the input is empty or matches no known layout.
func Parse(value string) *time.Time {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return nil
	}

	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
	}
	return nil
}
