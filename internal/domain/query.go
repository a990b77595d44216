package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the YYYY-MM-DD layout used for date windows.
const DateLayout = "2006-01-02"

// Query describes one pipeline run. It is built once and never mutated.
type Query struct {
	Terms      []string
	Start      time.Time
	End        time.Time
	MaxRecords int
}

// Validate checks bounds against now and reports ErrInvalidQuery on violations.
func (q Query) Validate(now time.Time) error {
	if len(q.Terms) == 0 {
		return fmt.Errorf("%w: at least one term is required", ErrInvalidQuery)
	}
	for i, term := range q.Terms {
		if strings.TrimSpace(term) == "" {
			return fmt.Errorf("%w: term %d is blank", ErrInvalidQuery, i)
		}
	}
	if q.MaxRecords < 1 {
		return fmt.Errorf("%w: max records must be at least 1, got %d", ErrInvalidQuery, q.MaxRecords)
	}
	if q.Start.After(q.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidQuery,
			q.Start.Format(DateLayout), q.End.Format(DateLayout))
	}
	if q.End.After(now) {
		return fmt.Errorf("%w: end %s is in the future", ErrInvalidQuery, q.End.Format(DateLayout))
	}
	return nil
}

// SearchQuery is the composed request handed to a source.
type SearchQuery struct {
	Text  string
	Since time.Time
	Until time.Time
}

// BuildSearch composes the source query: terms, language, date window and reply filter.
func (q Query) BuildSearch(language string) SearchQuery {
	var b strings.Builder
	b.WriteString(strings.Join(q.Terms, " "))
	if language != "" {
		b.WriteString(" lang:")
		b.WriteString(language)
	}
	b.WriteString(" since:")
	b.WriteString(q.Start.Format(DateLayout))
	b.WriteString(" until:")
	b.WriteString(q.End.Format(DateLayout))
	b.WriteString(" -filter:replies")

	return SearchQuery{
		Text:  b.String(),
		Since: q.Start,
		Until: q.End,
	}
}

// ParseDate converts a YYYY-MM-DD string to a UTC midnight time.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parse date %q: %v", ErrInvalidQuery, value, err)
	}
	return t, nil
}
