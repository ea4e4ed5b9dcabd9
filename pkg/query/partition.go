// Package query turns a calendar date range into per-day upstream queries.
package query

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the textual day format embedded in every query.
const DateLayout = "2006-01-02"

// DefaultTemplate is the results path; %s receives the day in DateLayout.
const DefaultTemplate = "/results/results.json.php?lineDate=%s"

// Query is an opaque, day-scoped path fragment appended to an endpoint base URL.
type Query struct {
	Path string
	Day  time.Time
}

// String returns the path fragment.
func (q Query) String() string {
	return q.Path
}

// Date returns the query day in DateLayout.
func (q Query) Date() string {
	return q.Day.Format(DateLayout)
}

// InvalidRangeError is returned when the start date is after the end date.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

// Error implements the error interface.
func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: start %s is after end %s",
		e.Start.Format(DateLayout), e.End.Format(DateLayout))
}

// Partitioner builds query sequences from a path template.
type Partitioner struct {
	template string
}

// NewPartitioner creates a partitioner for the given template.
// The template must contain exactly one %s verb; an empty template selects DefaultTemplate.
func NewPartitioner(template string) (*Partitioner, error) {
	if template == "" {
		template = DefaultTemplate
	}
	if strings.Count(template, "%s") != 1 || strings.Count(template, "%") != 1 {
		return nil, fmt.Errorf("query template must contain exactly one %%s verb: %q", template)
	}
	return &Partitioner{template: template}, nil
}

// Partition is shorthand for partitioning with DefaultTemplate.
func Partition(start, end time.Time) (*Sequence, error) {
	p := &Partitioner{template: DefaultTemplate}
	return p.Partition(start, end)
}

// Partition returns the lazy sequence of one query per calendar day in [start, end].
// Time of day is ignored; days are taken in start's location.
func (p *Partitioner) Partition(start, end time.Time) (*Sequence, error) {
	first := StartOfDay(start)
	last := StartOfDay(end.In(start.Location()))
	if first.After(last) {
		return nil, &InvalidRangeError{Start: start, End: end}
	}

	days := 0
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days++
	}

	return &Sequence{template: p.template, first: first, days: days}, nil
}

// Sequence is a finite, restartable, chronological iterator of queries.
// It is not safe for concurrent use; call All for a shareable slice.
type Sequence struct {
	template string
	first    time.Time
	days     int
	cursor   int
}

// Next returns the next query, or false once the sequence is exhausted.
func (s *Sequence) Next() (Query, bool) {
	if s.cursor >= s.days {
		return Query{}, false
	}
	q := s.at(s.cursor)
	s.cursor++
	return q, true
}

// Reset rewinds the sequence to its first day.
func (s *Sequence) Reset() {
	s.cursor = 0
}

// Len returns the total number of queries (days) in the sequence.
func (s *Sequence) Len() int {
	return s.days
}

// All materialises every query without disturbing the iteration cursor.
func (s *Sequence) All() []Query {
	out := make([]Query, 0, s.days)
	for i := 0; i < s.days; i++ {
		out = append(out, s.at(i))
	}
	return out
}

// Window returns the half-open time window [first day 00:00, day after last 00:00)
// that covers every query of the sequence.
func (s *Sequence) Window() (from, to time.Time) {
	return s.first, s.first.AddDate(0, 0, s.days)
}

func (s *Sequence) at(i int) Query {
	day := s.first.AddDate(0, 0, i)
	return Query{
		Path: fmt.Sprintf(s.template, day.Format(DateLayout)),
		Day:  day,
	}
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDay parses a YYYY-MM-DD string as midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
}
