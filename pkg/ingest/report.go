package ingest

import (
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Sternrassler/results-ingest/pkg/query"
	"github.com/Sternrassler/results-ingest/pkg/runlog"
)

// Stage names the pipeline step a failure happened in.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageNormalize Stage = "normalize"
	StagePersist   Stage = "persist"
)

// PipelineResult is the outcome of one day's pipeline.
type PipelineResult struct {
	Query  query.Query
	Events int
	Stage  Stage
	Err    error
}

// Report summarizes a run.
type Report struct {
	RunID      string
	From       time.Time
	To         time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Queries    int
	Succeeded  int
	Failed     int
	Events     int
	Deleted    int64
	Failures   []PipelineResult

	errs *multierror.Error
}

// FailureErr returns every pipeline failure combined, or nil.
func (r *Report) FailureErr() error {
	return r.errs.ErrorOrNil()
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedDays returns the days whose pipeline failed, in DateLayout and sorted.
func (r *Report) FailedDays() []string {
	if len(r.Failures) == 0 {
		return nil
	}
	days := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		days = append(days, f.Query.Date())
	}
	sort.Strings(days)
	return days
}

// Includes reports whether day lies inside the run's range.
func (r *Report) Includes(day time.Time) bool {
	date := day.Format(query.DateLayout)
	return date >= r.From.Format(query.DateLayout) && date <= r.To.Format(query.DateLayout)
}

// Covers reports whether day lies inside the run's range and its pipeline succeeded.
func (r *Report) Covers(day time.Time) bool {
	if !r.Includes(day) {
		return false
	}
	date := day.Format(query.DateLayout)
	for _, f := range r.Failures {
		if f.Query.Date() == date {
			return false
		}
	}
	return true
}

// ledgerRun converts the report into a ledger record.
func (r *Report) ledgerRun() runlog.Run {
	run := runlog.Run{
		ID:         r.RunID,
		From:       r.From.Format(query.DateLayout),
		To:         r.To.Format(query.DateLayout),
		StartedAt:  r.StartedAt.UTC(),
		FinishedAt: r.FinishedAt.UTC(),
		Queries:    r.Queries,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Events:     r.Events,
		Deleted:    r.Deleted,
		FailedDays: r.FailedDays(),
	}
	if err := r.FailureErr(); err != nil {
		run.Error = err.Error()
	}
	return run
}
