// Package cronrunner runs context-aware jobs on standard five-field cron schedules.
package cronrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/results-ingest/pkg/logging"
)

// Runner wraps a cron scheduler whose jobs share a base context.
type Runner struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	baseCtx context.Context
}

// New creates a runner evaluating schedules in loc. Jobs receive baseCtx.
func New(baseCtx context.Context, loc *time.Location) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{
		cron:    cron.New(cron.WithLocation(loc)),
		logger:  logging.NewLogger("cron"),
		baseCtx: baseCtx,
	}
}

// Add registers job under a cron schedule and returns its entry id.
func (r *Runner) Add(schedule string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(schedule, func() {
		if err := r.baseCtx.Err(); err != nil {
			return
		}
		job(r.baseCtx)
	})
}

// Entries returns the number of registered jobs.
func (r *Runner) Entries() int {
	return len(r.cron.Entries())
}

// Start begins scheduling in the background.
func (r *Runner) Start() {
	r.logger.Info().Int("jobs", r.Entries()).Msg("Cron started")
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs to return.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info().Msg("Cron stopped")
}
