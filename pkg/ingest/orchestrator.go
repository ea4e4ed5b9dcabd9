package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/results-ingest/pkg/logging"
	"github.com/Sternrassler/results-ingest/pkg/model"
	"github.com/Sternrassler/results-ingest/pkg/query"
	"github.com/Sternrassler/results-ingest/pkg/runlog"
	"github.com/Sternrassler/results-ingest/pkg/store"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// EndpointPool is initialized at the start of every run. *endpoint.Pool and
// *endpoint.Provider satisfy it.
type EndpointPool interface {
	Initialize(ctx context.Context) error
}

// renewer is implemented by pools that can replace a failed or stale
// discovery between runs.
type renewer interface {
	Renew()
}

// QueryFetcher fetches one query to completion. *client.Retrier satisfies it.
type QueryFetcher interface {
	Run(ctx context.Context, q query.Query) (*model.RawDocument, error)
}

// Normalizer turns a document into a batch. *normalize.Normalizer satisfies it.
type Normalizer interface {
	Normalize(doc *model.RawDocument, q query.Query) (model.Batch, error)
}

// BatchWriter persists one batch. *store.Persister satisfies it.
type BatchWriter interface {
	Persist(ctx context.Context, batch model.Batch) error
}

// RunRecorder records finished runs. *runlog.Ledger satisfies it.
type RunRecorder interface {
	Record(ctx context.Context, r runlog.Run) error
}

// Deps wires the orchestrator's collaborators. Ledger is optional.
type Deps struct {
	Partitioner *query.Partitioner
	Pool        EndpointPool
	Fetcher     QueryFetcher
	Normalizer  Normalizer
	Writer      BatchWriter
	Store       store.EventStore
	Ledger      RunRecorder
}

// Orchestrator runs ingestion for date ranges. One run at a time.
type Orchestrator struct {
	deps    Deps
	running atomic.Bool
	logger  zerolog.Logger
}

// New creates an orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Partitioner == nil {
		p, err := query.NewPartitioner("")
		if err != nil {
			return nil, err
		}
		deps.Partitioner = p
	}
	switch {
	case deps.Pool == nil:
		return nil, fmt.Errorf("endpoint pool is required")
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("fetcher is required")
	case deps.Normalizer == nil:
		return nil, fmt.Errorf("normalizer is required")
	case deps.Writer == nil:
		return nil, fmt.Errorf("batch writer is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("event store is required")
	}

	return &Orchestrator{
		deps:   deps,
		logger: logging.NewLogger("orchestrator"),
	}, nil
}

// Running reports whether a run is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Run ingests every day in [start, end].
//
// Failed days do not fail the run; they are counted and listed in the report.
// Run returns an error only for an invalid range, endpoint discovery failure,
// a failing delete or index step, cancellation, or a concurrent run.
func (o *Orchestrator) Run(ctx context.Context, start, end time.Time) (*Report, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer o.running.Store(false)

	report := &Report{
		RunID:     uuid.NewString(),
		From:      query.StartOfDay(start),
		To:        query.StartOfDay(end),
		StartedAt: time.Now(),
	}
	logger := o.logger.With().Str(logging.FieldRunID, report.RunID).Logger()

	err := o.run(ctx, report, logger)

	report.FinishedAt = time.Now()
	runDuration.Observe(report.Duration().Seconds())

	switch {
	case err != nil:
		runsTotal.WithLabelValues("error").Inc()
		logger.Error().Err(err).Dur("duration", report.Duration()).Msg("Ingestion run failed")
		return report, err
	case report.Failed > 0:
		runsTotal.WithLabelValues("partial").Inc()
	default:
		runsTotal.WithLabelValues("success").Inc()
	}

	if o.deps.Ledger != nil {
		if err := o.deps.Ledger.Record(ctx, report.ledgerRun()); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run in ledger")
		}
	}

	logger.Info().
		Int("queries", report.Queries).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("events", report.Events).
		Dur("duration", report.Duration()).
		Msg("Ingestion run complete")

	return report, nil
}

func (o *Orchestrator) run(ctx context.Context, report *Report, logger zerolog.Logger) error {
	seq, err := o.deps.Partitioner.Partition(report.From, report.To)
	if err != nil {
		return err
	}
	report.Queries = seq.Len()

	from, to := seq.Window()
	deleted, err := o.deps.Store.DeleteRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("clear window %s..%s: %w", from.Format(query.DateLayout), to.Format(query.DateLayout), err)
	}
	report.Deleted = deleted

	logger.Info().
		Str("from", report.From.Format(query.DateLayout)).
		Str("to", report.To.Format(query.DateLayout)).
		Int("queries", report.Queries).
		Int64("deleted", deleted).
		Msg("Starting ingestion run")

	if r, ok := o.deps.Pool.(renewer); ok {
		r.Renew()
	}
	discovery := make(chan error, 1)
	go func() {
		discovery <- o.deps.Pool.Initialize(ctx)
	}()

	results := make(chan PipelineResult, seq.Len())
	var wg sync.WaitGroup
	for q, ok := seq.Next(); ok; q, ok = seq.Next() {
		wg.Add(1)
		go func(q query.Query) {
			defer wg.Done()
			results <- o.pipeline(ctx, q, logger)
		}(q)
	}

	// Close results channel when all pipelines are done
	go func() {
		wg.Wait()
		close(results)
	}()

	for result := range results {
		if result.Err != nil {
			report.Failed++
			report.Failures = append(report.Failures, result)
			report.errs = multierror.Append(report.errs, fmt.Errorf("%s: %w", result.Query.Path, result.Err))
			pipelinesTotal.WithLabelValues(string(result.Stage) + "_failed").Inc()
			continue
		}
		report.Succeeded++
		report.Events += result.Events
		pipelinesTotal.WithLabelValues("success").Inc()
	}

	if err := <-discovery; err != nil {
		return fmt.Errorf("endpoint discovery: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := o.deps.Store.EnsureUniqueIndex(ctx); err != nil {
		return err
	}

	return nil
}

// pipeline runs fetch → normalize → persist for one query. Failures are logged
// here with their query and returned in the result, never propagated.
func (o *Orchestrator) pipeline(ctx context.Context, q query.Query, logger zerolog.Logger) PipelineResult {
	result := PipelineResult{Query: q}

	fail := func(stage Stage, err error) PipelineResult {
		result.Stage = stage
		result.Err = err
		logger.Warn().
			Err(err).
			Str(logging.FieldQuery, q.Path).
			Str(logging.FieldDay, q.Date()).
			Str("stage", string(stage)).
			Msg("Pipeline failed")
		return result
	}

	doc, err := o.deps.Fetcher.Run(ctx, q)
	if err != nil {
		return fail(StageFetch, err)
	}

	batch, err := o.deps.Normalizer.Normalize(doc, q)
	if err != nil {
		return fail(StageNormalize, err)
	}

	if err := o.deps.Writer.Persist(ctx, batch); err != nil {
		return fail(StagePersist, err)
	}

	result.Events = batch.Len()
	logger.Debug().
		Str(logging.FieldQuery, q.Path).
		Int("events", result.Events).
		Msg("Pipeline complete")

	return result
}
