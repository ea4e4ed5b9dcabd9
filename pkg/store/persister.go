package store

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/results-ingest/pkg/logging"
	"github.com/Sternrassler/results-ingest/pkg/model"
)

var (
	eventsPersistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "results_ingest_events_persisted_total",
		Help: "Total number of events written to the store",
	})

	persistErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "results_ingest_persist_errors_total",
		Help: "Total number of batches that failed to persist by kind",
	}, []string{"kind"}) // "duplicate", "transport"
)

// Persister writes batches to an EventStore. Failed batches are not retried.
type Persister struct {
	store  EventStore
	logger zerolog.Logger
}

// NewPersister creates a Persister.
func NewPersister(s EventStore) *Persister {
	return &Persister{
		store:  s,
		logger: logging.NewLogger("persister"),
	}
}

// Persist writes the batch with one bulk insert. Empty batches are a no-op.
// Failures are *PersistError.
func (p *Persister) Persist(ctx context.Context, batch model.Batch) error {
	if batch.Len() == 0 {
		p.logger.Debug().Str(logging.FieldQuery, batch.Source).Msg("Empty batch, nothing to persist")
		return nil
	}

	if err := p.store.InsertMany(ctx, batch.Events); err != nil {
		kind := KindTransport
		if errors.Is(err, ErrDuplicate) {
			kind = KindDuplicate
		}
		persistErrorsTotal.WithLabelValues(string(kind)).Inc()
		return &PersistError{Kind: kind, Source: batch.Source, Events: batch.Len(), Err: err}
	}

	eventsPersistedTotal.Add(float64(batch.Len()))
	p.logger.Debug().
		Str(logging.FieldQuery, batch.Source).
		Int("events", batch.Len()).
		Msg("Batch persisted")

	return nil
}
