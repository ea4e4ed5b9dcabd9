// Package store defines where normalized events are persisted and how a
// batch is written as one atomic unit.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/results-ingest/pkg/model"
)

// ErrDuplicate is returned by EventStore.InsertMany when an event's (name, startTime)
// key already exists in the store or appears twice in the same call.
var ErrDuplicate = errors.New("duplicate event key")

// EventStore is the write side used by ingestion.
type EventStore interface {
	// InsertMany inserts all events or none.
	InsertMany(ctx context.Context, events []model.Event) error

	// DeleteRange removes events with from <= startTime < to and returns how many were removed.
	DeleteRange(ctx context.Context, from, to time.Time) (int64, error)

	// EnsureUniqueIndex makes sure the (name, startTime) uniqueness constraint exists.
	EnsureUniqueIndex(ctx context.Context) error
}

// EventReader is the read side used by the HTTP API.
type EventReader interface {
	// FindByStartTime returns events with from <= startTime < to, ordered by startTime then name.
	FindByStartTime(ctx context.Context, from, to time.Time, limit int) ([]model.Event, error)

	// FindByNamePrefix returns events whose name starts with prefix, ordered by name.
	FindByNamePrefix(ctx context.Context, prefix string, limit int) ([]model.Event, error)
}

// Store is a complete backend.
type Store interface {
	EventStore
	EventReader

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close()
}
