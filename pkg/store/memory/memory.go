// Package memory is an in-process event store with the same contract as the Postgres store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/results-ingest/pkg/model"
	"github.com/Sternrassler/results-ingest/pkg/store"
)

// Store keeps events in a map keyed by (name, startTime). It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	events map[model.Key]model.Event
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{events: make(map[model.Key]model.Event)}
}

// InsertMany inserts all events or, on any duplicate key, none.
func (s *Store) InsertMany(ctx context.Context, events []model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[model.Key]struct{}, len(events))
	for _, ev := range events {
		key := ev.Key()
		if _, ok := s.events[key]; ok {
			return fmt.Errorf("%w: %q at %d already stored", store.ErrDuplicate, key.Name, key.StartTime)
		}
		if _, ok := batch[key]; ok {
			return fmt.Errorf("%w: %q at %d repeated in batch", store.ErrDuplicate, key.Name, key.StartTime)
		}
		batch[key] = struct{}{}
	}

	for _, ev := range events {
		s.events[ev.Key()] = ev
	}
	return nil
}

// DeleteRange removes events with from <= startTime < to.
func (s *Store) DeleteRange(ctx context.Context, from, to time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, ev := range s.events {
		if inWindow(ev, from, to) {
			delete(s.events, key)
			n++
		}
	}
	return n, nil
}

// EnsureUniqueIndex is a no-op: the map key is the uniqueness constraint.
func (s *Store) EnsureUniqueIndex(ctx context.Context) error {
	return ctx.Err()
}

// FindByStartTime returns events with from <= startTime < to, ordered by startTime then name.
func (s *Store) FindByStartTime(ctx context.Context, from, to time.Time, limit int) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]model.Event, 0)
	for _, ev := range s.events {
		if inWindow(ev, from, to) {
			out = append(out, ev)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].Name < out[j].Name
	})
	return truncate(out, limit), nil
}

// FindByNamePrefix returns events whose name starts with prefix, ordered by name then newest first.
func (s *Store) FindByNamePrefix(ctx context.Context, prefix string, limit int) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]model.Event, 0)
	for _, ev := range s.events {
		if strings.HasPrefix(ev.Name, prefix) {
			out = append(out, ev)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].StartTime > out[j].StartTime
	})
	return truncate(out, limit), nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *Store) Close() {}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func inWindow(ev model.Event, from, to time.Time) bool {
	return ev.StartTime >= from.Unix() && ev.StartTime < to.Unix()
}

func truncate(events []model.Event, limit int) []model.Event {
	if limit > 0 && len(events) > limit {
		return events[:limit]
	}
	return events
}
