// Package runlog records completed ingestion runs in Redis so the API can
// tell whether a day has already been ingested.
package runlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/results-ingest/pkg/query"
)

// Redis keys for run records.
const (
	keyRunPrefix = "ingest:run:"
	keyLastRun   = "ingest:run:last"
	keyDayPrefix = "ingest:day:"
)

// ErrNoRun is returned when no run has been recorded for the requested key.
var ErrNoRun = errors.New("no ingestion run recorded")

// Run summarizes one ingestion run.
type Run struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Queries    int       `json:"queries"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Events     int       `json:"events"`
	Deleted    int64     `json:"deleted"`
	Error      string    `json:"error,omitempty"`
	// FailedDays lists days in [From, To] whose ingestion failed.
	FailedDays []string `json:"failed_days,omitempty"`
}

// Days returns every day in [From, To] in query.DateLayout.
func (r Run) Days() ([]string, error) {
	from, err := query.ParseDay(r.From, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("run %s: from: %w", r.ID, err)
	}
	to, err := query.ParseDay(r.To, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("run %s: to: %w", r.ID, err)
	}

	var days []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(query.DateLayout))
	}
	return days, nil
}

// Ledger stores runs in Redis.
type Ledger struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewLedger creates a ledger. A zero ttl keeps records forever.
func NewLedger(redisClient *redis.Client, ttl time.Duration) *Ledger {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Ledger{redis: redisClient, ttl: ttl}
}

// Record stores r and points the last-run key and every covered day at it.
// Days listed in r.FailedDays lose any earlier pointer, since the run already
// cleared their events; LastRunForDay then reports ErrNoRun for them.
func (l *Ledger) Record(ctx context.Context, r Run) error {
	if r.ID == "" {
		return fmt.Errorf("run id is required")
	}
	days, err := r.Days()
	if err != nil {
		return err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	pipe := l.redis.TxPipeline()
	pipe.Set(ctx, keyRunPrefix+r.ID, data, l.ttl)
	pipe.Set(ctx, keyLastRun, r.ID, l.ttl)
	failed := make(map[string]bool, len(r.FailedDays))
	for _, day := range r.FailedDays {
		failed[day] = true
	}
	for _, day := range days {
		if failed[day] {
			pipe.Del(ctx, keyDayPrefix+day)
			continue
		}
		pipe.Set(ctx, keyDayPrefix+day, r.ID, l.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store run in redis: %w", err)
	}
	return nil
}

// Get returns the run with the given id.
func (l *Ledger) Get(ctx context.Context, id string) (*Run, error) {
	data, err := l.redis.Get(ctx, keyRunPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoRun
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &r, nil
}

// Last returns the most recently recorded run.
func (l *Ledger) Last(ctx context.Context) (*Run, error) {
	return l.follow(ctx, keyLastRun)
}

// LastRunForDay returns the most recent run that covered day.
func (l *Ledger) LastRunForDay(ctx context.Context, day time.Time) (*Run, error) {
	return l.follow(ctx, keyDayPrefix+day.Format(query.DateLayout))
}

// Ping checks Redis connectivity.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.redis.Ping(ctx).Err()
}

func (l *Ledger) follow(ctx context.Context, key string) (*Run, error) {
	id, err := l.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoRun
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return l.Get(ctx, id)
}
