// Package postgres stores events in PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/results-ingest/pkg/logging"
	"github.com/Sternrassler/results-ingest/pkg/model"
	"github.com/Sternrassler/results-ingest/pkg/store"
)

const tableName = "events"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id           bigserial   PRIMARY KEY,
		name         text        NOT NULL,
		start_time   bigint      NOT NULL,
		section_name text        NOT NULL DEFAULT '',
		payload      jsonb       NOT NULL,
		inserted_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS events_start_time_idx ON events (start_time)`,
	`CREATE INDEX IF NOT EXISTS events_name_prefix_idx ON events (name text_pattern_ops)`,
}

const uniqueIndex = `CREATE UNIQUE INDEX IF NOT EXISTS events_name_start_time_key ON events (name, start_time DESC)`

// Store is a Postgres-backed store.Store.
type Store struct {
	db     *pgxpool.Pool
	logger zerolog.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to the database at url.
func Open(ctx context.Context, url string) (*Store, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(db)
}

// New wraps an existing pool.
func New(db *pgxpool.Pool) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db must be non-nil")
	}
	return &Store{
		db:     db,
		logger: logging.NewLogger("postgres-store"),
	}, nil
}

// Migrate creates the table and all indexes, including the uniqueness index.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.DuplicateTable { // Someone else just created it, which is fine.
				continue
			}
			return fmt.Errorf("migrate: %w", err)
		}
	}
	if err := s.EnsureUniqueIndex(ctx); err != nil {
		return err
	}
	s.logger.Info().Str("table", tableName).Msg("Schema migrated")
	return nil
}

// InsertMany copies events into the table inside one transaction.
// A uniqueness violation rolls everything back and is reported as store.ErrDuplicate.
func (s *Store) InsertMany(ctx context.Context, events []model.Event) error {
	rows := make([][]any, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %q: %w", ev.Name, err)
		}
		rows = append(rows, []any{ev.Name, ev.StartTime, ev.SectionName, string(payload)})
	}

	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	}, func(tx pgx.Tx) error {
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{tableName},
			[]string{"name", "start_time", "section_name", "payload"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return err
		}
		if n != int64(len(rows)) {
			return fmt.Errorf("only %d out of %d rows were inserted", n, len(rows))
		}
		return nil
	})

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.Detail)
	}
	if err != nil {
		return fmt.Errorf("insert events: %w", err)
	}
	return nil
}

// DeleteRange removes events with from <= start_time < to.
func (s *Store) DeleteRange(ctx context.Context, from, to time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM events WHERE start_time >= $1 AND start_time < $2`,
		from.Unix(), to.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// EnsureUniqueIndex creates the (name, start_time) unique index when missing.
func (s *Store) EnsureUniqueIndex(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, uniqueIndex); err != nil {
		return fmt.Errorf("ensure unique index: %w", err)
	}
	return nil
}

// FindByStartTime returns events with from <= start_time < to.
func (s *Store) FindByStartTime(ctx context.Context, from, to time.Time, limit int) ([]model.Event, error) {
	return s.query(ctx,
		`SELECT payload FROM events
		 WHERE start_time >= $1 AND start_time < $2
		 ORDER BY start_time, name
		 LIMIT $3`,
		from.Unix(), to.Unix(), normalizeLimit(limit))
}

// FindByNamePrefix returns events whose name starts with prefix.
func (s *Store) FindByNamePrefix(ctx context.Context, prefix string, limit int) ([]model.Event, error) {
	return s.query(ctx,
		`SELECT payload FROM events
		 WHERE name LIKE $1 ESCAPE '\'
		 ORDER BY name, start_time DESC
		 LIMIT $2`,
		escapeLike(prefix)+"%", normalizeLimit(limit))
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() {
	s.db.Close()
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]model.Event, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Event, error) {
		var payload []byte
		if err := row.Scan(&payload); err != nil {
			return model.Event{}, err
		}
		var ev model.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return model.Event{}, fmt.Errorf("decode payload: %w", err)
		}
		return ev, nil
	})
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return math.MaxInt32
	}
	return limit
}
