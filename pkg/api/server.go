// Package api serves the ingestion trigger and the event query endpoints over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/results-ingest/pkg/ingest"
	"github.com/Sternrassler/results-ingest/pkg/logging"
	"github.com/Sternrassler/results-ingest/pkg/metrics"
	"github.com/Sternrassler/results-ingest/pkg/runlog"
	"github.com/Sternrassler/results-ingest/pkg/store"
)

// Result limits of the query endpoints.
const (
	DateLimit   = 10000
	SearchLimit = 100
)

// Ingester runs ingestion. *ingest.Orchestrator satisfies it.
type Ingester interface {
	Run(ctx context.Context, start, end time.Time) (*ingest.Report, error)
	Running() bool
}

// RunLookup finds the run that last covered a day. *runlog.Ledger satisfies it.
type RunLookup interface {
	LastRunForDay(ctx context.Context, day time.Time) (*runlog.Run, error)
}

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server settings.
type Config struct {
	// Location is the timezone calendar days are evaluated in.
	Location *time.Location

	// DefaultRangeDays is the span of a runparser call without from/to.
	DefaultRangeDays int

	// Now returns the current time (for testing).
	Now func() time.Time
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Location:         time.UTC,
		DefaultRangeDays: 365,
		Now:              time.Now,
	}
}

// Deps wires the server's collaborators. Ledger and Checks are optional.
type Deps struct {
	Ingester Ingester
	Reader   store.EventReader
	Ledger   RunLookup
	// Checks are pinged by /ready, keyed by name.
	Checks map[string]Pinger
}

// Server is the HTTP API.
type Server struct {
	cfg     Config
	deps    Deps
	baseCtx context.Context
	logger  zerolog.Logger

	// coveredDay is the last day a run started here ingested cleanly.
	// It stands in for the ledger when none is configured.
	mu         sync.Mutex
	coveredDay string
}

// NewServer creates a server. Ingestion runs started through the API use baseCtx,
// so they survive client disconnects and stop on shutdown.
func NewServer(baseCtx context.Context, cfg Config, deps Deps) (*Server, error) {
	if deps.Ingester == nil {
		return nil, fmt.Errorf("ingester is required")
	}
	if deps.Reader == nil {
		return nil, fmt.Errorf("event reader is required")
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	def := DefaultConfig()
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.DefaultRangeDays <= 0 {
		cfg.DefaultRangeDays = def.DefaultRangeDays
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}

	return &Server{
		cfg:     cfg,
		deps:    deps,
		baseCtx: baseCtx,
		logger:  logging.NewLogger("api"),
	}, nil
}

// Routes returns the router with every endpoint mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  func(*http.Request, string) bool { return true },
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/runparser", s.handleRunParser)
		r.Get("/events", s.handleEvents)
	})

	return r
}

// NewHTTPServer wraps handler in an http.Server with conservative timeouts.
// WriteTimeout is left open because synchronous runparser calls can last minutes.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
