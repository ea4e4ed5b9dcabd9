package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/results-ingest/internal/app"
	"github.com/Sternrassler/results-ingest/internal/cronrunner"
	"github.com/Sternrassler/results-ingest/pkg/api"
	"github.com/Sternrassler/results-ingest/pkg/ingest"
	"github.com/Sternrassler/results-ingest/pkg/logging"
	"github.com/Sternrassler/results-ingest/pkg/query"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run scheduled ingestion.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			return serve(ctx, opts)
		},
	}
}

func serve(ctx context.Context, opts *rootOptions) error {
	logger := logging.NewLogger("serve")
	cfg := opts.cfg

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := app.Migrate(ctx, a.Store); err != nil {
		return err
	}

	srv, err := a.Server(ctx)
	if err != nil {
		return err
	}
	httpServer := api.NewHTTPServer(cfg.HTTPAddr, srv.Routes())

	if cfg.IngestSchedule != "" {
		runner := cronrunner.New(ctx, cfg.Location())
		if _, err := runner.Add(cfg.IngestSchedule, func(ctx context.Context) {
			today := query.StartOfDay(time.Now().In(cfg.Location()))
			_, err := a.Orchestrator.Run(ctx, today, today)
			if errors.Is(err, ingest.ErrRunInProgress) {
				logger.Info().Msg("Scheduled ingestion skipped, run in progress")
				return
			}
			if err != nil {
				logger.Error().Err(err).Msg("Scheduled ingestion failed")
			}
		}); err != nil {
			return err
		}
		runner.Start()
		defer runner.Stop()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("API server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown")
	}
	return nil
}
