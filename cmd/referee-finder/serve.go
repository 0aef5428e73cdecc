package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpserver "github.com/helixir/referee-finder/internal/server/http"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs, health checks and metrics over HTTP",
		Long: `serve exposes the run store read-only:

  GET /healthz, /readyz                   liveness and database readiness
  GET /metrics                            Prometheus metrics
  GET /api/v1/runs/{id}                   run summary
  GET /api/v1/runs/{id}/referees?title=   preprint to referee map`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg

	db, repo, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := httpserver.NewServer(httpserver.Config{
		Address:        cfg.Server.HTTPAddress(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MetricsPath:    cfg.Metrics.Path,
		DisableMetrics: !cfg.Metrics.Enabled,
	}, a.logger,
		httpserver.WithRunRepository(repo),
		httpserver.WithHealthChecker(db),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.logger.Info().Msg("shutdown signal received")
	}

	a.shutdownServer(srv)
	return nil
}

// shutdownServer stops srv within the configured shutdown timeout.
func (a *app) shutdownServer(srv *httpserver.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("http server shutdown failed")
	}
}
