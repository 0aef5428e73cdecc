package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/referee-finder/internal/domain"
	"github.com/helixir/referee-finder/internal/events"
	"github.com/helixir/referee-finder/internal/observability"
	"github.com/helixir/referee-finder/internal/records"
	"github.com/helixir/referee-finder/internal/referee"
	"github.com/helixir/referee-finder/internal/repository"
	httpserver "github.com/helixir/referee-finder/internal/server/http"
)

// saveTimeout bounds persisting a run after the run context is done.
const saveTimeout = 30 * time.Second

// errInterrupted is returned when a signal stopped the run early.
var errInterrupted = errors.New("run interrupted")

type runOptions struct {
	view         string
	recordsPath  string
	maxPreprints int
	output       string
	compact      bool
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{maxPreprints: -1}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Find referees for every eligible preprint",
		Long: `run loads eligible preprints from the record store and, for each one, tries
PubMed, then OpenAlex, then Semantic Scholar until a provider yields at least
one cited paper whose methods overlap the preprint's. The run result is written
as JSON to stdout (or --output).

An interrupt (Ctrl-C) stops the run after the preprint in flight; the partial
result is still written and saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.run(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.view, "view", "", "record store view (default: records.view)")
	cmd.Flags().StringVar(&opts.recordsPath, "records", "", "YAML records file (default: records.path)")
	cmd.Flags().IntVar(&opts.maxPreprints, "max-preprints", -1, "process at most N preprints, 0 for all (default: pipeline.max_preprints)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the run result to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "write compact JSON")

	return cmd
}

func (a *app) run(ctx context.Context, opts *runOptions, stdout io.Writer) error {
	cfg := a.cfg
	if opts.view != "" {
		cfg.Records.View = opts.view
	}
	if opts.recordsPath != "" {
		cfg.Records.Path = opts.recordsPath
	}
	if opts.maxPreprints >= 0 {
		cfg.Pipeline.MaxPreprints = opts.maxPreprints
	}

	logger := a.logger.With().Str("component", "cli").Logger()
	metrics := observability.NewMetrics(cfg.Metrics.Namespace)

	if cfg.Server.Enabled {
		srv := httpserver.NewServer(httpserver.Config{
			Address:        cfg.Server.HTTPAddress(),
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MetricsPath:    cfg.Metrics.Path,
			DisableMetrics: !cfg.Metrics.Enabled,
		}, a.logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer a.shutdownServer(srv)
	}

	source, err := buildRecordSource(&cfg.Records, sourceMetrics(metrics))
	if err != nil {
		return err
	}
	recs, err := records.NewLoader(source, a.logger, metrics).Load(ctx, cfg.Records.View)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	coordinator, err := buildCoordinator(cfg, a.logger, metrics)
	if err != nil {
		return err
	}

	pipelineOpts := []referee.Option{
		referee.WithMetrics(metrics),
		referee.WithMaxPreprints(cfg.Pipeline.MaxPreprints),
		referee.WithPreprintTimeout(cfg.Pipeline.PreprintTimeout),
	}

	var repo repository.RunRepository
	if cfg.Database.Enabled {
		db, r, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = r
	}

	if cfg.Kafka.Enabled {
		publisher := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, a.logger, metrics)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close event publisher")
			}
		}()
		pipelineOpts = append(pipelineOpts, referee.WithPublisher(publisher))
	}

	result := referee.NewPipeline(coordinator, a.logger, pipelineOpts...).Run(ctx, recs)

	if err := writeResult(outputWriter(opts, stdout), result, !opts.compact); err != nil {
		return err
	}
	if opts.output != "" {
		logger.Info().Str("path", opts.output).Msg("run result written")
	}

	if repo != nil {
		// The run context may already be cancelled; a partial run is still saved.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		defer cancel()
		if err := repo.SaveRun(saveCtx, result); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		logger.Info().Str("run_id", result.RunID.String()).Msg("run saved")
	}

	if result.Cancelled {
		return errInterrupted
	}
	return nil
}

// outputWriter returns stdout or a lazily created output file.
func outputWriter(opts *runOptions, stdout io.Writer) io.Writer {
	if opts.output == "" {
		return stdout
	}
	return &fileWriter{path: opts.output}
}

// fileWriter creates its file on first write so a failed run leaves no
// empty output behind.
type fileWriter struct {
	path string
}

func (w *fileWriter) Write(p []byte) (int, error) {
	if err := os.WriteFile(w.path, p, 0o644); err != nil {
		return 0, err
	}
	return len(p), nil
}

// writeResult encodes the run result as JSON in a single write.
func writeResult(w io.Writer, result *domain.RunResult, indent bool) error {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(result, "", "  ")
	} else {
		data, err = json.Marshal(result)
	}
	if err != nil {
		return fmt.Errorf("encode run result: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write run result: %w", err)
	}
	return nil
}
