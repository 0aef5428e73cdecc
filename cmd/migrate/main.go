// Package main applies or inspects the run store's schema migrations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/helixir/referee-finder/internal/config"
	"github.com/helixir/referee-finder/internal/database"
	"github.com/helixir/referee-finder/internal/observability"
)

const connectTimeout = 30 * time.Second

var errNoAction = errors.New("specify one of -up, -down, -steps N, -version, -force V")

// options are the parsed command-line flags.
type options struct {
	up, down, version bool
	steps             int
	force             int
	path              string
	configPath        string
}

// action is one migrator operation chosen on the command line.
type action struct {
	name  string
	apply func(m *database.Migrator) error
}

func main() {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	opts, err := parseFlags(fs, os.Args[1:])
	if err == nil {
		err = run(opts)
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var opts options
	fs.BoolVar(&opts.up, "up", false, "apply all pending migrations")
	fs.BoolVar(&opts.down, "down", false, "roll back every migration")
	fs.IntVar(&opts.steps, "steps", 0, "apply N migrations (negative rolls back)")
	fs.BoolVar(&opts.version, "version", false, "print the schema version")
	fs.IntVar(&opts.force, "force", -1, "mark the schema as version V without running migrations")
	fs.StringVar(&opts.path, "path", "", "migrations directory (default: embedded set)")
	fs.StringVar(&opts.configPath, "config", "", "config file")
	err := fs.Parse(args)
	return opts, err
}

// selectAction turns the flags into exactly one migrator operation.
func selectAction(opts options) (action, error) {
	var chosen []action
	if opts.up {
		chosen = append(chosen, action{"up", (*database.Migrator).Up})
	}
	if opts.down {
		chosen = append(chosen, action{"down", (*database.Migrator).Down})
	}
	if opts.steps != 0 {
		n := opts.steps
		chosen = append(chosen, action{fmt.Sprintf("steps %d", n), func(m *database.Migrator) error { return m.Steps(n) }})
	}
	if opts.version {
		chosen = append(chosen, action{"version", func(*database.Migrator) error { return nil }})
	}
	if opts.force >= 0 {
		v := opts.force
		chosen = append(chosen, action{fmt.Sprintf("force %d", v), func(m *database.Migrator) error { return m.Force(v) }})
	}

	switch len(chosen) {
	case 0:
		return action{}, errNoAction
	case 1:
		return chosen[0], nil
	default:
		return action{}, fmt.Errorf("%d actions given: %w", len(chosen), errNoAction)
	}
}

func run(opts options) error {
	act, err := selectAction(opts)
	if err != nil {
		return err
	}

	_ = godotenv.Load()
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	migrationDir := cfg.Database.MigrationPath
	if opts.path != "" {
		migrationDir = opts.path
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: "console",
		Output: "stderr",
	}).With().Str("component", "migrate").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, migrationDir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn().Err(err).Msg("close migrator")
		}
	}()

	logger.Info().Str("action", act.name).Msg("migrating")
	if err := act.apply(migrator); err != nil {
		return fmt.Errorf("%s: %w", act.name, err)
	}
	logVersion(migrator, logger)
	return nil
}

func logVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("schema version unknown")
		return
	}
	logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("schema version")
}
