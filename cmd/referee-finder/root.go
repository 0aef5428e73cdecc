package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/referee-finder/internal/config"
	"github.com/helixir/referee-finder/internal/observability"
)

// app holds state shared by subcommands once the root command has loaded
// configuration.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "referee-finder",
		Short: "Suggest peer reviewers for preprints from their reference lists",
		Long: `referee-finder reads preprints awaiting review from a record store, resolves
each one in PubMed, OpenAlex or Semantic Scholar, and proposes the authors of
cited papers that share the preprint's methods as candidate referees.

Configuration comes from config.yaml (., ./config, /etc/referee-finder),
REFEREE_* environment variables and a .env file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: search ./config.yaml, ./config/config.yaml, /etc/referee-finder/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newRunCmd(a),
		newShowCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)

	return root
}

// init loads .env, configuration and the logger.
func (a *app) init() error {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	a.logger = observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	return nil
}
