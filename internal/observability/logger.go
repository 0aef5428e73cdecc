package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fatal, panic).
	Level string

	// Format is the output format (json, console, pretty).
	Format string

	// Output is stdout or stderr. Any other value selects stderr, since the
	// CLI writes its results to stdout.
	Output string

	// AddSource adds source file and line number to log entries.
	AddSource bool

	// TimeFormat is the time format for timestamps.
	TimeFormat string
}

// DefaultLoggingConfig returns a LoggingConfig with sensible defaults.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stderr",
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// NewLogger builds the process logger. Console and pretty formats render
// human-readable lines; anything else writes JSON.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	return newLogger(cfg, logWriter(cfg.Output))
}

func newLogger(cfg LoggingConfig, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = cfg.TimeFormat
	if zerolog.TimeFieldFormat == "" {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: zerolog.TimeFieldFormat}
	}

	ctx := zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp()
	if cfg.AddSource {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// logWriter maps an output name to a stream. Stdout is reserved for results
// unless asked for explicitly.
func logWriter(output string) io.Writer {
	if strings.EqualFold(output, "stdout") {
		return os.Stdout
	}
	return os.Stderr
}

// parseLevel accepts zerolog level names plus "warning". Unknown or empty
// names fall back to info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return zerolog.WarnLevel
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}

// WithRunContext adds the pipeline run id to a logger.
func WithRunContext(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().
		Str("run_id", runID).
		Logger()
}

// WithPreprintContext adds preprint fields to a logger.
func WithPreprintContext(logger zerolog.Logger, recordID, title string) zerolog.Logger {
	return logger.With().
		Str("record_id", recordID).
		Str("preprint", title).
		Logger()
}

// WithProviderContext adds the provider and fallback state to a logger.
func WithProviderContext(logger zerolog.Logger, provider, state string) zerolog.Logger {
	return logger.With().
		Str("provider", provider).
		Str("state", state).
		Logger()
}

// WithReferenceContext adds reference fields to a logger.
func WithReferenceContext(logger zerolog.Logger, referenceID string) zerolog.Logger {
	return logger.With().
		Str("reference_id", referenceID).
		Logger()
}
