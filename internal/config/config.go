// Package config provides configuration management for the referee finder.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "REFEREE"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Record source types.
const (
	RecordSourceYAML     = "yaml"
	RecordSourceAirtable = "airtable"
)

// Config holds all configuration for the referee finder.
type Config struct {
	// Server contains the metrics/health HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings for the result store.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Kafka contains settings for the result event publisher.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Records selects and configures the record store.
	Records RecordsConfig `mapstructure:"records"`
	// LLM contains settings for abstract method extraction.
	LLM LLMConfig `mapstructure:"llm"`
	// Pipeline contains run-level settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	// PaperSources contains bibliographic provider configurations.
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Enabled starts the metrics/health server alongside a run.
	Enabled bool `mapstructure:"enabled"`
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 9091).
	HTTPPort int `mapstructure:"http_port" validate:"min=1,max=65535"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Enabled stores run results in PostgreSQL.
	Enabled bool `mapstructure:"enabled"`
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (loaded from REFEREE_DATABASE_PASSWORD).
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode" validate:"oneof=disable require verify-ca verify-full"`
	// MaxConns is the maximum number of connections in the pool (default: 5).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 1).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is a directory of migration files. Empty uses the
	// migrations embedded in the binary.
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun applies pending migrations before the results are saved.
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format" validate:"oneof=json console"`
	// Output is the log destination (stdout or stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// KafkaConfig holds Kafka publisher settings.
type KafkaConfig struct {
	// Enabled controls whether per-preprint results are published.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic results are published to.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// RecordsConfig selects the record store.
type RecordsConfig struct {
	// Source is the store type (yaml, airtable).
	Source string `mapstructure:"source" validate:"oneof=yaml airtable"`
	// View is the store view proposals are listed from.
	View string `mapstructure:"view" validate:"required"`
	// Path is the YAML records file.
	Path string `mapstructure:"path"`
	// Airtable contains Airtable table settings.
	Airtable AirtableConfig `mapstructure:"airtable"`
}

// AirtableConfig holds Airtable table settings.
type AirtableConfig struct {
	// Token is the personal access token (loaded from REFEREE_RECORDS_AIRTABLE_TOKEN).
	Token string `mapstructure:"-"`
	// BaseURL is the Airtable API root.
	BaseURL string `mapstructure:"base_url"`
	// BaseID is the Airtable base id (app...).
	BaseID string `mapstructure:"base_id"`
	// Table is the table name or id.
	Table string `mapstructure:"table"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
}

// LLMConfig holds settings for abstract method extraction.
type LLMConfig struct {
	// Provider is the LLM provider (openai, anthropic, none).
	Provider string `mapstructure:"provider" validate:"oneof=openai anthropic none"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries" validate:"min=0"`
	// Temperature is the LLM temperature setting.
	Temperature float64 `mapstructure:"temperature" validate:"min=0,max=2"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI LLMProviderConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic LLMProviderConfig `mapstructure:"anthropic"`
}

// LLMProviderConfig holds settings for one LLM vendor.
type LLMProviderConfig struct {
	// APIKey is loaded from REFEREE_LLM_<PROVIDER>_API_KEY.
	APIKey string `mapstructure:"-"`
	// Model is the model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// PipelineConfig holds run-level settings.
type PipelineConfig struct {
	// MaxPreprints caps the preprints processed per run. Zero means no cap.
	MaxPreprints int `mapstructure:"max_preprints" validate:"min=0"`
	// PreprintTimeout bounds the work on one preprint, interrupts included.
	// Zero means no bound.
	PreprintTimeout time.Duration `mapstructure:"preprint_timeout" validate:"gte=0"`
	// ProviderOrder is the fallback order of providers.
	ProviderOrder []string `mapstructure:"provider_order" validate:"min=1,max=3,unique,dive,oneof=pubmed openalex semantic_scholar"`
}

// PaperSourcesConfig holds configuration for the bibliographic providers.
type PaperSourcesConfig struct {
	// PubMed contains NCBI E-utilities settings.
	PubMed PaperSourceConfig `mapstructure:"pubmed"`
	// OpenAlex contains OpenAlex API settings.
	OpenAlex PaperSourceConfig `mapstructure:"openalex"`
	// SemanticScholar contains Semantic Scholar API settings.
	SemanticScholar PaperSourceConfig `mapstructure:"semantic_scholar"`
}

// PaperSourceConfig holds configuration for a single provider.
type PaperSourceConfig struct {
	// Enabled controls whether this provider takes part in the fallback.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is loaded from REFEREE_PAPER_SOURCES_<SOURCE>_API_KEY.
	APIKey string `mapstructure:"-"`
	// Email is the contact address some providers ask for.
	Email string `mapstructure:"email"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	// BurstSize is the token bucket burst.
	BurstSize int `mapstructure:"burst_size" validate:"gte=0"`
	// MinInterval is the minimum spacing between requests.
	MinInterval time.Duration `mapstructure:"min_interval"`
	// DailyBudget caps requests per UTC day. Zero means unlimited.
	DailyBudget int `mapstructure:"daily_budget" validate:"gte=0"`
	// MaxCandidates caps the title search hits considered.
	MaxCandidates int `mapstructure:"max_candidates" validate:"gte=0"`
	// MaxReferences caps the references taken from a preprint.
	MaxReferences int `mapstructure:"max_references" validate:"gte=0"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables, an optional config
// file and defaults. An empty path searches the default locations.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/referee-finder")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets use mapstructure:"-" and come only from the environment.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Database.Password = os.Getenv(EnvPrefix + "_DATABASE_PASSWORD")
	cfg.Records.Airtable.Token = os.Getenv(EnvPrefix + "_RECORDS_AIRTABLE_TOKEN")

	cfg.LLM.OpenAI.APIKey = os.Getenv(EnvPrefix + "_LLM_OPENAI_API_KEY")
	cfg.LLM.Anthropic.APIKey = os.Getenv(EnvPrefix + "_LLM_ANTHROPIC_API_KEY")

	cfg.PaperSources.PubMed.APIKey = os.Getenv(EnvPrefix + "_PAPER_SOURCES_PUBMED_API_KEY")
	cfg.PaperSources.OpenAlex.APIKey = os.Getenv(EnvPrefix + "_PAPER_SOURCES_OPENALEX_API_KEY")
	cfg.PaperSources.SemanticScholar.APIKey = os.Getenv(EnvPrefix + "_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 9091)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "referee")
	v.SetDefault("database.name", "referee_finder")
	// Use REFEREE_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 5)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults. Results go to stdout, so logs default to stderr.
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "referee_finder")
	v.SetDefault("metrics.path", "/metrics")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.referee_finder.preprints")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	// Record store defaults
	v.SetDefault("records.source", RecordSourceYAML)
	v.SetDefault("records.view", "Proposals")
	v.SetDefault("records.path", "records.yaml")
	v.SetDefault("records.airtable.base_url", "https://api.airtable.com")
	v.SetDefault("records.airtable.base_id", "")
	v.SetDefault("records.airtable.table", "")
	v.SetDefault("records.airtable.timeout", "30s")

	// LLM defaults. API keys are loaded from the environment (see loadSecrets).
	v.SetDefault("llm.provider", "none")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")

	// Pipeline defaults
	v.SetDefault("pipeline.max_preprints", 0)
	v.SetDefault("pipeline.preprint_timeout", "15m")
	v.SetDefault("pipeline.provider_order", []string{"pubmed", "openalex", "semantic_scholar"})

	// Paper sources defaults - PubMed. NCBI allows 3 req/s without a key;
	// the editorial scripts spaced requests two seconds apart.
	v.SetDefault("paper_sources.pubmed.enabled", true)
	v.SetDefault("paper_sources.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("paper_sources.pubmed.timeout", "30s")
	v.SetDefault("paper_sources.pubmed.rate_limit", 3.0)
	v.SetDefault("paper_sources.pubmed.burst_size", 1)
	v.SetDefault("paper_sources.pubmed.min_interval", "2s")
	v.SetDefault("paper_sources.pubmed.max_candidates", 10)
	v.SetDefault("paper_sources.pubmed.max_references", 20)

	// Paper sources defaults - OpenAlex
	v.SetDefault("paper_sources.openalex.enabled", true)
	v.SetDefault("paper_sources.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("paper_sources.openalex.timeout", "30s")
	v.SetDefault("paper_sources.openalex.rate_limit", 10.0)
	v.SetDefault("paper_sources.openalex.burst_size", 10)
	v.SetDefault("paper_sources.openalex.daily_budget", 100000)
	v.SetDefault("paper_sources.openalex.max_candidates", 10)
	v.SetDefault("paper_sources.openalex.max_references", 20)

	// Paper sources defaults - Semantic Scholar (30 req/min with a key)
	v.SetDefault("paper_sources.semantic_scholar.enabled", true)
	v.SetDefault("paper_sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("paper_sources.semantic_scholar.timeout", "30s")
	v.SetDefault("paper_sources.semantic_scholar.rate_limit", 0.5)
	v.SetDefault("paper_sources.semantic_scholar.burst_size", 1)
	v.SetDefault("paper_sources.semantic_scholar.max_references", 20)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration.
func (c *Config) Validate() error {
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}

	switch c.Records.Source {
	case RecordSourceYAML:
		if c.Records.Path == "" {
			return fmt.Errorf("records path is required for the yaml source")
		}
	case RecordSourceAirtable:
		if c.Records.Airtable.BaseID == "" || c.Records.Airtable.Table == "" {
			return fmt.Errorf("airtable base_id and table are required")
		}
		if c.Records.Airtable.Token == "" {
			return fmt.Errorf("airtable source requires %s_RECORDS_AIRTABLE_TOKEN to be set", EnvPrefix)
		}
	}

	// The configured LLM provider needs its API key.
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires %s_LLM_OPENAI_API_KEY to be set", c.LLM.Provider, EnvPrefix)
		}
	case "anthropic":
		if c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires %s_LLM_ANTHROPIC_API_KEY to be set", c.LLM.Provider, EnvPrefix)
		}
	}

	return nil
}

// Source returns the settings of the named provider.
func (c *PaperSourcesConfig) Source(name string) (PaperSourceConfig, bool) {
	switch name {
	case "pubmed":
		return c.PubMed, true
	case "openalex":
		return c.OpenAlex, true
	case "semantic_scholar":
		return c.SemanticScholar, true
	default:
		return PaperSourceConfig{}, false
	}
}
