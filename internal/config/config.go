// Package config loads settings from an optional TOML file and WRAPPED_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/dvloznov/finance-wrapped/internal/logger"
	"github.com/dvloznov/finance-wrapped/internal/source"
)

// EnvPrefix prefixes every environment override, e.g. WRAPPED_ORACLE_MODEL.
const EnvPrefix = "WRAPPED"

// Oracle providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Source kinds.
const (
	SourceCSV      = "csv"
	SourceGCS      = "gcs"
	SourceBigQuery = "bigquery"
)

// Cache kinds.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
)

// Config is the full application configuration.
type Config struct {
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Source   SourceConfig   `mapstructure:"source"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	Cache    CacheConfig    `mapstructure:"cache"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Notion   NotionConfig   `mapstructure:"notion"`
	Log      LogConfig      `mapstructure:"log"`
}

type OracleConfig struct {
	Provider      string        `mapstructure:"provider"`
	Model         string        `mapstructure:"model"`
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
}

type PipelineConfig struct {
	Concurrency int  `mapstructure:"concurrency"`
	Narrative   bool `mapstructure:"narrative"`
}

type SourceConfig struct {
	Kind string `mapstructure:"kind"`
	// Path is a local file or gs:// URI. DataDir (local or gs://) holds the
	// per-persona exports used when a user id is given instead.
	Path          string               `mapstructure:"path"`
	DataDir       string               `mapstructure:"data_dir"`
	HeaderMapping source.HeaderMapping `mapstructure:"header_mapping"`
}

type BigQueryConfig struct {
	Project string `mapstructure:"project"`
	Table   string `mapstructure:"table"`
}

type CacheConfig struct {
	Kind       string        `mapstructure:"kind"`
	SQLitePath string        `mapstructure:"sqlite_path"`
	Size       int           `mapstructure:"size"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type HTTPConfig struct {
	Port       int    `mapstructure:"port"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("oracle.provider", ProviderGemini)
	v.SetDefault("oracle.model", "")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.timeout", 30*time.Second)
	v.SetDefault("oracle.max_tokens", 1024)
	v.SetDefault("oracle.rate_per_second", 0)

	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.narrative", false)

	hm := source.DefaultHeaderMapping()
	v.SetDefault("source.kind", SourceCSV)
	v.SetDefault("source.path", "")
	v.SetDefault("source.data_dir", "data")
	v.SetDefault("source.header_mapping.date", hm.Date)
	v.SetDefault("source.header_mapping.merchant", hm.Merchant)
	v.SetDefault("source.header_mapping.amount", hm.Amount)
	v.SetDefault("source.header_mapping.description", hm.Description)
	v.SetDefault("source.header_mapping.category", hm.Category)
	v.SetDefault("source.header_mapping.account_name", hm.AccountName)

	v.SetDefault("bigquery.project", "")
	v.SetDefault("bigquery.table", "")

	v.SetDefault("cache.kind", CacheMemory)
	v.SetDefault("cache.sqlite_path", "data/classifications.db")
	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.ttl", time.Duration(0))

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.cors_origin", "*")

	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatConsole)
}

// LoadConfig reads configPath (skipped when empty) and applies environment
// overrides on top of the defaults.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Provider-native variables work as fallbacks for the key and token.
	_ = v.BindEnv("oracle.api_key", EnvPrefix+"_ORACLE_API_KEY", "GEMINI_API_KEY", "NVIDIA_API_KEY")
	_ = v.BindEnv("notion.token", EnvPrefix+"_NOTION_TOKEN", "NOTION_TOKEN")
	_ = v.BindEnv("bigquery.project", EnvPrefix+"_BIGQUERY_PROJECT", "GCP_PROJECT_ID")

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("LoadConfig: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("LoadConfig: unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	switch c.Oracle.Provider {
	case ProviderGemini:
	case ProviderOpenAI:
		if c.Oracle.APIKey == "" {
			add("oracle.api_key is required for provider %q", ProviderOpenAI)
		}
	default:
		add("oracle.provider %q must be one of %s, %s", c.Oracle.Provider, ProviderGemini, ProviderOpenAI)
	}
	if c.Oracle.Timeout <= 0 {
		add("oracle.timeout must be positive, got %s", c.Oracle.Timeout)
	}
	if c.Oracle.MaxTokens <= 0 {
		add("oracle.max_tokens must be positive, got %d", c.Oracle.MaxTokens)
	}
	if c.Oracle.RatePerSecond < 0 {
		add("oracle.rate_per_second must not be negative, got %g", c.Oracle.RatePerSecond)
	}

	if c.Pipeline.Concurrency < 1 {
		add("pipeline.concurrency must be at least 1, got %d", c.Pipeline.Concurrency)
	}

	switch c.Source.Kind {
	case SourceCSV, SourceGCS:
		if c.Source.Path == "" && c.Source.DataDir == "" {
			add("source.path or source.data_dir is required for source %q", c.Source.Kind)
		}
		if c.Source.Kind == SourceGCS && c.Source.Path != "" && !strings.HasPrefix(c.Source.Path, "gs://") {
			add("source.path %q must be a gs:// URI", c.Source.Path)
		}
		if err := c.Source.HeaderMapping.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	case SourceBigQuery:
		if c.BigQuery.Project == "" {
			add("bigquery.project is required for source %q", SourceBigQuery)
		}
		if c.BigQuery.Table == "" {
			add("bigquery.table is required for source %q", SourceBigQuery)
		}
	default:
		add("source.kind %q must be one of %s, %s, %s", c.Source.Kind, SourceCSV, SourceGCS, SourceBigQuery)
	}

	switch c.Cache.Kind {
	case CacheNone, CacheMemory:
	case CacheSQLite:
		if c.Cache.SQLitePath == "" {
			add("cache.sqlite_path is required for cache %q", CacheSQLite)
		}
	default:
		add("cache.kind %q must be one of %s, %s, %s", c.Cache.Kind, CacheNone, CacheMemory, CacheSQLite)
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		add("http.port %d must be between 1 and 65535", c.HTTP.Port)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		add("log.level %q is not a valid level", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case logger.FormatConsole, logger.FormatJSON:
	default:
		add("log.format %q must be %s or %s", c.Log.Format, logger.FormatConsole, logger.FormatJSON)
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ErrNotionNotConfigured is returned by NotionConfig.Require when the token
// or database id is unset.
var ErrNotionNotConfigured = errors.New("notion.token and notion.database_id are required")

// Require checks that publishing to Notion is possible.
func (n NotionConfig) Require() error {
	if n.Token == "" || n.DatabaseID == "" {
		return ErrNotionNotConfigured
	}
	return nil
}

// LoggerOptions maps the log section to logger.Options.
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{Level: c.Log.Level, Format: c.Log.Format}
}
