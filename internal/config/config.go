package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"Bluebird/internal/domain"
)

const (
	configPathEnv        = "BLUEBIRD_CONFIG"
	databaseDSNEnv       = "DATABASE_DSN"
	sentimentAPIKeyEnv   = "SENTIMENT_API_KEY"
	sentimentEndpointEnv = "SENTIMENT_ENDPOINT"
	logLevelEnv          = "LOG_LEVEL"
)

// Source and sentiment backends understood by the application wiring.
const (
	SourceHTML       = "html"
	SourceRSS        = "rss"
	SentimentVADER   = "vader"
	SentimentHTTP    = "http"
	SentimentLLM     = "llm"
	SentimentLexicon = "lexicon"
)

// Validation errors returned by Config.Validate.
var (
	ErrUnknownSource      = errors.New("unknown source kind")
	ErrMissingSourceURL   = errors.New("source base url is required")
	ErrUnknownSentiment   = errors.New("unknown sentiment kind")
	ErrMissingEndpoint    = errors.New("sentiment endpoint is required")
	ErrMissingModel       = errors.New("sentiment model is required")
	ErrUnknownDriver      = errors.New("unknown database driver")
	ErrNonPositiveTimeout = errors.New("timeout must be positive")
	ErrUnknownLogFormat   = errors.New("unknown log format")
	ErrMissingTable       = errors.New("database table is required")
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Source    SourceConfig    `yaml:"source"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Output    OutputConfig    `yaml:"output"`
	Database  DatabaseConfig  `yaml:"database"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SourceConfig points at the search front-end and picks the scanner strategy.
type SourceConfig struct {
	Kind          string        `yaml:"kind"`
	BaseURL       string        `yaml:"baseUrl"`
	PermalinkBase string        `yaml:"permalinkBase"`
	Language      string        `yaml:"language"`
	Timeout       time.Duration `yaml:"timeout"`
}

// SentimentConfig describes the sentiment collaborator.
type SentimentConfig struct {
	Kind        string        `yaml:"kind"`
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"apiKey"`
	Model       string        `yaml:"model"`
	LexiconPath string        `yaml:"lexiconPath"`
	Timeout     time.Duration `yaml:"timeout"`
}

// OutputConfig is the default CSV target.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	File      string `yaml:"file"`
}

// DatabaseConfig describes relational sink connection details.
// The field names double as keys of the standalone database file.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	Table    string `yaml:"table"`
}

// MetricsConfig enables the node-exporter textfile dump when Textfile is set.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Target converts the section into a sink target.
func (d DatabaseConfig) Target() domain.DatabaseTarget {
	return domain.DatabaseTarget{
		Driver:   d.Driver,
		DSN:      d.DSN,
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
		SSLMode:  d.SSLMode,
		Table:    d.Table,
	}
}

// LoadDotEnv populates the process environment from .env files that exist.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// Load reads YAML configuration and applies environment overrides.
// An empty path falls back to BLUEBIRD_CONFIG; no file at all yields the defaults.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadDatabaseFile reads a standalone JSON or YAML file with the keys
// host, port, database, user, password and table.
func LoadDatabaseFile(path string) (DatabaseConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DatabaseConfig{}, fmt.Errorf("%w: database config %s does not exist", domain.ErrSinkUnavailable, path)
		}
		return DatabaseConfig{}, fmt.Errorf("%w: read database config %s: %w", domain.ErrSinkUnavailable, path, err)
	}

	var db DatabaseConfig
	if err := yaml.Unmarshal(raw, &db); err != nil {
		return DatabaseConfig{}, fmt.Errorf("%w: parse database config %s: %w", domain.ErrSinkUnavailable, path, err)
	}
	if db.Table == "" {
		return DatabaseConfig{}, fmt.Errorf("%w: %s: %w", domain.ErrSinkUnavailable, path, ErrMissingTable)
	}
	return db, nil
}

// Validate checks the settings the application cannot run without.
func (c Config) Validate() error {
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLogFormat, c.Logging.Format)
	}

	switch c.Source.Kind {
	case SourceHTML, SourceRSS:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, c.Source.Kind)
	}
	if strings.TrimSpace(c.Source.BaseURL) == "" {
		return ErrMissingSourceURL
	}
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("source: %w", ErrNonPositiveTimeout)
	}

	switch c.Sentiment.Kind {
	case SentimentHTTP, SentimentLLM:
		if strings.TrimSpace(c.Sentiment.Endpoint) == "" {
			return ErrMissingEndpoint
		}
		if c.Sentiment.Kind == SentimentLLM && strings.TrimSpace(c.Sentiment.Model) == "" {
			return ErrMissingModel
		}
		if c.Sentiment.Timeout <= 0 {
			return fmt.Errorf("sentiment: %w", ErrNonPositiveTimeout)
		}
	case SentimentVADER, SentimentLexicon:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSentiment, c.Sentiment.Kind)
	}

	switch c.Database.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Database.Driver)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(sentimentAPIKeyEnv); v != "" {
		c.Sentiment.APIKey = v
	}

	if v := os.Getenv(sentimentEndpointEnv); v != "" {
		c.Sentiment.Endpoint = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Source.Kind != "" {
		base.Source.Kind = override.Source.Kind
	}
	if override.Source.BaseURL != "" {
		base.Source.BaseURL = override.Source.BaseURL
	}
	if override.Source.PermalinkBase != "" {
		base.Source.PermalinkBase = override.Source.PermalinkBase
	}
	if override.Source.Language != "" {
		base.Source.Language = override.Source.Language
	}
	if override.Source.Timeout != 0 {
		base.Source.Timeout = override.Source.Timeout
	}

	if override.Sentiment.Kind != "" {
		base.Sentiment.Kind = override.Sentiment.Kind
	}
	if override.Sentiment.Endpoint != "" {
		base.Sentiment.Endpoint = override.Sentiment.Endpoint
	}
	if override.Sentiment.APIKey != "" {
		base.Sentiment.APIKey = override.Sentiment.APIKey
	}
	if override.Sentiment.Model != "" {
		base.Sentiment.Model = override.Sentiment.Model
	}
	if override.Sentiment.LexiconPath != "" {
		base.Sentiment.LexiconPath = override.Sentiment.LexiconPath
	}
	if override.Sentiment.Timeout != 0 {
		base.Sentiment.Timeout = override.Sentiment.Timeout
	}

	if override.Output.Directory != "" {
		base.Output.Directory = override.Output.Directory
	}
	if override.Output.File != "" {
		base.Output.File = override.Output.File
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.Host != "" {
		base.Database.Host = override.Database.Host
	}
	if override.Database.Port != 0 {
		base.Database.Port = override.Database.Port
	}
	if override.Database.Database != "" {
		base.Database.Database = override.Database.Database
	}
	if override.Database.User != "" {
		base.Database.User = override.Database.User
	}
	if override.Database.Password != "" {
		base.Database.Password = override.Database.Password
	}
	if override.Database.SSLMode != "" {
		base.Database.SSLMode = override.Database.SSLMode
	}
	if override.Database.Table != "" {
		base.Database.Table = override.Database.Table
	}

	if override.Metrics.Textfile != "" {
		base.Metrics.Textfile = override.Metrics.Textfile
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Source: SourceConfig{
			Kind:          SourceHTML,
			BaseURL:       "https://nitter.net",
			PermalinkBase: "https://twitter.com",
			Language:      "en",
			Timeout:       20 * time.Second,
		},
		Sentiment: SentimentConfig{
			Kind:     SentimentVADER,
			Endpoint: "http://localhost:8000",
			Timeout:  10 * time.Second,
		},
		Database: DatabaseConfig{Driver: "postgres", Port: 5432, SSLMode: "disable"},
	}
}
