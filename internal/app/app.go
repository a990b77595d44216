package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"

	"Bluebird/internal/config"
	"Bluebird/internal/domain"
	"Bluebird/internal/infrastructure/feed"
	"Bluebird/internal/infrastructure/lexicon"
	"Bluebird/internal/infrastructure/llm"
	"Bluebird/internal/infrastructure/ml"
	"Bluebird/internal/infrastructure/parser"
	"Bluebird/internal/infrastructure/storage"
	"Bluebird/internal/infrastructure/vader"
	"Bluebird/internal/logging"
	"Bluebird/internal/metrics"
	"Bluebird/internal/ports"
	"Bluebird/internal/scanner"
	"Bluebird/internal/sentiment"
	"Bluebird/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	metrics  *metrics.Pipeline
	logger   *slog.Logger
}

// Option customises collaborators that are normally derived from config.
type Option func(*options)

type options struct {
	clock      clockwork.Clock
	httpClient *http.Client
	analyzer   ports.SentimentAnalyzer
}

// WithClock replaces the wall clock, used for date validation and file names.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithHTTPClient replaces the client used by the source scanners.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithAnalyzer bypasses the configured sentiment backend.
func WithAnalyzer(analyzer ports.SentimentAnalyzer) Option {
	return func(o *options) { o.analyzer = analyzer }
}

// New validates the config and builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.Source.Timeout}
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewSearchScanner(o.httpClient, cfg.Source.BaseURL, cfg.Source.PermalinkBase,
		logging.Component(baseLogger, "scanner.html")))
	registry.Register(feed.NewScanner(o.httpClient, cfg.Source.BaseURL, cfg.Source.PermalinkBase,
		logging.Component(baseLogger, "scanner.rss")))

	source := parser.NewStrategySource(registry, cfg.Source.Kind, logging.Component(baseLogger, "source"))

	analyzer := o.analyzer
	if analyzer == nil {
		var err error
		analyzer, err = newAnalyzer(cfg.Sentiment)
		if err != nil {
			return nil, err
		}
	}

	m := metrics.NewPipeline()
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:   source,
		Sinks:    storage.NewOpener(o.clock, logging.Component(baseLogger, "storage")),
		Scorer:   sentiment.NewScorer(analyzer),
		Clock:    o.clock,
		Metrics:  m,
		Logger:   logging.Component(baseLogger, "pipeline"),
		Language: cfg.Source.Language,
	})

	return &Application{cfg: cfg, pipeline: pipeline, metrics: m, logger: baseLogger}, nil
}

// Run performs a single pipeline execution and dumps metrics when a textfile is configured.
func (a *Application) Run(ctx context.Context, query domain.Query, target domain.SinkTarget) (domain.Summary, error) {
	summary, err := a.pipeline.Run(ctx, query, target)

	if path := a.cfg.Metrics.Textfile; path != "" {
		if werr := a.metrics.WriteTextfile(path); werr != nil {
			a.logger.Warn("metrics textfile not written", "path", path, "error", werr)
		}
	}
	return summary, err
}

// Metrics exposes the collectors updated by Run.
func (a *Application) Metrics() *metrics.Pipeline {
	return a.metrics
}

func newAnalyzer(cfg config.SentimentConfig) (ports.SentimentAnalyzer, error) {
	switch cfg.Kind {
	case config.SentimentVADER:
		return vader.New(), nil
	case config.SentimentHTTP:
		return ml.NewClient(cfg.Endpoint, cfg.APIKey, cfg.Timeout), nil
	case config.SentimentLLM:
		return llm.NewChatGPTClient(cfg.Endpoint, cfg.Model, cfg.APIKey, cfg.Timeout), nil
	case config.SentimentLexicon:
		if cfg.LexiconPath == "" {
			return lexicon.Default()
		}
		return lexicon.Load(cfg.LexiconPath)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownSentiment, cfg.Kind)
	}
}
