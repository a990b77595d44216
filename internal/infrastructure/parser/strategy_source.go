package parser

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"Bluebird/internal/domain"
	"Bluebird/internal/ports"
	"Bluebird/internal/scanner"
)

// StrategySource implements PostSource via the scanner strategy named in config.
type StrategySource struct {
	registry *scanner.Registry
	kind     string
	logger   *slog.Logger
}

var _ ports.PostSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with the configured source kind.
func NewStrategySource(reg *scanner.Registry, kind string, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		kind:     kind,
		logger:   log,
	}
}

// Stream resolves the configured scanner and forwards its sequence.
func (s *StrategySource) Stream(ctx context.Context, query domain.SearchQuery) iter.Seq2[domain.Post, error] {
	return func(yield func(domain.Post, error) bool) {
		if s.registry == nil {
			yield(domain.Post{}, fmt.Errorf("scanner registry is not configured"))
			return
		}

		strategy, err := s.registry.Resolve(s.kind)
		if err != nil {
			yield(domain.Post{}, err)
			return
		}

		s.debug("stream search", "scanner", strategy.Name(), "query", query.Text)

		var produced int
		for post, err := range strategy.Scan(ctx, query) {
			if err != nil {
				yield(domain.Post{}, fmt.Errorf("scan %s: %w", strategy.Name(), err))
				return
			}
			produced++
			if !yield(post, nil) {
				s.debug("stream stopped by consumer", "produced", produced)
				return
			}
		}

		s.debug("stream exhausted", "produced", produced)
	}
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
