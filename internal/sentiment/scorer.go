// Package sentiment validates classifier output before it reaches a record.
package sentiment

import (
	"context"
	"fmt"
	"math"

	"Bluebird/internal/domain"
	"Bluebird/internal/ports"
)

// Scorer wraps an injected analyzer and rejects unusable results.
type Scorer struct {
	analyzer ports.SentimentAnalyzer
}

// NewScorer binds a classifier instance.
func NewScorer(analyzer ports.SentimentAnalyzer) *Scorer {
	return &Scorer{analyzer: analyzer}
}

// Score classifies content. Analyzer errors, all-zero results and
// out-of-range scores are reported as domain.ErrScoringFailure.
func (s *Scorer) Score(ctx context.Context, content string) (domain.Sentiment, error) {
	if s == nil || s.analyzer == nil {
		return domain.Sentiment{}, fmt.Errorf("%w: no analyzer configured", domain.ErrScoringFailure)
	}

	result, err := s.analyzer.Analyze(ctx, content)
	if err != nil {
		return domain.Sentiment{}, fmt.Errorf("%w: analyze: %w", domain.ErrScoringFailure, err)
	}

	if result.Positive == 0 && result.Neutral == 0 && result.Negative == 0 {
		return domain.Sentiment{}, fmt.Errorf("%w: empty result", domain.ErrScoringFailure)
	}

	for _, check := range []struct {
		name  string
		value float64
	}{
		{"positive", result.Positive},
		{"neutral", result.Neutral},
		{"negative", result.Negative},
	} {
		if math.IsNaN(check.value) || check.value < 0 || check.value > 1 {
			return domain.Sentiment{}, fmt.Errorf("%w: %s score %v out of range", domain.ErrScoringFailure, check.name, check.value)
		}
	}

	return result, nil
}
