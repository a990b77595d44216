// Package vader scores text with the VADER rule-based sentiment model.
package vader

import (
	"context"
	"strings"

	"github.com/jonreiter/govader"

	"Bluebird/internal/domain"
	"Bluebird/internal/ports"
)

// Analyzer adapts govader to ports.SentimentAnalyzer. It keeps VADER's
// pos/neu/neg proportions and drops the compound score.
type Analyzer struct {
	model *govader.SentimentIntensityAnalyzer
}

var _ ports.SentimentAnalyzer = (*Analyzer)(nil)

// New loads the bundled VADER lexicon.
func New() *Analyzer {
	return &Analyzer{model: govader.NewSentimentIntensityAnalyzer()}
}

// Analyze never fails; text without words is fully neutral.
func (a *Analyzer) Analyze(_ context.Context, text string) (domain.Sentiment, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Sentiment{Neutral: 1}, nil
	}

	scores := a.model.PolarityScores(text)
	if scores.Positive == 0 && scores.Neutral == 0 && scores.Negative == 0 {
		return domain.Sentiment{Neutral: 1}, nil
	}
	return domain.Sentiment{
		Positive: scores.Positive,
		Neutral:  scores.Neutral,
		Negative: scores.Negative,
	}, nil
}
