package ports

import (
	"context"
	"iter"

	"Bluebird/internal/domain"
)

// PostSource yields posts matching a composed search query.
// The sequence is lazy, time-ordered and may be unbounded; stop ranging to end it.
type PostSource interface {
	Stream(ctx context.Context, query domain.SearchQuery) iter.Seq2[domain.Post, error]
}

// SentimentAnalyzer classifies text into positive/neutral/negative scores.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, text string) (domain.Sentiment, error)
}

// Sink durably stores scored records.
type Sink interface {
	Append(ctx context.Context, record domain.Record) error
	Close() error
}

// SinkOpener acquires the sink selected by a run's target.
type SinkOpener interface {
	Open(ctx context.Context, target domain.SinkTarget) (Sink, error)
}
