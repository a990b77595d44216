package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Bluebird/internal/domain"
	"Bluebird/internal/infrastructure/storage"
	"Bluebird/internal/metrics"
	"Bluebird/internal/ports"
	"Bluebird/internal/sentiment"
	"Bluebird/internal/usecase"
)

var now = time.Date(2021, time.March, 1, 12, 0, 0, 0, time.UTC)

type sliceSource struct {
	posts  []domain.Post
	failAt int
	pulled int
	got    domain.SearchQuery
}

func (s *sliceSource) Stream(_ context.Context, query domain.SearchQuery) iter.Seq2[domain.Post, error] {
	s.got = query
	return func(yield func(domain.Post, error) bool) {
		for i, post := range s.posts {
			if s.failAt > 0 && i == s.failAt {
				yield(domain.Post{}, errors.New("upstream reset"))
				return
			}
			s.pulled++
			if !yield(post, nil) {
				return
			}
		}
	}
}

type recordingSink struct {
	records  []domain.Record
	failAt   int
	closes   int
	closeErr error
}

func (s *recordingSink) Append(_ context.Context, record domain.Record) error {
	if s.failAt > 0 && len(s.records)+1 == s.failAt {
		return errors.New("disk full")
	}
	s.records = append(s.records, record)
	return nil
}

func (s *recordingSink) Close() error {
	s.closes++
	return s.closeErr
}

type stubOpener struct {
	sink  ports.Sink
	err   error
	opens int
}

func (o *stubOpener) Open(context.Context, domain.SinkTarget) (ports.Sink, error) {
	o.opens++
	if o.err != nil {
		return nil, o.err
	}
	return o.sink, nil
}

type analyzerFunc func(ctx context.Context, text string) (domain.Sentiment, error)

func (f analyzerFunc) Analyze(ctx context.Context, text string) (domain.Sentiment, error) {
	return f(ctx, text)
}

func fixedAnalyzer() analyzerFunc {
	return func(context.Context, string) (domain.Sentiment, error) {
		return domain.Sentiment{Positive: 0.6, Neutral: 0.3, Negative: 0.1}, nil
	}
}

func makePosts(n int) []domain.Post {
	posts := make([]domain.Post, 0, n)
	for i := range n {
		posts = append(posts, domain.Post{
			ID:        fmt.Sprintf("%d", 100+i),
			Timestamp: time.Date(2021, time.January, 1, 10, i, 0, 0, time.UTC),
			Author:    "nasa",
			URL:       fmt.Sprintf("https://twitter.com/nasa/status/%d", 100+i),
			Content:   fmt.Sprintf("launch update number %d", i),
		})
	}
	return posts
}

func validQuery(maxRecords int) domain.Query {
	return domain.Query{
		Terms:      []string{"launch"},
		Start:      time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2021, time.January, 2, 0, 0, 0, 0, time.UTC),
		MaxRecords: maxRecords,
	}
}

func newPipeline(source ports.PostSource, opener ports.SinkOpener, analyzer ports.SentimentAnalyzer, m *metrics.Pipeline) *usecase.Pipeline {
	return usecase.NewPipeline(usecase.PipelineDeps{
		Source:   source,
		Sinks:    opener,
		Scorer:   sentiment.NewScorer(analyzer),
		Clock:    clockwork.NewFakeClockAt(now),
		Metrics:  m,
		Language: "en",
	})
}

func TestRunStopsAtBound(t *testing.T) {
	t.Parallel()

	source := &sliceSource{posts: makePosts(10)}
	sink := &recordingSink{}
	opener := &stubOpener{sink: sink}

	summary, err := newPipeline(source, opener, fixedAnalyzer(), nil).Run(context.Background(), validQuery(4), domain.SinkTarget{})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, summary.Status)
	assert.Equal(t, 4, summary.Written)
	assert.Equal(t, 4, source.pulled)
	assert.Len(t, sink.records, 4)
	assert.Equal(t, 1, sink.closes)
	assert.NotEmpty(t, summary.RunID)
	assert.Nil(t, summary.Cause)
}

func TestRunPreservesSourceOrderAndScores(t *testing.T) {
	t.Parallel()

	source := &sliceSource{posts: makePosts(3)}
	sink := &recordingSink{}

	_, err := newPipeline(source, &stubOpener{sink: sink}, fixedAnalyzer(), nil).Run(context.Background(), validQuery(10), domain.SinkTarget{})
	require.NoError(t, err)

	require.Len(t, sink.records, 3)
	for i, record := range sink.records {
		assert.Equal(t, source.posts[i].ID, record.ID)
		assert.InDelta(t, 1.0, record.Weight, 1e-9)
		assert.InDelta(t, 0.6, record.Positive, 1e-9)
		assert.InDelta(t, 0.3, record.Neutral, 1e-9)
		assert.InDelta(t, 0.1, record.Negative, 1e-9)
	}
}

func TestRunSourceExhaustedBeforeBound(t *testing.T) {
	t.Parallel()

	source := &sliceSource{posts: makePosts(2)}
	sink := &recordingSink{}

	summary, err := newPipeline(source, &stubOpener{sink: sink}, fixedAnalyzer(), nil).Run(context.Background(), validQuery(5000), domain.SinkTarget{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, summary.Status)
	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, 1, sink.closes)
}

func TestRunEmptySourceStillCloses(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	summary, err := newPipeline(&sliceSource{}, &stubOpener{sink: sink}, fixedAnalyzer(), nil).Run(context.Background(), validQuery(3), domain.SinkTarget{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Written)
	assert.Equal(t, 1, sink.closes)
}

func TestRunComposesSearchText(t *testing.T) {
	t.Parallel()

	source := &sliceSource{}
	query := validQuery(1)
	query.Terms = []string{"launch", "rocket"}

	_, err := newPipeline(source, &stubOpener{sink: &recordingSink{}}, fixedAnalyzer(), nil).Run(context.Background(), query, domain.SinkTarget{})
	require.NoError(t, err)

	assert.Equal(t, "launch rocket lang:en since:2021-01-01 until:2021-01-02 -filter:replies", source.got.Text)
	assert.True(t, source.got.Since.Equal(query.Start))
	assert.True(t, source.got.Until.Equal(query.End))
}

func TestRunRejectsInvalidQueryBeforeOpening(t *testing.T) {
	t.Parallel()

	cases := map[string]func(q *domain.Query){
		"start after end": func(q *domain.Query) { q.Start, q.End = q.End, q.Start },
		"end in future":   func(q *domain.Query) { q.End = now.AddDate(0, 0, 1) },
		"no terms":        func(q *domain.Query) { q.Terms = nil },
		"zero bound":      func(q *domain.Query) { q.MaxRecords = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			source := &sliceSource{posts: makePosts(3)}
			opener := &stubOpener{sink: &recordingSink{}}
			query := validQuery(3)
			mutate(&query)

			summary, err := newPipeline(source, opener, fixedAnalyzer(), nil).Run(context.Background(), query, domain.SinkTarget{})
			require.ErrorIs(t, err, domain.ErrInvalidQuery)
			assert.Equal(t, domain.StatusFailed, summary.Status)
			assert.Equal(t, 0, opener.opens)
			assert.Equal(t, 0, source.pulled)
			assert.Equal(t, domain.ExitInvalidQuery, domain.ExitCode(err))
		})
	}
}

func TestRunSinkUnavailable(t *testing.T) {
	t.Parallel()

	source := &sliceSource{posts: makePosts(3)}
	opener := &stubOpener{err: errors.New("permission denied")}

	summary, err := newPipeline(source, opener, fixedAnalyzer(), nil).Run(context.Background(), validQuery(3), domain.SinkTarget{})
	require.ErrorIs(t, err, domain.ErrSinkUnavailable)
	assert.ErrorContains(t, err, "permission denied")
	assert.Equal(t, domain.StatusFailed, summary.Status)
	assert.Equal(t, 0, source.pulled)
	assert.Equal(t, domain.ExitSinkUnavailable, domain.ExitCode(err))
}

func TestRunAppendFailure(t *testing.T) {
	t.Parallel()

	source := &sliceSource{posts: makePosts(5)}
	sink := &recordingSink{failAt: 3}

	summary, err := newPipeline(source, &stubOpener{sink: sink}, fixedAnalyzer(), nil).Run(context.Background(), validQuery(5), domain.SinkTarget{})
	require.ErrorIs(t, err, domain.ErrWriteFailure)
	assert.Equal(t, domain.StatusFailed, summary.Status)
	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, 1, sink.closes)
	assert.Equal(t, 3, source.pulled)
	assert.Equal(t, domain.ExitFailed, domain.ExitCode(err))
}

func TestRunScoringFailureAborts(t *testing.T) {
	t.Parallel()

	calls := 0
	analyzer := analyzerFunc(func(context.Context, string) (domain.Sentiment, error) {
		calls++
		if calls == 2 {
			return domain.Sentiment{}, errors.New("model unavailable")
		}
		return domain.Sentiment{Neutral: 1}, nil
	})

	source := &sliceSource{posts: makePosts(4)}
	sink := &recordingSink{}

	summary, err := newPipeline(source, &stubOpener{sink: sink}, analyzer, nil).Run(context.Background(), validQuery(4), domain.SinkTarget{})
	require.ErrorIs(t, err, domain.ErrScoringFailure)
	assert.Equal(t, 1, summary.Written)
	assert.Len(t, sink.records, 1)
	assert.Equal(t, 1, sink.closes)
}

func TestRunSourceFailure(t *testing.T) {
	t.Parallel()

	source := &sliceSource{posts: makePosts(5), failAt: 2}
	sink := &recordingSink{}

	summary, err := newPipeline(source, &stubOpener{sink: sink}, fixedAnalyzer(), nil).Run(context.Background(), validQuery(5), domain.SinkTarget{})
	require.ErrorIs(t, err, domain.ErrSourceFailure)
	assert.ErrorContains(t, err, "upstream reset")
	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, 1, sink.closes)
}

func TestRunCloseFailure(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{closeErr: errors.New("fsync failed")}

	summary, err := newPipeline(&sliceSource{posts: makePosts(2)}, &stubOpener{sink: sink}, fixedAnalyzer(), nil).Run(context.Background(), validQuery(2), domain.SinkTarget{})
	require.ErrorIs(t, err, domain.ErrWriteFailure)
	assert.Equal(t, domain.StatusFailed, summary.Status)
	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, 1, sink.closes)
}

func TestRunCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	_, err := newPipeline(&sliceSource{}, &stubOpener{sink: sink}, fixedAnalyzer(), nil).Run(ctx, validQuery(2), domain.SinkTarget{})
	require.ErrorIs(t, err, domain.ErrSourceFailure)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sink.closes)
}

func TestRunMisconfigured(t *testing.T) {
	t.Parallel()

	p := usecase.NewPipeline(usecase.PipelineDeps{})
	summary, err := p.Run(context.Background(), validQuery(1), domain.SinkTarget{})
	require.Error(t, err)
	assert.Equal(t, domain.StatusFailed, summary.Status)
}

func TestRunUpdatesMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.NewPipeline()
	source := &sliceSource{posts: makePosts(5)}

	_, err := newPipeline(source, &stubOpener{sink: &recordingSink{}}, fixedAnalyzer(), m).Run(context.Background(), validQuery(3), domain.SinkTarget{})
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.PostsReceived))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsWritten))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LastRunWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LastRunComplete))

	_, err = newPipeline(&sliceSource{}, &stubOpener{err: errors.New("nope")}, fixedAnalyzer(), m).Run(context.Background(), validQuery(3), domain.SinkTarget{})
	require.Error(t, err)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastRunComplete))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("open")))
}

func TestRunWritesCSVEndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	clock := clockwork.NewFakeClockAt(now)
	p := usecase.NewPipeline(usecase.PipelineDeps{
		Source: &sliceSource{posts: makePosts(5)},
		Sinks:  storage.NewOpener(clock, nil),
		Scorer: sentiment.NewScorer(fixedAnalyzer()),
		Clock:  clock,
	})

	target := domain.SinkTarget{File: &domain.FileTarget{Name: "out.csv", Directory: dir}}
	summary, err := p.Run(context.Background(), validQuery(3), target)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, summary.Status)
	assert.Equal(t, 3, summary.Written)

	raw, err := os.ReadFile(filepath.Join(dir, "out.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(domain.RecordFields, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "100,"))
	assert.True(t, strings.HasPrefix(lines[3], "102,"))
}
