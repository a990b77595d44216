package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/mattn/go-runewidth"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"Bluebird/internal/domain"
	"Bluebird/internal/metrics"
	"Bluebird/internal/ports"
	"Bluebird/internal/sentiment"
	"Bluebird/internal/weighting"
)

const previewWidth = 60

// Failure stages, used as metric labels and log attributes.
const (
	stageValidate = "validate"
	stageOpen     = "open"
	stageSource   = "source"
	stageScore    = "score"
	stageAppend   = "append"
	stageClose    = "close"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source   ports.PostSource
	Sinks    ports.SinkOpener
	Scorer   *sentiment.Scorer
	Clock    clockwork.Clock
	Metrics  *metrics.Pipeline
	Logger   *slog.Logger
	Language string
}

// Pipeline implements the collect -> score -> sink workflow.
type Pipeline struct {
	source   ports.PostSource
	sinks    ports.SinkOpener
	scorer   *sentiment.Scorer
	clock    clockwork.Clock
	metrics  *metrics.Pipeline
	logger   *slog.Logger
	language string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		source:   deps.Source,
		sinks:    deps.Sinks,
		scorer:   deps.Scorer,
		clock:    clock,
		metrics:  deps.Metrics,
		logger:   logger,
		language: deps.Language,
	}
}

// Run validates the query, opens the sink, streams at most query.MaxRecords
// scored records into it and closes it exactly once. The returned summary is
// Completed or Failed; a failed summary always comes with a non-nil error.
func (p *Pipeline) Run(ctx context.Context, query domain.Query, target domain.SinkTarget) (domain.Summary, error) {
	startedAt := p.clock.Now()
	summary := domain.Summary{
		RunID:     ulid.MustNew(ulid.Timestamp(startedAt), ulid.DefaultEntropy()).String(),
		Status:    domain.StatusIdle,
		StartedAt: startedAt,
	}
	log := p.logger.With("run_id", summary.RunID)

	if p.source == nil || p.sinks == nil || p.scorer == nil {
		return p.fail(log, summary, stageValidate, errors.New("pipeline misconfigured: source, sinks and scorer are required"))
	}

	if err := query.Validate(startedAt); err != nil {
		return p.fail(log, summary, stageValidate, err)
	}

	summary.Status = domain.StatusRunning
	log.Info("run started",
		"terms", query.Terms,
		"start", query.Start.Format(domain.DateLayout),
		"end", query.End.Format(domain.DateLayout),
		"max_records", query.MaxRecords)

	sink, err := p.sinks.Open(ctx, target)
	if err != nil {
		if !errors.Is(err, domain.ErrSinkUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrSinkUnavailable, err)
		}
		return p.fail(log, summary, stageOpen, fmt.Errorf("open sink: %w", err))
	}

	written, stage, err := p.collect(ctx, log, query, sink)
	summary.Written = written
	if err != nil {
		if closeErr := sink.Close(); closeErr != nil {
			log.Warn("best-effort sink close failed", "error", closeErr)
			err = errors.Join(err, fmt.Errorf("close sink: %w", closeErr))
		}
		return p.fail(log, summary, stage, err)
	}

	if err := sink.Close(); err != nil {
		if !errors.Is(err, domain.ErrWriteFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrWriteFailure, err)
		}
		return p.fail(log, summary, stageClose, fmt.Errorf("close sink: %w", err))
	}

	summary.Status = domain.StatusCompleted
	summary.FinishedAt = p.clock.Now()
	p.observe(summary)
	log.Info("run completed", "written", summary.Written, "elapsed", summary.FinishedAt.Sub(summary.StartedAt))
	return summary, nil
}

// collect ranges the source until it is exhausted or the bound is reached.
// Record i is appended before record i+1 is pulled.
func (p *Pipeline) collect(ctx context.Context, log *slog.Logger, query domain.Query, sink ports.Sink) (int, string, error) {
	search := query.BuildSearch(p.language)
	log.Debug("search composed", "query", search.Text)

	written := 0
	for post, err := range p.source.Stream(ctx, search) {
		if err != nil {
			return written, stageSource, fmt.Errorf("%w: %w", domain.ErrSourceFailure, err)
		}
		if p.metrics != nil {
			p.metrics.PostsReceived.Inc()
		}

		record, err := p.score(ctx, query.Terms, post)
		if err != nil {
			return written, stageScore, fmt.Errorf("score post %s: %w", post.ID, err)
		}

		if err := sink.Append(ctx, record); err != nil {
			if !errors.Is(err, domain.ErrWriteFailure) {
				err = fmt.Errorf("%w: %w", domain.ErrWriteFailure, err)
			}
			return written, stageAppend, fmt.Errorf("append post %s: %w", post.ID, err)
		}
		written++
		if p.metrics != nil {
			p.metrics.RecordsWritten.Inc()
		}

		log.Debug("record written",
			"id", record.ID,
			"author", record.Author,
			"weight", record.Weight,
			"positive", record.Positive,
			"negative", record.Negative,
			"preview", preview(record.Content))

		if written >= query.MaxRecords {
			log.Debug("record bound reached", "max_records", query.MaxRecords)
			return written, "", nil
		}
	}

	if err := ctx.Err(); err != nil {
		return written, stageSource, fmt.Errorf("%w: %w", domain.ErrSourceFailure, err)
	}
	return written, "", nil
}

// score computes weight and sentiment concurrently and joins both before building the record.
func (p *Pipeline) score(ctx context.Context, terms []string, post domain.Post) (domain.Record, error) {
	var (
		weight float64
		result domain.Sentiment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w, err := weighting.Weight(post.Content, terms)
		if err != nil {
			return fmt.Errorf("weight: %w", err)
		}
		weight = w
		return nil
	})
	g.Go(func() error {
		s, err := p.scorer.Score(gctx, post.Content)
		if err != nil {
			return fmt.Errorf("sentiment: %w", err)
		}
		result = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Record{}, err
	}

	return domain.NewRecord(post, weight, result), nil
}

func (p *Pipeline) fail(log *slog.Logger, summary domain.Summary, stage string, err error) (domain.Summary, error) {
	summary.Status = domain.StatusFailed
	summary.Cause = err
	summary.FinishedAt = p.clock.Now()
	p.observe(summary)
	if p.metrics != nil {
		p.metrics.Failures.WithLabelValues(stage).Inc()
	}
	log.Error("run failed", "stage", stage, "written", summary.Written, "error", err)
	return summary, err
}

func (p *Pipeline) observe(summary domain.Summary) {
	if p.metrics == nil {
		return
	}
	p.metrics.RunDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	p.metrics.LastRunWritten.Set(float64(summary.Written))
	if summary.Status == domain.StatusCompleted {
		p.metrics.LastRunComplete.Set(1)
	} else {
		p.metrics.LastRunComplete.Set(0)
	}
}

func preview(content string) string {
	return runewidth.Truncate(strings.Join(strings.Fields(content), " "), previewWidth, "...")
}

