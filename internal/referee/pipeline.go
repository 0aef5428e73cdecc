// Package referee finds candidate referees for preprints.
//
// For each preprint the Coordinator tries the configured bibliographic
// providers in fallback order. A provider attempt resolves the preprint,
// lists its references, describes each reference with the Aggregator and
// keeps the references whose methods overlap the preprint's tagged methods.
// The authors of those references are the candidate referees.
//
// Example usage:
//
//	aggregator := referee.NewAggregator(extractor, logger, metrics)
//	coordinator := referee.NewCoordinator(registry, aggregator, logger, metrics)
//	pipeline := referee.NewPipeline(coordinator, logger, referee.WithMaxPreprints(10))
//	result := pipeline.Run(ctx, records)
package referee

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/referee-finder/internal/domain"
	"github.com/helixir/referee-finder/internal/observability"
)

// Publisher receives the outcome of each preprint as soon as it is known.
type Publisher interface {
	PublishPreprint(ctx context.Context, runID uuid.UUID, summary domain.PreprintSummary, sets []domain.AuthorSet) error
}

// Pipeline processes a batch of preprints sequentially.
type Pipeline struct {
	coordinator  *Coordinator
	logger       zerolog.Logger
	metrics      *observability.Metrics
	publisher       Publisher
	maxPreprints    int
	preprintTimeout time.Duration
	now             func() time.Time
}

// Option configures optional Pipeline dependencies.
type Option func(*Pipeline)

// WithMetrics attaches Prometheus metrics to the pipeline.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = metrics }
}

// WithPublisher attaches a per-preprint result publisher. Publish failures
// are logged and never stop the run.
func WithPublisher(publisher Publisher) Option {
	return func(p *Pipeline) { p.publisher = publisher }
}

// WithMaxPreprints limits how many records a run processes. Zero or a
// negative value means no limit.
func WithMaxPreprints(n int) Option {
	return func(p *Pipeline) { p.maxPreprints = n }
}

// WithPreprintTimeout bounds the time spent on a single preprint. Zero means
// no bound.
func WithPreprintTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.preprintTimeout = d }
}

// WithClock overrides the time source used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a Pipeline around coordinator.
func NewPipeline(coordinator *Coordinator, logger zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		coordinator: coordinator,
		logger:      logger.With().Str("component", "pipeline").Logger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes records in order and returns a fresh RunResult.
//
// The context is checked before each preprint. Once it is done no further
// preprint is started and the result is returned with Cancelled set. The
// preprint in flight runs on a context detached from ctx, so an interrupt
// lets it finish; only the preprint timeout can cut it short.
func (p *Pipeline) Run(ctx context.Context, records []domain.PreprintRecord) *domain.RunResult {
	result := domain.NewRunResult(p.now())
	runID := result.RunID.String()
	logger := observability.WithRunContext(p.logger, runID)
	ctx = observability.WithRunID(ctx, runID)

	if p.maxPreprints > 0 && len(records) > p.maxPreprints {
		logger.Info().
			Int("records", len(records)).
			Int("max_preprints", p.maxPreprints).
			Msg("limiting run to the first records")
		if p.metrics != nil {
			for range records[p.maxPreprints:] {
				p.metrics.RecordRecordSkipped("max_preprints")
			}
		}
		records = records[:p.maxPreprints]
	}

	if p.metrics != nil {
		p.metrics.RecordRunStarted()
	}
	logger.Info().Int("preprints", len(records)).Msg("run started")

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			result.Cancelled = true
			break
		}

		start := time.Now()
		preprintCtx, cancel := p.preprintContext(ctx, rec.ID)
		summary, sets := p.coordinator.Process(preprintCtx, rec)
		if len(sets) > 0 {
			result.Results[rec.Title] = append(result.Results[rec.Title], sets...)
		}
		result.Summaries = append(result.Summaries, summary)

		if p.metrics != nil {
			p.metrics.RecordPreprintProcessed(string(summary.Outcome), time.Since(start).Seconds())
			if summary.Outcome == domain.OutcomeSucceeded {
				p.metrics.RecordRefereesSuggested(summary.AuthorCount)
			}
		}

		if p.publisher != nil {
			if err := p.publisher.PublishPreprint(preprintCtx, result.RunID, summary, sets); err != nil {
				logger.Warn().Err(err).Str("record_id", rec.ID).Msg("failed to publish preprint result")
			}
		}
		cancel()
	}

	if ctx.Err() != nil {
		result.Cancelled = true
	}
	result.FinishedAt = p.now()

	duration := result.FinishedAt.Sub(result.StartedAt).Seconds()
	if p.metrics != nil {
		if result.Cancelled {
			p.metrics.RecordRunCancelled(duration)
		} else {
			p.metrics.RecordRunCompleted(duration)
		}
	}

	logger.Info().
		Int("processed", len(result.Summaries)).
		Int("succeeded", result.Succeeded()).
		Bool("cancelled", result.Cancelled).
		Float64("duration", duration).
		Msg("run finished")

	return result
}

// preprintContext derives the context for one preprint. It keeps ctx's values
// but not its cancellation.
func (p *Pipeline) preprintContext(ctx context.Context, recordID string) (context.Context, context.CancelFunc) {
	ctx = observability.WithRecordID(context.WithoutCancel(ctx), recordID)
	if p.preprintTimeout > 0 {
		return context.WithTimeout(ctx, p.preprintTimeout)
	}
	return context.WithCancel(ctx)
}
