package referee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/referee-finder/internal/domain"
	"github.com/helixir/referee-finder/internal/observability"
	"github.com/helixir/referee-finder/internal/papersources"
)

// ProviderSource lists providers in fallback order. *papersources.Registry
// satisfies it.
type ProviderSource interface {
	Ordered() []papersources.Provider
}

// Coordinator walks the provider fallback sequence for one preprint until a
// provider yields at least one candidate referee.
type Coordinator struct {
	providers  ProviderSource
	aggregator *Aggregator
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewCoordinator creates a Coordinator. metrics may be nil.
func NewCoordinator(providers ProviderSource, aggregator *Aggregator, logger zerolog.Logger, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		providers:  providers,
		aggregator: aggregator,
		logger:     logger.With().Str("component", "coordinator").Logger(),
		metrics:    metrics,
	}
}

// Process runs the fallback sequence for preprint. Each provider is tried at
// most once. The first provider producing a non-empty author list ends the
// sequence; if none does the preprint ends in StateExhausted with no author
// sets, which is reported rather than returned as an error.
func (c *Coordinator) Process(ctx context.Context, preprint domain.PreprintRecord) (domain.PreprintSummary, []domain.AuthorSet) {
	summary := domain.PreprintSummary{
		RecordID: preprint.ID,
		Title:    preprint.Title,
		Attempts: []domain.ProviderAttempt{},
	}
	logger := observability.WithPreprintContext(c.logger, preprint.ID, preprint.Title)

	if preprint.Methods.IsEmpty() {
		logger.Warn().Str("methods_tag", preprint.MethodsTag).Msg("no methods in tag, skipping preprint")
		summary.Outcome = domain.OutcomeNoMethods
		summary.Error = domain.NewValidationError("methods_tag", "no methods listed").Error()
		return summary, nil
	}

	providers := c.providers.Ordered()
	if len(providers) > len(domain.FallbackStates) {
		providers = providers[:len(domain.FallbackStates)]
	}

	for i, provider := range providers {
		if err := ctx.Err(); err != nil {
			return cancelled(summary, err), nil
		}

		state := domain.FallbackStates[i]
		summary.FinalState = state

		attempt, sets := c.attempt(ctx, provider, state, preprint)
		summary.Attempts = append(summary.Attempts, attempt)

		if attempt.Succeeded() {
			summary.Outcome = domain.OutcomeSucceeded
			summary.Provider = attempt.Provider
			summary.ReferenceCount = attempt.References
			summary.QualifyingCount = attempt.Qualifying
			summary.AuthorCount = attempt.Authors
			logger.Info().
				Str("provider", string(attempt.Provider)).
				Str("state", string(state)).
				Int("authors", attempt.Authors).
				Msg("referees found")
			return summary, sets
		}

		if err := ctx.Err(); err != nil {
			return cancelled(summary, err), nil
		}
	}

	summary.Outcome = domain.OutcomeExhausted
	summary.FinalState = domain.StateExhausted
	logger.Info().
		Int("providers_tried", len(summary.Attempts)).
		Msg("all providers exhausted without referees")
	return summary, nil
}

// attempt runs resolve, references, aggregate and filter against a single
// provider. Errors end the attempt and are recorded on it.
func (c *Coordinator) attempt(ctx context.Context, provider papersources.Provider, state domain.FallbackState, preprint domain.PreprintRecord) (domain.ProviderAttempt, []domain.AuthorSet) {
	start := time.Now()
	source := provider.SourceType()
	logger := observability.WithProviderContext(
		observability.WithPreprintContext(c.logger, preprint.ID, preprint.Title),
		string(source), string(state),
	)
	ctx = observability.WithProvider(ctx, string(source))

	attempt := domain.ProviderAttempt{
		Provider: source,
		State:    state,
		Stage:    domain.StageResolve,
	}

	finish := func(err error) domain.ProviderAttempt {
		attempt.Duration = time.Since(start)
		result := "empty"
		if err != nil {
			attempt.Error = err.Error()
			attempt.ErrorKind = domain.ErrorKind(err)
			result = attempt.ErrorKind
			event := logger.Warn()
			switch {
			case isCancellation(err):
				event = logger.Info()
			case errors.Is(err, domain.ErrNoMethodSource):
				event = logger.Debug()
			}
			event.Err(err).
				Str("stage", string(attempt.Stage)).
				Str("error_kind", attempt.ErrorKind).
				Bool("provider_fatal", domain.IsProviderFatal(err)).
				Msg("provider attempt failed")
		} else if attempt.Succeeded() {
			result = "succeeded"
		}
		if c.metrics != nil {
			c.metrics.RecordProviderAttempt(string(source), result, attempt.Duration.Seconds())
		}
		return attempt
	}

	if !c.aggregator.TagsMethods(provider) {
		return finish(fmt.Errorf("%s: %w", source, domain.ErrNoMethodSource)), nil
	}

	res, err := provider.Resolve(ctx, preprint.Title, preprint.DOI)
	if err != nil {
		return finish(err), nil
	}
	attempt.ResolvedID = res.ID
	attempt.Confidence = res.Confidence
	logger.Debug().
		Str("resolved_id", string(res.ID)).
		Str("confidence", string(res.Confidence)).
		Msg("preprint resolved")

	attempt.Stage = domain.StageReferences
	ids, err := provider.FetchReferences(ctx, res.ID)
	if err != nil {
		return finish(err), nil
	}
	attempt.References = len(ids)
	if len(ids) == 0 {
		logger.Info().Msg("no references listed")
		return finish(nil), nil
	}

	attempt.Stage = domain.StageAggregate
	entries, err := c.aggregator.Aggregate(ctx, provider, preprint, ids)
	if err != nil {
		return finish(err), nil
	}

	attempt.Stage = domain.StageFilter
	qualifying := Filter(preprint.Methods, entries)
	attempt.Qualifying = len(qualifying)
	if c.metrics != nil {
		c.metrics.RecordReferencesQualifying(string(source), len(qualifying))
	}

	sets, authors := authorSets(qualifying)
	attempt.Authors = authors
	if authors > 0 {
		attempt.Stage = domain.StageDone
	}

	logger.Debug().
		Int("references", attempt.References).
		Int("described", len(entries)).
		Int("qualifying", attempt.Qualifying).
		Int("authors", authors).
		Msg("provider attempt finished")

	return finish(nil), sets
}

func cancelled(summary domain.PreprintSummary, err error) domain.PreprintSummary {
	summary.Outcome = domain.OutcomeSkipped
	summary.Error = err.Error()
	return summary
}
