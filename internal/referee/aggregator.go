package referee

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/referee-finder/internal/domain"
	"github.com/helixir/referee-finder/internal/llm"
	"github.com/helixir/referee-finder/internal/observability"
	"github.com/helixir/referee-finder/internal/papersources"
)

const extractMethodsOperation = "extract_methods"

// Aggregator describes each reference of a preprint and tags it with the
// preprint methods it uses.
type Aggregator struct {
	extractor llm.MethodExtractor
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewAggregator creates an Aggregator. extractor and metrics may be nil; with
// no extractor, methods come only from providers implementing
// papersources.MethodMatcher.
func NewAggregator(extractor llm.MethodExtractor, logger zerolog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{
		extractor: extractor,
		logger:    logger.With().Str("component", "aggregator").Logger(),
		metrics:   metrics,
	}
}

// TagsMethods reports whether references from provider can carry methods:
// either an extractor reads their abstracts or the provider matches methods
// itself.
func (a *Aggregator) TagsMethods(provider papersources.Provider) bool {
	if a.extractor != nil {
		return true
	}
	_, ok := provider.(papersources.MethodMatcher)
	return ok
}

// Aggregate fetches every reference in ids from provider, in order.
//
// Per-reference failures are logged and the reference is skipped. A
// provider-fatal error or a done context stops the loop and is returned
// together with the entries collected so far.
func (a *Aggregator) Aggregate(ctx context.Context, provider papersources.Provider, preprint domain.PreprintRecord, ids []domain.CanonicalID) ([]domain.ReferenceEntry, error) {
	source := string(provider.SourceType())
	logger := observability.WithProviderContext(a.logger, source, "")
	vocabulary := preprint.Methods.Items()

	entries := make([]domain.ReferenceEntry, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return entries, err
		}

		entry, err := provider.FetchReference(ctx, id)
		if err != nil {
			if ctx.Err() != nil || domain.IsProviderFatal(err) {
				return entries, err
			}
			refLogger := observability.WithReferenceContext(logger, string(id))
			refLogger.Warn().
				Err(err).
				Str("error_kind", domain.ErrorKind(err)).
				Msg("skipping reference")
			if a.metrics != nil {
				a.metrics.RecordReferenceSkipped(source, domain.ErrorKind(err))
			}
			continue
		}

		if a.extractor != nil && entry.Abstract != "" {
			entry.Methods = a.extractMethods(ctx, logger, entry, vocabulary)
		}
		entries = append(entries, entry)
	}

	if a.metrics != nil {
		a.metrics.RecordReferencesFetched(source, len(entries))
	}

	if a.extractor == nil {
		if matcher, ok := provider.(papersources.MethodMatcher); ok && len(entries) > 0 {
			if err := a.applyMatches(ctx, logger, matcher, preprint, ids, entries); err != nil {
				return entries, err
			}
		}
	}

	return entries, nil
}

// extractMethods asks the extractor which vocabulary methods the reference's
// abstract uses. Failures degrade to an empty set.
func (a *Aggregator) extractMethods(ctx context.Context, logger zerolog.Logger, entry domain.ReferenceEntry, vocabulary []string) domain.MethodSet {
	start := time.Now()
	raw, err := a.extractor.ExtractMethods(ctx, entry.Abstract, vocabulary)
	duration := time.Since(start).Seconds()

	if err != nil {
		refLogger := observability.WithReferenceContext(logger, string(entry.ID))
		refLogger.Warn().
			Err(err).
			Str("model", a.extractor.Model()).
			Float64("duration", duration).
			Msg("method extraction failed")
		if a.metrics != nil {
			a.metrics.RecordLLMRequestFailed(extractMethodsOperation, a.extractor.Model(), llm.ErrorType(err))
		}
		return domain.MethodSet{}
	}

	if a.metrics != nil {
		a.metrics.RecordLLMRequest(extractMethodsOperation, a.extractor.Model(), duration)
	}

	methods := llm.FilterToVocabulary(llm.ParseMethodList(raw), vocabulary)
	logger.Debug().
		Str("reference_id", string(entry.ID)).
		Strs("methods", methods).
		Msg("methods extracted")
	return domain.NewMethodSet(methods...)
}

// applyMatches tags entries with the methods the provider's cross-reference
// search attributes to them. Only a fatal error or cancellation is returned.
func (a *Aggregator) applyMatches(ctx context.Context, logger zerolog.Logger, matcher papersources.MethodMatcher, preprint domain.PreprintRecord, ids []domain.CanonicalID, entries []domain.ReferenceEntry) error {
	matches, err := matcher.MatchMethods(ctx, preprint, ids)
	if err != nil {
		if ctx.Err() != nil || domain.IsProviderFatal(err) {
			return err
		}
		logger.Warn().Err(err).Msg("method cross-reference failed")
		if len(matches) == 0 {
			return nil
		}
	}

	for i := range entries {
		set, ok := matches[entries[i].ID]
		if !ok {
			continue
		}
		for _, m := range set.Items() {
			entries[i].Methods.Add(m)
		}
	}
	return nil
}

// isCancellation reports whether err came from a done context.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
