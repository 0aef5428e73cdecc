// Package papersources defines the provider abstraction used by the fallback
// coordinator and the shared HTTP plumbing (rate limiting, retries, typed
// errors) every provider client is built on.
//
// Each bibliographic index (PubMed, OpenAlex, Semantic Scholar) implements
// the Provider interface, so the coordinator can walk them in order with a
// single code path.
//
// Example usage:
//
//	provider := pubmed.New(cfg)
//	res, err := provider.Resolve(ctx, rec.Title, rec.DOI)
//	refs, err := provider.FetchReferences(ctx, res.ID)
//	entry, err := provider.FetchReference(ctx, refs[0])
package papersources

import (
	"context"
	"errors"

	"github.com/helixir/referee-finder/internal/domain"
)

// Resolution is the outcome of mapping a preprint to a provider identifier.
type Resolution struct {
	ID         domain.CanonicalID
	Confidence domain.Confidence
}

// Provider is a bibliographic index that can resolve a preprint, list its
// references and describe a single reference.
type Provider interface {
	// Resolve maps a title and optional DOI to the provider's identifier.
	// When doi is non-empty the id must appear in both the title and the DOI
	// search results. Returns domain.ErrNotFound when no id qualifies.
	Resolve(ctx context.Context, title, doi string) (Resolution, error)

	// FetchReferences returns the provider-native ids of the works cited by id,
	// in the provider's order, capped by configuration. A record with no
	// references yields an empty slice and no error; a missing record yields
	// domain.ErrNotFound.
	FetchReferences(ctx context.Context, id domain.CanonicalID) ([]domain.CanonicalID, error)

	// FetchReference returns the title, authors and abstract of a single work.
	// Missing parts are defaulted rather than reported as errors.
	FetchReference(ctx context.Context, id domain.CanonicalID) (domain.ReferenceEntry, error)

	// SourceType returns the type identifier for this provider.
	SourceType() domain.SourceType

	// Name returns a human-readable name used in logs and errors.
	Name() string

	// IsEnabled returns whether the provider is enabled by configuration.
	IsEnabled() bool
}

// MethodMatcher is implemented by providers that can tag references with the
// preprint methods they match without reading abstracts.
type MethodMatcher interface {
	MatchMethods(ctx context.Context, preprint domain.PreprintRecord, refs []domain.CanonicalID) (map[domain.CanonicalID]domain.MethodSet, error)
}

// Disambiguate applies the resolution rule shared by all providers to the
// results of a title search and a DOI search.
//
// With no DOI the first title candidate is returned with ConfidenceTitleOnly.
// With a DOI the first title candidate that also appears in the DOI results
// wins. A failure in one search does not discard the other's results; if no
// candidate qualifies, the search errors are joined to the not-found error so
// callers can still see provider-fatal conditions.
func Disambiguate(title string, titleIDs []domain.CanonicalID, titleErr error, doi string, doiIDs []domain.CanonicalID, doiErr error) (Resolution, error) {
	notFound := domain.NewNotFoundError("preprint", title)

	if doi == "" {
		if titleErr != nil {
			return Resolution{}, titleErr
		}
		if len(titleIDs) == 0 {
			return Resolution{}, notFound
		}
		return Resolution{ID: titleIDs[0], Confidence: domain.ConfidenceTitleOnly}, nil
	}

	doiSet := make(map[domain.CanonicalID]struct{}, len(doiIDs))
	for _, id := range doiIDs {
		doiSet[id] = struct{}{}
	}
	for _, id := range titleIDs {
		if _, ok := doiSet[id]; ok {
			return Resolution{ID: id, Confidence: domain.ConfidenceExact}, nil
		}
	}

	return Resolution{}, errors.Join(notFound, titleErr, doiErr)
}
