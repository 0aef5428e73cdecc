package referee

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/referee-finder/internal/domain"
	"github.com/helixir/referee-finder/internal/papersources"
)

// fakeProvider is an in-memory papersources.Provider that counts calls.
type fakeProvider struct {
	source     domain.SourceType
	disabled   bool
	resolveID  domain.CanonicalID
	resolveErr error
	refs       []domain.CanonicalID
	refsErr    error
	entries    map[domain.CanonicalID]domain.ReferenceEntry
	entryErrs  map[domain.CanonicalID]error

	// onResolve runs at the start of Resolve, e.g. to cancel the run.
	onResolve func()

	resolveCalls    int
	referencesCalls int
	fetchCalls      int
}

var _ papersources.Provider = (*fakeProvider)(nil)

func (f *fakeProvider) Resolve(ctx context.Context, title, doi string) (papersources.Resolution, error) {
	f.resolveCalls++
	if f.onResolve != nil {
		f.onResolve()
	}
	if err := ctx.Err(); err != nil {
		return papersources.Resolution{}, err
	}
	if f.resolveErr != nil {
		return papersources.Resolution{}, f.resolveErr
	}
	return papersources.Resolution{ID: f.resolveID, Confidence: domain.ConfidenceExact}, nil
}

func (f *fakeProvider) FetchReferences(ctx context.Context, id domain.CanonicalID) ([]domain.CanonicalID, error) {
	f.referencesCalls++
	if f.refsErr != nil {
		return nil, f.refsErr
	}
	return f.refs, nil
}

func (f *fakeProvider) FetchReference(ctx context.Context, id domain.CanonicalID) (domain.ReferenceEntry, error) {
	f.fetchCalls++
	if err := f.entryErrs[id]; err != nil {
		return domain.ReferenceEntry{}, err
	}
	entry, ok := f.entries[id]
	if !ok {
		return domain.ReferenceEntry{}, domain.NewNotFoundError("reference", string(id))
	}
	return entry, nil
}

func (f *fakeProvider) SourceType() domain.SourceType { return f.source }
func (f *fakeProvider) Name() string                  { return string(f.source) }
func (f *fakeProvider) IsEnabled() bool               { return !f.disabled }

// matchingProvider adds papersources.MethodMatcher to fakeProvider.
type matchingProvider struct {
	*fakeProvider
	matches  map[domain.CanonicalID]domain.MethodSet
	matchErr error
	calls    int
}

func (m *matchingProvider) MatchMethods(ctx context.Context, preprint domain.PreprintRecord, refs []domain.CanonicalID) (map[domain.CanonicalID]domain.MethodSet, error) {
	m.calls++
	return m.matches, m.matchErr
}

// fakeExtractor answers with the vocabulary entries that appear verbatim in
// the abstract, lowercased.
type fakeExtractor struct {
	err   error
	calls int
	seen  [][]string
}

func (f *fakeExtractor) ExtractMethods(ctx context.Context, abstract string, vocabulary []string) (string, error) {
	f.calls++
	f.seen = append(f.seen, vocabulary)
	if f.err != nil {
		return "", f.err
	}
	var found []string
	lower := strings.ToLower(abstract)
	for _, v := range vocabulary {
		if strings.Contains(lower, strings.ToLower(v)) {
			found = append(found, strings.ToUpper(v))
		}
	}
	return strings.Join(found, ", "), nil
}

func (f *fakeExtractor) Provider() string { return "fake" }
func (f *fakeExtractor) Model() string    { return "fake-model" }

func newRegistry(providers ...papersources.Provider) *papersources.Registry {
	r := papersources.NewRegistry()
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

func reference(id, title, abstract string, authors ...domain.Author) domain.ReferenceEntry {
	return domain.ReferenceEntry{
		ID:       domain.CanonicalID(id),
		Title:    title,
		Authors:  authors,
		Abstract: abstract,
	}
}

func testPreprint() domain.PreprintRecord {
	return domain.NewPreprintRecord("rec1",
		"Emetine dihydrochloride inhibits Chikungunya virus nsP2 helicase",
		"https://doi.org/10.1101/2024.01.01.000001",
		"Concepts: antiviral; Methods: plaque assay; rna extraction",
		"Selected",
	)
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
