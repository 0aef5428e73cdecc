package papersources

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/referee-finder/internal/domain"
)

// stubProvider is a minimal Provider for registry tests.
type stubProvider struct {
	sourceType domain.SourceType
	enabled    bool
}

func (s *stubProvider) Resolve(context.Context, string, string) (Resolution, error) {
	return Resolution{}, domain.ErrNotFound
}

func (s *stubProvider) FetchReferences(context.Context, domain.CanonicalID) ([]domain.CanonicalID, error) {
	return nil, nil
}

func (s *stubProvider) FetchReference(context.Context, domain.CanonicalID) (domain.ReferenceEntry, error) {
	return domain.ReferenceEntry{}, domain.ErrNotFound
}

func (s *stubProvider) SourceType() domain.SourceType { return s.sourceType }
func (s *stubProvider) Name() string                  { return string(s.sourceType) }
func (s *stubProvider) IsEnabled() bool               { return s.enabled }

func sourceTypes(ps []Provider) []domain.SourceType {
	out := make([]domain.SourceType, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.SourceType())
	}
	return out
}

func TestRegistry_Ordered(t *testing.T) {
	t.Run("default order regardless of registration order", func(t *testing.T) {
		r := NewRegistry()
		r.Register(&stubProvider{sourceType: domain.SourceTypeSemanticScholar, enabled: true})
		r.Register(&stubProvider{sourceType: domain.SourceTypePubMed, enabled: true})
		r.Register(&stubProvider{sourceType: domain.SourceTypeOpenAlex, enabled: true})

		assert.Equal(t, DefaultOrder, sourceTypes(r.Ordered()))
	})

	t.Run("skips disabled and unregistered providers", func(t *testing.T) {
		r := NewRegistry()
		r.Register(&stubProvider{sourceType: domain.SourceTypePubMed, enabled: false})
		r.Register(&stubProvider{sourceType: domain.SourceTypeSemanticScholar, enabled: true})

		assert.Equal(t, []domain.SourceType{domain.SourceTypeSemanticScholar}, sourceTypes(r.Ordered()))
	})

	t.Run("custom order", func(t *testing.T) {
		r := NewRegistry()
		r.Register(&stubProvider{sourceType: domain.SourceTypePubMed, enabled: true})
		r.Register(&stubProvider{sourceType: domain.SourceTypeOpenAlex, enabled: true})

		require.NoError(t, r.SetOrder([]domain.SourceType{domain.SourceTypeOpenAlex, domain.SourceTypePubMed}))
		assert.Equal(t, []domain.SourceType{domain.SourceTypeOpenAlex, domain.SourceTypePubMed}, sourceTypes(r.Ordered()))
	})

	t.Run("register replaces existing provider", func(t *testing.T) {
		r := NewRegistry()
		first := &stubProvider{sourceType: domain.SourceTypePubMed, enabled: true}
		second := &stubProvider{sourceType: domain.SourceTypePubMed, enabled: true}
		r.Register(first)
		r.Register(second)

		assert.Same(t, second, r.Get(domain.SourceTypePubMed))
		assert.Len(t, r.Ordered(), 1)
		assert.Nil(t, r.Get(domain.SourceTypeOpenAlex))
	})
}

func TestRegistry_SetOrderValidation(t *testing.T) {
	r := NewRegistry()

	err := r.SetOrder([]domain.SourceType{"scopus"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = r.SetOrder([]domain.SourceType{domain.SourceTypePubMed, domain.SourceTypePubMed})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDisambiguate(t *testing.T) {
	ids := func(s ...string) []domain.CanonicalID {
		out := make([]domain.CanonicalID, len(s))
		for i, v := range s {
			out[i] = domain.CanonicalID(v)
		}
		return out
	}

	t.Run("returns first title id also found by doi", func(t *testing.T) {
		res, err := Disambiguate("t", ids("1", "2", "3"), nil, "10.1/x", ids("3", "2"), nil)
		require.NoError(t, err)
		assert.Equal(t, domain.CanonicalID("2"), res.ID)
		assert.Equal(t, domain.ConfidenceExact, res.Confidence)
	})

	t.Run("no intersection is not found", func(t *testing.T) {
		_, err := Disambiguate("t", ids("1"), nil, "10.1/x", ids("9"), nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("missing doi falls back to best title match", func(t *testing.T) {
		res, err := Disambiguate("t", ids("7", "8"), nil, "", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.CanonicalID("7"), res.ID)
		assert.Equal(t, domain.ConfidenceTitleOnly, res.Confidence)
	})

	t.Run("missing doi and no title hits", func(t *testing.T) {
		_, err := Disambiguate("t", nil, nil, "", nil, nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("missing doi surfaces title failure", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Disambiguate("t", nil, boom, "", nil, nil)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("doi search failure is joined to not found", func(t *testing.T) {
		authErr := domain.NewExternalAPIError("S2", http.StatusForbidden, "", "")
		_, err := Disambiguate("t", ids("1"), nil, "10.1/x", nil, authErr)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.True(t, domain.IsProviderFatal(err))
	})
}
