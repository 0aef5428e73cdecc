package papersources

import (
	"fmt"
	"sync"

	"github.com/helixir/referee-finder/internal/domain"
)

// DefaultOrder is the fallback order: primary index, secondary index,
// citation database.
var DefaultOrder = []domain.SourceType{
	domain.SourceTypePubMed,
	domain.SourceTypeOpenAlex,
	domain.SourceTypeSemanticScholar,
}

// Registry holds providers and the order in which the coordinator tries them.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[domain.SourceType]Provider
	order     []domain.SourceType
}

// NewRegistry creates an empty registry using DefaultOrder.
func NewRegistry() *Registry {
	order := make([]domain.SourceType, len(DefaultOrder))
	copy(order, DefaultOrder)
	return &Registry{
		providers: make(map[domain.SourceType]Provider),
		order:     order,
	}
}

// Register adds a provider, replacing any provider of the same type.
// Types missing from the order are appended to it.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := p.SourceType()
	r.providers[st] = p
	for _, o := range r.order {
		if o == st {
			return
		}
	}
	r.order = append(r.order, st)
}

// SetOrder replaces the fallback order. Each entry must be a known source
// type and may appear only once.
func (r *Registry) SetOrder(order []domain.SourceType) error {
	seen := make(map[domain.SourceType]struct{}, len(order))
	for _, st := range order {
		if !st.IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, st)
		}
		if _, dup := seen[st]; dup {
			return fmt.Errorf("%w: provider %q listed twice", domain.ErrInvalidInput, st)
		}
		seen[st] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append([]domain.SourceType(nil), order...)
	return nil
}

// Get returns a provider by type, or nil if not registered.
func (r *Registry) Get(st domain.SourceType) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[st]
}

// Ordered returns the registered, enabled providers in fallback order.
// The returned slice is a snapshot.
func (r *Registry) Ordered() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.order))
	for _, st := range r.order {
		if p, ok := r.providers[st]; ok && p.IsEnabled() {
			out = append(out, p)
		}
	}
	return out
}
