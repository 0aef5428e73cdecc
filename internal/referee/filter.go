package referee

import (
	"github.com/helixir/referee-finder/internal/domain"
)

// Filter returns the references whose methods share at least one entry with
// preprintMethods, preserving input order. Both sides are normalized by
// domain.MethodSet, so the comparison is case-insensitive.
func Filter(preprintMethods domain.MethodSet, refs []domain.ReferenceEntry) []domain.ReferenceEntry {
	if preprintMethods.IsEmpty() {
		return nil
	}

	var out []domain.ReferenceEntry
	for _, ref := range refs {
		if ref.Methods.Intersects(preprintMethods) {
			out = append(out, ref)
		}
	}
	return out
}

// authorSets builds one AuthorSet per qualifying reference, dropping
// references left with no named author, and returns the total author count.
func authorSets(refs []domain.ReferenceEntry) ([]domain.AuthorSet, int) {
	var (
		sets  []domain.AuthorSet
		total int
	)
	for _, ref := range refs {
		set := domain.NewAuthorSet(ref)
		if len(set.Authors) == 0 {
			continue
		}
		sets = append(sets, set)
		total += len(set.Authors)
	}
	return sets, total
}
