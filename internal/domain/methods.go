package domain

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	methodsDelimiter  = regexp.MustCompile(`(?i)methods:`)
	conceptsDelimiter = regexp.MustCompile(`(?i)concepts:`)
	whitespaceRun     = regexp.MustCompile(`\s+`)
)

// NormalizeMethod trims, lowercases and collapses inner whitespace.
// Preprint tags and extracted reference methods must both pass through it
// before they are compared.
func NormalizeMethod(method string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(method)), " ")
}

// MethodSet is an insertion-ordered set of normalized method names.
// The zero value is an empty set ready to use.
type MethodSet struct {
	items []string
	index map[string]struct{}
}

// NewMethodSet builds a set from raw method names.
func NewMethodSet(methods ...string) MethodSet {
	var s MethodSet
	for _, m := range methods {
		s.Add(m)
	}
	return s
}

// Add normalizes method and inserts it. Empty names are ignored.
// Returns true if the set grew.
func (s *MethodSet) Add(method string) bool {
	m := NormalizeMethod(method)
	if m == "" {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[m]; ok {
		return false
	}
	s.index[m] = struct{}{}
	s.items = append(s.items, m)
	return true
}

// Has reports whether the normalized form of method is present.
func (s MethodSet) Has(method string) bool {
	_, ok := s.index[NormalizeMethod(method)]
	return ok
}

// Len returns the number of methods.
func (s MethodSet) Len() int {
	return len(s.items)
}

// IsEmpty returns true if the set has no methods.
func (s MethodSet) IsEmpty() bool {
	return len(s.items) == 0
}

// Items returns a copy of the methods in insertion order.
func (s MethodSet) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Intersection returns the methods of s that are also in other, in s's order.
func (s MethodSet) Intersection(other MethodSet) []string {
	var out []string
	for _, m := range s.items {
		if _, ok := other.index[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Intersects reports whether s and other share at least one method.
func (s MethodSet) Intersects(other MethodSet) bool {
	small, large := s, other
	if small.Len() > large.Len() {
		small, large = large, small
	}
	for _, m := range small.items {
		if _, ok := large.index[m]; ok {
			return true
		}
	}
	return false
}

// String joins the methods with "; ".
func (s MethodSet) String() string {
	return strings.Join(s.items, "; ")
}

// MarshalJSON encodes the set as a JSON array.
func (s MethodSet) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

// UnmarshalJSON decodes a JSON array, normalizing each entry.
func (s *MethodSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewMethodSet(items...)
	return nil
}

// ParseMethodsTag extracts the methods from a tag of the form
// "Concepts: A; B Methods: D; E". Everything after the "Methods:" delimiter
// is split on ";". A tag without the delimiter yields an empty set.
func ParseMethodsTag(tag string) MethodSet {
	loc := methodsDelimiter.FindStringIndex(tag)
	if loc == nil {
		return MethodSet{}
	}
	return splitTagList(tag[loc[1]:])
}

// ParseConceptsTag extracts the concepts listed between "Concepts:" and
// "Methods:" (or the end of the tag).
func ParseConceptsTag(tag string) MethodSet {
	loc := conceptsDelimiter.FindStringIndex(tag)
	if loc == nil {
		return MethodSet{}
	}
	rest := tag[loc[1]:]
	if end := methodsDelimiter.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	return splitTagList(rest)
}

func splitTagList(list string) MethodSet {
	var s MethodSet
	for _, item := range strings.Split(list, ";") {
		s.Add(item)
	}
	return s
}
