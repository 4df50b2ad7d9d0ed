// Package search implements the free-text and facet filter shared by every
// list endpoint. It is a full scan over an in-memory slice and keeps the
// input order.
package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Searchable is implemented by entities that can be filtered.
type Searchable interface {
	// SearchText returns the fields matched by the free-text query, such as
	// names and identifiers.
	SearchText() []string
	// FacetValue returns the entity's value for the named facet, or false
	// when the entity has no such facet.
	FacetValue(name string) (string, bool)
}

// Filter is a free-text query plus exact facet constraints. The zero value
// matches everything.
type Filter struct {
	Query  string
	Facets map[string]string
}

// IsEmpty reports whether f constrains nothing.
func (f Filter) IsEmpty() bool {
	return strings.TrimSpace(f.Query) == "" && len(f.Facets) == 0
}

// Apply returns the items matching f in their original order.
func Apply[T Searchable](items []T, f Filter) []T {
	m := NewMatcher(f)
	out := make([]T, 0, len(items))
	for _, it := range items {
		if m.Match(it) {
			out = append(out, it)
		}
	}
	return out
}

// Matcher is a Filter prepared for repeated matching. It is not safe for
// concurrent use.
type Matcher struct {
	folder cases.Caser
	marks  transform.Transformer
	query  string
	facets map[string]string
}

// NewMatcher folds the query once so Match only folds candidate text.
// Folding ignores case and diacritics, so "garcia" finds "García".
func NewMatcher(f Filter) *Matcher {
	m := &Matcher{
		folder: cases.Fold(),
		marks:  transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		facets: f.Facets,
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		m.query = m.fold(q)
	}
	return m
}

func (m *Matcher) fold(s string) string {
	if stripped, _, err := transform.String(m.marks, s); err == nil {
		s = stripped
	}
	return m.folder.String(s)
}

// Match reports whether it satisfies the query and every facet.
func (m *Matcher) Match(it Searchable) bool {
	for name, want := range m.facets {
		got, ok := it.FacetValue(name)
		if !ok || !m.equal(got, want) {
			return false
		}
	}
	if m.query == "" {
		return true
	}
	for _, text := range it.SearchText() {
		if text != "" && strings.Contains(m.fold(text), m.query) {
			return true
		}
	}
	return false
}

func (m *Matcher) equal(a, b string) bool {
	return m.fold(strings.TrimSpace(a)) == m.fold(strings.TrimSpace(b))
}
