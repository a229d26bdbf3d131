package domain

import "strings"

// CategoryOther is the fallback category for ambiguous classifications.
const CategoryOther = "Other"

// DefaultCategories is the built-in category taxonomy.
var DefaultCategories = []string{
	"Food & Drink",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Health",
	"Education",
	"Bills",
	CategoryOther,
}

// Taxonomy is an ordered, fixed set of category names with a fallback.
// The zero value is empty and falls back to CategoryOther.
type Taxonomy struct {
	names    []string
	exact    map[string]string
	folded   map[string]string
	fallback string
}

// NewTaxonomy builds a taxonomy from names, dropping blanks and duplicates.
// The fallback is CategoryOther; it is appended when missing from names.
func NewTaxonomy(names ...string) Taxonomy {
	return NewTaxonomyWithFallback(CategoryOther, names...)
}

// NewTaxonomyWithFallback is NewTaxonomy with a custom fallback category,
// for localized category sets.
func NewTaxonomyWithFallback(fallback string, names ...string) Taxonomy {
	t := Taxonomy{
		exact:    make(map[string]string),
		folded:   make(map[string]string),
		fallback: strings.TrimSpace(fallback),
	}
	if t.fallback == "" {
		t.fallback = CategoryOther
	}
	for _, n := range append(append([]string{}, names...), t.fallback) {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := t.exact[n]; ok {
			continue
		}
		t.names = append(t.names, n)
		t.exact[n] = n
		if _, ok := t.folded[foldCategory(n)]; !ok {
			t.folded[foldCategory(n)] = n
		}
	}
	return t
}

// DefaultTaxonomy returns the built-in taxonomy.
func DefaultTaxonomy() Taxonomy {
	return NewTaxonomy(DefaultCategories...)
}

// Names returns the categories in their configured order.
func (t Taxonomy) Names() []string {
	if len(t.names) == 0 {
		return []string{t.Fallback()}
	}
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Fallback returns the category used when a classification is ambiguous.
func (t Taxonomy) Fallback() string {
	if t.fallback == "" {
		return CategoryOther
	}
	return t.fallback
}

// Contains reports whether name is exactly one of the categories.
func (t Taxonomy) Contains(name string) bool {
	if t.exact == nil {
		return name == t.Fallback()
	}
	_, ok := t.exact[name]
	return ok
}

// Lookup returns the canonical spelling of name. Matching is exact first,
// then case- and whitespace-insensitive.
func (t Taxonomy) Lookup(name string) (string, bool) {
	if t.exact == nil {
		if foldCategory(name) == foldCategory(t.Fallback()) {
			return t.Fallback(), true
		}
		return "", false
	}
	if c, ok := t.exact[name]; ok {
		return c, true
	}
	c, ok := t.folded[foldCategory(name)]
	return c, ok
}

// Resolve returns the canonical category for name, or the fallback.
func (t Taxonomy) Resolve(name string) string {
	if c, ok := t.Lookup(name); ok {
		return c
	}
	return t.Fallback()
}

// foldCategory normalizes a category name for case-insensitive comparison.
func foldCategory(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}
