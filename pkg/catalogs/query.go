package catalogs

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Query filters a snapshot. Zero values match everything.
type Query struct {
	// Text is split on whitespace; every term must appear in the alias.
	Text string `json:"query,omitempty"`
	// Namespace must equal the alias namespace exactly.
	Namespace string `json:"namespace,omitempty"`
}

// IsZero reports whether q matches every alias.
func (q Query) IsZero() bool {
	return len(ParseTerms(q.Text)) == 0 && q.Namespace == ""
}

// Key returns a stable string for memoizing query results.
func (q Query) Key() string {
	return q.Namespace + "\x00" + strings.Join(ParseTerms(q.Text), " ")
}

// newFolder returns a lower-casing function. A cases.Caser holds state,
// so each caller gets its own.
func newFolder() func(string) string {
	caser := cases.Lower(language.Und)
	return caser.String
}

// ParseTerms lower-cases text and splits it on whitespace.
func ParseTerms(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return strings.Fields(newFolder()(text))
}

// Query returns matching aliases in snapshot order. Matching is a plain
// substring test per term with AND semantics across terms.
func (s *Snapshot) Query(q Query) []Alias {
	terms := ParseTerms(q.Text)
	result := make([]Alias, 0)

	for i, a := range s.aliases {
		if q.Namespace != "" && a.Namespace != q.Namespace {
			continue
		}
		if !containsAll(s.searchText[i], terms) {
			continue
		}
		result = append(result, a)
	}

	return result
}

func containsAll(haystack string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}
