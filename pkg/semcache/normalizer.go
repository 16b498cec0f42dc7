package semcache

import (
	"regexp"
	"strings"
)

var normalizerWhitespace = regexp.MustCompile(`\s+`)

// NormalizeQuery collapses whitespace and case so that textually-equivalent
// queries share a `(query_text, scope_tag)` identity (spec §3's Query
// Fingerprint). Unlike the teacher's query normalizer, this intentionally
// does not strip stop words or substitute synonyms: those transforms merge
// queries the embedding model would otherwise keep distinct, which would
// make "semantically equivalent" a property of this function rather than of
// C1's embedding space — see DESIGN.md.
func NormalizeQuery(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	normalized = normalizerWhitespace.ReplaceAllString(normalized, " ")
	return normalized
}
