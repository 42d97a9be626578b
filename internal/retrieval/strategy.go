package retrieval

import (
	"strings"
	"unicode"

	"github.com/groundctx/groundctx/internal/store"
)

// specificTerms marks queries that name a concrete artifact. Short queries
// containing one of these (or a structural marker) want exact lexical
// matching rather than semantic neighbors.
var specificTerms = map[string]struct{}{
	"error":    {},
	"code":     {},
	"id":       {},
	"version":  {},
	"config":   {},
	"function": {},
	"field":    {},
	"flag":     {},
	"name":     {},
	"key":      {},
}

// SelectStrategy picks the search strategy for a query. Deterministic:
// the same query always yields the same strategy.
//
//   - short query (<= 3 tokens) naming something specific: keyword
//   - long query (> 10 tokens), reads like prose: semantic
//   - everything else: hybrid
func SelectStrategy(query string) Strategy {
	tokens := store.Tokenize(query)

	if len(tokens) <= 3 && hasSpecificMarker(query, tokens) {
		return StrategyKeyword
	}
	if len(tokens) > 10 {
		return StrategySemantic
	}
	return StrategyHybrid
}

// hasSpecificMarker reports whether the query names a concrete artifact:
// a quoted phrase, digits, an identifier (snake_case, camelCase, dotted
// path), or a term from the specific-term set.
func hasSpecificMarker(query string, tokens []string) bool {
	if strings.ContainsAny(query, `"'`) {
		return true
	}
	if strings.Contains(query, "_") || strings.Contains(query, ".") {
		return true
	}

	for _, r := range query {
		if unicode.IsDigit(r) {
			return true
		}
	}

	if hasCamelCase(query) {
		return true
	}

	for _, t := range tokens {
		if _, ok := specificTerms[t]; ok {
			return true
		}
	}
	return false
}

// hasCamelCase reports whether any word has an interior lower-to-upper
// transition, e.g. getUser.
func hasCamelCase(query string) bool {
	prevLower := false
	for _, r := range query {
		if unicode.IsSpace(r) {
			prevLower = false
			continue
		}
		if unicode.IsUpper(r) && prevLower {
			return true
		}
		prevLower = unicode.IsLower(r)
	}
	return false
}
