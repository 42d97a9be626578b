package store

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lowercase terms. A term is a maximal run of
// letters and digits; everything else is a separator. Shared by the keyword
// index, the reranker, and the diversity filter so all lexical comparisons
// agree on term boundaries.
func Tokenize(text string) []string {
	var tokens []string
	var b strings.Builder

	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// TermSet returns the unique terms of text as a set.
func TermSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
