package retrieval

import (
	"sort"
	"strings"

	"github.com/groundctx/groundctx/internal/store"
)

const (
	// verbatimBoost applies when the chunk contains the whole query string.
	verbatimBoost = 1.2

	// coverageBoostWeight scales the term-coverage boost: a chunk matching
	// every query term gains 30%.
	coverageBoostWeight = 0.3
)

// Reranker re-scores an already-retrieved candidate set with a cheaper
// secondary signal before final ordering.
type Reranker interface {
	// Rerank returns the candidates re-sorted by boosted score. Pure: the
	// same inputs always produce the same ordering, and the input slice is
	// not mutated.
	Rerank(query string, candidates []*SearchResult) []*SearchResult
}

// LexicalReranker boosts candidates by lexical agreement with the query:
// verbatim containment and query-term coverage. The pre-boost score is kept
// in BaseScore.
type LexicalReranker struct{}

// NewLexicalReranker creates the default reranker.
func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

// Rerank applies the lexical boosts and re-sorts descending by boosted
// score; equal scores keep their incoming relative order.
func (r *LexicalReranker) Rerank(query string, candidates []*SearchResult) []*SearchResult {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	queryTerms := store.Tokenize(query)

	out := make([]*SearchResult, len(candidates))
	for i, c := range candidates {
		boosted := *c
		boosted.BaseScore = c.Score
		boosted.Score = c.Score * r.boost(queryLower, queryTerms, c)
		out[i] = &boosted
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// boost computes the multiplicative boost for one candidate.
func (r *LexicalReranker) boost(queryLower string, queryTerms []string, c *SearchResult) float64 {
	if c.Chunk == nil || len(queryTerms) == 0 {
		return 1.0
	}

	textLower := strings.ToLower(c.Chunk.Text)

	factor := 1.0
	if queryLower != "" && strings.Contains(textLower, queryLower) {
		factor *= verbatimBoost
	}

	chunkTerms := store.TermSet(c.Chunk.Text)
	matched := 0
	seen := make(map[string]struct{}, len(queryTerms))
	total := 0
	for _, t := range queryTerms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		total++
		if _, ok := chunkTerms[t]; ok {
			matched++
		}
	}
	factor *= 1.0 + (float64(matched)/float64(total))*coverageBoostWeight

	return factor
}

// Verify interface implementation at compile time.
var _ Reranker = (*LexicalReranker)(nil)
