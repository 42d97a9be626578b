package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundctx/groundctx/internal/store"
)

func resultWithText(id, text string, score float64) *SearchResult {
	return &SearchResult{
		ChunkID:   id,
		Score:     score,
		BaseScore: score,
		Source:    SourceSemantic,
		Chunk:     &store.Chunk{ID: id, Text: text},
	}
}

func TestLexicalReranker_VerbatimBoost(t *testing.T) {
	// Given: a lower-scored chunk containing the query verbatim
	r := NewLexicalReranker()
	candidates := []*SearchResult{
		resultWithText("plain", "completely unrelated topic entirely", 0.80),
		resultWithText("verbatim", "the cache eviction policy is FIFO", 0.75),
	}

	// When: reranking with a query contained in the second chunk
	out := r.Rerank("cache eviction policy", candidates)

	// Then: the verbatim chunk overtakes, and BaseScore keeps the original
	require.Len(t, out, 2)
	assert.Equal(t, "verbatim", out[0].ChunkID)
	assert.InDelta(t, 0.75, out[0].BaseScore, 1e-9)
	// verbatim containment x1.2, full term coverage x1.3
	assert.InDelta(t, 0.75*1.2*1.3, out[0].Score, 1e-9)
	// no matched terms: no boost
	assert.InDelta(t, 0.80, out[1].Score, 1e-9)
}

func TestLexicalReranker_CoverageBoost(t *testing.T) {
	r := NewLexicalReranker()
	candidates := []*SearchResult{
		resultWithText("half", "whales swim in the ocean", 1.0),
	}

	// One of two query terms matches: x(1 + 0.5*0.3)
	out := r.Rerank("whales dolphins", candidates)
	require.Len(t, out, 1)
	assert.InDelta(t, 1.0*1.15, out[0].Score, 1e-9)
}

func TestLexicalReranker_CaseInsensitiveVerbatim(t *testing.T) {
	r := NewLexicalReranker()
	candidates := []*SearchResult{
		resultWithText("c1", "The Cache Eviction Policy explained", 1.0),
	}

	out := r.Rerank("cache eviction policy", candidates)
	require.Len(t, out, 1)
	assert.Greater(t, out[0].Score, 1.2)
}

func TestLexicalReranker_PureAndStable(t *testing.T) {
	// Given: candidates with identical boosted scores
	r := NewLexicalReranker()
	candidates := []*SearchResult{
		resultWithText("a", "nothing in common", 0.5),
		resultWithText("b", "also nothing shared", 0.5),
	}

	// When: reranking repeatedly
	first := r.Rerank("unrelated query", candidates)
	second := r.Rerank("unrelated query", candidates)

	// Then: input untouched, ordering stable across calls
	assert.InDelta(t, 0.5, candidates[0].Score, 1e-9)
	assert.Equal(t, "a", first[0].ChunkID)
	assert.Equal(t, "b", first[1].ChunkID)
	assert.Equal(t, first[0].ChunkID, second[0].ChunkID)
}

func TestLexicalReranker_NilChunk(t *testing.T) {
	r := NewLexicalReranker()
	candidates := []*SearchResult{
		{ChunkID: "orphan", Score: 0.5, BaseScore: 0.5},
	}

	out := r.Rerank("anything", candidates)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.5, out[0].Score, 1e-9)
}
