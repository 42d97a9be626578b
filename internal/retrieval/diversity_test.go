package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundctx/groundctx/internal/store"
)

func TestFilterDiverse_RemovesNearDuplicates(t *testing.T) {
	// Given: two nearly identical chunks and one distinct one
	results := []*SearchResult{
		resultWithText("top", "whales are large marine mammals", 0.9),
		resultWithText("dup", "whales are large marine mammals indeed", 0.8),
		resultWithText("distinct", "the stock market fell sharply today", 0.7),
	}

	// When: filtering at the default threshold
	out := FilterDiverse(results, 0.8)

	// Then: the near-duplicate is pruned, relative order preserved
	require.Len(t, out, 2)
	assert.Equal(t, "top", out[0].ChunkID)
	assert.Equal(t, "distinct", out[1].ChunkID)
}

func TestFilterDiverse_TopAlwaysKept(t *testing.T) {
	results := []*SearchResult{
		resultWithText("only", "identical text here", 0.9),
		resultWithText("same1", "identical text here", 0.8),
		resultWithText("same2", "identical text here", 0.7),
	}

	out := FilterDiverse(results, 0.8)
	require.Len(t, out, 1)
	assert.Equal(t, "only", out[0].ChunkID)
}

func TestFilterDiverse_PairwiseBound(t *testing.T) {
	// Every pair in the output must stay under the threshold
	results := []*SearchResult{
		resultWithText("a", "alpha beta gamma delta", 0.9),
		resultWithText("b", "alpha beta gamma epsilon", 0.8),
		resultWithText("c", "zeta eta theta iota", 0.7),
		resultWithText("d", "alpha zeta kappa lambda", 0.6),
	}

	threshold := 0.5
	out := FilterDiverse(results, threshold)

	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			sim := jaccard(store.TermSet(out[i].Chunk.Text), store.TermSet(out[j].Chunk.Text))
			assert.Less(t, sim, threshold)
		}
	}
}

func TestFilterDiverse_SingleAndEmpty(t *testing.T) {
	assert.Empty(t, FilterDiverse(nil, 0.8))

	one := []*SearchResult{resultWithText("a", "text", 1.0)}
	assert.Len(t, FilterDiverse(one, 0.8), 1)
}

func TestJaccard(t *testing.T) {
	a := store.TermSet("alpha beta gamma")
	b := store.TermSet("beta gamma delta")
	// |{beta,gamma}| / |{alpha,beta,gamma,delta}|
	assert.InDelta(t, 2.0/4.0, jaccard(a, b), 1e-9)

	assert.InDelta(t, 1.0, jaccard(a, a), 1e-9)
	assert.InDelta(t, 0.0, jaccard(a, store.TermSet("")), 1e-9)
	assert.InDelta(t, 1.0, jaccard(store.TermSet(""), store.TermSet("")), 1e-9)
}
