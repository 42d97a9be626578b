package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleContext_PacksInOrder(t *testing.T) {
	// Given: three chunks that all fit
	results := []*SearchResult{
		resultWithText("c1", "first passage", 0.9),
		resultWithText("c2", "second passage", 0.8),
		resultWithText("c3", "third passage", 0.7),
	}

	// When: assembling with ample room
	block := AssembleContext(results, 1000)

	// Then: double-newline joined in result order, all cited, not truncated
	assert.Equal(t, "first passage\n\nsecond passage\n\nthird passage", block.Text)
	assert.Equal(t, len(block.Text), block.TotalLength)
	assert.False(t, block.Truncated)
	require.Len(t, block.Sources, 3)
	assert.Equal(t, "c1", block.Sources[0].ChunkID)
	assert.InDelta(t, 0.9, block.Sources[0].Score, 1e-9)
}

func TestAssembleContext_LengthBound(t *testing.T) {
	results := []*SearchResult{
		resultWithText("c1", strings.Repeat("a", 50), 0.9),
		resultWithText("c2", strings.Repeat("b", 50), 0.8),
	}

	// Room for the first chunk only
	block := AssembleContext(results, 60)

	assert.True(t, block.Truncated)
	assert.LessOrEqual(t, block.TotalLength, 60)
	require.Len(t, block.Sources, 1)
	assert.Equal(t, "c1", block.Sources[0].ChunkID)
}

func TestAssembleContext_SeparatorCountsTowardLimit(t *testing.T) {
	// Two 10-char chunks need 22 chars with the separator
	results := []*SearchResult{
		resultWithText("c1", strings.Repeat("a", 10), 0.9),
		resultWithText("c2", strings.Repeat("b", 10), 0.8),
	}

	exact := AssembleContext(results, 22)
	assert.False(t, exact.Truncated)
	assert.Equal(t, 22, exact.TotalLength)

	tooSmall := AssembleContext(results, 21)
	assert.True(t, tooSmall.Truncated)
	assert.Len(t, tooSmall.Sources, 1)
}

func TestAssembleContext_SourceAttribution(t *testing.T) {
	r := resultWithText("c1", "cited passage", 0.9)
	r.Chunk.SourceID = "doc-42"

	block := AssembleContext([]*SearchResult{r}, 100)
	require.Len(t, block.Sources, 1)
	assert.Equal(t, "doc-42", block.Sources[0].SourceRef)
}

func TestAssembleContext_EmptyResults(t *testing.T) {
	block := AssembleContext(nil, 100)
	assert.Empty(t, block.Text)
	assert.Zero(t, block.TotalLength)
	assert.False(t, block.Truncated)
	assert.Empty(t, block.Sources)
}

func TestAssembleContext_ZeroLength(t *testing.T) {
	results := []*SearchResult{resultWithText("c1", "text", 0.9)}
	block := AssembleContext(results, 0)
	assert.Empty(t, block.Text)
	assert.False(t, block.Truncated)
}
