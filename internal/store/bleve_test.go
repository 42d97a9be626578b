package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBleveIndex_IndexAndSearch(t *testing.T) {
	// Given: an in-memory index with three chunks
	idx, err := NewBleveIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, newTestChunk("1", "whales are marine mammals", "d")))
	require.NoError(t, idx.Index(ctx, newTestChunk("2", "dolphins are marine mammals too", "d")))
	require.NoError(t, idx.Index(ctx, newTestChunk("3", "oak trees grow slowly", "d")))

	// When: searching for mammals
	results, err := idx.Search(ctx, "mammals", 10)
	require.NoError(t, err)

	// Then: both marine chunks hit with positive scores, the tree chunk does not
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Greater(t, r.Score, 0.0)
		assert.Contains(t, r.MatchedTerms, "mammals")
		assert.NotEqual(t, "3", r.ChunkID)
	}
}

func TestBleveIndex_EmptyQuery(t *testing.T) {
	idx, err := NewBleveIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	results, err := idx.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveIndex_RemoveAndCount(t *testing.T) {
	idx, err := NewBleveIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, newTestChunk("c1", "searchable text", "d")))
	assert.Equal(t, 1, idx.Count())

	assert.Equal(t, 1, idx.Remove(ctx, "c1"))
	assert.Equal(t, 0, idx.Remove(ctx, "c1"))
	assert.Equal(t, 0, idx.Count())

	results, err := idx.Search(ctx, "searchable", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveIndex_ReindexReplaces(t *testing.T) {
	idx, err := NewBleveIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, newTestChunk("c1", "ancient content", "d")))
	require.NoError(t, idx.Index(ctx, newTestChunk("c1", "modern content", "d")))
	assert.Equal(t, 1, idx.Count())

	old, err := idx.Search(ctx, "ancient", 10)
	require.NoError(t, err)
	assert.Empty(t, old)

	fresh, err := idx.Search(ctx, "modern", 10)
	require.NoError(t, err)
	require.Len(t, fresh, 1)

	chunk, found := idx.Chunk("c1")
	require.True(t, found)
	assert.Equal(t, "modern content", chunk.Text)
}
