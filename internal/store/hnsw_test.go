package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWIndex_InsertAndSearch(t *testing.T) {
	// Given: a small graph of distinct directions
	idx, err := NewHNSWIndex(DefaultVectorIndexConfig(3))
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	_, err = idx.Insert(ctx, newTestChunk("x", "a", "d"), []float32{1, 0, 0})
	require.NoError(t, err)
	_, err = idx.Insert(ctx, newTestChunk("y", "b", "d"), []float32{0, 1, 0})
	require.NoError(t, err)
	_, err = idx.Insert(ctx, newTestChunk("z", "c", "d"), []float32{0, 0, 1})
	require.NoError(t, err)

	// When: searching along the x axis
	results, err := idx.Search(ctx, []float32{1, 0, 0}, 1, 0.5)
	require.NoError(t, err)

	// Then: the aligned vector is the single hit with similarity ~1
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestHNSWIndex_ThresholdFiltering(t *testing.T) {
	idx, err := NewHNSWIndex(DefaultVectorIndexConfig(2))
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	_, err = idx.Insert(ctx, newTestChunk("near", "a", ""), []float32{1, 0})
	require.NoError(t, err)
	_, err = idx.Insert(ctx, newTestChunk("ortho", "b", ""), []float32{0, 1})
	require.NoError(t, err)

	results, err := idx.Search(ctx, []float32{1, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "near", results[0].ChunkID)
}

func TestHNSWIndex_RemoveHidesNode(t *testing.T) {
	// Removal is lazy: the graph node stays but never resolves to a result
	idx, err := NewHNSWIndex(DefaultVectorIndexConfig(2))
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	_, err = idx.Insert(ctx, newTestChunk("c1", "a", "doc"), []float32{1, 0})
	require.NoError(t, err)
	_, err = idx.Insert(ctx, newTestChunk("c2", "b", "doc"), []float32{0.9, 0.1})
	require.NoError(t, err)

	assert.Equal(t, 1, idx.Remove(ctx, "c1"))
	assert.Equal(t, 0, idx.Remove(ctx, "c1"))
	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(ctx, []float32{1, 0}, 10, -1.0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c2", results[0].ChunkID)

	stats := idx.Stats()
	assert.Equal(t, 1, stats.ValidIDs)
	assert.Equal(t, 1, stats.Orphans)
}

func TestHNSWIndex_DimensionDiscovery(t *testing.T) {
	idx, err := NewHNSWIndex(VectorIndexConfig{})
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	_, err = idx.Insert(ctx, newTestChunk("c1", "a", ""), []float32{1, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Dimensions())

	_, err = idx.Insert(ctx, newTestChunk("c2", "b", ""), []float32{1, 0})
	var mismatch ErrDimensionMismatch
	assert.ErrorAs(t, err, &mismatch)
}

func TestHNSWIndex_IDsBySource(t *testing.T) {
	idx, err := NewHNSWIndex(DefaultVectorIndexConfig(2))
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err = idx.Insert(ctx, newTestChunk(fmt.Sprintf("c%d", i), "t", "doc"), []float32{1, float32(i)})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"c0", "c1", "c2"}, idx.IDsBySource("doc"))
	assert.Nil(t, idx.IDsBySource("missing"))
}
