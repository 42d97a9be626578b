package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder counts provider calls so tests can observe cache hits.
type countingEmbedder struct {
	inner Embedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Dimensions() int                    { return c.inner.Dimensions() }
func (c *countingEmbedder) ModelName() string                  { return c.inner.ModelName() }
func (c *countingEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }
func (c *countingEmbedder) Close() error                       { return c.inner.Close() }

var _ Embedder = (*countingEmbedder)(nil)

func TestCachedEmbedder_AvoidsRepeatCalls(t *testing.T) {
	// Given: a cached embedder over a call-counting provider
	counter := &countingEmbedder{inner: NewStaticEmbedder()}
	cached := NewCachedEmbedder(counter, 10)
	defer func() { _ = cached.Close() }()

	// When: embedding the same text twice
	first, err := cached.Embed(context.Background(), "repeated query")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "repeated query")
	require.NoError(t, err)

	// Then: one provider call, identical vectors
	assert.Equal(t, int64(1), counter.calls.Load())
	assert.Equal(t, first, second)
}

func TestCachedEmbedder_BatchReusesCachedEntries(t *testing.T) {
	counter := &countingEmbedder{inner: NewStaticEmbedder()}
	cached := NewCachedEmbedder(counter, 10)
	defer func() { _ = cached.Close() }()

	_, err := cached.Embed(context.Background(), "already cached")
	require.NoError(t, err)
	require.Equal(t, int64(1), counter.calls.Load())

	vecs, err := cached.EmbedBatch(context.Background(), []string{"already cached", "fresh text"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	// Only the uncached text hits the provider
	assert.Equal(t, int64(2), counter.calls.Load())
}

func TestCachedEmbedder_EmptyBatch(t *testing.T) {
	cached := NewCachedEmbedder(NewStaticEmbedder(), 10)
	defer func() { _ = cached.Close() }()

	vecs, err := cached.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}
