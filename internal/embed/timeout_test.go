package embed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gcerrors "github.com/groundctx/groundctx/internal/errors"
)

// hangingEmbedder blocks until its context is done.
type hangingEmbedder struct{}

func (h *hangingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (h *hangingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (h *hangingEmbedder) Dimensions() int                    { return 4 }
func (h *hangingEmbedder) ModelName() string                  { return "hanging" }
func (h *hangingEmbedder) Available(ctx context.Context) bool { return true }
func (h *hangingEmbedder) Close() error                       { return nil }

var _ Embedder = (*hangingEmbedder)(nil)

// brokenEmbedder always fails with a plain error.
type brokenEmbedder struct{}

func (b *brokenEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("connection refused")
}

func (b *brokenEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("connection refused")
}

func (b *brokenEmbedder) Dimensions() int                    { return 4 }
func (b *brokenEmbedder) ModelName() string                  { return "broken" }
func (b *brokenEmbedder) Available(ctx context.Context) bool { return false }
func (b *brokenEmbedder) Close() error                       { return nil }

var _ Embedder = (*brokenEmbedder)(nil)

func TestTimeoutEmbedder_HangBecomesTimeout(t *testing.T) {
	// Given: a provider that never answers, wrapped with a short deadline
	e := NewTimeoutEmbedder(&hangingEmbedder{}, 20*time.Millisecond)
	defer func() { _ = e.Close() }()

	// When: embedding
	_, err := e.Embed(context.Background(), "text")

	// Then: the hang surfaces as a retryable timeout
	require.Error(t, err)
	assert.True(t, gcerrors.IsEmbedTimeout(err))
	assert.True(t, gcerrors.IsRetryable(err))
}

func TestTimeoutEmbedder_ProviderFailureBecomesUnavailable(t *testing.T) {
	e := NewTimeoutEmbedder(&brokenEmbedder{}, time.Second)
	defer func() { _ = e.Close() }()

	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, gcerrors.IsEmbedUnavailable(err))

	_, err = e.EmbedBatch(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.True(t, gcerrors.IsEmbedUnavailable(err))
}

func TestTimeoutEmbedder_CallerCancellationPassesThrough(t *testing.T) {
	e := NewTimeoutEmbedder(&hangingEmbedder{}, time.Minute)
	defer func() { _ = e.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, gcerrors.IsEmbedFailure(err))
}

func TestTimeoutEmbedder_SuccessPassesThrough(t *testing.T) {
	e := NewTimeoutEmbedder(NewStaticEmbedder(), time.Second)
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "quick success")
	require.NoError(t, err)
	assert.Len(t, vec, StaticDimensions)
	assert.Equal(t, "static-fnv-256", e.ModelName())
	assert.True(t, e.Available(context.Background()))
}
