package embed

import (
	"context"
	"errors"
	"time"

	gcerrors "github.com/groundctx/groundctx/internal/errors"
)

// TimeoutEmbedder decorates an Embedder with a per-call deadline.
//
// Embedding generation is the only suspension point in the query path, so a
// hanging provider must surface as a timeout rather than blocking the whole
// search pipeline. Deadline violations become ERR_301_EMBED_TIMEOUT; any
// other provider failure is wrapped as ERR_302_EMBED_UNAVAILABLE.
type TimeoutEmbedder struct {
	inner   Embedder
	timeout time.Duration
}

// NewTimeoutEmbedder wraps an embedder with a per-call deadline.
func NewTimeoutEmbedder(inner Embedder, timeout time.Duration) *TimeoutEmbedder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TimeoutEmbedder{
		inner:   inner,
		timeout: timeout,
	}
}

// Embed generates an embedding with the configured deadline applied.
func (t *TimeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	vec, err := t.inner.Embed(callCtx, text)
	if err != nil {
		return nil, t.classify(callCtx, err)
	}
	return vec, nil
}

// EmbedBatch generates embeddings with the deadline applied to the whole batch.
func (t *TimeoutEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	vecs, err := t.inner.EmbedBatch(callCtx, texts)
	if err != nil {
		return nil, t.classify(callCtx, err)
	}
	return vecs, nil
}

// classify maps a provider failure to the structured error taxonomy.
func (t *TimeoutEmbedder) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return gcerrors.EmbedTimeout(err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return gcerrors.EmbedUnavailable(err)
}

// Dimensions returns the embedding dimension (passthrough to inner).
func (t *TimeoutEmbedder) Dimensions() int {
	return t.inner.Dimensions()
}

// ModelName returns the model identifier (passthrough to inner).
func (t *TimeoutEmbedder) ModelName() string {
	return t.inner.ModelName()
}

// Available checks if the embedder is ready, bounded by the deadline.
func (t *TimeoutEmbedder) Available(ctx context.Context) bool {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Available(callCtx)
}

// Close releases resources and closes the inner embedder.
func (t *TimeoutEmbedder) Close() error {
	return t.inner.Close()
}

// Verify interface implementation at compile time.
var _ Embedder = (*TimeoutEmbedder)(nil)
