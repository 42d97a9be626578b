package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/groundctx/groundctx/internal/embed"
	gcerrors "github.com/groundctx/groundctx/internal/errors"
	"github.com/groundctx/groundctx/internal/store"
)

// Engine coordinates the retrieval pipeline over one vector index, one
// keyword index, and one embedding provider.
//
// Searches take the read lock across the whole candidate-retrieval phase;
// Ingest and RemoveBySource take the write lock, so a chunk is observed
// atomically across both indexes: fully present or fully absent.
type Engine struct {
	mu       sync.RWMutex
	vector   store.VectorIndex
	keyword  store.KeywordIndex
	embedder embed.Embedder
	reranker Reranker
	cache    *QueryCache
	config   Config
	logger   *slog.Logger
	closed   bool
}

// NewEngine wires the pipeline. All three collaborators are required.
func NewEngine(vector store.VectorIndex, keyword store.KeywordIndex, embedder embed.Embedder, cfg Config, logger *slog.Logger) (*Engine, error) {
	if vector == nil {
		return nil, fmt.Errorf("vector index is required")
	}
	if keyword == nil {
		return nil, fmt.Errorf("keyword index is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultConfig().DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = DefaultConfig().MaxLimit
	}
	if cfg.SemanticWeight == 0 && cfg.KeywordWeight == 0 {
		cfg.SemanticWeight = DefaultConfig().SemanticWeight
		cfg.KeywordWeight = DefaultConfig().KeywordWeight
	}
	if cfg.DiversityThreshold <= 0 {
		cfg.DiversityThreshold = DefaultConfig().DiversityThreshold
	}
	if cfg.MaxContextLength <= 0 {
		cfg.MaxContextLength = DefaultConfig().MaxContextLength
	}

	return &Engine{
		vector:   vector,
		keyword:  keyword,
		embedder: embedder,
		reranker: NewLexicalReranker(),
		cache:    NewQueryCache(cfg.CacheCapacity, cfg.CacheTTL),
		config:   cfg,
		logger:   logger,
	}, nil
}

// resolved holds per-call options after defaults are applied.
type resolved struct {
	limit            int
	strategy         Strategy
	threshold        float64
	maxContextLength int
	diversity        bool
}

func (e *Engine) resolveOptions(query string, opts Options) resolved {
	r := resolved{
		limit:            e.config.DefaultLimit,
		strategy:         opts.Strategy,
		threshold:        e.config.ScoreThreshold,
		maxContextLength: e.config.MaxContextLength,
		diversity:        true,
	}
	if opts.Limit > 0 {
		r.limit = opts.Limit
	}
	if r.limit > e.config.MaxLimit {
		r.limit = e.config.MaxLimit
	}
	if opts.Threshold != nil {
		r.threshold = *opts.Threshold
	}
	if opts.MaxContextLength > 0 {
		r.maxContextLength = opts.MaxContextLength
	}
	if opts.Diversity != nil {
		r.diversity = *opts.Diversity
	}
	if r.strategy == "" || r.strategy == StrategyAuto {
		r.strategy = SelectStrategy(query)
	}
	return r
}

// Retrieve answers one query: cache check, strategy selection, candidate
// search, rerank, diversity filter, context assembly. An empty query is
// rejected before any search; a query matching nothing returns an empty
// result set, not an error.
func (e *Engine) Retrieve(ctx context.Context, query string, opts Options) (*RetrievalResponse, error) {
	start := time.Now()

	normalized := strings.TrimSpace(query)
	if normalized == "" {
		return nil, gcerrors.EmptyQuery()
	}

	r := e.resolveOptions(normalized, opts)

	key := CacheKey(normalized, r.limit, r.strategy, r.threshold, r.maxContextLength, r.diversity)
	if cached, hit := e.cache.Get(key); hit {
		e.logger.Debug("cache_hit", slog.String("strategy", string(cached.Strategy)))
		response := copyResponse(cached)
		response.Cached = true
		return response, nil
	}

	candidates, strategy, degraded, err := e.searchCandidates(ctx, normalized, r)
	if err != nil {
		return nil, err
	}

	reranked := e.reranker.Rerank(normalized, candidates)
	if r.diversity {
		reranked = FilterDiverse(reranked, e.config.DiversityThreshold)
	}
	contextBlock := AssembleContext(reranked, r.maxContextLength)

	response := &RetrievalResponse{
		Query:    normalized,
		Strategy: strategy,
		Degraded: degraded,
		Results:  reranked,
		Context:  contextBlock,
		Metadata: Metadata{
			TotalResults: len(reranked),
			SearchTimeMs: time.Since(start).Milliseconds(),
			Timestamp:    time.Now().UTC(),
		},
	}

	// Degraded responses stay out of the cache so an identical query is
	// served fully again as soon as the embedding provider recovers.
	if !response.Degraded {
		e.cache.Put(key, response)
	}

	e.logger.Debug("retrieve_complete",
		slog.String("strategy", string(strategy)),
		slog.Int("results", len(reranked)),
		slog.Bool("degraded", degraded),
		slog.Int64("elapsed_ms", response.Metadata.SearchTimeMs))

	return response, nil
}

// searchCandidates runs the index phase under the read lock. Returns the
// strategy actually used, which differs from the requested one only on
// degraded fallback.
func (e *Engine) searchCandidates(ctx context.Context, query string, r resolved) ([]*SearchResult, Strategy, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, r.strategy, false, fmt.Errorf("engine is closed")
	}

	switch r.strategy {
	case StrategySemantic:
		results, err := e.semanticSearch(ctx, query, r.limit, r.threshold)
		if err != nil {
			return e.fallbackKeyword(ctx, query, r, err)
		}
		return results, StrategySemantic, false, nil

	case StrategyKeyword:
		results, err := e.keywordSearch(ctx, query, r.limit)
		if err != nil {
			return nil, StrategyKeyword, false, gcerrors.Wrap(gcerrors.ErrCodeSearchFailed, err)
		}
		return results, StrategyKeyword, false, nil

	case StrategyHybrid:
		return e.hybridSearch(ctx, query, r)

	default:
		return nil, r.strategy, false, gcerrors.New(gcerrors.ErrCodeInvalidQuery,
			fmt.Sprintf("unknown strategy %q", r.strategy), nil)
	}
}

// fallbackKeyword degrades a failed semantic search to keyword-only when
// the failure came from the embedding provider and degraded mode is allowed.
func (e *Engine) fallbackKeyword(ctx context.Context, query string, r resolved, cause error) ([]*SearchResult, Strategy, bool, error) {
	if !e.config.AllowDegraded || !gcerrors.IsEmbedFailure(cause) {
		return nil, r.strategy, false, cause
	}

	e.logger.Warn("degraded_fallback",
		slog.String("reason", cause.Error()),
		slog.String("requested_strategy", string(r.strategy)))

	results, err := e.keywordSearch(ctx, query, r.limit)
	if err != nil {
		return nil, StrategyKeyword, false, gcerrors.Wrap(gcerrors.ErrCodeSearchFailed, err)
	}
	return results, StrategyKeyword, true, nil
}

// semanticSearch embeds the query and searches the vector index.
// Must be called with the read lock held.
func (e *Engine) semanticSearch(ctx context.Context, query string, limit int, threshold float64) ([]*SearchResult, error) {
	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	// A query with no embeddable content (symbols only) yields a zero
	// vector; similarity is undefined there, so it matches nothing.
	if zeroVector(vector) {
		return nil, nil
	}

	hits, err := e.vector.Search(ctx, vector, limit, threshold)
	if err != nil {
		return nil, gcerrors.Wrap(gcerrors.ErrCodeSearchFailed, err)
	}

	results := make([]*SearchResult, len(hits))
	for i, h := range hits {
		chunk, _ := e.vector.Chunk(h.ChunkID)
		results[i] = &SearchResult{
			ChunkID:   h.ChunkID,
			Score:     h.Score,
			BaseScore: h.Score,
			Source:    SourceSemantic,
			Chunk:     chunk,
		}
	}
	return results, nil
}

// keywordSearch searches the keyword index.
// Must be called with the read lock held.
func (e *Engine) keywordSearch(ctx context.Context, query string, limit int) ([]*SearchResult, error) {
	hits, err := e.keyword.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	results := make([]*SearchResult, len(hits))
	for i, h := range hits {
		chunk, _ := e.keyword.Chunk(h.ChunkID)
		results[i] = &SearchResult{
			ChunkID:   h.ChunkID,
			Score:     h.Score,
			BaseScore: h.Score,
			Source:    SourceKeyword,
			Chunk:     chunk,
		}
	}
	return results, nil
}

// hybridSearch runs both indexes in parallel and fuses the scores. The
// semantic arm over-fetches ceil(0.7*limit) and the keyword arm
// ceil(0.5*limit) so fusion has enough overlap to work with.
// Must be called with the read lock held.
func (e *Engine) hybridSearch(ctx context.Context, query string, r resolved) ([]*SearchResult, Strategy, bool, error) {
	semanticK := int(math.Ceil(0.7 * float64(r.limit)))
	keywordK := int(math.Ceil(0.5 * float64(r.limit)))

	var (
		semHits []*store.VectorResult
		kwHits  []*store.KeywordResult
		semErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vector, err := e.embedder.Embed(gctx, query)
		if err != nil {
			// Embedding failure is handled after Wait so the keyword arm
			// still completes for degraded fallback.
			semErr = err
			return nil
		}
		if zeroVector(vector) {
			return nil
		}
		semHits, err = e.vector.Search(gctx, vector, semanticK, r.threshold)
		if err != nil {
			semErr = gcerrors.Wrap(gcerrors.ErrCodeSearchFailed, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		kwHits, err = e.keyword.Search(gctx, query, keywordK)
		if err != nil {
			return gcerrors.Wrap(gcerrors.ErrCodeSearchFailed, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, StrategyHybrid, false, err
	}

	if semErr != nil {
		// The hybrid keyword arm only fetched keywordK hits; a degraded
		// query gets a fresh keyword-only search at the full limit.
		return e.fallbackKeyword(ctx, query, r, semErr)
	}

	fusedResults := fuseWeighted(semHits, kwHits, e.config.SemanticWeight, e.config.KeywordWeight, r.limit)
	for _, res := range fusedResults {
		if chunk, ok := e.vector.Chunk(res.ChunkID); ok {
			res.Chunk = chunk
		} else if chunk, ok := e.keyword.Chunk(res.ChunkID); ok {
			res.Chunk = chunk
		}
	}
	return fusedResults, StrategyHybrid, false, nil
}

// zeroVector reports whether every component is zero.
func zeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// copyResponse clones a cached response so callers cannot mutate the
// cached entry through the returned results or context block.
func copyResponse(src *RetrievalResponse) *RetrievalResponse {
	dst := *src
	if src.Results != nil {
		dst.Results = make([]*SearchResult, len(src.Results))
		for i, r := range src.Results {
			cp := *r
			dst.Results[i] = &cp
		}
	}
	if src.Context != nil {
		ctx := *src.Context
		ctx.Sources = append([]ContextSource(nil), src.Context.Sources...)
		dst.Context = &ctx
	}
	return &dst
}

// Ingest embeds and indexes a batch of chunks. Idempotent per chunk id:
// re-ingesting an id replaces, never duplicates. Chunks without an id are
// assigned one. Per-chunk failures are reported, not fatal to the batch.
func (e *Engine) Ingest(ctx context.Context, chunks []*store.Chunk) (*IngestResult, error) {
	result := &IngestResult{}
	if len(chunks) == 0 {
		return result, nil
	}

	prepared := make([]*store.Chunk, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c == nil {
			continue
		}
		if strings.TrimSpace(c.Text) == "" {
			result.Failed = append(result.Failed, IngestFailure{ChunkID: c.ID, Reason: "empty text"})
			continue
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		prepared = append(prepared, c)
		texts = append(texts, c.Text)
	}
	if len(prepared) == 0 {
		return result, nil
	}

	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, gcerrors.Wrap(gcerrors.ErrCodeIngestFailed, err)
	}
	if len(vectors) != len(prepared) {
		return nil, gcerrors.New(gcerrors.ErrCodeIngestFailed,
			fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vectors), len(prepared)), nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("engine is closed")
	}

	for i, chunk := range prepared {
		if _, err := e.vector.Insert(ctx, chunk, vectors[i]); err != nil {
			result.Failed = append(result.Failed, IngestFailure{ChunkID: chunk.ID, Reason: err.Error()})
			continue
		}
		if err := e.keyword.Index(ctx, chunk); err != nil {
			// Keep the indexes consistent: undo the vector insert.
			e.vector.Remove(ctx, chunk.ID)
			result.Failed = append(result.Failed, IngestFailure{ChunkID: chunk.ID, Reason: err.Error()})
			continue
		}
		result.Indexed++
	}

	e.cache.Purge()

	e.logger.Info("ingest_complete",
		slog.Int("indexed", result.Indexed),
		slog.Int("failed", len(result.Failed)))

	return result, nil
}

// RemoveBySource removes every chunk ingested under sourceID from both
// indexes. Returns the number of vectors removed.
func (e *Engine) RemoveBySource(ctx context.Context, sourceID string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, fmt.Errorf("engine is closed")
	}

	removed := 0
	for _, id := range e.vector.IDsBySource(sourceID) {
		removed += e.vector.Remove(ctx, id)
		e.keyword.Remove(ctx, id)
	}

	if removed > 0 {
		e.cache.Purge()
	}

	e.logger.Info("source_removed",
		slog.String("source_id", sourceID),
		slog.Int("vectors_removed", removed))

	return removed, nil
}

// Stats returns a snapshot of engine state.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Stats{
		ChunkCount: e.vector.Count(),
		Dimensions: e.vector.Dimensions(),
		CacheSize:  e.cache.Len(),
		Model:      e.embedder.ModelName(),
	}
}

// Close shuts down the engine and its collaborators.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var firstErr error
	if err := e.vector.Close(); err != nil {
		firstErr = err
	}
	if err := e.keyword.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	e.cache.Purge()
	return firstErr
}
