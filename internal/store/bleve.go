package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
)

// BleveIndex is the alternative KeywordIndex backed by an in-memory Bleve
// index with BM25-style scoring. Compared to TermIndex it weighs rare terms
// higher and saturates repeated occurrences, at the cost of a heavier
// dependency. Scores are positive but not on the TermIndex density scale;
// callers must not compare raw scores across backends.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	chunks map[string]*bleveEntry
	// seq assigns insertion order for deterministic tie-breaks
	nextSeq uint64
	closed  bool
}

// bleveEntry holds a chunk with its insertion sequence.
type bleveEntry struct {
	seq   uint64
	chunk *Chunk
}

// bleveDocument is the document shape handed to Bleve.
type bleveDocument struct {
	Content string `json:"content"`
}

// NewBleveIndex creates an in-memory Bleve keyword index.
func NewBleveIndex() (*BleveIndex, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return &BleveIndex{
		index:  idx,
		chunks: make(map[string]*bleveEntry),
	}, nil
}

// Index adds a chunk. Re-indexing an existing chunk id replaces it.
func (b *BleveIndex) Index(ctx context.Context, chunk *Chunk) error {
	if chunk == nil || chunk.ID == "" {
		return fmt.Errorf("chunk with non-empty id required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	if err := b.index.Index(chunk.ID, bleveDocument{Content: chunk.Text}); err != nil {
		return fmt.Errorf("failed to index chunk %s: %w", chunk.ID, err)
	}

	if existing, ok := b.chunks[chunk.ID]; ok {
		// Keep the original sequence on replacement
		b.chunks[chunk.ID] = &bleveEntry{seq: existing.seq, chunk: chunk}
		return nil
	}

	b.nextSeq++
	b.chunks[chunk.ID] = &bleveEntry{seq: b.nextSeq, chunk: chunk}
	return nil
}

// Remove deletes the chunk. Idempotent: returns removed count.
func (b *BleveIndex) Remove(ctx context.Context, chunkID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0
	}
	if _, exists := b.chunks[chunkID]; !exists {
		return 0
	}

	if err := b.index.Delete(chunkID); err != nil {
		return 0
	}
	delete(b.chunks, chunkID)
	return 1
}

// Search runs a match query and returns the top-k hits, descending by score;
// ties broken by insertion order.
func (b *BleveIndex) Search(ctx context.Context, query string, k int) ([]*KeywordResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if k <= 0 || strings.TrimSpace(query) == "" {
		return []*KeywordResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = k
	req.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*KeywordResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		if _, known := b.chunks[hit.ID]; !known {
			continue
		}
		results = append(results, &KeywordResult{
			ChunkID:      hit.ID,
			Score:        hit.Score,
			MatchedTerms: matchedTermsFromHit(hit),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return b.chunks[results[i].ChunkID].seq < b.chunks[results[j].ChunkID].seq
	})

	return results, nil
}

// Chunk returns the stored chunk for an id.
func (b *BleveIndex) Chunk(id string) (*Chunk, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.chunks[id]
	if !ok {
		return nil, false
	}
	return entry.chunk, true
}

// Count returns the number of indexed chunks.
func (b *BleveIndex) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chunks)
}

// Close closes the underlying Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.chunks = nil
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// matchedTermsFromHit extracts the matched terms from hit locations.
func matchedTermsFromHit(hit *search.DocumentMatch) []string {
	set := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field != "content" {
			continue
		}
		for term := range locations {
			set[term] = struct{}{}
		}
	}

	terms := make([]string, 0, len(set))
	for term := range set {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Verify interface implementation at compile time.
var _ KeywordIndex = (*BleveIndex)(nil)
