package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// FlatIndex is the exact brute-force VectorIndex baseline.
//
// Every search computes cosine similarity between the query and all stored
// vectors: O(N·D). Correct and deterministic; swap in HNSWIndex behind the
// same contract when the corpus outgrows a linear scan.
//
// Chunk and vector live in one entry under one lock, so a concurrent search
// sees a chunk fully present or fully absent, never a vector without its
// chunk.
type FlatIndex struct {
	mu       sync.RWMutex
	dims     int
	entries  map[string]*flatEntry
	bySource map[string]map[string]struct{}
	nextSeq  uint64
	closed   bool
}

// flatEntry holds a stored vector with its chunk and insertion sequence.
type flatEntry struct {
	seq    uint64
	chunk  *Chunk
	vector []float32
	norm   float64 // Precomputed Euclidean norm
}

// NewFlatIndex creates a brute-force vector index.
// cfg.Dimensions of 0 locks the dimension on the first insert.
func NewFlatIndex(cfg VectorIndexConfig) *FlatIndex {
	return &FlatIndex{
		dims:     cfg.Dimensions,
		entries:  make(map[string]*flatEntry),
		bySource: make(map[string]map[string]struct{}),
	}
}

// Insert adds a chunk with its embedding. Re-inserting an existing chunk id
// replaces the previous entry (idempotent ingestion).
func (s *FlatIndex) Insert(ctx context.Context, chunk *Chunk, vector []float32) (string, error) {
	if chunk == nil || chunk.ID == "" {
		return "", fmt.Errorf("chunk with non-empty id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("index is closed")
	}

	norm, err := s.validateVector(vector)
	if err != nil {
		return "", err
	}

	// Replacement: drop the old entry's source membership first.
	if old, exists := s.entries[chunk.ID]; exists {
		s.dropSourceRef(old.chunk.SourceID, chunk.ID)
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)

	s.nextSeq++
	s.entries[chunk.ID] = &flatEntry{
		seq:    s.nextSeq,
		chunk:  chunk,
		vector: vec,
		norm:   norm,
	}

	if chunk.SourceID != "" {
		ids, ok := s.bySource[chunk.SourceID]
		if !ok {
			ids = make(map[string]struct{})
			s.bySource[chunk.SourceID] = ids
		}
		ids[chunk.ID] = struct{}{}
	}

	return chunk.ID, nil
}

// validateVector checks dimension and component validity, locking the index
// dimension on first insert. Returns the vector norm.
// Must be called with the write lock held.
func (s *FlatIndex) validateVector(vector []float32) (float64, error) {
	norm, err := checkVector(vector)
	if err != nil {
		return 0, err
	}
	if s.dims == 0 {
		s.dims = len(vector)
	} else if len(vector) != s.dims {
		return 0, ErrDimensionMismatch{Expected: s.dims, Got: len(vector)}
	}
	return norm, nil
}

// dropSourceRef removes a chunk id from its source set.
// Must be called with the write lock held.
func (s *FlatIndex) dropSourceRef(sourceID, chunkID string) {
	if sourceID == "" {
		return
	}
	if ids, ok := s.bySource[sourceID]; ok {
		delete(ids, chunkID)
		if len(ids) == 0 {
			delete(s.bySource, sourceID)
		}
	}
}

// Remove deletes the chunk's entry. Idempotent: returns removed count.
func (s *FlatIndex) Remove(ctx context.Context, chunkID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[chunkID]
	if !exists {
		return 0
	}

	s.dropSourceRef(entry.chunk.SourceID, chunkID)
	delete(s.entries, chunkID)
	return 1
}

// IDsBySource returns the chunk ids under a source, in insertion order.
func (s *FlatIndex) IDsBySource(sourceID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.bySource[sourceID]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.entries[ids[i]].seq < s.entries[ids[j]].seq
	})
	return ids
}

// Search computes cosine similarity against every stored vector and returns
// the top-k results with score >= threshold, descending; ties broken by
// insertion order (earlier inserted wins).
func (s *FlatIndex) Search(ctx context.Context, query []float32, k int, threshold float64) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if k <= 0 || len(s.entries) == 0 {
		return []*VectorResult{}, nil
	}

	if s.dims != 0 && len(query) != s.dims {
		return nil, ErrDimensionMismatch{Expected: s.dims, Got: len(query)}
	}

	queryNorm, err := checkVector(query)
	if err != nil {
		return nil, err
	}

	type scored struct {
		seq   uint64
		id    string
		score float64
	}
	candidates := make([]scored, 0, len(s.entries))

	for id, entry := range s.entries {
		var dot float64
		for i, v := range entry.vector {
			dot += float64(v) * float64(query[i])
		}
		score := dot / (entry.norm * queryNorm)
		if score >= threshold {
			candidates = append(candidates, scored{seq: entry.seq, id: id, score: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].seq < candidates[j].seq
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]*VectorResult, len(candidates))
	for i, c := range candidates {
		results[i] = &VectorResult{ChunkID: c.id, Score: c.score}
	}
	return results, nil
}

// Chunk returns the stored chunk for an id.
func (s *FlatIndex) Chunk(id string) (*Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return entry.chunk, true
}

// Count returns the number of stored chunks.
func (s *FlatIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Dimensions returns the fixed vector dimension (0 until first insert when
// dimension discovery is enabled).
func (s *FlatIndex) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// Close releases resources.
func (s *FlatIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.entries = nil
	s.bySource = nil
	return nil
}

// Verify interface implementation at compile time.
var _ VectorIndex = (*FlatIndex)(nil)
