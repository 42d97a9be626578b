package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWIndex implements VectorIndex on the coder/hnsw pure-Go HNSW graph.
//
// Search is approximate and sub-linear; the ordering and threshold semantics
// match FlatIndex but recall is not guaranteed to be exact. Use for corpora
// where the brute-force scan is too slow.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorIndexConfig
	dims   int

	// ID mapping (string <-> uint64 graph keys)
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	// Chunk storage alongside the graph, under the same lock
	chunks   map[string]*hnswEntry
	bySource map[string]map[string]struct{}

	closed bool
}

// hnswEntry holds a chunk with its insertion sequence.
type hnswEntry struct {
	seq   uint64
	chunk *Chunk
}

// NewHNSWIndex creates an HNSW-backed vector index.
func NewHNSWIndex(cfg VectorIndexConfig) (*HNSWIndex, error) {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWIndex{
		graph:    graph,
		config:   cfg,
		dims:     cfg.Dimensions,
		idMap:    make(map[string]uint64),
		keyMap:   make(map[uint64]string),
		chunks:   make(map[string]*hnswEntry),
		bySource: make(map[string]map[string]struct{}),
	}, nil
}

// Insert adds a chunk with its embedding. Re-inserting an existing chunk id
// replaces the previous entry via lazy deletion: the old graph node is
// orphaned rather than removed, which sidesteps coder/hnsw instability when
// deleting nodes.
func (s *HNSWIndex) Insert(ctx context.Context, chunk *Chunk, vector []float32) (string, error) {
	if chunk == nil || chunk.ID == "" {
		return "", fmt.Errorf("chunk with non-empty id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("index is closed")
	}

	if _, err := checkVector(vector); err != nil {
		return "", err
	}
	if s.dims == 0 {
		s.dims = len(vector)
	} else if len(vector) != s.dims {
		return "", ErrDimensionMismatch{Expected: s.dims, Got: len(vector)}
	}

	if existingKey, exists := s.idMap[chunk.ID]; exists {
		delete(s.keyMap, existingKey) // orphan the old graph node
		delete(s.idMap, chunk.ID)
		if old, ok := s.chunks[chunk.ID]; ok {
			s.dropSourceRef(old.chunk.SourceID, chunk.ID)
		}
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)

	s.nextKey++
	key := s.nextKey
	s.graph.Add(hnsw.MakeNode(key, vec))

	s.idMap[chunk.ID] = key
	s.keyMap[key] = chunk.ID
	s.chunks[chunk.ID] = &hnswEntry{seq: key, chunk: chunk}

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

// dropSourceRef removes a chunk id from its source set.
// Must be called with the write lock held.
func (s *HNSWIndex) dropSourceRef(sourceID, chunkID string) {
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

// Remove deletes the chunk via lazy deletion. Idempotent.
func (s *HNSWIndex) Remove(ctx context.Context, chunkID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, exists := s.idMap[chunkID]
	if !exists {
		return 0
	}

	// The graph node remains but no longer resolves to an id, so it can
	// never appear in results.
	delete(s.keyMap, key)
	delete(s.idMap, chunkID)
	if entry, ok := s.chunks[chunkID]; ok {
		s.dropSourceRef(entry.chunk.SourceID, chunkID)
		delete(s.chunks, chunkID)
	}
	return 1
}

// IDsBySource returns the chunk ids under a source, in insertion order.
func (s *HNSWIndex) IDsBySource(sourceID string) []string {
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
		return s.chunks[ids[i]].seq < s.chunks[ids[j]].seq
	})
	return ids
}

// Search finds the approximate k nearest neighbors with score >= threshold.
// Over-fetches to compensate for lazily deleted orphan nodes.
func (s *HNSWIndex) Search(ctx context.Context, query []float32, k int, threshold float64) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if k <= 0 || len(s.idMap) == 0 {
		return []*VectorResult{}, nil
	}

	if s.dims != 0 && len(query) != s.dims {
		return nil, ErrDimensionMismatch{Expected: s.dims, Got: len(query)}
	}
	if _, err := checkVector(query); err != nil {
		return nil, err
	}

	orphans := s.graph.Len() - len(s.idMap)
	nodes := s.graph.Search(query, k+orphans)

	results := make([]*VectorResult, 0, k)
	for _, node := range nodes {
		id, exists := s.keyMap[node.Key]
		if !exists {
			continue // lazily deleted node
		}

		// CosineDistance = 1 - cosine similarity
		distance := s.graph.Distance(query, node.Value)
		score := 1.0 - float64(distance)
		if score < threshold {
			continue
		}

		results = append(results, &VectorResult{ChunkID: id, Score: score})
		if len(results) == k {
			break
		}
	}

	return results, nil
}

// Chunk returns the stored chunk for an id.
func (s *HNSWIndex) Chunk(id string) (*Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.chunks[id]
	if !ok {
		return nil, false
	}
	return entry.chunk, true
}

// Count returns the number of stored chunks.
func (s *HNSWIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idMap)
}

// Dimensions returns the fixed vector dimension.
func (s *HNSWIndex) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// Stats returns orphan statistics for compaction decisions.
type HNSWStats struct {
	ValidIDs   int // Active vectors
	GraphNodes int // Total graph nodes, including orphans
	Orphans    int // Lazily deleted nodes still in the graph
}

// Stats returns HNSW index statistics.
func (s *HNSWIndex) Stats() HNSWStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return HNSWStats{}
	}
	return HNSWStats{
		ValidIDs:   len(s.idMap),
		GraphNodes: s.graph.Len(),
		Orphans:    s.graph.Len() - len(s.idMap),
	}
}

// Close releases resources.
func (s *HNSWIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	s.chunks = nil
	return nil
}

// Verify interface implementation at compile time.
var _ VectorIndex = (*HNSWIndex)(nil)
