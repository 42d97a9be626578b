package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// TermIndex is the default KeywordIndex: length-normalized term match
// density over an inverted index.
//
// A chunk's score for a query is the sum of term frequencies of the query's
// unique terms, divided by the chunk's total token count. Longer chunks must
// match proportionally more to rank equally with shorter ones. The
// denominator is tokens, not characters, so chunks with unusual
// token-to-character ratios rank by how much of their text matches rather
// than by raw length.
type TermIndex struct {
	mu      sync.RWMutex
	entries map[string]*termEntry
	// postings maps term -> chunk id -> occurrences of the term in that chunk
	postings map[string]map[string]int
	nextSeq  uint64
	closed   bool
}

// termEntry holds a chunk with its term frequencies and token count.
type termEntry struct {
	seq        uint64
	chunk      *Chunk
	tokenCount int
	freqs      map[string]int
}

// NewTermIndex creates an empty term-density keyword index.
func NewTermIndex() *TermIndex {
	return &TermIndex{
		entries:  make(map[string]*termEntry),
		postings: make(map[string]map[string]int),
	}
}

// Index adds a chunk. Re-indexing an existing chunk id replaces it.
func (s *TermIndex) Index(ctx context.Context, chunk *Chunk) error {
	if chunk == nil || chunk.ID == "" {
		return fmt.Errorf("chunk with non-empty id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	if _, exists := s.entries[chunk.ID]; exists {
		s.removeLocked(chunk.ID)
	}

	tokens := Tokenize(chunk.Text)
	freqs := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freqs[t]++
	}

	s.nextSeq++
	s.entries[chunk.ID] = &termEntry{
		seq:        s.nextSeq,
		chunk:      chunk,
		tokenCount: len(tokens),
		freqs:      freqs,
	}

	for term := range freqs {
		ids, ok := s.postings[term]
		if !ok {
			ids = make(map[string]int)
			s.postings[term] = ids
		}
		ids[chunk.ID] = freqs[term]
	}

	return nil
}

// removeLocked deletes a chunk's entry and postings.
// Must be called with the write lock held.
func (s *TermIndex) removeLocked(chunkID string) int {
	entry, exists := s.entries[chunkID]
	if !exists {
		return 0
	}

	for term := range entry.freqs {
		if ids, ok := s.postings[term]; ok {
			delete(ids, chunkID)
			if len(ids) == 0 {
				delete(s.postings, term)
			}
		}
	}
	delete(s.entries, chunkID)
	return 1
}

// Remove deletes the chunk. Idempotent: returns removed count.
func (s *TermIndex) Remove(ctx context.Context, chunkID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(chunkID)
}

// Search scores every chunk matching at least one query term and returns the
// top-k, descending by density; ties broken by insertion order. Chunks with
// no matching terms never appear, so all scores are positive.
func (s *TermIndex) Search(ctx context.Context, query string, k int) ([]*KeywordResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if k <= 0 {
		return []*KeywordResult{}, nil
	}

	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 {
		return []*KeywordResult{}, nil
	}

	// Deduplicate query terms but preserve first-occurrence order so
	// MatchedTerms reads naturally.
	seen := make(map[string]struct{}, len(queryTerms))
	unique := make([]string, 0, len(queryTerms))
	for _, t := range queryTerms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}

	type accum struct {
		hits    int
		matched []string
	}
	matches := make(map[string]*accum)
	for _, term := range unique {
		for id, tf := range s.postings[term] {
			a, ok := matches[id]
			if !ok {
				a = &accum{}
				matches[id] = a
			}
			a.hits += tf
			a.matched = append(a.matched, term)
		}
	}

	results := make([]*KeywordResult, 0, len(matches))
	for id, a := range matches {
		entry := s.entries[id]
		if entry.tokenCount == 0 {
			continue
		}
		results = append(results, &KeywordResult{
			ChunkID:      id,
			Score:        float64(a.hits) / float64(entry.tokenCount),
			MatchedTerms: a.matched,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return s.entries[results[i].ChunkID].seq < s.entries[results[j].ChunkID].seq
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Chunk returns the stored chunk for an id.
func (s *TermIndex) Chunk(id string) (*Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return entry.chunk, true
}

// Count returns the number of indexed chunks.
func (s *TermIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close releases resources.
func (s *TermIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.entries = nil
	s.postings = nil
	return nil
}

// Verify interface implementation at compile time.
var _ KeywordIndex = (*TermIndex)(nil)
