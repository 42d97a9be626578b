// Package store provides the in-memory index layer: vector similarity search
// (exact flat scan or approximate HNSW) and lexical keyword search (term
// match density or Bleve BM25) over ingested chunks.
package store

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Chunk represents a retrievable unit of text plus metadata.
// Chunks are immutable once created; the indexes own them after ingestion
// and destroy them on explicit removal.
type Chunk struct {
	ID         string         // Unique chunk identifier
	Text       string         // Chunk content
	SourceID   string         // Owning document/source identifier
	ChunkIndex int            // Position within the source document
	Metadata   map[string]any // Caller-supplied metadata
	CreatedAt  time.Time
}

// VectorResult is a single vector search result.
type VectorResult struct {
	ChunkID string
	Score   float64 // Cosine similarity, -1..1 (1 = identical direction)
}

// KeywordResult is a single keyword search result.
type KeywordResult struct {
	ChunkID      string
	Score        float64 // Length-normalized match density, > 0
	MatchedTerms []string
}

// VectorIndex stores (id, vector, chunk) tuples and supports top-k
// similarity search.
//
// Implementations guarantee:
//   - Search returns results in non-increasing score order; ties are broken
//     by insertion order (earlier inserted wins).
//   - No result scores below the threshold, even if that shrinks the result
//     set below k; never more than min(k, eligible) results.
//   - A concurrent reader sees a chunk fully present or fully absent.
//
// The brute-force FlatIndex is the correctness baseline; HNSWIndex provides
// a sub-linear approximate alternative behind the same contract.
type VectorIndex interface {
	// Insert adds a chunk with its embedding. Re-inserting an existing
	// chunk id replaces the previous entry. Returns the chunk id.
	Insert(ctx context.Context, chunk *Chunk, vector []float32) (string, error)

	// Remove deletes all entries for the chunk id. Idempotent: returns the
	// number of entries removed (0 if absent).
	Remove(ctx context.Context, chunkID string) int

	// IDsBySource returns the chunk ids ingested under the given source.
	IDsBySource(sourceID string) []string

	// Search returns up to k chunks most similar to the query vector,
	// excluding results with score < threshold.
	Search(ctx context.Context, query []float32, k int, threshold float64) ([]*VectorResult, error)

	// Chunk returns the stored chunk for an id.
	Chunk(id string) (*Chunk, bool)

	// Count returns the number of stored chunks.
	Count() int

	// Dimensions returns the fixed vector dimension (0 until first insert
	// when dimension discovery is enabled).
	Dimensions() int

	// Close releases resources.
	Close() error
}

// KeywordIndex is a lightweight lexical index over the same chunks.
type KeywordIndex interface {
	// Index adds a chunk. Re-indexing an existing chunk id replaces it.
	Index(ctx context.Context, chunk *Chunk) error

	// Remove deletes the chunk. Idempotent: returns removed count.
	Remove(ctx context.Context, chunkID string) int

	// Search returns up to k chunks with positive lexical match scores,
	// descending; ties broken by insertion order.
	Search(ctx context.Context, query string, k int) ([]*KeywordResult, error)

	// Chunk returns the stored chunk for an id.
	Chunk(id string) (*Chunk, bool)

	// Count returns the number of indexed chunks.
	Count() int

	// Close releases resources.
	Close() error
}

// ErrDimensionMismatch indicates a vector whose dimension does not match the
// index's fixed dimension. A programmer error: fail fast, never corrupt the
// index.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: index expects %d, got %d", e.Expected, e.Got)
}

// ErrInvalidVector indicates a vector containing NaN/Inf components or all
// zeros (cosine similarity undefined). Rejected at insert time.
type ErrInvalidVector struct {
	Reason string
}

func (e ErrInvalidVector) Error() string {
	return fmt.Sprintf("invalid vector: %s", e.Reason)
}

// checkVector validates vector components and returns the Euclidean norm.
// NaN/Inf components and all-zero vectors are rejected: cosine similarity
// is undefined for them.
func checkVector(vector []float32) (float64, error) {
	if len(vector) == 0 {
		return 0, ErrInvalidVector{Reason: "empty vector"}
	}

	var sumSquares float64
	for _, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, ErrInvalidVector{Reason: "vector contains NaN or Inf"}
		}
		sumSquares += f * f
	}
	if sumSquares == 0 {
		return 0, ErrInvalidVector{Reason: "all-zero vector has undefined cosine similarity"}
	}
	return math.Sqrt(sumSquares), nil
}

// VectorIndexConfig configures a vector index.
type VectorIndexConfig struct {
	// Dimensions is the fixed vector dimension. 0 locks the dimension on
	// the first insert (provider dimension discovery).
	Dimensions int

	// M is HNSW max connections per layer (HNSW backend only, default: 16).
	M int

	// EfSearch is HNSW query-time search width (HNSW backend only, default: 20).
	EfSearch int
}

// DefaultVectorIndexConfig returns sensible defaults for a vector index.
func DefaultVectorIndexConfig(dimensions int) VectorIndexConfig {
	return VectorIndexConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   20,
	}
}
