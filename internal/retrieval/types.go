// Package retrieval implements the query pipeline: strategy selection,
// candidate search across the vector and keyword indexes, score fusion,
// lexical re-ranking, diversity filtering, context assembly, and response
// caching.
package retrieval

import (
	"time"

	"github.com/groundctx/groundctx/internal/store"
)

// Strategy identifies which index(es) serve a query.
type Strategy string

const (
	// StrategyAuto defers to the heuristic selector.
	StrategyAuto Strategy = "auto"

	// StrategySemantic searches only the vector index.
	StrategySemantic Strategy = "semantic"

	// StrategyKeyword searches only the keyword index.
	StrategyKeyword Strategy = "keyword"

	// StrategyHybrid searches both and fuses the scores.
	StrategyHybrid Strategy = "hybrid"
)

// ResultSource identifies which signal produced a result's score.
type ResultSource string

const (
	SourceSemantic ResultSource = "semantic"
	SourceKeyword  ResultSource = "keyword"
	SourceHybrid   ResultSource = "hybrid"
)

// SearchResult is a single ranked result. BaseScore is the pre-rerank
// score, kept for observability.
type SearchResult struct {
	ChunkID   string       `json:"chunk_id"`
	Score     float64      `json:"score"`
	BaseScore float64      `json:"base_score"`
	Source    ResultSource `json:"source"`
	Chunk     *store.Chunk `json:"-"`
}

// ContextSource attributes one included chunk inside a ContextBlock.
type ContextSource struct {
	ChunkID   string  `json:"chunk_id"`
	SourceRef string  `json:"source_ref"`
	Score     float64 `json:"score"`
}

// ContextBlock is the packed, length-bounded context handed downstream.
type ContextBlock struct {
	Text        string          `json:"text"`
	Sources     []ContextSource `json:"sources"`
	TotalLength int             `json:"total_length"`
	Truncated   bool            `json:"truncated"`
}

// Metadata carries per-response timing and counts.
type Metadata struct {
	TotalResults int       `json:"total_results"`
	SearchTimeMs int64     `json:"search_time_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// RetrievalResponse is the full answer to one retrieval call.
type RetrievalResponse struct {
	Query    string          `json:"query"`
	Strategy Strategy        `json:"strategy"`
	Degraded bool            `json:"degraded,omitempty"`
	Cached   bool            `json:"cached,omitempty"`
	Results  []*SearchResult `json:"results"`
	Context  *ContextBlock   `json:"context"`
	Metadata Metadata        `json:"metadata"`
}

// Options tunes a single Retrieve call. Zero values take engine defaults.
type Options struct {
	// Limit caps the number of results (default from config).
	Limit int

	// Strategy overrides the heuristic selection.
	Strategy Strategy

	// Threshold is the minimum semantic similarity score.
	Threshold *float64

	// MaxContextLength bounds the assembled context in characters.
	MaxContextLength int

	// Diversity toggles near-duplicate pruning (default true).
	Diversity *bool
}

// IngestFailure records one chunk that could not be indexed.
type IngestFailure struct {
	ChunkID string `json:"chunk_id"`
	Reason  string `json:"reason"`
}

// IngestResult summarizes an ingestion batch.
type IngestResult struct {
	Indexed int             `json:"indexed"`
	Failed  []IngestFailure `json:"failed,omitempty"`
}

// Stats is a snapshot of engine state.
type Stats struct {
	ChunkCount int    `json:"chunk_count"`
	Dimensions int    `json:"dimensions"`
	CacheSize  int    `json:"cache_size"`
	Model      string `json:"model"`
}

// Config holds the engine's tunable parameters.
type Config struct {
	SemanticWeight     float64
	KeywordWeight      float64
	DefaultLimit       int
	MaxLimit           int
	ScoreThreshold     float64
	DiversityThreshold float64
	MaxContextLength   int
	AllowDegraded      bool
	CacheCapacity      int
	CacheTTL           time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		SemanticWeight:     0.7,
		KeywordWeight:      0.3,
		DefaultLimit:       10,
		MaxLimit:           100,
		ScoreThreshold:     0.0,
		DiversityThreshold: 0.8,
		MaxContextLength:   4000,
		AllowDegraded:      true,
		CacheCapacity:      512,
		CacheTTL:           5 * time.Minute,
	}
}
