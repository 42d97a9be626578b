package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/groundctx/groundctx/internal/config"
	"github.com/groundctx/groundctx/internal/embed"
	"github.com/groundctx/groundctx/internal/retrieval"
	"github.com/groundctx/groundctx/internal/store"
)

// buildEngine assembles the retrieval pipeline from configuration: the
// embedding provider chain (provider -> LRU cache -> timeout decorator)
// and the configured index backends.
func buildEngine(cfg *config.Config) (*retrieval.Engine, error) {
	var provider embed.Embedder
	switch cfg.Embeddings.Provider {
	case config.EmbeddingProviderOllama:
		provider = embed.NewOllamaEmbedder(embed.OllamaConfig{
			Host:    cfg.Embeddings.OllamaHost,
			Model:   cfg.Embeddings.Model,
			Timeout: cfg.Embeddings.TimeoutDuration(),
		})
	default:
		provider = embed.NewStaticEmbedder()
	}
	embedder := embed.NewTimeoutEmbedder(
		embed.NewCachedEmbedder(provider, cfg.Embeddings.CacheSize),
		cfg.Embeddings.TimeoutDuration(),
	)

	var vector store.VectorIndex
	switch cfg.Search.VectorBackend {
	case config.VectorBackendHNSW:
		idx, err := store.NewHNSWIndex(store.DefaultVectorIndexConfig(cfg.Embeddings.Dimensions))
		if err != nil {
			return nil, fmt.Errorf("create hnsw index: %w", err)
		}
		vector = idx
	default:
		vector = store.NewFlatIndex(store.VectorIndexConfig{Dimensions: cfg.Embeddings.Dimensions})
	}

	var keyword store.KeywordIndex
	switch cfg.Search.KeywordBackend {
	case config.KeywordBackendBleve:
		idx, err := store.NewBleveIndex()
		if err != nil {
			return nil, fmt.Errorf("create bleve index: %w", err)
		}
		keyword = idx
	default:
		keyword = store.NewTermIndex()
	}

	engineCfg := retrieval.Config{
		SemanticWeight:     cfg.Search.SemanticWeight,
		KeywordWeight:      cfg.Search.KeywordWeight,
		DefaultLimit:       cfg.Search.DefaultLimit,
		MaxLimit:           cfg.Search.MaxLimit,
		ScoreThreshold:     cfg.Search.ScoreThreshold,
		DiversityThreshold: cfg.Search.DiversityThreshold,
		MaxContextLength:   cfg.Search.MaxContextLength,
		AllowDegraded:      cfg.Search.AllowDegraded,
		CacheCapacity:      cfg.Cache.Capacity,
		CacheTTL:           cfg.Cache.TTLDuration(),
	}

	return retrieval.NewEngine(vector, keyword, embedder, engineCfg, nil)
}

// corpusChunk is the JSONL line format for corpus files.
type corpusChunk struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	SourceID   string         `json:"source_id"`
	ChunkIndex int            `json:"chunk_index"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// loadCorpus reads chunks from a JSONL file, one chunk object per line.
// Blank lines are skipped.
func loadCorpus(path string) ([]*store.Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	var chunks []*store.Chunk
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var c corpusChunk
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("corpus %s line %d: %w", path, line, err)
		}
		chunks = append(chunks, &store.Chunk{
			ID:         c.ID,
			Text:       c.Text,
			SourceID:   c.SourceID,
			ChunkIndex: c.ChunkIndex,
			Metadata:   c.Metadata,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	return chunks, nil
}
