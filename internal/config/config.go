// Package config loads and validates groundctx configuration.
//
// Configuration is resolved in priority order:
//  1. Built-in defaults
//  2. YAML config file (groundctx.yaml)
//  3. Environment variables (GROUNDCTX_SEMANTIC_WEIGHT, GROUNDCTX_KEYWORD_WEIGHT)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend identifiers for the pluggable index implementations.
const (
	VectorBackendFlat = "flat"
	VectorBackendHNSW = "hnsw"

	KeywordBackendTerm  = "term"
	KeywordBackendBleve = "bleve"

	EmbeddingProviderStatic = "static"
	EmbeddingProviderOllama = "ollama"
)

// Environment variable overrides for fusion weights.
const (
	EnvSemanticWeight = "GROUNDCTX_SEMANTIC_WEIGHT"
	EnvKeywordWeight  = "GROUNDCTX_KEYWORD_WEIGHT"
)

// Config represents the complete groundctx configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// SearchConfig configures the retrieval pipeline.
//
// The 0.7/0.3 fusion split and the 0.8 diversity threshold are empirical
// defaults, not invariants. Tune per corpus.
type SearchConfig struct {
	// SemanticWeight is the hybrid fusion weight for vector similarity (0.0-1.0).
	// Must sum to 1.0 with KeywordWeight.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// KeywordWeight is the hybrid fusion weight for lexical match density (0.0-1.0).
	KeywordWeight float64 `yaml:"keyword_weight" json:"keyword_weight"`

	// DefaultLimit is the default number of results per query.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// MaxLimit caps the per-query result count.
	MaxLimit int `yaml:"max_limit" json:"max_limit"`

	// ScoreThreshold is the minimum similarity score for vector results.
	ScoreThreshold float64 `yaml:"score_threshold" json:"score_threshold"`

	// DiversityThreshold is the maximum pairwise Jaccard similarity allowed
	// between returned passages when diversity filtering is enabled.
	DiversityThreshold float64 `yaml:"diversity_threshold" json:"diversity_threshold"`

	// MaxContextLength bounds the assembled context blob, in characters.
	MaxContextLength int `yaml:"max_context_length" json:"max_context_length"`

	// AllowDegraded permits keyword-only fallback when the embedding
	// provider is unavailable. When false, provider failures propagate.
	AllowDegraded bool `yaml:"allow_degraded" json:"allow_degraded"`

	// VectorBackend selects the vector index: "flat" (exact, default) or
	// "hnsw" (approximate, sub-linear).
	VectorBackend string `yaml:"vector_backend" json:"vector_backend"`

	// KeywordBackend selects the keyword index: "term" (match density,
	// default) or "bleve" (BM25).
	KeywordBackend string `yaml:"keyword_backend" json:"keyword_backend"`
}

// CacheConfig configures the query response cache.
type CacheConfig struct {
	// Capacity is the maximum number of cached responses.
	Capacity int `yaml:"capacity" json:"capacity"`

	// TTL is the entry lifetime as a duration string (e.g. "5m").
	TTL string `yaml:"ttl" json:"ttl"`
}

// TTLDuration parses the TTL string, falling back to 5 minutes.
func (c CacheConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedding backend: "static" or "ollama".
	Provider string `yaml:"provider" json:"provider"`

	// Model is the provider-specific model identifier.
	Model string `yaml:"model" json:"model"`

	// Dimensions is the expected embedding dimension.
	// 0 means discover from the provider's first successful call.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// Timeout is the per-call embedding deadline as a duration string.
	Timeout string `yaml:"timeout" json:"timeout"`

	// CacheSize is the LRU capacity for cached embeddings.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// TimeoutDuration parses the embedding timeout, falling back to 10 seconds.
func (c EmbeddingsConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			SemanticWeight:     0.7,
			KeywordWeight:      0.3,
			DefaultLimit:       10,
			MaxLimit:           100,
			ScoreThreshold:     0.0,
			DiversityThreshold: 0.8,
			MaxContextLength:   4000,
			AllowDegraded:      true,
			VectorBackend:      VectorBackendFlat,
			KeywordBackend:     KeywordBackendTerm,
		},
		Cache: CacheConfig{
			Capacity: 512,
			TTL:      "5m",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   EmbeddingProviderStatic,
			Dimensions: 0,
			OllamaHost: "http://localhost:11434",
			Timeout:    "10s",
			CacheSize:  1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, layering it over defaults and applying
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment-variable weight overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvSemanticWeight); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.SemanticWeight = f
		}
	}
	if v := os.Getenv(EnvKeywordWeight); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.KeywordWeight = f
		}
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	s := c.Search

	if s.SemanticWeight < 0 || s.SemanticWeight > 1 {
		return fmt.Errorf("search.semantic_weight must be in [0,1], got %v", s.SemanticWeight)
	}
	if s.KeywordWeight < 0 || s.KeywordWeight > 1 {
		return fmt.Errorf("search.keyword_weight must be in [0,1], got %v", s.KeywordWeight)
	}
	if sum := s.SemanticWeight + s.KeywordWeight; sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("search weights must sum to 1.0, got %v", sum)
	}
	if s.DiversityThreshold <= 0 || s.DiversityThreshold > 1 {
		return fmt.Errorf("search.diversity_threshold must be in (0,1], got %v", s.DiversityThreshold)
	}
	if s.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be positive, got %d", s.DefaultLimit)
	}
	if s.MaxLimit < s.DefaultLimit {
		return fmt.Errorf("search.max_limit (%d) must be >= default_limit (%d)", s.MaxLimit, s.DefaultLimit)
	}
	if s.MaxContextLength <= 0 {
		return fmt.Errorf("search.max_context_length must be positive, got %d", s.MaxContextLength)
	}

	switch s.VectorBackend {
	case VectorBackendFlat, VectorBackendHNSW:
	default:
		return fmt.Errorf("search.vector_backend must be %q or %q, got %q",
			VectorBackendFlat, VectorBackendHNSW, s.VectorBackend)
	}
	switch s.KeywordBackend {
	case KeywordBackendTerm, KeywordBackendBleve:
	default:
		return fmt.Errorf("search.keyword_backend must be %q or %q, got %q",
			KeywordBackendTerm, KeywordBackendBleve, s.KeywordBackend)
	}

	switch c.Embeddings.Provider {
	case EmbeddingProviderStatic, EmbeddingProviderOllama:
	default:
		return fmt.Errorf("embeddings.provider must be %q or %q, got %q",
			EmbeddingProviderStatic, EmbeddingProviderOllama, c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions < 0 {
		return fmt.Errorf("embeddings.dimensions must be >= 0, got %d", c.Embeddings.Dimensions)
	}

	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}

	return nil
}
