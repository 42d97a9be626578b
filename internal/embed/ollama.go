package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Default Ollama configuration values.
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
)

// OllamaConfig holds configuration for the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API base URL (default: http://localhost:11434).
	Host string

	// Model is the embedding model name (default: nomic-embed-text).
	Model string

	// Timeout is the HTTP client timeout (default: 10s).
	Timeout time.Duration
}

// OllamaEmbedder generates embeddings via an Ollama-compatible HTTP API.
//
// The embedding dimension is discovered from the first successful call and
// is immutable afterwards; a later response with a different dimension is
// rejected rather than silently corrupting the index.
type OllamaEmbedder struct {
	client *http.Client
	config OllamaConfig

	mu   sync.Mutex
	dims int
}

// embeddingRequest is the Ollama /api/embeddings request body.
type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embeddingResponse is the Ollama /api/embeddings response body.
type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllamaEmbedder creates a new Ollama-backed embedder.
func NewOllamaEmbedder(config OllamaConfig) *OllamaEmbedder {
	if config.Host == "" {
		config.Host = DefaultOllamaHost
	}
	if config.Model == "" {
		config.Model = DefaultOllamaModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &OllamaEmbedder{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}
}

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{
		Model:  e.config.Model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := e.config.Host + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("provider returned empty embedding")
	}

	if err := e.lockDimensions(len(result.Embedding)); err != nil {
		return nil, err
	}

	vec := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts sequentially.
// The Ollama embeddings endpoint accepts one prompt per call.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		results[i] = vec
	}
	return results, nil
}

// lockDimensions records the dimension from the first successful call and
// rejects any subsequent mismatch.
func (e *OllamaEmbedder) lockDimensions(got int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dims == 0 {
		e.dims = got
		return nil
	}
	if e.dims != got {
		return fmt.Errorf("provider dimension changed: expected %d, got %d", e.dims, got)
	}
	return nil
}

// Dimensions returns the discovered embedding dimension (0 before first call).
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.config.Model
}

// Available checks if the Ollama endpoint responds.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// Close releases resources.
func (e *OllamaEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// Verify interface implementation at compile time.
var _ Embedder = (*OllamaEmbedder)(nil)
