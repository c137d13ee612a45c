package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/hci/triagem/pkg/utils"
)

// HTTPEmbedder calls a remote embeddings endpoint: Ollama-native
// /api/embeddings without an API key, OpenAI-compatible /v1/embeddings when
// one is configured. It validates the returned dimension against the
// configured one so the case store never mixes vector lengths.
type HTTPEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	maxTokens  int
	cache      *Cache
	client     *http.Client
}

// HTTPConfig configures the HTTP embedder. APIKeyEnv names the environment
// variable holding the bearer token; empty means no auth header (Ollama).
type HTTPConfig struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Dimensions int
	MaxTokens  int
	CacheSize  int
	Timeout    time.Duration
}

// NewHTTPEmbedder creates an embedder backed by a remote embeddings endpoint.
func NewHTTPEmbedder(cfg HTTPConfig) (*HTTPEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: embeddings base URL is required", ErrModelUnavailable)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: embedding dimensions must be positive", ErrModelUnavailable)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	return &HTTPEmbedder{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		maxTokens:  cfg.MaxTokens,
		cache:      NewCache(cfg.CacheSize),
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Embed requests an embedding for text. Text is truncated to maxTokens words
// before the call so the remote encoder's sequence limit is never exceeded.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = truncateWords(text, e.maxTokens)
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	body, err := json.Marshal(map[string]string{
		"input":  text,
		"prompt": text, // Ollama-native field name
		"model":  e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+e.endpointPath(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: embeddings endpoint returned %d: %s", ErrModelUnavailable, resp.StatusCode, string(b))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read embeddings response: %v", ErrModelUnavailable, err)
	}
	vec, err := decodeEmbedding(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(vec) != e.dimensions {
		return nil, fmt.Errorf("%w: embedding dimension mismatch: got %d, expected %d", ErrModelUnavailable, len(vec), e.dimensions)
	}

	utils.NormalizeL2(vec)
	e.cache.Set(text, vec)
	return vec, nil
}

// endpointPath selects the provider path. An API key implies an
// OpenAI-compatible server; Ollama takes no auth and uses its native path.
func (e *HTTPEmbedder) endpointPath() string {
	if e.apiKey != "" {
		return "/v1/embeddings"
	}
	return "/api/embeddings"
}

// decodeEmbedding accepts both the OpenAI-compatible response shape
// ({"data":[{"embedding":[...]}]}) and the Ollama-native one ({"embedding":[...]}).
func decodeEmbedding(payload []byte) ([]float32, error) {
	var openaiOut struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil {
		if len(openaiOut.Data) > 0 && len(openaiOut.Data[0].Embedding) > 0 {
			return openaiOut.Data[0].Embedding, nil
		}
	}
	var ollamaOut struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && len(ollamaOut.Embedding) > 0 {
		return ollamaOut.Embedding, nil
	}
	return nil, fmt.Errorf("no embedding in response")
}

// truncateWords returns the first maxWords whitespace-separated words of text.
// maxWords <= 0 means no truncation.
func truncateWords(text string, maxWords int) string {
	if maxWords <= 0 {
		return text
	}
	words := splitWords(text)
	if len(words) <= maxWords {
		return text
	}
	out := words[0]
	for _, w := range words[1:maxWords] {
		out += " " + w
	}
	return out
}

// Dimensions returns the embedding dimension.
func (e *HTTPEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HTTPEmbedder.
func (e *HTTPEmbedder) Close() error {
	return nil
}
