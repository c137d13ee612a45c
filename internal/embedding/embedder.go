// Package embedding converts symptom text into fixed-length vectors for
// similarity search. Backends: a local ONNX clinical encoder (CGO), an
// OpenAI/Ollama-compatible HTTP endpoint, and a deterministic mock.
package embedding

import (
	"context"
	"errors"
)

// ErrModelUnavailable indicates the embedding backend failed to initialize
// or is unreachable. No embedding means no retrieval and no grounding, so
// callers treat this as fatal for the request.
var ErrModelUnavailable = errors.New("embedding model unavailable")

// Embedder produces unit-length vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
