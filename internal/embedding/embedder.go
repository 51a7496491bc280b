// Package embedding turns text into vectors: a remote Azure OpenAI / OpenAI
// client, a local ONNX Runtime model, a deterministic mock for tests, and an
// LRU cache in front of any of them.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
