// Package retrieval turns a query into an authority-ranked evidence set.
package retrieval

import (
	"context"

	"github.com/ppiankov/beacon/internal/model"
)

// Hit is a raw vector search result
type Hit struct {
	Chunk      model.DocumentChunk
	Similarity float64 // Cosine similarity, 0-1
}

// Filters restricts a search to chunks whose metadata equals every given value
type Filters map[string]string

// VectorSearcher returns the topK chunks nearest to a query
type VectorSearcher interface {
	Search(ctx context.Context, query string, topK int, filters Filters) ([]Hit, error)
}

// Embedder turns text into a vector. Every call must return the same dimensionality.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to Embedder
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

// Embed calls f
func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}
