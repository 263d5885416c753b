// Package embeddings provides clients for external embedding services.
// A provider turns text into a fixed-length vector; the vector index and
// the query pipeline must use the same provider and model for
// similarities to be meaningful.
package embeddings

import "context"

// EmbeddingProvider is an interface for generating embeddings from text.
type EmbeddingProvider interface {
	// Embed generates a vector embedding for the given text. It must be
	// deterministic for identical input.
	Embed(ctx context.Context, text string) ([]float32, error)
	// ModelName identifies the embedding model, recorded in the vector
	// index manifest at build time and verified at startup.
	ModelName() string
}
