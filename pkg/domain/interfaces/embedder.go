package interfaces

import "context"

// Embedder maps text to fixed-dimension vectors. Results are deterministic for a fixed model version.
type Embedder interface {
	// Embed returns the vector of a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns vectors in input order. A failure on any input fails the whole
	// batch with model.ErrEmbedding naming the failing index.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector length produced by the embedder
	Dimension() int
}

// EmbeddingCache stores vectors keyed by content hash
type EmbeddingCache interface {
	// GetMany returns cached vectors for keys. Entries for keys not in the cache are nil.
	GetMany(ctx context.Context, keys []string) ([][]float32, error)

	// PutMany stores vectors under keys. len(keys) must equal len(vectors).
	PutMany(ctx context.Context, keys []string, vectors [][]float32) error
}
