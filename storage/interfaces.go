package storage

import (
	"context"
	"time"
)

// CachedEmbedding is an embedding stored for reuse, keyed by CacheKey.
type CachedEmbedding struct {
	Model     string
	Vector    []float32
	CreatedAt time.Time
}

// EmbeddingCache stores embeddings so unchanged text is not sent to the
// embedding service again. It is a cache, not a document store: documents
// always live in their files.
// Implementations must be thread-safe and support concurrent access.
type EmbeddingCache interface {
	// Get returns the entry for key, or ErrNotFound.
	Get(ctx context.Context, key string) (*CachedEmbedding, error)

	// Put stores or replaces the entry for key.
	Put(ctx context.Context, key string, entry *CachedEmbedding) error

	// Delete removes the entry for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Close closes the storage backend and releases resources.
	Close() error
}
