package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/ymj/storage"
)

// CachedEmbedder serves embeddings from a storage.EmbeddingCache and only
// calls the wrapped Embedder for texts it has not seen with the same model.
// Cache failures are logged and never fail an embedding call.
type CachedEmbedder struct {
	inner  Embedder
	cache  storage.EmbeddingCache
	logger *slog.Logger
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with cache.
func NewCachedEmbedder(inner Embedder, cache storage.EmbeddingCache) *CachedEmbedder {
	return &CachedEmbedder{
		inner:  inner,
		cache:  cache,
		logger: slog.Default().With("component", "cached-embedder"),
	}
}

func (c *CachedEmbedder) Model() string   { return c.inner.Model() }
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// EmbedText returns the cached vector for text or computes and stores it.
func (c *CachedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := storage.CacheKey(c.inner.Model(), text)
	if vec, ok := c.lookup(ctx, key); ok {
		return vec, nil
	}

	vec, err := c.inner.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, vec)
	return vec, nil
}

// EmbedTexts embeds only the cache misses, in one batch.
func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missing []int
	for i, text := range texts {
		keys[i] = storage.CacheKey(c.inner.Model(), text)
		if vec, ok := c.lookup(ctx, keys[i]); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}
	vecs, err := c.inner.EmbedTexts(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(batch) {
		return nil, ErrEmptyEmbedding
	}
	for j, i := range missing {
		out[i] = vecs[j]
		c.store(ctx, keys[i], vecs[j])
	}
	return out, nil
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("embedding cache read failed", "err", err)
		}
		return nil, false
	}
	if entry.Model != c.inner.Model() {
		return nil, false
	}
	c.logger.Debug("embedding cache hit", "key", key)
	return entry.Vector, true
}

func (c *CachedEmbedder) store(ctx context.Context, key string, vec []float32) {
	err := c.cache.Put(ctx, key, &storage.CachedEmbedding{
		Model:     c.inner.Model(),
		Vector:    vec,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		c.logger.Warn("embedding cache write failed", "err", err)
	}
}
