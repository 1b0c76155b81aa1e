package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/ymj/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGetDelete(t *testing.T) {
	cache, err := NewCache(filepath.Join(t.TempDir(), "cache", "embeddings.db"))
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err = cache.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, cache.Put(ctx, "k1", &storage.CachedEmbedding{Model: "m", Vector: []float32{0.25, -1}, CreatedAt: created}))
	require.NoError(t, cache.Put(ctx, "k2", &storage.CachedEmbedding{Model: "m", Vector: []float32{1}, CreatedAt: created}))

	got, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "m", got.Model)
	assert.Equal(t, []float32{0.25, -1}, got.Vector)
	assert.True(t, created.Equal(got.CreatedAt))

	count, err := cache.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// replace
	require.NoError(t, cache.Put(ctx, "k1", &storage.CachedEmbedding{Model: "m2", Vector: []float32{2}, CreatedAt: created}))
	got, err = cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "m2", got.Model)

	require.NoError(t, cache.Delete(ctx, "k1"))
	_, err = cache.Get(ctx, "k1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCache_Memory(t *testing.T) {
	cache, err := NewMemoryCache()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, "k", &storage.CachedEmbedding{Model: "m", Vector: []float32{}}))
	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got.Vector)

	require.NoError(t, cache.Close())
	require.NoError(t, cache.Close())
	_, err = cache.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestVectorCodec(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, 3.4028235e38}
	decoded, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.ErrorIs(t, err, storage.ErrSerializationFailed)
}
