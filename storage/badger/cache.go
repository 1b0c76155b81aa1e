package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ymj/storage"
)

// Cache implements storage.EmbeddingCache on top of a Backend.
type Cache struct {
	backend *Backend
	owned   bool
}

var _ storage.EmbeddingCache = (*Cache)(nil)

// NewCache opens (or creates) a cache directory at path.
func NewCache(path string) (storage.EmbeddingCache, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return &Cache{backend: backend, owned: true}, nil
}

// NewCacheWithBackend creates a cache on an existing backend. Closing the
// cache leaves the backend open.
func NewCacheWithBackend(backend *Backend) *Cache {
	return &Cache{backend: backend}
}

// Get returns the entry for key, or storage.ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string) (*storage.CachedEmbedding, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}

	var entry *storage.CachedEmbedding
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEmbeddingKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			entry, unmarshalErr = storage.UnmarshalCachedEmbedding(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Put stores or replaces the entry for key.
func (c *Cache) Put(ctx context.Context, key string, entry *storage.CachedEmbedding) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	value := storage.MarshalCachedEmbedding(entry)
	return c.backend.WithTx(func(tx *badger.Txn) error {
		return tx.Set(makeEmbeddingKey(key), value)
	}, true)
}

// Delete removes the entry for key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	return c.backend.WithTx(func(tx *badger.Txn) error {
		return tx.Delete(makeEmbeddingKey(key))
	}, true)
}

// Count returns the number of stored entries.
func (c *Cache) Count(ctx context.Context) (int, error) {
	if err := c.check(ctx); err != nil {
		return 0, err
	}
	count := 0
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(embeddingPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	}, false)
	return count, err
}

// Close closes the backend if the cache opened it.
func (c *Cache) Close() error {
	if !c.owned || c.backend.IsClosed() {
		return nil
	}
	return c.backend.Close()
}

func (c *Cache) check(ctx context.Context) error {
	if c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return ctx.Err()
}
