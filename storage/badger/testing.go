package badger

import "github.com/poiesic/ymj/storage"

// NewMemoryCache returns a cache backed by an in-memory BadgerDB.
func NewMemoryCache() (storage.EmbeddingCache, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return &Cache{backend: backend, owned: true}, nil
}
