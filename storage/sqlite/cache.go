package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/poiesic/ymj/storage"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Cache implements storage.EmbeddingCache in a single SQLite file.
type Cache struct {
	db     *sql.DB
	closed atomic.Bool
}

var _ storage.EmbeddingCache = (*Cache)(nil)

// NewCache opens (or creates) the SQLite database at path.
func NewCache(path string) (storage.EmbeddingCache, error) {
	return open(path)
}

func open(dsn string) (*Cache, error) {
	if dsn != ":memory:" {
		dir := filepath.Dir(dsn)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create cache directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// NewMemoryCache returns a cache in a private in-memory database.
func NewMemoryCache() (storage.EmbeddingCache, error) {
	return open(":memory:")
}

// Get returns the entry for key, or storage.ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string) (*storage.CachedEmbedding, error) {
	if c.closed.Load() {
		return nil, storage.ErrStorageClosed
	}

	var (
		entry   storage.CachedEmbedding
		dims    int
		blob    []byte
		created int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT model, dims, vector, created_at FROM embeddings WHERE cache_key = ?`, key,
	).Scan(&entry.Model, &dims, &blob, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	entry.Vector, err = decodeVector(blob)
	if err != nil {
		return nil, err
	}
	if len(entry.Vector) != dims {
		return nil, fmt.Errorf("%w: stored %d dims, blob holds %d", storage.ErrSerializationFailed, dims, len(entry.Vector))
	}
	entry.CreatedAt = time.UnixMicro(created).UTC()
	return &entry, nil
}

// Put stores or replaces the entry for key.
func (c *Cache) Put(ctx context.Context, key string, entry *storage.CachedEmbedding) error {
	if c.closed.Load() {
		return storage.ErrStorageClosed
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (cache_key, model, dims, vector, created_at) VALUES (?, ?, ?, ?, ?)`,
		key, entry.Model, len(entry.Vector), encodeVector(entry.Vector), entry.CreatedAt.UnixMicro(),
	)
	return err
}

// Delete removes the entry for key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return storage.ErrStorageClosed
	}
	_, err := c.db.ExecContext(ctx, `DELETE FROM embeddings WHERE cache_key = ?`, key)
	return err
}

// Count returns the number of stored entries.
func (c *Cache) Count(ctx context.Context) (int, error) {
	if c.closed.Load() {
		return 0, storage.ErrStorageClosed
	}
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n)
	return n, err
}

// Close closes the database. Closing twice is a no-op.
func (c *Cache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.db.Close()
}

// encodeVector stores float32 values as little-endian bytes.
func encodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: vector blob length %d is not a multiple of 4", storage.ErrSerializationFailed, len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
