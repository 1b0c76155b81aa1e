// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ymj

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/ymj/ai"
	"github.com/poiesic/ymj/ai/openai"
	"github.com/poiesic/ymj/core"
	"github.com/poiesic/ymj/corpus"
	"github.com/poiesic/ymj/reembed"
	"github.com/poiesic/ymj/search"
	"github.com/poiesic/ymj/storage"
	"github.com/poiesic/ymj/storage/badger"
	"github.com/poiesic/ymj/storage/sqlite"
)

// CacheBackend selects where embeddings are cached between runs.
type CacheBackend string

const (
	// CacheNone disables the embedding cache.
	CacheNone CacheBackend = ""

	// CacheBadger stores the cache in a badger directory.
	CacheBadger CacheBackend = "badger"

	// CacheSQLite stores the cache in a single sqlite file.
	CacheSQLite CacheBackend = "sqlite"

	// CacheMemory keeps the cache in memory for the lifetime of the engine.
	CacheMemory CacheBackend = "memory"
)

// ErrUnknownCacheBackend is returned by Open for an unsupported cache backend.
var ErrUnknownCacheBackend = errors.New("unknown cache backend")

// Engine wires the embedding provider, the optional embedding cache, the
// document loader and the searcher together.
type Engine struct {
	provider ai.AIProvider
	embedder ai.Embedder
	cache    storage.EmbeddingCache
	loader   *corpus.Loader
	searcher *search.Searcher
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig     *ai.Config
	cacheBackend CacheBackend
	cachePath    string
	strict       bool
	logger       *slog.Logger
}

// WithAIConfig sets the embedding provider configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = cfg
	}
}

// WithCache enables the embedding cache. path is ignored for CacheMemory.
func WithCache(backend CacheBackend, path string) EngineOption {
	return func(o *engineOptions) {
		o.cacheBackend = backend
		o.cachePath = path
	}
}

// WithStrict makes loading require an embedding in every document.
func WithStrict(strict bool) EngineOption {
	return func(o *engineOptions) {
		o.strict = strict
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// Open creates an Engine. Close must be called when done.
func Open(opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.aiConfig == nil {
		options.aiConfig = ai.DefaultConfig()
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// Open cache
	cache, err := openCache(options.cacheBackend, options.cachePath)
	if err != nil {
		return nil, err
	}

	// Create AI provider with configured settings
	provider, err := openai.NewProvider(options.aiConfig)
	if err != nil {
		closeCache(cache)
		return nil, err
	}

	embedder := provider.Embedder()
	if cache != nil {
		embedder = ai.NewCachedEmbedder(embedder, cache)
	}

	loader, err := corpus.NewLoader(
		corpus.WithStrict(options.strict),
		corpus.WithLogger(options.logger.With("component", "loader")),
	)
	if err != nil {
		provider.Close()
		closeCache(cache)
		return nil, err
	}

	searcher, err := search.NewSearcher(
		search.WithEmbedder(embedder),
		search.WithLogger(options.logger.With("component", "searcher")),
	)
	if err != nil {
		loader.Release()
		provider.Close()
		closeCache(cache)
		return nil, err
	}

	return &Engine{
		provider: provider,
		embedder: embedder,
		cache:    cache,
		loader:   loader,
		searcher: searcher,
		logger:   options.logger,
	}, nil
}

func openCache(backend CacheBackend, path string) (storage.EmbeddingCache, error) {
	switch backend {
	case CacheNone:
		return nil, nil
	case CacheBadger:
		return badger.NewCache(path)
	case CacheSQLite:
		return sqlite.NewCache(path)
	case CacheMemory:
		return badger.NewMemoryCache()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCacheBackend, backend)
	}
}

func closeCache(cache storage.EmbeddingCache) {
	if cache != nil {
		cache.Close()
	}
}

// Close releases the worker pools, the provider and the cache.
func (e *Engine) Close() error {
	e.searcher.Release()
	e.loader.Release()

	// Close AI provider first
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}

	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			e.logger.Error("error closing embedding cache", "err", err)
			return err
		}
	}
	return nil
}

// Embedder returns the embedder used for documents and queries, including
// the cache when one is configured.
func (e *Engine) Embedder() ai.Embedder {
	return e.embedder
}

// Cache returns the embedding cache, or nil when caching is disabled.
func (e *Engine) Cache() storage.EmbeddingCache {
	return e.cache
}

// Load discovers the documents under paths and loads them into a corpus.
func (e *Engine) Load(ctx context.Context, paths ...string) (*corpus.Corpus, *corpus.LoadReport, error) {
	files, err := corpus.Discover(paths...)
	if err != nil {
		return nil, nil, err
	}
	return e.loader.LoadFiles(ctx, files)
}

// LoadFile parses and validates a single document.
func (e *Engine) LoadFile(path string) (*core.Document, []core.Issue, error) {
	return e.loader.LoadFile(path)
}

// Validate loads the documents under paths and returns only the report.
func (e *Engine) Validate(ctx context.Context, paths ...string) (*corpus.LoadReport, error) {
	_, report, err := e.Load(ctx, paths...)
	return report, err
}

// Search embeds query and returns the k most similar documents of c.
func (e *Engine) Search(ctx context.Context, c *corpus.Corpus, query string, k int) (*search.Result, error) {
	return e.searcher.FindSimilar(ctx, query, c.Snapshot(), k)
}

// SearchText ranks the documents of c by keyword match without embeddings.
func (e *Engine) SearchText(c *corpus.Corpus, query string, k int) []search.Hit {
	return search.MatchText(c.Snapshot(), query, k)
}

// NewReembedder creates a reembedder for c that uses the engine's embedder.
func (e *Engine) NewReembedder(c *corpus.Corpus, config *reembed.Config, opts ...reembed.Option) (*reembed.Reembedder, error) {
	opts = append([]reembed.Option{reembed.WithLogger(e.logger.With("component", "reembedder"))}, opts...)
	return reembed.NewReembedder(c, e.embedder, config, opts...)
}
