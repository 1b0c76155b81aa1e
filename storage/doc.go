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


// Package storage provides the embedding cache abstraction for ymj.
//
// The cache maps CacheKey(model, text) to a previously computed vector so
// re-running the embed tool over unchanged documents costs no model calls.
// It never stores documents; the .ymj files remain the source of truth.
//
// # Backends
//
//   - storage/badger: BadgerDB directory, the default
//   - storage/sqlite: single SQLite file through the pure-Go modernc driver
//
// Public constructors return the EmbeddingCache interface:
//
//	cache, err := badger.NewCache("/path/to/cache")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cache.Close()
//
// Use in tests with in-memory storage:
//
//	cache, err := badger.NewMemoryCache()
//
// # Thread Safety
//
// All cache implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
