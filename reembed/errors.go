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


package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrEmbedderRequired is returned when a Reembedder is created without an embedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrCorpusRequired is returned when a Reembedder is created without a corpus.
	ErrCorpusRequired = errors.New("corpus required")

	// ErrEmbeddingTimeout is returned when a single embedding call exceeds Config.Timeout.
	ErrEmbeddingTimeout = errors.New("embedding call timed out")

	// ErrConflict is reported when a document changed while it was being embedded.
	ErrConflict = errors.New("document changed during embedding")
)
