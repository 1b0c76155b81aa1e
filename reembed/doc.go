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


// Package reembed decides which documents need a fresh embedding and produces
// them.
//
// Staleness is judged from the index block: a missing block or embedding is
// always stale, and a stored content fingerprint that no longer matches the
// header and body is stale. The Reembedder calls the embedding service with a
// bounded number of requests in flight, a timeout per call, optional rate
// limiting and retry with exponential backoff. Each result is a new document
// swapped into the corpus as a whole; a failed call leaves the previous
// document in place.
package reembed
