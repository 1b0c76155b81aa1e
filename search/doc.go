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


// Package search ranks documents against a query by cosine similarity.
//
// The Searcher performs a linear scan over a corpus snapshot:
//   - documents without an embedding, or whose embedding length differs from
//     the query, are skipped and counted, never treated as errors
//   - the remaining documents are scored in float64 on a worker pool
//   - hits are sorted by descending score with ties kept in corpus order
//
// MatchText offers a keyword fallback with stop-word filtering for documents
// that have not been embedded yet.
package search
