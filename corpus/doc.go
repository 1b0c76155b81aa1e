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


// Package corpus holds collections of parsed documents and loads them from disk.
//
// A Corpus publishes immutable snapshots. Readers such as a search pass work on
// a snapshot while writers swap whole documents in, so a reader never sees a
// partially updated document. The Loader parses and validates files on a
// worker pool and reports per-file failures instead of aborting the batch.
package corpus
