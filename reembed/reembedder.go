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

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ymj/ai"
	"github.com/poiesic/ymj/core"
	"github.com/poiesic/ymj/corpus"
	"github.com/poiesic/ymj/format"
	"golang.org/x/time/rate"
)

// Sink persists a re-embedded document, typically by rewriting its file.
// It runs after the corpus has been updated; an error restores the previous
// document.
type Sink func(ctx context.Context, id string, doc *core.Document) error

// Failure is a document that kept its previous index block.
type Failure struct {
	ID  string
	Err error
}

// Report summarizes an embedding run.
type Report struct {
	// Total is the number of documents in the corpus snapshot.
	Total int

	// Stale is the number of documents selected for embedding.
	Stale int

	// Embedded is the number of documents that received a new index block.
	Embedded int

	// Failures lists the selected documents that were not embedded, in corpus order.
	Failures []Failure
}

// Processed is the number of selected documents that were attempted.
func (r *Report) Processed() int {
	return r.Embedded + len(r.Failures)
}

// Reembedder embeds the stale documents of a corpus.
type Reembedder struct {
	corpus   *corpus.Corpus
	embedder ai.Embedder
	config   *Config
	detector Detector
	limiter  *rate.Limiter
	progress io.Writer
	sink     Sink
	logger   *slog.Logger
}

// Option configures a Reembedder.
type Option func(*Reembedder)

// WithProgress sets where progress output is written (typically os.Stderr).
// Default is io.Discard.
func WithProgress(w io.Writer) Option {
	return func(r *Reembedder) {
		if w == nil {
			w = io.Discard
		}
		r.progress = w
	}
}

// WithSink sets the function that persists re-embedded documents.
func WithSink(sink Sink) Option {
	return func(r *Reembedder) {
		r.sink = sink
	}
}

// WithDetector replaces the staleness detector. The default marks embeddings
// recorded with a model other than the embedder's as stale.
func WithDetector(d Detector) Option {
	return func(r *Reembedder) {
		r.detector = d
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
	}
}

// NewReembedder creates a new reembedder. A nil config uses DefaultConfig.
func NewReembedder(c *corpus.Corpus, embedder ai.Embedder, config *Config, opts ...Option) (*Reembedder, error) {
	if c == nil {
		return nil, ErrCorpusRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	r := &Reembedder{
		corpus:   c,
		embedder: embedder,
		config:   config,
		detector: Detector{Model: embedder.Model()},
		limiter:  rate.NewLimiter(limit, max(config.Burst, 1)),
		progress: io.Discard,
		logger:   slog.Default().With("component", "reembedder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Stale returns the entries Run would embed right now.
func (r *Reembedder) Stale() []core.Entry {
	return r.selectStale(r.corpus.Snapshot())
}

func (r *Reembedder) selectStale(entries []core.Entry) []core.Entry {
	var out []core.Entry
	for _, e := range entries {
		if r.config.Force {
			out = append(out, e)
			continue
		}
		if reason := r.detector.Check(e.Doc); reason != Fresh {
			r.logger.Debug("document is stale", "id", e.ID, "reason", reason.String())
			out = append(out, e)
		}
	}
	return out
}

// Run embeds every stale document with at most MaxInFlight calls in flight.
// A document whose call fails or times out keeps its previous index block and
// is listed in the report; the run carries on. On cancellation Run waits for
// calls already in flight and returns the partial report with the context
// error.
func (r *Reembedder) Run(ctx context.Context) (*Report, error) {
	snapshot := r.corpus.Snapshot()
	report := &Report{Total: len(snapshot)}

	work := r.selectStale(snapshot)
	report.Stale = len(work)

	if len(work) == 0 {
		fmt.Fprintf(r.progress, "All %d documents are up to date\n", report.Total)
		return report, nil
	}

	pool, err := ants.NewPool(r.config.MaxInFlight)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	fmt.Fprintf(r.progress, "Embedding %d of %d documents (max in flight: %d)\n",
		len(work), report.Total, r.config.MaxInFlight)

	tracker := NewProgressTracker(r.progress, len(work), r.config.ReportInterval)
	tracker.Start()

	errs := make([]error, len(work))
	attempted := make([]bool, len(work))

	var wg sync.WaitGroup
	for i, e := range work {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			errs[i] = r.process(ctx, e)
			attempted[i] = true
			tracker.Record(errs[i])
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
			attempted[i] = true
		}
	}
	wg.Wait()
	tracker.Finish()

	for i, e := range work {
		switch {
		case !attempted[i]:
		case errs[i] != nil:
			r.logger.Warn("document not embedded", "id", e.ID, "err", errs[i])
			report.Failures = append(report.Failures, Failure{ID: e.ID, Err: errs[i]})
		default:
			report.Embedded++
		}
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Embedding complete. Embedded %d documents in %v, %d failed\n",
		report.Embedded, elapsed.Round(time.Millisecond), len(report.Failures))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// process embeds one document and swaps the result in as a unit.
func (r *Reembedder) process(ctx context.Context, e core.Entry) error {
	doc, err := r.Embed(ctx, e.ID, e.Doc)
	if err != nil {
		return err
	}
	if !r.corpus.Replace(e.ID, e.Doc, doc) {
		return ErrConflict
	}
	if r.sink == nil {
		return nil
	}
	if err := r.sink(ctx, e.ID, doc); err != nil {
		r.corpus.Replace(e.ID, doc, e.Doc)
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Embed returns a copy of doc with a freshly computed index block. It applies
// the rate limit, the per-call timeout and the retry policy; doc itself is
// never modified.
func (r *Reembedder) Embed(ctx context.Context, id string, doc *core.Document) (*core.Document, error) {
	text, err := format.EmbeddingText(doc)
	if err != nil {
		return nil, err
	}

	var vec []float32
	err = RetryWithBackoff(ctx, func() error {
		if err := r.limiter.Wait(ctx); err != nil {
			return Permanent(err)
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.config.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		}
		defer cancel()

		v, err := r.embedder.EmbedText(callCtx, text)
		switch {
		case err == nil && len(v) == 0:
			return Permanent(ai.ErrEmptyEmbedding)
		case err == nil:
			vec = v
			return nil
		case ctx.Err() != nil:
			return Permanent(ctx.Err())
		case callCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("%w after %v", ErrEmbeddingTimeout, r.config.Timeout)
		case errors.Is(err, ai.ErrDimensionMismatch):
			return Permanent(err)
		default:
			return err
		}
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return nil, err
	}

	embedding := ai.ToFloat64(vec)
	if r.config.Normalize {
		embedding = NormalizeVector(embedding)
	}
	return doc.WithIndexBlock(BuildIndexBlock(doc, id, embedding, r.embedder.Model())), nil
}

// BuildIndexBlock assembles the index block for a new embedding. Tags and
// title come from the header; the title falls back to the file name without
// its extension. Existing meta entries are kept, and the content
// fingerprint, model and dimensionality are recorded.
func BuildIndexBlock(doc *core.Document, id string, embedding []float64, model string) *core.IndexBlock {
	tags := doc.Tags()
	if tags == nil {
		tags = []string{}
	}

	title, _ := doc.FrontMatter().GetString(core.FieldTitle)
	if strings.TrimSpace(title) == "" {
		base := filepath.Base(id)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	var meta map[string]any
	if old := doc.IndexBlock(); old != nil {
		meta = old.Meta
	}
	overlay := map[string]any{
		core.MetaFingerprint:  doc.Fingerprint(),
		core.MetaEmbeddingDim: len(embedding),
	}
	if model != "" {
		overlay[core.MetaEmbeddingModel] = model
	}

	return &core.IndexBlock{
		Schema:    core.CurrentSchema,
		Tags:      tags,
		Title:     title,
		Embedding: embedding,
		Meta:      core.MergeMeta(meta, overlay),
	}
}
