package search

import (
	"cmp"
	"context"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ymj/ai"
	"github.com/poiesic/ymj/core"
)

const defaultChunkSize = 256

// Hit is a ranked document.
type Hit struct {
	ID    string
	Title string
	Score float64
}

// Result is the outcome of one search pass.
type Result struct {
	// Hits are ordered by descending score.
	Hits []Hit

	// Considered is the number of documents that were scored.
	Considered int

	// Skipped counts documents without an embedding or with an embedding
	// whose length differs from the query.
	Skipped int
}

// Searcher ranks corpus snapshots against query vectors.
type Searcher struct {
	embedder  ai.Embedder
	pool      *ants.Pool
	chunkSize int
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithPoolSize sets the number of scoring workers.
// Default is runtime.NumCPU().
func WithPoolSize(size int) Option {
	return func(s *Searcher) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if s.pool != nil {
			s.pool.Release()
		}
		s.pool = pool
		return nil
	}
}

// WithChunkSize sets how many documents one worker scores per task.
func WithChunkSize(size int) Option {
	return func(s *Searcher) error {
		if size < 1 {
			size = 1
		}
		s.chunkSize = size
		return nil
	}
}

// WithEmbedder sets the embedder FindSimilar uses to turn text into a query vector.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(s *Searcher) error {
		s.embedder = embedder
		return nil
	}
}

// NewSearcher creates a new searcher. Release must be called when done.
func NewSearcher(opts ...Option) (*Searcher, error) {
	pool, err := ants.NewPool(runtime.NumCPU())
	if err != nil {
		return nil, err
	}

	s := &Searcher{
		pool:      pool,
		chunkSize: defaultChunkSize,
		logger:    slog.Default().With("component", "searcher"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.Release()
			return nil, err
		}
	}

	return s, nil
}

// Release stops the worker pool.
func (s *Searcher) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// Search ranks entries against query and returns at most k hits.
func (s *Searcher) Search(ctx context.Context, query []float64, entries []core.Entry, k int) (*Result, error) {
	return s.SearchWithMonitor(ctx, query, entries, k, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
//
// Entries are never modified. Cancellation is checked between documents; a
// cancelled search returns the context error and no result.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query []float64, entries []core.Entry, k int, monitor SearchMonitor) (*Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	monitor.Start(len(query), len(entries))
	result := &Result{Hits: []Hit{}}
	if k <= 0 {
		monitor.Finish(result)
		return result, nil
	}

	eligible := make([]int, 0, len(entries))
	for i, entry := range entries {
		var emb []float64
		if entry.Doc != nil {
			emb = entry.Doc.Embedding()
		}
		switch {
		case len(emb) == 0:
			result.Skipped++
			monitor.Skipped(entry.ID, SkipNoEmbedding)
		case len(emb) != len(query):
			result.Skipped++
			monitor.Skipped(entry.ID, SkipDimensionMismatch)
		default:
			eligible = append(eligible, i)
		}
	}
	if result.Skipped > 0 {
		s.logger.Debug("documents skipped", "count", result.Skipped, "dimensions", len(query))
	}

	scores, err := s.score(ctx, query, entries, eligible)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, len(eligible))
	for j, i := range eligible {
		hits[j] = Hit{ID: entries[i].ID, Title: entries[i].Doc.Title(), Score: scores[j]}
		monitor.Scored(hits[j].ID, hits[j].Score)
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	result.Hits = hits
	result.Considered = len(eligible)
	monitor.Finish(result)
	return result, nil
}

// score computes the cosine of query against each eligible entry on the pool.
func (s *Searcher) score(ctx context.Context, query []float64, entries []core.Entry, eligible []int) ([]float64, error) {
	scores := make([]float64, len(eligible))
	if len(eligible) == 0 {
		return scores, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for start := 0; start < len(eligible); start += s.chunkSize {
		end := min(start+s.chunkSize, len(eligible))
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			for j := start; j < end; j++ {
				if err := ctx.Err(); err != nil {
					fail(err)
					return
				}
				scores[j] = Cosine(query, entries[eligible[j]].Doc.Embedding())
			}
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return scores, nil
}

// FindSimilar embeds text and ranks entries against it.
func (s *Searcher) FindSimilar(ctx context.Context, text string, entries []core.Entry, k int) (*Result, error) {
	if s.embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}

	embedding, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", text, "err", err)
		return nil, err
	}
	return s.Search(ctx, ai.ToFloat64(embedding), entries, k)
}
