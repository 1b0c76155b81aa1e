package reembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/ymj/ai"
	"github.com/poiesic/ymj/ai/mock"
	"github.com/poiesic/ymj/core"
	"github.com/poiesic/ymj/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noteDoc(title, body string, tags ...string) *core.Document {
	fm := core.NewFrontMatter()
	fm.Set(core.FieldDocType, core.StringValue("note"))
	if title != "" {
		fm.Set(core.FieldTitle, core.StringValue(title))
	}
	if tags != nil {
		items := make([]core.Value, len(tags))
		for i, tag := range tags {
			items[i] = core.StringValue(tag)
		}
		fm.Set(core.FieldTags, core.ListValue(items...))
	}
	return core.NewDocument(fm, body, nil)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.ReportInterval = 1
	return cfg
}

func newCorpus(n int) *corpus.Corpus {
	entries := make([]core.Entry, n)
	for i := range n {
		id := fmt.Sprintf("notes/doc%d.ymj", i)
		entries[i] = core.Entry{ID: id, Doc: noteDoc(fmt.Sprintf("Doc %d", i), fmt.Sprintf("Body %d\n", i))}
	}
	return corpus.New(entries...)
}

func TestNewReembedder(t *testing.T) {
	c := newCorpus(1)
	embedder := mock.NewMockEmbedder()

	t.Run("nil config uses defaults", func(t *testing.T) {
		r, err := NewReembedder(c, embedder, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().MaxInFlight, r.config.MaxInFlight)
		assert.Equal(t, "mock", r.detector.Model)
	})

	t.Run("nil corpus", func(t *testing.T) {
		_, err := NewReembedder(nil, embedder, nil)
		assert.Equal(t, ErrCorpusRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewReembedder(c, nil, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := NewReembedder(c, embedder, &Config{})
		assert.Error(t, err)
	})
}

func TestReembedder_Run(t *testing.T) {
	c := newCorpus(10)
	embedder := mock.NewMockEmbedder()
	embedder.Dim = 8

	var buf bytes.Buffer
	r, err := NewReembedder(c, embedder, testConfig(), WithProgress(&buf))
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, report.Total)
	assert.Equal(t, 10, report.Stale)
	assert.Equal(t, 10, report.Embedded)
	assert.Equal(t, 10, report.Processed())
	assert.Empty(t, report.Failures)

	for _, e := range c.Snapshot() {
		ib := e.Doc.IndexBlock()
		require.NotNil(t, ib, e.ID)
		assert.Len(t, ib.Embedding, 8)
		assert.Equal(t, core.CurrentSchema, ib.Schema)
		fp, ok := ib.Fingerprint()
		require.True(t, ok)
		assert.Equal(t, e.Doc.Fingerprint(), fp)
		model, _ := ib.Model()
		assert.Equal(t, "mock", model)
		dims, _ := ib.RecordedDimensions()
		assert.Equal(t, 8, dims)
		assert.False(t, IsStale(e.Doc))
	}

	assert.Contains(t, buf.String(), "10/10")

	t.Run("second run finds nothing stale", func(t *testing.T) {
		calls := embedder.CallCount()
		report, err := r.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, report.Stale)
		assert.Equal(t, calls, embedder.CallCount())
		assert.Empty(t, r.Stale())
	})

	t.Run("force re-embeds everything", func(t *testing.T) {
		cfg := testConfig()
		cfg.Force = true
		forced, err := NewReembedder(c, embedder, cfg)
		require.NoError(t, err)
		report, err := forced.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 10, report.Embedded)
	})
}

func TestReembedder_BoundedInFlight(t *testing.T) {
	c := newCorpus(20)

	var inFlight, peak atomic.Int64
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return mock.DeterministicVector(text, 4), nil
	}

	cfg := testConfig()
	cfg.MaxInFlight = 3
	r, err := NewReembedder(c, embedder, cfg)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, report.Embedded)
	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.Greater(t, peak.Load(), int64(0))
}

func TestReembedder_TimeoutKeepsPreviousBlock(t *testing.T) {
	previous := &core.IndexBlock{Schema: 1, Embedding: []float64{1, 0}}
	slow := noteDoc("Slow", "slow body\n").WithIndexBlock(previous)
	c := corpus.New(
		core.Entry{ID: "fast.ymj", Doc: noteDoc("Fast", "fast body\n")},
		core.Entry{ID: "slow.ymj", Doc: slow},
	)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if bytes.Contains([]byte(text), []byte("slow body")) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return mock.DeterministicVector(text, 2), nil
	}

	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxRetries = 2
	cfg.Force = true
	r, err := NewReembedder(c, embedder, cfg)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Embedded)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "slow.ymj", report.Failures[0].ID)
	assert.ErrorIs(t, report.Failures[0].Err, ErrEmbeddingTimeout)

	got, _ := c.Get("slow.ymj")
	assert.Same(t, slow, got)
	assert.Equal(t, []float64{1, 0}, got.Embedding())
}

func TestReembedder_FailureDoesNotAbortBatch(t *testing.T) {
	c := newCorpus(5)
	boom := errors.New("service unavailable")

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if bytes.Contains([]byte(text), []byte("Body 2")) {
			return nil, boom
		}
		return mock.DeterministicVector(text, 4), nil
	}

	r, err := NewReembedder(c, embedder, testConfig())
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Embedded)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "notes/doc2.ymj", report.Failures[0].ID)
	assert.ErrorIs(t, report.Failures[0].Err, boom)

	got, _ := c.Get("notes/doc2.ymj")
	assert.False(t, got.HasIndexBlock())
}

func TestReembedder_DimensionMismatchIsNotRetried(t *testing.T) {
	c := newCorpus(1)
	var calls atomic.Int64
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		calls.Add(1)
		return nil, ai.ErrDimensionMismatch
	}

	r, err := NewReembedder(c, embedder, testConfig())
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, ai.ErrDimensionMismatch)
	assert.Equal(t, int64(1), calls.Load())
}

func TestReembedder_Sink(t *testing.T) {
	t.Run("receives every new document", func(t *testing.T) {
		c := newCorpus(3)
		var mu sync.Mutex
		saved := map[string]*core.Document{}
		sink := func(ctx context.Context, id string, doc *core.Document) error {
			mu.Lock()
			defer mu.Unlock()
			saved[id] = doc
			return nil
		}

		r, err := NewReembedder(c, mock.NewMockEmbedder(), testConfig(), WithSink(sink))
		require.NoError(t, err)
		_, err = r.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, saved, 3)
		for _, e := range c.Snapshot() {
			assert.Same(t, e.Doc, saved[e.ID])
		}
	})

	t.Run("failure restores the previous document", func(t *testing.T) {
		c := newCorpus(1)
		before, _ := c.Get("notes/doc0.ymj")
		diskFull := errors.New("disk full")
		sink := func(ctx context.Context, id string, doc *core.Document) error {
			return diskFull
		}

		r, err := NewReembedder(c, mock.NewMockEmbedder(), testConfig(), WithSink(sink))
		require.NoError(t, err)
		report, err := r.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, report.Failures, 1)
		assert.ErrorIs(t, report.Failures[0].Err, diskFull)
		after, _ := c.Get("notes/doc0.ymj")
		assert.Same(t, before, after)
	})
}

func TestReembedder_Conflict(t *testing.T) {
	c := newCorpus(1)
	edited := noteDoc("Edited", "edited while embedding\n")

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		c.Upsert("notes/doc0.ymj", edited)
		return mock.DeterministicVector(text, 4), nil
	}

	r, err := NewReembedder(c, embedder, testConfig())
	require.NoError(t, err)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, ErrConflict)
	got, _ := c.Get("notes/doc0.ymj")
	assert.Same(t, edited, got)
}

func TestReembedder_Cancelled(t *testing.T) {
	c := newCorpus(50)
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int64
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if calls.Add(1) == 5 {
			cancel()
		}
		return mock.DeterministicVector(text, 4), nil
	}

	cfg := testConfig()
	cfg.MaxInFlight = 1
	r, err := NewReembedder(c, embedder, cfg)
	require.NoError(t, err)

	report, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Less(t, report.Processed(), 50)
}

func TestReembedder_RateLimit(t *testing.T) {
	c := newCorpus(4)
	cfg := testConfig()
	cfg.RequestsPerSecond = 50
	cfg.Burst = 1

	r, err := NewReembedder(c, mock.NewMockEmbedder(), cfg)
	require.NoError(t, err)

	start := time.Now()
	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Embedded)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestReembedder_Normalize(t *testing.T) {
	c := newCorpus(1)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{3, 4}, nil
	}

	cfg := testConfig()
	cfg.Normalize = true
	r, err := NewReembedder(c, embedder, cfg)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	got, _ := c.Get("notes/doc0.ymj")
	emb := got.Embedding()
	require.Len(t, emb, 2)
	assert.InDelta(t, 0.6, emb[0], 1e-9)
	assert.InDelta(t, 0.8, emb[1], 1e-9)
	assert.InDelta(t, 1.0, math.Hypot(emb[0], emb[1]), 1e-9)
}

func TestBuildIndexBlock(t *testing.T) {
	t.Run("header tags and title", func(t *testing.T) {
		doc := noteDoc("Header Title", "body\n", "go", "search")
		ib := BuildIndexBlock(doc, "dir/file.ymj", []float64{1, 2}, "model-x")

		assert.Equal(t, core.CurrentSchema, ib.Schema)
		assert.Equal(t, []string{"go", "search"}, ib.Tags)
		assert.Equal(t, "Header Title", ib.Title)
		assert.Equal(t, []float64{1, 2}, ib.Embedding)
		assert.Equal(t, doc.Fingerprint(), ib.Meta[core.MetaFingerprint])
		assert.Equal(t, "model-x", ib.Meta[core.MetaEmbeddingModel])
		assert.Equal(t, 2, ib.Meta[core.MetaEmbeddingDim])
	})

	t.Run("defaults", func(t *testing.T) {
		doc := noteDoc("", "body\n")
		ib := BuildIndexBlock(doc, "dir/my-note.ymj", []float64{1}, "")

		assert.Equal(t, []string{}, ib.Tags)
		assert.Equal(t, "my-note", ib.Title)
		assert.NotContains(t, ib.Meta, core.MetaEmbeddingModel)
	})

	t.Run("keeps existing meta", func(t *testing.T) {
		doc := noteDoc("T", "body\n").WithIndexBlock(&core.IndexBlock{
			Schema: 1,
			Meta:   map[string]any{"source": "import", core.MetaEmbeddingModel: "old"},
		})
		ib := BuildIndexBlock(doc, "t.ymj", []float64{1}, "new")

		assert.Equal(t, "import", ib.Meta["source"])
		assert.Equal(t, "new", ib.Meta[core.MetaEmbeddingModel])
	})
}
