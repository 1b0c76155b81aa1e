package reembed

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/ymj/ai/mock"
	"github.com/poiesic/ymj/core"
	"github.com/poiesic/ymj/corpus"
	"github.com/poiesic/ymj/format"
	"github.com/poiesic/ymj/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var integrationDocs = map[string]string{
	"alpha.ymj": "---\ndoc_type: note\ntitle: Alpha\ntags: [go, search]\n---\n\nVector search in Go.\n",
	"beta.ymj":  "---\ndoc_type: note\ntitle: Beta\n---\n\nNotes about gardening.\n\n```json\n{\"example\": true}\n```\n\nMore text.\n",
	"gamma.ymj": "---\ndoc_type: spec\ntitle: Gamma\ncreated: 2024-01-15\n---\nNo trailing newline",
}

func writeDocs(t *testing.T) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for name, content := range integrationDocs {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		paths = append(paths, path)
	}
	return dir, paths
}

func loadDir(t *testing.T, dir string) *corpus.Corpus {
	t.Helper()
	paths, err := corpus.Discover(dir)
	require.NoError(t, err)

	loader, err := corpus.NewLoader()
	require.NoError(t, err)
	defer loader.Release()

	c, report, err := loader.LoadFiles(context.Background(), paths)
	require.NoError(t, err)
	require.Empty(t, report.Failures)
	return c
}

func saveToDisk(ctx context.Context, id string, doc *core.Document) error {
	return corpus.SaveFile(id, doc)
}

func TestIntegration_FullEmbeddingWorkflow(t *testing.T) {
	dir, _ := writeDocs(t)
	c := loadDir(t, dir)
	require.Equal(t, 3, c.Len())

	embedder := mock.NewMockEmbedder()
	embedder.Dim = 32

	var progress bytes.Buffer
	r, err := NewReembedder(c, embedder, testConfig(), WithSink(saveToDisk), WithProgress(&progress))
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Failures)
	assert.Equal(t, 3, report.Embedded)

	// Reload from disk: every document is now fresh and keeps its body.
	reloaded := loadDir(t, dir)
	for _, e := range reloaded.Snapshot() {
		assert.False(t, IsStale(e.Doc), e.ID)
		assert.Len(t, e.Doc.Embedding(), 32)
	}

	beta, ok := reloaded.Get(filepath.Join(dir, "beta.ymj"))
	require.True(t, ok)
	assert.Contains(t, beta.Body(), `{"example": true}`)
	assert.Contains(t, beta.Body(), "More text.")

	alpha, _ := reloaded.Get(filepath.Join(dir, "alpha.ymj"))
	assert.Equal(t, []string{"go", "search"}, alpha.IndexBlock().Tags)

	// A query with the exact embedding text of a document ranks it first.
	searcher, err := search.NewSearcher(search.WithEmbedder(embedder))
	require.NoError(t, err)
	defer searcher.Release()

	text, err := format.EmbeddingText(alpha)
	require.NoError(t, err)
	result, err := searcher.FindSimilar(context.Background(), text, reloaded.Snapshot(), 3)
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, filepath.Join(dir, "alpha.ymj"), result.Hits[0].ID)
	assert.InDelta(t, 1.0, result.Hits[0].Score, 1e-6)
	assert.Equal(t, 0, result.Skipped)
}

func TestIntegration_EditMakesDocumentStale(t *testing.T) {
	dir, _ := writeDocs(t)
	c := loadDir(t, dir)

	embedder := mock.NewMockEmbedder()
	embedder.Dim = 8
	r, err := NewReembedder(c, embedder, testConfig(), WithSink(saveToDisk))
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	path := filepath.Join(dir, "gamma.ymj")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	edited := bytes.Replace(data, []byte("No trailing newline"), []byte("Edited body"), 1)
	require.NoError(t, os.WriteFile(path, edited, 0o644))

	reloaded := loadDir(t, dir)
	gamma, _ := reloaded.Get(path)
	assert.Equal(t, FingerprintMismatch, Detector{}.Check(gamma))

	r2, err := NewReembedder(reloaded, embedder, testConfig(), WithSink(saveToDisk))
	require.NoError(t, err)
	report, err := r2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stale)
	assert.Equal(t, 1, report.Embedded)
}

func TestIntegration_ModelChangeMakesDocumentsStale(t *testing.T) {
	dir, _ := writeDocs(t)
	c := loadDir(t, dir)

	first := mock.NewMockEmbedder()
	first.ModelName = "model-a"
	r, err := NewReembedder(c, first, testConfig())
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	second := mock.NewMockEmbedder()
	second.ModelName = "model-b"
	r2, err := NewReembedder(c, second, testConfig())
	require.NoError(t, err)
	assert.Len(t, r2.Stale(), 3)
}
