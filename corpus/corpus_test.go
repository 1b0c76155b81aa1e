package corpus

import (
	"sync"
	"testing"

	"github.com/poiesic/ymj/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(title string) *core.Document {
	fm := core.NewFrontMatter()
	fm.Set(core.FieldDocType, core.StringValue("note"))
	fm.Set(core.FieldTitle, core.StringValue(title))
	return core.NewDocument(fm, "", nil)
}

func ids(entries []core.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestNew(t *testing.T) {
	a, b, a2 := doc("a"), doc("b"), doc("a2")
	c := New(core.Entry{ID: "a", Doc: a}, core.Entry{ID: "b", Doc: b}, core.Entry{ID: "a", Doc: a2})

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"a", "b"}, ids(c.Snapshot()))
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Same(t, a2, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestZeroCorpus(t *testing.T) {
	var c Corpus
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Snapshot())
	c.Upsert("a", doc("a"))
	assert.Equal(t, 1, c.Len())
}

func TestReplace(t *testing.T) {
	old, next := doc("old"), doc("new")
	c := New(core.Entry{ID: "x", Doc: old}, core.Entry{ID: "y", Doc: doc("y")})
	before := c.Snapshot()

	t.Run("swaps when current matches", func(t *testing.T) {
		require.True(t, c.Replace("x", old, next))
		got, _ := c.Get("x")
		assert.Same(t, next, got)
		assert.Equal(t, []string{"x", "y"}, ids(c.Snapshot()))
	})

	t.Run("earlier snapshot is untouched", func(t *testing.T) {
		assert.Same(t, old, before[0].Doc)
	})

	t.Run("stale expectation fails", func(t *testing.T) {
		assert.False(t, c.Replace("x", old, doc("other")))
		got, _ := c.Get("x")
		assert.Same(t, next, got)
	})

	t.Run("unknown id fails", func(t *testing.T) {
		assert.False(t, c.Replace("z", nil, doc("z")))
	})
}

func TestUpsertAndRemove(t *testing.T) {
	c := New()
	c.Upsert("a", doc("a"))
	c.Upsert("b", doc("b"))
	c.Upsert("a", doc("a2"))

	assert.Equal(t, []string{"a", "b"}, ids(c.Snapshot()))
	got, _ := c.Get("a")
	assert.Equal(t, "a2", got.Title())

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	assert.Equal(t, []string{"b"}, ids(c.Snapshot()))
	got, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, "b", got.Title())
}

func TestConcurrentReplaceAndSnapshot(t *testing.T) {
	first := doc("v0")
	c := New(core.Entry{ID: "x", Doc: first})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for {
				cur, _ := c.Get("x")
				if c.Replace("x", cur, doc("v")) {
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				snap := c.Snapshot()
				assert.Len(t, snap, 1)
				assert.NotNil(t, snap[0].Doc)
			}
		}()
	}
	wg.Wait()

	got, _ := c.Get("x")
	assert.NotSame(t, first, got)
}
