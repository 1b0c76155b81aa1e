package corpus

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/poiesic/ymj/core"
)

type snapshot struct {
	entries []core.Entry
	index   map[string]int
}

func newSnapshot(entries []core.Entry) *snapshot {
	s := &snapshot{entries: entries, index: make(map[string]int, len(entries))}
	for i, e := range entries {
		s.index[e.ID] = i
	}
	return s
}

// Corpus is an ordered set of documents keyed by source identifier.
// It is safe for concurrent use.
type Corpus struct {
	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[snapshot]
}

// New creates a corpus from entries. A repeated ID replaces the earlier
// document and keeps the earlier position.
func New(entries ...core.Entry) *Corpus {
	c := &Corpus{}
	out := make([]core.Entry, 0, len(entries))
	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		if i, ok := seen[e.ID]; ok {
			out[i] = e
			continue
		}
		seen[e.ID] = len(out)
		out = append(out, e)
	}
	c.snap.Store(newSnapshot(out))
	return c
}

func (c *Corpus) load() *snapshot {
	if s := c.snap.Load(); s != nil {
		return s
	}
	return &snapshot{}
}

// Snapshot returns the current entries in corpus order. Later writes do not
// affect the returned slice.
func (c *Corpus) Snapshot() []core.Entry {
	return slices.Clone(c.load().entries)
}

// Get returns the current document for id.
func (c *Corpus) Get(id string) (*core.Document, bool) {
	s := c.load()
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.entries[i].Doc, true
}

func (c *Corpus) Len() int {
	return len(c.load().entries)
}

// Replace swaps the document for id from old to doc. It fails when id is
// absent or its document is no longer old, which happens when another writer
// got there first.
func (c *Corpus) Replace(id string, old, doc *core.Document) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.load()
	i, ok := s.index[id]
	if !ok || s.entries[i].Doc != old {
		return false
	}
	entries := slices.Clone(s.entries)
	entries[i] = core.Entry{ID: id, Doc: doc}
	c.snap.Store(&snapshot{entries: entries, index: s.index})
	return true
}

// Upsert sets the document for id, appending it when id is new.
func (c *Corpus) Upsert(id string, doc *core.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.load()
	entries := slices.Clone(s.entries)
	if i, ok := s.index[id]; ok {
		entries[i] = core.Entry{ID: id, Doc: doc}
		c.snap.Store(&snapshot{entries: entries, index: s.index})
		return
	}
	c.snap.Store(newSnapshot(append(entries, core.Entry{ID: id, Doc: doc})))
}

// Remove deletes id from the corpus.
func (c *Corpus) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.load()
	i, ok := s.index[id]
	if !ok {
		return false
	}
	c.snap.Store(newSnapshot(slices.Delete(slices.Clone(s.entries), i, i+1)))
	return true
}
