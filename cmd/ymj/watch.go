package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/ymj"
	"github.com/poiesic/ymj/core"
	"github.com/poiesic/ymj/corpus"
	"github.com/poiesic/ymj/format"
	"github.com/poiesic/ymj/reembed"
)

// debounceDelay batches bursts of file events into a single embedding run.
const debounceDelay = 500 * time.Millisecond

// docWatcher keeps a corpus in sync with the files on disk and re-embeds
// documents that change.
type docWatcher struct {
	engine     *ymj.Engine
	corpus     *corpus.Corpus
	reembedder *reembed.Reembedder
	out        io.Writer
	errOut     io.Writer
	pending    map[string]struct{}
	logger     *slog.Logger
}

func newDocWatcher(engine *ymj.Engine, c *corpus.Corpus, r *reembed.Reembedder, out, errOut io.Writer) *docWatcher {
	return &docWatcher{
		engine:     engine,
		corpus:     c,
		reembedder: r,
		out:        out,
		errOut:     errOut,
		pending:    make(map[string]struct{}),
		logger:     slog.Default().With("component", "watcher"),
	}
}

// Run watches the directories under roots until ctx is cancelled.
func (w *docWatcher) Run(ctx context.Context, roots []string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	for _, root := range roots {
		if err := addWatches(fw, root); err != nil {
			return err
		}
	}
	fmt.Fprintf(w.errOut, "Watching %d paths for changes (Ctrl-C to stop)\n", len(roots))

	timer := time.NewTimer(debounceDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if isNewDir(event) {
				if err := addWatches(fw, event.Name); err != nil {
					w.logger.Warn("failed to watch directory", "path", event.Name, "err", err)
				}
				continue
			}
			if w.handleEvent(event) {
				timer.Reset(debounceDelay)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		case <-timer.C:
			if err := w.flush(ctx); err != nil {
				return err
			}
		}
	}
}

// addWatches watches root, or its directory when root is a file, and every
// non-hidden directory below it.
func addWatches(fw *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fw.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func isNewDir(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) || isHidden(event.Name) {
		return false
	}
	info, err := os.Stat(event.Name)
	return err == nil && info.IsDir()
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// handleEvent applies a file event to the corpus. It reports whether an
// embedding run should follow.
func (w *docWatcher) handleEvent(event fsnotify.Event) bool {
	if isHidden(event.Name) || !strings.EqualFold(filepath.Ext(event.Name), corpus.Extension) {
		return false
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(w.pending, event.Name)
		if w.corpus.Remove(event.Name) {
			w.logger.Info("document removed", "path", event.Name)
		}
		return false
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.pending[event.Name] = struct{}{}
		return true
	default:
		return false
	}
}

// flush reloads the pending files and embeds whatever became stale.
func (w *docWatcher) flush(ctx context.Context) error {
	changed := 0
	for path := range w.pending {
		delete(w.pending, path)
		doc, _, err := w.engine.LoadFile(path)
		if err != nil {
			fmt.Fprintf(w.errOut, "%s: skipped: %v\n", path, err)
			continue
		}
		if old, ok := w.corpus.Get(path); ok && sameDocument(old, doc) {
			continue
		}
		w.corpus.Upsert(path, doc)
		changed++
	}
	if changed == 0 {
		return nil
	}

	result, err := w.reembedder.Run(ctx)
	if result != nil {
		printEmbedReport(w.out, w.errOut, result, 0)
	}
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// sameDocument reports whether a and b render identically. Rewrites made by
// the sink itself show up as events and are ignored this way.
func sameDocument(a, b *core.Document) bool {
	ra, errA := format.Render(a)
	rb, errB := format.Render(b)
	return errA == nil && errB == nil && bytes.Equal(ra, rb)
}
