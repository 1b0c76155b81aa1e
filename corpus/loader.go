package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ymj/core"
	"github.com/poiesic/ymj/format"
)

// Extension is the file suffix of YMJ documents.
const Extension = ".ymj"

// Failure is a document that could not be loaded.
type Failure struct {
	ID  string
	Err error
}

// DocumentIssues are the non-fatal findings for one loaded document.
type DocumentIssues struct {
	ID     string
	Issues []core.Issue
}

// LoadReport summarizes a batch load. Entries keep the input order.
type LoadReport struct {
	Loaded   int
	Failures []Failure
	Issues   []DocumentIssues
	Warnings []Failure
}

// Blocking reports whether the document lacks a required field, or lacks an
// embedding in strict mode.
func (d DocumentIssues) Blocking() bool {
	return core.HasKind(d.Issues, core.IssueMissingRequiredField) || core.HasKind(d.Issues, core.IssueMissingEmbedding)
}

// FailedCount is the number of documents that failed to load or have
// blocking issues.
func (r *LoadReport) FailedCount() int {
	n := len(r.Failures)
	for _, d := range r.Issues {
		if d.Blocking() {
			n++
		}
	}
	return n
}

// Failed reports whether any document failed to parse or has blocking issues.
func (r *LoadReport) Failed() bool {
	return r.FailedCount() > 0
}

// Loader parses and validates documents on a worker pool.
type Loader struct {
	pool   *ants.Pool
	strict bool
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader) error

// WithPoolSize sets the worker pool size for concurrent parsing.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(l *Loader) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if l.pool != nil {
			l.pool.Release()
		}
		l.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
		return nil
	}
}

// WithStrict additionally requires every document to carry an embedding.
func WithStrict(strict bool) Option {
	return func(l *Loader) error {
		l.strict = strict
		return nil
	}
}

// NewLoader creates a loader. Release must be called when done.
func NewLoader(opts ...Option) (*Loader, error) {
	pool, err := ants.NewPool(max(runtime.NumCPU(), 1))
	if err != nil {
		return nil, err
	}

	l := &Loader{
		pool:   pool,
		logger: slog.Default().With("component", "loader"),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			l.Release()
			return nil, err
		}
	}
	return l, nil
}

// Release releases the worker pool.
func (l *Loader) Release() {
	if l.pool != nil {
		l.pool.Release()
	}
}

// ParseDocument parses and validates one document. Fatal parse errors are
// returned as errors; everything else is returned as issues.
func (l *Loader) ParseDocument(text string) (*core.Document, []core.Issue, error) {
	doc, issues, err := format.Parse(text)
	if err != nil {
		return nil, nil, err
	}
	if l.strict {
		issues = append(issues, core.ValidateStrict(doc)...)
	} else {
		issues = append(issues, core.Validate(doc.FrontMatter())...)
	}
	return doc, issues, nil
}

// LoadFile reads, parses and validates the document at path.
func (l *Loader) LoadFile(path string) (*core.Document, []core.Issue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	doc, issues, err := l.ParseDocument(string(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, issues, nil
}

type loadResult struct {
	doc    *core.Document
	issues []core.Issue
	err    error
}

// LoadFiles loads every path into a new corpus, in input order. A file that
// fails to load is recorded in the report and the batch carries on. Only
// cancellation aborts the load.
func (l *Loader) LoadFiles(ctx context.Context, paths []string) (*Corpus, *LoadReport, error) {
	results := make([]loadResult, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		err := l.pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				results[i].err = err
				return
			}
			results[i].doc, results[i].issues, results[i].err = l.LoadFile(path)
		})
		if err != nil {
			wg.Done()
			results[i].err = err
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	report := &LoadReport{}
	entries := make([]core.Entry, 0, len(paths))
	for i, path := range paths {
		if !strings.EqualFold(filepath.Ext(path), Extension) {
			report.Warnings = append(report.Warnings, Failure{ID: path, Err: ErrNotYMJ})
		}
		res := results[i]
		if res.err != nil {
			l.logger.Warn("failed to load document", "path", path, "err", res.err)
			report.Failures = append(report.Failures, Failure{ID: path, Err: res.err})
			continue
		}
		if len(res.issues) > 0 {
			report.Issues = append(report.Issues, DocumentIssues{ID: path, Issues: res.issues})
		}
		entries = append(entries, core.Entry{ID: path, Doc: res.doc})
	}
	report.Loaded = len(entries)

	l.logger.Debug("documents loaded", "loaded", report.Loaded, "failed", len(report.Failures))
	return New(entries...), report, nil
}

// Discover expands paths into document files. Directories are walked for
// files with the .ymj suffix; files named explicitly are kept as given.
// The result is sorted and free of duplicates.
func Discover(paths ...string) ([]string, error) {
	var out []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.EqualFold(filepath.Ext(path), Extension) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(out) == 0 {
		return nil, ErrNoInputs
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// IsParseError reports whether err is a fatal document error rather than an
// I/O failure.
func IsParseError(err error) bool {
	var perr *core.ParseError
	return errors.As(err, &perr)
}
