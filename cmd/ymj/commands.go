package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/poiesic/ymj"
	"github.com/poiesic/ymj/core"
	"github.com/poiesic/ymj/corpus"
	"github.com/poiesic/ymj/format"
	"github.com/poiesic/ymj/reembed"
	"github.com/urfave/cli/v2"
)

func validateCommand(c *cli.Context) error {
	engine, _, err := openEngine(c, ymj.WithStrict(c.Bool("strict")))
	if err != nil {
		return err
	}
	defer engine.Close()

	report, err := engine.Validate(c.Context, inputPaths(c.Args().Slice())...)
	if err != nil {
		return err
	}

	out := c.App.Writer
	printLoadReport(out, report)
	checked := report.Loaded + len(report.Failures)
	failed := report.FailedCount()
	fmt.Fprintf(out, "checked %d, failed %d\n", checked, failed)

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d documents", errValidationFailed, failed, checked)
	}
	return nil
}

// printLoadReport writes one line per warning, failure and issue.
func printLoadReport(w io.Writer, report *corpus.LoadReport) {
	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "%s: warning: %v\n", warn.ID, warn.Err)
	}
	for _, f := range report.Failures {
		if corpus.IsParseError(f.Err) {
			// Parse errors already carry the path
			fmt.Fprintln(w, f.Err)
			continue
		}
		fmt.Fprintf(w, "%s: %v\n", f.ID, f.Err)
	}
	for _, d := range report.Issues {
		for _, issue := range d.Issues {
			fmt.Fprintf(w, "%s: %s\n", d.ID, issue)
		}
	}
}

func searchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("a query is required")
	}
	query := c.Args().First()
	paths := inputPaths(c.Args().Tail())
	top := c.Int("top")

	engine, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	docs, report, err := engine.Load(c.Context, paths...)
	if err != nil {
		return err
	}
	for _, f := range report.Failures {
		fmt.Fprintf(c.App.ErrWriter, "%s: skipped: %v\n", f.ID, f.Err)
	}

	out := c.App.Writer
	if c.Bool("text") {
		for _, hit := range engine.SearchText(docs, query, top) {
			fmt.Fprintf(out, "%s - %s\n", hit.ID, hit.Title)
		}
		return nil
	}

	result, err := engine.Search(c.Context, docs, query, top)
	if err != nil {
		return err
	}
	for _, hit := range result.Hits {
		fmt.Fprintf(out, "[%.4f] %s - %s\n", hit.Score, hit.ID, hit.Title)
	}
	if result.Skipped > 0 {
		fmt.Fprintf(c.App.ErrWriter, "%d documents without a comparable embedding were skipped (try --text)\n", result.Skipped)
	}
	return nil
}

func embedCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	engine, fc, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	config, err := reembedConfig(c, fc)
	if err != nil {
		return err
	}

	paths := inputPaths(c.Args().Slice())
	docs, report, err := engine.Load(ctx, paths...)
	if err != nil {
		return err
	}
	for _, f := range report.Failures {
		fmt.Fprintf(c.App.ErrWriter, "%s: skipped: %v\n", f.ID, f.Err)
	}

	r, err := engine.NewReembedder(docs, config,
		reembed.WithSink(saveDocument),
		reembed.WithProgress(c.App.ErrWriter),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", engine.Embedder().Model())
	result, err := r.Run(ctx)
	if result != nil {
		printEmbedReport(c.App.Writer, c.App.ErrWriter, result, len(report.Failures))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	if c.Bool("watch") {
		w := newDocWatcher(engine, docs, r, c.App.Writer, c.App.ErrWriter)
		return w.Run(ctx, paths)
	}
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d documents were not embedded", len(result.Failures))
	}
	return nil
}

func saveDocument(_ context.Context, id string, doc *core.Document) error {
	return corpus.SaveFile(id, doc)
}

// printEmbedReport prints per-document failures and the processed total.
// Files that failed to load count toward the total but never as processed.
func printEmbedReport(out, errOut io.Writer, result *reembed.Report, loadFailures int) {
	for _, f := range result.Failures {
		fmt.Fprintf(errOut, "%s: %v\n", f.ID, f.Err)
	}
	// Documents that were already fresh count as processed
	ok := result.Total - result.Stale + result.Embedded
	fmt.Fprintf(out, "Processed %d/%d files\n", ok, result.Total+loadFailures)
}

func renderCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one path is required")
	}

	engine, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	for _, path := range c.Args().Slice() {
		doc, _, err := engine.LoadFile(path)
		if err != nil {
			return err
		}
		if c.Bool("write") {
			if err := corpus.SaveFile(path, doc); err != nil {
				return err
			}
			continue
		}
		data, err := format.Render(doc)
		if err != nil {
			return fmt.Errorf("render %s: %w", path, err)
		}
		if _, err := c.App.Writer.Write(data); err != nil {
			return err
		}
	}
	return nil
}
