// Package batch diffs every matching file pair of two directory trees.
package batch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/sync/errgroup"

	"stmtdiff/diff"
)

// Options controls file selection and parallelism.
type Options struct {
	Include []string
	Exclude []string
	// Workers bounds concurrent file pairs; zero means GOMAXPROCS.
	Workers int
}

// Failure is a file pair that could not be diffed.
type Failure struct {
	Path string
	Err  error
}

// Skip is a selected file present on one side only.
type Skip struct {
	Path   string
	Reason string
}

// Result holds the outcome of a batch run. Every list is sorted by path.
type Result struct {
	Files   []*diff.FileDiff
	Failed  []Failure
	Skipped []Skip
}

// Changed returns the reports that carry at least one change.
func (r *Result) Changed() []*diff.FileDiff {
	var out []*diff.FileDiff
	for _, fd := range r.Files {
		if fd.HasChanges() {
			out = append(out, fd)
		}
	}
	return out
}

// Run diffs every selected file that exists under both roots. Files that
// fail to parse are collected in Result.Failed; only cancellation or a
// directory walk error aborts the run.
func Run(ctx context.Context, oldRoot, newRoot string, opts Options, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	matcher, err := NewMatcher(opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}

	oldFiles, err := collect(oldRoot, matcher)
	if err != nil {
		return nil, err
	}
	newFiles, err := collect(newRoot, matcher)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var pairs []string
	for rel := range newFiles {
		if oldFiles[rel] {
			pairs = append(pairs, rel)
		} else {
			res.Skipped = append(res.Skipped, Skip{Path: rel, Reason: "only in new"})
		}
	}
	for rel := range oldFiles {
		if !newFiles[rel] {
			res.Skipped = append(res.Skipped, Skip{Path: rel, Reason: "only in old"})
		}
	}
	sort.Strings(pairs)
	sort.Slice(res.Skipped, func(i, j int) bool { return res.Skipped[i].Path < res.Skipped[j].Path })

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger.Info("starting batch", "old", oldRoot, "new", newRoot, "pairs", len(pairs), "workers", workers)

	reports := make([]*diff.FileDiff, len(pairs))
	failures := make([]error, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rel := range pairs {
		if gctx.Err() != nil {
			break
		}
		i, rel := i, rel
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fd, err := diffPair(oldRoot, newRoot, rel, logger)
			if err != nil {
				logger.Warn("diff failed", "path", rel, "error", err)
				failures[i] = err
				return nil
			}
			reports[i] = fd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, rel := range pairs {
		if failures[i] != nil {
			res.Failed = append(res.Failed, Failure{Path: rel, Err: failures[i]})
			continue
		}
		res.Files = append(res.Files, reports[i])
	}

	logger.Info("batch finished",
		"files", len(res.Files),
		"changed", len(res.Changed()),
		"failed", len(res.Failed),
		"skipped", len(res.Skipped))
	return res, nil
}

// diffPair runs one pair with its own Differ, since parsers are not safe
// for concurrent use.
func diffPair(oldRoot, newRoot, rel string, logger *slog.Logger) (*diff.FileDiff, error) {
	before, err := os.ReadFile(filepath.Join(oldRoot, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("reading old file: %w", err)
	}
	after, err := os.ReadFile(filepath.Join(newRoot, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("reading new file: %w", err)
	}
	return diff.NewDiffer(diff.WithLogger(logger)).DiffSource(rel, before, after)
}

// collect returns the slash-separated relative paths of selected regular
// files under root.
func collect(root string, m *Matcher) (map[string]bool, error) {
	files := make(map[string]bool)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if m.Match(rel) {
			files[rel] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

// RenderSummary writes a per-file table of change counts.
func (r *Result) RenderSummary(w io.Writer) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"File", "Functions", "Changes", "+Lines", "-Lines", "Status"})

	total := 0
	for _, fd := range r.Files {
		status := "unchanged"
		if fd.HasChanges() {
			status = "changed"
		}
		count := fd.Functions.Count()
		total += count
		tbl.AppendRow(table.Row{fd.Path, len(fd.Functions), count, fd.Lines.Added, fd.Lines.Removed, status})
	}
	for _, f := range r.Failed {
		tbl.AppendRow(table.Row{f.Path, "-", "-", "-", "-", "error: " + f.Err.Error()})
	}
	for _, s := range r.Skipped {
		tbl.AppendRow(table.Row{s.Path, "-", "-", "-", "-", "skipped: " + s.Reason})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d files", len(r.Files)), "", total, "", "", ""})

	_, err := io.WriteString(w, tbl.Render()+"\n")
	return err
}
