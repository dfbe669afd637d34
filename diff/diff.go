package diff

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"stmtdiff/cas"
	"stmtdiff/parse"
)

// Differ computes statement-level diffs between two versions of a file.
// A Differ owns a parser and must not be shared between goroutines.
type Differ struct {
	parser     *parse.Parser
	classifier *Classifier
	logger     *slog.Logger
}

// Option configures a Differ.
type Option func(*Differ)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Differ) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClassifier replaces the default classifier.
func WithClassifier(c *Classifier) Option {
	return func(d *Differ) {
		if c != nil {
			d.classifier = c
		}
	}
}

// NewDiffer creates a new differ.
func NewDiffer(opts ...Option) *Differ {
	d := &Differ{
		parser:     parse.NewParser(),
		classifier: NewClassifier(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DiffTrees compares every function defined in both trees. Functions are
// visited in the order they first appear in the old tree; functions that
// exist on one side only are not reported, nor are unchanged ones.
func (d *Differ) DiffTrees(before, after *parse.ParsedFile) (*FileDiff, error) {
	oldFuncs, err := ExtractFunctions(before)
	if err != nil {
		return nil, fmt.Errorf("extracting old functions: %w", err)
	}
	newFuncs, err := ExtractFunctions(after)
	if err != nil {
		return nil, fmt.Errorf("extracting new functions: %w", err)
	}

	fd := &FileDiff{Path: after.Path}
	for _, name := range oldFuncs.Names() {
		newFn, ok := newFuncs.Get(name)
		if !ok {
			d.logger.Debug("function only in old version", "path", before.Path, "function", name)
			continue
		}
		oldFn, _ := oldFuncs.Get(name)

		changes := d.classifier.AlignBodies(oldFn.Body, newFn.Body, name)
		if len(changes) == 0 {
			continue
		}
		fd.Functions = append(fd.Functions, FunctionChanges{Name: name, Changes: changes})
	}

	d.logger.Debug("diffed trees",
		"path", fd.Path,
		"old_functions", oldFuncs.Len(),
		"new_functions", newFuncs.Len(),
		"changed_functions", len(fd.Functions),
		"changes", fd.Functions.Count())

	return fd, nil
}

// DiffSource parses both versions of path and diffs them. The result also
// carries content digests, a report ID and textual line counts.
func (d *Differ) DiffSource(path string, before, after []byte) (*FileDiff, error) {
	oldTree, err := d.parser.Parse(path, before)
	if err != nil {
		return nil, fmt.Errorf("parsing old version: %w", err)
	}
	newTree, err := d.parser.Parse(path, after)
	if err != nil {
		return nil, fmt.Errorf("parsing new version: %w", err)
	}

	fd, err := d.DiffTrees(oldTree, newTree)
	if err != nil {
		return nil, err
	}

	fd.OldDigest = cas.Digest(before)
	fd.NewDigest = cas.Digest(after)
	fd.Lines = lineStats(string(before), string(after))

	id, err := cas.NodeIDHex("FileDiff", map[string]interface{}{
		"path":      path,
		"oldDigest": fd.OldDigest,
		"newDigest": fd.NewDigest,
	})
	if err != nil {
		return nil, fmt.Errorf("computing report id: %w", err)
	}
	fd.ID = id

	return fd, nil
}

// DiffFile reads two files from disk and diffs them. The report carries the
// new file's path.
func (d *Differ) DiffFile(oldPath, newPath string) (*FileDiff, error) {
	before, err := os.ReadFile(oldPath)
	if err != nil {
		return nil, fmt.Errorf("reading old file: %w", err)
	}
	after, err := os.ReadFile(newPath)
	if err != nil {
		return nil, fmt.Errorf("reading new file: %w", err)
	}
	return d.DiffSource(newPath, before, after)
}
