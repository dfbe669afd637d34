// Package main provides the stmtdiff CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"stmtdiff/diff"
	"stmtdiff/intent"
	"stmtdiff/internal/batch"
	"stmtdiff/internal/config"
	"stmtdiff/internal/source"
)

// Version is the current stmtdiff CLI version
var Version = "0.3.0"

// errChangesFound makes the process exit with status 1 under --fail-on-change.
var errChangesFound = errors.New("changes found")

// Exit codes
const (
	exitOK      = 0
	exitChanged = 1
	exitError   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errChangesFound) {
			return exitChanged
		}
		fmt.Fprintln(stderr, "Error:", err)
		return exitError
	}
	return exitOK
}

// app carries state shared by every subcommand once flags and config are
// resolved.
type app struct {
	stdout, stderr io.Writer

	configPath string
	noColor    bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "stmtdiff",
		Short: "Statement-level change classification for Python patches",
		Long: `stmtdiff compares two versions of Python source and reports, per function,
a typed record for every statement-level change: renamed variables, changed
conditions, added checks, reordered statements and more.

Examples:
  stmtdiff diff old/app.py new/app.py
  stmtdiff git --from main --to feature app/handlers.py
  stmtdiff batch ./before ./after --exclude '**/migrations/**'`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.String("format", config.FormatText, "Output format: text, json or yaml")
	pf.String("log-level", "warn", "Log level: debug, info, warn or error")
	pf.Bool("fail-on-change", false, "Exit with status 1 when any change is found")
	pf.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	pf.StringVar(&a.configPath, "config", "", "Config file (default: .stmtdiff.yaml in the working directory)")

	root.AddCommand(
		a.newDiffCmd(),
		a.newGitCmd(),
		a.newBatchCmd(),
		a.newKindsCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	loader := config.NewLoader()
	if a.configPath != "" {
		loader.WithConfigPath(a.configPath)
	}
	if err := loader.BindFlags(cmd.Flags()); err != nil {
		return err
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	if f := loader.ConfigFile(); f != "" {
		a.logger.Debug("loaded config", "file", f)
	}
	return nil
}

func (a *app) useColor() bool {
	return a.cfg.Output.Color && !a.noColor && !color.NoColor
}

func (a *app) differ() *diff.Differ {
	return diff.NewDiffer(diff.WithLogger(a.logger))
}

func (a *app) newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Classify the changes between two Python files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := source.ReadLocal(args[0])
			if err != nil {
				return err
			}
			after, err := source.ReadLocal(args[1])
			if err != nil {
				return err
			}
			fd, err := a.differ().DiffSource(args[1], before, after)
			if err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}
			intent.Annotate(fd)

			if err := a.emit(fd, []*diff.FileDiff{fd}); err != nil {
				return err
			}
			return a.checkChanges([]*diff.FileDiff{fd})
		},
	}
}

func (a *app) newGitCmd() *cobra.Command {
	var repoPath, from, to string

	cmd := &cobra.Command{
		Use:   "git [PATH...]",
		Short: "Classify the changes to Python files between two Git revisions",
		Long: `Classify the changes to Python files between two Git revisions.

Revisions may be branch names, tags, commit hashes or expressions such as
HEAD~1. Without PATH arguments every Python file modified between the two
revisions is compared.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := source.Open(repoPath)
			if err != nil {
				return err
			}

			paths := args
			if len(paths) == 0 {
				paths, err = repo.ModifiedPython(from, to)
				if err != nil {
					return err
				}
				a.logger.Info("modified python files", "from", from, "to", to, "count", len(paths))
			}

			d := a.differ()
			fds := make([]*diff.FileDiff, 0, len(paths))
			for _, path := range paths {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				before, err := repo.ReadFile(from, path)
				if err != nil {
					return err
				}
				after, err := repo.ReadFile(to, path)
				if err != nil {
					return err
				}
				fd, err := d.DiffSource(path, before, after)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				intent.Annotate(fd)
				fds = append(fds, fd)
			}

			if err := a.emit(fds, fds); err != nil {
				return err
			}
			return a.checkChanges(fds)
		},
	}
	cmd.Flags().StringVar(&repoPath, "repo", ".", "Path inside the Git repository")
	cmd.Flags().StringVar(&from, "from", "HEAD~1", "Old revision")
	cmd.Flags().StringVar(&to, "to", "HEAD", "New revision")
	return cmd
}

// batchReport is the structured form of a batch run.
type batchReport struct {
	Files   []*diff.FileDiff `json:"files" yaml:"files"`
	Failed  []failedFile     `json:"failed,omitempty" yaml:"failed,omitempty"`
	Skipped []skippedFile    `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

type failedFile struct {
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
}

type skippedFile struct {
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
}

func (a *app) newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch OLD_DIR NEW_DIR",
		Short: "Classify the changes of every Python file pair in two directory trees",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := batch.Options{
				Include: a.cfg.Batch.Include,
				Exclude: a.cfg.Batch.Exclude,
				Workers: a.cfg.Batch.Workers,
			}
			res, err := batch.Run(cmd.Context(), args[0], args[1], opts, a.logger)
			if err != nil {
				return err
			}
			for _, fd := range res.Files {
				intent.Annotate(fd)
			}

			if a.cfg.Output.Format == config.FormatText {
				f := diff.NewTextFormatter(a.useColor())
				for _, fd := range res.Changed() {
					if err := f.Format(a.stdout, fd); err != nil {
						return err
					}
				}
				if err := res.RenderSummary(a.stdout); err != nil {
					return err
				}
			} else {
				report := batchReport{Files: res.Files}
				for _, f := range res.Failed {
					report.Failed = append(report.Failed, failedFile{Path: f.Path, Error: f.Err.Error()})
				}
				for _, s := range res.Skipped {
					report.Skipped = append(report.Skipped, skippedFile{Path: s.Path, Reason: s.Reason})
				}
				if err := a.emitStructured(report); err != nil {
					return err
				}
			}
			return a.checkChanges(res.Files)
		},
	}
	cmd.Flags().StringSlice("include", batch.DefaultInclude, "Glob patterns selecting files")
	cmd.Flags().StringSlice("exclude", nil, "Glob patterns excluding files")
	cmd.Flags().Int("workers", 0, "Concurrent file pairs (0 = number of CPUs)")
	return cmd
}

func (a *app) newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List every change kind with its sentence template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := diff.Templates()
			if a.cfg.Output.Format != config.FormatText {
				return a.emitStructured(kinds)
			}

			tbl := table.NewWriter()
			tbl.SetStyle(table.StyleLight)
			tbl.AppendHeader(table.Row{"Kind", "Template"})
			for _, k := range kinds {
				tbl.AppendRow(table.Row{string(k.Kind), k.Template})
			}
			_, err := io.WriteString(a.stdout, tbl.Render()+"\n")
			return err
		},
	}
}

// emit writes reports as text, or v as JSON or YAML.
func (a *app) emit(v interface{}, fds []*diff.FileDiff) error {
	if a.cfg.Output.Format != config.FormatText {
		return a.emitStructured(v)
	}
	f := diff.NewTextFormatter(a.useColor())
	for _, fd := range fds {
		if err := f.Format(a.stdout, fd); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) emitStructured(v interface{}) error {
	var (
		data []byte
		err  error
	)
	switch a.cfg.Output.Format {
	case config.FormatJSON:
		data, err = diff.FormatJSON(v)
		data = append(data, '\n')
	case config.FormatYAML:
		data, err = diff.FormatYAML(v)
	default:
		return fmt.Errorf("unsupported format %q", a.cfg.Output.Format)
	}
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = a.stdout.Write(data)
	return err
}

func (a *app) checkChanges(fds []*diff.FileDiff) error {
	if !a.cfg.FailOnChange {
		return nil
	}
	for _, fd := range fds {
		if fd.HasChanges() {
			return errChangesFound
		}
	}
	return nil
}
