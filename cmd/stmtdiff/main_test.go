package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"stmtdiff/diff"
)

const (
	oldSource = "def f():\n    x = 1\n    return x\n"
	newSource = "def f():\n    x = 2\n    return x\n"
)

type report struct {
	Path    string                              `json:"path"`
	Changes map[string][]map[string]interface{} `json:"changes"`
	Intents map[string]string                   `json:"intents"`
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func filePair(t *testing.T, before, after string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old", "app.py")
	newPath := filepath.Join(dir, "new", "app.py")
	writeFile(t, oldPath, before)
	writeFile(t, newPath, after)
	return oldPath, newPath
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	if cmd.Use != "stmtdiff" {
		t.Errorf("expected Use 'stmtdiff', got %q", cmd.Use)
	}
	for _, name := range []string{"diff", "git", "batch", "kinds"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("expected subcommand %s", name)
		}
	}
}

func TestDiffCommand_JSON(t *testing.T) {
	oldPath, newPath := filePair(t, oldSource, newSource)

	code, out, errOut := execute(t, "diff", oldPath, newPath, "--format", "json")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}

	var r report
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if r.Path != newPath {
		t.Errorf("expected path %s, got %s", newPath, r.Path)
	}
	changes := r.Changes["f"]
	if len(changes) != 1 || changes[0]["type"] != "var_value_change" {
		t.Fatalf("unexpected changes %v", r.Changes)
	}
	if r.Intents["f"] != "Update x in f" {
		t.Errorf("unexpected intent %q", r.Intents["f"])
	}
}

func TestDiffCommand_Text(t *testing.T) {
	oldPath, newPath := filePair(t, oldSource, newSource)

	code, out, _ := execute(t, "diff", oldPath, newPath, "--no-color")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out, "var_value_change: Value of variable 'x' changed from '1' to '2'.") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("expected no escape codes:\n%s", out)
	}
}

func TestDiffCommand_YAML(t *testing.T) {
	oldPath, newPath := filePair(t, oldSource, newSource)

	code, out, _ := execute(t, "diff", oldPath, newPath, "--format", "yaml")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out, "type: var_value_change") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestDiffCommand_FailOnChange(t *testing.T) {
	oldPath, newPath := filePair(t, oldSource, newSource)
	if code, _, _ := execute(t, "diff", oldPath, newPath, "--fail-on-change"); code != exitChanged {
		t.Errorf("expected exit 1 for changes, got %d", code)
	}

	samePath, samePath2 := filePair(t, oldSource, oldSource)
	if code, _, _ := execute(t, "diff", samePath, samePath2, "--fail-on-change"); code != exitOK {
		t.Errorf("expected exit 0 without changes, got %d", code)
	}
}

func TestDiffCommand_Errors(t *testing.T) {
	oldPath, newPath := filePair(t, oldSource, "def f(:\n")

	code, _, errOut := execute(t, "diff", oldPath, newPath)
	if code != exitError {
		t.Errorf("expected exit 2 for syntax error, got %d", code)
	}
	if !strings.Contains(errOut, "parsing new version") {
		t.Errorf("unexpected stderr: %s", errOut)
	}

	if code, _, _ := execute(t, "diff", oldPath, filepath.Dir(oldPath)); code != exitError {
		t.Errorf("expected exit 2 for a directory argument, got %d", code)
	}
	if code, _, _ := execute(t, "diff", oldPath, oldPath, "--format", "xml"); code != exitError {
		t.Errorf("expected exit 2 for an invalid format, got %d", code)
	}
	if code, _, _ := execute(t, "diff", oldPath); code != exitError {
		t.Errorf("expected exit 2 for missing argument, got %d", code)
	}
}

func TestKindsCommand(t *testing.T) {
	code, out, _ := execute(t, "kinds", "--format", "json")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	var kinds []diff.KindTemplate
	if err := json.Unmarshal([]byte(out), &kinds); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(kinds) != len(diff.AllKinds) {
		t.Errorf("expected %d kinds, got %d", len(diff.AllKinds), len(kinds))
	}

	code, out, _ = execute(t, "kinds")
	if code != exitOK || !strings.Contains(out, "condition_added") {
		t.Errorf("unexpected kinds table (exit %d):\n%s", code, out)
	}
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	oldRoot, newRoot := filepath.Join(dir, "old"), filepath.Join(dir, "new")
	writeFile(t, filepath.Join(oldRoot, "a.py"), oldSource)
	writeFile(t, filepath.Join(newRoot, "a.py"), newSource)
	writeFile(t, filepath.Join(oldRoot, "b.py"), oldSource)
	writeFile(t, filepath.Join(newRoot, "b.py"), oldSource)
	writeFile(t, filepath.Join(newRoot, "c.py"), oldSource)
	writeFile(t, filepath.Join(oldRoot, "skip", "d.py"), oldSource)
	writeFile(t, filepath.Join(newRoot, "skip", "d.py"), newSource)

	code, out, errOut := execute(t, "batch", oldRoot, newRoot, "--exclude", "skip/**", "--format", "json")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}

	var r struct {
		Files   []report `json:"files"`
		Skipped []struct {
			Path   string `json:"path"`
			Reason string `json:"reason"`
		} `json:"skipped"`
	}
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(r.Files) != 2 || r.Files[0].Path != "a.py" || r.Files[1].Path != "b.py" {
		t.Fatalf("unexpected files %+v", r.Files)
	}
	if len(r.Files[0].Changes["f"]) != 1 || len(r.Files[1].Changes) != 0 {
		t.Errorf("unexpected changes %+v", r.Files)
	}
	if len(r.Skipped) != 1 || r.Skipped[0].Path != "c.py" {
		t.Errorf("unexpected skipped %+v", r.Skipped)
	}

	code, out, _ = execute(t, "batch", oldRoot, newRoot, "--no-color")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out, "~ a.py") || !strings.Contains(out, "skipped: only in new") {
		t.Errorf("unexpected text output:\n%s", out)
	}
}

func TestGitCommand(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	commit := func(files map[string]string) {
		for name, content := range files {
			writeFile(t, filepath.Join(dir, name), content)
			if _, err := worktree.Add(name); err != nil {
				t.Fatalf("failed to stage %s: %v", name, err)
			}
		}
		_, err := worktree.Commit("update", &git.CommitOptions{
			Author: &object.Signature{Name: "Test Author", Email: "test@example.com", When: time.Now()},
		})
		if err != nil {
			t.Fatalf("failed to commit: %v", err)
		}
	}
	commit(map[string]string{"app/main.py": oldSource, "README.md": "one\n"})
	commit(map[string]string{"app/main.py": newSource, "README.md": "two\n"})

	code, out, errOut := execute(t, "git", "--repo", dir, "--format", "json")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	var reports []report
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(reports) != 1 || reports[0].Path != "app/main.py" {
		t.Fatalf("unexpected reports %+v", reports)
	}
	if len(reports[0].Changes["f"]) != 1 {
		t.Errorf("unexpected changes %+v", reports[0].Changes)
	}

	code, _, _ = execute(t, "git", "app/main.py", "--repo", dir, "--from", "HEAD", "--to", "HEAD", "--fail-on-change")
	if code != exitOK {
		t.Errorf("expected exit 0 comparing a revision with itself, got %d", code)
	}
}
