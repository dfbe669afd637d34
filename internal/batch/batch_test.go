package batch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func setupTrees(t *testing.T) (string, string) {
	t.Helper()
	oldRoot, newRoot := t.TempDir(), t.TempDir()

	writeTree(t, oldRoot, map[string]string{
		"app/main.py":        "def f():\n    x = 1\n    return x\n",
		"app/util.py":        "def g():\n    return 1\n",
		"app/gone.py":        "def h():\n    pass\n",
		"app/broken.py":      "def b():\n    return 1\n",
		"tests/test_main.py": "def test_f():\n    assert True\n",
		"README.md":          "docs\n",
	})
	writeTree(t, newRoot, map[string]string{
		"app/main.py":        "def f():\n    x = 2\n    return x\n",
		"app/util.py":        "def g():\n    return 1\n",
		"app/new.py":         "def n():\n    pass\n",
		"app/broken.py":      "def b(:\n",
		"tests/test_main.py": "def test_f():\n    assert False\n",
		"README.md":          "more docs\n",
	})
	return oldRoot, newRoot
}

func TestRun(t *testing.T) {
	oldRoot, newRoot := setupTrees(t)

	res, err := Run(context.Background(), oldRoot, newRoot, Options{
		Exclude: []string{"tests/**"},
		Workers: 2,
	}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var paths []string
	for _, fd := range res.Files {
		paths = append(paths, fd.Path)
	}
	if strings.Join(paths, ",") != "app/main.py,app/util.py" {
		t.Errorf("unexpected files %v", paths)
	}

	changed := res.Changed()
	if len(changed) != 1 || changed[0].Path != "app/main.py" {
		t.Errorf("expected only app/main.py changed, got %d", len(changed))
	}

	if len(res.Failed) != 1 || res.Failed[0].Path != "app/broken.py" {
		t.Fatalf("expected app/broken.py to fail, got %+v", res.Failed)
	}

	if len(res.Skipped) != 2 {
		t.Fatalf("expected 2 skipped files, got %+v", res.Skipped)
	}
	if res.Skipped[0].Path != "app/gone.py" || res.Skipped[0].Reason != "only in old" {
		t.Errorf("unexpected skip %+v", res.Skipped[0])
	}
	if res.Skipped[1].Path != "app/new.py" || res.Skipped[1].Reason != "only in new" {
		t.Errorf("unexpected skip %+v", res.Skipped[1])
	}
}

func TestRun_Deterministic(t *testing.T) {
	oldRoot, newRoot := setupTrees(t)

	var first string
	for i := 0; i < 3; i++ {
		res, err := Run(context.Background(), oldRoot, newRoot, Options{Workers: 4}, nil)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		var buf bytes.Buffer
		if err := res.RenderSummary(&buf); err != nil {
			t.Fatalf("RenderSummary failed: %v", err)
		}
		if i == 0 {
			first = buf.String()
			continue
		}
		if buf.String() != first {
			t.Fatalf("run %d produced a different summary", i)
		}
	}
	if !strings.Contains(first, "app/main.py") || !strings.Contains(first, "skipped: only in new") {
		t.Errorf("unexpected summary:\n%s", first)
	}
}

func TestRun_Cancelled(t *testing.T) {
	oldRoot, newRoot := setupTrees(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, oldRoot, newRoot, Options{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRun_InvalidPattern(t *testing.T) {
	_, err := Run(context.Background(), t.TempDir(), t.TempDir(), Options{Include: []string{"[unclosed"}}, nil)
	var perr *PatternError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PatternError, got %v", err)
	}
	if perr.Pattern != "[unclosed" {
		t.Errorf("unexpected pattern %q", perr.Pattern)
	}
}

func TestMatcher(t *testing.T) {
	m, err := NewMatcher(nil, []string{"**/migrations/**", "setup.py"})
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{"main.py", true},
		{"pkg/deep/mod.py", true},
		{"pkg/migrations/0001.py", false},
		{"setup.py", false},
		{"pkg/setup.py", true},
		{"README.md", false},
	}
	for _, tt := range tests {
		if got := m.Match(tt.path); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
