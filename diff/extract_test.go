package diff

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"stmtdiff/parse"
)

func mustParse(t *testing.T, path, src string) *parse.ParsedFile {
	t.Helper()
	pf, err := parse.NewParser().Parse(path, []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return pf
}

func mustExtract(t *testing.T, src string) *FunctionSet {
	t.Helper()
	set, err := ExtractFunctions(mustParse(t, "test.py", src))
	if err != nil {
		t.Fatalf("ExtractFunctions failed: %v", err)
	}
	return set
}

// lowerOne lowers a single statement placed after a leading pass so it is
// never taken for a docstring.
func lowerOne(t *testing.T, stmt string) Statement {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("def f():\n    pass\n")
	for _, line := range strings.Split(stmt, "\n") {
		sb.WriteString("    " + line + "\n")
	}

	fn, ok := mustExtract(t, sb.String()).Get("f")
	if !ok {
		t.Fatal("function f not found")
	}
	if len(fn.Body) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(fn.Body))
	}
	return fn.Body[1]
}

func TestExtractFunctions(t *testing.T) {
	src := `
def outer(a, b=1, *args, c, **kw):
    """Doc."""
    x = 1
    def inner(y):
        return y
    return inner(x)

async def fetch(url: str, *, timeout: int = 5) -> bytes:
    return await get(url)
`
	set := mustExtract(t, src)

	if got := set.Names(); !reflect.DeepEqual(got, []string{"outer", "fetch", "inner"}) {
		t.Errorf("unexpected name order %v", got)
	}

	outer, _ := set.Get("outer")
	if want := []string{"a", "b", "*args", "c", "**kw"}; !reflect.DeepEqual(outer.Params, want) {
		t.Errorf("outer params = %v, want %v", outer.Params, want)
	}
	kinds := make([]StatementKind, 0, len(outer.Body))
	for _, s := range outer.Body {
		kinds = append(kinds, s.Kind())
	}
	wantKinds := []StatementKind{KindDocstring, KindAssignment, KindFunctionDef, KindReturn}
	if !reflect.DeepEqual(kinds, wantKinds) {
		t.Errorf("outer body kinds = %v, want %v", kinds, wantKinds)
	}
	if doc := outer.Body[0].(*Docstring); doc.Value != "Doc." {
		t.Errorf("docstring = %q", doc.Value)
	}

	fetch, ok := set.Get("fetch")
	if !ok {
		t.Fatal("async function not extracted")
	}
	if want := []string{"url", "timeout"}; !reflect.DeepEqual(fetch.Params, want) {
		t.Errorf("fetch params = %v, want %v", fetch.Params, want)
	}
}

func TestExtractFunctions_LastDefinitionWins(t *testing.T) {
	src := `
def run():
    return 1

class Job:
    def run(self):
        return 2
`
	set := mustExtract(t, src)
	if set.Len() != 1 {
		t.Fatalf("expected 1 distinct name, got %d", set.Len())
	}
	run, _ := set.Get("run")
	if !reflect.DeepEqual(run.Params, []string{"self"}) {
		t.Errorf("expected the method to win, got params %v", run.Params)
	}
	if got := run.Body[0].Rendered(); got != "return 2" {
		t.Errorf("unexpected body %q", got)
	}
}

func TestExtractFunctions_DeeperDefinitionWins(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "nested before top-level",
			src:  "def a():\n    def helper():\n        return 1\n    return helper()\n\ndef helper():\n    return 2\n",
			want: "return 1",
		},
		{
			name: "top-level before nested",
			src:  "def helper():\n    return 2\n\ndef a():\n    def helper():\n        return 1\n    return helper()\n",
			want: "return 1",
		},
		{
			name: "same depth keeps the later one",
			src:  "def helper():\n    return 1\n\ndef helper():\n    return 2\n",
			want: "return 2",
		},
		{
			name: "else branch is one level down",
			src:  "if flag:\n    pass\nelse:\n    def helper():\n        return 1\n\n@cache\ndef helper():\n    return 2\n",
			want: "return 1",
		},
		{
			name: "decorator wrapper is not a level",
			src:  "class C:\n    def helper(self):\n        return 1\n\n@cache\ndef helper():\n    return 2\n",
			want: "return 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := mustExtract(t, tt.src)
			helper, ok := set.Get("helper")
			if !ok {
				t.Fatal("helper not extracted")
			}
			if got := helper.Body[0].Rendered(); got != tt.want {
				t.Errorf("helper body = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractFunctions_NoFunctions(t *testing.T) {
	set := mustExtract(t, "x = 1\nprint(x)\n")
	if set.Len() != 0 {
		t.Errorf("expected no functions, got %v", set.Names())
	}
}

func TestExtractFunctions_CommentsSkipped(t *testing.T) {
	set := mustExtract(t, "def f():\n    # setup\n    x = 1\n    # done\n    return x\n")
	f, _ := set.Get("f")
	if len(f.Body) != 2 {
		t.Errorf("expected 2 statements, got %d", len(f.Body))
	}
}

func TestLower(t *testing.T) {
	t.Run("conditional", func(t *testing.T) {
		s := lowerOne(t, "if x>0:\n    return x\nelse:\n    return 0").(*Conditional)
		if s.Test != "x > 0" {
			t.Errorf("test = %q", s.Test)
		}
		if !reflect.DeepEqual(s.Then, []string{"return x"}) {
			t.Errorf("then = %v", s.Then)
		}
		if s.Else != "else:\n    return 0" {
			t.Errorf("else = %q", s.Else)
		}
	})

	t.Run("for loop", func(t *testing.T) {
		s := lowerOne(t, "for i, v in enumerate(items):\n    pass").(*ForLoop)
		if s.Target != "i, v" || s.Iterable != "enumerate(items)" {
			t.Errorf("got target %q iterable %q", s.Target, s.Iterable)
		}
		if s.Header() != "for i, v in enumerate(items)" {
			t.Errorf("header = %q", s.Header())
		}
	})

	t.Run("while loop", func(t *testing.T) {
		s := lowerOne(t, "while not done:\n    step()").(*WhileLoop)
		if s.Test != "not done" {
			t.Errorf("test = %q", s.Test)
		}
	})

	t.Run("chained assignment", func(t *testing.T) {
		s := lowerOne(t, "a = b = compute(1)").(*Assignment)
		if !reflect.DeepEqual(s.Targets, []string{"a", "b"}) || s.Value != "compute(1)" {
			t.Errorf("got targets %v value %q", s.Targets, s.Value)
		}
		if s.Target() != "a = b" {
			t.Errorf("target = %q", s.Target())
		}
	})

	t.Run("annotated assignment", func(t *testing.T) {
		s := lowerOne(t, "total: int = 0").(*Assignment)
		if !reflect.DeepEqual(s.Targets, []string{"total"}) || s.Value != "0" {
			t.Errorf("got targets %v value %q", s.Targets, s.Value)
		}
	})

	t.Run("bare annotation", func(t *testing.T) {
		if k := lowerOne(t, "count: int").Kind(); k != KindOther {
			t.Errorf("kind = %v, want Other", k)
		}
	})

	t.Run("augmented assignment", func(t *testing.T) {
		s := lowerOne(t, "self.total += step").(*AugmentedAssignment)
		if s.Target != "self.total" || s.Operator != "+=" || s.Value != "step" {
			t.Errorf("got %+v", s)
		}
	})

	t.Run("call", func(t *testing.T) {
		s := lowerOne(t, "log.info('x', level, extra=1, **kw)").(*Call)
		if s.Func != "log.info" {
			t.Errorf("func = %q", s.Func)
		}
		if !reflect.DeepEqual(s.Args, []string{"'x'", "level"}) {
			t.Errorf("args = %v", s.Args)
		}
	})

	t.Run("return", func(t *testing.T) {
		if s := lowerOne(t, "return").(*Return); !s.Value.IsNone() {
			t.Errorf("expected no value, got %v", s.Value)
		}
		if s := lowerOne(t, "return a, b").(*Return); s.Value.String() != "(a, b)" {
			t.Errorf("value = %q", s.Value.String())
		}
	})

	t.Run("raise", func(t *testing.T) {
		if s := lowerOne(t, "raise ValueError('bad') from err").(*Raise); s.Exc.String() != "ValueError('bad')" {
			t.Errorf("exc = %q", s.Exc.String())
		}
		if s := lowerOne(t, "raise").(*Raise); !s.Exc.IsNone() {
			t.Errorf("expected bare raise, got %v", s.Exc)
		}
	})

	t.Run("imports", func(t *testing.T) {
		imp := lowerOne(t, "import os, sys as system").(*Import)
		if !reflect.DeepEqual(imp.Names, []string{"os", "sys as system"}) {
			t.Errorf("names = %v", imp.Names)
		}

		from := lowerOne(t, "from ..pkg import a, b as c").(*ImportFrom)
		if from.Module != "..pkg" || !reflect.DeepEqual(from.Names, []string{"a", "b as c"}) {
			t.Errorf("got module %q names %v", from.Module, from.Names)
		}

		star := lowerOne(t, "from os.path import *").(*ImportFrom)
		if star.Module != "os.path" || !reflect.DeepEqual(star.Names, []string{"*"}) {
			t.Errorf("got module %q names %v", star.Module, star.Names)
		}
	})

	t.Run("try", func(t *testing.T) {
		s := lowerOne(t, "try:\n    run()\nexcept (KeyError, ValueError) as e:\n    pass\nexcept:\n    raise").(*TryBlock)
		if want := []string{"(KeyError, ValueError)", "None"}; !reflect.DeepEqual(s.Handlers, want) {
			t.Errorf("handlers = %v, want %v", s.Handlers, want)
		}
	})

	t.Run("class", func(t *testing.T) {
		s := lowerOne(t, "@dataclass\nclass Point(Base, metaclass=Meta):\n    \"\"\"A point.\"\"\"\n    x: int").(*ClassDef)
		if s.Name != "Point" {
			t.Errorf("name = %q", s.Name)
		}
		if !reflect.DeepEqual(s.Decorators, []string{"dataclass"}) {
			t.Errorf("decorators = %v", s.Decorators)
		}
		if !reflect.DeepEqual(s.Bases, []string{"Base"}) {
			t.Errorf("bases = %v", s.Bases)
		}
		if s.Docstring.String() != "A point." {
			t.Errorf("docstring = %v", s.Docstring)
		}
	})

	t.Run("nested function", func(t *testing.T) {
		s := lowerOne(t, "@cache\ndef helper(a, *, b) -> int:\n    return a").(*FunctionDef)
		if s.Name != "helper" || !reflect.DeepEqual(s.Params, []string{"a", "b"}) {
			t.Errorf("got name %q params %v", s.Name, s.Params)
		}
		if s.Returns.String() != "int" {
			t.Errorf("returns = %v", s.Returns)
		}
		if !reflect.DeepEqual(s.Decorators, []string{"cache"}) {
			t.Errorf("decorators = %v", s.Decorators)
		}
		if !s.Docstring.IsNone() {
			t.Errorf("expected no docstring, got %v", s.Docstring)
		}
	})

	t.Run("expressions", func(t *testing.T) {
		tests := []struct {
			stmt string
			kind StatementKind
		}{
			{"obj.attr", KindAttribute},
			{"'plain'", KindStringLiteral},
			{"f'hi {name}'", KindFormattedString},
			{"await run()", KindOther},
			{"with open(p) as fh:\n    pass", KindOther},
			{"pass", KindOther},
		}
		for _, tt := range tests {
			if k := lowerOne(t, tt.stmt).Kind(); k != tt.kind {
				t.Errorf("%q lowered to %v, want %v", tt.stmt, k, tt.kind)
			}
		}
	})
}

func TestLower_MissingField(t *testing.T) {
	pf := mustParse(t, "m.py", "pass\n")
	l := &lowerer{path: pf.Path, content: pf.Content}

	stmt := pf.GetRootNode().NamedChild(0)
	_, err := l.required(stmt, "condition")
	if !errors.Is(err, ErrMalformedNode) {
		t.Fatalf("expected ErrMalformedNode, got %v", err)
	}
	if !strings.Contains(err.Error(), "m.py:1:1") {
		t.Errorf("expected location in error, got %v", err)
	}
}
