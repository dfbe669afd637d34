package diff

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"stmtdiff/parse"
)

// FunctionSignature is one function definition found in a file.
type FunctionSignature struct {
	Name   string
	Params []string
	Body   []Statement
}

// FunctionSet maps function names to their last definition and remembers
// the order in which names first appeared.
type FunctionSet struct {
	order  []string
	byName map[string]*FunctionSignature
}

func newFunctionSet() *FunctionSet {
	return &FunctionSet{byName: make(map[string]*FunctionSignature)}
}

func (s *FunctionSet) put(fn *FunctionSignature) {
	if _, ok := s.byName[fn.Name]; !ok {
		s.order = append(s.order, fn.Name)
	}
	s.byName[fn.Name] = fn
}

// Names returns function names in order of first appearance.
func (s *FunctionSet) Names() []string {
	return s.order
}

// Get returns the function recorded under name.
func (s *FunctionSet) Get(name string) (*FunctionSignature, bool) {
	fn, ok := s.byName[name]
	return fn, ok
}

// Len returns the number of distinct names.
func (s *FunctionSet) Len() int {
	return len(s.order)
}

// ExtractFunctions collects every function definition in the file, async
// ones included, at any depth. Definitions are visited breadth first: all
// top-level functions, then everything one level deeper, and so on. When
// two definitions share a name the one visited later wins, so a nested
// helper shadows a top-level function of the same name.
func ExtractFunctions(pf *parse.ParsedFile) (*FunctionSet, error) {
	set := newFunctionSet()
	l := &lowerer{path: pf.Path, content: pf.Content}

	for _, def := range functionDefinitions(pf.GetRootNode()) {
		name, err := l.required(def, "name")
		if err != nil {
			return nil, err
		}
		params, err := l.params(def)
		if err != nil {
			return nil, err
		}
		body, err := l.lowerBody(def.ChildByFieldName("body"))
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", l.render(name), err)
		}

		set.put(&FunctionSignature{
			Name:   l.render(name),
			Params: params,
			Body:   body,
		})
	}

	return set, nil
}

// transparentTypes hold statements without being a nesting level of their
// own.
var transparentTypes = map[string]bool{
	"block":                true,
	"decorated_definition": true,
	"else_clause":          true,
	"finally_clause":       true,
}

// functionDefinitions returns the function_definition nodes under root in
// breadth-first order, siblings in source order.
func functionDefinitions(root *sitter.Node) []*sitter.Node {
	var defs []*sitter.Node
	queue := []*sitter.Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.Type() == "function_definition" {
			defs = append(defs, n)
		}
		queue = append(queue, levelChildren(n)...)
	}
	return defs
}

func levelChildren(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, kid := range parse.NamedChildren(n) {
		if transparentTypes[kid.Type()] {
			out = append(out, levelChildren(kid)...)
			continue
		}
		out = append(out, kid)
	}
	return out
}
