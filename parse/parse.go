// Package parse provides Tree-sitter based parsing and canonical rendering for Python.
package parse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrSyntax is returned when the source does not parse cleanly.
var ErrSyntax = errors.New("syntax error")

// Range represents a source code range (0-based line and column).
type Range struct {
	Start [2]int `json:"start"` // [line, col]
	End   [2]int `json:"end"`   // [line, col]
}

// ParsedFile contains the parsed AST and the source it was built from.
type ParsedFile struct {
	Path    string
	Tree    *sitter.Tree
	Content []byte
}

// Parser wraps a Tree-sitter parser configured for Python.
// A Parser is not safe for concurrent use.
type Parser struct {
	pyParser *sitter.Parser
}

// NewParser creates a new Python parser.
func NewParser() *Parser {
	pyParser := sitter.NewParser()
	pyParser.SetLanguage(python.GetLanguage())

	return &Parser{
		pyParser: pyParser,
	}
}

// Parse parses Python source. Trees with ERROR or MISSING nodes are rejected
// with ErrSyntax; the engine never works on a partially recovered tree.
func (p *Parser) Parse(path string, content []byte) (*ParsedFile, error) {
	tree, err := p.pyParser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	root := tree.RootNode()
	if root.HasError() {
		if bad := firstErrorNode(root); bad != nil {
			pt := bad.StartPoint()
			return nil, fmt.Errorf("%w: %s:%d:%d: unexpected %q",
				ErrSyntax, path, pt.Row+1, pt.Column+1, snippet(bad.Content(content)))
		}
		return nil, fmt.Errorf("%w: %s", ErrSyntax, path)
	}

	return &ParsedFile{
		Path:    path,
		Tree:    tree,
		Content: content,
	}, nil
}

// firstErrorNode returns the first ERROR or MISSING node in document order.
func firstErrorNode(node *sitter.Node) *sitter.Node {
	iter := sitter.NewIterator(node, sitter.DFSMode)
	for {
		n, err := iter.Next()
		if err != nil || n == nil {
			return nil
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			return n
		}
	}
}

func snippet(s string) string {
	const limit = 24
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// GetRootNode returns the root node of the AST.
func (pf *ParsedFile) GetRootNode() *sitter.Node {
	return pf.Tree.RootNode()
}

// FindNodesOfType finds all nodes of a specific type in the AST, in document order.
func (pf *ParsedFile) FindNodesOfType(nodeType string) []*sitter.Node {
	var nodes []*sitter.Node
	iter := sitter.NewIterator(pf.Tree.RootNode(), sitter.DFSMode)
	for {
		n, err := iter.Next()
		if err != nil || n == nil {
			break
		}
		if n.Type() == nodeType {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Render returns the canonical text of a node of this file.
func (pf *ParsedFile) Render(node *sitter.Node) string {
	return Render(node, pf.Content)
}

// GetNodeRange returns the Range for a sitter.Node.
func GetNodeRange(node *sitter.Node) Range {
	startPoint := node.StartPoint()
	endPoint := node.EndPoint()

	return Range{
		Start: [2]int{int(startPoint.Row), int(startPoint.Column)},
		End:   [2]int{int(endPoint.Row), int(endPoint.Column)},
	}
}

// FieldChildren returns every child of node attached to the given field name.
// ChildByFieldName only reports the first one, which is not enough for
// repeated fields such as an if statement's alternatives or an import's names.
func FieldChildren(node *sitter.Node, field string) []*sitter.Node {
	var out []*sitter.Node
	cursor := sitter.NewTreeCursor(node)
	defer cursor.Close()

	if !cursor.GoToFirstChild() {
		return nil
	}
	for {
		if cursor.CurrentFieldName() == field {
			out = append(out, cursor.CurrentNode())
		}
		if !cursor.GoToNextSibling() {
			break
		}
	}
	return out
}

// NamedChildren returns the named children of node, skipping comments.
func NamedChildren(node *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}
