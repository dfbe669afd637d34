package parse

import (
	"strconv"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
)

const indentUnit = "    "

// clauseTypes start on their own line at the indentation of the statement
// that owns them.
var clauseTypes = map[string]bool{
	"elif_clause":         true,
	"else_clause":         true,
	"except_clause":       true,
	"except_group_clause": true,
	"finally_clause":      true,
	"case_clause":         true,
}

// tightParents are node types whose operator tokens bind without spaces:
// splats, unary operators, decorators, keyword arguments and defaults.
var tightParents = map[string]bool{
	"list_splat":               true,
	"dictionary_splat":         true,
	"list_splat_pattern":       true,
	"dictionary_splat_pattern": true,
	"unary_operator":           true,
	"decorator":                true,
	"keyword_argument":         true,
	"default_parameter":        true,
}

// token is one emitted leaf.
type token struct {
	text   string
	parent string
	named  bool
}

type renderer struct {
	content   []byte
	sb        strings.Builder
	indent    int
	lineStart bool
	prev      *token
}

// Render returns the canonical text of node. Spacing between tokens is
// decided by the tokens and their parent node types only, so two sources
// that differ in layout render identically. Comments and line continuations
// are dropped, string literals are kept verbatim and nested blocks are
// written one statement per line with four-space indentation.
func Render(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	r := &renderer{content: content, lineStart: true}
	r.walk(node, "")
	return r.sb.String()
}

// RenderAll renders each node and returns the texts in order.
func RenderAll(nodes []*sitter.Node, content []byte) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Render(n, content))
	}
	return out
}

func (r *renderer) walk(n *sitter.Node, parentType string) {
	typ := n.Type()
	switch {
	case typ == "comment" || typ == "line_continuation":
		return

	case typ == "string":
		r.emit(token{text: n.Content(r.content), parent: parentType, named: true})
		return

	case typ == "block":
		r.indent++
		for _, stmt := range NamedChildren(n) {
			r.newline()
			r.walk(stmt, typ)
		}
		r.indent--
		return

	case clauseTypes[typ]:
		r.newline()

	case typ == "parenthesized_expression":
		if inner := redundantParens(n, parentType); inner != nil {
			r.walk(inner, parentType)
			return
		}

	case typ == "expression_list" && tupleContexts[parentType]:
		// "return a, b" and "return (a, b)" are the same tuple.
		r.emit(token{text: "(", parent: "tuple"})
		for i := 0; i < int(n.ChildCount()); i++ {
			r.walk(n.Child(i), "tuple")
		}
		r.emit(token{text: ")", parent: "tuple"})
		return

	case typ == "decorated_definition":
		for i := 0; i < int(n.ChildCount()); i++ {
			if i > 0 {
				r.newline()
			}
			r.walk(n.Child(i), typ)
		}
		return
	}

	if n.ChildCount() == 0 {
		r.emit(token{text: n.Content(r.content), parent: parentType, named: n.IsNamed()})
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		r.walk(n.Child(i), typ)
	}
}

// atomicTypes never need grouping parentheses.
var atomicTypes = map[string]bool{
	"identifier":               true,
	"integer":                  true,
	"float":                    true,
	"string":                   true,
	"concatenated_string":      true,
	"true":                     true,
	"false":                    true,
	"none":                     true,
	"ellipsis":                 true,
	"attribute":                true,
	"call":                     true,
	"subscript":                true,
	"list":                     true,
	"dictionary":               true,
	"set":                      true,
	"tuple":                    true,
	"list_comprehension":       true,
	"dictionary_comprehension": true,
	"set_comprehension":        true,
	"generator_expression":     true,
	"parenthesized_expression": true,
}

// looseContexts hold a whole expression, so grouping parentheses directly
// inside them never change its meaning. The empty type is a node rendered
// on its own, such as a condition or an assigned value.
var looseContexts = map[string]bool{
	"":                     true,
	"expression_statement": true,
	"assignment":           true,
	"augmented_assignment": true,
	"return_statement":     true,
	"raise_statement":      true,
	"assert_statement":     true,
	"delete_statement":     true,
	"if_statement":         true,
	"elif_clause":          true,
	"while_statement":      true,
	"for_statement":        true,
	"argument_list":        true,
	"keyword_argument":     true,
	"list":                 true,
	"set":                  true,
	"tuple":                true,
	"expression_list":      true,
	"pair":                 true,
	"subscript":            true,
}

// tupleContexts render a bare expression list as a parenthesized tuple.
var tupleContexts = map[string]bool{
	"":                     true,
	"expression_statement": true,
	"assignment":           true,
	"augmented_assignment": true,
	"return_statement":     true,
	"for_statement":        true,
}

// redundantParens returns the expression inside n when its parentheses only
// group, or nil when they are needed.
func redundantParens(n *sitter.Node, parentType string) *sitter.Node {
	kids := NamedChildren(n)
	if len(kids) != 1 {
		return nil
	}
	inner := kids[0]
	switch inner.Type() {
	case "named_expression", "yield":
		return nil
	}
	if atomicTypes[inner.Type()] || looseContexts[parentType] {
		return inner
	}
	return nil
}

func (r *renderer) newline() {
	if r.lineStart {
		return
	}
	r.sb.WriteByte('\n')
	r.sb.WriteString(strings.Repeat(indentUnit, r.indent))
	r.lineStart = true
}

func (r *renderer) emit(t token) {
	if t.text == "" {
		return
	}
	if !r.lineStart && r.prev != nil && spaced(*r.prev, t) {
		r.sb.WriteByte(' ')
	}
	r.sb.WriteString(t.text)
	r.lineStart = false
	r.prev = &t
}

// spaced reports whether a single space separates prev and cur.
func spaced(prev, cur token) bool {
	switch cur.text {
	case ")", "]", "}", ",", ";", ":":
		return false
	}
	if prev.parent == "import_prefix" {
		// "from ..pkg import x"
		return cur.text == "import"
	}

	switch prev.text {
	case "(", "[", "{":
		return false
	case ",", ";":
		return true
	case ":":
		return prev.parent != "slice"
	case ".":
		return false
	}

	switch cur.text {
	case ".":
		return cur.parent == "import_prefix"
	case "(", "[":
		// Calls and subscripts hug their operand; after a keyword or an
		// operator the bracket opens a new expression.
		if tightParents[prev.parent] && !prev.named {
			return false
		}
		return !(prev.named || isCloser(prev.text))
	case "=":
		if cur.parent == "keyword_argument" || cur.parent == "default_parameter" {
			return false
		}
	}

	if tightParents[prev.parent] && !prev.named {
		// The operator itself: "*args", "-x", "@decorator", "key=value".
		return false
	}
	return true
}

func isCloser(s string) bool {
	return s == ")" || s == "]" || s == "}"
}

// StringValue returns the value of a string node without its prefix and
// quotes. Escapes are decoded unless the literal is raw.
func StringValue(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	if node.Type() == "concatenated_string" {
		var sb strings.Builder
		for _, part := range NamedChildren(node) {
			sb.WriteString(StringValue(part, content))
		}
		return sb.String()
	}
	text := node.Content(content)
	prefix, _ := splitPrefix(text)
	body := unquote(text)
	if strings.ContainsAny(prefix, "rR") {
		return body
	}
	return decodeEscapes(body, strings.ContainsAny(prefix, "bB"))
}

var simpleEscapes = map[byte]byte{
	'a': '\a', 'b': '\b', 'f': '\f', 'n': '\n', 'r': '\r', 't': '\t', 'v': '\v',
	'\\': '\\', '\'': '\'', '"': '"',
}

// decodeEscapes resolves backslash escapes of a non-raw literal body.
// Unknown escapes such as \d and named \N{...} escapes stay as written;
// bytes literals have no \u or \U escapes.
func decodeEscapes(s string, isBytes bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			sb.WriteByte(s[i])
			continue
		}
		next := s[i+1]
		if c, ok := simpleEscapes[next]; ok {
			sb.WriteByte(c)
			i++
			continue
		}
		switch {
		case next == '\n':
			i++
			continue
		case next >= '0' && next <= '7':
			end := i + 1
			for end < len(s) && end < i+4 && s[end] >= '0' && s[end] <= '7' {
				end++
			}
			v, _ := strconv.ParseUint(s[i+1:end], 8, 32)
			writeCode(&sb, v, isBytes)
			i = end - 1
			continue
		case next == 'x':
			if v, ok := hexAt(s, i+2, 2); ok {
				writeCode(&sb, v, isBytes)
				i += 3
				continue
			}
		case next == 'u' && !isBytes:
			if v, ok := hexAt(s, i+2, 4); ok {
				sb.WriteRune(rune(v))
				i += 5
				continue
			}
		case next == 'U' && !isBytes:
			if v, ok := hexAt(s, i+2, 8); ok && v <= unicode.MaxRune {
				sb.WriteRune(rune(v))
				i += 9
				continue
			}
		}
		sb.WriteByte('\\')
	}
	return sb.String()
}

func hexAt(s string, start, n int) (uint64, bool) {
	if start+n > len(s) {
		return 0, false
	}
	v, err := strconv.ParseUint(s[start:start+n], 16, 32)
	return v, err == nil
}

func writeCode(sb *strings.Builder, v uint64, isBytes bool) {
	if isBytes {
		sb.WriteByte(byte(v))
		return
	}
	sb.WriteRune(rune(v))
}

// IsFormattedString reports whether a string node (or any part of a
// concatenated string) carries an f prefix.
func IsFormattedString(node *sitter.Node, content []byte) bool {
	if node == nil {
		return false
	}
	if node.Type() == "concatenated_string" {
		for _, part := range NamedChildren(node) {
			if IsFormattedString(part, content) {
				return true
			}
		}
		return false
	}
	prefix, _ := splitPrefix(node.Content(content))
	return strings.ContainsAny(prefix, "fF")
}

func splitPrefix(s string) (prefix, rest string) {
	i := strings.IndexAny(s, `"'`)
	if i < 0 {
		return "", s
	}
	return s[:i], s[i:]
}

func unquote(s string) string {
	_, s = splitPrefix(s)
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}
