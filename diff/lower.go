package diff

import (
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"stmtdiff/parse"
)

// ErrMalformedNode is returned when a statement lacks a field every
// well-formed instance of its type has, such as an if without a condition.
var ErrMalformedNode = errors.New("malformed node")

// lowerer turns tree-sitter statements of one file into Statement values.
type lowerer struct {
	path    string
	content []byte
}

func (l *lowerer) render(n *sitter.Node) string {
	return parse.Render(n, l.content)
}

func (l *lowerer) renderAll(nodes []*sitter.Node) []string {
	return parse.RenderAll(nodes, l.content)
}

func (l *lowerer) malformed(n *sitter.Node, field string) error {
	pt := n.StartPoint()
	return fmt.Errorf("%w: %s:%d:%d: %s has no %s",
		ErrMalformedNode, l.path, pt.Row+1, pt.Column+1, n.Type(), field)
}

// required returns the child attached to field or a malformed-node error.
func (l *lowerer) required(n *sitter.Node, field string) (*sitter.Node, error) {
	child := n.ChildByFieldName(field)
	if child == nil {
		return nil, l.malformed(n, field)
	}
	return child, nil
}

// lowerBody lowers the statements of a block. A lone string opening the
// block becomes a Docstring.
func (l *lowerer) lowerBody(block *sitter.Node) ([]Statement, error) {
	if block == nil {
		return nil, nil
	}
	var out []Statement
	for i, n := range parse.NamedChildren(block) {
		if i == 0 {
			if lit := docstringNode(n, l.content); lit != nil {
				out = append(out, &Docstring{
					node:  node{Text: l.render(n)},
					Value: parse.StringValue(lit, l.content),
				})
				continue
			}
		}
		stmt, err := l.lower(n)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

// docstringNode returns the string literal of an expression statement that
// holds nothing but a plain string.
func docstringNode(n *sitter.Node, content []byte) *sitter.Node {
	if n.Type() != "expression_statement" {
		return nil
	}
	kids := parse.NamedChildren(n)
	if len(kids) != 1 {
		return nil
	}
	lit := kids[0]
	if lit.Type() != "string" && lit.Type() != "concatenated_string" {
		return nil
	}
	if parse.IsFormattedString(lit, content) {
		return nil
	}
	return lit
}

func (l *lowerer) lower(n *sitter.Node) (Statement, error) {
	text := node{Text: l.render(n)}

	switch n.Type() {
	case "if_statement":
		return l.lowerIf(n, text)

	case "for_statement":
		left, err := l.required(n, "left")
		if err != nil {
			return nil, err
		}
		right, err := l.required(n, "right")
		if err != nil {
			return nil, err
		}
		return &ForLoop{node: text, Target: l.render(left), Iterable: l.render(right)}, nil

	case "while_statement":
		cond, err := l.required(n, "condition")
		if err != nil {
			return nil, err
		}
		return &WhileLoop{node: text, Test: l.render(cond)}, nil

	case "expression_statement":
		return l.lowerExpression(n, text)

	case "return_statement":
		value := NoValue
		if kids := parse.NamedChildren(n); len(kids) > 0 {
			value = TextValue(l.render(kids[0]))
		}
		return &Return{node: text, Value: value}, nil

	case "raise_statement":
		exc := NoValue
		if kids := parse.NamedChildren(n); len(kids) > 0 {
			exc = TextValue(l.render(kids[0]))
		}
		return &Raise{node: text, Exc: exc}, nil

	case "import_statement":
		names := parse.FieldChildren(n, "name")
		if len(names) == 0 {
			return nil, l.malformed(n, "name")
		}
		return &Import{node: text, Names: l.renderAll(names)}, nil

	case "import_from_statement":
		module, err := l.required(n, "module_name")
		if err != nil {
			return nil, err
		}
		return &ImportFrom{node: text, Module: l.render(module), Names: l.importedNames(n)}, nil

	case "future_import_statement":
		return &ImportFrom{node: text, Module: "__future__", Names: l.importedNames(n)}, nil

	case "try_statement":
		return &TryBlock{node: text, Handlers: l.handlers(n)}, nil

	case "class_definition":
		return l.lowerClass(n, n, text)

	case "function_definition":
		return l.lowerFunction(n, n, text)

	case "decorated_definition":
		def, err := l.required(n, "definition")
		if err != nil {
			return nil, err
		}
		switch def.Type() {
		case "class_definition":
			return l.lowerClass(def, n, text)
		case "function_definition":
			return l.lowerFunction(def, n, text)
		}
		return &Other{node: text, NodeType: n.Type()}, nil
	}

	return &Other{node: text, NodeType: n.Type()}, nil
}

func (l *lowerer) lowerIf(n *sitter.Node, text node) (Statement, error) {
	cond, err := l.required(n, "condition")
	if err != nil {
		return nil, err
	}
	cons, err := l.required(n, "consequence")
	if err != nil {
		return nil, err
	}

	var elseText string
	for i, alt := range parse.FieldChildren(n, "alternative") {
		if i > 0 {
			elseText += "\n"
		}
		elseText += l.render(alt)
	}

	return &Conditional{
		node: text,
		Test: l.render(cond),
		Then: l.renderAll(parse.NamedChildren(cons)),
		Else: elseText,
	}, nil
}

// lowerExpression unwraps an expression statement so that calls, strings and
// assignments are classified by what they hold.
func (l *lowerer) lowerExpression(n *sitter.Node, text node) (Statement, error) {
	kids := parse.NamedChildren(n)
	if len(kids) != 1 {
		return &Other{node: text, NodeType: n.Type()}, nil
	}
	expr := kids[0]

	switch expr.Type() {
	case "assignment":
		return l.lowerAssignment(expr, text)

	case "augmented_assignment":
		left, err := l.required(expr, "left")
		if err != nil {
			return nil, err
		}
		op, err := l.required(expr, "operator")
		if err != nil {
			return nil, err
		}
		right, err := l.required(expr, "right")
		if err != nil {
			return nil, err
		}
		return &AugmentedAssignment{
			node:     text,
			Target:   l.render(left),
			Operator: op.Content(l.content),
			Value:    l.render(right),
		}, nil

	case "call":
		fn, err := l.required(expr, "function")
		if err != nil {
			return nil, err
		}
		args, err := l.required(expr, "arguments")
		if err != nil {
			return nil, err
		}
		return &Call{node: text, Func: l.render(fn), Args: l.positionalArgs(args)}, nil

	case "attribute":
		return &Attribute{node: text}, nil

	case "string", "concatenated_string":
		if parse.IsFormattedString(expr, l.content) {
			return &FormattedString{node: text}, nil
		}
		return &StringLiteral{node: text, Value: parse.StringValue(expr, l.content)}, nil
	}

	return &Other{node: text, NodeType: expr.Type()}, nil
}

// lowerAssignment flattens chained assignments: a = b = 1 has targets a, b.
// An annotation without a value is not an assignment.
func (l *lowerer) lowerAssignment(expr *sitter.Node, text node) (Statement, error) {
	var targets []string
	cur := expr
	for {
		left, err := l.required(cur, "left")
		if err != nil {
			return nil, err
		}
		targets = append(targets, l.render(left))

		right := cur.ChildByFieldName("right")
		if right == nil {
			return &Other{node: text, NodeType: expr.Type()}, nil
		}
		if right.Type() != "assignment" {
			return &Assignment{node: text, Targets: targets, Value: l.render(right)}, nil
		}
		cur = right
	}
}

// positionalArgs renders the positional arguments of an argument list.
// Keyword arguments and ** splats are left out.
func (l *lowerer) positionalArgs(args *sitter.Node) []string {
	if args.Type() == "generator_expression" {
		return []string{l.render(args)}
	}
	out := []string{}
	for _, a := range parse.NamedChildren(args) {
		switch a.Type() {
		case "keyword_argument", "dictionary_splat":
			continue
		}
		out = append(out, l.render(a))
	}
	return out
}

func (l *lowerer) importedNames(n *sitter.Node) []string {
	for _, kid := range parse.NamedChildren(n) {
		if kid.Type() == "wildcard_import" {
			return []string{"*"}
		}
	}
	return l.renderAll(parse.FieldChildren(n, "name"))
}

// handlers lists the exception types of each except clause in order.
func (l *lowerer) handlers(n *sitter.Node) []string {
	out := []string{}
	for _, clause := range parse.NamedChildren(n) {
		if clause.Type() != "except_clause" && clause.Type() != "except_group_clause" {
			continue
		}
		var typ *sitter.Node
		for _, kid := range parse.NamedChildren(clause) {
			if kid.Type() != "block" {
				typ = kid
				break
			}
		}
		switch {
		case typ == nil:
			out = append(out, "None")
		case typ.Type() == "as_pattern" && typ.NamedChildCount() > 0:
			out = append(out, l.render(typ.NamedChild(0)))
		default:
			out = append(out, l.render(typ))
		}
	}
	return out
}

// decorators renders the decorator expressions of a decorated definition,
// without the leading @.
func (l *lowerer) decorators(outer *sitter.Node) []string {
	out := []string{}
	if outer.Type() != "decorated_definition" {
		return out
	}
	for _, kid := range parse.NamedChildren(outer) {
		if kid.Type() != "decorator" {
			continue
		}
		if kid.NamedChildCount() > 0 {
			out = append(out, l.render(kid.NamedChild(0)))
		}
	}
	return out
}

func (l *lowerer) docstring(body *sitter.Node) Value {
	if body == nil {
		return NoValue
	}
	stmts := parse.NamedChildren(body)
	if len(stmts) == 0 {
		return NoValue
	}
	if lit := docstringNode(stmts[0], l.content); lit != nil {
		return TextValue(parse.StringValue(lit, l.content))
	}
	return NoValue
}

// lowerClass lowers def; outer is the decorated_definition wrapping it, or
// def itself.
func (l *lowerer) lowerClass(def, outer *sitter.Node, text node) (Statement, error) {
	name, err := l.required(def, "name")
	if err != nil {
		return nil, err
	}

	bases := []string{}
	if supers := def.ChildByFieldName("superclasses"); supers != nil {
		for _, b := range parse.NamedChildren(supers) {
			if b.Type() == "keyword_argument" {
				continue
			}
			bases = append(bases, l.render(b))
		}
	}

	return &ClassDef{
		node:       text,
		Name:       l.render(name),
		Decorators: l.decorators(outer),
		Bases:      bases,
		Docstring:  l.docstring(def.ChildByFieldName("body")),
	}, nil
}

func (l *lowerer) lowerFunction(def, outer *sitter.Node, text node) (Statement, error) {
	name, err := l.required(def, "name")
	if err != nil {
		return nil, err
	}
	params, err := l.params(def)
	if err != nil {
		return nil, err
	}

	returns := NoValue
	if rt := def.ChildByFieldName("return_type"); rt != nil {
		returns = TextValue(l.render(rt))
	}

	return &FunctionDef{
		node:       text,
		Name:       l.render(name),
		Params:     params,
		Returns:    returns,
		Decorators: l.decorators(outer),
		Docstring:  l.docstring(def.ChildByFieldName("body")),
	}, nil
}

// params returns the declared parameter names of a function definition.
// Splats keep their * or ** prefix; the bare * and / separators are skipped.
func (l *lowerer) params(def *sitter.Node) ([]string, error) {
	plist, err := l.required(def, "parameters")
	if err != nil {
		return nil, err
	}

	out := []string{}
	for _, p := range parse.NamedChildren(plist) {
		var name string
		switch p.Type() {
		case "keyword_separator", "positional_separator":
			continue
		case "default_parameter", "typed_default_parameter":
			n, err := l.required(p, "name")
			if err != nil {
				return nil, err
			}
			name = l.render(n)
		case "typed_parameter":
			if p.NamedChildCount() == 0 {
				return nil, l.malformed(p, "name")
			}
			name = l.render(p.NamedChild(0))
		default:
			name = l.render(p)
		}
		if name == "*" || name == "/" {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}
