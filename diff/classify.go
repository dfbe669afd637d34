package diff

import (
	"slices"
	"strings"
)

// rule inspects one aligned statement pair. A rule that does not apply to
// the pair's kinds returns nothing.
type rule struct {
	name  string
	apply func(old, new Statement, fn string) []Change
}

// Classifier maps aligned statement pairs to change records.
//
// Every rule whose kinds match the pair fires, and the records are returned
// in rule order. Rules covering the same pair of kinds are kept in a single
// rule so that no check is ever shadowed by another.
type Classifier struct {
	rules []rule
}

// NewClassifier returns a classifier with the full rule set.
func NewClassifier() *Classifier {
	return &Classifier{rules: defaultRules()}
}

// RuleNames returns rule names in evaluation order.
func (c *Classifier) RuleNames() []string {
	names := make([]string, 0, len(c.rules))
	for _, r := range c.rules {
		names = append(names, r.name)
	}
	return names
}

// Classify compares two statements that sit at the same position of a
// function body. fn names the enclosing function.
func (c *Classifier) Classify(old, new Statement, fn string) []Change {
	var out []Change
	for _, r := range c.rules {
		out = append(out, r.apply(old, new, fn)...)
	}
	return out
}

func defaultRules() []rule {
	return []rule{
		{"condition_added", classifyConditionAdded},
		{"conditional", classifyConditional},
		{"loop", classifyLoop},
		{"assignment", classifyAssignment},
		{"function_def", classifyFunctionDef},
		{"import", classifyImport},
		{"import_from", classifyImportFrom},
		{"try", classifyTry},
		{"raise", classifyRaise},
		{"class_def", classifyClassDef},
		{"string", classifyString},
		{"fstring", classifyFString},
		{"return", classifyReturn},
		{"call", classifyCall},
		{"augmented_assignment", classifyAugmented},
		{"attribute", classifyAttribute},
	}
}

// pair asserts both statements to the same variant.
func pair[T Statement](old, new Statement) (T, T, bool) {
	o, ok1 := old.(T)
	n, ok2 := new.(T)
	return o, n, ok1 && ok2
}

func textChange(kind ChangeKind, fn, old, new string) Change {
	return Change{Kind: kind, Function: fn, Old: TextValue(old), New: TextValue(new)}
}

func listChange(kind ChangeKind, fn string, old, new []string) Change {
	return Change{Kind: kind, Function: fn, Old: ListValue(old), New: ListValue(new)}
}

func conditionAddedChange(c *Conditional, fn string) Change {
	return Change{
		Kind:      ConditionAdded,
		Function:  fn,
		Condition: c.Test,
		Body:      c.Then,
	}
}

func classifyConditionAdded(old, new Statement, fn string) []Change {
	n, ok := new.(*Conditional)
	if !ok || old.Kind() == KindConditional {
		return nil
	}
	return []Change{conditionAddedChange(n, fn)}
}

func classifyConditional(old, new Statement, fn string) []Change {
	o, n, ok := pair[*Conditional](old, new)
	if !ok {
		return nil
	}
	var out []Change
	if o.Test != n.Test {
		c := textChange(ConditionChange, fn, o.Test, n.Test)
		c.Target = firstToken(n.Test)
		out = append(out, c)
	}
	if o.Else != n.Else {
		out = append(out, Change{Kind: ElseBlockChange, Function: fn})
	}
	return out
}

// firstToken returns the leading word of an expression, usually the
// variable a condition tests.
func firstToken(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return s
}

func classifyLoop(old, new Statement, fn string) []Change {
	if o, n, ok := pair[*ForLoop](old, new); ok {
		if o.Target == n.Target && o.Iterable == n.Iterable {
			return nil
		}
		c := textChange(LoopChange, fn, o.Header(), n.Header())
		c.Target = n.Header()
		return []Change{c}
	}
	if o, n, ok := pair[*WhileLoop](old, new); ok && o.Test != n.Test {
		return []Change{textChange(WhileConditionChange, fn, o.Test, n.Test)}
	}
	return nil
}

// classifyAssignment tells a rename (same value, new target) from a value
// change (same target, new value). When both differ nothing is reported.
func classifyAssignment(old, new Statement, fn string) []Change {
	o, n, ok := pair[*Assignment](old, new)
	if !ok {
		return nil
	}
	oldTarget, newTarget := o.Target(), n.Target()
	switch {
	case oldTarget != newTarget && o.Value == n.Value:
		return []Change{textChange(VarRename, fn, oldTarget, newTarget)}
	case oldTarget == newTarget && o.Value != n.Value:
		c := textChange(VarValueChange, fn, o.Value, n.Value)
		c.Target = oldTarget
		return []Change{c}
	}
	return nil
}

func classifyFunctionDef(old, new Statement, fn string) []Change {
	o, n, ok := pair[*FunctionDef](old, new)
	if !ok {
		return nil
	}
	var out []Change
	add := func(c Change) {
		c.Target = o.Name
		out = append(out, c)
	}
	if o.Name != n.Name {
		add(textChange(FunctionNameChange, fn, o.Name, n.Name))
	}
	if !slices.Equal(o.Params, n.Params) {
		add(listChange(ParamChange, fn, o.Params, n.Params))
	}
	if !o.Returns.Equal(n.Returns) {
		add(Change{Kind: ReturnTypeChange, Function: fn, Old: o.Returns, New: n.Returns})
	}
	if !slices.Equal(o.Decorators, n.Decorators) {
		add(listChange(FunctionDecoratorChange, fn, o.Decorators, n.Decorators))
	}
	if !o.Docstring.Equal(n.Docstring) {
		add(Change{Kind: DocstringChange, Function: fn, Old: o.Docstring, New: n.Docstring})
	}
	return out
}

func classifyImport(old, new Statement, fn string) []Change {
	o, n, ok := pair[*Import](old, new)
	if !ok || slices.Equal(o.Names, n.Names) {
		return nil
	}
	return []Change{listChange(ImportChange, fn, o.Names, n.Names)}
}

func classifyImportFrom(old, new Statement, fn string) []Change {
	o, n, ok := pair[*ImportFrom](old, new)
	if !ok || (o.Module == n.Module && slices.Equal(o.Names, n.Names)) {
		return nil
	}
	c := listChange(ImportFromChange, fn, o.Names, n.Names)
	c.Module = n.Module
	return []Change{c}
}

func classifyTry(old, new Statement, fn string) []Change {
	o, n, ok := pair[*TryBlock](old, new)
	if !ok || slices.Equal(o.Handlers, n.Handlers) {
		return nil
	}
	return []Change{listChange(ExceptionHandlerChange, fn, o.Handlers, n.Handlers)}
}

func classifyRaise(old, new Statement, fn string) []Change {
	o, n, ok := pair[*Raise](old, new)
	if !ok || o.Exc.Equal(n.Exc) {
		return nil
	}
	return []Change{{Kind: RaiseChange, Function: fn, Old: o.Exc, New: n.Exc}}
}

func classifyClassDef(old, new Statement, fn string) []Change {
	o, n, ok := pair[*ClassDef](old, new)
	if !ok {
		return nil
	}
	var out []Change
	add := func(c Change) {
		c.Class = o.Name
		out = append(out, c)
	}
	if !slices.Equal(o.Decorators, n.Decorators) {
		add(listChange(ClassDecoratorChange, fn, o.Decorators, n.Decorators))
	}
	if !slices.Equal(o.Bases, n.Bases) {
		add(listChange(ClassInheritanceChange, fn, o.Bases, n.Bases))
	}
	if o.Name != n.Name {
		add(textChange(ClassNameChange, fn, o.Name, n.Name))
	}
	if !o.Docstring.Equal(n.Docstring) {
		out = append(out, Change{
			Kind:     DocstringChange,
			Function: fn,
			Target:   o.Name,
			Old:      o.Docstring,
			New:      n.Docstring,
		})
	}
	return out
}

func classifyString(old, new Statement, fn string) []Change {
	if o, n, ok := pair[*StringLiteral](old, new); ok && o.Value != n.Value {
		return []Change{textChange(StringChange, fn, o.Value, n.Value)}
	}
	if o, n, ok := pair[*Docstring](old, new); ok && o.Value != n.Value {
		return []Change{textChange(DocstringChange, fn, o.Value, n.Value)}
	}
	return nil
}

func classifyFString(old, new Statement, fn string) []Change {
	o, n, ok := pair[*FormattedString](old, new)
	if !ok || o.Text == n.Text {
		return nil
	}
	return []Change{textChange(FStringChange, fn, o.Text, n.Text)}
}

func classifyReturn(old, new Statement, fn string) []Change {
	o, n, ok := pair[*Return](old, new)
	if !ok || o.Value.Equal(n.Value) {
		return nil
	}
	return []Change{{Kind: ReturnChange, Function: fn, Old: o.Value, New: n.Value}}
}

func classifyCall(old, new Statement, fn string) []Change {
	o, n, ok := pair[*Call](old, new)
	if !ok {
		return nil
	}
	var out []Change
	if o.Func != n.Func {
		out = append(out, textChange(FunctionCallChange, fn, o.Func, n.Func))
	}
	if !slices.Equal(o.Args, n.Args) {
		out = append(out, listChange(FunctionArgumentsChange, fn, o.Args, n.Args))
	}
	return out
}

func classifyAugmented(old, new Statement, fn string) []Change {
	o, n, ok := pair[*AugmentedAssignment](old, new)
	if !ok || o.Text == n.Text {
		return nil
	}
	c := textChange(AugmentedAssignChange, fn, o.Text, n.Text)
	if o.Target == n.Target {
		c.Target = o.Target
	}
	return []Change{c}
}

func classifyAttribute(old, new Statement, fn string) []Change {
	o, n, ok := pair[*Attribute](old, new)
	if !ok || o.Text == n.Text {
		return nil
	}
	return []Change{textChange(AttributeChange, fn, o.Text, n.Text)}
}
