package diff

import "strings"

// StatementKind tags the Statement variants the classifier understands.
type StatementKind int

const (
	KindOther StatementKind = iota
	KindConditional
	KindForLoop
	KindWhileLoop
	KindAssignment
	KindAugmentedAssignment
	KindCall
	KindReturn
	KindImport
	KindImportFrom
	KindTryBlock
	KindRaise
	KindClassDef
	KindFunctionDef
	KindAttribute
	KindStringLiteral
	KindFormattedString
	KindDocstring
)

var kindNames = map[StatementKind]string{
	KindOther:               "Other",
	KindConditional:         "Conditional",
	KindForLoop:             "ForLoop",
	KindWhileLoop:           "WhileLoop",
	KindAssignment:          "Assignment",
	KindAugmentedAssignment: "AugmentedAssignment",
	KindCall:                "Call",
	KindReturn:              "Return",
	KindImport:              "Import",
	KindImportFrom:          "ImportFrom",
	KindTryBlock:            "TryBlock",
	KindRaise:               "Raise",
	KindClassDef:            "ClassDef",
	KindFunctionDef:         "FunctionDef",
	KindAttribute:           "Attribute",
	KindStringLiteral:       "StringLiteral",
	KindFormattedString:     "FormattedString",
	KindDocstring:           "Docstring",
}

func (k StatementKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Statement is one top-level statement of a function body, lowered from the
// syntax tree. Every sub-field holding source is canonical rendered text.
type Statement interface {
	Kind() StatementKind
	// Rendered returns the canonical text of the whole statement.
	Rendered() string
}

// node carries the rendered text shared by all variants.
type node struct {
	Text string
}

func (n node) Rendered() string { return n.Text }

// Conditional is an if statement. Else holds the rendered elif/else
// alternatives, empty when there are none.
type Conditional struct {
	node
	Test string
	Then []string
	Else string
}

func (*Conditional) Kind() StatementKind { return KindConditional }

type ForLoop struct {
	node
	Target   string
	Iterable string
}

func (*ForLoop) Kind() StatementKind { return KindForLoop }

// Header returns the loop header without the trailing colon.
func (f *ForLoop) Header() string {
	return "for " + f.Target + " in " + f.Iterable
}

type WhileLoop struct {
	node
	Test string
}

func (*WhileLoop) Kind() StatementKind { return KindWhileLoop }

// Assignment covers plain, chained and annotated assignments with a value.
type Assignment struct {
	node
	Targets []string
	Value   string
}

func (*Assignment) Kind() StatementKind { return KindAssignment }

// Target joins chained targets the way they appear in source: "a = b".
func (a *Assignment) Target() string {
	return strings.Join(a.Targets, " = ")
}

type AugmentedAssignment struct {
	node
	Target   string
	Operator string
	Value    string
}

func (*AugmentedAssignment) Kind() StatementKind { return KindAugmentedAssignment }

// Call is a call used as a statement. Args holds positional arguments only.
type Call struct {
	node
	Func string
	Args []string
}

func (*Call) Kind() StatementKind { return KindCall }

type Return struct {
	node
	Value Value
}

func (*Return) Kind() StatementKind { return KindReturn }

type Raise struct {
	node
	Exc Value
}

func (*Raise) Kind() StatementKind { return KindRaise }

// Import lists "name [as alias]" entries.
type Import struct {
	node
	Names []string
}

func (*Import) Kind() StatementKind { return KindImport }

type ImportFrom struct {
	node
	Module string
	Names  []string
}

func (*ImportFrom) Kind() StatementKind { return KindImportFrom }

// TryBlock lists the handled exception types; a bare except is "None".
type TryBlock struct {
	node
	Handlers []string
}

func (*TryBlock) Kind() StatementKind { return KindTryBlock }

type ClassDef struct {
	node
	Name       string
	Decorators []string
	Bases      []string
	Docstring  Value
}

func (*ClassDef) Kind() StatementKind { return KindClassDef }

type FunctionDef struct {
	node
	Name       string
	Params     []string
	Returns    Value
	Decorators []string
	Docstring  Value
}

func (*FunctionDef) Kind() StatementKind { return KindFunctionDef }

// Attribute is a bare attribute access used as a statement.
type Attribute struct {
	node
}

func (*Attribute) Kind() StatementKind { return KindAttribute }

// StringLiteral is a plain string expression. Value is the literal body.
type StringLiteral struct {
	node
	Value string
}

func (*StringLiteral) Kind() StatementKind { return KindStringLiteral }

type FormattedString struct {
	node
}

func (*FormattedString) Kind() StatementKind { return KindFormattedString }

// Docstring is a lone string opening a function body.
type Docstring struct {
	node
	Value string
}

func (*Docstring) Kind() StatementKind { return KindDocstring }

// Other is any statement without a dedicated rule.
type Other struct {
	node
	NodeType string
}

func (*Other) Kind() StatementKind { return KindOther }
