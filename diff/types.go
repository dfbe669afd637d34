// Package diff classifies statement-level changes between two versions of a
// Python file, function by function.
package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChangeKind is the closed set of change types the classifier emits.
type ChangeKind string

const (
	ConditionAdded           ChangeKind = "condition_added"
	ConditionChange          ChangeKind = "condition_change"
	ElseBlockChange          ChangeKind = "else_block_change"
	LoopChange               ChangeKind = "loop_change"
	WhileConditionChange     ChangeKind = "while_condition_change"
	VarRename                ChangeKind = "var_rename"
	VarValueChange           ChangeKind = "var_value_change"
	ParamChange              ChangeKind = "param_change"
	ReturnTypeChange         ChangeKind = "return_type_change"
	FunctionNameChange       ChangeKind = "function_name_change"
	FunctionDecoratorChange  ChangeKind = "function_decorator_change"
	ImportChange             ChangeKind = "import_change"
	ImportFromChange         ChangeKind = "import_from_change"
	ExceptionHandlerChange   ChangeKind = "exception_handler_change"
	RaiseChange              ChangeKind = "raise_change"
	ClassDecoratorChange     ChangeKind = "class_decorator_change"
	ClassInheritanceChange   ChangeKind = "class_inheritance_change"
	ClassNameChange          ChangeKind = "class_name_change"
	DocstringChange          ChangeKind = "docstring_change"
	StringChange             ChangeKind = "string_change"
	FStringChange            ChangeKind = "fstring_change"
	ReturnChange             ChangeKind = "return_change"
	FunctionCallChange       ChangeKind = "function_call_change"
	FunctionArgumentsChange  ChangeKind = "function_arguments_change"
	AugmentedAssignChange    ChangeKind = "augmented_assignment_change"
	AttributeChange          ChangeKind = "attribute_change"
	StatementReordered       ChangeKind = "statement_reordered"
)

// AllKinds lists every ChangeKind in classifier priority order.
var AllKinds = []ChangeKind{
	ConditionAdded, ConditionChange, ElseBlockChange,
	LoopChange, WhileConditionChange,
	VarRename, VarValueChange,
	ParamChange, ReturnTypeChange, FunctionNameChange, FunctionDecoratorChange,
	ImportChange, ImportFromChange,
	ExceptionHandlerChange, RaiseChange,
	ClassDecoratorChange, ClassInheritanceChange, ClassNameChange,
	DocstringChange, StringChange, FStringChange,
	ReturnChange,
	FunctionCallChange, FunctionArgumentsChange,
	AugmentedAssignChange, AttributeChange,
	StatementReordered,
}

// hasOldNew reports whether records of kind carry "old" and "new".
func hasOldNew(kind ChangeKind) bool {
	switch kind {
	case ConditionAdded, ElseBlockChange, StatementReordered:
		return false
	}
	return true
}

func isClassKind(kind ChangeKind) bool {
	switch kind {
	case ClassDecoratorChange, ClassInheritanceChange, ClassNameChange:
		return true
	}
	return false
}

type valueShape uint8

const (
	shapeNone valueShape = iota
	shapeText
	shapeList
)

// Value is one side of a change: a single text, an ordered list of texts,
// or nothing at all (a missing return value, an absent annotation).
type Value struct {
	shape valueShape
	text  string
	list  []string
}

// NoValue is the absent value.
var NoValue = Value{}

// TextValue wraps a single canonical text.
func TextValue(s string) Value {
	return Value{shape: shapeText, text: s}
}

// ListValue wraps an ordered list of canonical texts.
func ListValue(items []string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{shape: shapeList, list: items}
}

// IsNone reports whether v is the absent value.
func (v Value) IsNone() bool { return v.shape == shapeNone }

// IsList reports whether v holds a list.
func (v Value) IsList() bool { return v.shape == shapeList }

// Items returns the list items of v, or nil when v is not a list.
func (v Value) Items() []string { return v.list }

// Equal compares two values by shape and text.
func (v Value) Equal(o Value) bool {
	if v.shape != o.shape {
		return false
	}
	switch v.shape {
	case shapeText:
		return v.text == o.text
	case shapeList:
		return slices.Equal(v.list, o.list)
	}
	return true
}

// String renders v for sentences: lists as [a, b], none as None.
func (v Value) String() string {
	switch v.shape {
	case shapeText:
		return v.text
	case shapeList:
		return "[" + strings.Join(v.list, ", ") + "]"
	}
	return "None"
}

func (v Value) raw() interface{} {
	switch v.shape {
	case shapeText:
		return v.text
	case shapeList:
		return v.list
	}
	return nil
}

// MarshalJSON encodes text as a string, lists as arrays and none as null.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw())
}

// MarshalYAML mirrors MarshalJSON.
func (v Value) MarshalYAML() (interface{}, error) {
	return v.raw(), nil
}

// Change is one classified difference inside a function.
type Change struct {
	Kind     ChangeKind
	Function string // enclosing function

	Old Value
	New Value

	Target    string   // variable, nested def, or loop header
	Condition string   // condition_added
	Body      []string // condition_added
	Module    string   // import_from_change
	Class     string   // class_* kinds
	Statement string   // statement_reordered

	OldPosition int
	NewPosition int
}

type field struct {
	key   string
	value interface{}
}

// fields returns the record's keys in their fixed output order.
func (c Change) fields() []field {
	fs := []field{{"type", string(c.Kind)}}

	switch {
	case c.Kind == ConditionAdded:
		body := c.Body
		if body == nil {
			body = []string{}
		}
		fs = append(fs, field{"condition", c.Condition}, field{"body", body})
	case c.Kind == StatementReordered:
		fs = append(fs,
			field{"statement", c.Statement},
			field{"old_position", c.OldPosition},
			field{"new_position", c.NewPosition})
	case c.Kind == ImportFromChange:
		fs = append(fs, field{"module", c.Module})
	case isClassKind(c.Kind):
		fs = append(fs, field{"class", c.Class})
	}

	if c.Target != "" {
		fs = append(fs, field{"target", c.Target})
	}
	if hasOldNew(c.Kind) {
		fs = append(fs, field{"old", c.Old}, field{"new", c.New})
	}
	if c.Function != "" {
		fs = append(fs, field{"function", c.Function})
	}
	return fs
}

// MarshalJSON writes only the keys that belong to the record's kind.
func (c Change) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range c.fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(f.key)
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.value)
		if err != nil {
			return nil, fmt.Errorf("encoding %s.%s: %w", c.Kind, f.key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML produces a mapping with the same key order as MarshalJSON.
func (c Change) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range c.fields() {
		val := &yaml.Node{}
		if err := val.Encode(f.value); err != nil {
			return nil, fmt.Errorf("encoding %s.%s: %w", c.Kind, f.key, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.key},
			val)
	}
	return node, nil
}

// FunctionChanges holds the ordered records of one function.
type FunctionChanges struct {
	Name    string
	Changes []Change
}

// ChangeMap is the function name → records mapping, kept in a stable order.
type ChangeMap []FunctionChanges

// Get returns the records for a function name.
func (m ChangeMap) Get(name string) ([]Change, bool) {
	for _, fc := range m {
		if fc.Name == name {
			return fc.Changes, true
		}
	}
	return nil, false
}

// Names returns the function names in order.
func (m ChangeMap) Names() []string {
	names := make([]string, 0, len(m))
	for _, fc := range m {
		names = append(names, fc.Name)
	}
	return names
}

// Count returns the total number of records.
func (m ChangeMap) Count() int {
	n := 0
	for _, fc := range m {
		n += len(fc.Changes)
	}
	return n
}

// MarshalJSON encodes the map as a JSON object in function order.
func (m ChangeMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fc := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(fc.Name)
		buf.Write(key)
		buf.WriteByte(':')
		changes := fc.Changes
		if changes == nil {
			changes = []Change{}
		}
		val, err := json.Marshal(changes)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML encodes the map as a YAML mapping in function order.
func (m ChangeMap) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, fc := range m {
		val := &yaml.Node{}
		if err := val.Encode(fc.Changes); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fc.Name},
			val)
	}
	return node, nil
}

// LineStats counts textual line changes between the two sources.
type LineStats struct {
	Added   int `json:"added" yaml:"added"`
	Removed int `json:"removed" yaml:"removed"`
}

// FileDiff is the result of diffing one old/new file pair.
type FileDiff struct {
	ID        string            `json:"id,omitempty" yaml:"id,omitempty"`
	Path      string            `json:"path" yaml:"path"`
	OldDigest string            `json:"oldDigest,omitempty" yaml:"oldDigest,omitempty"`
	NewDigest string            `json:"newDigest,omitempty" yaml:"newDigest,omitempty"`
	Lines     LineStats         `json:"lines" yaml:"lines"`
	Functions ChangeMap         `json:"changes" yaml:"changes"`
	Intents   map[string]string `json:"intents,omitempty" yaml:"intents,omitempty"`
}

// HasChanges reports whether any function produced records.
func (fd *FileDiff) HasChanges() bool {
	return fd.Functions.Count() > 0
}
