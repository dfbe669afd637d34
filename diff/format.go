package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// templates holds one sentence per kind. Placeholders name record keys.
var templates = map[ChangeKind]string{
	ConditionAdded:          "A new condition '{condition}' was added in function '{function}'.",
	ConditionChange:         "Condition changed from '{old}' to '{new}'.",
	ElseBlockChange:         "The else branch changed in function '{function}'.",
	LoopChange:              "Loop changed from '{old}' to '{new}'.",
	WhileConditionChange:    "While-loop condition changed from '{old}' to '{new}'.",
	VarRename:               "Variable '{old}' was renamed to '{new}'.",
	VarValueChange:          "Value of variable '{target}' changed from '{old}' to '{new}'.",
	ParamChange:             "Parameters of '{target}' changed from {old} to {new}.",
	ReturnTypeChange:        "Return type of '{target}' changed from '{old}' to '{new}'.",
	FunctionNameChange:      "Function '{old}' was renamed to '{new}'.",
	FunctionDecoratorChange: "Decorators of '{target}' changed from {old} to {new}.",
	ImportChange:            "Imports changed from {old} to {new}.",
	ImportFromChange:        "Imports from '{module}' changed from {old} to {new}.",
	ExceptionHandlerChange:  "Handled exceptions changed from {old} to {new}.",
	RaiseChange:             "Raised exception changed from '{old}' to '{new}'.",
	ClassDecoratorChange:    "Decorators of class '{class}' changed from {old} to {new}.",
	ClassInheritanceChange:  "Base classes of '{class}' changed from {old} to {new}.",
	ClassNameChange:         "Class '{old}' was renamed to '{new}'.",
	DocstringChange:         "Docstring changed from '{old}' to '{new}'.",
	StringChange:            "String changed from '{old}' to '{new}'.",
	FStringChange:           "Formatted string changed from '{old}' to '{new}'.",
	ReturnChange:            "Return value changed from '{old}' to '{new}'.",
	FunctionCallChange:      "Call to '{old}' changed to '{new}'.",
	FunctionArgumentsChange: "Call arguments changed from {old} to {new}.",
	AugmentedAssignChange:   "Update '{old}' changed to '{new}'.",
	AttributeChange:         "Attribute access '{old}' changed to '{new}'.",
	StatementReordered:      "Statement '{statement}' moved from line {old_position} to {new_position} in function '{function}'.",
}

const fallbackTemplate = "Change of type '{type}' detected."

// KindTemplate pairs a kind with its sentence template.
type KindTemplate struct {
	Kind     ChangeKind `json:"kind" yaml:"kind"`
	Template string     `json:"template" yaml:"template"`
}

// Templates lists every kind with its template in priority order.
func Templates() []KindTemplate {
	out := make([]KindTemplate, 0, len(AllKinds))
	for _, k := range AllKinds {
		out = append(out, KindTemplate{Kind: k, Template: templates[k]})
	}
	return out
}

// Sentence renders a change as one English sentence.
func Sentence(c Change) string {
	tmpl, ok := templates[c.Kind]
	if !ok {
		tmpl = fallbackTemplate
	}
	r := strings.NewReplacer(
		"{type}", string(c.Kind),
		"{function}", c.Function,
		"{old}", c.Old.String(),
		"{new}", c.New.String(),
		"{target}", c.Target,
		"{condition}", c.Condition,
		"{module}", c.Module,
		"{class}", c.Class,
		"{statement}", c.Statement,
		"{old_position}", strconv.Itoa(c.OldPosition),
		"{new_position}", strconv.Itoa(c.NewPosition),
	)
	return r.Replace(tmpl)
}

// TextFormatter writes reports for terminals.
type TextFormatter struct {
	header   *color.Color
	function *color.Color
	added    *color.Color
	changed  *color.Color
	moved    *color.Color
}

// NewTextFormatter returns a formatter; colors are forced on or off
// regardless of the terminal.
func NewTextFormatter(useColor bool) *TextFormatter {
	f := &TextFormatter{
		header:   color.New(color.Bold),
		function: color.New(color.FgCyan),
		added:    color.New(color.FgGreen),
		changed:  color.New(color.FgYellow),
		moved:    color.New(color.FgMagenta),
	}
	for _, c := range []*color.Color{f.header, f.function, f.added, f.changed, f.moved} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return f
}

// Format writes one report.
//
//	~ app.py (+2 -1)
//	  handler: Tighten condition in handler
//	    ~ condition_change: Condition changed from 'x > 0' to 'x >= 0'.
func (f *TextFormatter) Format(w io.Writer, fd *FileDiff) error {
	var sb strings.Builder

	mark := "~"
	if !fd.HasChanges() {
		mark = "="
	}
	sb.WriteString(f.header.Sprintf("%s %s", mark, fd.Path))
	sb.WriteString(fmt.Sprintf(" (+%d -%d)\n", fd.Lines.Added, fd.Lines.Removed))

	for _, fc := range fd.Functions {
		line := "  " + f.function.Sprint(fc.Name)
		if intent := fd.Intents[fc.Name]; intent != "" {
			line += ": " + intent
		}
		sb.WriteString(line + "\n")

		for _, c := range fc.Changes {
			mark, style := "~", f.changed
			switch c.Kind {
			case ConditionAdded:
				mark, style = "+", f.added
			case StatementReordered:
				mark, style = ">", f.moved
			}
			sb.WriteString(fmt.Sprintf("    %s %s: %s\n",
				style.Sprint(mark), style.Sprint(string(c.Kind)), flatten(Sentence(c))))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// flatten folds multi-line statement text onto one line.
func flatten(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, " ")
}

// FormatJSON encodes v as indented JSON.
func FormatJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// FormatYAML encodes v as YAML with two-space indentation.
func FormatYAML(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
