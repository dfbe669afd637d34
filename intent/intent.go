// Package intent generates one-line intent headlines from classified changes.
package intent

import (
	"strings"

	"stmtdiff/diff"
)

// GenerateIntent summarizes the changes of one function, e.g.
// "Modify x and retries in handler".
func GenerateIntent(function string, changes []diff.Change) string {
	verb := determineVerb(changes)

	subjects := extractSubjects(changes)
	if len(subjects) == 0 {
		return verb + " " + function
	}
	return verb + " " + formatNames(subjects) + " in " + function
}

// Annotate fills fd.Intents with a headline per changed function.
func Annotate(fd *diff.FileDiff) {
	if len(fd.Functions) == 0 {
		return
	}
	if fd.Intents == nil {
		fd.Intents = make(map[string]string, len(fd.Functions))
	}
	for _, fc := range fd.Functions {
		fd.Intents[fc.Name] = GenerateIntent(fc.Name, fc.Changes)
	}
}

// subject names what a change touched, or "" when nothing specific.
func subject(c diff.Change) string {
	switch c.Kind {
	case diff.ConditionAdded:
		return "check " + c.Condition
	case diff.ConditionChange, diff.VarValueChange, diff.AugmentedAssignChange:
		return c.Target
	case diff.VarRename, diff.FunctionNameChange, diff.ClassNameChange:
		return c.New.String()
	case diff.ParamChange, diff.ReturnTypeChange, diff.FunctionDecoratorChange:
		return c.Target
	case diff.ClassDecoratorChange, diff.ClassInheritanceChange:
		return c.Class
	case diff.ImportChange:
		return "imports"
	case diff.ImportFromChange:
		return c.Module + " imports"
	case diff.LoopChange, diff.WhileConditionChange:
		return "loop"
	case diff.ExceptionHandlerChange, diff.RaiseChange:
		return "error handling"
	case diff.FunctionCallChange:
		return c.New.String()
	case diff.ReturnChange:
		return "return value"
	case diff.StatementReordered:
		return "statement order"
	}
	return ""
}

// extractSubjects collects distinct subjects in change order.
func extractSubjects(changes []diff.Change) []string {
	var names []string
	seen := make(map[string]bool)

	for _, c := range changes {
		s := subject(c)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		names = append(names, s)
	}

	return names
}

// formatNames formats a list of names for display.
func formatNames(names []string) string {
	if len(names) == 0 {
		return ""
	}
	if len(names) == 1 {
		return names[0]
	}
	if len(names) == 2 {
		return names[0] + " and " + names[1]
	}
	return strings.Join(names[:2], ", ") + " and others"
}

// determineVerb picks a verb from the change kinds, strongest first.
func determineVerb(changes []diff.Change) string {
	hasAdded := false
	hasControl := false
	hasUpdate := false
	hasRefactor := false

	for _, c := range changes {
		switch c.Kind {
		case diff.ConditionAdded:
			hasAdded = true
		case diff.ConditionChange, diff.ElseBlockChange, diff.LoopChange,
			diff.WhileConditionChange, diff.ExceptionHandlerChange, diff.RaiseChange:
			hasControl = true
		case diff.VarRename, diff.FunctionNameChange, diff.ClassNameChange,
			diff.StatementReordered:
			hasRefactor = true
		default:
			hasUpdate = true
		}
	}

	if hasAdded {
		return "Add"
	}
	if hasControl {
		return "Modify"
	}
	if hasUpdate {
		return "Update"
	}
	if hasRefactor {
		return "Refactor"
	}
	return "Change"
}
