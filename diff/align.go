package diff

// AlignBodies compares two versions of a function body. Statements are
// paired by position; trailing new statements are reported only when they
// are conditionals, and trailing removals are not reported. Reordered
// statements are detected separately over the whole bodies.
func (c *Classifier) AlignBodies(old, new []Statement, fn string) []Change {
	var changes []Change

	common := min(len(old), len(new))
	for i := 0; i < common; i++ {
		changes = append(changes, c.Classify(old[i], new[i], fn)...)
	}

	for _, stmt := range new[common:] {
		if cond, ok := stmt.(*Conditional); ok {
			changes = append(changes, conditionAddedChange(cond, fn))
		}
	}

	return append(changes, detectReorders(old, new, fn)...)
}

// detectReorders reports statements whose text occurs in both bodies at
// different first positions. Repeated statements collapse onto their first
// occurrence. Records are ordered by old position.
func detectReorders(old, new []Statement, fn string) []Change {
	newFirst := firstIndex(new)

	seen := make(map[string]bool)
	var changes []Change
	for i, stmt := range old {
		text := stmt.Rendered()
		if seen[text] {
			continue
		}
		seen[text] = true

		j, ok := newFirst[text]
		if !ok || i == j {
			continue
		}
		changes = append(changes, Change{
			Kind:        StatementReordered,
			Function:    fn,
			Statement:   text,
			OldPosition: i,
			NewPosition: j,
		})
	}
	return changes
}

func firstIndex(stmts []Statement) map[string]int {
	idx := make(map[string]int, len(stmts))
	for i, stmt := range stmts {
		if _, ok := idx[stmt.Rendered()]; !ok {
			idx[stmt.Rendered()] = i
		}
	}
	return idx
}
