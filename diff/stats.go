package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// lineStats counts added and removed lines between two sources using a
// line-mode diff.
func lineStats(before, after string) LineStats {
	dmp := diffmatchpatch.New()

	chars1, chars2, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(chars1, chars2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var stats LineStats
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stats.Added += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			stats.Removed += countLines(d.Text)
		}
	}
	return stats
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
