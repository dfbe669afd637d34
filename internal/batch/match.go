package batch

import (
	"github.com/bmatcuk/doublestar/v4"
)

// DefaultInclude selects every Python source file.
var DefaultInclude = []string{"**/*.py"}

// Matcher selects relative paths with doublestar include and exclude globs.
type Matcher struct {
	include []string
	exclude []string
}

// NewMatcher validates the patterns and builds a matcher. An empty include
// list falls back to DefaultInclude.
func NewMatcher(include, exclude []string) (*Matcher, error) {
	if len(include) == 0 {
		include = DefaultInclude
	}
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p}
		}
	}
	return &Matcher{include: include, exclude: exclude}, nil
}

// PatternError reports a malformed glob.
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string {
	return "invalid glob pattern: " + e.Pattern
}

// Match reports whether a slash-separated relative path is selected:
// it matches an include pattern and no exclude pattern.
func (m *Matcher) Match(path string) bool {
	return matchAny(m.include, path) && !matchAny(m.exclude, path)
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		match, err := doublestar.Match(pattern, path)
		if err != nil {
			continue
		}
		if match {
			return true
		}
	}
	return false
}
