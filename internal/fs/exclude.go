package fs

import (
	"path/filepath"
	"strings"
)

// defaultExcludePatterns are filesystem artifacts that must never reach the
// staging area, applied regardless of configuration.
var defaultExcludePatterns = []string{"thumbs.db", ".ds_store"}

// ExcludeMatcher checks child names against a set of exclusion patterns.
// Matching is case-insensitive and applies to the bare name, the only thing
// a mirror walk sees for each child.
type ExcludeMatcher struct {
	patterns []string
}

// NewExcludeMatcher creates an ExcludeMatcher from raw pattern strings, on
// top of the built-in defaults. Blank lines and lines starting with '#' are
// skipped.
func NewExcludeMatcher(rawPatterns []string) *ExcludeMatcher {
	patterns := make([]string, 0, len(defaultExcludePatterns)+len(rawPatterns))
	patterns = append(patterns, defaultExcludePatterns...)
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, strings.ToLower(raw))
	}
	return &ExcludeMatcher{patterns: patterns}
}

// Match reports whether the given child name should be excluded from a
// mirror walk.
func (m *ExcludeMatcher) Match(name string) bool {
	lowered := strings.ToLower(name)
	for _, p := range m.patterns {
		matched, err := filepath.Match(p, lowered)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
