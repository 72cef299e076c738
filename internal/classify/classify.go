// Package classify decides whether an execution attempt actually
// satisfied the goal. Exit code zero alone is not enough: commands like
// a curl chain can "succeed" while printing nothing useful, so the
// classifier layers output-presence, size, and pattern requirements on
// top of the exit code.
package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// Criteria are the success requirements for one run. They are derived
// once, before the first attempt, and never change between attempts.
type Criteria struct {
	// RequireOutput fails attempts whose trimmed stdout is shorter
	// than MinBytes.
	RequireOutput bool
	// SuccessPattern, when set, must match stdout.
	SuccessPattern *regexp.Regexp
	// MinBytes is the minimum trimmed stdout length; only consulted
	// when RequireOutput is set.
	MinBytes int
}

// autoPatterns maps goal keywords to a stdout pattern implied by the
// goal. Keys are lowercase substrings, like the recipe table.
var autoPatterns = []struct {
	keywords []string
	pattern  string
}{
	{
		keywords: []string{"グローバルip", "グローバル ip", "global ip", "外向きip", "外部ip"},
		pattern:  `\b(?:\d{1,3}\.){3}\d{1,3}\b`,
	},
}

// AutoPattern returns the success pattern implied by the goal text, or
// "" when the goal implies none.
func AutoPattern(goal string) string {
	g := strings.ToLower(goal)
	for _, ap := range autoPatterns {
		for _, kw := range ap.keywords {
			if strings.Contains(g, kw) {
				return ap.pattern
			}
		}
	}
	return ""
}

// Build assembles the criteria for a run. An explicit pattern wins over
// the goal-derived one. A pattern that fails to compile is dropped and
// reported through the returned error; the remaining criteria still
// apply, so callers can warn and continue.
func Build(goal, explicitPattern string, requireOutput bool, minBytes int) (Criteria, error) {
	c := Criteria{RequireOutput: requireOutput, MinBytes: minBytes}

	pat := explicitPattern
	if pat == "" {
		pat = AutoPattern(goal)
	}
	if pat == "" {
		return c, nil
	}

	re, err := regexp.Compile("(?m)" + pat)
	if err != nil {
		return c, fmt.Errorf("invalid success pattern %q: %w", pat, err)
	}
	c.SuccessPattern = re
	return c, nil
}

// Effective reports whether an attempt satisfied the criteria. Pure:
// identical inputs always produce the identical verdict.
func Effective(exitCode int, stdout string, c Criteria) bool {
	if exitCode != 0 {
		return false
	}
	if c.RequireOutput {
		min := c.MinBytes
		if min < 0 {
			min = 0
		}
		if len(strings.TrimSpace(stdout)) < min {
			return false
		}
	}
	if c.SuccessPattern != nil && !c.SuccessPattern.MatchString(stdout) {
		return false
	}
	return true
}
