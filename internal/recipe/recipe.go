// Package recipe holds the static lookup from goal keywords to
// pre-vetted command chains. A recipe bypasses the text-generation
// proposer for goal categories with a known-good answer; the chain
// tries alternative tools with || so the first installed one wins.
package recipe

import "strings"

// Recipe is one deterministic goal-to-command mapping.
type Recipe struct {
	// ID names the recipe in logs and listings.
	ID string
	// Keywords are lowercase substrings that select this recipe.
	Keywords []string
	// Command is the shell one-liner to run.
	Command string
}

var table = []Recipe{
	{
		ID:       "global_ip",
		Keywords: []string{"グローバルip", "グローバル ip", "global ip", "外向きip", "外部ip"},
		Command: "(command -v curl >/dev/null 2>&1 && curl -fsS https://ifconfig.me)" +
			" || (command -v dig >/dev/null 2>&1 && dig +short myip.opendns.com @resolver1.opendns.com)" +
			" || (command -v wget >/dev/null 2>&1 && wget -qO- https://ifconfig.me)" +
			" || (command -v drill >/dev/null 2>&1 && drill -Q myip.opendns.com @resolver1.opendns.com)" +
			" || (printf 'no external IP source found\\n' >&2; exit 1)",
	},
}

// Lookup returns the recipe matching the goal text. Matching is a pure
// case-insensitive keyword scan: the same goal always yields the same
// recipe.
func Lookup(goal string) (Recipe, bool) {
	g := strings.ToLower(goal)
	for _, r := range table {
		for _, kw := range r.Keywords {
			if strings.Contains(g, kw) {
				return r, true
			}
		}
	}
	return Recipe{}, false
}

// All returns the full recipe table for display.
func All() []Recipe {
	out := make([]Recipe, len(table))
	copy(out, table)
	return out
}
