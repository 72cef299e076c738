package recipe

import (
	"strings"
	"testing"
)

func TestLookup_GlobalIP(t *testing.T) {
	goals := []string{
		"what is my global ip",
		"Global IP を教えて",
		"グローバルIPを調べて",
		"外部IPを表示",
		"show the 外向きip please",
	}

	for _, goal := range goals {
		r, ok := Lookup(goal)
		if !ok {
			t.Errorf("Lookup(%q): expected a recipe", goal)
			continue
		}
		if r.ID != "global_ip" {
			t.Errorf("Lookup(%q): got recipe %q", goal, r.ID)
		}
		if !strings.Contains(r.Command, "curl -fsS https://ifconfig.me") {
			t.Errorf("global_ip recipe missing curl leg: %q", r.Command)
		}
		if !strings.Contains(r.Command, " || ") {
			t.Errorf("global_ip recipe should chain fallbacks: %q", r.Command)
		}
	}
}

func TestLookup_NoMatch(t *testing.T) {
	for _, goal := range []string{"list files in /tmp", "how much disk space is left", ""} {
		if _, ok := Lookup(goal); ok {
			t.Errorf("Lookup(%q): expected no recipe", goal)
		}
	}
}

func TestLookup_Deterministic(t *testing.T) {
	a, ok1 := Lookup("global ip")
	b, ok2 := Lookup("global ip")
	if !ok1 || !ok2 {
		t.Fatal("expected recipe for both lookups")
	}
	if a.Command != b.Command {
		t.Fatalf("lookup not deterministic:\n%q\n%q", a.Command, b.Command)
	}
}

func TestRecipes_SingleLine(t *testing.T) {
	for _, r := range All() {
		if strings.Contains(r.Command, "\n") {
			t.Errorf("recipe %q has a multi-line command", r.ID)
		}
		if len(r.Keywords) == 0 {
			t.Errorf("recipe %q has no keywords", r.ID)
		}
	}
}
