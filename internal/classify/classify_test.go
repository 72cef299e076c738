package classify

import (
	"regexp"
	"strings"
	"testing"
)

func TestEffective_ExitCode(t *testing.T) {
	c := Criteria{RequireOutput: true, MinBytes: 1}

	if Effective(1, "plenty of output", c) {
		t.Error("non-zero exit must never be effective success")
	}
	if Effective(124, "output", c) {
		t.Error("timeout sentinel exit must never be effective success")
	}
	if !Effective(0, "output", c) {
		t.Error("exit 0 with output should succeed")
	}
}

func TestEffective_RequireOutput(t *testing.T) {
	c := Criteria{RequireOutput: true, MinBytes: 1}

	// Exit 0 with empty or whitespace-only stdout is not success.
	for _, out := range []string{"", "   ", "\n\t\n"} {
		if Effective(0, out, c) {
			t.Errorf("Effective(0, %q): expected failure with RequireOutput", out)
		}
	}

	// Without RequireOutput the same attempts pass.
	c.RequireOutput = false
	for _, out := range []string{"", "   "} {
		if !Effective(0, out, c) {
			t.Errorf("Effective(0, %q): expected success without RequireOutput", out)
		}
	}
}

func TestEffective_MinBytes(t *testing.T) {
	c := Criteria{RequireOutput: true, MinBytes: 10}

	if Effective(0, "short\n", c) {
		t.Error("trimmed output below MinBytes should fail")
	}
	if !Effective(0, "long enough output\n", c) {
		t.Error("output above MinBytes should pass")
	}

	// Negative MinBytes clamps to zero, so even empty output passes.
	c.MinBytes = -5
	if !Effective(0, "", c) {
		t.Error("negative MinBytes should clamp to zero")
	}
}

func TestEffective_Pattern(t *testing.T) {
	c := Criteria{
		RequireOutput:  true,
		MinBytes:       1,
		SuccessPattern: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
	}

	if !Effective(0, "203.0.113.7\n", c) {
		t.Error("IPv4 output should match the pattern")
	}
	if Effective(0, "no address here\n", c) {
		t.Error("output without an IPv4 should fail the pattern")
	}
}

func TestEffective_Pure(t *testing.T) {
	c := Criteria{RequireOutput: true, MinBytes: 1}
	first := Effective(0, "same input\n", c)
	for i := 0; i < 10; i++ {
		if Effective(0, "same input\n", c) != first {
			t.Fatal("classifier is not attempt-independent")
		}
	}
}

func TestAutoPattern(t *testing.T) {
	tests := []struct {
		goal string
		want bool
	}{
		{"what is my global ip", true},
		{"グローバルIPを教えて", true},
		{"外部IP", true},
		{"list files", false},
		{"", false},
	}

	for _, tt := range tests {
		pat := AutoPattern(tt.goal)
		if (pat != "") != tt.want {
			t.Errorf("AutoPattern(%q) = %q, want derived=%v", tt.goal, pat, tt.want)
		}
	}

	// The derived pattern actually matches dotted quads.
	pat := AutoPattern("global ip")
	re, err := regexp.Compile(pat)
	if err != nil {
		t.Fatalf("auto pattern does not compile: %v", err)
	}
	if !re.MatchString("198.51.100.23") {
		t.Error("auto pattern should match an IPv4 address")
	}
}

func TestBuild(t *testing.T) {
	// Explicit pattern wins over the auto-derived one.
	c, err := Build("global ip", `^OK$`, true, 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.SuccessPattern == nil || !c.SuccessPattern.MatchString("OK") {
		t.Error("explicit pattern should be compiled and used")
	}
	if c.SuccessPattern.MatchString("192.0.2.1") {
		t.Error("auto pattern should have been overridden")
	}

	// Goal-derived pattern applies when no explicit one is given.
	c, err = Build("show my global ip", "", true, 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.SuccessPattern == nil || !c.SuccessPattern.MatchString("192.0.2.1") {
		t.Error("auto pattern should apply for IP goals")
	}

	// No pattern at all.
	c, err = Build("list files", "", false, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.SuccessPattern != nil {
		t.Error("expected no pattern")
	}

	// Invalid explicit pattern drops the pattern but keeps the rest.
	c, err = Build("anything", "([", true, 3)
	if err == nil {
		t.Fatal("expected compile error")
	}
	if c.SuccessPattern != nil {
		t.Error("invalid pattern must not be kept")
	}
	if !c.RequireOutput || c.MinBytes != 3 {
		t.Errorf("remaining criteria lost: %+v", c)
	}
	if !strings.Contains(err.Error(), "success pattern") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuild_MultilinePattern(t *testing.T) {
	// Patterns anchor per line, matching grep-style expectations.
	c, err := Build("x", `^addr: \d+$`, true, 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !c.SuccessPattern.MatchString("header\naddr: 42\nfooter\n") {
		t.Error("pattern should match in multi-line output")
	}
}
