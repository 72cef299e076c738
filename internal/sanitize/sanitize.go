// Package sanitize normalizes raw text-generator output into a single
// candidate command line. Generators wrap commands in code fences, prefix
// them with shell prompts, or pad them with commentary; everything here
// reduces that to one line or nothing.
package sanitize

import (
	"regexp"
	"strings"

	"cmdpilot/internal/guard"
)

var (
	fenceOpen  = regexp.MustCompile("^```(?:\\w+)?\\s*$")
	fenceClose = regexp.MustCompile("^```\\s*$")
)

// stripFences returns the interior of a leading fenced block. An
// unclosed fence drops the opening marker and keeps the rest.
func stripFences(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || !fenceOpen.MatchString(lines[0]) {
		return strings.TrimSpace(text)
	}
	for i := len(lines) - 1; i > 0; i-- {
		if fenceClose.MatchString(lines[i]) {
			return strings.TrimSpace(strings.Join(lines[1:i], "\n"))
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:], "\n"))
}

// Extract pulls the first executable line out of raw generator output.
// Blank lines, comment lines, and stray fence markers are skipped; a
// leading "$" prompt marker is removed. Returns "" when no qualifying
// line exists (the caller treats that as a planning failure).
func Extract(raw string) string {
	if raw == "" {
		return ""
	}
	t := stripFences(raw)
	for _, line := range strings.Split(t, "\n") {
		s := strings.TrimSpace(line)
		if s == "" || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "```") {
			continue
		}
		if strings.HasPrefix(s, "$") {
			s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
		}
		return s
	}
	return ""
}

// StripSudo removes a single leading sudo token. Sudo appearing later in
// the command is left alone for the safety gate to judge.
func StripSudo(cmd string) string {
	s := strings.TrimSpace(cmd)
	low := strings.ToLower(s)
	if low == "sudo" {
		return ""
	}
	if strings.HasPrefix(low, "sudo ") {
		return strings.TrimSpace(s[len("sudo "):])
	}
	return s
}

// Clean is Extract plus the sudo policy's best-effort strip: under the
// deny policy a leading sudo token is dropped so a non-privileged
// variant can be attempted instead of failing outright. The result
// still passes through the safety gate.
func Clean(raw string, sudo guard.SudoPolicy) string {
	s := Extract(raw)
	if s == "" {
		return ""
	}
	if sudo == guard.SudoDeny {
		s = StripSudo(s)
	}
	return s
}
