// Package guard implements the safety gate that every candidate command
// must pass before execution. It is a policy filter on command text, not
// an OS-level sandbox: matching is case-insensitive substring/regex over
// the raw command string, never full shell parsing.
package guard

import (
	"fmt"
	"regexp"
	"strings"
)

// SudoPolicy controls how sudo-bearing commands are handled.
type SudoPolicy string

const (
	// SudoAllow lets sudo-bearing commands through the gate.
	SudoAllow SudoPolicy = "allow"
	// SudoDeny rejects any sudo-bearing command.
	SudoDeny SudoPolicy = "deny"
	// SudoAsk defers to the caller for interactive confirmation.
	SudoAsk SudoPolicy = "ask"
)

// ParseSudoPolicy validates a policy string from flags or config.
func ParseSudoPolicy(s string) (SudoPolicy, error) {
	switch SudoPolicy(s) {
	case SudoAllow, SudoDeny, SudoAsk:
		return SudoPolicy(s), nil
	}
	return "", fmt.Errorf("invalid sudo policy %q (valid: allow, deny, ask)", s)
}

// Verdict is the gate's decision for one command.
type Verdict struct {
	// Blocked means the command must not be executed.
	Blocked bool
	// Reason explains a block or a confirmation request.
	Reason string
	// NeedConfirm is set for sudo-bearing commands under the "ask"
	// policy: execution requires an explicit confirmation first.
	NeedConfirm bool
}

// dangerTokens are signatures of destructive/irreversible operations.
// Each is matched as a substring of the lowercased command padded with
// spaces, so " rm -rf" catches "rm -rf /" and "sudo rm -rf /" alike.
var dangerTokens = []string{
	" rm -rf", " mkfs", " dd if=", " :(){ :|:& };:", " shutdown", " reboot",
	" poweroff", " init 0", " chown -r /", " :(){:|:&};:",
}

// dangerPatterns extend the token list where a word boundary is needed
// (a bare substring would also hit "kill -9 1234").
var dangerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bkill\s+-9\s+1\b`),
	regexp.MustCompile(`\bfdisk\b`),
	regexp.MustCompile(`\bhalt\b`),
}

// destructiveTokens are operations the non-destructive-only policy bans:
// redirection, tee/truncate, permission and ownership changes, and the
// blunt file-removal family. Distinct from the hard denylist above.
var destructiveTokens = []string{
	" rm ", " mkfs", " dd ", " chmod ", " chown ", " chgrp ",
	" > ", " >> ", " tee ", " :> ", " truncate ",
}

// pad normalizes a command for token matching.
func pad(cmd string) string {
	return " " + strings.ToLower(strings.TrimSpace(cmd)) + " "
}

// HasSudo reports whether the command carries a sudo token.
func HasSudo(cmd string) bool {
	return strings.Contains(pad(cmd), " sudo ")
}

// matchDanger returns the matched denylist signature, if any.
func matchDanger(cmd string) (string, bool) {
	low := pad(cmd)
	for _, tok := range dangerTokens {
		if strings.Contains(low, tok) {
			return strings.TrimSpace(tok), true
		}
	}
	for _, re := range dangerPatterns {
		if m := re.FindString(low); m != "" {
			return m, true
		}
	}
	return "", false
}

// matchDestructive returns the banned non-destructive-policy token, if any.
func matchDestructive(cmd string) (string, bool) {
	low := pad(cmd)
	for _, tok := range destructiveTokens {
		if strings.Contains(low, tok) {
			return strings.TrimSpace(tok), true
		}
	}
	return "", false
}

// Check gates one sanitized command under the given sudo policy.
//
// Rules apply in order: the hard denylist is absolute and ignores the
// sudo policy entirely; the non-destructive-only policy rejects mutation
// and redirection; the sudo rule is the only policy-sensitive one.
func Check(cmd string, sudo SudoPolicy) Verdict {
	if strings.TrimSpace(cmd) == "" {
		return Verdict{Blocked: true, Reason: "empty command"}
	}

	if sig, ok := matchDanger(cmd); ok {
		return Verdict{Blocked: true, Reason: fmt.Sprintf("dangerous signature %q", sig)}
	}

	if strings.Contains(cmd, "\n") {
		return Verdict{Blocked: true, Reason: "multi-line command"}
	}
	if tok, ok := matchDestructive(cmd); ok {
		return Verdict{Blocked: true, Reason: fmt.Sprintf("destructive operation %q", tok)}
	}

	if HasSudo(cmd) {
		switch sudo {
		case SudoDeny:
			return Verdict{Blocked: true, Reason: "sudo is denied by policy"}
		case SudoAsk:
			return Verdict{NeedConfirm: true, Reason: "sudo requires confirmation"}
		}
	}

	return Verdict{}
}
