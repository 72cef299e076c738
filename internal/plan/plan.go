// Package plan asks the text-generation collaborator for a structured
// retry decision after a failed attempt and validates the reply. The
// collaborator is untrusted: its response is reduced to the first
// balanced brace span and checked against a strict schema before any
// field is believed.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrBadDecision marks a collaborator response that could not be turned
// into a valid retry decision. The loop stops retrying when it sees
// this; it never crashes on it.
var ErrBadDecision = errors.New("invalid retry decision")

// MaxWait caps the sleep a decision may request between attempts.
const MaxWait = 10 * time.Second

// HistoryLimit bounds the rolling attempt summary included in prompts.
const HistoryLimit = 800

// Decision is a validated retry plan.
type Decision struct {
	Retry       bool
	Reason      string
	WaitSeconds float64
	NextCommand string
}

// Wait returns the requested pause clamped to MaxWait. Zero and
// negative values mean no pause.
func (d Decision) Wait() time.Duration {
	if d.WaitSeconds <= 0 {
		return 0
	}
	w := time.Duration(d.WaitSeconds * float64(time.Second))
	if w > MaxWait {
		w = MaxWait
	}
	return w
}

// rawDecision distinguishes absent keys from zero values.
type rawDecision struct {
	Retry       *bool    `json:"retry"`
	Reason      *string  `json:"reason"`
	WaitSeconds *float64 `json:"wait_seconds"`
	NextCommand string   `json:"next_command"`
}

// Parse locates the first balanced {...} span in text and validates it.
// retry, reason and wait_seconds are required; next_command is
// optional. Anything else is an ErrBadDecision.
func Parse(text string) (Decision, error) {
	span := firstBalancedBraces(text)
	if span == "" {
		return Decision{}, fmt.Errorf("%w: no JSON object in response", ErrBadDecision)
	}

	var raw rawDecision
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrBadDecision, err)
	}
	if raw.Retry == nil {
		return Decision{}, fmt.Errorf("%w: missing required key %q", ErrBadDecision, "retry")
	}
	if raw.Reason == nil {
		return Decision{}, fmt.Errorf("%w: missing required key %q", ErrBadDecision, "reason")
	}
	if raw.WaitSeconds == nil {
		return Decision{}, fmt.Errorf("%w: missing required key %q", ErrBadDecision, "wait_seconds")
	}
	if *raw.WaitSeconds < 0 {
		return Decision{}, fmt.Errorf("%w: wait_seconds must not be negative", ErrBadDecision)
	}

	return Decision{
		Retry:       *raw.Retry,
		Reason:      *raw.Reason,
		WaitSeconds: *raw.WaitSeconds,
		NextCommand: strings.TrimSpace(raw.NextCommand),
	}, nil
}

// firstBalancedBraces returns the first balanced top-level {...} span
// in text, or "" when none closes. Braces inside JSON string literals
// do not affect the depth count.
func firstBalancedBraces(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}

// Request carries the failed-attempt context for a retry prompt.
type Request struct {
	Goal     string
	Cwd      string
	Attempt  int
	LastCmd  string
	ExitCode int
	Stdout   string // caller-clipped excerpt
	Stderr   string // caller-clipped excerpt
	History  string // rolling summary, see AppendHistory
}

// BuildPrompt renders the retry request for the collaborator. The
// schema line and the single-line demand are part of the contract; the
// response is still validated regardless.
func BuildPrompt(r Request) string {
	var b strings.Builder
	b.WriteString("You are a Linux shell expert coaching an iterative retry loop.\n")
	b.WriteString("Given the execution history below, reply with JSON only, no surrounding prose.\n")
	b.WriteString("Schema:\n")
	b.WriteString(`{ "retry": true|false, "reason": "short explanation", "wait_seconds": <number>, "next_command": "$ ... (optional)" }` + "\n")
	b.WriteString("- retry=false means give up. With retry=true, propose next_command when you can; if omitted the previous command is re-run.\n")
	b.WriteString("- No sudo. No destructive operations, permission changes or output redirection. Renaming a file to .bak is allowed.\n")
	b.WriteString("- Respond with exactly one line of JSON.\n\n")
	fmt.Fprintf(&b, "[Goal]\n%s\n", r.Goal)
	fmt.Fprintf(&b, "[Working directory]\n%s\n", r.Cwd)
	fmt.Fprintf(&b, "[Attempt]\n%d\n", r.Attempt)
	fmt.Fprintf(&b, "[Last command]\n$ %s\n", r.LastCmd)
	fmt.Fprintf(&b, "[Exit code]\n%d\n", r.ExitCode)
	fmt.Fprintf(&b, "[STDOUT excerpt]\n%s\n", r.Stdout)
	fmt.Fprintf(&b, "[STDERR excerpt]\n%s\n", r.Stderr)
	fmt.Fprintf(&b, "[History]\n%s\n", r.History)
	b.WriteString("Respond with JSON only:")
	return b.String()
}

// AppendHistory adds one attempt line to the rolling summary and trims
// it to the trailing HistoryLimit bytes, keeping the cut on a rune
// boundary.
func AppendHistory(history, cmd string, attempt, rc int) string {
	h := fmt.Sprintf("[%d] $ %s -> rc=%d", attempt, cmd, rc)
	if history != "" {
		h = history + "\n" + h
	}
	if len(h) > HistoryLimit {
		h = h[len(h)-HistoryLimit:]
		// The byte cut can land inside a rune; skip the fragment.
		for i := 0; i < utf8.UTFMax-1 && len(h) > 0 && !utf8.RuneStart(h[0]); i++ {
			h = h[1:]
		}
	}
	return h
}
