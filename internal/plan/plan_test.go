package plan

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

// ===== PARSING =====

func TestParse_CleanLine(t *testing.T) {
	d, err := Parse(`{"retry": true, "reason": "transient DNS failure", "wait_seconds": 2, "next_command": "$ dig +short example.com"}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := Decision{
		Retry:       true,
		Reason:      "transient DNS failure",
		WaitSeconds: 2,
		NextCommand: "$ dig +short example.com",
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("Decision mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_SurroundedByProse(t *testing.T) {
	text := "Sure! Here is my decision:\n" +
		`{"retry": false, "reason": "command not installed", "wait_seconds": 0}` +
		"\nLet me know if you need anything else."

	d, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if d.Retry {
		t.Error("Expected retry=false")
	}
	if d.NextCommand != "" {
		t.Errorf("Expected empty next_command, got %q", d.NextCommand)
	}
}

func TestParse_MultilineObject(t *testing.T) {
	text := "{\n  \"retry\": true,\n  \"reason\": \"retry with wget\",\n  \"wait_seconds\": 1.5,\n  \"next_command\": \"wget -qO- https://ifconfig.me\"\n}"

	d, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if d.WaitSeconds != 1.5 {
		t.Errorf("Expected wait_seconds 1.5, got %v", d.WaitSeconds)
	}
}

func TestParse_BracesInsideStrings(t *testing.T) {
	d, err := Parse(`{"retry": true, "reason": "awk uses {print $1}", "wait_seconds": 0, "next_command": "awk '{print $1}' f.txt"}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if d.NextCommand != "awk '{print $1}' f.txt" {
		t.Errorf("Unexpected next_command: %q", d.NextCommand)
	}
}

func TestParse_EscapedQuoteInString(t *testing.T) {
	d, err := Parse(`{"retry": false, "reason": "file \"a}b\" missing", "wait_seconds": 0}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !strings.Contains(d.Reason, `a}b`) {
		t.Errorf("Unexpected reason: %q", d.Reason)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"no braces", "I would retry with curl instead."},
		{"unbalanced", `{"retry": true, "reason": "x"`},
		{"not json", "{this is not json}"},
		{"missing retry", `{"reason": "x", "wait_seconds": 0}`},
		{"missing reason", `{"retry": true, "wait_seconds": 0}`},
		{"missing wait_seconds", `{"retry": true, "reason": "x"}`},
		{"negative wait", `{"retry": true, "reason": "x", "wait_seconds": -3}`},
		{"retry wrong type", `{"retry": "yes", "reason": "x", "wait_seconds": 0}`},
		{"first span invalid", `{oops} {"retry": true, "reason": "x", "wait_seconds": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if err == nil {
				t.Fatalf("Expected error for %q", tt.text)
			}
			if !errors.Is(err, ErrBadDecision) {
				t.Errorf("Expected ErrBadDecision, got %v", err)
			}
		})
	}
}

func TestParse_ExtraKeysIgnored(t *testing.T) {
	d, err := Parse(`{"retry": true, "reason": "x", "wait_seconds": 0, "confidence": 0.9}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !d.Retry {
		t.Error("Expected retry=true")
	}
}

// ===== WAIT CLAMP =====

func TestDecision_Wait(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    time.Duration
	}{
		{"zero", 0, 0},
		{"negative", -1, 0},
		{"small", 2, 2 * time.Second},
		{"fractional", 0.5, 500 * time.Millisecond},
		{"at cap", 10, 10 * time.Second},
		{"over cap", 60, MaxWait},
		{"huge", 99999, MaxWait},
	}

	for _, tt := range tests {
		d := Decision{WaitSeconds: tt.seconds}
		if got := d.Wait(); got != tt.want {
			t.Errorf("%s: Wait() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// ===== PROMPT =====

func TestBuildPrompt_ContainsContext(t *testing.T) {
	p := BuildPrompt(Request{
		Goal:     "show the global ip",
		Cwd:      "/home/alice",
		Attempt:  2,
		LastCmd:  "curl -s https://ifconfig.me",
		ExitCode: 6,
		Stdout:   "",
		Stderr:   "curl: (6) Could not resolve host",
		History:  "[1] $ curl -s https://ifconfig.me -> rc=6",
	})

	for _, want := range []string{
		"show the global ip",
		"/home/alice",
		"$ curl -s https://ifconfig.me",
		"Could not resolve host",
		"[1] $ curl -s https://ifconfig.me -> rc=6",
		`"wait_seconds"`,
		`"next_command"`,
		"exactly one line of JSON",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}

func TestBuildPrompt_AttemptAndExitCode(t *testing.T) {
	p := BuildPrompt(Request{Attempt: 3, ExitCode: 127})
	if !strings.Contains(p, "[Attempt]\n3\n") {
		t.Error("Prompt missing attempt count")
	}
	if !strings.Contains(p, "[Exit code]\n127\n") {
		t.Error("Prompt missing exit code")
	}
}

// ===== HISTORY =====

func TestAppendHistory(t *testing.T) {
	h := AppendHistory("", "curl -s x", 1, 6)
	if h != "[1] $ curl -s x -> rc=6" {
		t.Errorf("Unexpected history: %q", h)
	}

	h = AppendHistory(h, "wget -qO- x", 2, 4)
	want := "[1] $ curl -s x -> rc=6\n[2] $ wget -qO- x -> rc=4"
	if h != want {
		t.Errorf("History = %q, want %q", h, want)
	}
}

func TestAppendHistory_Bounded(t *testing.T) {
	h := ""
	long := strings.Repeat("x", 200)
	for i := 1; i <= 20; i++ {
		h = AppendHistory(h, long, i, 1)
	}
	if len(h) > HistoryLimit {
		t.Errorf("History grew past limit: %d bytes", len(h))
	}
	// The newest entry survives the trim.
	if !strings.Contains(h, "[20]") && !strings.Contains(h, "rc=1") {
		t.Errorf("Expected newest entry retained, got tail: %q", h[len(h)-40:])
	}
}

func TestAppendHistory_TrimsAtRuneBoundary(t *testing.T) {
	// 840 bytes of 3-byte runes force a trim that lands mid-rune.
	prior := strings.Repeat("あ", 280)
	h := AppendHistory(prior, "echo x", 2, 0)
	if len(h) > HistoryLimit {
		t.Fatalf("History grew past limit: %d bytes", len(h))
	}
	if !utf8.ValidString(h) {
		t.Errorf("History starts mid-rune: %q", h[:12])
	}
	if !strings.HasSuffix(h, "\n[2] $ echo x -> rc=0") {
		t.Errorf("Newest entry lost, tail: %q", h[len(h)-30:])
	}
}
