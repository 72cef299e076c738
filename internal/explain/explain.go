// Package explain produces a short post-run summary of what the agent did.
// Summaries are best-effort: callers downgrade every failure here to a
// warning and never let it change the run's outcome.
package explain

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"cmdpilot/internal/llm"
)

const systemPrompt = "You are a concise Linux assistant. Explain command results in plain language."

// Report describes a finished run for the summarizer. Output fields carry
// caller-clipped excerpts, not full streams.
type Report struct {
	Goal     string
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

// BuildPrompt renders the summary request for the collaborator.
func BuildPrompt(r Report) string {
	var b strings.Builder
	b.WriteString("Briefly explain the following command and its result, and suggest one or two improvements if any.\n")
	fmt.Fprintf(&b, "[Goal]\n%s\n", r.Goal)
	fmt.Fprintf(&b, "[Final command]\n$ %s\n", r.Command)
	fmt.Fprintf(&b, "[Exit code]\n%d\n", r.ExitCode)
	fmt.Fprintf(&b, "[STDOUT excerpt]\n%s\n", r.Stdout)
	fmt.Fprintf(&b, "[STDERR excerpt]\n%s\n", r.Stderr)
	b.WriteString("Output format:\n- Explanation: 1-3 lines\n- Improvements: bullet points")
	return b.String()
}

// Summarize asks the collaborator for a post-run explanation.
func Summarize(ctx context.Context, client llm.Client, r Report) (string, error) {
	text, err := client.CompleteWithSystem(ctx, systemPrompt, BuildPrompt(r))
	if err != nil {
		return "", fmt.Errorf("summary request failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("summary request failed: empty response")
	}
	return text, nil
}

// Render formats the summary as terminal markdown. The raw text comes back
// unchanged whenever glamour cannot handle it.
func Render(summary string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = summary
		}
	}()

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil || renderer == nil {
		return summary
	}

	rendered, err := renderer.Render(summary)
	if err != nil {
		return summary
	}
	return rendered
}
