// Package llm provides the text-generation collaborators behind the
// agent: an Ollama client, a Gemini client, a Hugging Face router
// client, and a fallback chain that tries them in configured order.
// Callers treat every response as untrusted text to be sanitized and
// validated downstream.
package llm

import "context"

// Client is the minimal completion surface the agent depends on.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Provider is a Client that can report its identity and reachability.
// The chain uses Available to decide whether to try a provider at all;
// the doctor command uses Healthy to probe the endpoint.
type Provider interface {
	Client
	Name() string
	Model() string
	Available() bool
	Healthy(ctx context.Context) error
}
