package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DefaultOrder is the fallback ordering when none is configured.
const DefaultOrder = "huggingface,ollama,gemini"

// ChainConfig names the providers to build and the order to try them.
type ChainConfig struct {
	Order       string
	Ollama      OllamaConfig
	Gemini      GeminiConfig
	HuggingFace HFConfig
}

// Chain tries providers in order and returns the first non-empty
// completion. Providers without credentials are skipped; a provider
// error moves on to the next rather than failing the call.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
}

// NewChain builds a chain over an explicit provider list.
func NewChain(logger *zap.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		providers: providers,
		logger:    logger,
	}
}

// NewChainFromConfig builds the standard provider set in the order
// named by cfg.Order (comma-separated, e.g. "huggingface,ollama,gemini").
// Unknown names are skipped with a warning.
func NewChainFromConfig(cfg ChainConfig, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}

	byName := map[string]Provider{
		"ollama":      NewOllamaClient(cfg.Ollama, logger),
		"gemini":      NewGeminiClient(cfg.Gemini, logger),
		"huggingface": NewHFClient(cfg.HuggingFace, logger),
	}

	order := cfg.Order
	if strings.TrimSpace(order) == "" {
		order = DefaultOrder
	}

	var providers []Provider
	for _, name := range strings.Split(order, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p, ok := byName[name]
		if !ok {
			logger.Warn("unknown provider in order, skipping", zap.String("provider", name))
			continue
		}
		providers = append(providers, p)
	}

	return NewChain(logger, providers...)
}

// Providers returns the chain members in try order.
func (c *Chain) Providers() []Provider {
	out := make([]Provider, len(c.providers))
	copy(out, c.providers)
	return out
}

// Complete sends a prompt and returns the first successful completion.
func (c *Chain) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem tries each provider in order. A provider counts
// as failed when it errors or answers with only whitespace; the error
// from an exhausted chain lists what was tried.
func (c *Chain) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if len(c.providers) == 0 {
		return "", fmt.Errorf("no providers configured")
	}

	var tried []string
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !p.Available() {
			tried = append(tried, p.Name()+":skip")
			continue
		}

		text, err := p.CompleteWithSystem(ctx, systemPrompt, userPrompt)
		if err != nil {
			c.logger.Warn("provider failed",
				zap.String("provider", p.Name()),
				zap.Error(err))
			tried = append(tried, p.Name()+":NG")
			continue
		}
		if strings.TrimSpace(text) == "" {
			c.logger.Warn("provider returned empty response",
				zap.String("provider", p.Name()))
			tried = append(tried, p.Name()+":NG")
			continue
		}

		c.logger.Debug("provider answered",
			zap.String("provider", p.Name()),
			zap.String("model", p.Model()))
		return text, nil
	}

	return "", fmt.Errorf("all providers failed: %s", strings.Join(tried, ", "))
}
