package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:  apiKey,
		Model:   "gemini-2.5-flash",
		Timeout: 60 * time.Second,
	}
}

// GeminiClient generates text through the Google GenAI SDK. The
// underlying client is created lazily so construction never needs
// credentials or the network.
type GeminiClient struct {
	config GeminiConfig
	logger *zap.Logger

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiClient creates a Gemini client, filling empty config fields
// from DefaultGeminiConfig.
func NewGeminiClient(config GeminiConfig, logger *zap.Logger) *GeminiClient {
	def := DefaultGeminiConfig(config.APIKey)
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GeminiClient{
		config: config,
		logger: logger,
	}
}

// Name returns the provider name used in chain ordering.
func (c *GeminiClient) Name() string { return "gemini" }

// Model returns the configured model.
func (c *GeminiClient) Model() string { return c.config.Model }

// Available reports whether an API key is configured.
func (c *GeminiClient) Available() bool { return c.config.APIKey != "" }

// Healthy performs a minimal generation to prove the key and endpoint
// work. The caller bounds ctx.
func (c *GeminiClient) Healthy(ctx context.Context) error {
	if !c.Available() {
		return fmt.Errorf("GEMINI_API_KEY not configured")
	}
	_, err := c.Complete(ctx, "ping")
	return err
}

// Complete sends a prompt and returns the completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with an optional system message.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	client, err := c.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	genConfig := &genai.GenerateContentConfig{}
	if strings.TrimSpace(systemPrompt) != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if c.config.Temperature > 0 {
		genConfig.Temperature = genai.Ptr(float32(c.config.Temperature))
	}
	if c.config.TopP > 0 {
		genConfig.TopP = genai.Ptr(float32(c.config.TopP))
	}
	if c.config.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(c.config.MaxTokens)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(userPrompt, genai.RoleUser),
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, c.config.Model, contents, genConfig)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		result.WriteString(part.Text)
	}

	response := strings.TrimSpace(result.String())
	c.logger.Debug("gemini completion",
		zap.String("model", c.config.Model),
		zap.Duration("took", time.Since(start)),
		zap.Int("response_len", len(response)))
	return response, nil
}

func (c *GeminiClient) ensureClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.config.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: c.config.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	c.client = client
	return client, nil
}
