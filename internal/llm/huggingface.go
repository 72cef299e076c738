package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HFConfig configures the Hugging Face router client.
type HFConfig struct {
	Token       string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// DefaultHFConfig returns router defaults. Router models are named
// <model-id>:<provider>.
func DefaultHFConfig(token string) HFConfig {
	return HFConfig{
		Token:   token,
		BaseURL: "https://router.huggingface.co/v1",
		Model:   "openai/gpt-oss-20b:groq",
		Timeout: 120 * time.Second,
	}
}

// HFClient talks to the Hugging Face inference router over its
// OpenAI-compatible chat completions API.
type HFClient struct {
	token       string
	baseURL     string
	model       string
	temperature float64
	topP        float64
	maxTokens   int
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewHFClient creates a Hugging Face client, filling empty config
// fields from DefaultHFConfig.
func NewHFClient(config HFConfig, logger *zap.Logger) *HFClient {
	def := DefaultHFConfig(config.Token)
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HFClient{
		token:       config.Token,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		model:       config.Model,
		temperature: config.Temperature,
		topP:        config.TopP,
		maxTokens:   config.MaxTokens,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Name returns the provider name used in chain ordering.
func (c *HFClient) Name() string { return "huggingface" }

// Model returns the configured model.
func (c *HFClient) Model() string { return c.model }

// Available reports whether an access token is configured.
func (c *HFClient) Available() bool { return c.token != "" }

// Healthy probes the router's model listing with a short budget.
func (c *HFClient) Healthy(ctx context.Context) error {
	if !c.Available() {
		return fmt.Errorf("HF_TOKEN not configured")
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("huggingface router not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("huggingface router returned status %d", resp.StatusCode)
	}
	return nil
}

// Complete sends a prompt and returns the completion.
func (c *HFClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with an optional system message.
func (c *HFClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	if c.token == "" {
		return "", fmt.Errorf("HF_TOKEN not configured")
	}

	messages := make([]hfMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, hfMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, hfMessage{Role: "user", Content: userPrompt})

	reqBody := hfRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		TopP:        c.topP,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var hfResp hfResponse
	if err := json.Unmarshal(body, &hfResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if hfResp.Error != nil {
		return "", fmt.Errorf("API error: %s", hfResp.Error.Message)
	}
	if len(hfResp.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	response := strings.TrimSpace(hfResp.Choices[0].Message.Content)
	c.logger.Debug("huggingface completion",
		zap.String("model", c.model),
		zap.Duration("took", time.Since(start)),
		zap.Int("response_len", len(response)))
	return response, nil
}

// =============================================================================
// HUGGING FACE API TYPES
// =============================================================================

type hfMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type hfRequest struct {
	Model       string      `json:"model"`
	Messages    []hfMessage `json:"messages"`
	Temperature float64     `json:"temperature,omitempty"`
	TopP        float64     `json:"top_p,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
}

type hfResponse struct {
	Choices []struct {
		Message hfMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}
