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

// healthProbeTimeout bounds the /api/version reachability check.
const healthProbeTimeout = 3 * time.Second

// OllamaConfig configures the local Ollama client.
type OllamaConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// DefaultOllamaConfig returns the standard local daemon settings.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:    "http://127.0.0.1:11434",
		Model:   "qwen2.5:0.5b-instruct",
		Timeout: 120 * time.Second,
	}
}

// OllamaClient talks to a local Ollama daemon. It prefers /api/chat
// and falls back to /api/generate when chat fails or answers empty.
type OllamaClient struct {
	host       string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOllamaClient creates an Ollama client, filling empty config
// fields from DefaultOllamaConfig.
func NewOllamaClient(config OllamaConfig, logger *zap.Logger) *OllamaClient {
	def := DefaultOllamaConfig()
	if config.Host == "" {
		config.Host = def.Host
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

	return &OllamaClient{
		host:  strings.TrimRight(config.Host, "/"),
		model: config.Model,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Name returns the provider name used in chain ordering.
func (c *OllamaClient) Name() string { return "ollama" }

// Model returns the configured model.
func (c *OllamaClient) Model() string { return c.model }

// Available is always true: a local daemon needs no credentials, and
// reachability failures surface as request errors.
func (c *OllamaClient) Available() bool { return true }

// Healthy probes /api/version with a short budget.
func (c *OllamaClient) Healthy(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, "GET", c.host+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", c.host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama version probe returned status %d", resp.StatusCode)
	}
	return nil
}

// Complete sends a prompt and returns the completion.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with an optional system message.
func (c *OllamaClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	text, chatErr := c.chat(ctx, systemPrompt, userPrompt)
	if chatErr == nil && text != "" {
		return text, nil
	}
	if chatErr != nil {
		c.logger.Debug("ollama chat failed, falling back to generate",
			zap.String("model", c.model),
			zap.Error(chatErr))
	}

	prompt := userPrompt
	if systemPrompt != "" {
		prompt = systemPrompt + "\n" + userPrompt
	}
	text, genErr := c.generate(ctx, prompt)
	if genErr != nil {
		if chatErr != nil {
			return "", fmt.Errorf("ollama request failed: chat: %v; generate: %w", chatErr, genErr)
		}
		return "", fmt.Errorf("ollama request failed: %w", genErr)
	}
	if text == "" {
		return "", fmt.Errorf("empty response from ollama")
	}
	return text, nil
}

func (c *OllamaClient) chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]ollamaMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: userPrompt})

	var result ollamaChatResponse
	if err := c.post(ctx, "/api/chat", ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	}, &result); err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Message.Content), nil
}

func (c *OllamaClient) generate(ctx context.Context, prompt string) (string, error) {
	var result ollamaGenerateResponse
	if err := c.post(ctx, "/api/generate", ollamaGenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	}, &result); err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Response), nil
}

func (c *OllamaClient) post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// =============================================================================
// OLLAMA API TYPES
// =============================================================================

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}
