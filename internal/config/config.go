// Package config loads and persists cmdpilot settings.
//
// Resolution order is flags over environment over the config file over
// built-in defaults. The file lives at ~/.cmdpilot/config.yaml unless
// CMDPILOT_HOME points elsewhere.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all cmdpilot configuration.
type Config struct {
	// LLM provider chain
	LLM LLMConfig `yaml:"llm"`

	// Agent loop behavior
	Agent AgentConfig `yaml:"agent"`

	// JSONL execution log
	Log LogConfig `yaml:"log"`

	// SQLite run history
	History HistoryConfig `yaml:"history"`
}

// LLMConfig configures the provider chain.
type LLMConfig struct {
	Order       string  `yaml:"order"` // comma-separated: huggingface, ollama, gemini
	Timeout     string  `yaml:"timeout"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	MaxTokens   int     `yaml:"max_tokens"`

	Ollama      OllamaConfig      `yaml:"ollama"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	HuggingFace HuggingFaceConfig `yaml:"huggingface"`
}

// OllamaConfig configures the local Ollama daemon.
type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// HuggingFaceConfig configures the Hugging Face router provider.
type HuggingFaceConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// AgentConfig configures the execution loop.
type AgentConfig struct {
	MaxAttempts   int    `yaml:"max_attempts"`
	Timeout       string `yaml:"timeout"` // per-command deadline
	Sudo          string `yaml:"sudo"`    // allow, deny, ask
	RequireOutput bool   `yaml:"require_output"`
	MinBytes      int    `yaml:"min_bytes"`
	Explain       bool   `yaml:"explain"`
}

// LogConfig configures the JSONL execution log.
type LogConfig struct {
	Dir string `yaml:"dir"`
}

// HistoryConfig configures the SQLite run history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Order:   "huggingface,ollama,gemini",
			Timeout: "120s",

			Ollama: OllamaConfig{
				Host:  "http://127.0.0.1:11434",
				Model: "qwen2.5:0.5b-instruct",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.5-flash",
			},
			HuggingFace: HuggingFaceConfig{
				BaseURL: "https://router.huggingface.co/v1",
				Model:   "openai/gpt-oss-20b:groq",
			},
		},

		Agent: AgentConfig{
			MaxAttempts:   5,
			Timeout:       "60s",
			Sudo:          "ask",
			RequireOutput: true,
			MinBytes:      1,
			Explain:       true,
		},

		Log: LogConfig{
			Dir: filepath.Join(Dir(), "logs"),
		},

		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(Dir(), "history.db"),
		},
	}
}

// Dir returns the cmdpilot data directory.
func Dir() string {
	if d := os.Getenv("CMDPILOT_HOME"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cmdpilot"
	}
	return filepath.Join(home, ".cmdpilot")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if order := os.Getenv("LLM_SMART_ORDER"); order != "" {
		c.LLM.Order = order
	}

	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.LLM.Ollama.Host = host
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		c.LLM.Ollama.Model = model
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.Gemini.APIKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		c.LLM.Gemini.Model = model
	}

	if token := os.Getenv("HF_TOKEN"); token != "" {
		c.LLM.HuggingFace.Token = token
	}
	if host := os.Getenv("HF_HOST"); host != "" {
		c.LLM.HuggingFace.BaseURL = host
	}
	if model := os.Getenv("HF_MODEL"); model != "" {
		c.LLM.HuggingFace.Model = model
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetCommandTimeout returns the per-command timeout as a duration.
func (c *Config) GetCommandTimeout() time.Duration {
	d, err := time.ParseDuration(c.Agent.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Agent.Sudo {
	case "allow", "deny", "ask":
	default:
		return fmt.Errorf("invalid sudo policy: %s (valid: allow, deny, ask)", c.Agent.Sudo)
	}

	if c.Agent.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.Agent.MaxAttempts)
	}

	return nil
}
