package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cmdpilot/internal/config"
	"cmdpilot/internal/llm"
)

const version = "1.0.0"

var (
	// Global flags
	debug   bool
	cfgPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pilot [goal...]",
	Short: "cmdpilot - guarded goal-to-command execution agent",
	Long: `cmdpilot turns a natural-language goal into a guarded shell command.

A goal is answered by the recipe table or by a chain of text-generation
providers (HuggingFace router, local Ollama, Gemini). Every candidate,
including direct --cmd input, is reduced to a single line and checked
against a hard denylist, a non-destructive-only policy and the sudo
policy before anything runs. Failed attempts are retried under a
structured JSON plan from the provider chain, bounded by --max-attempts.

Goals starting with "$" skip proposal and run the literal command:
  pilot '$ df -h'
  pilot how much memory is free on this machine
  pilot run --sudo deny --max-attempts 3 show listening tcp ports`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zcfg := zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if debug {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: a bare goal is a run.
		if len(args) == 0 && cmdFlag == "" {
			return cmd.Help()
		}
		return runGoal(cmd, args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pilot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pilot %s\n", version)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default ~/.cmdpilot/config.yaml)")

	// The root command accepts the full run flag set so that
	// "pilot <goal>" and "pilot run <goal>" behave identically.
	addRunFlags(rootCmd)
	addRunFlags(runCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum rows to show")
	historyCmd.Flags().StringVar(&historySession, "session", "", "Show one session's commands")
	historyCmd.Flags().BoolVar(&historySessions, "sessions", false, "List sessions instead of commands")

	// Add commands to root
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(recipesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configFilePath resolves --config against the default location.
func configFilePath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return config.DefaultPath()
}

// chainFromConfig builds the provider chain with the configured order,
// endpoints and sampling settings.
func chainFromConfig(cfg *config.Config) *llm.Chain {
	t := cfg.GetLLMTimeout()
	return llm.NewChainFromConfig(llm.ChainConfig{
		Order: cfg.LLM.Order,
		Ollama: llm.OllamaConfig{
			Host:    cfg.LLM.Ollama.Host,
			Model:   cfg.LLM.Ollama.Model,
			Timeout: t,
		},
		Gemini: llm.GeminiConfig{
			APIKey:      cfg.LLM.Gemini.APIKey,
			Model:       cfg.LLM.Gemini.Model,
			Timeout:     t,
			Temperature: cfg.LLM.Temperature,
			TopP:        cfg.LLM.TopP,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
		HuggingFace: llm.HFConfig{
			Token:       cfg.LLM.HuggingFace.Token,
			BaseURL:     cfg.LLM.HuggingFace.BaseURL,
			Model:       cfg.LLM.HuggingFace.Model,
			Timeout:     t,
			Temperature: cfg.LLM.Temperature,
			TopP:        cfg.LLM.TopP,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
	}, logger)
}
