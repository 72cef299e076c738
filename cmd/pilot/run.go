package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cmdpilot/internal/agent"
	"cmdpilot/internal/audit"
	"cmdpilot/internal/classify"
	"cmdpilot/internal/config"
	"cmdpilot/internal/executor"
	"cmdpilot/internal/explain"
	"cmdpilot/internal/guard"
	"cmdpilot/internal/history"
)

var (
	cmdFlag             string
	cwdFlag             string
	sudoFlag            string
	maxAttemptsFlag     int
	timeoutFlag         int
	requireOutputFlag   bool
	noRequireOutputFlag bool
	successPatternFlag  string
	minBytesFlag        int
	noExplainFlag       bool
	yesFlag             bool
	noInputFlag         bool
)

// runCmd executes one goal through the guarded loop
var runCmd = &cobra.Command{
	Use:   "run [goal...]",
	Short: "Run one goal through the propose-gate-execute-retry loop",
	Long: `Drives a single goal to a terminal state:
  1. Propose: recipe table, then the provider chain (skipped with --cmd)
  2. Gate: denylist, non-destructive policy, sudo policy
  3. Execute: /bin/sh -c with a per-attempt timeout
  4. Classify: exit code plus output criteria decide effective success
  5. Retry: a structured JSON plan from the chain, up to --max-attempts

Exit status is 0 only when the goal effectively succeeded.`,
	Args: cobra.ArbitraryArgs,
	RunE: runGoal,
}

// addRunFlags registers the run flag set on a command. The same vars
// back the root command and "run" so both spellings stay in sync.
func addRunFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&cmdFlag, "cmd", "", "Execute this exact command instead of proposing one")
	f.StringVar(&cwdFlag, "cwd", "", "Working directory (default: current)")
	f.StringVar(&sudoFlag, "sudo", "ask", "Sudo policy: allow, deny or ask")
	f.IntVar(&maxAttemptsFlag, "max-attempts", 5, "Maximum execution attempts")
	f.IntVar(&timeoutFlag, "timeout", 60, "Per-attempt timeout in seconds")
	f.BoolVar(&requireOutputFlag, "require-output", true, "Require non-empty stdout for success")
	f.BoolVar(&noRequireOutputFlag, "no-require-output", false, "Treat empty stdout as success")
	f.StringVar(&successPatternFlag, "success-pattern", "", "Regex stdout must match for success")
	f.IntVar(&minBytesFlag, "min-bytes", 1, "Minimum stdout bytes when output is required")
	f.BoolVar(&noExplainFlag, "no-explain", false, "Skip the closing explanation")
	f.BoolVar(&yesFlag, "yes", false, "Assume yes for sudo confirmations")
	f.BoolVar(&noInputFlag, "no-input", false, "Never prompt; decline confirmations")
}

func runGoal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFilePath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	goal := strings.TrimSpace(strings.Join(args, " "))
	command := strings.TrimSpace(cmdFlag)
	if goal == "" && command == "" {
		return fmt.Errorf("a goal (or --cmd) is required")
	}

	// A "$ ..." goal is a literal command, like --cmd.
	direct := command != ""
	if !direct && strings.HasPrefix(goal, "$") {
		command = strings.TrimSpace(strings.TrimLeft(goal, "$ "))
		if command == "" {
			return fmt.Errorf("empty literal command")
		}
		direct = true
	}
	display := goal
	if direct && (goal == "" || strings.HasPrefix(goal, "$")) {
		display = "(direct) " + command
	}

	sudoStr := cfg.Agent.Sudo
	if cmd.Flags().Changed("sudo") {
		sudoStr = sudoFlag
	}
	sudo, err := guard.ParseSudoPolicy(sudoStr)
	if err != nil {
		return err
	}

	maxAttempts := cfg.Agent.MaxAttempts
	if cmd.Flags().Changed("max-attempts") {
		maxAttempts = maxAttemptsFlag
	}
	timeout := cfg.GetCommandTimeout()
	if cmd.Flags().Changed("timeout") {
		timeout = time.Duration(timeoutFlag) * time.Second
	}
	requireOutput := cfg.Agent.RequireOutput
	if cmd.Flags().Changed("require-output") {
		requireOutput = requireOutputFlag
	}
	if noRequireOutputFlag {
		requireOutput = false
	}
	minBytes := cfg.Agent.MinBytes
	if cmd.Flags().Changed("min-bytes") {
		minBytes = minBytesFlag
	}
	doExplain := cfg.Agent.Explain
	if noExplainFlag {
		doExplain = false
	}

	// Keyword-derived success patterns only apply to proposed goals;
	// a literal command carries no intent to infer from.
	autoGoal := display
	if direct {
		autoGoal = ""
	}
	criteria, err := classify.Build(autoGoal, successPatternFlag, requireOutput, minBytes)
	if err != nil {
		logger.Warn("invalid success pattern, continuing without it", zap.Error(err))
	}

	cwd := cwdFlag
	if cwd == "" {
		cwd, _ = os.Getwd()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	runID := uuid.New().String()
	chain := chainFromConfig(cfg)

	var events agent.EventSink
	auditLog, err := audit.NewLogger(filepath.Join(cfg.Log.Dir, "exec.log"))
	if err != nil {
		logger.Warn("event log unavailable", zap.Error(err))
	} else {
		auditLog.SetRunID(runID)
		defer auditLog.Close()
		events = auditLog
	}

	var hist agent.HistorySink
	if cfg.History.Enabled {
		store, err := history.NewStore(cfg.History.Path)
		if err != nil {
			logger.Warn("history store unavailable", zap.Error(err))
		} else {
			defer store.Close()
			hist = store
		}
	}

	var confirm agent.ConfirmFunc
	switch {
	case yesFlag:
		confirm = func(string) bool { return true }
	case noInputFlag:
		confirm = func(string) bool { return false }
	default:
		confirm = askOnTerminal
	}

	var explainFn agent.ExplainFunc
	if doExplain {
		explainFn = func(ctx context.Context, r explain.Report) (string, error) {
			summary, err := explain.Summarize(ctx, chain, r)
			if err != nil {
				return "", err
			}
			return explain.Render(summary), nil
		}
	}

	loop := &agent.Loop{
		Client:  chain,
		Exec:    executor.New(logger),
		Events:  events,
		History: hist,
		Confirm: confirm,
		Explain: explainFn,
		Logger:  logger,
		Out:     os.Stdout,
		RunID:   runID,
	}

	_, err = loop.Run(ctx, agent.Options{
		Goal:        display,
		Command:     command,
		Cwd:         cwd,
		Sudo:        sudo,
		MaxAttempts: maxAttempts,
		Timeout:     timeout,
		Criteria:    criteria,
	})
	return err
}

// askOnTerminal prompts on stderr and reads one line from stdin. Only
// an explicit yes answer confirms.
func askOnTerminal(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
