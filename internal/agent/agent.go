// Package agent drives one goal through the guarded execution loop:
// propose a command, gate it, execute it, classify the result, and on
// failure consult the collaborator for a bounded number of retries.
package agent

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"cmdpilot/internal/audit"
	"cmdpilot/internal/classify"
	"cmdpilot/internal/executor"
	"cmdpilot/internal/explain"
	"cmdpilot/internal/guard"
	"cmdpilot/internal/history"
	"cmdpilot/internal/llm"
)

// Terminal failure classes surfaced to callers via errors.Is.
var (
	// ErrPlanning means no candidate command could be produced. Nothing
	// was executed.
	ErrPlanning = errors.New("command planning failed")
	// ErrBlocked means the safety gate rejected the command.
	ErrBlocked = errors.New("command blocked")
	// ErrExhausted means the attempt budget ran out without success.
	ErrExhausted = errors.New("attempt budget exhausted")
)

// Status names the terminal state of a run.
type Status string

const (
	StatusSuccess      Status = "success"
	StatusPlanningFail Status = "planning_failed"
	StatusBlocked      Status = "blocked"
	StatusGaveUp       Status = "gave_up"
	StatusRetryFail    Status = "retry_planning_failed"
	StatusExhausted    Status = "exhausted"
)

// Runner executes one command line.
type Runner interface {
	Run(ctx context.Context, command, dir string, timeout time.Duration) executor.Result
}

// EventSink persists one audit entry per executed attempt or block.
type EventSink interface {
	Write(e audit.Entry) error
}

// HistorySink records sessions and executed commands.
type HistorySink interface {
	StartSession(sessionID, goal string) error
	RecordCommand(rec history.CommandRecord) error
}

// ConfirmFunc answers an interactive yes/no prompt. Batch callers supply
// an always-true or always-false implementation.
type ConfirmFunc func(prompt string) bool

// ExplainFunc produces the optional post-run summary.
type ExplainFunc func(ctx context.Context, r explain.Report) (string, error)

// Options are the per-run inputs, immutable once the run starts.
type Options struct {
	// Goal is the objective shown to the collaborator and logged with
	// every attempt.
	Goal string
	// Command, when set, bypasses proposal and runs directly. It is
	// still sanitized and gated like any proposed command.
	Command string
	// Cwd is the working directory for every attempt.
	Cwd string
	// Sudo is the sudo policy for the run.
	Sudo guard.SudoPolicy
	// MaxAttempts bounds the number of executions. Defaults to 5.
	MaxAttempts int
	// Timeout bounds each individual execution. Defaults to 60s.
	Timeout time.Duration
	// Criteria decide effective success.
	Criteria classify.Criteria
}

// Outcome is the terminal result of a run. Command is the command line
// at the terminal state; ExitCode, Stdout and Stderr come from the last
// execution, if any.
type Outcome struct {
	Status   Status
	Attempts int
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	// Reason carries the block reason or the collaborator's stated
	// reason for giving up.
	Reason string
}

// Loop wires a run's collaborators. Client and Exec are required for
// anything beyond direct commands; Events, History, Confirm, Explain,
// Out and Sleep all default to no-ops.
type Loop struct {
	Client  llm.Client
	Exec    Runner
	Events  EventSink
	History HistorySink
	Confirm ConfirmFunc
	Explain ExplainFunc
	Logger  *zap.Logger
	Out     io.Writer
	Sleep   func(time.Duration)
	// RunID labels history rows for this run. Generated when empty.
	RunID string
}

// NewLoop returns a Loop with the required collaborators set.
func NewLoop(client llm.Client, exec Runner, events EventSink, logger *zap.Logger) *Loop {
	return &Loop{Client: client, Exec: exec, Events: events, Logger: logger}
}
