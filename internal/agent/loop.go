package agent

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cmdpilot/internal/audit"
	"cmdpilot/internal/classify"
	"cmdpilot/internal/executor"
	"cmdpilot/internal/explain"
	"cmdpilot/internal/guard"
	"cmdpilot/internal/history"
	"cmdpilot/internal/plan"
	"cmdpilot/internal/recipe"
	"cmdpilot/internal/sanitize"
)

// Run drives one goal to a terminal state. The returned error is nil
// only for StatusSuccess; the Outcome is populated for every terminal
// state. Sink failures never change the outcome.
func (l *Loop) Run(ctx context.Context, opts Options) (Outcome, error) {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	out := l.Out
	if out == nil {
		out = io.Discard
	}
	sleep := l.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	runID := l.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	fmt.Fprintf(out, "# Working directory\n%s\n\n", opts.Cwd)

	if l.History != nil {
		if err := l.History.StartSession(runID, opts.Goal); err != nil {
			logger.Warn("history session not recorded", zap.Error(err))
		}
	}

	cmdline, oc, err := l.propose(ctx, opts, logger)
	if err != nil {
		return oc, err
	}
	cmdline, oc, err = l.gate(ctx, opts, cmdline, out, logger)
	if err != nil {
		return oc, err
	}

	fmt.Fprintf(out, "# Goal\n%s\n\n", opts.Goal)

	attempts := 0
	histSnip := ""
	var last executor.Result

	for attempts < opts.MaxAttempts {
		attempts++
		fmt.Fprintf(out, "# Command (try %d)\n$ %s\n\n", attempts, cmdline)

		res := l.Exec.Run(ctx, cmdline, opts.Cwd, opts.Timeout)
		last = res

		fmt.Fprintln(out, "# Result")
		fmt.Fprintf(out, "## STDOUT (first 2000 bytes)\n%s\n\n", audit.Clip(res.Stdout, 2000))
		if res.Stderr != "" {
			fmt.Fprintf(out, "## STDERR (first 1000 bytes)\n%s\n\n", audit.Clip(res.Stderr, 1000))
		}
		fmt.Fprintf(out, "(rc=%d, took=%.2fs)\n\n", res.ExitCode, res.Duration.Seconds())

		l.writeEvent(audit.ExecEntry(opts.Goal, cmdline, attempts, res.ExitCode, res.Stdout, res.Stderr, opts.Cwd), logger)
		l.recordHistory(runID, attempts, cmdline, opts.Cwd, res, logger)

		if classify.Effective(res.ExitCode, res.Stdout, opts.Criteria) {
			fmt.Fprintln(out, "# Done: success criteria met.")
			oc := outcomeFrom(StatusSuccess, attempts, cmdline, res)
			l.explainRun(ctx, opts, oc, out, logger)
			return oc, nil
		}

		histSnip = plan.AppendHistory(histSnip, cmdline, attempts, res.ExitCode)

		if attempts >= opts.MaxAttempts {
			break
		}

		req := plan.Request{
			Goal:     opts.Goal,
			Cwd:      opts.Cwd,
			Attempt:  attempts,
			LastCmd:  cmdline,
			ExitCode: res.ExitCode,
			Stdout:   audit.Clip(res.Stdout, 500),
			Stderr:   audit.Clip(res.Stderr, 500),
			History:  histSnip,
		}
		text, err := l.Client.Complete(ctx, plan.BuildPrompt(req))
		if err != nil {
			fmt.Fprintf(out, "# Stopping: retry planning failed (%v)\n", err)
			oc := outcomeFrom(StatusRetryFail, attempts, cmdline, res)
			l.explainRun(ctx, opts, oc, out, logger)
			return oc, fmt.Errorf("retry planning failed: %w", err)
		}
		decision, err := plan.Parse(text)
		if err != nil {
			fmt.Fprintf(out, "# Stopping: %v\n", err)
			oc := outcomeFrom(StatusRetryFail, attempts, cmdline, res)
			l.explainRun(ctx, opts, oc, out, logger)
			return oc, fmt.Errorf("retry planning failed: %w", err)
		}

		fmt.Fprintf(out, "# Retry plan\nretry=%t reason=%q wait=%.1fs next=%q\n\n",
			decision.Retry, decision.Reason, decision.WaitSeconds, decision.NextCommand)

		if !decision.Retry {
			fmt.Fprintf(out, "# Stopping: collaborator declined to retry (%s)\n", decision.Reason)
			oc := outcomeFrom(StatusGaveUp, attempts, cmdline, res)
			oc.Reason = decision.Reason
			l.explainRun(ctx, opts, oc, out, logger)
			return oc, fmt.Errorf("collaborator declined to retry: %s", decision.Reason)
		}

		next := decision.NextCommand
		if next == "" {
			next = cmdline
		}
		candidate := sanitize.Clean(next, opts.Sudo)
		if candidate == "" {
			fmt.Fprintln(out, "# Stopping: retry plan produced no usable command.")
			oc := outcomeFrom(StatusRetryFail, attempts, cmdline, res)
			l.explainRun(ctx, opts, oc, out, logger)
			return oc, fmt.Errorf("retry planning failed: %w: next_command not usable", plan.ErrBadDecision)
		}

		gated, boc, gerr := l.gate(ctx, opts, candidate, out, logger)
		if gerr != nil {
			boc.Attempts = attempts
			boc.ExitCode = last.ExitCode
			boc.Stdout = last.Stdout
			boc.Stderr = last.Stderr
			l.explainRun(ctx, opts, boc, out, logger)
			return boc, gerr
		}

		if w := decision.Wait(); w > 0 {
			sleep(w)
		}
		cmdline = gated
	}

	fmt.Fprintf(out, "# Giving up: %d attempts without success.\n", attempts)
	oc = outcomeFrom(StatusExhausted, attempts, cmdline, last)
	l.explainRun(ctx, opts, oc, out, logger)
	return oc, fmt.Errorf("%w (%d attempts)", ErrExhausted, attempts)
}

// propose resolves the first candidate command: direct command, then
// the recipe table, then the collaborator.
func (l *Loop) propose(ctx context.Context, opts Options, logger *zap.Logger) (string, Outcome, error) {
	raw := opts.Command
	if raw == "" {
		if rec, ok := recipe.Lookup(opts.Goal); ok {
			logger.Debug("recipe matched", zap.String("recipe", rec.ID))
			raw = rec.Command
		} else {
			text, err := l.Client.Complete(ctx, proposePrompt(opts.Goal, opts.Cwd))
			if err != nil {
				return "", Outcome{Status: StatusPlanningFail}, fmt.Errorf("%w: %v", ErrPlanning, err)
			}
			raw = text
		}
	}

	cmdline := sanitize.Clean(raw, opts.Sudo)
	if cmdline == "" {
		return "", Outcome{Status: StatusPlanningFail}, fmt.Errorf("%w: no usable command line", ErrPlanning)
	}
	return cmdline, Outcome{}, nil
}

// gate runs the safety checks and the sudo confirmation flow. After a
// declined confirmation it asks the collaborator once for a sudo-free
// equivalent; that candidate passes through the same checks, and a
// second decline ends the run.
func (l *Loop) gate(ctx context.Context, opts Options, cmdline string, out io.Writer, logger *zap.Logger) (string, Outcome, error) {
	v := guard.Check(cmdline, opts.Sudo)
	if v.Blocked {
		oc, err := l.blocked(opts, cmdline, v.Reason, out, logger)
		return "", oc, err
	}
	if !v.NeedConfirm {
		return cmdline, Outcome{}, nil
	}

	if l.confirm(fmt.Sprintf("Run with sudo? $ %s", cmdline)) {
		return cmdline, Outcome{}, nil
	}

	fmt.Fprintln(out, "# Sudo declined, requesting an alternative without sudo.")
	text, err := l.Client.Complete(ctx, reproposePrompt(opts.Goal, opts.Cwd, cmdline))
	if err != nil {
		oc, berr := l.blocked(opts, cmdline, "sudo declined and no alternative available", out, logger)
		return "", oc, berr
	}
	alt := sanitize.Clean(text, opts.Sudo)
	if alt == "" {
		oc, berr := l.blocked(opts, cmdline, "sudo declined and no usable alternative", out, logger)
		return "", oc, berr
	}

	v = guard.Check(alt, opts.Sudo)
	if v.Blocked {
		oc, berr := l.blocked(opts, alt, v.Reason, out, logger)
		return "", oc, berr
	}
	if v.NeedConfirm && !l.confirm(fmt.Sprintf("Run with sudo? $ %s", alt)) {
		oc, berr := l.blocked(opts, alt, "sudo use declined", out, logger)
		return "", oc, berr
	}
	return alt, Outcome{}, nil
}

// blocked records the rejection and builds the terminal outcome. No
// command is spawned on this path.
func (l *Loop) blocked(opts Options, cmdline, reason string, out io.Writer, logger *zap.Logger) (Outcome, error) {
	fmt.Fprintf(out, "# Blocked\n$ %s\n%s\n", cmdline, reason)
	l.writeEvent(audit.BlockedEntry(opts.Goal, cmdline, reason), logger)
	oc := Outcome{Status: StatusBlocked, Command: cmdline, Reason: reason}
	return oc, fmt.Errorf("%w: %s", ErrBlocked, reason)
}

func (l *Loop) confirm(prompt string) bool {
	if l.Confirm == nil {
		return false
	}
	return l.Confirm(prompt)
}

func (l *Loop) writeEvent(e audit.Entry, logger *zap.Logger) {
	if l.Events == nil {
		return
	}
	if err := l.Events.Write(e); err != nil {
		logger.Warn("event not logged", zap.Error(err))
	}
}

func (l *Loop) recordHistory(runID string, attempt int, cmdline, cwd string, res executor.Result, logger *zap.Logger) {
	if l.History == nil {
		return
	}
	rec := history.CommandRecord{
		SessionID: runID,
		Attempt:   attempt,
		Command:   cmdline,
		Cwd:       cwd,
		ExitCode:  res.ExitCode,
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		Duration:  res.Duration,
	}
	if err := l.History.RecordCommand(rec); err != nil {
		logger.Warn("history not recorded", zap.Error(err))
	}
}

// explainRun is the optional post-terminal summary. It only runs when
// at least one command executed, and every failure here is downgraded
// to a warning.
func (l *Loop) explainRun(ctx context.Context, opts Options, oc Outcome, out io.Writer, logger *zap.Logger) {
	if l.Explain == nil || oc.Attempts == 0 {
		return
	}
	r := explain.Report{
		Goal:     opts.Goal,
		Command:  oc.Command,
		ExitCode: oc.ExitCode,
		Stdout:   audit.Clip(oc.Stdout, 1000),
		Stderr:   audit.Clip(oc.Stderr, 600),
	}
	summary, err := l.Explain(ctx, r)
	if err != nil {
		logger.Warn("explanation not generated", zap.Error(err))
		return
	}
	fmt.Fprintf(out, "# Explanation\n%s\n", summary)
}

func outcomeFrom(status Status, attempts int, cmdline string, res executor.Result) Outcome {
	return Outcome{
		Status:   status,
		Attempts: attempts,
		Command:  cmdline,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
}
