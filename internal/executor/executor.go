// Package executor runs shell command lines with a deadline and bounded
// output capture. It reports what happened rather than failing: infra
// problems, non-zero exits and timeouts all come back inside the Result
// so the caller can classify them.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// TimeoutExitCode is the synthetic exit code recorded when a command is
// killed by its deadline. 124 matches the timeout(1) convention.
const TimeoutExitCode = 124

// DefaultMaxOutputBytes caps how much of each stream is captured.
const DefaultMaxOutputBytes = 1 << 20 // 1 MiB per stream

// Result describes one completed execution attempt.
type Result struct {
	Command    string
	ExitCode   int
	Stdout     string
	Stderr     string
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	TimedOut   bool
	Truncated  bool
}

// Shell executes command lines through the system shell
// (sh -c on Unix, cmd /C on Windows).
type Shell struct {
	maxOutputBytes int64
	logger         *zap.Logger
}

// New creates a Shell with the default output cap.
func New(logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shell{
		maxOutputBytes: DefaultMaxOutputBytes,
		logger:         logger,
	}
}

// SetMaxOutputBytes overrides the per-stream capture cap.
func (s *Shell) SetMaxOutputBytes(n int64) {
	if n > 0 {
		s.maxOutputBytes = n
	}
}

// Run executes command in dir, killing it after timeout. A timeout of
// zero or less means no deadline beyond the parent context. Run never
// returns an error: failures to even start the process are reported as
// ExitCode -1 with the cause in Stderr.
func (s *Shell) Run(ctx context.Context, command, dir string, timeout time.Duration) Result {
	res := Result{
		Command:  command,
		ExitCode: -1,
	}

	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(execCtx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(execCtx, "sh", "-c", command)
	}
	cmd.Dir = dir

	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdoutBuf, max: s.maxOutputBytes}
	stderrLimited := &limitedWriter{w: &stderrBuf, max: s.maxOutputBytes}
	cmd.Stdout = stdoutLimited
	cmd.Stderr = stderrLimited

	s.logger.Debug("executing command",
		zap.String("cmd", command),
		zap.String("dir", dir),
		zap.Duration("timeout", timeout))

	res.StartedAt = time.Now()
	err := cmd.Run()
	res.FinishedAt = time.Now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)

	res.Stdout = stdoutBuf.String()
	res.Stderr = stderrBuf.String()
	if stdoutLimited.truncated || stderrLimited.truncated {
		res.Truncated = true
		s.logger.Warn("command output truncated",
			zap.Int64("discarded", stdoutLimited.discarded+stderrLimited.discarded))
	}

	switch {
	case err == nil:
		res.ExitCode = 0
	case execCtx.Err() == context.DeadlineExceeded:
		res.TimedOut = true
		res.ExitCode = TimeoutExitCode
		if res.Stderr != "" {
			res.Stderr += "\n"
		}
		res.Stderr += fmt.Sprintf("command timed out after %s", timeout)
		s.logger.Warn("command timed out",
			zap.String("cmd", command),
			zap.Duration("timeout", timeout))
	case execCtx.Err() == context.Canceled:
		if res.Stderr != "" {
			res.Stderr += "\n"
		}
		res.Stderr += "command canceled"
		s.logger.Debug("command canceled", zap.String("cmd", command))
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			s.logger.Debug("command exited non-zero",
				zap.String("cmd", command),
				zap.Int("rc", res.ExitCode))
		} else {
			// Could not start at all: bad working directory, missing
			// shell, fork failure.
			if res.Stderr != "" {
				res.Stderr += "\n"
			}
			res.Stderr += err.Error()
			s.logger.Error("command failed to start",
				zap.String("cmd", command),
				zap.Error(err))
		}
	}

	s.logger.Debug("command finished",
		zap.String("cmd", command),
		zap.Int("rc", res.ExitCode),
		zap.Duration("duration", res.Duration),
		zap.Int("stdout_bytes", len(res.Stdout)))

	return res
}

// limitedWriter caps total bytes written, discarding the overflow while
// still reporting the full length to avoid short-write errors.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
