// Package audit persists a JSON Lines record of every execution attempt
// and every blocked command. The log is append-only so concurrent runs
// interleave at line granularity.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"
)

// Entry kinds.
const (
	KindExec    = "exec"
	KindBlocked = "blocked"
)

// TimestampFormat matches the human-readable form used in the log.
const TimestampFormat = "2006-01-02 15:04:05"

// Entry is one log record. Exec entries carry the attempt outcome;
// blocked entries carry only the refusal.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Kind      string `json:"kind"`
	User      string `json:"user"`
	RunID     string `json:"run_id,omitempty"`
	Goal      string `json:"goal,omitempty"`
	Cmd       string `json:"cmd,omitempty"`
	Attempt   int    `json:"attempt,omitempty"`
	RC        *int   `json:"rc,omitempty"`
	Stdout    string `json:"stdout,omitempty"`
	Stderr    string `json:"stderr,omitempty"`
	Cwd       string `json:"cwd,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ExecEntry records one execution attempt. Stdout is clipped to 500
// bytes and stderr to 300 so a noisy command cannot flood the log.
func ExecEntry(goal, cmd string, attempt, rc int, stdout, stderr, cwd string) Entry {
	return Entry{
		Kind:    KindExec,
		Goal:    goal,
		Cmd:     cmd,
		Attempt: attempt,
		RC:      &rc,
		Stdout:  Clip(stdout, 500),
		Stderr:  Clip(stderr, 300),
		Cwd:     cwd,
	}
}

// BlockedEntry records a command the gate refused. There is no rc or
// attempt number since the command never ran.
func BlockedEntry(goal, cmd, reason string) Entry {
	return Entry{
		Kind:   KindBlocked,
		Goal:   goal,
		Cmd:    cmd,
		Reason: reason,
	}
}

// Logger writes entries to a file in JSON Lines format.
type Logger struct {
	mu    sync.Mutex
	file  *os.File
	path  string
	runID string
}

// NewLogger opens (creating if needed) the log file at path for append.
func NewLogger(path string) (*Logger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{
		file: file,
		path: path,
	}, nil
}

// SetRunID stamps all later entries with id so the attempts of one run
// can be correlated.
func (l *Logger) SetRunID(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runID = id
}

// Path returns the log file location.
func (l *Logger) Path() string {
	return l.path
}

// Write appends one entry, filling in user, timestamp and run id when
// the caller left them empty.
func (l *Logger) Write(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("log file not open")
	}

	if e.User == "" {
		e.User = currentUser()
	}
	if e.Timestamp == "" {
		e.Timestamp = time.Now().Format(TimestampFormat)
	}
	if e.RunID == "" {
		e.RunID = l.runID
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	_, err = l.file.Write(append(data, '\n'))
	return err
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Rotate renames the current log to a timestamped backup and opens a
// fresh file at the same path.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("log file not open")
	}

	if err := l.file.Close(); err != nil {
		return err
	}

	backupPath := fmt.Sprintf("%s.%s", l.path, time.Now().Format("20060102-150405"))
	if err := os.Rename(l.path, backupPath); err != nil {
		return err
	}

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = file
	return nil
}

// Clip returns at most n bytes of s. A multi-byte rune split by the
// cut is dropped; invalid bytes elsewhere in s pass through unchanged,
// so binary output clips byte-exact instead of vanishing.
func Clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	// Only a rune straddling the cut needs trimming: find the rune
	// start within the last utf8.UTFMax-1 bytes and drop the fragment
	// when its rune continues past the cut.
	for i := 1; i < utf8.UTFMax && i <= len(cut); i++ {
		if !utf8.RuneStart(cut[len(cut)-i]) {
			continue
		}
		if _, size := utf8.DecodeRuneInString(s[n-i:]); size > i {
			cut = cut[:len(cut)-i]
		}
		break
	}
	return cut
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
