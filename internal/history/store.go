// Package history persists run sessions and executed commands to SQLite.
//
// The store is write-only during a run; reads back the recent rows for the
// history subcommand. A missing or broken database never fails a run, the
// caller downgrades store errors to warnings.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Session is one agent run.
type Session struct {
	ID        string
	Goal      string
	User      string
	StartedAt time.Time
}

// CommandRecord is one executed attempt within a session.
type CommandRecord struct {
	ID        int64
	SessionID string
	Attempt   int
	Command   string
	Cwd       string
	ExitCode  int
	Stdout    string
	Stderr    string
	Duration  time.Duration
	CreatedAt time.Time
}

// Store wraps the SQLite history database.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewStore initializes the SQLite database at the given path.
func NewStore(path string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	// busy_timeout covers a second pilot process holding the write lock.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal_mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous: %w", err)
	}

	store := &Store{db: db, dbPath: path}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	sessionsTable := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		goal TEXT,
		user_id TEXT,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
	`

	commandsTable := `
	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT,
		attempt_no INTEGER,
		command_line TEXT NOT NULL,
		working_directory TEXT,
		exit_code INTEGER,
		stdout_text TEXT,
		stderr_text TEXT,
		execution_time_ms INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_commands_session ON commands(session_id);
	CREATE INDEX IF NOT EXISTS idx_commands_created ON commands(created_at);
	`

	for _, table := range []string{sessionsTable, commandsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// StartSession records the beginning of a run.
func (s *Store) StartSession(sessionID, goal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO sessions (session_id, goal, user_id) VALUES (?, ?, ?)",
		sessionID, goal, currentUser(),
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// RecordCommand appends one executed attempt.
func (s *Store) RecordCommand(rec CommandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO commands (session_id, attempt_no, command_line, working_directory, exit_code, stdout_text, stderr_text, execution_time_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Attempt, rec.Command, rec.Cwd, rec.ExitCode,
		rec.Stdout, rec.Stderr, rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}
	return nil
}

// Recent returns the most recent commands, newest first.
func (s *Store) Recent(limit int) ([]CommandRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, session_id, attempt_no, command_line, working_directory, exit_code, stdout_text, stderr_text, execution_time_ms, created_at
		 FROM commands ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCommands(rows)
}

// BySession returns all commands for one session, oldest first.
func (s *Store) BySession(sessionID string) ([]CommandRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, session_id, attempt_no, command_line, working_directory, exit_code, stdout_text, stderr_text, execution_time_ms, created_at
		 FROM commands WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCommands(rows)
}

// Sessions returns the most recent sessions, newest first.
func (s *Store) Sessions(limit int) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		"SELECT session_id, goal, user_id, started_at FROM sessions ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Goal, &sess.User, &sess.StartedAt); err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

func scanCommands(rows *sql.Rows) ([]CommandRecord, error) {
	var records []CommandRecord
	for rows.Next() {
		var rec CommandRecord
		var ms int64
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Attempt, &rec.Command, &rec.Cwd, &rec.ExitCode, &rec.Stdout, &rec.Stderr, &ms, &rec.CreatedAt); err != nil {
			continue
		}
		rec.Duration = time.Duration(ms) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
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
