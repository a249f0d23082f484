// Package audit keeps the on-disk audit trail of pipeline runs in SQLite.
// The report subcommand reads it for date-range queries; the orchestrator
// appends to it as agents complete.
package audit

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lucasnoah/commitly/internal/pipeline"
)

// DB wraps the SQLite audit database.
type DB struct {
	conn *sql.DB
	path string
}

// DefaultPath returns the audit database location for a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".commitly", "audit.db")
}

// Open opens or creates the database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying *sql.DB for advanced queries.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    project     TEXT NOT NULL,
    branch      TEXT NOT NULL,
    status      TEXT NOT NULL,
    started_at  TEXT NOT NULL,
    ended_at    TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS agent_outcomes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL,
    agent       TEXT NOT NULL,
    status      TEXT NOT NULL,
    branch      TEXT,
    started_at  TEXT NOT NULL,
    ended_at    TEXT,
    error_kind  TEXT,
    error_msg   TEXT,
    log_path    TEXT
);
CREATE INDEX IF NOT EXISTS idx_outcomes_run ON agent_outcomes(run_id, id);

CREATE TABLE IF NOT EXISTS pipeline_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL,
    event       TEXT NOT NULL,
    agent       TEXT,
    detail      TEXT,
    timestamp   TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_events_run ON pipeline_events(run_id, timestamp DESC);
`

// Migrate applies the database schema.
func (d *DB) Migrate() error {
	var count int
	err := d.conn.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	if _, err := tx.Exec(schemaV1); err != nil {
		tx.Rollback()
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := tx.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (1)"); err != nil {
		tx.Rollback()
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// RecordRunStarted inserts the run row when a pipeline begins.
func (d *DB) RecordRunStarted(runID, project, branch string, startedAt time.Time) error {
	_, err := d.conn.Exec(
		`INSERT INTO runs (run_id, project, branch, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		runID, project, branch, "running", startedAt.UTC().Format(time.RFC3339))
	return err
}

// RecordRunFinished stamps the terminal status.
func (d *DB) RecordRunFinished(runID string, status pipeline.RunStatus, endedAt time.Time) error {
	_, err := d.conn.Exec(
		`UPDATE runs SET status = ?, ended_at = ? WHERE run_id = ?`,
		string(status), endedAt.UTC().Format(time.RFC3339), runID)
	return err
}

// RecordOutcome appends one agent outcome.
func (d *DB) RecordOutcome(runID string, out *pipeline.Outcome) error {
	var errKind, errMsg string
	if out.Error != nil {
		errKind = string(out.Error.Kind)
		errMsg = out.Error.Message
	}
	_, err := d.conn.Exec(
		`INSERT INTO agent_outcomes (run_id, agent, status, branch, started_at, ended_at, error_kind, error_msg, log_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, out.Agent, string(out.Status), out.Branch,
		out.StartedAt.UTC().Format(time.RFC3339),
		out.EndedAt.UTC().Format(time.RFC3339),
		errKind, errMsg, out.LogPath)
	return err
}

// LogEvent appends a pipeline event.
func (d *DB) LogEvent(runID, event, agent, detail string) error {
	_, err := d.conn.Exec(
		`INSERT INTO pipeline_events (run_id, event, agent, detail) VALUES (?, ?, ?, ?)`,
		runID, event, agent, detail)
	return err
}
