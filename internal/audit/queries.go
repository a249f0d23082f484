package audit

import (
	"database/sql"
	"fmt"
	"time"
)

// RunSummary is one row of the date-range report query.
type RunSummary struct {
	RunID     string `json:"run_id"`
	Project   string `json:"project"`
	Branch    string `json:"branch"`
	Status    string `json:"status"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at"`
}

// AgentRow is one agent outcome row for a run.
type AgentRow struct {
	Agent     string `json:"agent"`
	Status    string `json:"status"`
	Branch    string `json:"branch,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// RunsBetween returns runs whose start falls inside [from, to], newest first.
func (d *DB) RunsBetween(from, to time.Time) ([]RunSummary, error) {
	rows, err := d.conn.Query(
		`SELECT run_id, project, branch, status, started_at, COALESCE(ended_at, '')
		   FROM runs
		  WHERE started_at >= ? AND started_at <= ?
		  ORDER BY started_at DESC`,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Project, &r.Branch, &r.Status, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// OutcomesForRun returns the agent outcomes of one run in execution order.
func (d *DB) OutcomesForRun(runID string) ([]AgentRow, error) {
	rows, err := d.conn.Query(
		`SELECT agent, status, COALESCE(branch, ''), COALESCE(error_kind, ''), COALESCE(error_msg, '')
		   FROM agent_outcomes
		  WHERE run_id = ?
		  ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []AgentRow
	for rows.Next() {
		var a AgentRow
		if err := rows.Scan(&a.Agent, &a.Status, &a.Branch, &a.ErrorKind, &a.ErrorMsg); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		outcomes = append(outcomes, a)
	}
	return outcomes, rows.Err()
}

// LastRun returns the most recent run, or nil if none exist.
func (d *DB) LastRun() (*RunSummary, error) {
	var r RunSummary
	err := d.conn.QueryRow(
		`SELECT run_id, project, branch, status, started_at, COALESCE(ended_at, '')
		   FROM runs ORDER BY started_at DESC LIMIT 1`).
		Scan(&r.RunID, &r.Project, &r.Branch, &r.Status, &r.StartedAt, &r.EndedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}
	return &r, nil
}
