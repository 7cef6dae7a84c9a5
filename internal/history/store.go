// Package history persists one record per processed task in a local SQLite
// database. The review packet reads it to report past outcomes; nothing in
// the pipeline's correctness depends on it.
package history

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// TaskRun is one processed task: what happened and how risky it was.
type TaskRun struct {
	ID           int64
	TaskID       string
	Branch       string
	Status       string
	Summary      string
	FilesChanged int
	RiskLevel    string
	RiskReasons  []string
	CreatedAt    time.Time
}

// Store manages the task-run database.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the database at dbPath.
// ":memory:" is accepted for tests.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// busy_timeout first so the later statements wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure database: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts one task-run record and returns its row id.
func (s *Store) RecordRun(run *TaskRun) (int64, error) {
	reasons, err := json.Marshal(run.RiskReasons)
	if err != nil {
		return 0, fmt.Errorf("marshal risk reasons: %w", err)
	}

	result, err := s.db.Exec(`
		INSERT INTO task_runs (task_id, branch, status, summary, files_changed, risk_level, risk_reasons)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.TaskID, run.Branch, run.Status, run.Summary, run.FilesChanged, run.RiskLevel, string(reasons))
	if err != nil {
		return 0, fmt.Errorf("insert task run: %w", err)
	}
	return result.LastInsertId()
}

// ListRuns returns the most recent runs, newest first, up to limit
// (limit <= 0 means no limit).
func (s *Store) ListRuns(limit int) ([]TaskRun, error) {
	query := `
		SELECT id, task_id, branch, status, summary, files_changed, risk_level, risk_reasons, created_at
		FROM task_runs ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// RunsForTask returns every run recorded for a task id, newest first.
// Normally at most one exists; more indicate a manually re-queued task.
func (s *Store) RunsForTask(taskID string) ([]TaskRun, error) {
	rows, err := s.db.Query(`
		SELECT id, task_id, branch, status, summary, files_changed, risk_level, risk_reasons, created_at
		FROM task_runs WHERE task_id = ? ORDER BY id DESC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query runs for %s: %w", taskID, err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// CountByStatus returns how many recorded runs ended with each status.
func (s *Store) CountByStatus() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM task_runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func scanRuns(rows *sql.Rows) ([]TaskRun, error) {
	var runs []TaskRun
	for rows.Next() {
		var run TaskRun
		var reasons string
		if err := rows.Scan(&run.ID, &run.TaskID, &run.Branch, &run.Status, &run.Summary,
			&run.FilesChanged, &run.RiskLevel, &reasons, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task run: %w", err)
		}
		if err := json.Unmarshal([]byte(reasons), &run.RiskReasons); err != nil {
			run.RiskReasons = nil
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
