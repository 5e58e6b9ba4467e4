// Package history keeps an append-only log of runs in SQLite. Records are
// audit data only; nothing reads them back to decide what to execute.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chojs23/runme/internal/domain"
)

// Run is one recorded invocation
type Run struct {
	ID            string        `json:"id"`
	Document      string        `json:"document"`
	Sandbox       string        `json:"sandbox"`
	StartedAt     time.Time     `json:"started_at"`
	DurationMS    int64         `json:"duration_ms"`
	ExitCode      int           `json:"exit_code"`
	Total         int           `json:"total"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	Skipped       int           `json:"skipped"`
	SandboxErrors int           `json:"sandbox_errors"`
	Interrupted   bool          `json:"interrupted"`
	Blocks        []BlockRecord `json:"blocks,omitempty"`
}

// BlockRecord is the stored outcome of one block within a run
type BlockRecord struct {
	BlockID    string        `json:"block_id"`
	Name       string        `json:"name,omitempty"`
	Status     domain.Status `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	Lines      int           `json:"lines"`
	DurationMS int64         `json:"duration_ms"`
}

// Store provides SQLite-backed run history
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a finished run and its block results
func (s *Store) Record(report *domain.RunReport, exitCode int) (*Run, error) {
	sum := report.Summary()
	run := &Run{
		ID:            uuid.NewString(),
		Document:      report.Document,
		Sandbox:       report.Sandbox,
		StartedAt:     report.StartedAt.UTC(),
		DurationMS:    sum.DurationMS,
		ExitCode:      exitCode,
		Total:         sum.Total,
		Succeeded:     sum.Succeeded,
		Failed:        sum.Failed,
		Skipped:       sum.Skipped,
		SandboxErrors: sum.SandboxErrors,
		Interrupted:   report.Interrupted,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, document, sandbox, started_at, duration_ms, exit_code, total, succeeded, failed, skipped, sandbox_errors, interrupted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.Document, run.Sandbox, run.StartedAt, run.DurationMS, run.ExitCode,
		run.Total, run.Succeeded, run.Failed, run.Skipped, run.SandboxErrors, run.Interrupted,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}

	for i, r := range report.Results {
		rec := BlockRecord{
			BlockID:    r.BlockID,
			Name:       r.Name,
			Status:     r.Status,
			Reason:     r.Reason,
			Lines:      len(r.LineResults),
			DurationMS: r.DurationMS,
		}
		_, err := tx.Exec(`
			INSERT INTO block_results (run_id, position, block_id, name, status, reason, lines, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, i, rec.BlockID, rec.Name, string(rec.Status), rec.Reason, rec.Lines, rec.DurationMS)
		if err != nil {
			return nil, fmt.Errorf("inserting block %s: %w", r.BlockID, err)
		}
		run.Blocks = append(run.Blocks, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns everything.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT id, document, sandbox, started_at, duration_ms, exit_code, total, succeeded, failed, skipped, sandbox_errors, interrupted
		FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run and its block results
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, document, sandbox, started_at, duration_ms, exit_code, total, succeeded, failed, skipped, sandbox_errors, interrupted
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT block_id, name, status, reason, lines, duration_ms
		FROM block_results WHERE run_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rec BlockRecord
		var name, reason sql.NullString
		var status string
		if err := rows.Scan(&rec.BlockID, &name, &status, &reason, &rec.Lines, &rec.DurationMS); err != nil {
			return nil, err
		}
		rec.Name = name.String
		rec.Reason = reason.String
		rec.Status = domain.Status(status)
		run.Blocks = append(run.Blocks, rec)
	}
	return run, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	err := s.Scan(
		&run.ID, &run.Document, &run.Sandbox, &run.StartedAt, &run.DurationMS, &run.ExitCode,
		&run.Total, &run.Succeeded, &run.Failed, &run.Skipped, &run.SandboxErrors, &run.Interrupted,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
