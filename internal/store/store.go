package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// RunRecord is one row of run history.
type RunRecord struct {
	ID        string
	Workflow  string
	Status    string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StepRecord is one executed step within a run.
type StepRecord struct {
	RunID      string
	Idx        int
	Name       string
	Phase      string
	Status     string
	LogPath    string
	FinishedAt time.Time
}

// SQLiteStore persists run history in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func Open(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id         TEXT PRIMARY KEY,
			workflow   TEXT NOT NULL,
			status     TEXT NOT NULL,
			error      TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS steps (
			run_id      TEXT NOT NULL REFERENCES runs(id),
			idx         INTEGER NOT NULL,
			name        TEXT NOT NULL,
			phase       TEXT NOT NULL,
			status      TEXT NOT NULL,
			log_path    TEXT NOT NULL DEFAULT '',
			finished_at TIMESTAMP NOT NULL,
			PRIMARY KEY (run_id, idx)
		);
	`)
	return errors.Wrap(err, "migrate")
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateRun inserts a new run in the given initial status.
func (s *SQLiteStore) CreateRun(ctx context.Context, id, workflow, status string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, workflow, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, workflow, status, now, now)
	return errors.Wrap(err, "insert run")
}

// SetStatus updates a run's status and error message.
func (s *SQLiteStore) SetStatus(ctx context.Context, id, status, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC(), id)
	return errors.Wrap(err, "update run status")
}

// RecordStep saves the outcome of one executed step.
func (s *SQLiteStore) RecordStep(ctx context.Context, rec StepRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO steps (run_id, idx, name, phase, status, log_path, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Idx, rec.Name, rec.Phase, rec.Status, rec.LogPath, time.Now().UTC())
	return errors.Wrap(err, "insert step")
}

// GetRun returns one run, or nil if not found.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workflow, status, error, created_at, updated_at FROM runs WHERE id = ?`, id)
	var r RunRecord
	err := row.Scan(&r.ID, &r.Workflow, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan run")
	}
	return &r, nil
}

// ListRuns returns the newest runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow, status, error, created_at, updated_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Workflow, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListSteps returns a run's steps in execution order.
func (s *SQLiteStore) ListSteps(ctx context.Context, runID string) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, idx, name, phase, status, log_path, finished_at
		 FROM steps WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query steps")
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var r StepRecord
		if err := rows.Scan(&r.RunID, &r.Idx, &r.Name, &r.Phase, &r.Status, &r.LogPath, &r.FinishedAt); err != nil {
			return nil, errors.Wrap(err, "scan step")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AcquireQueued claims the oldest queued run for execution, or returns
// nil when nothing is pending. SQLite serializes writers, so the
// update-then-check pattern is enough for the single worker loop.
func (s *SQLiteStore) AcquireQueued(ctx context.Context, nextStatus string) (*RunRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, workflow, status, error, created_at, updated_at
		 FROM runs WHERE status = 'queued' ORDER BY created_at LIMIT 1`)
	var r RunRecord
	err = row.Scan(&r.ID, &r.Workflow, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan queued run")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		nextStatus, time.Now().UTC(), r.ID); err != nil {
		return nil, errors.Wrap(err, "claim run")
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit claim")
	}
	r.Status = nextStatus
	return &r, nil
}
