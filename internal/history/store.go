// Package history persists a local record of tfci runs in SQLite.
//
// The store is advisory: it powers `tfci history` and nothing else, so
// every failure here is logged and swallowed by callers rather than
// affecting the run outcome.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store provides persistent storage for run records.
type Store struct {
	db *sql.DB
}

// Run is one recorded invocation.
type Run struct {
	ID            string
	Mode          string
	Folder        string
	Outcome       string // success, failure
	Detail        string
	DeltaAbsolute float64
	Duration      time.Duration
	CreatedAt     time.Time
}

// NewStore opens (or creates) the run database under dataPath.
func NewStore(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataPath, "tfci.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			folder TEXT NOT NULL,
			outcome TEXT NOT NULL,
			detail TEXT,
			delta_absolute REAL DEFAULT 0,
			duration_ms INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_mode ON runs(mode)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Record inserts a run record.
func (s *Store) Record(ctx context.Context, run Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, folder, outcome, detail, delta_absolute, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Mode, run.Folder, run.Outcome, run.Detail,
		run.DeltaAbsolute, run.Duration.Milliseconds(), run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, folder, outcome, detail, delta_absolute, duration_ms, created_at
		 FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var durationMS int64
		if err := rows.Scan(&run.ID, &run.Mode, &run.Folder, &run.Outcome,
			&run.Detail, &run.DeltaAbsolute, &durationMS, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
