// Package history keeps a durable journal of generation runs in SQLite so
// past renders can be inspected after the fact.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applyMigrations(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            mode TEXT NOT NULL,
            total INTEGER NOT NULL,
            completed INTEGER NOT NULL DEFAULT 0,
            failed INTEGER NOT NULL DEFAULT 0,
            started_at TEXT NOT NULL,
            finished_at TEXT
        )`,
		`CREATE TABLE IF NOT EXISTS run_chunks (
            run_id TEXT NOT NULL REFERENCES runs(id),
            chunk_id INTEGER NOT NULL,
            status TEXT NOT NULL,
            detail TEXT,
            recorded_at TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_run_chunks_run ON run_chunks(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// BeginRun opens a journal entry for a generation run and returns its id.
func (s *Store) BeginRun(mode string, total int) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO runs (id, mode, total, started_at) VALUES (?, ?, ?, ?)`,
		runID, mode, total, timestamp())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// RecordChunk journals one chunk outcome within a run.
func (s *Store) RecordChunk(runID string, chunkID int, status, detail string) error {
	if runID == "" {
		return nil
	}
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO run_chunks (run_id, chunk_id, status, detail, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		runID, chunkID, status, detail, timestamp())
	if err != nil {
		return fmt.Errorf("insert run chunk: %w", err)
	}
	return nil
}

// FinishRun closes a run with its final counters.
func (s *Store) FinishRun(runID string, completed, failed int) error {
	if runID == "" {
		return nil
	}
	_, err := s.db.ExecContext(context.Background(),
		`UPDATE runs SET completed = ?, failed = ?, finished_at = ? WHERE id = ?`,
		completed, failed, timestamp(), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Run is one journaled generation run.
type Run struct {
	ID         string
	Mode       string
	Total      int
	Completed  int
	Failed     int
	StartedAt  string
	FinishedAt string
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, total, completed, failed, started_at, COALESCE(finished_at, '')
         FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Mode, &run.Total, &run.Completed,
			&run.Failed, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ChunkEvent is one journaled chunk outcome.
type ChunkEvent struct {
	ChunkID    int
	Status     string
	Detail     string
	RecordedAt string
}

// RunChunks returns every chunk outcome for a run in record order.
func (s *Store) RunChunks(ctx context.Context, runID string) ([]ChunkEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, status, COALESCE(detail, ''), recorded_at
         FROM run_chunks WHERE run_id = ? ORDER BY recorded_at, chunk_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run chunks: %w", err)
	}
	defer rows.Close()

	var events []ChunkEvent
	for rows.Next() {
		var event ChunkEvent
		if err := rows.Scan(&event.ChunkID, &event.Status, &event.Detail, &event.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan run chunk: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
