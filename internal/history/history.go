// Package history persists a durable record of optimization runs in SQLite,
// so finished runs can be listed and compared after their run directories
// are cleaned up.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	run_dir      TEXT NOT NULL,
	netlist_path TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	best_score   REAL
);

CREATE TABLE IF NOT EXISTS iterations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	iteration  INTEGER NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	score      REAL NOT NULL DEFAULT 0,
	best_index INTEGER,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_iterations_run ON iterations(run_id, iteration);
`

// Store records runs and their iterations.
type Store struct {
	db *sql.DB
}

// Run is one row of the runs table.
type Run struct {
	ID          string
	RunDir      string
	NetlistPath string
	StartedAt   time.Time
	CompletedAt *time.Time
	BestScore   *float64
}

// Iteration is one row of the iterations table.
type Iteration struct {
	RunID     string
	Iteration int
	Error     string
	Score     float64
	BestIndex *int
	CreatedAt time.Time
}

// New opens (creating if needed) the history database at path and
// bootstraps the schema. WAL mode keeps concurrent readers cheap.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// CreateRun registers a new run.
func (s *Store) CreateRun(ctx context.Context, id, runDir, netlistPath string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, run_dir, netlist_path, started_at) VALUES (?, ?, ?, ?)`,
		id, runDir, netlistPath, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create run record: %w", err)
	}
	return nil
}

// RecordIteration appends one iteration's summary. bestIndex may be nil when
// the iteration ended before ranking.
func (s *Store) RecordIteration(ctx context.Context, runID string, iteration int, errorTag string, score float64, bestIndex *int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO iterations (run_id, iteration, error, score, best_index, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, iteration, errorTag, score, bestIndex, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record iteration: %w", err)
	}
	return nil
}

// CompleteRun marks a run finished with its best score.
func (s *Store) CompleteRun(ctx context.Context, runID string, bestScore float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET completed_at = ?, best_score = ? WHERE id = ?`,
		time.Now().UTC(), bestScore, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run record: %w", err)
	}
	return nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_dir, netlist_path, started_at, completed_at, best_score FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var completedAt sql.NullTime
		var bestScore sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.RunDir, &r.NetlistPath, &r.StartedAt, &completedAt, &bestScore); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if completedAt.Valid {
			r.CompletedAt = &completedAt.Time
		}
		if bestScore.Valid {
			r.BestScore = &bestScore.Float64
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetIterations returns a run's iterations in order.
func (s *Store) GetIterations(ctx context.Context, runID string) ([]*Iteration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, iteration, error, score, best_index, created_at FROM iterations WHERE run_id = ? ORDER BY iteration ASC`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query iterations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var iters []*Iteration
	for rows.Next() {
		it := &Iteration{}
		var bestIndex sql.NullInt64
		if err := rows.Scan(&it.RunID, &it.Iteration, &it.Error, &it.Score, &bestIndex, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan iteration: %w", err)
		}
		if bestIndex.Valid {
			idx := int(bestIndex.Int64)
			it.BestIndex = &idx
		}
		iters = append(iters, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating iterations: %w", err)
	}
	return iters, nil
}
