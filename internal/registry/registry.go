// Package registry keeps a sqlite log of training runs.
package registry

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	// sqlite serializes writers anyway; the deadlock detector flags
	// callers that forget to close a Rows.
	sync "github.com/sasha-s/go-deadlock"
)

// ErrNotFound is returned by Get for unknown run IDs.
var ErrNotFound = errors.New("registry: run not found")

// Run is one finished training run.
type Run struct {
	ID             string           `json:"id"`
	Architecture   string           `json:"architecture"`
	Steps          int              `json:"steps"`
	BatchSize      int              `json:"batch_size"`
	Accuracy       float64          `json:"accuracy"`
	ExportDir      string           `json:"export_dir"`
	StartedAt      time.Time        `json:"started_at"`
	Duration       time.Duration    `json:"duration"`
	PicPredictions map[string][]int `json:"picPredictions"`
}

// Registry is a handle to the run database.
type Registry struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (and creates if needed) the database at path. Use
// ":memory:" for a throwaway registry.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	// A pooled :memory: database would give every connection its own copy.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		architecture TEXT,
		steps INTEGER,
		batch_size INTEGER,
		accuracy REAL,
		export_dir TEXT,
		-- unix nanoseconds
		started_at INTEGER,
		duration_ms INTEGER,
		-- JSON object: category -> predicted digits
		pic_predictions TEXT
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: create table: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close closes the database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Record stores a run.
func (r *Registry) Record(run Run) error {
	preds, err := json.Marshal(run.PicPredictions)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.db.Exec(
		`INSERT INTO runs (id, architecture, steps, batch_size, accuracy, export_dir, started_at, duration_ms, pic_predictions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Architecture, run.Steps, run.BatchSize, run.Accuracy, run.ExportDir,
		run.StartedAt.UnixNano(), run.Duration.Milliseconds(), string(preds),
	)
	if err != nil {
		return fmt.Errorf("registry: insert run %s: %w", run.ID, err)
	}
	return nil
}

const selectRuns = `SELECT id, architecture, steps, batch_size, accuracy, export_dir, started_at, duration_ms, pic_predictions FROM runs`

// List returns the most recent runs first. limit <= 0 returns all runs.
func (r *Registry) List(limit int) ([]Run, error) {
	q := selectRuns + ` ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns the run with the given ID.
func (r *Registry) Get(id string) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, err := scanRun(r.db.QueryRow(selectRuns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run        Run
		startedAt  int64
		durationMs int64
		preds      string
	)
	err := s.Scan(&run.ID, &run.Architecture, &run.Steps, &run.BatchSize, &run.Accuracy,
		&run.ExportDir, &startedAt, &durationMs, &preds)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = time.Unix(0, startedAt)
	run.Duration = time.Duration(durationMs) * time.Millisecond
	if err := json.Unmarshal([]byte(preds), &run.PicPredictions); err != nil {
		return Run{}, fmt.Errorf("registry: run %s predictions: %w", run.ID, err)
	}
	return run, nil
}
