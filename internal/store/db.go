package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"visits-pipeline/internal/model"
)

// Run is a row of the runs table
type Run struct {
	ID        string
	Config    string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DB records run history in SQLite
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the run history database at dbPath
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exists
	runTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		config TEXT,
		status TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);
	`
	errorTable := `
	CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		error_message TEXT,
		created_at DATETIME
	);
	`
	stageTable := `
	CREATE TABLE IF NOT EXISTS stage_progress (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		stage TEXT,
		status TEXT,
		start_time DATETIME,
		end_time DATETIME,
		records_processed INTEGER,
		worker_count INTEGER
	);
	`
	exportTable := `
	CREATE TABLE IF NOT EXISTS published_summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		type TEXT,
		path TEXT,
		record_count INTEGER,
		created BOOLEAN,
		published_at DATETIME
	);
	`

	for _, stmt := range []string{runTable, errorTable, stageTable, exportTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	return &DB{db: db}, nil
}

// Close closes the database
func (s *DB) Close() error {
	return s.db.Close()
}

// SaveRun stores a new run with its configuration
func (s *DB) SaveRun(runID string, config interface{}) error {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(`INSERT INTO runs (id, config, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(configJSON), model.StatusRunning, now, now)
	return err
}

// UpdateRunStatus updates run status
func (s *DB) UpdateRunStatus(runID string, status string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SaveRunError records an error for a run
func (s *DB) SaveRunError(runID string, err error) error {
	if err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := s.db.Exec(`INSERT INTO run_errors (run_id, error_message, created_at) VALUES (?, ?, ?)`,
		runID, err.Error(), now)
	return e
}

// SaveStage records the outcome of one stage
func (s *DB) SaveStage(runID string, m model.StageMetrics) error {
	_, err := s.db.Exec(`INSERT INTO stage_progress (run_id, stage, status, start_time, end_time, records_processed, worker_count) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, m.StageName, m.Status, m.StartTime.UTC(), m.EndTime.UTC(), m.RecordsProcessed, m.WorkerCount)
	return err
}

// SaveExport records a published summary
func (s *DB) SaveExport(runID string, r model.ExportResult) error {
	_, err := s.db.Exec(`INSERT INTO published_summaries (run_id, type, path, record_count, created, published_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, r.Type, r.Path, r.RecordCount, r.Created, r.Timestamp.UTC())
	return err
}

// GetRun fetches a run by ID
func (s *DB) GetRun(runID string) (Run, error) {
	var run Run
	err := s.db.QueryRow(`SELECT id, config, status, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&run.ID, &run.Config, &run.Status, &run.CreatedAt, &run.UpdatedAt)
	return run, err
}

// RunErrors returns the error messages recorded for a run
func (s *DB) RunErrors(runID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT error_message FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// Stages returns the stage rows recorded for a run
func (s *DB) Stages(runID string) ([]model.StageMetrics, error) {
	rows, err := s.db.Query(`SELECT stage, status, records_processed, worker_count FROM stage_progress WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stages []model.StageMetrics
	for rows.Next() {
		var m model.StageMetrics
		if err := rows.Scan(&m.StageName, &m.Status, &m.RecordsProcessed, &m.WorkerCount); err != nil {
			return nil, err
		}
		stages = append(stages, m)
	}
	return stages, rows.Err()
}

// Exports returns the published summaries recorded for a run
func (s *DB) Exports(runID string) ([]model.ExportResult, error) {
	rows, err := s.db.Query(`SELECT type, path, record_count, created FROM published_summaries WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.ExportResult
	for rows.Next() {
		var r model.ExportResult
		if err := rows.Scan(&r.Type, &r.Path, &r.RecordCount, &r.Created); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Discard is a recorder that keeps nothing
type Discard struct{}

// SaveRun does nothing
func (Discard) SaveRun(string, interface{}) error { return nil }

// UpdateRunStatus does nothing
func (Discard) UpdateRunStatus(string, string) error { return nil }

// SaveRunError does nothing
func (Discard) SaveRunError(string, error) error { return nil }

// SaveStage does nothing
func (Discard) SaveStage(string, model.StageMetrics) error { return nil }

// SaveExport does nothing
func (Discard) SaveExport(string, model.ExportResult) error { return nil }
