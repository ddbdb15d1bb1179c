package store

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"streamsynth/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	definition TEXT,
	status TEXT,
	processed INTEGER DEFAULT 0,
	filtered INTEGER DEFAULT 0,
	errors INTEGER DEFAULT 0,
	spillovers INTEGER DEFAULT 0,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS run_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	kind TEXT,
	error_message TEXT,
	event TEXT,
	created_at DATETIME
);
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	payload TEXT,
	created_at DATETIME
);
`

// Store is a SQLite database holding run history and sink output.
type Store struct {
	db   *sql.DB
	once sync.Once
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "create directory for %s", dbPath)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", dbPath)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	return &Store{db: db}, nil
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() { err = s.db.Close() })
	return err
}

// SaveRun stores a new run
func (s *Store) SaveRun(runID, definition string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`INSERT INTO runs (id, definition, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, definition, "pending", now, now)
	return errors.Wrap(err, "save run")
}

// UpdateRunStatus updates run status
func (s *Store) UpdateRunStatus(runID, status string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return errors.Wrap(err, "update run status")
}

// SaveRunSummary stores the final counters and status of a run
func (s *Store) SaveRunSummary(runID string, stats model.RunStats) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`UPDATE runs SET status = ?, processed = ?, filtered = ?, errors = ?, spillovers = ?, updated_at = ? WHERE id = ?`,
		stats.Status, stats.Processed, stats.Filtered, stats.Errors, stats.Spillovers, now, runID)
	return errors.Wrap(err, "save run summary")
}

// SaveRunError records an error for a run
func (s *Store) SaveRunError(runID string, detail model.ErrorDetail) error {
	var event []byte
	if detail.Event != nil {
		// Events that cannot be encoded are stored without payload.
		event, _ = json.Marshal(detail.Event)
	}
	ts := detail.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO run_errors (run_id, kind, error_message, event, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, detail.Kind, detail.Message, string(event), ts.UTC())
	return errors.Wrap(err, "save run error")
}

// ListRuns returns all runs, newest first
func (s *Store) ListRuns() ([]model.RunRecord, error) {
	rows, err := s.db.Query(`SELECT id, definition, status, processed, filtered, errors, spillovers, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "list runs")
}

// GetRun fetches a single run
func (s *Store) GetRun(runID string) (model.RunRecord, error) {
	row := s.db.QueryRow(`SELECT id, definition, status, processed, filtered, errors, spillovers, created_at, updated_at FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Cause(err) == sql.ErrNoRows {
		return model.RunRecord{}, ErrNotFound
	}
	return run, err
}

// GetRunErrors returns the errors recorded for a run, oldest first
func (s *Store) GetRunErrors(runID string) ([]model.ErrorDetail, error) {
	rows, err := s.db.Query(`SELECT kind, error_message, event, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "get run errors")
	}
	defer rows.Close()

	var out []model.ErrorDetail
	for rows.Next() {
		var (
			d     model.ErrorDetail
			event sql.NullString
		)
		if err := rows.Scan(&d.Kind, &d.Message, &event, &d.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scan run error")
		}
		if event.Valid && event.String != "" {
			var ev interface{}
			if json.Unmarshal([]byte(event.String), &ev) == nil {
				d.Event = ev
			}
		}
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "get run errors")
}

// SaveEvent stores one event payload as JSON
func (s *Store) SaveEvent(ev model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	_, err = s.db.Exec(`INSERT INTO events (payload, created_at) VALUES (?, ?)`, string(payload), time.Now().UTC())
	return errors.Wrap(err, "save event")
}

// ListEvents returns every stored event, oldest first
func (s *Store) ListEvents() ([]model.Event, error) {
	rows, err := s.db.Query(`SELECT payload FROM events ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		var ev interface{}
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, errors.Wrap(err, "decode event")
		}
		out = append(out, ev)
	}
	return out, errors.Wrap(rows.Err(), "list events")
}

// CountEvents returns the number of stored events
func (s *Store) CountEvents() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	return n, errors.Wrap(err, "count events")
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (model.RunRecord, error) {
	var (
		run        model.RunRecord
		definition sql.NullString
	)
	err := row.Scan(&run.ID, &definition, &run.Status, &run.Processed, &run.Filtered, &run.Errors, &run.Spillovers, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return model.RunRecord{}, errors.Wrap(err, "scan run")
	}
	run.Definition = definition.String
	return run, nil
}
