// Package recorder persists spikes to SQLite. Each simulation run gets its
// own row in the runs table, identified by a UUID, with its spikes appended
// in delivery batches. WAL mode keeps writers off the readers' path, so a
// run can be inspected while the simulation is still producing.
package recorder

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"

	"github.com/spikesim/spikesim/sim"
)

// Store manages all SQLite operations for spike recording.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database and initializes the schema.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		seed       INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS spikes (
		id     INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		source INTEGER NOT NULL,
		time   REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_spikes_run ON spikes(run_id, time);
	CREATE INDEX IF NOT EXISTS idx_spikes_source ON spikes(run_id, source, time);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Run records the spikes of one simulation run.
type Run struct {
	store *Store
	id    string
	err   error
}

// ID returns the run's UUID.
func (r *Run) ID() string { return r.id }

// NewRun registers a new run and returns its recording handle.
func (s *Store) NewRun(seed int64) (*Run, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.Exec(`INSERT INTO runs (id, seed, started_at) VALUES (?, ?, ?)`, id, seed, now); err != nil {
		return nil, fmt.Errorf("register run: %w", err)
	}
	return &Run{store: s, id: id}, nil
}

// Callback returns a spike export callback that appends every batch to the
// run. Write failures are remembered and surfaced by Err; the simulation's
// spike callbacks have no error channel of their own.
func (r *Run) Callback() sim.SpikeExportFunc {
	return func(spikes []sim.Spike) {
		if r.err != nil || len(spikes) == 0 {
			return
		}
		if err := r.append(spikes); err != nil {
			r.err = err
			logrus.Errorf("recorder: run %s: %v", r.id, err)
		}
	}
}

func (r *Run) append(spikes []sim.Spike) error {
	tx, err := r.store.db.Begin()
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO spikes (run_id, source, time) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, s := range spikes {
		if _, err := stmt.Exec(r.id, int64(s.Source), float64(s.Time)); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert spike: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Err returns the first write failure seen by the run's callback, if any.
func (r *Run) Err() error { return r.err }

// Spikes returns the run's recorded spikes ordered by time then source.
func (s *Store) Spikes(runID string) ([]sim.Spike, error) {
	rows, err := s.db.Query(`SELECT source, time FROM spikes WHERE run_id = ? ORDER BY time, source`, runID)
	if err != nil {
		return nil, fmt.Errorf("query spikes: %w", err)
	}
	defer rows.Close()
	var out []sim.Spike
	for rows.Next() {
		var source int64
		var t float64
		if err := rows.Scan(&source, &t); err != nil {
			return nil, fmt.Errorf("scan spike: %w", err)
		}
		out = append(out, sim.Spike{Source: sim.GID(source), Time: sim.TimeType(t)})
	}
	return out, rows.Err()
}

// SpikeCount returns how many spikes the run recorded.
func (s *Store) SpikeCount(runID string) (uint64, error) {
	var n uint64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM spikes WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count spikes: %w", err)
	}
	return n, nil
}
