// Package persistence provides a SQLite run journal: every run gets a row,
// and its events and periodic step statistics are appended as it goes.
// Simulation state itself is never saved or restored.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/agentsim/internal/engine"
)

// ErrUnknownRun is returned for a run ID with no journal row.
var ErrUnknownRun = errors.New("unknown run")

// DB wraps a SQLite connection holding the run journal.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		seed INTEGER NOT NULL,
		properties_json TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		final_step INTEGER,
		reason TEXT
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		step INTEGER NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL,
		at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS step_stats (
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		placed INTEGER NOT NULL,
		beacons INTEGER NOT NULL,
		emissions INTEGER NOT NULL,
		events INTEGER NOT NULL,
		step_ns INTEGER NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (run_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, seq);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is one journal row.
type Run struct {
	ID         string         `db:"id" json:"id"`
	Scenario   string         `db:"scenario" json:"scenario"`
	Seed       int64          `db:"seed" json:"seed"`
	Properties string         `db:"properties_json" json:"properties"`
	StartedAt  int64          `db:"started_at" json:"started_at"`
	EndedAt    sql.NullInt64  `db:"ended_at" json:"-"`
	FinalStep  sql.NullInt64  `db:"final_step" json:"-"`
	Reason     sql.NullString `db:"reason" json:"-"`
}

// StepStat is one periodic statistics row.
type StepStat struct {
	Step      uint64 `db:"step" json:"step"`
	Agents    int    `db:"agents" json:"agents"`
	Placed    int    `db:"placed" json:"placed"`
	Beacons   int    `db:"beacons" json:"beacons"`
	Emissions int    `db:"emissions" json:"emissions"`
	Events    uint64 `db:"events" json:"events"`
	StepNanos int64  `db:"step_ns" json:"step_ns"`
}

type eventRow struct {
	Seq         uint64 `db:"seq"`
	Step        uint64 `db:"step"`
	Category    string `db:"category"`
	Description string `db:"description"`
	At          int64  `db:"at"`
}

// BeginRun creates a run row and returns its ID.
func (db *DB) BeginRun(scenario string, seed uint64, props map[string]float64) (uuid.UUID, error) {
	id := uuid.New()
	data, err := json.Marshal(props)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode properties: %w", err)
	}
	_, err = db.conn.Exec(
		"INSERT INTO runs (id, scenario, seed, properties_json, started_at) VALUES (?, ?, ?, ?, ?)",
		id.String(), scenario, int64(seed), string(data), time.Now().UnixNano(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	slog.Info("journal run started", "run", id, "scenario", scenario)
	return id, nil
}

// EndRun marks a run finished.
func (db *DB) EndRun(id uuid.UUID, finalStep uint64, reason string) error {
	res, err := db.conn.Exec(
		"UPDATE runs SET ended_at = ?, final_step = ?, reason = ? WHERE id = ?",
		time.Now().UnixNano(), int64(finalStep), reason, id.String(),
	)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY started_at DESC LIMIT ?", limit)
	return runs, err
}

// Run returns one run.
func (db *DB) Run(id uuid.UUID) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	return r, err
}

// SaveEvents appends events to a run.
func (db *DB) SaveEvents(id uuid.UUID, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, seq, step, category, description, at) VALUES (?, ?, ?, ?, ?, ?)",
			id.String(), e.Seq, e.Step, e.Category, e.Description, e.Time.UnixNano(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent events of a run, oldest first.
func (db *DB) RecentEvents(id uuid.UUID, limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		"SELECT seq, step, category, description, at FROM events WHERE run_id = ? ORDER BY seq DESC LIMIT ?",
		id.String(), limit,
	)
	if err != nil {
		return nil, err
	}
	events := make([]engine.Event, len(rows))
	for i, r := range rows {
		events[len(rows)-1-i] = engine.Event{
			Seq:         r.Seq,
			Step:        r.Step,
			Category:    r.Category,
			Description: r.Description,
			Time:        time.Unix(0, r.At),
		}
	}
	return events, nil
}

// SaveStats records statistics for a step. Saving the same step again
// replaces the row.
func (db *DB) SaveStats(id uuid.UUID, step uint64, st engine.SimStats) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO step_stats
		(run_id, step, agents, placed, beacons, emissions, events, step_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), step, st.Agents, st.Placed, st.Beacons, st.Emissions, st.Events, st.StepDuration.Nanoseconds(),
	)
	return err
}

// StatsHistory returns a run's statistics rows in step order.
func (db *DB) StatsHistory(id uuid.UUID) ([]StepStat, error) {
	var out []StepStat
	err := db.conn.Select(&out,
		"SELECT step, agents, placed, beacons, emissions, events, step_ns FROM step_stats WHERE run_id = ? ORDER BY step",
		id.String(),
	)
	return out, err
}

// SaveMeta stores a key-value pair for a run.
func (db *DB) SaveMeta(id uuid.UUID, key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (run_id, key, value) VALUES (?, ?, ?)",
		id.String(), key, value,
	)
	return err
}

// GetMeta retrieves a run metadata value.
func (db *DB) GetMeta(id uuid.UUID, key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE run_id = ? AND key = ?", id.String(), key)
	return value, err
}
