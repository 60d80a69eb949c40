package persistence

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/agentsim/internal/engine"
)

// Journal streams one engine's events and statistics into a run.
type Journal struct {
	DB    *DB
	RunID uuid.UUID

	eng     *engine.Engine
	lastSeq uint64
}

// NewJournal begins a run for eng.
func NewJournal(db *DB, eng *engine.Engine, scenario string, seed uint64) (*Journal, error) {
	id, err := db.BeginRun(scenario, seed, eng.Sim.Properties())
	if err != nil {
		return nil, err
	}
	return &Journal{DB: db, RunID: id, eng: eng}, nil
}

// Flush appends events recorded since the last flush and the current
// statistics. It is meant to be the engine's OnReport hook.
func (j *Journal) Flush(step uint64) error {
	events := j.eng.EventsSince(j.lastSeq)
	if err := j.DB.SaveEvents(j.RunID, events); err != nil {
		return fmt.Errorf("flush events: %w", err)
	}
	if n := len(events); n > 0 {
		j.lastSeq = events[n-1].Seq
	}
	if err := j.DB.SaveStats(j.RunID, step, j.eng.Stats()); err != nil {
		return fmt.Errorf("flush stats: %w", err)
	}
	slog.Debug("journal flushed", "run", j.RunID, "step", step, "events", len(events))
	return nil
}

// Hook returns an OnReport callback that logs flush failures.
func (j *Journal) Hook() func(step uint64) {
	return func(step uint64) {
		if err := j.Flush(step); err != nil {
			slog.Error("journal flush failed", "run", j.RunID, "error", err)
		}
	}
}

// Close flushes and marks the run finished.
func (j *Journal) Close(reason string) error {
	step := j.eng.StepTime()
	if err := j.Flush(step); err != nil {
		return err
	}
	return j.DB.EndRun(j.RunID, step, reason)
}
