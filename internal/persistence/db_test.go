package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/talgya/agentsim/internal/engine"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openTemp(t)
	id, err := db.BeginRun("life", 42, map[string]float64{"rate": 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.EndRun(id, 10, "max steps"); err != nil {
		t.Fatal(err)
	}
	r, err := db.Run(id)
	if err != nil {
		t.Fatal(err)
	}
	if r.Scenario != "life" || r.Seed != 42 || r.FinalStep.Int64 != 10 || r.Reason.String != "max steps" {
		t.Errorf("run = %+v", r)
	}
	if err := db.EndRun(uuid.New(), 1, "x"); !errors.Is(err, ErrUnknownRun) {
		t.Errorf("unknown run error = %v", err)
	}
	runs, err := db.Runs(5)
	if err != nil || len(runs) != 1 {
		t.Errorf("runs = %v, %v", runs, err)
	}
}

func TestMeta(t *testing.T) {
	db := openTemp(t)
	id, _ := db.BeginRun("walkers", 1, nil)
	if err := db.SaveMeta(id, "grid", "40x30"); err != nil {
		t.Fatal(err)
	}
	if v, err := db.GetMeta(id, "grid"); err != nil || v != "40x30" {
		t.Errorf("meta = %q, %v", v, err)
	}
}

func TestJournalFlushesEventsOnce(t *testing.T) {
	db := openTemp(t)
	sim := engine.NewGridSimulation("j", 4, 4, engine.WithSeed(1))
	eng := engine.NewEngine(sim)
	eng.MaxSteps = 3

	j, err := NewJournal(db, eng, "test", 1)
	if err != nil {
		t.Fatal(err)
	}
	eng.ReportEvery = 1
	eng.OnReport = j.Hook()
	sim.Record("test", "before start")

	if err := eng.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := j.Close("done"); err != nil {
		t.Fatal(err)
	}

	events, err := db.RecentEvents(j.RunID, 100)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[uint64]bool{}
	for _, e := range events {
		if seen[e.Seq] {
			t.Fatalf("event %d journaled twice", e.Seq)
		}
		seen[e.Seq] = true
	}
	if len(events) != 3 || events[0].Description != "before start" {
		t.Errorf("events = %+v", events)
	}

	stats, err := db.StatsHistory(j.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 3 || stats[2].Step != 3 {
		t.Errorf("stats = %+v", stats)
	}
}
