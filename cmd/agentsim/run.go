package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/agentsim/internal/api"
	"github.com/talgya/agentsim/internal/config"
	"github.com/talgya/agentsim/internal/engine"
	"github.com/talgya/agentsim/internal/logging"
	"github.com/talgya/agentsim/internal/persistence"
	"github.com/talgya/agentsim/internal/scenarios"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "Build a scenario and run it",
		Long: `Build a scenario and step it until its end condition holds, the step
limit is reached, or the process is interrupted.

With --api the run is served over HTTP. With --paused the engine waits
for POST /api/v1/start (or manual /api/v1/step calls) instead of
starting on its own.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, args, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			paused, _ := cmd.Flags().GetBool("paused")
			if paused && !cfg.API.Enabled {
				return errors.New("--paused needs --api")
			}
			return runScenario(cmd.Context(), cfg, paused)
		},
	}

	cmd.Flags().Int64("seed", 0, "Random seed (0 draws one)")
	cmd.Flags().Uint64("steps", 0, "Stop after this many steps (0 = no limit)")
	cmd.Flags().Duration("delay", 0, "Pause between steps")
	cmd.Flags().StringArray("set", nil, "Override a scenario property, name=value (repeatable)")
	cmd.Flags().Bool("api", false, "Serve the HTTP API")
	cmd.Flags().Int("port", 0, "HTTP API port")
	cmd.Flags().Bool("paused", false, "Wait for an API start request")
	cmd.Flags().String("journal", "", "SQLite journal path")
	return cmd
}

// applyRunFlags layers explicitly set flags over the loaded config.
func applyRunFlags(cmd *cobra.Command, args []string, cfg *config.Config) error {
	if len(args) == 1 {
		cfg.Scenario = args[0]
	}
	f := cmd.Flags()
	if f.Changed("seed") {
		cfg.Seed, _ = f.GetInt64("seed")
	}
	if f.Changed("steps") {
		cfg.MaxSteps, _ = f.GetUint64("steps")
	}
	if f.Changed("delay") {
		cfg.Delay, _ = f.GetDuration("delay")
	}
	if f.Changed("api") {
		cfg.API.Enabled, _ = f.GetBool("api")
	}
	if f.Changed("port") {
		cfg.API.Port, _ = f.GetInt("port")
	}
	if f.Changed("journal") {
		cfg.Journal.Path, _ = f.GetString("journal")
	}
	sets, _ := f.GetStringArray("set")
	props, err := parseSets(sets)
	if err != nil {
		return err
	}
	if len(props) > 0 && cfg.Properties == nil {
		cfg.Properties = make(map[string]float64, len(props))
	}
	for k, v := range props {
		cfg.Properties[k] = v
	}
	return nil
}

// parseSets parses name=value property overrides.
func parseSets(sets []string) (map[string]float64, error) {
	out := make(map[string]float64, len(sets))
	for _, s := range sets {
		name, val, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("--set %q: want name=value", s)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("--set %q: %w", s, err)
		}
		out[name] = v
	}
	return out, nil
}

func runScenario(parent context.Context, cfg *config.Config, paused bool) error {
	slog.SetDefault(logging.NewLogger(cfg.Logging.Level, os.Stderr))

	sim, err := scenarios.Build(cfg.Scenario, scenarios.Options{
		Seed:       cfg.Seed,
		Delay:      cfg.Delay,
		Properties: cfg.Properties,
	})
	if err != nil {
		return err
	}
	seed := sim.Rand().Seed()
	slog.Info("scenario built", "scenario", cfg.Scenario, "seed", seed,
		"agents", len(sim.Agents()), "substrates", sim.SubstrateNames())

	eng := engine.NewEngine(sim)
	eng.MaxSteps = cfg.MaxSteps
	eng.ReportEvery = cfg.Journal.FlushEvery

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Journal ───────────────────────────────────────────────────────
	var db *persistence.DB
	var journal *persistence.Journal
	if cfg.Journal.Path != "" {
		if dir := filepath.Dir(cfg.Journal.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("journal dir: %w", err)
			}
		}
		db, err = persistence.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		journal, err = persistence.NewJournal(db, eng, cfg.Scenario, seed)
		if err != nil {
			return err
		}
		slog.Info("journal opened", "path", cfg.Journal.Path, "run", journal.RunID)
	}
	eng.OnReport = reporter(eng, journal)

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.Enabled {
		srv := &api.Server{
			Eng:           eng,
			DB:            db,
			Port:          cfg.API.Port,
			AdminKey:      cfg.API.AdminKey,
			RatePerMinute: cfg.API.RatePerMinute,
			OnShutdown:    stop,
		}
		if journal != nil {
			srv.RunID = journal.RunID
		}
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("HTTP API shutdown", "error", err)
			}
		}()
	}

	// ── Run ───────────────────────────────────────────────────────────
	start := time.Now()
	var runErr error
	if paused {
		slog.Info("waiting for start request", "port", cfg.API.Port)
		<-ctx.Done()
		eng.Stop()
		runErr = eng.Err()
	} else {
		runErr = eng.Run(ctx)
		if cfg.API.Enabled && ctx.Err() == nil {
			slog.Info("simulation finished, API still serving; interrupt to exit")
			<-ctx.Done()
		}
	}

	reason := "finished"
	switch {
	case runErr != nil:
		reason = "error"
	case ctx.Err() != nil:
		reason = "interrupted"
	}
	if journal != nil {
		if err := journal.Close(reason); err != nil {
			slog.Error("journal close failed", "error", err)
		}
	}

	snap := eng.Snapshot(engine.DefaultView)
	slog.Info("run complete",
		"scenario", cfg.Scenario,
		"steps", humanize.Comma(int64(snap.Step)),
		"agents", len(snap.Agents),
		"elapsed", humanize.RelTime(start, time.Now(), "", ""),
		"reason", reason,
	)
	logStates(snap.AgentSummary())
	return runErr
}

// reporter logs progress and flushes the journal on every report.
func reporter(eng *engine.Engine, journal *persistence.Journal) func(step uint64) {
	var flush func(uint64)
	if journal != nil {
		flush = journal.Hook()
	}
	return func(step uint64) {
		st := eng.Stats()
		slog.Info("progress",
			"step", humanize.Comma(int64(step)),
			"agents", st.Agents,
			"placed", st.Placed,
			"events", humanize.Comma(int64(st.Events)),
			"step_time", st.StepDuration,
		)
		if flush != nil {
			flush(step)
		}
	}
}

func logStates(counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	states := make([]string, 0, len(counts))
	for s := range counts {
		states = append(states, s)
	}
	sort.Strings(states)
	args := make([]any, 0, 2*len(states))
	for _, s := range states {
		args = append(args, s, counts[s])
	}
	slog.Info("final states", args...)
}
