// Package engine provides the simulation state and the stepping loop that
// drives it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// State is the engine lifecycle: Created → Running → Stopped.
type State uint8

const (
	StateCreated State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", s)
}

var (
	// ErrNotCreated is returned when starting an engine twice.
	ErrNotCreated = errors.New("engine already started")
	// ErrRunning is returned by manual stepping while the loop runs.
	ErrRunning = errors.New("engine is running")
	// ErrStopped is returned by manual stepping after the engine stopped.
	ErrStopped = errors.New("engine is stopped")
)

// Engine drives a Simulation forward on one goroutine.
type Engine struct {
	Sim *Simulation

	// MaxSteps stops the loop after this many completed steps (0 = no limit).
	MaxSteps uint64
	// ReportEvery controls how often OnReport fires (0 = never).
	ReportEvery uint64

	// OnStep runs after every completed step, outside the step lock, on the
	// loop goroutine. It must not call Stop, which waits for that goroutine;
	// use Halt instead.
	OnStep func(step uint64)
	// OnReport runs every ReportEvery steps and once when the loop exits.
	// The same rule as OnStep applies.
	OnReport func(step uint64)

	mu     sync.Mutex // step lock: held while the simulation mutates
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewEngine creates an engine for sim.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{Sim: sim, ReportEvery: 100}
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the error that aborted the run, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Start spawns the stepping goroutine. It returns immediately.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateCreated {
		return ErrNotCreated
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	e.state = StateRunning
	e.Sim.freeze(true)
	e.Sim.Record(CategoryLifecycle, "simulation started")
	go e.loop(ctx)
	return nil
}

// Stop halts the loop and returns once it has exited. It is safe to call
// more than once, and on an engine that never started.
func (e *Engine) Stop() {
	e.mu.Lock()
	switch e.state {
	case StateCreated:
		e.state = StateStopped
		e.mu.Unlock()
		return
	case StateStopped:
		done := e.done
		e.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	cancel, done := e.cancel, e.done
	e.mu.Unlock()
	cancel()
	<-done
}

// Halt asks the loop to stop after the current step and returns without
// waiting. Unlike Stop it may be called from OnStep and OnReport.
func (e *Engine) Halt() {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateCreated:
		e.state = StateStopped
	case StateRunning:
		e.cancel()
	}
}

// Wait blocks until the loop exits and returns the abort error, if any.
func (e *Engine) Wait() error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}
	return e.Err()
}

// Run starts the loop and blocks until it exits.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	return e.Wait()
}

// Step advances a created engine by one step without starting the loop.
func (e *Engine) Step() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateRunning:
		return ErrRunning
	case StateStopped:
		return ErrStopped
	}
	return e.Sim.Step()
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)

	slog.Info("simulation engine started", "sim", e.Sim.Name, "step", e.Sim.StepTime(),
		"agents", len(e.Sim.agents), "delay", e.Sim.Delay)
	reason := e.run(ctx)

	e.mu.Lock()
	e.state = StateStopped
	e.Sim.freeze(false)
	step := e.Sim.StepTime()
	e.Sim.Record(CategoryLifecycle, "simulation stopped: "+reason)
	err := e.err
	e.mu.Unlock()

	if e.OnReport != nil {
		e.OnReport(step)
	}
	if err != nil {
		slog.Error("simulation aborted", "sim", e.Sim.Name, "step", humanize.Comma(int64(step)), "error", err)
		return
	}
	slog.Info("simulation engine stopped", "sim", e.Sim.Name, "steps", humanize.Comma(int64(step)), "reason", reason)
}

// run steps until cancelled, ended or failed, returning why it stopped.
func (e *Engine) run(ctx context.Context) string {
	var timer *time.Timer
	for {
		if ctx.Err() != nil {
			return "stopped"
		}

		e.mu.Lock()
		if e.Sim.Done() {
			e.mu.Unlock()
			return "end condition"
		}
		if e.MaxSteps > 0 && e.Sim.StepTime() >= e.MaxSteps {
			e.mu.Unlock()
			return "max steps"
		}
		err := e.Sim.Step()
		step := e.Sim.StepTime()
		if err != nil {
			e.err = err
		}
		delay := e.Sim.Delay
		e.mu.Unlock()

		if err != nil {
			return "error"
		}
		if e.OnStep != nil {
			e.OnStep(step)
		}
		if e.ReportEvery > 0 && step%e.ReportEvery == 0 && e.OnReport != nil {
			e.OnReport(step)
		}

		if delay <= 0 {
			continue
		}
		if timer == nil {
			timer = time.NewTimer(delay)
		} else {
			timer.Reset(delay)
		}
		select {
		case <-ctx.Done():
			timer.Stop()
			return "stopped"
		case <-timer.C:
		}
	}
}

// StepTime returns the completed step count under the step lock.
func (e *Engine) StepTime() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Sim.StepTime()
}

// Events returns recent events under the step lock.
func (e *Engine) Events(limit int) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Sim.Events(limit)
}

// EventsSince returns events after seq under the step lock.
func (e *Engine) EventsSince(seq uint64) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Sim.EventsSince(seq)
}

// Stats returns the latest statistics under the step lock.
func (e *Engine) Stats() SimStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Sim.Stats
}

// Inspect runs fn with the simulation under the step lock. fn must not keep
// references to mutable state after it returns.
func (e *Engine) Inspect(fn func(s *Simulation)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.Sim)
}
