// Package scenarios holds the demo worlds runnable from the command line.
package scenarios

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/talgya/agentsim/internal/engine"
)

// ErrUnknownScenario is returned by Build for unregistered names.
var ErrUnknownScenario = errors.New("unknown scenario")

// Options are the run-level settings a scenario is built with.
type Options struct {
	Seed  int64
	Delay time.Duration
	// Properties override the scenario's default properties.
	Properties map[string]float64
}

// Factory builds a ready-to-run simulation.
type Factory func(opts Options) (*engine.Simulation, error)

// Scenario is a named, described factory.
type Scenario struct {
	Name        string
	Description string
	Build       Factory
}

var registry = map[string]Scenario{}

// Register adds a scenario. Empty names and nil factories are ignored.
func Register(s Scenario) {
	if s.Name == "" || s.Build == nil {
		return
	}
	registry[s.Name] = s
}

// Lookup returns a registered scenario.
func Lookup(name string) (Scenario, bool) {
	s, ok := registry[name]
	return s, ok
}

// All returns every scenario sorted by name.
func All() []Scenario {
	out := make([]Scenario, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Build constructs the named scenario.
func Build(name string, opts Options) (*engine.Simulation, error) {
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, name)
	}
	sim, err := s.Build(opts)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}
	return sim, nil
}

// simOptions turns run options into simulation options.
func (o Options) simOptions() []engine.Option {
	return []engine.Option{engine.WithSeed(o.Seed), engine.WithDelay(o.Delay)}
}

// setProperties applies defaults, then overrides.
func setProperties(sim *engine.Simulation, defaults, overrides map[string]float64) error {
	for k, v := range defaults {
		if err := sim.SetProperty(k, v); err != nil {
			return err
		}
	}
	for k, v := range overrides {
		if err := sim.SetProperty(k, v); err != nil {
			return err
		}
	}
	return nil
}
