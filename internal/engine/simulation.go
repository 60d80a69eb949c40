// Simulation ties together substrates, agents, beacons and patches and
// advances them one step at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/talgya/agentsim/internal/agents"
	"github.com/talgya/agentsim/internal/entropy"
	"github.com/talgya/agentsim/internal/geo"
	"github.com/talgya/agentsim/internal/grid"
	"github.com/talgya/agentsim/internal/logging"
	"github.com/talgya/agentsim/internal/network"
	"github.com/talgya/agentsim/internal/signal"
)

// DefaultUniverse is the substrate name of a grid universe.
const DefaultUniverse = "universe"

// DefaultEventCapacity bounds the in-memory event log.
const DefaultEventCapacity = 1000

var (
	// ErrMissingProperty is returned when reading an unset property.
	ErrMissingProperty = errors.New("missing property")
	// ErrPropertiesFrozen is returned when setting a property while running.
	ErrPropertiesFrozen = errors.New("properties are read-only while running")
	// ErrUnknownSubstrate is returned for an unregistered substrate name.
	ErrUnknownSubstrate = errors.New("unknown substrate")
	// ErrDuplicateSubstrate is returned when a substrate name is taken.
	ErrDuplicateSubstrate = errors.New("duplicate substrate")
	// ErrDuplicateAgent is returned when adding an agent twice.
	ErrDuplicateAgent = errors.New("agent already added")
)

// Event categories.
const (
	CategoryTransition = "transition"
	CategoryCollision  = "collision"
	CategoryWarp       = "warp"
	CategoryEmit       = "emit"
	CategoryLifecycle  = "lifecycle"
)

// Event is a notable occurrence in the simulation.
type Event struct {
	Seq         uint64    `json:"seq"`
	Step        uint64    `json:"step"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Time        time.Time `json:"time"`
}

// SimStats tracks aggregate statistics, refreshed after every step.
type SimStats struct {
	Agents       int           `json:"agents"`
	Placed       int           `json:"placed"`
	Beacons      int           `json:"beacons"`
	Emissions    int           `json:"emissions"`
	Events       uint64        `json:"events"`
	StepDuration time.Duration `json:"step_duration"`
}

// Patch is an environment rule applied to every cell of a substrate each
// step, after the agents have moved. Patch writes are buffered like agent
// writes, so reads see the state published after the agent pass.
type Patch struct {
	Name      string
	Substrate string
	Cell      func(g *grid.Grid, x, y int) error
}

// EndCondition stops a running engine when it returns true.
type EndCondition func(s *Simulation) bool

// Option configures a Simulation.
type Option func(*Simulation)

// WithSeed seeds the random source. Zero draws a random seed.
func WithSeed(seed int64) Option {
	return func(s *Simulation) { s.rng = entropy.New(seed) }
}

// WithDelay sets the pause after every step.
func WithDelay(d time.Duration) Option {
	return func(s *Simulation) { s.Delay = d }
}

// WithEventCapacity bounds the event log.
func WithEventCapacity(n int) Option {
	return func(s *Simulation) {
		if n > 0 {
			s.eventCap = n
		}
	}
}

// Simulation holds the complete world state. It is not safe for concurrent
// use; the Engine serializes access through its step lock.
type Simulation struct {
	Name  string
	Delay time.Duration

	// EndCondition, when set, is checked before every step.
	EndCondition EndCondition

	universe   string
	geoMap     *geo.Map
	substrates map[string]*grid.Grid
	subOrder   []string

	agents        []*agents.Agent
	index         map[agents.AgentID]*agents.Agent
	pendingAdd    []*agents.Agent
	pendingRemove []*agents.Agent
	spawner       *agents.Spawner

	beacons   []signal.Beacon
	emissions []signal.Beacon
	emitted   []signal.Beacon

	patches    []Patch
	properties map[string]float64
	frozen     bool

	topology network.Topology

	events   []Event
	eventCap int
	eventSeq uint64

	rng      *entropy.Source
	stepTime uint64
	stepping bool

	Stats SimStats
}

func newSimulation(name string, opts ...Option) *Simulation {
	s := &Simulation{
		Name:       name,
		substrates: make(map[string]*grid.Grid),
		index:      make(map[agents.AgentID]*agents.Agent),
		spawner:    agents.NewSpawner(),
		properties: make(map[string]float64),
		eventCap:   DefaultEventCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = entropy.New(0)
	}
	return s
}

// NewGridSimulation creates a simulation whose universe is a w×h grid.
func NewGridSimulation(name string, w, h int, opts ...Option) *Simulation {
	s := newSimulation(name, opts...)
	s.universe = DefaultUniverse
	s.substrates[DefaultUniverse] = grid.New(w, h)
	s.subOrder = append(s.subOrder, DefaultUniverse)
	return s
}

// NewMapSimulation creates a simulation whose universe is a geographic map.
func NewMapSimulation(name string, m *geo.Map, opts ...Option) *Simulation {
	s := newSimulation(name, opts...)
	s.geoMap = m
	return s
}

// UniverseName returns the grid universe's substrate name, or "" for maps.
func (s *Simulation) UniverseName() string { return s.universe }

// Universe returns the grid universe, or nil for map simulations.
func (s *Simulation) Universe() *grid.Grid {
	if s.universe == "" {
		return nil
	}
	return s.substrates[s.universe]
}

// Map returns the geographic universe, or nil for grid simulations.
func (s *Simulation) Map() *geo.Map { return s.geoMap }

// AddSubstrate registers a named grid that agents can be placed or warped on.
func (s *Simulation) AddSubstrate(name string, g *grid.Grid) error {
	if _, ok := s.substrates[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSubstrate, name)
	}
	s.substrates[name] = g
	s.subOrder = append(s.subOrder, name)
	return nil
}

// Substrate returns a registered grid.
func (s *Simulation) Substrate(name string) (*grid.Grid, error) {
	g, ok := s.substrates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubstrate, name)
	}
	return g, nil
}

// SubstrateNames returns substrate names in registration order.
func (s *Simulation) SubstrateNames() []string {
	out := make([]string, len(s.subOrder))
	copy(out, s.subOrder)
	return out
}

// SetNetwork attaches a topology for observers.
func (s *Simulation) SetNetwork(t network.Topology) { s.topology = t }

// Network returns the attached topology, or nil.
func (s *Simulation) Network() network.Topology { return s.topology }

// Add makes a live agent. Added mid-step, it joins at the next step boundary.
func (s *Simulation) Add(a *agents.Agent) error {
	if a.World() != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, a)
	}
	if a.ID != 0 {
		if _, ok := s.index[a.ID]; ok {
			return fmt.Errorf("%w: id %d", ErrDuplicateAgent, a.ID)
		}
	}
	a.Attach(s, s.spawner.NextID())
	s.index[a.ID] = a
	if s.stepping {
		s.pendingAdd = append(s.pendingAdd, a)
	} else {
		s.agents = append(s.agents, a)
	}
	s.Record(CategoryLifecycle, fmt.Sprintf("agent %d (%s) added", a.ID, a.Name))
	return nil
}

// Remove takes an agent out of the collection and off its cell. Removed
// mid-step, it leaves at the next step boundary.
func (s *Simulation) Remove(a *agents.Agent) {
	if _, ok := s.index[a.ID]; !ok || a.World() == nil {
		return
	}
	if s.stepping {
		s.pendingRemove = append(s.pendingRemove, a)
		return
	}
	s.remove(a)
}

func (s *Simulation) remove(a *agents.Agent) {
	if _, ok := s.index[a.ID]; !ok {
		return
	}
	for i, other := range s.agents {
		if other == a {
			s.agents = append(s.agents[:i], s.agents[i+1:]...)
			break
		}
	}
	delete(s.index, a.ID)
	a.Detach()
	s.Record(CategoryLifecycle, fmt.Sprintf("agent %d (%s) removed", a.ID, a.Name))
}

// Agent looks up a live agent.
func (s *Simulation) Agent(id agents.AgentID) (*agents.Agent, bool) {
	a, ok := s.index[id]
	return a, ok
}

// Agents returns the stepping agents in insertion order.
func (s *Simulation) Agents() []*agents.Agent {
	out := make([]*agents.Agent, len(s.agents))
	copy(out, s.agents)
	return out
}

// AddBeacon registers a static beacon.
func (s *Simulation) AddBeacon(b signal.Beacon) { s.beacons = append(s.beacons, b) }

// Beacons returns static beacons followed by the emissions made during the
// previous step.
func (s *Simulation) Beacons() []signal.Beacon {
	out := make([]signal.Beacon, 0, len(s.beacons)+len(s.emissions))
	out = append(out, s.beacons...)
	return append(out, s.emissions...)
}

// Emit queues an emission to become visible next step.
func (s *Simulation) Emit(e signal.Emission) {
	s.emitted = append(s.emitted, e)
	s.Record(CategoryEmit, fmt.Sprintf("agent %d emitted %.2f on %s", e.SourceID, e.Strength, e.LayerName))
}

// AddPatch registers a per-cell rule on a substrate.
func (s *Simulation) AddPatch(p Patch) error {
	if _, err := s.Substrate(p.Substrate); err != nil {
		return fmt.Errorf("patch %s: %w", p.Name, err)
	}
	s.patches = append(s.patches, p)
	return nil
}

// SetProperty sets a named scalar. Properties are frozen once running.
func (s *Simulation) SetProperty(key string, v float64) error {
	if s.frozen {
		return fmt.Errorf("%w: %s", ErrPropertiesFrozen, key)
	}
	s.properties[key] = v
	return nil
}

// Property reads a named scalar.
func (s *Simulation) Property(key string) (float64, error) {
	v, ok := s.properties[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingProperty, key)
	}
	return v, nil
}

// Properties returns a copy of all properties.
func (s *Simulation) Properties() map[string]float64 {
	out := make(map[string]float64, len(s.properties))
	for k, v := range s.properties {
		out[k] = v
	}
	return out
}

// Rand returns the simulation's random source.
func (s *Simulation) Rand() *entropy.Source { return s.rng }

// StepTime returns the number of completed steps.
func (s *Simulation) StepTime() uint64 { return s.stepTime }

// Record appends an event to the bounded log.
func (s *Simulation) Record(category, description string) {
	s.eventSeq++
	s.events = append(s.events, Event{
		Seq:         s.eventSeq,
		Step:        s.stepTime,
		Category:    category,
		Description: description,
		Time:        time.Now(),
	})
	if len(s.events) > s.eventCap {
		s.events = s.events[len(s.events)-s.eventCap:]
	}
	slog.Log(context.Background(), logging.LevelTrace, "event",
		"category", category, "step", s.stepTime, "description", description)
}

// Events returns the most recent events, oldest first. limit <= 0 returns all
// retained events.
func (s *Simulation) Events(limit int) []Event {
	start := 0
	if limit > 0 && len(s.events) > limit {
		start = len(s.events) - limit
	}
	out := make([]Event, len(s.events)-start)
	copy(out, s.events[start:])
	return out
}

// EventsSince returns retained events with Seq > seq.
func (s *Simulation) EventsSince(seq uint64) []Event {
	i := sort.Search(len(s.events), func(i int) bool { return s.events[i].Seq > seq })
	out := make([]Event, len(s.events)-i)
	copy(out, s.events[i:])
	return out
}

// Done reports whether the end condition holds.
func (s *Simulation) Done() bool {
	return s.EndCondition != nil && s.EndCondition(s)
}

// Step advances the simulation by one step:
//  1. every agent steps in insertion order
//  2. buffered layers and emissions are published
//  3. patches run over the published state, then publish again
//  4. pending adds and removes apply and the step counter increments
//
// A behavior or patch error aborts the step: buffered layer writes and
// emissions made during it are dropped and the counter does not advance.
func (s *Simulation) Step() error {
	start := time.Now()
	s.beginStep()
	prev := s.emissions
	if err := s.runStep(); err != nil {
		s.discardStep(prev)
		return err
	}
	s.endStep()
	s.stepTime++
	s.updateStats(time.Since(start))
	return nil
}

func (s *Simulation) runStep() error {
	for _, a := range s.agents {
		if err := a.Step(); err != nil {
			return err
		}
	}
	s.publish()
	s.emissions, s.emitted = s.emitted, nil

	for _, p := range s.patches {
		g := s.substrates[p.Substrate]
		for y := 0; y < g.H; y++ {
			for x := 0; x < g.W; x++ {
				if err := p.Cell(g, x, y); err != nil {
					return fmt.Errorf("patch %s at %d,%d: %w", p.Name, x, y, err)
				}
			}
		}
	}
	return nil
}

func (s *Simulation) beginStep() {
	s.stepping = true
	for _, name := range s.subOrder {
		s.substrates[name].BeginStep()
	}
	if s.geoMap != nil {
		s.geoMap.BeginStep()
	}
}

func (s *Simulation) publish() {
	for _, name := range s.subOrder {
		s.substrates[name].Publish()
	}
	if s.geoMap != nil {
		s.geoMap.Publish()
	}
}

func (s *Simulation) endStep() {
	for _, name := range s.subOrder {
		s.substrates[name].EndStep()
	}
	if s.geoMap != nil {
		s.geoMap.EndStep()
	}
	s.applyPending()
}

func (s *Simulation) discardStep(emissions []signal.Beacon) {
	for _, name := range s.subOrder {
		s.substrates[name].Discard()
	}
	if s.geoMap != nil {
		s.geoMap.Discard()
	}
	s.emissions, s.emitted = emissions, nil
	s.applyPending()
}

func (s *Simulation) applyPending() {
	s.stepping = false

	s.agents = append(s.agents, s.pendingAdd...)
	s.pendingAdd = nil
	for _, a := range s.pendingRemove {
		s.remove(a)
	}
	s.pendingRemove = nil
}

func (s *Simulation) updateStats(d time.Duration) {
	placed := 0
	for _, a := range s.agents {
		if _, ok := a.Point(); ok {
			placed++
		}
	}
	s.Stats = SimStats{
		Agents:       len(s.agents),
		Placed:       placed,
		Beacons:      len(s.beacons),
		Emissions:    len(s.emissions),
		Events:       s.eventSeq,
		StepDuration: d,
	}
}

func (s *Simulation) freeze(on bool) { s.frozen = on }
