// Package agents provides the agent model: identity, knowledge, ordered
// behaviors, placement on grid or map substrates, and embodied bodies with
// sensors and effectors.
package agents

import (
	"errors"
	"fmt"

	"github.com/talgya/agentsim/internal/entropy"
	"github.com/talgya/agentsim/internal/geo"
	"github.com/talgya/agentsim/internal/grid"
	"github.com/talgya/agentsim/internal/signal"
)

// AgentID is a unique identifier for an agent.
type AgentID uint64

var (
	// ErrDetached is returned when an operation needs the owning simulation
	// and the agent has not been added to one.
	ErrDetached = errors.New("agent not attached to a simulation")
	// ErrNotPlaced is returned when an operation needs a grid position.
	ErrNotPlaced = grid.ErrNotPlaced
	// ErrNoUniverse is returned when the simulation has no grid universe.
	ErrNoUniverse = errors.New("simulation has no grid universe")
	// ErrDuplicateBehavior is returned when a behavior name is taken.
	ErrDuplicateBehavior = errors.New("duplicate behavior name")
)

// World is the owning simulation as seen by an agent.
type World interface {
	signal.Environment

	// StepTime returns the number of completed steps.
	StepTime() uint64
	Property(key string) (float64, error)
	// UniverseName returns the substrate name of the grid universe, or ""
	// when the universe is a map.
	UniverseName() string
	Substrate(name string) (*grid.Grid, error)
	Rand() *entropy.Source
	Emit(e signal.Emission)
	Record(category, description string)
}

// Agent is an autonomous entity. Placement on a grid, a map position and an
// embodied body are optional parts of the same type.
type Agent struct {
	ID       AgentID
	Name     string
	Color    string // display hint
	Drawable string // display hint, e.g. "circle"

	Knowledge Knowledge

	// OnCollision runs when another agent enters this agent's cell, or this
	// agent enters a cell holding another. An error from a collision caused by
	// PlaceOn is returned by it; one caused by a movement primitive is
	// returned by the mover's Step.
	OnCollision func(self, other *Agent) error

	behaviors []namedBehavior
	anonymous int

	collisionErr error

	world World

	substrate     *grid.Grid
	substrateName string
	heading       Heading

	pos    geo.LatLon
	hasPos bool

	body *Body
}

type namedBehavior struct {
	name string
	b    Behavior
}

// New creates a bare agent.
func New(name string) *Agent {
	return &Agent{Name: name, Knowledge: Knowledge{}, Color: "white", Drawable: "circle"}
}

// NewMapAgent creates an agent positioned on a geographic map.
func NewMapAgent(name string, lat, lon float64) *Agent {
	a := New(name)
	a.SetLatLon(lat, lon)
	return a
}

// Attach binds the agent to its simulation. The simulation calls it when the
// agent is added.
func (a *Agent) Attach(w World, id AgentID) {
	a.world = w
	if a.ID == 0 {
		a.ID = id
	}
}

// Detach drops the simulation reference and any grid placement.
func (a *Agent) Detach() {
	if a.substrate != nil {
		a.substrate.Remove(a)
	}
	a.substrate, a.substrateName = nil, ""
	a.world = nil
}

// World returns the owning simulation, or nil.
func (a *Agent) World() World { return a.world }

// AddBehavior appends an anonymous behavior.
func (a *Agent) AddBehavior(b Behavior) error {
	a.anonymous++
	return a.AddNamedBehavior(fmt.Sprintf("#%d", a.anonymous), b)
}

// AddNamedBehavior appends a behavior under name. State machines are
// validated here so bad wiring fails before the first step.
func (a *Agent) AddNamedBehavior(name string, b Behavior) error {
	for _, nb := range a.behaviors {
		if nb.name == name {
			return fmt.Errorf("agent %q: %w: %s", a.Name, ErrDuplicateBehavior, name)
		}
	}
	if v, ok := b.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("agent %q behavior %s: %w", a.Name, name, err)
		}
	}
	a.behaviors = append(a.behaviors, namedBehavior{name: name, b: b})
	return nil
}

// Behavior returns the behavior registered under name.
func (a *Agent) Behavior(name string) (Behavior, bool) {
	for _, nb := range a.behaviors {
		if nb.name == name {
			return nb.b, true
		}
	}
	return nil, false
}

// RemoveBehavior drops the behavior registered under name.
func (a *Agent) RemoveBehavior(name string) {
	for i, nb := range a.behaviors {
		if nb.name == name {
			a.behaviors = append(a.behaviors[:i], a.behaviors[i+1:]...)
			return
		}
	}
}

// BehaviorNames returns behavior names in execution order.
func (a *Agent) BehaviorNames() []string {
	out := make([]string, len(a.behaviors))
	for i, nb := range a.behaviors {
		out[i] = nb.name
	}
	return out
}

// Step runs one simulation step for the agent: sensing (embodied agents),
// behaviors in insertion order, then actuation. The first behavior error
// stops the agent's step.
func (a *Agent) Step() error {
	if a.body != nil {
		if err := a.sense(); err != nil {
			return err
		}
	}
	for _, nb := range a.behaviors {
		if err := nb.b.Execute(a); err != nil {
			return fmt.Errorf("agent %d (%s) behavior %s: %w", a.ID, a.Name, nb.name, err)
		}
		if err := a.takeCollisionErr(); err != nil {
			return fmt.Errorf("agent %d (%s) behavior %s: %w", a.ID, a.Name, nb.name, err)
		}
	}
	if a.body != nil {
		a.actuate()
		if err := a.takeCollisionErr(); err != nil {
			return fmt.Errorf("agent %d (%s) drive: %w", a.ID, a.Name, err)
		}
	}
	return nil
}

func (a *Agent) takeCollisionErr() error {
	err := a.collisionErr
	a.collisionErr = nil
	return err
}

// Property reads a simulation property.
func (a *Agent) Property(key string) (float64, error) {
	if a.world == nil {
		return 0, ErrDetached
	}
	return a.world.Property(key)
}

// LatLon returns the map position and whether one is set.
func (a *Agent) LatLon() (geo.LatLon, bool) { return a.pos, a.hasPos }

// SetLatLon positions the agent on the map.
func (a *Agent) SetLatLon(lat, lon float64) {
	a.pos = geo.LatLon{Lat: lat, Lon: lon}
	a.hasPos = true
}

// Point returns the agent position in signal coordinates: the cell on a grid,
// or (lon, lat) on a map.
func (a *Agent) Point() (signal.Point, bool) {
	if x, y, ok := a.Cell(); ok {
		return signal.Point{X: float64(x), Y: float64(y)}, true
	}
	if a.hasPos {
		return signal.Point{X: a.pos.Lon, Y: a.pos.Lat}, true
	}
	return signal.Point{}, false
}

// Emit leaves a transient signal on layer at the agent's position. It is
// visible to sensors on the next step.
func (a *Agent) Emit(layer string, strength float64) error {
	if a.world == nil {
		return ErrDetached
	}
	at, ok := a.Point()
	if !ok {
		return fmt.Errorf("agent %d emit: %w", a.ID, ErrNotPlaced)
	}
	a.world.Emit(signal.Emission{LayerName: layer, At: at, Strength: strength, SourceID: uint64(a.ID)})
	return nil
}

func (a *Agent) record(category, format string, args ...any) {
	if a.world != nil {
		a.world.Record(category, fmt.Sprintf(format, args...))
	}
}

func (a *Agent) String() string {
	if x, y, ok := a.Cell(); ok {
		return fmt.Sprintf("Agent(%d %s @%s %d,%d %s)", a.ID, a.Name, a.substrateName, x, y, a.heading)
	}
	if a.hasPos {
		return fmt.Sprintf("Agent(%d %s @%s)", a.ID, a.Name, a.pos)
	}
	return fmt.Sprintf("Agent(%d %s)", a.ID, a.Name)
}
