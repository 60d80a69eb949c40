package agents

import (
	"fmt"

	"github.com/talgya/agentsim/internal/geo"
)

// Behavior is one unit of per-step agent logic.
type Behavior interface {
	Execute(a *Agent) error
}

// BehaviorFunc adapts a function to Behavior.
type BehaviorFunc func(a *Agent) error

func (f BehaviorFunc) Execute(a *Agent) error { return f(a) }

// RandomWalk moves the agent one cell in a random direction each step.
func RandomWalk() Behavior {
	return BehaviorFunc(func(a *Agent) error {
		a.MoveRandomly()
		return nil
	})
}

// Wander keeps the agent's heading, turning by up to 90° with probability
// TurnChance, and turning around when it hits the edge.
type Wander struct {
	TurnChance float64
}

// Execute takes one wander step.
func (w *Wander) Execute(a *Agent) error {
	if a.world == nil {
		return ErrDetached
	}
	r := a.world.Rand()
	if r.Chance(w.TurnChance) {
		a.Turn(r.IntN(5) - 2)
	}
	if !a.MoveForward() {
		a.Turn(4)
		a.MoveForward()
	}
	return nil
}

// EmitEachStep emits on layer with the given strength every step.
func EmitEachStep(layer string, strength float64) Behavior {
	return BehaviorFunc(func(a *Agent) error {
		return a.Emit(layer, strength)
	})
}

// MoveBehavior walks a map agent through waypoints at Speed degrees per step.
type MoveBehavior struct {
	Speed     float64
	Waypoints []geo.LatLon
	Loop      bool

	next int
}

// NewMoveBehavior creates a waypoint walker.
func NewMoveBehavior(speed float64, loop bool, waypoints ...geo.LatLon) *MoveBehavior {
	return &MoveBehavior{Speed: speed, Waypoints: waypoints, Loop: loop}
}

// Done reports whether a non-looping walk has reached its last waypoint.
func (m *MoveBehavior) Done() bool { return m.next >= len(m.Waypoints) }

// Execute advances toward the current waypoint.
func (m *MoveBehavior) Execute(a *Agent) error {
	if m.Done() {
		return nil
	}
	from, ok := a.LatLon()
	if !ok {
		return fmt.Errorf("move behavior: %w", ErrNotPlaced)
	}
	to, arrived := geo.StepToward(from, m.Waypoints[m.next], m.Speed)
	a.SetLatLon(to.Lat, to.Lon)
	if arrived {
		m.next++
		if m.Loop && m.next >= len(m.Waypoints) {
			m.next = 0
		}
	}
	return nil
}
