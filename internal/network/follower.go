package network

import (
	"errors"
	"fmt"

	"github.com/talgya/agentsim/internal/agents"
	"github.com/talgya/agentsim/internal/geo"
)

// ErrBadPath is returned for a path follower with no waypoints or no speed.
var ErrBadPath = errors.New("path follower needs waypoints and a positive speed")

// Located is a node value with a geographic position.
type Located interface {
	LatLon() geo.LatLon
}

// Place is a network value usable as a path waypoint.
type Place interface {
	comparable
	Located
}

// PathFollower moves a map agent around a cycle of network nodes at Speed
// degrees per step, wrapping to the first waypoint after the last.
type PathFollower[N Place] struct {
	Path      []*Node[N]
	Speed     float64
	Tolerance float64

	// OnArrive runs whenever a waypoint is reached.
	OnArrive func(a *agents.Agent, n *Node[N])

	next int
}

// NewPathFollower builds a follower over the nodes wrapping values.
func NewPathFollower[N Place, E any](g *Network[N, E], speed float64, values ...N) (*PathFollower[N], error) {
	path := make([]*Node[N], 0, len(values))
	for _, v := range values {
		n, ok := g.Node(v)
		if !ok {
			return nil, fmt.Errorf("path: %w: %v", ErrUnknownNode, v)
		}
		path = append(path, n)
	}
	f := &PathFollower[N]{Path: path, Speed: speed}
	return f, f.Validate()
}

// Validate checks the follower cannot stall.
func (f *PathFollower[N]) Validate() error {
	if len(f.Path) == 0 || f.Speed <= 0 {
		return ErrBadPath
	}
	return nil
}

// Target returns the waypoint currently headed for.
func (f *PathFollower[N]) Target() *Node[N] { return f.Path[f.next] }

// Execute moves the agent one increment toward the target. An agent with no
// map position starts at the first waypoint.
func (f *PathFollower[N]) Execute(a *agents.Agent) error {
	if err := f.Validate(); err != nil {
		return err
	}
	target := f.Path[f.next]
	to := target.Value.LatLon()
	from, ok := a.LatLon()
	if !ok {
		a.SetLatLon(to.Lat, to.Lon)
		from = to
	}
	pos, arrived := geo.StepToward(from, to, f.Speed)
	if !arrived && geo.DegreeDistance(pos, to) <= f.Tolerance {
		pos, arrived = to, true
	}
	a.SetLatLon(pos.Lat, pos.Lon)
	if arrived {
		if f.OnArrive != nil {
			f.OnArrive(a, target)
		}
		f.next = (f.next + 1) % len(f.Path)
	}
	return nil
}
