package agents

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/agentsim/internal/grid"
	"github.com/talgya/agentsim/internal/signal"
)

var (
	// ErrNotEmbodied is returned when placing parts on an agent without a body.
	ErrNotEmbodied = errors.New("agent has no body")
	// ErrUnknownPart is returned for parts that are neither sensor nor effector.
	ErrUnknownPart = errors.New("part is neither sensor nor effector")
)

// DefaultMoveThreshold is the drive force needed to step forward.
const DefaultMoveThreshold = 0.1

type part struct {
	mount    signal.Mount
	sensor   signal.Sensor
	effector signal.Effector
}

// Body is an embodied agent's sub-grid of sensors and effectors. Row 0 is
// the front. It collects effector forces per side and turns them into a
// differential-drive move.
type Body struct {
	Grid *grid.Grid

	// MoveThreshold is the stronger side's force needed to move forward.
	MoveThreshold float64

	parts       []part
	left, right float64
}

// NewEmbodied creates an agent with a w×h body.
func NewEmbodied(name string, w, h int) *Agent {
	a := New(name)
	a.body = &Body{Grid: grid.New(w, h), MoveThreshold: DefaultMoveThreshold}
	return a
}

// Body returns the agent's body, or nil.
func (a *Agent) Body() *Body { return a.body }

// Place mounts a sensor or effector at (col, row) of the body.
func (a *Agent) Place(col, row int, p any) error {
	if a.body == nil {
		return fmt.Errorf("agent %q: %w", a.Name, ErrNotEmbodied)
	}
	s, isSensor := p.(signal.Sensor)
	e, isEffector := p.(signal.Effector)
	if !isSensor && !isEffector {
		return fmt.Errorf("agent %q: %w: %T", a.Name, ErrUnknownPart, p)
	}
	g := a.body.Grid
	if err := g.Place(p, col, row); err != nil {
		return fmt.Errorf("agent %q body: %w", a.Name, err)
	}
	a.body.parts = append(a.body.parts, part{
		mount:    signal.Mount{Col: col, Row: row, BodyW: g.W, BodyH: g.H},
		sensor:   s,
		effector: e,
	})
	return nil
}

// Push implements signal.Drive.
func (b *Body) Push(side, force float64) {
	switch {
	case side < 0:
		b.left += force
	case side > 0:
		b.right += force
	default:
		b.left += force / 2
		b.right += force / 2
	}
}

// Forces returns the left and right drive accumulated by the last actuation.
func (b *Body) Forces() (left, right float64) { return b.left, b.right }

// sense lets every sensor read the world at its mounted position, rotated by
// the agent's heading.
func (a *Agent) sense() error {
	if a.world == nil {
		return ErrDetached
	}
	center, ok := a.Point()
	if !ok {
		return fmt.Errorf("agent %d sense: %w", a.ID, ErrNotPlaced)
	}
	for _, p := range a.body.parts {
		if p.sensor == nil {
			continue
		}
		p.sensor.Sense(a.world, mountPoint(center, p.mount, a.heading))
	}
	return nil
}

// actuate collects effector forces and steers: turn one eighth toward the
// stronger side, then step forward if the stronger side clears the threshold.
func (a *Agent) actuate() {
	b := a.body
	b.left, b.right = 0, 0
	for _, p := range b.parts {
		if p.effector != nil {
			p.effector.Actuate(b, p.mount)
		}
	}
	const eps = 1e-9
	switch diff := b.left - b.right; {
	case diff > eps:
		a.Turn(1)
	case diff < -eps:
		a.Turn(-1)
	}
	if math.Max(b.left, b.right) >= b.MoveThreshold {
		a.MoveForward()
	}
}

// mountPoint rotates the body offset by the heading angle (clockwise from
// north, screen coordinates) and adds it to the agent center.
func mountPoint(center signal.Point, m signal.Mount, h Heading) signal.Point {
	off := m.Offset()
	sin, cos := math.Sincos(h.Angle())
	return signal.Point{
		X: center.X + off.X*cos - off.Y*sin,
		Y: center.Y + off.X*sin + off.Y*cos,
	}
}
