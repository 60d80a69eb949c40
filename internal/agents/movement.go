package agents

import (
	"fmt"
	"math"
)

// Heading is one of the eight compass directions on a grid. North is toward
// row 0.
type Heading uint8

const (
	North Heading = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

var headingNames = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

var headingDeltas = [8][2]int{
	{0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
}

func (h Heading) String() string { return headingNames[h%8] }

// Delta returns the cell offset of one step in this heading.
func (h Heading) Delta() (dx, dy int) {
	d := headingDeltas[h%8]
	return d[0], d[1]
}

// Turn returns the heading rotated clockwise by n eighths (negative turns
// counter-clockwise).
func (h Heading) Turn(n int) Heading {
	return Heading(((int(h)+n)%8 + 8) % 8)
}

// Angle returns the clockwise rotation from north in radians.
func (h Heading) Angle() float64 { return float64(h%8) * math.Pi / 4 }

// Heading returns the agent's grid heading.
func (a *Agent) Heading() Heading { return a.heading }

// SetHeading sets the agent's grid heading.
func (a *Agent) SetHeading(h Heading) { a.heading = h % 8 }

// Turn rotates the heading by n eighths clockwise.
func (a *Agent) Turn(n int) { a.heading = a.heading.Turn(n) }

// TurnLeft rotates the heading 90° counter-clockwise.
func (a *Agent) TurnLeft() { a.Turn(-2) }

// TurnRight rotates the heading 90° clockwise.
func (a *Agent) TurnRight() { a.Turn(2) }

// Substrate returns the grid the agent stands on and its name.
func (a *Agent) Substrate() (string, bool) {
	return a.substrateName, a.substrate != nil
}

// Cell returns the agent's grid cell.
func (a *Agent) Cell() (x, y int, ok bool) {
	if a.substrate == nil {
		return 0, 0, false
	}
	return a.substrate.Position(a)
}

// PlaceAt puts the agent on (x, y) of the simulation's grid universe.
func (a *Agent) PlaceAt(x, y int) error {
	if a.world == nil {
		return ErrDetached
	}
	name := a.world.UniverseName()
	if name == "" {
		return ErrNoUniverse
	}
	return a.PlaceOn(name, x, y)
}

// PlaceOn puts the agent on (x, y) of the named substrate, leaving any grid
// it was on before.
func (a *Agent) PlaceOn(substrate string, x, y int) error {
	if a.world == nil {
		return ErrDetached
	}
	g, err := a.world.Substrate(substrate)
	if err != nil {
		return err
	}
	if err := g.Place(a, x, y); err != nil {
		return fmt.Errorf("place agent %d: %w", a.ID, err)
	}
	if a.substrate != nil && a.substrate != g {
		a.substrate.Remove(a)
	}
	a.substrate, a.substrateName = g, substrate
	return a.collide(x, y)
}

// PlaceRandomly puts the agent on a random cell of its current substrate,
// or of the universe when unplaced, with a random heading.
func (a *Agent) PlaceRandomly() error {
	if a.world == nil {
		return ErrDetached
	}
	name := a.substrateName
	if a.substrate == nil {
		name = a.world.UniverseName()
		if name == "" {
			return ErrNoUniverse
		}
	}
	g, err := a.world.Substrate(name)
	if err != nil {
		return err
	}
	r := a.world.Rand()
	a.heading = Heading(r.IntN(8))
	return a.PlaceOn(name, r.IntN(g.W), r.IntN(g.H))
}

// MoveTo moves the agent to (x, y) on its current substrate. Out-of-bounds
// targets leave the agent where it is and report false.
func (a *Agent) MoveTo(x, y int) bool {
	if a.substrate == nil || !a.substrate.InBounds(x, y) {
		return false
	}
	if err := a.substrate.Place(a, x, y); err != nil {
		return false
	}
	if err := a.collide(x, y); err != nil && a.collisionErr == nil {
		a.collisionErr = err
	}
	return true
}

// MoveForward steps one cell along the heading. At the edge the agent stays
// put and false is returned.
func (a *Agent) MoveForward() bool {
	x, y, ok := a.Cell()
	if !ok {
		return false
	}
	dx, dy := a.heading.Delta()
	return a.MoveTo(x+dx, y+dy)
}

// MoveRandomly picks a random heading and steps forward.
func (a *Agent) MoveRandomly() bool {
	if a.world == nil {
		return false
	}
	a.heading = Heading(a.world.Rand().IntN(8))
	return a.MoveForward()
}

// WarpTo moves the agent to a random cell of another substrate.
func (a *Agent) WarpTo(substrate string) error {
	if a.world == nil {
		return ErrDetached
	}
	g, err := a.world.Substrate(substrate)
	if err != nil {
		return err
	}
	from := a.substrateName
	r := a.world.Rand()
	if err := a.PlaceOn(substrate, r.IntN(g.W), r.IntN(g.H)); err != nil {
		return err
	}
	a.record("warp", "agent %d (%s) warped %s -> %s", a.ID, a.Name, from, substrate)
	return nil
}

// IsOn reports whether the agent's cell on the default layer holds v.
func (a *Agent) IsOn(v any) bool {
	got, err := a.CellValue()
	return err == nil && got == v
}

// IsOnLayer reports whether the agent's cell on layer holds v.
func (a *Agent) IsOnLayer(layer string, v any) bool {
	got, err := a.CellValueOn(layer)
	return err == nil && got == v
}

// CellValue reads the default layer under the agent.
func (a *Agent) CellValue() (any, error) {
	x, y, ok := a.Cell()
	if !ok {
		return nil, ErrNotPlaced
	}
	return a.substrate.Get(x, y)
}

// CellValueOn reads layer under the agent.
func (a *Agent) CellValueOn(layer string) (any, error) {
	x, y, ok := a.Cell()
	if !ok {
		return nil, ErrNotPlaced
	}
	l, err := a.substrate.Layer(layer)
	if err != nil {
		return nil, err
	}
	return l.Get(x, y)
}

// SetCell writes v to the default layer under the agent.
func (a *Agent) SetCell(v any) error {
	x, y, ok := a.Cell()
	if !ok {
		return ErrNotPlaced
	}
	return a.substrate.Set(x, y, v)
}

// SetCellOn writes v to layer under the agent.
func (a *Agent) SetCellOn(layer string, v any) error {
	x, y, ok := a.Cell()
	if !ok {
		return ErrNotPlaced
	}
	l, err := a.substrate.Layer(layer)
	if err != nil {
		return err
	}
	return l.Set(x, y, v)
}

// collide notifies the agent and every other agent sharing (x, y). The first
// handler error stops the notifications.
func (a *Agent) collide(x, y int) error {
	for _, o := range a.substrate.OccupantsAt(x, y) {
		other, ok := o.(*Agent)
		if !ok || other == a {
			continue
		}
		if a.OnCollision == nil && other.OnCollision == nil {
			continue
		}
		a.record("collision", "agent %d (%s) met agent %d (%s) at %s %d,%d",
			a.ID, a.Name, other.ID, other.Name, a.substrateName, x, y)
		if a.OnCollision != nil {
			if err := a.OnCollision(a, other); err != nil {
				return fmt.Errorf("collision of agent %d with %d: %w", a.ID, other.ID, err)
			}
		}
		if other.OnCollision != nil {
			if err := other.OnCollision(other, a); err != nil {
				return fmt.Errorf("collision of agent %d with %d: %w", other.ID, a.ID, err)
			}
		}
	}
	return nil
}
