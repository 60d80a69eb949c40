// Package grid provides the cell substrate agents live on: a fixed-size 2D
// array split into named layers, each with its own update discipline, plus an
// index of which occupants stand on which cell.
package grid

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultLayer is the name of the layer every Grid is created with.
const DefaultLayer = "default"

var (
	// ErrOutOfBounds is matched by every BoundsError.
	ErrOutOfBounds = errors.New("cell out of bounds")
	// ErrUnknownLayer is returned when a named layer does not exist.
	ErrUnknownLayer = errors.New("unknown layer")
	// ErrDuplicateLayer is returned when creating a layer whose name is taken.
	ErrDuplicateLayer = errors.New("duplicate layer")
	// ErrNotPlaced is returned when an occupant is not on this grid.
	ErrNotPlaced = errors.New("occupant not placed on grid")
)

// BoundsError reports an access outside the grid extents.
type BoundsError struct {
	Layer string
	X, Y  int
	W, H  int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("cell (%d,%d) outside %dx%d layer %q", e.X, e.Y, e.W, e.H, e.Layer)
}

// Is lets errors.Is(err, ErrOutOfBounds) match.
func (e *BoundsError) Is(target error) bool { return target == ErrOutOfBounds }

// Grid is a width×height substrate holding named layers and occupants.
// Occupants are compared by identity, so callers should place pointers.
type Grid struct {
	W, H int

	layers map[string]*Layer
	order  []string

	cells     map[int][]any
	positions map[any]int
}

// New creates a grid with a single default layer using NoSwitch.
func New(w, h int) *Grid {
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	g := &Grid{
		W:         w,
		H:         h,
		layers:    make(map[string]*Layer),
		cells:     make(map[int][]any),
		positions: make(map[any]int),
	}
	g.layers[DefaultLayer] = newLayer(DefaultLayer, w, h, NoSwitch)
	g.order = append(g.order, DefaultLayer)
	return g
}

// CreateLayer adds a named layer with the given update option.
func (g *Grid) CreateLayer(name string, option UpdateOption) (*Layer, error) {
	if _, ok := g.layers[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateLayer, name)
	}
	l := newLayer(name, g.W, g.H, option)
	g.layers[name] = l
	g.order = append(g.order, name)
	return l, nil
}

// Layer returns the named layer.
func (g *Grid) Layer(name string) (*Layer, error) {
	l, ok := g.layers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
	}
	return l, nil
}

// Default returns the default layer.
func (g *Grid) Default() *Layer { return g.layers[DefaultLayer] }

// LayerNames returns layer names in creation order.
func (g *Grid) LayerNames() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// SetUpdateOption changes the update option of the default layer.
func (g *Grid) SetUpdateOption(option UpdateOption) {
	g.Default().SetUpdateOption(option)
}

// Get reads (x, y) on the default layer.
func (g *Grid) Get(x, y int) (any, error) { return g.Default().Get(x, y) }

// Set writes (x, y) on the default layer.
func (g *Grid) Set(x, y int, v any) error { return g.Default().Set(x, y, v) }

// Fill writes v into every cell of the default layer.
func (g *Grid) Fill(v any) { g.Default().Fill(v) }

// Count8Neighbors counts matching neighbors on the default layer.
func (g *Grid) Count8Neighbors(x, y int, match func(v any) bool) (int, error) {
	return g.Default().Count8Neighbors(x, y, match)
}

// Form stamps a pattern onto the default layer with its top-left corner at
// (x, y). Any character other than '.' or ' ' writes v; those two are skipped.
func (g *Grid) Form(v any, x, y int, rows ...string) error {
	return FormOn(g.Default(), v, x, y, rows...)
}

// FormOn stamps a pattern onto l. The pattern is checked against the bounds
// before anything is written.
func FormOn(l *Layer, v any, x, y int, rows ...string) error {
	for dy, row := range rows {
		for dx := range row {
			if !l.inBounds(x+dx, y+dy) {
				return &BoundsError{Layer: l.name, X: x + dx, Y: y + dy, W: l.w, H: l.h}
			}
		}
	}
	for dy, row := range rows {
		for dx, c := range []byte(row) {
			if c == '.' || c == ' ' {
				continue
			}
			l.write((y+dy)*l.w+x+dx, v)
		}
	}
	return nil
}

// InBounds reports whether (x, y) lies on the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.W && y >= 0 && y < g.H
}

// Wrap applies toroidal wrapping to the provided coordinates.
func (g *Grid) Wrap(x, y int) (int, int) {
	x = (x%g.W + g.W) % g.W
	y = (y%g.H + g.H) % g.H
	return x, y
}

// BeginStep marks every layer as mid-step so buffered layers hold writes back.
func (g *Grid) BeginStep() {
	for _, name := range g.order {
		g.layers[name].BeginStep()
	}
}

// Publish makes buffered writes visible while staying in step mode.
func (g *Grid) Publish() {
	for _, name := range g.order {
		g.layers[name].Publish()
	}
}

// EndStep publishes buffered writes and leaves step mode.
func (g *Grid) EndStep() {
	for _, name := range g.order {
		g.layers[name].EndStep()
	}
}

// Discard drops buffered writes on every layer and leaves step mode.
func (g *Grid) Discard() {
	for _, name := range g.order {
		g.layers[name].Discard()
	}
}

// Place puts o on (x, y). If o is already on the grid it is moved.
func (g *Grid) Place(o any, x, y int) error {
	if !g.InBounds(x, y) {
		return &BoundsError{Layer: "occupancy", X: x, Y: y, W: g.W, H: g.H}
	}
	if _, ok := g.positions[o]; ok {
		g.Remove(o)
	}
	idx := y*g.W + x
	g.cells[idx] = append(g.cells[idx], o)
	g.positions[o] = idx
	return nil
}

// Remove takes o off the grid. It is a no-op when o is not placed.
func (g *Grid) Remove(o any) {
	idx, ok := g.positions[o]
	if !ok {
		return
	}
	delete(g.positions, o)
	occ := g.cells[idx]
	for i, other := range occ {
		if other == o {
			occ = append(occ[:i], occ[i+1:]...)
			break
		}
	}
	if len(occ) == 0 {
		delete(g.cells, idx)
	} else {
		g.cells[idx] = occ
	}
}

// Position returns the cell o stands on.
func (g *Grid) Position(o any) (x, y int, ok bool) {
	idx, ok := g.positions[o]
	if !ok {
		return 0, 0, false
	}
	return idx % g.W, idx / g.W, true
}

// Contains reports whether o is placed on this grid.
func (g *Grid) Contains(o any) bool {
	_, ok := g.positions[o]
	return ok
}

// OccupantsAt returns the occupants of (x, y) in arrival order.
func (g *Grid) OccupantsAt(x, y int) []any {
	if !g.InBounds(x, y) {
		return nil
	}
	occ := g.cells[y*g.W+x]
	out := make([]any, len(occ))
	copy(out, occ)
	return out
}

// OccupiedCells returns the indexes of all occupied cells in ascending order.
func (g *Grid) OccupiedCells() []int {
	out := make([]int, 0, len(g.cells))
	for idx := range g.cells {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, layers=%d, occupants=%d)", g.W, g.H, len(g.layers), len(g.positions))
}
