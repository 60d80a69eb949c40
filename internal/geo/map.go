package geo

import (
	"errors"
	"fmt"

	"github.com/talgya/agentsim/internal/grid"
)

var (
	// ErrUnknownOverlay is returned when a named overlay does not exist.
	ErrUnknownOverlay = errors.New("unknown overlay")
	// ErrDuplicateOverlay is returned when an overlay name is already taken.
	ErrDuplicateOverlay = errors.New("duplicate overlay")
	// ErrInvalidBounds is returned for empty or inverted bounding boxes.
	ErrInvalidBounds = errors.New("invalid bounding box")
	// ErrOutsideBounds is returned when a position falls outside an overlay.
	ErrOutsideBounds = errors.New("position outside overlay bounds")
)

// Map is the geographic universe. It stores only what the simulation needs:
// named overlays backed by grid layers and pinned to bounding boxes.
type Map struct {
	TilesW int `json:"tiles_w"` // initial tile columns hinted to the renderer
	TilesH int `json:"tiles_h"`

	overlays map[string]*Overlay
	order    []string
}

// NewMap creates an empty map. Tile counts are display hints only.
func NewMap(tilesW, tilesH int) *Map {
	return &Map{
		TilesW:   tilesW,
		TilesH:   tilesH,
		overlays: make(map[string]*Overlay),
	}
}

// CreateLayer creates an overlay backed by a fresh cols×rows grid layer.
func (m *Map) CreateLayer(name string, bounds BBox, rows, cols int) (*Overlay, error) {
	g := grid.New(cols, rows)
	return m.AddGridOverlay(name, g.Default(), bounds)
}

// AddGridOverlay pins an existing grid layer to a bounding box. The layer keeps
// its own update discipline.
func (m *Map) AddGridOverlay(name string, l *grid.Layer, bounds BBox) (*Overlay, error) {
	if _, ok := m.overlays[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateOverlay, name)
	}
	if !bounds.Valid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidBounds, bounds)
	}
	o := &Overlay{Name: name, Bounds: bounds, Layer: l}
	m.overlays[name] = o
	m.order = append(m.order, name)
	return o, nil
}

// Overlay returns the named overlay.
func (m *Map) Overlay(name string) (*Overlay, error) {
	o, ok := m.overlays[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOverlay, name)
	}
	return o, nil
}

// Overlays returns all overlays in creation order.
func (m *Map) Overlays() []*Overlay {
	out := make([]*Overlay, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.overlays[name])
	}
	return out
}

// BeginStep forwards the step protocol to every overlay layer.
func (m *Map) BeginStep() {
	for _, o := range m.Overlays() {
		o.Layer.BeginStep()
	}
}

// Publish publishes buffered overlay writes.
func (m *Map) Publish() {
	for _, o := range m.Overlays() {
		o.Layer.Publish()
	}
}

// EndStep publishes and leaves step mode on every overlay.
func (m *Map) EndStep() {
	for _, o := range m.Overlays() {
		o.Layer.EndStep()
	}
}

// Discard drops buffered overlay writes and leaves step mode.
func (m *Map) Discard() {
	for _, o := range m.Overlays() {
		o.Layer.Discard()
	}
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(tiles=%dx%d, overlays=%d)", m.TilesW, m.TilesH, len(m.overlays))
}

// Overlay is a grid layer spread over a geographic bounding box.
// Row 0 is the northern edge; column 0 is the western edge.
type Overlay struct {
	Name   string
	Bounds BBox
	Layer  *grid.Layer
}

// Dims returns the overlay's columns and rows.
func (o *Overlay) Dims() (cols, rows int) { return o.Layer.Size() }

// CellAt maps a position to the overlay cell containing it.
func (o *Overlay) CellAt(p LatLon) (col, row int, ok bool) {
	if !o.Bounds.Contains(p) {
		return 0, 0, false
	}
	cols, rows := o.Dims()
	cellW := (o.Bounds.Right - o.Bounds.Left) / float64(cols)
	cellH := (o.Bounds.Top - o.Bounds.Bottom) / float64(rows)
	col = int((p.Lon - o.Bounds.Left) / cellW)
	row = int((o.Bounds.Top - p.Lat) / cellH)
	// Points on the east/south edge belong to the last cell.
	if col >= cols {
		col = cols - 1
	}
	if row >= rows {
		row = rows - 1
	}
	return col, row, true
}

// CellBounds returns the bounding box of one overlay cell.
func (o *Overlay) CellBounds(col, row int) (BBox, error) {
	cols, rows := o.Dims()
	if col < 0 || col >= cols || row < 0 || row >= rows {
		return BBox{}, &grid.BoundsError{Layer: o.Name, X: col, Y: row, W: cols, H: rows}
	}
	cellW := (o.Bounds.Right - o.Bounds.Left) / float64(cols)
	cellH := (o.Bounds.Top - o.Bounds.Bottom) / float64(rows)
	return BBox{
		Top:    o.Bounds.Top - float64(row)*cellH,
		Left:   o.Bounds.Left + float64(col)*cellW,
		Bottom: o.Bounds.Top - float64(row+1)*cellH,
		Right:  o.Bounds.Left + float64(col+1)*cellW,
	}, nil
}

// ValueAt returns the overlay value under p.
func (o *Overlay) ValueAt(p LatLon) (any, error) {
	col, row, ok := o.CellAt(p)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %q", ErrOutsideBounds, p, o.Name)
	}
	return o.Layer.Get(col, row)
}

// SetAt writes v into the overlay cell under p.
func (o *Overlay) SetAt(p LatLon, v any) error {
	col, row, ok := o.CellAt(p)
	if !ok {
		return fmt.Errorf("%w: %s in %q", ErrOutsideBounds, p, o.Name)
	}
	return o.Layer.Set(col, row, v)
}
