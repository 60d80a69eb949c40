package engine

import (
	"fmt"

	"github.com/talgya/agentsim/internal/agents"
	"github.com/talgya/agentsim/internal/network"
)

// View maps cells to pixels for a rendering observer. It only changes how a
// snapshot is laid out, never the simulation.
type View struct {
	CellWidth  int `json:"cell_width"`
	CellHeight int `json:"cell_height"`
	OriginX    int `json:"origin_x"`
	OriginY    int `json:"origin_y"`
}

// DefaultView is an 8×8 pixel cell anchored at the origin.
var DefaultView = View{CellWidth: 8, CellHeight: 8}

// Pixel returns the top-left pixel of cell (x, y).
func (v View) Pixel(x, y int) (px, py int) {
	return v.OriginX + x*v.CellWidth, v.OriginY + y*v.CellHeight
}

// Pan shifts the origin.
func (v View) Pan(dx, dy int) View {
	v.OriginX += dx
	v.OriginY += dy
	return v
}

// Zoom scales the cell size by factor, keeping cells at least one pixel.
func (v View) Zoom(factor float64) View {
	v.CellWidth = max(1, int(float64(v.CellWidth)*factor))
	v.CellHeight = max(1, int(float64(v.CellHeight)*factor))
	return v
}

// LayerSnapshot is one layer's current generation, rendered as strings.
type LayerSnapshot struct {
	Substrate string   `json:"substrate"`
	Name      string   `json:"name"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Cells     []string `json:"cells"`
}

// AgentSnapshot is the observer's view of one agent.
type AgentSnapshot struct {
	ID        uint64            `json:"id"`
	Name      string            `json:"name"`
	Substrate string            `json:"substrate,omitempty"`
	X         int               `json:"x"`
	Y         int               `json:"y"`
	PixelX    int               `json:"px"`
	PixelY    int               `json:"py"`
	Lat       float64           `json:"lat,omitempty"`
	Lon       float64           `json:"lon,omitempty"`
	Placed    bool              `json:"placed"`
	Heading   string            `json:"heading,omitempty"`
	Color     string            `json:"color"`
	Drawable  string            `json:"drawable"`
	States    map[string]string `json:"states,omitempty"`
}

// Snapshot is a read-only copy of simulation state taken between steps.
type Snapshot struct {
	Name       string             `json:"name"`
	State      string             `json:"state"`
	Step       uint64             `json:"step"`
	View       View               `json:"view"`
	Universe   string             `json:"universe"`
	Layers     []LayerSnapshot    `json:"layers"`
	Agents     []AgentSnapshot    `json:"agents"`
	Network    *network.Summary   `json:"network,omitempty"`
	Properties map[string]float64 `json:"properties"`
	Stats      SimStats           `json:"stats"`
}

// Snapshot copies the simulation under the step lock.
func (e *Engine) Snapshot(v View) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.Sim.snapshot(v)
	snap.State = e.state.String()
	return snap
}

func (s *Simulation) snapshot(v View) Snapshot {
	snap := Snapshot{
		Name:       s.Name,
		Step:       s.stepTime,
		View:       v,
		Universe:   s.universe,
		Properties: s.Properties(),
		Stats:      s.Stats,
	}
	if s.universe == "" {
		snap.Universe = "map"
	}

	for _, name := range s.subOrder {
		g := s.substrates[name]
		for _, ln := range g.LayerNames() {
			l, _ := g.Layer(ln)
			snap.Layers = append(snap.Layers, layerSnapshot(name, ln, l.Cells(), g.W, g.H))
		}
	}
	if s.geoMap != nil {
		for _, o := range s.geoMap.Overlays() {
			w, h := o.Layer.Size()
			snap.Layers = append(snap.Layers, layerSnapshot("map", o.Name, o.Layer.Cells(), w, h))
		}
	}

	snap.Agents = make([]AgentSnapshot, 0, len(s.agents))
	for _, a := range s.agents {
		snap.Agents = append(snap.Agents, SnapshotAgent(a, v))
	}

	if s.topology != nil {
		sum := s.topology.Summary()
		snap.Network = &sum
	}
	return snap
}

func layerSnapshot(substrate, name string, cells []any, w, h int) LayerSnapshot {
	ls := LayerSnapshot{Substrate: substrate, Name: name, Width: w, Height: h, Cells: make([]string, len(cells))}
	for i, c := range cells {
		if c != nil {
			ls.Cells[i] = fmt.Sprint(c)
		}
	}
	return ls
}

// SnapshotAgent describes one agent laid out for v. Callers outside the engine
// must hold the step lock, for example inside Engine.Inspect.
func SnapshotAgent(a *agents.Agent, v View) AgentSnapshot {
	as := AgentSnapshot{
		ID:       uint64(a.ID),
		Name:     a.Name,
		Color:    a.Color,
		Drawable: a.Drawable,
	}
	if x, y, ok := a.Cell(); ok {
		as.Substrate, _ = a.Substrate()
		as.X, as.Y, as.Placed = x, y, true
		as.PixelX, as.PixelY = v.Pixel(x, y)
		as.Heading = a.Heading().String()
	}
	if p, ok := a.LatLon(); ok {
		as.Lat, as.Lon, as.Placed = p.Lat, p.Lon, true
	}
	for _, name := range a.BehaviorNames() {
		b, _ := a.Behavior(name)
		if m, ok := b.(*agents.StateMachine); ok {
			if as.States == nil {
				as.States = make(map[string]string)
			}
			as.States[name] = m.Current()
		}
	}
	return as
}

// AgentSummary counts agents per state machine state, across all machines.
func (s Snapshot) AgentSummary() map[string]int {
	out := make(map[string]int)
	for _, a := range s.Agents {
		for _, state := range a.States {
			out[state]++
		}
	}
	return out
}
