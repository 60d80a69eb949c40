package network

import (
	"errors"
	"testing"

	"github.com/talgya/agentsim/internal/agents"
	"github.com/talgya/agentsim/internal/geo"
)

type city struct {
	name string
	pos  geo.LatLon
}

func (c *city) LatLon() geo.LatLon { return c.pos }

var (
	london  = &city{"London", geo.LatLon{Lat: 51.5, Lon: -0.1}}
	paris   = &city{"Paris", geo.LatLon{Lat: 48.9, Lon: 2.4}}
	newYork = &city{"New York", geo.LatLon{Lat: 40.7, Lon: -74.0}}
)

func cities(t *testing.T) *Network[*city, float64] {
	t.Helper()
	g := New[*city, float64]()
	for _, c := range []*city{london, paris, newYork} {
		if _, err := g.AddNode(c); err != nil {
			t.Fatal(err)
		}
	}
	links := []struct {
		a, b *city
		km   float64
	}{
		{london, paris, 344},
		{paris, newYork, 5837},
		{newYork, london, 5570},
	}
	for _, l := range links {
		if err := g.Link(l.a, l.b, "route", l.km); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestNetworkConstruction(t *testing.T) {
	g := cities(t)
	if len(g.Nodes()) != 3 || len(g.Edges()) != 6 {
		t.Fatalf("got %s, want 3 nodes and 6 edges", g)
	}
	if _, err := g.AddNode(london); !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("duplicate error = %v", err)
	}
	rome := &city{name: "Rome"}
	if _, err := g.AddEdge(london, rome, "route", 1434); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("unknown node error = %v", err)
	}

	n, err := g.Neighbors(london)
	if err != nil {
		t.Fatal(err)
	}
	if len(n) != 2 || n[0].Value != paris || n[1].Value != newYork {
		t.Errorf("neighbors of London = %v", n)
	}
	if e := g.Edges()[1]; e.From.Value != paris || e.To.Value != london || e.Payload != 344 {
		t.Errorf("reciprocal edge = %+v", e)
	}
}

func TestPathFollowerCyclesWithPeriodThree(t *testing.T) {
	g := cities(t)
	f, err := NewPathFollower(g, 2.0, london, paris, newYork)
	if err != nil {
		t.Fatal(err)
	}
	var visits []string
	f.OnArrive = func(_ *agents.Agent, n *Node[*city]) { visits = append(visits, n.Value.name) }

	a := agents.NewMapAgent("courier", london.pos.Lat, london.pos.Lon)
	for step := 0; step < 400 && len(visits) < 9; step++ {
		if err := f.Execute(a); err != nil {
			t.Fatal(err)
		}
	}
	if len(visits) < 9 {
		t.Fatalf("follower stalled after visits %v", visits)
	}
	want := []string{"London", "Paris", "New York"}
	for i, v := range visits {
		if v != want[i%3] {
			t.Fatalf("visit %d = %s, want %s (all: %v)", i, v, want[i%3], visits)
		}
	}
}

func TestPathFollowerRejectsBadPath(t *testing.T) {
	g := cities(t)
	if _, err := NewPathFollower(g, 0, london); !errors.Is(err, ErrBadPath) {
		t.Errorf("zero speed error = %v", err)
	}
	if _, err := NewPathFollower(g, 1, &city{name: "Atlantis"}); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("unknown waypoint error = %v", err)
	}
}

func TestSummaryCarriesPositions(t *testing.T) {
	var topo Topology = cities(t)
	s := topo.Summary()
	if len(s.Nodes) != 3 || len(s.Edges) != 6 {
		t.Fatalf("summary = %+v", s)
	}
	if !s.Nodes[1].HasPos || s.Nodes[1].Lat != paris.pos.Lat {
		t.Errorf("Paris node = %+v", s.Nodes[1])
	}
	if s.Edges[0].From != 0 || s.Edges[0].To != 1 {
		t.Errorf("first edge = %+v", s.Edges[0])
	}
}
