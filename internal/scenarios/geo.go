package scenarios

import (
	"fmt"

	"github.com/talgya/agentsim/internal/agents"
	"github.com/talgya/agentsim/internal/engine"
	"github.com/talgya/agentsim/internal/geo"
	"github.com/talgya/agentsim/internal/network"
)

func init() {
	Register(Scenario{
		Name:        "mapdemo",
		Description: "waypoint movers prospecting a minerals overlay in the Pacific",
		Build:       buildMapDemo,
	})
	Register(Scenario{
		Name:        "network",
		Description: "a courier following a London, Paris, New York route network",
		Build:       buildNetwork,
	})
}

// Mineral is the value marking a deposit on the minerals overlay.
const Mineral = "X"

func buildMapDemo(opts Options) (*engine.Simulation, error) {
	m := geo.NewMap(8, 6)
	minerals, err := m.CreateLayer("minerals", geo.BBox{Top: 10, Left: -170, Bottom: -10, Right: -150}, 8, 8)
	if err != nil {
		return nil, err
	}
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			if (r+c)%7 == 0 {
				if err := minerals.Layer.Set(c, r, Mineral); err != nil {
					return nil, err
				}
			}
		}
	}

	sim := engine.NewMapSimulation("mapdemo", m, opts.simOptions()...)
	if err := setProperties(sim, map[string]float64{"fast_speed": 0.2, "slow_speed": 0.05}, opts.Properties); err != nil {
		return nil, err
	}
	fast, _ := sim.Property("fast_speed")
	slow, _ := sim.Property("slow_speed")

	movers := []struct {
		name  string
		color string
		speed float64
		route []geo.LatLon
	}{
		{"surveyor", "cornflowerblue", fast, []geo.LatLon{{Lat: 0, Lon: -160}, {Lat: 0, Lon: -155}}},
		{"barge", "orange", slow, []geo.LatLon{{Lat: -5, Lon: -155}, {Lat: 0, Lon: -155}}},
	}
	for _, mv := range movers {
		a := agents.NewMapAgent(mv.name, mv.route[0].Lat, mv.route[0].Lon)
		a.Color = mv.color
		if err := a.AddNamedBehavior("move", agents.NewMoveBehavior(mv.speed, true, mv.route...)); err != nil {
			return nil, err
		}
		if err := a.AddNamedBehavior("prospect", agents.BehaviorFunc(prospect(minerals))); err != nil {
			return nil, err
		}
		if err := sim.Add(a); err != nil {
			return nil, err
		}
	}
	return sim, nil
}

// prospect counts how many steps the agent spends over a deposit.
func prospect(o *geo.Overlay) func(a *agents.Agent) error {
	return func(a *agents.Agent) error {
		p, ok := a.LatLon()
		if !ok {
			return agents.ErrNotPlaced
		}
		v, err := o.ValueAt(p)
		if err != nil {
			// Off the overlay.
			return nil
		}
		if v == Mineral {
			n, _ := a.Knowledge.Int("finds")
			a.Knowledge.Set("finds", n+1)
		}
		return nil
	}
}

// City is a network node with a position.
type City struct {
	Name string
	Pos  geo.LatLon
}

func (c *City) LatLon() geo.LatLon { return c.Pos }
func (c *City) String() string     { return c.Name }

// Route is the edge payload between cities.
type Route struct {
	Km float64
}

// NewCityNetwork links London, Paris and New York in a ring.
func NewCityNetwork() (*network.Network[*City, Route], []*City, error) {
	cities := []*City{
		{Name: "London", Pos: geo.LatLon{Lat: 51.51, Lon: -0.13}},
		{Name: "Paris", Pos: geo.LatLon{Lat: 48.86, Lon: 2.35}},
		{Name: "New York", Pos: geo.LatLon{Lat: 40.71, Lon: -74.01}},
	}
	g := network.New[*City, Route]()
	for _, c := range cities {
		if _, err := g.AddNode(c); err != nil {
			return nil, nil, err
		}
	}
	for i, c := range cities {
		next := cities[(i+1)%len(cities)]
		r := Route{Km: geo.DistanceKm(c.Pos, next.Pos)}
		if err := g.Link(c, next, fmt.Sprintf("%s-%s", c.Name, next.Name), r); err != nil {
			return nil, nil, err
		}
	}
	return g, cities, nil
}

func buildNetwork(opts Options) (*engine.Simulation, error) {
	m := geo.NewMap(8, 6)
	sim := engine.NewMapSimulation("network", m, opts.simOptions()...)
	if err := setProperties(sim, map[string]float64{"courier_speed": 1.5}, opts.Properties); err != nil {
		return nil, err
	}
	speed, _ := sim.Property("courier_speed")

	g, cities, err := NewCityNetwork()
	if err != nil {
		return nil, err
	}
	sim.SetNetwork(g)

	follower, err := network.NewPathFollower(g, speed, cities...)
	if err != nil {
		return nil, err
	}
	follower.Tolerance = 0.01
	follower.OnArrive = func(a *agents.Agent, n *network.Node[*City]) {
		a.Knowledge.Set("last_city", n.Value.Name)
		sim.Record("arrival", fmt.Sprintf("%s reached %s", a.Name, n.Value.Name))
	}

	courier := agents.NewMapAgent("courier", cities[0].Pos.Lat, cities[0].Pos.Lon)
	courier.Color = "gold"
	if err := courier.AddNamedBehavior("route", follower); err != nil {
		return nil, err
	}
	if err := sim.Add(courier); err != nil {
		return nil, err
	}
	return sim, nil
}
