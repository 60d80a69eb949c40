package scenarios

import (
	"errors"
	"testing"

	"github.com/talgya/agentsim/internal/agents"
	"github.com/talgya/agentsim/internal/engine"
	"github.com/talgya/agentsim/internal/geo"
)

func TestRegistry(t *testing.T) {
	want := []string{"braitenberg", "infection", "life", "mapdemo", "network", "vants", "walkers"}
	all := All()
	if len(all) != len(want) {
		t.Fatalf("registered %d scenarios, want %d", len(all), len(want))
	}
	for i, s := range all {
		if s.Name != want[i] {
			t.Errorf("scenario %d = %q, want %q", i, s.Name, want[i])
		}
		if s.Description == "" {
			t.Errorf("%s has no description", s.Name)
		}
	}

	if _, err := Build("nope", Options{}); !errors.Is(err, ErrUnknownScenario) {
		t.Errorf("Build(nope) error = %v, want ErrUnknownScenario", err)
	}
}

func TestEveryScenarioSteps(t *testing.T) {
	for _, s := range All() {
		t.Run(s.Name, func(t *testing.T) {
			sim, err := Build(s.Name, Options{Seed: 3})
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			for i := 0; i < 20; i++ {
				if err := sim.Step(); err != nil {
					t.Fatalf("step %d: %v", i, err)
				}
			}
			if sim.StepTime() != 20 {
				t.Errorf("StepTime = %d, want 20", sim.StepTime())
			}
		})
	}
}

func TestPropertyOverrides(t *testing.T) {
	sim, err := Build("walkers", Options{Seed: 1, Properties: map[string]float64{"walkers": 3}})
	if err != nil {
		t.Fatal(err)
	}
	if n := len(sim.Agents()); n != 3 {
		t.Errorf("walkers = %d, want 3", n)
	}
}

func TestWalkersStayOutOfWater(t *testing.T) {
	sim, err := Build("walkers", Options{Seed: 11})
	if err != nil {
		t.Fatal(err)
	}
	wet := func() map[agents.AgentID]bool {
		m := map[agents.AgentID]bool{}
		for _, a := range sim.Agents() {
			m[a.ID] = a.IsOnLayer("terrain", Water)
		}
		return m
	}
	start := wet()
	for i := 0; i < 30; i++ {
		if err := sim.Step(); err != nil {
			t.Fatal(err)
		}
	}
	// A walker that started on dry land never steps into water.
	for id, w := range wet() {
		if w && !start[id] {
			t.Errorf("agent %d walked into water", id)
		}
	}
}

func TestWalkersTerrainFollowsDrawnSeed(t *testing.T) {
	first, err := Build("walkers", Options{})
	if err != nil {
		t.Fatal(err)
	}
	again, err := Build("walkers", Options{Seed: int64(first.Rand().Seed())})
	if err != nil {
		t.Fatal(err)
	}
	terrain := func(sim *engine.Simulation) []any {
		l, err := sim.Universe().Layer("terrain")
		if err != nil {
			t.Fatal(err)
		}
		return l.Cells()
	}
	a, b := terrain(first), terrain(again)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("terrain differs at cell %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestVantFirstStep(t *testing.T) {
	sim, err := Build("vants", Options{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.Step(); err != nil {
		t.Fatal(err)
	}
	if v, _ := sim.Universe().Get(50, 50); v != "1" {
		t.Errorf("start cell = %v, want 1", v)
	}
	vant := sim.Agents()[0]
	if x, y, _ := vant.Cell(); x != 51 || y != 50 {
		t.Errorf("vant at %d,%d, want 51,50", x, y)
	}
	if vant.Heading() != agents.East {
		t.Errorf("heading = %s, want E", vant.Heading())
	}
}

func TestLifeGliderTranslates(t *testing.T) {
	sim, err := Build("life", Options{Seed: 1, Properties: map[string]float64{"density": 0}})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if err := sim.Step(); err != nil {
			t.Fatal(err)
		}
	}
	u := sim.Universe()
	if n := u.Default().Count(isLive); n != 5 {
		t.Fatalf("live cells = %d, want 5", n)
	}
	for _, c := range [][2]int{{3, 2}, {4, 3}, {2, 4}, {3, 4}, {4, 4}} {
		if v, _ := u.Get(c[0], c[1]); v != Live {
			t.Errorf("cell %v = %v, want live", c, v)
		}
	}
	if sim.Done() {
		t.Error("Done with a glider alive")
	}
}

func TestLifeEndsWhenEmpty(t *testing.T) {
	sim, err := Build("life", Options{Seed: 1, Properties: map[string]float64{"density": 0}})
	if err != nil {
		t.Fatal(err)
	}
	sim.Universe().Fill(nil)
	if !sim.Done() {
		t.Error("Done = false on an empty board")
	}
}

func TestInfectionPatientZero(t *testing.T) {
	sim, err := Build("infection", Options{Seed: 5, Properties: map[string]float64{"population": 20}})
	if err != nil {
		t.Fatal(err)
	}
	people := sim.Agents()
	if len(people) != 20 {
		t.Fatalf("population = %d, want 20", len(people))
	}
	if !people[0].Knowledge.Has(KeySickOnset) {
		t.Fatal("patient zero is not sick")
	}
	if err := sim.Step(); err != nil {
		t.Fatal(err)
	}
	b, _ := people[0].Behavior("disease")
	if st := b.(*agents.StateMachine).Current(); st != Onset {
		t.Errorf("patient zero state = %s, want %s", st, Onset)
	}
}

func TestDiseaseRunsItsCourse(t *testing.T) {
	sim, err := Build("infection", Options{Seed: 5, Properties: map[string]float64{
		"population":          1,
		"incubation_period":   2,
		"chance_of_hospital":  1,
		"chance_of_death":     0,
		"duration_of_disease": 5,
	}})
	if err != nil {
		t.Fatal(err)
	}
	p := sim.Agents()[0]
	b, _ := p.Behavior("disease")
	disease := b.(*agents.StateMachine)

	want := []string{Onset, Onset, Sick, InHospital, InHospital, Healthy}
	for i, st := range want {
		if err := sim.Step(); err != nil {
			t.Fatal(err)
		}
		if disease.Current() != st {
			t.Fatalf("after step %d state = %s, want %s", i+1, disease.Current(), st)
		}
		if st == InHospital {
			if sub, _ := p.Substrate(); sub != Hospital {
				t.Errorf("in hospital but on %q", sub)
			}
		}
	}
	if sub, _ := p.Substrate(); sub != engine.DefaultUniverse {
		t.Errorf("recovered agent on %q", sub)
	}
	if !p.Knowledge.BoolOr(KeyImmune, false) {
		t.Error("recovered agent is not immune")
	}
	if !sim.Done() {
		t.Error("epidemic not over with no carriers")
	}
}

func TestInfectSkipsImmuneAndDead(t *testing.T) {
	sim, err := Build("infection", Options{Seed: 5, Properties: map[string]float64{
		"population":          3,
		"chance_of_infection": 1,
	}})
	if err != nil {
		t.Fatal(err)
	}
	people := sim.Agents()
	carrier, immune, healthy := people[0], people[1], people[2]
	// Placement may already have exposed them.
	immune.Knowledge.Delete(KeySickOnset)
	healthy.Knowledge.Delete(KeySickOnset)
	immune.Knowledge.Set(KeyImmune, true)

	if err := Infect(immune, carrier); err != nil {
		t.Fatal(err)
	}
	if immune.Knowledge.Has(KeySickOnset) {
		t.Error("immune agent infected")
	}
	if err := Infect(healthy, carrier); err != nil {
		t.Fatal(err)
	}
	if !healthy.Knowledge.Has(KeySickOnset) {
		t.Error("susceptible agent not infected at chance 1")
	}

	healthy.Knowledge.Delete(KeySickOnset)
	carrier.Knowledge.Set(KeyDead, true)
	if err := Infect(healthy, carrier); err != nil {
		t.Fatal(err)
	}
	if healthy.Knowledge.Has(KeySickOnset) {
		t.Error("infected by the dead")
	}
}

func TestInfectNeedsChanceProperty(t *testing.T) {
	sim := engine.NewGridSimulation("t", 3, 3, engine.WithSeed(1))
	carrier, susceptible := agents.New("carrier"), agents.New("susceptible")
	carrier.Knowledge.Set(KeySickOnset, int64(0))
	susceptible.OnCollision = Infect
	for _, a := range []*agents.Agent{carrier, susceptible} {
		if err := sim.Add(a); err != nil {
			t.Fatal(err)
		}
	}
	if err := carrier.PlaceAt(1, 1); err != nil {
		t.Fatal(err)
	}
	if err := susceptible.PlaceAt(1, 1); !errors.Is(err, engine.ErrMissingProperty) {
		t.Errorf("place error = %v, want missing property", err)
	}

	// The same meeting made by a movement primitive fails the step.
	if err := susceptible.PlaceAt(0, 1); err != nil {
		t.Fatal(err)
	}
	susceptible.SetHeading(agents.East)
	_ = susceptible.AddBehavior(agents.BehaviorFunc(func(a *agents.Agent) error {
		a.MoveForward()
		return nil
	}))
	if err := sim.Step(); !errors.Is(err, engine.ErrMissingProperty) {
		t.Errorf("step error = %v, want missing property", err)
	}
	if sim.StepTime() != 0 {
		t.Errorf("step time = %d after failed step", sim.StepTime())
	}
}

func TestProspectorCountsFinds(t *testing.T) {
	sim, err := Build("mapdemo", Options{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	minerals, err := sim.Map().Overlay("minerals")
	if err != nil {
		t.Fatal(err)
	}
	// Cell 0,0 carries a deposit.
	a := agents.NewMapAgent("probe", 9, -169)
	find := prospect(minerals)
	for i := 0; i < 2; i++ {
		if err := find(a); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := a.Knowledge.Int("finds"); n != 2 {
		t.Errorf("finds = %d, want 2", n)
	}

	a.SetLatLon(50, 0)
	if err := find(a); err != nil {
		t.Errorf("off-overlay prospecting failed: %v", err)
	}
}

func TestMapMoversLoop(t *testing.T) {
	sim, err := Build("mapdemo", Options{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	surveyor := sim.Agents()[0]
	// The first step arrives at the starting waypoint, then 5 degrees at
	// 0.2 per step.
	for i := 0; i < 26; i++ {
		if err := sim.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if p, _ := surveyor.LatLon(); geo.DegreeDistance(p, geo.LatLon{Lat: 0, Lon: -155}) > 1e-6 {
		t.Errorf("surveyor at %s after 26 steps", p)
	}
	for i := 0; i < 10; i++ {
		if err := sim.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if p, _ := surveyor.LatLon(); p.Lon > -156.5 || p.Lon < -160 {
		t.Errorf("surveyor at %s, want heading back west", p)
	}
}

func TestCourierArrivesInLondon(t *testing.T) {
	sim, err := Build("network", Options{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	if sim.Network() == nil {
		t.Fatal("no network attached")
	}
	if got := len(sim.Network().Summary().Nodes); got != 3 {
		t.Errorf("network nodes = %d, want 3", got)
	}
	if err := sim.Step(); err != nil {
		t.Fatal(err)
	}
	courier := sim.Agents()[0]
	if city, _ := courier.Knowledge.Text("last_city"); city != "London" {
		t.Errorf("last_city = %q, want London", city)
	}
	arrived := false
	for _, ev := range sim.Events(0) {
		if ev.Category == "arrival" {
			arrived = true
		}
	}
	if !arrived {
		t.Error("no arrival event recorded")
	}
}

func TestCityNetworkDistances(t *testing.T) {
	g, cities, err := NewCityNetwork()
	if err != nil {
		t.Fatal(err)
	}
	edges := g.Edges()
	if len(edges) != 6 {
		t.Fatalf("edges = %d, want 6", len(edges))
	}
	for _, e := range edges {
		if e.From.Value == cities[0] && e.To.Value == cities[1] {
			if e.Payload.Km < 300 || e.Payload.Km > 400 {
				t.Errorf("London-Paris = %.0f km", e.Payload.Km)
			}
		}
	}
}
