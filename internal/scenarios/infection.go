package scenarios

import (
	"github.com/talgya/agentsim/internal/agents"
	"github.com/talgya/agentsim/internal/engine"
	"github.com/talgya/agentsim/internal/grid"
)

func init() {
	Register(Scenario{
		Name:        "infection",
		Description: "state-machine epidemic with hospital and cemetery substrates",
		Build:       buildInfection,
	})
}

// Disease states.
const (
	Healthy    = "HEALTHY"
	Onset      = "ONSET"
	Sick       = "SICK"
	InHospital = "IN_HOSPITAL"
	Dead       = "DEAD"
)

// Knowledge keys and substrate names used by the infection world.
const (
	KeySickOnset = "SICK_ONSET"
	KeyImmune    = "IMMUNE"
	KeyDead      = "DEAD"

	Hospital = "hospital"
	Cemetery = "cemetery"
)

var infectionDefaults = map[string]float64{
	"population":          200,
	"chance_of_infection": 0.5,
	"incubation_period":   10,
	"chance_of_hospital":  0.05,
	"chance_of_death":     0.01,
	"duration_of_disease": 60,
	"turn_chance":         0.1,
}

func chance(key string) agents.Guard {
	return func(a *agents.Agent) (bool, error) {
		p, err := a.Property(key)
		if err != nil {
			return false, err
		}
		return a.World().Rand().Chance(p), nil
	}
}

// sinceOnset holds once at least the period named by key has passed since
// the agent fell sick.
func sinceOnset(key string) agents.Guard {
	return func(a *agents.Agent) (bool, error) {
		onset, err := a.Knowledge.Int(KeySickOnset)
		if err != nil {
			return false, err
		}
		period, err := a.Property(key)
		if err != nil {
			return false, err
		}
		return float64(int64(a.World().StepTime())-onset) >= period, nil
	}
}

func warpTo(substrate string) agents.Action {
	return func(a *agents.Agent) error { return a.WarpTo(substrate) }
}

// NewDiseaseMachine builds the HEALTHY → ONSET → SICK → IN_HOSPITAL →
// DEAD|HEALTHY progression.
func NewDiseaseMachine(universe string) (*agents.StateMachine, error) {
	m := agents.NewStateMachine(Healthy, Onset, Sick, InHospital, Dead)
	transitions := []agents.Transition{
		{From: Healthy, To: Onset, Guard: func(a *agents.Agent) (bool, error) {
			return a.Knowledge.Has(KeySickOnset), nil
		}},
		{From: Onset, To: Sick, Guard: sinceOnset("incubation_period")},
		{From: Sick, To: InHospital, Guard: chance("chance_of_hospital"), Action: warpTo(Hospital)},
		{From: InHospital, To: Dead, Guard: chance("chance_of_death"), Action: func(a *agents.Agent) error {
			a.Knowledge.Set(KeyDead, true)
			a.Color = "darkgray"
			return a.WarpTo(Cemetery)
		}},
		{From: InHospital, To: Healthy, Guard: sinceOnset("duration_of_disease"), Action: func(a *agents.Agent) error {
			a.Knowledge.Delete(KeySickOnset)
			a.Knowledge.Set(KeyImmune, true)
			return a.WarpTo(universe)
		}},
	}
	for _, t := range transitions {
		if err := m.AddTransition(t.From, t.To, t.Guard, t.Action); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Infect exposes self to other: a susceptible agent meeting a carrier falls
// sick with the chance_of_infection probability.
func Infect(self, other *agents.Agent) error {
	if self.Knowledge.Has(KeySickOnset) || self.Knowledge.BoolOr(KeyImmune, false) {
		return nil
	}
	if !other.Knowledge.Has(KeySickOnset) || other.Knowledge.BoolOr(KeyDead, false) {
		return nil
	}
	w := self.World()
	p, err := w.Property("chance_of_infection")
	if err != nil {
		return err
	}
	if w.Rand().Chance(p) {
		self.Knowledge.Set(KeySickOnset, int64(w.StepTime()))
	}
	return nil
}

var diseaseColors = map[string]string{
	Healthy:    "blue",
	Onset:      "orange",
	Sick:       "red",
	InHospital: "red",
	Dead:       "darkgray",
}

func buildInfection(opts Options) (*engine.Simulation, error) {
	sim := engine.NewGridSimulation("infection", 100, 100, opts.simOptions()...)
	if err := setProperties(sim, infectionDefaults, opts.Properties); err != nil {
		return nil, err
	}
	sim.Universe().Fill("0")
	for _, name := range []string{Hospital, Cemetery} {
		if err := sim.AddSubstrate(name, grid.New(10, 10)); err != nil {
			return nil, err
		}
	}

	n, _ := sim.Property("population")
	turn, _ := sim.Property("turn_chance")
	wander := &agents.Wander{TurnChance: turn}
	for i := 0; i < int(n); i++ {
		person := agents.New("person")
		person.OnCollision = Infect
		if i == 0 {
			person.Knowledge.Set(KeySickOnset, int64(0))
		}
		if err := person.AddNamedBehavior("wander", agents.BehaviorFunc(func(a *agents.Agent) error {
			if a.Knowledge.BoolOr(KeyDead, false) {
				return nil
			}
			return wander.Execute(a)
		})); err != nil {
			return nil, err
		}
		disease, err := NewDiseaseMachine(sim.UniverseName())
		if err != nil {
			return nil, err
		}
		if err := person.AddNamedBehavior("disease", disease); err != nil {
			return nil, err
		}
		if err := person.AddNamedBehavior("color", agents.BehaviorFunc(func(a *agents.Agent) error {
			a.Color = diseaseColors[disease.Current()]
			return nil
		})); err != nil {
			return nil, err
		}
		if err := sim.Add(person); err != nil {
			return nil, err
		}
		if err := person.PlaceRandomly(); err != nil {
			return nil, err
		}
	}

	// The epidemic is over when nobody carries the disease.
	sim.EndCondition = func(s *engine.Simulation) bool {
		for _, a := range s.Agents() {
			if a.Knowledge.Has(KeySickOnset) && !a.Knowledge.BoolOr(KeyDead, false) {
				return false
			}
		}
		return true
	}
	return sim, nil
}
