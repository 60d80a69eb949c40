package scenarios

import (
	"github.com/talgya/agentsim/internal/agents"
	"github.com/talgya/agentsim/internal/engine"
	"github.com/talgya/agentsim/internal/grid"
)

func init() {
	Register(Scenario{
		Name:        "walkers",
		Description: "wanderers on an OpenSimplex terrain, avoiding water",
		Build:       buildWalkers,
	})
	Register(Scenario{
		Name:        "life",
		Description: "Conway's Game of Life as a buffered patch, seeded with a glider",
		Build:       buildLife,
	})
	Register(Scenario{
		Name:        "vants",
		Description: "Langton's ant on a 100x100 grid",
		Build:       buildVants,
	})
}

// Terrain cell values for the walkers world.
const (
	Water = "water"
	Grass = "grass"
	Hill  = "hill"
)

func classifyTerrain(sample float64) any {
	switch {
	case sample < 0.35:
		return Water
	case sample < 0.7:
		return Grass
	default:
		return Hill
	}
}

func buildWalkers(opts Options) (*engine.Simulation, error) {
	sim := engine.NewGridSimulation("walkers", 60, 40, opts.simOptions()...)
	if err := setProperties(sim, map[string]float64{"walkers": 25, "turn_chance": 0.2}, opts.Properties); err != nil {
		return nil, err
	}

	u := sim.Universe()
	terrain, err := u.CreateLayer("terrain", grid.NoSwitch)
	if err != nil {
		return nil, err
	}
	grid.FillNoise(terrain, grid.DefaultNoiseConfig(int64(sim.Rand().Seed())), classifyTerrain)
	trail, err := u.CreateLayer("trail", grid.NextBecomesCurrent)
	if err != nil {
		return nil, err
	}

	n, _ := sim.Property("walkers")
	turn, _ := sim.Property("turn_chance")
	wander := &agents.Wander{TurnChance: turn}
	for _, a := range agents.SpawnPopulation(int(n), func(int) *agents.Agent { return agents.New("walker") }) {
		a.Color = "yellow"
		if err := a.AddNamedBehavior("wander", agents.BehaviorFunc(func(a *agents.Agent) error {
			x, y, _ := a.Cell()
			if err := wander.Execute(a); err != nil {
				return err
			}
			// Walkers do not swim: step back out of water.
			if a.IsOnLayer("terrain", Water) {
				a.MoveTo(x, y)
			}
			return a.SetCellOn(trail.Name(), a.Name)
		})); err != nil {
			return nil, err
		}
		if err := sim.Add(a); err != nil {
			return nil, err
		}
		if err := a.PlaceRandomly(); err != nil {
			return nil, err
		}
	}
	return sim, nil
}

// Live is the Game of Life live-cell value.
const Live = "#"

func isLive(v any) bool { return v == Live }

// LifeRule is the B3/S23 patch.
func LifeRule(g *grid.Grid, x, y int) error {
	n, err := g.Count8Neighbors(x, y, isLive)
	if err != nil {
		return err
	}
	v, err := g.Get(x, y)
	if err != nil {
		return err
	}
	switch {
	case isLive(v) && (n < 2 || n > 3):
		return g.Set(x, y, nil)
	case !isLive(v) && n == 3:
		return g.Set(x, y, Live)
	}
	return nil
}

func buildLife(opts Options) (*engine.Simulation, error) {
	sim := engine.NewGridSimulation("life", 40, 30, opts.simOptions()...)
	if err := setProperties(sim, map[string]float64{"density": 0.15}, opts.Properties); err != nil {
		return nil, err
	}
	u := sim.Universe()
	u.SetUpdateOption(grid.NextBecomesCurrent)

	density, _ := sim.Property("density")
	r := sim.Rand()
	for y := 10; y < u.H; y++ {
		for x := 0; x < u.W; x++ {
			if r.Chance(density) {
				if err := u.Set(x, y, Live); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := u.Form(Live, 1, 1,
		".#.",
		"..#",
		"###",
	); err != nil {
		return nil, err
	}
	if err := sim.AddPatch(engine.Patch{Name: "life", Substrate: engine.DefaultUniverse, Cell: LifeRule}); err != nil {
		return nil, err
	}
	sim.EndCondition = func(s *engine.Simulation) bool {
		return s.Universe().Default().Count(isLive) == 0
	}
	return sim, nil
}

// VantStep is Langton's ant: on "1" flip to "0" and turn left, on "0" flip
// to "1" and turn right, then step forward.
func VantStep(a *agents.Agent) error {
	switch {
	case a.IsOn("1"):
		if err := a.SetCell("0"); err != nil {
			return err
		}
		a.TurnLeft()
	case a.IsOn("0"):
		if err := a.SetCell("1"); err != nil {
			return err
		}
		a.TurnRight()
	}
	a.MoveForward()
	return nil
}

func buildVants(opts Options) (*engine.Simulation, error) {
	sim := engine.NewGridSimulation("vants", 100, 100, opts.simOptions()...)
	if err := setProperties(sim, map[string]float64{"vants": 1}, opts.Properties); err != nil {
		return nil, err
	}
	u := sim.Universe()
	u.Fill("0")

	n, _ := sim.Property("vants")
	for i := 0; i < int(n); i++ {
		vant := agents.New("vant")
		vant.Color = "red"
		if err := vant.AddNamedBehavior("vant", agents.BehaviorFunc(VantStep)); err != nil {
			return nil, err
		}
		if err := sim.Add(vant); err != nil {
			return nil, err
		}
		var err error
		if i == 0 {
			err = vant.PlaceAt(u.W/2, u.H/2)
		} else {
			err = vant.PlaceRandomly()
		}
		if err != nil {
			return nil, err
		}
	}
	return sim, nil
}
