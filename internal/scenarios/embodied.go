package scenarios

import (
	"github.com/talgya/agentsim/internal/agents"
	"github.com/talgya/agentsim/internal/engine"
	"github.com/talgya/agentsim/internal/signal"
)

func init() {
	Register(Scenario{
		Name:        "braitenberg",
		Description: "Braitenberg vehicles steering by a light beacon",
		Build:       buildBraitenberg,
	})
}

// LightLayer is the signal layer the light beacon broadcasts on.
const LightLayer = "light"

// NewVehicle builds a 3×3 embodied agent with two front light sensors and two
// rear wheels. Crossed wiring (left eye → right wheel) steers toward the
// light; straight wiring steers away.
func NewVehicle(name string, crossed bool, gain float64) (*agents.Agent, error) {
	v := agents.NewEmbodied(name, 3, 3)
	leftEye := signal.NewMaxSignalSensor(LightLayer)
	rightEye := signal.NewMaxSignalSensor(LightLayer)
	leftWheel := signal.NewForceEffector(name + ".left")
	rightWheel := signal.NewForceEffector(name + ".right")
	leftWheel.Gain, rightWheel.Gain = gain, gain

	toLeft, toRight := leftWheel, rightWheel
	if crossed {
		toLeft, toRight = rightWheel, leftWheel
	}
	if err := leftEye.ConnectTo(toLeft); err != nil {
		return nil, err
	}
	if err := rightEye.ConnectTo(toRight); err != nil {
		return nil, err
	}

	parts := []struct {
		col, row int
		part     any
	}{
		{0, 0, leftEye},
		{2, 0, rightEye},
		{0, 2, leftWheel},
		{2, 2, rightWheel},
	}
	for _, p := range parts {
		if err := v.Place(p.col, p.row, p.part); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func buildBraitenberg(opts Options) (*engine.Simulation, error) {
	sim := engine.NewGridSimulation("braitenberg", 60, 60, opts.simOptions()...)
	if err := setProperties(sim, map[string]float64{"gain": 1, "light_radius": 80}, opts.Properties); err != nil {
		return nil, err
	}
	gain, _ := sim.Property("gain")
	radius, _ := sim.Property("light_radius")

	sim.AddBeacon(signal.NewRadialBeacon(LightLayer, signal.Point{X: 30, Y: 30}, radius))

	vehicles := []struct {
		name    string
		crossed bool
		color   string
		x, y    int
	}{
		{"aggressor", true, "red", 8, 50},
		{"coward", false, "cyan", 50, 10},
	}
	for _, vs := range vehicles {
		v, err := NewVehicle(vs.name, vs.crossed, gain)
		if err != nil {
			return nil, err
		}
		v.Color = vs.color
		if err := v.AddNamedBehavior("headlight", agents.EmitEachStep("headlight", 3)); err != nil {
			return nil, err
		}
		if err := sim.Add(v); err != nil {
			return nil, err
		}
		if err := v.PlaceAt(vs.x, vs.y); err != nil {
			return nil, err
		}
	}
	return sim, nil
}
