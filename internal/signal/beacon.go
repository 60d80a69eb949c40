package signal

import "math"

// Point is a position in substrate coordinates (cell units on a grid).
type Point struct {
	X, Y float64
}

// DirectionTo returns the angle in radians from p to q (0 = east).
func (p Point) DirectionTo(q Point) float64 {
	return math.Atan2(q.Y-p.Y, q.X-p.X)
}

// DistanceTo returns the euclidean distance from p to q.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Beacon is a point source broadcasting on a named layer.
type Beacon interface {
	Layer() string
	Position() Point
	Reaches(target Point) bool
	Intensity(target Point) float64
}

// RadialBeacon reaches every point within Radius and falls off as
// Strength / (1 + Falloff·d²).
type RadialBeacon struct {
	LayerName string
	At        Point
	Radius    float64
	Strength  float64
	Falloff   float64
}

// NewRadialBeacon creates a beacon with unit strength and a gentle falloff.
func NewRadialBeacon(layer string, at Point, radius float64) *RadialBeacon {
	return &RadialBeacon{LayerName: layer, At: at, Radius: radius, Strength: 1, Falloff: 0.1}
}

func (b *RadialBeacon) Layer() string   { return b.LayerName }
func (b *RadialBeacon) Position() Point { return b.At }

// MoveTo relocates the beacon. Beacons never move themselves.
func (b *RadialBeacon) MoveTo(p Point) { b.At = p }

func (b *RadialBeacon) Reaches(target Point) bool {
	return b.At.DistanceTo(target) <= b.Radius
}

func (b *RadialBeacon) Intensity(target Point) float64 {
	d := b.At.DistanceTo(target)
	v := b.Strength / (1 + b.Falloff*d*d)
	return math.Min(v, b.Strength)
}

// FuncBeacon delegates reach and intensity to closures.
type FuncBeacon struct {
	LayerName   string
	At          Point
	ReachFn     func(from, target Point) bool
	IntensityFn func(from, target Point) float64
}

func (b *FuncBeacon) Layer() string                  { return b.LayerName }
func (b *FuncBeacon) Position() Point                { return b.At }
func (b *FuncBeacon) Reaches(target Point) bool      { return b.ReachFn(b.At, target) }
func (b *FuncBeacon) Intensity(target Point) float64 { return b.IntensityFn(b.At, target) }

// Emission is the transient beacon left by an agent emitting a signal.
// It reaches Strength cells, is Strength strong at the source and fades
// linearly toward the edge.
type Emission struct {
	LayerName string
	At        Point
	Strength  float64
	SourceID  uint64
}

func (e Emission) Layer() string   { return e.LayerName }
func (e Emission) Position() Point { return e.At }

func (e Emission) Reaches(target Point) bool {
	return e.Strength > 0 && e.At.DistanceTo(target) <= e.Strength
}

func (e Emission) Intensity(target Point) float64 {
	if e.Strength <= 0 {
		return 0
	}
	return e.Strength * math.Max(0, 1-e.At.DistanceTo(target)/(e.Strength+1))
}

// Strongest picks the reaching beacon on layer with the highest intensity at
// target. Ties go to the earliest beacon in the slice.
func Strongest(beacons []Beacon, layer string, target Point) (Beacon, float64, bool) {
	var best Beacon
	bestVal := math.Inf(-1)
	for _, b := range beacons {
		if b.Layer() != layer || !b.Reaches(target) {
			continue
		}
		if v := b.Intensity(target); v > bestVal {
			best, bestVal = b, v
		}
	}
	if best == nil {
		return nil, 0, false
	}
	return best, bestVal, true
}
