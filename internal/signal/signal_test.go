package signal

import (
	"errors"
	"math"
	"testing"
)

type beaconList []Beacon

func (b beaconList) Beacons() []Beacon { return b }

func fixed(layer string, at Point, v float64) *FuncBeacon {
	return &FuncBeacon{
		LayerName:   layer,
		At:          at,
		ReachFn:     func(Point, Point) bool { return true },
		IntensityFn: func(Point, Point) float64 { return v },
	}
}

func TestMaxSignalSensorPicksStrongest(t *testing.T) {
	at := Point{X: 0, Y: 0}
	weak := fixed("lights", Point{X: 10, Y: 0}, 0.3)
	strong := fixed("lights", Point{X: 0, Y: 10}, 0.7)
	other := fixed("sound", Point{X: -5, Y: 0}, 0.9)

	s := NewMaxSignalSensor("lights")
	s.Sense(beaconList{weak, strong, other}, at)

	if got := s.Intensity().Value(); got != 0.7 {
		t.Errorf("intensity = %v, want 0.7", got)
	}
	if got, want := s.Direction().Value(), math.Pi/2; math.Abs(got-want) > 1e-9 {
		t.Errorf("direction = %v, want %v", got, want)
	}
}

func TestMaxSignalSensorNothingInReach(t *testing.T) {
	far := NewRadialBeacon("lights", Point{X: 100, Y: 100}, 5)
	s := NewMaxSignalSensor("lights")
	s.Intensity().Set(0.5)
	s.Sense(beaconList{far}, Point{})

	if got := s.Intensity().Value(); got != 0 {
		t.Errorf("intensity = %v, want 0", got)
	}
	if got := s.Direction().Value(); got != 0 {
		t.Errorf("direction = %v, want default 0", got)
	}
}

func TestStrongestTieGoesToFirst(t *testing.T) {
	a := fixed("l", Point{X: 1}, 0.5)
	b := fixed("l", Point{X: 2}, 0.5)
	got, _, ok := Strongest([]Beacon{a, b}, "l", Point{})
	if !ok || got != Beacon(a) {
		t.Errorf("Strongest picked %v, want first registered", got)
	}
}

func TestFixedDirectionOverride(t *testing.T) {
	s := NewMaxSignalSensor("lights").WithFixedDirection(math.Pi)
	s.Sense(beaconList{fixed("lights", Point{X: 5}, 0.4)}, Point{})
	if s.Direction().Value() != math.Pi {
		t.Errorf("direction = %v, want pi", s.Direction().Value())
	}
}

func TestPortWiring(t *testing.T) {
	src := NewPort("src", KindIntensity)
	a := NewPort("a", KindIntensity)
	b := NewPort("b", KindIntensity)
	dir := NewPort("dir", KindDirection)

	if err := src.ConnectTo(a); err != nil {
		t.Fatal(err)
	}
	if err := src.ConnectTo(b); err != nil {
		t.Fatal(err)
	}
	src.Set(0.42)
	if a.Value() != 0.42 || b.Value() != 0.42 {
		t.Errorf("fan-out values = %v, %v", a.Value(), b.Value())
	}

	if err := src.ConnectTo(dir); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("kind mismatch error = %v", err)
	}
	other := NewPort("other", KindIntensity)
	if err := other.ConnectTo(a); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("shared-write error = %v", err)
	}
	if err := src.ConnectTo(src); !errors.Is(err, ErrSelfConnect) {
		t.Errorf("self connect error = %v", err)
	}

	src.Disconnect(a)
	src.Set(0.9)
	if a.Value() != 0.42 {
		t.Errorf("disconnected port changed to %v", a.Value())
	}
}

type recordingDrive struct{ left, right float64 }

func (d *recordingDrive) Push(side, f float64) {
	if side < 0 {
		d.left += f
	} else if side > 0 {
		d.right += f
	}
}

func TestSensorToForceEffector(t *testing.T) {
	s := NewMaxSignalSensor("lights")
	eff := NewForceEffector("wheel")
	eff.Gain = 2
	if err := s.ConnectTo(eff); err != nil {
		t.Fatal(err)
	}

	s.Sense(beaconList{fixed("lights", Point{X: 3}, 0.25)}, Point{})
	if eff.Intensity().Value() != 0.25 {
		t.Fatalf("effector input = %v, want 0.25", eff.Intensity().Value())
	}

	d := &recordingDrive{}
	eff.Actuate(d, Mount{Col: 4, Row: 2, BodyW: 5, BodyH: 5})
	if d.right != 0.5 || d.left != 0 {
		t.Errorf("drive = %+v, want right 0.5", d)
	}
}

func TestEmissionFades(t *testing.T) {
	e := Emission{LayerName: "light", At: Point{X: 0, Y: 0}, Strength: 4}
	if !e.Reaches(Point{X: 4}) || e.Reaches(Point{X: 5}) {
		t.Error("emission reach should end at its strength")
	}
	if e.Intensity(Point{}) != 4 {
		t.Errorf("intensity at source = %v, want 4", e.Intensity(Point{}))
	}
	if e.Intensity(Point{X: 2}) <= e.Intensity(Point{X: 3}) {
		t.Error("intensity should fall off with distance")
	}
}

func TestStrongerEmissionWinsAtSameSpot(t *testing.T) {
	at := Point{X: 2, Y: 2}
	weak := Emission{LayerName: "sound", At: at, Strength: 0.3}
	loud := Emission{LayerName: "sound", At: at, Strength: 0.7}
	b, v, ok := Strongest([]Beacon{weak, loud}, "sound", at)
	if !ok || b != Beacon(loud) || v != 0.7 {
		t.Errorf("strongest = %v %v %v, want the 0.7 emission", b, v, ok)
	}
}

func TestMountSide(t *testing.T) {
	tests := []struct {
		col  int
		want float64
	}{{0, -1}, {1, -1}, {2, 0}, {3, 1}, {4, 1}}
	for _, tt := range tests {
		if got := (Mount{Col: tt.col, BodyW: 5, BodyH: 5}).Side(); got != tt.want {
			t.Errorf("Side(col=%d) = %v, want %v", tt.col, got, tt.want)
		}
	}
}
