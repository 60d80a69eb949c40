package grid

import (
	"errors"
	"testing"
)

func TestGetAfterSet(t *testing.T) {
	tests := []struct {
		name string
		x, y int
		v    any
	}{
		{name: "origin tag", x: 0, y: 0, v: "1"},
		{name: "far corner", x: 9, y: 4, v: "X"},
		{name: "payload", x: 3, y: 2, v: 42.5},
		{name: "empty", x: 5, y: 1, v: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(10, 5)
			if err := g.Set(tt.x, tt.y, tt.v); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, err := g.Get(tt.x, tt.y)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got != tt.v {
				t.Errorf("Get() = %v, want %v", got, tt.v)
			}
		})
	}
}

func TestOutOfBounds(t *testing.T) {
	g := New(4, 4)
	coords := [][2]int{{-1, 0}, {0, -1}, {4, 0}, {0, 4}}
	for _, c := range coords {
		if _, err := g.Get(c[0], c[1]); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("Get(%d,%d) error = %v, want ErrOutOfBounds", c[0], c[1], err)
		}
		if err := g.Set(c[0], c[1], "x"); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("Set(%d,%d) error = %v, want ErrOutOfBounds", c[0], c[1], err)
		}
	}
	if err := g.Form("1", 3, 3, "OO"); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Form() error = %v, want ErrOutOfBounds", err)
	}
	if v := g.Default().At(3, 3); v != nil {
		t.Errorf("partial Form wrote %v", v)
	}
}

func TestNextBecomesCurrentHidesSameStepWrites(t *testing.T) {
	g := New(3, 3)
	g.SetUpdateOption(NextBecomesCurrent)
	g.Fill("0")

	g.BeginStep()
	if err := g.Set(1, 1, "A"); err != nil {
		t.Fatal(err)
	}
	if v, _ := g.Get(1, 1); v != "0" {
		t.Fatalf("same-step read = %v, want prior generation 0", v)
	}
	g.EndStep()

	if v, _ := g.Get(1, 1); v != "A" {
		t.Fatalf("next-step read = %v, want A", v)
	}
	if v, _ := g.Get(0, 0); v != "0" {
		t.Fatalf("untouched cell = %v, want 0", v)
	}
}

func TestDiscardDropsStepWrites(t *testing.T) {
	g := New(3, 1)
	g.SetUpdateOption(NextBecomesCurrent)
	g.Fill("0")

	g.BeginStep()
	_ = g.Set(0, 0, "A")
	g.Publish()
	_ = g.Set(1, 0, "B")
	g.Discard()

	for x := 0; x < 3; x++ {
		if v, _ := g.Get(x, 0); v != "0" {
			t.Errorf("cell(%d,0) = %v after discard, want 0", x, v)
		}
	}

	g.BeginStep()
	_ = g.Set(2, 0, "C")
	g.EndStep()
	want := []any{"0", "0", "C"}
	for x, w := range want {
		if v, _ := g.Get(x, 0); v != w {
			t.Errorf("cell(%d,0) = %v, want %v", x, v, w)
		}
	}
}

func TestNoSwitchWritesVisibleImmediately(t *testing.T) {
	g := New(3, 3)
	g.BeginStep()
	_ = g.Set(2, 2, "now")
	if v, _ := g.Get(2, 2); v != "now" {
		t.Fatalf("NoSwitch read = %v, want now", v)
	}
	g.EndStep()
}

func TestCount8NeighborsFullBlock(t *testing.T) {
	g := New(3, 3)
	g.Fill("1")
	alive := func(v any) bool { return v == "1" }

	n, err := g.Count8Neighbors(1, 1, alive)
	if err != nil {
		t.Fatal(err)
	}
	if n != 8 {
		t.Errorf("center neighbors = %d, want 8", n)
	}

	corner, _ := g.Count8Neighbors(0, 0, alive)
	if corner != 3 {
		t.Errorf("corner neighbors = %d, want 3 (no wrapping)", corner)
	}
}

// Blinker oscillation written as a buffered patch over every cell.
func TestBlinkerWithBufferedLayer(t *testing.T) {
	g := New(5, 5)
	g.SetUpdateOption(NextBecomesCurrent)
	g.Fill("0")
	if err := g.Form("1", 2, 1, "O", "O", "O"); err != nil {
		t.Fatal(err)
	}

	step := func() {
		g.BeginStep()
		for y := 0; y < g.H; y++ {
			for x := 0; x < g.W; x++ {
				n, _ := g.Count8Neighbors(x, y, func(v any) bool { return v == "1" })
				cur, _ := g.Get(x, y)
				next := "0"
				if (cur == "1" && (n == 2 || n == 3)) || (cur != "1" && n == 3) {
					next = "1"
				}
				_ = g.Set(x, y, next)
			}
		}
		g.EndStep()
	}

	step()
	expects := map[[2]int]bool{{1, 2}: true, {2, 2}: true, {3, 2}: true}
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			v, _ := g.Get(x, y)
			if expects[[2]int{x, y}] != (v == "1") {
				t.Fatalf("cell (%d,%d) = %v, expected alive=%v", x, y, v, expects[[2]int{x, y}])
			}
		}
	}
}

func TestLayersAreIndependent(t *testing.T) {
	g := New(4, 4)
	lights, err := g.CreateLayer("lights", NoSwitch)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.CreateLayer("lights", NoSwitch); !errors.Is(err, ErrDuplicateLayer) {
		t.Errorf("duplicate CreateLayer error = %v", err)
	}
	if _, err := g.Layer("missing"); !errors.Is(err, ErrUnknownLayer) {
		t.Errorf("Layer(missing) error = %v", err)
	}

	_ = lights.Set(1, 1, "L")
	if v, _ := g.Get(1, 1); v != nil {
		t.Errorf("default layer saw %v from lights layer", v)
	}
	if w, h := lights.Size(); w != 4 || h != 4 {
		t.Errorf("layer size = %dx%d, want grid size 4x4", w, h)
	}
	names := g.LayerNames()
	if len(names) != 2 || names[0] != DefaultLayer || names[1] != "lights" {
		t.Errorf("LayerNames() = %v", names)
	}
}

func TestOccupancy(t *testing.T) {
	g := New(5, 5)
	a, b := new(int), new(int)

	if err := g.Place(a, 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := g.Place(b, 1, 1); err != nil {
		t.Fatal(err)
	}
	if occ := g.OccupantsAt(1, 1); len(occ) != 2 || occ[0] != any(a) {
		t.Fatalf("OccupantsAt = %v", occ)
	}

	if err := g.Place(a, 2, 3); err != nil {
		t.Fatal(err)
	}
	if x, y, ok := g.Position(a); !ok || x != 2 || y != 3 {
		t.Errorf("Position(a) = %d,%d,%v", x, y, ok)
	}
	if occ := g.OccupantsAt(1, 1); len(occ) != 1 {
		t.Errorf("old cell still holds %d occupants", len(occ))
	}

	g.Remove(b)
	if g.Contains(b) {
		t.Error("b still on grid after Remove")
	}
	if err := g.Place(a, 5, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Place out of bounds error = %v", err)
	}
}

func TestWrap(t *testing.T) {
	g := New(10, 5)
	x, y := g.Wrap(-1, 5)
	if x != 9 || y != 0 {
		t.Errorf("Wrap(-1,5) = %d,%d, want 9,0", x, y)
	}
}

func TestFillNoiseDeterministic(t *testing.T) {
	classify := func(s float64) any {
		if s > 0.5 {
			return "high"
		}
		return "low"
	}
	g1, g2 := New(20, 20), New(20, 20)
	FillNoise(g1.Default(), DefaultNoiseConfig(7), classify)
	FillNoise(g2.Default(), DefaultNoiseConfig(7), classify)

	c1, c2 := g1.Default().Cells(), g2.Default().Cells()
	for i := range c1 {
		if c1[i] != c2[i] {
			t.Fatalf("cell %d differs between identical seeds", i)
		}
		if c1[i] == nil {
			t.Fatalf("cell %d left empty", i)
		}
	}
}
