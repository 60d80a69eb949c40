package entropy

import "testing"

func TestSeededSourceIsDeterministic(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		if x, y := a.IntN(1000), b.IntN(1000); x != y {
			t.Fatalf("draw %d: %d != %d", i, x, y)
		}
	}
}

func TestZeroSeedIsReplaced(t *testing.T) {
	if New(0).Seed() == 0 {
		t.Error("zero seed was kept")
	}
}

func TestChanceBounds(t *testing.T) {
	s := New(1)
	for i := 0; i < 50; i++ {
		if s.Chance(0) {
			t.Fatal("Chance(0) returned true")
		}
		if !s.Chance(1) {
			t.Fatal("Chance(1) returned false")
		}
	}
	if s.IntN(0) != 0 {
		t.Error("IntN(0) should be 0")
	}
}
