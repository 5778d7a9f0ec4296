package fluid

import (
	"testing"

	"github.com/pthm-cable/brine/dispatch"
)

func testPool(t *testing.T) *dispatch.Pool {
	t.Helper()
	pool := dispatch.NewPool(4)
	t.Cleanup(pool.Stop)
	return pool
}

func TestGridSingleParticle(t *testing.T) {
	pool := testPool(t)
	g := NewGrid(8, 8, 8, 0.5, Vec3{}, 16)
	b := NewBuffers(16)
	b.Spawn(3, Vec3{1.1, 1.1, 1.1}, Vec3{}, 1, PhaseWater, 293)

	g.Clear(pool)
	g.Build(pool, b)

	cell := g.CellIndex(Vec3{1.1, 1.1, 1.1})
	if cell < 0 {
		t.Fatal("cell index out of range for in-domain position")
	}
	if head := g.Head(cell); head != 3 {
		t.Fatalf("head = %d, want 3", head)
	}
	if next := g.Next(3); next != -1 {
		t.Fatalf("next = %d, want -1", next)
	}
	for c := 0; c < g.Cells(); c++ {
		if c != cell && g.Head(c) != -1 {
			t.Fatalf("cell %d has head %d, want empty", c, g.Head(c))
		}
	}
}

func TestGridCompleteness(t *testing.T) {
	pool := testPool(t)
	cell := float32(0.5)
	g := NewGrid(10, 10, 10, cell, Vec3{}, 512)
	b := NewBuffers(512)

	// Scatter a deterministic pseudo-random cloud inside the domain.
	seed := uint32(12345)
	next := func() float32 {
		seed = seed*1664525 + 1013904223
		return float32(seed%1000) / 1000
	}
	for i := 0; i < 300; i++ {
		b.Spawn(i, Vec3{next() * 5, next() * 5, next() * 5}, Vec3{}, 1, PhaseWater, 293)
	}

	g.Clear(pool)
	g.Build(pool, b)

	for i := 0; i < 300; i++ {
		found := false
		g.ForNeighbors(b.P[i].Pred, func(j int32) {
			if int(j) == i {
				found = true
			}
		})
		if !found {
			t.Fatalf("particle %d not reachable from its own position", i)
		}
	}
}

func TestGridExcludesInactiveAndOutOfRange(t *testing.T) {
	pool := testPool(t)
	g := NewGrid(4, 4, 4, 1, Vec3{}, 8)
	b := NewBuffers(8)

	b.Spawn(0, Vec3{1, 1, 1}, Vec3{}, 1, PhaseWater, 293)
	b.Spawn(1, Vec3{1, 1, 1}, Vec3{}, 1, PhaseWater, 293)
	b.Deactivate(1)
	b.Spawn(2, Vec3{99, 99, 99}, Vec3{}, 1, PhaseWater, 293)

	g.Clear(pool)
	g.Build(pool, b)

	seen := map[int32]bool{}
	g.ForNeighbors(Vec3{1, 1, 1}, func(j int32) { seen[j] = true })
	if !seen[0] {
		t.Error("active in-range particle missing")
	}
	if seen[1] {
		t.Error("inactive particle present in grid")
	}
	count := 0
	for c := 0; c < g.Cells(); c++ {
		for j := g.Head(c); j != -1; j = g.Next(int(j)) {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("grid holds %d particles, want 1", count)
	}
}

func TestGridCellIndexBounds(t *testing.T) {
	g := NewGrid(4, 4, 4, 1, Vec3{-2, -2, -2}, 8)
	cases := []struct {
		name string
		p    Vec3
		want bool // in range
	}{
		{"origin corner", Vec3{-2, -2, -2}, true},
		{"interior", Vec3{0, 0, 0}, true},
		{"below min", Vec3{-2.1, 0, 0}, false},
		{"just below min x", Vec3{-2.25, 0, 0}, false},
		{"just below min y", Vec3{0, -2.25, 0}, false},
		{"just below min z", Vec3{0, 0, -2.25}, false},
		{"at max edge", Vec3{2, 0, 0}, false},
		{"far outside", Vec3{DespawnSentinel, DespawnSentinel, DespawnSentinel}, false},
	}
	for _, c := range cases {
		got := g.CellIndex(c.p) >= 0
		if got != c.want {
			t.Errorf("%s: in-range = %v, want %v", c.name, got, c.want)
		}
	}

	// Fractionally below a zero origin must not collapse into cell 0.
	g0 := NewGrid(4, 4, 4, 1, Vec3{}, 8)
	if got := g0.CellIndex(Vec3{-0.25, 0.5, 0.5}); got != -1 {
		t.Errorf("CellIndex below origin = %d, want -1", got)
	}
	if got := g0.CellIndex(Vec3{0.5, -0.25, 0.5}); got != -1 {
		t.Errorf("CellIndex below origin on y = %d, want -1", got)
	}
}
