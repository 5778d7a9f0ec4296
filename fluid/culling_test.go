package fluid

import (
	"math"
	"testing"
)

// With an identity view-projection the frustum is the [-1,1] clip cube.
func TestFrustumFromIdentityMatrix(t *testing.T) {
	f := FrustumFromMatrix(Identity4())
	cases := []struct {
		name   string
		center Vec3
		radius float32
		want   bool
	}{
		{"origin", Vec3{0, 0, 0}, 0.1, true},
		{"near corner inside", Vec3{0.9, 0.9, 0.9}, 0.05, true},
		{"outside +x", Vec3{2, 0, 0}, 0.5, false},
		{"outside -y", Vec3{0, -3, 0}, 0.5, false},
		{"straddling kept", Vec3{1.2, 0, 0}, 0.5, true},
		{"sentinel", Vec3{DespawnSentinel, DespawnSentinel, DespawnSentinel}, 1, false},
	}
	for _, c := range cases {
		if got := f.ContainsSphere(c.center, c.radius); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestCullCompaction(t *testing.T) {
	pool := testPool(t)
	b := NewBuffers(64)
	f := FrustumFromMatrix(Identity4())

	inside := []int{0, 5, 9}
	for _, i := range inside {
		b.Spawn(i, Vec3{0, 0, 0}, Vec3{}, 1, PhaseWater, 293)
	}
	b.Spawn(20, Vec3{50, 0, 0}, Vec3{}, 1, PhaseWater, 293)
	b.Spawn(21, Vec3{0, 0, 0}, Vec3{}, 1, PhaseWater, 293)
	b.Deactivate(21)

	vs := NewVisibleSet(b.Cap())
	vs.Cull(pool, b, f, 0.1)

	if vs.Count() != len(inside) {
		t.Fatalf("visible = %d, want %d", vs.Count(), len(inside))
	}
	seen := map[int32]bool{}
	for _, idx := range vs.Visible() {
		seen[idx] = true
	}
	for _, i := range inside {
		if !seen[int32(i)] {
			t.Errorf("particle %d missing from visible set", i)
		}
	}

	// A second cull resets the counter rather than appending.
	vs.Cull(pool, b, f, 0.1)
	if vs.Count() != len(inside) {
		t.Fatalf("recull visible = %d, want %d", vs.Count(), len(inside))
	}
}

func TestDespawnRegions(t *testing.T) {
	pool := testPool(t)
	b := NewBuffers(16)
	b.Spawn(0, Vec3{1, 1, 1}, Vec3{}, 1, PhaseWater, 293)
	b.Spawn(1, Vec3{5, 5, 5}, Vec3{}, 1, PhaseWater, 293)
	b.Spawn(2, Vec3{1.5, 1.5, 1.5}, Vec3{}, 1, PhaseWater, 293)

	regions := []DespawnRegion{{Min: Vec3{0, 0, 0}, Max: Vec3{2, 2, 2}}}
	Despawn(pool, b, regions)

	if b.IsActive(0) || b.IsActive(2) {
		t.Error("particles inside region still active")
	}
	if !b.IsActive(1) {
		t.Error("particle outside region deactivated")
	}
	if got := b.DespawnedThisFrame(); got != 2 {
		t.Errorf("despawn count = %d, want 2", got)
	}
	if got := b.DespawnedThisFrame(); got != 0 {
		t.Errorf("despawn count not reset, got %d", got)
	}
	if b.P[0].Pos.X != DespawnSentinel {
		t.Errorf("despawned particle not parked: %+v", b.P[0].Pos)
	}
}

func TestAnisotropyBasis(t *testing.T) {
	pool := testPool(t)
	b := NewBuffers(8)
	radius := float32(0.2)

	b.Spawn(0, Vec3{}, Vec3{3, 0, 0}, 1, PhaseWater, 293) // moving
	b.Spawn(1, Vec3{}, Vec3{}, 1, PhaseWater, 293)        // still
	b.Spawn(2, Vec3{}, Vec3{100, 0, 0}, 1, PhaseWater, 293)

	out := make([]AnisoBasis, b.Cap())
	ComputeAnisotropy(pool, b, out, radius, 0.5)

	// Moving particle: major along velocity, stretched, minors orthogonal.
	mov := out[0]
	if mov.Major.X <= radius {
		t.Errorf("major not stretched along velocity: %+v", mov.Major)
	}
	if d := mov.Major.Dot(mov.Minor1); abs32(d) > 1e-4 {
		t.Errorf("major·minor1 = %v, want 0", d)
	}
	if d := mov.Minor1.Dot(mov.Minor2); abs32(d) > 1e-4 {
		t.Errorf("minor1·minor2 = %v, want 0", d)
	}
	// Volume preservation: |major|·|minor1|·|minor2| == radius³.
	vol := mov.Major.Len() * mov.Minor1.Len() * mov.Minor2.Len()
	if math.Abs(float64(vol-radius*radius*radius)) > 1e-4 {
		t.Errorf("ellipsoid volume factor %v, want %v", vol, radius*radius*radius)
	}

	// Still particle: unit sphere of the render radius.
	still := out[1]
	if l := still.Major.Len(); abs32(l-radius) > 1e-4 {
		t.Errorf("still particle major length %v, want %v", l, radius)
	}

	// Extreme speed clamps at the max stretch factor.
	fast := out[2]
	if l := fast.Major.Len(); l > radius*maxStretch+1e-4 {
		t.Errorf("stretch %v exceeds clamp", l/radius)
	}

	if out[3] != (AnisoBasis{}) {
		t.Error("inactive slot not zeroed")
	}
}
