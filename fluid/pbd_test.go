package fluid

import (
	"math"
	"testing"
)

func testSimParams() *SimParams {
	return &SimParams{
		H:             0.5,
		TargetDensity: 1000,
		Gravity:       -9.81,
		DT:            1.0 / 60.0,
		Mass:          1000 * 0.25 * 0.25 * 0.25,
		CellSize:      0.5,
		GridWidth:     10,
		GridHeight:    20,
		GridDepth:     10,
		BoundsMin:     Vec3{0, 0, 0},
		BoundsMax:     Vec3{5, 10, 5},
		Restitution:   0.1,
	}
}

func testPBDParams() PBDParams {
	return PBDParams{
		Iterations:    4,
		ConstraintEps: 100,
		SCorrStrength: 0.0001,
		XSPHViscosity: 0.05,
		QualityScale:  1,
		RestSpeedSq:   0.0004,
		RestFrames:    5,
	}
}

// spawnCube fills a side³ lattice at half-h spacing starting at origin.
func spawnCube(b *Buffers, origin Vec3, side int, spacing, mass float32) int {
	n := 0
	for x := 0; x < side; x++ {
		for y := 0; y < side; y++ {
			for z := 0; z < side; z++ {
				pos := origin.Add(Vec3{float32(x), float32(y), float32(z)}.Scale(spacing))
				b.Spawn(n, pos, Vec3{}, mass, PhaseWater, 293)
				n++
			}
		}
	}
	return n
}

func isFinite(v Vec3) bool {
	f := func(x float32) bool { return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0) }
	return f(v.X) && f(v.Y) && f(v.Z)
}

func TestPBDCubeSettles(t *testing.T) {
	if testing.Short() {
		t.Skip("settling run")
	}
	pool := testPool(t)
	p := testSimParams()
	b := NewBuffers(1024)
	grid := NewGrid(p.GridWidth, p.GridHeight, p.GridDepth, p.CellSize, p.BoundsMin, b.Cap())
	solver := NewPBDSolver(pool, grid, testPBDParams(), b.Cap())

	n := spawnCube(b, Vec3{1.5, 0.5, 1.5}, 10, p.H/2, p.Mass)
	if n != 1000 {
		t.Fatalf("spawned %d, want 1000", n)
	}
	startY := avgHeight(b)

	for frame := 0; frame < 120; frame++ {
		solver.Step(b, p)
	}

	if got := b.ActiveCount(); got != n {
		t.Fatalf("active count %d after run, want %d", got, n)
	}
	sumSpeed := float32(0)
	for i := 0; i < n; i++ {
		pt := &b.P[i]
		if !isFinite(pt.Pos) || !isFinite(pt.Vel) {
			t.Fatalf("particle %d diverged: pos %+v vel %+v", i, pt.Pos, pt.Vel)
		}
		if pt.Pos.X < p.BoundsMin.X || pt.Pos.X > p.BoundsMax.X ||
			pt.Pos.Y < p.BoundsMin.Y || pt.Pos.Y > p.BoundsMax.Y ||
			pt.Pos.Z < p.BoundsMin.Z || pt.Pos.Z > p.BoundsMax.Z {
			t.Fatalf("particle %d escaped domain: %+v", i, pt.Pos)
		}
		sumSpeed += pt.Vel.Len()
	}
	if avg := sumSpeed / float32(n); avg > 0.5 {
		t.Errorf("avg speed after settling = %v, want < 0.5", avg)
	}
	if endY := avgHeight(b); endY >= startY {
		t.Errorf("avg height %v did not drop from %v", endY, startY)
	}
}

func avgHeight(b *Buffers) float32 {
	sum := float32(0)
	n := 0
	for i := range b.P {
		if b.IsActive(i) {
			sum += b.P[i].Pos.Y
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float32(n)
}

func TestPBDSingleParticleFallsToFloor(t *testing.T) {
	pool := testPool(t)
	p := testSimParams()
	b := NewBuffers(8)
	grid := NewGrid(p.GridWidth, p.GridHeight, p.GridDepth, p.CellSize, p.BoundsMin, b.Cap())
	solver := NewPBDSolver(pool, grid, testPBDParams(), b.Cap())

	b.Spawn(0, Vec3{2.5, 5, 2.5}, Vec3{}, p.Mass, PhaseWater, 293)
	for frame := 0; frame < 180; frame++ {
		solver.Step(b, p)
	}

	pt := &b.P[0]
	if !isFinite(pt.Pos) {
		t.Fatalf("diverged: %+v", pt.Pos)
	}
	if pt.Pos.Y > 0.5 {
		t.Errorf("particle at y=%v, want near floor", pt.Pos.Y)
	}
	if pt.Pos.X < 2 || pt.Pos.X > 3 || pt.Pos.Z < 2 || pt.Pos.Z > 3 {
		t.Errorf("isolated particle drifted laterally: %+v", pt.Pos)
	}
}

func TestPBDRestingDetection(t *testing.T) {
	pool := testPool(t)
	p := testSimParams()
	p.Gravity = 0
	b := NewBuffers(8)
	grid := NewGrid(p.GridWidth, p.GridHeight, p.GridDepth, p.CellSize, p.BoundsMin, b.Cap())
	solver := NewPBDSolver(pool, grid, testPBDParams(), b.Cap())

	b.Spawn(0, Vec3{2.5, 2.5, 2.5}, Vec3{}, p.Mass, PhaseWater, 293)
	for frame := 0; frame < 10; frame++ {
		solver.Step(b, p)
	}
	if solver.RestingCount() != 1 {
		t.Errorf("resting count = %d, want 1", solver.RestingCount())
	}
	if got := b.P[0].Pos; got != (Vec3{2.5, 2.5, 2.5}) {
		t.Errorf("resting particle moved to %+v", got)
	}
}

func TestPBDObjectCollisionPushesOut(t *testing.T) {
	obj := DynamicObject{
		Transform:    Identity4(),
		InvTransform: Identity4(),
		HalfExtents:  Vec3{1, 1, 1},
		Shape:        ShapeSphere,
	}
	inside := Vec3{0.2, 0, 0}
	out := resolveObjectCollisions(inside, []DynamicObject{obj}, 1)
	if d := objectDistance(&obj, out); d < collisionMargin-1e-3 {
		t.Errorf("still penetrating after resolve: d=%v at %+v", d, out)
	}
	free := Vec3{3, 0, 0}
	if got := resolveObjectCollisions(free, []DynamicObject{obj}, 1); got != free {
		t.Errorf("non-penetrating position moved: %+v", got)
	}
}
