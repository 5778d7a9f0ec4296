package fluid

import "testing"

func testPCISPHParams() PCISPHParams {
	return PCISPHParams{
		MinIterations:    3,
		MaxIterations:    8,
		DensityThreshold: 0.01,
		DeltaScale:       1,
		WarmStartFactor:  0.5,
		Viscosity:        0.001,
		ShiftingStrength: 0.04,
		SurfaceThreshold: 0.7,
		MaxShiftRatio:    0.1,
		QualityScale:     1,
	}
}

func TestPCISPHStiffnessPositive(t *testing.T) {
	p := testSimParams()
	if d := pcisphStiffness(p); d <= 0 {
		t.Fatalf("stiffness = %v, want > 0", d)
	}
}

func TestPCISPHRestLatticeStable(t *testing.T) {
	pool := testPool(t)
	p := testSimParams()
	p.Gravity = 0
	b := NewBuffers(1024)
	grid := NewGrid(p.GridWidth, p.GridHeight, p.GridDepth, p.CellSize, p.BoundsMin, b.Cap())
	solver := NewPCISPHSolver(pool, grid, testPCISPHParams())

	n := spawnCube(b, Vec3{1.5, 1.5, 1.5}, 8, p.H/2, p.Mass)
	before := make([]Vec3, n)
	for i := 0; i < n; i++ {
		before[i] = b.P[i].Pos
	}

	conv := solver.Step(b, p)

	if conv.Iteration < 3 || conv.Iteration > 8 {
		t.Errorf("iterations = %d, want within [3,8]", conv.Iteration)
	}
	if conv.MaxDensityError < conv.AvgDensityError {
		t.Errorf("max error %v below avg %v", conv.MaxDensityError, conv.AvgDensityError)
	}
	for i := 0; i < n; i++ {
		pt := &b.P[i]
		if !isFinite(pt.Pos) {
			t.Fatalf("particle %d diverged: %+v", i, pt.Pos)
		}
		if pt.Pressure < 0 {
			t.Fatalf("particle %d has negative pressure %v", i, pt.Pressure)
		}
		if pt.PrevPressure != pt.Pressure {
			t.Fatalf("particle %d warm-start source not stored", i)
		}
		if d := pt.Pos.Sub(before[i]).Len(); d > p.H {
			t.Fatalf("particle %d moved %v in one quiescent step", i, d)
		}
	}
}

func TestPCISPHConvergenceWiring(t *testing.T) {
	pool := testPool(t)
	p := testSimParams()
	p.Gravity = 0
	b := NewBuffers(512)
	grid := NewGrid(p.GridWidth, p.GridHeight, p.GridDepth, p.CellSize, p.BoundsMin, b.Cap())
	solver := NewPCISPHSolver(pool, grid, testPCISPHParams())

	spawnCube(b, Vec3{2, 2, 2}, 5, p.H/2, p.Mass)

	solver.BeginStep(b, p)
	var st ConvergenceState
	for k := 0; k < 3; k++ {
		st = solver.IterationPass(b, p)
	}
	solver.EndStep(b, p)

	if st.Iteration != 3 {
		t.Errorf("iteration = %d, want 3", st.Iteration)
	}
	if got := st.MaxDensityError < solver.params.DensityThreshold; got != st.Converged {
		t.Errorf("converged flag %v inconsistent with max error %v", st.Converged, st.MaxDensityError)
	}
	if solver.Convergence() != st {
		t.Error("Convergence() disagrees with last IterationPass result")
	}
}

func TestPCISPHDensityErrorConvergence(t *testing.T) {
	if testing.Short() {
		t.Skip("multi-frame run")
	}
	pool := testPool(t)
	p := testSimParams()
	p.Gravity = 0
	b := NewBuffers(1024)
	grid := NewGrid(p.GridWidth, p.GridHeight, p.GridDepth, p.CellSize, p.BoundsMin, b.Cap())
	solver := NewPCISPHSolver(pool, grid, testPCISPHParams())

	spawnCube(b, Vec3{1.5, 1.5, 1.5}, 8, p.H/2, p.Mass)

	// Let the block relax into its equilibrium spacing first.
	for frame := 0; frame < 20; frame++ {
		solver.Step(b, p)
	}

	solver.BeginStep(b, p)
	var st ConvergenceState
	for k := 0; k < solver.params.MaxIterations; k++ {
		st = solver.IterationPass(b, p)
		if st.Iteration >= solver.params.MinIterations && st.Converged {
			break
		}
	}
	if st.AvgDensityError >= 0.01 {
		t.Fatalf("average density error %v after %d iterations, want < 1%%",
			st.AvgDensityError, st.Iteration)
	}
	if st.MaxDensityError < st.AvgDensityError {
		t.Fatalf("max error %v below avg %v", st.MaxDensityError, st.AvgDensityError)
	}

	// A converged state must stay converged: extra corrective passes may not
	// reopen the density error.
	for k := 0; k < 8; k++ {
		st = solver.IterationPass(b, p)
		if st.AvgDensityError >= 0.01 {
			t.Fatalf("extra pass %d reopened average density error to %v", k, st.AvgDensityError)
		}
	}
	solver.EndStep(b, p)

	for i := range b.P {
		if b.IsActive(i) && !isFinite(b.P[i].Pos) {
			t.Fatalf("particle %d diverged: %+v", i, b.P[i].Pos)
		}
	}
}

func TestPCISPHDamBreakContained(t *testing.T) {
	if testing.Short() {
		t.Skip("multi-frame run")
	}
	pool := testPool(t)
	p := testSimParams()
	b := NewBuffers(1024)
	grid := NewGrid(p.GridWidth, p.GridHeight, p.GridDepth, p.CellSize, p.BoundsMin, b.Cap())
	solver := NewPCISPHSolver(pool, grid, testPCISPHParams())

	n := spawnCube(b, Vec3{0.5, 1, 0.5}, 8, p.H/2, p.Mass)

	for frame := 0; frame < 60; frame++ {
		solver.Step(b, p)
	}

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
	}
}

func TestPCISPHSurfaceExemptFromShift(t *testing.T) {
	pool := testPool(t)
	p := testSimParams()
	p.Gravity = 0
	b := NewBuffers(1024)
	grid := NewGrid(p.GridWidth, p.GridHeight, p.GridDepth, p.CellSize, p.BoundsMin, b.Cap())
	solver := NewPCISPHSolver(pool, grid, testPCISPHParams())

	spawnCube(b, Vec3{1.5, 1.5, 1.5}, 8, p.H/2, p.Mass)
	solver.Step(b, p)

	surface, interior := 0, 0
	for i := range b.P {
		if !b.IsActive(i) {
			continue
		}
		if b.P[i].IsSurface {
			surface++
			if b.P[i].Shift != (Vec3{}) {
				t.Fatalf("surface particle %d has shift %+v", i, b.P[i].Shift)
			}
		} else {
			interior++
		}
	}
	if surface == 0 {
		t.Error("cube has no surface particles")
	}
	if interior == 0 {
		t.Error("cube has no interior particles")
	}
}
