package fluid

import "testing"

func TestSecondaryLifecycle(t *testing.T) {
	pool := testPool(t)
	p := testSimParams()
	buf := NewSecondaryBuffer(32)

	buf.Emit(Vec3{2, 2, 2}, Vec3{0, 1, 0}, 0.5, 0.05, SecondarySpray)
	buf.Emit(Vec3{2, 3, 2}, Vec3{}, 10, 0.1, SecondaryFoam)
	if buf.Count() != 2 {
		t.Fatalf("count = %d, want 2", buf.Count())
	}

	// 0.5s of life at 60Hz: the spray expires, the foam survives.
	for frame := 0; frame < 40; frame++ {
		buf.Update(pool, p)
	}
	if buf.Count() != 1 {
		t.Fatalf("count after spray expiry = %d, want 1", buf.Count())
	}
}

func TestSecondarySprayFalls(t *testing.T) {
	pool := testPool(t)
	p := testSimParams()
	buf := NewSecondaryBuffer(8)

	buf.Emit(Vec3{2, 5, 2}, Vec3{}, 100, 0.05, SecondarySpray)
	for frame := 0; frame < 30; frame++ {
		buf.Update(pool, p)
	}
	var sp *SecondaryParticle
	for i := range buf.P {
		if buf.Alive[i] == 1 {
			sp = &buf.P[i]
		}
	}
	if sp == nil {
		t.Fatal("spray expired early")
	}
	if sp.Pos.Y >= 5 {
		t.Errorf("spray at y=%v, want below spawn height", sp.Pos.Y)
	}
	if sp.Vel.Y >= 0 {
		t.Errorf("spray velocity %v, want downward", sp.Vel.Y)
	}
}

func TestSecondaryRingOverwrite(t *testing.T) {
	buf := NewSecondaryBuffer(4)
	for k := 0; k < 10; k++ {
		buf.Emit(Vec3{float32(k), 1, 1}, Vec3{}, 5, 0.1, SecondaryFoam)
	}
	if buf.Count() != 4 {
		t.Fatalf("count = %d, want ring capacity 4", buf.Count())
	}
}
