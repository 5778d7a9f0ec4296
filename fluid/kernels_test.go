package fluid

import (
	"math"
	"testing"
)

func TestCubicSplineSupport(t *testing.T) {
	h := float32(0.25)
	cases := []struct {
		name     string
		r        float32
		wantZero bool
	}{
		{"center", 0, false},
		{"inner", 0.5 * h, false},
		{"outer lobe", 1.5 * h, false},
		{"support edge", 2 * h, true},
		{"beyond", 3 * h, true},
	}
	for _, c := range cases {
		w := CubicSpline(c.r, h)
		if c.wantZero && w != 0 {
			t.Errorf("%s: W(%v) = %v, want 0", c.name, c.r, w)
		}
		if !c.wantZero && w <= 0 {
			t.Errorf("%s: W(%v) = %v, want > 0", c.name, c.r, w)
		}
	}
}

func TestCubicSplineMonotone(t *testing.T) {
	h := float32(0.25)
	prev := CubicSpline(0, h)
	for i := 1; i <= 40; i++ {
		r := float32(i) * 2 * h / 40
		w := CubicSpline(r, h)
		if w > prev {
			t.Fatalf("W not monotone: W(%v)=%v > previous %v", r, w, prev)
		}
		prev = w
	}
}

func TestCubicSplineGradSign(t *testing.T) {
	h := float32(0.25)
	for i := 1; i < 40; i++ {
		r := float32(i) * 2 * h / 40
		if g := CubicSplineGrad(r, h); g >= 0 {
			t.Fatalf("dW/dr at r=%v is %v, want negative inside support", r, g)
		}
	}
	if g := CubicSplineGrad(2*h, h); g != 0 {
		t.Fatalf("dW/dr at support edge = %v, want 0", g)
	}
}

func TestWendlandC2Support(t *testing.T) {
	h := float32(0.5)
	if w := WendlandC2(0, h); w <= 0 {
		t.Fatalf("W(0) = %v, want > 0", w)
	}
	if w := WendlandC2(h, h); w != 0 {
		t.Fatalf("W(h) = %v, want 0", w)
	}
	if w := WendlandC2(2*h, h); w != 0 {
		t.Fatalf("W(2h) = %v, want 0", w)
	}
	prev := WendlandC2(0, h)
	for i := 1; i <= 40; i++ {
		r := float32(i) * h / 40
		w := WendlandC2(r, h)
		if w > prev {
			t.Fatalf("W not monotone at r=%v", r)
		}
		prev = w
	}
}

func TestWendlandC2GradMatchesFiniteDifference(t *testing.T) {
	h := float32(0.5)
	eps := float32(1e-3)
	for _, r := range []float32{0.1, 0.2, 0.3, 0.45} {
		want := (WendlandC2(r+eps, h) - WendlandC2(r-eps, h)) / (2 * eps)
		got := WendlandC2Grad(r, h)
		if math.Abs(float64(got-want)) > 0.05*math.Abs(float64(want))+1e-3 {
			t.Errorf("grad at r=%v: got %v, finite difference %v", r, got, want)
		}
	}
}

func TestKernelGradVecDirection(t *testing.T) {
	h := float32(0.5)
	rij := Vec3{0.2, 0, 0}
	g := kernelGradVec(rij, rij.Len(), WendlandC2Grad(rij.Len(), h))
	// dW/dr < 0, so the gradient points from i back toward j.
	if g.X >= 0 {
		t.Fatalf("gradient X = %v, want negative", g.X)
	}
	if g.Y != 0 || g.Z != 0 {
		t.Fatalf("gradient off-axis: %+v", g)
	}
	if z := kernelGradVec(Vec3{}, 0, -1); z != (Vec3{}) {
		t.Fatalf("zero-separation gradient = %+v, want zero", z)
	}
}
