package camera

import (
	"math"
	"testing"

	"github.com/pthm-cable/brine/fluid"
	"github.com/pthm-cable/brine/ssfr"
)

func TestEyeDistance(t *testing.T) {
	c := New(fluid.Vec3{X: 1, Y: 2, Z: 3}, 10, 16.0/9.0)
	d := c.Eye().Sub(c.Target).Len()
	if math.Abs(float64(d-10)) > 1e-3 {
		t.Fatalf("eye distance = %v, want 10", d)
	}
}

func TestPitchClamp(t *testing.T) {
	c := New(fluid.Vec3{}, 10, 1)
	c.Rotate(0, 10)
	if c.Pitch > c.MaxPitch {
		t.Errorf("pitch %v exceeds max %v", c.Pitch, c.MaxPitch)
	}
	c.Rotate(0, -20)
	if c.Pitch < c.MinPitch {
		t.Errorf("pitch %v below min %v", c.Pitch, c.MinPitch)
	}
}

func TestDollyClamp(t *testing.T) {
	c := New(fluid.Vec3{}, 10, 1)
	c.Dolly(1e6)
	if c.Distance != c.MaxDistance {
		t.Errorf("distance %v, want max %v", c.Distance, c.MaxDistance)
	}
	c.Dolly(1e-9)
	if c.Distance != c.MinDistance {
		t.Errorf("distance %v, want min %v", c.Distance, c.MinDistance)
	}
}

func TestTargetProjectsToScreenCenter(t *testing.T) {
	c := New(fluid.Vec3{X: 5, Y: 3, Z: -2}, 12, 16.0/9.0)
	u, v, _, ok := ssfr.Project(c.ViewProj(), c.Target)
	if !ok {
		t.Fatal("target projection failed")
	}
	if math.Abs(float64(u-0.5)) > 1e-3 || math.Abs(float64(v-0.5)) > 1e-3 {
		t.Fatalf("target projects to (%v,%v), want screen center", u, v)
	}
}

func TestPointBehindCameraRejected(t *testing.T) {
	c := New(fluid.Vec3{}, 10, 1)
	behind := c.Eye().Add(c.Forward().Scale(-5))
	if _, _, _, ok := ssfr.Project(c.ViewProj(), behind); ok {
		t.Error("point behind camera projected ok")
	}
}

func TestFrustumSeesTarget(t *testing.T) {
	c := New(fluid.Vec3{X: 2, Y: 5, Z: 2}, 20, 16.0/9.0)
	f := fluid.FrustumFromMatrix(c.ViewProj())
	if !f.ContainsSphere(c.Target, 0.5) {
		t.Error("frustum rejects its own target")
	}
	behind := c.Eye().Add(c.Forward().Scale(-10))
	if f.ContainsSphere(behind, 0.5) {
		t.Error("frustum accepts point behind the camera")
	}
}

func TestPanMovesTargetInViewPlane(t *testing.T) {
	c := New(fluid.Vec3{}, 10, 1)
	before := c.Target
	forward := c.Forward()
	c.Pan(100, 0)
	moved := c.Target.Sub(before)
	if moved.Len() == 0 {
		t.Fatal("pan did not move target")
	}
	if d := moved.Normalized().Dot(forward); math.Abs(float64(d)) > 1e-3 {
		t.Errorf("pan moved along view direction (dot %v), want view plane", d)
	}
}
