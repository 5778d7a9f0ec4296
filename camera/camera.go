// Package camera provides the orbit camera for viewing the fluid volume.
package camera

import (
	"math"

	"github.com/pthm-cable/brine/fluid"
)

// Orbit circles a target point at a distance, steered by yaw and pitch.
// It produces the view-projection matrices the culling and reprojection
// passes consume.
type Orbit struct {
	Target   fluid.Vec3
	Yaw      float32 // Radians around Y
	Pitch    float32 // Radians above the horizon
	Distance float32

	MinDistance, MaxDistance float32
	MinPitch, MaxPitch       float32

	FovY   float32 // Radians
	Aspect float32
	Near   float32
	Far    float32
}

// New creates a camera orbiting the target at the given distance.
func New(target fluid.Vec3, distance, aspect float32) *Orbit {
	return &Orbit{
		Target:      target,
		Yaw:         0.8,
		Pitch:       0.5,
		Distance:    distance,
		MinDistance: 2,
		MaxDistance: 200,
		MinPitch:    -1.45,
		MaxPitch:    1.45,
		FovY:        float32(math.Pi / 4),
		Aspect:      aspect,
		Near:        0.1,
		Far:         500,
	}
}

// Rotate adjusts yaw and pitch, clamping pitch short of the poles.
func (c *Orbit) Rotate(dyaw, dpitch float32) {
	c.Yaw += dyaw
	c.Pitch = clamp(c.Pitch+dpitch, c.MinPitch, c.MaxPitch)
}

// Dolly scales the orbit distance, clamped to the configured range.
func (c *Orbit) Dolly(factor float32) {
	c.Distance = clamp(c.Distance*factor, c.MinDistance, c.MaxDistance)
}

// Pan moves the target in the view plane by screen-relative deltas.
func (c *Orbit) Pan(dx, dy float32) {
	right, up := c.basis()
	scale := c.Distance * 0.002
	c.Target = c.Target.Add(right.Scale(-dx * scale)).Add(up.Scale(dy * scale))
}

// Resize updates the aspect ratio.
func (c *Orbit) Resize(aspect float32) {
	if aspect > 0 {
		c.Aspect = aspect
	}
}

// Eye returns the camera position in world space.
func (c *Orbit) Eye() fluid.Vec3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	return c.Target.Add(fluid.Vec3{
		X: cp * float32(math.Cos(float64(c.Yaw))),
		Y: float32(math.Sin(float64(c.Pitch))),
		Z: cp * float32(math.Sin(float64(c.Yaw))),
	}.Scale(c.Distance))
}

// Forward returns the normalized view direction.
func (c *Orbit) Forward() fluid.Vec3 {
	return c.Target.Sub(c.Eye()).Normalized()
}

func (c *Orbit) basis() (right, up fluid.Vec3) {
	f := c.Forward()
	right = f.Cross(fluid.Vec3{Y: 1}).Normalized()
	up = right.Cross(f)
	return right, up
}

// View returns the world-to-camera matrix.
func (c *Orbit) View() fluid.Mat4 {
	eye := c.Eye()
	f := c.Target.Sub(eye).Normalized()
	s := f.Cross(fluid.Vec3{Y: 1}).Normalized()
	u := s.Cross(f)

	var m fluid.Mat4
	m[0], m[4], m[8] = s.X, s.Y, s.Z
	m[1], m[5], m[9] = u.X, u.Y, u.Z
	m[2], m[6], m[10] = -f.X, -f.Y, -f.Z
	m[12] = -s.Dot(eye)
	m[13] = -u.Dot(eye)
	m[14] = f.Dot(eye)
	m[15] = 1
	return m
}

// Proj returns the perspective projection matrix.
func (c *Orbit) Proj() fluid.Mat4 {
	f := 1 / float32(math.Tan(float64(c.FovY/2)))
	var m fluid.Mat4
	m[0] = f / c.Aspect
	m[5] = f
	m[10] = (c.Far + c.Near) / (c.Near - c.Far)
	m[11] = -1
	m[14] = 2 * c.Far * c.Near / (c.Near - c.Far)
	return m
}

// ViewProj returns the combined view-projection matrix.
func (c *Orbit) ViewProj() fluid.Mat4 {
	return c.Proj().Mul(c.View())
}

func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
