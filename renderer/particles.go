package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/brine/camera"
	"github.com/pthm-cable/brine/fluid"
)

// ToRaylibCamera converts the orbit camera to raylib's 3D camera.
func ToRaylibCamera(c *camera.Orbit) rl.Camera3D {
	eye := c.Eye()
	return rl.Camera3D{
		Position:   rl.NewVector3(eye.X, eye.Y, eye.Z),
		Target:     rl.NewVector3(c.Target.X, c.Target.Y, c.Target.Z),
		Up:         rl.NewVector3(0, 1, 0),
		Fovy:       c.FovY * 180 / 3.14159265,
		Projection: rl.CameraPerspective,
	}
}

// DrawFluid splats the visible particles as low-poly spheres scaled by their
// anisotropic stretch. Runs inside the depth-splat shader pass.
func DrawFluid(b *fluid.Buffers, visible []int32, aniso []fluid.AnisoBasis, radius float32) {
	for _, i := range visible {
		pt := &b.P[i]
		r := radius
		if aniso != nil {
			// Sphere approximation of the ellipsoid: mean of the axes.
			basis := &aniso[i]
			r = (basis.Major.Len() + 2*basis.Minor1.Len()) / 3
		}
		rl.DrawSphereEx(rl.NewVector3(pt.Pos.X, pt.Pos.Y, pt.Pos.Z), r, 4, 6, rl.White)
	}
}

// SecondarySprites renders foam and spray as camera-facing billboards with a
// radial soft-edge sprite.
type SecondarySprites struct {
	tex    rl.Texture2D
	loaded bool
}

// NewSecondarySprites creates an uninitialized sprite renderer.
func NewSecondarySprites() *SecondarySprites { return &SecondarySprites{} }

// Init generates the radial falloff texture. Needs the window.
func (s *SecondarySprites) Init() {
	if s.loaded {
		return
	}
	img := rl.GenImageGradientRadial(64, 64, 0.2, rl.White, rl.Blank)
	s.tex = rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	s.loaded = true
}

// Draw renders every live secondary as a billboard facing the camera.
func (s *SecondarySprites) Draw(cam rl.Camera3D, buf *fluid.SecondaryBuffer) {
	for i := range buf.P {
		if buf.Alive[i] != 1 {
			continue
		}
		sp := &buf.P[i]
		c := rl.NewColor(235, 240, 250, 200)
		if sp.Kind == fluid.SecondarySpray {
			c = rl.NewColor(200, 220, 255, 150)
		}
		rl.DrawBillboard(cam, s.tex,
			rl.NewVector3(sp.Pos.X, sp.Pos.Y, sp.Pos.Z), sp.Size, c)
	}
}

// Unload frees the sprite texture.
func (s *SecondarySprites) Unload() {
	if s.loaded {
		rl.UnloadTexture(s.tex)
		s.loaded = false
	}
}

// DrawObstacles renders the dynamic objects the fluid collides with.
func DrawObstacles(objects []fluid.DynamicObject) {
	for k := range objects {
		obj := &objects[k]
		center := obj.Transform.MulPoint(fluid.Vec3{})
		pos := rl.NewVector3(center.X, center.Y, center.Z)
		if obj.Shape == fluid.ShapeSphere {
			rl.DrawSphereEx(pos, obj.HalfExtents.X, 12, 16, rl.NewColor(120, 110, 100, 255))
			continue
		}
		size := rl.NewVector3(obj.HalfExtents.X*2, obj.HalfExtents.Y*2, obj.HalfExtents.Z*2)
		rl.DrawCubeV(pos, size, rl.NewColor(110, 100, 95, 255))
		rl.DrawCubeWiresV(pos, size, rl.NewColor(60, 55, 50, 255))
	}
}

// DrawDomain outlines the simulation bounds.
func DrawDomain(min, max fluid.Vec3) {
	center := min.Add(max).Scale(0.5)
	size := max.Sub(min)
	rl.DrawCubeWiresV(
		rl.NewVector3(center.X, center.Y, center.Z),
		rl.NewVector3(size.X, size.Y, size.Z),
		rl.NewColor(80, 90, 110, 255),
	)
}
