// Package scene manages the dynamic obstacles the fluid collides with. The
// entity store is an ECS world; each frame the orchestrator updates motion
// and flattens the live entities into the plain object list the solvers and
// the distance-field builder consume.
package scene

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/brine/fluid"
)

// Transform is an entity's world placement: position plus yaw around Y.
type Transform struct {
	Pos fluid.Vec3
	Yaw float32
}

// Shape is the collision geometry. For spheres the radius is HalfExtents.X.
type Shape struct {
	Kind        int // fluid.ShapeBox or fluid.ShapeSphere
	HalfExtents fluid.Vec3
}

// Motion is linear and angular velocity for animated obstacles.
type Motion struct {
	Vel     fluid.Vec3
	YawRate float32
}

// Scene owns the obstacle world.
type Scene struct {
	world  ecs.World
	mapper ecs.Map3[Transform, Shape, Motion]
	filter ecs.Filter3[Transform, Shape, Motion]

	minHalfExtent float32
	maxObjects    int

	// Flatten target, reused across frames.
	objects []fluid.DynamicObject
}

// New creates an empty scene. minHalfExtent clamps degenerate geometry;
// maxObjects bounds the flattened list the solvers see.
func New(minHalfExtent float32, maxObjects int) *Scene {
	s := &Scene{
		world:         ecs.NewWorld(),
		minHalfExtent: minHalfExtent,
		maxObjects:    maxObjects,
		objects:       make([]fluid.DynamicObject, 0, maxObjects),
	}
	s.mapper = *ecs.NewMap3[Transform, Shape, Motion](&s.world)
	s.filter = *ecs.NewFilter3[Transform, Shape, Motion](&s.world)
	return s
}

// AddBox spawns a box obstacle and returns its entity.
func (s *Scene) AddBox(pos, halfExtents fluid.Vec3, yaw float32) ecs.Entity {
	return s.mapper.NewEntity(
		&Transform{Pos: pos, Yaw: yaw},
		&Shape{Kind: fluid.ShapeBox, HalfExtents: halfExtents},
		&Motion{},
	)
}

// AddSphere spawns a sphere obstacle and returns its entity.
func (s *Scene) AddSphere(pos fluid.Vec3, radius float32) ecs.Entity {
	return s.mapper.NewEntity(
		&Transform{Pos: pos},
		&Shape{Kind: fluid.ShapeSphere, HalfExtents: fluid.Vec3{X: radius}},
		&Motion{},
	)
}

// SetMotion assigns velocity and spin to an obstacle.
func (s *Scene) SetMotion(e ecs.Entity, vel fluid.Vec3, yawRate float32) {
	_, _, m := s.mapper.Get(e)
	m.Vel = vel
	m.YawRate = yawRate
}

// Remove despawns an obstacle.
func (s *Scene) Remove(e ecs.Entity) {
	s.world.RemoveEntity(e)
}

// Update advances obstacle motion by dt.
func (s *Scene) Update(dt float32) {
	query := s.filter.Query()
	for query.Next() {
		tr, _, m := query.Get()
		tr.Pos = tr.Pos.Add(m.Vel.Scale(dt))
		tr.Yaw += m.YawRate * dt
	}
}

// Flatten rebuilds and returns the object list for the solvers. Half extents
// clamp to the configured minimum so a zero-size entity cannot produce a
// degenerate distance function. Entities beyond the object cap are dropped,
// oldest kept.
func (s *Scene) Flatten() []fluid.DynamicObject {
	s.objects = s.objects[:0]
	query := s.filter.Query()
	for query.Next() {
		if len(s.objects) >= s.maxObjects {
			query.Close()
			break
		}
		tr, sh, _ := query.Get()

		half := sh.HalfExtents
		half.X = max32(half.X, s.minHalfExtent)
		if sh.Kind == fluid.ShapeBox {
			half.Y = max32(half.Y, s.minHalfExtent)
			half.Z = max32(half.Z, s.minHalfExtent)
		}

		m := fluid.Translate(tr.Pos).Mul(fluid.RotateY(tr.Yaw))
		s.objects = append(s.objects, fluid.DynamicObject{
			Transform:    m,
			InvTransform: m.RigidInverse(),
			HalfExtents:  half,
			Shape:        sh.Kind,
		})
	}
	return s.objects
}

// Count returns the number of live obstacles.
func (s *Scene) Count() int {
	n := 0
	query := s.filter.Query()
	for query.Next() {
		n++
	}
	return n
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
