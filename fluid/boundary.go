package fluid

// Collision response. Everything here is a soft push-out on predicted
// positions: no impulses, no contact manifolds. The position-based solvers
// turn push-out into velocity change at integration time.

// collisionMargin is the surface offset the push-out targets, keeping
// particles from z-fighting with object surfaces.
const collisionMargin = 0.05

// sdBox returns the signed distance from a local-space point to an
// axis-aligned box with the given half extents.
func sdBox(p, half Vec3) float32 {
	qx := abs32(p.X) - half.X
	qy := abs32(p.Y) - half.Y
	qz := abs32(p.Z) - half.Z
	outside := Vec3{max32(qx, 0), max32(qy, 0), max32(qz, 0)}.Len()
	inside := min32(max32(qx, max32(qy, qz)), 0)
	return outside + inside
}

// sdSphere returns the signed distance from a local-space point to a sphere.
func sdSphere(p Vec3, radius float32) float32 {
	return p.Len() - radius
}

// objectDistance evaluates one dynamic object's signed distance at a world
// point by transforming into object space.
func objectDistance(obj *DynamicObject, world Vec3) float32 {
	local := obj.InvTransform.MulPoint(world)
	if obj.Shape == ShapeSphere {
		return sdSphere(local, obj.HalfExtents.X)
	}
	return sdBox(local, obj.HalfExtents)
}

// objectNormal estimates the world-space outward normal by central
// differences on the object's distance function.
func objectNormal(obj *DynamicObject, world Vec3) Vec3 {
	const e = 0.01
	n := Vec3{
		objectDistance(obj, Vec3{world.X + e, world.Y, world.Z}) - objectDistance(obj, Vec3{world.X - e, world.Y, world.Z}),
		objectDistance(obj, Vec3{world.X, world.Y + e, world.Z}) - objectDistance(obj, Vec3{world.X, world.Y - e, world.Z}),
		objectDistance(obj, Vec3{world.X, world.Y, world.Z + e}) - objectDistance(obj, Vec3{world.X, world.Y, world.Z - e}),
	}
	return n.Normalized()
}

// ObjectDistance returns the signed distance from a world point to a dynamic
// object's surface. Exposed for the distance-field builder.
func ObjectDistance(obj *DynamicObject, world Vec3) float32 {
	return objectDistance(obj, world)
}

// ObjectNormal returns the estimated outward surface normal at a world point.
func ObjectNormal(obj *DynamicObject, world Vec3) Vec3 {
	return objectNormal(obj, world)
}

// resolveObjectCollisions pushes a predicted position out of every
// penetrating dynamic object. maxObjects caps the iteration for reduced
// quality tiers; pass len(objects) for full resolution.
func resolveObjectCollisions(pred Vec3, objects []DynamicObject, maxObjects int) Vec3 {
	n := len(objects)
	if maxObjects < n {
		n = maxObjects
	}
	for k := 0; k < n; k++ {
		obj := &objects[k]
		d := objectDistance(obj, pred)
		if d < collisionMargin {
			normal := objectNormal(obj, pred)
			pred = pred.Add(normal.Scale(collisionMargin - d))
		}
	}
	return pred
}

// resolveFieldCollision pushes a predicted position out of the global
// distance field along its gradient-estimated normal.
func resolveFieldCollision(pred Vec3, field DistanceField) Vec3 {
	if field == nil {
		return pred
	}
	d := field.Sample(pred)
	if d < collisionMargin {
		normal := field.Gradient(pred)
		pred = pred.Add(normal.Scale(collisionMargin - d))
	}
	return pred
}

// clampToDomain keeps a position inside [min,max] and reflects the velocity
// component into the wall scaled by restitution. Returns position, velocity.
func clampToDomain(pos, vel Vec3, p *SimParams) (Vec3, Vec3) {
	r := p.Restitution
	if pos.X < p.BoundsMin.X {
		pos.X = p.BoundsMin.X
		vel.X = -vel.X * r
	} else if pos.X > p.BoundsMax.X {
		pos.X = p.BoundsMax.X
		vel.X = -vel.X * r
	}
	if pos.Y < p.BoundsMin.Y {
		pos.Y = p.BoundsMin.Y
		vel.Y = -vel.Y * r
	} else if pos.Y > p.BoundsMax.Y {
		pos.Y = p.BoundsMax.Y
		vel.Y = -vel.Y * r
	}
	if pos.Z < p.BoundsMin.Z {
		pos.Z = p.BoundsMin.Z
		vel.Z = -vel.Z * r
	} else if pos.Z > p.BoundsMax.Z {
		pos.Z = p.BoundsMax.Z
		vel.Z = -vel.Z * r
	}
	return pos, vel
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
