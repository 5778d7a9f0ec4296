package fluid

import (
	"sync/atomic"

	"github.com/pthm-cable/brine/dispatch"
)

// Per-frame utility passes that prepare particle data for rendering:
// frustum culling with compaction, despawn regions, and the anisotropic
// ellipsoid basis for stretched billboards.

// Plane is n·p + d = 0 with n pointing into the kept half-space.
type Plane struct {
	N Vec3
	D float32
}

// Frustum is the six clip planes: left, right, bottom, top, near, far.
type Frustum [6]Plane

// FrustumFromMatrix extracts clip planes from a column-major view-projection
// matrix. Planes are normalized so signed distances are in world units.
func FrustumFromMatrix(vp Mat4) Frustum {
	row := func(r int) [4]float32 {
		return [4]float32{vp[0*4+r], vp[1*4+r], vp[2*4+r], vp[3*4+r]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	var f Frustum
	set := func(k int, a, b [4]float32, sub bool) {
		var v [4]float32
		for i := 0; i < 4; i++ {
			if sub {
				v[i] = a[i] - b[i]
			} else {
				v[i] = a[i] + b[i]
			}
		}
		n := Vec3{v[0], v[1], v[2]}
		l := n.Len()
		if l < 1e-8 {
			l = 1
		}
		f[k] = Plane{N: n.Scale(1 / l), D: v[3] / l}
	}
	set(0, r3, r0, false) // left
	set(1, r3, r0, true)  // right
	set(2, r3, r1, false) // bottom
	set(3, r3, r1, true)  // top
	set(4, r3, r2, false) // near
	set(5, r3, r2, true)  // far
	return f
}

// ContainsSphere reports whether a sphere intersects the frustum. The test is
// conservative: spheres straddling a plane are kept.
func (f *Frustum) ContainsSphere(c Vec3, radius float32) bool {
	for k := range f {
		if f[k].N.Dot(c)+f[k].D < -radius {
			return false
		}
	}
	return true
}

// VisibleSet is the compacted index list of renderable particles.
type VisibleSet struct {
	Indices []int32
	count   int32
}

// NewVisibleSet allocates for the given particle capacity.
func NewVisibleSet(capacity int) *VisibleSet {
	return &VisibleSet{Indices: make([]int32, capacity)}
}

// Count returns the number of visible particles after the last cull pass.
func (v *VisibleSet) Count() int { return int(atomic.LoadInt32(&v.count)) }

// Visible returns the compacted slice. Index order is nondeterministic
// across runs; renderers must not depend on it.
func (v *VisibleSet) Visible() []int32 { return v.Indices[:v.Count()] }

// Cull compacts the indices of active particles whose bounding sphere
// intersects the frustum. Slot reservation is an atomic counter increment,
// the parallel twin of a GPU append buffer.
func (v *VisibleSet) Cull(pool *dispatch.Pool, b *Buffers, f Frustum, radius float32) {
	atomic.StoreInt32(&v.count, 0)
	pool.Run1D(b.Cap(), func(i int) {
		if !b.IsActive(i) {
			return
		}
		if !f.ContainsSphere(b.P[i].Pos, radius) {
			return
		}
		slot := atomic.AddInt32(&v.count, 1) - 1
		v.Indices[slot] = int32(i)
	})
}

// DespawnRegion is an axis-aligned box that removes any particle entering it.
type DespawnRegion struct {
	Min Vec3
	Max Vec3
}

func (r *DespawnRegion) contains(p Vec3) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X &&
		p.Y >= r.Min.Y && p.Y <= r.Max.Y &&
		p.Z >= r.Min.Z && p.Z <= r.Max.Z
}

// Despawn deactivates every active particle inside any region and bumps the
// frame despawn counter. Deactivated slots park at the sentinel position so
// they drop out of the grid and every frustum test.
func Despawn(pool *dispatch.Pool, b *Buffers, regions []DespawnRegion) {
	if len(regions) == 0 {
		return
	}
	pool.Run1D(b.Cap(), func(i int) {
		if !b.IsActive(i) {
			return
		}
		for k := range regions {
			if regions[k].contains(b.P[i].Pos) {
				b.Deactivate(i)
				atomic.AddInt32(&b.despawned, 1)
				return
			}
		}
	})
}

// AnisoBasis is an oriented ellipsoid for a stretched particle billboard:
// Major points along the velocity, scaled by the stretch factor; the minor
// axes shrink by 1/sqrt(stretch) so the ellipsoid volume stays constant.
type AnisoBasis struct {
	Major  Vec3
	Minor1 Vec3
	Minor2 Vec3
}

// maxStretch caps velocity stretching so fast droplets stay droplets.
const maxStretch = 4.0

// ComputeAnisotropy fills out with per-particle ellipsoid bases. radius is
// the isotropic particle render radius; stretchScale converts speed to
// elongation (stretch = clamp(1 + |v|·scale, 1, 4)). Slots for inactive
// particles are zeroed.
func ComputeAnisotropy(pool *dispatch.Pool, b *Buffers, out []AnisoBasis, radius, stretchScale float32) {
	pool.Run1D(b.Cap(), func(i int) {
		out[i] = AnisoBasis{}
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]

		speed := pt.Vel.Len()
		stretch := 1 + speed*stretchScale
		if stretch > maxStretch {
			stretch = maxStretch
		}

		major := Vec3{0, 1, 0}
		if speed > 1e-5 {
			major = pt.Vel.Scale(1 / speed)
		}
		// Any axis not parallel to major works as the orthogonalization seed.
		up := Vec3{0, 1, 0}
		if abs32(major.Y) > 0.99 {
			up = Vec3{1, 0, 0}
		}
		minor1 := major.Cross(up).Normalized()
		minor2 := major.Cross(minor1)

		shrink := radius / sqrt32(stretch)
		out[i] = AnisoBasis{
			Major:  major.Scale(radius * stretch),
			Minor1: minor1.Scale(shrink),
			Minor2: minor2.Scale(shrink),
		}
	})
}
