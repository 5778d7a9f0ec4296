// Package sdf builds a voxelized distance field over the simulation domain
// from the dynamic-object list using jump flooding, and serves it to the
// solvers through the fluid.DistanceField interface.
//
// Jump flooding propagates nearest-seed candidates in log2(res) passes with
// halving step sizes instead of one exact but quadratic sweep. The result is
// approximate near voxel boundaries, within about one voxel of exact, which
// is below the collision margin the solvers use.
package sdf

import (
	"fmt"

	"github.com/pthm-cable/brine/dispatch"
	"github.com/pthm-cable/brine/fluid"
)

// noSeed marks voxels that have not received a surface candidate yet.
const noSeed = float32(1e6)

// Field is the voxel distance grid. Build populates it; Sample and Gradient
// serve the solvers between rebuilds.
type Field struct {
	Res    int
	Min    fluid.Vec3
	Max    fluid.Vec3
	Signed bool

	pool  *dispatch.Pool
	voxel fluid.Vec3 // Per-axis voxel size

	dist  []float32
	seeds []fluid.Vec3 // Nearest surface point per voxel
	back  []fluid.Vec3 // Ping-pong target
	valid []int32      // 1 = seeds[i] holds a candidate
	vback []int32
}

// NewField allocates a res³ field over [min,max]. res must be a power of two
// so the jump-flood step sequence lands exactly on 1.
func NewField(pool *dispatch.Pool, res int, min, max fluid.Vec3) (*Field, error) {
	if res < 2 || res&(res-1) != 0 {
		return nil, fmt.Errorf("sdf: resolution %d is not a power of two >= 2", res)
	}
	n := res * res * res
	f := &Field{
		Res:  res,
		Min:  min,
		Max:  max,
		pool: pool,
		voxel: fluid.Vec3{
			X: (max.X - min.X) / float32(res),
			Y: (max.Y - min.Y) / float32(res),
			Z: (max.Z - min.Z) / float32(res),
		},
		dist:  make([]float32, n),
		seeds: make([]fluid.Vec3, n),
		back:  make([]fluid.Vec3, n),
		valid: make([]int32, n),
		vback: make([]int32, n),
	}
	for i := range f.dist {
		f.dist[i] = noSeed
	}
	return f, nil
}

func (f *Field) index(x, y, z int) int {
	return (z*f.Res+y)*f.Res + x
}

func (f *Field) center(x, y, z int) fluid.Vec3 {
	return fluid.Vec3{
		X: f.Min.X + (float32(x)+0.5)*f.voxel.X,
		Y: f.Min.Y + (float32(y)+0.5)*f.voxel.Y,
		Z: f.Min.Z + (float32(z)+0.5)*f.voxel.Z,
	}
}

// Build regenerates the field from the object list: seed voxels near any
// surface, flood the seeds, then convert to scalar distances. With no
// objects every voxel stays at the far sentinel, which reads as "no surface
// anywhere" to the solvers.
func (f *Field) Build(objects []fluid.DynamicObject) {
	n := len(f.dist)
	if len(objects) == 0 {
		f.pool.Run1D(n, func(i int) { f.dist[i] = noSeed })
		return
	}

	f.seedPass(objects)
	for step := f.Res / 2; step >= 1; step /= 2 {
		f.floodPass(step)
		f.seeds, f.back = f.back, f.seeds
		f.valid, f.vback = f.vback, f.valid
	}
	f.finalizePass(objects)
}

// nearestObjectDistance returns the signed distance to the closest object.
func nearestObjectDistance(objects []fluid.DynamicObject, p fluid.Vec3) float32 {
	best := noSeed
	for k := range objects {
		if d := fluid.ObjectDistance(&objects[k], p); d < best {
			best = d
		}
	}
	return best
}

// seedPass marks voxels within one voxel diagonal of a surface, storing the
// projection of the voxel center onto that surface as the seed point.
func (f *Field) seedPass(objects []fluid.DynamicObject) {
	band := f.voxel.Len()
	res := f.Res

	f.pool.Run1D(len(f.seeds), func(i int) {
		x := i % res
		y := (i / res) % res
		z := i / (res * res)
		c := f.center(x, y, z)

		best := noSeed
		bestK := -1
		for k := range objects {
			if d := fluid.ObjectDistance(&objects[k], c); d < best {
				best = d
				bestK = k
			}
		}
		if bestK >= 0 && best > -band && best < band {
			normal := fluid.ObjectNormal(&objects[bestK], c)
			f.seeds[i] = c.Sub(normal.Scale(best))
			f.valid[i] = 1
		} else {
			f.seeds[i] = fluid.Vec3{}
			f.valid[i] = 0
		}
	})
}

// floodPass propagates seed candidates from the 26 neighbors at the given
// step offset, keeping whichever surface point lies closest to each voxel.
func (f *Field) floodPass(step int) {
	res := f.Res

	f.pool.Run1D(len(f.seeds), func(i int) {
		x := i % res
		y := (i / res) % res
		z := i / (res * res)
		c := f.center(x, y, z)

		bestSeed := f.seeds[i]
		bestValid := f.valid[i]
		bestDist := noSeed
		if bestValid == 1 {
			bestDist = c.Sub(bestSeed).Len()
		}

		for dz := -1; dz <= 1; dz++ {
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 && dz == 0 {
						continue
					}
					nx, ny, nz := x+dx*step, y+dy*step, z+dz*step
					if nx < 0 || nx >= res || ny < 0 || ny >= res || nz < 0 || nz >= res {
						continue
					}
					j := f.index(nx, ny, nz)
					if f.valid[j] != 1 {
						continue
					}
					if d := c.Sub(f.seeds[j]).Len(); d < bestDist {
						bestDist = d
						bestSeed = f.seeds[j]
						bestValid = 1
					}
				}
			}
		}
		f.back[i] = bestSeed
		f.vback[i] = bestValid
	})
}

// finalizePass converts seed points to scalar distances. In Signed mode
// voxels inside an object get negated distances, resolved by one exact
// object query per voxel.
func (f *Field) finalizePass(objects []fluid.DynamicObject) {
	res := f.Res

	f.pool.Run1D(len(f.dist), func(i int) {
		if f.valid[i] != 1 {
			f.dist[i] = noSeed
			return
		}
		x := i % res
		y := (i / res) % res
		z := i / (res * res)
		c := f.center(x, y, z)

		d := c.Sub(f.seeds[i]).Len()
		if f.Signed && nearestObjectDistance(objects, c) < 0 {
			d = -d
		}
		f.dist[i] = d
	})
}

// Sample returns the trilinearly interpolated distance at a world position.
// Positions outside the grid clamp to the border voxels.
func (f *Field) Sample(p fluid.Vec3) float32 {
	fx := (p.X-f.Min.X)/f.voxel.X - 0.5
	fy := (p.Y-f.Min.Y)/f.voxel.Y - 0.5
	fz := (p.Z-f.Min.Z)/f.voxel.Z - 0.5

	x0, tx := splitCoord(fx, f.Res)
	y0, ty := splitCoord(fy, f.Res)
	z0, tz := splitCoord(fz, f.Res)
	x1, y1, z1 := minInt(x0+1, f.Res-1), minInt(y0+1, f.Res-1), minInt(z0+1, f.Res-1)

	lerp := func(a, b, t float32) float32 { return a + (b-a)*t }
	c00 := lerp(f.dist[f.index(x0, y0, z0)], f.dist[f.index(x1, y0, z0)], tx)
	c10 := lerp(f.dist[f.index(x0, y1, z0)], f.dist[f.index(x1, y1, z0)], tx)
	c01 := lerp(f.dist[f.index(x0, y0, z1)], f.dist[f.index(x1, y0, z1)], tx)
	c11 := lerp(f.dist[f.index(x0, y1, z1)], f.dist[f.index(x1, y1, z1)], tx)
	return lerp(lerp(c00, c10, ty), lerp(c01, c11, ty), tz)
}

// Gradient estimates the surface normal direction by central differences one
// voxel apart.
func (f *Field) Gradient(p fluid.Vec3) fluid.Vec3 {
	g := fluid.Vec3{
		X: f.Sample(fluid.Vec3{X: p.X + f.voxel.X, Y: p.Y, Z: p.Z}) - f.Sample(fluid.Vec3{X: p.X - f.voxel.X, Y: p.Y, Z: p.Z}),
		Y: f.Sample(fluid.Vec3{X: p.X, Y: p.Y + f.voxel.Y, Z: p.Z}) - f.Sample(fluid.Vec3{X: p.X, Y: p.Y - f.voxel.Y, Z: p.Z}),
		Z: f.Sample(fluid.Vec3{X: p.X, Y: p.Y, Z: p.Z + f.voxel.Z}) - f.Sample(fluid.Vec3{X: p.X, Y: p.Y, Z: p.Z - f.voxel.Z}),
	}
	return g.Normalized()
}

func splitCoord(v float32, res int) (int, float32) {
	if v < 0 {
		return 0, 0
	}
	i := int(v)
	if i >= res-1 {
		return res - 1, 0
	}
	return i, v - float32(i)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
