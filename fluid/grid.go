package fluid

import (
	"sync/atomic"

	"github.com/pthm-cable/brine/dispatch"
)

// noParticle is the empty-list sentinel for head and next pointers.
const noParticle int32 = -1

// Grid is a uniform spatial hash over the simulation domain. Each cell holds
// an intrusive singly-linked list of particle indices: heads[cell] points to
// the first particle, next[i] chains to the next one in the same cell.
//
// The grid is rebuilt from scratch every frame, never patched. Head-pointer
// writes go through an atomic exchange; next-pointer writes are single-owner
// (each particle writes only its own slot), so list order depends on thread
// timing. That non-determinism is harmless: every consumer accumulates
// commutative sums over the lists.
type Grid struct {
	Width, Height, Depth int
	CellSize             float32
	Origin               Vec3 // World position of cell (0,0,0) corner

	heads []int32
	next  []int32
}

// NewGrid allocates a grid with the given dimensions over the domain
// starting at origin. capacity is the particle buffer capacity.
func NewGrid(w, h, d int, cellSize float32, origin Vec3, capacity int) *Grid {
	g := &Grid{
		Width:    w,
		Height:   h,
		Depth:    d,
		CellSize: cellSize,
		Origin:   origin,
		heads:    make([]int32, w*h*d),
		next:     make([]int32, capacity),
	}
	for i := range g.heads {
		g.heads[i] = noParticle
	}
	return g
}

// Cells returns the total cell count.
func (g *Grid) Cells() int { return g.Width * g.Height * g.Depth }

// CellIndex maps a world position to a flat cell index, or -1 when the
// position lies outside the grid. Out-of-range particles are simply excluded
// from this frame's neighbor structure; boundary clamping pulls them back
// next frame.
func (g *Grid) CellIndex(p Vec3) int {
	cx, cy, cz := g.cellCoord(p)
	if cx < 0 || cx >= g.Width || cy < 0 || cy >= g.Height || cz < 0 || cz >= g.Depth {
		return -1
	}
	return (cz*g.Height+cy)*g.Width + cx
}

// cellCoord floors the position into cell coordinates. Floor, not
// truncation: positions below the origin must go negative, not collapse
// into cell 0.
func (g *Grid) cellCoord(p Vec3) (int, int, int) {
	cx := int(floor32((p.X - g.Origin.X) / g.CellSize))
	cy := int(floor32((p.Y - g.Origin.Y) / g.CellSize))
	cz := int(floor32((p.Z - g.Origin.Z) / g.CellSize))
	return cx, cy, cz
}

// Clear resets every head pointer to the empty sentinel.
func (g *Grid) Clear(pool *dispatch.Pool) {
	pool.Run1D(len(g.heads), func(c int) {
		atomic.StoreInt32(&g.heads[c], noParticle)
	})
}

// Build inserts every active particle at its predicted position. Insertion
// is the atomic-exchange push: the particle takes over the cell head and
// chains the previous head behind it.
func (g *Grid) Build(pool *dispatch.Pool, b *Buffers) {
	pool.Run1D(b.Cap(), func(i int) {
		g.next[i] = noParticle
		if atomic.LoadInt32(&b.Active[i]) != 1 {
			return
		}
		cell := g.CellIndex(b.P[i].Pred)
		if cell < 0 {
			return
		}
		prev := atomic.SwapInt32(&g.heads[cell], int32(i))
		g.next[i] = prev
	})
}

// Head returns the first particle index in a cell, or -1.
func (g *Grid) Head(cell int) int32 {
	return atomic.LoadInt32(&g.heads[cell])
}

// Next returns the next particle in particle i's cell list, or -1.
func (g *Grid) Next(i int) int32 {
	return g.next[i]
}

// ForNeighbors calls fn for every particle whose cell is within one cell of
// pos, covering the full kernel support when cellSize >= support radius.
// fn receives raw candidate indices; distance filtering is the caller's job.
func (g *Grid) ForNeighbors(pos Vec3, fn func(j int32)) {
	cx, cy, cz := g.cellCoord(pos)

	for dz := -1; dz <= 1; dz++ {
		z := cz + dz
		if z < 0 || z >= g.Depth {
			continue
		}
		for dy := -1; dy <= 1; dy++ {
			y := cy + dy
			if y < 0 || y >= g.Height {
				continue
			}
			for dx := -1; dx <= 1; dx++ {
				x := cx + dx
				if x < 0 || x >= g.Width {
					continue
				}
				cell := (z*g.Height+y)*g.Width + x
				for j := atomic.LoadInt32(&g.heads[cell]); j != noParticle; j = g.next[j] {
					fn(j)
				}
			}
		}
	}
}
