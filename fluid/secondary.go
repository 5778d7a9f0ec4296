package fluid

import (
	"sync/atomic"

	"github.com/pthm-cable/brine/dispatch"
)

// Secondary particles: foam and spray emitted off the main fluid and
// simulated as cheap ballistic billboards. They never feed back into the
// solvers, so the whole system is one buffer and one update pass.

// Secondary particle kinds.
const (
	SecondaryFoam  uint32 = 0
	SecondarySpray uint32 = 1
)

// SecondaryParticle is one foam or spray billboard.
type SecondaryParticle struct {
	Pos  Vec3
	Vel  Vec3
	Life float32 // Seconds remaining
	Size float32
	Kind uint32
}

// SecondaryBuffer holds secondary particles in a fixed ring. Emission
// overwrites the oldest slot when full, which reads as old foam popping out
// under heavy churn instead of emission stalling.
type SecondaryBuffer struct {
	P      []SecondaryParticle
	Alive  []int32 // 1 = live; atomic
	cursor uint32  // atomic ring cursor
}

// NewSecondaryBuffer allocates a ring of the given capacity.
func NewSecondaryBuffer(capacity int) *SecondaryBuffer {
	return &SecondaryBuffer{
		P:     make([]SecondaryParticle, capacity),
		Alive: make([]int32, capacity),
	}
}

// Cap returns the ring capacity.
func (s *SecondaryBuffer) Cap() int { return len(s.P) }

// Count counts live secondaries. Telemetry only.
func (s *SecondaryBuffer) Count() int {
	n := 0
	for i := range s.Alive {
		if atomic.LoadInt32(&s.Alive[i]) == 1 {
			n++
		}
	}
	return n
}

// Emit writes one secondary into the next ring slot. Safe to call from
// parallel passes: the cursor advance is atomic and each call owns its slot.
func (s *SecondaryBuffer) Emit(pos, vel Vec3, life, size float32, kind uint32) {
	slot := int(atomic.AddUint32(&s.cursor, 1)-1) % len(s.P)
	s.P[slot] = SecondaryParticle{Pos: pos, Vel: vel, Life: life, Size: size, Kind: kind}
	atomic.StoreInt32(&s.Alive[slot], 1)
}

// Update advances every live secondary by dt. Spray is ballistic under
// gravity; foam is buoyant and heavily damped so it lingers at the surface.
// Particles expire when life runs out or they fall out of the domain.
func (s *SecondaryBuffer) Update(pool *dispatch.Pool, p *SimParams) {
	dt := p.DT
	pool.Run1D(len(s.P), func(i int) {
		if atomic.LoadInt32(&s.Alive[i]) != 1 {
			return
		}
		sp := &s.P[i]
		sp.Life -= dt
		if sp.Life <= 0 {
			atomic.StoreInt32(&s.Alive[i], 0)
			return
		}

		switch sp.Kind {
		case SecondarySpray:
			sp.Vel.Y += p.Gravity * dt
		default: // foam
			sp.Vel.Y += -0.3 * p.Gravity * dt
			sp.Vel = sp.Vel.Scale(1 - 2*dt)
		}
		sp.Pos = sp.Pos.Add(sp.Vel.Scale(dt))

		if sp.Pos.Y < p.BoundsMin.Y || sp.Pos.X < p.BoundsMin.X || sp.Pos.X > p.BoundsMax.X ||
			sp.Pos.Z < p.BoundsMin.Z || sp.Pos.Z > p.BoundsMax.Z {
			atomic.StoreInt32(&s.Alive[i], 0)
		}
	})
}
