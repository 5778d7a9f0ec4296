package game

import (
	"math/rand"

	"github.com/pthm-cable/brine/config"
	"github.com/pthm-cable/brine/fluid"
)

// Spawner fills inactive buffer slots with new particles inside the spawn
// cube. It keeps a scan cursor so repeated refills don't rescan from zero.
type Spawner struct {
	center fluid.Vec3
	width  float32
	mass   float32
	temp   float32
	h      float32

	target int
	cursor int
	rng    *rand.Rand
}

// NewSpawner builds a spawner from the spawn config.
func NewSpawner(cfg *config.Config, rng *rand.Rand) *Spawner {
	return &Spawner{
		center: fluid.Vec3{
			X: float32(cfg.Spawn.CubeX),
			Y: float32(cfg.Spawn.CubeY),
			Z: float32(cfg.Spawn.CubeZ),
		},
		width:  float32(cfg.Spawn.CubeW),
		mass:   cfg.Derived.ParticleMass,
		temp:   float32(cfg.Fluid.AmbientTemp),
		h:      cfg.Derived.H32,
		target: cfg.Spawn.Initial,
		rng:    rng,
	}
}

// SpawnInitial places the startup block on a jittered half-spacing lattice
// centered on the spawn cube. Returns the number spawned.
func (s *Spawner) SpawnInitial(b *fluid.Buffers) int {
	spacing := s.h * 0.5
	side := int(s.width / spacing)
	if side < 1 {
		side = 1
	}
	min := s.center.Sub(fluid.Vec3{X: s.width / 2, Y: s.width / 2, Z: s.width / 2})

	spawned := 0
	for z := 0; z < side && spawned < s.target; z++ {
		for y := 0; y < side && spawned < s.target; y++ {
			for x := 0; x < side && spawned < s.target; x++ {
				slot := s.nextFree(b)
				if slot < 0 {
					return spawned
				}
				pos := fluid.Vec3{
					X: min.X + (float32(x)+0.5)*spacing + s.jitter(),
					Y: min.Y + (float32(y)+0.5)*spacing + s.jitter(),
					Z: min.Z + (float32(z)+0.5)*spacing + s.jitter(),
				}
				b.Spawn(slot, pos, fluid.Vec3{}, s.mass, fluid.PhaseWater, s.temp)
				spawned++
			}
		}
	}
	return spawned
}

// Refill tops the active count back up to the target by dripping new
// particles into the spawn cube. Spawn rate is capped per frame so refills
// after a big despawn don't inject a solid block at once.
func (s *Spawner) Refill(b *fluid.Buffers) int {
	const maxPerFrame = 64

	deficit := s.target - b.ActiveCount()
	if deficit <= 0 {
		return 0
	}
	if deficit > maxPerFrame {
		deficit = maxPerFrame
	}

	spawned := 0
	for spawned < deficit {
		slot := s.nextFree(b)
		if slot < 0 {
			break
		}
		pos := fluid.Vec3{
			X: s.center.X + (s.rng.Float32()-0.5)*s.width,
			Y: s.center.Y + (s.rng.Float32()-0.5)*s.width,
			Z: s.center.Z + (s.rng.Float32()-0.5)*s.width,
		}
		b.Spawn(slot, pos, fluid.Vec3{}, s.mass, fluid.PhaseWater, s.temp)
		spawned++
	}
	return spawned
}

// nextFree scans for an inactive slot starting at the cursor, wrapping once.
// Returns -1 when the buffer is full.
func (s *Spawner) nextFree(b *fluid.Buffers) int {
	n := b.Cap()
	for tries := 0; tries < n; tries++ {
		i := s.cursor
		s.cursor = (s.cursor + 1) % n
		if !b.IsActive(i) {
			return i
		}
	}
	return -1
}

func (s *Spawner) jitter() float32 {
	return (s.rng.Float32() - 0.5) * s.h * 0.05
}
