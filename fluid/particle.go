// Package fluid implements the particle fluid core: spatial hashing, the PBD
// and PCISPH solvers, collision response, and the per-particle utility passes
// (culling, despawn, anisotropic basis, secondary particles).
//
// All state lives in fixed-capacity buffers. Particles are never allocated or
// freed during a frame: activity is a flag, spawning is an external concern
// that fills inactive slots, and despawning clears the flag and parks the
// particle at an out-of-bounds sentinel.
package fluid

import "sync/atomic"

// Phase identifiers for multi-phase color/behavior.
const (
	PhaseWater uint32 = 0
	PhaseOil   uint32 = 1
)

// DespawnSentinel is the parking position for inactive particles, far outside
// any reasonable domain so they fall out of every grid and frustum test.
const DespawnSentinel = 1e6

// Particle is the per-particle simulation state shared by both solvers.
// The PCISPH-only fields stay zero under PBD.
type Particle struct {
	Pos  Vec3
	Mass float32

	Vel  Vec3
	Pred Vec3

	Lambda  float32 // PBD constraint multiplier
	Density float32
	Phase   uint32
	Temp    float32 // Kelvin
	Color   [4]float32

	// PCISPH pressure-iteration state
	Alpha        float32 // DFSPH α factor
	Kappa        float32 // DFSPH κ factor
	VelDiv       float32 // ∇·v
	DensityDeriv float32 // Dρ/Dt
	Pressure     float32
	PrevPressure float32 // Warm-start source
	ViscCoeff    float32 // Per-particle dynamic viscosity
	Shift        Vec3    // δ-SPH shift, applied at integrate
	IsSurface    bool
	Vorticity    Vec3
	AngVel       Vec3
}

// Buffers owns the fixed-capacity particle storage plus the atomic flag and
// counter arrays that the compute passes share.
type Buffers struct {
	P      []Particle
	Active []int32 // 1 = simulated this frame; accessed atomically by despawn

	// Scratch shared by passes that must not write fields their neighbors
	// read in the same pass. Sized to capacity once.
	delta  []Vec3
	accel  []Vec3
	scalar []float32

	despawned int32 // atomic counter, reset per frame
}

// NewBuffers allocates particle storage for the given capacity.
func NewBuffers(capacity int) *Buffers {
	return &Buffers{
		P:      make([]Particle, capacity),
		Active: make([]int32, capacity),
		delta:  make([]Vec3, capacity),
		accel:  make([]Vec3, capacity),
		scalar: make([]float32, capacity),
	}
}

// Cap returns the buffer capacity.
func (b *Buffers) Cap() int { return len(b.P) }

// IsActive reports whether slot i is simulated.
func (b *Buffers) IsActive(i int) bool {
	return atomic.LoadInt32(&b.Active[i]) == 1
}

// ActiveCount counts active slots. Used by telemetry and the conservation
// checks; not part of any hot pass.
func (b *Buffers) ActiveCount() int {
	n := 0
	for i := range b.Active {
		if atomic.LoadInt32(&b.Active[i]) == 1 {
			n++
		}
	}
	return n
}

// Spawn fills slot i with a fresh particle and marks it active.
// Callers own slot scanning; Spawn does not search for free slots.
func (b *Buffers) Spawn(i int, pos, vel Vec3, mass float32, phase uint32, temp float32) {
	b.P[i] = Particle{
		Pos:   pos,
		Mass:  mass,
		Vel:   vel,
		Pred:  pos,
		Phase: phase,
		Temp:  temp,
		Color: [4]float32{0.2, 0.5, 0.9, 1.0},
	}
	atomic.StoreInt32(&b.Active[i], 1)
}

// Deactivate clears the active flag and parks the particle at the sentinel.
func (b *Buffers) Deactivate(i int) {
	atomic.StoreInt32(&b.Active[i], 0)
	b.P[i].Pos = Vec3{DespawnSentinel, DespawnSentinel, DespawnSentinel}
	b.P[i].Pred = b.P[i].Pos
	b.P[i].Vel = Vec3{}
}

// DespawnedThisFrame returns and resets the atomic despawn counter.
func (b *Buffers) DespawnedThisFrame() int {
	return int(atomic.SwapInt32(&b.despawned, 0))
}

// Shape kinds for dynamic objects.
const (
	ShapeBox    = 0
	ShapeSphere = 1
)

// DynamicObject is read-only external scene data: a transformed box or
// sphere the solvers collide against.
type DynamicObject struct {
	Transform    Mat4
	InvTransform Mat4
	HalfExtents  Vec3 // Sphere radius in X for ShapeSphere
	Shape        int
}

// SimParams is the per-frame uniform block. The orchestrator rebuilds it
// every frame; passes treat it as immutable. Keeping it an explicit value
// (not package state) keeps multiple fluid volumes independent.
type SimParams struct {
	H             float32 // Smoothing radius
	TargetDensity float32
	Gravity       float32
	DT            float32
	Mass          float32

	CellSize   float32
	GridWidth  int
	GridHeight int
	GridDepth  int

	BoundsMin Vec3
	BoundsMax Vec3

	Restitution     float32
	ThermalBuoyancy float32
	AmbientTemp     float32

	Objects []DynamicObject // Read-only scene data

	// Global distance field for collision, nil when absent.
	Field DistanceField
}

// DistanceField is an implicit collision surface sampled at world positions.
// The sdf package provides the production implementation.
type DistanceField interface {
	// Sample returns the distance to the nearest surface at p.
	// Signed fields return negative values inside objects.
	Sample(p Vec3) float32
	// Gradient estimates the outward surface normal direction at p.
	Gradient(p Vec3) Vec3
}
