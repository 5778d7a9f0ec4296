// Package game owns the frame loop: scene motion, distance-field rebuilds,
// the solver step with its pressure-convergence policy, render-preparation
// passes, spawning, and telemetry.
package game

import (
	"log/slog"
	"math/rand"

	"github.com/pthm-cable/brine/camera"
	"github.com/pthm-cable/brine/config"
	"github.com/pthm-cable/brine/dispatch"
	"github.com/pthm-cable/brine/fluid"
	"github.com/pthm-cable/brine/renderer"
	"github.com/pthm-cable/brine/scene"
	"github.com/pthm-cable/brine/sdf"
	"github.com/pthm-cable/brine/telemetry"
	"github.com/pthm-cable/brine/ui"
)

// Options configures a game instance.
type Options struct {
	Seed           int64
	LogStats       bool
	StatsWindowSec float64
	OutputDir      string
	Headless       bool
	StepsPerUpdate int

	// Config overrides the global config when set. Batch runs pass their
	// own copies so evaluations don't share state.
	Config *config.Config

	// StatsCallback receives each flushed stats window.
	StatsCallback func(telemetry.WindowStats)
}

// Game wires the simulation together and drives one frame at a time.
type Game struct {
	cfg  *config.Config
	opts Options
	rng  *rand.Rand

	pool    *dispatch.Pool
	buffers *fluid.Buffers
	grid    *fluid.Grid
	pbd     *fluid.PBDSolver
	pcisph  *fluid.PCISPHSolver

	scene   *scene.Scene
	field   *sdf.Field
	objects []fluid.DynamicObject

	visible   *fluid.VisibleSet
	aniso     []fluid.AnisoBasis
	secondary *fluid.SecondaryBuffer
	despawns  []fluid.DespawnRegion
	spawner   *Spawner

	cam *camera.Orbit

	pipeline  *renderer.Pipeline
	sprites   *renderer.SecondarySprites
	hud       *ui.HUD
	tuning    *ui.TuningPanel
	perfPanel *ui.PerfPanel
	hidePerf  bool

	collector *telemetry.Collector
	perf      *telemetry.PerfCollector
	output    *telemetry.OutputManager

	params  fluid.SimParams
	conv    fluid.ConvergenceState
	frame   int32
	spawned int
	paused  bool
	stepped bool // A step ran since the last perf frame close
}

// NewGameWithOptions builds a game from the loaded config.
func NewGameWithOptions(opts Options) *Game {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	if opts.StepsPerUpdate < 1 {
		opts.StepsPerUpdate = 1
	}

	g := &Game{
		cfg:  cfg,
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
		pool: dispatch.NewPool(0),
	}

	capacity := cfg.Fluid.MaxParticles
	g.buffers = fluid.NewBuffers(capacity)
	g.grid = fluid.NewGrid(
		cfg.Derived.GridWidth, cfg.Derived.GridHeight, cfg.Derived.GridDepth,
		cfg.Derived.CellSize32, g.domainMin(), capacity,
	)

	g.pbd = fluid.NewPBDSolver(g.pool, g.grid, fluid.PBDParams{
		Iterations:       cfg.PBD.Iterations,
		ConstraintEps:    float32(cfg.PBD.ConstraintEps),
		SCorrStrength:    float32(cfg.PBD.SCorrStrength),
		Cohesion:         float32(cfg.PBD.Cohesion),
		XSPHViscosity:    float32(cfg.PBD.XSPHViscosity),
		VorticityEpsilon: float32(cfg.PBD.VorticityEpsilon),
		QualityScale:     float32(cfg.PBD.QualityScale),
		RestSpeedSq:      float32(cfg.PBD.RestSpeedSq),
		RestFrames:       cfg.PBD.RestFrames,
		HeatDiffusion:    float32(cfg.PBD.HeatDiffusion),
	}, capacity)

	g.pcisph = fluid.NewPCISPHSolver(g.pool, g.grid, fluid.PCISPHParams{
		MinIterations:    cfg.PCISPH.MinIterations,
		MaxIterations:    cfg.PCISPH.MaxIterations,
		DensityThreshold: float32(cfg.PCISPH.DensityThreshold),
		DeltaScale:       float32(cfg.PCISPH.DeltaScale),
		WarmStartFactor:  float32(cfg.PCISPH.WarmStartFactor),
		Viscosity:        float32(cfg.PCISPH.Viscosity),
		ShiftingStrength: float32(cfg.PCISPH.ShiftingStrength),
		SurfaceThreshold: float32(cfg.PCISPH.SurfaceThreshold),
		VorticityEpsilon: float32(cfg.PCISPH.VorticityEpsilon),
		QualityScale:     float32(cfg.PBD.QualityScale),
	})

	g.scene = scene.New(float32(cfg.SDF.MinHalfExtent), cfg.SDF.MaxObjects)
	g.seedScene()

	field, err := sdf.NewField(g.pool, cfg.SDF.Resolution, g.domainMin(), g.domainMax())
	if err != nil {
		// Resolution is validated at config load
		panic(err)
	}
	field.Signed = cfg.SDF.Signed
	g.field = field

	g.visible = fluid.NewVisibleSet(capacity)
	g.aniso = make([]fluid.AnisoBasis, capacity)
	g.secondary = fluid.NewSecondaryBuffer(cfg.Secondary.MaxParticles)

	center := g.domainMin().Add(g.domainMax()).Scale(0.5)
	aspect := float32(cfg.Screen.Width) / float32(cfg.Screen.Height)
	g.cam = camera.New(center, g.domainMax().Sub(g.domainMin()).Len()*0.8, aspect)

	statsWindowSec := opts.StatsWindowSec
	if statsWindowSec <= 0 {
		statsWindowSec = cfg.Telemetry.StatsWindow
	}
	windowFrames := int(statsWindowSec / cfg.Fluid.DT)
	g.collector = telemetry.NewCollector(windowFrames, cfg.Derived.DT32)
	g.perf = telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		slog.Error("telemetry output disabled", "error", err)
	} else {
		g.output = output
		if err := g.output.WriteConfig(cfg); err != nil {
			slog.Warn("failed to write config snapshot", "error", err)
		}
	}

	g.spawner = NewSpawner(cfg, g.rng)
	g.spawned = g.spawner.SpawnInitial(g.buffers)

	g.rebuildField()
	return g
}

func (g *Game) domainMin() fluid.Vec3 {
	return fluid.Vec3{
		X: float32(g.cfg.Domain.MinX),
		Y: float32(g.cfg.Domain.MinY),
		Z: float32(g.cfg.Domain.MinZ),
	}
}

func (g *Game) domainMax() fluid.Vec3 {
	return fluid.Vec3{
		X: float32(g.cfg.Domain.MaxX),
		Y: float32(g.cfg.Domain.MaxY),
		Z: float32(g.cfg.Domain.MaxZ),
	}
}

// seedScene places the default obstacle set: a spinning box mid-tank and a
// sphere the falling column splashes over.
func (g *Game) seedScene() {
	box := g.scene.AddBox(fluid.Vec3{Y: 4}, fluid.Vec3{X: 3, Y: 0.8, Z: 3}, 0.4)
	g.scene.SetMotion(box, fluid.Vec3{}, 0.3)
	g.scene.AddSphere(fluid.Vec3{X: 5, Y: 2, Z: -3}, 2)
}

// AddDespawnRegion registers a box that removes entering particles.
func (g *Game) AddDespawnRegion(min, max fluid.Vec3) {
	g.despawns = append(g.despawns, fluid.DespawnRegion{Min: min, Max: max})
}

func (g *Game) rebuildSimParams() {
	g.params = fluid.SimParams{
		H:               g.cfg.Derived.H32,
		TargetDensity:   float32(g.cfg.Fluid.TargetDensity),
		Gravity:         float32(g.cfg.Fluid.Gravity),
		DT:              g.cfg.Derived.DT32,
		Mass:            g.cfg.Derived.ParticleMass,
		CellSize:        g.cfg.Derived.CellSize32,
		GridWidth:       g.cfg.Derived.GridWidth,
		GridHeight:      g.cfg.Derived.GridHeight,
		GridDepth:       g.cfg.Derived.GridDepth,
		BoundsMin:       g.domainMin(),
		BoundsMax:       g.domainMax(),
		Restitution:     float32(g.cfg.Fluid.Restitution),
		ThermalBuoyancy: float32(g.cfg.Fluid.ThermalBuoyancy),
		AmbientTemp:     float32(g.cfg.Fluid.AmbientTemp),
		Objects:         g.objects,
		Field:           g.field,
	}
}

func (g *Game) rebuildField() {
	g.objects = g.scene.Flatten()
	g.field.Build(g.objects)
}

// Step advances the simulation one frame.
func (g *Game) Step() {
	g.perf.StartFrame()
	dt := g.cfg.Derived.DT32

	g.perf.StartPhase(telemetry.PhaseScene)
	g.scene.Update(dt)
	g.objects = g.scene.Flatten()

	g.perf.StartPhase(telemetry.PhaseSDFBuild)
	interval := int32(g.cfg.SDF.RebuildInterval)
	if interval < 1 {
		interval = 1
	}
	if g.frame%interval == 0 {
		g.field.Build(g.objects)
	}

	g.perf.StartPhase(telemetry.PhaseSolver)
	g.rebuildSimParams()
	if g.cfg.Fluid.Solver == "pbd" {
		g.pbd.Step(g.buffers, &g.params)
		g.conv = fluid.ConvergenceState{}
	} else {
		g.stepPCISPH()
	}

	g.perf.StartPhase(telemetry.PhaseCulling)
	fluid.Despawn(g.pool, g.buffers, g.despawns)
	spawnedNow := g.spawner.Refill(g.buffers)
	frustum := fluid.FrustumFromMatrix(g.cam.ViewProj())
	g.visible.Cull(g.pool, g.buffers, frustum, float32(g.cfg.Culling.BoundRadius))
	fluid.ComputeAnisotropy(g.pool, g.buffers, g.aniso,
		float32(g.cfg.SSFR.ParticleRadius), 0.15)

	g.perf.StartPhase(telemetry.PhaseSecondary)
	g.emitSecondaries()
	g.secondary.Update(g.pool, &g.params)

	g.perf.StartPhase(telemetry.PhaseTelemetry)
	g.collector.Record(telemetry.FrameSample{
		Spawned:     spawnedNow,
		Despawned:   g.buffers.DespawnedThisFrame(),
		Resting:     g.pbd.RestingCount(),
		Visible:     g.visible.Count(),
		Secondary:   g.secondary.Count(),
		Objects:     len(g.objects),
		Convergence: g.conv,
	})
	g.spawned += spawnedNow
	if g.collector.WindowReady() {
		stats := g.collector.Flush(g.buffers)
		if g.opts.StatsCallback != nil {
			g.opts.StatsCallback(stats)
		}
		if g.opts.LogStats {
			stats.LogStats()
			g.perf.Stats().LogStats()
		}
		if err := g.output.WriteTelemetry(stats); err != nil {
			slog.Warn("telemetry write failed", "error", err)
		}
		if err := g.output.WritePerf(g.perf.Stats(), stats.WindowEndFrame); err != nil {
			slog.Warn("perf write failed", "error", err)
		}
	}

	// Headless frames end here; drawn frames close after the render phase.
	g.stepped = true
	if g.opts.Headless {
		g.perf.EndFrame()
		g.stepped = false
	}
	g.frame++
}

// stepPCISPH runs the orchestrator-owned convergence loop: at least the
// configured minimum of pressure iterations, stopping on convergence or at
// the maximum.
func (g *Game) stepPCISPH() {
	minIters := g.cfg.PCISPH.MinIterations
	maxIters := g.cfg.PCISPH.MaxIterations

	g.pcisph.BeginStep(g.buffers, &g.params)
	for {
		st := g.pcisph.IterationPass(g.buffers, &g.params)
		if st.Iteration >= minIters && st.Converged {
			break
		}
		if st.Iteration >= maxIters {
			break
		}
	}
	g.pcisph.EndStep(g.buffers, &g.params)
	g.conv = g.pcisph.Convergence()
}

// emitSecondaries spawns foam and spray off fast surface particles. The
// scan samples a stride of the buffer per frame to bound cost.
func (g *Game) emitSecondaries() {
	const stride = 16
	life := float32(g.cfg.Secondary.Lifetime)
	size := float32(g.cfg.Secondary.Size)

	offset := int(g.frame) % stride
	for i := offset; i < g.buffers.Cap(); i += stride {
		if !g.buffers.IsActive(i) {
			continue
		}
		pt := &g.buffers.P[i]
		speed := pt.Vel.Len()
		if !pt.IsSurface || speed < 4 {
			continue
		}
		if g.rng.Float32() > 0.15 {
			continue
		}
		jitter := fluid.Vec3{
			X: (g.rng.Float32() - 0.5) * 0.2,
			Y: g.rng.Float32() * 0.2,
			Z: (g.rng.Float32() - 0.5) * 0.2,
		}
		kind := fluid.SecondaryFoam
		if speed > 8 {
			kind = fluid.SecondarySpray
		}
		g.secondary.Emit(pt.Pos.Add(jitter), pt.Vel.Scale(0.6), life, size, kind)
	}
}

// UpdateHeadless advances the configured number of steps without input or
// rendering.
func (g *Game) UpdateHeadless() {
	for i := 0; i < g.opts.StepsPerUpdate; i++ {
		g.Step()
	}
}

// Frame returns the current frame counter.
func (g *Game) Frame() int32 { return g.frame }

// Paused reports whether the simulation is paused.
func (g *Game) Paused() bool { return g.paused }

// TogglePause flips the pause state.
func (g *Game) TogglePause() { g.paused = !g.paused }

// Camera returns the orbit camera.
func (g *Game) Camera() *camera.Orbit { return g.cam }

// Buffers exposes the particle buffers for rendering.
func (g *Game) Buffers() *fluid.Buffers { return g.buffers }

// Visible returns the compacted visible particle indices.
func (g *Game) Visible() []int32 { return g.visible.Visible() }

// Aniso returns the per-particle ellipsoid bases.
func (g *Game) Aniso() []fluid.AnisoBasis { return g.aniso }

// Secondary returns the foam/spray buffer.
func (g *Game) Secondary() *fluid.SecondaryBuffer { return g.secondary }

// Objects returns this frame's flattened obstacle list.
func (g *Game) Objects() []fluid.DynamicObject { return g.objects }

// Convergence returns the last pressure-solve outcome.
func (g *Game) Convergence() fluid.ConvergenceState { return g.conv }

// RestingCount returns the number of parked particles.
func (g *Game) RestingCount() int { return g.pbd.RestingCount() }

// PerfStats returns rolling frame-time statistics.
func (g *Game) PerfStats() telemetry.PerfStats { return g.perf.Stats() }

// TuneSolver pushes live tuning values into the pressure solver.
func (g *Game) TuneSolver(deltaScale, viscosity, shifting float32) {
	g.pcisph.Tune(deltaScale, viscosity, shifting)
}

// Unload stops workers, releases GPU resources, and closes outputs.
func (g *Game) Unload() {
	g.pool.Stop()
	if g.pipeline != nil {
		g.pipeline.Unload()
	}
	if g.sprites != nil {
		g.sprites.Unload()
	}
	if err := g.output.Close(); err != nil {
		slog.Warn("closing telemetry output", "error", err)
	}
}
