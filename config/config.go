// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Domain    DomainConfig    `yaml:"domain"`
	Fluid     FluidConfig     `yaml:"fluid"`
	PBD       PBDConfig       `yaml:"pbd"`
	PCISPH    PCISPHConfig    `yaml:"pcisph"`
	SDF       SDFConfig       `yaml:"sdf"`
	SSFR      SSFRConfig      `yaml:"ssfr"`
	Culling   CullingConfig   `yaml:"culling"`
	Secondary SecondaryConfig `yaml:"secondary"`
	Spawn     SpawnConfig     `yaml:"spawn"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// DomainConfig holds the simulation domain bounds in world units.
type DomainConfig struct {
	MinX float64 `yaml:"min_x"`
	MinY float64 `yaml:"min_y"`
	MinZ float64 `yaml:"min_z"`
	MaxX float64 `yaml:"max_x"`
	MaxY float64 `yaml:"max_y"`
	MaxZ float64 `yaml:"max_z"`
}

// FluidConfig holds parameters shared by both solvers.
type FluidConfig struct {
	Solver          string  `yaml:"solver"`           // "pbd" or "pcisph"
	MaxParticles    int     `yaml:"max_particles"`    // Fixed buffer capacity
	SmoothingRadius float64 `yaml:"smoothing_radius"` // Kernel support h
	TargetDensity   float64 `yaml:"target_density"`   // Rest density (kg/m³)
	Gravity         float64 `yaml:"gravity"`          // Y acceleration (negative = down)
	DT              float64 `yaml:"dt"`               // Fixed timestep
	Restitution     float64 `yaml:"restitution"`      // Domain-wall bounce factor
	CellSize        float64 `yaml:"cell_size"`        // Grid cell size (0 = smoothing radius)
	ThermalBuoyancy float64 `yaml:"thermal_buoyancy"` // Boussinesq coefficient (0 = off)
	AmbientTemp     float64 `yaml:"ambient_temp"`     // Kelvin
}

// PBDConfig holds Position-Based Dynamics solver parameters.
type PBDConfig struct {
	Iterations       int     `yaml:"iterations"`
	ConstraintEps    float64 `yaml:"constraint_eps"`    // ε in the λ denominator
	SCorrStrength    float64 `yaml:"s_corr_strength"`   // Tensile correction magnitude (positive)
	Cohesion         float64 `yaml:"cohesion"`          // Optional cohesion term (0 = off)
	XSPHViscosity    float64 `yaml:"xsph_viscosity"`    // XSPH velocity smoothing coefficient
	VorticityEpsilon float64 `yaml:"vorticity_epsilon"` // Confinement strength (0 = off)
	QualityScale     float64 `yaml:"quality_scale"`     // 0..1, gates optional passes
	RestSpeedSq      float64 `yaml:"rest_speed_sq"`     // Squared speed below which a particle may rest
	RestFrames       int     `yaml:"rest_frames"`       // Consecutive slow frames before resting
	HeatDiffusion    float64 `yaml:"heat_diffusion"`    // Temperature relaxation rate toward ambient
}

// PCISPHConfig holds predictive-corrective solver parameters.
type PCISPHConfig struct {
	MinIterations    int     `yaml:"min_iterations"`
	MaxIterations    int     `yaml:"max_iterations"`
	DensityThreshold float64 `yaml:"density_threshold"` // Convergence: avg error fraction
	DeltaScale       float64 `yaml:"delta_scale"`       // Multiplier on the precomputed δ stiffness
	WarmStartFactor  float64 `yaml:"warm_start_factor"` // Previous-pressure reuse factor (0 = cold)
	Viscosity        float64 `yaml:"viscosity"`         // Base dynamic viscosity (Pa·s)
	ShiftingStrength float64 `yaml:"shifting_strength"` // δ-SPH C_δ (0 = off)
	SurfaceThreshold float64 `yaml:"surface_threshold"` // Neighbor-weight ratio marking surface particles
	VorticityEpsilon float64 `yaml:"vorticity_epsilon"` // Confinement strength (0 = off)
}

// SDFConfig holds Jump Flood distance field parameters.
type SDFConfig struct {
	Resolution      int     `yaml:"resolution"`       // Voxels per axis (power of two)
	Signed          bool    `yaml:"signed"`           // Negative distances inside primitives
	MaxObjects      int     `yaml:"max_objects"`      //
	MinHalfExtent   float64 `yaml:"min_half_extent"`  // Clamp applied to object shapes
	RebuildInterval int     `yaml:"rebuild_interval"` // Frames between rebuilds (1 = every frame)
}

// SSFRConfig holds screen-space fluid rendering parameters.
type SSFRConfig struct {
	FilterRadius     int     `yaml:"filter_radius"`      // Bilateral kernel half-width in pixels
	DepthSigma       float64 `yaml:"depth_sigma"`        // Range gaussian falloff
	SpatialSigma     float64 `yaml:"spatial_sigma"`      // Spatial gaussian falloff
	HistoryBlend     float64 `yaml:"history_blend"`      // Temporal blend toward history (0..1)
	RefractionScale  float64 `yaml:"refraction_scale"`   // Normal-derived UV offset scale
	AbsorptionR      float64 `yaml:"absorption_r"`       // Beer-Lambert per-channel coefficients
	AbsorptionG      float64 `yaml:"absorption_g"`
	AbsorptionB      float64 `yaml:"absorption_b"`
	CausticStrength  float64 `yaml:"caustic_strength"`
	FoamThickness    float64 `yaml:"foam_thickness"` // Thickness below which edge foam appears
	ParticleRadius   float64 `yaml:"particle_radius"`
	DeepScatterDepth float64 `yaml:"deep_scatter_depth"` // Thickness at full scatter-color blend
}

// CullingConfig holds frustum culling and despawn parameters.
type CullingConfig struct {
	BoundRadius float64 `yaml:"bound_radius"` // Conservative per-particle radius for plane tests
}

// SecondaryConfig holds foam/spray billboard particle parameters.
type SecondaryConfig struct {
	MaxParticles int     `yaml:"max_particles"`
	Lifetime     float64 `yaml:"lifetime"`
	Size         float64 `yaml:"size"`
}

// SpawnConfig holds the external spawner policy. Spawning lives outside the
// solver core; the orchestrator scans for inactive slots and fills them.
type SpawnConfig struct {
	Initial int     `yaml:"initial"` // Particles spawned at startup
	CubeX   float64 `yaml:"cube_x"`  // Spawn cube center
	CubeY   float64 `yaml:"cube_y"`
	CubeZ   float64 `yaml:"cube_z"`
	CubeW   float64 `yaml:"cube_w"` // Spawn cube edge length
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT32         float32 // Fluid.DT as float32
	H32          float32 // Smoothing radius as float32
	CellSize32   float32 // Effective grid cell size as float32
	GridWidth    int     // Grid cells along X
	GridHeight   int     // Grid cells along Y
	GridDepth    int     // Grid cells along Z
	ParticleMass float32 // target_density × (h/2)³ lattice volume
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// validate rejects parameter values that would produce NaN/Inf inside the
// compute passes. The passes themselves never check; all guarding happens
// here, at load time.
func (c *Config) validate() error {
	if c.Fluid.SmoothingRadius <= 0 {
		return fmt.Errorf("config: fluid.smoothing_radius must be positive, got %g", c.Fluid.SmoothingRadius)
	}
	if c.Fluid.TargetDensity <= 0 {
		return fmt.Errorf("config: fluid.target_density must be positive, got %g", c.Fluid.TargetDensity)
	}
	if c.Fluid.DT <= 0 {
		return fmt.Errorf("config: fluid.dt must be positive, got %g", c.Fluid.DT)
	}
	if c.Fluid.MaxParticles <= 0 {
		return fmt.Errorf("config: fluid.max_particles must be positive, got %d", c.Fluid.MaxParticles)
	}
	if c.Fluid.CellSize < 0 {
		return fmt.Errorf("config: fluid.cell_size must not be negative, got %g", c.Fluid.CellSize)
	}
	if c.Fluid.Solver != "pbd" && c.Fluid.Solver != "pcisph" {
		return fmt.Errorf("config: fluid.solver must be \"pbd\" or \"pcisph\", got %q", c.Fluid.Solver)
	}
	if c.Domain.MaxX <= c.Domain.MinX || c.Domain.MaxY <= c.Domain.MinY || c.Domain.MaxZ <= c.Domain.MinZ {
		return fmt.Errorf("config: domain max must exceed min on every axis")
	}
	if c.PCISPH.MaxIterations < c.PCISPH.MinIterations {
		return fmt.Errorf("config: pcisph.max_iterations (%d) below min_iterations (%d)",
			c.PCISPH.MaxIterations, c.PCISPH.MinIterations)
	}
	if c.SDF.Resolution < 2 || c.SDF.Resolution&(c.SDF.Resolution-1) != 0 {
		return fmt.Errorf("config: sdf.resolution must be a power of two >= 2, got %d", c.SDF.Resolution)
	}
	if c.SDF.MinHalfExtent <= 0 {
		return fmt.Errorf("config: sdf.min_half_extent must be positive, got %g", c.SDF.MinHalfExtent)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.DT32 = float32(c.Fluid.DT)
	c.Derived.H32 = float32(c.Fluid.SmoothingRadius)

	cellSize := c.Fluid.CellSize
	if cellSize == 0 {
		cellSize = c.Fluid.SmoothingRadius
	}
	c.Derived.CellSize32 = float32(cellSize)

	c.Derived.GridWidth = gridCells(c.Domain.MaxX-c.Domain.MinX, cellSize)
	c.Derived.GridHeight = gridCells(c.Domain.MaxY-c.Domain.MinY, cellSize)
	c.Derived.GridDepth = gridCells(c.Domain.MaxZ-c.Domain.MinZ, cellSize)

	// Mass for a cubic lattice at 2 particles per kernel radius.
	spacing := c.Fluid.SmoothingRadius * 0.5
	c.Derived.ParticleMass = float32(c.Fluid.TargetDensity * spacing * spacing * spacing)
}

func gridCells(extent, cellSize float64) int {
	n := int(math.Ceil(extent / cellSize))
	if n < 1 {
		n = 1
	}
	return n
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
