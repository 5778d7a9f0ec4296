// Package telemetry aggregates per-frame simulation measurements into
// windowed statistics, tracks phase timings, and writes CSV output for
// offline analysis.
package telemetry

import (
	"github.com/pthm-cable/brine/fluid"
)

// FrameSample is the per-frame measurement the orchestrator reports.
type FrameSample struct {
	Spawned   int
	Despawned int
	Resting   int
	Visible   int
	Secondary int
	Objects   int

	Convergence fluid.ConvergenceState
}

// Collector accumulates frame samples and emits WindowStats when the
// configured window elapses.
type Collector struct {
	windowFrames int
	frame        int32
	windowStart  int32
	dt           float64

	spawned    int
	despawned  int
	resting    int
	visible    int
	secondary  int
	objects    int
	iterSum    int
	converged  int
	frameCount int
	errMax     float64
	errSum     float64
}

// NewCollector creates a collector emitting stats every windowFrames frames.
func NewCollector(windowFrames int, dt float32) *Collector {
	if windowFrames < 1 {
		windowFrames = 60
	}
	return &Collector{windowFrames: windowFrames, dt: float64(dt)}
}

// Record adds one frame's sample. Counters accumulate; gauges keep the
// latest value.
func (c *Collector) Record(s FrameSample) {
	c.frame++
	c.frameCount++
	c.spawned += s.Spawned
	c.despawned += s.Despawned
	c.resting = s.Resting
	c.visible = s.Visible
	c.secondary = s.Secondary
	c.objects = s.Objects
	c.iterSum += s.Convergence.Iteration
	if s.Convergence.Converged {
		c.converged++
	}
	if e := float64(s.Convergence.MaxDensityError); e > c.errMax {
		c.errMax = e
	}
	c.errSum += float64(s.Convergence.AvgDensityError)
}

// WindowReady reports whether a full window has accumulated.
func (c *Collector) WindowReady() bool {
	return c.frameCount >= c.windowFrames
}

// Flush produces the window stats and resets the accumulators. Particle
// velocity distribution is sampled from the buffer at flush time.
func (c *Collector) Flush(b *fluid.Buffers) WindowStats {
	speeds := make([]float64, 0, 256)
	kinetic := 0.0
	active := 0
	for i := range b.P {
		if !b.IsActive(i) {
			continue
		}
		active++
		v := float64(b.P[i].Vel.Len())
		speeds = append(speeds, v)
		kinetic += 0.5 * float64(b.P[i].Mass) * v * v
	}
	mean, p10, p50, p90 := ComputeSpeedStats(speeds)

	n := c.frameCount
	if n == 0 {
		n = 1
	}
	s := WindowStats{
		WindowStartFrame: c.windowStart,
		WindowEndFrame:   c.frame,
		SimTimeSec:       float64(c.frame) * c.dt,
		ActiveParticles:  active,
		VisibleCount:     c.visible,
		SecondaryCount:   c.secondary,
		RestingCount:     c.resting,
		ObjectCount:      c.objects,
		Spawned:          c.spawned,
		Despawned:        c.despawned,
		SolverIterAvg:    float64(c.iterSum) / float64(n),
		ConvergedPct:     float64(c.converged) / float64(n) * 100,
		MaxDensityError:  c.errMax,
		AvgDensityError:  c.errSum / float64(n),
		SpeedMean:        mean,
		SpeedP10:         p10,
		SpeedP50:         p50,
		SpeedP90:         p90,
		KineticEnergy:    kinetic,
	}

	c.windowStart = c.frame
	c.spawned = 0
	c.despawned = 0
	c.iterSum = 0
	c.converged = 0
	c.frameCount = 0
	c.errMax = 0
	c.errSum = 0
	return s
}

// Frame returns the current frame counter.
func (c *Collector) Frame() int32 { return c.frame }
