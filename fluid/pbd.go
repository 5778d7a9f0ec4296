package fluid

import (
	"sync/atomic"

	"github.com/pthm-cable/brine/dispatch"
)

// PBDParams are the solver tunables, fixed at construction. Per-frame state
// goes through SimParams instead.
type PBDParams struct {
	Iterations       int
	ConstraintEps    float32 // ε in the λ denominator
	SCorrStrength    float32 // Tensile correction magnitude
	Cohesion         float32
	XSPHViscosity    float32
	VorticityEpsilon float32
	QualityScale     float32 // 0..1; gates XSPH, vorticity, heat, object count
	RestSpeedSq      float32
	RestFrames       int
	HeatDiffusion    float32
}

// PBDSolver is the baseline position-based dynamics solver: predict, build
// grid, solve the density constraint, apply position corrections, integrate.
// Every method below is one full compute pass over the particle buffer.
type PBDSolver struct {
	pool   *dispatch.Pool
	grid   *Grid
	params PBDParams

	// Temporal-coherence fast path: consecutive frames below RestSpeedSq.
	restCount []uint16
	resting   int32 // atomic, for telemetry
}

// NewPBDSolver creates a solver sharing the given pool and grid.
func NewPBDSolver(pool *dispatch.Pool, grid *Grid, params PBDParams, capacity int) *PBDSolver {
	if params.Iterations < 1 {
		params.Iterations = 1
	}
	return &PBDSolver{
		pool:      pool,
		grid:      grid,
		params:    params,
		restCount: make([]uint16, capacity),
	}
}

// RestingCount returns the resting-particle count from the last predict pass.
func (s *PBDSolver) RestingCount() int {
	return int(atomic.LoadInt32(&s.resting))
}

// Step advances the simulation by one frame.
func (s *PBDSolver) Step(b *Buffers, p *SimParams) {
	s.predict(b, p)
	s.grid.Clear(s.pool)
	s.grid.Build(s.pool, b)
	for it := 0; it < s.params.Iterations; it++ {
		s.densityLambda(b, p)
		s.computeDeltaPos(b, p)
		s.applyDeltaPos(b, p)
	}
	s.integrate(b, p)

	q := s.params.QualityScale
	if q > 0 && s.params.XSPHViscosity > 0 {
		s.xsph(b, p)
	}
	if q >= 0.5 && s.params.VorticityEpsilon > 0 {
		s.vorticityCurl(b, p)
		s.vorticityForce(b, p)
	}
	if q >= 0.5 && s.params.HeatDiffusion > 0 {
		s.diffuseHeat(b, p)
	}
}

// predict applies external forces and advances predicted positions. A
// particle whose squared speed stays below RestSpeedSq for RestFrames
// consecutive frames is parked: no integration, predicted position held at
// its current position. It still contributes to neighbors' density.
func (s *PBDSolver) predict(b *Buffers, p *SimParams) {
	atomic.StoreInt32(&s.resting, 0)
	dt := p.DT
	pool := s.pool

	pool.Run1D(b.Cap(), func(i int) {
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]

		if pt.Vel.LenSq() < s.params.RestSpeedSq {
			if s.restCount[i] < 65535 {
				s.restCount[i]++
			}
		} else {
			s.restCount[i] = 0
		}
		if int(s.restCount[i]) >= s.params.RestFrames {
			atomic.AddInt32(&s.resting, 1)
			pt.Pred = pt.Pos
			return
		}

		g := p.Gravity
		if p.ThermalBuoyancy != 0 {
			g += p.ThermalBuoyancy * (pt.Temp - p.AmbientTemp)
		}
		pt.Vel.Y += g * dt
		pt.Pred = pt.Pos.Add(pt.Vel.Scale(dt))
	})
}

// densityLambda accumulates cubic-spline density over neighbors and solves
// the per-particle constraint multiplier λ = -C / (Σ|∇C|² + ε).
func (s *PBDSolver) densityLambda(b *Buffers, p *SimParams) {
	hs := p.H * 0.5 // spline parameter; support 2·hs matches the cell size
	rho0 := p.TargetDensity

	s.pool.Run1D(b.Cap(), func(i int) {
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]

		density := float32(0)
		gradSum := float32(0)
		var gradI Vec3

		s.grid.ForNeighbors(pt.Pred, func(j int32) {
			q := &b.P[j]
			rij := pt.Pred.Sub(q.Pred)
			r := rij.Len()
			if r >= p.H {
				return
			}
			density += q.Mass * CubicSpline(r, hs)
			grad := kernelGradVec(rij, r, CubicSplineGrad(r, hs)).Scale(q.Mass / rho0)
			gradI = gradI.Add(grad)
			if int(j) != i {
				gradSum += grad.LenSq()
			}
		})

		// Floor at rest density: isolated particles get C = 0, not -1,
		// which would otherwise launch them via the constraint.
		if density < rho0 {
			density = rho0
		}
		pt.Density = density

		c := density/rho0 - 1
		pt.Lambda = -c / (gradSum + gradI.LenSq() + s.params.ConstraintEps)
	})
}

// computeDeltaPos accumulates the constraint correction
// Δp = (1/ρ0) Σ (λᵢ+λⱼ+s_corr) ∇W into scratch. s_corr is the tensile
// correction -k·(W(r)/W(0.1h))⁴ that keeps particles from clumping.
func (s *PBDSolver) computeDeltaPos(b *Buffers, p *SimParams) {
	hs := p.H * 0.5
	rho0 := p.TargetDensity
	wRef := CubicSpline(0.1*p.H, hs)
	k := s.params.SCorrStrength
	cohesion := s.params.Cohesion

	s.pool.Run1D(b.Cap(), func(i int) {
		b.delta[i] = Vec3{}
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]

		var delta Vec3
		s.grid.ForNeighbors(pt.Pred, func(j int32) {
			if int(j) == i {
				return
			}
			q := &b.P[j]
			rij := pt.Pred.Sub(q.Pred)
			r := rij.Len()
			if r >= p.H {
				return
			}
			sCorr := float32(0)
			if k > 0 && wRef > 0 {
				ratio := CubicSpline(r, hs) / wRef
				sCorr = -k * ratio * ratio * ratio * ratio
			}
			grad := kernelGradVec(rij, r, CubicSplineGrad(r, hs))
			delta = delta.Add(grad.Scale(pt.Lambda + q.Lambda + sCorr))
			if cohesion > 0 && r > 1e-6 {
				delta = delta.Add(rij.Scale(-cohesion * CubicSpline(r, hs) / r))
			}
		})
		b.delta[i] = delta.Scale(1 / rho0)
	})
}

// applyDeltaPos moves predicted positions by the stored corrections and
// resolves collisions against dynamic objects and the global distance field.
func (s *PBDSolver) applyDeltaPos(b *Buffers, p *SimParams) {
	maxObjects := len(p.Objects)
	if s.params.QualityScale < 0.5 && maxObjects > 4 {
		maxObjects = 4
	}

	s.pool.Run1D(b.Cap(), func(i int) {
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]
		pred := pt.Pred.Add(b.delta[i])
		pred = resolveObjectCollisions(pred, p.Objects, maxObjects)
		pred = resolveFieldCollision(pred, p.Field)
		pt.Pred = pred
	})
}

// integrate derives velocity from the position change, clamps to the domain
// with restitution, and commits positions.
func (s *PBDSolver) integrate(b *Buffers, p *SimParams) {
	invDT := 1 / p.DT

	s.pool.Run1D(b.Cap(), func(i int) {
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]
		vel := pt.Pred.Sub(pt.Pos).Scale(invDT)
		pos, vel := clampToDomain(pt.Pred, vel, p)
		pt.Pos = pos
		pt.Pred = pos
		pt.Vel = vel
	})
}

// xsph smooths velocities toward the neighborhood average:
// v += c Σ (m/ρⱼ)(vⱼ-vᵢ) W. Two passes so no thread reads a velocity
// another thread is writing.
func (s *PBDSolver) xsph(b *Buffers, p *SimParams) {
	hs := p.H * 0.5
	c := s.params.XSPHViscosity * s.params.QualityScale

	s.pool.Run1D(b.Cap(), func(i int) {
		b.delta[i] = Vec3{}
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]
		var corr Vec3
		s.grid.ForNeighbors(pt.Pos, func(j int32) {
			if int(j) == i {
				return
			}
			q := &b.P[j]
			rij := pt.Pos.Sub(q.Pos)
			r := rij.Len()
			if r >= p.H || q.Density <= 0 {
				return
			}
			w := CubicSpline(r, hs)
			corr = corr.Add(q.Vel.Sub(pt.Vel).Scale(q.Mass / q.Density * w))
		})
		b.delta[i] = corr.Scale(c)
	})

	s.pool.Run1D(b.Cap(), func(i int) {
		if !b.IsActive(i) {
			return
		}
		b.P[i].Vel = b.P[i].Vel.Add(b.delta[i])
	})
}

// vorticityCurl estimates ω = ∇×v per particle.
func (s *PBDSolver) vorticityCurl(b *Buffers, p *SimParams) {
	hs := p.H * 0.5

	s.pool.Run1D(b.Cap(), func(i int) {
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]
		var curl Vec3
		s.grid.ForNeighbors(pt.Pos, func(j int32) {
			if int(j) == i {
				return
			}
			q := &b.P[j]
			rij := pt.Pos.Sub(q.Pos)
			r := rij.Len()
			if r >= p.H || q.Density <= 0 {
				return
			}
			grad := kernelGradVec(rij, r, CubicSplineGrad(r, hs))
			vij := q.Vel.Sub(pt.Vel)
			curl = curl.Add(vij.Cross(grad).Scale(q.Mass / q.Density))
		})
		pt.Vorticity = curl
	})
}

// vorticityForce reinjects rotational energy: f = ε (N × ω) where N is the
// normalized gradient of |ω| over the neighborhood.
func (s *PBDSolver) vorticityForce(b *Buffers, p *SimParams) {
	hs := p.H * 0.5
	eps := s.params.VorticityEpsilon * s.params.QualityScale
	dt := p.DT

	s.pool.Run1D(b.Cap(), func(i int) {
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]
		var gradMag Vec3
		s.grid.ForNeighbors(pt.Pos, func(j int32) {
			if int(j) == i {
				return
			}
			q := &b.P[j]
			rij := pt.Pos.Sub(q.Pos)
			r := rij.Len()
			if r >= p.H || q.Density <= 0 {
				return
			}
			grad := kernelGradVec(rij, r, CubicSplineGrad(r, hs))
			gradMag = gradMag.Add(grad.Scale(q.Mass / q.Density * q.Vorticity.Len()))
		})
		n := gradMag.Normalized()
		pt.Vel = pt.Vel.Add(n.Cross(pt.Vorticity).Scale(eps * dt))
	})
}

// diffuseHeat relaxes particle temperature toward the neighborhood mean and
// the ambient temperature. Accumulate then apply, same split as xsph.
func (s *PBDSolver) diffuseHeat(b *Buffers, p *SimParams) {
	hs := p.H * 0.5
	rate := s.params.HeatDiffusion * s.params.QualityScale * p.DT

	s.pool.Run1D(b.Cap(), func(i int) {
		b.scalar[i] = 0
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]
		var flux float32
		s.grid.ForNeighbors(pt.Pos, func(j int32) {
			if int(j) == i {
				return
			}
			q := &b.P[j]
			rij := pt.Pos.Sub(q.Pos)
			r := rij.Len()
			if r >= p.H || q.Density <= 0 {
				return
			}
			flux += (q.Temp - pt.Temp) * q.Mass / q.Density * CubicSpline(r, hs)
		})
		b.scalar[i] = flux
	})

	s.pool.Run1D(b.Cap(), func(i int) {
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]
		pt.Temp += rate * (b.scalar[i] + 0.1*(p.AmbientTemp-pt.Temp))
	})
}
