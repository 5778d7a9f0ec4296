package fluid

import (
	"sync/atomic"

	"github.com/pthm-cable/brine/dispatch"
)

// PCISPHParams are the predictive-corrective solver tunables.
type PCISPHParams struct {
	MinIterations    int
	MaxIterations    int
	DensityThreshold float32 // Relative compression error target
	DeltaScale       float32 // Multiplier on the precomputed stiffness
	WarmStartFactor  float32 // Fraction of last frame's pressure carried over
	Viscosity        float32 // Dynamic viscosity μ
	ShiftingStrength float32 // δ-SPH particle shifting coefficient
	SurfaceThreshold float32 // Density ratio below which shifting is skipped
	MaxShiftRatio    float32 // Shift clamp as a fraction of h
	VorticityEpsilon float32
	QualityScale     float32
}

// ConvergenceState reports one frame's pressure-solve outcome. The
// orchestrator reads it to decide iteration count; telemetry logs it.
type ConvergenceState struct {
	Iteration       int
	MaxDensityError float32
	AvgDensityError float32
	Converged       bool
}

// PCISPHSolver runs predictive-corrective incompressible SPH: predict
// positions, then iterate density measurement and pressure correction until
// compression drops below threshold or the iteration cap hits.
//
// The frame is split into BeginStep / IterationPass / EndStep so the
// orchestrator owns the convergence loop; Step bundles them for fixed-policy
// callers and tests.
type PCISPHSolver struct {
	pool   *dispatch.Pool
	grid   *Grid
	params PCISPHParams

	delta float32 // Pressure stiffness, rebuilt each BeginStep
	conv  ConvergenceState
}

// NewPCISPHSolver creates a solver sharing the given pool and grid.
func NewPCISPHSolver(pool *dispatch.Pool, grid *Grid, params PCISPHParams) *PCISPHSolver {
	if params.MinIterations < 1 {
		params.MinIterations = 1
	}
	if params.MaxIterations < params.MinIterations {
		params.MaxIterations = params.MinIterations
	}
	if params.MaxShiftRatio <= 0 {
		params.MaxShiftRatio = 0.1
	}
	return &PCISPHSolver{pool: pool, grid: grid, params: params}
}

// Convergence returns the state after the most recent iteration.
func (s *PCISPHSolver) Convergence() ConvergenceState { return s.conv }

// Tune adjusts the live-tunable parameters. Takes effect next BeginStep.
func (s *PCISPHSolver) Tune(deltaScale, viscosity, shifting float32) {
	s.params.DeltaScale = deltaScale
	s.params.Viscosity = viscosity
	s.params.ShiftingStrength = shifting
}

// Step advances one frame with the solver's own convergence policy: at least
// MinIterations, at most MaxIterations, stopping early once the maximum
// relative density error falls below DensityThreshold.
func (s *PCISPHSolver) Step(b *Buffers, p *SimParams) ConvergenceState {
	s.BeginStep(b, p)
	for {
		st := s.IterationPass(b, p)
		if st.Iteration >= s.params.MinIterations && st.Converged {
			break
		}
		if st.Iteration >= s.params.MaxIterations {
			break
		}
	}
	s.EndStep(b, p)
	return s.conv
}

// BeginStep applies external forces, predicts positions, warm-starts
// pressure from the previous frame, and builds the neighbor grid.
func (s *PCISPHSolver) BeginStep(b *Buffers, p *SimParams) {
	s.delta = s.params.DeltaScale * pcisphStiffness(p)
	s.conv = ConvergenceState{}
	dt := p.DT
	warm := s.params.WarmStartFactor

	s.pool.Run1D(b.Cap(), func(i int) {
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]
		g := p.Gravity
		if p.ThermalBuoyancy != 0 {
			g += p.ThermalBuoyancy * (pt.Temp - p.AmbientTemp)
		}
		pt.Vel.Y += g * dt
		pt.Pred = pt.Pos.Add(pt.Vel.Scale(dt))
		pt.Pressure = pt.PrevPressure * warm
		pt.Shift = Vec3{}
	})

	s.grid.Clear(s.pool)
	s.grid.Build(s.pool, b)
}

// IterationPass runs one corrective iteration: measure density at predicted
// positions, raise pressure in proportion to compression, apply the pressure
// force, re-predict, rebuild the grid. Returns the updated convergence state.
func (s *PCISPHSolver) IterationPass(b *Buffers, p *SimParams) ConvergenceState {
	s.densityAndPressure(b, p)
	s.reduceDensityError(b, p)
	s.applyPressureForce(b, p)
	s.grid.Clear(s.pool)
	s.grid.Build(s.pool, b)

	s.conv.Iteration++
	s.conv.Converged = s.conv.MaxDensityError < s.params.DensityThreshold
	return s.conv
}

// EndStep applies viscosity, particle shifting, and final integration with
// collision response, then stores pressure for next frame's warm start.
func (s *PCISPHSolver) EndStep(b *Buffers, p *SimParams) {
	if s.params.Viscosity > 0 {
		s.viscosity(b, p)
	}
	if s.params.ShiftingStrength > 0 {
		s.computeShift(b, p)
	}
	s.integrate(b, p)
	if s.params.QualityScale >= 0.5 && s.params.VorticityEpsilon > 0 {
		s.vorticity(b, p)
	}
}

// pcisphStiffness precomputes the pressure stiffness δ from an ideal
// half-spacing lattice filling the kernel support. Compression of ε rest
// densities is then corrected by roughly one pressure application.
func pcisphStiffness(p *SimParams) float32 {
	beta := 2 * p.DT * p.DT * p.Mass * p.Mass / (p.TargetDensity * p.TargetDensity)

	spacing := p.H * 0.5
	var sumGrad Vec3
	var sumDot float32
	for x := -2; x <= 2; x++ {
		for y := -2; y <= 2; y++ {
			for z := -2; z <= 2; z++ {
				rij := Vec3{float32(x), float32(y), float32(z)}.Scale(spacing)
				r := rij.Len()
				if r <= 1e-6 || r >= p.H {
					continue
				}
				grad := kernelGradVec(rij, r, WendlandC2Grad(r, p.H))
				sumGrad = sumGrad.Add(grad)
				sumDot += grad.Dot(grad)
			}
		}
	}

	denom := beta * (-sumGrad.Dot(sumGrad) - sumDot)
	if denom > -1e-6 {
		denom = -1e-6
	}
	return -1 / denom
}

// densityAndPressure measures Wendland density at predicted positions and
// raises pressure by δ·max(0, ρ-ρ0). Pressure never goes negative: free
// surfaces get no tensile pull.
func (s *PCISPHSolver) densityAndPressure(b *Buffers, p *SimParams) {
	rho0 := p.TargetDensity

	s.pool.Run1D(b.Cap(), func(i int) {
		b.scalar[i] = 0
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]

		density := float32(0)
		s.grid.ForNeighbors(pt.Pred, func(j int32) {
			q := &b.P[j]
			r := pt.Pred.Sub(q.Pred).Len()
			density += q.Mass * WendlandC2(r, p.H)
		})
		pt.Density = density

		errAbs := density - rho0
		if errAbs < 0 {
			errAbs = 0
		}
		pt.Pressure += s.delta * errAbs
		if pt.Pressure < 0 {
			pt.Pressure = 0
		}
		b.scalar[i] = errAbs / rho0
	})
}

// reduceDensityError folds per-particle relative errors into the frame
// max/avg. Serial: the reduction is trivial next to the neighbor passes.
func (s *PCISPHSolver) reduceDensityError(b *Buffers, p *SimParams) {
	maxErr := float32(0)
	sum := float32(0)
	n := 0
	for i := range b.scalar {
		if atomic.LoadInt32(&b.Active[i]) != 1 {
			continue
		}
		e := b.scalar[i]
		if e > maxErr {
			maxErr = e
		}
		sum += e
		n++
	}
	s.conv.MaxDensityError = maxErr
	if n > 0 {
		s.conv.AvgDensityError = sum / float32(n)
	} else {
		s.conv.AvgDensityError = 0
	}
}

// applyPressureForce accumulates the symmetric pressure acceleration
// a = -Σ mⱼ (pᵢ/ρᵢ² + pⱼ/ρⱼ²) ∇W and re-predicts positions from it.
func (s *PCISPHSolver) applyPressureForce(b *Buffers, p *SimParams) {
	dt := p.DT

	s.pool.Run1D(b.Cap(), func(i int) {
		b.accel[i] = Vec3{}
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]
		if pt.Density <= 0 {
			return
		}
		pOverRho2I := pt.Pressure / (pt.Density * pt.Density)

		var accel Vec3
		s.grid.ForNeighbors(pt.Pred, func(j int32) {
			if int(j) == i {
				return
			}
			q := &b.P[j]
			if q.Density <= 0 {
				return
			}
			rij := pt.Pred.Sub(q.Pred)
			r := rij.Len()
			if r >= p.H {
				return
			}
			grad := kernelGradVec(rij, r, WendlandC2Grad(r, p.H))
			accel = accel.Sub(grad.Scale(q.Mass * (pOverRho2I + q.Pressure/(q.Density*q.Density))))
		})
		b.accel[i] = accel
	})

	s.pool.Run1D(b.Cap(), func(i int) {
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]
		pt.Vel = pt.Vel.Add(b.accel[i].Scale(dt))
		pt.Pred = pt.Pos.Add(pt.Vel.Scale(dt))
	})
}

// viscosity applies the Morris physical viscosity model:
// dv = dt Σ 5 mⱼ (μᵢ+μⱼ)/(ρᵢρⱼ) · |∇W| r/(r²+0.01h²) · (vⱼ-vᵢ).
// Accumulate into scratch, then apply, so reads see stable velocities.
func (s *PCISPHSolver) viscosity(b *Buffers, p *SimParams) {
	const dimFactor = 5
	mu := s.params.Viscosity
	epsH2 := 0.01 * p.H * p.H
	dt := p.DT

	s.pool.Run1D(b.Cap(), func(i int) {
		b.delta[i] = Vec3{}
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]
		if pt.Density <= 0 {
			return
		}
		muI := mu + pt.ViscCoeff

		var dv Vec3
		s.grid.ForNeighbors(pt.Pred, func(j int32) {
			if int(j) == i {
				return
			}
			q := &b.P[j]
			if q.Density <= 0 {
				return
			}
			rij := pt.Pred.Sub(q.Pred)
			r := rij.Len()
			if r >= p.H || r < 1e-6 {
				return
			}
			gradMag := -WendlandC2Grad(r, p.H) // |∇W|
			factor := dimFactor * q.Mass * (muI + mu + q.ViscCoeff) /
				(pt.Density * q.Density) * gradMag * r / (r*r + epsH2)
			dv = dv.Add(q.Vel.Sub(pt.Vel).Scale(factor))
		})
		b.delta[i] = dv.Scale(dt)
	})

	s.pool.Run1D(b.Cap(), func(i int) {
		if !b.IsActive(i) {
			return
		}
		b.P[i].Vel = b.P[i].Vel.Add(b.delta[i])
	})
}

// computeShift evaluates the δ-SPH anti-clustering shift from the particle
// concentration gradient. Surface particles are exempt: shifting them leaks
// volume out of the free surface. The shift magnitude is clamped to a
// fraction of h so it can never outrun the flow.
func (s *PCISPHSolver) computeShift(b *Buffers, p *SimParams) {
	rho0 := p.TargetDensity
	c := s.params.ShiftingStrength
	maxShift := s.params.MaxShiftRatio * p.H

	s.pool.Run1D(b.Cap(), func(i int) {
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]

		surface := pt.Density/rho0 < s.params.SurfaceThreshold
		pt.IsSurface = surface
		if surface {
			pt.Shift = Vec3{}
			return
		}

		var gradC Vec3
		s.grid.ForNeighbors(pt.Pred, func(j int32) {
			if int(j) == i {
				return
			}
			q := &b.P[j]
			if q.Density <= 0 {
				return
			}
			rij := pt.Pred.Sub(q.Pred)
			r := rij.Len()
			if r >= p.H {
				return
			}
			grad := kernelGradVec(rij, r, WendlandC2Grad(r, p.H))
			gradC = gradC.Add(grad.Scale(q.Mass / q.Density))
		})

		shift := gradC.Scale(-c * p.H * p.H)
		if l := shift.Len(); l > maxShift {
			shift = shift.Scale(maxShift / l)
		}
		pt.Shift = shift
	})
}

// integrate commits predicted positions plus shift, resolves collisions,
// clamps to the domain, and stores pressure for the next warm start.
func (s *PCISPHSolver) integrate(b *Buffers, p *SimParams) {
	maxObjects := len(p.Objects)
	if s.params.QualityScale < 0.5 && maxObjects > 4 {
		maxObjects = 4
	}

	s.pool.Run1D(b.Cap(), func(i int) {
		if !b.IsActive(i) {
			return
		}
		pt := &b.P[i]
		pos := pt.Pred.Add(pt.Shift)
		pos = resolveObjectCollisions(pos, p.Objects, maxObjects)
		pos = resolveFieldCollision(pos, p.Field)
		pos, vel := clampToDomain(pos, pt.Vel, p)
		pt.Pos = pos
		pt.Pred = pos
		pt.Vel = vel
		pt.PrevPressure = pt.Pressure
	})
}

// vorticity estimates curl then reinjects rotational energy, mirroring the
// confinement scheme of the PBD path but on the Wendland kernel.
func (s *PCISPHSolver) vorticity(b *Buffers, p *SimParams) {
	eps := s.params.VorticityEpsilon * s.params.QualityScale
	dt := p.DT

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
			if q.Density <= 0 {
				return
			}
			rij := pt.Pos.Sub(q.Pos)
			r := rij.Len()
			if r >= p.H {
				return
			}
			grad := kernelGradVec(rij, r, WendlandC2Grad(r, p.H))
			curl = curl.Add(q.Vel.Sub(pt.Vel).Cross(grad).Scale(q.Mass / q.Density))
		})
		pt.Vorticity = curl
	})

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
			if q.Density <= 0 {
				return
			}
			rij := pt.Pos.Sub(q.Pos)
			r := rij.Len()
			if r >= p.H {
				return
			}
			grad := kernelGradVec(rij, r, WendlandC2Grad(r, p.H))
			gradMag = gradMag.Add(grad.Scale(q.Mass / q.Density * q.Vorticity.Len()))
		})
		n := gradMag.Normalized()
		pt.Vel = pt.Vel.Add(n.Cross(pt.Vorticity).Scale(eps * dt))
	})
}
