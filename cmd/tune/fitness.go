package main

import (
	"math"
	"sync"

	"github.com/pthm-cable/brine/config"
	"github.com/pthm-cable/brine/game"
	"github.com/pthm-cable/brine/telemetry"
)

// FitnessEvaluator runs headless simulations and scores solver quality.
type FitnessEvaluator struct {
	params      *ParamVector
	maxFrames   int
	seeds       []int64
	baseConfig  *config.Config
	statsWindow float64

	mu          sync.Mutex
	bestFitness float64
	lastError   float64 // density error from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxFrames int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxFrames:   maxFrames,
		seeds:       seeds,
		baseConfig:  baseCfg,
		statsWindow: 1.0,
		bestFitness: math.Inf(1),
	}
}

// LastError returns the density error from the most recent evaluation.
func (fe *FitnessEvaluator) LastError() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastError
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness float64
	err     float64
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(x, s)
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalErr float64
	for _, r := range results {
		totalFitness += r.fitness
		totalErr += r.err
	}
	n := float64(len(fe.seeds))
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
	}
	fe.lastError = totalErr / n
	fe.mu.Unlock()

	return avgFitness
}

// Quality weights: compression error dominates, iteration count and residual
// motion after settling break ties.
const (
	weightError  = 1.0
	weightIters  = 0.02
	weightMotion = 0.1

	warmupWindows = 2 // skip the initial splash
)

// runSimulation executes a single headless run and scores its windows.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) seedResult {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	var windows []telemetry.WindowStats
	g := game.NewGameWithOptions(game.Options{
		Seed:           seed,
		Headless:       true,
		StatsWindowSec: fe.statsWindow,
		StepsPerUpdate: 1,
		Config:         cfg,
		StatsCallback: func(stats telemetry.WindowStats) {
			windows = append(windows, stats)
		},
	})
	defer g.Unload()

	for int(g.Frame()) < fe.maxFrames {
		g.UpdateHeadless()
	}

	return fe.score(windows)
}

// score reduces window stats to a scalar fitness (lower = better).
func (fe *FitnessEvaluator) score(windows []telemetry.WindowStats) seedResult {
	if len(windows) <= warmupWindows {
		return seedResult{fitness: math.Inf(1)}
	}
	valid := windows[warmupWindows:]

	var errSum, iterSum, motionSum float64
	for _, w := range valid {
		if math.IsNaN(w.MaxDensityError) || w.MaxDensityError > 10 {
			// Exploded run
			return seedResult{fitness: 1e6, err: w.MaxDensityError}
		}
		errSum += w.MaxDensityError
		iterSum += w.SolverIterAvg
		motionSum += w.SpeedP50
	}
	n := float64(len(valid))
	avgErr := errSum / n

	fitness := weightError*avgErr +
		weightIters*(iterSum/n) +
		weightMotion*(motionSum/n)
	return seedResult{fitness: fitness, err: avgErr}
}

// copyConfig creates a fresh config seeded from the base values.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg, _ := config.Load("")

	cfg.Screen = fe.baseConfig.Screen
	cfg.Domain = fe.baseConfig.Domain
	cfg.Fluid = fe.baseConfig.Fluid
	cfg.PBD = fe.baseConfig.PBD
	cfg.PCISPH = fe.baseConfig.PCISPH
	cfg.SDF = fe.baseConfig.SDF
	cfg.SSFR = fe.baseConfig.SSFR
	cfg.Culling = fe.baseConfig.Culling
	cfg.Secondary = fe.baseConfig.Secondary
	cfg.Spawn = fe.baseConfig.Spawn
	cfg.Telemetry = fe.baseConfig.Telemetry
	cfg.Derived = fe.baseConfig.Derived

	return cfg
}
