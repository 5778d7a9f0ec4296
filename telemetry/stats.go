package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated simulation statistics for a time window.
type WindowStats struct {
	WindowStartFrame int32   `csv:"-"`
	WindowEndFrame   int32   `csv:"window_end"`
	SimTimeSec       float64 `csv:"sim_time"`

	// Population at window end
	ActiveParticles int `csv:"active"`
	VisibleCount    int `csv:"visible"`
	SecondaryCount  int `csv:"secondary"`
	RestingCount    int `csv:"resting"`
	ObjectCount     int `csv:"objects"`

	// Conservation accounting over the window
	Spawned   int `csv:"spawned"`
	Despawned int `csv:"despawned"`

	// Pressure solve behavior
	SolverIterAvg   float64 `csv:"solver_iter_avg"`
	ConvergedPct    float64 `csv:"converged_pct"`
	MaxDensityError float64 `csv:"max_density_err"`
	AvgDensityError float64 `csv:"avg_density_err"`

	// Velocity distribution sampled at window end
	SpeedMean float64 `csv:"speed_mean"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`

	KineticEnergy float64 `csv:"kinetic_energy"`
}

// ComputeSpeedStats calculates mean and percentiles of particle speeds.
func ComputeSpeedStats(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean = stat.Mean(sorted, nil)
	p10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	p50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	return mean, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartFrame)),
		slog.Int("window_end", int(s.WindowEndFrame)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("active", s.ActiveParticles),
		slog.Int("visible", s.VisibleCount),
		slog.Int("secondary", s.SecondaryCount),
		slog.Int("resting", s.RestingCount),
		slog.Int("objects", s.ObjectCount),
		slog.Int("spawned", s.Spawned),
		slog.Int("despawned", s.Despawned),
		slog.Float64("solver_iter_avg", s.SolverIterAvg),
		slog.Float64("converged_pct", s.ConvergedPct),
		slog.Float64("max_density_err", s.MaxDensityError),
		slog.Float64("avg_density_err", s.AvgDensityError),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_p10", s.SpeedP10),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("kinetic_energy", s.KineticEnergy),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndFrame,
		"sim_time", s.SimTimeSec,
		"active", s.ActiveParticles,
		"visible", s.VisibleCount,
		"secondary", s.SecondaryCount,
		"resting", s.RestingCount,
		"objects", s.ObjectCount,
		"spawned", s.Spawned,
		"despawned", s.Despawned,
		"solver_iter_avg", s.SolverIterAvg,
		"converged_pct", s.ConvergedPct,
		"max_density_err", s.MaxDensityError,
		"avg_density_err", s.AvgDensityError,
		"speed_mean", s.SpeedMean,
		"speed_p10", s.SpeedP10,
		"speed_p50", s.SpeedP50,
		"speed_p90", s.SpeedP90,
		"kinetic_energy", s.KineticEnergy,
	)
}
