// Package main provides CMA-ES tuning for the pressure solver parameters.
package main

import (
	"github.com/pthm-cable/brine/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of tunable solver parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "delta_scale", Path: "pcisph.delta_scale", Min: 0.1, Max: 4.0, Default: 1.0},
			{Name: "warm_start", Path: "pcisph.warm_start_factor", Min: 0.0, Max: 0.9, Default: 0.5},
			{Name: "viscosity", Path: "pcisph.viscosity", Min: 0.0, Max: 0.05, Default: 0.005},
			{Name: "shifting", Path: "pcisph.shifting_strength", Min: 0.0, Max: 0.2, Default: 0.05},
			{Name: "surface_thresh", Path: "pcisph.surface_threshold", Min: 0.5, Max: 0.95, Default: 0.8},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	cfg.PCISPH.DeltaScale = clamped[0]
	cfg.PCISPH.WarmStartFactor = clamped[1]
	cfg.PCISPH.Viscosity = clamped[2]
	cfg.PCISPH.ShiftingStrength = clamped[3]
	cfg.PCISPH.SurfaceThreshold = clamped[4]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.PCISPH.DeltaScale,
		cfg.PCISPH.WarmStartFactor,
		cfg.PCISPH.Viscosity,
		cfg.PCISPH.ShiftingStrength,
		cfg.PCISPH.SurfaceThreshold,
	}
}
