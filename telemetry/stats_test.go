package telemetry

import (
	"math"
	"testing"
)

func TestComputeSpeedStats(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}
	mean, p10, p50, p90 := ComputeSpeedStats(values)
	if math.Abs(mean-50.5) > 1e-9 {
		t.Errorf("mean = %v, want 50.5", mean)
	}
	if p10 < 9 || p10 > 12 {
		t.Errorf("p10 = %v, want near 10", p10)
	}
	if p50 < 49 || p50 > 52 {
		t.Errorf("p50 = %v, want near 50", p50)
	}
	if p90 < 89 || p90 > 92 {
		t.Errorf("p90 = %v, want near 90", p90)
	}
}

func TestComputeSpeedStatsEmpty(t *testing.T) {
	mean, p10, p50, p90 := ComputeSpeedStats(nil)
	if mean != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Errorf("empty input gave %v %v %v %v, want zeros", mean, p10, p50, p90)
	}
}

func TestComputeSpeedStatsDoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	ComputeSpeedStats(values)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Errorf("input mutated: %v", values)
	}
}
