// Package ui renders the heads-up display and the tuning panel.
package ui

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/brine/fluid"
	"github.com/pthm-cable/brine/telemetry"
)

// HUDData holds everything the main HUD displays.
type HUDData struct {
	Solver       string
	Frame        int32
	FPS          int32
	Active       int
	Visible      int
	Secondary    int
	Resting      int
	Objects      int
	Paused       bool
	Convergence  fluid.ConvergenceState
	ScreenWidth  int32
	ScreenHeight int32
}

// HUD renders the overlay text panels.
type HUD struct{}

// NewHUD creates the HUD renderer.
func NewHUD() *HUD { return &HUD{} }

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText("brine", 10, 10, 20, rl.White)

	rl.DrawText(
		fmt.Sprintf("Particles: %d (%d visible, %d resting) | Foam: %d | Objects: %d",
			data.Active, data.Visible, data.Resting, data.Secondary, data.Objects),
		10, 35, 16, rl.LightGray,
	)
	rl.DrawText(
		fmt.Sprintf("Frame: %d | FPS: %d | Solver: %s", data.Frame, data.FPS, data.Solver),
		10, 55, 16, rl.LightGray,
	)
	rl.DrawText(
		fmt.Sprintf("Pressure: %d iters | max err %.3f%% | avg %.3f%%",
			data.Convergence.Iteration,
			data.Convergence.MaxDensityError*100,
			data.Convergence.AvgDensityError*100),
		10, 75, 16, convergenceColor(data.Convergence),
	)

	statusText := "Running"
	if data.Paused {
		statusText = "PAUSED"
	}
	rl.DrawText(statusText, 10, 95, 16, rl.Yellow)
}

func convergenceColor(c fluid.ConvergenceState) rl.Color {
	if c.Converged {
		return rl.Green
	}
	return rl.Orange
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenWidth, screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// TuningPanel exposes live solver parameters through slider widgets.
type TuningPanel struct {
	x, y int32

	DeltaScale float32
	Viscosity  float32
	Shifting   float32
}

// NewTuningPanel creates the panel at a screen position with initial values.
func NewTuningPanel(x, y int32, deltaScale, viscosity, shifting float32) *TuningPanel {
	return &TuningPanel{
		x: x, y: y,
		DeltaScale: deltaScale,
		Viscosity:  viscosity,
		Shifting:   shifting,
	}
}

// Draw renders the sliders and updates the held values. Returns true when
// any value changed this frame.
func (t *TuningPanel) Draw() bool {
	x := float32(t.x)
	y := float32(t.y)
	changed := false

	rl.DrawText("Solver tuning", t.x, t.y-22, 16, rl.White)

	v := gui.SliderBar(
		rl.Rectangle{X: x, Y: y, Width: 160, Height: 18},
		"stiffness", fmt.Sprintf("%.2f", t.DeltaScale),
		t.DeltaScale, 0.1, 4,
	)
	if v != t.DeltaScale {
		t.DeltaScale = v
		changed = true
	}
	y += 26

	v = gui.SliderBar(
		rl.Rectangle{X: x, Y: y, Width: 160, Height: 18},
		"viscosity", fmt.Sprintf("%.4f", t.Viscosity),
		t.Viscosity, 0, 0.05,
	)
	if v != t.Viscosity {
		t.Viscosity = v
		changed = true
	}
	y += 26

	v = gui.SliderBar(
		rl.Rectangle{X: x, Y: y, Width: 160, Height: 18},
		"shifting", fmt.Sprintf("%.3f", t.Shifting),
		t.Shifting, 0, 0.2,
	)
	if v != t.Shifting {
		t.Shifting = v
		changed = true
	}

	return changed
}

// PerfPanel renders the frame-time breakdown.
type PerfPanel struct {
	x, y int32
}

// NewPerfPanel creates a performance panel at a screen position.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{x: x, y: y}
}

// Draw renders the perf stats.
func (p *PerfPanel) Draw(stats telemetry.PerfStats) {
	x := p.x
	y := p.y

	rl.DrawText("Frame breakdown", x, y, 16, rl.White)
	y += 20
	rl.DrawText(fmt.Sprintf("avg %dus | fps %.0f",
		stats.AvgFrameDuration.Microseconds(), stats.FramesPerSecond), x, y, 14, rl.Yellow)
	y += 18

	phases := []string{
		telemetry.PhaseScene, telemetry.PhaseSDFBuild, telemetry.PhaseSolver,
		telemetry.PhaseCulling, telemetry.PhaseSecondary, telemetry.PhaseRender,
	}
	for _, phase := range phases {
		pct, ok := stats.PhasePct[phase]
		if !ok || pct < 0.1 {
			continue
		}
		color := rl.LightGray
		if pct > 50 {
			color = rl.Red
		} else if pct > 25 {
			color = rl.Orange
		}
		rl.DrawText(fmt.Sprintf("%-10s %5.1f%%", phase, pct), x, y, 12, color)
		y += 14
	}
}
