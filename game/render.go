package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/brine/renderer"
	"github.com/pthm-cable/brine/telemetry"
	"github.com/pthm-cable/brine/ui"
)

// initRender creates the render pipeline and UI. Must run after the raylib
// window exists; headless runs never call it.
func (g *Game) initRender() {
	g.pipeline = renderer.NewPipeline(int32(g.cfg.Screen.Width), int32(g.cfg.Screen.Height))
	g.pipeline.Init()
	g.sprites = renderer.NewSecondarySprites()
	g.sprites.Init()
	g.hud = ui.NewHUD()
	g.tuning = ui.NewTuningPanel(
		int32(g.cfg.Screen.Width)-190, 40,
		float32(g.cfg.PCISPH.DeltaScale),
		float32(g.cfg.PCISPH.Viscosity),
		float32(g.cfg.PCISPH.ShiftingStrength),
	)
	g.perfPanel = ui.NewPerfPanel(int32(g.cfg.Screen.Width)-190, 140)
}

// Update handles input and advances the simulation when not paused.
func (g *Game) Update() {
	if g.pipeline == nil {
		g.initRender()
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		g.paused = !g.paused
	}
	if rl.IsKeyPressed(rl.KeyP) {
		g.hidePerf = !g.hidePerf
	}

	if rl.IsMouseButtonDown(rl.MouseLeftButton) {
		d := rl.GetMouseDelta()
		g.cam.Rotate(d.X*0.005, d.Y*0.005)
	}
	if rl.IsMouseButtonDown(rl.MouseMiddleButton) {
		d := rl.GetMouseDelta()
		g.cam.Pan(-d.X*0.02, d.Y*0.02)
	}
	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		g.cam.Dolly(1 - wheel*0.1)
	}

	if g.paused {
		if rl.IsKeyPressed(rl.KeyRight) {
			g.Step()
		}
		return
	}
	g.Step()
}

// Draw renders one frame: the screen-space fluid pipeline, then the overlay.
func (g *Game) Draw() {
	if g.stepped {
		g.perf.StartPhase(telemetry.PhaseRender)
	}

	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)

	rcam := renderer.ToRaylibCamera(g.cam)
	drawScene := func() {
		renderer.DrawDomain(g.domainMin(), g.domainMax())
		renderer.DrawObstacles(g.objects)
		g.sprites.Draw(rcam, g.secondary)
	}
	drawFluid := func() {
		renderer.DrawFluid(g.buffers, g.visible.Visible(), g.aniso,
			float32(g.cfg.SSFR.ParticleRadius))
	}

	g.pipeline.Render(
		rcam,
		drawScene, drawFluid,
		g.cfg.SSFR.FilterRadius,
		renderer.ShadeUniforms{
			Absorption: [3]float32{
				float32(g.cfg.SSFR.AbsorptionR),
				float32(g.cfg.SSFR.AbsorptionG),
				float32(g.cfg.SSFR.AbsorptionB),
			},
			DeepColor:    [3]float32{0.05, 0.15, 0.25},
			HistoryBlend: float32(g.cfg.SSFR.HistoryBlend),
			Time:         float32(g.frame) * g.cfg.Derived.DT32,
		},
	)

	g.hud.Draw(ui.HUDData{
		Solver:       g.cfg.Fluid.Solver,
		Frame:        g.frame,
		FPS:          int32(rl.GetFPS()),
		Active:       g.buffers.ActiveCount(),
		Visible:      g.visible.Count(),
		Secondary:    g.secondary.Count(),
		Resting:      g.pbd.RestingCount(),
		Objects:      len(g.objects),
		Paused:       g.paused,
		Convergence:  g.conv,
		ScreenWidth:  int32(g.cfg.Screen.Width),
		ScreenHeight: int32(g.cfg.Screen.Height),
	})
	g.hud.DrawControls(int32(g.cfg.Screen.Width), int32(g.cfg.Screen.Height),
		"drag: orbit | wheel: dolly | middle: pan | space: pause | right: step | p: perf")

	if g.cfg.Fluid.Solver == "pcisph" && g.tuning.Draw() {
		g.TuneSolver(g.tuning.DeltaScale, g.tuning.Viscosity, g.tuning.Shifting)
	}
	if !g.hidePerf {
		g.perfPanel.Draw(g.perf.Stats())
	}

	rl.EndDrawing()

	if g.stepped {
		g.perf.EndFrame()
		g.stepped = false
	}
}
