// Package renderer draws the fluid with the screen-space pipeline: particle
// depth splatting into a render texture, bilateral smoothing passes, a
// shading pass, and a temporal reprojection pass that blends in history
// from the previous view-projection. The fragment shaders mirror the
// reference math in the ssfr package.
package renderer

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Clip planes used by raylib's BeginMode3D. The reprojection matrices must
// match the depth buffer the splat pass produced.
const (
	clipNear = 0.01
	clipFar  = 1000.0
)

// Pipeline owns the render targets and shaders for the screen-space pass
// chain. Init must run after the raylib window exists.
type Pipeline struct {
	width, height int32

	scene   rl.RenderTexture2D // Background and obstacles
	depth   rl.RenderTexture2D // Splatted fluid depth + thickness
	smoothA rl.RenderTexture2D // Bilateral ping-pong
	smoothB rl.RenderTexture2D
	current rl.RenderTexture2D // Shading output before temporal blending
	shaded  rl.RenderTexture2D // Reprojection output
	history rl.RenderTexture2D // Previous frame for temporal blending

	depthShader  rl.Shader
	smoothShader rl.Shader
	shadeShader  rl.Shader
	reprojShader rl.Shader

	smoothTexelLoc  int32
	smoothRadiusLoc int32
	smoothSigmaLoc  int32

	shadeSceneLoc      int32
	shadeAbsorptionLoc int32
	shadeDeepColorLoc  int32
	shadeTimeLoc       int32
	shadeTexelLoc      int32

	reprojHistoryLoc int32
	reprojDepthLoc   int32
	reprojInvVPLoc   int32
	reprojPrevVPLoc  int32
	reprojTexelLoc   int32
	reprojBlendLoc   int32

	prevVP      rl.Matrix
	frame       int32
	initialized bool
}

// ShadeUniforms are the per-frame shading constants pushed to the shader.
type ShadeUniforms struct {
	Absorption   [3]float32
	DeepColor    [3]float32
	HistoryBlend float32
	Time         float32
}

// NewPipeline creates an uninitialized pipeline for the given screen size.
func NewPipeline(width, height int32) *Pipeline {
	return &Pipeline{width: width, height: height}
}

// Init loads shaders and allocates render targets.
func (p *Pipeline) Init() {
	if p.initialized {
		return
	}

	p.scene = rl.LoadRenderTexture(p.width, p.height)
	p.depth = rl.LoadRenderTexture(p.width, p.height)
	p.smoothA = rl.LoadRenderTexture(p.width, p.height)
	p.smoothB = rl.LoadRenderTexture(p.width, p.height)
	p.current = rl.LoadRenderTexture(p.width, p.height)
	p.shaded = rl.LoadRenderTexture(p.width, p.height)
	p.history = rl.LoadRenderTexture(p.width, p.height)

	p.depthShader = rl.LoadShader("", "shaders/depth.fs")

	p.smoothShader = rl.LoadShader("", "shaders/smooth.fs")
	p.smoothTexelLoc = rl.GetShaderLocation(p.smoothShader, "texel")
	p.smoothRadiusLoc = rl.GetShaderLocation(p.smoothShader, "radius")
	p.smoothSigmaLoc = rl.GetShaderLocation(p.smoothShader, "depthSigma")

	p.shadeShader = rl.LoadShader("", "shaders/shade.fs")
	p.shadeSceneLoc = rl.GetShaderLocation(p.shadeShader, "sceneTex")
	p.shadeAbsorptionLoc = rl.GetShaderLocation(p.shadeShader, "absorption")
	p.shadeDeepColorLoc = rl.GetShaderLocation(p.shadeShader, "deepColor")
	p.shadeTimeLoc = rl.GetShaderLocation(p.shadeShader, "time")
	p.shadeTexelLoc = rl.GetShaderLocation(p.shadeShader, "texel")

	p.reprojShader = rl.LoadShader("", "shaders/reproject.fs")
	p.reprojHistoryLoc = rl.GetShaderLocation(p.reprojShader, "historyTex")
	p.reprojDepthLoc = rl.GetShaderLocation(p.reprojShader, "depthTex")
	p.reprojInvVPLoc = rl.GetShaderLocation(p.reprojShader, "invVP")
	p.reprojPrevVPLoc = rl.GetShaderLocation(p.reprojShader, "prevVP")
	p.reprojTexelLoc = rl.GetShaderLocation(p.reprojShader, "texel")
	p.reprojBlendLoc = rl.GetShaderLocation(p.reprojShader, "historyBlend")

	texel := []float32{1 / float32(p.width), 1 / float32(p.height)}
	rl.SetShaderValue(p.smoothShader, p.smoothTexelLoc, texel, rl.ShaderUniformVec2)
	rl.SetShaderValue(p.shadeShader, p.shadeTexelLoc, texel, rl.ShaderUniformVec2)
	rl.SetShaderValue(p.reprojShader, p.reprojTexelLoc, texel, rl.ShaderUniformVec2)

	p.initialized = true
}

// Render runs the full pass chain and composites to the screen. drawScene
// draws the background and obstacles, drawFluid splats the particles; both
// run inside the given 3D camera.
func (p *Pipeline) Render(cam rl.Camera3D, drawScene, drawFluid func(), filterRadius int, uniforms ShadeUniforms) {
	if !p.initialized {
		p.Init()
	}

	// Scene pass: everything behind the fluid.
	rl.BeginTextureMode(p.scene)
	rl.ClearBackground(rl.NewColor(18, 22, 32, 255))
	rl.BeginMode3D(cam)
	drawScene()
	rl.EndMode3D()
	rl.EndTextureMode()

	// Depth splat: particles render eye depth into the red channel and
	// accumulate thickness in green.
	rl.BeginTextureMode(p.depth)
	rl.ClearBackground(rl.White) // Background depth = 1
	rl.BeginMode3D(cam)
	rl.BeginShaderMode(p.depthShader)
	drawFluid()
	rl.EndShaderMode()
	rl.EndMode3D()
	rl.EndTextureMode()

	// Bilateral smoothing, two ping-pong passes.
	rl.SetShaderValue(p.smoothShader, p.smoothRadiusLoc, []float32{float32(filterRadius)}, rl.ShaderUniformFloat)
	rl.SetShaderValue(p.smoothShader, p.smoothSigmaLoc, []float32{0.05}, rl.ShaderUniformFloat)
	p.fullscreen(p.smoothA, p.depth.Texture, p.smoothShader)
	p.fullscreen(p.smoothB, p.smoothA.Texture, p.smoothShader)

	// Shading pass: current-frame color only, no history.
	rl.SetShaderValue(p.shadeShader, p.shadeAbsorptionLoc, uniforms.Absorption[:], rl.ShaderUniformVec3)
	rl.SetShaderValue(p.shadeShader, p.shadeDeepColorLoc, uniforms.DeepColor[:], rl.ShaderUniformVec3)
	rl.SetShaderValue(p.shadeShader, p.shadeTimeLoc, []float32{uniforms.Time}, rl.ShaderUniformFloat)

	rl.BeginTextureMode(p.current)
	rl.BeginShaderMode(p.shadeShader)
	rl.SetShaderValueTexture(p.shadeShader, p.shadeSceneLoc, p.scene.Texture)
	rl.DrawTextureRec(p.smoothB.Texture,
		rl.Rectangle{Width: float32(p.width), Height: -float32(p.height)},
		rl.Vector2{}, rl.White)
	rl.EndShaderMode()
	rl.EndTextureMode()

	// Temporal reprojection: fetch history where the previous view-projection
	// saw each pixel's surface point, clamped to the current neighborhood.
	view := rl.GetCameraMatrix(cam)
	proj := rl.MatrixPerspective(float32(float64(cam.Fovy)*math.Pi/180), float32(float64(p.width)/float64(p.height)), clipNear, clipFar)
	vp := rl.MatrixMultiply(view, proj)

	blend := uniforms.HistoryBlend
	if p.frame == 0 {
		blend = 0 // No valid history on the first frame
	}
	rl.SetShaderValue(p.reprojShader, p.reprojBlendLoc, []float32{blend}, rl.ShaderUniformFloat)
	rl.SetShaderValueMatrix(p.reprojShader, p.reprojInvVPLoc, rl.MatrixInvert(vp))
	rl.SetShaderValueMatrix(p.reprojShader, p.reprojPrevVPLoc, p.prevVP)

	rl.BeginTextureMode(p.shaded)
	rl.BeginShaderMode(p.reprojShader)
	rl.SetShaderValueTexture(p.reprojShader, p.reprojHistoryLoc, p.history.Texture)
	rl.SetShaderValueTexture(p.reprojShader, p.reprojDepthLoc, p.smoothB.Texture)
	rl.DrawTextureRec(p.current.Texture,
		rl.Rectangle{Width: float32(p.width), Height: -float32(p.height)},
		rl.Vector2{}, rl.White)
	rl.EndShaderMode()
	rl.EndTextureMode()

	// Composite to screen, flipping the render texture.
	rl.DrawTexturePro(p.shaded.Texture,
		rl.Rectangle{Width: float32(p.width), Height: -float32(p.height)},
		rl.Rectangle{Width: float32(p.width), Height: float32(p.height)},
		rl.Vector2{}, 0, rl.White)

	// Current frame becomes next frame's history.
	p.shaded, p.history = p.history, p.shaded
	p.prevVP = vp
	p.frame++
}

// fullscreen runs one shader pass from src into dst.
func (p *Pipeline) fullscreen(dst rl.RenderTexture2D, src rl.Texture2D, shader rl.Shader) {
	rl.BeginTextureMode(dst)
	rl.BeginShaderMode(shader)
	rl.DrawTextureRec(src,
		rl.Rectangle{Width: float32(p.width), Height: -float32(p.height)},
		rl.Vector2{}, rl.White)
	rl.EndShaderMode()
	rl.EndTextureMode()
}

// Unload frees GPU resources.
func (p *Pipeline) Unload() {
	if !p.initialized {
		return
	}
	rl.UnloadRenderTexture(p.scene)
	rl.UnloadRenderTexture(p.depth)
	rl.UnloadRenderTexture(p.smoothA)
	rl.UnloadRenderTexture(p.smoothB)
	rl.UnloadRenderTexture(p.current)
	rl.UnloadRenderTexture(p.shaded)
	rl.UnloadRenderTexture(p.history)
	rl.UnloadShader(p.depthShader)
	rl.UnloadShader(p.smoothShader)
	rl.UnloadShader(p.shadeShader)
	rl.UnloadShader(p.reprojShader)
	p.initialized = false
}
