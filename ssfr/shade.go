package ssfr

import (
	"math"

	"github.com/pthm-cable/brine/fluid"
)

// Surface shading for the smoothed depth buffer: view-space normals by
// finite differences, Schlick Fresnel, Beer-Lambert absorption through the
// fluid thickness, voronoi caustics, and a foam band on thin films.

// waterF0 is the normal-incidence reflectance of a water/air interface.
const waterF0 = 0.02

// NormalFromDepth reconstructs the view-space normal at (x,y) from depth
// finite differences. texelW/texelH are the view-space sizes of one pixel at
// unit depth. Background pixels return the view-facing normal.
func NormalFromDepth(d *DepthBuffer, x, y int, texelW, texelH float32) fluid.Vec3 {
	c := d.At(x, y)
	if IsBackground(c) {
		return fluid.Vec3{Z: 1}
	}
	// One-sided differences toward whichever neighbor is fluid.
	dzdx := sampleDiff(d, c, x+1, y, x-1, y) / (2 * texelW)
	dzdy := sampleDiff(d, c, x, y+1, x, y-1) / (2 * texelH)
	return fluid.Vec3{X: -dzdx, Y: -dzdy, Z: 1}.Normalized()
}

func sampleDiff(d *DepthBuffer, center float32, x1, y1, x0, y0 int) float32 {
	a := d.At(x1, y1)
	b := d.At(x0, y0)
	if IsBackground(a) {
		a = center
	}
	if IsBackground(b) {
		b = center
	}
	return a - b
}

// SchlickFresnel returns the reflectance for the given cosine of the view
// angle: F0 + (1-F0)(1-cosθ)⁵.
func SchlickFresnel(cosTheta, f0 float32) float32 {
	c := clamp32(1-cosTheta, 0, 1)
	c2 := c * c
	return f0 + (1-f0)*c2*c2*c
}

// BeerLambert attenuates white light through thickness t of fluid with the
// given per-channel absorption coefficients.
func BeerLambert(absorption RGB, thickness float32) RGB {
	return RGB{
		R: expf(-absorption.R * thickness),
		G: expf(-absorption.G * thickness),
		B: expf(-absorption.B * thickness),
	}
}

// FoamFactor maps fluid thickness to a foam blend: thin films and churned
// edges go white, thick fluid stays clear. Inverse smoothstep over [lo,hi].
func FoamFactor(thickness, lo, hi float32) float32 {
	t := clamp32((thickness-lo)/(hi-lo), 0, 1)
	return 1 - t*t*(3-2*t)
}

// hash2 is a cheap 2D coordinate hash into [0,1)².
func hash2(ix, iy int32) (float32, float32) {
	h := uint32(ix)*374761393 + uint32(iy)*668265263
	h = (h ^ (h >> 13)) * 1274126177
	h ^= h >> 16
	return float32(h&0xffff) / 65536, float32((h>>16)&0xffff) / 65536
}

// voronoi returns the distance to the nearest jittered cell point at (x,y).
func voronoi(x, y float32) float32 {
	ix := int32(floorf(x))
	iy := int32(floorf(y))
	fx := x - floorf(x)
	fy := y - floorf(y)

	best := float32(8)
	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			jx, jy := hash2(ix+dx, iy+dy)
			ox := float32(dx) + jx - fx
			oy := float32(dy) + jy - fy
			if d := ox*ox + oy*oy; d < best {
				best = d
			}
		}
	}
	return float32(math.Sqrt(float64(best)))
}

// Caustic evaluates the animated caustic intensity at a ground position.
// Three voronoi octaves drift against each other; the sharpened cell-edge
// distance reads as refracted light ribbons.
func Caustic(x, z, t float32) float32 {
	sum := float32(0)
	amp := float32(0.5)
	freq := float32(1)
	for oct := 0; oct < 3; oct++ {
		d := voronoi(x*freq+t*0.3*float32(oct+1), z*freq-t*0.2*float32(oct+1))
		sum += amp * (1 - d)
		amp *= 0.5
		freq *= 2.1
	}
	s := clamp32(sum, 0, 1)
	return s * s * s
}

// ShadeParams are the per-frame shading constants.
type ShadeParams struct {
	Absorption      RGB     // Beer-Lambert coefficients per channel
	DeepColor       RGB     // Scatter color for thick fluid
	FoamLo, FoamHi  float32 // Thickness band for the foam ramp
	RefractionScale float32 // UV offset per unit of normal tilt
	RimPower        float32
	Time            float32
}

// ShadePixel composes the final fluid color for one pixel.
// normal is the view-space surface normal, thickness the fluid depth along
// the ray, background the refracted scene color behind the fluid, and sky
// the reflected environment color.
func ShadePixel(p *ShadeParams, normal fluid.Vec3, thickness float32, background, sky RGB) RGB {
	cosTheta := clamp32(normal.Z, 0, 1)
	fresnel := SchlickFresnel(cosTheta, waterF0)

	tint := BeerLambert(p.Absorption, thickness)
	refracted := RGB{
		R: background.R * tint.R,
		G: background.G * tint.G,
		B: background.B * tint.B,
	}

	// Thick fluid scatters toward the deep color instead of transmitting.
	scatter := clamp32(1-expf(-0.3*thickness), 0, 1)
	refracted = RGB{
		R: refracted.R*(1-scatter) + p.DeepColor.R*scatter,
		G: refracted.G*(1-scatter) + p.DeepColor.G*scatter,
		B: refracted.B*(1-scatter) + p.DeepColor.B*scatter,
	}

	out := RGB{
		R: refracted.R*(1-fresnel) + sky.R*fresnel,
		G: refracted.G*(1-fresnel) + sky.G*fresnel,
		B: refracted.B*(1-fresnel) + sky.B*fresnel,
	}

	// Rim brightening at grazing angles.
	rim := powf(1-cosTheta, p.RimPower)
	out.R += 0.15 * rim
	out.G += 0.17 * rim
	out.B += 0.2 * rim

	foam := FoamFactor(thickness, p.FoamLo, p.FoamHi)
	out.R = out.R*(1-foam) + foam
	out.G = out.G*(1-foam) + foam
	out.B = out.B*(1-foam) + foam
	return out
}

// RefractionOffset returns the UV displacement for sampling the scene behind
// the fluid, proportional to the normal's screen-space tilt.
func RefractionOffset(p *ShadeParams, normal fluid.Vec3, thickness float32) (du, dv float32) {
	s := p.RefractionScale * clamp32(thickness, 0, 1)
	return normal.X * s, normal.Y * s
}

// SampleEquirect maps a world-space direction to UV on an equirectangular
// environment map.
func SampleEquirect(dir fluid.Vec3) (u, v float32) {
	d := dir.Normalized()
	u = float32(math.Atan2(float64(d.Z), float64(d.X)))/(2*math.Pi) + 0.5
	v = float32(math.Acos(float64(clamp32(d.Y, -1, 1)))) / math.Pi
	return u, v
}

func floorf(x float32) float32 { return float32(math.Floor(float64(x))) }
func powf(x, y float32) float32 {
	return float32(math.Pow(float64(x), float64(y)))
}
