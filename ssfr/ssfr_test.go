package ssfr

import (
	"math"
	"testing"

	"github.com/pthm-cable/brine/fluid"
)

func TestFlatDepthGivesNormalIncidence(t *testing.T) {
	d := NewDepthBuffer(16, 16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			d.Set(x, y, 0.5)
		}
	}
	n := NormalFromDepth(d, 8, 8, 0.01, 0.01)
	if math.Abs(float64(n.Z-1)) > 1e-4 || math.Abs(float64(n.X)) > 1e-4 || math.Abs(float64(n.Y)) > 1e-4 {
		t.Fatalf("flat surface normal = %+v, want +Z", n)
	}
	if f := SchlickFresnel(n.Z, waterF0); math.Abs(float64(f-waterF0)) > 1e-5 {
		t.Fatalf("normal-incidence fresnel = %v, want %v", f, waterF0)
	}
}

func TestSchlickFresnelGrazing(t *testing.T) {
	if f := SchlickFresnel(0, waterF0); math.Abs(float64(f-1)) > 1e-5 {
		t.Errorf("grazing fresnel = %v, want 1", f)
	}
	prev := SchlickFresnel(1, waterF0)
	for i := 1; i <= 10; i++ {
		cos := 1 - float32(i)*0.1
		f := SchlickFresnel(cos, waterF0)
		if f < prev {
			t.Fatalf("fresnel not increasing toward grazing at cos=%v", cos)
		}
		prev = f
	}
}

func TestBilateralFilterPreservesSilhouette(t *testing.T) {
	src := NewDepthBuffer(16, 16)
	// Left half fluid at bumpy depths, right half background.
	for y := 0; y < 16; y++ {
		for x := 0; x < 8; x++ {
			v := float32(0.5)
			if (x+y)%2 == 0 {
				v = 0.52
			}
			src.Set(x, y, v)
		}
	}
	dst := NewDepthBuffer(16, 16)
	BilateralFilter(dst, src, 2, 0.1)

	for y := 0; y < 16; y++ {
		for x := 8; x < 16; x++ {
			if !IsBackground(dst.At(x, y)) {
				t.Fatalf("background pixel (%d,%d) got fluid depth %v", x, y, dst.At(x, y))
			}
		}
	}
	// Interior bumps should flatten toward the mean.
	center := dst.At(4, 8)
	if center < 0.5 || center > 0.52 {
		t.Errorf("smoothed depth %v outside source range", center)
	}
	spread := float32(0)
	for y := 6; y < 10; y++ {
		for x := 2; x < 6; x++ {
			d := dst.At(x, y) - center
			if d < 0 {
				d = -d
			}
			if d > spread {
				spread = d
			}
		}
	}
	if spread > 0.01 {
		t.Errorf("interior spread %v after smoothing, want < 0.01", spread)
	}
}

func TestBilateralFilterRejectsDepthDiscontinuity(t *testing.T) {
	src := NewDepthBuffer(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x < 4 {
				src.Set(x, y, 0.2)
			} else {
				src.Set(x, y, 0.8)
			}
		}
	}
	dst := NewDepthBuffer(8, 8)
	BilateralFilter(dst, src, 2, 0.05)

	if d := dst.At(1, 4); d > 0.25 {
		t.Errorf("near layer bled to %v across discontinuity", d)
	}
	if d := dst.At(6, 4); d < 0.75 {
		t.Errorf("far layer bled to %v across discontinuity", d)
	}
}

func TestYCoCgRoundTrip(t *testing.T) {
	cases := []RGB{
		{0, 0, 0}, {1, 1, 1}, {0.2, 0.5, 0.9}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1},
	}
	for _, c := range cases {
		got := FromYCoCg(ToYCoCg(c))
		if math.Abs(float64(got.R-c.R)) > 1e-5 ||
			math.Abs(float64(got.G-c.G)) > 1e-5 ||
			math.Abs(float64(got.B-c.B)) > 1e-5 {
			t.Errorf("round trip %+v -> %+v", c, got)
		}
	}
}

func TestClampToNeighborhoodRejectsOutlier(t *testing.T) {
	current := NewImage(8, 8)
	for i := range current.Pix {
		current.Pix[i] = RGB{0.2, 0.4, 0.8}
	}
	ghost := RGB{1, 0, 0}
	clamped := ClampToNeighborhood(ghost, current, 4, 4)
	if math.Abs(float64(clamped.R-0.2)) > 1e-4 ||
		math.Abs(float64(clamped.G-0.4)) > 1e-4 ||
		math.Abs(float64(clamped.B-0.8)) > 1e-4 {
		t.Errorf("ghost color survived clamp: %+v", clamped)
	}
	inRange := RGB{0.2, 0.4, 0.8}
	if got := ClampToNeighborhood(inRange, current, 4, 4); got != inRange {
		t.Errorf("in-range history altered: %+v", got)
	}
}

func TestProjectCenterOfIdentityClip(t *testing.T) {
	u, v, _, ok := Project(fluid.Identity4(), fluid.Vec3{})
	if !ok {
		t.Fatal("origin projection failed")
	}
	if math.Abs(float64(u-0.5)) > 1e-5 || math.Abs(float64(v-0.5)) > 1e-5 {
		t.Fatalf("origin projects to (%v,%v), want center", u, v)
	}
	if _, _, _, ok := Project(fluid.Mat4{}, fluid.Vec3{X: 1}); ok {
		t.Error("degenerate projection reported ok")
	}
}

func TestMotionVectorStaticCamera(t *testing.T) {
	vp := fluid.Identity4()
	du, dv, ok := MotionVector(fluid.Vec3{X: 0.3, Y: 0.2, Z: 0.1}, vp, vp)
	if !ok || du != 0 || dv != 0 {
		t.Fatalf("static camera motion = (%v,%v,%v), want zero", du, dv, ok)
	}
}

func TestReprojectFetchesHistoryAlongMotion(t *testing.T) {
	const n = 8
	gray := func(v float32) RGB { return RGB{v, v, v} }

	// Horizontal gradient so the neighborhood clamp box is wide enough to
	// admit a genuinely fetched history sample.
	current := NewImage(n, n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			current.Set(x, y, gray(float32(x)/n))
		}
	}
	history := NewImage(n, n)
	history.Set(5, 4, gray(0.6))
	history.Set(4, 4, gray(0.1))

	// Camera translated a quarter clip unit: every pixel's history lives one
	// texel to the right (du = 0.125 on an 8-wide image).
	currVP := fluid.Identity4()
	prevVP := fluid.Translate(fluid.Vec3{X: 0.25})
	worldAt := func(x, y int) (fluid.Vec3, bool) {
		if y == 0 {
			return fluid.Vec3{}, false // background row
		}
		return fluid.Vec3{}, true
	}

	dst := NewImage(n, n)
	Reproject(dst, current, history, prevVP, currVP, worldAt, 0.5)

	// Pixel (4,4) blends the history at (5,4), not its own column.
	want := float32(0.6*0.5 + 0.5*0.5)
	if got := dst.At(4, 4); math.Abs(float64(got.G-want)) > 1e-4 {
		t.Errorf("reprojected pixel = %v, want %v", got.G, want)
	}
	// Motion off the image edge falls back to the current color.
	if got := dst.At(7, 4); got != current.At(7, 4) {
		t.Errorf("out-of-bounds history blended: %+v", got)
	}
	// Background pixels never blend.
	if got := dst.At(3, 0); got != current.At(3, 0) {
		t.Errorf("background pixel blended: %+v", got)
	}
}

func TestBeerLambert(t *testing.T) {
	a := RGB{0.45, 0.12, 0.06}
	if got := BeerLambert(a, 0); got != (RGB{1, 1, 1}) {
		t.Errorf("zero thickness tint = %+v, want white", got)
	}
	thick := BeerLambert(a, 5)
	if !(thick.R < thick.G && thick.G < thick.B) {
		t.Errorf("tint %+v does not shift blue with depth", thick)
	}
	thin := BeerLambert(a, 1)
	if thin.R <= thick.R {
		t.Error("absorption not monotone in thickness")
	}
}

func TestFoamFactorRamp(t *testing.T) {
	if f := FoamFactor(0, 0.1, 0.5); f != 1 {
		t.Errorf("zero thickness foam = %v, want 1", f)
	}
	if f := FoamFactor(1, 0.1, 0.5); f != 0 {
		t.Errorf("thick fluid foam = %v, want 0", f)
	}
	mid := FoamFactor(0.3, 0.1, 0.5)
	if mid <= 0 || mid >= 1 {
		t.Errorf("mid-band foam = %v, want in (0,1)", mid)
	}
}

func TestCausticRangeAndAnimation(t *testing.T) {
	static := float32(-1)
	animated := false
	for i := 0; i < 50; i++ {
		x := float32(i) * 0.37
		z := float32(i) * 0.73
		c := Caustic(x, z, 0)
		if c < 0 || c > 1 {
			t.Fatalf("caustic %v out of [0,1] at (%v,%v)", c, x, z)
		}
		if static < 0 {
			static = Caustic(1.5, 2.5, 0)
		}
		if Caustic(1.5, 2.5, float32(i)) != static {
			animated = true
		}
	}
	if !animated {
		t.Error("caustic field does not animate with time")
	}
}

func TestShadePixelFoamAndFresnelMix(t *testing.T) {
	p := &ShadeParams{
		Absorption: RGB{0.45, 0.12, 0.06},
		DeepColor:  RGB{0.05, 0.15, 0.25},
		FoamLo:     0.05,
		FoamHi:     0.3,
		RimPower:   3,
	}
	bg := RGB{0.5, 0.5, 0.5}
	sky := RGB{0.7, 0.8, 1.0}

	// Thin film goes white with foam.
	thin := ShadePixel(p, fluid.Vec3{Z: 1}, 0.01, bg, sky)
	if thin.R < 0.9 || thin.G < 0.9 || thin.B < 0.9 {
		t.Errorf("thin film color %+v, want near white foam", thin)
	}

	// Thick fluid at normal incidence: mostly transmission, blue-shifted.
	deep := ShadePixel(p, fluid.Vec3{Z: 1}, 3, bg, sky)
	if deep.B <= deep.R {
		t.Errorf("deep fluid %+v not blue-shifted", deep)
	}

	// Grazing view reflects the sky.
	grazing := ShadePixel(p, fluid.Vec3{X: 1, Z: 0.01}.Normalized(), 3, bg, RGB{10, 0, 0})
	if grazing.R < 1 {
		t.Errorf("grazing pixel %+v does not pick up reflection", grazing)
	}
}

func TestSampleEquirect(t *testing.T) {
	u, v := SampleEquirect(fluid.Vec3{Y: 1})
	if math.Abs(float64(v)) > 1e-4 {
		t.Errorf("up direction v = %v, want 0", v)
	}
	u, v = SampleEquirect(fluid.Vec3{Y: -1})
	if math.Abs(float64(v-1)) > 1e-4 {
		t.Errorf("down direction v = %v, want 1", v)
	}
	u, v = SampleEquirect(fluid.Vec3{X: 1})
	if u < 0 || u > 1 || v < 0.49 || v > 0.51 {
		t.Errorf("horizon direction uv = (%v,%v)", u, v)
	}
}
