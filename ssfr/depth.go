// Package ssfr holds the screen-space fluid rendering math: depth smoothing,
// temporal reprojection, and surface shading. The renderer package runs the
// same math as fragment shaders; this package is the reference the shader
// outputs are checked against and the fallback for headless captures.
package ssfr

import "math"

// backgroundDepth marks pixels with no fluid. Smoothing must never blend
// fluid depth with background or silhouettes erode.
const backgroundDepth = 1.0

// DepthBuffer is a single-channel float depth target.
type DepthBuffer struct {
	W, H int
	Data []float32
}

// NewDepthBuffer allocates a buffer cleared to the background depth.
func NewDepthBuffer(w, h int) *DepthBuffer {
	d := &DepthBuffer{W: w, H: h, Data: make([]float32, w*h)}
	d.Clear()
	return d
}

// Clear resets every pixel to background.
func (d *DepthBuffer) Clear() {
	for i := range d.Data {
		d.Data[i] = backgroundDepth
	}
}

// At reads pixel (x,y), clamping coordinates to the border.
func (d *DepthBuffer) At(x, y int) float32 {
	if x < 0 {
		x = 0
	} else if x >= d.W {
		x = d.W - 1
	}
	if y < 0 {
		y = 0
	} else if y >= d.H {
		y = d.H - 1
	}
	return d.Data[y*d.W+x]
}

// Set writes pixel (x,y); out-of-bounds writes are dropped.
func (d *DepthBuffer) Set(x, y int, v float32) {
	if x < 0 || x >= d.W || y < 0 || y >= d.H {
		return
	}
	d.Data[y*d.W+x] = v
}

// IsBackground reports whether a depth value is the no-fluid sentinel.
func IsBackground(depth float32) bool { return depth >= backgroundDepth }

// BilateralFilter smooths src into dst with a depth-aware Gaussian: spatial
// weight falls off over the kernel radius, range weight over depth
// difference, so the filter flattens particle bumps without bleeding across
// silhouette edges. Background pixels pass through untouched and contribute
// nothing to their neighbors.
func BilateralFilter(dst, src *DepthBuffer, radius int, depthSigma float32) {
	if radius < 1 {
		copy(dst.Data, src.Data)
		return
	}
	spatialSigma := float32(radius) * 0.5
	twoSpatial2 := 2 * spatialSigma * spatialSigma
	twoDepth2 := 2 * depthSigma * depthSigma

	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			center := src.At(x, y)
			if IsBackground(center) {
				dst.Set(x, y, center)
				continue
			}
			var sum, wsum float32
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					s := src.At(x+dx, y+dy)
					if IsBackground(s) {
						continue
					}
					dd := s - center
					w := expf(-(float32(dx*dx+dy*dy))/twoSpatial2 - dd*dd/twoDepth2)
					sum += s * w
					wsum += w
				}
			}
			if wsum > 0 {
				dst.Set(x, y, sum/wsum)
			} else {
				dst.Set(x, y, center)
			}
		}
	}
}

func expf(x float32) float32 { return float32(math.Exp(float64(x))) }
