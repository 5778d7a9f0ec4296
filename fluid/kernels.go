package fluid

import "math"

// Smoothing kernels. Both solvers interpolate neighbor quantities through
// these; the PBD path uses the cubic spline (support 2h) and the PCISPH path
// uses Wendland C2 (support h), which resists the pairing instability better
// under iterative pressure correction.

// CubicSpline evaluates the normalized cubic spline kernel W(r,h).
// Support radius is 2h; returns 0 for r >= 2h.
func CubicSpline(r, h float32) float32 {
	if r >= 2*h || h <= 0 {
		return 0
	}
	q := r / h
	sigma := float32(1.0 / math.Pi) / (h * h * h)
	if q < 1 {
		return sigma * (1 - 1.5*q*q + 0.75*q*q*q)
	}
	d := 2 - q
	return sigma * 0.25 * d * d * d
}

// CubicSplineGrad returns dW/dr for the cubic spline. Negative within
// support (W decreases with r), 0 outside.
func CubicSplineGrad(r, h float32) float32 {
	if r >= 2*h || h <= 0 {
		return 0
	}
	q := r / h
	sigma := float32(1.0 / math.Pi) / (h * h * h)
	if q < 1 {
		return sigma * (-3*q + 2.25*q*q) / h
	}
	d := 2 - q
	return sigma * -0.75 * d * d / h
}

// WendlandC2 evaluates the Wendland C2 kernel with support radius h.
// Returns 0 for r >= h.
func WendlandC2(r, h float32) float32 {
	if r >= h || h <= 0 {
		return 0
	}
	q := r / h
	sigma := float32(21.0/(2.0*math.Pi)) / (h * h * h)
	omq := 1 - q
	omq2 := omq * omq
	return sigma * omq2 * omq2 * (1 + 4*q)
}

// WendlandC2Grad returns dW/dr for Wendland C2. Negative within support.
func WendlandC2Grad(r, h float32) float32 {
	if r >= h || h <= 0 {
		return 0
	}
	q := r / h
	sigma := float32(21.0/(2.0*math.Pi)) / (h * h * h)
	omq := 1 - q
	return sigma * -20 * q * omq * omq * omq / h
}

// kernelGradVec returns ∇W as a vector for the given kernel gradient
// magnitude function, pointing from j toward i along rij.
func kernelGradVec(rij Vec3, r float32, gradMag float32) Vec3 {
	if r < 1e-8 {
		return Vec3{}
	}
	// gradMag is dW/dr (negative); ∇W = dW/dr * rij/|rij|
	return rij.Scale(gradMag / r)
}
