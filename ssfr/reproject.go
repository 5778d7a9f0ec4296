package ssfr

import "github.com/pthm-cable/brine/fluid"

// Temporal reprojection: blend the previous frame's smoothed result into the
// current one along per-pixel motion vectors, with the history sample clamped
// to the current neighborhood so stale colors cannot ghost.

// RGB is a linear color triple.
type RGB struct{ R, G, B float32 }

// Image is a dense RGB float target.
type Image struct {
	W, H int
	Pix  []RGB
}

// NewImage allocates a black image.
func NewImage(w, h int) *Image {
	return &Image{W: w, H: h, Pix: make([]RGB, w*h)}
}

// At reads pixel (x,y) with border clamping.
func (im *Image) At(x, y int) RGB {
	if x < 0 {
		x = 0
	} else if x >= im.W {
		x = im.W - 1
	}
	if y < 0 {
		y = 0
	} else if y >= im.H {
		y = im.H - 1
	}
	return im.Pix[y*im.W+x]
}

// Set writes pixel (x,y); out-of-bounds writes are dropped.
func (im *Image) Set(x, y int, c RGB) {
	if x < 0 || x >= im.W || y < 0 || y >= im.H {
		return
	}
	im.Pix[y*im.W+x] = c
}

// Project maps a world position through a view-projection matrix to
// normalized UV in [0,1] plus clip depth. ok is false behind the camera.
func Project(vp fluid.Mat4, p fluid.Vec3) (u, v, depth float32, ok bool) {
	x := vp[0]*p.X + vp[4]*p.Y + vp[8]*p.Z + vp[12]
	y := vp[1]*p.X + vp[5]*p.Y + vp[9]*p.Z + vp[13]
	z := vp[2]*p.X + vp[6]*p.Y + vp[10]*p.Z + vp[14]
	w := vp[3]*p.X + vp[7]*p.Y + vp[11]*p.Z + vp[15]
	if w <= 1e-6 {
		return 0, 0, 0, false
	}
	return (x/w + 1) * 0.5, (y/w + 1) * 0.5, z / w, true
}

// MotionVector returns the UV displacement of a world point between the
// previous and current view-projection matrices: where to fetch history for
// the pixel that sees p now. ok is false when either projection fails.
func MotionVector(p fluid.Vec3, prevVP, currVP fluid.Mat4) (du, dv float32, ok bool) {
	pu, pv, _, okPrev := Project(prevVP, p)
	cu, cv, _, okCurr := Project(currVP, p)
	if !okPrev || !okCurr {
		return 0, 0, false
	}
	return pu - cu, pv - cv, true
}

// YCoCg color space: luma plus two chroma axes. Neighborhood clamping in
// YCoCg rejects ghosting with a tighter box than RGB.
type YCoCg struct{ Y, Co, Cg float32 }

// ToYCoCg converts linear RGB.
func ToYCoCg(c RGB) YCoCg {
	return YCoCg{
		Y:  0.25*c.R + 0.5*c.G + 0.25*c.B,
		Co: 0.5*c.R - 0.5*c.B,
		Cg: -0.25*c.R + 0.5*c.G - 0.25*c.B,
	}
}

// FromYCoCg converts back to linear RGB.
func FromYCoCg(c YCoCg) RGB {
	return RGB{
		R: c.Y + c.Co - c.Cg,
		G: c.Y + c.Cg,
		B: c.Y - c.Co - c.Cg,
	}
}

// ClampToNeighborhood clamps a history color to the YCoCg bounding box of
// the current 3x3 neighborhood around (x,y).
func ClampToNeighborhood(history RGB, current *Image, x, y int) RGB {
	first := true
	var lo, hi YCoCg
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			s := ToYCoCg(current.At(x+dx, y+dy))
			if first {
				lo, hi = s, s
				first = false
				continue
			}
			lo.Y = min32(lo.Y, s.Y)
			lo.Co = min32(lo.Co, s.Co)
			lo.Cg = min32(lo.Cg, s.Cg)
			hi.Y = max32(hi.Y, s.Y)
			hi.Co = max32(hi.Co, s.Co)
			hi.Cg = max32(hi.Cg, s.Cg)
		}
	}
	h := ToYCoCg(history)
	h.Y = clamp32(h.Y, lo.Y, hi.Y)
	h.Co = clamp32(h.Co, lo.Co, hi.Co)
	h.Cg = clamp32(h.Cg, lo.Cg, hi.Cg)
	return FromYCoCg(h)
}

// Reproject blends history into current writing to dst. worldAt recovers the
// world position a pixel sees, or ok=false for background pixels, which take
// the current color unblended. historyBlend is the history weight in [0,1).
func Reproject(dst, current, history *Image, prevVP, currVP fluid.Mat4,
	worldAt func(x, y int) (fluid.Vec3, bool), historyBlend float32) {

	for y := 0; y < current.H; y++ {
		for x := 0; x < current.W; x++ {
			c := current.At(x, y)
			p, okWorld := worldAt(x, y)
			if !okWorld {
				dst.Set(x, y, c)
				continue
			}
			du, dv, ok := MotionVector(p, prevVP, currVP)
			if !ok {
				dst.Set(x, y, c)
				continue
			}
			hx := x + int(du*float32(current.W))
			hy := y + int(dv*float32(current.H))
			if hx < 0 || hx >= history.W || hy < 0 || hy >= history.H {
				dst.Set(x, y, c)
				continue
			}
			h := ClampToNeighborhood(history.At(hx, hy), current, x, y)
			dst.Set(x, y, RGB{
				R: h.R*historyBlend + c.R*(1-historyBlend),
				G: h.G*historyBlend + c.G*(1-historyBlend),
				B: h.B*historyBlend + c.B*(1-historyBlend),
			})
		}
	}
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func clamp32(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
