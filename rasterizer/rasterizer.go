// Package rasterizer reduces clip space triangles to the edge equation
// records the RasteriCEr hardware walks. The device has no geometry
// stage at all: everything it needs per triangle (edge functions,
// bounding box, depth and texture gradients) is computed here and
// shipped as one flat record.
package rasterizer

// Vec4 is a clip space position (x, y, z, w).
type Vec4 [4]float32

// Vec2 is a texture coordinate pair (s, t).
type Vec2 [2]float32

// Edge coordinates use 28.4 fixed point; one pixel is 16 sub units.
const subPixels = 16

// Triangle is the hardware consumable record of one triangle. It must
// stay flat (no Go pointers) and its field order is wire visible: the
// record is copied into the display list byte arena and DMAed to the
// device as raw bytes.
//
// The bounding box is in pixels, end exclusive. The edge functions
// W[0..2] and all gradients are seeded at the center of the bounding
// box start pixel; XInc/YInc advance them by one pixel. A pixel is
// covered when all three edge values are >= 0.
type Triangle struct {
	StaticColor uint16 // flat vertex color, RGBA4444
	_           uint16

	BBStartX uint16
	BBStartY uint16
	BBEndX   uint16
	BBEndY   uint16

	WInit [3]int32
	WXInc [3]int32
	WYInc [3]int32

	// Depth in [0,1], interpolated linearly in screen space.
	DepthInit float32
	DepthXInc float32
	DepthYInc float32

	// 1/w for perspective correction. With perspective correct
	// texturing disabled this plane is the constant 1 and TexS/TexT
	// carry plain s and t.
	WRecipInit float32
	WRecipXInc float32
	WRecipYInc float32

	// s/w and t/w (or s and t, see above).
	TexSInit float32
	TexSXInc float32
	TexSYInc float32

	TexTInit float32
	TexTXInc float32
	TexTYInc float32
}

// Rasterizer holds the viewport the device was configured with.
type Rasterizer struct {
	width, height int
	perspCorrect  bool
}

// New returns a rasterizer for a width x height viewport. perspCorrect
// selects whether texture gradients are divided by w (the hardware
// multiplies back per pixel).
func New(width, height int, perspCorrect bool) *Rasterizer {
	return &Rasterizer{width: width, height: height, perspCorrect: perspCorrect}
}

// plane carries the value of a linearly interpolated attribute at the
// bounding box seed pixel plus its per pixel gradients.
type plane struct {
	init, xInc, yInc float32
}

// solvePlane fits f(x,y) through three samples at screen positions
// (x0,y0)..(x2,y2) and evaluates it at (sx,sy).
func solvePlane(f0, f1, f2, x0, y0, x1, y1, x2, y2, sx, sy float32) plane {
	denom := (x1-x0)*(y2-y0) - (x2-x0)*(y1-y0)
	dfdx := ((f1-f0)*(y2-y0) - (f2-f0)*(y1-y0)) / denom
	dfdy := ((f2-f0)*(x1-x0) - (f1-f0)*(x2-x0)) / denom
	return plane{
		init: f0 + dfdx*(sx-x0) + dfdy*(sy-y0),
		xInc: dfdx,
		yInc: dfdy,
	}
}

// Rasterize computes the band independent record for one triangle and
// reports whether it has any visible coverage. Both windings are
// accepted; vertices behind the eye plane drop the whole triangle (the
// device has no clipper, so near plane clipping is the front end's
// job).
func (r *Rasterizer) Rasterize(out *Triangle, v0 Vec4, st0 Vec2, v1 Vec4, st1 Vec2, v2 Vec4, st2 Vec2) bool {
	if v0[3] <= 0 || v1[3] <= 0 || v2[3] <= 0 {
		return false
	}

	// Clip space to viewport.
	w0, w1, w2 := 1/v0[3], 1/v1[3], 1/v2[3]
	x0 := (v0[0]*w0*0.5 + 0.5) * float32(r.width)
	y0 := (v0[1]*w0*0.5 + 0.5) * float32(r.height)
	z0 := v0[2]*w0*0.5 + 0.5
	x1 := (v1[0]*w1*0.5 + 0.5) * float32(r.width)
	y1 := (v1[1]*w1*0.5 + 0.5) * float32(r.height)
	z1 := v1[2]*w1*0.5 + 0.5
	x2 := (v2[0]*w2*0.5 + 0.5) * float32(r.width)
	y2 := (v2[1]*w2*0.5 + 0.5) * float32(r.height)
	z2 := v2[2]*w2*0.5 + 0.5

	// 28.4 fixed point vertex positions.
	fx0, fy0 := fix(x0), fix(y0)
	fx1, fy1 := fix(x1), fix(y1)
	fx2, fy2 := fix(x2), fix(y2)

	// Double signed area; flip the winding instead of culling.
	area := (fx1-fx0)*(fy2-fy0) - (fx2-fx0)*(fy1-fy0)
	if area == 0 {
		return false
	}
	if area < 0 {
		fx1, fy1, fx2, fy2 = fx2, fy2, fx1, fy1
		x1, y1, z1, x2, y2, z2 = x2, y2, z2, x1, y1, z1
		w1, w2 = w2, w1
		st1, st2 = st2, st1
	}

	// Pixel bounding box clamped to the viewport, end exclusive.
	minX := clamp(minOf3(fx0, fx1, fx2)/subPixels, 0, int32(r.width))
	minY := clamp(minOf3(fy0, fy1, fy2)/subPixels, 0, int32(r.height))
	maxX := clamp(maxOf3(fx0, fx1, fx2)/subPixels+1, 0, int32(r.width))
	maxY := clamp(maxOf3(fy0, fy1, fy2)/subPixels+1, 0, int32(r.height))
	if minX >= maxX || minY >= maxY {
		return false
	}

	out.BBStartX = uint16(minX)
	out.BBStartY = uint16(minY)
	out.BBEndX = uint16(maxX)
	out.BBEndY = uint16(maxY)

	// Edge functions seeded at the start pixel's center.
	sx := minX*subPixels + subPixels/2
	sy := minY*subPixels + subPixels/2
	edge(out, 0, fx1, fy1, fx2, fy2, sx, sy)
	edge(out, 1, fx2, fy2, fx0, fy0, sx, sy)
	edge(out, 2, fx0, fy0, fx1, fy1, sx, sy)

	// Attribute gradients at the same seed point.
	cx := float32(minX) + 0.5
	cy := float32(minY) + 0.5

	depth := solvePlane(z0, z1, z2, x0, y0, x1, y1, x2, y2, cx, cy)
	out.DepthInit = depth.init
	out.DepthXInc = depth.xInc
	out.DepthYInc = depth.yInc

	s0, t0 := st0[0], st0[1]
	s1, t1 := st1[0], st1[1]
	s2, t2 := st2[0], st2[1]
	if r.perspCorrect {
		s0, t0 = s0*w0, t0*w0
		s1, t1 = s1*w1, t1*w1
		s2, t2 = s2*w2, t2*w2
		wr := solvePlane(w0, w1, w2, x0, y0, x1, y1, x2, y2, cx, cy)
		out.WRecipInit = wr.init
		out.WRecipXInc = wr.xInc
		out.WRecipYInc = wr.yInc
	} else {
		out.WRecipInit = 1
		out.WRecipXInc = 0
		out.WRecipYInc = 0
	}

	ts := solvePlane(s0, s1, s2, x0, y0, x1, y1, x2, y2, cx, cy)
	out.TexSInit = ts.init
	out.TexSXInc = ts.xInc
	out.TexSYInc = ts.yInc

	tt := solvePlane(t0, t1, t2, x0, y0, x1, y1, x2, y2, cx, cy)
	out.TexTInit = tt.init
	out.TexTXInc = tt.xInc
	out.TexTYInc = tt.yInc

	return true
}

// edge seeds edge function e (the edge from vertex a to vertex b) at
// the fixed point sample position (sx, sy). The increments step one
// whole pixel.
func edge(out *Triangle, e int, ax, ay, bx, by, sx, sy int32) {
	a := ay - by
	b := bx - ax
	c := ax*by - ay*bx
	out.WInit[e] = a*sx + b*sy + c
	out.WXInc[e] = a * subPixels
	out.WYInc[e] = b * subPixels
}

// CalcLineIncrement specializes in to the band [yStart, yEnd) and
// writes the result to out, reporting false when the triangle has no
// pixels there. The output bounding box and all row seeded values are
// rebased to the band's first row, because the device addresses its
// single band framebuffer from row zero.
func CalcLineIncrement(out *Triangle, in *Triangle, yStart, yEnd uint16) bool {
	if in.BBEndY <= yStart || in.BBStartY >= yEnd {
		return false
	}

	*out = *in

	start := in.BBStartY
	if start < yStart {
		start = yStart
	}
	end := in.BBEndY
	if end > yEnd {
		end = yEnd
	}

	dy := int32(start - in.BBStartY)
	for e := 0; e < 3; e++ {
		out.WInit[e] += dy * in.WYInc[e]
	}
	fdy := float32(dy)
	out.DepthInit += fdy * in.DepthYInc
	out.WRecipInit += fdy * in.WRecipYInc
	out.TexSInit += fdy * in.TexSYInc
	out.TexTInit += fdy * in.TexTYInc

	out.BBStartY = start - yStart
	out.BBEndY = end - yStart
	return true
}

func fix(v float32) int32 {
	if v < 0 {
		return int32(v*subPixels - 0.5)
	}
	return int32(v*subPixels + 0.5)
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minOf3(a, b, c int32) int32 {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func maxOf3(a, b, c int32) int32 {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}
