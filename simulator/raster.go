package simulator

import (
	"math"

	"github.com/zjarci/rastericer/rasterizer"
	"github.com/zjarci/rastericer/renderer"
)

// rgba is a working color, 8 bits per channel.
type rgba [4]uint8

func fromRGBA4444(v uint16) rgba {
	return rgba{
		expand4(v >> 12),
		expand4(v >> 8),
		expand4(v >> 4),
		expand4(v),
	}
}

func toRGBA4444(c rgba) uint16 {
	return uint16(c[0]>>4)<<12 | uint16(c[1]>>4)<<8 | uint16(c[2]>>4)<<4 | uint16(c[3]>>4)
}

// drawTriangle walks the triangle's bounding box inside the band
// buffer, stepping the edge functions and gradients exactly like the
// hardware does.
func (s *Simulator) drawTriangle(t *rasterizer.Triangle) {
	width := int32(s.conf.XResolution)
	lines := int32(s.conf.LineResolution)

	e := t.WInit
	depth := t.DepthInit
	wrecip := t.WRecipInit
	texS := t.TexSInit
	texT := t.TexTInit

	for y := int32(t.BBStartY); y < int32(t.BBEndY) && y < lines; y++ {
		e0, e1, e2 := e[0], e[1], e[2]
		d, q, us, ut := depth, wrecip, texS, texT

		for x := int32(t.BBStartX); x < int32(t.BBEndX) && x < width; x++ {
			if e0 >= 0 && e1 >= 0 && e2 >= 0 {
				s.shade(y*width+x, t.StaticColor, d, q, us, ut)
			}
			e0 += t.WXInc[0]
			e1 += t.WXInc[1]
			e2 += t.WXInc[2]
			d += t.DepthXInc
			q += t.WRecipXInc
			us += t.TexSXInc
			ut += t.TexTXInc
		}

		e[0] += t.WYInc[0]
		e[1] += t.WYInc[1]
		e[2] += t.WYInc[2]
		depth += t.DepthYInc
		wrecip += t.WRecipYInc
		texS += t.TexSYInc
		texT += t.TexTYInc
	}
}

// shade runs one fragment through depth test, texturing, alpha test,
// blending and the write masks.
func (s *Simulator) shade(idx int32, staticColor uint16, depth, wrecip, texS, texT float32) {
	if depth < 0 {
		depth = 0
	} else if depth > 1 {
		depth = 1
	}
	d16 := uint16(depth * 0xFFFF)

	depthTest := s.reg1.EnableDepthTest()
	if depthTest && !testPass(s.reg1.DepthFunc(), d16, s.bandDepth[idx]) {
		return
	}

	frag := fromRGBA4444(staticColor)
	if mode := s.reg2.TexEnvFunc(); mode != renderer.TEXENV_DISABLE && s.texSize > 0 {
		texel := s.sample(texS/wrecip, texT/wrecip)
		frag = s.texEnv(mode, frag, texel)
	}

	if !testPass(s.reg1.AlphaFunc(), uint16(frag[3]>>4), uint16(s.reg1.AlphaRef())) {
		return
	}

	dst := fromRGBA4444(s.bandColor[idx])
	out := s.blend(frag, dst)

	if !s.reg1.ColorMaskR() {
		out[0] = dst[0]
	}
	if !s.reg1.ColorMaskG() {
		out[1] = dst[1]
	}
	if !s.reg1.ColorMaskB() {
		out[2] = dst[2]
	}
	if !s.reg1.ColorMaskA() {
		out[3] = dst[3]
	}
	s.bandColor[idx] = toRGBA4444(out)

	if depthTest && s.reg1.DepthMask() {
		s.bandDepth[idx] = d16
	}
}

func testPass(f renderer.TestFunc, val, ref uint16) bool {
	switch f {
	case renderer.NEVER:
		return false
	case renderer.LESS:
		return val < ref
	case renderer.EQUAL:
		return val == ref
	case renderer.LEQUAL:
		return val <= ref
	case renderer.GREATER:
		return val > ref
	case renderer.NOTEQUAL:
		return val != ref
	case renderer.GEQUAL:
		return val >= ref
	}
	return true
}

// sample fetches one texel with the configured wrap modes. No
// filtering; the hardware is point sampled.
func (s *Simulator) sample(u, v float32) rgba {
	size := s.texSize
	xi := wrapCoord(u, size, s.reg2.ClampS())
	yi := wrapCoord(v, size, s.reg2.ClampT())
	return fromRGBA4444(s.texPixels[yi*size+xi])
}

func wrapCoord(c float32, size int, clamp bool) int {
	if clamp {
		if c < 0 {
			c = 0
		} else if c > 1 {
			c = 1
		}
	} else {
		c -= float32(math.Floor(float64(c)))
	}
	i := int(c * float32(size))
	if i >= size {
		i = size - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// texEnv combines the fragment color with the sampled texel.
func (s *Simulator) texEnv(mode renderer.TexEnvMode, frag, texel rgba) rgba {
	switch mode {
	case renderer.TEXENV_REPLACE:
		return texel
	case renderer.TEXENV_MODULATE:
		return rgba{
			mul8(frag[0], texel[0]),
			mul8(frag[1], texel[1]),
			mul8(frag[2], texel[2]),
			mul8(frag[3], texel[3]),
		}
	case renderer.TEXENV_DECAL:
		return rgba{
			lerp8(frag[0], texel[0], texel[3]),
			lerp8(frag[1], texel[1], texel[3]),
			lerp8(frag[2], texel[2], texel[3]),
			frag[3],
		}
	case renderer.TEXENV_BLEND:
		env := fromRGBA4444(s.texEnvColor)
		return rgba{
			lerp8(frag[0], env[0], texel[0]),
			lerp8(frag[1], env[1], texel[1]),
			lerp8(frag[2], env[2], texel[2]),
			mul8(frag[3], texel[3]),
		}
	case renderer.TEXENV_ADD:
		return rgba{
			add8(frag[0], texel[0]),
			add8(frag[1], texel[1]),
			add8(frag[2], texel[2]),
			mul8(frag[3], texel[3]),
		}
	}
	return frag
}

// blend applies the configured source and destination factors.
func (s *Simulator) blend(src, dst rgba) rgba {
	sf := blendFactor(s.reg2.BlendSrc(), src, dst)
	df := blendFactor(s.reg2.BlendDst(), src, dst)

	var out rgba
	for i := 0; i < 4; i++ {
		v := (uint32(src[i])*uint32(sf[i]) + uint32(dst[i])*uint32(df[i])) / 255
		if v > 255 {
			v = 255
		}
		out[i] = uint8(v)
	}
	return out
}

// blendFactor returns the per channel weight (0..255) for one factor.
func blendFactor(f renderer.BlendFunc, src, dst rgba) rgba {
	switch f {
	case renderer.ZERO:
		return rgba{0, 0, 0, 0}
	case renderer.ONE:
		return rgba{255, 255, 255, 255}
	case renderer.DST_COLOR:
		return dst
	case renderer.SRC_COLOR:
		return src
	case renderer.ONE_MINUS_DST_COLOR:
		return rgba{255 - dst[0], 255 - dst[1], 255 - dst[2], 255 - dst[3]}
	case renderer.ONE_MINUS_SRC_COLOR:
		return rgba{255 - src[0], 255 - src[1], 255 - src[2], 255 - src[3]}
	case renderer.SRC_ALPHA:
		a := src[3]
		return rgba{a, a, a, a}
	case renderer.ONE_MINUS_SRC_ALPHA:
		a := 255 - src[3]
		return rgba{a, a, a, a}
	case renderer.DST_ALPHA:
		a := dst[3]
		return rgba{a, a, a, a}
	case renderer.ONE_MINUS_DST_ALPHA:
		a := 255 - dst[3]
		return rgba{a, a, a, a}
	case renderer.SRC_ALPHA_SATURATE:
		a := src[3]
		if inv := 255 - dst[3]; inv < a {
			a = inv
		}
		return rgba{a, a, a, 255}
	}
	return rgba{255, 255, 255, 255}
}

func mul8(a, b uint8) uint8 {
	return uint8(uint16(a) * uint16(b) / 255)
}

func add8(a, b uint8) uint8 {
	v := uint16(a) + uint16(b)
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// lerp8 mixes a towards b by t.
func lerp8(a, b, t uint8) uint8 {
	return uint8((uint16(a)*(255-uint16(t)) + uint16(b)*uint16(t)) / 255)
}
