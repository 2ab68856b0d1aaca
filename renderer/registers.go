package renderer

// TestFunc selects a depth or alpha comparison. The values occupy 3
// bits on the wire.
type TestFunc uint16

const (
	NEVER TestFunc = iota
	LESS
	EQUAL
	LEQUAL
	GREATER
	NOTEQUAL
	GEQUAL
	ALWAYS
)

// BlendFunc selects a source or destination blend factor. The values
// occupy 4 bits on the wire.
type BlendFunc uint16

const (
	ZERO BlendFunc = iota
	ONE
	DST_COLOR
	SRC_COLOR
	ONE_MINUS_DST_COLOR
	ONE_MINUS_SRC_COLOR
	SRC_ALPHA
	ONE_MINUS_SRC_ALPHA
	DST_ALPHA
	ONE_MINUS_DST_ALPHA
	SRC_ALPHA_SATURATE
)

// TexEnvMode selects how the sampled texel combines with the triangle
// color. The values occupy 3 bits on the wire.
type TexEnvMode uint16

const (
	TEXENV_DISABLE TexEnvMode = iota
	TEXENV_REPLACE
	TEXENV_MODULATE
	TEXENV_DECAL
	TEXENV_BLEND
	TEXENV_ADD
)

// TexWrapMode selects texture coordinate wrapping per axis; 1 bit each
// on the wire.
type TexWrapMode uint16

const (
	WRAP_REPEAT TexWrapMode = iota
	WRAP_CLAMP_TO_EDGE
)

// LogicOp values are accepted for API compatibility only; the hardware
// has no logic op unit.
type LogicOp uint16

const (
	LOGIC_CLEAR LogicOp = iota
	LOGIC_SET
	LOGIC_COPY
	LOGIC_COPY_INVERTED
	LOGIC_NOOP
	LOGIC_INVERT
	LOGIC_AND
	LOGIC_NAND
	LOGIC_OR
	LOGIC_NOR
	LOGIC_XOR
	LOGIC_EQUIV
	LOGIC_AND_REVERSE
	LOGIC_AND_INVERTED
	LOGIC_OR_REVERSE
	LOGIC_OR_INVERTED
)

// ConfReg1 holds the per-fragment test configuration, bit packed the
// way the device expects it:
// 15                    0
// RGBA M AAAA FFF DDD E
// |||| | |||| ||| ||| +-- enable depth test
// |||| | |||| ||| +++---- depth func (TestFunc)
// |||| | |||| +++-------- alpha func (TestFunc)
// |||| | ++++------------ alpha ref value, 4 bit
// |||| +----------------- depth mask (1 = writes enabled)
// |||+------------------- color mask A
// ||+-------------------- color mask B
// |+--------------------- color mask G
// +---------------------- color mask R
type ConfReg1 struct {
	data uint16
}

func (c *ConfReg1) EnableDepthTest() bool { return c.data&0x0001 != 0 }
func (c *ConfReg1) DepthFunc() TestFunc   { return TestFunc(c.data>>1) & 0x07 }
func (c *ConfReg1) AlphaFunc() TestFunc   { return TestFunc(c.data>>4) & 0x07 }
func (c *ConfReg1) AlphaRef() uint8       { return uint8(c.data>>7) & 0x0F }
func (c *ConfReg1) DepthMask() bool       { return c.data&0x0800 != 0 }
func (c *ConfReg1) ColorMaskA() bool      { return c.data&0x1000 != 0 }
func (c *ConfReg1) ColorMaskB() bool      { return c.data&0x2000 != 0 }
func (c *ConfReg1) ColorMaskG() bool      { return c.data&0x4000 != 0 }
func (c *ConfReg1) ColorMaskR() bool      { return c.data&0x8000 != 0 }

func (c *ConfReg1) setEnableDepthTest(on bool) { c.setBit(0x0001, on) }

func (c *ConfReg1) setDepthFunc(f TestFunc) {
	c.data = (c.data & 0xFFF1) | (uint16(f&0x07) << 1)
}

func (c *ConfReg1) setAlphaFunc(f TestFunc) {
	c.data = (c.data & 0xFF8F) | (uint16(f&0x07) << 4)
}

func (c *ConfReg1) setAlphaRef(ref uint8) {
	c.data = (c.data & 0xF87F) | (uint16(ref&0x0F) << 7)
}

func (c *ConfReg1) setDepthMask(on bool) { c.setBit(0x0800, on) }

func (c *ConfReg1) setColorMask(r, g, b, a bool) {
	c.setBit(0x8000, r)
	c.setBit(0x4000, g)
	c.setBit(0x2000, b)
	c.setBit(0x1000, a)
}

func (c *ConfReg1) setBit(mask uint16, on bool) {
	if on {
		c.data |= mask
	} else {
		c.data &^= mask
	}
}

// Value returns the register as it goes over the wire.
func (c *ConfReg1) Value() uint16 { return c.data }

// DecodeConfReg1 reconstructs a register from its wire value.
func DecodeConfReg1(v uint16) ConfReg1 { return ConfReg1{v} }

// ConfReg2 holds the texturing and blending configuration:
// 13                  0
// TS DDDD SSSS FFF P
// || |||| |||| ||| +-- perspective correct texturing
// || |||| |||| +++---- tex env func (TexEnvMode)
// || |||| ++++-------- blend src factor (BlendFunc)
// || ++++------------- blend dst factor (BlendFunc)
// |+------------------ clamp texture S axis
// +------------------- clamp texture T axis
type ConfReg2 struct {
	data uint16
}

func (c *ConfReg2) PerspectiveCorrect() bool { return c.data&0x0001 != 0 }
func (c *ConfReg2) TexEnvFunc() TexEnvMode   { return TexEnvMode(c.data>>1) & 0x07 }
func (c *ConfReg2) BlendSrc() BlendFunc      { return BlendFunc(c.data>>4) & 0x0F }
func (c *ConfReg2) BlendDst() BlendFunc      { return BlendFunc(c.data>>8) & 0x0F }
func (c *ConfReg2) ClampS() bool             { return c.data&0x1000 != 0 }
func (c *ConfReg2) ClampT() bool             { return c.data&0x2000 != 0 }

func (c *ConfReg2) setPerspectiveCorrect(on bool) { c.setBit(0x0001, on) }

func (c *ConfReg2) setTexEnvFunc(f TexEnvMode) {
	c.data = (c.data & 0xFFF1) | (uint16(f&0x07) << 1)
}

func (c *ConfReg2) setBlendFunc(src, dst BlendFunc) {
	c.data = (c.data & 0xF00F) | (uint16(src&0x0F) << 4) | (uint16(dst&0x0F) << 8)
}

func (c *ConfReg2) setClampS(on bool) { c.setBit(0x1000, on) }
func (c *ConfReg2) setClampT(on bool) { c.setBit(0x2000, on) }

func (c *ConfReg2) setBit(mask uint16, on bool) {
	if on {
		c.data |= mask
	} else {
		c.data &^= mask
	}
}

// Value returns the register as it goes over the wire.
func (c *ConfReg2) Value() uint16 { return c.data }

// DecodeConfReg2 reconstructs a register from its wire value.
func DecodeConfReg2(v uint16) ConfReg2 { return ConfReg2{v} }

// Color is a host side color, 8 bits per channel, RGBA order.
type Color [4]uint8

// ConvertColor packs a host color into the device's RGBA4444 format:
// R in the top nibble, A in the bottom. Each channel keeps its top 4
// bits.
func ConvertColor(c Color) uint16 {
	return uint16(c[0]>>4)<<12 | uint16(c[1]>>4)<<8 | uint16(c[2]>>4)<<4 | uint16(c[3]>>4)
}
