// Package renderer implements the host side driver for the RasteriCEr
// tile based rasterizer. The caller submits a frame's worth of drawing
// commands; the driver buffers them into a display list and, on commit,
// replays the list to the device once per display band over the bus.
package renderer

import (
	"errors"
	"unsafe"

	"github.com/zjarci/rastericer/bus"
	"github.com/zjarci/rastericer/displaylist"
	"github.com/zjarci/rastericer/rasterizer"
)

// Device geometry and transfer defaults. The hardware renders in
// horizontal bands of LINE_RESOLUTION scanlines; its framebuffer holds
// exactly one band, and one bus transfer carries at most
// HARDWARE_BUFFER_SIZE bytes.
const (
	DISPLAY_LIST_SIZE    = 2048
	DISPLAY_LINES        = 1
	LINE_RESOLUTION      = 128
	X_RESOLUTION         = 128
	BUS_WIDTH            = 32
	HARDWARE_BUFFER_SIZE = 2048

	// Two frame lists, front and back. The swap logic is a two
	// state toggle; more buffers are not supported.
	DISPLAY_BUFFERS = 2
)

var (
	// ErrListFull is returned when a command does not fit in the
	// back display list. The list is left unchanged (except by
	// Commit, which drops the whole frame); the caller may retry
	// after the next Commit.
	ErrListFull = errors.New("renderer: display list full")

	// ErrUnsupportedTexture is returned for any texture that is not
	// square with an edge length of 32, 64, 128 or 256.
	ErrUnsupportedTexture = errors.New("renderer: unsupported texture size")

	// ErrUnsupported is returned by operations the hardware does
	// not implement.
	ErrUnsupported = errors.New("renderer: operation not supported by hardware")
)

// Config carries the build options of the target device. Zero fields
// take the defaults above.
type Config struct {
	DisplayListSize uint32 // frame list capacity in bytes
	DisplayLines    uint16 // bands per frame
	LineResolution  uint16 // scanlines per band
	XResolution     uint16 // pixels per scanline
	BusWidth        uint16 // bus width in bits; 32 or 64
	NoPerspCorrect  bool   // start with perspective correct texturing off
}

func (c *Config) fillDefaults() {
	if c.DisplayListSize == 0 {
		c.DisplayListSize = DISPLAY_LIST_SIZE
	}
	if c.DisplayLines == 0 {
		c.DisplayLines = DISPLAY_LINES
	}
	if c.LineResolution == 0 {
		c.LineResolution = LINE_RESOLUTION
	}
	if c.XResolution == 0 {
		c.XResolution = X_RESOLUTION
	}
	if c.BusWidth == 0 {
		c.BusWidth = BUS_WIDTH
	}
}

// textureStreamArg is the list payload of a TEXTURE_STREAM opcode. The
// pixel data itself is not copied into the list; the arg names an entry
// in the list's borrowed texture table.
type textureStreamArg struct {
	texID           int32
	remainingPixels int32
}

// texCursor tracks the one in flight texture upload. pos counts pixels
// already pushed; a cursor whose pos has reached the end of its slice
// marks that exact buffer as resident on the device.
type texCursor struct {
	pixels []uint16
	pos    int32
}

func (tc *texCursor) remaining() int32 {
	if tc.pixels == nil {
		return 0
	}
	return int32(len(tc.pixels)) - tc.pos
}

// Renderer drives one device. It is not safe for concurrent use; all
// progress happens on the caller's goroutine (see UploadDisplayList).
type Renderer struct {
	conf  Config
	align uint32

	bus    bus.Connector
	raster *rasterizer.Rasterizer

	lists    [DISPLAY_BUFFERS]*displaylist.List
	textures [DISPLAY_BUFFERS][][]uint16 // borrowed pixel slices, per list
	front    int
	back     int

	uploadList *displaylist.List

	// band currently being re-emitted; counts down from
	// DisplayLines-1 to 0
	uploadIndexPosition uint16
	cursor              texCursor
	chunk               [HARDWARE_BUFFER_SIZE]byte

	reg1 ConfReg1
	reg2 ConfReg2
}

// New returns a renderer streaming to b. The configuration must match
// the bitstream the device was built with.
func New(conf Config, b bus.Connector) *Renderer {
	conf.fillDefaults()
	if conf.BusWidth != 32 && conf.BusWidth != 64 {
		panic("renderer: bus width must be 32 or 64")
	}

	r := &Renderer{
		conf:  conf,
		align: uint32(conf.BusWidth) / 8,
		bus:   b,
		raster: rasterizer.New(
			int(conf.XResolution),
			int(conf.DisplayLines)*int(conf.LineResolution),
			!conf.NoPerspCorrect,
		),
	}
	for i := range r.lists {
		r.lists[i] = displaylist.New(conf.DisplayListSize, r.align)
		r.textures[i] = make([][]uint16, 0, 8)
	}
	r.back = 1
	r.uploadList = displaylist.New(HARDWARE_BUFFER_SIZE, r.align)

	// Power on register state. Emitted to the device the first
	// time any of them changes; the hardware resets to the same
	// values.
	r.reg1.setDepthFunc(LESS)
	r.reg1.setDepthMask(false)
	r.reg1.setColorMask(true, true, true, true)
	r.reg1.setAlphaFunc(ALWAYS)
	r.reg1.setAlphaRef(0xF)
	r.reg2.setTexEnvFunc(TEXENV_MODULATE)
	r.reg2.setBlendFunc(ONE, ZERO)
	r.reg2.setPerspectiveCorrect(!conf.NoPerspCorrect)

	return r
}

// triangleSizeAligned is the arena footprint of one rasterized
// triangle.
func (r *Renderer) triangleSizeAligned() uint32 {
	var t rasterizer.Triangle
	return (uint32(unsafe.Sizeof(t)) + r.align - 1) &^ (r.align - 1)
}

func (r *Renderer) opcodeSizeAligned() uint32 {
	return r.align
}

func (r *Renderer) backList() *displaylist.List {
	return r.lists[r.back]
}

func (r *Renderer) frontList() *displaylist.List {
	return r.lists[r.front]
}

// writeOpcode appends a bare opcode to the back list.
func (r *Renderer) writeOpcode(op Opcode) error {
	p := displaylist.Alloc[Opcode](r.backList())
	if p == nil {
		return ErrListFull
	}
	*p = op
	return nil
}

// writeReg appends a SET_REG opcode and its 16 bit payload. Either both
// land in the list or neither does.
func (r *Renderer) writeReg(reg Opcode, val uint16) error {
	bl := r.backList()
	op := displaylist.Alloc[Opcode](bl)
	if op == nil {
		return ErrListFull
	}
	payload := displaylist.Alloc[uint16](bl)
	if payload == nil {
		displaylist.Remove[Opcode](bl)
		return ErrListFull
	}
	*op = OP_SET_REG | reg
	*payload = val
	return nil
}

// DrawTriangle rasterizes one triangle and appends it to the current
// frame. v0..v2 are clip space positions, st0..st2 the matching texture
// coordinates. Triangles without visible coverage are dropped silently.
func (r *Renderer) DrawTriangle(v0, v1, v2 rasterizer.Vec4, st0, st1, st2 rasterizer.Vec2, c Color) error {
	r.UploadDisplayList()

	var tri rasterizer.Triangle
	if !r.raster.Rasterize(&tri, v0, st0, v1, st1, v2, st2) {
		return nil
	}
	tri.StaticColor = ConvertColor(c)

	bl := r.backList()
	op := displaylist.Alloc[Opcode](bl)
	if op == nil {
		return ErrListFull
	}
	dst := displaylist.Alloc[rasterizer.Triangle](bl)
	if dst == nil {
		displaylist.Remove[Opcode](bl)
		return ErrListFull
	}
	*op = OP_TRIANGLE_STREAM | Opcode(r.triangleSizeAligned())
	*dst = tri
	return nil
}

// Clear schedules a framebuffer fill with the current clear values.
// With both flags false a NOP is emitted to keep the command stream's
// shape stable.
func (r *Renderer) Clear(color, depth bool) error {
	op := OP_NOP
	if color || depth {
		op = OP_FRAMEBUFFER_OP | FB_MEMSET
		if color {
			op |= FB_COLOR
		}
		if depth {
			op |= FB_DEPTH
		}
	}
	return r.writeOpcode(op)
}

// UseTexture selects pixels as the active texture for subsequent
// triangles. Only square RGBA4444 textures with an edge of 32, 64, 128
// or 256 are supported. The driver borrows the slice: the caller must
// not release or mutate it until the commit after the upload finishes.
func (r *Renderer) UseTexture(pixels []uint16, w, h int) error {
	r.UploadDisplayList()

	if w != h || (w != 32 && w != 64 && w != 128 && w != 256) {
		return ErrUnsupportedTexture
	}
	if len(pixels) < w*h {
		return ErrUnsupportedTexture
	}

	bl := r.backList()
	op := displaylist.Alloc[Opcode](bl)
	if op == nil {
		return ErrListFull
	}
	arg := displaylist.Alloc[textureStreamArg](bl)
	if arg == nil {
		displaylist.Remove[Opcode](bl)
		return ErrListFull
	}

	r.textures[r.back] = append(r.textures[r.back], pixels[:w*h])
	*op = OP_TEXTURE_STREAM | Opcode(w)
	*arg = textureStreamArg{
		texID:           int32(len(r.textures[r.back]) - 1),
		remainingPixels: int32(w * h),
	}
	return nil
}

// SetClearColor sets the value Clear(color) fills with.
func (r *Renderer) SetClearColor(c Color) error {
	return r.writeReg(REG_COLOR_CLEAR, ConvertColor(c))
}

// SetClearDepth sets the value Clear(depth) fills with.
func (r *Renderer) SetClearDepth(d uint16) error {
	return r.writeReg(REG_DEPTH_CLEAR, d)
}

// SetTexEnvColor sets the constant color used by TEXENV_BLEND.
func (r *Renderer) SetTexEnvColor(c Color) error {
	return r.writeReg(REG_TEX_ENV_COLOR, ConvertColor(c))
}

// The configuration registers are write through: every change emits a
// fresh full snapshot, so the device never needs read back.

func (r *Renderer) EnableDepthTest(on bool) error {
	r.reg1.setEnableDepthTest(on)
	return r.writeReg(REG_CONF_1, r.reg1.Value())
}

func (r *Renderer) SetDepthFunc(f TestFunc) error {
	r.reg1.setDepthFunc(f)
	return r.writeReg(REG_CONF_1, r.reg1.Value())
}

func (r *Renderer) SetDepthMask(on bool) error {
	r.reg1.setDepthMask(on)
	return r.writeReg(REG_CONF_1, r.reg1.Value())
}

func (r *Renderer) SetColorMask(red, green, blue, alpha bool) error {
	r.reg1.setColorMask(red, green, blue, alpha)
	return r.writeReg(REG_CONF_1, r.reg1.Value())
}

func (r *Renderer) SetAlphaFunc(f TestFunc, ref uint8) error {
	r.reg1.setAlphaFunc(f)
	r.reg1.setAlphaRef(ref)
	return r.writeReg(REG_CONF_1, r.reg1.Value())
}

func (r *Renderer) SetTexEnv(mode TexEnvMode) error {
	r.reg2.setTexEnvFunc(mode)
	return r.writeReg(REG_CONF_2, r.reg2.Value())
}

func (r *Renderer) SetBlendFunc(src, dst BlendFunc) error {
	r.reg2.setBlendFunc(src, dst)
	return r.writeReg(REG_CONF_2, r.reg2.Value())
}

func (r *Renderer) SetTexWrapModeS(m TexWrapMode) error {
	r.reg2.setClampS(m == WRAP_CLAMP_TO_EDGE)
	return r.writeReg(REG_CONF_2, r.reg2.Value())
}

func (r *Renderer) SetTexWrapModeT(m TexWrapMode) error {
	r.reg2.setClampT(m == WRAP_CLAMP_TO_EDGE)
	return r.writeReg(REG_CONF_2, r.reg2.Value())
}

// SetLogicOp always fails: the hardware has no logic op unit. The call
// exists so GL style front ends can forward glLogicOp unchanged.
func (r *Renderer) SetLogicOp(op LogicOp) error {
	return ErrUnsupported
}
