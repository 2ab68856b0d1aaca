// Package simulator implements a software model of the RasteriCEr
// device. It consumes the exact byte stream the driver puts on the bus
// and renders it into an image, which makes it both the headless test
// device and the screen backend for machines without the FPGA attached.
package simulator

import (
	"encoding/binary"
	"image"
	"image/color"
	"unsafe"

	"github.com/zjarci/rastericer/rasterizer"
	"github.com/zjarci/rastericer/renderer"
)

const maxTextureSize = 256

// Config mirrors the geometry the driver was configured with.
type Config struct {
	DisplayLines   uint16
	LineResolution uint16
	XResolution    uint16
	BusWidth       uint16
}

func (c *Config) fillDefaults() {
	if c.DisplayLines == 0 {
		c.DisplayLines = renderer.DISPLAY_LINES
	}
	if c.LineResolution == 0 {
		c.LineResolution = renderer.LINE_RESOLUTION
	}
	if c.XResolution == 0 {
		c.XResolution = renderer.X_RESOLUTION
	}
	if c.BusWidth == 0 {
		c.BusWidth = renderer.BUS_WIDTH
	}
}

// Simulator executes the device bytecode. It implements bus.Connector
// synchronously: every write is fully processed before the call
// returns, so ClearToSend is always true.
type Simulator struct {
	conf  Config
	align uint32

	band      uint16 // band selected by the last start transfer
	bandColor []uint16
	bandDepth []uint16

	// Register file, reset to the same power on values the driver
	// assumes.
	clearColor  uint16
	clearDepth  uint16
	texEnvColor uint16
	reg1        renderer.ConfReg1
	reg2        renderer.ConfReg2

	// Active texture and the pixel counts of an in flight texture
	// stream.
	texPixels []uint16
	texSize   int
	texRecv   int // pixels received so far of a pending stream
	texWant   int // pixels expected

	out    *image.RGBA
	frames int
}

// New returns a powered on device.
func New(conf Config) *Simulator {
	conf.fillDefaults()
	bandPixels := int(conf.XResolution) * int(conf.LineResolution)
	s := &Simulator{
		conf:      conf,
		align:     uint32(conf.BusWidth) / 8,
		bandColor: make([]uint16, bandPixels),
		bandDepth: make([]uint16, bandPixels),
		texPixels: make([]uint16, 0, maxTextureSize*maxTextureSize),
		out: image.NewRGBA(image.Rect(0, 0,
			int(conf.XResolution),
			int(conf.DisplayLines)*int(conf.LineResolution))),
	}
	s.reset()
	return s
}

func (s *Simulator) reset() {
	s.clearColor = 0
	s.clearDepth = 0xFFFF
	s.texEnvColor = 0
	// The register file resets non zero, to the same state the
	// driver's encoder starts from.
	var v1, v2 uint16
	v1 |= uint16(renderer.LESS) << 1
	v1 |= uint16(renderer.ALWAYS) << 4
	v1 |= 0xF << 7   // alpha ref
	v1 |= 0xF << 12  // color mask RGBA
	s.reg1 = renderer.DecodeConfReg1(v1)
	v2 |= uint16(renderer.TEXENV_MODULATE) << 1
	v2 |= uint16(renderer.ONE) << 4
	v2 |= uint16(renderer.ZERO) << 8
	v2 |= 0x0001 // perspective correct
	s.reg2 = renderer.DecodeConfReg2(v2)
}

// Image returns the scanned out picture. It is updated on every band
// commit.
func (s *Simulator) Image() *image.RGBA {
	return s.out
}

// Frames returns the number of band commits executed. Mostly useful to
// tests.
func (s *Simulator) Frames() int {
	return s.frames
}

func (s *Simulator) ClearToSend() bool {
	return true
}

func (s *Simulator) StartColorBufferTransfer(band uint16) {
	s.band = band
}

func (s *Simulator) WriteData(p []byte) {
	if s.texRecv < s.texWant {
		s.receiveTexture(p)
		return
	}
	s.exec(p)
}

// receiveTexture consumes one raw pixel chunk of an announced texture
// stream.
func (s *Simulator) receiveTexture(p []byte) {
	for i := 0; i+1 < len(p) && s.texRecv < s.texWant; i += 2 {
		s.texPixels = append(s.texPixels, binary.LittleEndian.Uint16(p[i:]))
		s.texRecv++
	}
}

// exec interprets one band sub list. Records sit at bus aligned
// offsets, an opcode followed by the payload its class prescribes.
func (s *Simulator) exec(p []byte) {
	align := s.align
	triSize := (uint32(unsafe.Sizeof(rasterizer.Triangle{})) + align - 1) &^ (align - 1)

	for off := uint32(0); off+2 <= uint32(len(p)); {
		op := renderer.Opcode(binary.LittleEndian.Uint16(p[off:]))
		off += align

		switch op.Op() {
		case renderer.OP_NOP:

		case renderer.OP_SET_REG:
			val := binary.LittleEndian.Uint16(p[off:])
			off += align
			s.setReg(op, val)

		case renderer.OP_FRAMEBUFFER_OP:
			s.framebufferOp(op)

		case renderer.OP_TRIANGLE_STREAM:
			tri := (*rasterizer.Triangle)(unsafe.Pointer(&p[off]))
			off += triSize
			s.drawTriangle(tri)

		case renderer.OP_TEXTURE_STREAM:
			size := int(op.Imm())
			s.texSize = size
			s.texWant = size * size
			s.texRecv = 0
			s.texPixels = s.texPixels[:0]

		default:
			// The driver never emits unknown classes; stop
			// rather than misparse.
			return
		}
	}
}

func (s *Simulator) setReg(op renderer.Opcode, val uint16) {
	switch renderer.Opcode(op.Imm()) {
	case renderer.REG_COLOR_CLEAR:
		s.clearColor = val
	case renderer.REG_DEPTH_CLEAR:
		s.clearDepth = val
	case renderer.REG_TEX_ENV_COLOR:
		s.texEnvColor = val
	case renderer.REG_CONF_1:
		s.reg1 = renderer.DecodeConfReg1(val)
	case renderer.REG_CONF_2:
		s.reg2 = renderer.DecodeConfReg2(val)
	}
}

func (s *Simulator) framebufferOp(op renderer.Opcode) {
	if op&renderer.FB_MEMSET != 0 {
		if op&renderer.FB_COLOR != 0 {
			for i := range s.bandColor {
				s.bandColor[i] = s.clearColor
			}
		}
		if op&renderer.FB_DEPTH != 0 {
			for i := range s.bandDepth {
				s.bandDepth[i] = s.clearDepth
			}
		}
	}
	if op&renderer.FB_COMMIT != 0 && op&renderer.FB_COLOR != 0 {
		s.scanOut()
		s.frames++
	}
}

// scanOut copies the band buffer into the output image. Band indices
// address the picture bottom up, so the rows land mirrored.
func (s *Simulator) scanOut() {
	w := int(s.conf.XResolution)
	lines := int(s.conf.LineResolution)
	height := s.out.Rect.Dy()

	for row := 0; row < lines; row++ {
		y := int(s.band)*lines + row
		imgY := height - 1 - y
		if imgY < 0 || imgY >= height {
			continue
		}
		for x := 0; x < w; x++ {
			px := s.bandColor[row*w+x]
			s.out.SetRGBA(x, imgY, color.RGBA{
				R: expand4(px >> 12),
				G: expand4(px >> 8),
				B: expand4(px >> 4),
				A: expand4(px),
			})
		}
	}
}

// expand4 widens the low nibble to 8 bits.
func expand4(v uint16) uint8 {
	n := uint8(v & 0xF)
	return n<<4 | n
}
