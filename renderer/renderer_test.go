package renderer

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/zjarci/rastericer/bus/bustest"
	"github.com/zjarci/rastericer/rasterizer"
)

// newTestRenderer returns a renderer built from conf (zero fields take
// the defaults, a 128x128 single band geometry) attached to a recording
// bus.
func newTestRenderer(conf Config) (*Renderer, *bustest.Recorder) {
	rec := &bustest.Recorder{}
	return New(conf, rec), rec
}

// clipXY maps a 128x128 screen position to clip space for test
// geometry.
func clipXY(x, y float32) rasterizer.Vec4 {
	return rasterizer.Vec4{x/64 - 1, y/64 - 1, 0, 1}
}

var (
	st00 = rasterizer.Vec2{0, 0}
	st10 = rasterizer.Vec2{1, 0}
	st01 = rasterizer.Vec2{0, 1}
)

func white() Color { return Color{255, 255, 255, 255} }

// drawScreenTriangle appends one triangle spanning the full screen
// width at y=0 and narrowing to a point at (64,128), about half the
// screen.
func drawScreenTriangle(r *Renderer) error {
	return r.DrawTriangle(clipXY(0, 0), clipXY(128, 0), clipXY(64, 128), st00, st10, st01, white())
}

// listRecord is one decoded (opcode, payload) pair from a frame list.
type listRecord struct {
	op  Opcode
	val uint16 // SET_REG payload, if any
}

// decodeFrameList scans a frame list's bytes the way the walker does
// and returns its records.
func decodeFrameList(t *testing.T, r *Renderer, data []byte) []listRecord {
	t.Helper()

	align := int(r.align)
	argSize := int(unsafe.Sizeof(textureStreamArg{}))
	argSize = (argSize + align - 1) &^ (align - 1)

	var recs []listRecord
	for off := 0; off < len(data); {
		op := Opcode(binary.LittleEndian.Uint16(data[off:]))
		off += align
		rec := listRecord{op: op}

		switch op.Op() {
		case OP_SET_REG:
			rec.val = binary.LittleEndian.Uint16(data[off:])
			off += align
		case OP_TRIANGLE_STREAM:
			off += int(op.Imm())
		case OP_TEXTURE_STREAM:
			off += argSize
		case OP_NOP, OP_FRAMEBUFFER_OP:
		default:
			t.Fatalf("unknown opcode %04x at offset %d", uint16(op), off-align)
		}
		recs = append(recs, rec)
	}
	return recs
}

func TestOpcodePayloadPairing(t *testing.T) {
	r, _ := newTestRenderer(Config{DisplayListSize: 4096})

	tex := make([]uint16, 32*32)
	steps := []struct {
		call   func() error
		wantOp Opcode
	}{
		{func() error { return r.Clear(true, true) }, OP_FRAMEBUFFER_OP | FB_MEMSET | FB_COLOR | FB_DEPTH},
		{func() error { return r.SetClearColor(Color{255, 0, 0, 255}) }, OP_SET_REG | REG_COLOR_CLEAR},
		{func() error { return r.SetClearDepth(0x8000) }, OP_SET_REG | REG_DEPTH_CLEAR},
		{func() error { return r.UseTexture(tex, 32, 32) }, OP_TEXTURE_STREAM | 32},
		{func() error { return drawScreenTriangle(r) }, OP_TRIANGLE_STREAM | Opcode(r.triangleSizeAligned())},
		{func() error { return r.EnableDepthTest(true) }, OP_SET_REG | REG_CONF_1},
		{func() error { return r.SetBlendFunc(SRC_ALPHA, ONE_MINUS_SRC_ALPHA) }, OP_SET_REG | REG_CONF_2},
		{func() error { return r.Clear(false, false) }, OP_NOP},
	}

	for i, s := range steps {
		if err := s.call(); err != nil {
			t.Fatalf("%d: Got error %v from encoder call", i, err)
		}
	}

	recs := decodeFrameList(t, r, r.backList().Bytes())
	if len(recs) != len(steps) {
		t.Fatalf("Got %d records, wanted %d", len(recs), len(steps))
	}
	for i, rec := range recs {
		if rec.op != steps[i].wantOp {
			t.Errorf("%d: Got opcode %04x, wanted %04x", i, uint16(rec.op), uint16(steps[i].wantOp))
		}
	}
}

func TestRegisterSnapshot(t *testing.T) {
	r, _ := newTestRenderer(Config{DisplayListSize: 4096})

	calls := []func() error{
		func() error { return r.EnableDepthTest(true) },
		func() error { return r.SetDepthFunc(GEQUAL) },
		func() error { return r.SetDepthMask(true) },
		func() error { return r.SetColorMask(true, false, true, false) },
		func() error { return r.SetAlphaFunc(GREATER, 0x7) },
	}

	for i, call := range calls {
		if err := call(); err != nil {
			t.Fatalf("%d: Got error %v", i, err)
		}

		var last *listRecord
		recs := decodeFrameList(t, r, r.backList().Bytes())
		for j := range recs {
			if recs[j].op == OP_SET_REG|REG_CONF_1 {
				last = &recs[j]
			}
		}
		if last == nil {
			t.Fatalf("%d: No REG_CONF_1 snapshot in the back list", i)
		}
		if last.val != r.reg1.Value() {
			t.Errorf("%d: Got snapshot %016b, wanted %016b", i, last.val, r.reg1.Value())
		}
	}
}

func TestDrawTriangleListFull(t *testing.T) {
	r, _ := newTestRenderer(Config{})

	// Default 2048 byte list: opcode (4) + triangle (96) per draw.
	n := 0
	for {
		err := drawScreenTriangle(r)
		if err == ErrListFull {
			break
		}
		if err != nil {
			t.Fatalf("Got unexpected error %v", err)
		}
		n++
		if n > 100 {
			t.Fatal("list never filled")
		}
	}

	size := r.backList().Size()

	// The failed append must leave the list byte identical.
	if err := drawScreenTriangle(r); err != ErrListFull {
		t.Fatalf("Got %v on a full list, wanted ErrListFull", err)
	}
	if r.backList().Size() != size {
		t.Errorf("Got size %d after failed append, wanted %d", r.backList().Size(), size)
	}

	// The commit opcode still fits (20 triangles * 100 bytes =
	// 2000), so the frame goes out with what was accepted.
	if err := r.Commit(); err != nil {
		t.Fatalf("Got error %v from Commit, wanted success", err)
	}
	if n != 20 {
		t.Errorf("Got %d accepted triangles, wanted 20", n)
	}
}

func TestCommitOverflowDropsFrame(t *testing.T) {
	r, rec := newTestRenderer(Config{})

	// Fill the list to the byte with register writes (8 bytes each;
	// 2048/8 = 256 of them).
	for i := 0; i < 256; i++ {
		if err := r.SetClearDepth(uint16(i)); err != nil {
			t.Fatalf("%d: Got error %v while filling", i, err)
		}
	}
	if free := r.backList().FreeSpace(); free != 0 {
		t.Fatalf("Got %d bytes free, wanted 0", free)
	}

	if err := r.Commit(); err != ErrListFull {
		t.Fatalf("Got %v from overflowing Commit, wanted ErrListFull", err)
	}
	if r.backList().Size() != 0 {
		t.Errorf("Got %d bytes in back list after dropped frame, wanted 0", r.backList().Size())
	}
	if len(rec.Writes) != 0 {
		t.Errorf("Got %d bus writes from a dropped frame, wanted 0", len(rec.Writes))
	}

	// The next frame is accepted normally.
	if err := drawScreenTriangle(r); err != nil {
		t.Fatalf("Got error %v on the next frame", err)
	}
	if err := r.Commit(); err != nil {
		t.Fatalf("Got error %v committing the next frame", err)
	}
	if len(rec.Bands) == 0 {
		t.Errorf("Got no band transfers for the next frame")
	}
}

func TestUseTextureValidation(t *testing.T) {
	cases := []struct {
		w, h   int
		pixels int
		ok     bool
	}{
		{32, 32, 32 * 32, true},
		{64, 64, 64 * 64, true},
		{128, 128, 128 * 128, true},
		{256, 256, 256 * 256, true},
		{16, 16, 16 * 16, false},
		{512, 512, 512 * 512, false},
		{64, 32, 64 * 32, false},
		{0, 0, 0, false},
		{64, 64, 64, false}, // slice too short
	}

	for i, tc := range cases {
		r, _ := newTestRenderer(Config{DisplayListSize: 1 << 20})
		err := r.UseTexture(make([]uint16, tc.pixels), tc.w, tc.h)
		if ok := err == nil; ok != tc.ok {
			t.Errorf("%d: Got err=%v for %dx%d, wanted ok=%v", i, err, tc.w, tc.h, tc.ok)
		}
		if !tc.ok && r.backList().Size() != 0 {
			t.Errorf("%d: Got %d bytes appended by a rejected texture", i, r.backList().Size())
		}
	}
}

func TestSetLogicOpUnsupported(t *testing.T) {
	r, _ := newTestRenderer(Config{})

	for op := LOGIC_CLEAR; op <= LOGIC_OR_INVERTED; op++ {
		if err := r.SetLogicOp(op); err != ErrUnsupported {
			t.Errorf("Got %v for logic op %d, wanted ErrUnsupported", err, op)
		}
	}
	if r.backList().Size() != 0 {
		t.Errorf("Got %d bytes appended by SetLogicOp", r.backList().Size())
	}
}

func TestClearOpcodes(t *testing.T) {
	cases := []struct {
		color, depth bool
		want         Opcode
	}{
		{true, true, OP_FRAMEBUFFER_OP | FB_MEMSET | FB_COLOR | FB_DEPTH},
		{true, false, OP_FRAMEBUFFER_OP | FB_MEMSET | FB_COLOR},
		{false, true, OP_FRAMEBUFFER_OP | FB_MEMSET | FB_DEPTH},
		{false, false, OP_NOP},
	}

	for i, tc := range cases {
		r, _ := newTestRenderer(Config{})
		if err := r.Clear(tc.color, tc.depth); err != nil {
			t.Fatalf("%d: Got error %v", i, err)
		}
		recs := decodeFrameList(t, r, r.backList().Bytes())
		if len(recs) != 1 || recs[0].op != tc.want {
			t.Errorf("%d: Got %+v, wanted single opcode %04x", i, recs, uint16(tc.want))
		}
	}
}

func TestOutsideViewTriangleDropped(t *testing.T) {
	r, _ := newTestRenderer(Config{})

	// Fully offscreen and behind the eye: accepted, nothing
	// appended.
	offscreen := rasterizer.Vec4{5, 5, 0, 1}
	if err := r.DrawTriangle(offscreen, rasterizer.Vec4{6, 5, 0, 1}, rasterizer.Vec4{5, 6, 0, 1}, st00, st10, st01, white()); err != nil {
		t.Fatalf("Got error %v for offscreen triangle", err)
	}
	behind := rasterizer.Vec4{0, 0, 0, -1}
	if err := r.DrawTriangle(behind, behind, behind, st00, st10, st01, white()); err != nil {
		t.Fatalf("Got error %v for behind the eye triangle", err)
	}
	if r.backList().Size() != 0 {
		t.Errorf("Got %d bytes appended by dropped triangles, wanted 0", r.backList().Size())
	}
}
