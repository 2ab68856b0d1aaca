package renderer

import (
	"encoding/binary"

	"github.com/zjarci/rastericer/displaylist"
	"github.com/zjarci/rastericer/rasterizer"
)

// UploadDisplayList executes one step of the transfer state machine:
// at most one bus write (a band sub list or one texture chunk) per
// call. It returns true while an upload is still in progress and false
// once the device is idle. DrawTriangle, UseTexture and Commit call it
// internally, so a steadily drawing application never has to.
//
// The front list is replayed once per band, counting the band index
// down from DisplayLines-1 to 0. For every pass the triangles that do
// not intersect the band are filtered out, so the device only ever
// sees work for the band its framebuffer currently holds.
func (r *Renderer) UploadDisplayList() bool {
	if !r.bus.ClearToSend() {
		return true
	}

	fl := r.frontList()
	if fl.State() == displaylist.FREE || fl.Size() == 0 {
		return false
	}
	if fl.State() == displaylist.QUEUED {
		r.uploadIndexPosition = r.conf.DisplayLines - 1
		fl.Transfer()
	}

	// A texture upload in flight owns the bus until it drains.
	if r.cursor.remaining() > 0 {
		r.pushTextureChunk()
		return true
	}

	r.fillUploadList(fl)

	r.bus.StartColorBufferTransfer(r.uploadIndexPosition)
	r.bus.WriteData(r.uploadList.Bytes())

	if fl.AtEnd() {
		fl.ResetRead()
		if r.uploadIndexPosition == 0 {
			// Frame fully emitted; release the list and its
			// borrowed textures.
			fl.Clear()
			r.textures[r.front] = r.textures[r.front][:0]
			return false
		}
		r.uploadIndexPosition--
	}
	return true
}

// fillUploadList assembles one band sub list: opcodes are copied from
// the front list until it ends, the upload list cannot take another
// opcode plus triangle, or a texture command needs the bus for raw
// pixel chunks.
func (r *Renderer) fillUploadList(fl *displaylist.List) {
	r.uploadList.Clear()

	minSpace := r.opcodeSizeAligned() + r.triangleSizeAligned()
	bandStart := r.uploadIndexPosition * r.conf.LineResolution
	bandEnd := bandStart + r.conf.LineResolution

	leaveLoop := false
	for !leaveLoop && !fl.AtEnd() && r.uploadList.FreeSpace() >= minSpace {
		op := displaylist.Next[Opcode](fl)
		out := displaylist.Alloc[Opcode](r.uploadList)
		*out = *op

		switch op.Op() {
		case OP_TRIANGLE_STREAM:
			in := displaylist.Next[rasterizer.Triangle](fl)
			dst := displaylist.Alloc[rasterizer.Triangle](r.uploadList)
			if !rasterizer.CalcLineIncrement(dst, in, bandStart, bandEnd) {
				// No pixels in this band; nothing goes out.
				displaylist.Remove[rasterizer.Triangle](r.uploadList)
				displaylist.Remove[Opcode](r.uploadList)
			}

		case OP_FRAMEBUFFER_OP, OP_NOP:
			// No payload.

		case OP_TEXTURE_STREAM:
			arg := *displaylist.Next[textureStreamArg](fl)
			leaveLoop = r.streamTexture(arg)

		case OP_SET_REG:
			val := displaylist.Next[uint16](fl)
			dst := displaylist.Alloc[uint16](r.uploadList)
			*dst = *val

		default:
			// Unknown opcode class; elide it from the stream.
			displaylist.Remove[Opcode](r.uploadList)
		}
	}
}

// streamTexture handles one TEXTURE_STREAM record during list fill.
//
// If the named pixel buffer is the one the cursor just finished
// uploading, the device already holds it: the opcode is dropped and the
// walk continues. This both collapses back to back UseTexture calls
// with the same pixels and keeps a texture from being re-sent on every
// band pass. Otherwise the cursor is armed and the fill loop stops so
// the raw chunks can follow the opcode on the bus.
func (r *Renderer) streamTexture(arg textureStreamArg) (leaveLoop bool) {
	pixels := r.textures[r.front][arg.texID]

	if samePixels(pixels, r.cursor.pixels) && r.cursor.remaining() == 0 {
		displaylist.Remove[Opcode](r.uploadList)
		return false
	}

	r.cursor = texCursor{pixels: pixels}
	return true
}

// samePixels reports whether two slices name the same pixel storage.
func samePixels(a, b []uint16) bool {
	return len(a) > 0 && len(b) == len(a) && &a[0] == &b[0]
}

// pushTextureChunk writes exactly one hardware buffer's worth of the in
// flight texture. Supported texture sizes are all multiples of the
// chunk size (32*32*2 = 2048 bytes is the smallest), so no short chunk
// exists.
func (r *Renderer) pushTextureChunk() {
	const chunkPixels = HARDWARE_BUFFER_SIZE / 2

	px := r.cursor.pixels[r.cursor.pos : r.cursor.pos+chunkPixels]
	for i, p := range px {
		binary.LittleEndian.PutUint16(r.chunk[2*i:], p)
	}
	r.cursor.pos += chunkPixels

	r.bus.WriteData(r.chunk[:])
}

// Commit finishes the frame being built and starts streaming it.
//
// The commit opcode must fit: a frame the device never sees the end of
// would slip every following frame down by the missing bands. When the
// back list cannot take it the whole frame is dropped instead, the list
// cleared, and ErrListFull returned; the next frame starts clean.
//
// Commit blocks until the previous frame's transfer has drained (the
// device's band buffer cannot hold two frames), then swaps the lists
// and kicks the new transfer.
func (r *Renderer) Commit() error {
	bl := r.backList()

	op := displaylist.Alloc[Opcode](bl)
	if op == nil {
		bl.Clear()
		r.textures[r.back] = r.textures[r.back][:0]
		return ErrListFull
	}
	*op = OP_FRAMEBUFFER_OP | FB_COMMIT | FB_COLOR

	for r.UploadDisplayList() {
	}

	bl.Enqueue()
	r.front, r.back = r.back, r.front
	r.UploadDisplayList()
	return nil
}
