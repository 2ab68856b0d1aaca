// Package displaylist implements the byte arena that holds one frame's
// worth of opcodes and payloads for the rasterizer hardware. Records are
// placed back to back at bus-aligned offsets and read back sequentially,
// possibly several times (once per display band).
package displaylist

import (
	"fmt"
	"unsafe"
)

// List transfer states. A list is FREE while the host appends commands
// to it, QUEUED once committed, and TRANSFERRING while the band walker
// replays it to the device.
type State uint8

const (
	FREE State = iota
	QUEUED
	TRANSFERRING
)

type List struct {
	storage  []byte
	writePos uint32
	readPos  uint32
	state    State
	align    uint32
}

// New returns a list with the given capacity in bytes. Records are
// aligned to align bytes (the bus width in bytes); align must be a
// power of two.
func New(capacity, align uint32) *List {
	if align == 0 || align&(align-1) != 0 {
		panic(fmt.Sprintf("displaylist: alignment %d is not a power of two", align))
	}
	return &List{
		storage: make([]byte, capacity),
		align:   align,
	}
}

// sizeAligned is the arena footprint of a T: its size rounded up to the
// list's alignment.
func sizeAligned[T any](l *List) uint32 {
	var t T
	return (uint32(unsafe.Sizeof(t)) + l.align - 1) &^ (l.align - 1)
}

// Alloc reserves space for one T at the write position and returns a
// pointer into the arena, or nil if the list is full. The returned
// memory is zeroed only if the arena hasn't been written at that offset
// before; callers always assign the full record.
func Alloc[T any](l *List) *T {
	n := sizeAligned[T](l)
	if l.writePos+n > uint32(len(l.storage)) {
		return nil
	}
	p := (*T)(unsafe.Pointer(&l.storage[l.writePos]))
	l.writePos += n
	return p
}

// Remove rolls the write position back by one T. Only valid directly
// after an Alloc of the same type; the arena supports exactly one level
// of LIFO rollback, which is all the encoder needs to keep opcode and
// payload appends atomic.
func Remove[T any](l *List) {
	n := sizeAligned[T](l)
	if n > l.writePos {
		panic("displaylist: Remove past start of list")
	}
	l.writePos -= n
}

// Next returns a view of the record at the read position and advances
// past it, or nil once fewer than one T remains unread.
func Next[T any](l *List) *T {
	n := sizeAligned[T](l)
	if l.readPos+n > l.writePos {
		return nil
	}
	p := (*T)(unsafe.Pointer(&l.storage[l.readPos]))
	l.readPos += n
	return p
}

// ResetRead rewinds the read position so the list can be replayed for
// the next band.
func (l *List) ResetRead() {
	l.readPos = 0
}

func (l *List) AtEnd() bool {
	return l.readPos == l.writePos
}

// Clear empties the list and returns it to FREE.
func (l *List) Clear() {
	l.readPos = 0
	l.writePos = 0
	l.state = FREE
}

// Enqueue marks a FREE list as ready for transfer.
func (l *List) Enqueue() {
	if l.state != FREE {
		panic("displaylist: Enqueue on non-FREE list")
	}
	l.state = QUEUED
}

// Transfer marks a QUEUED list as being streamed to the device.
func (l *List) Transfer() {
	if l.state != QUEUED {
		panic("displaylist: Transfer on non-QUEUED list")
	}
	l.state = TRANSFERRING
}

func (l *List) State() State {
	return l.state
}

func (l *List) FreeSpace() uint32 {
	return uint32(len(l.storage)) - l.writePos
}

func (l *List) Size() uint32 {
	return l.writePos
}

// Bytes returns the written portion of the arena, the exact byte
// sequence the device consumes.
func (l *List) Bytes() []byte {
	return l.storage[:l.writePos]
}
