// Package commands holds the fixed-layout Mach-O records and their explicit
// field-by-field codec. Every record decodes from, and encodes to, exactly
// Size(width) bytes in a caller-chosen byte order.
package commands

import (
	"bytes"
	"encoding/binary"

	"github.com/blacktop/machorw/pkg/exec"
)

// Width is the word width of a container, 32 or 64 bits.
type Width int

const (
	Width32 Width = 32
	Width64 Width = 64
)

func (w Width) String() string {
	if w == Width64 {
		return "64-bit"
	}
	return "32-bit"
}

// MaxWord is the largest value a word of this width can hold.
func (w Width) MaxWord() uint64 {
	if w == Width64 {
		return ^uint64(0)
	}
	return uint64(^uint32(0))
}

// NameSize is the length of the fixed segment/section name fields.
const NameSize = 16

// Cursor decodes scalar fields from a byte slice in order.
type Cursor struct {
	b   []byte
	o   binary.ByteOrder
	off int
}

// NewCursor returns a cursor positioned at the start of b.
func NewCursor(b []byte, o binary.ByteOrder) *Cursor {
	return &Cursor{b: b, o: o}
}

func (c *Cursor) U8() uint8 {
	v := c.b[c.off]
	c.off++
	return v
}

func (c *Cursor) U16() uint16 {
	v := c.o.Uint16(c.b[c.off:])
	c.off += 2
	return v
}

func (c *Cursor) U32() uint32 {
	v := c.o.Uint32(c.b[c.off:])
	c.off += 4
	return v
}

func (c *Cursor) U64() uint64 {
	v := c.o.Uint64(c.b[c.off:])
	c.off += 8
	return v
}

// Word reads a 4 or 8 byte value depending on w.
func (c *Cursor) Word(w Width) uint64 {
	if w == Width64 {
		return c.U64()
	}
	return uint64(c.U32())
}

// Name reads a 16-byte name field. Name bytes are never byte-swapped.
func (c *Cursor) Name() [NameSize]byte {
	var n [NameSize]byte
	copy(n[:], c.b[c.off:c.off+NameSize])
	c.off += NameSize
	return n
}

// Encoder appends scalar fields to a byte slice in order.
type Encoder struct {
	buf     []byte
	o       binary.ByteOrder
	scratch [8]byte
}

// NewEncoder returns an encoder with room for size bytes.
func NewEncoder(o binary.ByteOrder, size int) *Encoder {
	return &Encoder{buf: make([]byte, 0, size), o: o}
}

func (e *Encoder) U8(v uint8) { e.buf = append(e.buf, v) }

func (e *Encoder) U16(v uint16) {
	e.o.PutUint16(e.scratch[:2], v)
	e.buf = append(e.buf, e.scratch[:2]...)
}

func (e *Encoder) U32(v uint32) {
	e.o.PutUint32(e.scratch[:4], v)
	e.buf = append(e.buf, e.scratch[:4]...)
}

func (e *Encoder) U64(v uint64) {
	e.o.PutUint64(e.scratch[:8], v)
	e.buf = append(e.buf, e.scratch[:8]...)
}

// Word writes v as 4 or 8 bytes depending on w. Callers check that v fits.
func (e *Encoder) Word(w Width, v uint64) {
	if w == Width64 {
		e.U64(v)
		return
	}
	e.U32(uint32(v))
}

func (e *Encoder) Name(n [NameSize]byte) { e.buf = append(e.buf, n[:]...) }

// Bytes returns everything written so far.
func (e *Encoder) Bytes() []byte { return e.buf }

// NameString returns the name up to its first NUL.
func NameString(n [NameSize]byte) string {
	if i := bytes.IndexByte(n[:], 0); i >= 0 {
		return string(n[:i])
	}
	return string(n[:])
}

// PutName stores s in a name field. It reports false when s did not fit and
// was cut to NameSize-1 bytes plus a terminator.
func PutName(s string) ([NameSize]byte, bool) {
	var n [NameSize]byte
	if len(s) > NameSize {
		copy(n[:NameSize-1], s)
		return n, false
	}
	copy(n[:], s)
	return n, true
}

// mustLen guards every Decode: callers pre-validate lengths, so a mismatch is
// a bug in the caller rather than bad input.
func mustLen(b []byte, want int, what string) {
	exec.Invariant(len(b) == want, "%s: decode %d bytes, record is %d", what, len(b), want)
}
