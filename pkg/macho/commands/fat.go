package commands

import (
	"encoding/binary"

	"github.com/blacktop/go-macho/types"
)

// Fat headers and arch entries are always big-endian.
var FatOrder = binary.BigEndian

// FatHeader starts a universal (fat) file.
type FatHeader struct {
	Magic types.Magic
	NArch uint32
}

const FatHeaderSize = 8

func (h *FatHeader) Decode(b []byte) {
	mustLen(b, FatHeaderSize, "fat header")
	c := NewCursor(b, FatOrder)
	h.Magic = types.Magic(c.U32())
	h.NArch = c.U32()
}

func (h FatHeader) Encode() []byte {
	e := NewEncoder(FatOrder, FatHeaderSize)
	e.U32(uint32(h.Magic))
	e.U32(h.NArch)
	return e.Bytes()
}

// FatArch describes one slice of a fat file.
type FatArch struct {
	CPU    types.CPU
	SubCPU types.CPUSubtype
	Offset uint32
	Size   uint32
	Align  uint32
}

const FatArchSize = 20

func (a *FatArch) Decode(b []byte) {
	mustLen(b, FatArchSize, "fat arch")
	c := NewCursor(b, FatOrder)
	a.CPU = types.CPU(c.U32())
	a.SubCPU = types.CPUSubtype(c.U32())
	a.Offset = c.U32()
	a.Size = c.U32()
	a.Align = c.U32()
}

func (a FatArch) Encode() []byte {
	e := NewEncoder(FatOrder, FatArchSize)
	e.U32(uint32(a.CPU))
	e.U32(uint32(a.SubCPU))
	e.U32(a.Offset)
	e.U32(a.Size)
	e.U32(a.Align)
	return e.Bytes()
}
