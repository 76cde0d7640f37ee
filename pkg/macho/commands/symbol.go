package commands

import (
	"encoding/binary"
)

// Nlist is one symbol table entry. Value is widened to uint64 for both layouts.
type Nlist struct {
	Name  uint32
	Type  NType
	Sect  uint8
	Desc  NDesc
	Value uint64
}

// NlistSize returns the encoded size of a symbol table entry.
func NlistSize(w Width) int {
	if w == Width64 {
		return 16
	}
	return 12
}

func (n *Nlist) Decode(b []byte, o binary.ByteOrder, w Width) {
	mustLen(b, NlistSize(w), "nlist")
	c := NewCursor(b, o)
	n.Name = c.U32()
	n.Type = NType(c.U8())
	n.Sect = c.U8()
	n.Desc = NDesc(c.U16())
	n.Value = c.Word(w)
}

func (n Nlist) Encode(o binary.ByteOrder, w Width) []byte {
	e := NewEncoder(o, NlistSize(w))
	e.U32(n.Name)
	e.U8(uint8(n.Type))
	e.U8(n.Sect)
	e.U16(uint16(n.Desc))
	e.Word(w, n.Value)
	return e.Bytes()
}

// NType is the n_type field of a symbol table entry.
type NType uint8

const (
	N_STAB NType = 0xe0 /* if any of these bits set, a symbolic debugging entry */
	N_PEXT NType = 0x10 /* private external symbol bit */
	N_TYPE NType = 0x0e /* mask for the type bits */
	N_EXT  NType = 0x01 /* external symbol bit, set for external symbols */
)

/*
 * Values for N_TYPE bits of the n_type field.
 */
const (
	N_UNDF NType = 0x0 /* undefined, n_sect == NO_SECT */
	N_ABS  NType = 0x2 /* absolute, n_sect == NO_SECT */
	N_SECT NType = 0xe /* defined in section number n_sect */
	N_PBUD NType = 0xc /* prebound undefined (defined in a dylib) */
	N_INDR NType = 0xa /* indirect */
)

func (t NType) Kind() NType    { return t & N_TYPE }
func (t NType) External() bool { return t&N_EXT != 0 }
func (t NType) Debug() bool    { return t&N_STAB != 0 }

// NDesc is the n_desc field of a symbol table entry.
type NDesc uint16

const (
	N_ARM_THUMB_DEF   NDesc = 0x0008 /* symbol is a Thumb function (ARM) */
	N_NO_DEAD_STRIP   NDesc = 0x0020
	N_WEAK_REF        NDesc = 0x0040 /* symbol is weak referenced */
	N_WEAK_DEF        NDesc = 0x0080 /* coalesced symbol is a weak definition */
	N_SYMBOL_RESOLVER NDesc = 0x0100
)

func (d NDesc) Weak() bool     { return d&(N_WEAK_REF|N_WEAK_DEF) != 0 }
func (d NDesc) Thumb() bool    { return d&N_ARM_THUMB_DEF != 0 }
func (d NDesc) Resolver() bool { return d&N_SYMBOL_RESOLVER != 0 }

// MaxIndirectName is the largest string table offset an N_INDR value may hold.
const MaxIndirectName = 0xFFFFFFFE
