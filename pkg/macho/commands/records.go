package commands

import (
	"encoding/binary"

	"github.com/blacktop/go-macho/types"
)

// LoadCmdHeader is the (cmd, cmdsize) prefix every load command starts with.
type LoadCmdHeader struct {
	Cmd types.LoadCmd
	Len uint32
}

const LoadCmdHeaderSize = 8

func (h *LoadCmdHeader) Decode(b []byte, o binary.ByteOrder) {
	mustLen(b, LoadCmdHeaderSize, "load command header")
	c := NewCursor(b, o)
	h.Cmd = types.LoadCmd(c.U32())
	h.Len = c.U32()
}

func (h LoadCmdHeader) Encode(o binary.ByteOrder) []byte {
	e := NewEncoder(o, LoadCmdHeaderSize)
	e.U32(uint32(h.Cmd))
	e.U32(h.Len)
	return e.Bytes()
}

// MachHeader is the fixed part of the Mach-O header. 64-bit headers are
// followed by a reserved word that is not part of this record.
type MachHeader struct {
	Magic  types.Magic
	CPU    types.CPU
	SubCPU types.CPUSubtype
	Type   types.HeaderFileType
	NCmd   uint32
	SizeOf uint32
	Flags  types.HeaderFlag
}

const MachHeaderSize = types.FileHeaderSize32

func (h *MachHeader) Decode(b []byte, o binary.ByteOrder) {
	mustLen(b, MachHeaderSize, "mach header")
	c := NewCursor(b, o)
	h.Magic = types.Magic(c.U32())
	h.CPU = types.CPU(c.U32())
	h.SubCPU = types.CPUSubtype(c.U32())
	h.Type = types.HeaderFileType(c.U32())
	h.NCmd = c.U32()
	h.SizeOf = c.U32()
	h.Flags = types.HeaderFlag(c.U32())
}

func (h MachHeader) Encode(o binary.ByteOrder) []byte {
	e := NewEncoder(o, MachHeaderSize)
	e.U32(uint32(h.Magic))
	e.U32(uint32(h.CPU))
	e.U32(uint32(h.SubCPU))
	e.U32(uint32(h.Type))
	e.U32(h.NCmd)
	e.U32(h.SizeOf)
	e.U32(uint32(h.Flags))
	return e.Bytes()
}

// SegmentCmd is LC_SEGMENT or LC_SEGMENT_64 without its trailing sections.
// Word-sized fields are widened to uint64 for both layouts.
type SegmentCmd struct {
	LoadCmdHeader
	Name    [NameSize]byte
	Addr    uint64
	Memsz   uint64
	Offset  uint64
	Filesz  uint64
	Maxprot types.VmProtection
	Prot    types.VmProtection
	Nsect   uint32
	Flag    uint32
}

// SegmentCmdSize returns the encoded size of a segment command header.
func SegmentCmdSize(w Width) int {
	if w == Width64 {
		return 72
	}
	return 56
}

func (s *SegmentCmd) Decode(b []byte, o binary.ByteOrder, w Width) {
	mustLen(b, SegmentCmdSize(w), "segment command")
	c := NewCursor(b, o)
	s.Cmd = types.LoadCmd(c.U32())
	s.Len = c.U32()
	s.Name = c.Name()
	s.Addr = c.Word(w)
	s.Memsz = c.Word(w)
	s.Offset = c.Word(w)
	s.Filesz = c.Word(w)
	s.Maxprot = types.VmProtection(c.U32())
	s.Prot = types.VmProtection(c.U32())
	s.Nsect = c.U32()
	s.Flag = c.U32()
}

func (s SegmentCmd) Encode(o binary.ByteOrder, w Width) []byte {
	e := NewEncoder(o, SegmentCmdSize(w))
	e.U32(uint32(s.Cmd))
	e.U32(s.Len)
	e.Name(s.Name)
	e.Word(w, s.Addr)
	e.Word(w, s.Memsz)
	e.Word(w, s.Offset)
	e.Word(w, s.Filesz)
	e.U32(uint32(s.Maxprot))
	e.U32(uint32(s.Prot))
	e.U32(s.Nsect)
	e.U32(s.Flag)
	return e.Bytes()
}

// SectionHdr is one section entry trailing a segment command.
type SectionHdr struct {
	Name      [NameSize]byte
	Seg       [NameSize]byte
	Addr      uint64
	Size      uint64
	Offset    uint32
	Align     uint32
	Reloff    uint32
	Nreloc    uint32
	Flags     uint32
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32 // 64-bit only
}

// SectionHdrSize returns the encoded size of a section entry.
func SectionHdrSize(w Width) int {
	if w == Width64 {
		return 80
	}
	return 68
}

func (s *SectionHdr) Decode(b []byte, o binary.ByteOrder, w Width) {
	mustLen(b, SectionHdrSize(w), "section")
	c := NewCursor(b, o)
	s.Name = c.Name()
	s.Seg = c.Name()
	s.Addr = c.Word(w)
	s.Size = c.Word(w)
	s.Offset = c.U32()
	s.Align = c.U32()
	s.Reloff = c.U32()
	s.Nreloc = c.U32()
	s.Flags = c.U32()
	s.Reserved1 = c.U32()
	s.Reserved2 = c.U32()
	if w == Width64 {
		s.Reserved3 = c.U32()
	} else {
		s.Reserved3 = 0
	}
}

func (s SectionHdr) Encode(o binary.ByteOrder, w Width) []byte {
	e := NewEncoder(o, SectionHdrSize(w))
	e.Name(s.Name)
	e.Name(s.Seg)
	e.Word(w, s.Addr)
	e.Word(w, s.Size)
	e.U32(s.Offset)
	e.U32(s.Align)
	e.U32(s.Reloff)
	e.U32(s.Nreloc)
	e.U32(s.Flags)
	e.U32(s.Reserved1)
	e.U32(s.Reserved2)
	if w == Width64 {
		e.U32(s.Reserved3)
	}
	return e.Bytes()
}

// SymtabCmd is LC_SYMTAB.
type SymtabCmd struct {
	LoadCmdHeader
	Symoff  uint32
	Nsyms   uint32
	Stroff  uint32
	Strsize uint32
}

const SymtabCmdSize = 24

func (s *SymtabCmd) Decode(b []byte, o binary.ByteOrder) {
	mustLen(b, SymtabCmdSize, "symtab command")
	c := NewCursor(b, o)
	s.Cmd = types.LoadCmd(c.U32())
	s.Len = c.U32()
	s.Symoff = c.U32()
	s.Nsyms = c.U32()
	s.Stroff = c.U32()
	s.Strsize = c.U32()
}

func (s SymtabCmd) Encode(o binary.ByteOrder) []byte {
	e := NewEncoder(o, SymtabCmdSize)
	e.U32(uint32(s.Cmd))
	e.U32(s.Len)
	e.U32(s.Symoff)
	e.U32(s.Nsyms)
	e.U32(s.Stroff)
	e.U32(s.Strsize)
	return e.Bytes()
}

// DysymtabCmd is LC_DYSYMTAB.
type DysymtabCmd struct {
	LoadCmdHeader
	Ilocalsym      uint32
	Nlocalsym      uint32
	Iextdefsym     uint32
	Nextdefsym     uint32
	Iundefsym      uint32
	Nundefsym      uint32
	Tocoffset      uint32
	Ntoc           uint32
	Modtaboff      uint32
	Nmodtab        uint32
	Extrefsymoff   uint32
	Nextrefsyms    uint32
	Indirectsymoff uint32
	Nindirectsyms  uint32
	Extreloff      uint32
	Nextrel        uint32
	Locreloff      uint32
	Nlocrel        uint32
}

const DysymtabCmdSize = 80

func (d *DysymtabCmd) fields() []*uint32 {
	return []*uint32{
		&d.Ilocalsym, &d.Nlocalsym, &d.Iextdefsym, &d.Nextdefsym, &d.Iundefsym, &d.Nundefsym,
		&d.Tocoffset, &d.Ntoc, &d.Modtaboff, &d.Nmodtab, &d.Extrefsymoff, &d.Nextrefsyms,
		&d.Indirectsymoff, &d.Nindirectsyms, &d.Extreloff, &d.Nextrel, &d.Locreloff, &d.Nlocrel,
	}
}

func (d *DysymtabCmd) Decode(b []byte, o binary.ByteOrder) {
	mustLen(b, DysymtabCmdSize, "dysymtab command")
	c := NewCursor(b, o)
	d.Cmd = types.LoadCmd(c.U32())
	d.Len = c.U32()
	for _, f := range d.fields() {
		*f = c.U32()
	}
}

func (d DysymtabCmd) Encode(o binary.ByteOrder) []byte {
	e := NewEncoder(o, DysymtabCmdSize)
	e.U32(uint32(d.Cmd))
	e.U32(d.Len)
	for _, f := range d.fields() {
		e.U32(*f)
	}
	return e.Bytes()
}

// DyldInfoCmd is LC_DYLD_INFO or LC_DYLD_INFO_ONLY.
type DyldInfoCmd struct {
	LoadCmdHeader
	RebaseOff    uint32
	RebaseSize   uint32
	BindOff      uint32
	BindSize     uint32
	WeakBindOff  uint32
	WeakBindSize uint32
	LazyBindOff  uint32
	LazyBindSize uint32
	ExportOff    uint32
	ExportSize   uint32
}

const DyldInfoCmdSize = 48

func (d *DyldInfoCmd) fields() []*uint32 {
	return []*uint32{
		&d.RebaseOff, &d.RebaseSize, &d.BindOff, &d.BindSize, &d.WeakBindOff,
		&d.WeakBindSize, &d.LazyBindOff, &d.LazyBindSize, &d.ExportOff, &d.ExportSize,
	}
}

func (d *DyldInfoCmd) Decode(b []byte, o binary.ByteOrder) {
	mustLen(b, DyldInfoCmdSize, "dyld info command")
	c := NewCursor(b, o)
	d.Cmd = types.LoadCmd(c.U32())
	d.Len = c.U32()
	for _, f := range d.fields() {
		*f = c.U32()
	}
}

func (d DyldInfoCmd) Encode(o binary.ByteOrder) []byte {
	e := NewEncoder(o, DyldInfoCmdSize)
	e.U32(uint32(d.Cmd))
	e.U32(d.Len)
	for _, f := range d.fields() {
		e.U32(*f)
	}
	return e.Bytes()
}

// Auxiliary dylib table entry sizes referenced by LC_DYSYMTAB.
const (
	TOCEntrySize       = 8
	ReferenceEntrySize = 4
	IndirectEntrySize  = 4
)

// ModuleEntrySize is the size of a dylib module table entry.
func ModuleEntrySize(w Width) int {
	if w == Width64 {
		return 56
	}
	return 52
}
