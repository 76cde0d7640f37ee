// Package exec defines the container-neutral model shared by executable
// container parsers: architectures, protections, segments, symbols and the
// prober registry used to recognise and open a buffer.
package exec

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/blacktop/machorw/pkg/buffer"
)

// Arch is a normalised CPU architecture.
type Arch int

const (
	ArchUnknown Arch = iota
	ArchX86
	ArchX86_64
	ArchARM
	ArchAArch64
	ArchPowerPC
	ArchPowerPC64
)

var archNames = [...]string{
	ArchUnknown:   "unknown",
	ArchX86:       "x86",
	ArchX86_64:    "x86_64",
	ArchARM:       "arm",
	ArchAArch64:   "aarch64",
	ArchPowerPC:   "powerpc",
	ArchPowerPC64: "powerpc64",
}

func (a Arch) String() string {
	if a >= 0 && int(a) < len(archNames) {
		return archNames[a]
	}
	return fmt.Sprintf("Arch(%d)", int(a))
}

// Prot is a read/write/execute protection triple.
type Prot struct {
	R, W, X bool
}

func (p Prot) String() string {
	b := []byte("---")
	if p.R {
		b[0] = 'r'
	}
	if p.W {
		b[1] = 'w'
	}
	if p.X {
		b[2] = 'x'
	}
	return string(b)
}

// Origin records which load command (and which slot within it) a segment or
// section was decoded from.
type Origin struct {
	Cmd  int
	Slot int
}

// NoOrigin marks entries created by the caller rather than parsed.
var NoOrigin = Origin{Cmd: -1, Slot: -1}

// Valid reports whether the origin refers to a parsed command.
func (o Origin) Valid() bool { return o.Cmd >= 0 }

// Segment describes both segments and sections. Sections carry the index of
// their owning segment in SegIdx; segments have SegIdx == -1.
type Segment struct {
	Name     string
	VMAddr   uint64
	VMSize   uint64
	FileOff  uint64
	FileSize uint64
	Prot     Prot
	SegIdx   int
	Origin   Origin
}

// NewSegment returns a caller-created segment with no parse origin.
func NewSegment(name string, vmaddr, vmsize, fileoff, filesize uint64, prot Prot) Segment {
	return Segment{
		Name:     name,
		VMAddr:   vmaddr,
		VMSize:   vmsize,
		FileOff:  fileoff,
		FileSize: filesize,
		Prot:     prot,
		SegIdx:   -1,
		Origin:   NoOrigin,
	}
}

// SymbolKind classifies a SymbolValue.
type SymbolKind int

const (
	SymAddr SymbolKind = iota
	SymUndefined
	SymReExport
	SymResolver
)

func (k SymbolKind) String() string {
	switch k {
	case SymAddr:
		return "addr"
	case SymUndefined:
		return "undefined"
	case SymReExport:
		return "reexport"
	case SymResolver:
		return "resolver"
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// SymbolValue is what a symbol resolves to. Target is only set for
// re-exports and names the symbol being re-exported.
type SymbolValue struct {
	Kind   SymbolKind
	Addr   uint64
	Target string
}

func (v SymbolValue) String() string {
	switch v.Kind {
	case SymAddr:
		return fmt.Sprintf("%#x", v.Addr)
	case SymResolver:
		return fmt.Sprintf("resolver(%#x)", v.Addr)
	case SymReExport:
		return "-> " + v.Target
	default:
		return "undefined"
	}
}

// Symbol is a decoded symbol table entry.
type Symbol struct {
	Name   string
	Public bool
	Weak   bool
	Value  SymbolValue
	Index  int
}

// SymbolSource selects which symbols to list.
type SymbolSource int

const (
	SourceAll SymbolSource = iota
	SourceImported
	SourceExported
)

// Base is the container-neutral view of an opened executable.
type Base struct {
	Arch     Arch
	Endian   binary.ByteOrder
	Segments []Segment
	Sections []Segment
	Buf      buffer.Region
}

// Exec is implemented by every container a prober can open.
type Exec interface {
	ExecBase() *Base
	Symbols(src SymbolSource) (iter.Seq[Symbol], error)
}
