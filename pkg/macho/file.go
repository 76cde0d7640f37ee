// Package macho parses thin and universal Mach-O containers from untrusted
// bytes into an editable model and regenerates their load command area.
package macho

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machorw/pkg/buffer"
	"github.com/blacktop/machorw/pkg/exec"
	"github.com/blacktop/machorw/pkg/macho/commands"
	"github.com/blacktop/machorw/pkg/macho/header"
)

// A Header is the decoded thin Mach-O header.
type Header struct {
	commands.MachHeader
	Offset int
	Width  commands.Width
	Order  binary.ByteOrder
}

// A Load is one load command exactly as it appears in the file.
type Load struct {
	Cmd types.LoadCmd
	Raw buffer.Region
}

// Bytes returns the raw command including its (cmd, cmdsize) prefix.
func (l Load) Bytes() []byte { return l.Raw.Bytes() }

// A Subrange is a (start, count) window into the symbol table.
type Subrange struct {
	Start uint32
	Count uint32
}

// A RelocRange is a relocation table location. Entries are not decoded.
type RelocRange struct {
	Off   uint32
	Count uint32
}

// DyldInfo holds the opaque dynamic linker info blobs.
type DyldInfo struct {
	// Cmd is LC_DYLD_INFO or LC_DYLD_INFO_ONLY, or zero if the file has neither.
	Cmd      types.LoadCmd
	Rebase   buffer.Region
	Bind     buffer.Region
	WeakBind buffer.Region
	LazyBind buffer.Region
	Export   buffer.Region
}

// Symtab holds the flat symbol and string tables.
type Symtab struct {
	Syms buffer.Region
	Strs buffer.Region
}

// Dysymtab holds the symbol subranges and the dylib auxiliary tables.
type Dysymtab struct {
	Local        Subrange
	ExtDef       Subrange
	Undef        Subrange
	TOC          buffer.Region
	ModTab       buffer.Region
	ExtRefSyms   buffer.Region
	IndirectSyms buffer.Region
	ExtRel       RelocRange
	LocRel       RelocRange
}

// A File is a parsed thin Mach-O container.
type File struct {
	exec.Base
	Header   Header
	Loads    []Load
	DyldInfo DyldInfo
	Symtab   Symtab
	Dysymtab Dysymtab

	cmdStart int
	layout   Allocation
	shared   *sharedTables
	warn     *Warnings
}

// Options control NewFile.
type Options struct {
	// HeaderOffset is where the Mach-O header starts inside the buffer.
	HeaderOffset int
	// SkipLoadCommands parses the header only.
	SkipLoadCommands bool
	// Warnings receives every tolerated anomaly; nil logs them only.
	Warnings *Warnings
}

// NewFile parses buf as a thin Mach-O container.
func NewFile(buf buffer.Region, opts *Options) (*File, error) {
	if opts == nil {
		opts = &Options{}
	}
	f := &File{
		Base: exec.Base{Buf: buf},
		warn: opts.Warnings,
		layout: Allocation{
			Offsets: make(map[AllocKey]uint64),
		},
	}
	if err := f.parseHeader(opts.HeaderOffset); err != nil {
		return nil, err
	}
	if opts.SkipLoadCommands {
		return f, nil
	}
	if err := f.loadCommands(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) parseHeader(off int) error {
	data := f.Buf.Bytes()
	if off < 0 || off > len(data) || len(data)-off < 4 {
		return &exec.FormatError{Kind: exec.ErrTruncated, Off: int64(off), Msg: "buffer too small for a Mach-O magic"}
	}
	kind, ok := header.Identify(data[off:])
	if !ok {
		return &exec.FormatError{Kind: exec.ErrBadFormat, Off: int64(off), Msg: "invalid magic number", Val: fmt.Sprintf("%#08x", binary.BigEndian.Uint32(data[off:]))}
	}
	if off > math.MaxInt-commands.MachHeaderSize || off+commands.MachHeaderSize > len(data) {
		return &exec.FormatError{Kind: exec.ErrTruncated, Off: int64(off), Msg: "Mach-O header extends past end of buffer"}
	}

	f.Header = Header{Offset: off, Width: kind.Width, Order: kind.Order}
	f.Header.Decode(data[off:off+commands.MachHeaderSize], kind.Order)
	f.cmdStart = off + header.Size(kind.Width)

	f.Arch = header.Normalize(f.Header.CPU)
	f.Endian = kind.Order
	return nil
}

// CommandsStart is the buffer offset of the first load command.
func (f *File) CommandsStart() int { return f.cmdStart }

// ArchName is the short architecture name used by fat selection.
func (f *File) ArchName() string {
	return header.DescribeOrUnknown(f.Header.CPU, f.Header.SubCPU)
}

// Desc describes the container, e.g. "Mach-O dylib/arm64".
func (f *File) Desc() string {
	return fmt.Sprintf("Mach-O %s/%s", header.FileType(f.Header.Type), f.ArchName())
}

// ExecBase implements exec.Exec.
func (f *File) ExecBase() *exec.Base { return &f.Base }

// Warnings returns the sink the file reports to.
func (f *File) Warnings() *Warnings { return f.warn }

// SectionsOf returns the indices into Sections of the sections owned by
// segment segIdx, in order.
func (f *File) SectionsOf(segIdx int) []int {
	var idx []int
	for i, s := range f.Sections {
		if s.SegIdx == segIdx {
			idx = append(idx, i)
		}
	}
	return idx
}

// Segment returns the first segment with the given name.
func (f *File) Segment(name string) (int, bool) {
	for i, s := range f.Segments {
		if s.Name == name {
			return i, true
		}
	}
	return 0, false
}

// AddSegment appends a caller-created segment. It is emitted after the
// existing segment commands on rewrite.
func (f *File) AddSegment(s exec.Segment) int {
	s.SegIdx = -1
	s.Origin = exec.NoOrigin
	f.Segments = append(f.Segments, s)
	return len(f.Segments) - 1
}

// AddSection adds a caller-created section after the last section of
// segment segIdx and returns its index. Sections take their segment's
// protection, as they do when parsed.
func (f *File) AddSection(segIdx int, s exec.Segment) int {
	s.SegIdx = segIdx
	s.Origin = exec.NoOrigin
	if segIdx >= 0 && segIdx < len(f.Segments) {
		s.Prot = f.Segments[segIdx].Prot
	}
	at := len(f.Sections)
	for i, o := range f.Sections {
		if o.SegIdx > segIdx {
			at = i
			break
		}
	}
	f.Sections = slices.Insert(f.Sections, at, s)
	return at
}
