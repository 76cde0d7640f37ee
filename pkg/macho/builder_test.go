package macho

import (
	"encoding/binary"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machorw/pkg/buffer"
	"github.com/blacktop/machorw/pkg/macho/commands"
	"github.com/blacktop/machorw/pkg/macho/header"
)

// image assembles a synthetic thin Mach-O file.
type image struct {
	order  binary.ByteOrder
	width  commands.Width
	cpu    types.CPU
	sub    types.CPUSubtype
	ftype  types.HeaderFileType
	cmds   [][]byte
	sizeOf uint32 // overrides sizeofcmds when non-zero
	size   int
	data   map[int][]byte
}

func (im image) bytes() []byte {
	var sizeOf int
	for _, c := range im.cmds {
		sizeOf += len(c)
	}
	h := commands.MachHeader{
		Magic:  types.Magic32,
		CPU:    im.cpu,
		SubCPU: im.sub,
		Type:   im.ftype,
		NCmd:   uint32(len(im.cmds)),
		SizeOf: uint32(sizeOf),
	}
	if im.width == commands.Width64 {
		h.Magic = types.Magic64
	}
	if im.sizeOf != 0 {
		h.SizeOf = im.sizeOf
	}
	size := max(im.size, header.Size(im.width)+sizeOf)
	out := make([]byte, size)
	copy(out, h.Encode(im.order))
	off := header.Size(im.width)
	for _, c := range im.cmds {
		copy(out[off:], c)
		off += len(c)
	}
	for at, d := range im.data {
		copy(out[at:], d)
	}
	return out
}

func region(b []byte) buffer.Region {
	return buffer.NewArena(b).Region()
}

func testWarnings() (*Warnings, *memory.Handler) {
	h := memory.New()
	return NewWarnings(&log.Logger{Handler: h, Level: log.WarnLevel}), h
}

func nameField(s string) [commands.NameSize]byte {
	n, _ := commands.PutName(s)
	return n
}

func segCmd(o binary.ByteOrder, w commands.Width, name string, addr, vmsize, off, filesz uint64, prot types.VmProtection, sects ...commands.SectionHdr) []byte {
	cmd := types.LC_SEGMENT
	if w == commands.Width64 {
		cmd = types.LC_SEGMENT_64
	}
	sc := commands.SegmentCmd{
		LoadCmdHeader: commands.LoadCmdHeader{
			Cmd: cmd,
			Len: uint32(commands.SegmentCmdSize(w) + len(sects)*commands.SectionHdrSize(w)),
		},
		Name:    nameField(name),
		Addr:    addr,
		Memsz:   vmsize,
		Offset:  off,
		Filesz:  filesz,
		Maxprot: prot,
		Prot:    prot,
		Nsect:   uint32(len(sects)),
	}
	b := sc.Encode(o, w)
	for _, s := range sects {
		b = append(b, s.Encode(o, w)...)
	}
	return b
}

func sectHdr(seg, name string, addr, size uint64, off uint32, flags uint32) commands.SectionHdr {
	return commands.SectionHdr{Name: nameField(name), Seg: nameField(seg), Addr: addr, Size: size, Offset: off, Align: 4, Flags: flags}
}

func symtabCmd(o binary.ByteOrder, symoff, nsyms, stroff, strsize uint32) []byte {
	return commands.SymtabCmd{
		LoadCmdHeader: commands.LoadCmdHeader{Cmd: types.LC_SYMTAB, Len: commands.SymtabCmdSize},
		Symoff:        symoff,
		Nsyms:         nsyms,
		Stroff:        stroff,
		Strsize:       strsize,
	}.Encode(o)
}

func uuidCmd(o binary.ByteOrder) []byte {
	b := commands.LoadCmdHeader{Cmd: types.LC_UUID, Len: 24}.Encode(o)
	return append(b, 0xde, 0xad, 0xbe, 0xef, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
}

func nlists(o binary.ByteOrder, w commands.Width, syms []commands.Nlist) []byte {
	var b []byte
	for _, s := range syms {
		b = append(b, s.Encode(o, w)...)
	}
	return b
}

func fill(v byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = v
	}
	return b
}

// Layout of the sample image.
const (
	textOff      = 0x400
	cstringOff   = 0x500
	linkeditOff  = 0x800
	linkeditSize = 0x200
	rebaseOff    = 0x800
	bindOff      = 0x808
	lazyOff      = 0x810
	exportOff    = 0x818
	symOff       = 0x820
	strOff       = 0x860
	strSize      = 0x40
	indirectOff  = 0x8a0
	imageSize    = 0xa00
)

var sampleStrtab = []byte("\x00_local\x00_main\x00_weak\x00_printf\x00")

func vmBase(w commands.Width) uint64 {
	if w == commands.Width64 {
		return 0x100000000
	}
	return 0x1000
}

func sampleSymbols(base uint64) []commands.Nlist {
	return []commands.Nlist{
		{Name: 1, Type: commands.N_SECT, Sect: 1, Value: base + textOff},
		{Name: 8, Type: commands.N_SECT | commands.N_EXT, Sect: 1, Value: base + textOff + 0x10},
		{Name: 14, Type: commands.N_SECT | commands.N_EXT, Sect: 1, Desc: commands.N_WEAK_DEF, Value: base + textOff + 0x20},
		{Name: 20, Type: commands.N_UNDF | commands.N_EXT},
	}
}

// sampleImage is a small executable: three segments, dyld info, symtab,
// dysymtab and a trailing LC_UUID.
func sampleImage(o binary.ByteOrder, w commands.Width, dyldCmd types.LoadCmd) []byte {
	base := vmBase(w)
	cpu, sub := types.CPUAmd64, types.CPUSubtype(3)
	if w == commands.Width32 {
		cpu, sub = types.CPUPpc, 0
	}

	indirect := make([]byte, 8)
	o.PutUint32(indirect[0:], 3)
	o.PutUint32(indirect[4:], 3)

	dy := commands.DysymtabCmd{
		LoadCmdHeader:  commands.LoadCmdHeader{Cmd: types.LC_DYSYMTAB, Len: commands.DysymtabCmdSize},
		Ilocalsym:      0,
		Nlocalsym:      1,
		Iextdefsym:     1,
		Nextdefsym:     2,
		Iundefsym:      3,
		Nundefsym:      1,
		Indirectsymoff: indirectOff,
		Nindirectsyms:  2,
	}
	di := commands.DyldInfoCmd{
		LoadCmdHeader: commands.LoadCmdHeader{Cmd: dyldCmd, Len: commands.DyldInfoCmdSize},
		RebaseOff:     rebaseOff,
		RebaseSize:    8,
		BindOff:       bindOff,
		BindSize:      8,
		LazyBindOff:   lazyOff,
		LazyBindSize:  8,
		ExportOff:     exportOff,
		ExportSize:    8,
	}

	im := image{
		order: o,
		width: w,
		cpu:   cpu,
		sub:   sub,
		ftype: types.MH_EXECUTE,
		cmds: [][]byte{
			segCmd(o, w, "__PAGEZERO", 0, base, 0, 0, 0),
			segCmd(o, w, "__TEXT", base, 0x800, 0, 0x800, 5,
				sectHdr("__TEXT", "__text", base+textOff, 0x100, textOff, 0x80000400),
				sectHdr("__TEXT", "__cstring", base+cstringOff, 0x40, cstringOff, 0x2),
			),
			segCmd(o, w, "__LINKEDIT", base+0x1000, 0x1000, linkeditOff, linkeditSize, 1),
			di.Encode(o),
			symtabCmd(o, symOff, 4, strOff, strSize),
			dy.Encode(o),
			uuidCmd(o),
		},
		size: imageSize,
		data: map[int][]byte{
			textOff:     fill(0x90, 0x100),
			cstringOff:  append([]byte("hello\x00"), fill(0, 0x3a)...),
			rebaseOff:   fill(0x11, 8),
			bindOff:     fill(0x22, 8),
			lazyOff:     fill(0x33, 8),
			exportOff:   fill(0x44, 8),
			symOff:      nlists(o, w, sampleSymbols(base)),
			strOff:      sampleStrtab,
			indirectOff: indirect,
		},
	}
	return im.bytes()
}

type layout struct {
	name  string
	order binary.ByteOrder
	width commands.Width
}

var layouts = []layout{
	{"le64", binary.LittleEndian, commands.Width64},
	{"be64", binary.BigEndian, commands.Width64},
	{"le32", binary.LittleEndian, commands.Width32},
	{"be32", binary.BigEndian, commands.Width32},
}

func sampleFile(t *testing.T, l layout) (*File, *Warnings) {
	t.Helper()
	w, _ := testWarnings()
	f, err := NewFile(region(sampleImage(l.order, l.width, types.LC_DYLD_INFO_ONLY)), &Options{Warnings: w})
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	if w.Len() != 0 {
		t.Fatalf("unexpected warnings parsing sample: %v", w.List())
	}
	return f, w
}
