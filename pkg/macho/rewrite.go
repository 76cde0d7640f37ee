package macho

import (
	"bytes"
	"math"
	"slices"

	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machorw/pkg/exec"
	"github.com/blacktop/machorw/pkg/macho/commands"
)

type regenKind int

const (
	regenNone regenKind = iota
	regenDyldInfo
	regenSymtab
	regenDysymtab
)

func kindOf(cmd types.LoadCmd) regenKind {
	switch cmd {
	case types.LC_DYLD_INFO, types.LC_DYLD_INFO_ONLY:
		return regenDyldInfo
	case types.LC_SYMTAB:
		return regenSymtab
	case types.LC_DYSYMTAB:
		return regenDysymtab
	}
	return regenNone
}

func isSegmentCmd(cmd types.LoadCmd) bool {
	return cmd == types.LC_SEGMENT || cmd == types.LC_SEGMENT_64
}

func segmentWidth(cmd types.LoadCmd) commands.Width {
	if cmd == types.LC_SEGMENT_64 {
		return commands.Width64
	}
	return commands.Width32
}

func protBits(p exec.Prot) types.VmProtection {
	var v types.VmProtection
	if p.R {
		v |= 1
	}
	if p.W {
		v |= 2
	}
	if p.X {
		v |= 4
	}
	return v
}

// Rewrite regenerates the load command area from the current model and
// alloc, returning one byte block per command in file order.
//
// Segment, dyld info, symtab and dysymtab commands are rebuilt; every other
// command is copied unchanged. Segments created after parsing are placed
// before the first non-segment command, in creation order.
func (f *File) Rewrite(alloc Allocation) ([][]byte, error) {
	inPlace := make(map[int][]byte)
	var added [][]byte

	for i, seg := range f.Segments {
		origin := f.segmentOrigin(seg)
		if origin >= 0 {
			if _, dup := inPlace[origin]; dup {
				f.warn.Warnf("segment %s shares load command %d with another segment; emitting it as a new command", seg.Name, origin)
				origin = -1
			}
		}
		b, err := f.encodeSegment(i, seg, origin)
		if err != nil {
			return nil, err
		}
		if origin >= 0 {
			inPlace[origin] = b
		} else {
			added = append(added, b)
		}
	}

	var out [][]byte
	done := make(map[regenKind]bool)
	insertAt := -1

	for i, l := range f.Loads {
		if isSegmentCmd(l.Cmd) {
			if b, ok := inPlace[i]; ok {
				out = append(out, b)
			}
			continue
		}
		if insertAt < 0 {
			insertAt = len(out)
		}
		kind := kindOf(l.Cmd)
		if kind == regenNone {
			out = append(out, bytes.Clone(l.Bytes()))
			continue
		}
		if done[kind] {
			f.warn.Warnf("duplicate %s command %d copied unchanged", l.Cmd, i)
			out = append(out, bytes.Clone(l.Bytes()))
			continue
		}
		b, err := f.regenerate(kind, l.Cmd, &alloc)
		if err != nil {
			return nil, err
		}
		done[kind] = true
		out = append(out, b)
	}

	if insertAt < 0 {
		insertAt = len(out)
	}
	for _, kind := range []regenKind{regenDyldInfo, regenSymtab, regenDysymtab} {
		if done[kind] || !f.hasData(kind) {
			continue
		}
		cmd := types.LC_SYMTAB
		switch kind {
		case regenDyldInfo:
			cmd = f.DyldInfo.Cmd
			if cmd == 0 {
				cmd = types.LC_DYLD_INFO_ONLY
			}
		case regenDysymtab:
			cmd = types.LC_DYSYMTAB
		}
		b, err := f.regenerate(kind, cmd, &alloc)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return slices.Insert(out, insertAt, added...), nil
}

// segmentOrigin returns the index of the segment command seg was parsed
// from, or -1 if it has none.
func (f *File) segmentOrigin(seg exec.Segment) int {
	if !seg.Origin.Valid() {
		return -1
	}
	if seg.Origin.Cmd >= len(f.Loads) || !isSegmentCmd(f.Loads[seg.Origin.Cmd].Cmd) {
		f.warn.Warnf("segment %s refers to load command %d which is not a segment; emitting it as a new command", seg.Name, seg.Origin.Cmd)
		return -1
	}
	return seg.Origin.Cmd
}

func (f *File) putName(name, what string) [commands.NameSize]byte {
	n, ok := commands.PutName(name)
	if !ok {
		f.warn.Warnf("%s name %q is longer than %d bytes; truncating to %q", what, name, commands.NameSize, commands.NameString(n))
	}
	return n
}

func fits32(w commands.Width, vals ...uint64) bool {
	if w == commands.Width64 {
		return true
	}
	for _, v := range vals {
		if v > math.MaxUint32 {
			return false
		}
	}
	return true
}

func (f *File) encodeSegment(segIdx int, seg exec.Segment, origin int) ([]byte, error) {
	o := f.Header.Order
	w := f.Header.Width
	cmd := types.LC_SEGMENT
	if w == commands.Width64 {
		cmd = types.LC_SEGMENT_64
	}

	sc := commands.SegmentCmd{Maxprot: 7}
	var old []commands.SectionHdr
	var oldName string
	if origin >= 0 {
		raw := f.Loads[origin].Bytes()
		cmd = f.Loads[origin].Cmd
		w = segmentWidth(cmd)
		hsz, ssz := commands.SegmentCmdSize(w), commands.SectionHdrSize(w)
		sc.Decode(raw[:hsz], o, w)
		oldName = commands.NameString(sc.Name)
		n := min(int(sc.Nsect), (len(raw)-hsz)/ssz)
		old = make([]commands.SectionHdr, n)
		for k := range old {
			old[k].Decode(raw[hsz+k*ssz:hsz+(k+1)*ssz], o, w)
		}
	}

	sects := f.SectionsOf(segIdx)
	size := uint64(commands.SegmentCmdSize(w)) + uint64(len(sects))*uint64(commands.SectionHdrSize(w))
	if size > math.MaxUint32 {
		return nil, exec.Errorf(exec.ErrUsage, "segment %s has too many sections (%d)", seg.Name, len(sects))
	}
	if !fits32(w, seg.VMAddr, seg.VMSize, seg.FileOff, seg.FileSize) {
		return nil, exec.Errorf(exec.ErrUsage, "segment %s does not fit a 32-bit segment command", seg.Name)
	}

	sc.Cmd = cmd
	sc.Len = uint32(size)
	sc.Name = f.putName(seg.Name, "segment")
	sc.Addr = seg.VMAddr
	sc.Memsz = seg.VMSize
	sc.Offset = seg.FileOff
	sc.Filesz = seg.FileSize
	sc.Prot = sc.Prot&^7 | protBits(seg.Prot)
	sc.Nsect = uint32(len(sects))

	out := make([]byte, 0, size)
	out = append(out, sc.Encode(o, w)...)

	for _, si := range sects {
		s := f.Sections[si]
		var sh commands.SectionHdr
		fromOld := origin >= 0 && s.Origin.Cmd == origin && s.Origin.Slot >= 0 && s.Origin.Slot < len(old)
		if fromOld {
			sh = old[s.Origin.Slot]
		}
		if !fromOld || seg.Name != oldName {
			sh.Seg = sc.Name
		}
		sh.Name = f.putName(s.Name, "section")
		if s.FileSize != s.VMSize {
			f.warn.Warnf("section %s.%s: filesize %#x differs from vmsize %#x; writing vmsize", seg.Name, s.Name, s.FileSize, s.VMSize)
		}
		if !fits32(w, s.VMAddr, s.VMSize) || s.FileOff > math.MaxUint32 {
			return nil, exec.Errorf(exec.ErrUsage, "section %s.%s does not fit its section entry", seg.Name, s.Name)
		}
		sh.Addr = s.VMAddr
		sh.Size = s.VMSize
		sh.Offset = uint32(s.FileOff)
		out = append(out, sh.Encode(o, w)...)
	}
	return out, nil
}

func (f *File) hasData(kind regenKind) bool {
	switch kind {
	case regenDyldInfo:
		d := f.DyldInfo
		return d.Rebase.Len() > 0 || d.Bind.Len() > 0 || d.WeakBind.Len() > 0 || d.LazyBind.Len() > 0 || d.Export.Len() > 0
	case regenSymtab:
		return f.Symtab.Syms.Len() > 0 || f.Symtab.Strs.Len() > 0
	case regenDysymtab:
		d := f.Dysymtab
		return d.Local.Count > 0 || d.ExtDef.Count > 0 || d.Undef.Count > 0 ||
			d.TOC.Len() > 0 || d.ModTab.Len() > 0 || d.ExtRefSyms.Len() > 0 || d.IndirectSyms.Len() > 0 ||
			d.ExtRel.Count > 0 || d.LocRel.Count > 0
	}
	return false
}

func (f *File) regenerate(kind regenKind, cmd types.LoadCmd, alloc *Allocation) ([]byte, error) {
	o := f.Header.Order
	switch kind {
	case regenDyldInfo:
		d := commands.DyldInfoCmd{LoadCmdHeader: commands.LoadCmdHeader{Cmd: cmd, Len: commands.DyldInfoCmdSize}}
		for _, r := range []struct {
			key  AllocKey
			len  int
			off  *uint32
			size *uint32
		}{
			{AllocRebase, f.DyldInfo.Rebase.Len(), &d.RebaseOff, &d.RebaseSize},
			{AllocBind, f.DyldInfo.Bind.Len(), &d.BindOff, &d.BindSize},
			{AllocWeakBind, f.DyldInfo.WeakBind.Len(), &d.WeakBindOff, &d.WeakBindSize},
			{AllocLazyBind, f.DyldInfo.LazyBind.Len(), &d.LazyBindOff, &d.LazyBindSize},
			{AllocExport, f.DyldInfo.Export.Len(), &d.ExportOff, &d.ExportSize},
		} {
			off, err := alloc.offset(r.key)
			if err != nil {
				return nil, err
			}
			*r.off = off
			*r.size = uint32(r.len)
		}
		return d.Encode(o), nil

	case regenSymtab:
		symoff, err := alloc.offset(AllocSymtab)
		if err != nil {
			return nil, err
		}
		stroff, err := alloc.offset(AllocStrtab)
		if err != nil {
			return nil, err
		}
		st := commands.SymtabCmd{
			LoadCmdHeader: commands.LoadCmdHeader{Cmd: cmd, Len: commands.SymtabCmdSize},
			Symoff:        symoff,
			Nsyms:         uint32(f.Symtab.Syms.Len() / commands.NlistSize(f.Header.Width)),
			Stroff:        stroff,
			Strsize:       uint32(f.Symtab.Strs.Len()),
		}
		return st.Encode(o), nil

	case regenDysymtab:
		dt := f.Dysymtab
		d := commands.DysymtabCmd{
			LoadCmdHeader: commands.LoadCmdHeader{Cmd: cmd, Len: commands.DysymtabCmdSize},
			Ilocalsym:     alloc.LocalSym,
			Nlocalsym:     dt.Local.Count,
			Iextdefsym:    alloc.ExtDefSym,
			Nextdefsym:    dt.ExtDef.Count,
			Iundefsym:     alloc.UndefSym,
			Nundefsym:     dt.Undef.Count,
			Ntoc:          uint32(dt.TOC.Len() / commands.TOCEntrySize),
			Nmodtab:       uint32(dt.ModTab.Len() / commands.ModuleEntrySize(f.Header.Width)),
			Nextrefsyms:   uint32(dt.ExtRefSyms.Len() / commands.ReferenceEntrySize),
			Nindirectsyms: uint32(dt.IndirectSyms.Len() / commands.IndirectEntrySize),
			Extreloff:     dt.ExtRel.Off,
			Nextrel:       dt.ExtRel.Count,
			Locreloff:     dt.LocRel.Off,
			Nlocrel:       dt.LocRel.Count,
		}
		var err error
		for _, r := range []struct {
			key AllocKey
			off *uint32
		}{
			{AllocTOC, &d.Tocoffset},
			{AllocModTab, &d.Modtaboff},
			{AllocExtRefSym, &d.Extrefsymoff},
			{AllocIndirectSym, &d.Indirectsymoff},
		} {
			if *r.off, err = alloc.offset(r.key); err != nil {
				return nil, err
			}
		}
		return d.Encode(o), nil
	}
	return nil, exec.Errorf(exec.ErrUnsupported, "cannot regenerate %s", cmd)
}
