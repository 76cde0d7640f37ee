package macho

import (
	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machorw/pkg/exec"
	"github.com/blacktop/machorw/pkg/macho/commands"
)

func truncated(off int, msg string, val any) error {
	return &exec.FormatError{Kind: exec.ErrTruncated, Off: int64(off), Msg: msg, Val: val}
}

// loadCommands walks exactly ncmds commands, advancing by each command's own
// cmdsize. A command that is shorter than its prefix or runs past the buffer
// or the declared command area desynchronizes the stream and is fatal.
func (f *File) loadCommands() error {
	data := f.Buf.Bytes()
	o := f.Header.Order
	ncmd := int(f.Header.NCmd)
	cmdEnd := uint64(f.cmdStart) + uint64(f.Header.SizeOf)

	if ncmd > 0 {
		f.Loads = make([]Load, 0, min(ncmd, int(f.Header.SizeOf/commands.LoadCmdHeaderSize)))
	}

	off := f.cmdStart
	for i := range ncmd {
		if off > len(data) || len(data)-off < commands.LoadCmdHeaderSize {
			return truncated(off, "load command header extends past end of buffer", i)
		}
		var lc commands.LoadCmdHeader
		lc.Decode(data[off:off+commands.LoadCmdHeaderSize], o)

		if lc.Len < commands.LoadCmdHeaderSize {
			return truncated(off, "invalid load command size", lc.Len)
		}
		end := uint64(off) + uint64(lc.Len)
		if end > uint64(len(data)) {
			return truncated(off, "load command extends past end of buffer", lc.Cmd)
		}
		if end > cmdEnd {
			return truncated(off, "load command extends past sizeofcmds", lc.Cmd)
		}

		raw, err := f.Buf.Slice(off, int(end))
		if err != nil {
			return truncated(off, "load command", err)
		}
		f.Loads = append(f.Loads, Load{Cmd: lc.Cmd, Raw: raw})

		if err := f.decodeLoad(i, lc.Cmd, raw.Bytes(), off); err != nil {
			return err
		}
		off = int(end)
	}
	return nil
}

func (f *File) decodeLoad(i int, cmd types.LoadCmd, raw []byte, off int) error {
	switch cmd {
	case types.LC_SEGMENT:
		return f.segment(i, raw, off, commands.Width32)
	case types.LC_SEGMENT_64:
		return f.segment(i, raw, off, commands.Width64)
	case types.LC_DYLD_INFO, types.LC_DYLD_INFO_ONLY:
		return f.dyldInfo(cmd, raw, off)
	case types.LC_SYMTAB:
		return f.symtab(raw, off)
	case types.LC_DYSYMTAB:
		return f.dysymtab(raw, off)
	}
	return nil
}

func need(raw []byte, size, off int, cmd types.LoadCmd) error {
	if len(raw) < size {
		return truncated(off, "load command too small for its type", cmd)
	}
	return nil
}

func protOf(v types.VmProtection) exec.Prot {
	return exec.Prot{R: v.Read(), W: v.Write(), X: v.Execute()}
}

func (f *File) segment(ci int, raw []byte, off int, w commands.Width) error {
	hsz := commands.SegmentCmdSize(w)
	cmd := types.LC_SEGMENT
	if w == commands.Width64 {
		cmd = types.LC_SEGMENT_64
	}
	if err := need(raw, hsz, off, cmd); err != nil {
		return err
	}
	o := f.Header.Order

	var sc commands.SegmentCmd
	sc.Decode(raw[:hsz], o, w)

	seg := exec.Segment{
		Name:     commands.NameString(sc.Name),
		VMAddr:   sc.Addr,
		VMSize:   sc.Memsz,
		FileOff:  sc.Offset,
		FileSize: sc.Filesz,
		Prot:     protOf(sc.Prot),
		SegIdx:   -1,
		Origin:   exec.Origin{Cmd: ci, Slot: -1},
	}
	f.fixupOverflow(&seg, w, "segment")
	segIdx := len(f.Segments)
	f.Segments = append(f.Segments, seg)

	ssz := commands.SectionHdrSize(w)
	nsect := int(sc.Nsect)
	if avail := (len(raw) - hsz) / ssz; nsect > avail {
		f.warn.Warnf("segment %s declares %d sections but its command holds %d; truncating", seg.Name, nsect, avail)
		nsect = avail
	}
	for k := range nsect {
		var sh commands.SectionHdr
		sh.Decode(raw[hsz+k*ssz:hsz+(k+1)*ssz], o, w)
		sect := exec.Segment{
			Name:     commands.NameString(sh.Name),
			VMAddr:   sh.Addr,
			VMSize:   sh.Size,
			FileOff:  uint64(sh.Offset),
			FileSize: sh.Size,
			Prot:     seg.Prot,
			SegIdx:   segIdx,
			Origin:   exec.Origin{Cmd: ci, Slot: k},
		}
		f.fixupOverflow(&sect, w, "section")
		f.Sections = append(f.Sections, sect)
	}
	return nil
}

// fixupOverflow keeps addr+size and off+size inside the address width.
// 64-bit sizes are clamped; 32-bit files have always been lenient here and
// only get a warning.
func (f *File) fixupOverflow(s *exec.Segment, w commands.Width, what string) {
	limit := w.MaxWord()
	if w == commands.Width64 {
		if s.VMSize > limit-s.VMAddr {
			f.warn.Warnf("%s %s: vmaddr %#x + vmsize %#x overflows; truncating", what, s.Name, s.VMAddr, s.VMSize)
			s.VMSize = limit - s.VMAddr
		}
		if s.FileSize > limit-s.FileOff {
			f.warn.Warnf("%s %s: fileoff %#x + filesize %#x overflows; truncating", what, s.Name, s.FileOff, s.FileSize)
			s.FileSize = limit - s.FileOff
		}
		return
	}
	if s.VMSize > limit-s.VMAddr {
		f.warn.Warnf("%s %s: vmaddr %#x + vmsize %#x has 32-bit overflow; keeping it", what, s.Name, s.VMAddr, s.VMSize)
	}
	if s.FileSize > limit-s.FileOff {
		f.warn.Warnf("%s %s: fileoff %#x + filesize %#x has 32-bit overflow; keeping it", what, s.Name, s.FileOff, s.FileSize)
	}
}

func (f *File) dyldInfo(cmd types.LoadCmd, raw []byte, off int) error {
	if err := need(raw, commands.DyldInfoCmdSize, off, cmd); err != nil {
		return err
	}
	if f.DyldInfo.Cmd != 0 {
		f.warn.Warnf("duplicate %s command at %#x; using the first one", cmd, off)
		return nil
	}
	var d commands.DyldInfoCmd
	d.Decode(raw[:commands.DyldInfoCmdSize], f.Header.Order)

	f.DyldInfo.Cmd = cmd
	f.DyldInfo.Rebase, _ = fileArray(f.Buf, f.warn, "dyld rebase info", uint64(d.RebaseOff), uint64(d.RebaseSize), 1)
	f.DyldInfo.Bind, _ = fileArray(f.Buf, f.warn, "dyld bind info", uint64(d.BindOff), uint64(d.BindSize), 1)
	f.DyldInfo.WeakBind, _ = fileArray(f.Buf, f.warn, "dyld weak bind info", uint64(d.WeakBindOff), uint64(d.WeakBindSize), 1)
	f.DyldInfo.LazyBind, _ = fileArray(f.Buf, f.warn, "dyld lazy bind info", uint64(d.LazyBindOff), uint64(d.LazyBindSize), 1)
	f.DyldInfo.Export, _ = fileArray(f.Buf, f.warn, "dyld export info", uint64(d.ExportOff), uint64(d.ExportSize), 1)

	f.layout.Offsets[AllocRebase] = uint64(d.RebaseOff)
	f.layout.Offsets[AllocBind] = uint64(d.BindOff)
	f.layout.Offsets[AllocWeakBind] = uint64(d.WeakBindOff)
	f.layout.Offsets[AllocLazyBind] = uint64(d.LazyBindOff)
	f.layout.Offsets[AllocExport] = uint64(d.ExportOff)
	return nil
}

func (f *File) symtab(raw []byte, off int) error {
	if err := need(raw, commands.SymtabCmdSize, off, types.LC_SYMTAB); err != nil {
		return err
	}
	if _, ok := f.layout.Offsets[AllocSymtab]; ok {
		f.warn.Warnf("duplicate %s command at %#x; using the first one", types.LC_SYMTAB, off)
		return nil
	}
	var st commands.SymtabCmd
	st.Decode(raw[:commands.SymtabCmdSize], f.Header.Order)

	esz := uint64(commands.NlistSize(f.Header.Width))
	f.Symtab.Syms, _ = fileArray(f.Buf, f.warn, "symbol table", uint64(st.Symoff), uint64(st.Nsyms), esz)
	f.Symtab.Strs, _ = fileArray(f.Buf, f.warn, "string table", uint64(st.Stroff), uint64(st.Strsize), 1)

	f.layout.Offsets[AllocSymtab] = uint64(st.Symoff)
	f.layout.Offsets[AllocStrtab] = uint64(st.Stroff)
	return nil
}

func (f *File) dysymtab(raw []byte, off int) error {
	if err := need(raw, commands.DysymtabCmdSize, off, types.LC_DYSYMTAB); err != nil {
		return err
	}
	if _, ok := f.layout.Offsets[AllocTOC]; ok {
		f.warn.Warnf("duplicate %s command at %#x; using the first one", types.LC_DYSYMTAB, off)
		return nil
	}
	var d commands.DysymtabCmd
	d.Decode(raw[:commands.DysymtabCmdSize], f.Header.Order)

	dt := &f.Dysymtab
	dt.Local = Subrange{Start: d.Ilocalsym, Count: d.Nlocalsym}
	dt.ExtDef = Subrange{Start: d.Iextdefsym, Count: d.Nextdefsym}
	dt.Undef = Subrange{Start: d.Iundefsym, Count: d.Nundefsym}
	dt.TOC, _ = fileArray(f.Buf, f.warn, "table of contents", uint64(d.Tocoffset), uint64(d.Ntoc), commands.TOCEntrySize)
	dt.ModTab, _ = fileArray(f.Buf, f.warn, "module table", uint64(d.Modtaboff), uint64(d.Nmodtab), uint64(commands.ModuleEntrySize(f.Header.Width)))
	dt.ExtRefSyms, _ = fileArray(f.Buf, f.warn, "external reference table", uint64(d.Extrefsymoff), uint64(d.Nextrefsyms), commands.ReferenceEntrySize)
	dt.IndirectSyms, _ = fileArray(f.Buf, f.warn, "indirect symbol table", uint64(d.Indirectsymoff), uint64(d.Nindirectsyms), commands.IndirectEntrySize)
	dt.ExtRel = RelocRange{Off: d.Extreloff, Count: d.Nextrel}
	dt.LocRel = RelocRange{Off: d.Locreloff, Count: d.Nlocrel}

	f.layout.Offsets[AllocTOC] = uint64(d.Tocoffset)
	f.layout.Offsets[AllocModTab] = uint64(d.Modtaboff)
	f.layout.Offsets[AllocExtRefSym] = uint64(d.Extrefsymoff)
	f.layout.Offsets[AllocIndirectSym] = uint64(d.Indirectsymoff)
	f.layout.LocalSym = d.Ilocalsym
	f.layout.ExtDefSym = d.Iextdefsym
	f.layout.UndefSym = d.Iundefsym
	return nil
}
