package macho

import (
	"math"

	"github.com/blacktop/machorw/pkg/buffer"
	"github.com/blacktop/machorw/pkg/exec"
)

// Patch rewrites the load commands with alloc and returns a full copy of the
// container with the new header counts and command area. Space freed by a
// shorter command area is zeroed; content after the command area is never
// moved.
func (f *File) Patch(alloc Allocation) ([]byte, error) {
	cmds, err := f.Rewrite(alloc)
	if err != nil {
		return nil, err
	}
	size := 0
	for _, c := range cmds {
		size += len(c)
	}
	if uint64(size) > math.MaxUint32 {
		return nil, exec.Errorf(exec.ErrUsage, "load commands too large (%d bytes)", size)
	}
	limit := f.contentStart()
	if f.cmdStart+size > limit {
		return nil, exec.Errorf(exec.ErrUsage, "not enough space for load commands: need %#x bytes, have %#x", size, limit-f.cmdStart)
	}

	o := f.Header.Order
	rw := buffer.NewReadWriteBuffer(f.Buf.Bytes(), f.Buf.Len())

	var counts [8]byte
	o.PutUint32(counts[0:], uint32(len(cmds)))
	o.PutUint32(counts[4:], uint32(size))
	if _, err := rw.WriteAt(counts[:], int64(f.Header.Offset+16)); err != nil {
		return nil, err
	}
	off := f.cmdStart
	for _, c := range cmds {
		if _, err := rw.WriteAt(c, int64(off)); err != nil {
			return nil, err
		}
		off += len(c)
	}
	if oldEnd := min(f.cmdStart+int(f.Header.SizeOf), limit); oldEnd > off {
		rw.Zero(int64(off), int64(oldEnd-off))
	}
	return rw.Bytes(), nil
}

// contentStart is the lowest buffer offset past the header holding file
// content (section data, segment data or link-edit tables). The command area
// may grow up to it.
func (f *File) contentStart() int {
	limit := f.Buf.Len()
	start := uint64(f.cmdStart)
	consider := func(off, size uint64) {
		if size == 0 || off < start {
			return
		}
		if off < uint64(limit) {
			limit = int(off)
		}
	}
	for _, s := range f.Sections {
		// zero-fill sections have no file offset
		if s.FileOff != 0 {
			consider(s.FileOff, s.FileSize)
		}
	}
	for _, s := range f.Segments {
		consider(s.FileOff, s.FileSize)
	}
	for _, r := range []buffer.Region{
		f.DyldInfo.Rebase, f.DyldInfo.Bind, f.DyldInfo.WeakBind, f.DyldInfo.LazyBind, f.DyldInfo.Export,
		f.Symtab.Syms, f.Symtab.Strs,
		f.Dysymtab.TOC, f.Dysymtab.ModTab, f.Dysymtab.ExtRefSyms, f.Dysymtab.IndirectSyms,
	} {
		if off, ok := r.OffsetIn(f.Buf); ok {
			consider(uint64(off), uint64(r.Len()))
		}
	}
	consider(uint64(f.Dysymtab.ExtRel.Off), uint64(f.Dysymtab.ExtRel.Count))
	consider(uint64(f.Dysymtab.LocRel.Off), uint64(f.Dysymtab.LocRel.Count))
	return limit
}
