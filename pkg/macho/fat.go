package macho

import (
	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machorw/pkg/buffer"
	"github.com/blacktop/machorw/pkg/macho/commands"
	"github.com/blacktop/machorw/pkg/macho/header"
)

// A FatSlice is one in-range architecture slice of a universal file.
type FatSlice struct {
	Index int
	commands.FatArch
	Buf buffer.Region
}

// ArchName returns the short name of the slice's architecture.
func (s FatSlice) ArchName() (string, bool) {
	return header.Describe(s.CPU, s.SubCPU)
}

// FatSlices parses the universal header of buf. It returns false if buf is
// not a universal file or its arch table does not fit; slices whose data
// overlaps the arch table or runs past the buffer are skipped with a warning.
func FatSlices(buf buffer.Region, w *Warnings) ([]FatSlice, bool) {
	data := buf.Bytes()
	if len(data) < commands.FatHeaderSize {
		return nil, false
	}
	var fh commands.FatHeader
	fh.Decode(data[:commands.FatHeaderSize])
	if fh.Magic != types.MagicFat {
		return nil, false
	}
	tableEnd := commands.FatHeaderSize + uint64(fh.NArch)*commands.FatArchSize
	if uint64(len(data)) < tableEnd {
		w.Warnf("fat header: no room for %d fat archs", fh.NArch)
		return nil, false
	}

	slices := make([]FatSlice, 0, fh.NArch)
	for i := range int(fh.NArch) {
		off := commands.FatHeaderSize + i*commands.FatArchSize
		var fa commands.FatArch
		fa.Decode(data[off : off+commands.FatArchSize])
		if uint64(fa.Offset) < tableEnd {
			w.Warnf("fat arch %d: offset %#x overlaps the fat header", i, fa.Offset)
			continue
		}
		end := uint64(fa.Offset) + uint64(fa.Size)
		if end > uint64(len(data)) {
			w.Warnf("fat arch %d: bad arch cputype=%d subtype=%d offset=%#x size=%#x (truncated?)", i, uint32(fa.CPU), uint32(fa.SubCPU), fa.Offset, fa.Size)
			continue
		}
		sub, err := buf.Slice(int(fa.Offset), int(end))
		if err != nil {
			w.Warnf("fat arch %d: %v", i, err)
			continue
		}
		slices = append(slices, FatSlice{Index: i, FatArch: fa, Buf: sub})
	}
	return slices, true
}
