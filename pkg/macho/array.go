package macho

import (
	"github.com/blacktop/machorw/pkg/buffer"
	"github.com/blacktop/machorw/pkg/exec"
)

// fileArray cuts a table of count elements of elmSize bytes at off out of
// buf. The values come straight from the file, so the table is clamped to
// what the buffer holds rather than rejected. It returns the region and the
// (possibly reduced) element count.
func fileArray(buf buffer.Region, w *Warnings, label string, off, count, elmSize uint64) (buffer.Region, uint64) {
	size := uint64(buf.Len())
	if off > size {
		w.Warnf("%s (offset %#x, count %d) starts past end of file (%#x); ignoring", label, off, count, size)
		r, _ := buf.Slice(0, 0)
		return r, 0
	}
	if elmSize == 0 {
		elmSize = 1
		count = 0
	}
	if avail := (size - off) / elmSize; count > avail {
		w.Warnf("%s (offset %#x, count %d) extends past end of file (%#x); truncating to %d", label, off, count, size, avail)
		count = avail
	}
	r, err := buf.Slice(int(off), int(off+count*elmSize))
	exec.Invariant(err == nil, "%s: clamped table does not fit: %v", label, err)
	return r, count
}
