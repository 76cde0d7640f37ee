package buffer

import (
	"io"

	"github.com/pkg/errors"
)

// ReadWriteBuffer implements io.WriterAt and io.ReaderAt on an in-memory buffer.
// It is used to assemble a patched copy of a container image.
// The zero value is an empty buffer ready to use.
type ReadWriteBuffer struct {
	d []byte
	m int
}

// NewReadWriteBuffer creates a buffer holding a copy of init. If max is > 0
// writes that would grow the buffer beyond max fail.
func NewReadWriteBuffer(init []byte, max int) *ReadWriteBuffer {
	if max > 0 && max < len(init) {
		max = len(init)
	}
	return &ReadWriteBuffer{d: append([]byte(nil), init...), m: max}
}

// Bytes returns the underlying data. It stays valid until the next write.
func (rw *ReadWriteBuffer) Bytes() []byte { return rw.d }

// Size returns the current length of the buffer.
func (rw *ReadWriteBuffer) Size() int64 { return int64(len(rw.d)) }

// WriteAt implements the io.WriterAt interface.
func (rw *ReadWriteBuffer) WriteAt(dat []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("buffer.ReadWriteBuffer.WriteAt: negative offset")
	}
	end := off + int64(len(dat))
	if rw.m > 0 && end > int64(rw.m) {
		return 0, errors.Errorf("buffer.ReadWriteBuffer.WriteAt: write [%#x:%#x] exceeds maximum %#x", off, end, rw.m)
	}
	if end > int64(len(rw.d)) {
		nd := make([]byte, end)
		copy(nd, rw.d)
		rw.d = nd
	}
	copy(rw.d[off:], dat)
	return len(dat), nil
}

// Zero clears n bytes starting at off, without growing the buffer.
func (rw *ReadWriteBuffer) Zero(off, n int64) {
	if off < 0 || off >= int64(len(rw.d)) || n <= 0 {
		return
	}
	end := min(off+n, int64(len(rw.d)))
	clear(rw.d[off:end])
}

// ReadAt implements the io.ReaderAt interface.
func (rw *ReadWriteBuffer) ReadAt(b []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, errors.New("buffer.ReadWriteBuffer.ReadAt: negative offset")
	}
	if off >= int64(len(rw.d)) {
		return 0, io.EOF
	}
	n = copy(b, rw.d[off:])
	if n < len(b) {
		err = io.EOF
	}
	return
}
