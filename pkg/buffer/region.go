// Package buffer provides the byte views the container engine works on.
//
// One Arena owns an immutable backing buffer (a mapped file or an owned slice).
// A Region is a (arena, offset, length) value cut out of it; regions are cheap
// to copy and keep the arena alive for as long as any of them is reachable.
package buffer

import (
	"runtime"

	"github.com/pkg/errors"
)

// ErrOutOfRange is returned when a sub-slice does not fit its parent region.
var ErrOutOfRange = errors.New("buffer: region out of range")

// Arena owns the backing bytes shared by every Region cut from it.
type Arena struct {
	data []byte
	name string
}

// NewArena wraps b. The caller must not modify b afterwards.
func NewArena(b []byte) *Arena {
	return &Arena{data: b}
}

// Name is the path the arena was mapped from, if any.
func (a *Arena) Name() string { return a.name }

// Len returns the size of the backing buffer.
func (a *Arena) Len() int { return len(a.data) }

// Region returns a region covering the whole arena.
func (a *Arena) Region() Region {
	return Region{arena: a, off: 0, n: len(a.data)}
}

// Region is a bounds-checked view into an Arena.
// Invariant: off+n <= len(arena.data).
type Region struct {
	arena *Arena
	off   int
	n     int
}

// Bytes exposes the view. The returned slice must be treated as read-only.
// It does not keep a mapped arena alive; see KeepAlive.
func (r Region) Bytes() []byte {
	if r.arena == nil {
		return nil
	}
	return r.arena.data[r.off : r.off+r.n : r.off+r.n]
}

// KeepAlive keeps the arena of r reachable until at least this call. Call it
// after the last use of a Bytes slice when r itself is otherwise dead.
func (r Region) KeepAlive() { runtime.KeepAlive(r.arena) }

// Len returns the length of the view.
func (r Region) Len() int { return r.n }

// Start returns the offset of the view inside its arena.
func (r Region) Start() int { return r.off }

// Arena returns the owning arena (nil for the zero Region).
func (r Region) Arena() *Arena { return r.arena }

// Slice returns the sub-region [from, to) of r, sharing the same arena.
func (r Region) Slice(from, to int) (Region, error) {
	if from < 0 || to < from || from > r.n || to-from > r.n-from {
		return Region{}, errors.Wrapf(ErrOutOfRange, "slice [%d:%d] of %d-byte region", from, to, r.n)
	}
	return Region{arena: r.arena, off: r.off + from, n: to - from}, nil
}

// OffsetIn reports the offset of r within other when both alias the same
// arena and r lies entirely inside other.
func (r Region) OffsetIn(other Region) (int, bool) {
	if r.arena == nil || r.arena != other.arena {
		return 0, false
	}
	if r.off < other.off || r.off+r.n > other.off+other.n {
		return 0, false
	}
	return r.off - other.off, true
}
