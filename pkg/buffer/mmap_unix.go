//go:build unix

package buffer

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MapFile maps path read-only into a new Arena. The mapping is released by a
// runtime cleanup once the arena and every region cut from it are unreachable.
func MapFile(path string) (*Arena, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	size := fi.Size()
	if size == 0 {
		return &Arena{name: path}, nil
	}
	if int64(int(size)) != size {
		return nil, errors.Errorf("%s is too large to map (%d bytes)", path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to mmap %s", path)
	}
	a := &Arena{data: data, name: path}
	runtime.AddCleanup(a, func(b []byte) { unix.Munmap(b) }, data)
	return a, nil
}
