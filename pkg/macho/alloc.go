package macho

import (
	"maps"
	"math"

	"github.com/blacktop/machorw/pkg/exec"
)

// An AllocKey names one relocatable region of the link-edit data.
type AllocKey string

const (
	AllocRebase      AllocKey = "dyld_rebase"
	AllocBind        AllocKey = "dyld_bind"
	AllocWeakBind    AllocKey = "dyld_weak_bind"
	AllocLazyBind    AllocKey = "dyld_lazy_bind"
	AllocExport      AllocKey = "dyld_export"
	AllocSymtab      AllocKey = "symtab"
	AllocStrtab      AllocKey = "strtab"
	AllocTOC         AllocKey = "toc"
	AllocModTab      AllocKey = "modtab"
	AllocExtRefSym   AllocKey = "extrefsym"
	AllocIndirectSym AllocKey = "indirectsym"
)

// An Allocation maps regions to their (new) file offsets, plus the base
// indices of the three symbol subranges.
type Allocation struct {
	Offsets   map[AllocKey]uint64
	LocalSym  uint32
	ExtDefSym uint32
	UndefSym  uint32
}

// Allocation returns the layout the file was parsed with. Rewriting an
// unedited file with it reproduces the original commands.
func (f *File) Allocation() Allocation {
	a := f.layout
	a.Offsets = maps.Clone(f.layout.Offsets)
	if a.Offsets == nil {
		a.Offsets = make(map[AllocKey]uint64)
	}
	return a
}

func (a *Allocation) offset(k AllocKey) (uint32, error) {
	v, ok := a.Offsets[k]
	if !ok {
		return 0, exec.Errorf(exec.ErrUsage, "allocation has no offset for %q", k)
	}
	if v > math.MaxUint32 {
		return 0, exec.Errorf(exec.ErrUsage, "allocation offset %#x for %q does not fit in 32 bits", v, k)
	}
	return uint32(v), nil
}
