// Package header holds the static Mach-O tables: magic numbers, file types,
// header flags and the architecture description table.
package header

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machorw/pkg/macho/commands"
)

// A Kind is what a magic number selects: word width and byte order.
type Kind struct {
	Magic types.Magic
	Width commands.Width
	Order binary.ByteOrder
}

// Identify maps the first four bytes of a thin Mach-O header to its kind.
// Exactly four byte patterns are accepted.
func Identify(b []byte) (Kind, bool) {
	if len(b) < 4 {
		return Kind{}, false
	}
	for _, o := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		switch m := types.Magic(o.Uint32(b)); m {
		case types.Magic32:
			return Kind{Magic: m, Width: commands.Width32, Order: o}, true
		case types.Magic64:
			return Kind{Magic: m, Width: commands.Width64, Order: o}, true
		}
	}
	return Kind{}, false
}

// IsFat reports whether b starts with the universal file magic.
func IsFat(b []byte) bool {
	return len(b) >= 4 && types.Magic(commands.FatOrder.Uint32(b)) == types.MagicFat
}

// Size returns the full header size including the 64-bit reserved word.
func Size(w commands.Width) int {
	if w == commands.Width64 {
		return types.FileHeaderSize64
	}
	return types.FileHeaderSize32
}

var fileTypes = map[types.HeaderFileType]string{
	types.MH_OBJECT:   "object",
	types.MH_EXECUTE:  "executable",
	0x4:               "core",
	types.MH_DYLIB:    "dylib",
	types.MH_DYLINKER: "dylinker",
	0x8:               "bundle",
	0xa:               "dSYM",
	0xb:               "kext",
}

// FileType describes a file type code.
func FileType(t types.HeaderFileType) string {
	if s, ok := fileTypes[t]; ok {
		return s
	}
	return "<unknown filetype>"
}

var flagNames = []struct {
	bit  types.HeaderFlag
	name string
}{
	{0x1, "NoUndefs"},
	{0x2, "IncrLink"},
	{0x4, "DyldLink"},
	{0x8, "BindAtLoad"},
	{0x10, "Prebound"},
	{0x20, "SplitSegs"},
	{0x40, "LazyInit"},
	{0x80, "TwoLevel"},
	{0x100, "ForceFlat"},
	{0x200, "NoMultiDefs"},
	{0x400, "NoFixPrebinding"},
	{0x800, "Prebindable"},
	{0x1000, "AllModsBound"},
	{0x2000, "SubsectionsViaSymbols"},
	{0x4000, "Canonical"},
	{0x8000, "WeakDefines"},
	{0x10000, "BindsToWeak"},
	{0x20000, "AllowStackExecution"},
	{0x40000, "RootSafe"},
	{0x80000, "SetuidSafe"},
	{0x100000, "NoReexportedDylibs"},
	{0x200000, "PIE"},
	{0x400000, "DeadStrippableDylib"},
	{0x800000, "HasTLVDescriptors"},
	{0x1000000, "NoHeapExecution"},
	{0x2000000, "AppExtensionSafe"},
	{0x4000000, "NlistOutofsyncWithDyldinfo"},
	{0x8000000, "SimSupport"},
	{0x80000000, "DylibInCache"},
}

// Flags renders the set header flags, e.g. "DyldLink|TwoLevel|PIE".
func Flags(f types.HeaderFlag) string {
	var names []string
	for _, fn := range flagNames {
		if f&fn.bit != 0 {
			names = append(names, fn.name)
			f &^= fn.bit
		}
	}
	if f != 0 {
		names = append(names, fmt.Sprintf("%#x", uint32(f)))
	}
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, "|")
}
