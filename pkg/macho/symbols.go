package macho

import (
	"bytes"
	"iter"

	"github.com/blacktop/machorw/pkg/buffer"
	"github.com/blacktop/machorw/pkg/exec"
	"github.com/blacktop/machorw/pkg/macho/commands"
)

// redactedName is the placeholder the shared cache leaves in a dylib's
// local symbol table for symbols it moved to its own table.
const redactedName = "<redacted>"

type sharedTables struct {
	tab   Symtab
	start uint32
	count uint32
}

// SetSharedCacheTables merges a shared cache symbol table ahead of the
// file's own: listing all symbols decodes [start, start+count) of syms
// first, then the local table with redacted placeholders dropped.
func (f *File) SetSharedCacheTables(syms, strs buffer.Region, start, count uint32) {
	f.shared = &sharedTables{tab: Symtab{Syms: syms, Strs: strs}, start: start, count: count}
}

// NumSymbols is the number of entries in the local symbol table.
func (f *File) NumSymbols() int {
	return f.Symtab.Syms.Len() / commands.NlistSize(f.Header.Width)
}

// Symbols implements exec.Exec. Only exec.SourceAll is supported.
func (f *File) Symbols(src exec.SymbolSource) (iter.Seq[exec.Symbol], error) {
	if src != exec.SourceAll {
		return nil, exec.Errorf(exec.ErrUnsupported, "Mach-O symbol source %d", src)
	}
	local := f.decodeTable(f.Symtab, "symbol table", 0, uint64(f.NumSymbols()), f.shared != nil)
	if f.shared == nil {
		return local, nil
	}
	shared := f.decodeTable(f.shared.tab, "shared cache symbol table", uint64(f.shared.start), uint64(f.shared.count), false)
	return func(yield func(exec.Symbol) bool) {
		for s := range shared {
			if !yield(s) {
				return
			}
		}
		for s := range local {
			if !yield(s) {
				return
			}
		}
	}, nil
}

// DecodeRange decodes count entries of the local symbol table starting at
// start. The returned sequence can be iterated more than once.
func (f *File) DecodeRange(start, count uint32, skipRedacted bool) iter.Seq[exec.Symbol] {
	return f.decodeTable(f.Symtab, "symbol table", uint64(start), uint64(count), skipRedacted)
}

// SubrangeSymbols decodes one of the dysymtab subranges.
func (f *File) SubrangeSymbols(r Subrange) iter.Seq[exec.Symbol] {
	return f.DecodeRange(r.Start, r.Count, false)
}

func (f *File) decodeTable(tab Symtab, label string, start, count uint64, skipRedacted bool) iter.Seq[exec.Symbol] {
	o, w := f.Header.Order, f.Header.Width
	esz := uint64(commands.NlistSize(w))
	n := uint64(tab.Syms.Len()) / esz
	if start > n || count > n-start {
		f.warn.Warnf("%s range [%d, %d) exceeds its %d entries; clamping", label, start, start+count, n)
		start = min(start, n)
		count = n - start
	}
	return func(yield func(exec.Symbol) bool) {
		defer tab.Syms.KeepAlive()
		defer tab.Strs.KeepAlive()
		syms, strs := tab.Syms.Bytes(), tab.Strs.Bytes()
		for i := start; i < start+count; i++ {
			var nl commands.Nlist
			nl.Decode(syms[i*esz:(i+1)*esz], o, w)
			sym := classify(nl, strs)
			if skipRedacted && sym.Name == redactedName {
				continue
			}
			sym.Index = int(i)
			if !yield(sym) {
				return
			}
		}
	}
}

func classify(nl commands.Nlist, strs []byte) exec.Symbol {
	sym := exec.Symbol{
		Name:   cstring(strs, uint64(nl.Name)),
		Public: nl.Type.External(),
		Weak:   nl.Desc.Weak(),
	}
	addr := nl.Value
	if nl.Desc.Thumb() {
		addr |= 1
	}
	switch {
	case nl.Type.Kind() == commands.N_UNDF:
		sym.Value = exec.SymbolValue{Kind: exec.SymUndefined}
	case nl.Type.Kind() == commands.N_INDR:
		exec.Invariant(nl.Value <= commands.MaxIndirectName, "N_INDR symbol %q has string offset %#x", sym.Name, nl.Value)
		sym.Value = exec.SymbolValue{Kind: exec.SymReExport, Target: cstring(strs, nl.Value)}
	case nl.Desc.Resolver():
		sym.Value = exec.SymbolValue{Kind: exec.SymResolver, Addr: addr}
	default:
		sym.Value = exec.SymbolValue{Kind: exec.SymAddr, Addr: addr}
	}
	return sym
}

// cstring reads the NUL-terminated string at off; out of range reads as "".
func cstring(strs []byte, off uint64) string {
	if off >= uint64(len(strs)) {
		return ""
	}
	s := strs[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}
