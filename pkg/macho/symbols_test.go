package macho

import (
	"encoding/binary"
	"slices"
	"testing"

	"github.com/blacktop/machorw/pkg/exec"
	"github.com/blacktop/machorw/pkg/macho/commands"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// symbolImage builds a little-endian file holding only LC_SYMTAB.
func symbolImage(t *testing.T, w commands.Width, syms []commands.Nlist, strtab []byte) *File {
	t.Helper()
	o := binary.LittleEndian
	const symoff = 0x100
	tab := nlists(o, w, syms)
	stroff := symoff + len(tab)
	img := image{
		order: o,
		width: w,
		cmds:  [][]byte{symtabCmd(o, symoff, uint32(len(syms)), uint32(stroff), uint32(len(strtab)))},
		size:  stroff + len(strtab),
		data:  map[int][]byte{symoff: tab, stroff: strtab},
	}.bytes()
	ws, _ := testWarnings()
	f, err := NewFile(region(img), &Options{Warnings: ws})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

// strtab places each name at its offset.
func strtab(size int, names map[int]string) []byte {
	b := make([]byte, size)
	for off, n := range names {
		copy(b[off:], n)
	}
	return b
}

func TestSymbolClassification(t *testing.T) {
	strs := strtab(120, map[int]string{
		1:   "_undef",
		8:   "_reexport",
		18:  "_resolver",
		28:  "_thumb",
		35:  "<redacted>",
		46:  "_weak",
		100: "_target",
	})
	syms := []commands.Nlist{
		{Name: 1, Type: commands.N_UNDF | commands.N_EXT},
		{Name: 8, Type: commands.N_INDR | commands.N_EXT, Value: 100},
		{Name: 18, Type: commands.N_SECT | commands.N_EXT, Sect: 1, Desc: commands.N_SYMBOL_RESOLVER, Value: 0x2000},
		{Name: 28, Type: commands.N_SECT, Sect: 1, Desc: commands.N_ARM_THUMB_DEF, Value: 0x1000},
		{Name: 35, Type: commands.N_SECT, Sect: 1, Value: 0x10},
		{Name: 46, Type: commands.N_SECT | commands.N_EXT, Sect: 1, Desc: commands.N_WEAK_DEF, Value: 0x3000},
	}
	f := symbolImage(t, commands.Width32, syms, strs)

	want := []exec.Symbol{
		{Name: "_undef", Public: true, Value: exec.SymbolValue{Kind: exec.SymUndefined}, Index: 0},
		{Name: "_reexport", Public: true, Value: exec.SymbolValue{Kind: exec.SymReExport, Target: "_target"}, Index: 1},
		{Name: "_resolver", Public: true, Value: exec.SymbolValue{Kind: exec.SymResolver, Addr: 0x2000}, Index: 2},
		{Name: "_thumb", Value: exec.SymbolValue{Kind: exec.SymAddr, Addr: 0x1001}, Index: 3},
		{Name: "<redacted>", Value: exec.SymbolValue{Kind: exec.SymAddr, Addr: 0x10}, Index: 4},
		{Name: "_weak", Public: true, Weak: true, Value: exec.SymbolValue{Kind: exec.SymAddr, Addr: 0x3000}, Index: 5},
	}

	seq, err := f.Symbols(exec.SourceAll)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, slices.Collect(seq)); diff != "" {
		t.Errorf("Symbols() mismatch (-want +got):\n%s", diff)
	}
	// sequences are restartable
	if diff := cmp.Diff(want, slices.Collect(seq)); diff != "" {
		t.Errorf("second iteration mismatch (-want +got):\n%s", diff)
	}

	t.Run("skip redacted", func(t *testing.T) {
		if got := slices.Collect(f.DecodeRange(3, 3, true)); len(got) != 2 || got[1].Name != "_weak" {
			t.Errorf("DecodeRange(3, 3, true) = %+v", got)
		}
		if got := slices.Collect(f.DecodeRange(4, 1, false)); len(got) != 1 || got[0].Name != "<redacted>" {
			t.Errorf("DecodeRange(4, 1, false) = %+v", got)
		}
	})

	t.Run("range clamped", func(t *testing.T) {
		before := f.Warnings().Len()
		if got := slices.Collect(f.DecodeRange(5, 10, false)); len(got) != 1 {
			t.Errorf("DecodeRange(5, 10) returned %d symbols, want 1", len(got))
		}
		if got := slices.Collect(f.DecodeRange(50, 1, false)); len(got) != 0 {
			t.Errorf("DecodeRange(50, 1) returned %d symbols, want 0", len(got))
		}
		if f.Warnings().Len()-before != 2 {
			t.Errorf("expected one warning per clamped range, got %v", f.Warnings().List())
		}
	})

	t.Run("stop early", func(t *testing.T) {
		n := 0
		for range f.DecodeRange(0, 6, false) {
			n++
			if n == 2 {
				break
			}
		}
		if n != 2 {
			t.Errorf("iterated %d symbols", n)
		}
	})

	t.Run("unsupported source", func(t *testing.T) {
		for _, src := range []exec.SymbolSource{exec.SourceImported, exec.SourceExported} {
			if _, err := f.Symbols(src); !errors.Is(err, exec.ErrUnsupported) {
				t.Errorf("Symbols(%d) error = %v, want ErrUnsupported", src, err)
			}
		}
	})
}

func TestSymbolNameOutOfRange(t *testing.T) {
	f := symbolImage(t, commands.Width64, []commands.Nlist{
		{Name: 500, Type: commands.N_SECT, Value: 1},
		{Name: 1, Type: commands.N_INDR, Value: 1000},
	}, []byte("\x00_x\x00"))
	got := slices.Collect(f.DecodeRange(0, 2, false))
	if len(got) != 2 || got[0].Name != "" || got[1].Value.Target != "" || got[1].Name != "_x" {
		t.Errorf("DecodeRange() = %+v", got)
	}
}

func TestIndirectValueInvariant(t *testing.T) {
	f := symbolImage(t, commands.Width64, []commands.Nlist{
		{Name: 1, Type: commands.N_INDR, Value: 0xFFFFFFFF},
	}, []byte("\x00_x\x00"))
	defer func() {
		if _, ok := recover().(exec.InvariantError); !ok {
			t.Fatal("expected an InvariantError panic")
		}
	}()
	for range f.DecodeRange(0, 1, false) {
	}
}

func TestSharedCacheTables(t *testing.T) {
	f := symbolImage(t, commands.Width64, []commands.Nlist{
		{Name: 1, Type: commands.N_SECT, Value: 0x10},
		{Name: 4, Type: commands.N_SECT | commands.N_EXT, Value: 0x20},
	}, []byte("\x00_a\x00<redacted>\x00"))

	o := binary.LittleEndian
	shared := nlists(o, commands.Width64, []commands.Nlist{
		{Name: 1, Type: commands.N_SECT, Value: 0x100},
		{Name: 7, Type: commands.N_SECT, Value: 0x200},
		{Name: 14, Type: commands.N_SECT, Value: 0x300},
	})
	f.SetSharedCacheTables(region(shared), region([]byte("\x00_skip\x00_real1\x00_real2\x00")), 1, 2)

	seq, err := f.Symbols(exec.SourceAll)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for s := range seq {
		names = append(names, s.Name)
	}
	if diff := cmp.Diff([]string{"_real1", "_real2", "_a"}, names); diff != "" {
		t.Errorf("merged symbols mismatch (-want +got):\n%s", diff)
	}
}
