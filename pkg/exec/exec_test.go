package exec

import (
	"iter"
	"strings"
	"testing"

	"github.com/blacktop/machorw/pkg/buffer"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

type stubExec struct{ base Base }

func (s *stubExec) ExecBase() *Base { return &s.base }

func (s *stubExec) Symbols(SymbolSource) (iter.Seq[Symbol], error) {
	return nil, Errorf(ErrUnsupported, "stub")
}

// stubProber recognises buffers starting with its name.
type stubProber struct{ name string }

func (p stubProber) Name() string { return p.name }

func (p stubProber) Probe(_ []Prober, buf buffer.Region) []ProbeResult {
	if !strings.HasPrefix(string(buf.Bytes()), p.name) {
		return nil
	}
	return []ProbeResult{{Desc: p.name + " file", Likely: true, Cmd: []string{p.name}}}
}

func (p stubProber) Create(_ []Prober, buf buffer.Region, args []string) (Exec, []string, error) {
	return &stubExec{base: Base{Buf: buf}}, args, nil
}

func TestProbeAll(t *testing.T) {
	probers := []Prober{stubProber{"elf"}, stubProber{"el"}, stubProber{"pe"}}
	got := ProbeAll(probers, buffer.NewArena([]byte("elf...")).Region())
	want := []ProbeResult{
		{Desc: "elf file", Likely: true, Cmd: []string{"elf"}},
		{Desc: "el file", Likely: true, Cmd: []string{"el"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ProbeAll() mismatch (-want +got):\n%s", diff)
	}
}

func TestCreate(t *testing.T) {
	probers := []Prober{stubProber{"elf"}, stubProber{"pe"}}
	buf := buffer.NewArena([]byte("pe")).Region()

	e, rest, err := Create(probers, buf, []string{"pe", "--extra"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.ExecBase().Buf.Len() != 2 {
		t.Errorf("Create() opened %d bytes, want 2", e.ExecBase().Buf.Len())
	}
	if diff := cmp.Diff([]string{"--extra"}, rest); diff != "" {
		t.Errorf("Create() leftovers mismatch (-want +got):\n%s", diff)
	}

	for _, args := range [][]string{nil, {"macho"}} {
		if _, _, err := Create(probers, buf, args); !errors.Is(err, ErrUsage) {
			t.Errorf("Create(%q) error = %v, want ErrUsage", args, err)
		}
	}
}

func TestFormatError(t *testing.T) {
	err := error(&FormatError{Kind: ErrTruncated, Off: 0x20, Msg: "invalid load command size", Val: uint32(4)})
	if !errors.Is(err, ErrTruncated) || errors.Is(err, ErrBadFormat) {
		t.Errorf("errors.Is() on %v picked the wrong kind", err)
	}
	if want := "truncated: invalid load command size '4' in record at byte 0x20"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if err := Errorf(ErrUsage, "bad %s", "flag"); !errors.Is(err, ErrUsage) || err.Error() != "bad flag: usage" {
		t.Errorf("Errorf() = %v", err)
	}
}

func TestInvariant(t *testing.T) {
	Invariant(true, "never")

	defer func() {
		r := recover()
		ie, ok := r.(InvariantError)
		if !ok {
			t.Fatalf("recovered %v, want InvariantError", r)
		}
		if ie.Msg != "value 5 too large" {
			t.Errorf("Msg = %q", ie.Msg)
		}
	}()
	Invariant(false, "value %d too large", 5)
	t.Fatal("Invariant(false) did not panic")
}

func TestStrings(t *testing.T) {
	if got := (Prot{R: true, X: true}).String(); got != "r-x" {
		t.Errorf("Prot.String() = %q", got)
	}
	if got := ArchAArch64.String(); got != "aarch64" {
		t.Errorf("Arch.String() = %q", got)
	}
	if got := (SymbolValue{Kind: SymReExport, Target: "_foo"}).String(); got != "-> _foo" {
		t.Errorf("SymbolValue.String() = %q", got)
	}
	if NewSegment("__X", 0, 0, 0, 0, Prot{}).Origin.Valid() {
		t.Errorf("NewSegment() has a parse origin")
	}
}
