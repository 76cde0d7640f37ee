package cmd

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/machorw/internal/config"
	"github.com/blacktop/machorw/pkg/buffer"
	"github.com/blacktop/machorw/pkg/exec"
	"github.com/blacktop/machorw/pkg/macho"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// thinHeader is an x86_64 dylib header with no load commands.
func thinHeader() []byte {
	b := make([]byte, 32)
	binary.LittleEndian.PutUint32(b[0:], 0xfeedfacf)
	binary.LittleEndian.PutUint32(b[4:], 0x01000007)
	binary.LittleEndian.PutUint32(b[8:], 3)
	binary.LittleEndian.PutUint32(b[12:], 6)
	return b
}

func TestDefaultCmd(t *testing.T) {
	probers := macho.Probers(&macho.Warnings{})

	conf := &config.Config{}
	got, err := defaultCmd(probers, buffer.NewArena(thinHeader()).Region(), conf)
	if err != nil {
		t.Fatalf("defaultCmd() error = %v", err)
	}
	if diff := cmp.Diff([]string{"macho"}, got); diff != "" {
		t.Errorf("defaultCmd() mismatch (-want +got):\n%s", diff)
	}

	if _, err := defaultCmd(probers, buffer.NewArena([]byte("not a binary")).Region(), conf); !errors.Is(err, exec.ErrBadFormat) {
		t.Errorf("defaultCmd(text) error = %v, want ErrBadFormat", err)
	}

	conf.Parse.HeaderOffset = 64
	got, err = defaultCmd(probers, buffer.NewArena(nil).Region(), conf)
	if err != nil {
		t.Fatalf("defaultCmd() error = %v", err)
	}
	if diff := cmp.Diff([]string{"macho", "--header-offset", "64"}, got); diff != "" {
		t.Errorf("defaultCmd() mismatch (-want +got):\n%s", diff)
	}
}

func TestSplice(t *testing.T) {
	file := buffer.NewArena([]byte("AAAABBBBCCCC")).Region()

	whole := splice(file, file, []byte("xxxxxxxxxxxx"))
	if string(whole) != "xxxxxxxxxxxx" {
		t.Errorf("splice(whole) = %q", whole)
	}

	slice, err := file.Slice(4, 8)
	if err != nil {
		t.Fatal(err)
	}
	got := splice(file, slice, []byte("bbbb"))
	if string(got) != "AAAAbbbbCCCC" {
		t.Errorf("splice(slice) = %q", got)
	}
	if string(file.Bytes()) != "AAAABBBBCCCC" {
		t.Errorf("splice modified its input: %q", file.Bytes())
	}
}

func TestDescribe(t *testing.T) {
	b := thinHeader()
	binary.LittleEndian.PutUint32(b[16:], 1)
	binary.LittleEndian.PutUint32(b[20:], 24)
	cmd := make([]byte, 24)
	binary.LittleEndian.PutUint32(cmd[0:], 0x1b) // LC_UUID
	binary.LittleEndian.PutUint32(cmd[4:], 24)
	for i := range 16 {
		cmd[8+i] = byte(i)
	}
	b = append(b, cmd...)

	path := filepath.Join(t.TempDir(), "libtest.dylib")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}
	conf := &config.Config{}
	conf.Parse.MaxSize = 1 << 20

	rep, err := describe(path, conf, true)
	if err != nil {
		t.Fatalf("describe() error = %v", err)
	}
	if len(rep.Containers) != 1 {
		t.Fatalf("describe() found %d containers, want 1", len(rep.Containers))
	}
	c := rep.Containers[0]
	want := containerReport{
		Desc:    "Mach-O dylib/x86_64",
		Arch:    "x86_64",
		Likely:  true,
		Cmd:     []string{"macho"},
		UUID:    "00010203-0405-0607-0809-0a0b0c0d0e0f",
		Flags:   "None",
		NCmds:   1,
		CmdSize: 24,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("describe() mismatch (-want +got):\n%s", diff)
	}
	if len(rep.Warnings) != 0 {
		t.Errorf("describe() warnings = %q", rep.Warnings)
	}

	conf.Parse.MaxSize = 16
	if _, err := describe(path, conf, true); err == nil {
		t.Errorf("describe() ignored parse.max-size")
	}
}
