package buffer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestRegionSlice(t *testing.T) {
	r := NewArena([]byte("0123456789")).Region()

	tests := []struct {
		name    string
		from    int
		to      int
		want    string
		wantErr bool
	}{
		{name: "whole", from: 0, to: 10, want: "0123456789"},
		{name: "middle", from: 2, to: 5, want: "234"},
		{name: "empty at end", from: 10, to: 10, want: ""},
		{name: "past end", from: 8, to: 11, wantErr: true},
		{name: "start past end", from: 11, to: 11, wantErr: true},
		{name: "reversed", from: 5, to: 4, wantErr: true},
		{name: "negative", from: -1, to: 4, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Slice(tt.from, tt.to)
			if tt.wantErr {
				if !errors.Is(err, ErrOutOfRange) {
					t.Fatalf("Slice(%d, %d) error = %v, want ErrOutOfRange", tt.from, tt.to, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Slice(%d, %d) unexpected error: %v", tt.from, tt.to, err)
			}
			if string(got.Bytes()) != tt.want {
				t.Errorf("Slice(%d, %d) = %q, want %q", tt.from, tt.to, got.Bytes(), tt.want)
			}
		})
	}
}

func TestRegionNestedSlice(t *testing.T) {
	r := NewArena([]byte("0123456789")).Region()
	outer, err := r.Slice(2, 8)
	if err != nil {
		t.Fatal(err)
	}
	inner, err := outer.Slice(1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if string(inner.Bytes()) != "34" {
		t.Fatalf("inner = %q, want %q", inner.Bytes(), "34")
	}
	if inner.Start() != 3 {
		t.Errorf("inner.Start() = %d, want 3", inner.Start())
	}
	off, ok := inner.OffsetIn(outer)
	if !ok || off != 1 {
		t.Errorf("OffsetIn(outer) = %d, %v; want 1, true", off, ok)
	}
	if _, ok := outer.OffsetIn(inner); ok {
		t.Error("outer should not be contained in inner")
	}
	other := NewArena([]byte("0123456789")).Region()
	if _, ok := inner.OffsetIn(other); ok {
		t.Error("regions from different arenas must not report containment")
	}
}

func TestMapFile(t *testing.T) {
	dir := t.TempDir()
	want := bytes.Repeat([]byte{0xcf, 0xfa, 0xed, 0xfe}, 64)
	path := filepath.Join(dir, "bin")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := MapFile(path)
	if err != nil {
		t.Fatalf("MapFile() error = %v", err)
	}
	if !bytes.Equal(a.Region().Bytes(), want) {
		t.Error("mapped contents differ from file")
	}

	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	a, err = MapFile(empty)
	if err != nil {
		t.Fatalf("MapFile(empty) error = %v", err)
	}
	if a.Len() != 0 {
		t.Errorf("empty arena Len() = %d", a.Len())
	}
}

func TestReadWriteBuffer(t *testing.T) {
	rw := NewReadWriteBuffer([]byte("abcdef"), 8)
	if _, err := rw.WriteAt([]byte("XY"), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := rw.WriteAt([]byte("gh"), 6); err != nil {
		t.Fatal(err)
	}
	if got := string(rw.Bytes()); got != "aXYdefgh" {
		t.Fatalf("Bytes() = %q", got)
	}
	if _, err := rw.WriteAt([]byte("!"), 8); err == nil {
		t.Error("expected write past maximum to fail")
	}
	rw.Zero(6, 10)
	if got := rw.Bytes(); got[6] != 0 || got[7] != 0 || rw.Size() != 8 {
		t.Errorf("Zero() left %q", got)
	}
	buf := make([]byte, 3)
	if n, err := rw.ReadAt(buf, 0); err != nil || n != 3 || string(buf) != "aXY" {
		t.Errorf("ReadAt() = %d, %v, %q", n, err, buf)
	}
}
