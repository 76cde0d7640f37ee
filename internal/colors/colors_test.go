package colors

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestInit(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	on, off := true, false
	tests := []struct {
		name  string
		start bool
		force *bool
		want  bool
	}{
		{"force on", true, &on, true},
		{"force off", false, &off, false},
		{"nil keeps enabled", false, nil, true},
		{"nil keeps disabled", true, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			color.NoColor = tt.start
			Init(tt.force)
			if Enabled() != tt.want {
				t.Errorf("Enabled() = %t, want %t", Enabled(), tt.want)
			}
		})
	}
}

func TestPalette(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	color.NoColor = true
	if got := Segment("__TEXT"); got != "__TEXT" {
		t.Errorf("Segment() with colors off = %q", got)
	}

	color.NoColor = false
	got := Warn("careful")
	if !strings.Contains(got, "careful") || !strings.Contains(got, "\x1b[") {
		t.Errorf("Warn() with colors on = %q, want an escape sequence", got)
	}
}
