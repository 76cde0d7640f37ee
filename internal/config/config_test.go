package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestLoad(t *testing.T) {
	on := true
	tests := []struct {
		name    string
		yaml    string
		want    uint64
		offset  int
		skip    bool
		color   *bool
		wantErr string
	}{
		{
			name: "defaults",
			want: 1000 * 1000 * 1000,
			skip: true,
		},
		{
			name:   "explicit",
			yaml:   "parse:\n  max-size: 64MiB\n  header-offset: 4096\nsymbols:\n  skip-redacted: false\noutput:\n  color: true\n",
			want:   64 << 20,
			offset: 4096,
			color:  &on,
		},
		{
			name:    "zero size",
			yaml:    "parse:\n  max-size: 0B\n",
			wantErr: "greater than zero",
		},
		{
			name:    "bad size",
			yaml:    "parse:\n  max-size: lots\n",
			wantErr: "invalid size",
		},
		{
			name:    "negative offset",
			yaml:    "parse:\n  header-offset: -8\n",
			wantErr: "cannot be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.SetConfigType("yaml")
			if err := v.ReadConfig(strings.NewReader(tt.yaml)); err != nil {
				t.Fatalf("ReadConfig() error = %v", err)
			}
			c, err := Load(v)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if c.MaxBytes() != tt.want {
				t.Errorf("MaxBytes() = %d, want %d", c.MaxBytes(), tt.want)
			}
			if c.Parse.HeaderOffset != tt.offset {
				t.Errorf("HeaderOffset = %d, want %d", c.Parse.HeaderOffset, tt.offset)
			}
			if (c.Output.Color == nil) != (tt.color == nil) || (c.Output.Color != nil && *c.Output.Color != *tt.color) {
				t.Errorf("Output.Color = %v, want %v", c.Output.Color, tt.color)
			}
			if c.Symbols.SkipRedacted != tt.skip {
				t.Errorf("SkipRedacted = %t, want %t", c.Symbols.SkipRedacted, tt.skip)
			}
		})
	}
}
