// Package config is used to load the configuration file
package config

import (
	"fmt"
	"reflect"

	"github.com/dustin/go-humanize"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// DefaultMaxSize bounds the size of an input file when none is configured.
const DefaultMaxSize = "1GB"

// ByteSize is a size in bytes, written in config files as "64MiB", "1GB", ...
type ByteSize uint64

func (b ByteSize) String() string { return humanize.Bytes(uint64(b)) }

type parse struct {
	MaxSize      ByteSize `mapstructure:"max-size"`
	HeaderOffset int      `mapstructure:"header-offset"`
}

type symbols struct {
	SkipRedacted bool `mapstructure:"skip-redacted"`
}

type output struct {
	// Color forces colors on or off; nil auto-detects from the terminal.
	Color *bool `mapstructure:"color"`
}

// Config is the configuration struct
type Config struct {
	Parse   parse   `mapstructure:"parse"`
	Symbols symbols `mapstructure:"symbols"`
	Output  output  `mapstructure:"output"`
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("parse.max-size", DefaultMaxSize)
	v.SetDefault("parse.header-offset", 0)
	v.SetDefault("symbols.skip-redacted", true)
}

// MaxBytes is parse.max-size in bytes.
func (c *Config) MaxBytes() uint64 { return uint64(c.Parse.MaxSize) }

// byteSizeHook decodes human readable sizes into ByteSize fields.
func byteSizeHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeFor[ByteSize]() || from.Kind() != reflect.String {
		return data, nil
	}
	n, err := humanize.ParseBytes(data.(string))
	if err != nil {
		return nil, fmt.Errorf("invalid size %q: %v", data, err)
	}
	return ByteSize(n), nil
}

func (c *Config) verify() error {
	if c.Parse.MaxSize == 0 {
		return fmt.Errorf("parse.max-size must be greater than zero")
	}
	if c.Parse.HeaderOffset < 0 {
		return fmt.Errorf("parse.header-offset cannot be negative: %d", c.Parse.HeaderOffset)
	}
	return nil
}

// LoadConfig loads the configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load unmarshals and verifies the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	var c *Config

	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		byteSizeHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&c, hooks); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}
	if c == nil {
		c = &Config{}
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %v", err)
	}

	return c, nil
}
