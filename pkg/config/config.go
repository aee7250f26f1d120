// Package config loads engine settings from a TOML file.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"picojs/pkg/ecma"
)

// Config mirrors the on-disk settings file.
type Config struct {
	Heap  HeapConfig  `toml:"heap"`
	Cache CacheConfig `toml:"cache"`
	Stats bool        `toml:"stats"`
}

// HeapConfig tunes the engine heap.
type HeapConfig struct {
	LimitKB int `toml:"limit_kb"` // 0 disables the budget
}

// CacheConfig tunes the lookup acceleration layers.
type CacheConfig struct {
	LCache           bool `toml:"lcache"`
	Hashmap          bool `toml:"hashmap"`
	HashmapThreshold int  `toml:"hashmap_threshold"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	opts := ecma.DefaultOptions()
	return Config{
		Cache: CacheConfig{
			LCache:           opts.LCache,
			Hashmap:          opts.Hashmap,
			HashmapThreshold: opts.HashmapThreshold,
		},
	}
}

// Load reads a settings file. Keys absent from the file keep their
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config: unknown key %q in %s", undecoded[0].String(), path)
	}
	return cfg, nil
}

// Options converts the configuration into engine options.
func (c Config) Options() ecma.Options {
	return ecma.Options{
		HeapLimit:        c.Heap.LimitKB * 1024,
		LCache:           c.Cache.LCache,
		Hashmap:          c.Cache.Hashmap,
		HashmapThreshold: c.Cache.HashmapThreshold,
		Stats:            c.Stats,
	}
}
