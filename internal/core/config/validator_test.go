package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"bad version", func(c *Config) { c.Version = 3 }, "unsupported config version"},
		{"bad compression", func(c *Config) { c.Cache.Compression = "gzip" }, "cache.compression"},
		{"bad level", func(c *Config) { c.Cache.CompressionLevel = 40 }, "compression_level"},
		{"bad memory entries", func(c *Config) { c.Cache.MaxMemoryEntries = 0 }, "max_memory_entries"},
		{"empty cache dir", func(c *Config) { c.Paths.CacheDir = " " }, "paths.cache_dir"},
		{"bad suggestions", func(c *Config) { c.Resolver.MaxSuggestions = 0 }, "max_suggestions"},
		{"bad workers", func(c *Config) { c.Local.Workers = 0 }, "local.workers"},
		{"bad dir glob", func(c *Config) { c.Local.ExcludeDirs = []string{"[abc"} }, "invalid glob"},
		{"bad file glob", func(c *Config) { c.Local.ExcludeFiles = []string{"[x"} }, "exclude_files[0]"},
		{"negative rate", func(c *Config) { c.Local.MaxFilesPerSecond = -1 }, "max_files_per_second"},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -1 }, "watch.debounce"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestValidate_AcceptsAllCodecs(t *testing.T) {
	for _, codec := range []string{"zstd", "lz4", "none", "ZSTD"} {
		cfg := DefaultConfig()
		cfg.Cache.Compression = codec
		assert.NoError(t, Validate(cfg), codec)
	}
}
