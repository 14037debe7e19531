package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Decode on top of the shipped limits so an explicit 0 in the file keeps
	// its "unlimited" meaning while an absent key keeps the default.
	cfg := baseConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to defaults (plus env
// overrides) when it does not.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		ApplyEnvOverrides(cfg)
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

func baseConfig() *Config {
	return &Config{
		Cache: Cache{
			MaxSizeBytes: 500 * 1024 * 1024,
			MaxAgeSecs:   24 * 60 * 60,
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Paths.CacheDir) == "" {
		cfg.Paths.CacheDir = DefaultCacheDir
	}

	if strings.TrimSpace(cfg.Cache.Compression) == "" {
		cfg.Cache.Compression = "zstd"
	}
	if cfg.Cache.CompressionLevel == 0 {
		cfg.Cache.CompressionLevel = 3
	}
	if cfg.Cache.MaxMemoryEntries <= 0 {
		cfg.Cache.MaxMemoryEntries = 100
	}

	if cfg.Resolver.MaxSuggestions <= 0 {
		cfg.Resolver.MaxSuggestions = 50
	}

	if cfg.Local.ExcludeDirs == nil {
		cfg.Local.ExcludeDirs = []string{"target", ".git", DefaultCacheDir}
	}
	if cfg.Local.Workers <= 0 {
		cfg.Local.Workers = 4
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "history.db"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}

	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "rustyrefactor"
	}
}
