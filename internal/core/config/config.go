package config

import (
	"time"
)

const (
	DefaultConfigFile = "rustyrefactor.toml"
	DefaultCacheDir   = ".rusty-cache"
)

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	Cache         Cache         `toml:"cache"`
	Resolver      Resolver      `toml:"resolver"`
	Local         Local         `toml:"local"`
	History       History       `toml:"history"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	CacheDir    string `toml:"cache_dir"`
}

// Cache mirrors the tiered cache options. Zero sizes and ages mean unlimited.
type Cache struct {
	MaxSizeBytes     uint64 `toml:"max_size_bytes"`
	MaxAgeSecs       uint64 `toml:"max_age_secs"`
	CompressData     *bool  `toml:"compress_data"`
	Compression      string `toml:"compression"`
	CompressionLevel int    `toml:"compression_level"`
	UseHotTier       *bool  `toml:"use_hot_tier"`
	MaxMemoryEntries int    `toml:"max_memory_entries"`
}

type Resolver struct {
	IncludeExternals *bool  `toml:"include_externals"`
	IncludeBuiltins  *bool  `toml:"include_builtins"`
	MaxSuggestions   int    `toml:"max_suggestions"`
	ToolchainVersion string `toml:"toolchain_version"`
}

type Local struct {
	Enabled           *bool    `toml:"enabled"`
	ExcludeDirs       []string `toml:"exclude_dirs"`
	ExcludeFiles      []string `toml:"exclude_files"`
	Workers           int      `toml:"workers"`
	MaxFilesPerSecond float64  `toml:"max_files_per_second"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// DefaultConfig returns a fully defaulted configuration, equivalent to loading
// an empty file.
func DefaultConfig() *Config {
	cfg := baseConfig()
	applyDefaults(cfg)
	return cfg
}

func (c Cache) CompressionEnabled() bool {
	return boolOr(c.CompressData, true)
}

func (c Cache) HotTierEnabled() bool {
	return boolOr(c.UseHotTier, true)
}

func (r Resolver) ExternalsEnabled() bool {
	return boolOr(r.IncludeExternals, true)
}

func (r Resolver) BuiltinsEnabled() bool {
	return boolOr(r.IncludeBuiltins, true)
}

func (l Local) IsEnabled() bool {
	return boolOr(l.Enabled, true)
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
