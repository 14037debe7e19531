package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Validate checks every section and returns the first violation.
func Validate(cfg *Config) error {
	if err := validateVersion(cfg); err != nil {
		return err
	}
	if err := validateCache(cfg); err != nil {
		return err
	}
	if err := validateResolver(cfg); err != nil {
		return err
	}
	if err := validateLocal(cfg); err != nil {
		return err
	}
	if err := validateWatch(cfg); err != nil {
		return err
	}
	return nil
}

func validateVersion(cfg *Config) error {
	if cfg.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", cfg.Version)
	}
	if cfg.Version > 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateCache(cfg *Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Compression)) {
	case "zstd", "lz4", "none":
	default:
		return fmt.Errorf("cache.compression must be one of: zstd, lz4, none (got %q)", cfg.Cache.Compression)
	}
	if cfg.Cache.CompressionLevel < 1 || cfg.Cache.CompressionLevel > 22 {
		return fmt.Errorf("cache.compression_level must be between 1 and 22, got %d", cfg.Cache.CompressionLevel)
	}
	if cfg.Cache.MaxMemoryEntries < 1 {
		return fmt.Errorf("cache.max_memory_entries must be >= 1, got %d", cfg.Cache.MaxMemoryEntries)
	}
	if strings.TrimSpace(cfg.Paths.CacheDir) == "" {
		return fmt.Errorf("paths.cache_dir must not be empty")
	}
	return nil
}

func validateResolver(cfg *Config) error {
	if cfg.Resolver.MaxSuggestions < 1 {
		return fmt.Errorf("resolver.max_suggestions must be >= 1, got %d", cfg.Resolver.MaxSuggestions)
	}
	return nil
}

func validateLocal(cfg *Config) error {
	if cfg.Local.Workers < 1 {
		return fmt.Errorf("local.workers must be >= 1, got %d", cfg.Local.Workers)
	}
	if cfg.Local.MaxFilesPerSecond < 0 {
		return fmt.Errorf("local.max_files_per_second must be >= 0, got %v", cfg.Local.MaxFilesPerSecond)
	}
	for i, pattern := range cfg.Local.ExcludeDirs {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("local.exclude_dirs[%d] invalid glob %q: %w", i, pattern, err)
		}
	}
	for i, pattern := range cfg.Local.ExcludeFiles {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("local.exclude_files[%d] invalid glob %q: %w", i, pattern, err)
		}
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}
