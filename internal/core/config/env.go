package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: RUSTY_[SECTION]_[KEY] (e.g., RUSTY_CACHE_MAX_SIZE_BYTES).
func ApplyEnvOverrides(cfg *Config) {
	// Paths
	setEnvString(&cfg.Paths.ProjectRoot, "RUSTY_PATHS_PROJECT_ROOT")
	setEnvString(&cfg.Paths.CacheDir, "RUSTY_PATHS_CACHE_DIR")

	// Cache
	setEnvUint64(&cfg.Cache.MaxSizeBytes, "RUSTY_CACHE_MAX_SIZE_BYTES")
	setEnvUint64(&cfg.Cache.MaxAgeSecs, "RUSTY_CACHE_MAX_AGE_SECS")
	setEnvBoolPtr(&cfg.Cache.CompressData, "RUSTY_CACHE_COMPRESS_DATA")
	setEnvString(&cfg.Cache.Compression, "RUSTY_CACHE_COMPRESSION")
	setEnvInt(&cfg.Cache.CompressionLevel, "RUSTY_CACHE_COMPRESSION_LEVEL")
	setEnvBoolPtr(&cfg.Cache.UseHotTier, "RUSTY_CACHE_USE_HOT_TIER")
	setEnvInt(&cfg.Cache.MaxMemoryEntries, "RUSTY_CACHE_MAX_MEMORY_ENTRIES")

	// Resolver
	setEnvBoolPtr(&cfg.Resolver.IncludeExternals, "RUSTY_RESOLVER_INCLUDE_EXTERNALS")
	setEnvBoolPtr(&cfg.Resolver.IncludeBuiltins, "RUSTY_RESOLVER_INCLUDE_BUILTINS")
	setEnvInt(&cfg.Resolver.MaxSuggestions, "RUSTY_RESOLVER_MAX_SUGGESTIONS")
	setEnvString(&cfg.Resolver.ToolchainVersion, "RUSTY_RESOLVER_TOOLCHAIN_VERSION")

	// Local extraction
	setEnvBoolPtr(&cfg.Local.Enabled, "RUSTY_LOCAL_ENABLED")
	setEnvInt(&cfg.Local.Workers, "RUSTY_LOCAL_WORKERS")
	setEnvFloat64(&cfg.Local.MaxFilesPerSecond, "RUSTY_LOCAL_MAX_FILES_PER_SECOND")

	// History
	setEnvBool(&cfg.History.Enabled, "RUSTY_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "RUSTY_HISTORY_PATH")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "RUSTY_WATCH_DEBOUNCE")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "RUSTY_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "RUSTY_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvString(&cfg.Observability.ServiceName, "RUSTY_OBSERVABILITY_SERVICE_NAME")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		log.Printf("Applying env override: %s=%s", key, val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = i
		}
	}
}

func setEnvUint64(target *uint64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if u, err := strconv.ParseUint(val, 10, 64); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = u
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = b
		}
	}
}

func setEnvBoolPtr(target **bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = &b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = d
		}
	}
}
