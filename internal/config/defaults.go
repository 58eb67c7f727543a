package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values
const (
	// Storage defaults
	DefaultBackend = BackendS3
	DefaultSecure  = true

	// Concurrency defaults
	DefaultWorkers = 4
	DefaultTimeout = 5 * time.Minute

	// Cache defaults
	DefaultCacheEnabled = true
	DefaultCacheTTL     = 7 * 24 * time.Hour

	// Git defaults
	DefaultAuthorName  = "impresso-bot"
	DefaultAuthorEmail = "impresso-bot@users.noreply.github.com"

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"

	// Retry defaults
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 1 * time.Second
	DefaultMaxInterval     = 30 * time.Second
)

// ConfigDir returns the config directory path
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".impresso"
	}
	return filepath.Join(home, ".impresso")
}

// CacheDir returns the cache directory path
func CacheDir() string {
	return filepath.Join(ConfigDir(), "cache")
}

// ConfigFilePath returns the config file path
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: DefaultBackend,
			Secure:  DefaultSecure,
		},
		Concurrency: ConcurrencyConfig{
			Workers: DefaultWorkers,
			Timeout: DefaultTimeout,
		},
		Cache: CacheConfig{
			Enabled:   DefaultCacheEnabled,
			TTL:       DefaultCacheTTL,
			Directory: CacheDir(),
		},
		Git: GitConfig{
			AuthorName:  DefaultAuthorName,
			AuthorEmail: DefaultAuthorEmail,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Retry: RetryConfig{
			MaxRetries:      DefaultMaxRetries,
			InitialInterval: DefaultInitialInterval,
			MaxInterval:     DefaultMaxInterval,
		},
	}
}
