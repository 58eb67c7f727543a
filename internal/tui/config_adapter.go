package tui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/impresso/impresso-essentials-go/internal/config"
)

// ConfigValues holds form values that map to Config struct.
// Numeric and duration fields are stored as strings for form editing.
type ConfigValues struct {
	StorageBackend   string
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageRegion    string
	StorageSecure    bool

	Workers string
	Timeout string

	CacheEnabled   bool
	CacheTTL       string
	CacheDirectory string

	GitMirrorURL   string
	GitBranch      string
	GitAuthorName  string
	GitAuthorEmail string
	GitToken       string

	LogLevel  string
	LogFormat string

	RetryMaxRetries      string
	RetryInitialInterval string
	RetryMaxInterval     string
}

// FromConfig converts a Config to ConfigValues for form editing
func FromConfig(cfg *config.Config) *ConfigValues {
	return &ConfigValues{
		StorageBackend:   cfg.Storage.Backend,
		StorageEndpoint:  cfg.Storage.Endpoint,
		StorageAccessKey: cfg.Storage.AccessKey,
		StorageSecretKey: cfg.Storage.SecretKey,
		StorageRegion:    cfg.Storage.Region,
		StorageSecure:    cfg.Storage.Secure,

		Workers: strconv.Itoa(cfg.Concurrency.Workers),
		Timeout: formatDuration(cfg.Concurrency.Timeout),

		CacheEnabled:   cfg.Cache.Enabled,
		CacheTTL:       formatDuration(cfg.Cache.TTL),
		CacheDirectory: cfg.Cache.Directory,

		GitMirrorURL:   cfg.Git.MirrorURL,
		GitBranch:      cfg.Git.Branch,
		GitAuthorName:  cfg.Git.AuthorName,
		GitAuthorEmail: cfg.Git.AuthorEmail,
		GitToken:       cfg.Git.Token,

		LogLevel:  cfg.Logging.Level,
		LogFormat: cfg.Logging.Format,

		RetryMaxRetries:      strconv.Itoa(cfg.Retry.MaxRetries),
		RetryInitialInterval: formatDuration(cfg.Retry.InitialInterval),
		RetryMaxInterval:     formatDuration(cfg.Retry.MaxInterval),
	}
}

// ToConfig converts ConfigValues back to a Config struct
func (v *ConfigValues) ToConfig() (*config.Config, error) {
	workers, err := parseIntOrDefault(v.Workers, config.DefaultWorkers)
	if err != nil {
		return nil, fmt.Errorf("invalid workers: %w", err)
	}

	timeout, err := parseDurationOrDefault(v.Timeout, config.DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout: %w", err)
	}

	cacheTTL, err := parseDurationOrDefault(v.CacheTTL, config.DefaultCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid cache_ttl: %w", err)
	}

	maxRetries, err := parseIntOrDefault(v.RetryMaxRetries, config.DefaultMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("invalid max_retries: %w", err)
	}

	initialInterval, err := parseDurationOrDefault(v.RetryInitialInterval, config.DefaultInitialInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid initial_interval: %w", err)
	}

	maxInterval, err := parseDurationOrDefault(v.RetryMaxInterval, config.DefaultMaxInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid max_interval: %w", err)
	}

	cfg := &config.Config{
		Storage: config.StorageConfig{
			Backend:   v.StorageBackend,
			Endpoint:  v.StorageEndpoint,
			AccessKey: v.StorageAccessKey,
			SecretKey: v.StorageSecretKey,
			Region:    v.StorageRegion,
			Secure:    v.StorageSecure,
		},
		Concurrency: config.ConcurrencyConfig{
			Workers: workers,
			Timeout: timeout,
		},
		Cache: config.CacheConfig{
			Enabled:   v.CacheEnabled,
			TTL:       cacheTTL,
			Directory: v.CacheDirectory,
		},
		Git: config.GitConfig{
			MirrorURL:   v.GitMirrorURL,
			Branch:      v.GitBranch,
			AuthorName:  v.GitAuthorName,
			AuthorEmail: v.GitAuthorEmail,
			Token:       v.GitToken,
		},
		Logging: config.LoggingConfig{
			Level:  v.LogLevel,
			Format: v.LogFormat,
		},
		Retry: config.RetryConfig{
			MaxRetries:      maxRetries,
			InitialInterval: initialInterval,
			MaxInterval:     maxInterval,
		},
	}

	return cfg, nil
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func parseDurationOrDefault(s string, defaultVal time.Duration) (time.Duration, error) {
	if s == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(s)
}

func parseIntOrDefault(s string, defaultVal int) (int, error) {
	if s == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(s)
}
