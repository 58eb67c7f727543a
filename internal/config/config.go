package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/impresso/impresso-essentials-go/internal/domain"
)

// Storage backends
const (
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Config represents the application configuration
type Config struct {
	Storage     StorageConfig     `mapstructure:"storage" yaml:"storage"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Git         GitConfig         `mapstructure:"git" yaml:"git"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Retry       RetryConfig       `mapstructure:"retry" yaml:"retry"`
}

// StorageConfig contains S3-compatible object storage settings
type StorageConfig struct {
	Backend   string `mapstructure:"backend" yaml:"backend"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Region    string `mapstructure:"region" yaml:"region"`
	Secure    bool   `mapstructure:"secure" yaml:"secure"`
}

// ConcurrencyConfig contains concurrency settings
type ConcurrencyConfig struct {
	Workers int           `mapstructure:"workers" yaml:"workers"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CacheConfig contains archive statistics cache settings
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Directory string        `mapstructure:"directory" yaml:"directory"`
}

// GitConfig contains settings of the manifest mirror repository
type GitConfig struct {
	MirrorURL   string `mapstructure:"mirror_url" yaml:"mirror_url"`
	Branch      string `mapstructure:"branch" yaml:"branch"` // empty follows the remote HEAD
	AuthorName  string `mapstructure:"author_name" yaml:"author_name"`
	AuthorEmail string `mapstructure:"author_email" yaml:"author_email"`
	Token       string `mapstructure:"token" yaml:"token"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// RetryConfig contains backoff settings for storage and git operations
type RetryConfig struct {
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Concurrency.Workers < 1 {
		c.Concurrency.Workers = DefaultWorkers
	}
	if c.Concurrency.Timeout < time.Second {
		c.Concurrency.Timeout = DefaultTimeout
	}
	if c.Cache.TTL < time.Minute {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = DefaultMaxRetries
	}
	if c.Retry.InitialInterval <= 0 {
		c.Retry.InitialInterval = DefaultInitialInterval
	}
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		c.Retry.MaxInterval = DefaultMaxInterval
	}
	if c.Git.AuthorName == "" {
		c.Git.AuthorName = DefaultAuthorName
	}
	if c.Git.AuthorEmail == "" {
		c.Git.AuthorEmail = DefaultAuthorEmail
	}

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch c.Storage.Backend {
	case "":
		c.Storage.Backend = BackendS3
	case BackendS3, BackendMemory:
	default:
		return domain.NewConfigurationError("storage.backend",
			fmt.Sprintf("unknown backend %q (expected %q or %q)", c.Storage.Backend, BackendS3, BackendMemory))
	}

	if c.Storage.Endpoint != "" {
		host, secure, err := normalizeEndpoint(c.Storage.Endpoint, c.Storage.Secure)
		if err != nil {
			return domain.NewConfigurationError("storage.endpoint", err.Error())
		}
		c.Storage.Endpoint = host
		c.Storage.Secure = secure
	}
	return nil
}

// normalizeEndpoint accepts either a bare host[:port] or a URL; the scheme of
// a URL decides whether TLS is used.
func normalizeEndpoint(endpoint string, secure bool) (string, bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/"), secure, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, err
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("no host in %q", endpoint)
	}
	switch u.Scheme {
	case "https":
		return u.Host, true, nil
	case "http":
		return u.Host, false, nil
	default:
		return "", false, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}
