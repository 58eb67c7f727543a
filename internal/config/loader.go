package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// legacyEnv maps config keys to the environment variables historically used
// by the impresso S3 tooling.
var legacyEnv = map[string]string{
	"storage.access_key": "SE_ACCESS_KEY",
	"storage.secret_key": "SE_SECRET_KEY",
	"storage.endpoint":   "SE_HOST_URL",
	"storage.region":     "SE_REGION",
	"git.token":          "GIT_TOKEN",
}

// Load loads configuration from file, environment, and defaults
// Uses the global viper instance to access CLI flag bindings
func Load() (*Config, error) {
	return load(viper.GetViper())
}

// LoadWithViper loads configuration and returns the viper instance
// This is useful for merging CLI flags later
func LoadWithViper() (*Config, *viper.Viper, error) {
	v := viper.New()
	cfg, err := load(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())
	v.AddConfigPath(".")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Environment variables (IMPRESSO_*), then the legacy names
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key := range legacyEnv {
		if err := v.BindEnv(append([]string{key}, EnvVars(key)...)...); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate and apply defaults for invalid values
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.backend", DefaultBackend)
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.secure", DefaultSecure)

	// Concurrency defaults
	v.SetDefault("concurrency.workers", DefaultWorkers)
	v.SetDefault("concurrency.timeout", DefaultTimeout)

	// Cache defaults
	v.SetDefault("cache.enabled", DefaultCacheEnabled)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.directory", CacheDir())

	// Git defaults
	v.SetDefault("git.mirror_url", "")
	v.SetDefault("git.branch", "")
	v.SetDefault("git.author_name", DefaultAuthorName)
	v.SetDefault("git.author_email", DefaultAuthorEmail)
	v.SetDefault("git.token", "")

	// Logging defaults
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)

	// Retry defaults
	v.SetDefault("retry.max_retries", DefaultMaxRetries)
	v.SetDefault("retry.initial_interval", DefaultInitialInterval)
	v.SetDefault("retry.max_interval", DefaultMaxInterval)
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0755)
}

// EnsureCacheDir creates the cache directory if it doesn't exist
func EnsureCacheDir() error {
	return os.MkdirAll(CacheDir(), 0755)
}
