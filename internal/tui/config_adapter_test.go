package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impresso/impresso-essentials-go/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			Backend:   "s3",
			Endpoint:  "os.zhdk.cloud.switch.ch",
			AccessKey: "AKIA-TEST",
			SecretKey: "secret",
			Region:    "",
			Secure:    true,
		},
		Concurrency: config.ConcurrencyConfig{
			Workers: 8,
			Timeout: 90 * time.Second,
		},
		Cache: config.CacheConfig{
			Enabled:   true,
			TTL:       48 * time.Hour,
			Directory: "/tmp/impresso-cache",
		},
		Git: config.GitConfig{
			MirrorURL:   "https://github.com/impresso/impresso-data-release.git",
			Branch:      "master",
			AuthorName:  "impresso-bot",
			AuthorEmail: "bot@impresso-project.ch",
			Token:       "ghp_test",
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "json",
		},
		Retry: config.RetryConfig{
			MaxRetries:      5,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     20 * time.Second,
		},
	}
}

func TestFromConfig(t *testing.T) {
	values := FromConfig(testConfig())

	assert.Equal(t, "s3", values.StorageBackend)
	assert.Equal(t, "os.zhdk.cloud.switch.ch", values.StorageEndpoint)
	assert.Equal(t, "AKIA-TEST", values.StorageAccessKey)
	assert.Equal(t, "secret", values.StorageSecretKey)
	assert.True(t, values.StorageSecure)

	assert.Equal(t, "8", values.Workers)
	assert.Equal(t, "1m30s", values.Timeout)

	assert.True(t, values.CacheEnabled)
	assert.Equal(t, "48h0m0s", values.CacheTTL)
	assert.Equal(t, "/tmp/impresso-cache", values.CacheDirectory)

	assert.Equal(t, "https://github.com/impresso/impresso-data-release.git", values.GitMirrorURL)
	assert.Equal(t, "master", values.GitBranch)
	assert.Equal(t, "impresso-bot", values.GitAuthorName)
	assert.Equal(t, "bot@impresso-project.ch", values.GitAuthorEmail)
	assert.Equal(t, "ghp_test", values.GitToken)

	assert.Equal(t, "debug", values.LogLevel)
	assert.Equal(t, "json", values.LogFormat)

	assert.Equal(t, "5", values.RetryMaxRetries)
	assert.Equal(t, "500ms", values.RetryInitialInterval)
	assert.Equal(t, "20s", values.RetryMaxInterval)
}

func TestFromConfig_ZeroDurations(t *testing.T) {
	values := FromConfig(&config.Config{})

	assert.Equal(t, "", values.Timeout)
	assert.Equal(t, "", values.CacheTTL)
	assert.Equal(t, "0", values.Workers)
}

func TestToConfig_RoundTrip(t *testing.T) {
	original := testConfig()

	cfg, err := FromConfig(original).ToConfig()
	require.NoError(t, err)
	assert.Equal(t, original, cfg)
}

func TestToConfig_Defaults(t *testing.T) {
	cfg, err := (&ConfigValues{}).ToConfig()
	require.NoError(t, err)

	assert.Equal(t, config.DefaultWorkers, cfg.Concurrency.Workers)
	assert.Equal(t, config.DefaultTimeout, cfg.Concurrency.Timeout)
	assert.Equal(t, config.DefaultCacheTTL, cfg.Cache.TTL)
	assert.Equal(t, config.DefaultMaxRetries, cfg.Retry.MaxRetries)
	assert.Equal(t, config.DefaultInitialInterval, cfg.Retry.InitialInterval)
	assert.Equal(t, config.DefaultMaxInterval, cfg.Retry.MaxInterval)
}

func TestToConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConfigValues)
		want   string
	}{
		{name: "workers", mutate: func(v *ConfigValues) { v.Workers = "many" }, want: "invalid workers"},
		{name: "timeout", mutate: func(v *ConfigValues) { v.Timeout = "5" }, want: "invalid timeout"},
		{name: "cache_ttl", mutate: func(v *ConfigValues) { v.CacheTTL = "week" }, want: "invalid cache_ttl"},
		{name: "max_retries", mutate: func(v *ConfigValues) { v.RetryMaxRetries = "x" }, want: "invalid max_retries"},
		{name: "initial_interval", mutate: func(v *ConfigValues) { v.RetryInitialInterval = "1" }, want: "invalid initial_interval"},
		{name: "max_interval", mutate: func(v *ConfigValues) { v.RetryMaxInterval = "?" }, want: "invalid max_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := FromConfig(testConfig())
			tt.mutate(values)

			_, err := values.ToConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
