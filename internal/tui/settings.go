package tui

import (
	"fmt"
	"strconv"
	"strings"
)

// setting binds a configuration key to the form value editing it.
type setting struct {
	key    string
	secret bool
	value  func(*ConfigValues) string
	check  func(string) error
}

func (s setting) category() string {
	section, _, _ := strings.Cut(s.key, ".")
	return section
}

var settings = []setting{
	{key: "storage.backend", value: func(v *ConfigValues) string { return v.StorageBackend }, check: validateBackend},
	{key: "storage.endpoint", value: func(v *ConfigValues) string { return v.StorageEndpoint }, check: ValidateEndpoint},
	{key: "storage.access_key", secret: true, value: func(v *ConfigValues) string { return v.StorageAccessKey }},
	{key: "storage.secret_key", secret: true, value: func(v *ConfigValues) string { return v.StorageSecretKey }},
	{key: "storage.region", value: func(v *ConfigValues) string { return v.StorageRegion }},
	{key: "storage.secure", value: func(v *ConfigValues) string { return strconv.FormatBool(v.StorageSecure) }},

	{key: "concurrency.workers", value: func(v *ConfigValues) string { return v.Workers }, check: ValidateIntRange(1, 64)},
	{key: "concurrency.timeout", value: func(v *ConfigValues) string { return v.Timeout }, check: ValidateDuration},

	{key: "cache.enabled", value: func(v *ConfigValues) string { return strconv.FormatBool(v.CacheEnabled) }},
	{key: "cache.ttl", value: func(v *ConfigValues) string { return v.CacheTTL }, check: ValidateDuration},
	{key: "cache.directory", value: func(v *ConfigValues) string { return v.CacheDirectory }},

	{key: "git.mirror_url", value: func(v *ConfigValues) string { return v.GitMirrorURL }, check: ValidateMirrorURL},
	{key: "git.branch", value: func(v *ConfigValues) string { return v.GitBranch }},
	{key: "git.author_name", value: func(v *ConfigValues) string { return v.GitAuthorName }, check: ValidateRequired},
	{key: "git.author_email", value: func(v *ConfigValues) string { return v.GitAuthorEmail }, check: ValidateEmail},
	{key: "git.token", secret: true, value: func(v *ConfigValues) string { return v.GitToken }},

	{key: "logging.level", value: func(v *ConfigValues) string { return v.LogLevel }, check: ValidateLogLevel},
	{key: "logging.format", value: func(v *ConfigValues) string { return v.LogFormat }, check: ValidateLogFormat},

	{key: "retry.max_retries", value: func(v *ConfigValues) string { return v.RetryMaxRetries }, check: ValidateNonNegativeInt},
	{key: "retry.initial_interval", value: func(v *ConfigValues) string { return v.RetryInitialInterval }, check: ValidateDuration},
	{key: "retry.max_interval", value: func(v *ConfigValues) string { return v.RetryMaxInterval }, check: ValidateDuration},
}

func validateBackend(s string) error {
	switch s {
	case "s3", "memory":
		return nil
	}
	return fmt.Errorf("unknown backend %q: must be s3 or memory", s)
}

// invalidSetting reports the first setting of v failing its check.
type invalidSetting struct {
	key      string
	category string
	err      error
}

func (e *invalidSetting) Error() string {
	return fmt.Sprintf("%s: %v", e.key, e.err)
}

func (e *invalidSetting) Unwrap() error { return e.err }

// validateValues runs every setting check in table order, then the checks
// spanning several settings.
func validateValues(v *ConfigValues) *invalidSetting {
	for _, s := range settings {
		if s.check == nil {
			continue
		}
		if err := s.check(s.value(v)); err != nil {
			return &invalidSetting{key: s.key, category: s.category(), err: err}
		}
	}
	if v.StorageAccessKey != "" && v.StorageSecretKey == "" {
		return &invalidSetting{
			key:      "storage.secret_key",
			category: "storage",
			err:      fmt.Errorf("required when an access key is set"),
		}
	}
	return nil
}

// change is one setting edited since the editor opened.
type change struct {
	key  string
	from string
	to   string
}

// changedSettings lists the settings whose value differs between before and
// after, in table order. Secret values are masked.
func changedSettings(before, after *ConfigValues) []change {
	var out []change
	for _, s := range settings {
		from, to := s.value(before), s.value(after)
		if from == to {
			continue
		}
		if s.secret {
			from, to = mask(from), mask(to)
		}
		out = append(out, change{key: s.key, from: from, to: to})
	}
	return out
}

func mask(s string) string {
	if s == "" {
		return "(unset)"
	}
	return "********"
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func storageSummary(v *ConfigValues) string {
	if v.StorageBackend == "memory" {
		return "in-memory"
	}
	parts := []string{orDefault(v.StorageEndpoint, "AWS endpoint")}
	if v.StorageAccessKey == "" {
		parts = append(parts, "no credentials")
	}
	if v.StorageSecure {
		parts = append(parts, "TLS")
	}
	return strings.Join(parts, " · ")
}

func concurrencySummary(v *ConfigValues) string {
	return fmt.Sprintf("%s workers · %s timeout", orDefault(v.Workers, "default"), orDefault(v.Timeout, "default"))
}

func cacheSummary(v *ConfigValues) string {
	if !v.CacheEnabled {
		return "off"
	}
	return "ttl " + orDefault(v.CacheTTL, "default")
}

func gitSummary(v *ConfigValues) string {
	if v.GitMirrorURL == "" {
		return "no mirror"
	}
	return v.GitMirrorURL + " @ " + orDefault(v.GitBranch, "remote default")
}

func loggingSummary(v *ConfigValues) string {
	return v.LogLevel + " · " + v.LogFormat
}

func retrySummary(v *ConfigValues) string {
	return fmt.Sprintf("%s retries · %s to %s",
		orDefault(v.RetryMaxRetries, "default"),
		orDefault(v.RetryInitialInterval, "default"),
		orDefault(v.RetryMaxInterval, "default"))
}
