package tui

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Validation error messages
var (
	ErrRequired      = errors.New("this field is required")
	ErrInvalidNumber = errors.New("must be a valid number")
	ErrPositiveInt   = errors.New("must be a positive integer")
	ErrNegativeInt   = errors.New("must not be negative")
	ErrInvalidRange  = errors.New("value out of valid range")
)

// ValidateRequired ensures a string value is not empty
func ValidateRequired(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrRequired
	}
	return nil
}

// ValidateDuration validates that a string can be parsed as a time.Duration
func ValidateDuration(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil // Empty is valid (will use default)
	}
	_, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration format (use: 30s, 5m, 1h): %w", err)
	}
	return nil
}

// ValidatePositiveInt validates that a string represents a positive integer
func ValidatePositiveInt(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil // Empty is valid (will use default)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return ErrInvalidNumber
	}
	if n < 1 {
		return ErrPositiveInt
	}
	return nil
}

// ValidateNonNegativeInt validates that a string represents an integer >= 0
func ValidateNonNegativeInt(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return ErrInvalidNumber
	}
	if n < 0 {
		return ErrNegativeInt
	}
	return nil
}

// ValidateIntRange validates that a string represents an integer within a range
func ValidateIntRange(min, max int) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return ErrInvalidNumber
		}
		if n < min || n > max {
			return fmt.Errorf("%w: must be between %d and %d", ErrInvalidRange, min, max)
		}
		return nil
	}
}

// ValidateEndpoint accepts an empty value, a host[:port] or an http(s) URL
func ValidateEndpoint(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if !strings.Contains(s, "://") {
		if strings.ContainsAny(s, " /") && !strings.HasSuffix(s, "/") {
			return fmt.Errorf("invalid endpoint: use host[:port] or a URL")
		}
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid endpoint URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint scheme %q: must be http or https", u.Scheme)
	}
	return nil
}

// ValidateMirrorURL accepts an empty value, an http(s) repository URL, a
// file:// URL or an absolute path. SSH remotes are refused: pushes
// authenticate with git.token only.
func ValidateMirrorURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "git@") {
		return fmt.Errorf("ssh remotes are not supported: use an https URL and a token")
	}
	if !strings.Contains(s, "://") {
		if filepath.IsAbs(s) {
			return nil
		}
		return fmt.Errorf("invalid mirror: use an https URL or an absolute path")
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid mirror URL")
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" || strings.Trim(u.Path, "/") == "" {
			return fmt.Errorf("invalid mirror URL: missing host or repository path")
		}
	case "file":
		if u.Path == "" {
			return fmt.Errorf("invalid mirror URL: missing path")
		}
	case "ssh":
		return fmt.Errorf("ssh remotes are not supported: use an https URL and a token")
	default:
		return fmt.Errorf("invalid mirror scheme %q: must be https, http or file", u.Scheme)
	}
	return nil
}

// ValidateEmail checks the rough shape of an email address
func ValidateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || !strings.Contains(domain, ".") {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// ValidateLogLevel validates log level values
func ValidateLogLevel(s string) error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}
	if !validLevels[strings.ToLower(s)] {
		return fmt.Errorf("invalid log level: must be one of trace, debug, info, warn, error, fatal, panic")
	}
	return nil
}

// ValidateLogFormat validates log format values
func ValidateLogFormat(s string) error {
	validFormats := map[string]bool{
		"json":   true,
		"pretty": true,
	}
	if !validFormats[strings.ToLower(s)] {
		return fmt.Errorf("invalid log format: must be json or pretty")
	}
	return nil
}
