package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/impresso/impresso-essentials-go/internal/domain"
)

const configField = "config_file"

// Loader loads and validates run configuration files
type Loader struct{}

// NewLoader creates a new run configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses a run configuration file from the given path
func (l *Loader) Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, domain.WrapConfigurationError(configField, fmt.Errorf("%w: %s", ErrFileNotFound, path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapConfigurationError(configField, fmt.Errorf("failed to read run configuration: %w", err))
	}

	return l.LoadFromBytes(data, filepath.Ext(path))
}

// LoadFromBytes parses a run configuration from raw bytes
func (l *Loader) LoadFromBytes(data []byte, ext string) (*Config, error) {
	ext = strings.ToLower(ext)

	var cfg Config
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, domain.WrapConfigurationError(configField, fmt.Errorf("%w: %v", ErrInvalidFormat, err))
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, domain.WrapConfigurationError(configField, fmt.Errorf("%w: %v", ErrInvalidFormat, err))
		}
	default:
		return nil, domain.WrapConfigurationError(configField, fmt.Errorf("%w: %s", ErrUnsupportedExt, ext))
	}

	l.applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (l *Loader) applyDefaults(cfg *Config) {
	// older configurations carry "None" for unset optional values
	for _, field := range []*string{&cfg.InputBucket, &cfg.TempDirectory, &cfg.PreviousManifest, &cfg.RelativeGitPath, &cfg.ModelID, &cfg.RunID, &cfg.Notes} {
		if *field == "None" || *field == "null" {
			*field = ""
		}
	}
}
