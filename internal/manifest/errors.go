package manifest

import "errors"

// Sentinel errors for the manifest package
var (
	// ErrInvalidFormat indicates the run configuration is not valid YAML or JSON
	ErrInvalidFormat = errors.New("run configuration must be valid YAML or JSON")

	// ErrFileNotFound indicates the run configuration file does not exist
	ErrFileNotFound = errors.New("run configuration file not found")

	// ErrUnsupportedExt indicates an unsupported file extension
	ErrUnsupportedExt = errors.New("unsupported file extension (use .yaml, .yml, or .json)")

	// ErrInvalidVersion indicates a manifest version that cannot be parsed
	ErrInvalidVersion = errors.New("invalid manifest version")

	// ErrNoArchives indicates no archive matched the partition and filters
	ErrNoArchives = errors.New("no archive matches the partition")
)
