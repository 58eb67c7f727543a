package manifest

import (
	"fmt"
	"strings"

	"github.com/coreos/go-semver/semver"
)

// Version is the semantic version of a manifest
type Version struct {
	semver.Version
}

// Increment is the version component bumped by a computation
type Increment string

const (
	IncrementMajor Increment = "major"
	IncrementMinor Increment = "minor"
	IncrementPatch Increment = "patch"
)

// ParseVersion parses "v1.2.3", "1.2.3" and the file name form "v1-2-3"
func ParseVersion(s string) (Version, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "v")
	if !strings.Contains(raw, ".") && strings.Count(raw, "-") == 2 {
		raw = strings.ReplaceAll(raw, "-", ".")
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("%w %q: %v", ErrInvalidVersion, s, err)
	}
	return Version{Version: *v}, nil
}

// InitialVersion is the version of the first manifest of a stage
func InitialVersion(inc Increment) Version {
	if inc == IncrementPatch {
		return Version{Version: semver.Version{Patch: 1}}
	}
	return Version{Version: semver.Version{Major: 1}}
}

// Next returns the version following v for the given increment
func (v Version) Next(inc Increment) Version {
	next := v
	switch inc {
	case IncrementMajor:
		next.BumpMajor()
	case IncrementMinor:
		next.BumpMinor()
	default:
		next.BumpPatch()
	}
	return next
}

// String returns the "vMAJOR.MINOR.PATCH" form
func (v Version) String() string {
	return "v" + v.Version.String()
}

// FileTag returns the "vMAJOR-MINOR-PATCH" form used in file names
func (v Version) FileTag() string {
	return fmt.Sprintf("v%d-%d-%d", v.Major, v.Minor, v.Patch)
}

// Less reports whether v precedes o
func (v Version) Less(o Version) bool {
	return v.LessThan(o.Version)
}

// FileName returns the manifest file name of a stage at version v
func FileName(stage string, v Version) string {
	return fmt.Sprintf("%s_%s.json", stage, v.FileTag())
}
