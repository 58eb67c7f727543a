// Package storage provides access to S3-compatible object storage and an
// in-memory store with the same behavior.
package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/media"
)

const scheme = "s3://"

// Location is a bucket and an optional key prefix ("partition") inside it
type Location struct {
	Bucket string
	Prefix string
}

// ParseLocation parses "s3://bucket/a/b" or "bucket/a/b"
func ParseLocation(s string) (Location, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), scheme)
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return Location{}, domain.NewConfigurationError("location", fmt.Sprintf("no bucket in %q", s))
	}
	bucket, prefix, _ := strings.Cut(trimmed, "/")
	return Location{Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

// MustParseLocation is like ParseLocation but panics on error
func MustParseLocation(s string) Location {
	loc, err := ParseLocation(s)
	if err != nil {
		panic(err)
	}
	return loc
}

// URI returns the s3:// form of the location
func (l Location) URI() string {
	if l.Prefix == "" {
		return scheme + l.Bucket
	}
	return scheme + l.Bucket + "/" + l.Prefix
}

// String implements fmt.Stringer
func (l Location) String() string {
	return l.URI()
}

// Join returns the key obtained by appending parts to the prefix
func (l Location) Join(parts ...string) string {
	elems := make([]string, 0, len(parts)+1)
	if l.Prefix != "" {
		elems = append(elems, l.Prefix)
	}
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			elems = append(elems, p)
		}
	}
	return strings.Join(elems, "/")
}

// Sub returns the location of a sub directory
func (l Location) Sub(parts ...string) Location {
	return Location{Bucket: l.Bucket, Prefix: l.Join(parts...)}
}

// ListPrefix returns the prefix to list the content of the location
func (l Location) ListPrefix() string {
	if l.Prefix == "" {
		return ""
	}
	return l.Prefix + "/"
}

// Ref returns a reference to the object named key in the location's bucket
func (l Location) Ref(key string) domain.ObjectRef {
	return domain.ObjectRef{Bucket: l.Bucket, Key: key}
}

// RelativeKey strips the location prefix from key
func (l Location) RelativeKey(key string) string {
	return strings.TrimPrefix(key, l.ListPrefix())
}

// TitleFromKey returns the media title an object of the partition belongs to.
// When the key has a sub directory the title is its first segment (or the
// second one, if the first is a known provider); otherwise it is the first
// dash part of the file name.
func TitleFromKey(key, partitionPrefix string) string {
	rel := strings.TrimPrefix(key, strings.Trim(partitionPrefix, "/"))
	rel = strings.TrimPrefix(rel, "/")

	segments := strings.Split(rel, "/")
	if len(segments) > 1 {
		if len(segments) > 2 && media.IsKnownProvider(segments[0]) && !media.IsKnownTitle(segments[0]) {
			return segments[1]
		}
		return segments[0]
	}
	name := path.Base(rel)
	title, _, _ := strings.Cut(name, "-")
	return title
}

// HasSuffix reports whether key ends with suffix; an empty suffix matches all
func HasSuffix(key, suffix string) bool {
	return suffix == "" || strings.HasSuffix(key, suffix)
}
