package domain

import (
	"context"
	"io"
	"time"
)

// ObjectLister enumerates objects under a key prefix whose keys end with suffix.
// An empty suffix matches every key.
type ObjectLister interface {
	List(ctx context.Context, bucket, prefix, suffix string) ([]ObjectInfo, error)
}

// ObjectStore is the storage capability used by every command
type ObjectStore interface {
	ObjectLister
	// Stat returns the object description, or ErrNotFound
	Stat(ctx context.Context, bucket, key string) (ObjectInfo, error)
	// Get opens the object body for reading
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	// Put writes an object
	Put(ctx context.Context, bucket, key string, body []byte, contentType string, metadata map[string]string) error
	// Copy performs a server-side copy and returns the destination description
	Copy(ctx context.Context, src, dst ObjectRef, opts CopyOptions) (ObjectInfo, error)
	// Delete removes an object; deleting a missing object is not an error
	Delete(ctx context.Context, bucket, key string) error
}

// CommitResolver returns the commit hash of the active branch of a local repository
type CommitResolver interface {
	HeadCommit(repoPath string) (string, error)
}

// Committer writes files into a version-controlled mirror and pushes them.
// files maps destination paths (relative to the mirror root) to contents.
type Committer interface {
	CommitAndPush(ctx context.Context, files map[string][]byte, message string) (string, error)
}

// Cache defines the interface for the computed statistics cache
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Has checks if a key exists in cache
	Has(ctx context.Context, key string) bool
	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error
	// Close releases cache resources
	Close() error
}
