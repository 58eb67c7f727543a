package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// KeyPrefix constants for different cache types
const (
	PrefixStats = "stats"
)

// GenerateKey generates a cache key as the SHA256 hash of the raw key
func GenerateKey(raw string) string {
	hash := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(hash[:])
}

// GenerateKeyWithPrefix generates a cache key with a prefix
func GenerateKeyWithPrefix(prefix, raw string) string {
	return prefix + ":" + GenerateKey(raw)
}

// StatsKey identifies the statistics of one archive version. A changed
// ETag yields a different key, so rewritten archives are never served stale.
func StatsKey(stage, bucket, key, etag, title string) string {
	raw := strings.Join([]string{stage, bucket + "/" + key, strings.Trim(etag, `"`), title}, "@")
	return GenerateKeyWithPrefix(PrefixStats, raw)
}
