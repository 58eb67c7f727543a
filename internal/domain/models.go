package domain

import (
	"strings"
	"time"
)

// ObjectInfo describes one object in a storage bucket
type ObjectInfo struct {
	Bucket       string            `json:"bucket"`
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	ETag         string            `json:"etag"`
	LastModified time.Time         `json:"last_modified"`
	ContentType  string            `json:"content_type,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// URI returns the s3:// form of the object location
func (o ObjectInfo) URI() string {
	return "s3://" + o.Bucket + "/" + o.Key
}

// MetadataValue returns a user metadata value, matching the key case-insensitively
// since S3 gateways normalize header casing differently.
func (o ObjectInfo) MetadataValue(key string) (string, bool) {
	if v, ok := o.Metadata[key]; ok {
		return v, true
	}
	for k, v := range o.Metadata {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// ObjectRef addresses a single object
type ObjectRef struct {
	Bucket string
	Key    string
}

// URI returns the s3:// form of the reference
func (r ObjectRef) URI() string {
	return "s3://" + r.Bucket + "/" + r.Key
}

// CopyOptions controls a server-side copy
type CopyOptions struct {
	// Metadata replaces the destination metadata when ReplaceMetadata is set
	Metadata        map[string]string
	ReplaceMetadata bool
	ContentType     string
}
