package testutil

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertObjectExists asserts an object is stored at bucket/key
func AssertObjectExists(t *testing.T, store *storage.MemoryStore, bucket, key string) {
	t.Helper()

	_, err := store.Stat(context.Background(), bucket, key)
	assert.NoError(t, err, "object s3://%s/%s should exist", bucket, key)
}

// AssertNoObject asserts nothing is stored at bucket/key
func AssertNoObject(t *testing.T, store *storage.MemoryStore, bucket, key string) {
	t.Helper()

	_, err := store.Stat(context.Background(), bucket, key)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "object s3://%s/%s should not exist", bucket, key)
}

// AssertObjectMetadata asserts an object carries metadata key with value
func AssertObjectMetadata(t *testing.T, store *storage.MemoryStore, bucket, key, metaKey, want string) {
	t.Helper()

	info, err := store.Stat(context.Background(), bucket, key)
	require.NoError(t, err)
	got, ok := info.MetadataValue(metaKey)
	require.True(t, ok, "object s3://%s/%s has no metadata %q", bucket, key, metaKey)
	assert.Equal(t, want, got)
}

// AssertFileContains asserts a file contains expected content
func AssertFileContains(t *testing.T, path, expectedContent string) {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), expectedContent)
}
