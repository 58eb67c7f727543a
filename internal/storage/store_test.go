package storage

import (
	"errors"
	"net/http"
	"testing"

	"github.com/impresso/impresso-essentials-go/internal/config"
	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Backend = config.BackendMemory

		store, err := NewStore(cfg, nil)
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, store)
	})

	t.Run("s3 backend requires endpoint", func(t *testing.T) {
		cfg := config.Default()

		_, err := NewStore(cfg, nil)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("s3 backend requires credentials", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Endpoint = "localhost:9000"

		_, err := NewStore(cfg, nil)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("s3 backend", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Endpoint = "localhost:9000"
		cfg.Storage.AccessKey = "access"
		cfg.Storage.SecretKey = "secret"
		cfg.Storage.Secure = false

		store, err := NewStore(cfg, nil)
		require.NoError(t, err)
		assert.IsType(t, &S3Store{}, store)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Backend = "ftp"

		_, err := NewStore(cfg, nil)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError("get", "b", "k", nil))

	notFound := mapError("stat", "b", "k", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound})
	assert.ErrorIs(t, notFound, domain.ErrNotFound)
	assert.False(t, domain.IsRetryable(notFound))

	slow := mapError("list", "b", "", minio.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable})
	assert.ErrorIs(t, slow, domain.ErrStorageAccess)
	assert.True(t, domain.IsRetryable(slow))

	denied := mapError("put", "b", "k", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden, Message: "Access Denied."})
	assert.ErrorIs(t, denied, domain.ErrStorageAccess)
	assert.False(t, domain.IsRetryable(denied))

	var sae *domain.StorageAccessError
	require.True(t, errors.As(denied, &sae))
	assert.Equal(t, "put", sae.Op)
	assert.Equal(t, "k", sae.Key)
}
