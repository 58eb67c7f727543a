package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/utils"
	"github.com/impresso/impresso-essentials-go/pkg/version"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options contains the connection settings of an S3Store
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool

	// Timeout bounds the wait for the response headers of a request
	Timeout time.Duration

	Retrier *utils.Retrier
	Logger  *utils.Logger
}

// S3Store implements domain.ObjectStore on an S3-compatible endpoint
type S3Store struct {
	client  *minio.Client
	retrier *utils.Retrier
	logger  *utils.Logger
}

// NewS3Store creates a new S3Store
func NewS3Store(opts S3Options) (*S3Store, error) {
	if opts.Endpoint == "" {
		return nil, domain.NewConfigurationError("storage.endpoint", "endpoint is required")
	}
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, domain.NewConfigurationError("storage.access_key", "access and secret keys are required (SE_ACCESS_KEY, SE_SECRET_KEY)")
	}

	transport, err := minio.DefaultTransport(opts.Secure)
	if err != nil {
		return nil, err
	}
	if opts.Timeout > 0 {
		transport.ResponseHeaderTimeout = opts.Timeout
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:    opts.Secure,
		Region:    opts.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, domain.NewConfigurationError("storage.endpoint", err.Error())
	}
	client.SetAppInfo(version.Name, version.Short())

	retrier := opts.Retrier
	if retrier == nil {
		retrier = utils.NewRetrier(utils.DefaultRetrierOptions())
	}

	return &S3Store{
		client:  client,
		retrier: retrier,
		logger:  opts.Logger.OrNop().WithComponent("s3"),
	}, nil
}

// mapError converts a minio error into the domain error taxonomy
func mapError(op, bucket, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound:
		return domain.NewStorageAccessError(op, bucket, key, domain.ErrNotFound)
	case resp.StatusCode >= http.StatusInternalServerError || resp.Code == "SlowDown" || resp.Code == "RequestTimeout":
		return domain.NewStorageAccessError(op, bucket, key, &domain.RetryableError{Err: err})
	default:
		return domain.NewStorageAccessError(op, bucket, key, err)
	}
}

func toObjectInfo(bucket string, info minio.ObjectInfo) domain.ObjectInfo {
	var meta map[string]string
	if len(info.UserMetadata) > 0 {
		meta = make(map[string]string, len(info.UserMetadata))
		for k, v := range info.UserMetadata {
			meta[k] = v
		}
	}
	return domain.ObjectInfo{
		Bucket:       bucket,
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified.UTC(),
		ContentType:  info.ContentType,
		Metadata:     meta,
	}
}

// List returns every object under prefix whose key ends with suffix
func (s *S3Store) List(ctx context.Context, bucket, prefix, suffix string) ([]domain.ObjectInfo, error) {
	return utils.RetryWithValue(ctx, s.retrier, func() ([]domain.ObjectInfo, error) {
		var out []domain.ObjectInfo
		objects := s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		})
		for obj := range objects {
			if obj.Err != nil {
				return nil, mapError("list", bucket, prefix, obj.Err)
			}
			if HasSuffix(obj.Key, suffix) {
				out = append(out, toObjectInfo(bucket, obj))
			}
		}
		s.logger.Debug().
			Str("bucket", bucket).
			Str("prefix", prefix).
			Int("objects", len(out)).
			Msg("Listed objects")
		return out, nil
	})
}

// Stat returns the description of a single object including its user metadata
func (s *S3Store) Stat(ctx context.Context, bucket, key string) (domain.ObjectInfo, error) {
	return utils.RetryWithValue(ctx, s.retrier, func() (domain.ObjectInfo, error) {
		info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
		if err != nil {
			return domain.ObjectInfo{}, mapError("stat", bucket, key, err)
		}
		return toObjectInfo(bucket, info), nil
	})
}

// Get opens an object for reading
func (s *S3Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return utils.RetryWithValue(ctx, s.retrier, func() (io.ReadCloser, error) {
		obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return nil, mapError("get", bucket, key, err)
		}
		// GetObject is lazy; Stat surfaces a missing key before the first read
		if _, err := obj.Stat(); err != nil {
			obj.Close()
			return nil, mapError("get", bucket, key, err)
		}
		return obj, nil
	})
}

// Put uploads body under key
func (s *S3Store) Put(ctx context.Context, bucket, key string, body []byte, contentType string, metadata map[string]string) error {
	return s.retrier.Retry(ctx, func() error {
		_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
			ContentType:  contentType,
			UserMetadata: metadata,
		})
		return mapError("put", bucket, key, err)
	})
}

// Copy performs a server-side copy of src to dst
func (s *S3Store) Copy(ctx context.Context, src, dst domain.ObjectRef, opts domain.CopyOptions) (domain.ObjectInfo, error) {
	dstOpts := minio.CopyDestOptions{
		Bucket:          dst.Bucket,
		Object:          dst.Key,
		ReplaceMetadata: opts.ReplaceMetadata,
	}
	if opts.ReplaceMetadata {
		meta := make(map[string]string, len(opts.Metadata)+1)
		for k, v := range opts.Metadata {
			meta[k] = v
		}
		if opts.ContentType != "" {
			meta["Content-Type"] = opts.ContentType
		}
		dstOpts.UserMetadata = meta
	}
	srcOpts := minio.CopySrcOptions{Bucket: src.Bucket, Object: src.Key}

	err := s.retrier.Retry(ctx, func() error {
		_, err := s.client.CopyObject(ctx, dstOpts, srcOpts)
		return mapError("copy", dst.Bucket, dst.Key, err)
	})
	if err != nil {
		return domain.ObjectInfo{}, err
	}
	return s.Stat(ctx, dst.Bucket, dst.Key)
}

// Delete removes an object
func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	return s.retrier.Retry(ctx, func() error {
		err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
		return mapError("delete", bucket, key, err)
	})
}
