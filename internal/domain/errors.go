package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors
var (
	// ErrNotFound indicates an object or resource was not found
	ErrNotFound = errors.New("not found")

	// ErrConfiguration indicates missing or contradictory configuration
	ErrConfiguration = errors.New("invalid configuration")

	// ErrStorageAccess indicates an enumeration or read failure on object storage
	ErrStorageAccess = errors.New("storage access failed")

	// ErrIntegrity indicates a corrupted or empty archive
	ErrIntegrity = errors.New("archive integrity check failed")

	// ErrPublish indicates the manifest could not be written or pushed
	ErrPublish = errors.New("publish failed")

	// ErrAlreadyTagged indicates the object already carries the metadata key
	ErrAlreadyTagged = errors.New("metadata key already exists")

	// ErrNoTimestamp indicates no valid timestamp was found in the records
	ErrNoTimestamp = errors.New("no valid timestamp found")

	// ErrChecksumMismatch indicates a copied object does not match its source
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrVersionExists indicates a manifest of that version is already stored
	ErrVersionExists = errors.New("manifest version already published")

	// ErrTimeout indicates a timeout occurred
	ErrTimeout = errors.New("timeout")

	// ErrCacheMiss indicates a cache miss
	ErrCacheMiss = errors.New("cache miss")
)

// ConfigurationError represents a missing or invalid configuration field
type ConfigurationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is reports ErrConfiguration as the error class
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Message: message,
	}
}

// WrapConfigurationError creates a ConfigurationError caused by err
func WrapConfigurationError(field string, err error) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Message: err.Error(),
		Err:     err,
	}
}

// StorageAccessError represents a failed storage operation
type StorageAccessError struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *StorageAccessError) Error() string {
	target := e.Bucket
	if e.Key != "" {
		target = e.Bucket + "/" + e.Key
	}
	return fmt.Sprintf("storage %s failed for s3://%s: %v", e.Op, target, e.Err)
}

func (e *StorageAccessError) Unwrap() error {
	return e.Err
}

// Is reports ErrStorageAccess as the error class
func (e *StorageAccessError) Is(target error) bool {
	return target == ErrStorageAccess
}

// NewStorageAccessError creates a new StorageAccessError
func NewStorageAccessError(op, bucket, key string, err error) *StorageAccessError {
	return &StorageAccessError{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// IntegrityError represents a corrupted archive
type IntegrityError struct {
	Key  string
	Line int // 0 when the failure is not tied to a line
	Err  error
}

func (e *IntegrityError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("corrupted archive %s at line %d: %v", e.Key, e.Line, e.Err)
	}
	return fmt.Sprintf("corrupted archive %s: %v", e.Key, e.Err)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// Is reports ErrIntegrity as the error class
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// NewIntegrityError creates a new IntegrityError
func NewIntegrityError(key string, line int, err error) *IntegrityError {
	return &IntegrityError{
		Key:  key,
		Line: line,
		Err:  err,
	}
}

// Publish targets
const (
	PublishTargetStorage = "storage"
	PublishTargetGit     = "git"
)

// PublishError represents a failure to write or push a manifest
type PublishError struct {
	Target string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s failed: %v", e.Target, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Is reports ErrPublish as the error class
func (e *PublishError) Is(target error) bool {
	return target == ErrPublish
}

// NewPublishError creates a new PublishError
func NewPublishError(target string, err error) *PublishError {
	return &PublishError{
		Target: target,
		Err:    err,
	}
}

// RetryableError indicates an error that can be retried
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// transientCodes are S3 error codes worth retrying
var transientCodes = []string{
	"SlowDown",
	"InternalError",
	"ServiceUnavailable",
	"RequestTimeout",
	"RequestTimeTooSkewed",
	"connection reset",
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrNotFound) {
		return false
	}

	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return true
	}

	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()
	for _, code := range transientCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}
