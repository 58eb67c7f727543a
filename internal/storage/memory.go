package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/impresso/impresso-essentials-go/internal/domain"
)

type memObject struct {
	data []byte
	info domain.ObjectInfo
}

// MemoryStore is a concurrency-safe in-memory domain.ObjectStore
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*memObject
	now     func() time.Time
	faults  map[string]error
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]map[string]*memObject),
		now:     time.Now,
		faults:  make(map[string]error),
	}
}

// SetClock replaces the clock used for LastModified
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// FailOn makes every subsequent call of op ("list", "stat", "get", "put",
// "copy", "delete") fail with err. A nil err clears the fault.
func (m *MemoryStore) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = err
}

func (m *MemoryStore) fault(op, bucket, key string) error {
	if err, ok := m.faults[op]; ok {
		return domain.NewStorageAccessError(op, bucket, key, err)
	}
	return nil
}

func notFound(op, bucket, key string) error {
	return domain.NewStorageAccessError(op, bucket, key, domain.ErrNotFound)
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func cloneMeta(meta map[string]string) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func (o *memObject) snapshot() domain.ObjectInfo {
	info := o.info
	info.Metadata = cloneMeta(o.info.Metadata)
	return info
}

// List returns the objects of bucket whose key starts with prefix and ends
// with suffix, sorted by key.
func (m *MemoryStore) List(ctx context.Context, bucket, prefix, suffix string) ([]domain.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.fault("list", bucket, prefix); err != nil {
		return nil, err
	}

	var out []domain.ObjectInfo
	for key, obj := range m.buckets[bucket] {
		if strings.HasPrefix(key, prefix) && HasSuffix(key, suffix) {
			out = append(out, obj.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Stat returns the information of a single object
func (m *MemoryStore) Stat(ctx context.Context, bucket, key string) (domain.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.ObjectInfo{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.fault("stat", bucket, key); err != nil {
		return domain.ObjectInfo{}, err
	}
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return domain.ObjectInfo{}, notFound("stat", bucket, key)
	}
	return obj.snapshot(), nil
}

// Get opens an object for reading
func (m *MemoryStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.fault("get", bucket, key); err != nil {
		return nil, err
	}
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return nil, notFound("get", bucket, key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Put stores body under key, replacing any previous object
func (m *MemoryStore) Put(ctx context.Context, bucket, key string, body []byte, contentType string, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fault("put", bucket, key); err != nil {
		return err
	}
	data := make([]byte, len(body))
	copy(data, body)
	m.store(bucket, key, data, contentType, cloneMeta(metadata))
	return nil
}

func (m *MemoryStore) store(bucket, key string, data []byte, contentType string, metadata map[string]string) {
	objs, ok := m.buckets[bucket]
	if !ok {
		objs = make(map[string]*memObject)
		m.buckets[bucket] = objs
	}
	objs[key] = &memObject{
		data: data,
		info: domain.ObjectInfo{
			Bucket:       bucket,
			Key:          key,
			Size:         int64(len(data)),
			ETag:         etag(data),
			LastModified: m.now().UTC(),
			ContentType:  contentType,
			Metadata:     metadata,
		},
	}
}

// Copy copies src to dst. Metadata is kept unless opts.ReplaceMetadata is set.
func (m *MemoryStore) Copy(ctx context.Context, src, dst domain.ObjectRef, opts domain.CopyOptions) (domain.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.ObjectInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fault("copy", dst.Bucket, dst.Key); err != nil {
		return domain.ObjectInfo{}, err
	}
	obj, ok := m.buckets[src.Bucket][src.Key]
	if !ok {
		return domain.ObjectInfo{}, notFound("copy", src.Bucket, src.Key)
	}

	meta := cloneMeta(obj.info.Metadata)
	contentType := obj.info.ContentType
	if opts.ReplaceMetadata {
		meta = cloneMeta(opts.Metadata)
		if opts.ContentType != "" {
			contentType = opts.ContentType
		}
	}
	m.store(dst.Bucket, dst.Key, obj.data, contentType, meta)
	return m.buckets[dst.Bucket][dst.Key].snapshot(), nil
}

// Delete removes an object; deleting a missing object is not an error
func (m *MemoryStore) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fault("delete", bucket, key); err != nil {
		return err
	}
	delete(m.buckets[bucket], key)
	return nil
}

// Keys returns the sorted keys of a bucket
func (m *MemoryStore) Keys(bucket string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Bytes returns a copy of an object's content
func (m *MemoryStore) Bytes(bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.buckets[bucket][key]
	if !ok {
		return nil, fmt.Errorf("s3://%s/%s: %w", bucket, key, domain.ErrNotFound)
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}
