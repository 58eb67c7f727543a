package storage

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGetStat(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return fixed })

	require.NoError(t, store.Put(ctx, "b", "k.json", []byte("hello"), "application/json", map[string]string{"a": "1"}))

	info, err := store.Stat(ctx, "b", "k.json")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", info.ETag)
	assert.Equal(t, fixed, info.LastModified)
	assert.Equal(t, "application/json", info.ContentType)
	assert.Equal(t, map[string]string{"a": "1"}, info.Metadata)

	rc, err := store.Get(ctx, "b", "k.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))

	// snapshots do not alias internal state
	info.Metadata["a"] = "changed"
	again, err := store.Stat(ctx, "b", "k.json")
	require.NoError(t, err)
	assert.Equal(t, "1", again.Metadata["a"])
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Stat(ctx, "b", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrStorageAccess)

	_, err = store.Get(ctx, "b", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.Copy(ctx, domain.ObjectRef{Bucket: "b", Key: "missing"}, domain.ObjectRef{Bucket: "b", Key: "x"}, domain.CopyOptions{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "b", "missing"))
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, k := range []string{
		"entities/DLE/DLE-1911.jsonl.bz2",
		"entities/DLE/DLE-1910.jsonl.bz2",
		"entities/BNN/BNN-1880.jsonl.bz2",
		"entities/BNN/notes.txt",
		"other/DLE/DLE-1910.jsonl.bz2",
	} {
		require.NoError(t, store.Put(ctx, "b", k, []byte(k), "", nil))
	}

	objs, err := store.List(ctx, "b", "entities/", ".jsonl.bz2")
	require.NoError(t, err)

	var keys []string
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{
		"entities/BNN/BNN-1880.jsonl.bz2",
		"entities/DLE/DLE-1910.jsonl.bz2",
		"entities/DLE/DLE-1911.jsonl.bz2",
	}, keys)

	all, err := store.List(ctx, "b", "", "")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := store.List(ctx, "unknown", "", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_Copy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "b", "src", []byte("data"), "text/plain", map[string]string{"keep": "yes"}))

	src := domain.ObjectRef{Bucket: "b", Key: "src"}

	kept, err := store.Copy(ctx, src, domain.ObjectRef{Bucket: "b2", Key: "dst"}, domain.CopyOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"keep": "yes"}, kept.Metadata)
	assert.Equal(t, "text/plain", kept.ContentType)

	replaced, err := store.Copy(ctx, src, src, domain.CopyOptions{
		Metadata:        map[string]string{"impresso-last-ts": "2024-01-01T00:00:00Z"},
		ReplaceMetadata: true,
		ContentType:     "application/x-bzip2",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"impresso-last-ts": "2024-01-01T00:00:00Z"}, replaced.Metadata)
	assert.Equal(t, "application/x-bzip2", replaced.ContentType)
	assert.Equal(t, kept.ETag, replaced.ETag)
	assert.Equal(t, []string{"dst"}, store.Keys("b2"))
}

func TestMemoryStore_FailOn(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	boom := errors.New("boom")

	store.FailOn("put", boom)
	err := store.Put(ctx, "b", "k", []byte("x"), "", nil)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, domain.ErrStorageAccess)

	store.FailOn("put", nil)
	require.NoError(t, store.Put(ctx, "b", "k", []byte("x"), "", nil))

	data, err := store.Bytes("b", "k")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	_, err = store.Bytes("b", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewMemoryStore()

	_, err := store.List(ctx, "b", "", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Put(ctx, "b", "k", nil, "", nil), context.Canceled)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			_ = store.Put(ctx, "b", key, []byte(key), "", nil)
			_, _ = store.List(ctx, "b", "", "")
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.Keys("b"), 20)
}
