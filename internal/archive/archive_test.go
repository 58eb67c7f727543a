package archive

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	return []Record{
		{"id": "DLE-1910-01-03-a-i0001", "ts": "2024-01-01T10:00:00Z"},
		{"id": "DLE-1910-01-03-a-i0002", "ts": "2024-01-02T10:00:00Z"},
	}
}

func TestCodecFor(t *testing.T) {
	assert.Equal(t, CodecBzip2, CodecFor("a/DLE-1910.jsonl.bz2"))
	assert.Equal(t, CodecZstd, CodecFor("a/DLE-1910.jsonl.zst"))
	assert.Equal(t, CodecGzip, CodecFor("a/DLE-1910.jsonl.gz"))
	assert.Equal(t, CodecPlain, CodecFor("a/DLE-1910.jsonl"))

	assert.Equal(t, "application/x-bzip2", CodecBzip2.ContentType())
	assert.Equal(t, "application/jsonl", CodecPlain.ContentType())
}

func TestEncodeReadRoundTrip(t *testing.T) {
	for _, key := range []string{"x.jsonl.bz2", "x.jsonl.zst", "x.jsonl.gz", "x.jsonl"} {
		t.Run(key, func(t *testing.T) {
			data, err := Encode(key, sampleRecords())
			require.NoError(t, err)

			var ids []string
			var lines []int
			n, err := ReadRecords(context.Background(), bytes.NewReader(data), key, func(line int, rec Record) error {
				ids = append(ids, rec["id"].(string))
				lines = append(lines, line)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			assert.Equal(t, []string{"DLE-1910-01-03-a-i0001", "DLE-1910-01-03-a-i0002"}, ids)
			assert.Equal(t, []int{1, 2}, lines)
		})
	}
}

func TestReadRecords_BlankLinesAndNoTrailingNewline(t *testing.T) {
	in := "{\"id\":\"a\"}\n\n   \n{\"id\":\"b\"}"
	var ids []string
	n, err := ReadRecords(context.Background(), bytes.NewReader([]byte(in)), "x.jsonl", func(line int, rec Record) error {
		ids = append(ids, rec["id"].(string))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestReadRecords_InvalidJSON(t *testing.T) {
	data, err := EncodeLines("x.jsonl.bz2", [][]byte{[]byte(`{"id":"a"}`), []byte(`{"id":`)})
	require.NoError(t, err)

	_, err = ReadRecords(context.Background(), bytes.NewReader(data), "x.jsonl.bz2", func(int, Record) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIntegrity)

	var ie *domain.IntegrityError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "x.jsonl.bz2", ie.Key)
	assert.Equal(t, 2, ie.Line)
}

func TestReadRecords_CorruptedCompression(t *testing.T) {
	_, err := ReadRecords(context.Background(), bytes.NewReader([]byte("not bzip2 at all")), "x.jsonl.bz2", func(int, Record) error { return nil })
	assert.ErrorIs(t, err, domain.ErrIntegrity)
}

func TestReadRecords_CallbackErrorPassedThrough(t *testing.T) {
	stop := errors.New("stop")
	data, err := Encode("x.jsonl", sampleRecords())
	require.NoError(t, err)

	n, err := ReadRecords(context.Background(), bytes.NewReader(data), "x.jsonl", func(int, Record) error { return stop })
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, stop)
	assert.NotErrorIs(t, err, domain.ErrIntegrity)
}

func TestReadRecords_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadRecords(ctx, bytes.NewReader([]byte(`{"id":"a"}`)), "x.jsonl", func(int, Record) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	good, err := Encode("p/DLE/DLE-1910.jsonl.bz2", sampleRecords())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "b", "p/DLE/DLE-1910.jsonl.bz2", good, "", nil))
	require.NoError(t, store.Put(ctx, "b", "p/DLE/DLE-1911.jsonl", []byte("\n\n"), "", nil))
	require.NoError(t, store.Put(ctx, "b", "p/DLE/DLE-1912.jsonl.bz2", []byte("garbage"), "", nil))

	stat := func(key string) domain.ObjectInfo {
		info, err := store.Stat(ctx, "b", key)
		require.NoError(t, err)
		return info
	}

	assert.NoError(t, Verify(ctx, store, stat("p/DLE/DLE-1910.jsonl.bz2")))

	err = Verify(ctx, store, stat("p/DLE/DLE-1911.jsonl"))
	assert.ErrorIs(t, err, domain.ErrIntegrity)
	assert.ErrorIs(t, err, ErrEmpty)

	assert.ErrorIs(t, Verify(ctx, store, stat("p/DLE/DLE-1912.jsonl.bz2")), domain.ErrIntegrity)

	_, err = ReadObject(ctx, store, domain.ObjectInfo{Bucket: "b", Key: "missing.jsonl"}, func(int, Record) error { return nil })
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
