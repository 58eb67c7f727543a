package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/impresso/impresso-essentials-go/internal/archive"
	"github.com/impresso/impresso-essentials-go/internal/storage"
	"github.com/stretchr/testify/require"
)

// NewStore creates an empty in-memory object store
func NewStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	return storage.NewMemoryStore()
}

// PutArchive encodes records with the codec chosen by the key suffix and
// stores them
func PutArchive(t *testing.T, store *storage.MemoryStore, bucket, key string, records []archive.Record) {
	t.Helper()

	data, err := archive.Encode(key, records)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), bucket, key, data, archive.CodecFor(key).ContentType(), nil))
}

// PutRaw stores data as is, for corrupted archive fixtures
func PutRaw(t *testing.T, store *storage.MemoryStore, bucket, key string, data []byte) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), bucket, key, data, "application/octet-stream", nil))
}

// ContentItemID returns the id of the n-th content item of the first
// issue of year
func ContentItemID(title, year string, n int) string {
	return fmt.Sprintf("%s-%s-01-02-a-i%04d", title, year, n)
}

// EntitiesRecord builds a record of the entities stage mentioning the given
// wikidata ids
func EntitiesRecord(id string, wkdIDs ...string) archive.Record {
	nes := make([]any, 0, len(wkdIDs))
	for _, wkd := range wkdIDs {
		nes = append(nes, map[string]any{"surface": "x", "wkd_id": wkd})
	}
	return archive.Record{"ci_id": id, "nes": nes}
}

// EntitiesArchive builds n entities records of title and year, each with
// one mention
func EntitiesArchive(title, year string, n int) []archive.Record {
	out := make([]archive.Record, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, EntitiesRecord(ContentItemID(title, year, i), fmt.Sprintf("Q%d", i)))
	}
	return out
}

// TimestampRecord builds a record carrying a timestamp under key
func TimestampRecord(id, key, ts string) archive.Record {
	return archive.Record{"id": id, key: ts}
}
