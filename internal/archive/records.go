package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/impresso/impresso-essentials-go/internal/domain"
)

// Record is one decoded JSON line
type Record = map[string]any

// RecordFunc is called for each record; line numbers start at 1
type RecordFunc func(line int, rec Record) error

// ErrEmpty indicates an archive without any record
var ErrEmpty = errors.New("empty archive")

// ReadRecords decodes every JSON line of the archive read from r. Blank lines
// are skipped. Decompression or JSON errors are reported as IntegrityErrors;
// errors returned by fn are passed through unchanged. It returns the number
// of records read.
func ReadRecords(ctx context.Context, r io.Reader, key string, fn RecordFunc) (int, error) {
	dec, err := Open(r, key)
	if err != nil {
		return 0, domain.NewIntegrityError(key, 0, err)
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 1<<20)
	line, count := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		raw, readErr := br.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return count, domain.NewIntegrityError(key, line+1, readErr)
		}
		if len(raw) > 0 {
			line++
			if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
				var rec Record
				if err := json.Unmarshal(trimmed, &rec); err != nil {
					return count, domain.NewIntegrityError(key, line, fmt.Errorf("invalid JSON: %w", err))
				}
				count++
				if err := fn(line, rec); err != nil {
					return count, err
				}
			}
		}
		if readErr == io.EOF {
			return count, nil
		}
	}
}

// ReadObject streams the records of a stored archive
func ReadObject(ctx context.Context, store domain.ObjectStore, obj domain.ObjectInfo, fn RecordFunc) (int, error) {
	body, err := store.Get(ctx, obj.Bucket, obj.Key)
	if err != nil {
		return 0, err
	}
	defer body.Close()
	return ReadRecords(ctx, body, obj.Key, fn)
}

// Verify reads a stored archive entirely. A decoding failure or an archive
// without records is an IntegrityError.
func Verify(ctx context.Context, store domain.ObjectStore, obj domain.ObjectInfo) error {
	n, err := ReadObject(ctx, store, obj, func(int, Record) error { return nil })
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewIntegrityError(obj.Key, 0, ErrEmpty)
	}
	return nil
}

// Encode serializes records as JSON lines compressed according to key
func Encode(key string, records []Record) ([]byte, error) {
	lines := make([][]byte, 0, len(records))
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		lines = append(lines, b)
	}
	return EncodeLines(key, lines)
}
