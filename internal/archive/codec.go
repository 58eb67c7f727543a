// Package archive reads and writes the JSON-lines archives stored on S3,
// compressed according to their file suffix.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Codec identifies the compression of an archive
type Codec string

// Supported codecs
const (
	CodecPlain Codec = "plain"
	CodecBzip2 Codec = "bzip2"
	CodecZstd  Codec = "zstd"
	CodecGzip  Codec = "gzip"
)

// CodecFor picks the codec from the archive key suffix
func CodecFor(key string) Codec {
	switch {
	case strings.HasSuffix(key, ".bz2"):
		return CodecBzip2
	case strings.HasSuffix(key, ".zst"):
		return CodecZstd
	case strings.HasSuffix(key, ".gz"):
		return CodecGzip
	default:
		return CodecPlain
	}
}

// ContentType returns the MIME type matching the codec
func (c Codec) ContentType() string {
	switch c {
	case CodecBzip2:
		return "application/x-bzip2"
	case CodecZstd:
		return "application/zstd"
	case CodecGzip:
		return "application/gzip"
	default:
		return "application/jsonl"
	}
}

type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// Open wraps r with the decompressor matching key
func Open(r io.Reader, key string) (io.ReadCloser, error) {
	switch CodecFor(key) {
	case CodecBzip2:
		br, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, err
		}
		return br, nil
	case CodecZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{zr}, nil
	case CodecGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gr, nil
	default:
		return io.NopCloser(r), nil
	}
}

// NewWriter wraps w with the compressor matching key
func NewWriter(w io.Writer, key string) (io.WriteCloser, error) {
	switch CodecFor(key) {
	case CodecBzip2:
		return bzip2.NewWriter(w, nil)
	case CodecZstd:
		return zstd.NewWriter(w)
	case CodecGzip:
		return gzip.NewWriter(w), nil
	default:
		return nopWriteCloser{w}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// EncodeLines writes raw lines into an archive compressed according to key
func EncodeLines(key string, lines [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, key)
	if err != nil {
		return nil, fmt.Errorf("create %s writer: %w", CodecFor(key), err)
	}
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			return nil, errors.Join(err, w.Close())
		}
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return nil, errors.Join(err, w.Close())
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
