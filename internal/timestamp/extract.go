// Package timestamp stores in the object metadata of each archive the date
// of its most recent record, so that downstream consumers can detect which
// archives changed without reading them.
package timestamp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/impresso/impresso-essentials-go/internal/archive"
	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/utils"
)

// OutputLayout is the format of the stored timestamps
const OutputLayout = "2006-01-02T15:04:05Z"

// Record keys that may carry a timestamp
const (
	KeyTS        = "ts"
	KeyCDT       = "cdt"
	KeyTimestamp = "timestamp"

	langidentVersionKey = "impresso_language_identifier_version"
)

// inputLayouts are tried in order; timestamps without zone are taken as UTC
var inputLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
}

// ValidTSKey reports whether key is a record key LatestTimestamp accepts
func ValidTSKey(key string) bool {
	switch key {
	case KeyTS, KeyCDT, KeyTimestamp:
		return true
	}
	return false
}

// ParseTimestamp parses a record timestamp and returns it in UTC
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp format not recognized: %q", s)
}

// FormatTimestamp formats t the way it is stored in object metadata
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(OutputLayout)
}

// LatestTimestamp returns the most recent timestamp of the JSON-lines
// archive read from r, decompressed according to key. The value of a record
// is taken from tsKey, then cdt, timestamp and the langident version stamp.
// With allLines unset the first valid timestamp is returned. Records without
// a parsable value are skipped. When no record has one, fallback is returned,
// or ErrNoTimestamp if it is empty.
func LatestTimestamp(r io.Reader, key, tsKey string, allLines bool, fallback string) (string, error) {
	return latest(r, key, tsKey, allLines, fallback, nil)
}

func latest(r io.Reader, key, tsKey string, allLines bool, fallback string, log *utils.Logger) (string, error) {
	log = log.OrNop()
	if !ValidTSKey(tsKey) {
		return "", domain.NewConfigurationError("ts_key", fmt.Sprintf("unknown timestamp key %q", tsKey))
	}

	dec, err := archive.Open(r, key)
	if err != nil {
		return "", domain.NewIntegrityError(key, 0, err)
	}
	defer dec.Close()

	var (
		newest  time.Time
		found   bool
		skipped int
		line    int
	)
	br := bufio.NewReader(dec)
	for {
		raw, readErr := br.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return "", domain.NewIntegrityError(key, line+1, readErr)
		}
		if len(raw) > 0 {
			line++
			t, ok, err := recordTimestamp(bytes.TrimSpace(raw), tsKey)
			switch {
			case err != nil:
				skipped++
				log.Warn().Err(err).Int("line", line).Str("key", key).Msg("Skipping invalid record")
			case ok && !allLines:
				return FormatTimestamp(t), nil
			case ok && (!found || t.After(newest)):
				newest, found = t, true
			}
		}
		if readErr == io.EOF {
			break
		}
	}

	if skipped > 0 {
		log.Debug().Int("skipped", skipped).Str("key", key).Msg("Records skipped while reading timestamps")
	}
	if found {
		return FormatTimestamp(newest), nil
	}
	if fallback != "" {
		log.Warn().Str("key", key).Str("fallback", fallback).Msg("No valid timestamp found in records, using fallback")
		return fallback, nil
	}
	return "", fmt.Errorf("%s: %w", key, domain.ErrNoTimestamp)
}

// recordTimestamp returns the timestamp of one JSON line. ok is false when
// the record carries none.
func recordTimestamp(raw []byte, tsKey string) (t time.Time, ok bool, err error) {
	if len(raw) == 0 {
		return time.Time{}, false, nil
	}
	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil {
		return time.Time{}, false, fmt.Errorf("invalid JSON: %w", err)
	}

	v := candidate(rec, tsKey)
	if v == nil {
		return time.Time{}, false, nil
	}
	s, isString := v.(string)
	if !isString {
		return time.Time{}, false, fmt.Errorf("timestamp is not a string: %v", v)
	}
	t, err = ParseTimestamp(s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// candidate returns the first set value among the timestamp keys
func candidate(rec map[string]any, tsKey string) any {
	for _, k := range []string{tsKey, KeyCDT, KeyTimestamp} {
		if v := rec[k]; isSet(v) {
			return v
		}
	}
	if nested, ok := rec[langidentVersionKey].(map[string]any); ok {
		if v := nested[KeyTS]; isSet(v) {
			return v
		}
	}
	return nil
}

func isSet(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	}
	return true
}
