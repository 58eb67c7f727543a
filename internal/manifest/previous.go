package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/storage"
	"github.com/impresso/impresso-essentials-go/internal/utils"
)

// Encode serializes a manifest the way it is published
func Encode(m *Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a published manifest
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if _, err := m.ParsedVersion(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadPrevious reads the manifest stored at uri. An empty uri returns nil.
func LoadPrevious(ctx context.Context, store domain.ObjectStore, uri string) (*Manifest, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, nil
	}
	loc, err := storage.ParseLocation(uri)
	if err != nil {
		return nil, domain.WrapConfigurationError("previous_mft_s3_path", err)
	}
	if loc.Prefix == "" {
		return nil, domain.NewConfigurationError("previous_mft_s3_path", fmt.Sprintf("%q names a bucket, not a manifest", uri))
	}

	body, err := store.Get(ctx, loc.Bucket, loc.Prefix)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.WrapConfigurationError("previous_mft_s3_path", err)
		}
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, domain.NewStorageAccessError("get", loc.Bucket, loc.Prefix, err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, domain.WrapConfigurationError("previous_mft_s3_path", fmt.Errorf("%s: %w", loc, err))
	}
	return m, nil
}

// FindLatest returns the URI of the manifest of stage with the highest
// version stored directly under loc, or "" when there is none.
func FindLatest(ctx context.Context, store domain.ObjectLister, loc storage.Location, stage string) (string, error) {
	objects, err := store.List(ctx, loc.Bucket, loc.ListPrefix(), ".json")
	if err != nil {
		return "", err
	}

	var (
		best    Version
		bestKey string
	)
	for _, obj := range objects {
		if path.Dir(obj.Key) != dirOf(loc) {
			continue
		}
		name := strings.TrimSuffix(path.Base(obj.Key), ".json")
		tag, ok := strings.CutPrefix(name, stage+"_")
		if !ok {
			continue
		}
		v, err := ParseVersion(tag)
		if err != nil {
			continue
		}
		if bestKey == "" || best.Less(v) {
			best, bestKey = v, obj.Key
		}
	}
	if bestKey == "" {
		return "", nil
	}
	return storage.Location{Bucket: loc.Bucket, Prefix: bestKey}.URI(), nil
}

// ResolvePrevious loads the previous manifest named by cfg, or the latest
// manifest of the stage stored in the output partition. A configured manifest
// older than the latest stored one gives way to the latest, so a rerun with
// the same run config never computes a version that already exists.
func ResolvePrevious(ctx context.Context, store domain.ObjectStore, cfg *Config, log *utils.Logger) (*Manifest, error) {
	log = log.OrNop().WithComponent("manifest").WithStage(cfg.DataStage)

	latest, err := FindLatest(ctx, store, cfg.Output(), cfg.DataStage)
	if err != nil {
		return nil, err
	}
	if cfg.PreviousManifest == "" {
		return LoadPrevious(ctx, store, latest)
	}

	configured, err := LoadPrevious(ctx, store, cfg.PreviousManifest)
	if err != nil || latest == "" {
		return configured, err
	}
	newest, err := LoadPrevious(ctx, store, latest)
	if err != nil {
		return nil, err
	}

	cv, err := configured.ParsedVersion()
	if err != nil {
		return nil, domain.WrapConfigurationError("previous_mft_s3_path", err)
	}
	nv, err := newest.ParsedVersion()
	if err != nil {
		return nil, err
	}
	if cv.Less(nv) {
		log.Warn().
			Str("configured", cfg.PreviousManifest).
			Str("latest", latest).
			Msg("Configured previous manifest is outdated, using the latest one")
		return newest, nil
	}
	return configured, nil
}

func dirOf(loc storage.Location) string {
	if loc.Prefix == "" {
		return "."
	}
	return loc.Prefix
}
