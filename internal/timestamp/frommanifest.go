package timestamp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/manifest"
	"github.com/impresso/impresso-essentials-go/internal/storage"
	"github.com/impresso/impresso-essentials-go/internal/utils"
)

// LoadManifestTimestamps reads the manifest at uri and returns the last
// modification date of each of its years, keyed by element ("DLE-1900").
func LoadManifestTimestamps(ctx context.Context, store domain.ObjectStore, uri string, log *utils.Logger) (map[string]string, error) {
	log = log.OrNop()
	loc, err := storage.ParseLocation(uri)
	if err != nil {
		return nil, err
	}
	if loc.Prefix == "" {
		return nil, domain.NewConfigurationError("from_manifest", fmt.Sprintf("%q names a bucket, not a manifest", uri))
	}

	body, err := store.Get(ctx, loc.Bucket, loc.Prefix)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, domain.NewStorageAccessError("get", loc.Bucket, loc.Prefix, err)
	}
	m, err := manifest.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest %s: %w", uri, err)
	}

	out := make(map[string]string)
	for _, e := range m.MediaList {
		if e.Title == "" {
			continue
		}
		for _, y := range e.Statistics {
			if y.Granularity != manifest.GranularityYear || y.Element == "" || y.LastModificationDate == "" {
				continue
			}
			t, err := time.Parse(manifest.DateLayout, y.LastModificationDate)
			if err != nil {
				log.Warn().Err(err).Str("element", y.Element).Msg("Invalid modification date in manifest")
				continue
			}
			out[y.Element] = FormatTimestamp(t)
		}
	}
	log.Info().Int("elements", len(out)).Str("uri", uri).Msg("Loaded year timestamps from manifest")
	return out, nil
}

// ElementFromKey returns the "TITLE-YEAR" element an archive key stands
// for: the last two dash-separated parts of its file name.
func ElementFromKey(key string) string {
	base := strings.TrimSuffix(path.Base(key), ArchiveSuffix)
	parts := strings.Split(base, "-")
	if len(parts) < 2 {
		return base
	}
	return strings.Join(parts[len(parts)-2:], "-")
}

// TagFromManifest sets the metadata key of the archives stored next to the
// manifest at uri, or one directory below it, to the modification date the
// manifest records for their year. The archives are not read.
func (t *Tagger) TagFromManifest(ctx context.Context, uri string, opts Options) (Summary, error) {
	opts = opts.withDefaults()
	log := t.Logger.OrNop().WithComponent("timestamp")

	timestamps, err := LoadManifestTimestamps(ctx, t.Store, uri, log)
	if err != nil {
		return Summary{}, err
	}

	mloc := storage.MustParseLocation(uri)
	dir := keyDir(mloc.Prefix)
	loc := storage.Location{Bucket: mloc.Bucket, Prefix: dir}
	log.Info().Str("prefix", loc.URI()).Msg("Derived prefix from manifest location")

	objects, err := t.Store.List(ctx, loc.Bucket, loc.ListPrefix(), ArchiveSuffix)
	if err != nil {
		return Summary{}, err
	}

	var candidates []domain.ObjectInfo
	for _, obj := range objects {
		if depth := strings.Count(loc.RelativeKey(obj.Key), "/"); depth > 1 {
			log.Debug().Str("key", obj.Key).Int("depth", depth).Msg("Skipping archive nested too deep")
			continue
		}
		candidates = append(candidates, obj)
	}

	var processed, skipped, failed, notFound atomic.Int64
	bar := t.progressBar(len(candidates))
	defer bar.Finish()

	errs := utils.ParallelForEach(ctx, candidates, t.Workers, func(ctx context.Context, obj domain.ObjectInfo) error {
		defer func() { _ = bar.Add(1) }()

		element := ElementFromKey(obj.Key)
		ts, ok := timestamps[element]
		if !ok {
			log.Debug().Str("key", obj.Key).Str("element", element).Msg("No manifest entry for archive")
			notFound.Add(1)
			return nil
		}

		switch err := t.setMetadata(ctx, obj, opts, ts, log); {
		case err == nil:
			processed.Add(1)
		case errors.Is(err, domain.ErrAlreadyTagged):
			skipped.Add(1)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			failed.Add(1)
			log.Warn().Err(err).Str("key", obj.Key).Msg("Failed to update metadata")
		}
		return nil
	})

	summary := Summary{
		Processed: int(processed.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
		NotFound:  int(notFound.Load()),
	}
	logSummary(log, summary)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, utils.FirstError(errs)
}

// setMetadata replaces the metadata of obj in place with metaKey set to ts
func (t *Tagger) setMetadata(ctx context.Context, obj domain.ObjectInfo, opts Options, ts string, log *utils.Logger) error {
	head, err := t.Store.Stat(ctx, obj.Bucket, obj.Key)
	if err != nil {
		return err
	}
	if _, ok := head.MetadataValue(opts.MetadataKey); ok && !opts.Force {
		log.Info().Str("key", obj.Key).Msg("Metadata key already set, skipping")
		return domain.ErrAlreadyTagged
	}
	if t.DryRun {
		log.Info().Str("key", obj.Key).Str(opts.MetadataKey, ts).Msg("[DRY-RUN] Would set timestamp")
		return nil
	}

	meta := make(map[string]string, len(head.Metadata)+1)
	for k, v := range head.Metadata {
		meta[k] = v
	}
	meta[opts.MetadataKey] = ts
	contentType := head.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	ref := domain.ObjectRef{Bucket: obj.Bucket, Key: obj.Key}
	_, err = t.Store.Copy(context.WithoutCancel(ctx), ref, ref, domain.CopyOptions{
		Metadata:        meta,
		ReplaceMetadata: true,
		ContentType:     contentType,
	})
	return err
}
