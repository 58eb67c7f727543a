// Package provider inserts the data provider level into the key hierarchy
// of a storage partition: <partition>/<TITLE>/... becomes
// <partition>/<PROVIDER>/<TITLE>/...
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/media"
	"github.com/impresso/impresso-essentials-go/internal/storage"
	"github.com/impresso/impresso-essentials-go/internal/utils"
)

// ArchiveSuffix selects the objects a migration moves
const ArchiveSuffix = ".jsonl.bz2"

// ErrUnexpectedLayout indicates a key without a media title where one is expected
var ErrUnexpectedLayout = errors.New("media title not found at an expected place")

// Options controls a migration
type Options struct {
	// DestBucket receives the re-keyed objects; defaults to the source bucket
	DestBucket       string
	RemoveSourceKeys bool
	// DryRun lists the intended actions without copying or deleting
	DryRun bool
}

// Summary counts what a migration did
type Summary struct {
	Copied  int
	Skipped int
	Deleted int
	Failed  int
	Planned int
}

// Migrator copies the archives of a partition under their provider
type Migrator struct {
	Store    domain.ObjectStore
	Workers  int
	Progress bool
	Logger   *utils.Logger
}

// ResolveKey returns the media title of an archive key of the partition,
// and the provider already present in the key, if any.
func ResolveKey(key, partition string) (title, found string, err error) {
	rel := key
	if p := strings.Trim(partition, "/"); p != "" {
		rel = strings.TrimPrefix(key, p+"/")
	}
	segments := strings.Split(rel, "/")
	if len(segments) < 2 {
		return "", "", fmt.Errorf("%s: %w", key, ErrUnexpectedLayout)
	}

	first, second := segments[0], segments[1]
	switch {
	case media.IsKnownTitle(first) && !media.IsKnownTitle(second):
		return first, "", nil
	case media.IsKnownProvider(first) && media.ProviderHasTitle(first, second):
		return second, first, nil
	}
	return "", "", fmt.Errorf("%s: %w", key, ErrUnexpectedLayout)
}

// DestKey inserts provider right after the partition in key
func DestKey(key, partition, provider string) string {
	p := strings.Trim(partition, "/")
	if p == "" {
		return provider + "/" + key
	}
	return p + "/" + provider + "/" + strings.TrimPrefix(key, p+"/")
}

// Run migrates every archive of src. A key that cannot be resolved is
// logged and counted as failed; the run goes on.
func (m *Migrator) Run(ctx context.Context, src storage.Location, opts Options) (Summary, error) {
	log := m.Logger.OrNop().WithComponent("provider")
	destBucket := opts.DestBucket
	if destBucket == "" {
		destBucket = src.Bucket
	}

	objects, err := m.Store.List(ctx, src.Bucket, src.ListPrefix(), ArchiveSuffix)
	if err != nil {
		return Summary{}, err
	}
	log.Info().
		Str("partition", src.URI()).
		Str("dest_bucket", destBucket).
		Bool("remove_src_keys", opts.RemoveSourceKeys).
		Bool("dry_run", opts.DryRun).
		Int("archives", len(objects)).
		Msg("Adding provider level")

	var copied, skipped, deleted, failed, planned atomic.Int64

	bar := utils.NewSilentProgressBar(len(objects))
	if m.Progress && !opts.DryRun {
		bar = utils.NewProgressBar(len(objects), utils.DescMigrating)
	}
	defer bar.Finish()

	_ = utils.ParallelForEach(ctx, objects, m.Workers, func(ctx context.Context, obj domain.ObjectInfo) error {
		defer func() { _ = bar.Add(1) }()
		klog := log.WithKey(obj.Key)

		title, found, err := ResolveKey(obj.Key, src.Prefix)
		if err != nil {
			failed.Add(1)
			klog.Error().Err(err).Msg("Cannot resolve media title")
			return nil
		}
		if found != "" {
			skipped.Add(1)
			klog.Debug().Str("provider", found).Msg("Key already has its provider")
			return nil
		}
		provider, _ := media.ProviderFor(title)
		dst := domain.ObjectRef{Bucket: destBucket, Key: DestKey(obj.Key, src.Prefix, provider)}

		if opts.DryRun {
			planned.Add(1)
			klog.Info().Str("dst", dst.URI()).Bool("delete_src", opts.RemoveSourceKeys).Msg("[DRY-RUN] Would copy")
			return nil
		}

		done, err := m.migrate(ctx, obj, dst, klog)
		switch {
		case err != nil:
			failed.Add(1)
			klog.Error().Err(err).Str("dst", dst.URI()).Msg("Copy failed")
			return nil
		case done:
			copied.Add(1)
		default:
			skipped.Add(1)
		}

		if opts.RemoveSourceKeys {
			if err := m.Store.Delete(context.WithoutCancel(ctx), obj.Bucket, obj.Key); err != nil {
				failed.Add(1)
				klog.Error().Err(err).Msg("Failed to delete source key")
				return nil
			}
			deleted.Add(1)
			klog.Debug().Str("dst", dst.URI()).Msg("Source key deleted")
		}
		return nil
	})

	s := Summary{
		Copied:  int(copied.Load()),
		Skipped: int(skipped.Load()),
		Deleted: int(deleted.Load()),
		Failed:  int(failed.Load()),
		Planned: int(planned.Load()),
	}
	log.Info().
		Int("copied", s.Copied).
		Int("skipped", s.Skipped).
		Int("deleted", s.Deleted).
		Int("failed", s.Failed).
		Int("planned", s.Planned).
		Msg("Migration done")
	return s, ctx.Err()
}

// migrate copies obj to dst with its metadata unless dst already exists.
// It reports whether a copy was made.
func (m *Migrator) migrate(ctx context.Context, obj domain.ObjectInfo, dst domain.ObjectRef, log *utils.Logger) (bool, error) {
	_, err := m.Store.Stat(ctx, dst.Bucket, dst.Key)
	if err == nil {
		log.Info().Str("dst", dst.URI()).Msg("Destination key already exists, skipping")
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	src := domain.ObjectRef{Bucket: obj.Bucket, Key: obj.Key}
	if _, err := m.Store.Copy(context.WithoutCancel(ctx), src, dst, domain.CopyOptions{}); err != nil {
		return false, err
	}
	log.Debug().Str("dst", dst.URI()).Msg("Copied")
	return true, nil
}
