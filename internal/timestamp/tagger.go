package timestamp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/storage"
	"github.com/impresso/impresso-essentials-go/internal/utils"
)

// DefaultMetadataKey is the object metadata key holding the timestamp
const DefaultMetadataKey = "impresso-last-ts"

// ArchiveSuffix selects the archives a prefix run processes
const ArchiveSuffix = ".jsonl.bz2"

const (
	backupSuffix       = ".backup"
	defaultContentType = "application/octet-stream"
)

// Options controls how archives are tagged
type Options struct {
	MetadataKey string
	TSKey       string
	AllLines    bool
	Force       bool
	// Output receives the tagged copy instead of the source object.
	// Only honored by TagObject.
	Output *domain.ObjectRef
}

func (o Options) withDefaults() Options {
	if o.MetadataKey == "" {
		o.MetadataKey = DefaultMetadataKey
	}
	if o.TSKey == "" {
		o.TSKey = KeyTS
	}
	return o
}

// Summary counts the archives handled by a multi-object run
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
	// NotFound counts archives without an entry in the manifest
	NotFound int
}

// Total returns the number of archives considered
func (s Summary) Total() int {
	return s.Processed + s.Skipped + s.Failed + s.NotFound
}

// Tagger writes timestamps into object metadata
type Tagger struct {
	Store   domain.ObjectStore
	Workers int
	// DryRun only logs the updates that would be made
	DryRun   bool
	Progress bool
	Logger   *utils.Logger
}

// TagObject sets the metadata key of src to the latest timestamp of its
// records and returns that timestamp. An object already carrying the key
// fails with ErrAlreadyTagged unless opts.Force is set. The object is backed
// up before its metadata is replaced; the backup is kept when the rewritten
// object does not match it.
func (t *Tagger) TagObject(ctx context.Context, src domain.ObjectRef, opts Options) (string, error) {
	opts = opts.withDefaults()
	log := t.Logger.OrNop().WithComponent("timestamp").WithKey(src.Key)

	head, err := t.Store.Stat(ctx, src.Bucket, src.Key)
	if err != nil {
		return "", err
	}
	if _, ok := head.MetadataValue(opts.MetadataKey); ok && !opts.Force {
		log.Info().Str("metadata_key", opts.MetadataKey).Msg("Metadata key already set, skipping")
		return "", fmt.Errorf("%s: %w", src.URI(), domain.ErrAlreadyTagged)
	}

	var fallback string
	if !head.LastModified.IsZero() {
		fallback = FormatTimestamp(head.LastModified)
	}

	body, err := t.Store.Get(ctx, src.Bucket, src.Key)
	if err != nil {
		return "", err
	}
	ts, err := latest(body, src.Key, opts.TSKey, opts.AllLines, fallback, log)
	body.Close()
	if err != nil {
		return "", err
	}

	dst := src
	if opts.Output != nil {
		dst = *opts.Output
	}
	if t.DryRun {
		log.Info().Str("dst", dst.URI()).Str(opts.MetadataKey, ts).Msg("[DRY-RUN] Would set timestamp")
		return ts, nil
	}

	if err := t.rewrite(ctx, head, dst, opts.MetadataKey, ts, log); err != nil {
		return "", err
	}
	log.Debug().Str(opts.MetadataKey, ts).Msg("Metadata updated")
	return ts, nil
}

// rewrite copies head to dst with the updated metadata, guarded by a backup
// of the source. The copies are not interrupted by a canceled ctx.
func (t *Tagger) rewrite(ctx context.Context, head domain.ObjectInfo, dst domain.ObjectRef, metaKey, ts string, log *utils.Logger) error {
	src := domain.ObjectRef{Bucket: head.Bucket, Key: head.Key}
	backup := domain.ObjectRef{Bucket: head.Bucket, Key: head.Key + backupSuffix}
	critical := context.WithoutCancel(ctx)

	backupInfo, err := t.Store.Copy(critical, src, backup, domain.CopyOptions{})
	if err != nil {
		return err
	}
	current, err := t.Store.Stat(critical, src.Bucket, src.Key)
	if err != nil {
		return err
	}
	if current.ETag != backupInfo.ETag {
		log.Error().Str("backup", backup.Key).Msg("Backup checksum mismatch, aborting")
		return fmt.Errorf("backup of %s: %w", src.URI(), domain.ErrChecksumMismatch)
	}

	meta := make(map[string]string, len(head.Metadata)+1)
	for k, v := range head.Metadata {
		meta[k] = v
	}
	meta[metaKey] = ts

	contentType := head.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	updated, err := t.Store.Copy(critical, src, dst, domain.CopyOptions{
		Metadata:        meta,
		ReplaceMetadata: true,
		ContentType:     contentType,
	})
	if err != nil {
		return err
	}
	if updated.ETag != backupInfo.ETag {
		log.Error().Str("backup", backup.Key).Msg("Checksum mismatch after update, backup retained")
		return fmt.Errorf("update of %s: %w", dst.URI(), domain.ErrChecksumMismatch)
	}

	if err := t.Store.Delete(critical, backup.Bucket, backup.Key); err != nil {
		log.Warn().Err(err).Str("backup", backup.Key).Msg("Failed to delete backup")
	}
	return nil
}

// TagPrefix tags every archive under loc. Archives already tagged are
// skipped; failures are logged and counted, and the run goes on.
func (t *Tagger) TagPrefix(ctx context.Context, loc storage.Location, opts Options) (Summary, error) {
	opts.Output = nil
	log := t.Logger.OrNop().WithComponent("timestamp")

	objects, err := t.Store.List(ctx, loc.Bucket, loc.Prefix, ArchiveSuffix)
	if err != nil {
		return Summary{}, err
	}
	log.Info().Str("prefix", loc.URI()).Int("archives", len(objects)).Msg("Tagging archives")

	var processed, skipped, failed atomic.Int64
	bar := t.progressBar(len(objects))
	defer bar.Finish()

	errs := utils.ParallelForEach(ctx, objects, t.Workers, func(ctx context.Context, obj domain.ObjectInfo) error {
		defer func() { _ = bar.Add(1) }()

		_, err := t.TagObject(ctx, loc.Ref(obj.Key), opts)
		switch {
		case err == nil:
			processed.Add(1)
		case errors.Is(err, domain.ErrAlreadyTagged):
			skipped.Add(1)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			failed.Add(1)
			log.Warn().Err(err).Str("key", obj.Key).Msg("Skipping archive due to error")
		}
		return nil
	})

	summary := Summary{
		Processed: int(processed.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}
	logSummary(log, summary)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, utils.FirstError(errs)
}

func (t *Tagger) progressBar(total int) progressBar {
	if t.Progress && !t.DryRun {
		return utils.NewProgressBar(total, utils.DescTagging)
	}
	return utils.NewSilentProgressBar(total)
}

// progressBar is the part of progressbar.ProgressBar the tagger uses
type progressBar interface {
	Add(int) error
	Finish() error
}

func logSummary(log *utils.Logger, s Summary) {
	log.Info().
		Int("total", s.Total()).
		Int("processed", s.Processed).
		Int("skipped", s.Skipped).
		Int("failed", s.Failed).
		Int("not_found", s.NotFound).
		Msg("Overall statistics")
}
