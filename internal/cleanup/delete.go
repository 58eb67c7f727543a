// Package cleanup removes whole key prefixes from object storage
package cleanup

import (
	"context"
	"fmt"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/storage"
	"github.com/impresso/impresso-essentials-go/internal/utils"
)

// Deleter removes every object under a location
type Deleter struct {
	Store    domain.ObjectStore
	Workers  int
	Progress bool
	Logger   *utils.Logger
}

// DeletePrefix removes every object of store under loc and returns how many
// were removed. A location without prefix is refused. In dry-run mode the
// objects are only counted and logged.
func DeletePrefix(ctx context.Context, store domain.ObjectStore, loc storage.Location, dryRun bool) (int, error) {
	return (&Deleter{Store: store}).Delete(ctx, loc, dryRun)
}

// Delete is DeletePrefix with the deleter's workers and logger
func (d *Deleter) Delete(ctx context.Context, loc storage.Location, dryRun bool) (int, error) {
	if loc.Prefix == "" {
		return 0, domain.NewConfigurationError("prefix", fmt.Sprintf("refusing to empty the whole bucket %s", loc.Bucket))
	}
	log := d.Logger.OrNop().WithComponent("cleanup")

	objects, err := d.Store.List(ctx, loc.Bucket, loc.Prefix, "")
	if err != nil {
		return 0, err
	}
	if dryRun {
		for _, obj := range objects {
			log.Info().Str("key", obj.Key).Msg("[DRY-RUN] Would delete")
		}
		return len(objects), nil
	}

	bar := utils.NewSilentProgressBar(len(objects))
	if d.Progress {
		bar = utils.NewProgressBar(len(objects), utils.DescDeleting)
	}
	defer bar.Finish()

	errs := utils.ParallelForEach(ctx, objects, d.Workers, func(ctx context.Context, obj domain.ObjectInfo) error {
		defer func() { _ = bar.Add(1) }()
		return d.Store.Delete(ctx, obj.Bucket, obj.Key)
	})

	deleted := 0
	for _, err := range errs {
		if err == nil {
			deleted++
		}
	}
	log.Info().Str("prefix", loc.URI()).Int("deleted", deleted).Int("total", len(objects)).Msg("Deleted keys")

	if failed := utils.CollectErrors(errs); len(failed) > 0 {
		return deleted, fmt.Errorf("%d of %d deletions failed: %w", len(failed), len(objects), failed[0])
	}
	return deleted, nil
}
