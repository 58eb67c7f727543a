package timestamp

import (
	"context"
	"path"
	"sort"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/storage"
)

// Report lists the archives missing a metadata key
type Report struct {
	Total   int
	Missing []string
}

// DirReport lists the directories holding archives missing a metadata key
type DirReport struct {
	Total       int
	Directories int
	Missing     []string
}

// missingKeys returns the keys of the archives under loc that lack metaKey.
// Archives whose metadata cannot be read count as missing.
func (t *Tagger) missingKeys(ctx context.Context, loc storage.Location, metaKey string) ([]domain.ObjectInfo, []string, error) {
	if metaKey == "" {
		metaKey = DefaultMetadataKey
	}
	log := t.Logger.OrNop().WithComponent("timestamp")

	objects, err := t.Store.List(ctx, loc.Bucket, loc.Prefix, ArchiveSuffix)
	if err != nil {
		return nil, nil, err
	}

	var missing []string
	for _, obj := range objects {
		head, err := t.Store.Stat(ctx, obj.Bucket, obj.Key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			log.Warn().Err(err).Str("key", obj.Key).Msg("Error checking metadata")
			missing = append(missing, obj.Key)
			continue
		}
		if _, ok := head.MetadataValue(metaKey); !ok {
			log.Debug().Str("key", obj.Key).Msg("Metadata key missing")
			missing = append(missing, obj.Key)
		}
	}
	return objects, missing, nil
}

// ReportMissing lists the URIs of the archives under loc without metaKey
func (t *Tagger) ReportMissing(ctx context.Context, loc storage.Location, metaKey string) (Report, error) {
	objects, keys, err := t.missingKeys(ctx, loc, metaKey)
	if err != nil {
		return Report{}, err
	}

	r := Report{Total: len(objects), Missing: make([]string, 0, len(keys))}
	for _, k := range keys {
		r.Missing = append(r.Missing, loc.Ref(k).URI())
	}
	t.Logger.OrNop().Info().
		Int("total", r.Total).
		Int("missing", len(r.Missing)).
		Msg("Report summary")
	return r, nil
}

// ReportMissingDirs lists, sorted, the directories under loc holding at
// least one archive without metaKey. Archives at the bucket root are counted
// but belong to no directory.
func (t *Tagger) ReportMissingDirs(ctx context.Context, loc storage.Location, metaKey string) (DirReport, error) {
	objects, keys, err := t.missingKeys(ctx, loc, metaKey)
	if err != nil {
		return DirReport{}, err
	}
	dirs := make(map[string]struct{})
	for _, obj := range objects {
		if d := keyDir(obj.Key); d != "" {
			dirs[d] = struct{}{}
		}
	}
	missing := make(map[string]struct{})
	for _, k := range keys {
		if d := keyDir(k); d != "" {
			missing[d] = struct{}{}
		}
	}

	r := DirReport{Total: len(objects), Directories: len(dirs), Missing: make([]string, 0, len(missing))}
	for d := range missing {
		r.Missing = append(r.Missing, "s3://"+loc.Bucket+"/"+d+"/")
	}
	sort.Strings(r.Missing)

	t.Logger.OrNop().Info().
		Int("total", r.Total).
		Int("directories", r.Directories).
		Int("missing", len(r.Missing)).
		Msg("Directory report summary")
	return r, nil
}

func keyDir(key string) string {
	d := path.Dir(key)
	if d == "." {
		return ""
	}
	return d
}
