package manifest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/impresso/impresso-essentials-go/internal/archive"
	"github.com/impresso/impresso-essentials-go/internal/cache"
	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/media"
	"github.com/impresso/impresso-essentials-go/internal/stage"
	"github.com/impresso/impresso-essentials-go/internal/stats"
	"github.com/impresso/impresso-essentials-go/internal/storage"
	"github.com/impresso/impresso-essentials-go/internal/utils"
)

// Builder computes manifests. It only reads from storage.
type Builder struct {
	Store   domain.ObjectStore
	Cache   *cache.StatsCache
	Commits domain.CommitResolver
	Now     func() time.Time
	NewID   func() string
	Workers int
	// Progress renders a progress bar while archives are scanned
	Progress bool
	Logger   *utils.Logger
}

// scanUnit is a set of archives whose records belong to title. An empty
// title attributes each record to the title prefixing its id.
type scanUnit struct {
	title   string
	objects []domain.ObjectInfo
}

// Build computes the manifest of the partition described by cfg. previous
// is the last manifest of the same stage, or nil.
func (b *Builder) Build(ctx context.Context, cfg *Config, previous *Manifest) (*Manifest, error) {
	if cfg == nil {
		return nil, domain.NewConfigurationError("", "no run configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.Store == nil {
		return nil, domain.NewConfigurationError("storage", "no object store")
	}
	if b.Commits == nil {
		return nil, domain.NewConfigurationError("git_repository", "no commit resolver")
	}

	log := b.Logger.OrNop().WithComponent("manifest").WithStage(cfg.DataStage)

	var prevVersion Version
	if previous != nil {
		if previous.DataStage != cfg.DataStage {
			return nil, domain.NewConfigurationError("previous_mft_s3_path",
				fmt.Sprintf("previous manifest describes stage %q, not %q", previous.DataStage, cfg.DataStage))
		}
		v, err := previous.ParsedVersion()
		if err != nil {
			return nil, domain.WrapConfigurationError("previous_mft_s3_path", err)
		}
		prevVersion = v
	}

	commit, err := b.Commits.HeadCommit(cfg.GitRepository)
	if err != nil {
		return nil, err
	}

	units, total, err := b.collect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("archives", total).
		Int("units", len(units)).
		Bool("altogether", cfg.ComputeAltogether).
		Msg("Collected archives")

	if cfg.CheckArchives {
		if err := b.verify(ctx, units, total, log); err != nil {
			return nil, err
		}
	}

	results, err := b.compute(ctx, cfg, units, total, log)
	if err != nil {
		return nil, err
	}

	now := b.now()
	m := &Manifest{
		DataStage:      cfg.DataStage,
		GenerationDate: now.Format(DateLayout),
		ComputationID:  b.newID(),
		InputBucket:    cfg.InputBucket,
		OutputBucket:   cfg.OutputBucket,
		CodeGitCommit:  commit,
		ModelID:        cfg.ModelID,
		RunID:          cfg.RunID,
		IsPatch:        cfg.IsPatch,
		PatchedFields:  cloneStrings(cfg.PatchedFields),
		OnlyCounting:   cfg.OnlyCounting,
		MediaList:      diffEntries(cfg, previous, results, commit, now),
		Notes:          notesFor(cfg),
	}
	m.OverallStatistics = overall(m.MediaList)

	inc := incrementFor(cfg, previous)
	if previous == nil {
		m.Version = InitialVersion(inc).String()
	} else {
		m.PreviousVersion = prevVersion.String()
		m.Version = prevVersion.Next(inc).String()
	}

	log.Info().
		Str("version", m.Version).
		Int("titles", len(m.MediaList)).
		Msg("Manifest computed")
	return m, nil
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now().UTC()
	}
	return time.Now().UTC()
}

func (b *Builder) newID() string {
	if b.NewID != nil {
		return b.NewID()
	}
	return uuid.NewString()
}

func (b *Builder) statsCache() *cache.StatsCache {
	if b.Cache == nil {
		return cache.NewStatsCache(nil, 0)
	}
	return b.Cache
}

// collect lists the archives of the partition and groups them into scan units
func (b *Builder) collect(ctx context.Context, cfg *Config, log *utils.Logger) ([]scanUnit, int, error) {
	loc := cfg.Output()
	objects, err := b.Store.List(ctx, loc.Bucket, loc.ListPrefix(), cfg.FileExtensions)
	if err != nil {
		if !errors.Is(err, domain.ErrStorageAccess) {
			err = domain.NewStorageAccessError("list", loc.Bucket, loc.ListPrefix(), err)
		}
		return nil, 0, err
	}

	if cfg.ComputeAltogether {
		if len(objects) == 0 {
			return nil, 0, fmt.Errorf("%w: %s (%s)", ErrNoArchives, loc, cfg.FileExtensions)
		}
		units := make([]scanUnit, 0, len(objects))
		for _, obj := range objects {
			units = append(units, scanUnit{objects: []domain.ObjectInfo{obj}})
		}
		return units, len(objects), nil
	}

	groups := make(map[string][]domain.ObjectInfo)
	for _, obj := range objects {
		title := storage.TitleFromKey(obj.Key, loc.Prefix)
		if title == "" || !cfg.HasTitle(title) {
			continue
		}
		groups[title] = append(groups[title], obj)
	}
	for _, title := range cfg.Newspapers {
		if _, ok := groups[title]; !ok {
			log.Warn().Str("title", title).Msg("No archive found for requested title")
		}
	}

	titles := make([]string, 0, len(groups))
	total := 0
	for title, objs := range groups {
		titles = append(titles, title)
		total += len(objs)
	}
	if total == 0 {
		return nil, 0, fmt.Errorf("%w: %s (%s)", ErrNoArchives, loc, cfg.FileExtensions)
	}
	sort.Strings(titles)

	units := make([]scanUnit, 0, len(titles))
	for _, title := range titles {
		if !media.IsKnownTitle(title) {
			log.Warn().Str("title", title).Msg("Archives found for unknown media title")
		}
		units = append(units, scanUnit{title: title, objects: groups[title]})
	}
	return units, total, nil
}

// verify reads every archive fully and fails on the first corrupted one
func (b *Builder) verify(ctx context.Context, units []scanUnit, total int, log *utils.Logger) error {
	log.Info().Int("archives", total).Msg("Checking archives integrity")

	objects := make([]domain.ObjectInfo, 0, total)
	for _, u := range units {
		objects = append(objects, u.objects...)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := utils.ParallelForEach(ctx, objects, b.Workers, func(ctx context.Context, obj domain.ObjectInfo) error {
		if err := archive.Verify(ctx, b.Store, obj); err != nil {
			log.Error().Err(err).Str("key", obj.Key).Msg("Corrupted archive")
			cancel()
			return err
		}
		return nil
	})
	return firstCause(errs)
}

// compute scans every unit in parallel and returns the statistics per title
func (b *Builder) compute(ctx context.Context, cfg *Config, units []scanUnit, total int, log *utils.Logger) (map[string]*stats.TitleStats, error) {
	st := cfg.Stage()
	acc := stats.NewAccumulator(st)
	sc := b.statsCache()

	bar := utils.NewSilentProgressBar(total)
	if b.Progress {
		bar = utils.NewProgressBar(total, utils.DescScanning)
	}
	defer bar.Finish()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := utils.ParallelForEach(ctx, units, b.Workers, func(ctx context.Context, u scanUnit) error {
		ulog := log
		if u.title != "" {
			ulog = log.WithTitle(u.title)
		}
		for _, obj := range u.objects {
			p, err := b.scan(ctx, sc, st, obj, u.title, ulog)
			if err != nil {
				cancel()
				return err
			}
			acc.Merge(p)
			_ = bar.Add(1)
		}
		ulog.Debug().Int("archives", len(u.objects)).Msg("Title scanned")
		return nil
	})
	if err := firstCause(errs); err != nil {
		return nil, err
	}

	if skipped := acc.Skipped(); skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("Records without title or year were ignored")
	}

	results := acc.Result()
	if cfg.ComputeAltogether {
		for title := range results {
			if !cfg.HasTitle(title) {
				delete(results, title)
				continue
			}
			if !media.IsKnownTitle(title) {
				log.Warn().Str("title", title).Msg("Records found for unknown media title")
			}
		}
	}
	return results, nil
}

// scan returns the partial statistics of one archive, from cache when its
// ETag is unchanged
func (b *Builder) scan(ctx context.Context, sc *cache.StatsCache, st stage.DataStage, obj domain.ObjectInfo, title string, log *utils.Logger) (*stats.Partial, error) {
	if p, err := sc.Get(ctx, st.String(), obj, title); err == nil {
		log.Debug().Str("key", obj.Key).Msg("Statistics cache hit")
		return p, nil
	}

	p, err := stats.ComputeArchive(ctx, b.Store, obj, st, title)
	if err != nil {
		return nil, err
	}
	if p.Mismatched > 0 {
		log.Warn().
			Str("key", obj.Key).
			Str("title", title).
			Int("records", p.Mismatched).
			Msg("Skipping records belonging to another title")
	}
	if err := sc.Put(ctx, st.String(), obj, title, p); err != nil {
		log.Warn().Err(err).Str("key", obj.Key).Msg("Failed to cache statistics")
	}
	return p, nil
}

// firstCause returns the first error that is not a consequence of the
// cancellation triggered by another failure
func firstCause(errs []error) error {
	var canceled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			if canceled == nil {
				canceled = err
			}
			continue
		}
		return err
	}
	return canceled
}

// diffEntries builds the title entries of the new manifest from the current
// statistics and the previous manifest
func diffEntries(cfg *Config, previous *Manifest, results map[string]*stats.TitleStats, commit string, now time.Time) []TitleEntry {
	set := make(map[string]struct{}, len(results))
	for title := range results {
		set[title] = struct{}{}
	}
	for _, title := range previous.Titles() {
		set[title] = struct{}{}
	}
	titles := make([]string, 0, len(set))
	for title := range set {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	entries := make([]TitleEntry, 0, len(titles))
	for _, title := range titles {
		prev := previous.Title(title)
		cur, ok := results[title]
		switch {
		case ok:
			entries = append(entries, entryFor(cfg, cur, prev, commit, now))
		case !cfg.HasTitle(title):
			entries = append(entries, prev.clone())
		default:
			e := prev.clone()
			e.Removed = true
			entries = append(entries, e)
		}
	}
	return entries
}

// entryFor computes the entry of a title present in the partition
func entryFor(cfg *Config, cur *stats.TitleStats, prev *TitleEntry, commit string, now time.Time) TitleEntry {
	years := cur.YearList()

	if prev != nil && !prev.Removed && cfg.OnlyCounting && stats.YearsEqual(prev.YearCounts(), cur.Years) {
		return prev.clone()
	}

	e := TitleEntry{
		Title:                cur.Title,
		LastModificationDate: nextModificationDate(now, prev),
		CodeGitCommit:        commit,
		UpdateLevel:          LevelTitle,
		Totals:               cur.Total(),
	}

	var changed []string
	switch {
	case prev == nil:
		e.UpdateType = UpdateCreation
		changed = years
	case cfg.IsPatch:
		e.UpdateType = UpdatePatch
		changed = years
	default:
		e.UpdateType = UpdateFullRecompute
		prevYears := prev.YearCounts()
		changed = stats.ChangedYears(prevYears, cur.Years)
		scope := len(years)
		for y := range prevYears {
			if _, ok := cur.Years[y]; !ok {
				scope++
			}
		}
		if len(changed) > 0 && len(changed) < scope {
			e.UpdateLevel = LevelYear
		}
	}
	e.UpdatedYears = append([]string{}, changed...)

	if cfg.IsPatch {
		e.UpdatedFields = cloneStrings(cfg.PatchedFields)
	} else {
		e.UpdatedFields = cur.Fields()
	}

	changedSet := make(map[string]struct{}, len(changed))
	for _, y := range changed {
		changedSet[y] = struct{}{}
	}

	e.Statistics = make([]YearEntry, 0, len(years))
	for _, y := range years {
		ye := YearEntry{
			Granularity: GranularityYear,
			Element:     cur.Title + "-" + y,
			Year:        y,
			Stats:       cur.Years[y].Clone(),
		}
		var prevYear *YearEntry
		if prev != nil {
			prevYear = prev.Year(y)
		}
		if _, isChanged := changedSet[y]; !isChanged && prevYear != nil {
			ye.LastModificationDate = prevYear.LastModificationDate
			ye.UpdateType = prevYear.UpdateType
			ye.UpdatedFields = cloneStrings(prevYear.UpdatedFields)
			ye.CodeGitCommit = prevYear.CodeGitCommit
		} else {
			ye.LastModificationDate = e.LastModificationDate
			ye.UpdateType = e.UpdateType
			ye.UpdatedFields = cloneStrings(e.UpdatedFields)
			ye.CodeGitCommit = commit
		}
		e.Statistics = append(e.Statistics, ye)
	}
	return e
}

// nextModificationDate returns now, or one second after the previous
// modification date when now does not follow it
func nextModificationDate(now time.Time, prev *TitleEntry) string {
	d := now.UTC().Truncate(time.Second)
	if prev != nil {
		if t, err := prev.ModifiedAt(); err == nil && !d.After(t) {
			d = t.Add(time.Second)
		}
	}
	return d.Format(DateLayout)
}

// incrementFor returns the version component bumped by the run
func incrementFor(cfg *Config, previous *Manifest) Increment {
	if cfg.IsPatch || cfg.OnlyCounting {
		return IncrementPatch
	}
	if cfg.AllTitles() {
		return IncrementMajor
	}
	if previous == nil {
		return IncrementMajor
	}
	for _, e := range previous.MediaList {
		if !e.Removed && !cfg.HasTitle(e.Title) {
			return IncrementMinor
		}
	}
	return IncrementMajor
}

func notesFor(cfg *Config) string {
	if strings.TrimSpace(cfg.Notes) != "" {
		return cfg.Notes
	}
	note := fmt.Sprintf("Processing data to generate %s for ", cfg.DataStage)
	if cfg.AllTitles() {
		return note + "all newspaper titles."
	}
	return note + fmt.Sprintf("titles: [%s].", strings.Join(cfg.Newspapers, ", "))
}

// overall sums the statistics of the titles still present in the partition
func overall(entries []TitleEntry) stats.Counts {
	out := stats.Counts{"titles": 0}
	for _, e := range entries {
		if e.Removed {
			continue
		}
		out["titles"]++
		out.Add(e.Totals)
	}
	return out
}
