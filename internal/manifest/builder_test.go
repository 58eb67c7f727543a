package manifest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/impresso/impresso-essentials-go/internal/archive"
	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/stats"
	"github.com/impresso/impresso-essentials-go/internal/storage"
	"github.com/impresso/impresso-essentials-go/tests/mocks"
	"github.com/impresso/impresso-essentials-go/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testBucket = "32-processed-data-final"
	testCommit = "3f2c1a9e8b7d6c5f4e3d2c1b0a9f8e7d6c5b4a39"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func entitiesKey(title, year string) string {
	return fmt.Sprintf("entities/%s/%s-%s.jsonl.bz2", title, title, year)
}

// seedEntities stores n records per title and year
func seedEntities(t *testing.T, store *storage.MemoryStore, n int, titleYears map[string][]string) {
	t.Helper()
	for title, years := range titleYears {
		for _, year := range years {
			testutil.PutArchive(t, store, testBucket, entitiesKey(title, year), testutil.EntitiesArchive(title, year, n))
		}
	}
}

func newTestBuilder(t *testing.T, store domain.ObjectStore, now time.Time) *Builder {
	t.Helper()
	return &Builder{
		Store:   store,
		Commits: testutil.StaticCommit(testCommit),
		Now:     func() time.Time { return now },
		NewID:   func() string { return "computation-1" },
		Workers: 3,
		Logger:  testutil.NewTestLogger(t),
	}
}

func entitiesConfig(newspapers ...string) *Config {
	return &Config{
		DataStage:      "entities",
		OutputBucket:   testBucket + "/entities",
		GitRepository:  "/srv/impresso-annotation",
		FileExtensions: ".jsonl.bz2",
		Newspapers:     newspapers,
	}
}

// roundTrip returns the manifest as a later run reads it back
func roundTrip(t *testing.T, m *Manifest) *Manifest {
	t.Helper()
	data, err := Encode(m)
	require.NoError(t, err)
	out, err := Decode(data)
	require.NoError(t, err)
	return out
}

func TestBuild_EntitiesCreation(t *testing.T) {
	store := testutil.NewStore(t)
	seedEntities(t, store, 3, map[string][]string{"DLE": {"1900"}, "BNN": {"1900", "1901"}})

	m, err := newTestBuilder(t, store, t0).Build(context.Background(), entitiesConfig("DLE"), nil)
	require.NoError(t, err)

	require.Len(t, m.MediaList, 1)
	e := m.MediaList[0]
	assert.Equal(t, "DLE", e.Title)
	assert.Equal(t, UpdateCreation, e.UpdateType)
	assert.Equal(t, LevelTitle, e.UpdateLevel)
	assert.Equal(t, []string{"1900"}, e.UpdatedYears)
	assert.Equal(t, []string{"content_items", "issues", "ne_entities", "ne_mentions"}, e.UpdatedFields)
	assert.Equal(t, testCommit, e.CodeGitCommit)
	assert.Equal(t, "2025-03-01 10:00:00", e.LastModificationDate)

	require.Len(t, e.Statistics, 1)
	year := e.Statistics[0]
	assert.Equal(t, GranularityYear, year.Granularity)
	assert.Equal(t, "DLE-1900", year.Element)
	assert.Equal(t, stats.Counts{"content_items": 3, "issues": 1, "ne_mentions": 3, "ne_entities": 3}, year.Stats)

	assert.Equal(t, "v1.0.0", m.Version)
	assert.Empty(t, m.PreviousVersion)
	assert.Equal(t, "entities", m.DataStage)
	assert.Equal(t, "computation-1", m.ComputationID)
	assert.Equal(t, "Processing data to generate entities for titles: [DLE].", m.Notes)
	assert.Equal(t, 1, m.OverallStatistics["titles"])
	assert.Equal(t, 3, m.OverallStatistics["content_items"])
}

func TestBuild_EmptyFilterProcessesAllTitles(t *testing.T) {
	store := testutil.NewStore(t)
	seedEntities(t, store, 2, map[string][]string{
		"DLE": {"1900", "1901"},
		"BNN": {"1850"},
		"XYZ": {"2001"},
	})

	all, err := newTestBuilder(t, store, t0).Build(context.Background(), entitiesConfig(), nil)
	require.NoError(t, err)
	explicit, err := newTestBuilder(t, store, t0).Build(context.Background(), entitiesConfig("DLE", "BNN", "XYZ"), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"BNN", "DLE", "XYZ"}, all.Titles())
	if diff := cmp.Diff(explicit.MediaList, all.MediaList); diff != "" {
		t.Errorf("empty filter differs from the explicit title list (-explicit +all):\n%s", diff)
	}
	assert.Equal(t, "Processing data to generate entities for all newspaper titles.", all.Notes)
	assert.Equal(t, "Processing data to generate entities for titles: [BNN, DLE, XYZ].", explicit.Notes)
}

func TestBuild_OnlyCountingCarriesOverUnchangedEntries(t *testing.T) {
	store := testutil.NewStore(t)
	seedEntities(t, store, 2, map[string][]string{"DLE": {"1900", "1901"}, "BNN": {"1850"}})

	first, err := newTestBuilder(t, store, t0).Build(context.Background(), entitiesConfig(), nil)
	require.NoError(t, err)
	previous := roundTrip(t, first)

	cfg := entitiesConfig()
	cfg.OnlyCounting = true
	b := newTestBuilder(t, store, t0.Add(48*time.Hour))
	b.Commits = testutil.StaticCommit("0000000000000000000000000000000000000000")

	second, err := b.Build(context.Background(), cfg, previous)
	require.NoError(t, err)

	require.Equal(t, previous.Titles(), second.Titles())
	for _, title := range previous.Titles() {
		if diff := cmp.Diff(*previous.Title(title), *second.Title(title)); diff != "" {
			t.Errorf("%s entry changed under only_counting (-previous +current):\n%s", title, diff)
		}
	}
	assert.Equal(t, "v1.0.1", second.Version)
	assert.Equal(t, "v1.0.0", second.PreviousVersion)
}

func TestBuild_OnlyCountingRefreshesChangedEntries(t *testing.T) {
	store := testutil.NewStore(t)
	seedEntities(t, store, 2, map[string][]string{"DLE": {"1900"}, "BNN": {"1850"}})

	first, err := newTestBuilder(t, store, t0).Build(context.Background(), entitiesConfig(), nil)
	require.NoError(t, err)

	seedEntities(t, store, 5, map[string][]string{"BNN": {"1850"}})
	cfg := entitiesConfig()
	cfg.OnlyCounting = true
	second, err := newTestBuilder(t, store, t0.Add(time.Hour)).Build(context.Background(), cfg, roundTrip(t, first))
	require.NoError(t, err)

	assert.Equal(t, *first.Title("DLE"), *second.Title("DLE"))
	bnn := second.Title("BNN")
	assert.Equal(t, UpdateFullRecompute, bnn.UpdateType)
	assert.Equal(t, []string{"1850"}, bnn.UpdatedYears)
	assert.Equal(t, "2025-03-01 11:00:00", bnn.LastModificationDate)
	assert.Equal(t, 5, bnn.Year("1850").Stats["content_items"])
}

func TestBuild_DisappearedYearIsUpdated(t *testing.T) {
	store := testutil.NewStore(t)
	seedEntities(t, store, 2, map[string][]string{"DLE": {"1900", "1901", "1902"}})

	first, err := newTestBuilder(t, store, t0).Build(context.Background(), entitiesConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), testBucket, entitiesKey("DLE", "1901")))
	second, err := newTestBuilder(t, store, t0.Add(time.Hour)).Build(context.Background(), entitiesConfig(), roundTrip(t, first))
	require.NoError(t, err)

	dle := second.Title("DLE")
	assert.Equal(t, UpdateFullRecompute, dle.UpdateType)
	assert.Equal(t, LevelYear, dle.UpdateLevel)
	assert.Equal(t, []string{"1901"}, dle.UpdatedYears)
	assert.Nil(t, dle.Year("1901"))
	assert.Equal(t, "2025-03-01 11:00:00", dle.LastModificationDate)
	assert.Equal(t, first.Title("DLE").Year("1900").LastModificationDate, dle.Year("1900").LastModificationDate)
}

func TestBuild_ModificationDateIncreases(t *testing.T) {
	store := testutil.NewStore(t)
	seedEntities(t, store, 2, map[string][]string{"DLE": {"1900", "1901"}, "BNN": {"1850"}})

	first, err := newTestBuilder(t, store, t0).Build(context.Background(), entitiesConfig(), nil)
	require.NoError(t, err)

	// same clock: the new date must still be later
	testutil.PutArchive(t, store, testBucket, entitiesKey("DLE", "1900"), testutil.EntitiesArchive("DLE", "1900", 4))
	second, err := newTestBuilder(t, store, t0).Build(context.Background(), entitiesConfig(), roundTrip(t, first))
	require.NoError(t, err)

	before, err := first.Title("DLE").ModifiedAt()
	require.NoError(t, err)
	after, err := second.Title("DLE").ModifiedAt()
	require.NoError(t, err)
	assert.True(t, after.After(before), "%s should be after %s", after, before)

	dle := second.Title("DLE")
	assert.Equal(t, UpdateFullRecompute, dle.UpdateType)
	assert.Equal(t, LevelYear, dle.UpdateLevel)
	assert.Equal(t, []string{"1900"}, dle.UpdatedYears)
	assert.Equal(t, dle.LastModificationDate, dle.Year("1900").LastModificationDate)
	assert.Equal(t, first.Title("DLE").Year("1901").LastModificationDate, dle.Year("1901").LastModificationDate)

	assert.Equal(t, "v2.0.0", second.Version)
}

func TestBuild_Versioning(t *testing.T) {
	store := testutil.NewStore(t)
	seedEntities(t, store, 1, map[string][]string{"DLE": {"1900"}, "BNN": {"1850"}})

	first, err := newTestBuilder(t, store, t0).Build(context.Background(), entitiesConfig(), nil)
	require.NoError(t, err)
	require.Equal(t, "v1.0.0", first.Version)

	tests := []struct {
		name string
		cfg  func() *Config
		want string
	}{
		{"patch", func() *Config {
			c := entitiesConfig()
			c.IsPatch = true
			c.PatchedFields = []string{"nes"}
			return c
		}, "v1.0.1"},
		{"only counting", func() *Config {
			c := entitiesConfig()
			c.OnlyCounting = true
			return c
		}, "v1.0.1"},
		{"full recompute of a subset", func() *Config { return entitiesConfig("DLE") }, "v1.1.0"},
		{"full recompute of every title", func() *Config { return entitiesConfig() }, "v2.0.0"},
		{"explicit list covering every title", func() *Config { return entitiesConfig("BNN", "DLE") }, "v2.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := newTestBuilder(t, store, t0.Add(time.Hour)).Build(context.Background(), tt.cfg(), roundTrip(t, first))
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Version)

			prev, err := first.ParsedVersion()
			require.NoError(t, err)
			cur, err := m.ParsedVersion()
			require.NoError(t, err)
			assert.True(t, prev.Less(cur))
		})
	}
}

func TestBuild_PatchStampsPatchedFields(t *testing.T) {
	store := testutil.NewStore(t)
	seedEntities(t, store, 1, map[string][]string{"DLE": {"1900", "1901"}})

	first, err := newTestBuilder(t, store, t0).Build(context.Background(), entitiesConfig(), nil)
	require.NoError(t, err)

	cfg := entitiesConfig()
	cfg.IsPatch = true
	cfg.PatchedFields = []string{"nes"}
	m, err := newTestBuilder(t, store, t0.Add(time.Hour)).Build(context.Background(), cfg, roundTrip(t, first))
	require.NoError(t, err)

	dle := m.Title("DLE")
	assert.Equal(t, UpdatePatch, dle.UpdateType)
	assert.Equal(t, LevelTitle, dle.UpdateLevel)
	assert.Equal(t, []string{"nes"}, dle.UpdatedFields)
	assert.Equal(t, []string{"1900", "1901"}, dle.UpdatedYears)
	assert.True(t, m.IsPatch)
	assert.Equal(t, []string{"nes"}, m.PatchedFields)
}

func TestBuild_FirstPatchStartsAtPatchVersion(t *testing.T) {
	store := testutil.NewStore(t)
	seedEntities(t, store, 1, map[string][]string{"DLE": {"1900"}})

	cfg := entitiesConfig()
	cfg.IsPatch = true
	cfg.PatchedFields = []string{"nes"}
	m, err := newTestBuilder(t, store, t0).Build(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, "v0.0.1", m.Version)
	assert.Equal(t, UpdateCreation, m.Title("DLE").UpdateType)
}

func TestBuild_AbsentTitles(t *testing.T) {
	store := testutil.NewStore(t)
	seedEntities(t, store, 1, map[string][]string{"DLE": {"1900"}, "BNN": {"1850"}})

	first, err := newTestBuilder(t, store, t0).Build(context.Background(), entitiesConfig(), nil)
	require.NoError(t, err)
	previous := roundTrip(t, first)

	require.NoError(t, store.Delete(context.Background(), testBucket, entitiesKey("BNN", "1850")))

	t.Run("scanned title is marked removed", func(t *testing.T) {
		m, err := newTestBuilder(t, store, t0.Add(time.Hour)).Build(context.Background(), entitiesConfig(), previous)
		require.NoError(t, err)

		bnn := m.Title("BNN")
		require.NotNil(t, bnn)
		assert.True(t, bnn.Removed)

		want := *previous.Title("BNN")
		want.Removed = true
		assert.Empty(t, cmp.Diff(want, *bnn))
		assert.Equal(t, 1, m.OverallStatistics["titles"])
	})

	t.Run("filtered title is carried over", func(t *testing.T) {
		m, err := newTestBuilder(t, store, t0.Add(time.Hour)).Build(context.Background(), entitiesConfig("DLE"), previous)
		require.NoError(t, err)

		bnn := m.Title("BNN")
		require.NotNil(t, bnn)
		assert.False(t, bnn.Removed)
		assert.Empty(t, cmp.Diff(*previous.Title("BNN"), *bnn))
	})
}

func TestBuild_CorruptedArchive(t *testing.T) {
	store := testutil.NewStore(t)
	seedEntities(t, store, 2, map[string][]string{"DLE": {"1900", "1901"}})
	testutil.PutRaw(t, store, testBucket, entitiesKey("DLE", "1902"), []byte("definitely not bzip2"))

	cfg := entitiesConfig()
	cfg.CheckArchives = true
	b := newTestBuilder(t, store, t0)
	m, err := b.Build(context.Background(), cfg, nil)

	require.Error(t, err)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, domain.ErrIntegrity)
	var ierr *domain.IntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, entitiesKey("DLE", "1902"), ierr.Key)

	for _, key := range store.Keys(testBucket) {
		assert.False(t, strings.HasSuffix(key, ".json"), "no manifest may be written, found %s", key)
	}
}

func TestBuild_EmptyArchiveFailsIntegrityCheck(t *testing.T) {
	store := testutil.NewStore(t)
	testutil.PutArchive(t, store, testBucket, "entities/DLE/DLE-1900.jsonl", testutil.EntitiesArchive("DLE", "1900", 2))
	testutil.PutRaw(t, store, testBucket, "entities/DLE/DLE-1901.jsonl", []byte("\n\n"))

	cfg := entitiesConfig()
	cfg.FileExtensions = "jsonl"
	cfg.CheckArchives = true
	_, err := newTestBuilder(t, store, t0).Build(context.Background(), cfg, nil)

	assert.ErrorIs(t, err, domain.ErrIntegrity)
	assert.ErrorIs(t, err, archive.ErrEmpty)

	cfg.CheckArchives = false
	m, err := newTestBuilder(t, store, t0).Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1900"}, m.Title("DLE").UpdatedYears)
}

func TestBuild_StorageFailure(t *testing.T) {
	store := testutil.NewStore(t)
	seedEntities(t, store, 1, map[string][]string{"DLE": {"1900"}})

	t.Run("listing", func(t *testing.T) {
		store.FailOn("list", errors.New("AccessDenied"))
		defer store.FailOn("list", nil)

		_, err := newTestBuilder(t, store, t0).Build(context.Background(), entitiesConfig(), nil)
		assert.ErrorIs(t, err, domain.ErrStorageAccess)
	})

	t.Run("reading", func(t *testing.T) {
		store.FailOn("get", errors.New("connection reset"))
		defer store.FailOn("get", nil)

		m, err := newTestBuilder(t, store, t0).Build(context.Background(), entitiesConfig(), nil)
		assert.Nil(t, m)
		assert.ErrorIs(t, err, domain.ErrStorageAccess)
	})

	t.Run("no archives", func(t *testing.T) {
		cfg := entitiesConfig()
		cfg.FileExtensions = ".jsonl.zst"
		_, err := newTestBuilder(t, store, t0).Build(context.Background(), cfg, nil)
		assert.ErrorIs(t, err, ErrNoArchives)
	})
}

func TestBuild_UsesStatsCache(t *testing.T) {
	store := testutil.NewStore(t)
	seedEntities(t, store, 2, map[string][]string{"DLE": {"1900"}, "BNN": {"1850"}})

	b := newTestBuilder(t, store, t0)
	b.Cache = testutil.NewStatsCache(t)
	first, err := b.Build(context.Background(), entitiesConfig(), nil)
	require.NoError(t, err)

	// unchanged archives are served from the cache
	store.FailOn("get", errors.New("unreachable"))
	second, err := b.Build(context.Background(), entitiesConfig(), nil)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(first.MediaList, second.MediaList))

	// a rewritten archive has a new ETag and is read again
	testutil.PutArchive(t, store, testBucket, entitiesKey("DLE", "1900"), testutil.EntitiesArchive("DLE", "1900", 3))
	_, err = b.Build(context.Background(), entitiesConfig(), nil)
	assert.ErrorIs(t, err, domain.ErrStorageAccess)
}

func TestBuild_ComputeAltogether(t *testing.T) {
	store := testutil.NewStore(t)
	passages := []archive.Record{
		{"id": "p1", "ci_id": "DLE-1900-01-02-a-i0001", "cluster_id": "c1"},
		{"id": "p2", "ci_id": "DLE-1900-01-02-a-i0002", "cluster_id": "c1"},
		{"id": "p3", "ci_id": "BNN-1850-03-04-a-i0001", "cluster_id": "c1"},
	}
	more := []archive.Record{
		{"id": "p4", "ci_id": "DLE-1901-05-06-a-i0001", "cluster_id": "c2"},
		{"id": "p5", "ci_id": "BNN-1850-03-04-a-i0002", "cluster_id": 7},
	}
	testutil.PutArchive(t, store, testBucket, "text-reuse/tr_passages-0001.jsonl.bz2", passages)
	testutil.PutArchive(t, store, testBucket, "text-reuse/tr_passages-0002.jsonl.bz2", more)

	cfg := &Config{
		DataStage:         "text-reuse",
		OutputBucket:      testBucket + "/text-reuse",
		GitRepository:     "/srv/impresso-text-reuse",
		FileExtensions:    "jsonl.bz2",
		ComputeAltogether: true,
	}

	m, err := newTestBuilder(t, store, t0).Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"BNN", "DLE"}, m.Titles())

	dle := m.Title("DLE")
	assert.Equal(t, stats.Counts{"content_items": 2, "issues": 1, "tr_passages": 2, "tr_clusters": 1}, dle.Year("1900").Stats)
	assert.Equal(t, stats.Counts{"content_items": 1, "issues": 1, "tr_passages": 1, "tr_clusters": 1}, dle.Year("1901").Stats)
	assert.Equal(t, stats.Counts{"content_items": 2, "issues": 1, "tr_passages": 2, "tr_clusters": 2}, m.Title("BNN").Year("1850").Stats)

	cfg.Newspapers = []string{"BNN"}
	m, err = newTestBuilder(t, store, t0).Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"BNN"}, m.Titles())
}

func TestBuild_ConfigurationErrors(t *testing.T) {
	store := testutil.NewStore(t)
	seedEntities(t, store, 1, map[string][]string{"DLE": {"1900"}})

	t.Run("invalid config", func(t *testing.T) {
		cfg := entitiesConfig()
		cfg.IsPatch = true
		_, err := newTestBuilder(t, store, t0).Build(context.Background(), cfg, nil)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("previous manifest of another stage", func(t *testing.T) {
		prev := &Manifest{DataStage: "langident", Version: "v1.0.0"}
		_, err := newTestBuilder(t, store, t0).Build(context.Background(), entitiesConfig(), prev)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("previous manifest without version", func(t *testing.T) {
		prev := &Manifest{DataStage: "entities", Version: "latest"}
		_, err := newTestBuilder(t, store, t0).Build(context.Background(), entitiesConfig(), prev)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
		assert.ErrorIs(t, err, ErrInvalidVersion)
	})

	t.Run("not a git repository", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		commits := mocks.NewMockCommitResolver(ctrl)
		commits.EXPECT().
			HeadCommit("/srv/impresso-annotation").
			Return("", domain.NewConfigurationError("git_repository", "not a git repository"))

		b := newTestBuilder(t, store, t0)
		b.Commits = commits
		_, err := b.Build(context.Background(), entitiesConfig(), nil)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("missing collaborators", func(t *testing.T) {
		_, err := (&Builder{}).Build(context.Background(), entitiesConfig(), nil)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestBuild_LocalGitRepository(t *testing.T) {
	store := testutil.NewStore(t)
	seedEntities(t, store, 1, map[string][]string{"DLE": {"1900"}})
	dir, hash := testutil.InitRepo(t)

	ctrl := gomock.NewController(t)
	commits := mocks.NewMockCommitResolver(ctrl)
	commits.EXPECT().HeadCommit(dir).Return(hash, nil)

	cfg := entitiesConfig()
	cfg.GitRepository = dir
	b := newTestBuilder(t, store, t0)
	b.Commits = commits

	m, err := b.Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, hash, m.CodeGitCommit)
	assert.Equal(t, hash, m.Title("DLE").CodeGitCommit)
}

func TestFirstCause(t *testing.T) {
	cause := errors.New("boom")
	assert.NoError(t, firstCause([]error{nil, nil}))
	assert.Equal(t, cause, firstCause([]error{context.Canceled, nil, cause}))
	assert.ErrorIs(t, firstCause([]error{nil, context.Canceled}), context.Canceled)
}
