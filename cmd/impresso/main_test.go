package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impresso/impresso-essentials-go/internal/archive"
	"github.com/impresso/impresso-essentials-go/internal/config"
	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/manifest"
	"github.com/impresso/impresso-essentials-go/internal/storage"
	"github.com/impresso/impresso-essentials-go/internal/tui"
	"github.com/impresso/impresso-essentials-go/internal/utils"
	"github.com/impresso/impresso-essentials-go/tests/testutil"
)

const testBucket = "42-processed-data-final"

// resetFlags restores every flag of cmd and its children to its default;
// cobra keeps parsed values between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command against store and returns its output
func execute(t *testing.T, store domain.ObjectStore, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	resetFlags(rootCmd)

	origStore := newStore
	newStore = func(*config.Config, *utils.Logger) (domain.ObjectStore, error) { return store, nil }
	t.Cleanup(func() { newStore = origStore })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-file", filepath.Join(t.TempDir(), "impresso.log")))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// stubConfirm replaces the interactive prompt for the duration of the test
func stubConfirm(t *testing.T, answer bool) *int {
	t.Helper()
	calls := 0
	orig := confirm
	confirm = func(string, string) (bool, error) {
		calls++
		return answer, nil
	}
	t.Cleanup(func() { confirm = orig })
	return &calls
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, testutil.NewStore(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "impresso")
}

func TestRootCmd(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"manifest", "set-timestamp", "add-provider", "delete-prefix", "config", "version"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("yes"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-file"))
}

func writeRunConfig(t *testing.T, pushToGit bool) string {
	t.Helper()
	repo, _ := testutil.InitRepo(t)
	push := "false"
	if pushToGit {
		push = "true"
	}
	content := "data_stage: entities\n" +
		"output_bucket: " + testBucket + "/entities\n" +
		"git_repository: " + repo + "\n" +
		"file_extensions: .jsonl.bz2\n" +
		"push_to_git: " + push + "\n" +
		"newspapers: [DLE]\n"
	return testutil.WriteFile(t, t.TempDir(), "entities.yaml", content)
}

func seedEntities(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store := testutil.NewStore(t)
	testutil.PutArchive(t, store, testBucket, "entities/DLE/DLE-1900.jsonl.bz2", testutil.EntitiesArchive("DLE", "1900", 3))
	return store
}

func TestManifestCmd_DryRun(t *testing.T) {
	store := seedEntities(t)

	out, err := execute(t, store, "manifest", "--config-file", writeRunConfig(t, false), "--no-cache", "--dry-run")
	require.NoError(t, err)

	m, err := manifest.Decode([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", m.Version)
	require.Len(t, m.MediaList, 1)
	assert.Equal(t, "DLE", m.MediaList[0].Title)
	assert.Equal(t, []string{"entities/DLE/DLE-1900.jsonl.bz2"}, store.Keys(testBucket))
}

func TestManifestCmd_Publish(t *testing.T) {
	store := seedEntities(t)
	cfgPath := writeRunConfig(t, false)

	out, err := execute(t, store, "manifest", "--config-file", cfgPath, "--no-cache")
	require.NoError(t, err)
	assert.Contains(t, out, "Manifest entities v1.0.0")

	latest, err := manifest.FindLatest(context.Background(), store, storage.MustParseLocation(testBucket+"/entities"), "entities")
	require.NoError(t, err)
	assert.NotEmpty(t, latest)
	assert.Contains(t, out, latest)

	// the second run finds the first manifest and carries it over
	out, err = execute(t, store, "manifest", "--config-file", cfgPath, "--no-cache", "--dry-run")
	require.NoError(t, err)
	m, err := manifest.Decode([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", m.PreviousVersion)
}

func TestManifestCmd_Errors(t *testing.T) {
	t.Run("config file is required", func(t *testing.T) {
		_, err := execute(t, testutil.NewStore(t), "manifest")
		assert.Error(t, err)
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := execute(t, testutil.NewStore(t), "manifest", "--config-file", filepath.Join(t.TempDir(), "none.yaml"))
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("push without mirror", func(t *testing.T) {
		store := seedEntities(t)
		_, err := execute(t, store, "manifest", "--config-file", writeRunConfig(t, true), "--no-cache")
		assert.ErrorIs(t, err, domain.ErrConfiguration)
		assert.Len(t, store.Keys(testBucket), 1)
	})
}

func TestSetTimestampCmd_FlagRules(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantConfig bool
	}{
		{name: "no target", args: nil},
		{name: "two targets", args: []string{"--s3-prefix", "s3://b/p", "--s3-file", "s3://b/k"}},
		{name: "both reports", args: []string{"--s3-prefix", "s3://b/p", "--report", "--report-dirs"}},
		{name: "report needs prefix", args: []string{"--s3-file", "s3://b/k", "--report"}, wantConfig: true},
		{name: "output needs file", args: []string{"--s3-prefix", "s3://b/p", "--output", "s3://b/o"}, wantConfig: true},
		{name: "unknown ts key", args: []string{"--s3-prefix", "s3://b/p", "--ts-key", "date"}, wantConfig: true},
		{name: "bucket is not an object", args: []string{"--s3-file", "s3://b"}, wantConfig: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, testutil.NewStore(t), append([]string{"set-timestamp"}, tt.args...)...)
			require.Error(t, err)
			if tt.wantConfig {
				assert.ErrorIs(t, err, domain.ErrConfiguration)
			}
		})
	}
}

func TestSetTimestampCmd_File(t *testing.T) {
	store := testutil.NewStore(t)
	key := "langident/DLE/DLE-1900.jsonl.bz2"
	testutil.PutArchive(t, store, testBucket, key, []archive.Record{
		testutil.TimestampRecord("DLE-1900-01-02-a-i0001", "ts", "2024-05-01T10:00:00Z"),
	})
	uri := "s3://" + testBucket + "/" + key

	out, err := execute(t, store, "set-timestamp", "--s3-file", uri)
	require.NoError(t, err)
	assert.Contains(t, out, "impresso-last-ts=2024-05-01T10:00:00Z")
	testutil.AssertObjectMetadata(t, store, testBucket, key, "impresso-last-ts", "2024-05-01T10:00:00Z")

	out, err = execute(t, store, "set-timestamp", "--s3-file", uri)
	require.NoError(t, err)
	assert.Contains(t, out, "already carries")
}

func TestSetTimestampCmd_PrefixAndReport(t *testing.T) {
	store := testutil.NewStore(t)
	for _, key := range []string{"langident/DLE/DLE-1900.jsonl.bz2", "langident/BNN/BNN-1900.jsonl.bz2"} {
		testutil.PutArchive(t, store, testBucket, key, []archive.Record{
			testutil.TimestampRecord("x", "ts", "2024-05-01T10:00:00Z"),
		})
	}
	prefix := "s3://" + testBucket + "/langident"

	out, err := execute(t, store, "set-timestamp", "--s3-prefix", prefix, "--report")
	require.NoError(t, err)
	assert.Contains(t, out, "2 of 2 archives miss impresso-last-ts")

	out, err = execute(t, store, "set-timestamp", "--s3-prefix", prefix, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "processed=2")

	out, err = execute(t, store, "set-timestamp", "--s3-prefix", prefix, "--report-dirs")
	require.NoError(t, err)
	assert.Contains(t, out, "s3://"+testBucket+"/langident/BNN/")

	out, err = execute(t, store, "set-timestamp", "--s3-prefix", prefix)
	require.NoError(t, err)
	assert.Contains(t, out, "processed=2 skipped=0 failed=0")
	testutil.AssertObjectMetadata(t, store, testBucket, "langident/BNN/BNN-1900.jsonl.bz2", "impresso-last-ts", "2024-05-01T10:00:00Z")
}

func seedCanonical(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store := testutil.NewStore(t)
	testutil.PutArchive(t, store, "12-canonical-final", "canonical/DLE/DLE-1900.jsonl.bz2",
		[]archive.Record{{"id": "DLE-1900-01-02-a-i0001"}})
	return store
}

func TestAddProviderCmd(t *testing.T) {
	t.Run("no copy", func(t *testing.T) {
		store := seedCanonical(t)
		calls := stubConfirm(t, false)

		out, err := execute(t, store, "add-provider", "--s3-partition-path", "s3://12-canonical-final/canonical", "--no-copy", "--remove-src-keys")
		require.NoError(t, err)
		assert.Contains(t, out, "planned=1")
		assert.Zero(t, *calls)
		assert.Len(t, store.Keys("12-canonical-final"), 1)
	})

	t.Run("declined removal", func(t *testing.T) {
		store := seedCanonical(t)
		stubConfirm(t, false)

		_, err := execute(t, store, "add-provider", "--s3-partition-path", "s3://12-canonical-final/canonical", "--remove-src-keys")
		assert.ErrorIs(t, err, errAborted)
		assert.Equal(t, []string{"canonical/DLE/DLE-1900.jsonl.bz2"}, store.Keys("12-canonical-final"))
	})

	t.Run("copy and remove", func(t *testing.T) {
		store := seedCanonical(t)
		calls := stubConfirm(t, false)

		out, err := execute(t, store, "add-provider", "--s3-partition-path", "s3://12-canonical-final/canonical", "--remove-src-keys", "--yes")
		require.NoError(t, err)
		assert.Zero(t, *calls)
		assert.Contains(t, out, "copied=1")
		assert.Contains(t, out, "deleted=1")
		assert.Len(t, store.Keys("12-canonical-final"), 1)
		assert.NotEqual(t, "canonical/DLE/DLE-1900.jsonl.bz2", store.Keys("12-canonical-final")[0])
	})
}

func TestDeletePrefixCmd(t *testing.T) {
	seed := func(t *testing.T) *storage.MemoryStore {
		store := testutil.NewStore(t)
		testutil.PutRaw(t, store, testBucket, "langident/run-1/DLE-1900.jsonl.bz2", []byte("x"))
		testutil.PutRaw(t, store, testBucket, "langident/run-2/DLE-1900.jsonl.bz2", []byte("x"))
		return store
	}

	t.Run("dry run does not ask", func(t *testing.T) {
		store := seed(t)
		calls := stubConfirm(t, false)

		out, err := execute(t, store, "delete-prefix", "--bucket", testBucket, "--prefix", "langident/run-1", "--dry-run")
		require.NoError(t, err)
		assert.Contains(t, out, "would delete 1 objects")
		assert.Zero(t, *calls)
		assert.Len(t, store.Keys(testBucket), 2)
	})

	t.Run("declined", func(t *testing.T) {
		store := seed(t)
		calls := stubConfirm(t, false)

		_, err := execute(t, store, "delete-prefix", "--bucket", testBucket, "--prefix", "langident/run-1")
		assert.ErrorIs(t, err, errAborted)
		assert.Equal(t, 1, *calls)
		assert.Len(t, store.Keys(testBucket), 2)
	})

	t.Run("confirmed", func(t *testing.T) {
		store := seed(t)
		stubConfirm(t, true)

		out, err := execute(t, store, "delete-prefix", "--bucket", testBucket, "--prefix", "langident/run-1")
		require.NoError(t, err)
		assert.Contains(t, out, "deleted 1 objects")
		assert.Equal(t, []string{"langident/run-2/DLE-1900.jsonl.bz2"}, store.Keys(testBucket))
	})

	t.Run("whole bucket refused", func(t *testing.T) {
		store := seed(t)
		calls := stubConfirm(t, true)

		_, err := execute(t, store, "delete-prefix", "--bucket", testBucket, "--prefix", "/", "--yes")
		assert.ErrorIs(t, err, domain.ErrConfiguration)
		assert.Zero(t, *calls)
		assert.Len(t, store.Keys(testBucket), 2)
	})
}

func TestConfirmAction(t *testing.T) {
	orig := confirm
	t.Cleanup(func() { confirm = orig; assumeYes = false })

	confirm = func(string, string) (bool, error) { return false, errors.New("no tty") }
	err := confirmAction("t", "d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	assumeYes = true
	assert.NoError(t, confirmAction("t", "d"))
}

func TestConfigCmd(t *testing.T) {
	orig := runEditor
	t.Cleanup(func() { runEditor = orig })

	var got tui.Options
	runEditor = func(opts tui.Options) error {
		got = opts
		cfg := *opts.Config
		cfg.Concurrency.Workers = 12
		return opts.SaveFunc(&cfg)
	}

	t.Setenv("SE_REGION", "ch-zh")

	_, err := execute(t, testutil.NewStore(t), "config", "--accessible")
	require.NoError(t, err)
	assert.True(t, got.Accessible)
	require.NotNil(t, got.Config)
	assert.Equal(t, config.ConfigFilePath(), got.Path)
	assert.Contains(t, got.Env, config.EnvOverride{Key: "storage.region", Var: "SE_REGION"})

	data, err := os.ReadFile(config.ConfigFilePath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "workers: 12")
}
