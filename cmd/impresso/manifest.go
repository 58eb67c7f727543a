package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/impresso/impresso-essentials-go/internal/cache"
	"github.com/impresso/impresso-essentials-go/internal/config"
	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/git"
	"github.com/impresso/impresso-essentials-go/internal/manifest"
	"github.com/impresso/impresso-essentials-go/internal/utils"
	"github.com/spf13/cobra"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Compute and publish the versioned manifest of a data stage",
	Long: `Computes the statistics of every archive of a data stage partition, compares
them with the previous manifest of the stage and publishes the new manifest to
the output partition and, when push_to_git is set, to the git mirror.`,
	Args: cobra.NoArgs,
	RunE: runManifest,
}

func init() {
	manifestCmd.Flags().String("config-file", "", "Run configuration (JSON or YAML)")
	manifestCmd.Flags().Bool("no-cache", false, "Recompute the statistics of every archive")
	manifestCmd.Flags().Bool("dry-run", false, "Print the manifest instead of publishing it")
	_ = manifestCmd.MarkFlagRequired("config-file")
}

func runManifest(cmd *cobra.Command, args []string) error {
	cfg, release, err := setup()
	if err != nil {
		return err
	}
	defer release()

	path, _ := cmd.Flags().GetString("config-file")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	runCfg, err := manifest.NewLoader().Load(path)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	// the mirror is checked before any computation so a misconfigured push fails fast
	var committer domain.Committer
	if runCfg.PushToGit && !dryRun {
		mirror, err := newMirror(cfg)
		if err != nil {
			return err
		}
		committer = mirror
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	statsCache := openStatsCache(cfg, noCache)
	defer statsCache.Close()

	start := time.Now()
	previous, err := manifest.ResolvePrevious(ctx, store, runCfg, log)
	if err != nil {
		return err
	}
	if previous != nil {
		log.Info().Str("version", previous.Version).Msg("Loaded previous manifest")
	}

	builder := &manifest.Builder{
		Store:    store,
		Cache:    statsCache,
		Commits:  git.NewClient(),
		Workers:  workers(cfg),
		Progress: showProgress(),
		Logger:   log,
	}
	m, err := builder.Build(ctx, runCfg, previous)
	if err != nil {
		return err
	}

	if dryRun {
		data, err := manifest.Encode(m)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	publisher := &manifest.Publisher{Store: store, Committer: committer, Logger: log}
	res, err := publisher.Publish(context.WithoutCancel(ctx), m, runCfg)
	if res != nil {
		printPublishResult(cmd, m, res)
	}
	if err != nil {
		if res != nil && errors.Is(err, domain.ErrPublish) && res.GitErr != nil {
			return fmt.Errorf("manifest stored at %s but not pushed: %w", res.StorageURI, err)
		}
		return err
	}

	log.Info().Str("version", m.Version).Str("elapsed", elapsed(start)).Msg("Manifest published")
	return nil
}

func newMirror(cfg *config.Config) (*git.Mirror, error) {
	return git.NewMirror(git.MirrorOptions{
		URL:         cfg.Git.MirrorURL,
		Branch:      cfg.Git.Branch,
		AuthorName:  cfg.Git.AuthorName,
		AuthorEmail: cfg.Git.AuthorEmail,
		Token:       cfg.Git.Token,
		Retrier: utils.NewRetrier(utils.RetrierOptions{
			MaxRetries:      cfg.Retry.MaxRetries,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
			Retryable:       git.IsTransientPushError,
		}),
		Logger: log,
	})
}

// openStatsCache opens the on-disk statistics cache. Without a usable cache
// every archive is scanned.
func openStatsCache(cfg *config.Config, disabled bool) *cache.StatsCache {
	if disabled || !cfg.Cache.Enabled {
		return cache.NewStatsCache(nil, 0)
	}
	backend, err := cache.NewBadgerCache(cache.Options{Directory: utils.ExpandPath(cfg.Cache.Directory)})
	if err != nil {
		log.Warn().Err(err).Str("directory", cfg.Cache.Directory).Msg("Statistics cache unavailable")
		return cache.NewStatsCache(nil, 0)
	}
	return cache.NewStatsCache(backend, cfg.Cache.TTL)
}

func printPublishResult(cmd *cobra.Command, m *manifest.Manifest, res *manifest.PublishResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Manifest %s %s\n", m.DataStage, m.Version)
	fmt.Fprintf(out, "  storage: %s\n", res.StorageURI)
	if res.LocalPath != "" {
		fmt.Fprintf(out, "  local:   %s\n", res.LocalPath)
	}
	if res.GitCommit != "" {
		fmt.Fprintf(out, "  git:     %s (%s)\n", res.GitPath, res.GitCommit)
	}
}
