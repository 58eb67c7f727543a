package main

import (
	"fmt"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/provider"
	"github.com/impresso/impresso-essentials-go/internal/storage"
	"github.com/spf13/cobra"
)

var addProviderCmd = &cobra.Command{
	Use:   "add-provider",
	Short: "Insert the data provider level into the keys of a partition",
	Long: `Copies every .jsonl.bz2 archive of a partition from <partition>/<TITLE>/...
to <partition>/<PROVIDER>/<TITLE>/..., keeping its metadata. Archives already
stored under their provider are left alone.`,
	Args: cobra.NoArgs,
	RunE: runAddProvider,
}

func init() {
	f := addProviderCmd.Flags()
	f.String("s3-partition-path", "", "Partition to migrate, s3://bucket/partition")
	f.String("dest-bucket", "", "Bucket receiving the copies (default: the source bucket)")
	f.Bool("remove-src-keys", false, "Delete each source archive once copied")
	f.Bool("no-copy", false, "Only list the planned copies")
	_ = addProviderCmd.MarkFlagRequired("s3-partition-path")
}

func runAddProvider(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	partition, _ := f.GetString("s3-partition-path")
	destBucket, _ := f.GetString("dest-bucket")
	remove, _ := f.GetBool("remove-src-keys")
	noCopy, _ := f.GetBool("no-copy")

	src, err := storage.ParseLocation(partition)
	if err != nil {
		return domain.NewConfigurationError("s3-partition-path", err.Error())
	}

	if remove && !noCopy {
		if err := confirmAction(
			"Delete the source archives?",
			fmt.Sprintf("Every archive under %s is deleted once copied under its provider.", src.URI()),
		); err != nil {
			return err
		}
	}

	cfg, release, err := setup()
	if err != nil {
		return err
	}
	defer release()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	migrator := &provider.Migrator{
		Store:    store,
		Workers:  workers(cfg),
		Progress: showProgress(),
		Logger:   log,
	}
	summary, err := migrator.Run(ctx, src, provider.Options{
		DestBucket:       destBucket,
		RemoveSourceKeys: remove,
		DryRun:           noCopy,
	})
	fmt.Fprintf(cmd.OutOrStdout(), "copied=%d skipped=%d deleted=%d failed=%d planned=%d\n",
		summary.Copied, summary.Skipped, summary.Deleted, summary.Failed, summary.Planned)
	return err
}
