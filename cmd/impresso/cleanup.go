package main

import (
	"fmt"
	"strings"

	"github.com/impresso/impresso-essentials-go/internal/cleanup"
	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/storage"
	"github.com/spf13/cobra"
)

var deletePrefixCmd = &cobra.Command{
	Use:   "delete-prefix",
	Short: "Delete every object under a prefix",
	Args:  cobra.NoArgs,
	RunE:  runDeletePrefix,
}

func init() {
	f := deletePrefixCmd.Flags()
	f.String("bucket", "", "Bucket holding the objects")
	f.String("prefix", "", "Key prefix to delete")
	f.Bool("dry-run", false, "Only list the objects that would be deleted")
	_ = deletePrefixCmd.MarkFlagRequired("bucket")
	_ = deletePrefixCmd.MarkFlagRequired("prefix")
}

func runDeletePrefix(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	bucket, _ := f.GetString("bucket")
	prefix, _ := f.GetString("prefix")
	dryRun, _ := f.GetBool("dry-run")

	loc := storage.Location{Bucket: strings.TrimSpace(bucket), Prefix: strings.TrimSpace(prefix)}
	if strings.Trim(loc.Prefix, "/") == "" {
		return domain.NewConfigurationError("prefix", "refusing to empty a whole bucket")
	}
	if !dryRun {
		if err := confirmAction(
			"Delete these objects?",
			fmt.Sprintf("Every object under %s will be removed permanently.", loc.URI()),
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

	deleter := &cleanup.Deleter{
		Store:    store,
		Workers:  workers(cfg),
		Progress: showProgress(),
		Logger:   log,
	}
	n, err := deleter.Delete(ctx, loc, dryRun)
	verb := "deleted"
	if dryRun {
		verb = "would delete"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d objects under %s\n", verb, n, loc.URI())
	return err
}
