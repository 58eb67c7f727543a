package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/storage"
	"github.com/impresso/impresso-essentials-go/internal/timestamp"
	"github.com/spf13/cobra"
)

var setTimestampCmd = &cobra.Command{
	Use:   "set-timestamp",
	Short: "Store the latest record timestamp of archives in their metadata",
	Long: `Reads the records of .jsonl.bz2 archives and stores their latest timestamp
in the object metadata. The target is a single archive (--s3-file), every
archive under a prefix (--s3-prefix) or the archives described by a published
manifest (--from-manifest). --report and --report-dirs only list the archives
of a prefix that lack the metadata key.`,
	Args: cobra.NoArgs,
	RunE: runSetTimestamp,
}

func init() {
	f := setTimestampCmd.Flags()
	f.String("s3-prefix", "", "Tag every archive under s3://bucket/prefix")
	f.String("s3-file", "", "Tag a single archive s3://bucket/key")
	f.String("from-manifest", "", "Tag the archives next to this manifest with its modification dates")
	f.String("metadata-key", timestamp.DefaultMetadataKey, "Object metadata key receiving the timestamp")
	f.String("ts-key", timestamp.KeyTS, "Record field holding the timestamp (ts, cdt or timestamp)")
	f.Bool("all-lines", false, "Read every record and keep the latest timestamp")
	f.String("output", "", "Write the tagged copy of --s3-file to s3://bucket/key")
	f.Bool("force", false, "Overwrite an existing metadata value")
	f.Bool("report", false, "List the archives missing the metadata key")
	f.Bool("report-dirs", false, "List the directories holding archives missing the metadata key")
	f.Bool("dry-run", false, "Log the updates without writing")

	setTimestampCmd.MarkFlagsOneRequired("s3-prefix", "s3-file", "from-manifest")
	setTimestampCmd.MarkFlagsMutuallyExclusive("s3-prefix", "s3-file", "from-manifest")
	setTimestampCmd.MarkFlagsMutuallyExclusive("report", "report-dirs")
}

// timestampRequest holds the parsed set-timestamp flags
type timestampRequest struct {
	prefix       string
	file         string
	fromManifest string
	output       string
	report       bool
	reportDirs   bool
	dryRun       bool
	opts         timestamp.Options
}

func parseTimestampFlags(cmd *cobra.Command) (timestampRequest, error) {
	f := cmd.Flags()
	var req timestampRequest
	req.prefix, _ = f.GetString("s3-prefix")
	req.file, _ = f.GetString("s3-file")
	req.fromManifest, _ = f.GetString("from-manifest")
	req.output, _ = f.GetString("output")
	req.report, _ = f.GetBool("report")
	req.reportDirs, _ = f.GetBool("report-dirs")
	req.dryRun, _ = f.GetBool("dry-run")
	req.opts.MetadataKey, _ = f.GetString("metadata-key")
	req.opts.TSKey, _ = f.GetString("ts-key")
	req.opts.AllLines, _ = f.GetBool("all-lines")
	req.opts.Force, _ = f.GetBool("force")
	return req, req.validate()
}

func (r timestampRequest) validate() error {
	targets := 0
	for _, v := range []string{r.prefix, r.file, r.fromManifest} {
		if v != "" {
			targets++
		}
	}
	if targets != 1 {
		return domain.NewConfigurationError("s3-prefix", "exactly one of --s3-prefix, --s3-file or --from-manifest is required")
	}
	if (r.report || r.reportDirs) && r.prefix == "" {
		return domain.NewConfigurationError("report", "--report and --report-dirs need --s3-prefix")
	}
	if r.report && r.reportDirs {
		return domain.NewConfigurationError("report", "--report and --report-dirs are exclusive")
	}
	if r.output != "" && r.file == "" {
		return domain.NewConfigurationError("output", "--output is only valid with --s3-file")
	}
	if !timestamp.ValidTSKey(r.opts.TSKey) {
		return domain.NewConfigurationError("ts-key", fmt.Sprintf("unknown timestamp key %q", r.opts.TSKey))
	}
	return nil
}

func runSetTimestamp(cmd *cobra.Command, args []string) error {
	req, err := parseTimestampFlags(cmd)
	if err != nil {
		return err
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

	tagger := &timestamp.Tagger{
		Store:    store,
		Workers:  workers(cfg),
		DryRun:   req.dryRun,
		Progress: showProgress(),
		Logger:   log,
	}
	out := cmd.OutOrStdout()

	switch {
	case req.file != "":
		src, err := objectLocation("s3-file", req.file)
		if err != nil {
			return err
		}
		if req.output != "" {
			dst, err := objectLocation("output", req.output)
			if err != nil {
				return err
			}
			ref := dst.Ref(dst.Prefix)
			req.opts.Output = &ref
		}
		ts, err := tagger.TagObject(ctx, src.Ref(src.Prefix), req.opts)
		if errors.Is(err, domain.ErrAlreadyTagged) {
			fmt.Fprintf(out, "%s already carries %s (use --force to overwrite)\n", src.URI(), req.opts.MetadataKey)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s=%s\n", src.URI(), req.opts.MetadataKey, ts)
		return nil

	case req.fromManifest != "":
		summary, err := tagger.TagFromManifest(ctx, req.fromManifest, req.opts)
		printTimestampSummary(out, summary)
		return err
	}

	loc, err := storage.ParseLocation(req.prefix)
	if err != nil {
		return domain.NewConfigurationError("s3-prefix", err.Error())
	}

	switch {
	case req.report:
		rep, err := tagger.ReportMissing(ctx, loc, req.opts.MetadataKey)
		if err != nil {
			return err
		}
		for _, uri := range rep.Missing {
			fmt.Fprintln(out, uri)
		}
		fmt.Fprintf(out, "%d of %d archives miss %s\n", len(rep.Missing), rep.Total, req.opts.MetadataKey)
		return nil

	case req.reportDirs:
		rep, err := tagger.ReportMissingDirs(ctx, loc, req.opts.MetadataKey)
		if err != nil {
			return err
		}
		for _, dir := range rep.Missing {
			fmt.Fprintln(out, dir)
		}
		fmt.Fprintf(out, "%d of %d directories hold archives missing %s (%d archives)\n",
			len(rep.Missing), rep.Directories, req.opts.MetadataKey, rep.Total)
		return nil
	}

	summary, err := tagger.TagPrefix(ctx, loc, req.opts)
	printTimestampSummary(out, summary)
	return err
}

// objectLocation parses the s3 URI of a single object
func objectLocation(field, uri string) (storage.Location, error) {
	loc, err := storage.ParseLocation(uri)
	if err != nil {
		return storage.Location{}, domain.NewConfigurationError(field, err.Error())
	}
	if loc.Prefix == "" {
		return storage.Location{}, domain.NewConfigurationError(field, fmt.Sprintf("%q names a bucket, not an object", uri))
	}
	return loc, nil
}

func printTimestampSummary(out io.Writer, s timestamp.Summary) {
	fmt.Fprintf(out, "processed=%d skipped=%d failed=%d not_found=%d total=%d\n",
		s.Processed, s.Skipped, s.Failed, s.NotFound, s.Total())
}
