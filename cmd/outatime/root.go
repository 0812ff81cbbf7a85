package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/envato-archive/outatime"
	"github.com/envato-archive/outatime/s3types"
)

// clientFactory builds the client for a run; tests replace it.
var clientFactory = outatime.New

func newRootCommand(opts *Options, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outatime --bucket BUCKET --from TIME [flags]",
		Short: "Restore a versioned S3 bucket as it was at a point in time",
		Long: `
outatime lists every version and delete marker of a versioned S3 bucket,
picks the revision of each key that was current at the requested point in
time, and downloads those revisions into a local directory.

Keys deleted before that point in time are skipped, as are keys created after it.

EXIT STATUS
===========

Exit status is 0 if the restore was successful.
Exit status is 1 if there was any other error.
Exit status is 2 if the options were invalid.
Exit status is 3 if the bucket, an object or a version does not exist.
Exit status is 4 if access was denied.
`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRestore(cmd.Context(), opts, stdout, stderr, time.Now())
		},
	}

	opts.bind(cmd.Flags())
	return cmd
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func runRestore(ctx context.Context, opts *Options, stdout, stderr io.Writer, now time.Time) error {
	if err := opts.validate(); err != nil {
		return err
	}

	at, err := parseInstant(opts.From, now, time.Local)
	if err != nil {
		return err
	}

	logger := newLogger(stderr, opts.Verbose)
	client, err := clientFactory(append(opts.clientOptions(), outatime.WithLogger(logger))...)
	if err != nil {
		return err
	}

	snapshot, err := client.At(opts.Bucket, opts.Prefix, at)
	if err != nil {
		return err
	}

	total, err := snapshot.TotalSize(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "restoring s3://%s/%s as of %s (%s)\n",
		opts.Bucket, opts.Prefix, at.Format(time.RFC3339), humanize.Bytes(uint64(total)))

	if opts.DryRun {
		return dryRun(ctx, snapshot, stdout)
	}

	p := newProgress(stdout, total)
	result, err := snapshot.Fetch(ctx, opts.Destination,
		outatime.WithObserver(p.Observe),
		outatime.WithFetchConcurrency(opts.Threads),
	)
	if err != nil {
		return err
	}

	p.summary(result)
	return nil
}

func dryRun(ctx context.Context, snapshot *outatime.Snapshot, stdout io.Writer) error {
	count := 0
	err := snapshot.Each(ctx, func(rev s3types.ObjectVersion) error {
		count++
		_, err := fmt.Fprintf(stdout, "%s  %s  %8s  %s\n",
			rev.LastModified.Local().Format(time.DateTime), rev.VersionID, humanize.Bytes(uint64(rev.Size)), rev.Key)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "would restore %s %s\n", humanize.Comma(int64(count)), pluralize(count, "revision"))
	return nil
}
