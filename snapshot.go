package outatime

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/envato-archive/outatime/internal/executor"
	"github.com/envato-archive/outatime/s3types"
)

// Snapshot is the state of a bucket prefix at one instant.
// Every query re-lists the bucket unless the client memoized an earlier result.
type Snapshot struct {
	client *Client
	bucket string
	prefix string
	at     time.Time
}

// Bucket returns the bucket name.
func (s *Snapshot) Bucket() string { return s.bucket }

// Prefix returns the key prefix the snapshot is restricted to.
func (s *Snapshot) Prefix() string { return s.prefix }

// Instant returns the point in time the snapshot is taken at.
func (s *Snapshot) Instant() time.Time { return s.at }

// Each calls fn for every revision current at the snapshot instant, in key
// order, while the listing is still in progress.
//
// An error from fn stops the walk and is returned as is.
func (s *Snapshot) Each(ctx context.Context, fn func(s3types.ObjectVersion) error) error {
	if revisions, ok := s.client.memo.Get(s.bucket, s.prefix, s.at); ok {
		s.client.logger.DebugContext(ctx, "replaying memoized snapshot",
			slog.String("bucket", s.bucket),
			slog.String("prefix", s.prefix),
			slog.Int("revisions", len(revisions)),
		)
		for _, rev := range revisions {
			if err := fn(rev); err != nil {
				return err
			}
		}
		return nil
	}

	var collected []s3types.ObjectVersion
	emit := fn
	if s.client.memo.Enabled() {
		emit = func(rev s3types.ObjectVersion) error {
			collected = append(collected, rev)
			return fn(rev)
		}
	}

	stats, err := s.client.resolver.Resolve(ctx, s.client.backend.ListVersions(s.bucket, s.prefix), s.at, emit)
	if err != nil {
		return err
	}

	s.client.memo.Add(s.bucket, s.prefix, s.at, collected)
	s.client.logger.InfoContext(ctx, "resolved snapshot",
		slog.String("bucket", s.bucket),
		slog.String("prefix", s.prefix),
		slog.Time("at", s.at),
		slog.Int("pages", stats.Pages),
		slog.Int("versions", stats.Versions),
		slog.Int("delete_markers", stats.DeleteMarkers),
		slog.Int("resolved", stats.Resolved),
	)

	return nil
}

// Resolve returns every revision current at the snapshot instant, ordered by key.
func (s *Snapshot) Resolve(ctx context.Context) ([]s3types.ObjectVersion, error) {
	var revisions []s3types.ObjectVersion
	err := s.Each(ctx, func(rev s3types.ObjectVersion) error {
		revisions = append(revisions, rev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return revisions, nil
}

// TotalSize returns the combined size in bytes of the snapshot's revisions.
// Nothing is downloaded.
func (s *Snapshot) TotalSize(ctx context.Context) (int64, error) {
	var total int64
	err := s.Each(ctx, func(rev s3types.ObjectVersion) error {
		total += rev.Size
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Fetch downloads the snapshot into destination.
//
// Resolution runs in its own goroutine and feeds the download workers through
// a channel, so downloads begin before the listing is complete. Fetch returns
// once every revision has been attempted; the first error encountered is
// returned and files written before or after it are left in place.
func (s *Snapshot) Fetch(
	ctx context.Context,
	destination string,
	opts ...s3types.FetchOption,
) (*s3types.FetchResult, error) {
	cfg := &s3types.FetchOptionConfig{
		Concurrency: s.client.config.Concurrency,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	dst, err := s.client.destination(destination)
	if err != nil {
		return nil, err
	}

	exec := executor.NewExecutor(s.client.backend, s.bucket, cfg.Concurrency, s.client.logger)
	revisions := make(chan s3types.ObjectVersion, exec.Concurrency())

	var (
		g        errgroup.Group
		failures executor.FirstError
		result   *s3types.FetchResult
	)

	g.Go(func() error {
		defer close(revisions)
		err := s.Each(ctx, func(rev s3types.ObjectVersion) error {
			select {
			case revisions <- rev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		failures.Set(err)
		return err
	})

	g.Go(func() error {
		var err error
		result, err = exec.FetchInto(ctx, revisions, dst, cfg.Observer, &failures)
		return err
	})

	// Listing and download errors share one slot, so the earliest wins
	// regardless of which goroutine returns first.
	if err = g.Wait(); err != nil {
		err = failures.Err()
	}

	s.client.logger.InfoContext(ctx, "fetched snapshot",
		slog.String("bucket", s.bucket),
		slog.String("prefix", s.prefix),
		slog.String("destination", destination),
		slog.Int("files", result.Files),
		slog.Int("directories", result.Directories),
		slog.Int64("bytes", result.Bytes),
		slog.Duration("duration", result.Duration),
	)

	return result, err
}
