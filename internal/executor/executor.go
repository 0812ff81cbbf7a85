// Package executor materializes resolved object revisions onto a filesystem.
// It runs a fixed pool of workers over a single revision stream and
// serializes the caller's observer.
package executor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-git/go-billy/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/envato-archive/outatime/errors"
	"github.com/envato-archive/outatime/internal/validation"
	"github.com/envato-archive/outatime/s3types"
)

const (
	// DefaultConcurrency is the worker count used when none is configured.
	DefaultConcurrency = 20

	tracerName = "github.com/envato-archive/outatime/internal/executor"
	dirPerm    = 0o755
)

// Executor downloads revisions of one bucket with a bounded worker pool.
type Executor struct {
	backend s3types.Backend
	bucket  string

	maxConcurrency int

	logger *slog.Logger
	tracer trace.Tracer
}

// NewExecutor creates a new executor with the specified concurrency limit.
// A non-positive limit selects DefaultConcurrency; a nil logger discards output.
func NewExecutor(backend s3types.Backend, bucket string, maxConcurrency int, logger *slog.Logger) *Executor {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Executor{
		backend:        backend,
		bucket:         bucket,
		maxConcurrency: maxConcurrency,
		logger:         logger,
		tracer:         otel.Tracer(tracerName),
	}
}

// Concurrency returns the number of workers Fetch starts.
func (e *Executor) Concurrency() int {
	return e.maxConcurrency
}

// FirstError keeps the earliest error reported to it. It is safe for
// concurrent use and lets the producer of a revision stream and the download
// workers share one failure slot.
type FirstError struct {
	mu  sync.Mutex
	err error
}

// Set records err unless an earlier error is already held. A nil err is ignored.
func (f *FirstError) Set(err error) {
	if err == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

// Err returns the earliest recorded error.
func (f *FirstError) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Fetch consumes revisions until the channel is closed and writes each one
// under dst. Keys ending in "/" only create the directory.
//
// Every revision is attempted. The first failure is returned once all workers
// have finished; files already written stay in place. observer, when non-nil,
// is called once per successfully materialized revision and never concurrently.
func (e *Executor) Fetch(
	ctx context.Context,
	revisions <-chan s3types.ObjectVersion,
	dst billy.Filesystem,
	observer s3types.Observer,
) (*s3types.FetchResult, error) {
	return e.FetchInto(ctx, revisions, dst, observer, &FirstError{})
}

// FetchInto is Fetch with a caller-owned failure slot. Download errors are
// recorded in failures as they happen, and the earliest error held by
// failures when the workers finish is returned.
func (e *Executor) FetchInto(
	ctx context.Context,
	revisions <-chan s3types.ObjectVersion,
	dst billy.Filesystem,
	observer s3types.Observer,
	failures *FirstError,
) (*s3types.FetchResult, error) {
	startTime := time.Now()

	ctx, span := e.tracer.Start(ctx, "outatime.fetch", trace.WithAttributes(
		attribute.String("outatime.bucket", e.bucket),
		attribute.Int("outatime.concurrency", e.maxConcurrency),
	))
	defer span.End()

	var (
		wg         sync.WaitGroup
		observerMu sync.Mutex

		files, dirs, written atomic.Int64
	)

	// billy filesystems are not safe for concurrent use
	target := &lockedFS{fs: dst}

	notify := func(rev s3types.ObjectVersion) {
		observerMu.Lock()
		defer observerMu.Unlock()
		observer(rev)
	}

	for range e.maxConcurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for rev := range revisions {
				n, err := e.fetchOne(ctx, rev, target)
				if err != nil {
					e.logger.ErrorContext(ctx, "failed to fetch revision",
						slog.Any("revision", rev),
						slog.Any("error", err),
					)
					failures.Set(err)
					continue
				}

				if rev.IsDirectory() {
					dirs.Add(1)
				} else {
					files.Add(1)
					written.Add(n)
				}
				e.logger.DebugContext(ctx, "fetched revision", slog.Any("revision", rev))

				if observer != nil {
					notify(rev)
				}
			}
		}()
	}

	wg.Wait()

	result := &s3types.FetchResult{
		Files:       int(files.Load()),
		Directories: int(dirs.Load()),
		Bytes:       written.Load(),
		Duration:    time.Since(startTime),
	}

	span.SetAttributes(
		attribute.Int("outatime.files", result.Files),
		attribute.Int("outatime.directories", result.Directories),
		attribute.Int64("outatime.bytes", result.Bytes),
	)

	firstError := failures.Err()
	if firstError != nil {
		span.RecordError(firstError)
		span.SetStatus(codes.Error, firstError.Error())
	}

	return result, firstError
}

// lockedFS serializes the metadata calls the workers make on the destination.
// Writes to an opened file do not take the lock.
type lockedFS struct {
	mu sync.Mutex
	fs billy.Filesystem
}

func (l *lockedFS) MkdirAll(path string, perm os.FileMode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fs.MkdirAll(path, perm)
}

func (l *lockedFS) OpenFile(path string, flag int, perm os.FileMode) (billy.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fs.OpenFile(path, flag, perm)
}

// fetchOne materializes a single revision and returns the bytes written.
func (e *Executor) fetchOne(ctx context.Context, rev s3types.ObjectVersion, dst *lockedFS) (int64, error) {
	local, err := validation.LocalPath(rev.Key)
	if err != nil {
		return 0, err
	}

	if rev.IsDirectory() {
		if local == "." {
			return 0, nil
		}
		if err := dst.MkdirAll(local, dirPerm); err != nil {
			return 0, errors.NewVersionError("fetch", e.bucket, rev.Key, rev.VersionID, err)
		}
		return 0, nil
	}

	if dir := filepath.Dir(local); dir != "." {
		if err := dst.MkdirAll(dir, dirPerm); err != nil {
			return 0, errors.NewVersionError("fetch", e.bucket, rev.Key, rev.VersionID, err)
		}
	}

	body, err := e.backend.GetObjectContent(ctx, e.bucket, rev.Key, rev.VersionID)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	return e.writeFile(dst, local, rev, body)
}

func (e *Executor) writeFile(dst *lockedFS, local string, rev s3types.ObjectVersion, body io.Reader) (int64, error) {
	file, err := dst.OpenFile(local, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, errors.NewVersionError("fetch", e.bucket, rev.Key, rev.VersionID, err)
	}

	n, err := io.Copy(file, body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, errors.NewVersionError("fetch", e.bucket, rev.Key, rev.VersionID, err)
	}

	return n, nil
}
