package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3errors "github.com/envato-archive/outatime/errors"
	"github.com/envato-archive/outatime/internal/testutil"
	"github.com/envato-archive/outatime/s3types"
)

func stream(revisions ...s3types.ObjectVersion) <-chan s3types.ObjectVersion {
	ch := make(chan s3types.ObjectVersion, len(revisions))
	for _, rev := range revisions {
		ch <- rev
	}
	close(ch)
	return ch
}

func TestNewExecutor(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		want        int
	}{
		{"default", 0, DefaultConcurrency},
		{"negative", -3, DefaultConcurrency},
		{"explicit", 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := NewExecutor(testutil.NewFakeBackend(), "bucket", tt.concurrency, nil)
			assert.Equal(t, tt.want, exec.Concurrency())
		})
	}
	assert.Equal(t, 20, DefaultConcurrency)
}

func TestFetch_WritesRevisions(t *testing.T) {
	backend := testutil.NewFakeBackend()
	readme := backend.PutVersion("README", "112", testutil.At("2015-10-21 14:48:00"), []byte("readme 112\n"))
	nested := backend.PutVersion("/lib/c/d.rb", "d1", testutil.At("2015-10-21 14:30:00"), []byte("puts :d\n"))
	dir := backend.PutVersion("empty/dir/", "e1", testutil.At("2015-10-21 14:30:00"), nil)
	backend.PutVersion("README", "111", testutil.At("2015-10-21 14:47:00"), []byte("readme 111\n"))

	fs := memfs.New()
	exec := NewExecutor(backend, "bucket", 3, nil)

	result, err := exec.Fetch(context.Background(), stream(readme, nested, dir), fs, nil)
	require.NoError(t, err)

	assert.Equal(t, "readme 112\n", testutil.ReadFile(t, fs, "README"))
	assert.Equal(t, "puts :d\n", testutil.ReadFile(t, fs, "lib/c/d.rb"))

	info, err := fs.Stat("empty/dir")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 1, result.Directories)
	assert.Equal(t, int64(len("readme 112\n")+len("puts :d\n")), result.Bytes)
	assert.Equal(t, 2, backend.GetCalls(), "directory markers are not downloaded")
}

func TestFetch_OverwritesExistingFile(t *testing.T) {
	backend := testutil.NewFakeBackend()
	rev := backend.PutVersion("README", "112", testutil.At("2015-10-21 14:48:00"), []byte("short"))

	fs := memfs.New()
	f, err := fs.Create("README")
	require.NoError(t, err)
	_, err = io.WriteString(f, "a much longer previous content")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = NewExecutor(backend, "bucket", 1, nil).Fetch(context.Background(), stream(rev), fs, nil)
	require.NoError(t, err)

	assert.Equal(t, "short", testutil.ReadFile(t, fs, "README"))
}

func TestFetch_ObserverCalledOncePerRevision(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SetGetDelay(time.Millisecond)

	var revisions []s3types.ObjectVersion
	for i := range 100 {
		key := "file-" + strings.Repeat("x", i%5) + string(rune('a'+i%26)) + "-" + string(rune('0'+i/26))
		revisions = append(revisions, backend.PutSizedVersion(key, "v", testutil.At("2015-10-21 14:00:00"), i))
	}

	// Unsynchronized on purpose: the race detector flags overlapping calls.
	seen := make(map[string]int)
	var total int64
	observer := func(rev s3types.ObjectVersion) {
		seen[rev.Key]++
		total += rev.Size
	}

	result, err := NewExecutor(backend, "bucket", 8, nil).
		Fetch(context.Background(), stream(revisions...), memfs.New(), observer)
	require.NoError(t, err)

	assert.Len(t, seen, len(revisions))
	for key, n := range seen {
		assert.Equal(t, 1, n, "observer called %d times for %s", n, key)
	}
	assert.Equal(t, result.Bytes, total)
	assert.Equal(t, len(revisions), result.Files)
}

// countingBackend records the highest number of concurrent downloads.
type countingBackend struct {
	*testutil.FakeBackend
	active  atomic.Int64
	highest atomic.Int64
	release chan struct{}
}

func (b *countingBackend) GetObjectContent(ctx context.Context, bucket, key, versionID string) (io.ReadCloser, error) {
	n := b.active.Add(1)
	defer b.active.Add(-1)
	for {
		h := b.highest.Load()
		if n <= h || b.highest.CompareAndSwap(h, n) {
			break
		}
	}
	<-b.release
	return b.FakeBackend.GetObjectContent(ctx, bucket, key, versionID)
}

func TestFetch_BoundedConcurrency(t *testing.T) {
	backend := &countingBackend{FakeBackend: testutil.NewFakeBackend(), release: make(chan struct{})}

	var revisions []s3types.ObjectVersion
	for _, key := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		revisions = append(revisions, backend.PutSizedVersion(key, "1", testutil.At("2015-10-21 14:00:00"), 1))
	}

	done := make(chan struct{})
	var result *s3types.FetchResult
	var err error
	go func() {
		defer close(done)
		result, err = NewExecutor(backend, "bucket", 3, nil).
			Fetch(context.Background(), stream(revisions...), memfs.New(), nil)
	}()

	require.Eventually(t, func() bool { return backend.active.Load() == 3 }, time.Second, time.Millisecond)
	close(backend.release)
	<-done

	require.NoError(t, err)
	assert.Equal(t, 10, result.Files)
	assert.Equal(t, int64(3), backend.highest.Load())
}

func TestFetch_FirstErrorSurfacedOthersContinue(t *testing.T) {
	backend := testutil.NewFakeBackend()
	denied := s3errors.Classify(s3errors.ErrAccessDenied, errors.New("AccessDenied"))

	var revisions []s3types.ObjectVersion
	for _, key := range []string{"a", "b", "c", "d", "e"} {
		revisions = append(revisions, backend.PutVersion(key, "1", testutil.At("2015-10-21 14:00:00"), []byte(key)))
	}
	backend.FailGet("b", denied)

	var mu sync.Mutex
	var observed []string
	fs := memfs.New()

	result, err := NewExecutor(backend, "bucket", 2, nil).Fetch(context.Background(), stream(revisions...), fs,
		func(rev s3types.ObjectVersion) {
			mu.Lock()
			defer mu.Unlock()
			observed = append(observed, rev.Key)
		})

	require.Error(t, err)
	assert.True(t, s3errors.IsAccessDenied(err))

	var opErr *s3errors.Error
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "b", opErr.Key)

	assert.ElementsMatch(t, []string{"a", "c", "d", "e"}, observed)
	assert.Equal(t, 4, result.Files)
	assert.Equal(t, 5, backend.GetCalls())

	_, statErr := fs.Stat("b")
	assert.Error(t, statErr, "failed revision leaves no file")
	assert.Equal(t, "e", testutil.ReadFile(t, fs, "e"))
}

func TestFetch_InvalidKey(t *testing.T) {
	backend := testutil.NewFakeBackend()
	bad := backend.PutVersion("../escape", "1", testutil.At("2015-10-21 14:00:00"), []byte("x"))
	good := backend.PutVersion("ok", "1", testutil.At("2015-10-21 14:00:00"), []byte("y"))

	fs := memfs.New()
	result, err := NewExecutor(backend, "bucket", 1, nil).Fetch(context.Background(), stream(bad, good), fs, nil)

	require.ErrorIs(t, err, s3errors.ErrInvalidObjectKey)
	assert.Equal(t, 1, result.Files)
	assert.Equal(t, 1, backend.GetCalls())
}

func TestFetch_EmptyStream(t *testing.T) {
	result, err := NewExecutor(testutil.NewFakeBackend(), "bucket", 0, nil).
		Fetch(context.Background(), stream(), memfs.New(), nil)

	require.NoError(t, err)
	assert.Zero(t, result.Files)
	assert.Zero(t, result.Directories)
}

func TestFetch_SharedFilesystemManyWorkers(t *testing.T) {
	backend := testutil.NewFakeBackend()
	var revisions []s3types.ObjectVersion
	for i := range 60 {
		key := fmt.Sprintf("lib/%02d/shared/file-%02d.rb", i%6, i)
		revisions = append(revisions, backend.PutVersion(key, "1", testutil.At("2015-10-21 14:30:00"), []byte(key)))
		if i%10 == 0 {
			revisions = append(revisions, backend.PutVersion(fmt.Sprintf("lib/%02d/", i%6), "d", testutil.At("2015-10-21 14:30:00"), nil))
		}
	}

	fs := memfs.New()
	result, err := NewExecutor(backend, "bucket", 20, nil).
		Fetch(context.Background(), stream(revisions...), fs, nil)

	require.NoError(t, err)
	assert.Equal(t, 60, result.Files)
	for _, rev := range revisions {
		if rev.IsDirectory() {
			continue
		}
		assert.Equal(t, rev.Key, testutil.ReadFile(t, fs, rev.Key))
	}
}

func TestFirstError(t *testing.T) {
	var failures FirstError
	assert.NoError(t, failures.Err())

	first := errors.New("first")
	failures.Set(nil)
	failures.Set(first)
	failures.Set(errors.New("second"))

	assert.Same(t, first, failures.Err())
}

func TestFetchInto_KeepsEarlierError(t *testing.T) {
	backend := testutil.NewFakeBackend()
	rev := backend.PutVersion("README", "112", testutil.At("2015-10-21 14:48:00"), []byte("readme 112\n"))
	backend.FailGet("README", s3errors.ErrAccessDenied)

	listing := errors.New("listing failed first")
	failures := &FirstError{}
	failures.Set(listing)

	_, err := NewExecutor(backend, "bucket", 2, nil).
		FetchInto(context.Background(), stream(rev), memfs.New(), nil, failures)

	require.ErrorIs(t, err, listing)
	assert.False(t, s3errors.IsAccessDenied(err))
}
