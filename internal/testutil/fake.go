package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	s3errors "github.com/envato-archive/outatime/errors"
	"github.com/envato-archive/outatime/s3types"
)

// FakeBackend is an in-memory versioned bucket implementing s3types.Backend.
//
// Listings follow S3 ordering (key ascending, newest first within a key) and
// are cut into pages of PageSize records regardless of key boundaries, so a
// key's history can straddle pages.
type FakeBackend struct {
	// PageSize is the number of records per page; 0 returns a single page
	PageSize int

	mu       sync.Mutex
	records  []fakeRecord
	contents map[string][]byte

	listErr      error
	listErrAfter int
	getErrs      map[string]error
	getDelay     time.Duration
	listDelay    time.Duration

	listCalls atomic.Int64
	getCalls  atomic.Int64
}

type fakeRecord struct {
	version *s3types.ObjectVersion
	marker  *s3types.DeleteMarker
}

func (r fakeRecord) key() string {
	if r.version != nil {
		return r.version.Key
	}
	return r.marker.Key
}

func (r fakeRecord) lastModified() time.Time {
	if r.version != nil {
		return r.version.LastModified
	}
	return r.marker.LastModified
}

var _ s3types.Backend = (*FakeBackend)(nil)

// NewFakeBackend creates an empty FakeBackend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		contents: make(map[string][]byte),
		getErrs:  make(map[string]error),
	}
}

// PutVersion stores a new version of key with the given content.
// Size is taken from len(content).
func (f *FakeBackend) PutVersion(key, versionID string, at time.Time, content []byte) s3types.ObjectVersion {
	v := s3types.ObjectVersion{
		Key:          key,
		VersionID:    versionID,
		LastModified: at,
		Size:         int64(len(content)),
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.records = append(f.records, fakeRecord{version: &v})
	f.contents[contentKey(key, versionID)] = bytes.Clone(content)
	f.sortLocked()

	return v
}

// PutSizedVersion stores a version of key whose content is size bytes of filler.
func (f *FakeBackend) PutSizedVersion(key, versionID string, at time.Time, size int) s3types.ObjectVersion {
	return f.PutVersion(key, versionID, at, bytes.Repeat([]byte("x"), size))
}

// PutDeleteMarker records a deletion of key.
func (f *FakeBackend) PutDeleteMarker(key, versionID string, at time.Time) s3types.DeleteMarker {
	m := s3types.DeleteMarker{
		Key:          key,
		VersionID:    versionID,
		LastModified: at,
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.records = append(f.records, fakeRecord{marker: &m})
	f.sortLocked()

	return m
}

// FailListAfter makes the listing return err once pages pages have been served.
func (f *FakeBackend) FailListAfter(pages int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErrAfter = pages
	f.listErr = err
}

// FailGet makes GetObjectContent for key return err.
func (f *FakeBackend) FailGet(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErrs[key] = err
}

// SetGetDelay makes every GetObjectContent call sleep for d first.
func (f *FakeBackend) SetGetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getDelay = d
}

// SetListDelay makes every listing page take d to arrive.
func (f *FakeBackend) SetListDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listDelay = d
}

// ListCalls returns the number of ListVersions calls made.
func (f *FakeBackend) ListCalls() int {
	return int(f.listCalls.Load())
}

// GetCalls returns the number of GetObjectContent calls made.
func (f *FakeBackend) GetCalls() int {
	return int(f.getCalls.Load())
}

// Pages returns the listing of prefix as the backend would page it.
func (f *FakeBackend) Pages(prefix string) []*s3types.Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pagesLocked(prefix)
}

// ListVersions implements s3types.Backend.
func (f *FakeBackend) ListVersions(_, prefix string) s3types.PageIterator {
	f.listCalls.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()

	return &fakeIterator{
		pages:    f.pagesLocked(prefix),
		failAt:   f.listErrAfter,
		failWith: f.listErr,
		delay:    f.listDelay,
	}
}

// GetObjectContent implements s3types.Backend.
func (f *FakeBackend) GetObjectContent(ctx context.Context, bucket, key, versionID string) (io.ReadCloser, error) {
	f.getCalls.Add(1)

	f.mu.Lock()
	delay := f.getDelay
	failure := f.getErrs[key]
	content, ok := f.contents[contentKey(key, versionID)]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if failure != nil {
		return nil, s3errors.NewVersionError("getObject", bucket, key, versionID, failure)
	}
	if !ok {
		return nil, s3errors.NewVersionError("getObject", bucket, key, versionID, s3errors.ErrVersionNotFound)
	}

	return io.NopCloser(bytes.NewReader(content)), nil
}

func (f *FakeBackend) sortLocked() {
	slices.SortStableFunc(f.records, func(a, b fakeRecord) int {
		if c := strings.Compare(a.key(), b.key()); c != 0 {
			return c
		}
		return b.lastModified().Compare(a.lastModified())
	})
}

func (f *FakeBackend) pagesLocked(prefix string) []*s3types.Page {
	var matching []fakeRecord
	for _, r := range f.records {
		if strings.HasPrefix(r.key(), prefix) {
			matching = append(matching, r)
		}
	}

	size := f.PageSize
	if size <= 0 {
		size = max(len(matching), 1)
	}

	var pages []*s3types.Page
	for start := 0; start < len(matching) || start == 0; start += size {
		end := min(start+size, len(matching))
		page := &s3types.Page{}
		for _, r := range matching[start:end] {
			if r.version != nil {
				page.Versions = append(page.Versions, *r.version)
			} else {
				page.DeleteMarkers = append(page.DeleteMarkers, *r.marker)
			}
		}
		if end < len(matching) {
			page.NextKeyMarker = matching[end-1].key()
		}
		pages = append(pages, page)
		if end >= len(matching) {
			break
		}
	}

	return pages
}

type fakeIterator struct {
	pages    []*s3types.Page
	served   int
	failAt   int
	failWith error
	delay    time.Duration
}

func (it *fakeIterator) HasMorePages() bool {
	return it.served < len(it.pages)
}

func (it *fakeIterator) NextPage(ctx context.Context) (*s3types.Page, error) {
	if it.delay > 0 {
		select {
		case <-time.After(it.delay):
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.failWith != nil && it.served >= it.failAt {
		return nil, s3errors.NewError("listVersions", it.failWith)
	}
	if it.served >= len(it.pages) {
		return nil, fmt.Errorf("no more pages")
	}

	page := it.pages[it.served]
	it.served++
	return page, nil
}

func contentKey(key, versionID string) string {
	return key + "\x00" + versionID
}
