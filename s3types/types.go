// Package s3types provides shared type definitions for the outatime module.
package s3types

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-git/go-billy/v5"
)

// ObjectVersion is one stored revision of one key in a versioned bucket.
// Values are immutable once received from the backend.
type ObjectVersion struct {
	// Key is the object key (path)
	Key string

	// VersionID identifies this revision of Key
	VersionID string

	// LastModified is when this revision was written
	LastModified time.Time

	// Size is the revision size in bytes
	Size int64

	// IsLatest reports whether this is the current revision in the bucket
	IsLatest bool

	// ETag is the entity tag of the revision, if known
	ETag string
}

var _ slog.LogValuer = ObjectVersion{}

// LogValue implements slog.LogValuer.
func (v ObjectVersion) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("key", v.Key),
		slog.String("version", v.VersionID),
		slog.Time("last_modified", v.LastModified),
		slog.Int64("size", v.Size),
	)
}

// IsDirectory reports whether the key is a directory marker.
func (v ObjectVersion) IsDirectory() bool {
	return len(v.Key) > 0 && v.Key[len(v.Key)-1] == '/'
}

// DeleteMarker records that, as of LastModified, the key was deleted.
type DeleteMarker struct {
	Key          string
	VersionID    string
	LastModified time.Time
}

var _ slog.LogValuer = DeleteMarker{}

// LogValue implements slog.LogValuer.
func (m DeleteMarker) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("key", m.Key),
		slog.String("version", m.VersionID),
		slog.Time("last_modified", m.LastModified),
		slog.Bool("delete_marker", true),
	)
}

// Page is one batch of version records as returned by a single listing call.
// Records are ordered by key ascending and, within a key, newest first.
type Page struct {
	// Versions holds the object versions of the page
	Versions []ObjectVersion

	// DeleteMarkers holds the delete markers of the page
	DeleteMarkers []DeleteMarker

	// NextKeyMarker names the key whose records may continue on the following page.
	// It is empty on the final page.
	NextKeyMarker string
}

// PageIterator walks the pages of a version listing.
type PageIterator interface {
	// HasMorePages returns true if there are more pages to fetch
	HasMorePages() bool

	// NextPage fetches the next page of results
	NextPage(ctx context.Context) (*Page, error)
}

// Backend is the storage collaborator the restore engines run against.
// Implementations must be safe for concurrent GetObjectContent calls.
type Backend interface {
	// ListVersions returns an iterator over the version pages of bucket under prefix
	ListVersions(bucket, prefix string) PageIterator

	// GetObjectContent opens the content of one specific object version
	GetObjectContent(ctx context.Context, bucket, key, versionID string) (io.ReadCloser, error)
}

// Observer is invoked once per materialized revision.
// Calls are serialized, so implementations need not be safe for concurrent use.
type Observer func(ObjectVersion)

// ResolveStats describes one pass of the resolution engine.
type ResolveStats struct {
	// Pages is the number of listing pages consumed
	Pages int

	// Versions is the number of object versions seen
	Versions int

	// DeleteMarkers is the number of delete markers seen
	DeleteMarkers int

	// Resolved is the number of revisions emitted
	Resolved int
}

// FetchResult contains the result of a fetch operation.
type FetchResult struct {
	// Files is the number of object revisions downloaded
	Files int

	// Directories is the number of directory markers materialized
	Directories int

	// Bytes is the total number of bytes written
	Bytes int64

	// Duration is how long the fetch took
	Duration time.Duration
}

// Configuration types for functional options

// ClientConfig holds configuration for the outatime client.
type ClientConfig struct {
	Region           string
	Profile          string
	Endpoint         string
	MaxRetries       int
	Timeout          time.Duration
	Concurrency      int
	PageSize         int32
	MemoSize         int
	ForcePathStyle   bool
	CustomAWSConfig  *aws.Config
	CustomHTTPClient *http.Client
	Logger           *slog.Logger
	Filesystem       billy.Filesystem // Destination filesystem; defaults to the OS filesystem
}

// FetchOptionConfig holds configuration for fetch operations via functional options.
type FetchOptionConfig struct {
	Observer    Observer
	Concurrency int
}

type (
	// Option is a functional option for configuring the outatime client.
	Option func(*ClientConfig)
	// FetchOption is a functional option for configuring fetch operations.
	FetchOption func(*FetchOptionConfig)
)
