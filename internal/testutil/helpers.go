package testutil

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/envato-archive/outatime/s3types"
)

// StringPtr returns a pointer to the given string.
// This is useful for AWS SDK inputs that require string pointers.
func StringPtr(s string) *string {
	return aws.String(s)
}

// Int64Ptr returns a pointer to the given int64.
func Int64Ptr(i int64) *int64 {
	return aws.Int64(i)
}

// BoolPtr returns a pointer to the given bool.
func BoolPtr(b bool) *bool {
	return aws.Bool(b)
}

// TimePtr returns a pointer to the given time.
// This is useful for AWS SDK outputs that return time pointers.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// At parses a "2006-01-02 15:04:05" timestamp in UTC, panicking on bad input.
func At(value string) time.Time {
	t, err := time.ParseInLocation(time.DateTime, value, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

// Version builds an ObjectVersion record.
func Version(key, versionID, lastModified string, size int64) s3types.ObjectVersion {
	return s3types.ObjectVersion{
		Key:          key,
		VersionID:    versionID,
		LastModified: At(lastModified),
		Size:         size,
	}
}

// Marker builds a DeleteMarker record.
func Marker(key, versionID, lastModified string) s3types.DeleteMarker {
	return s3types.DeleteMarker{
		Key:          key,
		VersionID:    versionID,
		LastModified: At(lastModified),
	}
}

// SDKVersion builds an SDK ObjectVersion as returned by ListObjectVersions.
func SDKVersion(key, versionID string, lastModified time.Time, size int64, latest bool) types.ObjectVersion {
	return types.ObjectVersion{
		Key:          StringPtr(key),
		VersionId:    StringPtr(versionID),
		LastModified: TimePtr(lastModified),
		Size:         Int64Ptr(size),
		IsLatest:     BoolPtr(latest),
		ETag:         StringPtr(`"` + versionID + `"`),
	}
}

// SDKDeleteMarker builds an SDK DeleteMarkerEntry as returned by ListObjectVersions.
func SDKDeleteMarker(key, versionID string, lastModified time.Time) types.DeleteMarkerEntry {
	return types.DeleteMarkerEntry{
		Key:          StringPtr(key),
		VersionId:    StringPtr(versionID),
		LastModified: TimePtr(lastModified),
	}
}

// Keys returns the keys of revisions in order.
func Keys(revisions []s3types.ObjectVersion) []string {
	keys := make([]string, 0, len(revisions))
	for _, r := range revisions {
		keys = append(keys, r.Key)
	}
	return keys
}

// ReadFile reads a file from fs, failing the test on error.
func ReadFile(t *testing.T, fs billy.Filesystem, name string) string {
	t.Helper()

	data, err := util.ReadFile(fs, name)
	require.NoError(t, err, "reading %s", name)
	return string(data)
}

// SeedReadmeHistory populates f with the history used throughout the tests.
//
//	README        v111 14:47, v112 14:48, delete marker 14:40
//	deleted_file  v1 14:49, delete marker 14:50
//	lib/a.rb      123 bytes, lib/b.rb 456 bytes, lib/c/d.rb 789 bytes (14:30)
//	lib/future.rb created 15:00
func SeedReadmeHistory(f *FakeBackend) {
	f.PutDeleteMarker("README", "dm-1", At("2015-10-21 14:40:00"))
	f.PutVersion("README", "111", At("2015-10-21 14:47:00"), []byte("readme 111\n"))
	f.PutVersion("README", "112", At("2015-10-21 14:48:00"), []byte("readme 112\n"))

	f.PutVersion("deleted_file", "1", At("2015-10-21 14:49:00"), []byte("gone soon\n"))
	f.PutDeleteMarker("deleted_file", "dm-2", At("2015-10-21 14:50:00"))

	f.PutSizedVersion("lib/a.rb", "a1", At("2015-10-21 14:30:00"), 123)
	f.PutSizedVersion("lib/b.rb", "b1", At("2015-10-21 14:30:00"), 456)
	f.PutSizedVersion("lib/c/d.rb", "d1", At("2015-10-21 14:30:00"), 789)
	f.PutSizedVersion("lib/future.rb", "f1", At("2015-10-21 15:00:00"), 10)
}
