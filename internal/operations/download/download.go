// Package download handles versioned S3 object downloads.
//
// The package streams a specific object version into a writer without
// buffering the object in memory.
package download

import (
	"context"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/envato-archive/outatime/errors"
	"github.com/envato-archive/outatime/internal/s3api"
)

// Downloader handles S3 download operations for specific object versions.
type Downloader struct {
	s3Client s3api.S3API
}

// New creates a new Downloader instance.
func New(s3Client s3api.S3API) *Downloader {
	return &Downloader{
		s3Client: s3Client,
	}
}

// Open requests the content of one object version.
// The caller must close the returned reader.
func (d *Downloader) Open(ctx context.Context, bucket, key, versionID string) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if versionID != "" {
		input.VersionId = aws.String(versionID)
	}

	output, err := d.s3Client.GetObject(ctx, input)
	if err != nil {
		return nil, errors.NewVersionError("download", bucket, key, versionID, err)
	}
	if output.Body == nil {
		return http.NoBody, nil
	}

	return output.Body, nil
}
