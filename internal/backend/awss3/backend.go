// Package awss3 adapts the AWS SDK v2 S3 client to the s3types.Backend interface.
package awss3

import (
	"context"
	"errors"
	"io"

	"github.com/aws/smithy-go"

	s3errors "github.com/envato-archive/outatime/errors"
	"github.com/envato-archive/outatime/internal/operations/download"
	"github.com/envato-archive/outatime/internal/operations/list"
	"github.com/envato-archive/outatime/internal/s3api"
	"github.com/envato-archive/outatime/s3types"
)

// Backend serves version listings and version content from S3.
type Backend struct {
	lister     *list.Lister
	downloader *download.Downloader
	pageSize   int32
}

var _ s3types.Backend = (*Backend)(nil)

// New creates a Backend over client. A pageSize of 0 uses the S3 maximum.
func New(client s3api.S3API, pageSize int32) *Backend {
	return &Backend{
		lister:     list.New(client),
		downloader: download.New(client),
		pageSize:   pageSize,
	}
}

// ListVersions implements s3types.Backend.
func (b *Backend) ListVersions(bucket, prefix string) s3types.PageIterator {
	return &iterator{
		bucket: bucket,
		pages: b.lister.ListWithPaginator(&list.Config{
			Bucket:   bucket,
			Prefix:   prefix,
			PageSize: b.pageSize,
		}),
	}
}

// GetObjectContent implements s3types.Backend.
func (b *Backend) GetObjectContent(ctx context.Context, bucket, key, versionID string) (io.ReadCloser, error) {
	body, err := b.downloader.Open(ctx, bucket, key, versionID)
	if err != nil {
		return nil, classify(err)
	}
	return body, nil
}

// iterator classifies listing errors on their way out of the paginator.
type iterator struct {
	bucket string
	pages  *list.Paginator
}

func (it *iterator) HasMorePages() bool {
	return it.pages.HasMorePages()
}

func (it *iterator) NextPage(ctx context.Context) (*s3types.Page, error) {
	page, err := it.pages.NextPage(ctx)
	if err != nil {
		return nil, s3errors.NewBucketError("listVersions", it.bucket, classify(err))
	}
	return page, nil
}

// classify maps S3 API error codes onto the module's sentinel errors.
func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return s3errors.Classify(s3errors.ErrObjectNotFound, err)
	case "NoSuchVersion":
		return s3errors.Classify(s3errors.ErrVersionNotFound, err)
	case "NoSuchBucket":
		return s3errors.Classify(s3errors.ErrBucketNotFound, err)
	case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return s3errors.Classify(s3errors.ErrAccessDenied, err)
	default:
		return err
	}
}
