// Package miniobackend adapts a minio-go client to the s3types.Backend interface,
// for S3-compatible stores that are not reached through the AWS SDK.
package miniobackend

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"

	s3errors "github.com/envato-archive/outatime/errors"
	"github.com/envato-archive/outatime/s3types"
)

// DefaultPageSize is the number of records grouped into one page.
const DefaultPageSize = 1000

// Backend serves version listings and version content through minio-go.
type Backend struct {
	client   *minio.Client
	pageSize int
}

var _ s3types.Backend = (*Backend)(nil)

// New creates a Backend over client. A pageSize of 0 uses DefaultPageSize.
func New(client *minio.Client, pageSize int) *Backend {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Backend{
		client:   client,
		pageSize: pageSize,
	}
}

// ListVersions implements s3types.Backend.
//
// minio-go streams versions one record at a time; the pager regroups them
// into pages and reports the last key of a full page as its boundary key.
func (b *Backend) ListVersions(bucket, prefix string) s3types.PageIterator {
	return &pager{
		client:   b.client,
		bucket:   bucket,
		prefix:   prefix,
		pageSize: b.pageSize,
	}
}

// GetObjectContent implements s3types.Backend.
func (b *Backend) GetObjectContent(ctx context.Context, bucket, key, versionID string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{VersionID: versionID})
	if err != nil {
		return nil, s3errors.NewVersionError("download", bucket, key, versionID, classify(err))
	}

	// GetObject is lazy; Stat surfaces missing keys and versions before any write happens.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, s3errors.NewVersionError("download", bucket, key, versionID, classify(err))
	}
	return obj, nil
}

type pager struct {
	client   *minio.Client
	bucket   string
	prefix   string
	pageSize int

	objects <-chan minio.ObjectInfo
	cancel  context.CancelFunc
	peeked  *minio.ObjectInfo
	started bool
	done    bool
}

func (p *pager) HasMorePages() bool {
	return !p.started || !p.done
}

func (p *pager) NextPage(ctx context.Context) (*s3types.Page, error) {
	if !p.started {
		listCtx, cancel := context.WithCancel(ctx)
		p.cancel = cancel
		p.objects = p.client.ListObjects(listCtx, p.bucket, minio.ListObjectsOptions{
			Prefix:       p.prefix,
			Recursive:    true,
			WithVersions: true,
		})
		p.started = true
	}

	page := &s3types.Page{}
	lastKey := ""

	for count := 0; count < p.pageSize; count++ {
		obj, ok, err := p.next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			p.finish()
			return page, nil
		}

		if obj.IsDeleteMarker {
			page.DeleteMarkers = append(page.DeleteMarkers, s3types.DeleteMarker{
				Key:          obj.Key,
				VersionID:    obj.VersionID,
				LastModified: obj.LastModified,
			})
		} else {
			page.Versions = append(page.Versions, s3types.ObjectVersion{
				Key:          obj.Key,
				VersionID:    obj.VersionID,
				LastModified: obj.LastModified,
				Size:         obj.Size,
				IsLatest:     obj.IsLatest,
				ETag:         obj.ETag,
			})
		}
		lastKey = obj.Key
	}

	// Look one record ahead so the final page carries no boundary key.
	obj, ok, err := p.next(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		p.finish()
		return page, nil
	}
	p.peeked = &obj
	page.NextKeyMarker = lastKey
	return page, nil
}

// Close stops the underlying listing goroutine.
func (p *pager) Close() error {
	p.finish()
	return nil
}

func (p *pager) next(ctx context.Context) (minio.ObjectInfo, bool, error) {
	var obj minio.ObjectInfo
	if p.peeked != nil {
		obj, p.peeked = *p.peeked, nil
	} else {
		select {
		case o, ok := <-p.objects:
			if !ok {
				return minio.ObjectInfo{}, false, nil
			}
			obj = o
		case <-ctx.Done():
			p.finish()
			return minio.ObjectInfo{}, false, fmt.Errorf("list object versions: %w", ctx.Err())
		}
	}

	if obj.Err != nil {
		p.finish()
		return minio.ObjectInfo{}, false, s3errors.NewBucketError("listVersions", p.bucket, classify(obj.Err))
	}
	return obj, true, nil
}

func (p *pager) finish() {
	p.done = true
	if p.cancel != nil {
		p.cancel()
	}
}

// classify maps MinIO error response codes onto the module's sentinel errors.
func classify(err error) error {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return err
	}

	switch resp.Code {
	case "NoSuchKey":
		return s3errors.Classify(s3errors.ErrObjectNotFound, err)
	case "NoSuchVersion":
		return s3errors.Classify(s3errors.ErrVersionNotFound, err)
	case "NoSuchBucket":
		return s3errors.Classify(s3errors.ErrBucketNotFound, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return s3errors.Classify(s3errors.ErrAccessDenied, err)
	default:
		return err
	}
}
