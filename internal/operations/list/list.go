package list

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/envato-archive/outatime/s3types"
)

// maxPageSize is the largest page S3 returns for ListObjectVersions.
const maxPageSize = 1000

// ErrMissingMarker is returned for a truncated response that carries no key
// marker to continue from.
var ErrMissingMarker = errors.New("truncated listing without next key marker")

// S3Interface defines the S3 operations we need.
type S3Interface interface {
	ListObjectVersions(
		ctx context.Context,
		input *s3.ListObjectVersionsInput,
		opts ...func(*s3.Options),
	) (*s3.ListObjectVersionsOutput, error)
}

// Lister handles listing of object versions and delete markers.
type Lister struct {
	client S3Interface
}

// New creates a new Lister.
func New(client S3Interface) *Lister {
	return &Lister{
		client: client,
	}
}

// Config holds configuration for version listing.
type Config struct {
	Bucket   string
	Prefix   string
	PageSize int32
}

// ListWithPaginator creates a paginator for multi-page version listing.
func (l *Lister) ListWithPaginator(config *Config) *Paginator {
	return &Paginator{
		client:    l.client,
		config:    config,
		pageSize:  optimalPageSize(config),
		firstPage: true,
	}
}

// Paginator walks ListObjectVersions pages using key and version-id markers.
// It implements s3types.PageIterator.
type Paginator struct {
	client          S3Interface
	config          *Config
	pageSize        int32
	keyMarker       *string
	versionIDMarker *string
	hasMorePages    bool
	firstPage       bool
}

var _ s3types.PageIterator = (*Paginator)(nil)

// HasMorePages returns true if there are more pages to fetch.
func (p *Paginator) HasMorePages() bool {
	return p.firstPage || p.hasMorePages
}

// NextPage fetches the next page of results.
func (p *Paginator) NextPage(ctx context.Context) (*s3types.Page, error) {
	input := &s3.ListObjectVersionsInput{
		Bucket:  aws.String(p.config.Bucket),
		MaxKeys: aws.Int32(p.pageSize),
	}

	if p.config.Prefix != "" {
		input.Prefix = aws.String(p.config.Prefix)
	}

	if !p.firstPage {
		input.KeyMarker = p.keyMarker
		input.VersionIdMarker = p.versionIDMarker
	}

	output, err := p.client.ListObjectVersions(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("list object versions page: %w", err)
	}

	if aws.ToBool(output.IsTruncated) && aws.ToString(output.NextKeyMarker) == "" {
		p.firstPage = false
		p.hasMorePages = false
		return nil, fmt.Errorf("list object versions page: %w", ErrMissingMarker)
	}

	p.firstPage = false
	p.hasMorePages = aws.ToBool(output.IsTruncated)
	p.keyMarker = output.NextKeyMarker
	p.versionIDMarker = output.NextVersionIdMarker

	page := convertOutput(output)
	if !p.hasMorePages {
		page.NextKeyMarker = ""
	}
	return page, nil
}

// convertOutput converts S3 output to our Page type.
func convertOutput(output *s3.ListObjectVersionsOutput) *s3types.Page {
	page := &s3types.Page{
		Versions:      make([]s3types.ObjectVersion, 0, len(output.Versions)),
		DeleteMarkers: make([]s3types.DeleteMarker, 0, len(output.DeleteMarkers)),
		NextKeyMarker: aws.ToString(output.NextKeyMarker),
	}

	for _, v := range output.Versions {
		page.Versions = append(page.Versions, convertVersion(v))
	}

	for _, m := range output.DeleteMarkers {
		page.DeleteMarkers = append(page.DeleteMarkers, s3types.DeleteMarker{
			Key:          aws.ToString(m.Key),
			VersionID:    aws.ToString(m.VersionId),
			LastModified: aws.ToTime(m.LastModified),
		})
	}

	return page
}

func convertVersion(v types.ObjectVersion) s3types.ObjectVersion {
	return s3types.ObjectVersion{
		Key:          aws.ToString(v.Key),
		VersionID:    aws.ToString(v.VersionId),
		LastModified: aws.ToTime(v.LastModified),
		Size:         aws.ToInt64(v.Size),
		IsLatest:     aws.ToBool(v.IsLatest),
		ETag:         aws.ToString(v.ETag),
	}
}

// optimalPageSize determines the page size for pagination.
func optimalPageSize(config *Config) int32 {
	if config.PageSize > 0 && config.PageSize <= maxPageSize {
		return config.PageSize
	}
	return maxPageSize
}
