package outatime

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/minio/minio-go/v7"

	"github.com/envato-archive/outatime/errors"
	"github.com/envato-archive/outatime/internal/backend/awss3"
	"github.com/envato-archive/outatime/internal/backend/miniobackend"
	"github.com/envato-archive/outatime/internal/executor"
	"github.com/envato-archive/outatime/internal/resolve"
	"github.com/envato-archive/outatime/internal/s3api"
	"github.com/envato-archive/outatime/internal/validation"
	"github.com/envato-archive/outatime/s3types"
)

const (
	// DefaultConcurrency is the number of download workers used by Fetch.
	DefaultConcurrency = executor.DefaultConcurrency

	// DefaultPageSize is the number of records requested per listing call.
	DefaultPageSize = 1000

	// DefaultMemoSize is the number of resolved snapshots a Client remembers.
	DefaultMemoSize = 16

	defaultRegion = "us-east-1"
)

// Client resolves and restores point-in-time snapshots of versioned buckets.
// It is safe for concurrent use.
type Client struct {
	// backend serves version listings and object content
	backend s3types.Backend

	// config holds the options the client was built with
	config s3types.ClientConfig

	logger   *slog.Logger
	resolver *resolve.Resolver

	// memo caches complete resolutions; nil when disabled
	memo *resolve.Memo
}

func defaultConfig() *s3types.ClientConfig {
	return &s3types.ClientConfig{
		MaxRetries:  3,
		Concurrency: DefaultConcurrency,
		PageSize:    DefaultPageSize,
		MemoSize:    DefaultMemoSize,
	}
}

func applyOptions(opts []s3types.Option) *s3types.ClientConfig {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// New creates a new client backed by Amazon S3.
// It loads AWS credentials using the default credential chain
// and applies the specified configuration options.
//
// Example:
//
//	client, err := outatime.New(
//	    outatime.WithRegion("us-west-2"),
//	    outatime.WithProfile("restore"),
//	)
func New(opts ...s3types.Option) (*Client, error) {
	clientCfg := applyOptions(opts)

	var cfg aws.Config
	var err error

	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		var loadOpts []func(*config.LoadOptions) error
		if clientCfg.Profile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(clientCfg.Profile))
		}
		cfg, err = config.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, errors.NewError("client initialization", err)
		}
	}

	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = defaultRegion
	}

	if clientCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = clientCfg.MaxRetries
	}

	s3Client := s3.NewFromConfig(cfg, s3Options(clientCfg)...)

	return newClient(awss3.New(s3Client, clientCfg.PageSize), clientCfg)
}

// s3Options translates client options into S3 service options.
func s3Options(clientCfg *s3types.ClientConfig) []func(*s3.Options) {
	var s3Opts []func(*s3.Options)

	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	if clientCfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(clientCfg.Endpoint)
		})
	}

	switch {
	case clientCfg.CustomHTTPClient != nil:
		httpClient := clientCfg.CustomHTTPClient
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	case clientCfg.Timeout > 0:
		httpClient := &http.Client{
			Timeout: clientCfg.Timeout,
		}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	return s3Opts
}

// NewWithClient creates a client over a caller-provided S3API implementation.
// This is primarily used for testing with mocked clients.
func NewWithClient(s3Client s3api.S3API, opts ...s3types.Option) (*Client, error) {
	clientCfg := applyOptions(opts)
	return newClient(awss3.New(s3Client, clientCfg.PageSize), clientCfg)
}

// NewWithMinio creates a client backed by a MinIO (or other S3-compatible) server.
func NewWithMinio(minioClient *minio.Client, opts ...s3types.Option) (*Client, error) {
	clientCfg := applyOptions(opts)
	return newClient(miniobackend.New(minioClient, int(clientCfg.PageSize)), clientCfg)
}

// NewWithBackend creates a client over any Backend implementation.
func NewWithBackend(backend s3types.Backend, opts ...s3types.Option) (*Client, error) {
	return newClient(backend, applyOptions(opts))
}

func newClient(backend s3types.Backend, clientCfg *s3types.ClientConfig) (*Client, error) {
	if backend == nil {
		return nil, errors.NewError("client initialization", errors.ErrInvalidInput).
			WithMessage("backend cannot be nil")
	}

	logger := clientCfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	memo, err := resolve.NewMemo(clientCfg.MemoSize)
	if err != nil {
		return nil, errors.NewError("client initialization", err)
	}

	return &Client{
		backend:  backend,
		config:   *clientCfg,
		logger:   logger,
		resolver: resolve.New(logger),
		memo:     memo,
	}, nil
}

// At returns the snapshot of bucket under prefix as of the instant at.
//
// No listing happens here; invalid bucket names and a zero instant are
// rejected immediately so that no operation starts with a bad configuration.
func (c *Client) At(bucket, prefix string, at time.Time) (*Snapshot, error) {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return nil, err
	}

	if at.IsZero() {
		return nil, errors.NewBucketError("at", bucket, errors.ErrInvalidInstant).
			WithMessage("point in time must be set")
	}

	return &Snapshot{
		client: c,
		bucket: bucket,
		prefix: prefix,
		at:     at,
	}, nil
}

// ForgetSnapshots drops every memoized resolution, forcing the next
// query to list the bucket again.
func (c *Client) ForgetSnapshots() {
	c.memo.Purge()
}

// destination returns the filesystem rooted at the restore directory.
func (c *Client) destination(dir string) (billy.Filesystem, error) {
	if c.config.Filesystem != nil {
		if dir == "" || dir == "." {
			return c.config.Filesystem, nil
		}
		if err := c.config.Filesystem.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.NewError("fetch", err).WithKey(dir)
		}
		fs, err := c.config.Filesystem.Chroot(dir)
		if err != nil {
			return nil, errors.NewError("fetch", err).WithKey(dir)
		}
		return fs, nil
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewError("fetch", err).WithKey(dir)
	}
	return osfs.New(dir), nil
}
