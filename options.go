package outatime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-git/go-billy/v5"

	"github.com/envato-archive/outatime/s3types"
)

// WithRegion sets the AWS region for S3 operations.
// If not specified, uses the region from the credential chain, then us-east-1.
func WithRegion(region string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Region = region
	}
}

// WithProfile selects a named profile from the shared AWS config files.
func WithProfile(profile string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Profile = profile
	}
}

// WithEndpoint sets a custom S3 endpoint URL.
// This is useful for S3-compatible services or local testing with LocalStack.
func WithEndpoint(endpoint string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithForcePathStyle forces the use of path-style URLs instead of virtual-hosted style.
func WithForcePathStyle(forcePathStyle bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithMaxRetries sets the maximum number of attempts the AWS SDK makes per request.
// Default is 3. The restore engines themselves never retry.
func WithMaxRetries(maxRetries int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout sets the timeout for individual S3 requests.
// Default is no timeout (0).
func WithTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithConcurrency sets the number of download workers used by Fetch.
// Default is 20. Non-positive values are ignored.
func WithConcurrency(concurrency int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithPageSize sets how many records each listing call requests.
// S3 caps this at 1000, which is also the default.
func WithPageSize(pageSize int32) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if pageSize > 0 {
			c.PageSize = pageSize
		}
	}
}

// WithMemoSize sets how many resolved snapshots the client remembers.
// Default is 16. Zero disables memoization.
func WithMemoSize(size int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.MemoSize = max(size, 0)
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithCustomHTTPClient allows providing a custom HTTP client.
// It takes precedence over WithTimeout.
func WithCustomHTTPClient(client *http.Client) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithLogger sets the structured logger. Default discards all output.
func WithLogger(logger *slog.Logger) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Logger = logger
	}
}

// WithFilesystem sets the filesystem Fetch writes into.
// Fetch destinations are resolved relative to its root.
func WithFilesystem(fs billy.Filesystem) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Filesystem = fs
	}
}

// Fetch options

// WithObserver registers a callback invoked once per restored revision.
// Calls never overlap, so the callback may keep unsynchronized state.
func WithObserver(observer s3types.Observer) s3types.FetchOption {
	return func(c *s3types.FetchOptionConfig) {
		c.Observer = observer
	}
}

// WithFetchConcurrency overrides the client's worker count for one Fetch.
func WithFetchConcurrency(concurrency int) s3types.FetchOption {
	return func(c *s3types.FetchOptionConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}
