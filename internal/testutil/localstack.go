package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	localStackImage  = "localstack/localstack:latest"
	localStackPort   = "4566/tcp"
	localStackRegion = "us-east-1"
)

// staticCredentials are accepted by LocalStack for any account.
var staticCredentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
	return aws.Credentials{AccessKeyID: "test", SecretAccessKey: "test", Source: "localstack"}, nil
})

// LocalStackContainer is a running LocalStack instance serving S3.
type LocalStackContainer struct {
	container *localstack.LocalStackContainer
	endpoint  string
}

// NewLocalStackContainer starts LocalStack and waits for its health endpoint.
func NewLocalStackContainer(ctx context.Context) (*LocalStackContainer, error) {
	container, err := localstack.Run(ctx, localStackImage,
		testcontainers.WithEnv(map[string]string{"SERVICES": "s3"}),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/_localstack/health").
				WithPort(localStackPort).
				WithStartupTimeout(2*time.Minute),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("starting localstack: %w", err)
	}

	endpoint, err := container.PortEndpoint(ctx, localStackPort, "http")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("resolving localstack endpoint: %w", err)
	}

	return &LocalStackContainer{container: container, endpoint: endpoint}, nil
}

// GetS3Client returns a path-style S3 client pointed at the container.
func (c *LocalStackContainer) GetS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(localStackRegion),
		config.WithCredentialsProvider(staticCredentials),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(c.endpoint)
	}), nil
}

// Endpoint is the base URL of the S3 API.
func (c *LocalStackContainer) Endpoint() string { return c.endpoint }

// Region is the region buckets are created in.
func (c *LocalStackContainer) Region() string { return localStackRegion }

// Terminate stops and removes the container.
func (c *LocalStackContainer) Terminate(ctx context.Context) error {
	if c.container == nil {
		return nil
	}
	if err := c.container.Terminate(ctx); err != nil {
		return fmt.Errorf("terminating localstack: %w", err)
	}
	return nil
}

// SetupLocalStackTest starts LocalStack for t and stops it when t finishes.
// The test is skipped under -short.
func SetupLocalStackTest(t *testing.T) *LocalStackContainer {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping localstack test in short mode")
	}

	container, err := NewLocalStackContainer(context.Background())
	if err != nil {
		t.Fatalf("localstack: %v", err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("localstack: %v", err)
		}
	})

	return container
}

// CreateVersionedBucket creates bucketName and enables versioning on it.
func CreateVersionedBucket(ctx context.Context, client *s3.Client, bucketName string) error {
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucketName)}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", bucketName, err)
	}

	_, err := client.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(bucketName),
		VersioningConfiguration: &types.VersioningConfiguration{
			Status: types.BucketVersioningStatusEnabled,
		},
	})
	if err != nil {
		return fmt.Errorf("enabling versioning on %s: %w", bucketName, err)
	}
	return nil
}

// PutObject writes a new revision of key and returns its version ID.
func PutObject(ctx context.Context, client *s3.Client, bucketName, key, content string) (string, error) {
	out, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
		Body:   strings.NewReader(content),
	})
	if err != nil {
		return "", fmt.Errorf("putting %s: %w", key, err)
	}
	return aws.ToString(out.VersionId), nil
}

// DeleteObject deletes key without a version ID, which leaves a delete marker.
func DeleteObject(ctx context.Context, client *s3.Client, bucketName, key string) error {
	_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
