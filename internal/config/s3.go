package config

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Config struct {
	AWSConfig
	BucketName string
	KeyPrefix  string
}

// DefaultS3Config reads the archive bucket settings. Without an endpoint the
// client talks to real S3 using the default credential chain.
func DefaultS3Config() *S3Config {
	return &S3Config{
		AWSConfig:  loadAWSConfig("AWS_S3_ENDPOINT", ""),
		BucketName: getEnvWithDefault("S3_ARCHIVE_BUCKET", "feature-flag-history-archives"),
		KeyPrefix:  getEnvWithDefault("S3_ARCHIVE_KEY_PREFIX", "flag-changes"),
	}
}

func (c *S3Config) GetClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := c.baseEndpoint(); endpoint != nil {
			o.BaseEndpoint = endpoint
			// LocalStack serves buckets on the path, not as subdomains.
			o.UsePathStyle = true
		}
	}), nil
}
