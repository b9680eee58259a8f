package config

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type SQSConfig struct {
	AWSConfig
	HistoryQueueURL string
	ArchiveQueueURL string
}

func DefaultSQSConfig() *SQSConfig {
	return &SQSConfig{
		AWSConfig:       loadAWSConfig("AWS_SQS_ENDPOINT", "http://localhost:4566"),
		HistoryQueueURL: getEnvWithDefault("AWS_SQS_HISTORY_QUEUE_URL", "http://localhost:4566/000000000000/flag-change-history-queue"),
		ArchiveQueueURL: getEnvWithDefault("AWS_SQS_ARCHIVE_QUEUE_URL", "http://localhost:4566/000000000000/flag-change-archive-queue"),
	}
}

func (c *SQSConfig) GetClient(ctx context.Context) (*sqs.Client, error) {
	cfg, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		o.BaseEndpoint = c.baseEndpoint()
	}), nil
}
