package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/faasbench/faasbench/benchmark"
	"github.com/faasbench/faasbench/storage"
	"github.com/mitchellh/mapstructure"
)

func init() {
	RegisterProvider("aws", newAWSClient)
}

type awsSettings struct {
	Region       string `mapstructure:"region"`
	DeployBucket string `mapstructure:"deploy_bucket"`
	TriggerURL   string `mapstructure:"trigger_url"`
}

type awsClient struct {
	cfg      aws.Config
	settings awsSettings
	retry    storage.RetryPolicy
	http     *http.Client
}

func newAWSClient(ctx context.Context, config map[string]any) (Client, error) {
	settings := awsSettings{}
	if err := mapstructure.Decode(config, &settings); err != nil {
		return nil, fmt.Errorf("can't convert config to awsSettings: %w", err)
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if settings.Region != "" {
		opts = append(opts, awsconfig.WithRegion(settings.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &awsClient{
		cfg:      cfg,
		settings: settings,
		retry:    storage.DefaultRetryPolicy(),
		http:     &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

func (c *awsClient) Name() string { return "aws" }

func (c *awsClient) GetStorage(ctx context.Context, benchmarkName string, bucketCount int, exclusive bool) (storage.Backend, error) {
	b := storage.NewS3Storage(&storage.S3StorageInput{AwsConfig: c.cfg, Retry: c.retry})
	inputs, outputs := benchmark.SplitBucketCount(bucketCount)
	if err := b.AllocateBuckets(ctx, benchmarkName, inputs, outputs); err != nil {
		return nil, err
	}
	if exclusive {
		for _, bucket := range b.InputBuckets() {
			if err := b.Clean(ctx, bucket); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}

func (c *awsClient) Deploy(ctx context.Context, pkg *benchmark.CodePackage, name string) (*Function, error) {
	if c.settings.DeployBucket == "" {
		return nil, fmt.Errorf("aws deployment requires a deploy_bucket in the provider config")
	}

	b := storage.NewS3Storage(&storage.S3StorageInput{AwsConfig: c.cfg, Retry: c.retry})
	key := fmt.Sprintf("%s-%s.zip", name, pkg.Hash)
	if err := b.Upload(ctx, c.settings.DeployBucket, key, pkg.Path); err != nil {
		return nil, err
	}
	slog.Info("uploaded code package",
		slog.String("bucket", c.settings.DeployBucket),
		slog.String("key", key),
	)
	return &Function{Name: name, TriggerURL: c.settings.TriggerURL}, nil
}

func (c *awsClient) Invoke(ctx context.Context, fn *Function, payload map[string]any) (*InvocationResult, error) {
	return invokeHTTP(ctx, c.http, fn, payload)
}
