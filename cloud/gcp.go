package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/faasbench/faasbench/benchmark"
	"github.com/faasbench/faasbench/storage"
	"github.com/mitchellh/mapstructure"
)

func init() {
	RegisterProvider("gcp", newGCPClient)
}

type gcpSettings struct {
	Project      string `mapstructure:"project"`
	DeployBucket string `mapstructure:"deploy_bucket"`
	TriggerURL   string `mapstructure:"trigger_url"`
}

type gcpClient struct {
	gcs      *gcs.Client
	settings gcpSettings
	http     *http.Client
}

func newGCPClient(ctx context.Context, config map[string]any) (Client, error) {
	settings := gcpSettings{}
	if err := mapstructure.Decode(config, &settings); err != nil {
		return nil, fmt.Errorf("can't convert config to gcpSettings: %w", err)
	}
	if settings.Project == "" {
		return nil, fmt.Errorf("gcp deployment requires a project in the provider config")
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &gcpClient{
		gcs:      client,
		settings: settings,
		http:     &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

func (c *gcpClient) Name() string { return "gcp" }

func (c *gcpClient) GetStorage(ctx context.Context, benchmarkName string, bucketCount int, exclusive bool) (storage.Backend, error) {
	b := storage.NewGCSStorage(&storage.GCSStorageInput{Client: c.gcs, Project: c.settings.Project})
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

func (c *gcpClient) Deploy(ctx context.Context, pkg *benchmark.CodePackage, name string) (*Function, error) {
	if c.settings.DeployBucket == "" {
		return nil, fmt.Errorf("gcp deployment requires a deploy_bucket in the provider config")
	}

	b := storage.NewGCSStorage(&storage.GCSStorageInput{Client: c.gcs, Project: c.settings.Project})
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

func (c *gcpClient) Invoke(ctx context.Context, fn *Function, payload map[string]any) (*InvocationResult, error) {
	return invokeHTTP(ctx, c.http, fn, payload)
}
