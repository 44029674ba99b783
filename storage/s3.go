package storage

import (
	"context"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/faasbench/faasbench/cache"
)

func init() {
	RegisterBackend(BackendS3, restoreS3)
}

// s3Storage is the AWS-native backend. Credentials come from the ambient
// config chain, so the serialized entry only has to carry the region and the
// owned buckets.
type s3Storage struct {
	store  *objectStore
	region string
}

type S3StorageInput struct {
	AwsConfig aws.Config
	Retry     RetryPolicy
}

func NewS3Storage(input *S3StorageInput) Backend {
	client := s3.NewFromConfig(input.AwsConfig, func(o *s3.Options) {
		o.Retryer = input.Retry.Build()
		o.HTTPClient = newHTTPClient()
	})
	return &s3Storage{
		store:  newObjectStore(client, input.AwsConfig.Region),
		region: input.AwsConfig.Region,
	}
}

func (s *s3Storage) EnsureBucket(ctx context.Context, name string, existing []string) (string, error) {
	return s.store.EnsureBucket(ctx, name, existing)
}

func (s *s3Storage) AllocateBuckets(ctx context.Context, benchmark string, inputCount, outputCount int) error {
	return s.store.AllocateBuckets(ctx, benchmark, inputCount, outputCount)
}

func (s *s3Storage) Upload(ctx context.Context, bucket, key, localPath string) error {
	return s.store.Upload(ctx, bucket, key, localPath)
}

func (s *s3Storage) ListObjects(ctx context.Context, bucket string) ([]string, error) {
	return s.store.ListObjects(ctx, bucket)
}

func (s *s3Storage) Clean(ctx context.Context, bucket string) error {
	return s.store.Clean(ctx, bucket)
}

func (s *s3Storage) DownloadAll(ctx context.Context, bucket, destDir string) error {
	return s.store.DownloadAll(ctx, bucket, destDir)
}

func (s *s3Storage) InputBuckets() []string  { return s.store.input }
func (s *s3Storage) OutputBuckets() []string { return s.store.output }

func (s *s3Storage) Serialize() *cache.Entry {
	if len(s.store.input) == 0 && len(s.store.output) == 0 {
		return nil
	}
	return &cache.Entry{
		Type:    BackendS3,
		Address: s.region,
		Input:   slices.Clone(s.store.input),
		Output:  slices.Clone(s.store.output),
	}
}

// Stop is a no-op, the buckets live in AWS independently of this process.
func (s *s3Storage) Stop(ctx context.Context) error { return nil }

func restoreS3(ctx context.Context, entry *cache.Entry, deps *RestoreDeps) (Backend, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(entry.Address))
	if err != nil {
		return nil, err
	}
	s := NewS3Storage(&S3StorageInput{AwsConfig: cfg, Retry: deps.Retry}).(*s3Storage)
	s.store.input = slices.Clone(entry.Input)
	s.store.output = slices.Clone(entry.Output)

	// the entry's buckets must still be live, a vanished bucket means the
	// cached state no longer matches reality
	if len(entry.Input) > 0 {
		live, err := s.store.listBuckets(ctx, entry.Input[0])
		if err != nil {
			return nil, err
		}
		if !slices.Contains(live, entry.Input[0]) {
			return nil, &CacheRestoreError{Type: BackendS3, InstanceID: entry.Input[0]}
		}
	}
	return s, nil
}
