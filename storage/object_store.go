package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alitto/pond"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3Types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/schollz/progressbar/v3"
)

// s3API is the slice of the S3 client the object store needs. MinIO speaks the
// same protocol, so both the emulated and the AWS backend share this core.
type s3API interface {
	manager.UploadAPIClient
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, opts ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type objectStore struct {
	api    s3API
	region string
	input  []string
	output []string
}

func newObjectStore(api s3API, region string) *objectStore {
	return &objectStore{api: api, region: region}
}

func (s *objectStore) EnsureBucket(ctx context.Context, name string, existing []string) (string, error) {
	if bucket, ok := reuseBucket(name, existing); ok {
		return bucket, nil
	}

	bucket := fmt.Sprintf("%s-%s", name, bucketSuffix())
	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
		ACL:    s3Types.BucketCannedACLPrivate,
	}
	// us-east-1 is the default and must not be sent as a location constraint
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3Types.CreateBucketConfiguration{
			LocationConstraint: s3Types.BucketLocationConstraint(s.region),
		}
	}
	_, err := s.api.CreateBucket(ctx, input)
	if err != nil {
		return "", &ResourceCreationError{Bucket: bucket, Err: err}
	}
	slog.Info("created bucket", slog.String("name", bucket))
	return bucket, nil
}

func (s *objectStore) AllocateBuckets(ctx context.Context, benchmark string, inputCount, outputCount int) error {
	existing, err := s.listBuckets(ctx, benchmark)
	if err != nil {
		return err
	}
	inputs, outputs, err := allocate(ctx, benchmark, inputCount, outputCount, existing, s.EnsureBucket)
	if err != nil {
		return err
	}
	s.input = inputs
	s.output = outputs
	return nil
}

// listBuckets returns the live bucket names containing match.
func (s *objectStore) listBuckets(ctx context.Context, match string) ([]string, error) {
	out, err := s.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, err
	}
	buckets := []string{}
	for _, b := range out.Buckets {
		if b.Name != nil && strings.Contains(*b.Name, match) {
			buckets = append(buckets, *b.Name)
		}
	}
	return buckets, nil
}

func (s *objectStore) Upload(ctx context.Context, bucket, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return &UploadError{Bucket: bucket, Key: key, Err: err}
	}
	defer f.Close()

	uploader := manager.NewUploader(s.api)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		slog.Error("failed to upload object",
			slog.String("bucket", bucket),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return &UploadError{Bucket: bucket, Key: key, Err: err}
	}
	return nil
}

func (s *objectStore) ListObjects(ctx context.Context, bucket string) ([]string, error) {
	keys := []string{}
	var token *string
	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: token,
		})
		if err != nil {
			var noBucket *s3Types.NoSuchBucket
			if errors.As(err, &noBucket) {
				return nil, &ResourceNotFoundError{Bucket: bucket}
			}
			return nil, err
		}
		for _, obj := range out.Contents {
			keys = append(keys, *obj.Key)
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	return keys, nil
}

// Clean deletes the objects enumerated at call time. Deletion failures for
// individual objects are logged and skipped so one racing actor cannot fail
// the whole cleanup.
func (s *objectStore) Clean(ctx context.Context, bucket string) error {
	keys, err := s.ListObjects(ctx, bucket)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	pool := pond.New(maxConnections, 0, pond.MinWorkers(maxConnections))
	p := progressbar.Default(int64(len(keys)), "Deleting objects:")
	for _, key := range keys {
		key := key
		pool.Submit(func() {
			defer p.Add(1)
			_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				slog.Error("failed to delete object",
					slog.String("bucket", bucket),
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			}
		})
	}
	pool.StopAndWait()
	p.Finish()
	return nil
}

func (s *objectStore) DownloadAll(ctx context.Context, bucket, destDir string) error {
	keys, err := s.ListObjects(ctx, bucket)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	errChan := make(chan error, len(keys))
	pool := pond.New(maxConnections, 0, pond.MinWorkers(maxConnections))
	p := progressbar.Default(int64(len(keys)), "Downloading objects:")
	for _, key := range keys {
		key := key
		pool.Submit(func() {
			defer p.Add(1)
			err := s.downloadObject(ctx, bucket, key, destDir)
			if err != nil {
				slog.Error("failed to download object",
					slog.String("bucket", bucket),
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				errChan <- err
			}
		})
	}
	pool.StopAndWait()
	p.Finish()

	select {
	case err := <-errChan:
		return fmt.Errorf("some objects failed to download: %w", err)
	default:
		return nil
	}
}

func (s *objectStore) downloadObject(ctx context.Context, bucket, key, destDir string) error {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer out.Body.Close()

	dest := filepath.Join(destDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, out.Body)
	return err
}

func (s *objectStore) InputBuckets() []string  { return s.input }
func (s *objectStore) OutputBuckets() []string { return s.output }
