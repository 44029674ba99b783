package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/alitto/pond"
	"github.com/faasbench/faasbench/cache"
	"github.com/schollz/progressbar/v3"
	"google.golang.org/api/iterator"
)

func init() {
	RegisterBackend(BackendGCS, restoreGCS)
}

// gcsStorage is the Google Cloud Storage backend. Credentials come from the
// ambient application-default chain.
type gcsStorage struct {
	client  *gcs.Client
	project string
	input   []string
	output  []string
}

type GCSStorageInput struct {
	Client  *gcs.Client
	Project string
}

func NewGCSStorage(input *GCSStorageInput) Backend {
	return &gcsStorage{client: input.Client, project: input.Project}
}

func (s *gcsStorage) EnsureBucket(ctx context.Context, name string, existing []string) (string, error) {
	if bucket, ok := reuseBucket(name, existing); ok {
		return bucket, nil
	}

	bucket := fmt.Sprintf("%s-%s", name, bucketSuffix())
	err := s.client.Bucket(bucket).Create(ctx, s.project, nil)
	if err != nil {
		return "", &ResourceCreationError{Bucket: bucket, Err: err}
	}
	slog.Info("created bucket", slog.String("name", bucket))
	return bucket, nil
}

func (s *gcsStorage) AllocateBuckets(ctx context.Context, benchmark string, inputCount, outputCount int) error {
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

func (s *gcsStorage) listBuckets(ctx context.Context, match string) ([]string, error) {
	buckets := []string{}
	it := s.client.Buckets(ctx, s.project)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		if strings.Contains(attrs.Name, match) {
			buckets = append(buckets, attrs.Name)
		}
	}
	return buckets, nil
}

func (s *gcsStorage) Upload(ctx context.Context, bucket, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return &UploadError{Bucket: bucket, Key: key, Err: err}
	}
	defer f.Close()

	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return &UploadError{Bucket: bucket, Key: key, Err: err}
	}
	if err := w.Close(); err != nil {
		return &UploadError{Bucket: bucket, Key: key, Err: err}
	}
	return nil
}

func (s *gcsStorage) ListObjects(ctx context.Context, bucket string) ([]string, error) {
	keys := []string{}
	it := s.client.Bucket(bucket).Objects(ctx, nil)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if errors.Is(err, gcs.ErrBucketNotExist) {
			return nil, &ResourceNotFoundError{Bucket: bucket}
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (s *gcsStorage) Clean(ctx context.Context, bucket string) error {
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
			err := s.client.Bucket(bucket).Object(key).Delete(ctx)
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

func (s *gcsStorage) DownloadAll(ctx context.Context, bucket, destDir string) error {
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

func (s *gcsStorage) downloadObject(ctx context.Context, bucket, key, destDir string) error {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	dest := filepath.Join(destDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

func (s *gcsStorage) InputBuckets() []string  { return s.input }
func (s *gcsStorage) OutputBuckets() []string { return s.output }

func (s *gcsStorage) Serialize() *cache.Entry {
	if len(s.input) == 0 && len(s.output) == 0 {
		return nil
	}
	return &cache.Entry{
		Type:    BackendGCS,
		Address: s.project,
		Input:   slices.Clone(s.input),
		Output:  slices.Clone(s.output),
	}
}

// Stop is a no-op, the buckets live in GCS independently of this process.
func (s *gcsStorage) Stop(ctx context.Context) error { return nil }

func restoreGCS(ctx context.Context, entry *cache.Entry, deps *RestoreDeps) (Backend, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	s := NewGCSStorage(&GCSStorageInput{Client: client, Project: entry.Address}).(*gcsStorage)
	s.input = slices.Clone(entry.Input)
	s.output = slices.Clone(entry.Output)

	if len(entry.Input) > 0 {
		_, err := client.Bucket(entry.Input[0]).Attrs(ctx)
		if errors.Is(err, gcs.ErrBucketNotExist) {
			return nil, &CacheRestoreError{Type: BackendGCS, InstanceID: entry.Input[0]}
		}
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}
