package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/faasbench/faasbench/cache"
	"github.com/google/uuid"
)

// Backend discriminators used in serialized cache entries.
const (
	BackendMinio = "minio"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
)

// A Backend is an object-storage provider (emulated or cloud-native) that owns
// the buckets it allocated for one benchmark.
type Backend interface {
	// EnsureBucket returns a bucket for the logical name. If any name in
	// existing contains the logical name it is reused as-is with no network
	// mutation; otherwise a bucket named "{name}-{8-hex-random}" is created.
	EnsureBucket(ctx context.Context, name string, existing []string) (string, error)

	// AllocateBuckets ensures the benchmark's input and output buckets exist,
	// reusing live buckets that match, and records them in order.
	AllocateBuckets(ctx context.Context, benchmark string, inputCount, outputCount int) error

	// Upload streams a local file into a bucket under the given key.
	Upload(ctx context.Context, bucket, key, localPath string) error

	// ListObjects returns the keys currently present in the bucket.
	ListObjects(ctx context.Context, bucket string) ([]string, error)

	// Clean deletes all objects present in the bucket as enumerated at call
	// time. Objects added concurrently by another actor may survive.
	Clean(ctx context.Context, bucket string) error

	// DownloadAll copies every currently-listed object into destDir, keeping
	// object keys as relative file names.
	DownloadAll(ctx context.Context, bucket, destDir string) error

	// Owned bucket names in allocation order.
	InputBuckets() []string
	OutputBuckets() []string

	// Serialize snapshots the backend for caching. Returns nil if the backend
	// was never started.
	Serialize() *cache.Entry

	// Stop shuts down a self-hosted backend. A no-op for cloud-native ones.
	Stop(ctx context.Context) error
}

// RestoreDeps carries the process-level collaborators a restored backend needs
// to reconnect.
type RestoreDeps struct {
	Containers ContainerRuntime
	Retry      RetryPolicy
}

type RestoreFunc func(ctx context.Context, entry *cache.Entry, deps *RestoreDeps) (Backend, error)

var backends map[string]RestoreFunc

// All backend implementations must register themselves at module load time so
// that cached entries can be restored by their discriminator.
func RegisterBackend(typ string, f RestoreFunc) {
	if backends == nil {
		backends = map[string]RestoreFunc{}
	}
	backends[typ] = f
}

// Restore reconstructs a live backend handle from a cache entry. It verifies
// the underlying resource still exists and fails with CacheRestoreError if it
// does not; it never provisions a replacement.
func Restore(ctx context.Context, entry *cache.Entry, deps *RestoreDeps) (Backend, error) {
	f, ok := backends[entry.Type]
	if !ok {
		return nil, fmt.Errorf("unknown storage backend type: %s", entry.Type)
	}
	return f(ctx, entry, deps)
}

// bucketSuffix returns 8 hex characters to append to generated bucket names,
// short enough to respect backend name-length limits.
func bucketSuffix() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// reuseBucket scans existing bucket names for one matching the logical name.
// The match is substring containment, so names sharing a prefix can match
// across benchmarks.
func reuseBucket(name string, existing []string) (string, bool) {
	for _, bucket := range existing {
		if strings.Contains(bucket, name) {
			slog.Info("bucket already exists, skipping",
				slog.String("name", name),
				slog.String("bucket", bucket),
			)
			return bucket, true
		}
	}
	return "", false
}

type ensureFunc func(ctx context.Context, name string, existing []string) (string, error)

// allocate creates or reuses the benchmark's buckets by role. existing is the
// backend's live bucket listing filtered to the benchmark, so a rerun picks up
// its previous buckets instead of creating new ones.
func allocate(
	ctx context.Context,
	benchmark string,
	inputCount, outputCount int,
	existing []string,
	ensure ensureFunc,
) (inputs, outputs []string, err error) {
	for i := 0; i < inputCount; i++ {
		bucket, err := ensure(ctx, fmt.Sprintf("%s-%d-input", benchmark, i), existing)
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, bucket)
	}
	for i := 0; i < outputCount; i++ {
		bucket, err := ensure(ctx, fmt.Sprintf("%s-%d-output", benchmark, i), existing)
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, bucket)
	}
	return inputs, outputs, nil
}
