package storage

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/faasbench/faasbench/cache"
)

const (
	minioImage = "minio/minio:latest"
	// the location does not matter for an emulated deployment
	minioRegion = "us-east-1"
	// port the minio server listens on inside the container
	minioServerPort = 9000
)

func init() {
	RegisterBackend(BackendMinio, restoreMinio)
}

// MinioInstance is a storage backend served by a minio container this process
// manages. Credentials are generated fresh on every Start; a stopped instance
// can be left running and reconnected to later through its cache entry.
type MinioInstance struct {
	input       *MinioInstanceInput
	containerID string
	address     string
	port        int
	accessKey   string
	secretKey   string
	store       *objectStore
}

type MinioInstanceInput struct {
	Containers ContainerRuntime
	Retry      RetryPolicy
}

func NewMinioInstance(input *MinioInstanceInput) *MinioInstance {
	return &MinioInstance{input: input}
}

// Start launches the storage container bound to port and opens a client
// connection to it. Launch failures are fatal and not retried.
func (m *MinioInstance) Start(ctx context.Context, port int) error {
	m.port = port

	var err error
	m.accessKey, err = randomURLSafe(32)
	if err != nil {
		return &ProvisioningError{Err: err}
	}
	m.secretKey, err = randomHex(32)
	if err != nil {
		return &ProvisioningError{Err: err}
	}
	slog.Info("minio storage credentials generated", slog.String("accessKey", m.accessKey))

	id, err := m.input.Containers.StartContainer(ctx, ContainerSpec{
		Image:         minioImage,
		Cmd:           []string{"server", "/data"},
		Env:           []string{"MINIO_ACCESS_KEY=" + m.accessKey, "MINIO_SECRET_KEY=" + m.secretKey},
		ContainerPort: minioServerPort,
		HostPort:      port,
	})
	if err != nil {
		slog.Error("starting minio storage failed", slog.String("error", err.Error()))
		return &ProvisioningError{Err: err}
	}
	m.containerID = id

	return m.configureConnection(ctx)
}

// configureConnection resolves the running container's address and opens the
// client connection. Address assignment can lag container creation, so an
// empty address is re-read once before giving up.
func (m *MinioInstance) configureConnection(ctx context.Context) error {
	if m.address == "" {
		addr, err := m.input.Containers.ContainerAddress(ctx, m.containerID)
		if err != nil {
			return fmt.Errorf("failed to inspect storage container %s: %w", m.containerID, err)
		}
		if addr == "" {
			addr, err = m.input.Containers.ContainerAddress(ctx, m.containerID)
			if err != nil {
				return fmt.Errorf("failed to inspect storage container %s: %w", m.containerID, err)
			}
		}
		if addr == "" {
			slog.Error("couldn't read the address of the storage container",
				slog.String("ID", m.containerID),
			)
			return &ConnectionConfigurationError{InstanceID: m.containerID}
		}
		// the bridge address reaches the server on its container port
		m.address = fmt.Sprintf("%s:%d", addr, minioServerPort)
		slog.Info("starting minio instance", slog.String("address", m.address))
	}
	m.connect()
	return nil
}

func (m *MinioInstance) connect() {
	api := s3.New(s3.Options{
		BaseEndpoint: aws.String("http://" + m.address),
		Region:       minioRegion,
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider(m.accessKey, m.secretKey, ""),
		Retryer:      m.input.Retry.Build(),
		HTTPClient:   newHTTPClient(),
	})
	store := newObjectStore(api, minioRegion)
	if m.store != nil {
		store.input = m.store.input
		store.output = m.store.output
	}
	m.store = store
}

func (m *MinioInstance) ready() (*objectStore, error) {
	if m.store == nil {
		return nil, fmt.Errorf("minio storage is not connected, call Start first")
	}
	return m.store, nil
}

func (m *MinioInstance) EnsureBucket(ctx context.Context, name string, existing []string) (string, error) {
	store, err := m.ready()
	if err != nil {
		return "", err
	}
	return store.EnsureBucket(ctx, name, existing)
}

func (m *MinioInstance) AllocateBuckets(ctx context.Context, benchmark string, inputCount, outputCount int) error {
	store, err := m.ready()
	if err != nil {
		return err
	}
	return store.AllocateBuckets(ctx, benchmark, inputCount, outputCount)
}

func (m *MinioInstance) Upload(ctx context.Context, bucket, key, localPath string) error {
	store, err := m.ready()
	if err != nil {
		return err
	}
	return store.Upload(ctx, bucket, key, localPath)
}

func (m *MinioInstance) ListObjects(ctx context.Context, bucket string) ([]string, error) {
	store, err := m.ready()
	if err != nil {
		return nil, err
	}
	return store.ListObjects(ctx, bucket)
}

func (m *MinioInstance) Clean(ctx context.Context, bucket string) error {
	store, err := m.ready()
	if err != nil {
		return err
	}
	return store.Clean(ctx, bucket)
}

func (m *MinioInstance) DownloadAll(ctx context.Context, bucket, destDir string) error {
	store, err := m.ready()
	if err != nil {
		return err
	}
	return store.DownloadAll(ctx, bucket, destDir)
}

func (m *MinioInstance) InputBuckets() []string {
	if m.store == nil {
		return nil
	}
	return m.store.input
}

func (m *MinioInstance) OutputBuckets() []string {
	if m.store == nil {
		return nil
	}
	return m.store.output
}

// Serialize snapshots the instance for caching. The bucket lists reflect the
// store's view at the moment of the call. Returns nil before a successful
// start.
func (m *MinioInstance) Serialize() *cache.Entry {
	if m.containerID == "" || m.store == nil {
		return nil
	}
	return &cache.Entry{
		Type:       BackendMinio,
		InstanceID: m.containerID,
		Address:    m.address,
		Port:       m.port,
		AccessKey:  m.accessKey,
		SecretKey:  m.secretKey,
		Input:      slices.Clone(m.store.input),
		Output:     slices.Clone(m.store.output),
	}
}

// Stop shuts the container down. Stopping an instance whose container was
// never known is an inconsistency worth reporting, not a crash.
func (m *MinioInstance) Stop(ctx context.Context) error {
	if m.containerID == "" {
		slog.Error("stopping minio was not successful, storage container not known")
		return nil
	}
	slog.Info("stopping minio container", slog.String("address", m.address))
	if err := m.input.Containers.StopContainer(ctx, m.containerID); err != nil {
		return fmt.Errorf("failed to stop minio container %s: %w", m.containerID, err)
	}
	slog.Info("stopped minio container", slog.String("address", m.address))
	return nil
}

func restoreMinio(ctx context.Context, entry *cache.Entry, deps *RestoreDeps) (Backend, error) {
	if deps.Containers == nil {
		return nil, fmt.Errorf("restoring minio storage %q requires a container runtime", entry.InstanceID)
	}
	m := NewMinioInstance(&MinioInstanceInput{Containers: deps.Containers, Retry: deps.Retry})
	if entry.InstanceID != "" {
		ok, err := deps.Containers.ContainerExists(ctx, entry.InstanceID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &CacheRestoreError{Type: BackendMinio, InstanceID: entry.InstanceID}
		}
		m.containerID = entry.InstanceID
	}
	m.address = entry.Address
	m.port = entry.Port
	m.accessKey = entry.AccessKey
	m.secretKey = entry.SecretKey
	m.connect()
	m.store.input = slices.Clone(entry.Input)
	m.store.output = slices.Clone(entry.Output)
	return m, nil
}

func randomURLSafe(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate credentials: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate credentials: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
