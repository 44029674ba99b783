package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/faasbench/faasbench/cache"
)

// memoryBackend keeps buckets and objects in maps, enough to drive input
// preparation without a network.
type memoryBackend struct {
	objects map[string]map[string][]byte
	input   []string
	output  []string

	allocErr error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{objects: map[string]map[string][]byte{}}
}

func (m *memoryBackend) EnsureBucket(ctx context.Context, name string, existing []string) (string, error) {
	bucket := name + "-feedc0de"
	if _, ok := m.objects[bucket]; !ok {
		m.objects[bucket] = map[string][]byte{}
	}
	return bucket, nil
}

func (m *memoryBackend) AllocateBuckets(ctx context.Context, benchmark string, inputCount, outputCount int) error {
	if m.allocErr != nil {
		return m.allocErr
	}
	m.input, m.output = nil, nil
	for i := 0; i < inputCount; i++ {
		bucket, _ := m.EnsureBucket(ctx, fmt.Sprintf("%s-%d-input", benchmark, i), nil)
		m.input = append(m.input, bucket)
	}
	for i := 0; i < outputCount; i++ {
		bucket, _ := m.EnsureBucket(ctx, fmt.Sprintf("%s-%d-output", benchmark, i), nil)
		m.output = append(m.output, bucket)
	}
	return nil
}

func (m *memoryBackend) Upload(ctx context.Context, bucket, key, localPath string) error {
	objects, ok := m.objects[bucket]
	if !ok {
		return fmt.Errorf("bucket %q does not exist", bucket)
	}
	buf, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	objects[key] = buf
	return nil
}

func (m *memoryBackend) ListObjects(ctx context.Context, bucket string) ([]string, error) {
	keys := []string{}
	for key := range m.objects[bucket] {
		keys = append(keys, key)
	}
	return keys, nil
}

func (m *memoryBackend) Clean(ctx context.Context, bucket string) error {
	m.objects[bucket] = map[string][]byte{}
	return nil
}

func (m *memoryBackend) DownloadAll(ctx context.Context, bucket, destDir string) error {
	return nil
}

func (m *memoryBackend) InputBuckets() []string  { return m.input }
func (m *memoryBackend) OutputBuckets() []string { return m.output }

func (m *memoryBackend) Serialize() *cache.Entry { return nil }

func (m *memoryBackend) Stop(ctx context.Context) error { return nil }

func TestPrepareInputMatmul(t *testing.T) {
	backend := newMemoryBackend()
	b := &Benchmark{Name: "matmul", Path: "unused", Language: LanguagePython}

	config, err := PrepareInput(context.Background(), b, backend, SizeTest)
	if err != nil {
		t.Fatal(err)
	}

	if len(backend.input) != 1 || len(backend.output) != 1 {
		t.Fatalf("expected 1 input and 1 output bucket, got %v / %v", backend.input, backend.output)
	}
	if config["input_bucket"] != backend.input[0] {
		t.Fatalf("config names bucket %v, backend has %v", config["input_bucket"], backend.input[0])
	}
	if config["output_bucket"] != backend.output[0] {
		t.Fatalf("config names bucket %v, backend has %v", config["output_bucket"], backend.output[0])
	}
	if config["dimension"] != 16 {
		t.Fatalf("expected test-size dimension 16, got %v", config["dimension"])
	}

	keys, err := backend.ListObjects(context.Background(), backend.input[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "matrix.json" {
		t.Fatalf("expected the uploaded matrix, got %v", keys)
	}
}

func TestPrepareInputConcurrentRuns(t *testing.T) {
	b := &Benchmark{Name: "matmul", Path: "unused", Language: LanguagePython}
	backends := []*memoryBackend{newMemoryBackend(), newMemoryBackend()}

	var wg sync.WaitGroup
	errs := make(chan error, len(backends))
	for _, backend := range backends {
		backend := backend
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := PrepareInput(context.Background(), b, backend, SizeTest); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	// Each run must end up with its own intact input, not a shared temp file.
	for _, backend := range backends {
		buf := backend.objects[backend.input[0]]["matrix.json"]
		matrix := [][]float64{}
		if err := json.Unmarshal(buf, &matrix); err != nil {
			t.Fatalf("uploaded input is not a valid matrix: %v", err)
		}
		if len(matrix) != 16 {
			t.Fatalf("expected a 16x16 test matrix, got %d rows", len(matrix))
		}
	}
}

func TestPrepareInputUnknownBenchmark(t *testing.T) {
	backend := newMemoryBackend()
	b := &Benchmark{Name: "no-such-benchmark", Path: "unused", Language: LanguagePython}

	_, err := PrepareInput(context.Background(), b, backend, SizeTest)
	var genErr *InputGenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected InputGenerationError, got %v", err)
	}
}

func TestPrepareInputAllocationFailurePropagates(t *testing.T) {
	backend := newMemoryBackend()
	allocErr := errors.New("bucket quota exceeded")
	backend.allocErr = allocErr
	b := &Benchmark{Name: "matmul", Path: "unused", Language: LanguagePython}

	_, err := PrepareInput(context.Background(), b, backend, SizeTest)
	if !errors.Is(err, allocErr) {
		t.Fatalf("allocation errors must surface unmodified, got %v", err)
	}
	var genErr *InputGenerationError
	if errors.As(err, &genErr) {
		t.Fatal("allocation failures must not be wrapped as generation errors")
	}
}
