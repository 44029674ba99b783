package benchmark

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/faasbench/faasbench/storage"
)

// Uploader puts a local file into the benchmark's input bucket at bucketIdx
// under the given key.
type Uploader func(bucketIdx int, key, localPath string) error

// InputGenerator is the input-generation contract a benchmark supplies:
// how many buckets it needs and how to populate them.
type InputGenerator interface {
	// BucketCount returns the total number of buckets the benchmark needs,
	// split across input and output roles by the preparer.
	BucketCount() int

	// GenerateInput uploads whatever the benchmark needs through upload and
	// returns the invocation config for the deployed function.
	GenerateInput(size Size, inputBuckets, outputBuckets []string, upload Uploader) (map[string]any, error)
}

var generators map[string]InputGenerator

// Benchmarks must register their input generator at module load time so the
// preparer can find it by benchmark name.
func RegisterGenerator(benchmark string, g InputGenerator) {
	if generators == nil {
		generators = map[string]InputGenerator{}
	}
	generators[benchmark] = g
}

// SplitBucketCount assigns the first half (rounded up) of a generator's
// bucket count to the input role and the rest to the output role.
func SplitBucketCount(count int) (inputs, outputs int) {
	inputs = (count + 1) / 2
	return inputs, count - inputs
}

// PrepareInput allocates the benchmark's buckets on the backend and runs its
// input generator with the uploader bound to the backend's input buckets. The
// generator's config map is returned unmodified.
func PrepareInput(ctx context.Context, b *Benchmark, backend storage.Backend, size Size) (map[string]any, error) {
	gen, ok := generators[b.Name]
	if !ok {
		return nil, &InputGenerationError{
			Benchmark: b.Name,
			Err:       fmt.Errorf("no input generator registered"),
		}
	}

	inputs, outputs := SplitBucketCount(gen.BucketCount())
	if err := backend.AllocateBuckets(ctx, b.Name, inputs, outputs); err != nil {
		return nil, err
	}

	upload := func(bucketIdx int, key, localPath string) error {
		buckets := backend.InputBuckets()
		if bucketIdx < 0 || bucketIdx >= len(buckets) {
			return fmt.Errorf("input bucket index %d out of range, have %d buckets", bucketIdx, len(buckets))
		}
		return backend.Upload(ctx, buckets[bucketIdx], key, localPath)
	}

	config, err := gen.GenerateInput(size, backend.InputBuckets(), backend.OutputBuckets(), upload)
	if err != nil {
		return nil, &InputGenerationError{Benchmark: b.Name, Err: err}
	}
	slog.Debug("prepared benchmark input",
		slog.String("benchmark", b.Name),
		slog.String("size", string(size)),
	)
	return config, nil
}
