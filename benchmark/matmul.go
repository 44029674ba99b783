package benchmark

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
)

func init() {
	RegisterGenerator("matmul", &matmulGenerator{})
}

// matmulGenerator produces a square input matrix for the matmul benchmark.
// One input bucket for the matrix, one output bucket for the result.
type matmulGenerator struct{}

func (g *matmulGenerator) BucketCount() int { return 2 }

func (g *matmulGenerator) GenerateInput(size Size, inputBuckets, outputBuckets []string, upload Uploader) (map[string]any, error) {
	var dim int
	switch size {
	case SizeTest:
		dim = 16
	case SizeSmall:
		dim = 128
	case SizeLarge:
		dim = 1024
	default:
		return nil, fmt.Errorf("unknown size: %s", size)
	}

	matrix := make([][]float64, dim)
	for i := range matrix {
		row := make([]float64, dim)
		for j := range row {
			row[j] = rand.Float64()
		}
		matrix[i] = row
	}

	buf, err := json.Marshal(matrix)
	if err != nil {
		return nil, err
	}
	f, err := os.CreateTemp("", "matmul-input-*.json")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	const key = "matrix.json"
	if err := upload(0, key, f.Name()); err != nil {
		return nil, err
	}

	return map[string]any{
		"benchmark":     "matmul",
		"dimension":     dim,
		"input_bucket":  inputBuckets[0],
		"output_bucket": outputBuckets[0],
		"key":           key,
	}, nil
}
