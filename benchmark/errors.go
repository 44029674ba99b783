package benchmark

import "fmt"

var (
	_ error = (*NotFoundError)(nil)
	_ error = (*PackagingError)(nil)
	_ error = (*InputGenerationError)(nil)
)

// NotFoundError is returned when no benchmark with the requested name exists
// under the benchmark root.
type NotFoundError struct {
	Name string
	Root string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("benchmark %q not found under %s", e.Name, e.Root)
}

// PackagingError is returned when building a deployable code package fails.
type PackagingError struct {
	Benchmark string
	Language  Language
	Err       error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("packaging benchmark %q for %s failed: %v", e.Benchmark, e.Language, e.Err)
}

func (e *PackagingError) Unwrap() error { return e.Err }

// InputGenerationError is returned when a benchmark's input-generation
// contract is missing or fails.
type InputGenerationError struct {
	Benchmark string
	Err       error
}

func (e *InputGenerationError) Error() string {
	return fmt.Sprintf("generating input for benchmark %q failed: %v", e.Benchmark, e.Err)
}

func (e *InputGenerationError) Unwrap() error { return e.Err }
