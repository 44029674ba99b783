package report

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"
)

// RepetitionResult records one invocation of the deployed function.
type RepetitionResult struct {
	Repetition  int
	DurationSec float64
	Output      map[string]any
}

// Summary is the persisted record of one experiment run.
type Summary struct {
	Benchmark  string
	Deployment string

	// Run parameters as given by the user, echoed for traceability.
	Run map[string]any

	// Input is the invocation config produced by the benchmark's generator.
	Input map[string]any

	PackagePath      string
	PackageSizeBytes int64
	PackageHash      string

	InputBuckets  []string
	OutputBuckets []string

	Results []*RepetitionResult

	StartedAt  time.Time
	FinishedAt time.Time
}

func Write(path string, s *Summary) error {
	buf, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	err = os.WriteFile(path, buf, 0o644)
	if err != nil {
		return err
	}
	slog.Info("wrote experiment summary", slog.String("path", path))
	return nil
}
