package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.json")
	s := &Summary{
		Benchmark:  "matmul",
		Deployment: "minio",
		Run:        map[string]any{"Repetitions": 3},
		Input:      map[string]any{"dimension": 16},
		Results: []*RepetitionResult{
			{Repetition: 0, DurationSec: 0.5},
		},
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
	}

	if err := Write(path, s); err != nil {
		t.Fatal(err)
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	loaded := &Summary{}
	if err := json.Unmarshal(buf, loaded); err != nil {
		t.Fatal(err)
	}
	if loaded.Benchmark != "matmul" || len(loaded.Results) != 1 {
		t.Fatalf("unexpected summary: %+v", loaded)
	}
}
