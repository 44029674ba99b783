package benchmark

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    Language
		wantErr bool
	}{
		{"python", LanguagePython, false},
		{"nodejs", LanguageNodejs, false},
		{"cpp", LanguageCpp, false},
		{"java", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLanguage(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseLanguage(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    Size
		wantErr bool
	}{
		{"test", SizeTest, false},
		{"small", SizeSmall, false},
		{"large", SizeLarge, false},
		{"huge", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseSize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFindLocatesNestedBenchmark(t *testing.T) {
	root := t.TempDir()
	benchDir := filepath.Join(root, "500.scientific", "matmul", "python")
	if err := os.MkdirAll(benchDir, 0o755); err != nil {
		t.Fatal(err)
	}

	b, err := Find(root, "matmul", LanguagePython, SizeSmall)
	if err != nil {
		t.Fatal(err)
	}
	if b.Path != filepath.Join(root, "500.scientific", "matmul") {
		t.Fatalf("unexpected path: %s", b.Path)
	}
	if b.Name != "matmul" || b.Language != LanguagePython || b.Size != SizeSmall {
		t.Fatalf("unexpected benchmark: %+v", b)
	}
}

func TestFindUnknownBenchmark(t *testing.T) {
	root := t.TempDir()
	_, err := Find(root, "does-not-exist", LanguagePython, SizeTest)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.Name != "does-not-exist" {
		t.Fatalf("unexpected name in error: %q", notFound.Name)
	}
}

func TestSplitBucketCount(t *testing.T) {
	tests := []struct {
		count   int
		inputs  int
		outputs int
	}{
		{0, 0, 0},
		{1, 1, 0},
		{2, 1, 1},
		{3, 2, 1},
		{4, 2, 2},
	}
	for _, tt := range tests {
		inputs, outputs := SplitBucketCount(tt.count)
		if inputs != tt.inputs || outputs != tt.outputs {
			t.Fatalf("SplitBucketCount(%d) = (%d, %d), want (%d, %d)",
				tt.count, inputs, outputs, tt.inputs, tt.outputs)
		}
	}
}
