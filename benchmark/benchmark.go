package benchmark

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
)

type Language string

const (
	LanguagePython Language = "python"
	LanguageNodejs Language = "nodejs"
	LanguageCpp    Language = "cpp"
)

func ParseLanguage(s string) (Language, error) {
	switch Language(s) {
	case LanguagePython, LanguageNodejs, LanguageCpp:
		return Language(s), nil
	default:
		return "", fmt.Errorf("unknown benchmark language: %s", s)
	}
}

// Size is the benchmark input size class.
type Size string

const (
	SizeTest  Size = "test"
	SizeSmall Size = "small"
	SizeLarge Size = "large"
)

func ParseSize(s string) (Size, error) {
	switch Size(s) {
	case SizeTest, SizeSmall, SizeLarge:
		return Size(s), nil
	default:
		return "", fmt.Errorf("unknown benchmark size: %s", s)
	}
}

// A Benchmark is immutable once resolved from disk.
type Benchmark struct {
	Name     string
	Path     string
	Language Language
	Size     Size
}

// Find locates the benchmark by name under the benchmark root. The benchmark
// is a directory whose base name equals the requested name, anywhere in the
// tree.
func Find(root, name string, language Language, size Size) (*Benchmark, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == name {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan benchmark root %s: %w", root, err)
	}
	if found == "" {
		return nil, &NotFoundError{Name: name, Root: root}
	}

	slog.Info("located benchmark", slog.String("name", name), slog.String("path", found))
	return &Benchmark{Name: name, Path: found, Language: language, Size: size}, nil
}
