package benchmark

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// CodePackage is a deployable archive of a benchmark's code for one language.
type CodePackage struct {
	Path      string
	SizeBytes int64
	// Hash identifies the package contents, so a deployment can skip
	// re-uploading code that did not change.
	Hash string
}

// BuildCodePackage archives the benchmark's sources for its language into a
// zip under outputDir. The benchmark must ship a directory named after the
// language; compiling the sources is the deployment's concern, not ours.
func BuildCodePackage(b *Benchmark, outputDir string) (*CodePackage, error) {
	srcDir := filepath.Join(b.Path, string(b.Language))
	info, err := os.Stat(srcDir)
	if err != nil || !info.IsDir() {
		return nil, &PackagingError{
			Benchmark: b.Name,
			Language:  b.Language,
			Err:       fmt.Errorf("benchmark does not provide %s sources at %s", b.Language, srcDir),
		}
	}

	if err := os.MkdirAll(outputDir, fs.ModePerm); err != nil {
		return nil, &PackagingError{Benchmark: b.Name, Language: b.Language, Err: err}
	}
	pkgPath := filepath.Join(outputDir, fmt.Sprintf("%s-%s.zip", b.Name, b.Language))

	err = writeZip(pkgPath, srcDir)
	if err != nil {
		return nil, &PackagingError{Benchmark: b.Name, Language: b.Language, Err: err}
	}

	hash, size, err := hashFile(pkgPath)
	if err != nil {
		return nil, &PackagingError{Benchmark: b.Name, Language: b.Language, Err: err}
	}

	slog.Info("created code package",
		slog.String("path", pkgPath),
		slog.Int64("sizeBytes", size),
		slog.String("hash", hash),
	)
	return &CodePackage{Path: pkgPath, SizeBytes: size, Hash: hash}, nil
}

func writeZip(pkgPath, srcDir string) error {
	out, err := os.Create(pkgPath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
