package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Cache is a durable store of backend snapshots, one JSON file per
// (deployment, benchmark) key. A later run loads the entry to reconstruct a
// live backend handle instead of provisioning a new one.
//
// Save must only be called after a fully successful provisioning sequence; a
// partially provisioned backend must never be cached. A loaded entry does not
// guarantee the underlying resource is still alive, restoration has to verify
// that on its own.
type Cache struct {
	dir string
}

type Key struct {
	Deployment string
	Benchmark  string
}

func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, fs.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Cache{dir: abs}, nil
}

// Save persists the entry under the key, replacing any prior entry
// (last-write-wins). The file is written to a temp path and renamed so a
// crashed run never leaves a partial entry behind.
func (c *Cache) Save(key Key, entry *Entry) error {
	p := c.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(p), fs.ModePerm); err != nil {
		return err
	}

	buf, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return err
	}
	slog.Debug("saved storage cache entry",
		slog.String("deployment", key.Deployment),
		slog.String("benchmark", key.Benchmark),
	)
	return nil
}

// Load returns the entry for the key, or nil if none exists. A nil entry means
// the caller must provision fresh.
func (c *Cache) Load(key Key) (*Entry, error) {
	buf, err := os.ReadFile(c.entryPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	entry := &Entry{}
	if err := json.Unmarshal(buf, entry); err != nil {
		return nil, fmt.Errorf("corrupt cache entry for %s/%s: %w", key.Deployment, key.Benchmark, err)
	}
	return entry, nil
}

func (c *Cache) entryPath(key Key) string {
	return filepath.Join(c.dir, key.Deployment, key.Benchmark+".json")
}
