// Package local publishes finished datasets into a directory tree, for
// deployments that hand datasets to a shared volume instead of a bucket.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root every published dataset is written under.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore copies datasets under BaseDir.
type BlobStore struct {
	baseDir string
}

// New creates the publication directory if needed and checks that it is
// writable.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create publication dir %s: %w", cfg.BaseDir, err)
	}
	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("stat publication dir %s: %w", cfg.BaseDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("publication dir %s is not a directory", cfg.BaseDir)
	}

	probe, err := os.CreateTemp(cfg.BaseDir, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("publication dir %s is not writable: %w", cfg.BaseDir, err)
	}
	_ = probe.Close()
	if err := os.Remove(probe.Name()); err != nil {
		return nil, fmt.Errorf("clean up %s: %w", probe.Name(), err)
	}
	return &BlobStore{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

// PutObject streams r into <BaseDir>/<objectPath> and returns a file:// URI.
// The dataset is written to a temporary sibling and renamed into place, so
// consumers never see a partial copy.
func (s *BlobStore) PutObject(_ context.Context, objectPath string, _ string, r io.Reader) (string, error) {
	if strings.TrimSpace(objectPath) == "" {
		return "", fmt.Errorf("path is required")
	}
	dest := filepath.Join(s.baseDir, filepath.FromSlash(objectPath))
	if !strings.HasPrefix(dest, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %s", objectPath)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", objectPath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", objectPath, err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("copy %s: %w", objectPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp for %s: %w", objectPath, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("publish %s: %w", objectPath, err)
	}
	return "file://" + dest, nil
}
