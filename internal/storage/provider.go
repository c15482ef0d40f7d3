// Package storage defines where finished datasets are published once a crawl
// completes. Backends live in subpackages (gcs, local, memory).
package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

// BlobStore uploads one object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, objectPath string, contentType string, r io.Reader) (string, error)
}

// NoOpBlobStore discards uploads. It is used when publication is disabled.
type NoOpBlobStore struct{}

// PutObject drains nothing and returns an empty URI.
func (NoOpBlobStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", nil
}

// ObjectPath joins a prefix, source and dataset file name into an object key.
func ObjectPath(prefix, source, fileName string) string {
	prefix = strings.Trim(prefix, "/")
	return path.Join(prefix, source, path.Base(strings.ReplaceAll(fileName, "\\", "/")))
}
