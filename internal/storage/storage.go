package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when the path does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore reads and removes uploaded files by path within one bucket.
type BlobStore interface {
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// maxObjectSize bounds how much of an object ReadAll will load.
const maxObjectSize = 100 << 20

// ReadAll downloads path fully into memory.
func ReadAll(ctx context.Context, store BlobStore, path string) ([]byte, error) {
	rc, err := store.Download(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxObjectSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxObjectSize {
		return nil, errors.New("object exceeds maximum size")
	}
	return data, nil
}
