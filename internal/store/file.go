package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// File keeps one file per key under a data directory.
type File struct {
	dir string
}

// NewFile creates the directory if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

// Get reads the file for key, or ErrNotFound if it does not exist.
func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

// Set replaces the value atomically. A failed write leaves the previous
// contents in place.
func (f *File) Set(ctx context.Context, key string, value []byte) error {
	if err := renameio.WriteFile(f.path(key), value, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Delete removes the file for key. Missing keys are not an error.
func (f *File) Delete(ctx context.Context, key string) error {
	err := os.Remove(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Ping checks the data directory is still there.
func (f *File) Ping(ctx context.Context) error {
	_, err := os.Stat(f.dir)
	return err
}

// Close is a no-op.
func (f *File) Close() error { return nil }
