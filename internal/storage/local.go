package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	apperrors "github.com/geocatalog/pkg/errors"
)

// FSStorage implements Storage over a billy filesystem: a local directory or
// the catalog data directory itself.
type FSStorage struct {
	fs billy.Filesystem
}

// NewFSStorage returns a Storage writing into fs.
func NewFSStorage(fs billy.Filesystem) *FSStorage {
	return &FSStorage{fs: fs}
}

// NewLocalStorage creates a Storage rooted at a local directory, creating
// the directory if needed.
func NewLocalStorage(basePath string) (*FSStorage, error) {
	if basePath == "" {
		basePath = "./storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return NewFSStorage(osfs.New(basePath)), nil
}

// Upload writes the content of reader to key, replacing any previous file.
func (s *FSStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(path.Dir(key), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to create directory of "+key, err)
	}

	file, err := s.fs.Create(key)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to create "+key, err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to write "+key, err)
	}
	if err := file.Close(); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to write "+key, err)
	}
	return nil
}

// Download opens the file stored under key.
func (s *FSStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := s.fs.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "resource not found: %s", key)
		}
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to open "+key, err)
	}
	return file, nil
}

// Exists reports whether a file is stored under key.
func (s *FSStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := s.fs.Stat(key); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.CodeStorageError, "failed to stat "+key, err)
	}
	return true, nil
}
